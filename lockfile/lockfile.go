// Package lockfile implements wootrans.lock, a lock file that tracks MD5
// checksums of flattened source rows per target language. With
// --incremental only new or changed products are sent to the model.
//
// The lock file is stored in the output directory as wootrans.lock.
package lockfile

import (
	"crypto/md5"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// LockFileName is the default lock file name.
const LockFileName = "wootrans.lock"

// Version is the lock file format version.
const Version = 1

// ---------------------------------------------------------------------------
// Types
// ---------------------------------------------------------------------------

// LockFile represents the wootrans.lock file structure.
type LockFile struct {
	Version   int                          `yaml:"version"`
	Checksums map[string]map[string]string `yaml:"checksums"` // language -> row key -> md5

	mu   sync.Mutex `yaml:"-"`
	path string     `yaml:"-"`
}

// ---------------------------------------------------------------------------
// Loading and saving
// ---------------------------------------------------------------------------

// Load reads a lock file from the given directory.
// Returns an empty lock file if the file doesn't exist.
func Load(dir string) (*LockFile, error) {
	path := filepath.Join(dir, LockFileName)
	lf := &LockFile{
		Version:   Version,
		Checksums: make(map[string]map[string]string),
		path:      path,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return lf, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, lf); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	lf.path = path
	if lf.Checksums == nil {
		lf.Checksums = make(map[string]map[string]string)
	}
	return lf, nil
}

// Save writes the lock file to disk, creating its directory.
func (lf *LockFile) Save() error {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	if lf.path == "" {
		return fmt.Errorf("lock file path not set")
	}

	data, err := yaml.Marshal(lf)
	if err != nil {
		return fmt.Errorf("marshaling lock file: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(lf.path), 0755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(lf.path), err)
	}
	if err := os.WriteFile(lf.path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", lf.path, err)
	}
	return nil
}

// Path returns the lock file path.
func (lf *LockFile) Path() string {
	return lf.path
}

// ---------------------------------------------------------------------------
// Row keys
// ---------------------------------------------------------------------------

// Hash computes the MD5 hex digest of a string.
func Hash(s string) string {
	return fmt.Sprintf("%x", md5.Sum([]byte(s)))
}

// RowKey returns the lock key of a product: its translation group, or
// "id:<ID>" when the product has none.
func RowKey(group, id string) string {
	if group != "" {
		return group
	}
	return "id:" + id
}

// RowContent builds the hashed content of a flattened row. Column names
// are included so a renamed column triggers re-translation.
func RowContent(columns []string, row map[string]string) string {
	var b strings.Builder
	for i, c := range columns {
		if i > 0 {
			b.WriteByte('\x00')
		}
		b.WriteString(c)
		b.WriteByte('\x00')
		b.WriteString(row[c])
	}
	return b.String()
}

// ---------------------------------------------------------------------------
// Checksum operations
// ---------------------------------------------------------------------------

// IsChanged reports whether content is new or changed for lang and key.
func (lf *LockFile) IsChanged(lang, key, content string) bool {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	keys, ok := lf.Checksums[lang]
	if !ok {
		return true
	}
	oldHash, ok := keys[key]
	if !ok {
		return true
	}
	return oldHash != Hash(content)
}

// Update records the checksum of content after a successful translation.
func (lf *LockFile) Update(lang, key, content string) {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	if lf.Checksums[lang] == nil {
		lf.Checksums[lang] = make(map[string]string)
	}
	lf.Checksums[lang][key] = Hash(content)
}

// UpdateBatch records checksums for multiple keys at once.
func (lf *LockFile) UpdateBatch(lang string, entries map[string]string) {
	for key, content := range entries {
		lf.Update(lang, key, content)
	}
}

// FilterChanged returns the entries (key -> content) whose content changed
// since the last translation into lang.
func (lf *LockFile) FilterChanged(lang string, entries map[string]string) map[string]string {
	changed := make(map[string]string)
	for key, content := range entries {
		if lf.IsChanged(lang, key, content) {
			changed[key] = content
		}
	}
	return changed
}

// Clean removes entries of lang that are not in currentKeys.
func (lf *LockFile) Clean(lang string, currentKeys []string) {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	existing := lf.Checksums[lang]
	if existing == nil {
		return
	}
	valid := make(map[string]bool, len(currentKeys))
	for _, k := range currentKeys {
		valid[k] = true
	}
	for k := range existing {
		if !valid[k] {
			delete(existing, k)
		}
	}
}

// ---------------------------------------------------------------------------
// Stats
// ---------------------------------------------------------------------------

// Stats returns the number of languages and total keys in the lock file.
func (lf *LockFile) Stats() (languages, keys int) {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	languages = len(lf.Checksums)
	for _, m := range lf.Checksums {
		keys += len(m)
	}
	return
}

// Languages returns the sorted language codes in the lock file.
func (lf *LockFile) Languages() []string {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	out := make([]string, 0, len(lf.Checksums))
	for l := range lf.Checksums {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// Summary returns a human-readable summary string.
func (lf *LockFile) Summary() string {
	languages, keys := lf.Stats()
	if languages == 0 {
		return "empty"
	}

	var parts []string
	for _, l := range lf.Languages() {
		lf.mu.Lock()
		n := len(lf.Checksums[l])
		lf.mu.Unlock()
		parts = append(parts, fmt.Sprintf("%s: %d products", l, n))
	}
	return fmt.Sprintf("%d languages, %d products (%s)", languages, keys, strings.Join(parts, ", "))
}
