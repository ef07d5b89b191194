// Package settings stores wootrans user settings.
//
// Settings live in the XDG config directory:
//
//	$XDG_CONFIG_HOME/wootrans/settings.json  (default: ~/.config/wootrans/)
//
// Translation prompts live in the XDG data directory:
//
//	$XDG_DATA_HOME/wootrans/prompts.json  (default: ~/.local/share/wootrans/)
//
// settings.json holds the API key and is written with 0600 permissions.
//
// Lookup order for every value:
//  1. command line flag (highest priority)
//  2. WOOTRANS_* environment variables
//  3. .wootrans.yaml in the working directory
//  4. This settings file
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	dirName  = "wootrans"
	fileName = "settings.json"
)

// Default values.
const (
	DefaultModel       = "gemini-2.5-pro"
	DefaultBatchSize   = 5
	DefaultConcurrency = 1
)

// ErrUnknownKey is returned by Set for keys it does not know.
var ErrUnknownKey = errors.New("unknown settings key")

// Keys accepted by Set, in display order.
var Keys = []string{"model", "api-key", "batch-size", "output-dir", "concurrency"}

// Settings are the persisted user settings.
type Settings struct {
	ModelID     string `json:"modelId"`
	APIKey      string `json:"apiKey"`
	BatchSize   int    `json:"batchSize"`
	OutputDir   string `json:"outputDir"`
	Concurrency int    `json:"concurrency"`
}

// Defaults returns the settings used when no file exists.
func Defaults() Settings {
	out := ""
	if home, err := os.UserHomeDir(); err == nil {
		out = filepath.Join(home, "Downloads")
	}
	return Settings{
		ModelID:     DefaultModel,
		BatchSize:   DefaultBatchSize,
		OutputDir:   out,
		Concurrency: DefaultConcurrency,
	}
}

// ---------------------------------------------------------------------------
// File paths
// ---------------------------------------------------------------------------

func xdgDir(env string, fallback ...string) (string, error) {
	if xdg := os.Getenv(env); xdg != "" {
		return filepath.Join(xdg, dirName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	parts := append([]string{home}, fallback...)
	return filepath.Join(append(parts, dirName)...), nil
}

// ConfigDir returns the wootrans config directory.
func ConfigDir() (string, error) {
	return xdgDir("XDG_CONFIG_HOME", ".config")
}

// DataDir returns the wootrans data directory.
func DataDir() (string, error) {
	return xdgDir("XDG_DATA_HOME", ".local", "share")
}

// Path returns the settings.json path.
func Path() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, fileName), nil
}

// PromptsFilePath returns the path to the prompts.json file.
func PromptsFilePath() (string, error) {
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "prompts.json"), nil
}

// ---------------------------------------------------------------------------
// Load / Save
// ---------------------------------------------------------------------------

// Load reads the settings file. Missing fields keep their defaults; a
// missing file yields the defaults.
func Load() (Settings, error) {
	s := Defaults()
	path, err := Path()
	if err != nil {
		return s, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return s, fmt.Errorf("reading settings: %w", err)
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return Defaults(), fmt.Errorf("parsing %s: %w", path, err)
	}
	return s, nil
}

// Save writes s to disk with 0600 permissions.
func Save(s Settings) error {
	path, err := Path()
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling settings: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing settings file: %w", err)
	}
	// WriteFile keeps the mode of an existing file.
	return os.Chmod(path, 0600)
}

// Set parses value into the field named by key.
func (s *Settings) Set(key, value string) error {
	value = strings.TrimSpace(value)
	switch key {
	case "model":
		if value == "" {
			return fmt.Errorf("model must not be empty")
		}
		s.ModelID = value
	case "api-key":
		s.APIKey = value
	case "batch-size":
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 {
			return fmt.Errorf("batch-size must be a positive integer, got %q", value)
		}
		s.BatchSize = n
	case "output-dir":
		s.OutputDir = value
	case "concurrency":
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 {
			return fmt.Errorf("concurrency must be a positive integer, got %q", value)
		}
		s.Concurrency = n
	default:
		return fmt.Errorf("%w: %q (valid: %s)", ErrUnknownKey, key, strings.Join(Keys, ", "))
	}
	return nil
}

// Get returns the display value of key. The API key is masked.
func (s Settings) Get(key string) (string, error) {
	switch key {
	case "model":
		return s.ModelID, nil
	case "api-key":
		if s.APIKey == "" {
			return "", nil
		}
		return MaskKey(s.APIKey), nil
	case "batch-size":
		return strconv.Itoa(s.BatchSize), nil
	case "output-dir":
		return s.OutputDir, nil
	case "concurrency":
		return strconv.Itoa(s.Concurrency), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKey, key)
}

// MaskKey returns a masked version of a key for display.
func MaskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

// Environment variables consulted before the settings file.
const (
	EnvAPIKey       = "WOOTRANS_API_KEY"
	EnvGeminiAPIKey = "GEMINI_API_KEY"
	EnvModel        = "WOOTRANS_MODEL"
)

// ResolveAPIKey returns the first non-empty of flag, $WOOTRANS_API_KEY,
// $GEMINI_API_KEY and stored.
func ResolveAPIKey(flag, stored string) string {
	return firstNonEmpty(flag, os.Getenv(EnvAPIKey), os.Getenv(EnvGeminiAPIKey), stored)
}

// ResolveModel returns the first non-empty of flag, $WOOTRANS_MODEL,
// project and stored.
func ResolveModel(flag, project, stored string) string {
	return firstNonEmpty(flag, os.Getenv(EnvModel), project, stored)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
