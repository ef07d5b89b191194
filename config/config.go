// Package config reads the .wootrans.yaml project file.
//
// The file is optional. When present in the working directory it supplies
// per-project defaults that sit between command line flags and the user
// settings: target languages, forced languages, the columns to translate,
// and output options.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/minios-linux/wootrans/langmeta"
)

// ---------------------------------------------------------------------------
// YAML schema
// ---------------------------------------------------------------------------

// File is the top-level .wootrans.yaml structure.
type File struct {
	// Languages are the target languages (default: every language the
	// source rows are not written in).
	Languages []string `yaml:"languages,omitempty"`
	// Overrides are languages translated even when a translation exists.
	Overrides []string `yaml:"overrides,omitempty"`
	// FixedColumns replaces the always-translated columns.
	FixedColumns []string `yaml:"fixed_columns,omitempty"`
	// MetaColumns are the "Meta: " columns to translate.
	MetaColumns []string `yaml:"meta_columns,omitempty"`
	// Model is the Gemini model for row translation.
	Model string `yaml:"model,omitempty"`
	// BatchSize is the number of rows per request (0 = settings value).
	BatchSize int `yaml:"batch_size,omitempty"`
	// OutputDir is where translated files are written, relative to the file.
	OutputDir string `yaml:"output_dir,omitempty"`
	// OutputFormat is "csv" or "xlsx" (default: same as the input).
	OutputFormat string `yaml:"output_format,omitempty"`
	// Prompt overrides the row translation system prompt.
	Prompt string `yaml:"prompt,omitempty"`
	// Concurrency is the number of languages translated at once.
	Concurrency int `yaml:"concurrency,omitempty"`

	languages []langmeta.Code
	overrides []langmeta.Code
}

// Output formats.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// FileName is the project file name.
const FileName = ".wootrans.yaml"

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load loads and validates .wootrans.yaml from dir.
// Returns nil if no .wootrans.yaml exists.
func Load(dir string) (*File, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := f.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	if f.OutputDir != "" && !filepath.IsAbs(f.OutputDir) {
		f.OutputDir = filepath.Join(dir, f.OutputDir)
	}
	return &f, nil
}

func (f *File) validate() error {
	var err error
	if f.languages, err = parseCodes(f.Languages); err != nil {
		return fmt.Errorf("languages: %w", err)
	}
	if f.overrides, err = parseCodes(f.Overrides); err != nil {
		return fmt.Errorf("overrides: %w", err)
	}

	f.OutputFormat = strings.ToLower(strings.TrimSpace(f.OutputFormat))
	switch f.OutputFormat {
	case "", FormatCSV, FormatXLSX:
	default:
		return fmt.Errorf("output_format must be %q or %q, got %q", FormatCSV, FormatXLSX, f.OutputFormat)
	}

	if f.BatchSize < 0 {
		return fmt.Errorf("batch_size must not be negative, got %d", f.BatchSize)
	}
	if f.Concurrency < 0 {
		return fmt.Errorf("concurrency must not be negative, got %d", f.Concurrency)
	}
	for _, c := range f.MetaColumns {
		if !strings.HasPrefix(c, "Meta: ") {
			return fmt.Errorf("meta_columns: %q does not start with \"Meta: \"", c)
		}
	}
	return nil
}

func parseCodes(list []string) ([]langmeta.Code, error) {
	if len(list) == 0 {
		return nil, nil
	}
	out := make([]langmeta.Code, 0, len(list))
	for _, s := range list {
		c, err := langmeta.Parse(s)
		if err != nil {
			return nil, err
		}
		if !langmeta.Contains(out, c) {
			out = append(out, c)
		}
	}
	langmeta.Sort(out)
	return out, nil
}

// TargetLanguages returns the parsed target languages in canonical order,
// or nil when none are configured.
func (f *File) TargetLanguages() []langmeta.Code {
	if f == nil {
		return nil
	}
	return f.languages
}

// OverrideLanguages returns the parsed override languages.
func (f *File) OverrideLanguages() []langmeta.Code {
	if f == nil {
		return nil
	}
	return f.overrides
}
