package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/minios-linux/wootrans/langmeta"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return dir
}

func TestLoadMissingFile(t *testing.T) {
	f, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if f != nil {
		t.Fatalf("Load() = %#v, want nil", f)
	}
	if f.TargetLanguages() != nil || f.OverrideLanguages() != nil {
		t.Fatal("nil file should have no languages")
	}
}

func TestLoadFullFile(t *testing.T) {
	dir := writeConfig(t, `
languages: [it, de, German, sl_SI]
overrides: [fr]
fixed_columns: [Name, Description]
meta_columns: ["Meta: rank_math_description"]
model: gemini-2.5-flash
batch_size: 8
output_dir: out
output_format: XLSX
prompt: "Translate into {{targetLang}}"
concurrency: 2
`)
	f, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	wantLangs := []langmeta.Code{langmeta.Slovenian, langmeta.German, langmeta.Italian}
	if got := f.TargetLanguages(); !reflect.DeepEqual(got, wantLangs) {
		t.Fatalf("TargetLanguages() = %v, want %v", got, wantLangs)
	}
	if got := f.OverrideLanguages(); !reflect.DeepEqual(got, []langmeta.Code{langmeta.French}) {
		t.Fatalf("OverrideLanguages() = %v", got)
	}
	if !reflect.DeepEqual(f.FixedColumns, []string{"Name", "Description"}) {
		t.Fatalf("FixedColumns = %v", f.FixedColumns)
	}
	if f.Model != "gemini-2.5-flash" || f.BatchSize != 8 || f.Concurrency != 2 {
		t.Fatalf("unexpected scalars: %#v", f)
	}
	if f.OutputFormat != FormatXLSX {
		t.Fatalf("OutputFormat = %q, want xlsx", f.OutputFormat)
	}
	if want := filepath.Join(dir, "out"); f.OutputDir != want {
		t.Fatalf("OutputDir = %q, want %q", f.OutputDir, want)
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"unknown language", "languages: [xx]\n", "languages"},
		{"unknown override", "overrides: [klingon]\n", "overrides"},
		{"bad format", "output_format: ods\n", "output_format"},
		{"negative batch", "batch_size: -1\n", "batch_size"},
		{"negative concurrency", "concurrency: -2\n", "concurrency"},
		{"meta without prefix", "meta_columns: [rank_math_description]\n", "meta_columns"},
		{"invalid yaml", "languages: [de\n", "parsing"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.content))
			if err == nil {
				t.Fatal("Load() should fail")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("error %q does not mention %q", err, tc.wantErr)
			}
		})
	}
}

func TestLoadAbsoluteOutputDirKept(t *testing.T) {
	abs := t.TempDir()
	f, err := Load(writeConfig(t, "output_dir: "+abs+"\n"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if f.OutputDir != abs {
		t.Fatalf("OutputDir = %q, want %q", f.OutputDir, abs)
	}
}
