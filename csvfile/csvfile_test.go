package csvfile

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minios-linux/wootrans/langmeta"
)

func TestParse(t *testing.T) {
	in := "\xEF\xBB\xBFID,Name,Description\n" +
		"1,Hoodie,\"Warm, \"\"cozy\"\"\nsecond line\"\n" +
		"\n" +
		"2,Shirt\n"
	tbl, err := Parse(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []string{"ID", "Name", "Description"}, tbl.Header)
	require.Len(t, tbl.Rows, 2)
	assert.Equal(t, "Warm, \"cozy\"\nsecond line", tbl.Rows[0]["Description"])
	assert.Equal(t, "", tbl.Rows[1]["Description"], "short record pads with empty values")
	assert.Equal(t, [][]string{{"1", "Hoodie", "Warm, \"cozy\"\nsecond line"}, {"2", "Shirt", ""}}, tbl.Records())
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		sentinel error
		message  string
	}{
		{"empty", "", ErrEmptyInput, "CSV file is empty"},
		{"whitespace", " \n\n", ErrEmptyInput, "CSV file is empty"},
		{"header only", "ID,Name\n", ErrEmptyInput, "No data rows found"},
		{"blank header", ",,\n1,2,3\n", ErrMalformedTable, "No headers found"},
		{"bad quotes", "ID,Name\n1,\"unterminated\n", ErrMalformedTable, "cannot parse CSV"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tc.in))
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.sentinel), "got %v", err)
			var perr *ParseError
			require.True(t, errors.As(err, &perr))
			assert.Contains(t, perr.Message, tc.message)
		})
	}
}

func TestParseFileMissing(t *testing.T) {
	for _, name := range []string{"missing.csv", "missing.xlsx"} {
		_, err := ParseFile(filepath.Join(t.TempDir(), name))
		assert.ErrorIs(t, err, ErrFileNotFound, name)
	}
}

func TestWriteFileRoundTrip(t *testing.T) {
	header := []string{"ID", "Name", "Meta: _wpml_import_wc_local_attribute_labels"}
	rows := []Row{
		{"ID": "", "Name": "Modra jopa", "Meta: _wpml_import_wc_local_attribute_labels": `{"color":"Barva"}`},
		{"Name": "Majica, \"nova\""},
	}

	for _, ext := range []string{"csv", "xlsx"} {
		t.Run(ext, func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, "out."+ext)
			require.NoError(t, WriteFile(path, header, rows))

			tbl, err := ParseFile(path)
			require.NoError(t, err)
			assert.Equal(t, header, tbl.Header)
			require.Len(t, tbl.Rows, 2)
			assert.Equal(t, "Modra jopa", tbl.Rows[0]["Name"])
			assert.Equal(t, `{"color":"Barva"}`, tbl.Rows[0]["Meta: _wpml_import_wc_local_attribute_labels"])
			assert.Equal(t, "Majica, \"nova\"", tbl.Rows[1]["Name"])

			entries, err := os.ReadDir(dir)
			require.NoError(t, err)
			assert.Len(t, entries, 1, "temp file must not be left behind")
		})
	}
}

func TestOutputPath(t *testing.T) {
	now := time.Date(2025, 3, 14, 9, 26, 53, 589000000, time.UTC)
	got := OutputPath("/tmp/out", "/data/products-export.csv", langmeta.Slovenian, now, "")
	assert.Equal(t, filepath.Join("/tmp/out", "products-export-sl-2025-03-14T09-26-53.csv"), got)

	got = OutputPath("out", "export.csv", langmeta.German, now, "xlsx")
	assert.Equal(t, filepath.Join("out", "export-de-2025-03-14T09-26-53.xlsx"), got)
}
