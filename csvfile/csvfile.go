// Package csvfile reads and writes product export tables in CSV and XLSX form.
//
// A table is a header plus keyed rows. Rows shorter than the header read
// missing cells as empty strings; extra cells are dropped.
package csvfile

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/minios-linux/wootrans/langmeta"
)

var (
	// ErrFileNotFound is returned when the input file cannot be read.
	ErrFileNotFound = errors.New("file not found")
	// ErrEmptyInput is returned for files without a header or without data rows.
	ErrEmptyInput = errors.New("empty input")
	// ErrMalformedTable is returned when the table cannot be parsed.
	ErrMalformedTable = errors.New("malformed table")
)

// Code classifies a ParseError.
type Code string

const (
	CodeFileNotFound   Code = "FILE_NOT_FOUND"
	CodeEmptyInput     Code = "EMPTY_INPUT"
	CodeMalformedTable Code = "MALFORMED_TABLE"
)

// ParseError describes why a table could not be loaded.
type ParseError struct {
	Code    Code
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the sentinel matching Code, and the cause if any.
func (e *ParseError) Unwrap() []error {
	var sentinel error
	switch e.Code {
	case CodeFileNotFound:
		sentinel = ErrFileNotFound
	case CodeEmptyInput:
		sentinel = ErrEmptyInput
	default:
		sentinel = ErrMalformedTable
	}
	if e.Err != nil {
		return []error{sentinel, e.Err}
	}
	return []error{sentinel}
}

func parseErr(code Code, msg string, err error) *ParseError {
	return &ParseError{Code: code, Message: msg, Err: err}
}

// Row is one table row keyed by column.
type Row = map[string]string

// Table is a parsed export.
type Table struct {
	Header []string
	Rows   []Row
}

// Records returns the rows as positional records in header order.
func (t *Table) Records() [][]string {
	out := make([][]string, len(t.Rows))
	for i, r := range t.Rows {
		rec := make([]string, len(t.Header))
		for j, h := range t.Header {
			rec[j] = r[h]
		}
		out[i] = rec
	}
	return out
}

// IsXLSX reports whether path names a spreadsheet rather than a CSV file.
func IsXLSX(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".xlsx")
}

// ParseFile loads a CSV or XLSX table, chosen by extension.
func ParseFile(path string) (*Table, error) {
	if IsXLSX(path) {
		return parseXLSX(path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, parseErr(CodeFileNotFound, fmt.Sprintf("cannot read %s", path), err)
	}
	return Parse(bytes.NewReader(data))
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Parse reads a CSV table.
func Parse(r io.Reader) (*Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, parseErr(CodeMalformedTable, "cannot read CSV", err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, parseErr(CodeEmptyInput, "CSV file is empty", nil)
	}

	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return nil, parseErr(CodeMalformedTable, "cannot parse CSV", err)
	}
	return build(records)
}

func parseXLSX(path string) (*Table, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, parseErr(CodeFileNotFound, fmt.Sprintf("cannot read %s", path), err)
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, parseErr(CodeMalformedTable, "cannot open spreadsheet", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, parseErr(CodeEmptyInput, "spreadsheet has no sheets", nil)
	}
	records, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, parseErr(CodeMalformedTable, fmt.Sprintf("cannot read sheet %q", sheets[0]), err)
	}
	if len(records) == 0 {
		return nil, parseErr(CodeEmptyInput, "CSV file is empty", nil)
	}
	return build(records)
}

func build(records [][]string) (*Table, error) {
	if len(records) == 0 {
		return nil, parseErr(CodeEmptyInput, "CSV file is empty", nil)
	}

	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = strings.TrimSpace(h)
	}
	if blank(header) {
		return nil, parseErr(CodeMalformedTable, "No headers found", nil)
	}

	var data [][]string
	for _, rec := range records[1:] {
		if !blank(rec) {
			data = append(data, rec)
		}
	}
	if len(data) == 0 {
		return nil, parseErr(CodeEmptyInput, "No data rows found", nil)
	}

	t := &Table{Header: header, Rows: make([]Row, 0, len(data))}
	for _, rec := range data {
		row := make(Row, len(header))
		for i, h := range header {
			if i < len(rec) {
				row[h] = rec[i]
			} else {
				row[h] = ""
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

func blank(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// WriteFile writes header and rows to path, as XLSX when the extension says
// so and CSV otherwise. The file is replaced atomically.
func WriteFile(path string, header []string, rows []Row) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".wootrans-*"+filepath.Ext(path))
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if IsXLSX(path) {
		err = writeXLSX(tmp, header, rows)
	} else {
		err = writeCSV(tmp, header, rows)
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return fmt.Errorf("setting permissions: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

func writeCSV(w io.Writer, header []string, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	rec := make([]string, len(header))
	for _, r := range rows {
		for i, h := range header {
			rec[i] = r[h]
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeXLSX(w io.Writer, header []string, rows []Row) error {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	write := func(n int, rec []string) error {
		cell, err := excelize.CoordinatesToCellName(1, n)
		if err != nil {
			return err
		}
		return f.SetSheetRow(sheet, cell, &rec)
	}
	if err := write(1, header); err != nil {
		return err
	}
	for i, r := range rows {
		rec := make([]string, len(header))
		for j, h := range header {
			rec[j] = r[h]
		}
		if err := write(i+2, rec); err != nil {
			return err
		}
	}
	return f.Write(w)
}

// timestampLayout mirrors an ISO timestamp with ':' and '.' replaced by '-'.
const timestampLayout = "2006-01-02T15-04-05"

// OutputPath returns dir/{inputBase}-{lang}-{timestamp}.{ext}. An empty ext
// keeps the input's extension.
func OutputPath(dir, input string, lang langmeta.Code, now time.Time, ext string) string {
	base := filepath.Base(input)
	inExt := filepath.Ext(base)
	base = strings.TrimSuffix(base, inExt)
	if ext == "" {
		ext = strings.TrimPrefix(inExt, ".")
	}
	if ext == "" {
		ext = "csv"
	}
	name := fmt.Sprintf("%s-%s-%s.%s", base, lang, now.UTC().Format(timestampLayout), strings.TrimPrefix(ext, "."))
	return filepath.Join(dir, name)
}
