package toon

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	rows := []Row{
		{"ID": "12", "Name": `Blue "Hoodie"`, "Attribute 1": "Color: Blue"},
		{"ID": "13", "Name": ""},
	}
	got, err := Encode(rows, []string{"ID", "Name", "Attribute 1"}, 0)
	require.NoError(t, err)

	want := strings.Join([]string{
		`[2]{ID,Name,Attribute 1}:`,
		`  "12","Blue \"Hoodie\"","Color: Blue"`,
		`  "13","NULL_Name","NULL_Attribute 1"`,
	}, "\n")
	assert.Equal(t, want, got)
}

func TestEncodeBatchAndEmpty(t *testing.T) {
	rows := []Row{{"ID": "1"}, {"ID": "2"}, {"ID": "3"}}

	got, err := Encode(rows, []string{"ID"}, 2)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(got, "[2]{ID}:"))
	assert.NotContains(t, got, `"3"`)

	got, err = Encode(nil, []string{"ID"}, 2)
	require.NoError(t, err)
	assert.Equal(t, "", got)
}

func TestEncodeRejectsBadColumns(t *testing.T) {
	for _, c := range []string{"a,b", "x{", "y}", `q"`, "multi\nline", ""} {
		_, err := Encode([]Row{{c: "v"}}, []string{c}, 0)
		assert.ErrorIs(t, err, ErrInvalidColumn, "column %q", c)
	}
}

func TestRoundTripPreservesColumnsAndEscapes(t *testing.T) {
	cols := []string{"ID", "Name", "Description", "Tags", "Meta: rank_math_description"}
	rows := []Row{
		{"ID": "1", "Name": `He said "hi"`, "Description": "line one\nline two\ttab", "Tags": `back\slash`},
		{"ID": "2"},
		{"ID": "3", "Name": `\"already escaped\"`},
	}
	encoded, err := Encode(rows, cols, 0)
	require.NoError(t, err)

	decoded, gotCols, err := Decode(Prompt(encoded))
	require.NoError(t, err)
	assert.Equal(t, cols, gotCols)
	require.Len(t, decoded, len(rows))
	for i, row := range rows {
		for _, c := range cols {
			assert.Equal(t, row[c], decoded[i][c], "row %d column %s", i, c)
		}
		assert.Len(t, decoded[i], len(cols))
	}
}

func TestPlaceholdersAreUniquePerColumn(t *testing.T) {
	cols := []string{"ID", "Name", "Description", "Tags"}
	encoded, err := Encode([]Row{{}}, cols, 0)
	require.NoError(t, err)
	seen := map[string]bool{}
	for _, c := range cols {
		p := Placeholder(c)
		assert.False(t, seen[p])
		seen[p] = true
		assert.Contains(t, encoded, `"`+p+`"`)
	}
}

func TestDecodeEmptiesOnlyOwnPlaceholder(t *testing.T) {
	cols := []string{"ID", "Name", "Short description", "Attribute 1", "Meta: rank_math_title"}
	encoded, err := Encode([]Row{{"ID": "1"}}, cols, 0)
	require.NoError(t, err)
	rows, _, err := Decode(Prompt(encoded))
	require.NoError(t, err)
	assert.Equal(t, Row{
		"ID": "1", "Name": "", "Short description": "",
		"Attribute 1 value(s)": "", "Meta: rank_math_title": "",
	}, rows[0])

	reply := "[1]{ID,Name,Tags}:\n  \"NULL_POINTER_T-shirt\",\"NULL_Tags\",\"NULL_Name\""
	rows, _, err = Decode(reply)
	require.NoError(t, err)
	assert.Equal(t, Row{"ID": "NULL_POINTER_T-shirt", "Name": "NULL_Tags", "Tags": "NULL_Name"}, rows[0])
}

func TestDecodeBatch(t *testing.T) {
	cols := []string{"ID", "Name", "Attribute 1"}
	sent := []Row{{"ID": "1", "Name": "a", "Attribute 1": "Color: Blue"}, {"ID": "2", "Name": "b"}}
	encoded, err := Encode(sent, cols, 0)
	require.NoError(t, err)

	rows, got, err := DecodeBatch(encoded, sent, cols)
	require.NoError(t, err)
	assert.Equal(t, []string{"ID", "Name", "Attribute 1 value(s)"}, got)
	assert.Len(t, rows, 2)

	tests := map[string]string{
		"dropped columns": "[2]{ID,Name}:\n  \"1\",\"a\"\n  \"2\",\"b\"",
		"extra column":    "[2]{ID,Name,Attribute 1,Price}:\n  \"1\",\"a\",\"Blue\",\"9\"\n  \"2\",\"b\",\"x\",\"9\"",
		"renamed IDs":     "[2]{ID,Name,Attribute 1}:\n  \"1\",\"a\",\"Blue\"\n  \"3\",\"b\",\"x\"",
		"duplicated ID":   "[2]{ID,Name,Attribute 1}:\n  \"1\",\"a\",\"Blue\"\n  \"1\",\"b\",\"x\"",
		"short reply":     "[1]{ID,Name,Attribute 1}:\n  \"1\",\"a\",\"Blue\"",
	}
	for name, reply := range tests {
		t.Run(name, func(t *testing.T) {
			_, _, err := DecodeBatch(reply, sent, cols)
			assert.ErrorIs(t, err, ErrDecodeFailed)
		})
	}
}

func TestDecodeRewritesAttributes(t *testing.T) {
	reply := "Here you go:\n```toon\n[2]{ID,Attribute 1,Attribute 2}:\n  \"5\",\"Farbe: Blau\",\"NULL_Attribute 2\"\n  \"6\",\"Rot\",\"Größe: M: L\"\n```\nDone."
	rows, cols, err := Decode(reply)
	require.NoError(t, err)
	assert.Equal(t, []string{"ID", "Attribute 1 value(s)", "Attribute 2 value(s)"}, cols)
	assert.Equal(t, Row{"ID": "5", "Attribute 1 value(s)": "Blau", "Attribute 2 value(s)": ""}, rows[0])
	assert.Equal(t, Row{"ID": "6", "Attribute 1 value(s)": "Rot", "Attribute 2 value(s)": "M: L"}, rows[1])
}

func TestDecodeWithoutFenceAndUnquoted(t *testing.T) {
	rows, cols, err := Decode("  [1]{ID,Name}:\n  7 ,  Plain name  \n")
	require.NoError(t, err)
	assert.Equal(t, []string{"ID", "Name"}, cols)
	assert.Equal(t, Row{"ID": "7", "Name": "Plain name"}, rows[0])
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		line  int
	}{
		{"empty", "", 0},
		{"bad header", "{ID}:\n  \"1\"", 1},
		{"count mismatch", "[2]{ID}:\n  \"1\"", 1},
		{"field count", "[1]{ID,Name}:\n  \"1\"", 2},
		{"unterminated", "[1]{ID}:\n  \"1", 2},
		{"bad escape", "[1]{ID}:\n  \"\\x\"", 2},
		{"stray quote", "[1]{ID,Name}:\n  1,a\"b", 2},
		{"garbage after quote", "[1]{ID}:\n  \"1\"x", 2},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := Decode(tc.reply)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrDecodeFailed))
			var derr *DecodeError
			require.True(t, errors.As(err, &derr))
			assert.Equal(t, tc.line, derr.Line)
		})
	}
}

func TestExtractCode(t *testing.T) {
	assert.Equal(t, `[{"a":1}]`, ExtractCode("```json\n[{\"a\":1}]\n```"))
	assert.Equal(t, "plain", ExtractCode("  plain \n"))
	assert.Equal(t, "first", ExtractCode("```\nfirst\n``` and ```\nsecond\n```"))
}
