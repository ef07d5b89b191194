// Package toon packs product rows into the compact tabular text format sent
// to the model and strictly unpacks the model's reply.
//
// An encoded batch looks like:
//
//	[2]{ID,Name,Attribute 1}:
//	  "12","Blue \"Hoodie\"","Color: Blue"
//	  "13","NULL_Name","NULL_Attribute 1"
//
// Empty cells are replaced by a placeholder unique to their column so the
// model can neither merge nor shift them.
package toon

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/minios-linux/wootrans/columns"
)

var (
	// ErrDecodeFailed is wrapped by every *DecodeError.
	ErrDecodeFailed = errors.New("decode failed")
	// ErrInvalidColumn is returned when a column name cannot be framed.
	ErrInvalidColumn = errors.New("invalid column name")
)

// Row is one flattened row keyed by column.
type Row = map[string]string

// PlaceholderPrefix starts every empty-cell marker.
const PlaceholderPrefix = "NULL_"

// Placeholder returns the empty-cell marker for column.
func Placeholder(column string) string {
	return PlaceholderPrefix + column
}

// DecodeError reports where a reply violated the format.
type DecodeError struct {
	Line   int
	Reason string
}

func (e *DecodeError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%v: line %d: %s", ErrDecodeFailed, e.Line, e.Reason)
	}
	return fmt.Sprintf("%v: %s", ErrDecodeFailed, e.Reason)
}

func (e *DecodeError) Unwrap() error {
	return ErrDecodeFailed
}

func decodeErr(line int, format string, args ...any) error {
	return &DecodeError{Line: line, Reason: fmt.Sprintf(format, args...)}
}

// ---------------------------------------------------------------------------
// Encoding
// ---------------------------------------------------------------------------

var escaper = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	"\n", `\n`,
	"\r", `\r`,
	"\t", `\t`,
)

// Encode frames rows[0:batchSize] under columns. batchSize <= 0 encodes
// every row; an empty row set encodes to "".
func Encode(rows []Row, cols []string, batchSize int) (string, error) {
	for _, c := range cols {
		if c == "" || strings.ContainsAny(c, ",{}\"\n\r") {
			return "", fmt.Errorf("%w: %q", ErrInvalidColumn, c)
		}
	}
	if len(rows) == 0 {
		return "", nil
	}
	if batchSize > 0 && batchSize < len(rows) {
		rows = rows[:batchSize]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%d]{%s}:", len(rows), strings.Join(cols, ","))
	for _, row := range rows {
		b.WriteString("\n  ")
		for i, c := range cols {
			if i > 0 {
				b.WriteByte(',')
			}
			v := row[c]
			if v == "" {
				v = Placeholder(c)
			}
			b.WriteByte('"')
			b.WriteString(escaper.Replace(v))
			b.WriteByte('"')
		}
	}
	return b.String(), nil
}

// Prompt wraps encoded text in a fenced block for the model.
func Prompt(encoded string) string {
	return "```toon\n" + encoded + "\n```"
}

// ---------------------------------------------------------------------------
// Decoding
// ---------------------------------------------------------------------------

var (
	codeFence     = regexp.MustCompile("```(?:\\w+)?\\s*([\\s\\S]*?)\\s*```")
	headerPattern = regexp.MustCompile(`^\[(\d+)\]\{(.*)\}:$`)
	attrColumn    = regexp.MustCompile(`^Attribute (\d+)$`)
)

// ExtractCode returns the body of the first fenced code block in text, or
// the trimmed text when there is none.
func ExtractCode(text string) string {
	if m := codeFence.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return strings.TrimSpace(text)
}

// Decode strictly parses a model reply back into rows and their column
// order. A value equal to its own column's placeholder becomes empty, and
// flattened "Attribute N" columns are renamed to "Attribute N value(s)" with the label removed.
func Decode(text string) ([]Row, []string, error) {
	body := ExtractCode(text)
	lines := strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n")

	first := 0
	for first < len(lines) && strings.TrimSpace(lines[first]) == "" {
		first++
	}
	if first == len(lines) {
		return nil, nil, decodeErr(0, "empty reply")
	}

	m := headerPattern.FindStringSubmatch(strings.TrimSpace(lines[first]))
	if m == nil {
		return nil, nil, decodeErr(first+1, "malformed header %q", strings.TrimSpace(lines[first]))
	}
	declared, err := strconv.Atoi(m[1])
	if err != nil {
		return nil, nil, decodeErr(first+1, "invalid row count %q", m[1])
	}
	var cols []string
	for _, c := range strings.Split(m[2], ",") {
		c = strings.TrimSpace(c)
		if c == "" {
			return nil, nil, decodeErr(first+1, "empty column name")
		}
		cols = append(cols, c)
	}

	var rows []Row
	for i := first + 1; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		fields, err := parseFields(line, i+1)
		if err != nil {
			return nil, nil, err
		}
		if len(fields) != len(cols) {
			return nil, nil, decodeErr(i+1, "expected %d fields, got %d", len(cols), len(fields))
		}
		row := make(Row, len(cols))
		for j, c := range cols {
			if fields[j] == Placeholder(c) {
				fields[j] = ""
			}
			row[c] = fields[j]
		}
		rows = append(rows, row)
	}
	if len(rows) != declared {
		return nil, nil, decodeErr(first+1, "header declares %d rows, got %d", declared, len(rows))
	}

	return rewriteAttributes(rows, cols)
}

// parseFields splits one row line into unescaped values.
func parseFields(line string, lineNo int) ([]string, error) {
	var fields []string
	i := 0
	for {
		for i < len(line) && line[i] == ' ' {
			i++
		}
		if i < len(line) && line[i] == '"' {
			v, next, err := parseQuoted(line, i+1, lineNo)
			if err != nil {
				return nil, err
			}
			fields = append(fields, v)
			i = next
			for i < len(line) && line[i] == ' ' {
				i++
			}
			if i == len(line) {
				return fields, nil
			}
			if line[i] != ',' {
				return nil, decodeErr(lineNo, "unexpected %q after quoted field", line[i])
			}
			i++
			continue
		}

		end := strings.IndexByte(line[i:], ',')
		raw := line[i:]
		if end >= 0 {
			raw = line[i : i+end]
		}
		if strings.ContainsRune(raw, '"') {
			return nil, decodeErr(lineNo, "unbalanced quote in %q", raw)
		}
		fields = append(fields, strings.TrimSpace(raw))
		if end < 0 {
			return fields, nil
		}
		i += end + 1
	}
}

// parseQuoted reads a quoted value starting after its opening quote and
// returns the value and the index after the closing quote.
func parseQuoted(line string, i, lineNo int) (string, int, error) {
	var b strings.Builder
	for i < len(line) {
		c := line[i]
		switch c {
		case '"':
			return b.String(), i + 1, nil
		case '\\':
			if i+1 >= len(line) {
				return "", 0, decodeErr(lineNo, "dangling escape")
			}
			switch line[i+1] {
			case '\\':
				b.WriteByte('\\')
			case '"':
				b.WriteByte('"')
			case 'n':
				b.WriteByte('\n')
			case 'r':
				b.WriteByte('\r')
			case 't':
				b.WriteByte('\t')
			default:
				return "", 0, decodeErr(lineNo, "invalid escape \\%c", line[i+1])
			}
			i += 2
		default:
			b.WriteByte(c)
			i++
		}
	}
	return "", 0, decodeErr(lineNo, "unterminated quoted field")
}

// DecodedColumns returns the column names Decode produces for cols.
func DecodedColumns(cols []string) []string {
	renamed := make([]string, len(cols))
	for i, c := range cols {
		if m := attrColumn.FindStringSubmatch(c); m != nil {
			renamed[i] = columns.AttributeValueColumn(m[1])
		} else {
			renamed[i] = c
		}
	}
	return renamed
}

func rewriteAttributes(rows []Row, cols []string) ([]Row, []string, error) {
	renamed := DecodedColumns(cols)
	for _, row := range rows {
		for i, c := range cols {
			if renamed[i] == c {
				continue
			}
			v := row[c]
			delete(row, c)
			if _, after, ok := strings.Cut(v, ": "); ok {
				v = after
			}
			row[renamed[i]] = v
		}
	}
	return rows, renamed, nil
}

// DecodeBatch decodes the reply to the encoded batch sent under cols. The
// reply must carry exactly the sent columns and the sent row IDs.
func DecodeBatch(text string, sent []Row, cols []string) ([]Row, []string, error) {
	rows, got, err := Decode(text)
	if err != nil {
		return nil, nil, err
	}
	if len(rows) != len(sent) {
		return nil, nil, decodeErr(0, "sent %d rows, received %d", len(sent), len(rows))
	}

	want := DecodedColumns(cols)
	if missing, extra := diff(want, got); len(missing) > 0 || len(extra) > 0 {
		return nil, nil, decodeErr(0, "column mismatch (missing %q, unexpected %q)", missing, extra)
	}

	if hasColumn(cols, "ID") {
		sentIDs := make([]string, len(sent))
		for i, r := range sent {
			sentIDs[i] = r["ID"]
		}
		gotIDs := make([]string, len(rows))
		for i, r := range rows {
			gotIDs[i] = r["ID"]
		}
		if missing, extra := diff(sentIDs, gotIDs); len(missing) > 0 || len(extra) > 0 {
			return nil, nil, decodeErr(0, "row ID mismatch (missing %q, unexpected %q)", missing, extra)
		}
	}
	return rows, got, nil
}

// diff compares two multisets of strings.
func diff(want, got []string) (missing, extra []string) {
	counts := make(map[string]int, len(want))
	for _, w := range want {
		counts[w]++
	}
	for _, g := range got {
		if counts[g] > 0 {
			counts[g]--
			continue
		}
		extra = append(extra, g)
	}
	for _, w := range want {
		if counts[w] > 0 {
			counts[w]--
			missing = append(missing, w)
		}
	}
	return missing, extra
}

func hasColumn(cols []string, name string) bool {
	for _, c := range cols {
		if c == name {
			return true
		}
	}
	return false
}
