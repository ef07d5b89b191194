// Package columns maps the repeating attribute and plugin meta columns of a
// product export to positions in the header, and extracts their values
// from positional records.
package columns

import (
	"fmt"
	"regexp"
	"strings"
)

// MetaPrefix marks plugin meta columns ("Meta: rank_math_description").
const MetaPrefix = "Meta: "

var (
	attributeValuePattern = regexp.MustCompile(`^Attribute (\d+) value\(s\)$`)
	attributeNamePattern  = regexp.MustCompile(`^Attribute (\d+) name$`)
	metaPattern           = regexp.MustCompile(`^Meta: (.+)$`)
)

// AttributeMapping locates one numbered attribute in the header.
type AttributeMapping struct {
	Number     string
	ValueIndex int
	// NameIndex is -1 when the header has no "Attribute N name" column.
	NameIndex int
}

// Attribute is one extracted attribute value with its label.
type Attribute struct {
	Number string
	// Key is the attribute label, "Attribute N" when the name cell is absent or empty.
	Key   string
	Value string
}

// MetaMapping locates one meta column in the header.
type MetaMapping struct {
	Key        string
	ValueIndex int
}

// AttributeColumn returns the flattened column name used in batches.
func AttributeColumn(n string) string {
	return "Attribute " + n
}

// AttributeValueColumn returns the export column holding the values of attribute n.
func AttributeValueColumn(n string) string {
	return fmt.Sprintf("Attribute %s value(s)", n)
}

// AttributeNameColumn returns the export column holding the label of attribute n.
func AttributeNameColumn(n string) string {
	return fmt.Sprintf("Attribute %s name", n)
}

// MapAttributeColumns returns one mapping per distinct attribute number in
// header order. Duplicate numbers keep the first occurrence.
func MapAttributeColumns(headers []string) []AttributeMapping {
	index := make(map[string]int, len(headers))
	for i, h := range headers {
		if _, ok := index[h]; !ok {
			index[h] = i
		}
	}

	var out []AttributeMapping
	seen := make(map[string]bool)
	for i, h := range headers {
		m := attributeValuePattern.FindStringSubmatch(h)
		if m == nil || seen[m[1]] {
			continue
		}
		seen[m[1]] = true
		nameIdx := -1
		if j, ok := index[AttributeNameColumn(m[1])]; ok {
			nameIdx = j
		}
		out = append(out, AttributeMapping{Number: m[1], ValueIndex: i, NameIndex: nameIdx})
	}
	return out
}

// ExtractAttributes reads every mapped attribute from record. Empty values
// are kept.
func ExtractAttributes(record []string, mappings []AttributeMapping) []Attribute {
	out := make([]Attribute, 0, len(mappings))
	for _, m := range mappings {
		key := cell(record, m.NameIndex)
		if key == "" {
			key = AttributeColumn(m.Number)
		}
		out = append(out, Attribute{
			Number: m.Number,
			Key:    key,
			Value:  cell(record, m.ValueIndex),
		})
	}
	return out
}

// MapMetaColumns returns one mapping per "Meta: " header. The key is the full header.
func MapMetaColumns(headers []string) []MetaMapping {
	var out []MetaMapping
	for i, h := range headers {
		if metaPattern.MatchString(h) {
			out = append(out, MetaMapping{Key: h, ValueIndex: i})
		}
	}
	return out
}

// ExtractMeta reads every mapped meta column from record.
func ExtractMeta(record []string, mappings []MetaMapping) map[string]string {
	out := make(map[string]string, len(mappings))
	for _, m := range mappings {
		out[m.Key] = cell(record, m.ValueIndex)
	}
	return out
}

// ExtractAttributeLabels returns the non-empty "Attribute N name" cells of row.
func ExtractAttributeLabels(row map[string]string) map[string]string {
	out := make(map[string]string)
	for k, v := range row {
		if attributeNamePattern.MatchString(k) && strings.TrimSpace(v) != "" {
			out[k] = v
		}
	}
	return out
}

// Record turns a keyed row back into a positional record for header.
func Record(header []string, row map[string]string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		out[i] = row[h]
	}
	return out
}

// IsMeta reports whether header is a plugin meta column.
func IsMeta(header string) bool {
	return strings.HasPrefix(header, MetaPrefix)
}

func cell(record []string, i int) string {
	if i < 0 || i >= len(record) {
		return ""
	}
	return record[i]
}
