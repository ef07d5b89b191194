// Package reconcile decides, per product and per target language, whether
// a translation already exists in the export or must be generated, and
// flattens the rows that need one into translation batches.
package reconcile

import (
	"strings"

	"github.com/minios-linux/wootrans/columns"
	"github.com/minios-linux/wootrans/langmeta"
	"github.com/minios-linux/wootrans/toon"
)

// Row is one export row keyed by column.
type Row = map[string]string

// Partitioned splits an export into source products and their existing translations.
type Partitioned struct {
	Source   []Row
	Existing []Row
}

// Partition classifies rows by their WPML language markers. Rows that are
// neither source nor existing translation are ignored.
func Partition(rows []Row) Partitioned {
	var p Partitioned
	for _, r := range rows {
		src := strings.TrimSpace(r[columns.SourceLanguageColumn])
		imp := strings.TrimSpace(r[columns.ImportLanguageColumn])
		switch {
		case imp == "":
		case src == "":
			p.Source = append(p.Source, r)
		default:
			p.Existing = append(p.Existing, r)
		}
	}
	return p
}

// Coverage records which languages a source row already has.
type Coverage struct {
	Row                   Row
	AlreadyTranslatedInto []langmeta.Code
	MissingFor            []langmeta.Code
}

// Missing reports whether the row still needs lang.
func (c Coverage) Missing(lang langmeta.Code) bool {
	return langmeta.Contains(c.MissingFor, lang)
}

// GroupKey returns the translation group of row.
func GroupKey(row Row) string {
	return strings.TrimSpace(row[columns.TranslationGroupColumn])
}

// ComputeCoverage matches every source row with the existing translations
// sharing its group. A source row without a group is missing for every
// language. languages defaults to the full supported set.
func ComputeCoverage(source, existing []Row, languages []langmeta.Code) []Coverage {
	if languages == nil {
		languages = langmeta.All()
	}

	byGroup := make(map[string][]langmeta.Code)
	for _, r := range existing {
		g := GroupKey(r)
		if g == "" {
			continue
		}
		code, err := langmeta.Parse(r[columns.ImportLanguageColumn])
		if err != nil {
			continue
		}
		if !langmeta.Contains(byGroup[g], code) {
			byGroup[g] = append(byGroup[g], code)
		}
	}

	out := make([]Coverage, 0, len(source))
	for _, r := range source {
		have := []langmeta.Code{}
		if g := GroupKey(r); g != "" {
			have = append(have, byGroup[g]...)
		}
		langmeta.Sort(have)

		missing := []langmeta.Code{}
		for _, l := range languages {
			if !langmeta.Contains(have, l) {
				missing = append(missing, l)
			}
		}
		out = append(out, Coverage{Row: r, AlreadyTranslatedInto: have, MissingFor: missing})
	}
	return out
}

// FlattenSpec describes the column layout of a translation batch.
type FlattenSpec struct {
	Header     []string
	Attributes []columns.AttributeMapping
	Fixed      []string
	Meta       []string
}

// NewFlattenSpec builds a spec for header, keeping only the fixed columns
// the header actually contains. A nil fixed list selects the default
// fixed columns.
func NewFlattenSpec(header, fixed, meta []string) FlattenSpec {
	if fixed == nil {
		fixed = columns.FixedColumns
	}
	present := make(map[string]bool, len(header))
	for _, h := range header {
		present[h] = true
	}
	var keep []string
	for _, f := range fixed {
		if present[f] && f != "ID" {
			keep = append(keep, f)
		}
	}
	return FlattenSpec{
		Header:     header,
		Attributes: columns.MapAttributeColumns(header),
		Fixed:      keep,
		Meta:       append([]string(nil), meta...),
	}
}

// Columns returns the ordered columns of a flattened row.
func (s FlattenSpec) Columns() []string {
	cols := make([]string, 0, 1+len(s.Fixed)+len(s.Attributes)+len(s.Meta))
	cols = append(cols, "ID")
	cols = append(cols, s.Fixed...)
	for _, a := range s.Attributes {
		cols = append(cols, columns.AttributeColumn(a.Number))
	}
	return append(cols, s.Meta...)
}

// attributes extracts the attribute values of row.
func (s FlattenSpec) attributes(row Row) []columns.Attribute {
	return columns.ExtractAttributes(columns.Record(s.Header, row), s.Attributes)
}

// Flatten reduces row to the translatable columns.
func (s FlattenSpec) Flatten(row Row) toon.Row {
	out := make(toon.Row, 1+len(s.Fixed)+len(s.Attributes)+len(s.Meta))
	out["ID"] = row["ID"]
	for _, f := range s.Fixed {
		out[f] = row[f]
	}
	for _, a := range s.attributes(row) {
		v := ""
		if a.Value != "" {
			v = a.Key + ": " + a.Value
		}
		out[columns.AttributeColumn(a.Number)] = v
	}
	for _, m := range s.Meta {
		out[m] = row[m]
	}
	return out
}

// selected reports whether c should be translated into lang.
func selected(c Coverage, lang langmeta.Code, overrides []langmeta.Code) bool {
	return langmeta.Contains(overrides, lang) || c.Missing(lang)
}

// SelectForLanguage flattens the rows that need lang. An overridden
// language selects every source row regardless of existing translations.
func SelectForLanguage(coverage []Coverage, lang langmeta.Code, overrides []langmeta.Code, spec FlattenSpec) []toon.Row {
	var out []toon.Row
	for _, c := range coverage {
		if selected(c, lang, overrides) {
			out = append(out, spec.Flatten(c.Row))
		}
	}
	return out
}

// Prepared is everything the translation stage needs, computed once.
type Prepared struct {
	Coverage []Coverage
	Rows     map[langmeta.Code][]toon.Row
	Names    *Accumulator
	Targets  []langmeta.Code
}

// Prepare computes coverage over targets and selects the rows of every target.
func Prepare(part Partitioned, spec FlattenSpec, targets, overrides []langmeta.Code) Prepared {
	coverage := ComputeCoverage(part.Source, part.Existing, targets)
	p := Prepared{
		Coverage: coverage,
		Rows:     make(map[langmeta.Code][]toon.Row, len(targets)),
		Names:    CollectAttributeNames(coverage, spec, targets, overrides),
		Targets:  append([]langmeta.Code(nil), targets...),
	}
	for _, l := range targets {
		p.Rows[l] = SelectForLanguage(coverage, l, overrides, spec)
	}
	return p
}

// Total returns the number of rows selected across all targets.
func (p Prepared) Total() int {
	n := 0
	for _, rows := range p.Rows {
		n += len(rows)
	}
	return n
}
