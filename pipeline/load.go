package pipeline

import (
	"fmt"

	"github.com/minios-linux/wootrans/columns"
	"github.com/minios-linux/wootrans/csvfile"
	"github.com/minios-linux/wootrans/langmeta"
	"github.com/minios-linux/wootrans/reconcile"
	"github.com/minios-linux/wootrans/schema"
)

// Summary is a parsed and validated product export.
type Summary struct {
	Path       string
	Table      *csvfile.Table
	Schema     *schema.Schema
	Attributes []columns.AttributeMapping
	Meta       []columns.MetaMapping
	Partition  reconcile.Partitioned
}

// Load parses the export at path, validates its first row and partitions
// the rows into source products and existing translations.
func Load(path string) (*Summary, error) {
	table, err := csvfile.ParseFile(path)
	if err != nil {
		return nil, err
	}
	sch, err := schema.New(table.Header)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := sch.ValidateSample(table.Rows); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &Summary{
		Path:       path,
		Table:      table,
		Schema:     sch,
		Attributes: columns.MapAttributeColumns(table.Header),
		Meta:       columns.MapMetaColumns(table.Header),
		Partition:  reconcile.Partition(table.Rows),
	}, nil
}

// Header returns the table header.
func (s *Summary) Header() []string {
	return s.Table.Header
}

// HasColumn reports whether the header contains name.
func (s *Summary) HasColumn(name string) bool {
	for _, h := range s.Table.Header {
		if h == name {
			return true
		}
	}
	return false
}

// SourceLanguages returns the supported languages the source rows are
// written in, in canonical order.
func (s *Summary) SourceLanguages() []langmeta.Code {
	var out []langmeta.Code
	for _, r := range s.Partition.Source {
		c, err := langmeta.Parse(r[columns.ImportLanguageColumn])
		if err != nil || langmeta.Contains(out, c) {
			continue
		}
		out = append(out, c)
	}
	langmeta.Sort(out)
	return out
}

// DefaultTargets returns every supported language except the source
// languages.
func (s *Summary) DefaultTargets() []langmeta.Code {
	src := s.SourceLanguages()
	var out []langmeta.Code
	for _, c := range langmeta.All() {
		if !langmeta.Contains(src, c) {
			out = append(out, c)
		}
	}
	return out
}

// DefaultMeta returns the SEO meta columns present in the header.
func (s *Summary) DefaultMeta() []string {
	var out []string
	for _, m := range columns.DefaultSEOMeta {
		if s.HasColumn(m) {
			out = append(out, m)
		}
	}
	return out
}

// SelectableMeta returns the meta columns a user may translate: every
// "Meta: " column except the WPML bookkeeping ones.
func (s *Summary) SelectableMeta() []string {
	var out []string
	for _, m := range s.Meta {
		if !columns.IsWPMLInternal(m.Key) {
			out = append(out, m.Key)
		}
	}
	return out
}
