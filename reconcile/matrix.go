package reconcile

import (
	"sort"
	"strings"

	"github.com/minios-linux/wootrans/columns"
	"github.com/minios-linux/wootrans/langmeta"
)

// Matrix counts, per source language and target language, the source rows
// that still need a translation.
type Matrix struct {
	Sources []string
	Targets []langmeta.Code
	// Products is the number of source rows per source language.
	Products map[string]int
	Cells    map[string]map[langmeta.Code]int
	Totals   map[langmeta.Code]int
}

// NewMatrix builds the translation matrix of part. Overridden targets count
// every source row.
func NewMatrix(part Partitioned, targets, overrides []langmeta.Code) Matrix {
	if targets == nil {
		targets = langmeta.All()
	}
	m := Matrix{
		Targets:  append([]langmeta.Code(nil), targets...),
		Products: make(map[string]int),
		Cells:    make(map[string]map[langmeta.Code]int),
		Totals:   make(map[langmeta.Code]int, len(targets)),
	}
	for _, c := range ComputeCoverage(part.Source, part.Existing, targets) {
		src := strings.TrimSpace(c.Row[columns.ImportLanguageColumn])
		if _, ok := m.Cells[src]; !ok {
			m.Sources = append(m.Sources, src)
			m.Cells[src] = make(map[langmeta.Code]int, len(targets))
		}
		m.Products[src]++
		for _, l := range targets {
			if selected(c, l, overrides) {
				m.Cells[src][l]++
				m.Totals[l]++
			}
		}
	}
	sort.Strings(m.Sources)
	return m
}

// Coverage returns the percentage of source rows already translated into lang.
func (m Matrix) Coverage(source string, lang langmeta.Code) int {
	total := m.Products[source]
	if total == 0 {
		return 100
	}
	return (total - m.Cells[source][lang]) * 100 / total
}
