// Package merge lays translated rows back onto the shape of their source
// rows and rewrites the WPML import markers, producing rows the WPML
// import plugin attaches to the original products.
package merge

import (
	"bytes"
	"encoding/json"

	"github.com/minios-linux/wootrans/columns"
	"github.com/minios-linux/wootrans/langmeta"
	"github.com/minios-linux/wootrans/reconcile"
	"github.com/minios-linux/wootrans/toon"
)

// blanked are cleared so the import creates translations instead of
// updating the source products.
var blanked = []string{"ID", "Categories", "Brands", "Published"}

// Result is the outcome of Reassemble.
type Result struct {
	Rows []reconcile.Row
	// Unmatched lists translated IDs with no source row.
	Unmatched []string
}

// Reassemble merges translated rows into copies of their source rows.
//   - The source row is found by ID; unknown IDs go to Unmatched.
//   - Translated fields overwrite the original ones.
//   - The local attribute labels column gets the translated names of the
//     attributes the product carries.
//   - The import language becomes lang, the source language becomes the
//     original's import language and the group is kept (or taken from the
//     SKU when empty).
//   - ID, Categories, Brands and Published are blanked.
func Reassemble(source []reconcile.Row, translated []toon.Row, names []reconcile.AttributeName, lang langmeta.Code) Result {
	byID := make(map[string]reconcile.Row, len(source))
	for _, r := range source {
		if id := r["ID"]; id != "" {
			if _, dup := byID[id]; !dup {
				byID[id] = r
			}
		}
	}

	byName := make(map[string]reconcile.AttributeName, len(names))
	for _, n := range names {
		if _, dup := byName[n.Name]; !dup {
			byName[n.Name] = n
		}
	}

	var res Result
	for _, t := range translated {
		orig, ok := byID[t["ID"]]
		if !ok {
			res.Unmatched = append(res.Unmatched, t["ID"])
			continue
		}

		out := make(reconcile.Row, len(orig)+len(t)+1)
		for k, v := range orig {
			out[k] = v
		}
		for k, v := range t {
			out[k] = v
		}

		out[columns.LocalAttributeLabelsColumn] = labelsJSON(orig, byName)
		out[columns.ImportLanguageColumn] = string(lang)
		out[columns.SourceLanguageColumn] = orig[columns.ImportLanguageColumn]
		if g := orig[columns.TranslationGroupColumn]; g != "" {
			out[columns.TranslationGroupColumn] = g
		} else {
			out[columns.TranslationGroupColumn] = orig["SKU"]
		}
		for _, c := range blanked {
			out[c] = ""
		}
		res.Rows = append(res.Rows, out)
	}
	return res
}

// labelsJSON returns {slug: translated name} for the attribute labels of
// row that have a non-empty translation.
func labelsJSON(row reconcile.Row, byName map[string]reconcile.AttributeName) string {
	labels := make(map[string]string)
	for _, label := range columns.ExtractAttributeLabels(row) {
		n, ok := byName[label]
		if !ok || n.Translated() == "" {
			continue
		}
		labels[n.Slug] = n.Translated()
	}

	// json.Encoder sorts map keys; HTML escaping is off so labels such as
	// "Size & Fit" stay readable in the export.
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(labels); err != nil {
		return "{}"
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n"))
}

// OutputHeader returns header with the local attribute labels column
// appended when absent.
func OutputHeader(header []string) []string {
	out := make([]string, len(header), len(header)+1)
	copy(out, header)
	for _, h := range header {
		if h == columns.LocalAttributeLabelsColumn {
			return out
		}
	}
	return append(out, columns.LocalAttributeLabelsColumn)
}
