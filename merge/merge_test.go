package merge

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/minios-linux/wootrans/columns"
	"github.com/minios-linux/wootrans/langmeta"
	"github.com/minios-linux/wootrans/reconcile"
	"github.com/minios-linux/wootrans/toon"
)

func ptr(s string) *string { return &s }

func sourceRow() reconcile.Row {
	return reconcile.Row{
		"ID":                           "17",
		"SKU":                          "HOOD-1",
		"Name":                         "Blue Hoodie",
		"Description":                  "Warm",
		"Categories":                   "Clothing",
		"Brands":                       "Acme",
		"Published":                    "1",
		"Regular price":                "29.90",
		"Attribute 1 name":             "Color",
		"Attribute 1 value(s)":         "Blue",
		"Attribute 2 name":             "Size & Fit",
		"Attribute 2 value(s)":         "M",
		columns.SourceLanguageColumn:   "",
		columns.ImportLanguageColumn:   "en",
		columns.TranslationGroupColumn: "grp-17",
	}
}

func TestReassembleRewritesMarkersAndBlanksIdentity(t *testing.T) {
	translated := []toon.Row{{
		"ID":                   "17",
		"Name":                 "Modra jopa",
		"Description":          "Topla",
		"Attribute 1 value(s)": "Modra",
	}}
	names := []reconcile.AttributeName{
		{Name: "Color", Slug: "color", TranslatedName: ptr("Barva")},
		{Name: "Size & Fit", Slug: "size-fit", TranslatedName: ptr("Velikost & kroj")},
		{Name: "Material", Slug: "material", TranslatedName: ptr("Material")},
	}

	res := Reassemble([]reconcile.Row{sourceRow()}, translated, names, langmeta.Slovenian)
	if len(res.Unmatched) != 0 {
		t.Fatalf("Unmatched = %v, want none", res.Unmatched)
	}
	if len(res.Rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(res.Rows))
	}

	want := reconcile.Row{
		"ID":                               "",
		"SKU":                              "HOOD-1",
		"Name":                             "Modra jopa",
		"Description":                      "Topla",
		"Categories":                       "",
		"Brands":                           "",
		"Published":                        "",
		"Regular price":                    "29.90",
		"Attribute 1 name":                 "Color",
		"Attribute 1 value(s)":             "Modra",
		"Attribute 2 name":                 "Size & Fit",
		"Attribute 2 value(s)":             "M",
		columns.SourceLanguageColumn:       "en",
		columns.ImportLanguageColumn:       "sl",
		columns.TranslationGroupColumn:     "grp-17",
		columns.LocalAttributeLabelsColumn: `{"color":"Barva","size-fit":"Velikost & kroj"}`,
	}
	if diff := cmp.Diff(want, res.Rows[0]); diff != "" {
		t.Fatalf("Reassemble() mismatch (-want +got):\n%s", diff)
	}
}

func TestReassembleDoesNotMutateSource(t *testing.T) {
	src := sourceRow()
	Reassemble([]reconcile.Row{src}, []toon.Row{{"ID": "17", "Name": "X"}}, nil, langmeta.German)
	if diff := cmp.Diff(sourceRow(), src); diff != "" {
		t.Fatalf("source row mutated (-want +got):\n%s", diff)
	}
}

func TestReassembleGroupFallsBackToSKU(t *testing.T) {
	src := sourceRow()
	src[columns.TranslationGroupColumn] = ""

	res := Reassemble([]reconcile.Row{src}, []toon.Row{{"ID": "17"}}, nil, langmeta.German)
	if got := res.Rows[0][columns.TranslationGroupColumn]; got != "HOOD-1" {
		t.Fatalf("group = %q, want SKU HOOD-1", got)
	}
}

func TestReassembleLabelsSkipUntranslated(t *testing.T) {
	names := []reconcile.AttributeName{
		{Name: "Color", Slug: "color"},
		{Name: "Size & Fit", Slug: "size-fit", TranslatedName: ptr("")},
	}
	res := Reassemble([]reconcile.Row{sourceRow()}, []toon.Row{{"ID": "17"}}, names, langmeta.German)
	if got := res.Rows[0][columns.LocalAttributeLabelsColumn]; got != "{}" {
		t.Fatalf("labels = %q, want {}", got)
	}
}

func TestReassembleUnmatchedIDs(t *testing.T) {
	translated := []toon.Row{{"ID": "99", "Name": "Ghost"}, {"ID": "17", "Name": "Jopa"}}
	res := Reassemble([]reconcile.Row{sourceRow()}, translated, nil, langmeta.Croatian)

	if diff := cmp.Diff([]string{"99"}, res.Unmatched); diff != "" {
		t.Fatalf("Unmatched mismatch (-want +got):\n%s", diff)
	}
	if len(res.Rows) != 1 || res.Rows[0]["Name"] != "Jopa" {
		t.Fatalf("unexpected rows: %v", res.Rows)
	}
}

func TestOutputHeader(t *testing.T) {
	header := []string{"ID", "Name"}
	got := OutputHeader(header)
	want := []string{"ID", "Name", columns.LocalAttributeLabelsColumn}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("OutputHeader mismatch (-want +got):\n%s", diff)
	}
	if len(header) != 2 {
		t.Fatal("OutputHeader modified its input")
	}

	already := []string{"ID", columns.LocalAttributeLabelsColumn, "Name"}
	if diff := cmp.Diff(already, OutputHeader(already)); diff != "" {
		t.Fatalf("OutputHeader should keep existing column (-want +got):\n%s", diff)
	}
}
