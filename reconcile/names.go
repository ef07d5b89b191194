package reconcile

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/minios-linux/wootrans/columns"
	"github.com/minios-linux/wootrans/langmeta"
)

// AttributeName is one distinct attribute label and its translation.
type AttributeName struct {
	Name           string  `json:"name"`
	Slug           string  `json:"slug"`
	TranslatedName *string `json:"translatedName"`
}

// Translated returns the translated name, or "" when there is none.
func (a AttributeName) Translated() string {
	if a.TranslatedName == nil {
		return ""
	}
	return *a.TranslatedName
}

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Letters that carry no combining mark and so survive stripMarks.
var unmarked = strings.NewReplacer(
	"đ", "d", "Đ", "d",
	"ł", "l", "Ł", "l",
	"ø", "o", "Ø", "o",
	"ß", "ss", "ẞ", "ss",
	"æ", "ae", "Æ", "ae",
	"œ", "oe", "Œ", "oe",
	"þ", "th", "Þ", "th",
	"ħ", "h", "Ħ", "h",
	"ı", "i",
)

// Slug returns the lowercase, diacritic-free, hyphen-joined form of name.
func Slug(name string) string {
	s, _, err := transform.String(stripMarks, unmarked.Replace(name))
	if err != nil {
		s = unmarked.Replace(name)
	}
	s = strings.ToLower(s)

	var b strings.Builder
	dash := false
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			dash = false
			b.WriteRune(r)
		default:
			dash = true
		}
	}
	return b.String()
}

// Accumulator collects distinct attribute labels in first-seen order.
type Accumulator struct {
	names []AttributeName
	index map[string]int
}

// NewAccumulator returns an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{index: make(map[string]int)}
}

// Observe adds the labels of attrs that have not been seen yet.
func (a *Accumulator) Observe(attrs []columns.Attribute) {
	for _, attr := range attrs {
		a.add(AttributeName{Name: attr.Key, Slug: Slug(attr.Key)})
	}
}

func (a *Accumulator) add(n AttributeName) {
	if _, ok := a.index[n.Name]; ok {
		return
	}
	a.index[n.Name] = len(a.names)
	a.names = append(a.names, n)
}

// Merge adds the names of other that a has not seen.
func (a *Accumulator) Merge(other *Accumulator) {
	if other == nil {
		return
	}
	for _, n := range other.names {
		a.add(n)
	}
}

// Apply sets translated names, matched by slug.
func (a *Accumulator) Apply(translated []AttributeName) {
	bySlug := make(map[string]*string, len(translated))
	for _, t := range translated {
		if t.TranslatedName != nil {
			v := *t.TranslatedName
			bySlug[t.Slug] = &v
		}
	}
	for i := range a.names {
		if v, ok := bySlug[a.names[i].Slug]; ok {
			a.names[i].TranslatedName = v
		}
	}
}

// Names returns a copy of the collected names.
func (a *Accumulator) Names() []AttributeName {
	out := make([]AttributeName, len(a.names))
	copy(out, a.names)
	return out
}

// Clone returns an independent copy, used to apply one language's translations.
func (a *Accumulator) Clone() *Accumulator {
	c := NewAccumulator()
	c.Merge(a)
	for i := range c.names {
		c.names[i].TranslatedName = nil
	}
	return c
}

// Len returns the number of distinct names.
func (a *Accumulator) Len() int {
	return len(a.names)
}

// CollectAttributeNames observes the attributes of every row selected for
// any of languages.
func CollectAttributeNames(coverage []Coverage, spec FlattenSpec, languages, overrides []langmeta.Code) *Accumulator {
	acc := NewAccumulator()
	for _, c := range coverage {
		for _, l := range languages {
			if selected(c, l, overrides) {
				acc.Observe(spec.attributes(c.Row))
				break
			}
		}
	}
	return acc
}
