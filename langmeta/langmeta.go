// Package langmeta provides the closed set of target languages supported
// by the WPML import (ISO codes, English and native names, emoji flags)
// used by prompts, output file names and CLI tables.
package langmeta

import (
	"fmt"
	"sort"
	"strings"
)

// Code is an ISO 639-1 language code from the supported set.
type Code string

const (
	English   Code = "en"
	Slovenian Code = "sl"
	Croatian  Code = "hr"
	Serbian   Code = "sr"
	Bosnian   Code = "bs"
	German    Code = "de"
	French    Code = "fr"
	Polish    Code = "pl"
	Spanish   Code = "es"
	Czech     Code = "cs"
	Italian   Code = "it"
)

// Meta describes language display metadata.
type Meta struct {
	// Name is the English name, used in model prompts.
	Name string
	// Native is the name in the language itself, used in CLI output.
	Native string
	Flag   string
}

// Registry contains metadata for every supported language.
var Registry = map[Code]Meta{
	English:   {Name: "English", Native: "English", Flag: "🇬🇧"},
	Slovenian: {Name: "Slovenian", Native: "Slovenščina", Flag: "🇸🇮"},
	Croatian:  {Name: "Croatian", Native: "Hrvatski", Flag: "🇭🇷"},
	Serbian:   {Name: "Serbian", Native: "Српски", Flag: "🇷🇸"},
	Bosnian:   {Name: "Bosnian", Native: "Bosanski", Flag: "🇧🇦"},
	German:    {Name: "German", Native: "Deutsch", Flag: "🇩🇪"},
	French:    {Name: "French", Native: "Français", Flag: "🇫🇷"},
	Polish:    {Name: "Polish", Native: "Polski", Flag: "🇵🇱"},
	Spanish:   {Name: "Spanish", Native: "Español", Flag: "🇪🇸"},
	Czech:     {Name: "Czech", Native: "Čeština", Flag: "🇨🇿"},
	Italian:   {Name: "Italian", Native: "Italiano", Flag: "🇮🇹"},
}

// order is the canonical language order (matches the order the WPML
// import plugin lists them in).
var order = []Code{English, Slovenian, Croatian, Serbian, Bosnian, German, French, Polish, Spanish, Czech, Italian}

// All returns every supported language in canonical order.
func All() []Code {
	out := make([]Code, len(order))
	copy(out, order)
	return out
}

// IsSupported reports whether c is in the supported set.
func IsSupported(c Code) bool {
	_, ok := Registry[c]
	return ok
}

func canonicalize(lang string) string {
	normalized := strings.ReplaceAll(strings.TrimSpace(lang), "_", "-")
	if normalized == "" {
		return ""
	}
	parts := strings.SplitN(normalized, "-", 2)
	return strings.ToLower(parts[0])
}

// Parse resolves a user-supplied language code or English name
// ("de", "de_DE", "German") to a supported Code.
func Parse(s string) (Code, error) {
	c := Code(canonicalize(s))
	if IsSupported(c) {
		return c, nil
	}
	for code, m := range Registry {
		if strings.EqualFold(strings.TrimSpace(s), m.Name) {
			return code, nil
		}
	}
	return "", fmt.Errorf("unsupported language %q (supported: %s)", s, strings.Join(Strings(All()), ", "))
}

// ParseList parses a comma-separated list, dropping duplicates while
// keeping the first occurrence order.
func ParseList(s string) ([]Code, error) {
	var out []Code
	seen := make(map[Code]bool)
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		c, err := Parse(part)
		if err != nil {
			return nil, err
		}
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out, nil
}

// Resolve returns metadata for c. Unknown codes yield their own code as name.
func Resolve(c Code) Meta {
	if m, ok := Registry[c]; ok {
		return m
	}
	return Meta{Name: string(c), Native: string(c)}
}

// Name returns the English name of c.
func Name(c Code) string {
	return Resolve(c).Name
}

// Strings converts codes to plain strings.
func Strings(codes []Code) []string {
	out := make([]string, len(codes))
	for i, c := range codes {
		out[i] = string(c)
	}
	return out
}

// Sort orders codes canonically; codes outside the set go last, alphabetically.
func Sort(codes []Code) {
	rank := make(map[Code]int, len(order))
	for i, c := range order {
		rank[c] = i
	}
	sort.SliceStable(codes, func(i, j int) bool {
		ri, iok := rank[codes[i]]
		rj, jok := rank[codes[j]]
		switch {
		case iok && jok:
			return ri < rj
		case iok:
			return true
		case jok:
			return false
		}
		return codes[i] < codes[j]
	})
}

// Contains reports whether c is in codes.
func Contains(codes []Code, c Code) bool {
	for _, x := range codes {
		if x == c {
			return true
		}
	}
	return false
}
