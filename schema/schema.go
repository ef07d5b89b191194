// Package schema builds row validators for WooCommerce product exports
// whose column set is only known once the file header has been read.
//
// Every header is classified once, in priority order, against a static
// rule table: exact known columns, dimension prefixes, attribute
// patterns, plugin meta prefixes, and finally a permissive fallback.
// The resulting Schema is plain data and can be inspected or used to
// validate rows independently of any input file.
package schema

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

var (
	// ErrInvalidSchema is returned when a schema cannot be built (empty header).
	ErrInvalidSchema = errors.New("invalid schema")
	// ErrSchemaValidationFailed is wrapped by every *ValidationError.
	ErrSchemaValidationFailed = errors.New("schema validation failed")
)

// ---------------------------------------------------------------------------
// Rule table
// ---------------------------------------------------------------------------

// Kind is the value type a column is validated against.
type Kind int

const (
	KindText Kind = iota
	KindIdentifier
	KindEnum
	KindBoolean
	KindNumber
	KindURL
)

func (k Kind) String() string {
	switch k {
	case KindIdentifier:
		return "identifier"
	case KindEnum:
		return "enum"
	case KindBoolean:
		return "boolean"
	case KindNumber:
		return "number"
	case KindURL:
		return "url"
	default:
		return "text"
	}
}

// Source records which classification step produced a rule.
type Source int

const (
	SourceKnown Source = iota
	SourceDimension
	SourceAttribute
	SourceMeta
	SourceFallback
)

func (s Source) String() string {
	switch s {
	case SourceKnown:
		return "known"
	case SourceDimension:
		return "dimension"
	case SourceAttribute:
		return "attribute"
	case SourceMeta:
		return "meta"
	default:
		return "fallback"
	}
}

// Rule is the validation rule for one column.
type Rule struct {
	Column   string
	Kind     Kind
	Source   Source
	Required bool
	// Allowed holds the lowercase accepted values for enum and boolean kinds.
	Allowed []string
	// List makes enum validation apply to each comma-separated part.
	List bool
}

var booleanValues = []string{"1", "0", "yes", "no", "true", "false", ""}

func text() Rule { return Rule{Kind: KindText} }
func number() Rule { return Rule{Kind: KindNumber} }
func boolean() Rule { return Rule{Kind: KindBoolean, Allowed: booleanValues} }
func enum(v ...string) Rule {
	return Rule{Kind: KindEnum, Allowed: v}
}

// knownColumns maps exact WooCommerce export headers to their rules.
var knownColumns = map[string]Rule{
	"ID":                      {Kind: KindIdentifier, Required: true},
	"Type":                    {Kind: KindEnum, List: true, Allowed: []string{"simple", "variable", "grouped", "external", "variation", "downloadable", "virtual"}},
	"SKU":                     text(),
	"Name":                    text(),
	"Published":               {Kind: KindBoolean, Allowed: append([]string{"-1"}, booleanValues...)},
	"Is featured?":            boolean(),
	"Visibility in catalogue": enum("visible", "catalog", "search", "hidden", ""),
	"Short description":       text(),
	"Description":             text(),
	"Date sale price starts":  text(),
	"Date sale price ends":    text(),
	"Tax status":              enum("taxable", "shipping", "none", ""),
	"Tax class":               text(),
	"Sale price":              number(),
	"Regular price":           number(),
	"In stock?":               boolean(),
	"Stock":                   number(),
	"Low stock amount":        number(),
	"Backorders allowed?":     {Kind: KindBoolean, Allowed: append([]string{"notify"}, booleanValues...)},
	"Sold individually?":      boolean(),
	"Allow customer reviews?": boolean(),
	"Purchase note":           text(),
	"Categories":              text(),
	"Tags":                    text(),
	"Shipping class":          text(),
	"Images":                  text(),
	"Download limit":          number(),
	"Download expiry days":    number(),
	"Parent":                  text(),
	"Grouped products":        text(),
	"Upsells":                 text(),
	"Cross-sells":             text(),
	"External URL":            {Kind: KindURL},
	"Button text":             text(),
	"Position":                number(),
}

var (
	dimensionPattern = regexp.MustCompile(`(?i)^(Weight|Length|Width|Height)`)
	attributePattern = regexp.MustCompile(`(?i)^Attribute \d+ (name|value\(s\)|visible|global|default)$`)
)

// metaPrefixes are plugin column prefixes that always hold free text.
var metaPrefixes = []string{"Meta:", "Blocksy"}

// classifier is one step of the classification chain.
type classifier struct {
	source Source
	match  func(header string) (Rule, bool)
}

var classifiers = []classifier{
	{SourceKnown, func(h string) (Rule, bool) {
		r, ok := knownColumns[h]
		return r, ok
	}},
	{SourceDimension, func(h string) (Rule, bool) {
		return number(), dimensionPattern.MatchString(h)
	}},
	{SourceAttribute, func(h string) (Rule, bool) {
		m := attributePattern.FindStringSubmatch(h)
		if m == nil {
			return Rule{}, false
		}
		switch strings.ToLower(m[1]) {
		case "visible", "global":
			return boolean(), true
		}
		return text(), true
	}},
	{SourceMeta, func(h string) (Rule, bool) {
		for _, p := range metaPrefixes {
			if strings.HasPrefix(h, p) {
				return text(), true
			}
		}
		return Rule{}, false
	}},
}

// Classify returns the rule for a single header.
func Classify(header string) Rule {
	for _, c := range classifiers {
		if r, ok := c.match(header); ok {
			r.Column = header
			r.Source = c.source
			return r
		}
	}
	return Rule{Column: header, Kind: KindText, Source: SourceFallback}
}

// ---------------------------------------------------------------------------
// Schema
// ---------------------------------------------------------------------------

// Schema is a validator for rows sharing one header.
type Schema struct {
	rules []Rule
}

// New classifies every header. Duplicate headers keep their first rule.
func New(headers []string) (*Schema, error) {
	if len(headers) == 0 {
		return nil, fmt.Errorf("%w: no headers", ErrInvalidSchema)
	}
	s := &Schema{rules: make([]Rule, 0, len(headers))}
	seen := make(map[string]bool, len(headers))
	for _, h := range headers {
		if seen[h] {
			continue
		}
		seen[h] = true
		s.rules = append(s.rules, Classify(h))
	}
	return s, nil
}

// Rules returns the per-column rules in header order.
func (s *Schema) Rules() []Rule {
	out := make([]Rule, len(s.rules))
	copy(out, s.rules)
	return out
}

// Rule returns the rule for column, if the header contains it.
func (s *Schema) Rule(column string) (Rule, bool) {
	for _, r := range s.rules {
		if r.Column == column {
			return r, true
		}
	}
	return Rule{}, false
}

// Validate checks one row. Columns missing from the row are treated as
// empty. All violations are returned together in a *ValidationError.
func (s *Schema) Validate(row map[string]string) error {
	var errs []ColumnError
	for _, r := range s.rules {
		if ce, ok := r.check(row[r.Column]); !ok {
			errs = append(errs, ce)
		}
	}
	if len(errs) > 0 {
		return &ValidationError{Columns: errs}
	}
	return nil
}

// ValidateSample validates only the first row; tables are large and the
// export plugin writes every row with the same shape.
func (s *Schema) ValidateSample(rows []map[string]string) error {
	if len(rows) == 0 {
		return nil
	}
	return s.Validate(rows[0])
}

func (r Rule) check(value string) (ColumnError, bool) {
	fail := func(msg string) (ColumnError, bool) {
		return ColumnError{Column: r.Column, Kind: r.Kind, Value: value, Message: msg}, false
	}

	switch r.Kind {
	case KindIdentifier:
		if r.Required && strings.TrimSpace(value) == "" {
			return fail("is required")
		}
	case KindEnum:
		parts := []string{value}
		if r.List && value != "" {
			parts = strings.Split(value, ",")
		}
		for _, p := range parts {
			if !contains(r.Allowed, strings.ToLower(strings.TrimSpace(p))) {
				return fail("must be one of " + strings.Join(nonEmpty(r.Allowed), ", "))
			}
		}
	case KindBoolean:
		if !contains(r.Allowed, strings.ToLower(strings.TrimSpace(value))) {
			return fail("must be 1, 0, yes, or no")
		}
	case KindNumber:
		if v := strings.TrimSpace(value); v != "" {
			if _, err := strconv.ParseFloat(leadingNumber(v), 64); err != nil {
				return fail("must be a valid number")
			}
		}
	case KindURL:
		if value != "" {
			u, err := url.Parse(value)
			if err != nil || u.Scheme == "" || u.Host == "" {
				return fail("must be a valid URL")
			}
		}
	}
	return ColumnError{}, true
}

// leadingNumber mimics a lenient float parse: "12.5kg" is accepted as 12.5.
func leadingNumber(s string) string {
	end := 0
	for i, c := range s {
		if (c >= '0' && c <= '9') || c == '.' || ((c == '-' || c == '+') && i == 0) || ((c == 'e' || c == 'E') && i > 0) {
			end = i + 1
			continue
		}
		break
	}
	return strings.TrimRight(s[:end], "eE")
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

func nonEmpty(list []string) []string {
	out := make([]string, 0, len(list))
	for _, x := range list {
		if x != "" {
			out = append(out, x)
		}
	}
	return out
}
