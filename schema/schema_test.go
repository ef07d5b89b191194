package schema

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sampleHeaders = []string{
	"ID", "Type", "SKU", "Name", "Published", "Is featured?",
	"Weight (g)", "Length (cm)",
	"Attribute 1 name", "Attribute 1 value(s)", "Attribute 1 visible",
	"Meta: _yoast_wpseo_focuskw", "Blocksy Custom Data",
	"Unknown Plugin Column",
}

func TestNewRejectsEmptyHeader(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidSchema))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		header string
		kind   Kind
		source Source
	}{
		{"ID", KindIdentifier, SourceKnown},
		{"Type", KindEnum, SourceKnown},
		{"Published", KindBoolean, SourceKnown},
		{"Regular price", KindNumber, SourceKnown},
		{"External URL", KindURL, SourceKnown},
		{"Weight (oz)", KindNumber, SourceDimension},
		{"height (mm)", KindNumber, SourceDimension},
		{"Attribute 12 value(s)", KindText, SourceAttribute},
		{"Attribute 3 global", KindBoolean, SourceAttribute},
		{"attribute 3 VISIBLE", KindBoolean, SourceAttribute},
		{"Attribute 1 default", KindText, SourceAttribute},
		{"Meta: rank_math_description", KindText, SourceMeta},
		{"Blocksy Custom Data", KindText, SourceMeta},
		{"Something else", KindText, SourceFallback},
		{"Attribute x name", KindText, SourceFallback},
	}
	for _, tc := range tests {
		t.Run(tc.header, func(t *testing.T) {
			r := Classify(tc.header)
			assert.Equal(t, tc.header, r.Column)
			assert.Equal(t, tc.kind, r.Kind, "kind")
			assert.Equal(t, tc.source, r.Source, "source")
		})
	}
}

func TestValidateValidRow(t *testing.T) {
	s, err := New(sampleHeaders)
	require.NoError(t, err)

	row := map[string]string{
		"ID":                         "102",
		"Type":                       "simple",
		"SKU":                        "HOODIE-BLUE",
		"Name":                       "Blue Hoodie",
		"Published":                  "1",
		"Is featured?":               "0",
		"Weight (g)":                 "500",
		"Length (cm)":                "20",
		"Attribute 1 name":           "Color",
		"Attribute 1 value(s)":       "Blue, Red",
		"Attribute 1 visible":        "1",
		"Meta: _yoast_wpseo_focuskw": "blue hoodie",
		"Unknown Plugin Column":      "some data",
	}
	assert.NoError(t, s.Validate(row))
}

func TestValidateAggregatesColumnErrors(t *testing.T) {
	s, err := New(sampleHeaders)
	require.NoError(t, err)

	row := map[string]string{
		"ID":         "103",
		"Type":       "invalid_type",
		"Published":  "maybe",
		"Weight (g)": "heavy",
	}
	err = s.Validate(row)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSchemaValidationFailed))

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))

	var cols []string
	for _, c := range verr.Columns {
		cols = append(cols, c.Column)
	}
	assert.Equal(t, []string{"Type", "Published", "Weight (g)"}, cols)
}

func TestValidateRules(t *testing.T) {
	tests := []struct {
		name   string
		header string
		value  string
		ok     bool
	}{
		{"id required", "ID", "", false},
		{"id present", "ID", "7", true},
		{"type list", "Type", "simple, virtual", true},
		{"type empty", "Type", "", false},
		{"type capitalized", "Type", "Variable", true},
		{"type list mixed case", "Type", "Simple, VIRTUAL", true},
		{"type unknown", "Type", "Bundle", false},
		{"boolean upper", "In stock?", "YES", true},
		{"boolean empty", "In stock?", "", true},
		{"backorders notify", "Backorders allowed?", "notify", true},
		{"backorders bad", "Backorders allowed?", "later", false},
		{"published private", "Published", "-1", true},
		{"visibility", "Visibility in catalogue", "hidden", true},
		{"visibility capitalized", "Visibility in catalogue", "Visible", true},
		{"visibility bad", "Visibility in catalogue", "secret", false},
		{"tax status empty", "Tax status", "", true},
		{"number empty", "Sale price", "", true},
		{"number decimal", "Sale price", "12.50", true},
		{"number lenient suffix", "Stock", "5 pcs", true},
		{"number bad", "Stock", "many", false},
		{"url empty", "External URL", "", true},
		{"url valid", "External URL", "https://example.com/p/1", true},
		{"url bad", "External URL", "not a url", false},
		{"attribute global", "Attribute 2 global", "2", false},
		{"fallback anything", "Whatever", "\"quoted\" \\ text", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s, err := New([]string{tc.header})
			require.NoError(t, err)
			err = s.Validate(map[string]string{tc.header: tc.value})
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrSchemaValidationFailed)
			}
		})
	}
}

func TestValidateSampleChecksOnlyFirstRow(t *testing.T) {
	s, err := New([]string{"ID", "Stock"})
	require.NoError(t, err)

	rows := []map[string]string{
		{"ID": "1", "Stock": "3"},
		{"ID": "", "Stock": "lots"},
	}
	assert.NoError(t, s.ValidateSample(rows))
	assert.NoError(t, s.ValidateSample(nil))

	rows[0]["Stock"] = "lots"
	assert.Error(t, s.ValidateSample(rows))
}

func TestNewDeduplicatesHeaders(t *testing.T) {
	s, err := New([]string{"ID", "Name", "ID"})
	require.NoError(t, err)
	assert.Len(t, s.Rules(), 2)

	r, ok := s.Rule("Name")
	require.True(t, ok)
	assert.Equal(t, KindText, r.Kind)
}
