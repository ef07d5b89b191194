package columns

// WPML import plugin columns.
const (
	SourceLanguageColumn       = "Meta: _wpml_import_source_language_code"
	ImportLanguageColumn       = "Meta: _wpml_import_language_code"
	TranslationGroupColumn     = "Meta: _wpml_import_translation_group"
	LocalAttributeLabelsColumn = "Meta: _wpml_import_wc_local_attribute_labels"
)

// FixedColumns are always sent for translation.
var FixedColumns = []string{"Name", "Short description", "Description", "Tags"}

// DefaultSEOMeta are the SEO plugin columns selected when present.
var DefaultSEOMeta = []string{
	"Meta: rank_math_description",
	"Meta: rank_math_focus_keyword",
	"Meta: _yoast_wpseo_focuskw",
	"Meta: _yoast_wpseo_metadesc",
}

var wpmlInternal = map[string]bool{
	SourceLanguageColumn:       true,
	ImportLanguageColumn:       true,
	TranslationGroupColumn:     true,
	LocalAttributeLabelsColumn: true,
}

// IsWPMLInternal reports whether header is one of the WPML bookkeeping
// columns, which must never be translated.
func IsWPMLInternal(header string) bool {
	return wpmlInternal[header]
}
