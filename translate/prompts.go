package translate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/minios-linux/wootrans/langmeta"
	"github.com/minios-linux/wootrans/reconcile"
	"github.com/minios-linux/wootrans/settings"
)

// ---------------------------------------------------------------------------
// System Prompts Configuration
// ---------------------------------------------------------------------------

// Prompt keys in prompts.json.
const (
	PromptRows       = "rows"
	PromptAttributes = "attributes"
)

// PromptsConfig holds the prompts loaded from prompts.json.
type PromptsConfig struct {
	Prompts map[string]string `json:"prompts"`
}

var (
	promptsMu     sync.RWMutex
	globalPrompts *PromptsConfig
)

// LoadPromptsFromFile loads prompts from a JSON file. A missing file is not
// an error; the built-in prompts are used.
func LoadPromptsFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read prompts file: %w", err)
	}

	var config PromptsConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return fmt.Errorf("failed to parse prompts file: %w", err)
	}

	promptsMu.Lock()
	globalPrompts = &config
	promptsMu.Unlock()
	return nil
}

// ResetPrompts drops prompts loaded from disk.
func ResetPrompts() {
	promptsMu.Lock()
	globalPrompts = nil
	promptsMu.Unlock()
}

func defaultPromptsMap() map[string]string {
	return map[string]string{
		PromptRows:       RowsSystemPrompt,
		PromptAttributes: AttributeNamesPrompt,
	}
}

func createDefaultPromptsFile(path string) error {
	data, err := json.MarshalIndent(PromptsConfig{Prompts: defaultPromptsMap()}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling default prompts: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating prompts directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing default prompts file: %w", err)
	}
	return nil
}

// LoadPromptsFromDefaultLocations loads $XDG_DATA_HOME/wootrans/prompts.json,
// creating it with the built-in prompts when it does not exist. Returns the
// path of the loaded file.
func LoadPromptsFromDefaultLocations() (string, error) {
	path, err := settings.PromptsFilePath()
	if err != nil {
		return "", fmt.Errorf("cannot determine prompts file path: %w", err)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := createDefaultPromptsFile(path); err != nil {
			return "", fmt.Errorf("creating default prompts file: %w", err)
		}
	}

	if err := LoadPromptsFromFile(path); err != nil {
		return "", err
	}
	return path, nil
}

// getPrompt returns the loaded prompt for key, or the built-in one.
func getPrompt(key string) string {
	promptsMu.RLock()
	defer promptsMu.RUnlock()
	if globalPrompts != nil {
		if p, ok := globalPrompts.Prompts[key]; ok && p != "" {
			return p
		}
	}
	return defaultPromptsMap()[key]
}

// SystemPrompt returns the row translation system prompt for lang.
func (s *Service) SystemPrompt(lang langmeta.Code) string {
	prompt := s.opts.SystemPrompt
	if prompt == "" {
		prompt = getPrompt(PromptRows)
	}
	return strings.ReplaceAll(prompt, "{{targetLang}}", langmeta.Name(lang))
}

// AttributeNamesPrompt returns the prompt asking for a translation of names.
func (s *Service) AttributeNamesPrompt(names []reconcile.AttributeName, lang langmeta.Code) (string, error) {
	data, err := json.MarshalIndent(names, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling attribute names: %w", err)
	}
	prompt := s.opts.AttributePrompt
	if prompt == "" {
		prompt = getPrompt(PromptAttributes)
	}
	prompt = strings.ReplaceAll(prompt, "{{targetLang}}", langmeta.Name(lang))
	return strings.ReplaceAll(prompt, "{{attributes}}", string(data)), nil
}

// ---------------------------------------------------------------------------
// Built-in prompts
// ---------------------------------------------------------------------------

// RowsSystemPrompt instructs the model to translate a TOON batch.
const RowsSystemPrompt = `You are a strict data translation engine for WooCommerce products.
Target language: {{targetLang}}

### CRITICAL FORMATTING RULES (VIOLATION = FAILURE)
You receive and return data in TOON format, read by a strict parser that uses comma delimiters and backslash escaping.

1. **ROW SEPARATION**:
   - The first line is the header "[N]{columns}:". Return it unchanged.
   - Rows are separated by newlines only, each indented by two spaces.
   - Never put a comma at the start of a line or after the last column.
   - Return exactly N rows, in the same order, with the same ID values.

2. **COLUMN INTEGRITY VIA UNIQUE PLACEHOLDERS**:
   - Empty cells are marked with placeholders unique to their column, such as "NULL_Attribute 5" or "NULL_Tags".
   - Output every placeholder exactly as it appears. Do not translate, shorten or skip placeholders.
   - Example input:  "12","Val","NULL_Attribute 5","NULL_Attribute 6"
   - Example output: "12","Translated val","NULL_Attribute 5","NULL_Attribute 6"

3. **QUOTING & ESCAPING**:
   - Wrap every value, placeholders included, in double quotes.
   - Escape double quotes inside a value as \" and backslashes as \\.
   - Line breaks inside a value are written as \n. Never emit a raw line break inside a value.
   - Do not escape commas.

4. **HTML HANDLING**:
   - Keep HTML tags and attributes intact. Translate only the visible text.

### PRESERVATION RULES
- Keep IDs, SKUs, URLs, numbers and units (ml, cm, kg) unchanged.
- Keep brand and trademark names unchanged.

### COLUMN RULES
- **Name, Short description, Description**: translate naturally for an online shop.
- **Tags**: translate each comma-separated tag; keep brand names as they are.
- **Attribute N**: values look like "Label: value". Keep the "Label: " prefix unchanged and translate only the value.
- **Meta columns**: SEO descriptions and focus keywords; translate them as search phrases a local customer would use.

### ONE-SHOT EXAMPLE (target language: Slovenian)
Input:
` + "```toon" + `
[2]{ID,Name,Description,Tags,Attribute 1,Attribute 2}:
  "101","Blue Cotton Hoodie","<p>Warm \"everyday\" <span class=\"bold\">hoodie</span>.</p>","Warm, Cotton","Color: Blue","NULL_Attribute 2"
  "102","Wool Socks","NULL_Description","NULL_Tags","Size: M","Material: Wool"
` + "```" + `

Output:
` + "```toon" + `
[2]{ID,Name,Description,Tags,Attribute 1,Attribute 2}:
  "101","Modra bombažna jopa","<p>Topla \"vsakdanja\" <span class=\"bold\">jopa</span>.</p>","Toplo, Bombaž","Color: Modra","NULL_Attribute 2"
  "102","Volnene nogavice","NULL_Description","NULL_Tags","Size: M","Material: Volna"
` + "```" + `

Return the translation in the same TOON format only.
Output only the code block.`

// AttributeNamesPrompt asks for a translation of attribute labels as JSON.
const AttributeNamesPrompt = `You will be given a JSON array of WooCommerce product attributes. Translate each "name" value into {{targetLang}} and put the result in "translatedName". Return the same JSON array with only "translatedName" filled in. Do not change "name" or "slug".

Example:
{
  "name": "Color",
  "slug": "color",
  "translatedName": null
}

Translated into Slovenian:
{
  "name": "Color",
  "slug": "color",
  "translatedName": "Barva"
}

Target language: {{targetLang}}

Here is the JSON array of attributes to translate:
{{attributes}}

Return the translated JSON array only.`
