package fortune

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrTemplateEmpty is returned when the template file has no content.
var ErrTemplateEmpty = errors.New("fortune template is empty")

// Template is the prompt skeleton with ${birthDate}, ${today} and ${health} placeholders.
// It is loaded once and never mutated.
type Template struct {
	text string
}

// LoadTemplate reads the template from disk.
func LoadTemplate(path string) (Template, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Template{}, fmt.Errorf("read fortune template %s: %w", path, err)
	}
	return NewTemplate(string(raw))
}

// NewTemplate wraps template text.
func NewTemplate(text string) (Template, error) {
	if strings.TrimSpace(text) == "" {
		return Template{}, ErrTemplateEmpty
	}
	return Template{text: text}, nil
}

// Render substitutes every placeholder occurrence. The survey is embedded as
// two-space indented JSON; an absent survey renders as null.
func (t Template) Render(birthDate, today string, health json.RawMessage) (string, error) {
	healthJSON := "null"
	if len(bytes.TrimSpace(health)) > 0 {
		var buf bytes.Buffer
		if err := json.Indent(&buf, health, "", "  "); err != nil {
			return "", fmt.Errorf("indent health survey: %w", err)
		}
		healthJSON = buf.String()
	}

	replacer := strings.NewReplacer(
		"${birthDate}", birthDate,
		"${today}", today,
		"${health}", healthJSON,
	)
	return replacer.Replace(t.text), nil
}
