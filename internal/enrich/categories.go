package enrich

import (
	_ "embed"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed categories.yaml
var defaultCategoriesYAML []byte

// DefaultFallbackLabel labels category codes missing from the table.
const DefaultFallbackLabel = "기타"

// Categories maps backend category codes to display labels.
type Categories struct {
	Fallback string            `yaml:"fallback"`
	Labels   map[string]string `yaml:"labels"`
}

// DefaultCategories returns the embedded category table.
func DefaultCategories() *Categories {
	c, err := ParseCategories(defaultCategoriesYAML)
	if err != nil {
		panic("enrich: embedded categories.yaml is invalid: " + err.Error())
	}
	return c
}

// ParseCategories parses a category table. Codes are matched
// case-insensitively.
func ParseCategories(data []byte) (*Categories, error) {
	var c Categories
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, eris.Wrap(err, "enrich: parse categories")
	}
	labels := make(map[string]string, len(c.Labels))
	for code, label := range c.Labels {
		labels[strings.ToUpper(strings.TrimSpace(code))] = label
	}
	c.Labels = labels
	if c.Fallback == "" {
		c.Fallback = DefaultFallbackLabel
	}
	return &c, nil
}

// LoadCategories returns the embedded table overlaid with the file at path.
// An empty path returns the embedded table unchanged.
func LoadCategories(path string) (*Categories, error) {
	base := DefaultCategories()
	if path == "" {
		return base, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "enrich: read categories file %s", path)
	}
	override, err := ParseCategories(data)
	if err != nil {
		return nil, err
	}
	for code, label := range override.Labels {
		base.Labels[code] = label
	}
	if override.Fallback != DefaultFallbackLabel {
		base.Fallback = override.Fallback
	}
	return base, nil
}

// Label returns the display label for code, or the fallback label.
func (c *Categories) Label(code string) string {
	if label, ok := c.Labels[strings.ToUpper(strings.TrimSpace(code))]; ok {
		return label
	}
	return c.Fallback
}
