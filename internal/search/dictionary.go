package search

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed dictionary.yaml
var defaultDictionary []byte

type Category struct {
	Name     string   `yaml:"name"`
	Synonyms []string `yaml:"synonyms"`
}

// Dictionary holds the typo corrections and category synonyms used to
// broaden a query.
type Dictionary struct {
	Corrections map[string]string `yaml:"corrections"`
	Categories  []Category        `yaml:"categories"`
}

// LoadDictionary reads a dictionary from path, or the built-in one when path
// is empty.
func LoadDictionary(path string) (Dictionary, error) {
	if path == "" {
		return ParseDictionary(defaultDictionary)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Dictionary{}, fmt.Errorf("read search dictionary: %w", err)
	}
	return ParseDictionary(raw)
}

// ParseDictionary decodes YAML and normalizes every entry the way queries are
// normalized.
func ParseDictionary(raw []byte) (Dictionary, error) {
	var d Dictionary
	if err := yaml.Unmarshal(raw, &d); err != nil {
		return Dictionary{}, fmt.Errorf("parse search dictionary: %w", err)
	}

	corrections := make(map[string]string, len(d.Corrections))
	for typo, canonical := range d.Corrections {
		typo, canonical = Normalize(typo), Normalize(canonical)
		if typo == "" || canonical == "" {
			return Dictionary{}, fmt.Errorf("search dictionary: empty correction %q -> %q", typo, canonical)
		}
		corrections[typo] = canonical
	}
	d.Corrections = corrections

	for i, c := range d.Categories {
		name := Normalize(c.Name)
		if name == "" {
			return Dictionary{}, fmt.Errorf("search dictionary: category %d has no name", i)
		}
		synonyms := make([]string, 0, len(c.Synonyms))
		for _, s := range c.Synonyms {
			if s = Normalize(s); s != "" {
				synonyms = append(synonyms, s)
			}
		}
		d.Categories[i] = Category{Name: name, Synonyms: synonyms}
	}
	return d, nil
}
