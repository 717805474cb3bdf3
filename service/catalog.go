package service

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Catalog errors.
var (
	ErrEmptyCatalog = errors.New("catalog has no entries for a kind")
)

// CatalogEntry is an item that can be placed in the layout.
type CatalogEntry struct {
	Label     string   `yaml:"label"`
	Magnitude *float64 `yaml:"magnitude"`
}

// Catalog lists the negative (food) and positive (exercise) items.
type Catalog struct {
	Negative []CatalogEntry `yaml:"food"`
	Positive []CatalogEntry `yaml:"exercise"`
}

// DefaultCatalog returns the embedded catalog.
func DefaultCatalog() Catalog {
	c, err := ParseCatalog(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("embedded catalog: %v", err))
	}
	return c
}

// LoadCatalog reads a YAML catalog from path, or the embedded one when path is empty.
func LoadCatalog(path string) (Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("reading catalog: %w", err)
	}
	return ParseCatalog(raw)
}

// ParseCatalog decodes a YAML catalog.
func ParseCatalog(raw []byte) (Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return Catalog{}, fmt.Errorf("decoding catalog: %w", err)
	}
	if len(c.Negative) == 0 || len(c.Positive) == 0 {
		return Catalog{}, ErrEmptyCatalog
	}
	return c, nil
}
