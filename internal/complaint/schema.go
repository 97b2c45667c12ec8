package complaint

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"complaintsync/internal/property"
)

//go:embed schema.yaml
var defaultSchema []byte

// PageField locates one column's value in a page's property bag.
type PageField struct {
	Label string        `yaml:"label"`
	Kind  property.Kind `yaml:"kind"`
}

// PageID locates the unique id property. The stored id is Prefix + value.
type PageID struct {
	Label  string        `yaml:"label"`
	Kind   property.Kind `yaml:"kind"`
	Prefix string        `yaml:"prefix"`
}

// PageProfile maps live pages onto the table.
type PageProfile struct {
	ID     PageID               `yaml:"id"`
	Fields map[string]PageField `yaml:"fields"`
}

// ExportProfile maps CSV export headers onto the table. Export ids are taken verbatim.
type ExportProfile struct {
	ID      string            `yaml:"id"`
	Created string            `yaml:"created"`
	Edited  string            `yaml:"edited"`
	Fields  map[string]string `yaml:"fields"`
}

// Schema holds both source profiles.
type Schema struct {
	Page   PageProfile   `yaml:"page"`
	Export ExportProfile `yaml:"export"`
}

// DefaultSchema returns the built-in schema.
func DefaultSchema() (*Schema, error) {
	return ParseSchema(defaultSchema)
}

// LoadSchema reads a schema file, or the built-in schema when path is empty.
func LoadSchema(path string) (*Schema, error) {
	if path == "" {
		return DefaultSchema()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema %s: %w", path, err)
	}
	s, err := ParseSchema(data)
	if err != nil {
		return nil, fmt.Errorf("schema %s: %w", path, err)
	}
	return s, nil
}

// ParseSchema decodes and validates a YAML schema. Unknown property kinds
// fail here, at load time.
func ParseSchema(data []byte) (*Schema, error) {
	var s Schema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse schema: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks that every key names a known column and every page field has a kind.
func (s *Schema) Validate() error {
	if s.Page.ID.Label == "" {
		return fmt.Errorf("page.id.label is required")
	}
	if s.Page.ID.Kind == 0 {
		return fmt.Errorf("page.id.kind is required")
	}
	for _, key := range sortedKeys(s.Page.Fields) {
		if _, ok := ColumnByKey(key); !ok {
			return fmt.Errorf("page.fields: unknown column %q", key)
		}
		f := s.Page.Fields[key]
		if f.Label == "" || f.Kind == 0 {
			return fmt.Errorf("page.fields.%s: label and kind are required", key)
		}
	}

	if s.Export.ID == "" {
		return fmt.Errorf("export.id is required")
	}
	for _, key := range sortedKeys(s.Export.Fields) {
		if _, ok := ColumnByKey(key); !ok {
			return fmt.Errorf("export.fields: unknown column %q", key)
		}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
