package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"imagevariants/internal/model"
)

// schemaFile is the YAML layout of the image schema catalog:
//
//	entities:
//	  - entity: shop.Product
//	    attributes:
//	      - attribute: photo
//	        variants:
//	          - key: thumb
//	            size: {fixed_width: 150}
//	          - key: full
//	            size: {max_width: 1600, max_height: 1600}
type schemaFile struct {
	Entities []model.EntitySchema `yaml:"entities"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// LoadSchemas reads and validates the schema catalog at path.
func LoadSchemas(path string) ([]model.EntitySchema, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open schema file: %w", err)
	}
	defer f.Close()
	return ParseSchemas(f)
}

// ParseSchemas decodes a schema catalog and fills derived fields.
// Invalid schemas are reported as model.ErrConfiguration.
func ParseSchemas(r io.Reader) ([]model.EntitySchema, error) {
	var doc schemaFile
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, model.ConfigError("decode schema catalog", err)
	}

	seen := map[string]bool{}
	for i := range doc.Entities {
		s := &doc.Entities[i]
		if err := ValidateSchema(s); err != nil {
			return nil, err
		}
		if seen[s.Entity] {
			return nil, model.ConfigError("register "+s.Entity, errors.New("duplicate entity"))
		}
		seen[s.Entity] = true
	}
	return doc.Entities, nil
}

// ValidateSchema checks s and derives its folder from the entity name when unset.
func ValidateSchema(s *model.EntitySchema) error {
	if err := validate.Struct(s); err != nil {
		return model.ConfigError("validate "+s.Entity, err)
	}
	if s.Folder == "" {
		s.Folder = model.ModelFolder(s.Entity)
	}
	attrs := map[string]bool{}
	for _, a := range s.Attributes {
		if attrs[a.Attribute] {
			return model.ConfigError("validate "+s.Entity, fmt.Errorf("duplicate attribute %q", a.Attribute))
		}
		attrs[a.Attribute] = true

		keys := map[string]bool{}
		for _, v := range a.Variants {
			if keys[v.Key] {
				return model.ConfigError("validate "+s.Entity, fmt.Errorf("duplicate variant %q of %q", v.Key, a.Attribute))
			}
			keys[v.Key] = true
		}
	}
	return nil
}
