package model

import (
	"strings"
)

const (
	// DefaultMaxWidth is merged into a SizePolicy that leaves MaxWidth unset.
	DefaultMaxWidth = 1600
	// DefaultMaxHeight is merged into a SizePolicy that leaves MaxHeight unset.
	DefaultMaxHeight = 1600
)

// SizePolicy declares how one variant is sized. A zero Fixed* value means "not fixed".
type SizePolicy struct {
	MaxWidth    int `json:"max_width" yaml:"max_width" validate:"gte=0"`
	MaxHeight   int `json:"max_height" yaml:"max_height" validate:"gte=0"`
	FixedWidth  int `json:"fixed_width,omitempty" yaml:"fixed_width" validate:"gte=0"`
	FixedHeight int `json:"fixed_height,omitempty" yaml:"fixed_height" validate:"gte=0"`
}

// WithDefaults returns a copy with unset max dimensions replaced by the defaults.
func (p SizePolicy) WithDefaults() SizePolicy {
	if p.MaxWidth <= 0 {
		p.MaxWidth = DefaultMaxWidth
	}
	if p.MaxHeight <= 0 {
		p.MaxHeight = DefaultMaxHeight
	}
	return p
}

// VariantSchema describes one resized derivative of an attribute's image.
type VariantSchema struct {
	Key    string     `yaml:"key"`
	Name   string     `yaml:"name"`
	Policy SizePolicy `yaml:"size"`
}

// KeyName is the name used for the variant sub directory and the URL key suffix.
func (v VariantSchema) KeyName() string {
	if v.Name != "" {
		return v.Name
	}
	return v.Key
}

// AttributeSchema describes one image-bearing field of an entity type.
type AttributeSchema struct {
	Attribute  string          `yaml:"attribute" validate:"required"`
	SaveFolder string          `yaml:"save_folder"`
	Variants   []VariantSchema `yaml:"variants" validate:"required,min=1,dive"`
}

// EntitySchema is the image configuration of one entity type.
// Folder is derived from the entity short name when the schema is registered.
type EntitySchema struct {
	Entity     string            `yaml:"entity" validate:"required"`
	Folder     string            `yaml:"folder"`
	Attributes []AttributeSchema `yaml:"attributes" validate:"required,min=1,dive"`
}

// Attribute returns the schema of the named attribute.
func (s EntitySchema) Attribute(name string) (AttributeSchema, bool) {
	for _, a := range s.Attributes {
		if a.Attribute == name {
			return a, true
		}
	}
	return AttributeSchema{}, false
}

// ModelFolder returns the lower-first short name of an entity type,
// e.g. "shop.ProductImage" becomes "productImage".
func ModelFolder(entity string) string {
	short := entity
	if i := strings.LastIndexAny(short, `.\/`); i >= 0 {
		short = short[i+1:]
	}
	if short == "" {
		return ""
	}
	return strings.ToLower(short[:1]) + short[1:]
}

// UpperFirst capitalizes the first byte of s.
func UpperFirst(s string) string {
	if s == "" {
		return ""
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
