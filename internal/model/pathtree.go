package model

import "strings"

// VariantPaths is the resolved location of one variant of an attribute.
type VariantPaths struct {
	Key       string     `json:"key"`
	Dir       string     `json:"dir"`
	URLSuffix string     `json:"url_suffix"`
	Policy    SizePolicy `json:"policy"`
}

// AttributePaths is the resolved location of one image attribute and its variants.
// Variants keep schema order.
type AttributePaths struct {
	Attribute string         `json:"attribute"`
	Dir       string         `json:"dir"`
	Variants  []VariantPaths `json:"variants"`
}

// PathTree is the storage and URL layout of one entity type.
// It is built once and must be treated as read-only afterwards.
//
// StorageRoot and PublicURLRoot end with a slash; attribute and variant directories are
// relative to both. PublishedDir is the aliased directory that contains StorageRoot.
type PathTree struct {
	Entity        string           `json:"entity"`
	StorageRoot   string           `json:"storage_root"`
	PublicURLRoot string           `json:"public_url_root"`
	PublishedDir  string           `json:"-"`
	Attributes    []AttributePaths `json:"attributes"`
}

// Attribute returns the paths of the named attribute.
func (t *PathTree) Attribute(name string) (AttributePaths, bool) {
	for _, a := range t.Attributes {
		if a.Attribute == name {
			return a, true
		}
	}
	return AttributePaths{}, false
}

// URLKey is the key under which a variant URL is published for a record.
func URLKey(attribute string, v VariantPaths) string {
	return strings.ToLower(attribute) + v.URLSuffix
}
