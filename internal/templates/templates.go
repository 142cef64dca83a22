package templates

import (
	"strings"
)

// Layer is one editable region of a template, identified by name.
type Layer struct {
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

// IsText reports whether the layer holds text rather than an image. Services
// that omit the type are treated as text, which is what they default to.
func (l Layer) IsText() bool {
	t := strings.ToLower(strings.TrimSpace(l.Type))
	return t == "" || t == "text"
}

// Template is a predefined visual layout with named editable layers.
// Immutable once loaded from the catalog.
type Template struct {
	UID    string  `json:"uid"`
	Name   string  `json:"name"`
	Layers []Layer `json:"elements"`
}

// HasLayer reports whether the template contains a layer with the given name,
// compared case-insensitively.
func (t Template) HasLayer(name string) bool {
	for _, layer := range t.Layers {
		if strings.EqualFold(layer.Name, name) {
			return true
		}
	}
	return false
}

// Category is the coarse intent bucket used to prune the template search space.
type Category string

const (
	CategoryJustListed Category = "just_listed"
	CategoryJustSold   Category = "just_sold"
	CategoryOpenHouse  Category = "open_house"
	CategoryGeneralAd  Category = "general_property_ad"
	CategoryOther      Category = "other"
)

// Categories lists every value the classifier may return.
func Categories() []Category {
	return []Category{CategoryJustListed, CategoryJustSold, CategoryOpenHouse, CategoryGeneralAd, CategoryOther}
}

// ParseCategory maps free text onto a known category, defaulting to the
// general property ad bucket.
func ParseCategory(raw string) Category {
	value := Category(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range Categories() {
		if value == known {
			return known
		}
	}
	return CategoryGeneralAd
}

// categoryKeywords maps a category to the substring looked for in template
// display names. Categories without a keyword never prune the catalog.
var categoryKeywords = map[Category]string{
	CategoryJustListed: "listed",
	CategoryJustSold:   "sold",
	CategoryOpenHouse:  "open house",
}

// Catalog is the full template list, loaded once and shared read-only.
type Catalog []Template

// ByUID returns the template with the given uid.
func (c Catalog) ByUID(uid string) (Template, bool) {
	for _, tmpl := range c {
		if tmpl.UID == uid {
			return tmpl, true
		}
	}
	return Template{}, false
}

// FilterByCategory narrows the catalog to templates whose display name
// contains the category keyword. When the category carries no keyword, or no
// template matches, the full catalog is returned so the caller always has
// candidates to map against.
func (c Catalog) FilterByCategory(cat Category) Catalog {
	keyword, ok := categoryKeywords[cat]
	if !ok || keyword == "" {
		return c
	}

	var matched Catalog
	for _, tmpl := range c {
		if strings.Contains(strings.ToLower(tmpl.Name), keyword) {
			matched = append(matched, tmpl)
		}
	}
	if len(matched) == 0 {
		return c
	}
	return matched
}
