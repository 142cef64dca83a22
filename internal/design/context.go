package design

import (
	"encoding/json"
	"strings"

	"github.com/imnotsalty/mlschatproto/internal/templates"
)

// Modification sets one template layer's value for a pending render.
type Modification struct {
	Name     string `json:"name"`
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

// Context accumulates the template choice and layer values for the design
// currently being built. One instance per conversation; callers are expected
// to serialize access per session.
type Context struct {
	TemplateUID   string         `json:"template_uid,omitempty"`
	Modifications []Modification `json:"modifications"`
}

// NewContext returns an empty design context.
func NewContext() *Context {
	return &Context{Modifications: []Modification{}}
}

// Started reports whether a template has been selected yet.
func (c *Context) Started() bool {
	return c.TemplateUID != ""
}

// Upsert merges modifications by layer name. A later value for the same name
// replaces the earlier one in place; first-appearance order is preserved for
// everything else.
func (c *Context) Upsert(mods ...Modification) {
	for _, mod := range mods {
		if strings.TrimSpace(mod.Name) == "" {
			continue
		}
		replaced := false
		for i, existing := range c.Modifications {
			if existing.Name == mod.Name {
				c.Modifications[i] = mod
				replaced = true
				break
			}
		}
		if !replaced {
			c.Modifications = append(c.Modifications, mod)
		}
	}
}

// Replace swaps the whole modification set, keeping upsert semantics for
// duplicates inside the incoming list.
func (c *Context) Replace(templateUID string, mods []Modification) {
	c.TemplateUID = templateUID
	c.Modifications = []Modification{}
	c.Upsert(mods...)
}

// Reset clears the template choice and all accumulated modifications.
func (c *Context) Reset() {
	c.TemplateUID = ""
	c.Modifications = []Modification{}
}

// Snapshot renders the context as indented JSON for inclusion in prompts.
func (c *Context) Snapshot() string {
	payload, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(payload)
}

// MissingTextLayers lists the text layers of the template that none of the
// given modifications cover. Matching is case-insensitive on layer name.
func MissingTextLayers(tmpl templates.Template, mods []Modification) []string {
	covered := make(map[string]struct{}, len(mods))
	for _, mod := range mods {
		covered[strings.ToLower(mod.Name)] = struct{}{}
	}

	var missing []string
	for _, layer := range tmpl.Layers {
		if !layer.IsText() {
			continue
		}
		if _, ok := covered[strings.ToLower(layer.Name)]; !ok {
			missing = append(missing, layer.Name)
		}
	}
	return missing
}
