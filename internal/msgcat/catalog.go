// Package msgcat holds the player-facing texts of live games. Defaults are
// embedded; a directory of YAML files may replace individual entries.
package msgcat

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"text/template"

	yaml "gopkg.in/yaml.v3"
)

//go:embed messages.en.yaml
var defaults []byte

// Catalog maps dotted keys ("session.joined.white") to parsed templates. It
// is immutable after New.
type Catalog struct {
	tpl map[string]*template.Template
}

// New parses the embedded texts, applies every *.yaml / *.yml file in
// overrideDir (if set) in name order and checks that each of required is
// present. Overrides may only replace known keys, and two override files may
// not set the same key.
func New(overrideDir string, required ...string) (*Catalog, error) {
	texts := map[string]string{}
	if err := flatten(defaults, texts); err != nil {
		return nil, fmt.Errorf("embedded messages: %w", err)
	}
	if dir := strings.TrimSpace(overrideDir); dir != "" {
		if err := applyOverrides(dir, texts); err != nil {
			return nil, err
		}
	}

	c := &Catalog{tpl: make(map[string]*template.Template, len(texts))}
	for key, text := range texts {
		t, err := template.New(key).Option("missingkey=error").Parse(text)
		if err != nil {
			return nil, fmt.Errorf("message %s: %w", key, err)
		}
		c.tpl[key] = t
	}
	for _, key := range required {
		if _, ok := c.tpl[key]; !ok {
			return nil, fmt.Errorf("message %s is missing", key)
		}
	}
	return c, nil
}

func applyOverrides(dir string, texts map[string]string) error {
	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("message dir: %w", err)
	}
	matches, err := filepath.Glob(filepath.Join(dir, "*.y*ml"))
	if err != nil {
		return err
	}
	slices.Sort(matches)
	from := map[string]string{} // key -> override file that set it
	for _, path := range matches {
		if ext := filepath.Ext(path); ext != ".yaml" && ext != ".yml" {
			continue
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		over := map[string]string{}
		if err := flatten(raw, over); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		for key, text := range over {
			if _, ok := texts[key]; !ok {
				return fmt.Errorf("%s: unknown message %s", filepath.Base(path), key)
			}
			if prev, dup := from[key]; dup {
				return fmt.Errorf("message %s set by both %s and %s", key, filepath.Base(prev), filepath.Base(path))
			}
			from[key] = path
			texts[key] = text
		}
	}
	return nil
}

// flatten decodes a YAML document of nested mappings with string leaves into
// dotted keys.
func flatten(raw []byte, out map[string]string) error {
	var doc yaml.Node
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return err
	}
	if len(doc.Content) == 0 {
		return nil
	}
	return walk(doc.Content[0], nil, out)
}

func walk(n *yaml.Node, path []string, out map[string]string) error {
	switch n.Kind {
	case yaml.MappingNode:
		for i := 0; i+1 < len(n.Content); i += 2 {
			if err := walk(n.Content[i+1], append(path, n.Content[i].Value), out); err != nil {
				return err
			}
		}
		return nil
	case yaml.ScalarNode:
		if len(path) == 0 {
			return fmt.Errorf("line %d: text without a key", n.Line)
		}
		out[strings.Join(path, ".")] = n.Value
		return nil
	default:
		return fmt.Errorf("line %d: %s must be a mapping or a string", n.Line, strings.Join(path, "."))
	}
}

// Render executes the template for key. Unknown keys and missing data fields
// are errors.
func (c *Catalog) Render(key string, data any) (string, error) {
	t, ok := c.tpl[key]
	if !ok {
		return "", fmt.Errorf("message %s is missing", key)
	}
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", err
	}
	return b.String(), nil
}

// Text is Render that yields the key itself on failure, so a notification is
// never empty. A nil catalog always yields the key.
func (c *Catalog) Text(key string, data any) string {
	if c == nil {
		return key
	}
	s, err := c.Render(key, data)
	if err != nil {
		return key
	}
	return s
}
