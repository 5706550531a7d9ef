package datagen

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// Format is a spec document encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// RefsKey is the top-level key holding named reference specs.
const RefsKey = "refs"

// Field is a named top-level field of a document.
type Field struct {
	Name string
	Spec any
}

// Document is a parsed spec file: fields in declaration order plus refs.
type Document struct {
	Fields []Field
	Refs   map[string]any
}

// FormatFromPath picks a format from a file extension, defaulting to JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".toml":
		return FormatTOML
	default:
		return FormatJSON
	}
}

// ParseDocument decodes a spec document.
func ParseDocument(data []byte, format Format) (*Document, error) {
	var (
		raw   map[string]any
		order []string
	)
	switch format {
	case FormatJSON, "":
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, WrapConfiguration(err, "parse json spec")
		}
		// JSON is valid YAML flow syntax, so the node tree gives declaration order.
		order = yamlKeyOrder(data)
	case FormatYAML:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, WrapConfiguration(err, "parse yaml spec")
		}
		order = yamlKeyOrder(data)
	case FormatTOML:
		md, err := toml.Decode(string(data), &raw)
		if err != nil {
			return nil, WrapConfiguration(err, "parse toml spec")
		}
		for _, key := range md.Keys() {
			if len(key) == 1 {
				order = append(order, key[0])
			}
		}
	default:
		return nil, Configurationf("unsupported spec format %q", format)
	}
	return newDocument(raw, order)
}

func newDocument(raw map[string]any, order []string) (*Document, error) {
	if raw == nil {
		return nil, Configurationf("spec document is empty")
	}
	doc := &Document{Refs: map[string]any{}}
	if refs, ok := raw[RefsKey]; ok {
		m, isMap := refs.(map[string]any)
		if !isMap {
			return nil, Configurationf("%s must be an object, got %T", RefsKey, refs)
		}
		doc.Refs = m
	}

	seen := make(map[string]bool, len(raw))
	add := func(name string) {
		if name == RefsKey || seen[name] {
			return
		}
		if spec, ok := raw[name]; ok {
			seen[name] = true
			doc.Fields = append(doc.Fields, Field{Name: name, Spec: spec})
		}
	}
	for _, name := range order {
		add(name)
	}
	// Anything the order pass missed is appended sorted.
	rest := make([]string, 0)
	for name := range raw {
		if !seen[name] && name != RefsKey {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	for _, name := range rest {
		add(name)
	}
	if len(doc.Fields) == 0 {
		return nil, Configurationf("spec document defines no fields")
	}
	return doc, nil
}

func yamlKeyOrder(data []byte) []string {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return nil
	}
	m := root.Content[0]
	if m.Kind != yaml.MappingNode {
		return nil
	}
	keys := make([]string, 0, len(m.Content)/2)
	for i := 0; i+1 < len(m.Content); i += 2 {
		keys = append(keys, m.Content[i].Value)
	}
	return keys
}

// String summarizes the document for logs.
func (d *Document) String() string {
	names := make([]string, len(d.Fields))
	for i, f := range d.Fields {
		names[i] = f.Name
	}
	return fmt.Sprintf("fields=%v refs=%d", names, len(d.Refs))
}
