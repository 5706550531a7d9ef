package datagen

import (
	"bytes"
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// Value is one generated field value.
type Value struct {
	Name  string
	Value any
}

// Record is one generated row with fields in declaration order.
type Record []Value

// Get returns the value of the named field.
func (r Record) Get(name string) (any, bool) {
	for _, v := range r {
		if v.Name == name {
			return v.Value, true
		}
	}
	return nil, false
}

// MarshalJSON writes the record as an object keeping field order.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, v := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(v.Name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(v.Value)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", v.Name, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalYAML writes the record as a mapping keeping field order.
func (r Record) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, v := range r {
		var val yaml.Node
		if err := val.Encode(v.Value); err != nil {
			return nil, fmt.Errorf("field %s: %w", v.Name, err)
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v.Name},
			&val,
		)
	}
	return node, nil
}

// Generator produces records from a document, one supplier per field.
type Generator struct {
	names     []string
	suppliers []Supplier
}

// NewGenerator builds every field's supplier up front. Construction errors abort
// the whole run.
func NewGenerator(ctx context.Context, doc *Document, loader *Loader) (*Generator, error) {
	g := &Generator{}
	for _, f := range doc.Fields {
		s, err := loader.GetFromSpec(ctx, f.Spec)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
		g.names = append(g.names, f.Name)
		g.suppliers = append(g.suppliers, s)
	}
	return g, nil
}

// Record generates the record for one iteration.
func (g *Generator) Record(ctx context.Context, iteration int) (Record, error) {
	rec := make(Record, 0, len(g.suppliers))
	for i, s := range g.suppliers {
		v, err := s.Next(ctx, iteration)
		if err != nil {
			return nil, fmt.Errorf("field %s, iteration %d: %w", g.names[i], iteration, err)
		}
		rec = append(rec, Value{Name: g.names[i], Value: v})
	}
	return rec, nil
}

// Generate runs iterations 0..n-1 in order and stops at the first error.
func (g *Generator) Generate(ctx context.Context, n int, fn func(Record) error) error {
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec, err := g.Record(ctx, i)
		if err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return nil
}
