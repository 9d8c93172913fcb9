// Package importer - JSON-Quellgraph als Frontend fuer den Graph-Builder
// Hauptfunktionen: Load, Decode, Model (implementiert graph.Source)
package importer

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"slices"
	"strconv"

	"github.com/tfmin/tfmin/dtype"
	"github.com/tfmin/tfmin/graph"
)

var (
	// ErrFormat is returned for documents that are not a valid source graph.
	ErrFormat = errors.New("invalid source graph")

	// ErrNotConstant is returned when resolving a tensor without a value.
	ErrNotConstant = errors.New("tensor is not constant")
)

// document is the on-disk form of a source graph.
type document struct {
	Outputs    []string    `json:"outputs"`
	Tensors    []tensorDoc `json:"tensors"`
	Operations []opDoc     `json:"operations"`
}

type tensorDoc struct {
	Name  string        `json:"name"`
	DType string        `json:"dtype"`
	Shape []int         `json:"shape"`
	Op    string        `json:"op"`
	Value []json.Number `json:"value,omitempty"`
}

type opDoc struct {
	Name    string                     `json:"name"`
	Type    string                     `json:"type"`
	Attrs   map[string]json.RawMessage `json:"attrs,omitempty"`
	Inputs  []string                   `json:"inputs"`
	Outputs []string                   `json:"outputs"`
}

// Model is a source graph read from JSON.
type Model struct {
	outputs []string
	tensors map[string]tensorDoc
	ops     map[string]graph.SourceOp
	names   []string
}

// Load reads the source graph stored as name in fsys.
func Load(fsys fs.FS, name string) (*Model, error) {
	f, err := fsys.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	slog.Debug("loaded source graph", "file", name, "tensors", len(m.tensors), "operations", len(m.ops))
	return m, nil
}

// Decode reads a source graph from r.
func Decode(r io.Reader) (*Model, error) {
	var doc document
	d := json.NewDecoder(r)
	d.UseNumber()
	d.DisallowUnknownFields()
	if err := d.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFormat, err)
	}

	m := &Model{
		outputs: doc.Outputs,
		tensors: make(map[string]tensorDoc, len(doc.Tensors)),
		ops:     make(map[string]graph.SourceOp, len(doc.Operations)),
	}

	for _, t := range doc.Tensors {
		if t.Name == "" {
			return nil, fmt.Errorf("%w: tensor without name", ErrFormat)
		}
		if _, ok := m.tensors[t.Name]; ok {
			return nil, fmt.Errorf("%w: duplicate tensor %q", ErrFormat, t.Name)
		}
		m.tensors[t.Name] = t
		m.names = append(m.names, t.Name)
	}
	slices.Sort(m.names)

	for _, o := range doc.Operations {
		if o.Name == "" {
			return nil, fmt.Errorf("%w: operation without name", ErrFormat)
		}
		if _, ok := m.ops[o.Name]; ok {
			return nil, fmt.Errorf("%w: duplicate operation %q", ErrFormat, o.Name)
		}

		attrs, err := decodeAttrs(o.Attrs)
		if err != nil {
			return nil, fmt.Errorf("%w: operation %q: %w", ErrFormat, o.Name, err)
		}

		for _, out := range o.Outputs {
			t, ok := m.tensors[out]
			if !ok {
				return nil, fmt.Errorf("%w: operation %q writes undeclared tensor %q", ErrFormat, o.Name, out)
			}
			if t.Op != o.Name {
				return nil, fmt.Errorf("%w: tensor %q is produced by %q, not %q", ErrFormat, out, t.Op, o.Name)
			}
		}

		m.ops[o.Name] = graph.SourceOp{
			Name:    o.Name,
			Type:    o.Type,
			Attrs:   attrs,
			Inputs:  o.Inputs,
			Outputs: o.Outputs,
		}
	}

	for _, name := range m.names {
		if op := m.tensors[name].Op; op != "" {
			if _, ok := m.ops[op]; !ok {
				return nil, fmt.Errorf("%w: tensor %q names unknown operation %q", ErrFormat, name, op)
			}
		}
	}

	return m, nil
}

// decodeAttrs converts raw attribute values to the types graph.SourceOp
// documents: strings, booleans, integers, floats and integer lists.
func decodeAttrs(raw map[string]json.RawMessage) (map[string]any, error) {
	attrs := make(map[string]any, len(raw))
	for k, msg := range raw {
		var s string
		var b bool
		var n json.Number
		var list []int64

		switch {
		case json.Unmarshal(msg, &s) == nil:
			attrs[k] = s
		case json.Unmarshal(msg, &b) == nil:
			attrs[k] = b
		case json.Unmarshal(msg, &list) == nil:
			attrs[k] = list
		case json.Unmarshal(msg, &n) == nil:
			if i, err := n.Int64(); err == nil {
				attrs[k] = i
			} else if f, err := n.Float64(); err == nil {
				attrs[k] = f
			} else {
				return nil, fmt.Errorf("attribute %q: %w", k, err)
			}
		default:
			return nil, fmt.Errorf("attribute %q has unsupported value %s", k, msg)
		}
	}
	return attrs, nil
}

// Outputs returns the outputs the document declares.
func (m *Model) Outputs() []string {
	return slices.Clone(m.outputs)
}

func (m *Model) Tensor(name string) (graph.SourceTensor, bool) {
	t, ok := m.tensors[name]
	if !ok {
		return graph.SourceTensor{}, false
	}
	return graph.SourceTensor{Name: t.Name, DType: t.DType, Shape: slices.Clone(t.Shape), Op: t.Op}, true
}

func (m *Model) Operation(name string) (graph.SourceOp, bool) {
	op, ok := m.ops[name]
	return op, ok
}

func (m *Model) TensorNames() []string {
	return slices.Clone(m.names)
}

// Resolve returns the value stored with a tensor.
func (m *Model) Resolve(name string) (*graph.Value, error) {
	t, ok := m.tensors[name]
	if !ok || t.Value == nil {
		return nil, fmt.Errorf("%w: %q", ErrNotConstant, name)
	}

	v := &graph.Value{DType: dtype.FromHost(t.DType), Shape: slices.Clone(t.Shape)}
	for i, n := range t.Value {
		if v.DType.IsFloat() {
			f, err := n.Float64()
			if err != nil {
				return nil, fmt.Errorf("%w: tensor %q element %d: %w", ErrFormat, name, i, err)
			}
			v.Floats = append(v.Floats, f)
			continue
		}

		x, err := strconv.ParseInt(n.String(), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: tensor %q element %d: %w", ErrFormat, name, i, err)
		}
		v.Ints = append(v.Ints, x)
	}

	return v, nil
}
