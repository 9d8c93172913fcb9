// graph.go - Graph-Arena mit Label-Index
// Enthaelt: Graph, AddTensor, AddOperation, Zugriffsfunktionen
package graph

import (
	"fmt"
	"slices"
)

// Graph owns all tensors and operations of an exported model. Entities are
// addressed by integer handle and kept in insertion order; label indexes
// make add-if-absent and lookups O(1).
type Graph struct {
	tensors []*Tensor
	ops     []*Operation

	tensorIndex map[string]TensorID
	opIndex     map[string]OpID

	frozen bool
}

func New() *Graph {
	return &Graph{
		tensorIndex: make(map[string]TensorID),
		opIndex:     make(map[string]OpID),
	}
}

func (g *Graph) mutable() {
	if g.frozen {
		panic("graph: graph is frozen")
	}
}

// AddTensor adds t unless a tensor with the same label exists, in which
// case the existing handle is returned with added false. A tensor with a
// creator is appended to that operation's outputs.
func (g *Graph) AddTensor(t Tensor) (id TensorID, added bool, err error) {
	g.mutable()
	if id, ok := g.tensorIndex[t.Label]; ok {
		return id, false, nil
	}

	if t.Creator != NoOp && (t.Creator < 0 || int(t.Creator) >= len(g.ops)) {
		return 0, false, fmt.Errorf("%w: tensor %q created by unknown operation %d", ErrMalformedGraph, t.Label, t.Creator)
	}

	id = TensorID(len(g.tensors))
	nt := t
	nt.Shape = slices.Clone(t.Shape)
	nt.Consumers = nil
	g.tensors = append(g.tensors, &nt)
	g.tensorIndex[t.Label] = id

	if t.Creator != NoOp {
		op := g.ops[t.Creator]
		op.Outputs = append(op.Outputs, id)
	}

	return id, true, nil
}

// AddOperation adds an operation unless one with the same label exists.
// Its inputs must already be in the graph; each gains the operation as a
// consumer.
func (g *Graph) AddOperation(label, opType string, params *Params, inputs []TensorID) (id OpID, added bool, err error) {
	g.mutable()
	if id, ok := g.opIndex[label]; ok {
		return id, false, nil
	}

	for _, in := range inputs {
		if !g.validTensor(in) {
			return 0, false, fmt.Errorf("%w: operation %q reads unknown tensor %d", ErrMalformedGraph, label, in)
		}
	}

	if params == nil {
		params = NewParams(opType)
	}

	id = OpID(len(g.ops))
	g.ops = append(g.ops, &Operation{
		Label:  label,
		Type:   opType,
		Params: params,
		Inputs: slices.Clone(inputs),
	})
	g.opIndex[label] = id

	for _, in := range inputs {
		t := g.tensors[in]
		if !slices.Contains(t.Consumers, id) {
			t.Consumers = append(t.Consumers, id)
		}
	}

	return id, true, nil
}

func (g *Graph) validTensor(id TensorID) bool {
	return id >= 0 && int(id) < len(g.tensors)
}

func (g *Graph) validOp(id OpID) bool {
	return id >= 0 && int(id) < len(g.ops)
}

func (g *Graph) Tensor(id TensorID) *Tensor {
	return g.tensors[id]
}

func (g *Graph) Operation(id OpID) *Operation {
	return g.ops[id]
}

func (g *Graph) TensorByLabel(label string) (TensorID, bool) {
	id, ok := g.tensorIndex[label]
	return id, ok
}

func (g *Graph) OperationByLabel(label string) (OpID, bool) {
	id, ok := g.opIndex[label]
	return id, ok
}

// Tensors returns the tensors in insertion order. The slice must not be
// modified.
func (g *Graph) Tensors() []*Tensor {
	return g.tensors
}

// Operations returns the operations in insertion order. The slice must not
// be modified.
func (g *Graph) Operations() []*Operation {
	return g.ops
}

// Inputs resolves the input tensors of op.
func (g *Graph) Inputs(op *Operation) []*Tensor {
	ts := make([]*Tensor, len(op.Inputs))
	for i, id := range op.Inputs {
		ts[i] = g.tensors[id]
	}
	return ts
}

// Outputs resolves the output tensors of op.
func (g *Graph) Outputs(op *Operation) []*Tensor {
	ts := make([]*Tensor, len(op.Outputs))
	for i, id := range op.Outputs {
		ts[i] = g.tensors[id]
	}
	return ts
}

// TensorsOfKind returns the tensors tagged k in insertion order.
func (g *Graph) TensorsOfKind(k Kind) []*Tensor {
	var ts []*Tensor
	for _, t := range g.tensors {
		if t.Kind == k {
			ts = append(ts, t)
		}
	}
	return ts
}

// Freeze validates the graph and forbids further mutation.
func (g *Graph) Freeze() error {
	if err := Validate(g); err != nil {
		return err
	}

	g.frozen = true
	return nil
}

func (g *Graph) Frozen() bool {
	return g.frozen
}

// rewrite returns a copy of g without the dropped operations. Tensors keep
// their handles; operation handles are renumbered in order. edit may change
// each copied tensor.
func (g *Graph) rewrite(drop map[OpID]bool, edit func(id TensorID, t *Tensor) error) (*Graph, error) {
	ng := New()

	remap := make([]OpID, len(g.ops))
	for i, op := range g.ops {
		if drop[OpID(i)] {
			remap[i] = NoOp
			continue
		}

		remap[i] = OpID(len(ng.ops))
		ng.ops = append(ng.ops, &Operation{
			Label:   op.Label,
			Type:    op.Type,
			Params:  op.Params.clone(),
			Inputs:  slices.Clone(op.Inputs),
			Outputs: slices.Clone(op.Outputs),
		})
		ng.opIndex[op.Label] = remap[i]
	}

	for i, t := range g.tensors {
		nt := *t
		nt.Shape = slices.Clone(t.Shape)
		nt.Consumers = nil
		for _, c := range t.Consumers {
			if remap[c] != NoOp {
				nt.Consumers = append(nt.Consumers, remap[c])
			}
		}

		if t.Creator != NoOp {
			nt.Creator = remap[t.Creator]
		}

		if edit != nil {
			if err := edit(TensorID(i), &nt); err != nil {
				return nil, err
			}
		}

		ng.tensors = append(ng.tensors, &nt)
		ng.tensorIndex[nt.Label] = TensorID(i)
	}

	return ng, nil
}
