// passes.go - Nachbearbeitung des IR nach dem Aufbau
// Enthaelt: MarkOutputs, MarkInputs, MarkWeights
package graph

import (
	"fmt"
	"log/slog"
	"slices"
)

// Operation types that become leaf tensors.
var (
	inputOpTypes  = []string{"Placeholder", "PlaceholderWithDefault"}
	weightOpTypes = []string{"Const", "Variable", "VariableV2", "VarHandleOp"}
)

// MarkOutputs tags the given tensors as graph outputs.
func MarkOutputs(g *Graph, ids ...TensorID) *Graph {
	g.mutable()
	for _, id := range ids {
		g.tensors[id].Kind = Output
	}
	return g
}

// MarkInputs returns a graph in which the outputs of placeholder operations
// are INPUT tensors and the placeholder operations are gone.
func MarkInputs(g *Graph) (*Graph, error) {
	drop := make(map[OpID]bool)
	for i, op := range g.ops {
		if slices.Contains(inputOpTypes, op.Type) {
			drop[OpID(i)] = true
		}
	}

	ng, err := g.rewrite(drop, func(_ TensorID, t *Tensor) error {
		if t.Creator == NoOp && t.Kind != Input && t.Kind != Constant && isDropped(g, t, drop) {
			t.Kind = Input
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Debug("marked inputs", "operations", len(drop))
	return ng, nil
}

// MarkWeights returns a graph in which the outputs of constant and variable
// operations are CONSTANT tensors carrying the value resolve returns, and
// those operations are gone.
func MarkWeights(g *Graph, resolve func(label string) (*Value, error)) (*Graph, error) {
	drop := make(map[OpID]bool)
	for i, op := range g.ops {
		if slices.Contains(weightOpTypes, op.Type) {
			drop[OpID(i)] = true
		}
	}

	ng, err := g.rewrite(drop, func(_ TensorID, t *Tensor) error {
		if t.Creator != NoOp || t.Kind == Input || t.Kind == Constant || !isDropped(g, t, drop) {
			return nil
		}

		v, err := resolve(t.Label)
		if err != nil {
			return fmt.Errorf("resolving weights %q: %w", t.Label, err)
		}

		if err := v.Check(); err != nil {
			return fmt.Errorf("%w: weights %q: %w", ErrMalformedGraph, t.Label, err)
		}

		t.Kind = Constant
		t.Value = v
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Debug("marked weights", "operations", len(drop))
	return ng, nil
}

// isDropped reports whether the original creator of t is in drop.
func isDropped(g *Graph, t *Tensor, drop map[OpID]bool) bool {
	id, ok := g.tensorIndex[t.Label]
	if !ok {
		return false
	}

	creator := g.tensors[id].Creator
	return creator != NoOp && drop[creator]
}
