// tensor.go - Tensor-Entitaeten des Graph-IR
// Enthaelt: Kind, Shape, Layout, Tensor
package graph

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/tfmin/tfmin/dtype"
)

// TensorID addresses a tensor in its graph's arena.
type TensorID int

// Kind tags the role of a tensor in the exported graph.
type Kind int

const (
	Intermediate Kind = iota
	Input
	Output
	Constant
)

func (k Kind) String() string {
	switch k {
	case Intermediate:
		return "INTERMEDIATE"
	case Input:
		return "INPUT"
	case Output:
		return "OUTPUT"
	case Constant:
		return "CONSTANT"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Shape lists dimension sizes, outermost first. -1 marks an unknown
// dimension, usually the batch.
type Shape []int

func (s Shape) Rank() int {
	return len(s)
}

// Known reports whether every dimension has a size.
func (s Shape) Known() bool {
	return !slices.Contains(s, -1)
}

// Resolve returns a copy of s with every unknown dimension replaced by
// batch.
func (s Shape) Resolve(batch int) Shape {
	r := slices.Clone(s)
	for i, d := range r {
		if d == -1 {
			r[i] = batch
		}
	}

	return r
}

// Elements returns the element count, or -1 while a dimension is unknown.
func (s Shape) Elements() int {
	n := 1
	for _, d := range s {
		if d < 0 {
			return -1
		}
		n *= d
	}

	return n
}

func (s Shape) Equal(o Shape) bool {
	return slices.Equal(s, o)
}

func (s Shape) String() string {
	parts := make([]string, len(s))
	for i, d := range s {
		if d == -1 {
			parts[i] = "?"
		} else {
			parts[i] = strconv.Itoa(d)
		}
	}

	return "(" + strings.Join(parts, ",") + ")"
}

// Layout describes non default storage of a tensor. Strides are in
// elements, one per dimension, and Base is the offset of element zero.
// A nil Layout means dense row-major storage.
type Layout struct {
	Strides []int
	Base    int
}

// Tensor is a node of the IR. The graph owns it; operations refer to it by
// handle.
type Tensor struct {
	Label  string
	DType  dtype.DType
	Shape  Shape
	Kind   Kind
	Layout *Layout

	// Value holds the materialized data of a Constant tensor.
	Value *Value

	// Creator is the operation producing this tensor, NoOp for Input and
	// Constant tensors.
	Creator OpID

	// Consumers is the set of operations reading this tensor.
	Consumers []OpID
}

// IsLeaf reports whether the tensor has no creating operation by design.
func (t *Tensor) IsLeaf() bool {
	return t.Kind == Input || t.Kind == Constant
}

// Contiguous reports whether t is stored dense row-major from offset 0.
// An explicit layout over an unknown inner dimension cannot be, as its
// outer strides depend on the batch size.
func (t *Tensor) Contiguous() bool {
	if t.Layout == nil {
		return true
	}

	if t.Layout.Base != 0 || len(t.Layout.Strides) != len(t.Shape) {
		return false
	}

	stride := 1
	for i := len(t.Shape) - 1; i >= 0; i-- {
		if t.Shape[i] < 0 && i > 0 {
			return false
		}
		if t.Shape[i] != 1 && t.Layout.Strides[i] != stride {
			return false
		}
		stride *= t.Shape[i]
	}

	return true
}
