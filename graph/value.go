package graph

import (
	"fmt"

	"github.com/tfmin/tfmin/dtype"
)

// Value is the materialized content of a constant tensor, or of a
// parameter a front end passes as an input tensor. Float types fill
// Floats, integer types fill Ints, both in row-major order.
type Value struct {
	DType  dtype.DType
	Shape  Shape
	Floats []float64
	Ints   []int64
}

func (v *Value) Len() int {
	if v.DType.IsFloat() {
		return len(v.Floats)
	}

	return len(v.Ints)
}

// AsInts returns the value as integers, truncating floats.
func (v *Value) AsInts() []int64 {
	if !v.DType.IsFloat() {
		return v.Ints
	}

	ints := make([]int64, len(v.Floats))
	for i, f := range v.Floats {
		ints[i] = int64(f)
	}

	return ints
}

// Check verifies that the value holds as many elements as its shape says.
func (v *Value) Check() error {
	if n := v.Shape.Elements(); n >= 0 && n != v.Len() {
		return fmt.Errorf("value of shape %s holds %d elements", v.Shape, v.Len())
	}

	return nil
}
