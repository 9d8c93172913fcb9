// layout.go - Adressierungskoeffizienten fuer Tensor-Layouts
// Enthaelt: Coefficients, Strides, Offset, Extent
package kernel

import (
	"fmt"

	"github.com/tfmin/tfmin/graph"
)

// Coefficients address a tensor through up to four logical dimensions:
// the element (i1,i2,i3,i4) lives at i1*C[0]+i2*C[1]+i3*C[2]+i4*C[3]+Base.
type Coefficients struct {
	C    [4]int
	Base int
}

// LayoutCoefficients derives the coefficients of t, whose dimensions are
// aligned to the last of the four logical dimensions.
func LayoutCoefficients(t *graph.Tensor, batch int) (Coefficients, error) {
	strides, base, err := Strides(t, 4, batch)
	if err != nil {
		return Coefficients{}, err
	}

	var c Coefficients
	copy(c.C[:], strides)
	c.Base = base
	return c, nil
}

// Strides returns one coefficient per logical dimension for addressing t
// inside an iteration space of the given rank, aligned to the innermost
// dimensions. Dimensions t does not have and dimensions of size one get
// coefficient zero so that they broadcast. Explicit layouts supply their
// own strides and base.
func Strides(t *graph.Tensor, rank, batch int) ([]int, int, error) {
	shape := t.Shape.Resolve(batch)
	if len(shape) > rank {
		return nil, 0, fmt.Errorf("tensor %q of rank %d does not fit %d dimensions", t.Label, len(shape), rank)
	}

	if t.Layout != nil && len(t.Layout.Strides) != len(shape) {
		return nil, 0, fmt.Errorf("tensor %q has %d layout strides for rank %d", t.Label, len(t.Layout.Strides), len(shape))
	}

	coeffs := make([]int, rank)
	offset := rank - len(shape)
	stride := 1
	for i := len(shape) - 1; i >= 0; i-- {
		if shape[i] < 1 {
			return nil, 0, fmt.Errorf("tensor %q has dimension %d of size %d", t.Label, i, shape[i])
		}

		if shape[i] > 1 {
			if t.Layout != nil {
				coeffs[offset+i] = t.Layout.Strides[i]
			} else {
				coeffs[offset+i] = stride
			}
		}
		stride *= shape[i]
	}

	base := 0
	if t.Layout != nil {
		base = t.Layout.Base
	}

	return coeffs, base, nil
}

// Offset evaluates the addressing function for a multi-index.
func Offset(coeffs []int, base int, index []int) int {
	off := base
	for i, c := range coeffs {
		off += index[i] * c
	}
	return off
}

// Extent returns the number of elements the storage of t spans, one past
// the largest offset its layout reaches. Dense tensors span their element
// count.
func Extent(t *graph.Tensor, batch int) (int, error) {
	shape := t.Shape.Resolve(batch)
	strides, base, err := Strides(t, len(shape), batch)
	if err != nil {
		return 0, err
	}

	lo, hi := base, base
	for i, s := range strides {
		span := (shape[i] - 1) * s
		if span < 0 {
			lo += span
		} else {
			hi += span
		}
	}

	if lo < 0 {
		return 0, fmt.Errorf("tensor %q layout reaches offset %d", t.Label, lo)
	}
	return hi + 1, nil
}
