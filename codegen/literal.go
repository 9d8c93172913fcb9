package codegen

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/x448/float16"

	"github.com/tfmin/tfmin/dtype"
	"github.com/tfmin/tfmin/graph"
	"github.com/tfmin/tfmin/kernel"
)

// initializer renders the value of a constant tensor as a C initializer
// list of size elements and returns the headers the literals need.
// Values are given row-major and placed at the offsets of the tensor's
// layout.
func initializer(t *graph.Tensor, batch, size int) (string, []string, error) {
	v := t.Value
	if v == nil {
		return "", nil, fmt.Errorf("%w: no value", graph.ErrMalformedGraph)
	}

	var lits []string
	var deps []string
	var zero string
	switch {
	case t.DType.IsFloat():
		floats := v.Floats
		if !v.DType.IsFloat() {
			floats = make([]float64, len(v.Ints))
			for i, n := range v.Ints {
				floats[i] = float64(n)
			}
		}

		for _, f := range floats {
			lit, special := floatLiteral(t.DType, f)
			if special {
				deps = []string{"math.h"}
			}
			lits = append(lits, lit)
		}
		zero, _ = floatLiteral(t.DType, 0)
	case t.DType.IsInteger():
		for _, n := range v.AsInts() {
			lit, err := intLiteral(t.DType, n)
			if err != nil {
				return "", nil, err
			}
			lits = append(lits, lit)
		}
		zero = "0"
	default:
		return "", nil, fmt.Errorf("%w: %s", kernel.ErrUnsupportedDataType, t.DType)
	}

	if t.Layout != nil {
		var err error
		if lits, err = scatter(t, batch, size, lits, zero); err != nil {
			return "", nil, err
		}
	}

	return strings.Join(lits, ", "), deps, nil
}

// scatter moves row-major literals to the storage offsets of t's layout.
// Offsets the layout skips hold zero.
func scatter(t *graph.Tensor, batch, size int, lits []string, zero string) ([]string, error) {
	shape := t.Shape.Resolve(batch)
	if n := max(1, shape.Elements()); len(lits) != n {
		return nil, fmt.Errorf("%w: %d values for %d elements", graph.ErrMalformedGraph, len(lits), n)
	}

	strides, base, err := kernel.Strides(t, len(shape), batch)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", graph.ErrMalformedGraph, err)
	}

	out := make([]string, size)
	index := make([]int, len(shape))
	for _, lit := range lits {
		off := kernel.Offset(strides, base, index)
		if out[off] != "" {
			return nil, fmt.Errorf("%w: layout maps two elements to offset %d", graph.ErrMalformedGraph, off)
		}
		out[off] = lit

		for k := len(index) - 1; k >= 0; k-- {
			index[k]++
			if index[k] < shape[k] {
				break
			}
			index[k] = 0
		}
	}

	for i := range out {
		if out[i] == "" {
			out[i] = zero
		}
	}
	return out, nil
}

// floatLiteral formats f as a literal of type dt. Half precision values
// are rounded to the nearest float16 first. special reports infinities
// and NaN, which need math.h.
func floatLiteral(dt dtype.DType, f float64) (lit string, special bool) {
	switch {
	case math.IsNaN(f):
		return "NAN", true
	case math.IsInf(f, 1):
		return "INFINITY", true
	case math.IsInf(f, -1):
		return "-INFINITY", true
	}

	bits := 32
	suffix := "f"
	switch dt {
	case dtype.Float16:
		f = float64(float16.Fromfloat32(float32(f)).Float32())
	case dtype.Float64:
		bits, suffix = 64, ""
	}

	s := strconv.FormatFloat(f, 'g', -1, bits)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s + suffix, false
}

// intLiteral formats n as a literal of type dt, failing when n is out of
// the type's range.
func intLiteral(dt dtype.DType, n int64) (string, error) {
	var lo, hi int64
	switch dt {
	case dtype.Uint8:
		lo, hi = 0, math.MaxUint8
	case dtype.Int8:
		lo, hi = math.MinInt8, math.MaxInt8
	case dtype.Int16:
		lo, hi = math.MinInt16, math.MaxInt16
	case dtype.Int32:
		lo, hi = math.MinInt32, math.MaxInt32
	case dtype.Int64:
		lo, hi = math.MinInt64, math.MaxInt64
	}

	if n < lo || n > hi {
		return "", fmt.Errorf("%d out of range for %s", n, dt)
	}

	if n == lo && lo != 0 {
		return dt.Lowest()
	}

	s := strconv.FormatInt(n, 10)
	if dt == dtype.Int64 {
		s += "LL"
	}
	return s, nil
}
