package kernel

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"

	"github.com/tfmin/tfmin/dtype"
	"github.com/tfmin/tfmin/graph"
)

var binaryFuncs = map[string]func(a, b float64) float64{
	"Add":      func(a, b float64) float64 { return a + b },
	"Subtract": func(a, b float64) float64 { return a - b },
	"Multiply": func(a, b float64) float64 { return a * b },
	"Divide":   func(a, b float64) float64 { return a / b },
}

// evalSimple runs the flat loop of the simple template.
func evalSimple(p binaryPlan, f func(a, b float64) float64, a, b []float64) []float64 {
	out := make([]float64, p.Elements)
	for i := range p.Elements {
		out[i] = f(a[i], b[i])
	}
	return out
}

// evalBroadcast runs the loop nest of the broadcast template over buffers
// addressed through the plan's coefficients.
func evalBroadcast(p binaryPlan, f func(a, b float64) float64, a, b []float64, outLen int) []float64 {
	out := make([]float64, outLen)
	index := make([]int, len(p.Sizes))
	for range p.Elements {
		av := a[Offset(p.A, p.ABase, index)]
		bv := b[Offset(p.B, p.BBase, index)]
		out[Offset(p.Out, p.OutBase, index)] = f(av, bv)

		for k := len(index) - 1; k >= 0; k-- {
			index[k]++
			if index[k] < p.Sizes[k] {
				break
			}
			index[k] = 0
		}
	}
	return out
}

func sample(r *rand.Rand, n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		// keep divisors away from zero
		s[i] = 0.5 + r.Float64()*10
		if r.IntN(2) == 0 {
			s[i] = -s[i]
		}
	}
	return s
}

func TestBinaryStrategiesEquivalent(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	shapes := []graph.Shape{{1}, {10}, {3, 4}, {2, 3, 4}, {2, 1, 3, 5}, {1, 4, 4, 3}}

	for opType, f := range binaryFuncs {
		for _, shape := range shapes {
			t.Run(opType+shape.String(), func(t *testing.T) {
				g, op := singleOp(t, opType, nil,
					[]graph.Tensor{tensor("a", dtype.Float64, shape...), tensor("b", dtype.Float64, shape...)},
					tensor("c", dtype.Float64, shape...))

				p, err := planBinary(g, op, 1)
				require.NoError(t, err)
				require.True(t, p.Simple)

				for range 8 {
					a, b := sample(r, p.Elements), sample(r, p.Elements)
					simple := evalSimple(p, f, a, b)
					broadcast := evalBroadcast(p, f, a, b, p.Elements)
					require.True(t, floats.Equal(simple, broadcast), "simple %v, broadcast %v", simple, broadcast)
				}
			})
		}
	}
}

func TestBinaryBroadcastReference(t *testing.T) {
	r := rand.New(rand.NewPCG(3, 4))

	g, op := singleOp(t, "Multiply", nil,
		[]graph.Tensor{tensor("a", dtype.Float32, 5, 1), tensor("b", dtype.Float32, 5, 4)},
		tensor("c", dtype.Float32, 5, 4))

	p, err := planBinary(g, op, 1)
	require.NoError(t, err)

	a, b := sample(r, 5), sample(r, 20)
	want := make([]float64, 20)
	for i := range 5 {
		for j := range 4 {
			want[i*4+j] = a[i] * b[i*4+j]
		}
	}

	got := evalBroadcast(p, binaryFuncs["Multiply"], a, b, 20)
	require.True(t, floats.EqualApprox(want, got, 1e-12))
}

func TestBinaryStridedOperand(t *testing.T) {
	// a is stored transposed with a leading pad element
	a := tensor("a", dtype.Float64, 2, 3)
	a.Layout = &graph.Layout{Strides: []int{1, 2}, Base: 1}

	g, op := singleOp(t, "Add", nil,
		[]graph.Tensor{a, tensor("b", dtype.Float64, 2, 3)},
		tensor("c", dtype.Float64, 2, 3))

	p, err := planBinary(g, op, 1)
	require.NoError(t, err)
	require.False(t, p.Simple)

	// logical a is [[1 2 3] [4 5 6]]
	abuf := []float64{-1, 1, 4, 2, 5, 3, 6}
	b := []float64{10, 20, 30, 40, 50, 60}

	got := evalBroadcast(p, binaryFuncs["Add"], abuf, b, 6)
	require.True(t, floats.Equal([]float64{11, 22, 33, 44, 55, 66}, got), "got %v", got)
}
