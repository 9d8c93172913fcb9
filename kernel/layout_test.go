package kernel

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tfmin/tfmin/dtype"
	"github.com/tfmin/tfmin/graph"
)

// indices enumerates every multi-index of shape in row-major order.
func indices(shape graph.Shape) [][]int {
	var all [][]int
	index := make([]int, len(shape))
	for range shape.Elements() {
		all = append(all, append([]int(nil), index...))
		for k := len(index) - 1; k >= 0; k-- {
			index[k]++
			if index[k] < shape[k] {
				break
			}
			index[k] = 0
		}
	}
	return all
}

func TestStridesRoundTrip(t *testing.T) {
	cases := []struct {
		name   string
		shape  graph.Shape
		layout *graph.Layout
		span   int
	}{
		{"vector", graph.Shape{7}, nil, 7},
		{"matrix", graph.Shape{3, 4}, nil, 12},
		{"nhwc", graph.Shape{2, 3, 3, 2}, nil, 36},
		{"unit dims", graph.Shape{1, 5, 1, 2}, nil, 10},
		{"padded rows", graph.Shape{3, 4}, &graph.Layout{Strides: []int{6, 1}, Base: 2}, 2 + 2*6 + 4},
		{"transposed", graph.Shape{2, 3}, &graph.Layout{Strides: []int{1, 2}}, 6},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			tn := graph.Tensor{Label: "t", DType: dtype.Float32, Shape: tt.shape, Layout: tt.layout}
			coeffs, base, err := Strides(&tn, len(tt.shape), 1)
			require.NoError(t, err)

			extent, err := Extent(&tn, 1)
			require.NoError(t, err)
			require.Equal(t, tt.span, extent)

			seen := make(map[int][]int)
			for _, idx := range indices(tt.shape) {
				off := Offset(coeffs, base, idx)
				require.GreaterOrEqual(t, off, base)
				require.Less(t, off, tt.span)
				if prev, ok := seen[off]; ok {
					t.Fatalf("indices %v and %v alias offset %d", prev, idx, off)
				}
				seen[off] = idx
			}

			if tn.Contiguous() {
				require.Len(t, seen, tt.span, "contiguous tensors cover their span")
			}
		})
	}
}

func TestStridesBroadcast(t *testing.T) {
	tn := graph.Tensor{Label: "bias", DType: dtype.Float32, Shape: graph.Shape{3}}

	coeffs, base, err := Strides(&tn, 4, 1)
	require.NoError(t, err)
	require.Equal(t, []int{0, 0, 0, 1}, coeffs)
	require.Zero(t, base)

	c, err := LayoutCoefficients(&graph.Tensor{Label: "x", Shape: graph.Shape{-1, 2, 2, 3}}, 4)
	require.NoError(t, err)
	require.Equal(t, Coefficients{C: [4]int{12, 6, 3, 1}}, c)
}

func TestStridesErrors(t *testing.T) {
	cases := []struct {
		name string
		t    graph.Tensor
		rank int
	}{
		{"rank overflow", graph.Tensor{Label: "x", Shape: graph.Shape{1, 2, 3, 4, 5}}, 4},
		{"stride count", graph.Tensor{Label: "x", Shape: graph.Shape{2, 2}, Layout: &graph.Layout{Strides: []int{1}}}, 2},
		{"empty dimension", graph.Tensor{Label: "x", Shape: graph.Shape{0, 2}}, 2},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Strides(&tt.t, tt.rank, 1)
			require.Error(t, err)
		})
	}

	negative := graph.Tensor{Label: "x", Shape: graph.Shape{3}, Layout: &graph.Layout{Strides: []int{-1}, Base: 1}}
	_, err := Extent(&negative, 1)
	require.ErrorContains(t, err, "reaches offset -1")

	negative.Layout.Base = 2
	extent, err := Extent(&negative, 1)
	require.NoError(t, err)
	require.Equal(t, 3, extent)
}

func TestComputePadding(t *testing.T) {
	for input := 1; input <= 16; input++ {
		for filter := 1; filter <= input; filter++ {
			for stride := 1; stride <= 4; stride++ {
				same, err := ComputePadding(graph.PaddingSame, input, filter, stride)
				require.NoError(t, err)
				require.Equal(t, (input+stride-1)/stride, same.Output)
				require.LessOrEqual(t, same.Before, same.After)
				require.LessOrEqual(t, (same.Output-1)*stride+filter, input+same.Before+same.After)

				valid, err := ComputePadding(graph.PaddingValid, input, filter, stride)
				require.NoError(t, err)
				require.Equal(t, (input-filter)/stride+1, valid.Output)
				require.Zero(t, valid.Before+valid.After)
			}
		}
	}

	_, err := ComputePadding(graph.PaddingValid, 2, 3, 1)
	require.Error(t, err)

	_, err = ComputePadding(graph.PaddingSame, 4, 2, 0)
	require.Error(t, err)

	_, err = ComputePadding("REFLECT", 4, 2, 1)
	require.Error(t, err)
}
