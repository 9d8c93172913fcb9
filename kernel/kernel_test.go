package kernel

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/tfmin/tfmin/dtype"
	"github.com/tfmin/tfmin/graph"
)

// singleOp builds a frozen graph holding one operation that reads fresh
// input tensors and writes the given outputs.
func singleOp(t *testing.T, opType string, params map[string]graph.Param, inputs []graph.Tensor, outputs ...graph.Tensor) (*graph.Graph, *graph.Operation) {
	t.Helper()

	g := graph.New()
	ids := make([]graph.TensorID, 0, len(inputs))
	for _, in := range inputs {
		in.Kind = graph.Input
		in.Creator = graph.NoOp
		id, _, err := g.AddTensor(in)
		require.NoError(t, err)
		ids = append(ids, id)
	}

	p := graph.NewParams(opType)
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		require.NoError(t, p.Set(k, params[k]))
	}

	opID, _, err := g.AddOperation("op", opType, p, ids)
	require.NoError(t, err)

	for _, out := range outputs {
		out.Kind = graph.Output
		out.Creator = opID
		_, _, err := g.AddTensor(out)
		require.NoError(t, err)
	}

	require.NoError(t, g.Freeze())
	return g, g.Operation(opID)
}

func tensor(label string, dt dtype.DType, shape ...int) graph.Tensor {
	return graph.Tensor{Label: label, DType: dt, Shape: shape}
}

func poolParams(filter, stride int, padding string) map[string]graph.Param {
	return map[string]graph.Param{
		"filter_height": graph.Int(filter),
		"filter_width":  graph.Int(filter),
		"stride_height": graph.Int(stride),
		"stride_width":  graph.Int(stride),
		"padding":       graph.Enum(padding),
	}
}

func TestMaxPoolValid(t *testing.T) {
	g, op := singleOp(t, "MaxPool", poolParams(2, 2, graph.PaddingValid),
		[]graph.Tensor{tensor("x", dtype.Float32, 1, 4, 4, 3)},
		tensor("y", dtype.Float32, 1, 2, 2, 3))

	geo, err := computePoolGeometry(g, op, 1)
	require.NoError(t, err)
	require.Equal(t, Padding{Output: 2}, geo.height)
	require.Equal(t, Padding{Output: 2}, geo.width)
	require.Equal(t, [4]int{0, 12, 3, 1}, geo.input.C, "size one batch broadcasts")

	frag, err := Default().Lower(g, op, 1, "")
	require.NoError(t, err)
	require.Equal(t, "pooling", frag.Kernel)
	require.Equal(t, []string{"float.h"}, frag.Dependencies)

	for _, want := range []string{
		`  /* MaxPool "op" */`,
		"    const float *input_0 = x; /* (1,4,4,3) */",
		"    float *output_0 = y; /* (1,2,2,3) */",
		"out_y < 2;",
		"const int in_x_origin = (out_x * 2) - 0;",
		"float value = -FLT_MAX;",
		"if (input_value > value)",
	} {
		require.Contains(t, frag.Code, want)
	}
}

func TestPoolOutputShapeMismatch(t *testing.T) {
	g, op := singleOp(t, "MaxPool", poolParams(2, 2, graph.PaddingValid),
		[]graph.Tensor{tensor("x", dtype.Float32, 1, 4, 4, 3)},
		tensor("y", dtype.Float32, 1, 3, 3, 3))

	_, err := Default().Lower(g, op, 1, "")
	require.ErrorIs(t, err, graph.ErrMalformedGraph)

	var opErr *OpError
	require.ErrorAs(t, err, &opErr)
	require.Equal(t, "MaxPool", opErr.Type)
}

func TestAvgPoolInt8Same(t *testing.T) {
	g, op := singleOp(t, "AvgPool", poolParams(3, 1, graph.PaddingSame),
		[]graph.Tensor{tensor("x", dtype.Int8, 1, 5, 5, 1)},
		tensor("y", dtype.Int8, 1, 5, 5, 1))

	geo, err := computePoolGeometry(g, op, 1)
	require.NoError(t, err)
	require.Equal(t, Padding{Output: 5, Before: 1, After: 1}, geo.height)

	// window clamping as done by the generated code
	count := func(outY, outX int) int {
		extent := func(out, stride, pad, input, filter int) int {
			origin := out*stride - pad
			start := max(0, -origin)
			end := min(input-origin, filter)
			return end - start
		}
		return extent(outY, geo.strideHeight, geo.height.Before, geo.inHeight, geo.filterHeight) *
			extent(outX, geo.strideWidth, geo.width.Before, geo.inWidth, geo.filterWidth)
	}

	require.Equal(t, 4, count(0, 0))
	require.Equal(t, 4, count(4, 4))
	require.Equal(t, 6, count(0, 2))
	require.Equal(t, 9, count(2, 2))

	frag, err := Default().Lower(g, op, 1, "")
	require.NoError(t, err)
	require.Equal(t, []string{"stdint.h"}, frag.Dependencies)
	require.Contains(t, frag.Code, "int32_t sum = 0;")
	require.Contains(t, frag.Code, "int8_t value = (int8_t)(sum / ((filter_x_end - filter_x_start) * (filter_y_end - filter_y_start)));")
	require.Contains(t, frag.Code, "const int in_y_origin = (out_y * 1) - 1;")
}

func TestMinPoolActivation(t *testing.T) {
	params := poolParams(2, 2, graph.PaddingValid)
	params["fused_activation_fn"] = graph.Enum(graph.ActTanh)

	g, op := singleOp(t, "MinPool", params,
		[]graph.Tensor{tensor("x", dtype.Float64, 2, 4, 4, 1)},
		tensor("y", dtype.Float64, 2, 2, 2, 1))

	frag, err := Default().Lower(g, op, 1, "")
	require.NoError(t, err)
	require.Equal(t, []string{"float.h", "math.h"}, frag.Dependencies)
	require.Contains(t, frag.Code, "double value = DBL_MAX;")
	require.Contains(t, frag.Code, "if (input_value < value)")
	require.Contains(t, frag.Code, "value = tanh(value);")
}

func TestPoolBatchAndLayout(t *testing.T) {
	in := tensor("x", dtype.Float32, -1, 2, 2, 1)
	in.Layout = &graph.Layout{Strides: []int{8, 4, 2, 1}, Base: 1}

	g, op := singleOp(t, "MaxPool", poolParams(1, 1, graph.PaddingValid),
		[]graph.Tensor{in},
		tensor("y", dtype.Float32, -1, 2, 2, 1))

	geo, err := computePoolGeometry(g, op, 3)
	require.NoError(t, err)
	require.Equal(t, 3, geo.batches)
	require.Equal(t, Coefficients{C: [4]int{8, 4, 2, 0}, Base: 1}, geo.input)

	// the legacy kernel cannot address the strided input
	k, err := Default().Dispatch(g, op)
	require.NoError(t, err)
	require.Equal(t, "pooling", k.Name())
	require.False(t, legacyPoolKernel{}.Matches(g, op))
}

func TestLegacyPool(t *testing.T) {
	g, op := singleOp(t, "MaxPool", poolParams(2, 2, graph.PaddingValid),
		[]graph.Tensor{tensor("x", dtype.Float32, 1, 4, 4, 3)},
		tensor("y", dtype.Float32, 1, 2, 2, 3))

	frag, err := NewCatalogue(legacyPoolKernel{}).Lower(g, op, 1, "model_")
	require.NoError(t, err)
	require.Equal(t, "pooling_legacy", frag.Kernel)
	require.Contains(t, frag.Code, "const float *input_0 = model_x;")
	require.Contains(t, frag.Code, "input_0[((batch * 4 + in_y) * 4 + in_x) * 3 + channel]")

	same, sop := singleOp(t, "MaxPool", poolParams(2, 2, graph.PaddingSame),
		[]graph.Tensor{tensor("x", dtype.Float32, 1, 4, 4, 3)},
		tensor("y", dtype.Float32, 1, 2, 2, 3))
	require.False(t, legacyPoolKernel{}.Matches(same, sop))
}

func TestAddSimple(t *testing.T) {
	g, op := singleOp(t, "Add", nil,
		[]graph.Tensor{tensor("a", dtype.Float32, 10), tensor("b", dtype.Float32, 10)},
		tensor("c", dtype.Float32, 10))

	p, err := planBinary(g, op, 1)
	require.NoError(t, err)
	require.True(t, p.Simple)
	require.Equal(t, 10, p.Elements)

	frag, err := Default().Lower(g, op, 1, "")
	require.NoError(t, err)
	require.Equal(t, "binary_elementwise", frag.Kernel)
	require.Contains(t, frag.Code, "for (int i = 0; i < 10; ++i) {")
	require.Contains(t, frag.Code, "float value = a + b;")
	require.NotContains(t, frag.Code, "i0")
}

func TestMultiplyBroadcast(t *testing.T) {
	g, op := singleOp(t, "Multiply", nil,
		[]graph.Tensor{tensor("a", dtype.Float32, 5, 1), tensor("b", dtype.Float32, 5, 4)},
		tensor("c", dtype.Float32, 5, 4))

	p, err := planBinary(g, op, 1)
	require.NoError(t, err)
	require.False(t, p.Simple)
	if diff := cmp.Diff(binaryPlan{
		Elements: 20,
		Sizes:    graph.Shape{5, 4},
		A:        []int{1, 0},
		B:        []int{4, 1},
		Out:      []int{4, 1},
	}, p); diff != "" {
		t.Errorf("plan mismatch (-want +got):\n%s", diff)
	}

	frag, err := Default().Lower(g, op, 1, "")
	require.NoError(t, err)
	require.Contains(t, frag.Code, "for (int i1 = 0; i1 < 4; ++i1) {")
	require.Contains(t, frag.Code, "const float a = (float)input_0[i0 * 1 + i1 * 0 + 0];")
	require.Contains(t, frag.Code, "float value = a * b;")
	require.Contains(t, frag.Code, "output_0[i0 * 4 + i1 * 1 + 0] = value;")
}

func TestBinaryPromotion(t *testing.T) {
	g, op := singleOp(t, "Subtract", map[string]graph.Param{"fused_activation_fn": graph.Enum(graph.ActRelu)},
		[]graph.Tensor{tensor("a", dtype.Int8, 3), tensor("b", dtype.Float32, 3)},
		tensor("c", dtype.Float32, 3))

	frag, err := Default().Lower(g, op, 1, "")
	require.NoError(t, err)
	require.Equal(t, []string{"stdint.h", "float.h"}, frag.Dependencies)
	require.Contains(t, frag.Code, "const int8_t *input_0 = a_;")
	require.Contains(t, frag.Code, "const float a = (float)input_0[i];")
	require.Contains(t, frag.Code, "value = value > 0 ? value : 0;")
}

func TestBinaryErrors(t *testing.T) {
	t.Run("tanh on integers", func(t *testing.T) {
		g, op := singleOp(t, "Add", map[string]graph.Param{"fused_activation_fn": graph.Enum(graph.ActTanh)},
			[]graph.Tensor{tensor("a", dtype.Int32, 4), tensor("b", dtype.Int32, 4)},
			tensor("c", dtype.Int32, 4))

		_, err := Default().Lower(g, op, 1, "")
		require.ErrorIs(t, err, ErrUnsupportedDataType)

		var opErr *OpError
		require.ErrorAs(t, err, &opErr)
		require.Equal(t, "op", opErr.Label)
	})

	t.Run("unknown type", func(t *testing.T) {
		g, op := singleOp(t, "Add", nil,
			[]graph.Tensor{tensor("a", dtype.Unknown, 4), tensor("b", dtype.Float32, 4)},
			tensor("c", dtype.Float32, 4))

		_, err := Default().Lower(g, op, 1, "")
		require.ErrorIs(t, err, ErrUnsupportedDataType)
		require.ErrorContains(t, err, `tensor "a" has unknown type`)
	})

	t.Run("incompatible shapes", func(t *testing.T) {
		g, op := singleOp(t, "Add", nil,
			[]graph.Tensor{tensor("a", dtype.Float32, 3), tensor("b", dtype.Float32, 2, 4)},
			tensor("c", dtype.Float32, 2, 4))

		_, err := Default().Lower(g, op, 1, "")
		require.ErrorIs(t, err, graph.ErrMalformedGraph)
	})
}

func TestUnsupportedOperation(t *testing.T) {
	g, op := singleOp(t, "FooBar", nil,
		[]graph.Tensor{tensor("a", dtype.Float32, 3)},
		tensor("b", dtype.Float32, 3))

	_, err := Default().Dispatch(g, op)
	require.ErrorIs(t, err, ErrUnsupportedOperation)
	require.EqualError(t, err, `operation "op" (FooBar): unsupported operation "FooBar"`)

	_, err = Default().Lower(g, op, 1, "")
	require.ErrorIs(t, err, ErrUnsupportedOperation)
}

type fakeKernel struct {
	name   string
	status Status
}

func (k fakeKernel) Name() string                                { return k.name }
func (k fakeKernel) Description() string                         { return k.name }
func (k fakeKernel) Status() Status                              { return k.status }
func (k fakeKernel) Matches(*graph.Graph, *graph.Operation) bool { return true }

func (k fakeKernel) Dependencies(*graph.Graph, *graph.Operation) []string { return nil }

func (k fakeKernel) Generate(*graph.Graph, *graph.Operation, int, string) (string, error) {
	return k.name, nil
}

func TestDispatch(t *testing.T) {
	g, op := singleOp(t, "MaxPool", poolParams(2, 2, graph.PaddingValid),
		[]graph.Tensor{tensor("x", dtype.Float32, 1, 4, 4, 3)},
		tensor("y", dtype.Float32, 1, 2, 2, 3))

	require.True(t, legacyPoolKernel{}.Matches(g, op))
	require.True(t, poolKernel{}.Matches(g, op))

	cases := []struct {
		name    string
		cat     *Catalogue
		want    string
		wantErr error
	}{
		{"default prefers testing", Default(), "pooling", nil},
		{"registration order irrelevant", NewCatalogue(poolKernel{}, legacyPoolKernel{}), "pooling", nil},
		{"only legacy", NewCatalogue(legacyPoolKernel{}), "pooling_legacy", nil},
		{"tie keeps first", NewCatalogue(fakeKernel{"a", StatusTesting}, fakeKernel{"b", StatusTesting}), "a", nil},
		{"higher status wins", NewCatalogue(fakeKernel{"a", StatusDevelopment}, fakeKernel{"b", StatusProduction}), "b", nil},
		{"min status", Default().WithMinStatus(StatusProduction), "", ErrUnsupportedOperation},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			for range 5 {
				k, err := tt.cat.Dispatch(g, op)
				if tt.wantErr != nil {
					require.ErrorIs(t, err, tt.wantErr)
					continue
				}
				require.NoError(t, err)
				require.Equal(t, tt.want, k.Name())
			}
		})
	}
}

func TestParseStatus(t *testing.T) {
	for _, s := range []Status{StatusBase, StatusDevelopment, StatusTesting, StatusProduction} {
		got, err := ParseStatus(s.String())
		require.NoError(t, err)
		require.Equal(t, s, got)
	}

	got, err := ParseStatus("")
	require.NoError(t, err)
	require.Equal(t, StatusBase, got)

	_, err = ParseStatus("stable")
	require.Error(t, err)
}

func TestUnary(t *testing.T) {
	cases := []struct {
		opType string
		dt     dtype.DType
		code   string
		deps   []string
	}{
		{"Relu", dtype.Float32, "value = value > 0 ? value : 0;", []string{"float.h"}},
		{"Relu6", dtype.Int16, "value = value < 0 ? 0 : (value > 6 ? 6 : value);", []string{"stdint.h"}},
		{"Tanh", dtype.Float16, "value = (_Float16)tanhf((float)value);", []string{"float.h", "math.h"}},
		{"Identity", dtype.Int64, "int64_t value = input_0[i];", []string{"stdint.h"}},
	}

	for _, tt := range cases {
		t.Run(tt.opType, func(t *testing.T) {
			g, op := singleOp(t, tt.opType, nil,
				[]graph.Tensor{tensor("x", tt.dt, 2, 3)},
				tensor("y", tt.dt, 2, 3))

			frag, err := Default().Lower(g, op, 1, "")
			require.NoError(t, err)
			require.Equal(t, "unary_activation", frag.Kernel)
			require.Equal(t, tt.deps, frag.Dependencies)
			require.Contains(t, frag.Code, "for (int i = 0; i < 6; ++i) {")
			require.Contains(t, frag.Code, tt.code)
		})
	}

	g, op := singleOp(t, "Tanh", nil,
		[]graph.Tensor{tensor("x", dtype.Uint8, 4)},
		tensor("y", dtype.Uint8, 4))
	_, err := Default().Lower(g, op, 1, "")
	require.ErrorIs(t, err, ErrUnsupportedDataType)
}

func TestReshape(t *testing.T) {
	g, op := singleOp(t, "Reshape", map[string]graph.Param{"shape": graph.Ints(-1, 12)},
		[]graph.Tensor{tensor("x", dtype.Float32, -1, 2, 6)},
		tensor("y", dtype.Float32, -1, 12))

	for _, batch := range []int{1, 2, 3} {
		frag, err := Default().Lower(g, op, batch, "")
		require.NoError(t, err)
		require.Equal(t, "reshape", frag.Kernel)
		require.Contains(t, frag.Code, fmt.Sprintf("for (int i = 0; i < %d; ++i)", 12*batch))
	}

	g, op = singleOp(t, "Reshape", map[string]graph.Param{"shape": graph.Ints(4, -1)},
		[]graph.Tensor{tensor("x", dtype.Float32, -1, 2, 6)},
		tensor("y", dtype.Float32, -1, 12))

	_, err := Default().Lower(g, op, 2, "")
	require.ErrorIs(t, err, graph.ErrMalformedGraph)
}

func TestReshapeTarget(t *testing.T) {
	cases := []struct {
		shape   []int64
		n       int
		want    graph.Shape
		wantErr bool
	}{
		{[]int64{3, 4}, 12, graph.Shape{3, 4}, false},
		{[]int64{-1, 4}, 12, graph.Shape{3, 4}, false},
		{[]int64{2, -1, 2}, 12, graph.Shape{2, 3, 2}, false},
		{[]int64{5, -1}, 12, nil, true},
		{[]int64{-1, -1}, 12, nil, true},
		{[]int64{3, 5}, 12, nil, true},
		{[]int64{-2, 6}, 12, nil, true},
	}

	for _, tt := range cases {
		got, err := ReshapeTarget(tt.shape, tt.n)
		if tt.wantErr {
			require.Error(t, err, "%v", tt.shape)
			continue
		}
		require.NoError(t, err)
		require.Equal(t, tt.want, got)
	}
}

func TestIdentifier(t *testing.T) {
	cases := []struct {
		prefix, label, want string
	}{
		{"", "conv2d/BiasAdd:0", "conv2d_BiasAdd_0"},
		{"", "0input", "_0input"},
		{"net_", "0input", "net_0input"},
		{"", "dense-1", "dense_1"},
		{"", "input:0", "input_0_"},
		{"", "output_12", "output_12_"},
		{"", "input_x", "input_x"},
		{"", "value", "value_"},
		{"", "i", "i_"},
		{"", "i3", "i3_"},
		{"", "in", "in"},
		{"", "float", "float_"},
		{"net_", "input_0", "net_input_0"},
		{"input_", "7", "input_7_"},
	}

	for _, tt := range cases {
		if got := Identifier(tt.prefix, tt.label); got != tt.want {
			t.Errorf("Identifier(%q, %q) = %q, want %q", tt.prefix, tt.label, got, tt.want)
		}
	}
}

func TestActivationCode(t *testing.T) {
	code, err := activationCode(graph.ActReluN1To1, dtype.Uint8)
	require.NoError(t, err)
	require.Equal(t, "value = value > 1 ? 1 : value;", code)

	code, err = activationCode(graph.ActNone, dtype.Int8)
	require.NoError(t, err)
	require.Empty(t, code)

	_, err = activationCode(graph.ActTanh, dtype.Int32)
	require.ErrorIs(t, err, ErrUnsupportedDataType)

	_, err = activationCode("SIGMOID", dtype.Float32)
	require.Error(t, err)
	require.False(t, errors.Is(err, ErrUnsupportedDataType))
}

func TestWrap(t *testing.T) {
	op := &graph.Operation{Label: "add", Type: "Add"}
	got := wrap(op, "    decl;\n", "    body;")
	want := strings.Join([]string{
		`  /* Add "add" */`,
		"  {",
		"    decl;",
		"    body;",
		"  }",
		"",
	}, "\n")
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("wrap mismatch (-want +got):\n%s", diff)
	}

	op = &graph.Operation{Label: "block*/x = 1; /*", Type: "Add"}
	got = wrap(op, "", "    body;")
	header, _, _ := strings.Cut(got, "\n")
	require.Equal(t, `  /* Add "block*\/x = 1; /*" */`, header)
	require.Equal(t, 1, strings.Count(header, "*/"))
}
