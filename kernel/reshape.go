package kernel

import (
	"fmt"

	"github.com/tfmin/tfmin/graph"
	"github.com/tfmin/tfmin/template"
)

var reshapeTemplate = template.New("reshape", `    for (int i = 0; i < ELEMENT_COUNT; ++i)
      output_0[i] = input_0[i];
`, "ELEMENT_COUNT")

// reshapeKernel copies a contiguous tensor into its reshaped output.
type reshapeKernel struct{}

func (reshapeKernel) Name() string { return "reshape" }

func (reshapeKernel) Description() string {
	return "Reshape between contiguous tensors as a flat element copy"
}

func (reshapeKernel) Status() Status { return StatusDevelopment }

func (reshapeKernel) Matches(g *graph.Graph, op *graph.Operation) bool {
	if op.Type != "Reshape" || !arity(op, 1, 1) {
		return false
	}

	in, out := g.Inputs(op)[0], g.Outputs(op)[0]
	return in.Contiguous() && out.Contiguous() && in.DType == out.DType
}

func (reshapeKernel) Dependencies(g *graph.Graph, op *graph.Operation) []string {
	return dependencies(g, op)
}

// ReshapeTarget resolves the shape param of a reshape of n elements,
// inferring at most one -1 dimension.
func ReshapeTarget(shape []int64, n int) (graph.Shape, error) {
	target := make(graph.Shape, len(shape))
	infer, known := -1, 1
	for i, d := range shape {
		switch {
		case d == -1 && infer < 0:
			infer = i
		case d == -1:
			return nil, fmt.Errorf("reshape %v infers more than one dimension", shape)
		case d < 0:
			return nil, fmt.Errorf("reshape %v has negative dimension", shape)
		default:
			target[i] = int(d)
			known *= int(d)
		}
	}

	if infer >= 0 {
		if known == 0 || n%known != 0 {
			return nil, fmt.Errorf("cannot reshape %d elements into %v", n, shape)
		}
		target[infer] = n / known
	} else if known != n {
		return nil, fmt.Errorf("cannot reshape %d elements into %v", n, shape)
	}

	return target, nil
}

func (reshapeKernel) Generate(g *graph.Graph, op *graph.Operation, batch int, prefix string) (string, error) {
	in, out := g.Inputs(op)[0], g.Outputs(op)[0]
	n := in.Shape.Resolve(batch).Elements()

	if p, ok := op.Params.Get("shape"); ok {
		target, err := ReshapeTarget(p.Ints(), n)
		if err != nil {
			return "", fmt.Errorf("%w: %w", graph.ErrMalformedGraph, err)
		}
		if got := out.Shape.Resolve(batch); !got.Equal(target) {
			return "", fmt.Errorf("%w: output %q has shape %s, reshape produces %s", graph.ErrMalformedGraph, out.Label, got, target)
		}
	} else if m := out.Shape.Resolve(batch).Elements(); m != n {
		return "", fmt.Errorf("%w: %q has %d elements, %q has %d", graph.ErrMalformedGraph, in.Label, n, out.Label, m)
	}

	decls, err := declareBuffers(g, op, batch, prefix)
	if err != nil {
		return "", err
	}

	body, err := reshapeTemplate.Render(template.Values{"ELEMENT_COUNT": n})
	if err != nil {
		return "", err
	}

	return wrap(op, decls, body), nil
}
