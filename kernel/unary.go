package kernel

import (
	"fmt"
	"slices"

	"github.com/tfmin/tfmin/graph"
	"github.com/tfmin/tfmin/template"
)

// unaryActivations maps standalone activation operations to the fused
// activation they apply.
var unaryActivations = map[string]string{
	"Relu":     graph.ActRelu,
	"Relu6":    graph.ActRelu6,
	"Tanh":     graph.ActTanh,
	"Identity": graph.ActNone,
}

var unaryTemplate = template.New("unary", `    for (int i = 0; i < ELEMENT_COUNT; ++i) {
      D_TYPE value = input_0[i];
      ACTIVATION_FN
      output_0[i] = value;
    }
`, "ELEMENT_COUNT", "D_TYPE", "ACTIVATION_FN")

// unaryKernel applies an activation function elementwise over
// contiguous tensors.
type unaryKernel struct{}

func (unaryKernel) Name() string { return "unary_activation" }

func (unaryKernel) Description() string {
	return "Standalone relu, relu6, tanh & identity over contiguous tensors"
}

func (unaryKernel) Status() Status { return StatusDevelopment }

func (unaryKernel) Matches(g *graph.Graph, op *graph.Operation) bool {
	if _, ok := unaryActivations[op.Type]; !ok || !arity(op, 1, 1) {
		return false
	}

	in, out := g.Inputs(op)[0], g.Outputs(op)[0]
	return in.Contiguous() && out.Contiguous() && in.DType == out.DType
}

func (unaryKernel) Dependencies(g *graph.Graph, op *graph.Operation) []string {
	deps := dependencies(g, op)
	if unaryActivations[op.Type] == graph.ActTanh && !slices.Contains(deps, "math.h") {
		deps = append(deps, "math.h")
	}
	return deps
}

func (unaryKernel) Generate(g *graph.Graph, op *graph.Operation, batch int, prefix string) (string, error) {
	in, out := g.Inputs(op)[0], g.Outputs(op)[0]

	n := in.Shape.Resolve(batch).Elements()
	if m := out.Shape.Resolve(batch).Elements(); m != n {
		return "", fmt.Errorf("%w: %q has %d elements, %q has %d", graph.ErrMalformedGraph, in.Label, n, out.Label, m)
	}

	ct, err := cType(in)
	if err != nil {
		return "", err
	}

	act, err := activationCode(unaryActivations[op.Type], in.DType)
	if err != nil {
		return "", err
	}

	decls, err := declareBuffers(g, op, batch, prefix)
	if err != nil {
		return "", err
	}

	body, err := unaryTemplate.Render(template.Values{
		"ELEMENT_COUNT": n,
		"D_TYPE":        ct,
		"ACTIVATION_FN": act,
	})
	if err != nil {
		return "", err
	}

	return wrap(op, decls, body), nil
}
