// binary.go - Elementweise binaere Operationen
// Enthaelt: binaryKernel, einfache und Broadcast-Schleifen
package kernel

import (
	"fmt"
	"strings"

	"github.com/tfmin/tfmin/graph"
	"github.com/tfmin/tfmin/template"
)

const maxBroadcastRank = 4

// binaryOperations maps operation types to their C expression over the
// operands a and b.
var binaryOperations = map[string]string{
	"Add":      "a + b",
	"Subtract": "a - b",
	"Multiply": "a * b",
	"Divide":   "a / b",
}

var simpleBinaryTemplate = template.New("binary_simple", `    for (int i = 0; i < ELEMENT_COUNT; ++i) {
      const D_TYPE a = (D_TYPE)input_0[i];
      const D_TYPE b = (D_TYPE)input_1[i];
      D_TYPE value = OPERATION;
      ACTIVATION_FN
      output_0[i] = value;
    }
`, "ELEMENT_COUNT", "D_TYPE", "OPERATION", "ACTIVATION_FN")

// broadcastTemplates holds the loop nest for each iteration rank.
var broadcastTemplates = func() map[int]*template.Template {
	m := make(map[int]*template.Template, maxBroadcastRank)
	for rank := 1; rank <= maxBroadcastRank; rank++ {
		m[rank] = broadcastTemplate(rank)
	}
	return m
}()

// broadcastTemplate builds a loop nest of the given rank that addresses
// each operand through its own coefficients.
func broadcastTemplate(rank int) *template.Template {
	placeholders := []string{"D_TYPE", "OPERATION", "ACTIVATION_FN", "A_BASE", "B_BASE", "OUT_BASE"}

	var sb strings.Builder
	indent := "    "
	index := func(coeff, base string) string {
		terms := make([]string, 0, rank+1)
		for k := range rank {
			terms = append(terms, fmt.Sprintf("i%d * %s_%d", k, coeff, k))
		}
		return strings.Join(append(terms, base), " + ")
	}

	for k := range rank {
		fmt.Fprintf(&sb, "%sfor (int i%d = 0; i%d < SIZE_%d; ++i%d) {\n", indent, k, k, k, k)
		indent += "  "
		placeholders = append(placeholders,
			fmt.Sprintf("SIZE_%d", k),
			fmt.Sprintf("A_COEFF_%d", k),
			fmt.Sprintf("B_COEFF_%d", k),
			fmt.Sprintf("OUT_COEFF_%d", k))
	}

	fmt.Fprintf(&sb, "%sconst D_TYPE a = (D_TYPE)input_0[%s];\n", indent, index("A_COEFF", "A_BASE"))
	fmt.Fprintf(&sb, "%sconst D_TYPE b = (D_TYPE)input_1[%s];\n", indent, index("B_COEFF", "B_BASE"))
	fmt.Fprintf(&sb, "%sD_TYPE value = OPERATION;\n", indent)
	fmt.Fprintf(&sb, "%sACTIVATION_FN\n", indent)
	fmt.Fprintf(&sb, "%soutput_0[%s] = value;\n", indent, index("OUT_COEFF", "OUT_BASE"))

	for range rank {
		indent = indent[:len(indent)-2]
		fmt.Fprintf(&sb, "%s}\n", indent)
	}

	return template.New(fmt.Sprintf("binary_broadcast_%d", rank), sb.String(), placeholders...)
}

// binaryPlan is the addressing of a binary operation. Simple plans use
// one flat loop over Elements; the Sizes and per-operand strides describe
// the broadcast loop nest and are always filled in.
type binaryPlan struct {
	Simple   bool
	Elements int

	Sizes                 []int
	A, B, Out             []int
	ABase, BBase, OutBase int
}

func planBinary(g *graph.Graph, op *graph.Operation, batch int) (binaryPlan, error) {
	a, b, out := g.Inputs(op)[0], g.Inputs(op)[1], g.Outputs(op)[0]
	sizes := out.Shape.Resolve(batch)
	if len(sizes) == 0 {
		sizes = graph.Shape{1}
	}

	for _, t := range []*graph.Tensor{a, b} {
		if err := broadcastable(t.Shape.Resolve(batch), sizes); err != nil {
			return binaryPlan{}, fmt.Errorf("%w: operand %q: %w", graph.ErrMalformedGraph, t.Label, err)
		}
	}

	p := binaryPlan{Sizes: sizes, Elements: sizes.Elements()}

	var err error
	rank := len(sizes)
	if p.A, p.ABase, err = Strides(a, rank, batch); err != nil {
		return p, err
	}
	if p.B, p.BBase, err = Strides(b, rank, batch); err != nil {
		return p, err
	}
	if p.Out, p.OutBase, err = Strides(out, rank, batch); err != nil {
		return p, err
	}

	p.Simple = a.Shape.Equal(b.Shape) && a.Shape.Equal(out.Shape) &&
		a.Contiguous() && b.Contiguous() && out.Contiguous()

	return p, nil
}

// broadcastable checks that every dimension of shape, aligned to the
// innermost dimensions of target, is either one or equal to the target's.
func broadcastable(shape, target graph.Shape) error {
	if len(shape) > len(target) {
		return fmt.Errorf("rank %d exceeds result rank %d", len(shape), len(target))
	}

	offset := len(target) - len(shape)
	for i, d := range shape {
		if d != 1 && d != target[offset+i] {
			return fmt.Errorf("shape %s does not broadcast to %s", shape, target)
		}
	}
	return nil
}

// binaryKernel lowers elementwise arithmetic on two operands. Equal,
// contiguous operands use a flat loop and everything else a broadcast
// loop nest.
type binaryKernel struct{}

func (binaryKernel) Name() string { return "binary_elementwise" }

func (binaryKernel) Description() string {
	return "Elementwise add, subtract, multiply & divide with broadcasting, strided layouts and fused activations"
}

func (binaryKernel) Status() Status { return StatusTesting }

func (binaryKernel) Matches(g *graph.Graph, op *graph.Operation) bool {
	if _, ok := binaryOperations[op.Type]; !ok || !arity(op, 2, 1) {
		return false
	}
	return g.Outputs(op)[0].Shape.Rank() <= maxBroadcastRank
}

func (binaryKernel) Dependencies(g *graph.Graph, op *graph.Operation) []string {
	return dependencies(g, op)
}

func (binaryKernel) Generate(g *graph.Graph, op *graph.Operation, batch int, prefix string) (string, error) {
	p, err := planBinary(g, op, batch)
	if err != nil {
		return "", err
	}

	dt, err := operandType(g.Inputs(op)...)
	if err != nil {
		return "", err
	}

	ct, err := dt.CType()
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedDataType, dt)
	}

	act, err := fusedActivation(op, dt)
	if err != nil {
		return "", err
	}

	values := template.Values{
		"D_TYPE":        ct,
		"OPERATION":     binaryOperations[op.Type],
		"ACTIVATION_FN": act,
	}

	tmpl := simpleBinaryTemplate
	if p.Simple {
		values["ELEMENT_COUNT"] = p.Elements
	} else {
		tmpl = broadcastTemplates[len(p.Sizes)]
		values["A_BASE"] = p.ABase
		values["B_BASE"] = p.BBase
		values["OUT_BASE"] = p.OutBase
		for k, size := range p.Sizes {
			values[fmt.Sprintf("SIZE_%d", k)] = size
			values[fmt.Sprintf("A_COEFF_%d", k)] = p.A[k]
			values[fmt.Sprintf("B_COEFF_%d", k)] = p.B[k]
			values[fmt.Sprintf("OUT_COEFF_%d", k)] = p.Out[k]
		}
	}

	decls, err := declareBuffers(g, op, batch, prefix)
	if err != nil {
		return "", err
	}

	body, err := tmpl.Render(values)
	if err != nil {
		return "", err
	}

	return wrap(op, decls, body), nil
}
