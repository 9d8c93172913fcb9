package kernel

import (
	"fmt"

	"github.com/tfmin/tfmin/graph"
	"github.com/tfmin/tfmin/template"
)

// legacyPoolTemplate reads the input without padding through row-major
// NHWC indexing.
var legacyPoolTemplate = template.New("legacy_max_pool", `    for (int batch = 0; batch < BATCHES; ++batch) {
      for (int out_y = 0; out_y < OUTPUT_HEIGHT; ++out_y) {
        for (int out_x = 0; out_x < OUTPUT_WIDTH; ++out_x) {
          for (int channel = 0; channel < DEPTH; ++channel) {
            D_TYPE value = LOWEST;
            for (int filter_y = 0; filter_y < FILTER_HEIGHT; ++filter_y) {
              for (int filter_x = 0; filter_x < FILTER_WIDTH; ++filter_x) {
                const int in_y = out_y * STRIDE_HEIGHT + filter_y;
                const int in_x = out_x * STRIDE_WIDTH + filter_x;
                const D_TYPE input_value = input_0[((batch * INPUT_HEIGHT + in_y) * INPUT_WIDTH + in_x) * DEPTH + channel];
                if (input_value > value)
                  value = input_value;
              }
            }
            output_0[((batch * OUTPUT_HEIGHT + out_y) * OUTPUT_WIDTH + out_x) * DEPTH + channel] = value;
          }
        }
      }
    }
`, "BATCHES", "DEPTH", "INPUT_HEIGHT", "INPUT_WIDTH", "OUTPUT_HEIGHT", "OUTPUT_WIDTH",
	"STRIDE_HEIGHT", "STRIDE_WIDTH", "FILTER_HEIGHT", "FILTER_WIDTH", "D_TYPE", "LOWEST")

// legacyPoolKernel is the first max pooling kernel. It only handles
// unpadded, contiguous tensors without a fused activation and is kept
// below poolKernel in status.
type legacyPoolKernel struct{}

func (legacyPoolKernel) Name() string { return "pooling_legacy" }

func (legacyPoolKernel) Description() string {
	return "Max pooling without padding or activation on contiguous NHWC tensors"
}

func (legacyPoolKernel) Status() Status { return StatusDevelopment }

func (legacyPoolKernel) Matches(g *graph.Graph, op *graph.Operation) bool {
	if op.Type != "MaxPool" || !arity(op, 1, 1) {
		return false
	}

	in, out := g.Inputs(op)[0], g.Outputs(op)[0]
	if in.Shape.Rank() != 4 || out.Shape.Rank() != 4 || !in.Contiguous() || !out.Contiguous() {
		return false
	}

	return op.Params.Enum("padding", graph.PaddingValid) == graph.PaddingValid &&
		op.Params.Enum("fused_activation_fn", graph.ActNone) == graph.ActNone
}

func (legacyPoolKernel) Dependencies(g *graph.Graph, op *graph.Operation) []string {
	return dependencies(g, op)
}

func (legacyPoolKernel) Generate(g *graph.Graph, op *graph.Operation, batch int, prefix string) (string, error) {
	in, out := g.Inputs(op)[0], g.Outputs(op)[0]
	inShape, outShape := in.Shape.Resolve(batch), out.Shape.Resolve(batch)

	ct, err := cType(in)
	if err != nil {
		return "", err
	}

	lowest, err := in.DType.Lowest()
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnsupportedDataType, err)
	}

	decls, err := declareBuffers(g, op, batch, prefix)
	if err != nil {
		return "", err
	}

	body, err := legacyPoolTemplate.Render(template.Values{
		"BATCHES":       inShape[0],
		"INPUT_HEIGHT":  inShape[1],
		"INPUT_WIDTH":   inShape[2],
		"DEPTH":         inShape[3],
		"OUTPUT_HEIGHT": outShape[1],
		"OUTPUT_WIDTH":  outShape[2],
		"STRIDE_HEIGHT": op.Params.Int("stride_height", 1),
		"STRIDE_WIDTH":  op.Params.Int("stride_width", 1),
		"FILTER_HEIGHT": op.Params.Int("filter_height", 1),
		"FILTER_WIDTH":  op.Params.Int("filter_width", 1),
		"D_TYPE":        ct,
		"LOWEST":        lowest,
	})
	if err != nil {
		return "", err
	}

	return wrap(op, decls, body), nil
}
