// pooling.go - Pooling-Kernel (Max, Min, Average)
// Enthaelt: poolKernel mit Padding, Layout-Koeffizienten und Aktivierung
package kernel

import (
	"fmt"
	"slices"

	"github.com/tfmin/tfmin/graph"
	"github.com/tfmin/tfmin/template"
)

var poolTypes = []string{"MaxPool", "MinPool", "AvgPool"}

const poolWindow = `    for (int batch = 0; batch < BATCHES; ++batch) {
      for (int out_y = 0; out_y < OUTPUT_HEIGHT; ++out_y) {
        for (int out_x = 0; out_x < OUTPUT_WIDTH; ++out_x) {
          for (int channel = 0; channel < DEPTH; ++channel) {
            const int in_x_origin = (out_x * STRIDE_WIDTH) - PADDING_WIDTH;
            const int in_y_origin = (out_y * STRIDE_HEIGHT) - PADDING_HEIGHT;
            /* clamp the filter window to the input */
            const int filter_x_start = in_x_origin > 0 ? 0 : -in_x_origin;
            const int filter_x_end = (INPUT_WIDTH - in_x_origin < FILTER_WIDTH) ? INPUT_WIDTH - in_x_origin : FILTER_WIDTH;
            const int filter_y_start = in_y_origin > 0 ? 0 : -in_y_origin;
            const int filter_y_end = (INPUT_HEIGHT - in_y_origin < FILTER_HEIGHT) ? INPUT_HEIGHT - in_y_origin : FILTER_HEIGHT;
`

const poolLoad = `                const int in_x = in_x_origin + filter_x;
                const int in_y = in_y_origin + filter_y;
                const D_TYPE input_value = input_0[batch * INPUT_D1_COEFF +
                                                   in_y * INPUT_D2_COEFF +
                                                   in_x * INPUT_D3_COEFF +
                                                   channel * INPUT_D4_COEFF +
                                                   INPUT_D_BASE];
`

const poolStore = `            ACTIVATION_FN
            output_0[batch * OUTPUT_D1_COEFF +
                     out_y * OUTPUT_D2_COEFF +
                     out_x * OUTPUT_D3_COEFF +
                     channel * OUTPUT_D4_COEFF +
                     OUTPUT_D_BASE] = value;
          }
        }
      }
    }
`

var poolPlaceholders = []string{
	"BATCHES", "DEPTH", "INPUT_HEIGHT", "INPUT_WIDTH", "OUTPUT_HEIGHT", "OUTPUT_WIDTH",
	"STRIDE_HEIGHT", "STRIDE_WIDTH", "PADDING_HEIGHT", "PADDING_WIDTH",
	"FILTER_HEIGHT", "FILTER_WIDTH", "D_TYPE", "ACTIVATION_FN",
	"INPUT_D1_COEFF", "INPUT_D2_COEFF", "INPUT_D3_COEFF", "INPUT_D4_COEFF", "INPUT_D_BASE",
	"OUTPUT_D1_COEFF", "OUTPUT_D2_COEFF", "OUTPUT_D3_COEFF", "OUTPUT_D4_COEFF", "OUTPUT_D_BASE",
}

var extremumPoolTemplate = template.New("extremum_pool", poolWindow+
	`            D_TYPE value = EXTREMUM_INITIAL;
            for (int filter_y = filter_y_start; filter_y < filter_y_end; ++filter_y) {
              for (int filter_x = filter_x_start; filter_x < filter_x_end; ++filter_x) {
`+poolLoad+
	`                if (EXTREMUM_COMPARISON)
                  value = input_value;
              }
            }
`+poolStore,
	append(slices.Clone(poolPlaceholders), "EXTREMUM_INITIAL", "EXTREMUM_COMPARISON")...)

var averagePoolTemplate = template.New("average_pool", poolWindow+
	`            ACC_TYPE sum = 0;
            for (int filter_y = filter_y_start; filter_y < filter_y_end; ++filter_y) {
              for (int filter_x = filter_x_start; filter_x < filter_x_end; ++filter_x) {
`+poolLoad+
	`                sum += input_value;
              }
            }
            /* divide by the clamped window, not the filter area */
            D_TYPE value = (D_TYPE)(sum / ((filter_x_end - filter_x_start) * (filter_y_end - filter_y_start)));
`+poolStore,
	append(slices.Clone(poolPlaceholders), "ACC_TYPE")...)

// poolKernel lowers NHWC max, min and average pooling with SAME or VALID
// padding, arbitrary layouts and a fused activation.
type poolKernel struct{}

func (poolKernel) Name() string { return "pooling" }

func (poolKernel) Description() string {
	return "Pooling op kernel, supports min, max & average pooling with padding, strided layouts and fused activations"
}

func (poolKernel) Status() Status { return StatusTesting }

func (poolKernel) Matches(g *graph.Graph, op *graph.Operation) bool {
	return slices.Contains(poolTypes, op.Type) && arity(op, 1, 1) &&
		g.Inputs(op)[0].Shape.Rank() == 4 && g.Outputs(op)[0].Shape.Rank() == 4
}

func (poolKernel) Dependencies(g *graph.Graph, op *graph.Operation) []string {
	return dependencies(g, op)
}

// poolGeometry is the resolved shape information of a pooling operation.
type poolGeometry struct {
	batches, depth            int
	inHeight, inWidth         int
	filterHeight, filterWidth int
	strideHeight, strideWidth int
	height, width             Padding
	input, output             Coefficients
}

func computePoolGeometry(g *graph.Graph, op *graph.Operation, batch int) (poolGeometry, error) {
	in, out := g.Inputs(op)[0], g.Outputs(op)[0]
	inShape := in.Shape.Resolve(batch)

	geo := poolGeometry{
		batches:      inShape[0],
		inHeight:     inShape[1],
		inWidth:      inShape[2],
		depth:        inShape[3],
		filterHeight: op.Params.Int("filter_height", 1),
		filterWidth:  op.Params.Int("filter_width", 1),
		strideHeight: op.Params.Int("stride_height", 1),
		strideWidth:  op.Params.Int("stride_width", 1),
	}

	policy := op.Params.Enum("padding", graph.PaddingValid)

	var err error
	if geo.height, err = ComputePadding(policy, geo.inHeight, geo.filterHeight, geo.strideHeight); err != nil {
		return geo, fmt.Errorf("height: %w", err)
	}
	if geo.width, err = ComputePadding(policy, geo.inWidth, geo.filterWidth, geo.strideWidth); err != nil {
		return geo, fmt.Errorf("width: %w", err)
	}

	want := graph.Shape{geo.batches, geo.height.Output, geo.width.Output, geo.depth}
	if got := out.Shape.Resolve(batch); !got.Equal(want) {
		return geo, fmt.Errorf("%w: output %q has shape %s, pooling produces %s", graph.ErrMalformedGraph, out.Label, got, want)
	}

	if geo.input, err = LayoutCoefficients(in, batch); err != nil {
		return geo, err
	}
	if geo.output, err = LayoutCoefficients(out, batch); err != nil {
		return geo, err
	}

	return geo, nil
}

func (poolKernel) Generate(g *graph.Graph, op *graph.Operation, batch int, prefix string) (string, error) {
	in := g.Inputs(op)[0]

	geo, err := computePoolGeometry(g, op, batch)
	if err != nil {
		return "", err
	}

	dt := in.DType
	ct, err := cType(in)
	if err != nil {
		return "", err
	}

	act, err := fusedActivation(op, dt)
	if err != nil {
		return "", err
	}

	values := template.Values{
		"BATCHES":         geo.batches,
		"DEPTH":           geo.depth,
		"INPUT_HEIGHT":    geo.inHeight,
		"INPUT_WIDTH":     geo.inWidth,
		"OUTPUT_HEIGHT":   geo.height.Output,
		"OUTPUT_WIDTH":    geo.width.Output,
		"STRIDE_HEIGHT":   geo.strideHeight,
		"STRIDE_WIDTH":    geo.strideWidth,
		"PADDING_HEIGHT":  geo.height.Before,
		"PADDING_WIDTH":   geo.width.Before,
		"FILTER_HEIGHT":   geo.filterHeight,
		"FILTER_WIDTH":    geo.filterWidth,
		"D_TYPE":          ct,
		"ACTIVATION_FN":   act,
		"INPUT_D1_COEFF":  geo.input.C[0],
		"INPUT_D2_COEFF":  geo.input.C[1],
		"INPUT_D3_COEFF":  geo.input.C[2],
		"INPUT_D4_COEFF":  geo.input.C[3],
		"INPUT_D_BASE":    geo.input.Base,
		"OUTPUT_D1_COEFF": geo.output.C[0],
		"OUTPUT_D2_COEFF": geo.output.C[1],
		"OUTPUT_D3_COEFF": geo.output.C[2],
		"OUTPUT_D4_COEFF": geo.output.C[3],
		"OUTPUT_D_BASE":   geo.output.Base,
	}

	tmpl := extremumPoolTemplate
	switch op.Type {
	case "MaxPool":
		if values["EXTREMUM_INITIAL"], err = dt.Lowest(); err != nil {
			return "", fmt.Errorf("%w: %w", ErrUnsupportedDataType, err)
		}
		values["EXTREMUM_COMPARISON"] = "input_value > value"
	case "MinPool":
		if values["EXTREMUM_INITIAL"], err = dt.Highest(); err != nil {
			return "", fmt.Errorf("%w: %w", ErrUnsupportedDataType, err)
		}
		values["EXTREMUM_COMPARISON"] = "input_value < value"
	case "AvgPool":
		tmpl = averagePoolTemplate
		acc := dt
		if dt.IsInteger() {
			acc = dt.HigherRange()
		}
		if values["ACC_TYPE"], err = acc.CType(); err != nil {
			return "", fmt.Errorf("%w: %w", ErrUnsupportedDataType, err)
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
