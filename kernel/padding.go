package kernel

import (
	"fmt"

	"github.com/tfmin/tfmin/graph"
)

// Padding is the geometry of one spatial dimension of a windowed
// operation.
type Padding struct {
	Output int
	Before int
	After  int
}

// ComputePadding applies a padding policy to one dimension. SAME produces
// ceil(input/stride) outputs and splits the required padding with the
// smaller half before; VALID uses no padding and produces
// floor((input-filter)/stride)+1 outputs.
func ComputePadding(policy string, input, filter, stride int) (Padding, error) {
	if input <= 0 || filter <= 0 || stride <= 0 {
		return Padding{}, fmt.Errorf("invalid window: input %d, filter %d, stride %d", input, filter, stride)
	}

	switch policy {
	case graph.PaddingSame:
		out := (input + stride - 1) / stride
		total := max(0, (out-1)*stride+filter-input)
		return Padding{Output: out, Before: total / 2, After: total - total/2}, nil
	case graph.PaddingValid:
		if filter > input {
			return Padding{}, fmt.Errorf("filter %d larger than input %d with VALID padding", filter, input)
		}
		return Padding{Output: (input-filter)/stride + 1}, nil
	default:
		return Padding{}, fmt.Errorf("unknown padding policy %q", policy)
	}
}
