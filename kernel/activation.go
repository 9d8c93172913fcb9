package kernel

import (
	"fmt"

	"github.com/tfmin/tfmin/dtype"
	"github.com/tfmin/tfmin/graph"
)

// activationCode returns the C statement applying a fused activation to
// the variable named value of type dt, or "" for NONE.
func activationCode(kind string, dt dtype.DType) (string, error) {
	switch kind {
	case "", graph.ActNone:
		return "", nil
	case graph.ActRelu:
		return "value = value > 0 ? value : 0;", nil
	case graph.ActRelu6:
		return "value = value < 0 ? 0 : (value > 6 ? 6 : value);", nil
	case graph.ActReluN1To1:
		if dt == dtype.Uint8 {
			return "value = value > 1 ? 1 : value;", nil
		}
		return "value = value < -1 ? -1 : (value > 1 ? 1 : value);", nil
	case graph.ActTanh:
		switch dt {
		case dtype.Float32:
			return "value = tanhf(value);", nil
		case dtype.Float64:
			return "value = tanh(value);", nil
		case dtype.Float16:
			return "value = (_Float16)tanhf((float)value);", nil
		default:
			return "", fmt.Errorf("%w: %s activation on %s", ErrUnsupportedDataType, kind, dt)
		}
	default:
		return "", fmt.Errorf("unknown activation function %q", kind)
	}
}

// fusedActivation returns the activation statement for op's
// fused_activation_fn parameter.
func fusedActivation(op *graph.Operation, dt dtype.DType) (string, error) {
	return activationCode(op.Params.Enum("fused_activation_fn", graph.ActNone), dt)
}
