// base.go - Gemeinsame Kernel-Funktionen
// Enthaelt: Puffer-Deklarationen, C-Bezeichner, Abhaengigkeiten
package kernel

import (
	"fmt"
	"slices"
	"strings"

	"github.com/tfmin/tfmin/dtype"
	"github.com/tfmin/tfmin/graph"
)

// reservedNames are the block locals of the kernel templates, the C
// keywords and the header names generated code refers to. A buffer
// identifier must not shadow any of them.
var reservedNames = map[string]bool{
	"a": true, "b": true, "value": true, "input_value": true, "sum": true,
	"batch": true, "channel": true, "out_x": true, "out_y": true,
	"in_x": true, "in_y": true, "in_x_origin": true, "in_y_origin": true,
	"filter_x": true, "filter_y": true,
	"filter_x_start": true, "filter_x_end": true,
	"filter_y_start": true, "filter_y_end": true,

	"auto": true, "break": true, "case": true, "char": true, "const": true,
	"continue": true, "default": true, "do": true, "double": true, "else": true,
	"enum": true, "extern": true, "float": true, "for": true, "goto": true,
	"if": true, "inline": true, "int": true, "long": true, "register": true,
	"restrict": true, "return": true, "short": true, "signed": true,
	"sizeof": true, "static": true, "struct": true, "switch": true,
	"typedef": true, "union": true, "unsigned": true, "void": true,
	"volatile": true, "while": true,

	"tanh": true, "tanhf": true, "NAN": true, "INFINITY": true,
	"FLT_MAX": true, "DBL_MAX": true,
	"int8_t": true, "uint8_t": true, "int16_t": true, "int32_t": true, "int64_t": true,
}

// reserved reports whether id is taken by generated code: a name of
// reservedNames, a kernel pointer input_N or output_N, or a loop
// counter iN.
func reserved(id string) bool {
	if reservedNames[id] {
		return true
	}

	for _, p := range []string{"input_", "output_", "i"} {
		if n, ok := strings.CutPrefix(id, p); ok && digits(n, p == "i") {
			return true
		}
	}
	return false
}

func digits(s string, allowEmpty bool) bool {
	if s == "" {
		return allowEmpty
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Identifier returns the C identifier of the buffer holding a tensor.
// Names reserved by generated code get a trailing underscore.
func Identifier(prefix, label string) string {
	var sb strings.Builder
	sb.WriteString(prefix)
	for i, r := range label {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
			sb.WriteRune(r)
		case r >= '0' && r <= '9':
			if i == 0 && prefix == "" {
				sb.WriteByte('_')
			}
			sb.WriteRune(r)
		default:
			sb.WriteByte('_')
		}
	}

	if reserved(sb.String()) {
		sb.WriteByte('_')
	}
	return sb.String()
}

// cType is dtype.DType.CType wrapped with ErrUnsupportedDataType.
func cType(t *graph.Tensor) (string, error) {
	s, err := t.DType.CType()
	if err != nil {
		return "", fmt.Errorf("%w: tensor %q is %s", ErrUnsupportedDataType, t.Label, t.DType)
	}
	return s, nil
}

// declareBuffers emits the local pointers input_N and output_N of an
// operation, each annotated with its resolved shape.
func declareBuffers(g *graph.Graph, op *graph.Operation, batch int, prefix string) (string, error) {
	var sb strings.Builder
	for i, t := range g.Inputs(op) {
		ct, err := cType(t)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&sb, "    const %s *input_%d = %s; /* %s */\n", ct, i, Identifier(prefix, t.Label), t.Shape.Resolve(batch))
	}

	for i, t := range g.Outputs(op) {
		ct, err := cType(t)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&sb, "    %s *output_%d = %s; /* %s */\n", ct, i, Identifier(prefix, t.Label), t.Shape.Resolve(batch))
	}

	return sb.String(), nil
}

// wrap places the declarations and body of an operation in its own block
// so that input_N and output_N do not collide between operations.
func wrap(op *graph.Operation, decls, body string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "  /* %s */\n", commentSafe(fmt.Sprintf("%s %q", op.Type, op.Label)))
	sb.WriteString("  {\n")
	sb.WriteString(decls)
	sb.WriteString(body)
	if !strings.HasSuffix(body, "\n") {
		sb.WriteString("\n")
	}
	sb.WriteString("  }\n")
	return sb.String()
}

// commentSafe breaks up comment terminators so s can sit inside /* */.
func commentSafe(s string) string {
	return strings.ReplaceAll(s, "*/", "*\\/")
}

// dependencies returns the headers for the operand types of op and its
// fused activation.
func dependencies(g *graph.Graph, op *graph.Operation) []string {
	var deps []string
	add := func(d string) {
		if !slices.Contains(deps, d) {
			deps = append(deps, d)
		}
	}

	for _, t := range slices.Concat(g.Inputs(op), g.Outputs(op)) {
		switch {
		case t.DType.IsFloat():
			add("float.h")
		case t.DType.IsInteger():
			add("stdint.h")
		}
	}

	if op.Params.Enum("fused_activation_fn") == graph.ActTanh {
		add("math.h")
	}

	return deps
}

// arity checks the operand counts of op.
func arity(op *graph.Operation, inputs, outputs int) bool {
	return len(op.Inputs) == inputs && len(op.Outputs) == outputs
}

// operandType returns the common type of tensors, failing on Unknown.
func operandType(ts ...*graph.Tensor) (dtype.DType, error) {
	dt := ts[0].DType
	for _, t := range ts[1:] {
		dt = dtype.Promote(dt, t.DType)
	}

	if dt == dtype.Unknown {
		for _, t := range ts {
			if t.DType == dtype.Unknown {
				return dt, fmt.Errorf("%w: tensor %q has unknown type", ErrUnsupportedDataType, t.Label)
			}
		}
	}
	return dt, nil
}
