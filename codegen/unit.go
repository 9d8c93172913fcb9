package codegen

import (
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/tfmin/tfmin/graph"
	"github.com/tfmin/tfmin/kernel"
)

// Buffer is a file or function scope array backing one tensor.
type Buffer struct {
	Label      string
	Identifier string
	CType      string
	Shape      graph.Shape

	// Size is the element count of the backing array, which exceeds
	// Elements when a layout pads or offsets the storage.
	Size int

	// Init is the initializer list of a constant, without braces.
	Init string

	dependencies []string
}

// Elements is the number of elements of the resolved shape.
func (b Buffer) Elements() int {
	return max(1, b.Shape.Elements())
}

// Unit is a generated C translation unit.
type Unit struct {
	ID   uuid.UUID
	Name string

	// Dependencies are the headers to include, in first use order.
	Dependencies []string

	Inputs        []Buffer
	Outputs       []Buffer
	Constants     []Buffer
	Intermediates []Buffer

	// Fragments hold the code of each operation in graph order.
	Fragments []kernel.Fragment

	externWeights bool
}

func buffers(g *graph.Graph, kind graph.Kind, opts Options) ([]Buffer, error) {
	var bs []Buffer
	for _, t := range g.TensorsOfKind(kind) {
		ct, err := t.DType.CType()
		if err != nil {
			return nil, fmt.Errorf("%w: tensor %q is %s", kernel.ErrUnsupportedDataType, t.Label, t.DType)
		}

		b := Buffer{
			Label:      t.Label,
			Identifier: kernel.Identifier(opts.Prefix, t.Label),
			CType:      ct,
			Shape:      t.Shape.Resolve(opts.Batch),
		}

		if b.Size, err = kernel.Extent(t, opts.Batch); err != nil {
			return nil, fmt.Errorf("%w: %w", graph.ErrMalformedGraph, err)
		}

		if kind == graph.Constant && !opts.ExternWeights {
			if b.Init, b.dependencies, err = initializer(t, opts.Batch, b.Size); err != nil {
				return nil, fmt.Errorf("constant %q: %w", t.Label, err)
			}
		}

		bs = append(bs, b)
	}
	return bs, nil
}

// WriteTo renders the translation unit: includes, constants, static
// intermediate buffers and the model function.
func (u *Unit) WriteTo(w io.Writer) (int64, error) {
	var sb strings.Builder

	fmt.Fprintf(&sb, "/* Generated by tfmin, unit %s */\n\n", u.ID)

	for _, d := range u.Dependencies {
		fmt.Fprintf(&sb, "#include <%s>\n", d)
	}
	if len(u.Dependencies) > 0 {
		sb.WriteString("\n")
	}

	for _, c := range u.Constants {
		if u.externWeights {
			fmt.Fprintf(&sb, "extern const %s %s[%d];\n", c.CType, c.Identifier, c.Size)
		} else {
			fmt.Fprintf(&sb, "static const %s %s[%d] = {%s};\n", c.CType, c.Identifier, c.Size, c.Init)
		}
	}

	for _, b := range u.Intermediates {
		fmt.Fprintf(&sb, "static %s %s[%d];\n", b.CType, b.Identifier, b.Size)
	}

	if len(u.Constants)+len(u.Intermediates) > 0 {
		sb.WriteString("\n")
	}

	params := make([]string, 0, len(u.Inputs)+len(u.Outputs))
	for _, b := range u.Inputs {
		params = append(params, fmt.Sprintf("const %s *%s", b.CType, b.Identifier))
	}
	for _, b := range u.Outputs {
		params = append(params, fmt.Sprintf("%s *%s", b.CType, b.Identifier))
	}
	if len(params) == 0 {
		params = append(params, "void")
	}

	fmt.Fprintf(&sb, "void %s(%s)\n{\n", u.Name, strings.Join(params, ", "))
	for i, f := range u.Fragments {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(f.Code)
	}
	sb.WriteString("}\n")

	n, err := io.WriteString(w, sb.String())
	return int64(n), err
}
