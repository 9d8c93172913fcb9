// builder.go - Aufbau des IR aus einem Quellgraphen
// Enthaelt: Build, Attribut-Uebersetzung, Aufloesung von Parameter-Eingaben
package graph

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"math"
	"slices"

	"github.com/agnivade/levenshtein"
	"github.com/emirpasic/gods/v2/stacks/arraystack"

	"github.com/tfmin/tfmin/dtype"
	"github.com/tfmin/tfmin/logutil"
)

// frame is a pending operation on the build worklist. An expanded frame
// has pushed its producers and is completed when popped again.
type frame struct {
	op       string
	expanded bool
}

type builder struct {
	src Source
	g   *Graph

	// operations expanded but not yet completed, i.e. the current path
	active map[string]bool
}

// Build constructs the frozen IR for the backward closure of outputs:
// operations are added after their inputs, tensors after their creator.
// Placeholder and weight operations are then folded into INPUT and
// CONSTANT tensors, declared outputs are tagged OUTPUT and the result is
// validated.
func Build(src Source, outputs []string) (*Graph, error) {
	if len(outputs) == 0 {
		return nil, errors.New("no output tensors declared")
	}

	b := &builder{src: src, g: New(), active: make(map[string]bool)}

	var outIDs []TensorID
	for _, name := range outputs {
		id, err := b.addTensor(name)
		if err != nil {
			return nil, err
		}
		outIDs = append(outIDs, id)
	}

	g := MarkOutputs(b.g, outIDs...)

	g, err := MarkInputs(g)
	if err != nil {
		return nil, err
	}

	g, err = MarkWeights(g, src.Resolve)
	if err != nil {
		return nil, err
	}

	if err := g.Freeze(); err != nil {
		return nil, err
	}

	slog.Debug("graph built", "tensors", len(g.tensors), "operations", len(g.ops), "outputs", len(outputs))
	return g, nil
}

func (b *builder) addTensor(name string) (TensorID, error) {
	if id, ok := b.g.TensorByLabel(name); ok {
		return id, nil
	}

	st, ok := b.src.Tensor(name)
	if !ok {
		return 0, b.unknownTensor(name)
	}

	if st.Op == "" {
		return 0, fmt.Errorf("%w: tensor %q has no producing operation", ErrMalformedGraph, name)
	}

	if err := b.addOperation(st.Op); err != nil {
		return 0, err
	}

	id, ok := b.g.TensorByLabel(name)
	if !ok {
		return 0, fmt.Errorf("%w: operation %q does not produce %q", ErrMalformedGraph, st.Op, name)
	}
	return id, nil
}

// addOperation adds root and every operation it depends on using an
// explicit stack instead of recursion.
func (b *builder) addOperation(root string) error {
	stack := arraystack.New[frame]()
	stack.Push(frame{op: root})

	for !stack.Empty() {
		f, _ := stack.Peek()
		if _, done := b.g.OperationByLabel(f.op); done {
			stack.Pop()
			continue
		}

		sop, ok := b.src.Operation(f.op)
		if !ok {
			return fmt.Errorf("%w: unknown operation %q", ErrMalformedGraph, f.op)
		}

		inputs := validInputs(sop)
		if f.expanded {
			stack.Pop()
			delete(b.active, f.op)
			if err := b.complete(sop, inputs); err != nil {
				return err
			}
			continue
		}

		stack.Pop()
		stack.Push(frame{op: f.op, expanded: true})
		b.active[f.op] = true

		for _, name := range slices.Backward(inputs) {
			if _, ok := b.g.TensorByLabel(name); ok {
				continue
			}

			st, ok := b.src.Tensor(name)
			if !ok {
				return b.unknownTensor(name)
			}

			if st.Op == "" {
				return fmt.Errorf("%w: tensor %q has no producing operation", ErrMalformedGraph, name)
			}

			if b.active[st.Op] {
				return fmt.Errorf("%w: tensor %q depends on itself through %q", ErrMalformedGraph, name, st.Op)
			}

			stack.Push(frame{op: st.Op})
		}
	}

	return nil
}

// complete adds an operation whose inputs are all present, followed by
// its output tensors.
func (b *builder) complete(sop SourceOp, inputs []string) error {
	opType := CanonicalType(sop.Type)

	params, err := b.params(sop, opType)
	if err != nil {
		return err
	}

	ids := make([]TensorID, len(inputs))
	for i, name := range inputs {
		id, ok := b.g.TensorByLabel(name)
		if !ok {
			return fmt.Errorf("%w: input %q of %q was not produced", ErrMalformedGraph, name, sop.Name)
		}
		ids[i] = id
	}

	opID, _, err := b.g.AddOperation(sop.Name, opType, params, ids)
	if err != nil {
		return err
	}

	for _, name := range sop.Outputs {
		st, ok := b.src.Tensor(name)
		if !ok {
			return b.unknownTensor(name)
		}

		_, added, err := b.g.AddTensor(Tensor{
			Label:   st.Name,
			DType:   dtype.FromHost(st.DType),
			Shape:   st.Shape,
			Kind:    Intermediate,
			Creator: opID,
		})
		if err != nil {
			return err
		}

		if !added {
			return fmt.Errorf("%w: tensor %q produced by more than one operation", ErrMalformedGraph, name)
		}
	}

	logutil.Trace("added operation", "label", sop.Name, "type", opType, "inputs", len(ids), "params", params.String())
	return nil
}

// validInputs drops the inputs that carry parameters.
func validInputs(sop SourceOp) []string {
	moved := inputParams[CanonicalType(sop.Type)]
	var inputs []string
	for i, name := range sop.Inputs {
		if _, ok := moved[i]; !ok {
			inputs = append(inputs, name)
		}
	}
	return inputs
}

// params translates the recognised attributes of sop and resolves the
// parameters passed as inputs.
func (b *builder) params(sop SourceOp, opType string) (*Params, error) {
	p := NewParams(opType)

	for _, key := range slices.Sorted(maps.Keys(sop.Attrs)) {
		if err := translateAttr(p, key, sop.Attrs[key]); err != nil {
			return nil, fmt.Errorf("operation %q: %w", sop.Name, err)
		}
	}

	for _, pos := range slices.Sorted(maps.Keys(inputParams[opType])) {
		key := inputParams[opType][pos]
		if pos >= len(sop.Inputs) {
			return nil, fmt.Errorf("%w: %s %q has no input %d for %q", ErrMalformedGraph, opType, sop.Name, pos, key)
		}

		v, err := b.src.Resolve(sop.Inputs[pos])
		if err != nil {
			return nil, fmt.Errorf("resolving %q of %q: %w", key, sop.Name, err)
		}

		var param Param
		switch paramRules[key].kind {
		case ParamInt:
			ints := v.AsInts()
			if len(ints) != 1 {
				return nil, fmt.Errorf("%w: %q of %q must be a scalar, got %d values", ErrUnknownParam, key, sop.Name, len(ints))
			}
			param = Int(int(ints[0]))
		default:
			param = Ints(v.AsInts()...)
		}

		if err := p.Set(key, param); err != nil {
			return nil, fmt.Errorf("operation %q: %w", sop.Name, err)
		}
	}

	return p, nil
}

// translateAttr maps a framework attribute onto parameters. Attributes
// without a translation are ignored.
func translateAttr(p *Params, key string, v any) error {
	switch key {
	case "dtype":
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("%w: dtype attribute is %T", ErrUnknownParam, v)
		}
		return p.Set("dtype", Enum(dtype.FromHost(s).String()))
	case "padding":
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("%w: padding attribute is %T", ErrUnknownParam, v)
		}
		return p.Set("padding", Enum(s))
	case "fused_activation_fn":
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("%w: fused_activation_fn attribute is %T", ErrUnknownParam, v)
		}
		return p.Set("fused_activation_fn", Enum(s))
	case "data_format":
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("%w: data_format attribute is %T", ErrUnknownParam, v)
		}
		if s != "NHWC" {
			return fmt.Errorf("%w: data_format %q, kernels read NHWC only", ErrUnknownParam, s)
		}
		return nil
	case "keep_dims":
		switch b := v.(type) {
		case bool:
			if b {
				return p.Set("keep_dims", Int(1))
			}
			return p.Set("keep_dims", Int(0))
		case int64:
			return p.Set("keep_dims", Int(int(b)))
		default:
			return fmt.Errorf("%w: keep_dims attribute is %T", ErrUnknownParam, v)
		}
	case "strides":
		return setNHWC(p, v, key, "stride_height", "stride_width")
	case "ksize":
		return setNHWC(p, v, key, "filter_height", "filter_width")
	case "dilations":
		return setNHWC(p, v, key, "dilation_height_factor", "dilation_width_factor")
	case "depth_multiplier":
		n, ok := v.(int64)
		if !ok {
			return fmt.Errorf("%w: depth_multiplier attribute is %T", ErrUnknownParam, v)
		}
		return p.Set("depth_multiplier", Int(int(n)))
	case "alpha":
		f, ok := v.(float64)
		if !ok {
			return fmt.Errorf("%w: alpha attribute is %T", ErrUnknownParam, v)
		}
		return p.Set("alpha", Float(f))
	default:
		return nil
	}
}

// setNHWC sets the height and width entries of an NHWC attribute list.
// The batch and channel entries must be one.
func setNHWC(p *Params, v any, key, height, width string) error {
	ints, ok := v.([]int64)
	if !ok || len(ints) != 4 {
		return fmt.Errorf("%w: %s attribute must be 4 integers, got %v", ErrUnknownParam, key, v)
	}

	if ints[0] != 1 || ints[3] != 1 {
		return fmt.Errorf("%w: %s %v steps over batch or channels", ErrUnknownParam, key, ints)
	}

	if err := p.Set(height, Int(int(ints[1]))); err != nil {
		return err
	}
	return p.Set(width, Int(int(ints[2])))
}

func (b *builder) unknownTensor(name string) error {
	best, score := "", math.MaxInt
	for _, candidate := range b.src.TensorNames() {
		if d := levenshtein.ComputeDistance(name, candidate); d < score {
			best, score = candidate, d
		}
	}

	if best == "" {
		return fmt.Errorf("%w: no tensor named %q", ErrUnknownTensor, name)
	}

	return fmt.Errorf("%w: no tensor named %q, did you mean %q?", ErrUnknownTensor, name, best)
}
