package graph

// Source is the immutable graph a front end exposes to the builder, e.g. a
// training framework session or a serialized graph description.
type Source interface {
	// Tensor looks up a tensor by name.
	Tensor(name string) (SourceTensor, bool)
	// Operation looks up an operation by name.
	Operation(name string) (SourceOp, bool)
	// TensorNames lists every tensor name, used for suggestions.
	TensorNames() []string
	// Resolve evaluates a tensor whose value does not depend on graph
	// inputs, such as weights or shape arguments.
	Resolve(name string) (*Value, error)
}

// SourceTensor describes a tensor of a Source. DType is the host type name
// and Op the name of the producing operation.
type SourceTensor struct {
	Name  string
	DType string
	Shape []int
	Op    string
}

// SourceOp describes an operation of a Source. Attrs holds raw attribute
// values: int64, float64, string, bool or []int64.
type SourceOp struct {
	Name    string
	Type    string
	Attrs   map[string]any
	Inputs  []string
	Outputs []string
}

// inputParams lists parameters front ends pass as extra input tensors,
// keyed by canonical op type and input position.
var inputParams = map[string]map[int]string{
	"ArgMax":  {1: "dim"},
	"Reshape": {1: "shape"},
	"Mean":    {1: "axis"},
	"Sum":     {1: "axis"},
	"Max":     {1: "axis"},
	"Min":     {1: "axis"},
}
