package graph

// OpID addresses an operation in its graph's arena.
type OpID int

// NoOp is the creator of leaf tensors.
const NoOp OpID = -1

// Operation is a computation node. It shares its input tensors with the
// graph and owns its outputs.
type Operation struct {
	Label   string
	Type    string
	Params  *Params
	Inputs  []TensorID
	Outputs []TensorID
}

// aliases maps legacy or framework specific op type names onto the
// canonical names kernels match on.
var aliases = map[string]string{
	"DepthwiseConv2DNative": "DepthwiseConv2D",
	"AddV2":                 "Add",
	"BiasAdd":               "Add",
	"Sub":                   "Subtract",
	"Mul":                   "Multiply",
	"RealDiv":               "Divide",
	"Div":                   "Divide",
	"AveragePool":           "AvgPool",
	"MinPool2D":             "MinPool",
}

// CanonicalType applies the alias table to an op type name.
func CanonicalType(opType string) string {
	if c, ok := aliases[opType]; ok {
		return c
	}
	return opType
}
