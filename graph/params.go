// params.go - Typisierte Operations-Parameter
// Enthaelt: ParamKind, Param, Params und die Tabelle erkannter Parameter
package graph

import (
	"fmt"
	"slices"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/tfmin/tfmin/dtype"
)

// ParamKind is the tag of a Param.
type ParamKind int

const (
	ParamInt ParamKind = iota
	ParamFloat
	ParamString
	ParamInts
	ParamEnum
)

func (k ParamKind) String() string {
	switch k {
	case ParamInt:
		return "int"
	case ParamFloat:
		return "float"
	case ParamString:
		return "string"
	case ParamInts:
		return "int list"
	case ParamEnum:
		return "enum"
	default:
		return fmt.Sprintf("ParamKind(%d)", int(k))
	}
}

// Param is a tagged parameter value.
type Param struct {
	kind ParamKind
	i    int64
	f    float64
	s    string
	ints []int64
}

func Int(v int) Param           { return Param{kind: ParamInt, i: int64(v)} }
func Float(v float64) Param     { return Param{kind: ParamFloat, f: v} }
func String(v string) Param     { return Param{kind: ParamString, s: v} }
func Ints(v ...int64) Param     { return Param{kind: ParamInts, ints: slices.Clone(v)} }
func Enum(v string) Param       { return Param{kind: ParamEnum, s: v} }
func (p Param) Kind() ParamKind { return p.kind }

func (p Param) Int() int {
	return int(p.i)
}

func (p Param) Float() float64 {
	if p.kind == ParamInt {
		return float64(p.i)
	}
	return p.f
}

// Str returns the string or enum value.
func (p Param) Str() string {
	return p.s
}

func (p Param) Ints() []int64 {
	return slices.Clone(p.ints)
}

func (p Param) String() string {
	switch p.kind {
	case ParamInt:
		return fmt.Sprint(p.i)
	case ParamFloat:
		return fmt.Sprint(p.f)
	case ParamInts:
		return fmt.Sprint(p.ints)
	default:
		return p.s
	}
}

// Enumerations accepted for enum parameters.
const (
	PaddingSame  = "SAME"
	PaddingValid = "VALID"

	ActNone      = "NONE"
	ActRelu      = "RELU"
	ActRelu6     = "RELU6"
	ActReluN1To1 = "RELU_N1_TO_1"
	ActTanh      = "TANH"
)

type paramRule struct {
	kind ParamKind
	enum []string
}

var paramRules = map[string]paramRule{
	"dtype": {ParamEnum, []string{
		dtype.Float16.String(), dtype.Float32.String(), dtype.Float64.String(),
		dtype.Uint8.String(), dtype.Int8.String(), dtype.Int16.String(),
		dtype.Int32.String(), dtype.Int64.String(), dtype.Unknown.String(),
	}},
	"padding":                {ParamEnum, []string{PaddingSame, PaddingValid}},
	"fused_activation_fn":    {ParamEnum, []string{ActNone, ActRelu, ActRelu6, ActReluN1To1, ActTanh}},
	"stride_height":          {kind: ParamInt},
	"stride_width":           {kind: ParamInt},
	"filter_height":          {kind: ParamInt},
	"filter_width":           {kind: ParamInt},
	"dilation_height_factor": {kind: ParamInt},
	"dilation_width_factor":  {kind: ParamInt},
	"depth_multiplier":       {kind: ParamInt},
	"dim":                    {kind: ParamInt},
	"keep_dims":              {kind: ParamInt},
	"shape":                  {kind: ParamInts},
	"axis":                   {kind: ParamInts},
	"alpha":                  {kind: ParamFloat},
	"name":                   {kind: ParamString},
}

// commonParams are accepted by every operation type.
var commonParams = []string{"dtype", "name"}

var poolParams = []string{"stride_height", "stride_width", "filter_height", "filter_width", "padding", "fused_activation_fn"}

var opParams = map[string][]string{
	"MaxPool":         poolParams,
	"MinPool":         poolParams,
	"AvgPool":         poolParams,
	"Conv2D":          {"stride_height", "stride_width", "dilation_height_factor", "dilation_width_factor", "padding", "fused_activation_fn"},
	"DepthwiseConv2D": {"stride_height", "stride_width", "dilation_height_factor", "dilation_width_factor", "padding", "fused_activation_fn", "depth_multiplier"},
	"Add":             {"fused_activation_fn"},
	"Subtract":        {"fused_activation_fn"},
	"Multiply":        {"fused_activation_fn"},
	"Divide":          {"fused_activation_fn"},
	"LeakyRelu":       {"alpha"},
	"ArgMax":          {"dim"},
	"Reshape":         {"shape"},
	"Mean":            {"axis", "keep_dims"},
	"Sum":             {"axis", "keep_dims"},
	"Max":             {"axis", "keep_dims"},
	"Min":             {"axis", "keep_dims"},
}

// Accepts reports whether opType recognises the parameter key.
func Accepts(opType, key string) bool {
	return slices.Contains(commonParams, key) || slices.Contains(opParams[opType], key)
}

// Params is the ordered parameter set of one operation. Keys are checked
// against the table of parameters the operation type recognises.
type Params struct {
	opType string
	m      *orderedmap.OrderedMap[string, Param]
}

func NewParams(opType string) *Params {
	return &Params{opType: opType, m: orderedmap.New[string, Param]()}
}

// Set stores a parameter after checking its key, kind and enum value.
func (p *Params) Set(key string, v Param) error {
	rule, ok := paramRules[key]
	if !ok || !Accepts(p.opType, key) {
		return fmt.Errorf("%w: %s does not take %q", ErrUnknownParam, p.opType, key)
	}

	if rule.kind != v.kind {
		return fmt.Errorf("%w: %s.%s must be %s, got %s", ErrUnknownParam, p.opType, key, rule.kind, v.kind)
	}

	if rule.enum != nil && !slices.Contains(rule.enum, v.s) {
		return fmt.Errorf("%w: %s.%s must be one of %s, got %q", ErrUnknownParam, p.opType, key, strings.Join(rule.enum, "|"), v.s)
	}

	p.m.Set(key, v)
	return nil
}

func (p *Params) Get(key string) (Param, bool) {
	if p == nil {
		return Param{}, false
	}
	return p.m.Get(key)
}

// Int returns an integer parameter or the default.
func (p *Params) Int(key string, defaultValue ...int) int {
	if v, ok := p.Get(key); ok {
		return v.Int()
	}
	return append(defaultValue, 0)[0]
}

// Enum returns an enum or string parameter or the default.
func (p *Params) Enum(key string, defaultValue ...string) string {
	if v, ok := p.Get(key); ok {
		return v.Str()
	}
	return append(defaultValue, "")[0]
}

func (p *Params) Len() int {
	if p == nil {
		return 0
	}
	return p.m.Len()
}

// Keys returns the keys in insertion order.
func (p *Params) Keys() []string {
	if p == nil {
		return nil
	}

	keys := make([]string, 0, p.m.Len())
	for pair := p.m.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

func (p *Params) String() string {
	var sb strings.Builder
	for i, k := range p.Keys() {
		if i > 0 {
			sb.WriteString(" ")
		}
		v, _ := p.m.Get(k)
		fmt.Fprintf(&sb, "%s=%s", k, v)
	}
	return sb.String()
}

func (p *Params) clone() *Params {
	c := NewParams(p.opType)
	for pair := p.m.Oldest(); pair != nil; pair = pair.Next() {
		c.m.Set(pair.Key, pair.Value)
	}
	return c
}
