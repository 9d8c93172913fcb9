// dtype.go - Numerische Datentypen fuer den C-Export
// Enthaelt: DType Konstanten, Parsing, C-Typnamen und Wertebereiche
package dtype

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/x448/float16"
)

// DType is the semantic numeric type of a tensor element.
type DType int

const (
	// Unknown marks a host type with no C mapping. It survives graph
	// construction and fails during code generation.
	Unknown DType = iota
	Float16
	Float32
	Float64
	Uint8
	Int8
	Int16
	Int32
	Int64
)

// Parse parses the canonical dtype name, e.g. "Float32". Names that are
// not recognised return Unknown.
func Parse(s string) DType {
	switch s {
	case "Float16":
		return Float16
	case "Float32":
		return Float32
	case "Float64":
		return Float64
	case "Uint8":
		return Uint8
	case "Int8":
		return Int8
	case "Int16":
		return Int16
	case "Int32":
		return Int32
	case "Int64":
		return Int64
	default:
		return Unknown
	}
}

// FromHost maps a host framework numeric type name (float32, int8, half,
// ...) onto a DType. Unmapped names return Unknown instead of an error so
// that graph construction never aborts on an unused exotic type.
func FromHost(s string) DType {
	switch strings.ToLower(strings.TrimPrefix(s, "DT_")) {
	case "float16", "half", "f16":
		return Float16
	case "float32", "float", "f32":
		return Float32
	case "float64", "double", "f64":
		return Float64
	case "uint8", "u8":
		return Uint8
	case "int8", "i8":
		return Int8
	case "int16", "i16":
		return Int16
	case "int32", "i32":
		return Int32
	case "int64", "i64":
		return Int64
	default:
		if t := Parse(s); t != Unknown {
			return t
		}
		return Unknown
	}
}

func (t DType) String() string {
	switch t {
	case Float16:
		return "Float16"
	case Float32:
		return "Float32"
	case Float64:
		return "Float64"
	case Uint8:
		return "Uint8"
	case Int8:
		return "Int8"
	case Int16:
		return "Int16"
	case Int32:
		return "Int32"
	case Int64:
		return "Int64"
	default:
		return "Unknown_Type"
	}
}

// CType returns the C type name used in generated code.
func (t DType) CType() (string, error) {
	switch t {
	case Float16:
		return "_Float16", nil
	case Float32:
		return "float", nil
	case Float64:
		return "double", nil
	case Uint8:
		return "uint8_t", nil
	case Int8:
		return "int8_t", nil
	case Int16:
		return "int16_t", nil
	case Int32:
		return "int32_t", nil
	case Int64:
		return "int64_t", nil
	default:
		return "", fmt.Errorf("no C type for %s", t)
	}
}

// Size is the element size in bytes, 0 for Unknown.
func (t DType) Size() int {
	switch t {
	case Uint8, Int8:
		return 1
	case Float16, Int16:
		return 2
	case Float32, Int32:
		return 4
	case Float64, Int64:
		return 8
	default:
		return 0
	}
}

// IsInteger reports whether t is one of the integer types.
func (t DType) IsInteger() bool {
	switch t {
	case Uint8, Int8, Int16, Int32, Int64:
		return true
	default:
		return false
	}
}

// IsFloat reports whether t is one of the floating point types.
func (t DType) IsFloat() bool {
	switch t {
	case Float16, Float32, Float64:
		return true
	default:
		return false
	}
}

var (
	float16Max = float16.Frombits(0x7bff).Float32()
	float16Min = float16.Frombits(0xfbff).Float32()
)

// Lowest returns a C expression for the lowest representable value.
// Float limits come from float.h.
func (t DType) Lowest() (string, error) {
	switch t {
	case Float16:
		return strconv.FormatFloat(float64(float16Min), 'f', 1, 32), nil
	case Float32:
		return "-FLT_MAX", nil
	case Float64:
		return "-DBL_MAX", nil
	case Uint8:
		return "0", nil
	case Int8:
		return "-128", nil
	case Int16:
		return "-32768", nil
	case Int32:
		// -2147483648 is not a valid int literal in C
		return "(-2147483647 - 1)", nil
	case Int64:
		return "(-9223372036854775807LL - 1)", nil
	default:
		return "", fmt.Errorf("no lowest value for %s", t)
	}
}

// Highest returns a C expression for the highest representable value.
func (t DType) Highest() (string, error) {
	switch t {
	case Float16:
		return strconv.FormatFloat(float64(float16Max), 'f', 1, 32), nil
	case Float32:
		return "FLT_MAX", nil
	case Float64:
		return "DBL_MAX", nil
	case Uint8:
		return "255", nil
	case Int8:
		return "127", nil
	case Int16:
		return "32767", nil
	case Int32:
		return "2147483647", nil
	case Int64:
		return "9223372036854775807LL", nil
	default:
		return "", fmt.Errorf("no highest value for %s", t)
	}
}

// HigherRange returns the accumulator type used when summing many values
// of type t. Integers widen so that window sums cannot overflow, floats
// accumulate in their own type.
func (t DType) HigherRange() DType {
	switch t {
	case Uint8, Int8, Int16:
		return Int32
	case Int32, Int64:
		return Int64
	default:
		return t
	}
}

// Promote returns the type a binary operation on a and b computes in.
func Promote(a, b DType) DType {
	switch {
	case a == Unknown || b == Unknown:
		return Unknown
	case a == b:
		return a
	case a.IsFloat() != b.IsFloat():
		if a.IsFloat() {
			return a
		}
		return b
	case a.Size() != b.Size():
		if a.Size() > b.Size() {
			return a
		}
		return b
	default:
		// uint8 mixed with int8 needs the next signed width
		return Int16
	}
}
