// Package kernel - Operations-Kernel fuer die C-Codeerzeugung
// Hauptmodul: Kernel-Interface, Status und Fehlertypen
package kernel

import (
	"errors"
	"fmt"

	"github.com/tfmin/tfmin/graph"
)

var (
	// ErrUnsupportedOperation is returned when no kernel matches an
	// operation.
	ErrUnsupportedOperation = errors.New("unsupported operation")

	// ErrUnsupportedDataType is returned when a kernel cannot generate code
	// for the data type of an operand.
	ErrUnsupportedDataType = errors.New("unsupported data type")
)

// OpError ties a dispatch or generation failure to its operation.
type OpError struct {
	Label string
	Type  string
	Err   error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("operation %q (%s): %v", e.Label, e.Type, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// Status is the maturity of a kernel. Dispatch prefers higher status when
// several kernels match one operation.
type Status int

const (
	StatusBase Status = iota
	StatusDevelopment
	StatusTesting
	StatusProduction
)

func (s Status) String() string {
	switch s {
	case StatusBase:
		return "base"
	case StatusDevelopment:
		return "development"
	case StatusTesting:
		return "testing"
	case StatusProduction:
		return "production"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// ParseStatus parses a status name. The empty string is StatusBase.
func ParseStatus(s string) (Status, error) {
	switch s {
	case "", "base":
		return StatusBase, nil
	case "development":
		return StatusDevelopment, nil
	case "testing":
		return StatusTesting, nil
	case "production":
		return StatusProduction, nil
	default:
		return 0, fmt.Errorf("unknown kernel status %q", s)
	}
}

// Kernel lowers one family of operation types to C.
type Kernel interface {
	Name() string
	Description() string
	Status() Status

	// Matches reports whether the kernel can lower op. It depends only on
	// the operation's type, shapes and parameters.
	Matches(g *graph.Graph, op *graph.Operation) bool

	// Dependencies lists the headers the generated code needs, such as
	// float.h for float limits or math.h for tanh.
	Dependencies(g *graph.Graph, op *graph.Operation) []string

	// Generate returns the buffer declarations and body for op. Unknown
	// dimensions are replaced by batch and buffer names start with prefix.
	Generate(g *graph.Graph, op *graph.Operation, batch int, prefix string) (string, error)
}
