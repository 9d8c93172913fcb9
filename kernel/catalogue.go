// catalogue.go - Kernel-Katalog und Dispatch
// Enthaelt: Catalogue, Default, Dispatch, Lower
package kernel

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/tfmin/tfmin/graph"
)

// defaultKernels is the built-in catalogue in registration order.
var defaultKernels = []Kernel{
	legacyPoolKernel{},
	poolKernel{},
	binaryKernel{},
	unaryKernel{},
	reshapeKernel{},
}

// Catalogue is an immutable, ordered set of kernels.
type Catalogue struct {
	kernels   []Kernel
	minStatus Status
}

// NewCatalogue returns a catalogue of kernels. Registration order breaks
// ties between matching kernels of equal status.
func NewCatalogue(kernels ...Kernel) *Catalogue {
	return &Catalogue{kernels: slices.Clone(kernels)}
}

// Default returns the built-in catalogue.
func Default() *Catalogue {
	return NewCatalogue(defaultKernels...)
}

// WithMinStatus returns a catalogue that ignores kernels below s.
func (c *Catalogue) WithMinStatus(s Status) *Catalogue {
	return &Catalogue{kernels: c.kernels, minStatus: s}
}

// Kernels returns the kernels in registration order.
func (c *Catalogue) Kernels() []Kernel {
	return slices.Clone(c.kernels)
}

// Dispatch selects the kernel for op: the matching kernel of highest
// status, the first registered on a tie.
func (c *Catalogue) Dispatch(g *graph.Graph, op *graph.Operation) (Kernel, error) {
	var best Kernel
	for _, k := range c.kernels {
		if k.Status() < c.minStatus || !k.Matches(g, op) {
			continue
		}

		if best == nil || k.Status() > best.Status() {
			best = k
		}
	}

	if best == nil {
		return nil, &OpError{Label: op.Label, Type: op.Type, Err: fmt.Errorf("%w %q", ErrUnsupportedOperation, op.Type)}
	}

	slog.Debug("dispatched", "op", op.Label, "type", op.Type, "kernel", best.Name(), "status", best.Status())
	return best, nil
}

// Fragment is the lowered code of one operation.
type Fragment struct {
	Op           string
	Kernel       string
	Code         string
	Dependencies []string
}

// Lower dispatches op and generates its fragment. Errors are *OpError.
func (c *Catalogue) Lower(g *graph.Graph, op *graph.Operation, batch int, prefix string) (Fragment, error) {
	k, err := c.Dispatch(g, op)
	if err != nil {
		return Fragment{}, err
	}

	code, err := k.Generate(g, op, batch, prefix)
	if err != nil {
		return Fragment{}, &OpError{Label: op.Label, Type: op.Type, Err: err}
	}

	return Fragment{
		Op:           op.Label,
		Kernel:       k.Name(),
		Code:         code,
		Dependencies: k.Dependencies(g, op),
	}, nil
}
