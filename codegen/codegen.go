// Package codegen - Zusammenbau der C-Uebersetzungseinheit
// Hauptmodul: Generate verteilt die Operationen auf Kernel und sammelt
// Fragmente, Header und Puffer
package codegen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	orderedmap "github.com/wk8/go-ordered-map/v2"
	"golang.org/x/sync/errgroup"

	"github.com/tfmin/tfmin/graph"
	"github.com/tfmin/tfmin/kernel"
	"github.com/tfmin/tfmin/logutil"
)

// unitNamespace scopes the name based unit identifiers.
var unitNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/tfmin/tfmin"))

// Options control code generation. The zero value generates a function
// named model for batch size one with the default catalogue.
type Options struct {
	// Catalogue selects kernels, nil means kernel.Default.
	Catalogue *kernel.Catalogue

	// Batch replaces unknown dimensions, values below one mean one.
	Batch int

	// Prefix is prepended to every buffer identifier.
	Prefix string

	// Name is the name of the generated function.
	Name string

	// Parallel bounds the number of operations lowered at once.
	Parallel int

	// ExternWeights declares constants extern instead of defining them.
	ExternWeights bool
}

func (o Options) withDefaults() Options {
	if o.Catalogue == nil {
		o.Catalogue = kernel.Default()
	}
	if o.Batch < 1 {
		o.Batch = 1
	}
	if o.Name == "" {
		o.Name = "model"
	}
	if o.Parallel < 1 {
		o.Parallel = 1
	}
	return o
}

// Generate lowers every operation of a frozen graph. Operations are
// lowered concurrently but fragments keep the graph's operation order.
// All failing operations are reported together, each as *kernel.OpError.
func Generate(ctx context.Context, g *graph.Graph, opts Options) (*Unit, error) {
	if !g.Frozen() {
		return nil, fmt.Errorf("%w: graph is not frozen", graph.ErrMalformedGraph)
	}

	opts = opts.withDefaults()

	if err := checkIdentifiers(g, opts); err != nil {
		return nil, err
	}

	ops := g.Operations()
	fragments := make([]kernel.Fragment, len(ops))
	errs := make([]error, len(ops))

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(opts.Parallel)
	for i, op := range ops {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			fragments[i], errs[i] = opts.Catalogue.Lower(g, op, opts.Batch, opts.Prefix)
			if errs[i] == nil {
				logutil.Trace("lowered operation", "op", op.Label, "kernel", fragments[i].Kernel)
			}
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	u := &Unit{
		ID:            unitID(g),
		Name:          kernel.Identifier("", opts.Name),
		Fragments:     fragments,
		externWeights: opts.ExternWeights,
	}

	deps := orderedmap.New[string, struct{}]()
	for _, f := range fragments {
		for _, d := range f.Dependencies {
			deps.Set(d, struct{}{})
		}
	}

	var err error
	if u.Inputs, err = buffers(g, graph.Input, opts); err != nil {
		return nil, err
	}
	if u.Outputs, err = buffers(g, graph.Output, opts); err != nil {
		return nil, err
	}
	if u.Intermediates, err = buffers(g, graph.Intermediate, opts); err != nil {
		return nil, err
	}
	if u.Constants, err = buffers(g, graph.Constant, opts); err != nil {
		return nil, err
	}

	for _, c := range u.Constants {
		for _, d := range c.dependencies {
			deps.Set(d, struct{}{})
		}
	}

	for pair := deps.Oldest(); pair != nil; pair = pair.Next() {
		u.Dependencies = append(u.Dependencies, pair.Key)
	}

	slog.Debug("generated unit", "id", u.ID, "operations", len(fragments), "dependencies", u.Dependencies)
	return u, nil
}

// checkIdentifiers rejects graphs whose tensor labels map to the same C
// identifier or to the name of the generated function.
func checkIdentifiers(g *graph.Graph, opts Options) error {
	name := kernel.Identifier("", opts.Name)
	seen := make(map[string]string)
	for _, t := range g.Tensors() {
		id := kernel.Identifier(opts.Prefix, t.Label)
		if id == name {
			return fmt.Errorf("%w: tensor %q shares identifier %s with the generated function", graph.ErrMalformedGraph, t.Label, id)
		}
		if other, ok := seen[id]; ok {
			return fmt.Errorf("%w: tensors %q and %q share identifier %s", graph.ErrMalformedGraph, other, t.Label, id)
		}
		seen[id] = t.Label
	}
	return nil
}

// unitID derives a stable identifier from the graph's labels and types.
func unitID(g *graph.Graph) uuid.UUID {
	var sb strings.Builder
	for _, t := range g.Tensors() {
		fmt.Fprintf(&sb, "tensor %s %s %s %s\n", t.Label, t.DType, t.Shape, t.Kind)
	}
	for _, op := range g.Operations() {
		fmt.Fprintf(&sb, "op %s %s %s\n", op.Label, op.Type, op.Params)
	}
	return uuid.NewSHA1(unitNamespace, []byte(sb.String()))
}
