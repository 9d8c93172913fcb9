package graph

import (
	"errors"
	"fmt"
	"slices"
)

// Validate checks the IR invariants: leaf tensors have no creator and every
// other tensor has exactly one, consumer sets match operation inputs,
// constants carry values and the operation graph is acyclic. All problems
// found are reported together, each wrapping ErrMalformedGraph.
func Validate(g *Graph) error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrMalformedGraph}, args...)...))
	}

	creators := make([][]OpID, len(g.tensors))
	readers := make([][]OpID, len(g.tensors))
	for i, op := range g.ops {
		id := OpID(i)
		for _, in := range op.Inputs {
			if !g.validTensor(in) {
				fail("operation %q reads unknown tensor %d", op.Label, in)
				continue
			}
			if !slices.Contains(readers[in], id) {
				readers[in] = append(readers[in], id)
			}
		}

		for _, out := range op.Outputs {
			if !g.validTensor(out) {
				fail("operation %q writes unknown tensor %d", op.Label, out)
				continue
			}
			creators[out] = append(creators[out], id)
		}
	}

	for i, t := range g.tensors {
		switch {
		case t.IsLeaf() && t.Creator != NoOp:
			fail("%s tensor %q has creating operation %d", t.Kind, t.Label, t.Creator)
		case t.IsLeaf() && len(creators[i]) > 0:
			fail("%s tensor %q is written by %d operations", t.Kind, t.Label, len(creators[i]))
		case !t.IsLeaf() && t.Creator == NoOp:
			fail("%s tensor %q has no creating operation", t.Kind, t.Label)
		case !t.IsLeaf() && !g.validOp(t.Creator):
			fail("tensor %q created by unknown operation %d", t.Label, t.Creator)
		case !t.IsLeaf() && (len(creators[i]) != 1 || creators[i][0] != t.Creator):
			fail("tensor %q must be written by exactly its creator, found %d writers", t.Label, len(creators[i]))
		}

		if t.Kind == Constant && t.Value == nil {
			fail("constant tensor %q has no value", t.Label)
		}

		if !sameSet(t.Consumers, readers[i]) {
			fail("tensor %q consumers %v do not match readers %v", t.Label, t.Consumers, readers[i])
		}

		if id, ok := g.tensorIndex[t.Label]; !ok || id != TensorID(i) {
			fail("tensor %q missing from label index", t.Label)
		}
	}

	for i, op := range g.ops {
		if id, ok := g.opIndex[op.Label]; !ok || id != OpID(i) {
			fail("operation %q missing from label index", op.Label)
		}
	}

	if len(errs) == 0 {
		if cycle := findCycle(g); cycle != nil {
			fail("cycle through operations %v", cycle)
		}
	}

	return errors.Join(errs...)
}

func sameSet(a, b []OpID) bool {
	if len(a) != len(b) {
		return false
	}
	for _, x := range a {
		if !slices.Contains(b, x) {
			return false
		}
	}
	return true
}

// findCycle returns the labels of operations left over by a topological
// sort, nil when the graph is acyclic.
func findCycle(g *Graph) []string {
	indegree := make([]int, len(g.ops))
	for i, op := range g.ops {
		for _, in := range op.Inputs {
			if c := g.tensors[in].Creator; c != NoOp {
				indegree[i]++
			}
		}
	}

	var queue []OpID
	for i, d := range indegree {
		if d == 0 {
			queue = append(queue, OpID(i))
		}
	}

	visited := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		visited++

		for _, out := range g.ops[id].Outputs {
			for _, c := range g.tensors[out].Consumers {
				for _, in := range g.ops[c].Inputs {
					if in == out {
						indegree[c]--
					}
				}
				if indegree[c] == 0 {
					queue = append(queue, c)
				}
			}
		}
	}

	if visited == len(g.ops) {
		return nil
	}

	var cycle []string
	for i, d := range indegree {
		if d > 0 {
			cycle = append(cycle, g.ops[i].Label)
		}
	}
	return cycle
}
