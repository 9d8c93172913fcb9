package graph

import "errors"

var (
	// ErrMalformedGraph reports a violated IR invariant: a non-leaf tensor
	// without a creating operation, inconsistent back references or a cycle.
	ErrMalformedGraph = errors.New("malformed graph")

	// ErrUnknownParam reports a parameter key, kind or enum value that is not
	// recognised for an operation type.
	ErrUnknownParam = errors.New("unrecognized parameter")

	// ErrUnknownTensor reports a declared output that the source graph does
	// not contain.
	ErrUnknownTensor = errors.New("unknown tensor")
)
