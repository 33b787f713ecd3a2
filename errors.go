package evalgraph

import (
	"errors"
	"fmt"
)

// Graph mutation errors.
var (
	// ErrNodeNotFound is returned when an id does not name a live node.
	ErrNodeNotFound = errors.New("evalgraph: node not found")

	// ErrSlotOutOfRange is returned for input slots outside [0, MaxInputs).
	ErrSlotOutOfRange = errors.New("evalgraph: input slot out of range")

	// ErrDanglingInput is returned when an input references a missing node.
	ErrDanglingInput = errors.New("evalgraph: input references missing node")

	// ErrCycle is returned when an edge would make the graph cyclic.
	ErrCycle = errors.New("evalgraph: edge would create a cycle")

	// ErrNoBackend is returned for a node with an empty backend mask or a
	// mask naming a backend that is not configured.
	ErrNoBackend = errors.New("evalgraph: no backend for node")

	// ErrUnknownProgram is returned when the shader backend has no program
	// for a node type.
	ErrUnknownProgram = errors.New("evalgraph: unknown shader program")

	// ErrUnknownFunction is returned when the native table has no function
	// for a node type.
	ErrUnknownFunction = errors.New("evalgraph: unknown native function")

	// ErrInvalidFaces is returned for face counts other than 1 or 6.
	ErrInvalidFaces = errors.New("evalgraph: face count must be 1 or 6")
)

// Evaluation errors.
var (
	// ErrContextClosed is returned when operating on a closed context.
	ErrContextClosed = errors.New("evalgraph: context closed")

	// ErrNativeFault wraps a panic recovered from a native function.
	ErrNativeFault = errors.New("evalgraph: native function fault")

	// ErrNativeStatus is returned when a native function reports StatusError
	// without an error of its own.
	ErrNativeStatus = errors.New("evalgraph: native function reported error status")

	// ErrInvalidSize is returned by Evaluate for non-positive dimensions.
	ErrInvalidSize = errors.New("evalgraph: output size must be positive")

	// ErrNodeProcessing is returned by Scope.Evaluate when the node could
	// not finish because it or one of its inputs is still processing.
	ErrNodeProcessing = errors.New("evalgraph: node still processing")

	// ErrNoStreamFactory is returned by GetEncoder when the context was
	// created without WithStreamFactory.
	ErrNoStreamFactory = errors.New("evalgraph: no stream factory configured")
)

// NodeFault describes a failed backend call for one node during a run.
type NodeFault struct {
	Node    NodeID
	Backend BackendMask
	Err     error
}

// Error implements the error interface.
func (f NodeFault) Error() string {
	return fmt.Sprintf("evalgraph: node %d (%s): %v", f.Node, f.Backend, f.Err)
}

// Unwrap returns the underlying error.
func (f NodeFault) Unwrap() error { return f.Err }
