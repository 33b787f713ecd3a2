package evalgraph

import "strings"

// NodeID identifies a node in a Graph. Ids are assigned by AddNode and are
// never reused, even after DelNode.
type NodeID int

// NoInput marks an unconnected input slot.
const NoInput NodeID = -1

// MaxInputs is the number of ordered input slots per node.
const MaxInputs = 8

// BackendMask is the set of execution backends a node runs on.
// A node may implement one or both kinds.
type BackendMask uint8

const (
	// BackendNative runs the node's function from the NativeTable.
	BackendNative BackendMask = 1 << iota

	// BackendShader runs the node's program on the ShaderBackend.
	BackendShader
)

// Has reports whether m includes every bit of b.
func (m BackendMask) Has(b BackendMask) bool { return m&b == b && b != 0 }

// String returns a readable form such as "native|shader".
func (m BackendMask) String() string {
	if m == 0 {
		return "none"
	}
	var parts []string
	if m&BackendNative != 0 {
		parts = append(parts, "native")
	}
	if m&BackendShader != 0 {
		parts = append(parts, "shader")
	}
	if rest := m &^ (BackendNative | BackendShader); rest != 0 {
		parts = append(parts, "unknown")
	}
	return strings.Join(parts, "|")
}

// Interaction is the per-node pointer state copied into EvaluationInfo.Mouse.
type Interaction struct {
	X, Y  float32
	Left  bool
	Right bool
}

// Node is a computation unit producing one output texture.
type Node struct {
	// Type selects the shader program and native function.
	Type string

	// Backends selects which backends execute the node.
	Backends BackendMask

	// Inputs holds the producer of each slot, or NoInput.
	Inputs [MaxInputs]NodeID

	// Samplers holds the filter and wrap configuration per slot.
	Samplers [MaxInputs]InputSampler

	BlendSrc BlendMode
	BlendDst BlendMode

	// Params is the opaque parameter blob passed to both backends.
	Params []byte

	// Faces is 1 for a 2D output and 6 for a cubemap. Zero means 1.
	Faces int

	Interaction Interaction

	// UseCount is the number of (consumer, slot) references to this node.
	// It is maintained by the Graph.
	UseCount int
}

// NewNode returns a node with every input slot unconnected.
func NewNode(typ string, backends BackendMask) Node {
	n := Node{Type: typ, Backends: backends, Faces: 1}
	for i := range n.Inputs {
		n.Inputs[i] = NoInput
	}
	return n
}

// FaceCount returns the number of output faces, treating zero as 1.
func (n *Node) FaceCount() int {
	if n.Faces <= 0 {
		return 1
	}
	return n.Faces
}

// Connected reports whether slot has a producer.
func (n *Node) Connected(slot int) bool {
	return slot >= 0 && slot < MaxInputs && n.Inputs[slot] != NoInput
}
