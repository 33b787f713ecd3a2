package evalgraph

// EvaluationInfo is the run-scoped record handed to every backend call.
// It is passed by value, so a backend cannot alias another step's state.
type EvaluationInfo struct {
	TargetIndex  NodeID
	InputIndices [MaxInputs]NodeID
	ForcedDirty  bool

	// Mouse holds x, y, left button and right button.
	Mouse [4]float32

	// ViewRot is a column-major 4x4 rotation for the face being rendered.
	ViewRot [16]float32
	Face    int

	// UIPass restricts shader evaluation to a single face.
	UIPass bool

	Frame int
	Time  float32

	// Width and Height request an output size for the run. Zero uses the
	// context's default size.
	Width  int
	Height int
}

// Identity is the 4x4 identity matrix.
var Identity = [16]float32{
	1, 0, 0, 0,
	0, 1, 0, 0,
	0, 0, 1, 0,
	0, 0, 0, 1,
}

// cubeFaces holds the view rotation per face in +X, -X, +Y, -Y, +Z, -Z order.
var cubeFaces = [6][16]float32{
	{0, 0, -1, 0, 0, 1, 0, 0, 1, 0, 0, 0, 0, 0, 0, 1},
	{0, 0, 1, 0, 0, 1, 0, 0, -1, 0, 0, 0, 0, 0, 0, 1},
	{1, 0, 0, 0, 0, 0, 1, 0, 0, -1, 0, 0, 0, 0, 0, 1},
	{1, 0, 0, 0, 0, 0, -1, 0, 0, 1, 0, 0, 0, 0, 0, 1},
	Identity,
	{-1, 0, 0, 0, 0, 1, 0, 0, 0, 0, -1, 0, 0, 0, 0, 1},
}

// FaceRotation returns the view rotation for a cubemap face.
// Out-of-range faces return Identity.
func FaceRotation(face int) [16]float32 {
	if face < 0 || face >= len(cubeFaces) {
		return Identity
	}
	return cubeFaces[face]
}

func (info *EvaluationInfo) resetInputs() {
	for i := range info.InputIndices {
		info.InputIndices[i] = NoInput
	}
}

func (info *EvaluationInfo) setInteraction(in Interaction) {
	info.Mouse[0] = in.X
	info.Mouse[1] = in.Y
	info.Mouse[2] = boolToFloat(in.Left)
	info.Mouse[3] = boolToFloat(in.Right)
}

func boolToFloat(b bool) float32 {
	if b {
		return 1
	}
	return 0
}
