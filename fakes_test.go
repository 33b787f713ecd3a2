package evalgraph

import (
	"errors"
	"image"
	"log/slog"
)

type fakeTexture struct {
	id    int
	w, h  int
	faces int
}

func (t *fakeTexture) Width() int  { return t.w }
func (t *fakeTexture) Height() int { return t.h }
func (t *fakeTexture) Faces() int  { return t.faces }

// fakeShader records every texture and pass it sees.
type fakeShader struct {
	programs  map[string]bool
	failTypes map[string]bool
	next      int
	live      map[*fakeTexture]bool
	destroyed int
	passes    []Pass
	logger    *slog.Logger
}

func newFakeShader(programs ...string) *fakeShader {
	s := &fakeShader{
		programs:  make(map[string]bool),
		failTypes: make(map[string]bool),
		live:      make(map[*fakeTexture]bool),
	}
	for _, p := range programs {
		s.programs[p] = true
	}
	return s
}

func (s *fakeShader) CreateTexture(w, h, faces int) (Texture, error) {
	s.next++
	t := &fakeTexture{id: s.next, w: w, h: h, faces: faces}
	s.live[t] = true
	return t, nil
}

func (s *fakeShader) DestroyTexture(t Texture) {
	ft := t.(*fakeTexture)
	if s.live[ft] {
		delete(s.live, ft)
		s.destroyed++
	}
}

func (s *fakeShader) HasProgram(nodeType string) bool { return s.programs[nodeType] }

func (s *fakeShader) Draw(p *Pass) error {
	if s.failTypes[p.Type] {
		return errors.New("draw failed")
	}
	s.passes = append(s.passes, *p)
	return nil
}

func (s *fakeShader) SetLogger(l *slog.Logger) { s.logger = l }

func (s *fakeShader) passesFor(id NodeID) []Pass {
	var out []Pass
	for _, p := range s.passes {
		if p.Node == id {
			out = append(out, p)
		}
	}
	return out
}

// funcTable is a map-backed NativeTable.
type funcTable map[string]NativeFunc

func (t funcTable) Lookup(nodeType string) (NativeFunc, bool) {
	fn, ok := t[nodeType]
	return fn, ok
}

// recorder is a native function table that logs execution order.
type recorder struct {
	calls []NodeID
	infos []EvaluationInfo
}

func (r *recorder) fn(s *Scope, _ []byte, info EvaluationInfo) (Status, error) {
	r.calls = append(r.calls, s.Node())
	r.infos = append(r.infos, info)
	return StatusOK, nil
}

// fakeStream counts lifecycle calls.
type fakeStream struct {
	name      string
	w, h      int
	fps, rate int
	frames    int
	finished  int
	finishErr error
}

func (s *fakeStream) Init(filename string, w, h, fps, rate int) error {
	s.name, s.w, s.h, s.fps, s.rate = filename, w, h, fps, rate
	return nil
}

func (s *fakeStream) AddFrame(image.Image) error {
	s.frames++
	return nil
}

func (s *fakeStream) Finish() error {
	s.finished++
	return s.finishErr
}

// mustAdd adds a node of type typ with the given inputs and fails the test on error.
func mustAdd(tb interface {
	Helper()
	Fatalf(string, ...any)
}, g *Graph, typ string, mask BackendMask, inputs ...NodeID) NodeID {
	tb.Helper()
	n := NewNode(typ, mask)
	copy(n.Inputs[:], inputs)
	id, err := g.AddNode(n)
	if err != nil {
		tb.Fatalf("AddNode(%s): %v", typ, err)
	}
	return id
}
