package backend

import (
	"github.com/gogpu/gputypes"
)

// RenderState is the fixed-function state consumed by a draw.
// It is comparable and is used as part of pipeline cache keys.
type RenderState struct {
	DepthTest    bool
	DepthWrite   bool
	DepthCompare gputypes.CompareFunction

	Blend         bool
	BlendSrc      gputypes.BlendFactor
	BlendDst      gputypes.BlendFactor
	BlendOp       gputypes.BlendOperation
	CullFaceOn    bool
	CullMode      gputypes.CullMode
	FrontFace     gputypes.FrontFace
	DrawBuffers   int
	ViewportX     int
	ViewportY     int
	ViewportW     int
	ViewportH     int
	ClearColorRGB gputypes.Color
	ClearDepthVal float32
}

// DefaultRenderState returns the initial state of a context whose default
// framebuffer is width x height: depth test, blending and culling off, depth
// writes on, Less comparison, One/Zero Add blending, back-face culling
// selected, counter-clockwise front faces, one draw buffer.
func DefaultRenderState(width, height int) RenderState {
	return RenderState{
		DepthWrite:    true,
		DepthCompare:  gputypes.CompareFunctionLess,
		BlendSrc:      gputypes.BlendFactorOne,
		BlendDst:      gputypes.BlendFactorZero,
		BlendOp:       gputypes.BlendOperationAdd,
		CullMode:      gputypes.CullModeBack,
		FrontFace:     gputypes.FrontFaceCCW,
		DrawBuffers:   1,
		ViewportW:     width,
		ViewportH:     height,
		ClearDepthVal: 1,
	}
}

// StateTracker implements the state-setting half of Context. Backends embed
// it and read State() when encoding a draw.
type StateTracker struct {
	state      RenderState
	generation uint64
}

// NewStateTracker returns a tracker holding DefaultRenderState.
func NewStateTracker(width, height int) StateTracker {
	return StateTracker{state: DefaultRenderState(width, height)}
}

// State returns a copy of the current state.
func (s *StateTracker) State() RenderState { return s.state }

// Enable turns a capability on.
func (s *StateTracker) Enable(c Capability) { s.set(c, true) }

// Disable turns a capability off.
func (s *StateTracker) Disable(c Capability) { s.set(c, false) }

func (s *StateTracker) set(c Capability, on bool) {
	switch c {
	case DepthTest:
		s.state.DepthTest = on
	case Blend:
		s.state.Blend = on
	case CullFace:
		s.state.CullFaceOn = on
	}
}

// IsEnabled reports whether a capability is on.
func (s *StateTracker) IsEnabled(c Capability) bool {
	switch c {
	case DepthTest:
		return s.state.DepthTest
	case Blend:
		return s.state.Blend
	case CullFace:
		return s.state.CullFaceOn
	}
	return false
}

func (s *StateTracker) DepthMask(write bool)                     { s.state.DepthWrite = write }
func (s *StateTracker) DepthMaskEnabled() bool                   { return s.state.DepthWrite }
func (s *StateTracker) DepthFunc(f gputypes.CompareFunction)     { s.state.DepthCompare = f }
func (s *StateTracker) BlendEquation(op gputypes.BlendOperation) { s.state.BlendOp = op }
func (s *StateTracker) CullFace(mode gputypes.CullMode)          { s.state.CullMode = mode }
func (s *StateTracker) FrontFace(face gputypes.FrontFace)        { s.state.FrontFace = face }
func (s *StateTracker) ClearColor(c gputypes.Color)              { s.state.ClearColorRGB = c }
func (s *StateTracker) ClearDepth(d float32)                     { s.state.ClearDepthVal = d }

// BlendFunc sets the source and destination blend factors.
func (s *StateTracker) BlendFunc(src, dst gputypes.BlendFactor) {
	s.state.BlendSrc = src
	s.state.BlendDst = dst
}

// Viewport sets the viewport rectangle in pixels.
func (s *StateTracker) Viewport(x, y, width, height int) {
	s.state.ViewportX = x
	s.state.ViewportY = y
	s.state.ViewportW = width
	s.state.ViewportH = height
}

// DrawBuffers sets the number of active color attachments, clamped to
// [1, MaxColorAttachments].
func (s *StateTracker) DrawBuffers(n int) {
	s.state.DrawBuffers = min(max(n, 1), MaxColorAttachments)
}

// BindingGeneration returns the binding generation counter.
func (s *StateTracker) BindingGeneration() uint64 { return s.generation }

// Rebind advances the binding generation. Backends call it from UseProgram
// and BindVertexArray.
func (s *StateTracker) Rebind() { s.generation++ }

// BlendComponent returns the blend state as a gputypes component.
func (r RenderState) BlendComponent() gputypes.BlendComponent {
	return gputypes.BlendComponent{
		SrcFactor: r.BlendSrc,
		DstFactor: r.BlendDst,
		Operation: r.BlendOp,
	}
}

// EffectiveCullMode returns CullModeNone when culling is disabled.
func (r RenderState) EffectiveCullMode() gputypes.CullMode {
	if !r.CullFaceOn {
		return gputypes.CullModeNone
	}
	return r.CullMode
}

// EffectiveDepthCompare returns CompareFunctionAlways when the depth test is
// disabled.
func (r RenderState) EffectiveDepthCompare() gputypes.CompareFunction {
	if !r.DepthTest {
		return gputypes.CompareFunctionAlways
	}
	return r.DepthCompare
}

// EffectiveDepthWrite reports whether a draw writes depth. As in GL, a
// disabled depth test also disables depth writes.
func (r RenderState) EffectiveDepthWrite() bool {
	return r.DepthTest && r.DepthWrite
}
