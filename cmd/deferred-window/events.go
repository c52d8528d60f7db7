package main

import (
	"github.com/gogpu/gpucontext"
)

// inputState is one poll of the window input.
type inputState struct {
	x, y     float64
	pressed  []gpucontext.MouseButton
	released []gpucontext.MouseButton
	wheelY   float64
	keys     []gpucontext.Key
	width    int
	height   int
}

// eventSource turns polled input into gpucontext callbacks. Events not
// produced by the window fall through to NullEventSource.
type eventSource struct {
	gpucontext.NullEventSource

	keyPress     []func(gpucontext.Key, gpucontext.Modifiers)
	mouseMove    []func(x, y float64)
	mousePress   []func(gpucontext.MouseButton, float64, float64)
	mouseRelease []func(gpucontext.MouseButton, float64, float64)
	scroll       []func(dx, dy float64)
	resize       []func(w, h int)

	last    inputState
	started bool
}

var _ gpucontext.EventSource = (*eventSource)(nil)

func (s *eventSource) OnKeyPress(fn func(gpucontext.Key, gpucontext.Modifiers)) {
	s.keyPress = append(s.keyPress, fn)
}

func (s *eventSource) OnMouseMove(fn func(x, y float64)) {
	s.mouseMove = append(s.mouseMove, fn)
}

func (s *eventSource) OnMousePress(fn func(gpucontext.MouseButton, float64, float64)) {
	s.mousePress = append(s.mousePress, fn)
}

func (s *eventSource) OnMouseRelease(fn func(gpucontext.MouseButton, float64, float64)) {
	s.mouseRelease = append(s.mouseRelease, fn)
}

func (s *eventSource) OnScroll(fn func(dx, dy float64)) {
	s.scroll = append(s.scroll, fn)
}

func (s *eventSource) OnResize(fn func(w, h int)) {
	s.resize = append(s.resize, fn)
}

// dispatch delivers the difference between in and the previous poll.
// Presses come before movement so a drag starts at the press position.
func (s *eventSource) dispatch(in inputState) {
	if in.width > 0 && in.height > 0 && (!s.started || in.width != s.last.width || in.height != s.last.height) {
		for _, fn := range s.resize {
			fn(in.width, in.height)
		}
	}
	for _, b := range in.pressed {
		for _, fn := range s.mousePress {
			fn(b, in.x, in.y)
		}
	}
	if s.started && (in.x != s.last.x || in.y != s.last.y) {
		for _, fn := range s.mouseMove {
			fn(in.x, in.y)
		}
	}
	for _, b := range in.released {
		for _, fn := range s.mouseRelease {
			fn(b, in.x, in.y)
		}
	}
	if in.wheelY != 0 {
		for _, fn := range s.scroll {
			fn(0, in.wheelY)
		}
	}
	for _, k := range in.keys {
		for _, fn := range s.keyPress {
			fn(k, 0)
		}
	}

	if in.width <= 0 || in.height <= 0 {
		in.width, in.height = s.last.width, s.last.height
	}
	s.last = in
	s.started = true
}
