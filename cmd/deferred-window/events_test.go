package main

import (
	"testing"

	"github.com/gogpu/deferred/camera"
	"github.com/gogpu/gpucontext"
)

func TestDispatchResize(t *testing.T) {
	s := &eventSource{}
	var got [][2]int
	s.OnResize(func(w, h int) { got = append(got, [2]int{w, h}) })

	s.dispatch(inputState{width: 800, height: 600})
	s.dispatch(inputState{width: 800, height: 600})
	s.dispatch(inputState{width: 1024, height: 768})
	s.dispatch(inputState{})

	want := [][2]int{{800, 600}, {1024, 768}}
	if len(got) != len(want) {
		t.Fatalf("resize events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("resize[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestDispatchMouse(t *testing.T) {
	s := &eventSource{}
	var log []string
	s.OnMousePress(func(gpucontext.MouseButton, float64, float64) { log = append(log, "press") })
	s.OnMouseMove(func(float64, float64) { log = append(log, "move") })
	s.OnMouseRelease(func(gpucontext.MouseButton, float64, float64) { log = append(log, "release") })

	s.dispatch(inputState{x: 10, y: 10})
	s.dispatch(inputState{x: 10, y: 10, pressed: []gpucontext.MouseButton{gpucontext.MouseButtonLeft}})
	s.dispatch(inputState{x: 20, y: 10})
	s.dispatch(inputState{x: 20, y: 10, released: []gpucontext.MouseButton{gpucontext.MouseButtonLeft}})

	want := []string{"press", "move", "release"}
	if len(log) != len(want) {
		t.Fatalf("events = %v, want %v", log, want)
	}
	for i := range want {
		if log[i] != want[i] {
			t.Errorf("event[%d] = %q, want %q", i, log[i], want[i])
		}
	}
}

func TestDispatchKeysAndScroll(t *testing.T) {
	s := &eventSource{}
	var keys []gpucontext.Key
	var scroll float64
	s.OnKeyPress(func(k gpucontext.Key, _ gpucontext.Modifiers) { keys = append(keys, k) })
	s.OnScroll(func(_, dy float64) { scroll += dy })

	s.dispatch(inputState{keys: []gpucontext.Key{gpucontext.KeyG}, wheelY: -1})
	s.dispatch(inputState{})

	if len(keys) != 1 || keys[0] != gpucontext.KeyG {
		t.Errorf("keys = %v, want [KeyG]", keys)
	}
	if scroll != -1 {
		t.Errorf("scroll = %v, want -1", scroll)
	}
}

func TestDispatchDrivesCamera(t *testing.T) {
	s := &eventSource{}
	cam := camera.New(camera.DefaultOptions())
	cam.Attach(s)
	before := cam.View()

	s.dispatch(inputState{x: 100, y: 100, width: 800, height: 600})
	s.dispatch(inputState{x: 100, y: 100, width: 800, height: 600, pressed: []gpucontext.MouseButton{gpucontext.MouseButtonLeft}})
	s.dispatch(inputState{x: 200, y: 100, width: 800, height: 600})

	if cam.View() == before {
		t.Error("drag did not change the camera view")
	}

	d := cam.Distance()
	s.dispatch(inputState{x: 200, y: 100, width: 800, height: 600, wheelY: -1})
	if got := cam.Distance(); got >= d {
		t.Errorf("Distance() after zoom in = %v, want < %v", got, d)
	}
}
