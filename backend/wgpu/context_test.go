package wgpu

import (
	"errors"
	"testing"

	"github.com/gogpu/deferred/backend"
	"github.com/gogpu/deferred/internal/shader"
	"github.com/gogpu/gputypes"
)

const solidVS = `
@vertex
fn vs_main(@location(0) a_position: vec2<f32>) -> @builtin(position) vec4<f32> {
	return vec4<f32>(a_position, 0.5, 1.0);
}
`

const solidFS = `
struct Params {
	color: vec4<f32>,
}

@group(1) @binding(0) var<uniform> params: Params;

@fragment
fn fs_main() -> @location(0) vec4<f32> {
	return params.color;
}
`

// newGPUContext skips the test when no hardware adapter is present.
func newGPUContext(t *testing.T, w, h int) *Context {
	t.Helper()
	c, err := New(w, h)
	if err != nil {
		t.Skipf("no GPU adapter: %v", err)
	}
	t.Cleanup(c.Release)
	return c
}

func TestNewInvalidSize(t *testing.T) {
	if _, err := New(0, 4); !errors.Is(err, backend.ErrInvalidSize) {
		t.Errorf("New(0, 4) error = %v, want ErrInvalidSize", err)
	}
}

func TestAdapterType(t *testing.T) {
	if got := adapterType(gputypes.DeviceTypeCPU); got.String() != "Software" {
		t.Errorf("adapterType(CPU) = %v, want Software", got)
	}
}

func TestRegistered(t *testing.T) {
	if !backend.IsRegistered(backend.BackendWGPU) {
		t.Errorf("IsRegistered(%q) = false, want true", backend.BackendWGPU)
	}
}

func TestGPUClearReadPixels(t *testing.T) {
	c := newGPUContext(t, 8, 4)
	c.ClearColor(gputypes.Color{R: 1, G: 0, B: 0, A: 1})
	if err := c.Clear(backend.ColorBufferBit | backend.DepthBufferBit); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	px, err := c.ReadPixels()
	if err != nil {
		t.Fatalf("ReadPixels() error = %v", err)
	}
	if len(px) != 8*4*4 {
		t.Fatalf("len(ReadPixels()) = %d, want %d", len(px), 8*4*4)
	}
	if px[0] != 255 || px[1] != 0 || px[3] != 255 {
		t.Errorf("pixel 0 = %v, want opaque red", px[:4])
	}
}

func TestGPUDrawSolid(t *testing.T) {
	c := newGPUContext(t, 4, 4)
	p, err := c.CreateProgram(shader.Source{Label: "solid", Vertex: solidVS, Fragment: solidFS})
	if err != nil {
		t.Fatalf("CreateProgram() error = %v", err)
	}
	defer p.Release()
	vb, err := c.CreateVertexBuffer([]float32{-1, -1, 3, -1, -1, 3})
	if err != nil {
		t.Fatalf("CreateVertexBuffer() error = %v", err)
	}
	defer vb.Release()
	va, err := c.CreateVertexArray(p, backend.VertexArrayDescriptor{
		Attributes: []backend.VertexAttrib{{Name: "a_position", Buffer: vb, Components: 2}},
	})
	if err != nil {
		t.Fatalf("CreateVertexArray() error = %v", err)
	}

	c.UseProgram(p)
	c.BindVertexArray(va)
	c.Uniform4f(p.UniformLocation("color"), 0, 0, 1, 1)
	if err := c.Clear(backend.ColorBufferBit); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if err := c.DrawArrays(0, 3); err != nil {
		t.Fatalf("DrawArrays() error = %v", err)
	}
	px, err := c.ReadPixels()
	if err != nil {
		t.Fatalf("ReadPixels() error = %v", err)
	}
	i := (2*4 + 2) * 4
	if px[i] != 0 || px[i+2] != 255 {
		t.Errorf("pixel (2,2) = %v, want blue", px[i:i+4])
	}

	if err := c.DrawArrays(0, 3); err != nil {
		t.Fatalf("second DrawArrays() error = %v", err)
	}
	if hits, misses := c.PipelineStats(); hits != 1 || misses != 1 {
		t.Errorf("PipelineStats() = %d, %d, want 1, 1", hits, misses)
	}
}

func TestGPUDrawWithoutProgram(t *testing.T) {
	c := newGPUContext(t, 4, 4)
	if err := c.DrawArrays(0, 3); !errors.Is(err, backend.ErrNoProgram) {
		t.Errorf("DrawArrays() error = %v, want ErrNoProgram", err)
	}
}
