package deferred

import (
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/gogpu/deferred/backend"
	"github.com/gogpu/deferred/backend/software"
	"github.com/gogpu/deferred/internal/shader"
	"github.com/gogpu/gputypes"
)

func newSoftware(t *testing.T, w, h int) backend.Context {
	t.Helper()
	ctx, err := software.New(w, h)
	if err != nil {
		t.Fatalf("software.New(%d, %d) error = %v", w, h, err)
	}
	t.Cleanup(ctx.Release)
	return ctx
}

func quadDesc(src shader.Source) DrawStateDesc {
	return DrawStateDesc{
		Shader: src,
		Attributes: []Attribute{
			{Name: "a_position", Size: 3, Data: []float32{-1, 1, 0, 1, 1, 0, -1, -1, 0, 1, -1, 0}},
			{Name: "a_uv", Size: 2, Data: []float32{0, 0, 1, 0, 0, 1, 1, 1}},
		},
		Indices: []uint32{0, 2, 1, 1, 2, 3},
	}
}

func TestNewDrawState(t *testing.T) {
	ctx := newSoftware(t, 8, 8)
	d, err := NewDrawState(ctx, quadDesc(AmbientSource()))
	if err != nil {
		t.Fatalf("NewDrawState() error = %v", err)
	}
	defer d.Release()

	if d.Count() != 6 {
		t.Errorf("Count() = %d, want 6", d.Count())
	}
	if !d.Indexed() {
		t.Error("Indexed() = false, want true")
	}
	want := []string{"ambientColor", "ambientIntensity", "gbufferSampler", "textureColor"}
	if got := d.UniformNames(); !slices.Equal(got, want) {
		t.Errorf("UniformNames() = %v, want %v", got, want)
	}
	if d.Location("missing") != backend.NoLocation {
		t.Errorf("Location(missing) = %d, want NoLocation", d.Location("missing"))
	}

	u := d.Uniforms()
	u["injected"] = 3
	if d.Location("injected") != backend.NoLocation {
		t.Error("Uniforms() exposed the internal map")
	}
}

func TestNewDrawStateCountOverride(t *testing.T) {
	ctx := newSoftware(t, 8, 8)
	desc := quadDesc(AmbientSource())
	desc.Count = 3
	d, err := NewDrawState(ctx, desc)
	if err != nil {
		t.Fatal(err)
	}
	defer d.Release()
	if d.Count() != 3 {
		t.Errorf("Count() = %d, want 3", d.Count())
	}

	desc = quadDesc(AmbientSource())
	desc.Indices = nil
	d2, err := NewDrawState(ctx, desc)
	if err != nil {
		t.Fatal(err)
	}
	defer d2.Release()
	if d2.Count() != 4 || d2.Indexed() {
		t.Errorf("non-indexed Count() = %d Indexed() = %v, want 4 false", d2.Count(), d2.Indexed())
	}
}

func TestNewDrawStateOffset(t *testing.T) {
	ctx := newSoftware(t, 8, 8)

	tests := []struct {
		name      string
		indexed   bool
		offset    int
		count     int
		wantCount int
	}{
		{"indexed offset", true, 3, 0, 3},
		{"indexed offset and count", true, 3, 2, 2},
		{"non-indexed offset", false, 1, 0, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			desc := quadDesc(AmbientSource())
			if !tt.indexed {
				desc.Indices = nil
			}
			desc.Offset = tt.offset
			desc.Count = tt.count
			d, err := NewDrawState(ctx, desc)
			if err != nil {
				t.Fatalf("NewDrawState() error = %v", err)
			}
			defer d.Release()
			if d.Count() != tt.wantCount {
				t.Errorf("Count() = %d, want %d", d.Count(), tt.wantCount)
			}
			if err := d.Use().Draw(); err != nil {
				t.Errorf("Draw() error = %v", err)
			}
		})
	}
}

func TestNewDrawStateBadOffset(t *testing.T) {
	ctx := newSoftware(t, 8, 8)

	tests := []struct {
		name   string
		offset int
		count  int
	}{
		{"negative", -1, 0},
		{"at end", 6, 0},
		{"past end", 9, 0},
		{"count overruns", 3, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			desc := quadDesc(AmbientSource())
			desc.Offset = tt.offset
			desc.Count = tt.count
			if d, err := NewDrawState(ctx, desc); err == nil {
				d.Release()
				t.Errorf("NewDrawState(offset %d, count %d) error = nil, want error", tt.offset, tt.count)
			}
		})
	}
}

func TestNewDrawStateCompileError(t *testing.T) {
	ctx := newSoftware(t, 8, 8)
	src := AmbientSource()
	src.Fragment = "@fragment fn fs_main( -> @location(0) vec4<f32> {"

	_, err := NewDrawState(ctx, quadDesc(src))
	var ce *shader.CompileError
	if !errors.As(err, &ce) {
		t.Fatalf("NewDrawState() error = %v, want *shader.CompileError", err)
	}
	if ce.Stage != shader.StageFragment {
		t.Errorf("CompileError.Stage = %v, want fragment", ce.Stage)
	}
}

func TestNewDrawStateUndeclaredAttribute(t *testing.T) {
	ctx := newSoftware(t, 8, 8)
	desc := quadDesc(AmbientSource())
	desc.Attributes = append(desc.Attributes, Attribute{Name: "a_bogus", Size: 1, Data: []float32{0, 0, 0, 0}})

	_, err := NewDrawState(ctx, desc)
	var le *shader.LinkError
	if !errors.As(err, &le) {
		t.Fatalf("NewDrawState() error = %v, want *shader.LinkError", err)
	}
	if !strings.Contains(le.Error(), "a_bogus") {
		t.Errorf("LinkError = %q, want it to name a_bogus", le.Error())
	}
}

func TestNewDrawStateMissingAttribute(t *testing.T) {
	ctx := newSoftware(t, 8, 8)
	desc := quadDesc(AmbientSource())
	desc.Attributes = desc.Attributes[:1]

	_, err := NewDrawState(ctx, desc)
	var le *shader.LinkError
	if !errors.As(err, &le) || !strings.Contains(le.Error(), "a_uv") {
		t.Fatalf("NewDrawState() error = %v, want *shader.LinkError naming a_uv", err)
	}
}

func TestNewDrawStateBadInput(t *testing.T) {
	ctx := newSoftware(t, 8, 8)

	desc := quadDesc(AmbientSource())
	desc.Topology = gputypes.PrimitiveTopologyLineList
	if _, err := NewDrawState(ctx, desc); err == nil {
		t.Error("NewDrawState(LineList) error = nil, want unsupported topology")
	}

	desc = quadDesc(AmbientSource())
	desc.Attributes[1].Data = desc.Attributes[1].Data[:7]
	if _, err := NewDrawState(ctx, desc); err == nil {
		t.Error("NewDrawState(ragged attribute) error = nil, want error")
	}
}

func TestBoundStale(t *testing.T) {
	ctx := newSoftware(t, 8, 8)
	a, err := NewDrawState(ctx, quadDesc(AmbientSource()))
	if err != nil {
		t.Fatal(err)
	}
	defer a.Release()
	b, err := NewDrawState(ctx, quadDesc(GBufferSource()))
	if err != nil {
		t.Fatal(err)
	}
	defer b.Release()

	ta := a.Use()
	if !ta.Valid() {
		t.Fatal("fresh token is not valid")
	}
	tb := b.Use()
	if ta.Valid() {
		t.Error("token stayed valid after another Use")
	}
	if err := ta.Draw(); !errors.Is(err, ErrStaleBinding) {
		t.Errorf("stale Draw() error = %v, want ErrStaleBinding", err)
	}
	if err := tb.Draw(); err != nil {
		t.Errorf("current Draw() error = %v", err)
	}

	var zero Bound
	if err := zero.Draw(); !errors.Is(err, ErrStaleBinding) {
		t.Errorf("zero Bound Draw() error = %v, want ErrStaleBinding", err)
	}
}

func TestBoundUnknownUniformIgnored(t *testing.T) {
	ctx := newSoftware(t, 4, 4)
	d, err := NewDrawState(ctx, quadDesc(AmbientSource()))
	if err != nil {
		t.Fatal(err)
	}
	defer d.Release()

	b := d.Use()
	b.Uniform1f("nope", 1)
	b.Uniform4f("alsoNope", 1, 2, 3, 4)
	b.Mat3("stillNope", [9]float32{})
	if err := b.Draw(); err != nil {
		t.Errorf("Draw() error = %v", err)
	}
}

func TestDrawStateReleaseIdempotent(t *testing.T) {
	ctx := newSoftware(t, 4, 4)
	d, err := NewDrawState(ctx, quadDesc(AmbientSource()))
	if err != nil {
		t.Fatal(err)
	}
	b := d.Use()
	d.Release()
	d.Release()
	if err := b.Draw(); !errors.Is(err, backend.ErrReleased) {
		t.Errorf("Draw() after Release error = %v, want ErrReleased", err)
	}
}
