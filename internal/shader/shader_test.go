package shader

import (
	"errors"
	"strings"
	"testing"
)

const testVS = `
struct Transform {
	mvp: mat4x4<f32>,
	tint: vec3<f32>,
	time: f32,
}

@group(0) @binding(0) var<uniform> transform: Transform;

struct VsOut {
	@builtin(position) clip: vec4<f32>,
	@location(0) uv: vec2<f32>,
	@location(1) tint: vec3<f32>,
}

@vertex
fn vs_main(@location(0) a_position: vec3<f32>, @location(1) a_uv: vec2<f32>) -> VsOut {
	var out: VsOut;
	out.clip = transform.mvp * vec4<f32>(a_position, 1.0);
	out.uv = a_uv;
	out.tint = transform.tint * transform.time;
	return out;
}
`

const testFS = `
@group(1) @binding(0) var diffuse: texture_2d<f32>;
@group(1) @binding(1) var normals: texture_2d<f32>;
@group(1) @binding(2) var linearSampler: sampler;

@fragment
fn fs_main(@location(0) uv: vec2<f32>, @location(1) tint: vec3<f32>) -> @location(0) vec4<f32> {
	let d = textureSample(diffuse, linearSampler, uv);
	let n = textureSample(normals, linearSampler, uv);
	return vec4<f32>(d.rgb * tint + n.rgb, 1.0);
}
`

func TestCompileStageReflection(t *testing.T) {
	m, err := CompileStage(StageVertex, "test", testVS, DefaultVertexEntry)
	if err != nil {
		t.Fatalf("CompileStage() error = %v", err)
	}
	if !m.HasEntry || !m.Position {
		t.Fatalf("HasEntry = %v, Position = %v, want both true", m.HasEntry, m.Position)
	}

	in, ok := m.Input("a_uv")
	if !ok || in.Location != 1 || in.Kind != KindVec2 {
		t.Errorf("Input(a_uv) = %+v, %v, want location 1 vec2", in, ok)
	}
	out, ok := m.Output(1)
	if !ok || out.Kind != KindVec3 {
		t.Errorf("Output(1) = %+v, %v, want vec3", out, ok)
	}

	if len(m.Uniforms) != 1 {
		t.Fatalf("len(Uniforms) = %d, want 1", len(m.Uniforms))
	}
	block := m.Uniforms[0]
	wantOffsets := map[string]uint32{"mvp": 0, "tint": 64, "time": 76}
	for _, mem := range block.Members {
		if want, ok := wantOffsets[mem.Name]; !ok || mem.Offset != want {
			t.Errorf("member %q offset = %d, want %d", mem.Name, mem.Offset, want)
		}
	}
	if block.Size != 80 {
		t.Errorf("block size = %d, want 80", block.Size)
	}
}

func TestBuildProgram(t *testing.T) {
	p, err := Build(Source{Label: "test", Vertex: testVS, Fragment: testFS})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if loc := p.Location("mvp"); loc < 0 || p.Uniforms[loc].Kind != KindMat4 {
		t.Errorf("Location(mvp) = %d, want a mat4 uniform", loc)
	}
	if loc := p.Location("nonexistent"); loc != -1 {
		t.Errorf("Location(nonexistent) = %d, want -1", loc)
	}

	tex := p.Textures()
	if len(tex) != 2 {
		t.Fatalf("len(Textures()) = %d, want 2", len(tex))
	}
	if tex[0].Name != "diffuse" || tex[0].Unit != 0 || tex[1].Name != "normals" || tex[1].Unit != 1 {
		t.Errorf("Textures() = %+v, want diffuse@0 normals@1", tex)
	}

	if err := p.BindAttributes([]string{"a_position", "a_uv"}); err != nil {
		t.Errorf("BindAttributes() error = %v", err)
	}
	err = p.BindAttributes([]string{"a_position", "a_normal"})
	var le *LinkError
	if !errors.As(err, &le) || !strings.Contains(err.Error(), "a_normal") {
		t.Errorf("BindAttributes(a_normal) error = %v, want *LinkError naming a_normal", err)
	}
}

func TestBuildCompileError(t *testing.T) {
	tests := []struct {
		name  string
		src   Source
		stage Stage
	}{
		{"vertex syntax", Source{Label: "bad", Vertex: "fn vs_main( {", Fragment: testFS}, StageVertex},
		{"fragment syntax", Source{Label: "bad", Vertex: testVS, Fragment: "@fragment fn fs_main() -> "}, StageFragment},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(tt.src)
			var ce *CompileError
			if !errors.As(err, &ce) {
				t.Fatalf("Build() error = %v, want *CompileError", err)
			}
			if ce.Stage != tt.stage {
				t.Errorf("Stage = %v, want %v", ce.Stage, tt.stage)
			}
			if len(ce.Diagnostics) == 0 {
				t.Error("Diagnostics is empty")
			}
		})
	}
}

func TestLinkMismatch(t *testing.T) {
	const fs = `
@fragment
fn fs_main(@location(0) uv: vec2<f32>, @location(5) extra: vec4<f32>) -> @location(0) vec4<f32> {
	return extra + vec4<f32>(uv, 0.0, 1.0);
}
`
	_, err := Build(Source{Label: "mismatch", Vertex: testVS, Fragment: fs})
	var le *LinkError
	if !errors.As(err, &le) {
		t.Fatalf("Build() error = %v, want *LinkError", err)
	}
	if len(le.Log) == 0 || !strings.Contains(le.Log[0], "extra") {
		t.Errorf("Log = %q, want a message about input extra", le.Log)
	}
}

func TestLinkMissingEntry(t *testing.T) {
	_, err := Build(Source{Label: "entry", Vertex: testVS, Fragment: testFS, FragmentEntry: "main"})
	var le *LinkError
	if !errors.As(err, &le) {
		t.Fatalf("Build() error = %v, want *LinkError", err)
	}
	if le.FragmentLog == "" {
		t.Error("FragmentLog is empty")
	}
}

func TestLinkGroupConvention(t *testing.T) {
	const fs = `
@group(0) @binding(3) var diffuse: texture_2d<f32>;
@group(1) @binding(0) var s: sampler;

@fragment
fn fs_main(@location(0) uv: vec2<f32>) -> @location(0) vec4<f32> {
	return textureSample(diffuse, s, uv);
}
`
	_, err := Build(Source{Label: "groups", Vertex: testVS, Fragment: fs})
	var le *LinkError
	if !errors.As(err, &le) || !strings.Contains(err.Error(), "@group(0)") {
		t.Errorf("Build() error = %v, want group convention violation", err)
	}
}

func TestLinkErrorMessage(t *testing.T) {
	le := &LinkError{Label: "p", Log: []string{"a", "b"}, FragmentLog: "c"}
	if got, want := le.Error(), "shader: link \"p\": a\nb\nc"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestKindString(t *testing.T) {
	tests := []struct {
		k    Kind
		want string
		n    int
	}{
		{KindFloat, "f32", 1},
		{KindVec3, "vec3<f32>", 3},
		{KindMat4, "mat4x4<f32>", 16},
		{KindTexture, "texture_2d<f32>", 0},
	}
	for _, tt := range tests {
		if got := tt.k.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", tt.k, got, tt.want)
		}
		if got := tt.k.Components(); got != tt.n {
			t.Errorf("%s.Components() = %d, want %d", tt.k, got, tt.n)
		}
	}
}
