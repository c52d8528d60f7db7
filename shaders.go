package deferred

import (
	"embed"

	"github.com/gogpu/deferred/internal/shader"
)

//go:embed shaders/*.wgsl
var shaderFS embed.FS

// Program labels. The software backend finds its kernels by these.
const (
	LabelGeometry   = "deferred/geometry"
	LabelAmbient    = "deferred/ambient"
	LabelPointLight = "deferred/pointlight"
	LabelGBuffer    = "deferred/gbuffer"
)

func mustShader(name string) string {
	b, err := shaderFS.ReadFile("shaders/" + name)
	if err != nil {
		panic("deferred: missing embedded shader " + name)
	}
	return string(b)
}

var (
	quadVertex = mustShader("quad.vert.wgsl")

	geometrySource = shader.Source{
		Label:    LabelGeometry,
		Vertex:   mustShader("geometry.vert.wgsl"),
		Fragment: mustShader("geometry.frag.wgsl"),
	}
	ambientSource = shader.Source{
		Label:    LabelAmbient,
		Vertex:   quadVertex,
		Fragment: mustShader("ambient.frag.wgsl"),
	}
	pointLightSource = shader.Source{
		Label:    LabelPointLight,
		Vertex:   quadVertex,
		Fragment: mustShader("pointlight.frag.wgsl"),
	}
	gbufferSource = shader.Source{
		Label:    LabelGBuffer,
		Vertex:   quadVertex,
		Fragment: mustShader("gbuffer.frag.wgsl"),
	}
)

// GeometrySource returns the program that fills the G-buffer.
func GeometrySource() shader.Source { return geometrySource }

// AmbientSource returns the full-screen ambient lighting program.
func AmbientSource() shader.Source { return ambientSource }

// PointLightSource returns the full-screen point light program.
func PointLightSource() shader.Source { return pointLightSource }

// GBufferSource returns the program that shows the G-buffer in quadrants.
func GBufferSource() shader.Source { return gbufferSource }
