package deferred

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/deferred/backend/software"
)

// The software backend runs Go kernels in place of WGSL. Each kernel below
// computes exactly what the shader with the same label does.
func init() {
	software.RegisterKernel(LabelGeometry, software.Kernel{
		Varyings: geometryVaryings,
		Vertex:   geometryVertex,
		Fragment: geometryFragment,
	})
	software.RegisterKernel(LabelAmbient, software.Kernel{
		Varyings: quadVaryings,
		Vertex:   quadVertexKernel,
		Fragment: ambientFragment,
	})
	software.RegisterKernel(LabelPointLight, software.Kernel{
		Varyings: quadVaryings,
		Vertex:   quadVertexKernel,
		Fragment: pointLightFragment,
	})
	software.RegisterKernel(LabelGBuffer, software.Kernel{
		Varyings: quadVaryings,
		Vertex:   quadVertexKernel,
		Fragment: gbufferFragment,
	})
}

// Varying layouts: world position (3), world normal (3), color (4) and
// view depth (1) for geometry; uv (2) for full-screen passes.
const (
	geometryVaryings = 11
	quadVaryings     = 2
)

func vec3In(s []float32) mgl32.Vec3 {
	var v mgl32.Vec3
	copy(v[:], s)
	return v
}

func vec4In(s []float32, w float32) mgl32.Vec4 {
	v := mgl32.Vec4{0, 0, 0, w}
	copy(v[:], s)
	return v
}

func geometryVertex(b software.Bindings) software.VertexFunc {
	mvp := mgl32.Mat4(b.Mat4("mvp"))
	model := mgl32.Mat4(b.Mat4("model"))
	normal := mgl32.Mat4(b.Mat4("normalMatrix"))
	view := mgl32.Mat4(b.Mat4("view"))
	far := b.Float("far")

	return func(in [][]float32, out []float32) [4]float32 {
		local := vec3In(in[0]).Vec4(1)
		world := model.Mul4x1(local)
		n := normal.Mul4x1(vec3In(in[1]).Vec4(0))
		color := vec4In(in[2], 1)

		copy(out[0:3], world[:3])
		copy(out[3:6], n[:3])
		copy(out[6:10], color[:])
		out[10] = 0
		if far != 0 {
			out[10] = -view.Mul4x1(world).Z() / far
		}
		return mvp.Mul4x1(local)
	}
}

func geometryFragment(software.Bindings) software.FragmentFunc {
	return func(_ software.Fragment, in []float32, out *software.Outputs) bool {
		out[0] = [4]float32{in[0], in[1], in[2], 1}

		n := mgl32.Vec3{in[3], in[4], in[5]}
		if l := n.Len(); l > 0 {
			n = n.Mul(1 / l)
		}
		out[1] = [4]float32{n[0], n[1], n[2], 1}

		out[2] = [4]float32{in[6], in[7], in[8], in[9]}
		d := in[10]
		out[3] = [4]float32{d, d, d, 1}
		return true
	}
}

func quadVertexKernel(software.Bindings) software.VertexFunc {
	return func(in [][]float32, out []float32) [4]float32 {
		p := vec3In(in[0])
		copy(out[:2], in[1])
		return [4]float32{p[0], p[1], 0.5, 1}
	}
}

func ambientFragment(b software.Bindings) software.FragmentFunc {
	albedo := b.Texture("textureColor")
	ac := b.Vec4("ambientColor")
	ai := b.Float("ambientIntensity")
	return func(_ software.Fragment, in []float32, out *software.Outputs) bool {
		a := albedo.Sample(in[0], in[1])
		out[0] = [4]float32{a[0] * ac[0] * ai, a[1] * ac[1] * ai, a[2] * ac[2] * ai, 1}
		return true
	}
}

func pointLightFragment(b software.Bindings) software.FragmentFunc {
	positions := b.Texture("texturePosition")
	normals := b.Texture("textureNormal")
	albedos := b.Texture("textureColor")
	depths := b.Texture("textureDepth")

	lightPos := mgl32.Vec3(b.Vec3("pointPosition"))
	color := b.Vec4("pointColor")
	intensity := b.Float("pointIntensity")
	distance := b.Float("pointDistance")
	attenuation := float64(b.Float("pointAttenuation"))

	return func(_ software.Fragment, in []float32, out *software.Outputs) bool {
		u, v := in[0], in[1]
		p := positions.Sample(u, v)
		n := normals.Sample(u, v)
		a := albedos.Sample(u, v)
		if depths.Sample(u, v)[0] <= 0 {
			return false
		}

		toLight := lightPos.Sub(mgl32.Vec3{p[0], p[1], p[2]})
		dist := max(toLight.Len(), 1e-4)
		normal := mgl32.Vec3{n[0], n[1], n[2]}
		if l := normal.Len(); l > 0 {
			normal = normal.Mul(1 / l)
		}
		diffuse := max(normal.Dot(toLight.Mul(1/dist)), 0)
		falloff := float32(math.Pow(float64(mgl32.Clamp(1-dist/distance, 0, 1)), attenuation))
		k := intensity * diffuse * falloff
		out[0] = [4]float32{a[0] * color[0] * k, a[1] * color[1] * k, a[2] * color[2] * k, 1}
		return true
	}
}

func gbufferFragment(b software.Bindings) software.FragmentFunc {
	textures := [4]software.Sampler{
		b.Texture("texturePosition"),
		b.Texture("textureNormal"),
		b.Texture("textureColor"),
		b.Texture("textureDepth"),
	}
	texel := b.Vec2("u_texelSize")

	return func(_ software.Fragment, in []float32, out *software.Outputs) bool {
		qx := quadrant(in[0])
		qy := quadrant(in[1])
		s := mgl32.Clamp((in[0]-qx*0.5)*2, texel[0]*0.5, 1-texel[0]*0.5)
		t := mgl32.Clamp((in[1]-qy*0.5)*2, texel[1]*0.5, 1-texel[1]*0.5)

		c := textures[int(qy)*2+int(qx)].Sample(s, t)
		out[0] = [4]float32{c[0], c[1], c[2], 1}
		return true
	}
}

// quadrant returns 0 for the first half of [0, 1] and 1 for the second.
func quadrant(u float32) float32 {
	return float32(math.Floor(float64(mgl32.Clamp(u, 0, 0.999999) * 2)))
}
