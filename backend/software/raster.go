package software

import (
	"errors"
	"fmt"
	"math"

	"github.com/gogpu/deferred/backend"
	"github.com/gogpu/deferred/internal/parallel"
	"github.com/gogpu/gputypes"
)

var errNoIndices = errors.New("software: vertex array has no index buffer")

// clipVertex is a transformed vertex in clip space.
type clipVertex struct {
	pos  [4]float32
	vary []float32
}

// screenVertex is a vertex after the perspective divide and viewport
// transform. vary holds varyings pre-multiplied by invW.
type screenVertex struct {
	x, y, z float64
	invW    float64
	vary    []float32
}

// setupTriangle is a triangle ready for scan conversion, wound so that its
// area is positive.
type setupTriangle struct {
	v          [3]screenVertex
	area       float64
	minX, maxX int
	minY, maxY int
}

// DrawElements draws count indices of the bound vertex array's index buffer
// starting at offset as a triangle list.
func (c *Context) DrawElements(count, offset int) error {
	va, err := c.drawReady()
	if err != nil {
		return err
	}
	if va.indices == nil {
		return errNoIndices
	}
	if count < 0 || offset < 0 || offset+count > len(va.indices.indices) {
		return fmt.Errorf("software: draw range [%d, %d) exceeds %d indices",
			offset, offset+count, len(va.indices.indices))
	}
	return c.draw(va, va.indices.indices[offset:offset+count])
}

// DrawArrays draws count consecutive vertices starting at first as a
// triangle list.
func (c *Context) DrawArrays(first, count int) error {
	va, err := c.drawReady()
	if err != nil {
		return err
	}
	if count < 0 || first < 0 || first+count > va.vertexCount {
		return fmt.Errorf("software: draw range [%d, %d) exceeds %d vertices",
			first, first+count, va.vertexCount)
	}
	idx := make([]uint32, count)
	for i := range idx {
		idx[i] = uint32(first + i)
	}
	return c.draw(va, idx)
}

func (c *Context) drawReady() (*vertexArray, error) {
	switch {
	case c.released:
		return nil, backend.ErrReleased
	case c.prog == nil:
		return nil, backend.ErrNoProgram
	case c.vao == nil:
		return nil, backend.ErrNoVertexArray
	case c.vao.prog != c.prog:
		return nil, fmt.Errorf("software: vertex array was created for program %q, %q is in use",
			c.vao.prog.info.Label, c.prog.info.Label)
	}
	return c.vao, nil
}

func (c *Context) draw(va *vertexArray, idx []uint32) error {
	prog := c.prog
	st := c.State()
	fb := c.bound
	b := bindings{prog: prog, units: c.units[:]}
	vf := prog.kernel.Vertex(b)
	ff := prog.kernel.Fragment(b)

	verts, err := c.transform(va, vf, prog.kernel.Varyings, idx)
	if err != nil {
		return err
	}

	var tris []setupTriangle
	var poly []clipVertex
	for i := 0; i+2 < len(idx); i += 3 {
		poly = append(poly[:0], verts[idx[i]], verts[idx[i+1]], verts[idx[i+2]])
		poly = clipNear(poly)
		for k := 1; k+1 < len(poly); k++ {
			if t, ok := setup(st, fb, poly[0], poly[k], poly[k+1]); ok {
				tris = append(tris, t)
			}
		}
	}
	if len(tris) == 0 {
		return nil
	}

	targets := c.colorTargets(st, fb, prog)
	bands := parallel.SplitBands(fb.height, c.bandHeight)
	parallel.ForEachBand(c.pool, bands, func(band parallel.Band) {
		r := rasterizer{
			st:      st,
			fb:      fb,
			targets: targets,
			shade:   ff,
			vary:    make([]float32, prog.kernel.Varyings),
		}
		for i := range tris {
			r.triangle(&tris[i], band)
		}
	})
	return nil
}

// transform runs the vertex kernel once for every referenced vertex.
func (c *Context) transform(va *vertexArray, vf VertexFunc, varyings int, idx []uint32) ([]clipVertex, error) {
	verts := make([]clipVertex, va.vertexCount)
	done := make([]bool, va.vertexCount)
	in := make([][]float32, va.maxLocation+1)
	zero := make([]float32, 4)
	for _, v := range idx {
		if int(v) >= va.vertexCount {
			return nil, fmt.Errorf("software: index %d out of range (%d vertices)", v, va.vertexCount)
		}
		if done[v] {
			continue
		}
		for i := range in {
			in[i] = zero
		}
		for _, a := range va.attrs {
			off := int(v) * a.components
			in[a.location] = a.data[off : off+a.components]
		}
		out := make([]float32, varyings)
		verts[v] = clipVertex{pos: vf(in, out), vary: out}
		done[v] = true
	}
	return verts, nil
}

// clipNear clips a convex polygon against the z >= 0 clip plane.
func clipNear(poly []clipVertex) []clipVertex {
	inside := 0
	for _, v := range poly {
		if v.pos[2] >= 0 {
			inside++
		}
	}
	if inside == len(poly) {
		return poly
	}
	if inside == 0 {
		return poly[:0]
	}
	out := make([]clipVertex, 0, len(poly)+1)
	for i := range poly {
		a, b := poly[i], poly[(i+1)%len(poly)]
		da, db := a.pos[2], b.pos[2]
		if da >= 0 {
			out = append(out, a)
		}
		if (da >= 0) != (db >= 0) {
			out = append(out, lerpVertex(a, b, da/(da-db)))
		}
	}
	return out
}

func lerpVertex(a, b clipVertex, t float32) clipVertex {
	var v clipVertex
	for i := range v.pos {
		v.pos[i] = a.pos[i] + (b.pos[i]-a.pos[i])*t
	}
	v.vary = make([]float32, len(a.vary))
	for i := range v.vary {
		v.vary[i] = a.vary[i] + (b.vary[i]-a.vary[i])*t
	}
	return v
}

func project(st backend.RenderState, v clipVertex) (screenVertex, bool) {
	w := float64(v.pos[3])
	if w <= 1e-9 {
		return screenVertex{}, false
	}
	inv := 1 / w
	nx := float64(v.pos[0]) * inv
	ny := float64(v.pos[1]) * inv
	s := screenVertex{
		x:    float64(st.ViewportX) + (nx*0.5+0.5)*float64(st.ViewportW),
		y:    float64(st.ViewportY) + (0.5-ny*0.5)*float64(st.ViewportH),
		z:    float64(v.pos[2]) * inv,
		invW: inv,
		vary: make([]float32, len(v.vary)),
	}
	for i, a := range v.vary {
		s.vary[i] = a * float32(inv)
	}
	return s, true
}

func edge(a, b screenVertex, px, py float64) float64 {
	return (b.x-a.x)*(py-a.y) - (b.y-a.y)*(px-a.x)
}

// setup projects a triangle, applies face culling and computes its pixel
// bounds clipped to the viewport and framebuffer.
func setup(st backend.RenderState, fb *framebuffer, a, b, c clipVertex) (setupTriangle, bool) {
	var t setupTriangle
	var ok bool
	if t.v[0], ok = project(st, a); !ok {
		return t, false
	}
	if t.v[1], ok = project(st, b); !ok {
		return t, false
	}
	if t.v[2], ok = project(st, c); !ok {
		return t, false
	}

	area := edge(t.v[0], t.v[1], t.v[2].x, t.v[2].y)
	if area == 0 || math.IsNaN(area) {
		return t, false
	}

	// Screen space has y down, so counter-clockwise in NDC is negative here.
	ccw := area < 0
	front := ccw == (st.FrontFace == gputypes.FrontFaceCCW)
	switch st.EffectiveCullMode() {
	case gputypes.CullModeBack:
		if !front {
			return t, false
		}
	case gputypes.CullModeFront:
		if front {
			return t, false
		}
	}

	if area < 0 {
		t.v[1], t.v[2] = t.v[2], t.v[1]
		area = -area
	}
	t.area = area

	x0 := max(st.ViewportX, 0)
	y0 := max(st.ViewportY, 0)
	x1 := min(st.ViewportX+st.ViewportW, fb.width)
	y1 := min(st.ViewportY+st.ViewportH, fb.height)

	lo := func(a, b, c float64) int { return int(math.Floor(min(a, b, c))) }
	hi := func(a, b, c float64) int { return int(math.Ceil(max(a, b, c))) }
	t.minX = max(lo(t.v[0].x, t.v[1].x, t.v[2].x), x0)
	t.maxX = min(hi(t.v[0].x, t.v[1].x, t.v[2].x), x1)
	t.minY = max(lo(t.v[0].y, t.v[1].y, t.v[2].y), y0)
	t.maxY = min(hi(t.v[0].y, t.v[1].y, t.v[2].y), y1)
	if t.minX >= t.maxX || t.minY >= t.maxY {
		return t, false
	}
	return t, true
}

// owns reports whether pixels exactly on edge a->b belong to the triangle.
// Adjacent triangles walk a shared edge in opposite directions, so exactly
// one of them owns it.
func owns(a, b screenVertex) bool {
	dy := b.y - a.y
	return dy > 0 || (dy == 0 && b.x-a.x > 0)
}

// colorTarget is an attachment written by the current draw.
type colorTarget struct {
	tex      *texture
	location int
}

func (c *Context) colorTargets(st backend.RenderState, fb *framebuffer, prog *program) []colorTarget {
	n := min(st.DrawBuffers, len(fb.colors))
	var out []colorTarget
	for i := 0; i < n; i++ {
		if _, ok := prog.info.Fragment.Output(uint32(i)); !ok {
			continue
		}
		out = append(out, colorTarget{tex: fb.colors[i], location: i})
	}
	return out
}

// rasterizer holds per-band scratch state.
type rasterizer struct {
	st      backend.RenderState
	fb      *framebuffer
	targets []colorTarget
	shade   FragmentFunc
	vary    []float32
	out     Outputs
}

func (r *rasterizer) triangle(t *setupTriangle, band parallel.Band) {
	y0 := max(t.minY, band.Y0)
	y1 := min(t.maxY, band.Y1)
	if y0 >= y1 {
		return
	}
	v0, v1, v2 := t.v[0], t.v[1], t.v[2]
	own0, own1, own2 := owns(v1, v2), owns(v2, v0), owns(v0, v1)
	inv := 1 / t.area

	compare := r.st.EffectiveDepthCompare()
	writeDepth := r.st.EffectiveDepthWrite()
	depth := r.fb.depth

	for y := y0; y < y1; y++ {
		py := float64(y) + 0.5
		for x := t.minX; x < t.maxX; x++ {
			px := float64(x) + 0.5
			w0 := edge(v1, v2, px, py)
			w1 := edge(v2, v0, px, py)
			w2 := edge(v0, v1, px, py)
			if w0 < 0 || w1 < 0 || w2 < 0 {
				continue
			}
			if (w0 == 0 && !own0) || (w1 == 0 && !own1) || (w2 == 0 && !own2) {
				continue
			}
			b0, b1, b2 := w0*inv, w1*inv, w2*inv

			z := b0*v0.z + b1*v1.z + b2*v2.z
			if z < 0 || z > 1 {
				continue
			}
			pi := y*r.fb.width + x
			zf := float32(z)
			if depth != nil && !depthPass(compare, zf, depth.depth[pi]) {
				continue
			}

			iw := b0*v0.invW + b1*v1.invW + b2*v2.invW
			for k := range r.vary {
				a := b0*float64(v0.vary[k]) + b1*float64(v1.vary[k]) + b2*float64(v2.vary[k])
				r.vary[k] = float32(a / iw)
			}

			r.out = Outputs{}
			if !r.shade(Fragment{X: x, Y: y, Depth: zf}, r.vary, &r.out) {
				continue
			}
			if depth != nil && writeDepth {
				depth.depth[pi] = zf
			}
			for _, tg := range r.targets {
				src := r.out[tg.location]
				i := pi * 4
				if r.st.Blend {
					var dst [4]float32
					copy(dst[:], tg.tex.pix[i:i+4])
					src = blend(r.st, src, dst)
				}
				tg.tex.store(i, src)
			}
		}
	}
}

func depthPass(f gputypes.CompareFunction, z, stored float32) bool {
	switch f {
	case gputypes.CompareFunctionNever:
		return false
	case gputypes.CompareFunctionLess:
		return z < stored
	case gputypes.CompareFunctionEqual:
		return z == stored
	case gputypes.CompareFunctionLessEqual:
		return z <= stored
	case gputypes.CompareFunctionGreater:
		return z > stored
	case gputypes.CompareFunctionNotEqual:
		return z != stored
	case gputypes.CompareFunctionGreaterEqual:
		return z >= stored
	default:
		return true
	}
}

func blend(st backend.RenderState, src, dst [4]float32) [4]float32 {
	var out [4]float32
	for k := range out {
		s := src[k] * blendFactor(st.BlendSrc, src, dst, k)
		d := dst[k] * blendFactor(st.BlendDst, src, dst, k)
		switch st.BlendOp {
		case gputypes.BlendOperationSubtract:
			out[k] = s - d
		case gputypes.BlendOperationReverseSubtract:
			out[k] = d - s
		case gputypes.BlendOperationMin:
			out[k] = min(src[k], dst[k])
		case gputypes.BlendOperationMax:
			out[k] = max(src[k], dst[k])
		default:
			out[k] = s + d
		}
	}
	return out
}

func blendFactor(f gputypes.BlendFactor, src, dst [4]float32, k int) float32 {
	switch f {
	case gputypes.BlendFactorZero:
		return 0
	case gputypes.BlendFactorSrc:
		return src[k]
	case gputypes.BlendFactorOneMinusSrc:
		return 1 - src[k]
	case gputypes.BlendFactorSrcAlpha:
		return src[3]
	case gputypes.BlendFactorOneMinusSrcAlpha:
		return 1 - src[3]
	case gputypes.BlendFactorDst:
		return dst[k]
	case gputypes.BlendFactorOneMinusDst:
		return 1 - dst[k]
	case gputypes.BlendFactorDstAlpha:
		return dst[3]
	case gputypes.BlendFactorOneMinusDstAlpha:
		return 1 - dst[3]
	default:
		return 1
	}
}
