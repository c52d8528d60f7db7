package deferred

import (
	"fmt"
	"testing"

	"github.com/gogpu/deferred/backend/software"
)

func benchmarkRenderer(b *testing.B, w, h int, opts ...RendererOption) *Renderer {
	b.Helper()
	ctx, err := software.New(w, h)
	if err != nil {
		b.Fatalf("software.New() error = %v", err)
	}
	b.Cleanup(ctx.Release)
	r, err := NewRenderer(ctx, append([]RendererOption{WithViewport(w, h)}, opts...)...)
	if err != nil {
		b.Fatalf("NewRenderer() error = %v", err)
	}
	b.Cleanup(r.Close)
	return r
}

// BenchmarkRenderFrame measures a full geometry plus lighting frame on the
// software backend at several sizes.
func BenchmarkRenderFrame(b *testing.B) {
	sizes := []struct{ w, h int }{
		{160, 120},
		{320, 240},
		{640, 480},
	}
	for _, sz := range sizes {
		b.Run(fmt.Sprintf("%dx%d", sz.w, sz.h), func(b *testing.B) {
			r := benchmarkRenderer(b, sz.w, sz.h)
			p := FrameParams{View: DefaultView()}
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				p.Time = float64(i) / 60
				r.Lights().Animate(p.Time)
				if err := r.RenderFrame(p); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkRenderFrameLights shows how the lighting pass scales with the
// number of point lights.
func BenchmarkRenderFrameLights(b *testing.B) {
	for _, n := range []int{1, 10, 50} {
		b.Run(fmt.Sprintf("lights=%d", n), func(b *testing.B) {
			r := benchmarkRenderer(b, 160, 120, WithLightCount(n))
			p := FrameParams{View: DefaultView()}
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if err := r.RenderFrame(p); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkGBufferView(b *testing.B) {
	r := benchmarkRenderer(b, 320, 240)
	p := FrameParams{View: DefaultView(), ShowGBuffer: true}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := r.RenderFrame(p); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkReadPixels(b *testing.B) {
	r := benchmarkRenderer(b, 320, 240)
	if err := r.RenderFrame(FrameParams{View: DefaultView()}); err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		pm, err := r.ReadPixels()
		if err != nil {
			b.Fatal(err)
		}
		_ = pm.ToImage()
	}
}
