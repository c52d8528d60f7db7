package deferred

import (
	"errors"
	"testing"

	"github.com/gogpu/gputypes"
)

func TestNewFramebuffer(t *testing.T) {
	ctx := newSoftware(t, 8, 8)
	fb, err := NewFramebuffer(ctx, 4, 32, 24)
	if err != nil {
		t.Fatalf("NewFramebuffer() error = %v", err)
	}
	defer fb.Release()

	if got := len(fb.Textures()); got != 4 {
		t.Fatalf("len(Textures()) = %d, want 4", got)
	}
	for i, tex := range fb.Textures() {
		if w, h := tex.Size(); w != 32 || h != 24 {
			t.Errorf("texture %d size = %dx%d, want 32x24", i, w, h)
		}
		if tex.Format() != gputypes.TextureFormatRGBA32Float {
			t.Errorf("texture %d format = %v, want RGBA32Float on software", i, tex.Format())
		}
	}
	if fb.Depth() == nil {
		t.Fatal("Depth() = nil")
	}
	if w, h := fb.Depth().Size(); w != 32 || h != 24 {
		t.Errorf("depth size = %dx%d, want 32x24", w, h)
	}
	if w, h := fb.Size(); w != 32 || h != 24 {
		t.Errorf("Size() = %dx%d, want 32x24", w, h)
	}
}

func TestNewFramebufferColorFormat(t *testing.T) {
	ctx := newSoftware(t, 8, 8)
	fb, err := NewFramebuffer(ctx, 1, 4, 4, WithColorFormat(gputypes.TextureFormatRGBA8Unorm), WithLabel("test"))
	if err != nil {
		t.Fatal(err)
	}
	defer fb.Release()
	if got := fb.Textures()[0].Format(); got != gputypes.TextureFormatRGBA8Unorm {
		t.Errorf("Format() = %v, want RGBA8Unorm", got)
	}
}

func TestNewFramebufferInvalid(t *testing.T) {
	ctx := newSoftware(t, 8, 8)
	tests := []struct {
		name  string
		count int
		w, h  int
		want  error
	}{
		{"zero targets", 0, 8, 8, ErrInvalidAttachmentCount},
		{"too many targets", 9, 8, 8, ErrInvalidAttachmentCount},
		{"zero width", 4, 0, 8, ErrInvalidViewport},
		{"negative height", 4, 8, -2, ErrInvalidViewport},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewFramebuffer(ctx, tt.count, tt.w, tt.h); !errors.Is(err, tt.want) {
				t.Errorf("NewFramebuffer(%d, %d, %d) error = %v, want %v", tt.count, tt.w, tt.h, err, tt.want)
			}
		})
	}
}

func TestFramebufferReleaseIdempotent(t *testing.T) {
	ctx := newSoftware(t, 8, 8)
	fb, err := NewFramebuffer(ctx, 2, 4, 4)
	if err != nil {
		t.Fatal(err)
	}
	fb.Release()
	fb.Release()
	if fb.Textures() != nil {
		t.Error("Textures() after Release is not nil")
	}
}

func TestFramebufferCache(t *testing.T) {
	ctx := newSoftware(t, 8, 8)
	c := NewFramebufferCache(ctx, GBufferTargets)
	defer c.Release()

	small := Viewport{16, 12}
	large := Viewport{32, 24}

	a, err := c.Get(small)
	if err != nil {
		t.Fatal(err)
	}
	again, err := c.Get(small)
	if err != nil {
		t.Fatal(err)
	}
	if a != again {
		t.Error("Get() built a second framebuffer for the same viewport")
	}

	b, err := c.Get(large)
	if err != nil {
		t.Fatal(err)
	}
	if c.Len() != 2 {
		t.Errorf("Len() = %d, want 2", c.Len())
	}
	if got := b.Viewport(); got != large {
		t.Errorf("Viewport() = %v, want %v", got, large)
	}

	c.Evict(large)
	if c.Len() != 1 {
		t.Errorf("Len() after Evict = %d, want 1", c.Len())
	}
	if a.Textures() != nil {
		t.Error("evicted framebuffer was not released")
	}

	if _, err := c.Get(Viewport{}); !errors.Is(err, ErrInvalidViewport) {
		t.Errorf("Get(zero) error = %v, want ErrInvalidViewport", err)
	}
}
