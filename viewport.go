package deferred

import "fmt"

// Viewport is a render target size in pixels. It is comparable and keys
// the framebuffer cache.
type Viewport struct {
	Width, Height int
}

// Aspect returns Width / Height.
func (v Viewport) Aspect() float32 {
	if v.Height == 0 {
		return 0
	}
	return float32(v.Width) / float32(v.Height)
}

// Validate reports whether both dimensions are positive.
func (v Viewport) Validate() error {
	if v.Width <= 0 || v.Height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidViewport, v.Width, v.Height)
	}
	return nil
}

func (v Viewport) String() string {
	return fmt.Sprintf("%dx%d", v.Width, v.Height)
}
