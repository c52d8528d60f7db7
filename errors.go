package deferred

import "errors"

// Renderer errors.
var (
	// ErrStaleBinding is returned by Bound.Draw when another DrawState was
	// activated after the token was issued.
	ErrStaleBinding = errors.New("deferred: draw state is no longer bound")

	// ErrInvalidAttachmentCount is returned for framebuffers with fewer than
	// one or more than backend.MaxColorAttachments color targets.
	ErrInvalidAttachmentCount = errors.New("deferred: invalid color attachment count")

	// ErrInvalidLightCount is returned by GenerateLights for n < 1.
	ErrInvalidLightCount = errors.New("deferred: light count must be at least 1")

	// ErrInvalidViewport is returned for non-positive viewport sizes.
	ErrInvalidViewport = errors.New("deferred: invalid viewport")

	// ErrStateLeak is returned by RenderFrame when a pass leaves depth or
	// blend state that would leak into the next frame.
	ErrStateLeak = errors.New("deferred: render state leaked across passes")

	// ErrClosed is returned when a closed Renderer is used.
	ErrClosed = errors.New("deferred: renderer is closed")

	// ErrInvalidConfig is returned by Config.Validate.
	ErrInvalidConfig = errors.New("deferred: invalid config")
)
