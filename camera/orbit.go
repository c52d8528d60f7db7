// Package camera provides an orbit camera that turns pointer input into a
// view matrix.
package camera

import (
	"math"
	"sync"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gpucontext"
)

const (
	maxPitch = math.Pi/2 - 0.01

	// zoomStep is the distance change per scroll unit, scaled by Move.
	zoomStep = 0.25
)

// Options configures an Orbit camera.
type Options struct {
	// Distance is the initial distance from Target when Position is zero.
	Distance float32

	// Min and Max bound the orbit distance.
	Min, Max float32

	// Move scales rotation and zoom speed. A drag across the full viewport
	// height rotates by Move·π radians.
	Move float32

	// Position is the initial eye position. Zero means (0, 0, Distance).
	Position mgl32.Vec3

	Target mgl32.Vec3
}

// DefaultOptions returns the camera parameters of the reference scene.
func DefaultOptions() Options {
	return Options{
		Distance: 8.5,
		Min:      1,
		Max:      10,
		Move:     2,
		Position: mgl32.Vec3{0, 2, 8.5},
	}
}

// Orbit is a camera orbiting a target point. Dragging with the primary
// button rotates it; scrolling zooms within [Min, Max].
//
// Orbit is safe for concurrent use: input callbacks may run on a different
// goroutine than the renderer calling View.
type Orbit struct {
	mu sync.Mutex

	opts     Options
	yaw      float32
	pitch    float32
	distance float32

	dragging     bool
	lastX, lastY float64
	height       int
}

// New returns an orbit camera.
func New(opts Options) *Orbit {
	if opts.Max < opts.Min {
		opts.Max = opts.Min
	}
	c := &Orbit{opts: opts, height: 600}
	pos := opts.Position
	if pos == (mgl32.Vec3{}) {
		pos = opts.Target.Add(mgl32.Vec3{0, 0, opts.Distance})
	}
	c.SetPosition(pos)
	return c
}

// SetPosition moves the eye to pos, keeping it within the distance bounds.
func (c *Orbit) SetPosition(pos mgl32.Vec3) {
	c.mu.Lock()
	defer c.mu.Unlock()
	d := pos.Sub(c.opts.Target)
	l := d.Len()
	if l == 0 {
		c.yaw, c.pitch = 0, 0
		c.distance = c.clampDistance(c.opts.Distance)
		return
	}
	c.yaw = float32(math.Atan2(float64(d.X()), float64(d.Z())))
	c.pitch = clampPitch(float32(math.Asin(float64(d.Y() / l))))
	c.distance = c.clampDistance(l)
}

// Position returns the eye position.
func (c *Orbit) Position() mgl32.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.eye()
}

// Distance returns the current orbit distance.
func (c *Orbit) Distance() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.distance
}

// View returns the world-to-view matrix.
func (c *Orbit) View() mgl32.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return mgl32.LookAtV(c.eye(), c.opts.Target, mgl32.Vec3{0, 1, 0})
}

// Rotate orbits by a pointer delta in pixels.
func (c *Orbit) Rotate(dx, dy float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	scale := float64(c.opts.Move) * math.Pi / float64(max(c.height, 1))
	c.yaw -= float32(dx * scale)
	c.pitch = clampPitch(c.pitch + float32(dy*scale))
}

// Zoom changes the distance by a scroll delta. Positive deltas move away.
func (c *Orbit) Zoom(delta float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.distance = c.clampDistance(c.distance + float32(delta)*c.opts.Move*zoomStep)
}

// Attach subscribes the camera to pointer, scroll, and resize events.
func (c *Orbit) Attach(src gpucontext.EventSource) {
	src.OnMousePress(func(b gpucontext.MouseButton, x, y float64) {
		if b != gpucontext.MouseButtonLeft {
			return
		}
		c.mu.Lock()
		c.dragging, c.lastX, c.lastY = true, x, y
		c.mu.Unlock()
	})
	src.OnMouseRelease(func(b gpucontext.MouseButton, _, _ float64) {
		if b != gpucontext.MouseButtonLeft {
			return
		}
		c.mu.Lock()
		c.dragging = false
		c.mu.Unlock()
	})
	src.OnMouseMove(func(x, y float64) {
		c.mu.Lock()
		if !c.dragging {
			c.mu.Unlock()
			return
		}
		dx, dy := x-c.lastX, y-c.lastY
		c.lastX, c.lastY = x, y
		c.mu.Unlock()
		c.Rotate(dx, dy)
	})
	src.OnScroll(func(_, dy float64) { c.Zoom(dy) })
	src.OnResize(func(_, h int) {
		c.mu.Lock()
		c.height = h
		c.mu.Unlock()
	})
}

func (c *Orbit) eye() mgl32.Vec3 {
	cp := float32(math.Cos(float64(c.pitch)))
	dir := mgl32.Vec3{
		cp * float32(math.Sin(float64(c.yaw))),
		float32(math.Sin(float64(c.pitch))),
		cp * float32(math.Cos(float64(c.yaw))),
	}
	return c.opts.Target.Add(dir.Mul(c.distance))
}

func (c *Orbit) clampDistance(d float32) float32 {
	return mgl32.Clamp(d, c.opts.Min, c.opts.Max)
}

func clampPitch(p float32) float32 {
	return mgl32.Clamp(p, -maxPitch, maxPitch)
}
