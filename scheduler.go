package deferred

import (
	"context"
	"errors"
	"time"

	"github.com/go-gl/mathgl/mgl32"
)

// Clock paces the frame loop and supplies scene time.
type Clock interface {
	// Now returns the scene time of the current frame.
	Now() time.Duration

	// Tick returns a channel that delivers when the next frame is due.
	Tick() <-chan time.Time
}

// TickerClock paces frames with a time.Ticker and reports wall time since
// creation.
type TickerClock struct {
	start  time.Time
	ticker *time.Ticker
}

// NewTickerClock returns a clock ticking fps times per second. Call Stop
// when done.
func NewTickerClock(fps int) *TickerClock {
	if fps <= 0 {
		fps = 60
	}
	return &TickerClock{
		start:  time.Now(),
		ticker: time.NewTicker(time.Second / time.Duration(fps)),
	}
}

// Now returns the time since the clock was created.
func (c *TickerClock) Now() time.Duration { return time.Since(c.start) }

// Tick returns the ticker channel.
func (c *TickerClock) Tick() <-chan time.Time { return c.ticker.C }

// Stop stops the ticker.
func (c *TickerClock) Stop() { c.ticker.Stop() }

// readyTick is closed, so receiving from it never blocks.
var readyTick = func() chan time.Time {
	ch := make(chan time.Time)
	close(ch)
	return ch
}()

// FixedClock advances by Step every tick and never waits. Frame n (from 0)
// has time n·Step.
type FixedClock struct {
	Step  time.Duration
	ticks int64
}

// Now returns the time of the last ticked frame.
func (c *FixedClock) Now() time.Duration {
	return time.Duration(max(c.ticks-1, 0)) * c.Step
}

// Tick advances the clock by one frame.
func (c *FixedClock) Tick() <-chan time.Time {
	c.ticks++
	return readyTick
}

// ViewSource supplies the view matrix each frame.
type ViewSource interface {
	View() mgl32.Mat4
}

// Scheduler drives a Renderer frame by frame until its context is
// cancelled or MaxFrames frames have been rendered.
type Scheduler struct {
	Renderer *Renderer

	// Camera supplies the view. Nil uses DefaultView.
	Camera ViewSource

	// Toggle selects the G-buffer view. Nil means never.
	Toggle *Toggle

	Clock Clock

	// MaxFrames stops the loop after that many frames. Zero means no limit.
	MaxFrames int

	// OnFrame, if set, receives every frame after it is read back.
	OnFrame func(*Pixmap, FrameParams) error
}

// Run renders frames until ctx is cancelled, MaxFrames is reached, or a
// frame fails. The renderer is closed when Run returns. Cancellation is
// not an error; a frame in flight always completes first.
func (s *Scheduler) Run(ctx context.Context) error {
	defer s.Renderer.Close()

	for frame := 0; ; frame++ {
		select {
		case <-ctx.Done():
			return cancelErr(ctx.Err())
		default:
		}
		if s.MaxFrames > 0 && frame >= s.MaxFrames {
			return nil
		}

		select {
		case <-ctx.Done():
			return cancelErr(ctx.Err())
		case <-s.Clock.Tick():
		}

		if err := s.Renderer.ApplyResize(); err != nil {
			return err
		}
		p := FrameParams{
			Time:        s.Clock.Now().Seconds(),
			View:        s.view(),
			ShowGBuffer: s.Toggle.Load(),
		}
		s.Renderer.Lights().Animate(p.Time)
		if err := s.Renderer.RenderFrame(p); err != nil {
			return err
		}
		Logger().Debug("deferred: frame", "n", frame, "t", p.Time, "gbuffer", p.ShowGBuffer)

		if s.OnFrame != nil {
			pm, err := s.Renderer.ReadPixels()
			if err != nil {
				return err
			}
			if err := s.OnFrame(pm, p); err != nil {
				return err
			}
		}
	}
}

func (s *Scheduler) view() mgl32.Mat4 {
	if s.Camera == nil {
		return DefaultView()
	}
	return s.Camera.View()
}

func cancelErr(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
