package deferred

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
)

func TestFixedClock(t *testing.T) {
	c := &FixedClock{Step: 100 * time.Millisecond}
	if c.Now() != 0 {
		t.Errorf("Now() before the first tick = %v, want 0", c.Now())
	}
	for i := 0; i < 3; i++ {
		select {
		case <-c.Tick():
		default:
			t.Fatal("Tick() blocked")
		}
		if want := time.Duration(i) * c.Step; c.Now() != want {
			t.Errorf("Now() after tick %d = %v, want %v", i+1, c.Now(), want)
		}
	}
}

func TestToggle(t *testing.T) {
	var tg Toggle
	if tg.Load() {
		t.Error("zero Toggle reads true")
	}
	if !tg.Flip() || !tg.Load() {
		t.Error("Flip() did not set the toggle")
	}
	if tg.Flip() || tg.Load() {
		t.Error("second Flip() did not clear the toggle")
	}
	tg.Set(true)
	if !tg.Load() {
		t.Error("Set(true) not visible to Load()")
	}

	var nilToggle *Toggle
	if nilToggle.Load() {
		t.Error("nil Toggle reads true")
	}

	var wg sync.WaitGroup
	tg.Set(false)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tg.Flip()
		}()
	}
	wg.Wait()
	if tg.Load() {
		t.Error("100 concurrent flips left the toggle set")
	}
}

type fixedView struct{ calls int }

func (v *fixedView) View() mgl32.Mat4 {
	v.calls++
	return DefaultView()
}

func TestSchedulerMaxFrames(t *testing.T) {
	r := newTestRenderer(t, WithSubdivision(1))
	toggle := &Toggle{}
	toggle.Set(true)
	cam := &fixedView{}

	var times []float64
	s := &Scheduler{
		Renderer:  r,
		Camera:    cam,
		Toggle:    toggle,
		Clock:     &FixedClock{Step: 250 * time.Millisecond},
		MaxFrames: 3,
		OnFrame: func(pm *Pixmap, p FrameParams) error {
			if pm.Width() != testWidth {
				t.Errorf("OnFrame pixmap width = %d, want %d", pm.Width(), testWidth)
			}
			if !p.ShowGBuffer {
				t.Error("FrameParams.ShowGBuffer = false, want the toggle value")
			}
			times = append(times, p.Time)
			return nil
		},
	}
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := []float64{0, 0.25, 0.5}
	if len(times) != len(want) {
		t.Fatalf("rendered %d frames, want %d", len(times), len(want))
	}
	for i := range want {
		if times[i] != want[i] {
			t.Errorf("frame %d time = %v, want %v", i, times[i], want[i])
		}
	}
	if cam.calls != 3 {
		t.Errorf("View() called %d times, want 3", cam.calls)
	}
	if err := r.RenderFrame(FrameParams{}); !errors.Is(err, ErrClosed) {
		t.Errorf("renderer after Run: RenderFrame() error = %v, want ErrClosed", err)
	}
}

func TestSchedulerCancel(t *testing.T) {
	r := newTestRenderer(t, WithSubdivision(1))
	ctx, cancel := context.WithCancel(context.Background())

	frames := 0
	s := &Scheduler{
		Renderer: r,
		Clock:    &FixedClock{Step: time.Millisecond},
		OnFrame: func(*Pixmap, FrameParams) error {
			frames++
			if frames == 2 {
				cancel()
			}
			return nil
		},
	}
	if err := s.Run(ctx); err != nil {
		t.Errorf("Run() after cancel = %v, want nil", err)
	}
	if frames != 2 {
		t.Errorf("rendered %d frames, want 2", frames)
	}
}

func TestSchedulerDeadline(t *testing.T) {
	r := newTestRenderer(t, WithSubdivision(1))
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()

	s := &Scheduler{Renderer: r, Clock: &FixedClock{Step: time.Millisecond}}
	if err := s.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Run() error = %v, want DeadlineExceeded", err)
	}
}

func TestSchedulerOnFrameError(t *testing.T) {
	r := newTestRenderer(t, WithSubdivision(1))
	boom := errors.New("boom")
	s := &Scheduler{
		Renderer: r,
		Clock:    &FixedClock{Step: time.Millisecond},
		OnFrame:  func(*Pixmap, FrameParams) error { return boom },
	}
	if err := s.Run(context.Background()); !errors.Is(err, boom) {
		t.Errorf("Run() error = %v, want %v", err, boom)
	}
}

func TestSchedulerAppliesResize(t *testing.T) {
	r := newTestRenderer(t, WithSubdivision(1))
	if err := r.Resize(32, 24); err != nil {
		t.Fatal(err)
	}
	var got Viewport
	s := &Scheduler{
		Renderer:  r,
		Clock:     &FixedClock{Step: time.Millisecond},
		MaxFrames: 1,
		OnFrame: func(pm *Pixmap, _ FrameParams) error {
			got = Viewport{pm.Width(), pm.Height()}
			return nil
		},
	}
	if err := s.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got != (Viewport{32, 24}) {
		t.Errorf("frame size = %v, want 32x24", got)
	}
}

func TestTickerClock(t *testing.T) {
	c := NewTickerClock(200)
	defer c.Stop()
	select {
	case <-c.Tick():
	case <-time.After(time.Second):
		t.Fatal("TickerClock did not tick within a second")
	}
	if c.Now() <= 0 {
		t.Errorf("Now() = %v, want positive", c.Now())
	}
}
