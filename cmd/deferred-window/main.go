// Command deferred-window shows the deferred-shading demo in a window.
//
// Drag with the left mouse button to orbit, scroll to zoom, press G to
// switch between the lit image and the G-buffer view, Escape to quit.
// The window is resizable; the renderer picks up the new size at the next
// frame.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/gogpu/deferred"
	"github.com/gogpu/deferred/backend"
	_ "github.com/gogpu/deferred/backend/software"
	_ "github.com/gogpu/deferred/backend/wgpu"
	"github.com/gogpu/deferred/camera"
	"github.com/gogpu/deferred/overlay"
	"github.com/gogpu/gpucontext"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
)

var gbufferLabels = [deferred.GBufferTargets]string{"position", "normal", "albedo", "depth"}

const help = "drag: orbit  wheel: zoom  G: G-buffer  Esc: quit"

func main() {
	var (
		configPath  = flag.String("config", "", "YAML config file")
		backendName = flag.String("backend", backend.BackendAuto, "backend: auto, wgpu or software")
		width       = flag.Int("width", deferred.DefaultWidth, "window width")
		height      = flag.Int("height", deferred.DefaultHeight, "window height")
		lights      = flag.Int("lights", deferred.DefaultLightCount, "number of point lights")
		fps         = flag.Int("fps", 60, "frame rate")
		verbose     = flag.Bool("v", false, "verbose logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	deferred.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	cfg := deferred.DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = deferred.LoadConfig(*configPath); err != nil {
			log.Fatalf("config: %v", err)
		}
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "backend":
			cfg.Backend = *backendName
		case "width":
			cfg.Viewport.Width = *width
		case "height":
			cfg.Viewport.Height = *height
		case "lights":
			cfg.Lights.Count = *lights
		}
	})
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}
	if *fps <= 0 {
		log.Fatalf("invalid -fps %d", *fps)
	}

	if err := run(cfg, *fps); err != nil {
		log.Fatalf("%v", err)
	}
}

func run(cfg *deferred.Config, fps int) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gctx, err := backend.Get(cfg.Backend, cfg.BackendOptions())
	if err != nil {
		return err
	}
	defer gctx.Release()

	r, err := deferred.NewRenderer(gctx, cfg.RendererOptions()...)
	if err != nil {
		return err
	}
	ov, err := overlay.New()
	if err != nil {
		r.Close()
		return err
	}
	defer func() { _ = ov.Close() }()

	src := &eventSource{}
	cam := camera.New(cfg.CameraOptions())
	cam.Attach(src)

	toggle := &deferred.Toggle{}
	src.OnKeyPress(func(k gpucontext.Key, _ gpucontext.Modifiers) {
		if k == gpucontext.KeyG {
			on := toggle.Flip()
			deferred.Logger().Info("deferred: G-buffer view", "on", on)
		}
	})
	src.OnResize(func(w, h int) {
		if err := r.Resize(w, h); err != nil {
			deferred.Logger().Warn("deferred: resize ignored", "err", err)
		}
	})

	clock := deferred.NewTickerClock(fps)
	defer clock.Stop()

	g := &game{
		src:     src,
		overlay: ov,
		backend: gctx.Name(),
		width:   cfg.Viewport.Width,
		height:  cfg.Viewport.Height,
		done:    make(chan error, 1),
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	s := &deferred.Scheduler{
		Renderer: r,
		Camera:   cam,
		Toggle:   toggle,
		Clock:    clock,
		OnFrame: func(pm *deferred.Pixmap, p deferred.FrameParams) error {
			g.latest.Store(&frame{pm: pm, params: p})
			return nil
		},
	}
	go func() { g.done <- s.Run(runCtx) }()

	ebiten.SetWindowTitle(fmt.Sprintf("deferred (%s)", gctx.Name()))
	ebiten.SetWindowSize(cfg.Viewport.Width, cfg.Viewport.Height)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetWindowClosingHandled(true)
	ebiten.SetTPS(fps)
	g.ctx = ctx

	runErr := ebiten.RunGame(g)
	cancel()
	schedErr := g.wait()
	if runErr != nil && !errors.Is(runErr, ebiten.Termination) {
		return runErr
	}
	return schedErr
}

// frame is the last frame read back by the scheduler.
type frame struct {
	pm     *deferred.Pixmap
	params deferred.FrameParams
}

type game struct {
	ctx     context.Context
	src     *eventSource
	overlay *overlay.Overlay
	backend string

	width, height int

	latest atomic.Pointer[frame]
	shown  *frame
	img    *ebiten.Image

	done     chan error
	finished bool
	err      error
}

// wait returns the scheduler result once it has stopped.
func (g *game) wait() error {
	if !g.finished {
		g.err = <-g.done
		g.finished = true
	}
	return g.err
}

func (g *game) Update() error {
	select {
	case err := <-g.done:
		g.finished, g.err = true, err
		if err != nil {
			return err
		}
		return ebiten.Termination
	default:
	}
	if g.ctx.Err() != nil || ebiten.IsWindowBeingClosed() || inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		return ebiten.Termination
	}

	g.src.dispatch(poll(g.width, g.height))
	return nil
}

func poll(w, h int) inputState {
	x, y := ebiten.CursorPosition()
	in := inputState{x: float64(x), y: float64(y), width: w, height: h}
	if inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft) {
		in.pressed = append(in.pressed, gpucontext.MouseButtonLeft)
	}
	if inpututil.IsMouseButtonJustReleased(ebiten.MouseButtonLeft) {
		in.released = append(in.released, gpucontext.MouseButtonLeft)
	}
	// ebiten reports positive y for scrolling up; zoom in on that.
	_, wy := ebiten.Wheel()
	in.wheelY = -wy
	if inpututil.IsKeyJustPressed(ebiten.KeyG) {
		in.keys = append(in.keys, gpucontext.KeyG)
	}
	return in
}

func (g *game) Draw(screen *ebiten.Image) {
	f := g.latest.Load()
	if f == nil {
		return
	}
	if f != g.shown {
		g.upload(f)
		g.shown = f
	}

	op := &ebiten.DrawImageOptions{}
	sb := screen.Bounds()
	ib := g.img.Bounds()
	op.GeoM.Scale(float64(sb.Dx())/float64(ib.Dx()), float64(sb.Dy())/float64(ib.Dy()))
	op.Filter = ebiten.FilterLinear
	screen.DrawImage(g.img, op)
}

func (g *game) upload(f *frame) {
	img := f.pm.ToImage()
	var err error
	if f.params.ShowGBuffer {
		err = g.overlay.Quadrants(img, gbufferLabels)
	} else {
		err = g.overlay.Lines(img,
			fmt.Sprintf("%s %dx%d  t=%.1fs", g.backend, f.pm.Width(), f.pm.Height(), f.params.Time),
			help,
		)
	}
	if err != nil {
		deferred.Logger().Warn("deferred: overlay", "err", err)
	}

	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	if g.img == nil || g.img.Bounds().Dx() != w || g.img.Bounds().Dy() != h {
		if g.img != nil {
			g.img.Deallocate()
		}
		g.img = ebiten.NewImage(w, h)
	}
	// Frames are opaque, so straight and premultiplied alpha agree.
	g.img.WritePixels(img.Pix)
}

func (g *game) Layout(outsideWidth, outsideHeight int) (int, int) {
	if outsideWidth > 0 && outsideHeight > 0 {
		g.width, g.height = outsideWidth, outsideHeight
	}
	return g.width, g.height
}
