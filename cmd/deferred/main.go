// Command deferred renders the deferred-shading demo headlessly and writes
// each frame as a PNG.
//
// Usage:
//
//	deferred [-config file] [-backend auto|wgpu|software] [-width W] [-height H]
//	         [-frames N] [-fps F] [-lights N] [-gbuffer] [-labels] [-out dir] [-v]
//
// Flags override values from the config file. Frames are timed by a fixed
// clock, so output is identical across runs. SIGINT stops after the frame
// in flight.
package main

import (
	"context"
	"flag"
	"fmt"
	"image/png"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gogpu/deferred"
	"github.com/gogpu/deferred/backend"
	_ "github.com/gogpu/deferred/backend/software"
	_ "github.com/gogpu/deferred/backend/wgpu"
	"github.com/gogpu/deferred/camera"
	"github.com/gogpu/deferred/overlay"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"
)

var gbufferLabels = [deferred.GBufferTargets]string{"position", "normal", "albedo", "depth"}

func main() {
	var (
		configPath  = flag.String("config", "", "YAML config file")
		backendName = flag.String("backend", backend.BackendAuto, "backend: auto, wgpu or software")
		width       = flag.Int("width", deferred.DefaultWidth, "image width")
		height      = flag.Int("height", deferred.DefaultHeight, "image height")
		lights      = flag.Int("lights", deferred.DefaultLightCount, "number of point lights")
		frames      = flag.Int("frames", 60, "frames to render, 0 renders until interrupted")
		fps         = flag.Int("fps", 30, "animation rate used to time frames")
		outDir      = flag.String("out", "frames", "output directory")
		gbuffer     = flag.Bool("gbuffer", false, "write the G-buffer view instead of the lit image")
		labels      = flag.Bool("labels", false, "draw frame labels onto the output")
		verbose     = flag.Bool("v", false, "verbose logging")
	)
	flag.Parse()

	level := slog.LevelWarn
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

	// Only flags given on the command line override the config.
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
	if *frames < 0 {
		log.Fatalf("invalid -frames %d", *frames)
	}

	if err := run(cfg, options{
		frames:  *frames,
		step:    time.Second / time.Duration(*fps),
		outDir:  *outDir,
		gbuffer: *gbuffer,
		labels:  *labels,
	}); err != nil {
		log.Fatalf("%v", err)
	}
}

type options struct {
	frames  int
	step    time.Duration
	outDir  string
	gbuffer bool
	labels  bool
}

func run(cfg *deferred.Config, o options) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(o.outDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	gctx, err := backend.Get(cfg.Backend, cfg.BackendOptions())
	if err != nil {
		return err
	}
	defer gctx.Release()
	if gctx.Name() == backend.BackendSoftware && cfg.Backend != backend.BackendSoftware {
		deferred.Logger().Warn("deferred: no GPU backend available, rendering on the CPU")
	}

	r, err := deferred.NewRenderer(gctx, cfg.RendererOptions()...)
	if err != nil {
		return err
	}

	var ov *overlay.Overlay
	if o.labels {
		if ov, err = overlay.New(); err != nil {
			r.Close()
			return err
		}
		defer func() { _ = ov.Close() }()
	}

	toggle := &deferred.Toggle{}
	toggle.Set(o.gbuffer)

	var bar *progressbar.ProgressBar
	if term.IsTerminal(int(os.Stdout.Fd())) {
		total := int64(o.frames)
		if o.frames == 0 {
			total = -1
		}
		bar = progressbar.Default(total, "rendering")
		defer func() { _ = bar.Close() }()
	}

	s := &deferred.Scheduler{
		Renderer:  r,
		Camera:    camera.New(cfg.CameraOptions()),
		Toggle:    toggle,
		Clock:     &deferred.FixedClock{Step: o.step},
		MaxFrames: o.frames,
	}
	n := 0
	s.OnFrame = func(pm *deferred.Pixmap, p deferred.FrameParams) error {
		path := filepath.Join(o.outDir, fmt.Sprintf("frame_%04d.png", n))
		if err := writeFrame(path, pm, p, ov, gctx.Name(), n); err != nil {
			return err
		}
		n++
		if bar != nil {
			_ = bar.Add(1)
		}
		return nil
	}

	if err := s.Run(ctx); err != nil {
		return err
	}
	deferred.Logger().Info("deferred: done", "frames", n, "dir", o.outDir)
	return nil
}

func writeFrame(path string, pm *deferred.Pixmap, p deferred.FrameParams, ov *overlay.Overlay, backendName string, n int) error {
	if ov == nil {
		return pm.SavePNG(path)
	}

	img := pm.ToImage()
	if p.ShowGBuffer {
		if err := ov.Quadrants(img, gbufferLabels); err != nil {
			return err
		}
	} else {
		err := ov.Lines(img,
			fmt.Sprintf("frame %d  t=%.2fs", n, p.Time),
			fmt.Sprintf("%s %dx%d", backendName, pm.Width(), pm.Height()),
		)
		if err != nil {
			return err
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
