// Package deferred implements a deferred-shading renderer over the
// immediate-mode graphics contexts of the backend package.
//
// Each frame runs two phases. The geometry phase rasterizes the scene mesh
// into a multi-render-target Framebuffer holding world position, world
// normal, albedo and linear depth. The lighting phase then either shows the
// four targets side by side (the G-buffer view) or accumulates one ambient
// pass and one full-screen pass per point light onto the default
// framebuffer with additive blending.
//
// # Quick Start
//
//	ctx, err := backend.Default(backend.Options{Width: 800, Height: 600})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	r, err := deferred.NewRenderer(ctx, deferred.WithViewport(800, 600))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer r.Close()
//
//	cam := camera.New(camera.DefaultOptions())
//	if err := r.RenderFrame(deferred.FrameParams{View: cam.View()}); err != nil {
//	    log.Fatal(err)
//	}
//	pm, _ := r.ReadPixels()
//	_ = pm.SavePNG("frame.png")
//
// # Draw States
//
// A DrawState pairs a linked program with its vertex data. Use activates it
// and returns a Bound token; uniforms are set and draws are issued through
// the token, which detects when another DrawState was activated in between.
//
// # Frame Loop
//
// Scheduler drives RenderFrame from a Clock, reads the debug Toggle once per
// frame, applies pending resizes at frame boundaries, and stops when its
// context is cancelled.
package deferred
