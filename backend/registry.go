package backend

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

// Backend name constants.
const (
	// BackendSoftware is the CPU rasterizer.
	BackendSoftware = "software"

	// BackendWGPU is the GPU backend on gogpu/wgpu.
	BackendWGPU = "wgpu"

	// BackendAuto selects the best available backend.
	BackendAuto = "auto"
)

// Options configures context creation.
type Options struct {
	// Width and Height size the default framebuffer.
	Width, Height int
}

// Factory creates a context.
type Factory func(opts Options) (Context, error)

var (
	registryMu sync.RWMutex
	factories  = make(map[string]Factory)
	// Priority order for backend selection (first that opens wins).
	backendPriority = []string{BackendWGPU, BackendSoftware}
)

// Register registers a context factory under name.
// This is typically called from init() functions in backend packages.
// A factory registered under an existing name replaces it.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	factories[name] = factory
}

// Unregister removes a backend from the registry.
// This is useful for testing.
func Unregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(factories, name)
}

// Available returns the registered backend names in sorted order.
func Available() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// IsRegistered checks if a backend with the given name is registered.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := factories[name]
	return ok
}

// Get opens a context on the named backend. An empty name or BackendAuto
// behaves like Default.
//
// Every failure wraps ErrContextUnavailable.
func Get(name string, opts Options) (Context, error) {
	if name == "" || name == BackendAuto {
		return Default(opts)
	}
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("%w: %w: %dx%d", ErrContextUnavailable, ErrInvalidSize, opts.Width, opts.Height)
	}

	registryMu.RLock()
	factory, ok := factories[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: backend %q is not registered", ErrContextUnavailable, name)
	}

	ctx, err := factory(opts)
	if err != nil {
		if errors.Is(err, ErrContextUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrContextUnavailable, name, err)
	}
	Logger().Info("backend: context opened", "backend", name,
		"adapter", ctx.AdapterInfo().Name, "width", opts.Width, "height", opts.Height)
	return ctx, nil
}

// Default opens the best available backend.
// Priority order: wgpu > software, then any other registered backend.
func Default(opts Options) (Context, error) {
	registryMu.RLock()
	order := make([]string, 0, len(factories))
	for _, name := range backendPriority {
		if _, ok := factories[name]; ok {
			order = append(order, name)
		}
	}
	var rest []string
	for name := range factories {
		if !slices.Contains(backendPriority, name) {
			rest = append(rest, name)
		}
	}
	registryMu.RUnlock()
	slices.Sort(rest)
	order = append(order, rest...)

	var errs []error
	for _, name := range order {
		ctx, err := Get(name, opts)
		if err == nil {
			return ctx, nil
		}
		Logger().Warn("backend: falling back", "backend", name, "err", err)
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil, fmt.Errorf("%w: no backends registered", ErrContextUnavailable)
	}
	return nil, errors.Join(errs...)
}
