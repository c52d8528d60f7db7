package deferred

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/deferred/backend"
	"github.com/gogpu/deferred/camera"
	"github.com/gogpu/deferred/geometry"
	"github.com/gogpu/gputypes"
	"gopkg.in/yaml.v3"
)

// Config is the YAML configuration of the demo.
type Config struct {
	Viewport   ViewportConfig   `yaml:"viewport"`
	Backend    string           `yaml:"backend"`
	Lights     LightsConfig     `yaml:"lights"`
	Ambient    AmbientConfig    `yaml:"ambient"`
	Camera     CameraConfig     `yaml:"camera"`
	ClearColor [4]float64       `yaml:"clear_color,flow"`
	Sphere     SphereConfig     `yaml:"sphere"`
	Projection ProjectionConfig `yaml:"projection"`
}

// ViewportConfig is the initial render size.
type ViewportConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// LightsConfig configures the light ring.
type LightsConfig struct {
	Count       int     `yaml:"count"`
	Intensity   float32 `yaml:"intensity"`
	Distance    float32 `yaml:"distance"`
	Attenuation float32 `yaml:"attenuation"`
}

// AmbientConfig configures the ambient term.
type AmbientConfig struct {
	Color     [3]float32 `yaml:"color,flow"`
	Intensity float32    `yaml:"intensity"`
}

// CameraConfig configures the orbit camera.
type CameraConfig struct {
	Distance float32    `yaml:"distance"`
	Min      float32    `yaml:"min"`
	Max      float32    `yaml:"max"`
	Move     float32    `yaml:"move"`
	Position [3]float32 `yaml:"position,flow"`
}

// SphereConfig configures the icosphere.
type SphereConfig struct {
	Order  int     `yaml:"order"`
	Radius float32 `yaml:"radius"`
}

// ProjectionConfig configures the perspective projection.
type ProjectionConfig struct {
	FOV  float32 `yaml:"fov"`
	Near float32 `yaml:"near"`
	Far  float32 `yaml:"far"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	cam := camera.DefaultOptions()
	return &Config{
		Viewport: ViewportConfig{Width: DefaultWidth, Height: DefaultHeight},
		Backend:  backend.BackendAuto,
		Lights: LightsConfig{
			Count:       DefaultLightCount,
			Intensity:   DefaultLightIntensity,
			Distance:    DefaultLightDistance,
			Attenuation: DefaultLightAttenuation,
		},
		Ambient: AmbientConfig{Color: [3]float32{0.2, 0.2, 0.2}, Intensity: 1},
		Camera: CameraConfig{
			Distance: cam.Distance,
			Min:      cam.Min,
			Max:      cam.Max,
			Move:     cam.Move,
			Position: cam.Position,
		},
		ClearColor: [4]float64{0, 0, 0, 1},
		Sphere:     SphereConfig{Order: DefaultSubdivision, Radius: DefaultSphereRadius},
		Projection: ProjectionConfig{FOV: DefaultFOV, Near: DefaultNear, Far: DefaultFar},
	}
}

// LoadConfig reads a YAML file over the defaults and validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("deferred: read config: %w", err)
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return nil, fmt.Errorf("deferred: %s: %w", path, err)
	}
	Logger().Info("deferred: loaded config", "path", path)
	return cfg, nil
}

// ParseConfig decodes YAML over the defaults and validates the result.
// Unknown keys are rejected.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges and the backend name.
func (c *Config) Validate() error {
	switch {
	case c.Viewport.Width <= 0 || c.Viewport.Height <= 0:
		return fmt.Errorf("%w: viewport %dx%d", ErrInvalidConfig, c.Viewport.Width, c.Viewport.Height)
	case c.Backend != backend.BackendAuto && c.Backend != backend.BackendWGPU && c.Backend != backend.BackendSoftware:
		return fmt.Errorf("%w: unknown backend %q", ErrInvalidConfig, c.Backend)
	case c.Lights.Count < 1:
		return fmt.Errorf("%w: lights.count %d", ErrInvalidConfig, c.Lights.Count)
	case c.Lights.Intensity < 0 || c.Lights.Distance <= 0 || c.Lights.Attenuation < 0:
		return fmt.Errorf("%w: lights need intensity >= 0, distance > 0, attenuation >= 0", ErrInvalidConfig)
	case c.Ambient.Intensity < 0:
		return fmt.Errorf("%w: ambient.intensity %v", ErrInvalidConfig, c.Ambient.Intensity)
	case c.Camera.Min <= 0 || c.Camera.Max < c.Camera.Min:
		return fmt.Errorf("%w: camera bounds [%v, %v]", ErrInvalidConfig, c.Camera.Min, c.Camera.Max)
	case c.Sphere.Order < 0 || c.Sphere.Order > geometry.MaxSubdivision:
		return fmt.Errorf("%w: sphere.order %d (want 0..%d)", ErrInvalidConfig, c.Sphere.Order, geometry.MaxSubdivision)
	case c.Sphere.Radius <= 0:
		return fmt.Errorf("%w: sphere.radius %v", ErrInvalidConfig, c.Sphere.Radius)
	case c.Projection.FOV <= 0 || c.Projection.FOV >= 180:
		return fmt.Errorf("%w: projection.fov %v", ErrInvalidConfig, c.Projection.FOV)
	case c.Projection.Near <= 0 || c.Projection.Far <= c.Projection.Near:
		return fmt.Errorf("%w: projection near %v far %v", ErrInvalidConfig, c.Projection.Near, c.Projection.Far)
	}
	return nil
}

// WriteYAML encodes the config with two-space indentation.
func (c *Config) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return err
	}
	return enc.Close()
}

// RendererOptions maps the config to renderer options.
func (c *Config) RendererOptions() []RendererOption {
	cc := c.ClearColor
	return []RendererOption{
		WithViewport(c.Viewport.Width, c.Viewport.Height),
		WithLightCount(c.Lights.Count),
		WithLightOptions(
			WithIntensity(c.Lights.Intensity),
			WithDistance(c.Lights.Distance),
			WithAttenuation(c.Lights.Attenuation),
		),
		WithAmbient(mgl32.Vec3(c.Ambient.Color), c.Ambient.Intensity),
		WithClearColor(gputypes.Color{R: cc[0], G: cc[1], B: cc[2], A: cc[3]}),
		WithSubdivision(c.Sphere.Order),
		WithSphereRadius(c.Sphere.Radius),
		WithFOV(c.Projection.FOV),
		WithNear(c.Projection.Near),
		WithFar(c.Projection.Far),
	}
}

// CameraOptions maps the config to orbit camera options.
func (c *Config) CameraOptions() camera.Options {
	return camera.Options{
		Distance: c.Camera.Distance,
		Min:      c.Camera.Min,
		Max:      c.Camera.Max,
		Move:     c.Camera.Move,
		Position: mgl32.Vec3(c.Camera.Position),
		Target:   mgl32.Vec3{},
	}
}

// BackendOptions returns the context options for the configured viewport.
func (c *Config) BackendOptions() backend.Options {
	return backend.Options{Width: c.Viewport.Width, Height: c.Viewport.Height}
}
