package deferred

import (
	"fmt"
	"math"
	"slices"

	"github.com/go-gl/mathgl/mgl32"
)

// Light ring defaults.
const (
	DefaultLightCount       = 10
	DefaultLightRadius      = 2
	DefaultLightIntensity   = 1
	DefaultLightDistance    = 3
	DefaultLightAttenuation = 2
)

// PointLight is one light of a LightSet.
type PointLight struct {
	Position    mgl32.Vec3
	Color       mgl32.Vec3
	Intensity   float32
	Distance    float32
	Attenuation float32
}

// LightOption configures GenerateLights.
type LightOption func(*lightOptions)

type lightOptions struct {
	radius      float32
	intensity   float32
	distance    float32
	attenuation float32
}

func defaultLightOptions() lightOptions {
	return lightOptions{
		radius:      DefaultLightRadius,
		intensity:   DefaultLightIntensity,
		distance:    DefaultLightDistance,
		attenuation: DefaultLightAttenuation,
	}
}

// WithLightRadius sets the radius of the ring the lights sit on.
func WithLightRadius(r float32) LightOption {
	return func(o *lightOptions) { o.radius = r }
}

// WithIntensity sets the intensity of every light.
func WithIntensity(v float32) LightOption {
	return func(o *lightOptions) { o.intensity = v }
}

// WithDistance sets the distance at which light falloff reaches zero.
func WithDistance(d float32) LightOption {
	return func(o *lightOptions) { o.distance = d }
}

// WithAttenuation sets the falloff exponent.
func WithAttenuation(a float32) LightOption {
	return func(o *lightOptions) { o.attenuation = a }
}

// LightSet is a ring of point lights with evenly spaced hues that bob up
// and down at individual rates.
//
// A LightSet is not safe for concurrent use; the render loop owns it.
type LightSet struct {
	lights []PointLight
	hues   []float32
	phases []float32
}

// GenerateLights places n lights on a horizontal ring, light i at angle
// 360·i/n degrees with hue 360·i/n and phase rate 2π·i/n.
func GenerateLights(n int, opts ...LightOption) (*LightSet, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLightCount, n)
	}
	o := defaultLightOptions()
	for _, opt := range opts {
		opt(&o)
	}

	s := &LightSet{
		lights: make([]PointLight, n),
		hues:   make([]float32, n),
		phases: make([]float32, n),
	}
	for i := range s.lights {
		deg := 360 * float64(i) / float64(n)
		rad := mgl32.DegToRad(float32(deg))
		s.hues[i] = float32(deg)
		s.phases[i] = float32(2 * math.Pi * float64(i) / float64(n))
		s.lights[i] = PointLight{
			Position: mgl32.Vec3{
				o.radius * float32(math.Cos(float64(rad))),
				float32(math.Cos(float64(s.phases[i]))),
				o.radius * float32(math.Sin(float64(rad))),
			},
			Color:       HSVToRGB(float32(deg), 1, 1),
			Intensity:   o.intensity,
			Distance:    o.distance,
			Attenuation: o.attenuation,
		}
	}
	return s, nil
}

// Animate sets every light's height to cos(phase·t). It depends only on t,
// so frames can be rendered in any order.
func (s *LightSet) Animate(t float64) {
	for i := range s.lights {
		s.lights[i].Position[1] = float32(math.Cos(float64(s.phases[i]) * t))
	}
}

// Lights returns a copy of the lights.
func (s *LightSet) Lights() []PointLight { return slices.Clone(s.lights) }

// Len returns the number of lights.
func (s *LightSet) Len() int { return len(s.lights) }

// Hue returns the hue of light i in degrees.
func (s *LightSet) Hue(i int) float32 { return s.hues[i] }

// Phase returns the phase rate of light i.
func (s *LightSet) Phase(i int) float32 { return s.phases[i] }

// HSVToRGB converts a hue in degrees and saturation and value in [0, 1] to
// RGB. Hue wraps modulo 360; saturation and value are clamped to [0, 1].
func HSVToRGB(h, s, v float32) mgl32.Vec3 {
	s = mgl32.Clamp(s, 0, 1)
	v = mgl32.Clamp(v, 0, 1)
	hh := math.Mod(float64(h), 360)
	if hh < 0 {
		hh += 360
	}
	if s == 0 {
		return mgl32.Vec3{v, v, v}
	}

	sector := hh / 60
	i := int(math.Floor(sector))
	f := float32(sector - float64(i))
	p := v * (1 - s)
	q := v * (1 - s*f)
	t := v * (1 - s*(1-f))

	switch i {
	case 0:
		return mgl32.Vec3{v, t, p}
	case 1:
		return mgl32.Vec3{q, v, p}
	case 2:
		return mgl32.Vec3{p, v, t}
	case 3:
		return mgl32.Vec3{p, q, v}
	case 4:
		return mgl32.Vec3{t, p, v}
	default:
		return mgl32.Vec3{v, p, q}
	}
}
