package deferred

import (
	"errors"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestHSVToRGB(t *testing.T) {
	tests := []struct {
		name    string
		h, s, v float32
		want    mgl32.Vec3
	}{
		{"red", 0, 1, 1, mgl32.Vec3{1, 0, 0}},
		{"yellow", 60, 1, 1, mgl32.Vec3{1, 1, 0}},
		{"green", 120, 1, 1, mgl32.Vec3{0, 1, 0}},
		{"cyan", 180, 1, 1, mgl32.Vec3{0, 1, 1}},
		{"blue", 240, 1, 1, mgl32.Vec3{0, 0, 1}},
		{"magenta", 300, 1, 1, mgl32.Vec3{1, 0, 1}},
		{"wraps 360", 360, 1, 1, mgl32.Vec3{1, 0, 0}},
		{"wraps negative", -120, 1, 1, mgl32.Vec3{0, 0, 1}},
		{"orange", 30, 1, 1, mgl32.Vec3{1, 0.5, 0}},
		{"grey", 200, 0, 0.5, mgl32.Vec3{0.5, 0.5, 0.5}},
		{"clamps s and v", 0, 2, 3, mgl32.Vec3{1, 0, 0}},
		{"half value", 240, 1, 0.5, mgl32.Vec3{0, 0, 0.5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := HSVToRGB(tt.h, tt.s, tt.v)
			if !nearSlice(got[:], tt.want[:], 1e-5) {
				t.Errorf("HSVToRGB(%v, %v, %v) = %v, want %v", tt.h, tt.s, tt.v, got, tt.want)
			}
		})
	}
}

func TestGenerateLights(t *testing.T) {
	for _, n := range []int{1, 3, 10, 32} {
		s, err := GenerateLights(n)
		if err != nil {
			t.Fatalf("GenerateLights(%d) error = %v", n, err)
		}
		if s.Len() != n {
			t.Fatalf("Len() = %d, want %d", s.Len(), n)
		}
		step := 360 / float64(n)
		for i, l := range s.Lights() {
			if got := float64(s.Hue(i)); math.Abs(got-step*float64(i)) > 1e-4 {
				t.Errorf("n=%d: Hue(%d) = %v, want %v", n, i, got, step*float64(i))
			}
			r := math.Hypot(float64(l.Position.X()), float64(l.Position.Z()))
			if math.Abs(r-DefaultLightRadius) > 1e-5 {
				t.Errorf("n=%d: light %d ring radius = %v, want %v", n, i, r, DefaultLightRadius)
			}
			if y := l.Position.Y(); y < -1 || y > 1 {
				t.Errorf("n=%d: light %d y = %v, want within [-1, 1]", n, i, y)
			}
			if l.Intensity != 1 || l.Distance != 3 || l.Attenuation != 2 {
				t.Errorf("n=%d: light %d = %+v, want intensity 1 distance 3 attenuation 2", n, i, l)
			}
			wantPhase := float32(2 * math.Pi * float64(i) / float64(n))
			if math.Abs(float64(s.Phase(i)-wantPhase)) > 1e-6 {
				t.Errorf("n=%d: Phase(%d) = %v, want %v", n, i, s.Phase(i), wantPhase)
			}
		}
	}
}

func TestGenerateLightsFirstIsRed(t *testing.T) {
	s, err := GenerateLights(4)
	if err != nil {
		t.Fatal(err)
	}
	l := s.Lights()[0]
	if want := (mgl32.Vec3{1, 0, 0}); !nearSlice(l.Color[:], want[:], 1e-6) {
		t.Errorf("light 0 color = %v, want red", l.Color)
	}
	if want := (mgl32.Vec3{2, 1, 0}); !nearSlice(l.Position[:], want[:], 1e-6) {
		t.Errorf("light 0 position = %v, want (2, 1, 0)", l.Position)
	}
}

func TestGenerateLightsInvalid(t *testing.T) {
	for _, n := range []int{0, -1} {
		if _, err := GenerateLights(n); !errors.Is(err, ErrInvalidLightCount) {
			t.Errorf("GenerateLights(%d) error = %v, want ErrInvalidLightCount", n, err)
		}
	}
}

func TestGenerateLightsOptions(t *testing.T) {
	s, err := GenerateLights(2, WithIntensity(4), WithDistance(5), WithAttenuation(1), WithLightRadius(3))
	if err != nil {
		t.Fatal(err)
	}
	l := s.Lights()[1]
	if l.Intensity != 4 || l.Distance != 5 || l.Attenuation != 1 {
		t.Errorf("light = %+v, want intensity 4 distance 5 attenuation 1", l)
	}
	if got := l.Position.X(); math.Abs(float64(got)+3) > 1e-5 {
		t.Errorf("light 1 x = %v, want -3", got)
	}
}

func TestAnimateIsStateless(t *testing.T) {
	a, _ := GenerateLights(10)
	b, _ := GenerateLights(10)

	a.Animate(0.5)
	a.Animate(7)
	a.Animate(2.25)
	b.Animate(2.25)

	la, lb := a.Lights(), b.Lights()
	for i := range la {
		if la[i].Position != lb[i].Position {
			t.Errorf("light %d: position after history = %v, fresh = %v", i, la[i].Position, lb[i].Position)
		}
	}
}

func TestAnimateHeight(t *testing.T) {
	s, _ := GenerateLights(5)
	s.Animate(0)
	for i, l := range s.Lights() {
		if l.Position.Y() != 1 {
			t.Errorf("Animate(0): light %d y = %v, want 1", i, l.Position.Y())
		}
	}
	s.Animate(1.5)
	for i, l := range s.Lights() {
		want := float32(math.Cos(float64(s.Phase(i)) * 1.5))
		if l.Position.Y() != want {
			t.Errorf("Animate(1.5): light %d y = %v, want %v", i, l.Position.Y(), want)
		}
	}
}

func TestLightsReturnsCopy(t *testing.T) {
	s, _ := GenerateLights(3)
	got := s.Lights()
	got[0].Intensity = 99
	if s.Lights()[0].Intensity == 99 {
		t.Error("Lights() exposed internal storage")
	}
}
