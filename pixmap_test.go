package deferred

import (
	"bytes"
	"image/color"
	"image/png"
	"path/filepath"
	"testing"
)

func TestPixmapFromRGBA(t *testing.T) {
	data := []uint8{
		255, 0, 0, 255, 0, 255, 0, 255,
		0, 0, 255, 255, 10, 20, 30, 40,
	}
	pm, err := pixmapFromRGBA(2, 2, data)
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		x, y int
		want color.NRGBA
	}{
		{0, 0, color.NRGBA{255, 0, 0, 255}},
		{1, 0, color.NRGBA{0, 255, 0, 255}},
		{0, 1, color.NRGBA{0, 0, 255, 255}},
		{1, 1, color.NRGBA{10, 20, 30, 40}},
		{2, 0, color.NRGBA{}},
		{-1, 0, color.NRGBA{}},
	}
	for _, tt := range tests {
		if got := pm.GetPixel(tt.x, tt.y); got != tt.want {
			t.Errorf("GetPixel(%d, %d) = %v, want %v", tt.x, tt.y, got, tt.want)
		}
	}

	if _, err := pixmapFromRGBA(3, 3, data); err == nil {
		t.Error("pixmapFromRGBA(wrong size) error = nil, want error")
	}
}

func TestPixmapPNG(t *testing.T) {
	pm := NewPixmap(3, 2)
	copy(pm.Data()[4:8], []uint8{1, 2, 3, 255})

	var buf bytes.Buffer
	if err := pm.EncodePNG(&buf); err != nil {
		t.Fatalf("EncodePNG() error = %v", err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("png.Decode() error = %v", err)
	}
	if img.Bounds() != pm.Bounds() {
		t.Errorf("decoded bounds = %v, want %v", img.Bounds(), pm.Bounds())
	}
	if got := color.NRGBAModel.Convert(img.At(1, 0)).(color.NRGBA); got != (color.NRGBA{1, 2, 3, 255}) {
		t.Errorf("decoded pixel = %v, want {1 2 3 255}", got)
	}

	path := filepath.Join(t.TempDir(), "frame.png")
	if err := pm.SavePNG(path); err != nil {
		t.Errorf("SavePNG() error = %v", err)
	}
}
