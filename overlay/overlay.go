// Package overlay draws debug text labels on top of a presented frame.
//
// Labels are rendered with golang.org/x/image fonts (Go Regular by default)
// onto any draw.Image, typically the *image.NRGBA returned by
// deferred.Pixmap.ToImage. Each label sits on a translucent backing box so
// it stays readable over bright lighting.
package overlay

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// DefaultSize is the default font size in pixels.
const DefaultSize = 13

// ErrClosed is returned when drawing with a closed Overlay.
var ErrClosed = errors.New("overlay: closed")

// Option configures an Overlay.
type Option func(*options)

type options struct {
	ttf        []byte
	size       float64
	foreground color.Color
	background color.Color
	padding    int
}

func defaultOptions() options {
	return options{
		ttf:        goregular.TTF,
		size:       DefaultSize,
		foreground: color.White,
		background: color.NRGBA{A: 160},
		padding:    3,
	}
}

// WithFont sets the TrueType or OpenType font data.
func WithFont(ttf []byte) Option {
	return func(o *options) { o.ttf = ttf }
}

// WithSize sets the font size in pixels.
func WithSize(px float64) Option {
	return func(o *options) { o.size = px }
}

// WithColors sets the text and backing box colors. A nil background
// disables the box.
func WithColors(fg, bg color.Color) Option {
	return func(o *options) {
		o.foreground = fg
		o.background = bg
	}
}

// WithPadding sets the space between the text and the edge of its box.
func WithPadding(px int) Option {
	return func(o *options) { o.padding = max(px, 0) }
}

// Overlay renders labels with a single font face.
//
// Overlay is not safe for concurrent use.
type Overlay struct {
	face    font.Face
	fg      *image.Uniform
	bg      *image.Uniform
	padding int
}

// New parses the font and creates the face.
func New(opts ...Option) (*Overlay, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.size <= 0 {
		return nil, fmt.Errorf("overlay: invalid font size %v", o.size)
	}

	parsed, err := opentype.Parse(o.ttf)
	if err != nil {
		return nil, fmt.Errorf("overlay: parse font: %w", err)
	}
	face, err := opentype.NewFace(parsed, &opentype.FaceOptions{
		Size:    o.size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("overlay: create face: %w", err)
	}

	ov := &Overlay{
		face:    face,
		fg:      image.NewUniform(o.foreground),
		padding: o.padding,
	}
	if o.background != nil {
		ov.bg = image.NewUniform(o.background)
	}
	return ov, nil
}

// LineHeight returns the distance between consecutive baselines.
func (o *Overlay) LineHeight() int {
	if o.face == nil {
		return 0
	}
	return o.face.Metrics().Height.Ceil()
}

// Measure returns the advance width of text in pixels.
func (o *Overlay) Measure(text string) int {
	if o.face == nil {
		return 0
	}
	return font.MeasureString(o.face, text).Ceil()
}

// Bounds returns the rectangle a label drawn at (x, y) covers, backing box
// included. (x, y) is the top-left corner.
func (o *Overlay) Bounds(x, y int, text string) image.Rectangle {
	if text == "" {
		return image.Rectangle{Min: image.Pt(x, y), Max: image.Pt(x, y)}
	}
	w := o.Measure(text) + 2*o.padding
	h := o.LineHeight() + 2*o.padding
	return image.Rect(x, y, x+w, y+h)
}

// Label draws text with its top-left corner at (x, y).
func (o *Overlay) Label(dst draw.Image, x, y int, text string) error {
	if o.face == nil {
		return ErrClosed
	}
	if text == "" {
		return nil
	}
	box := o.Bounds(x, y, text)
	if o.bg != nil {
		draw.Draw(dst, box.Intersect(dst.Bounds()), o.bg, image.Point{}, draw.Over)
	}

	ascent := o.face.Metrics().Ascent
	d := &font.Drawer{
		Dst:  dst,
		Src:  o.fg,
		Face: o.face,
		Dot: fixed.Point26_6{
			X: fixed.I(x + o.padding),
			Y: fixed.I(y+o.padding) + ascent,
		},
	}
	d.DrawString(text)
	return nil
}

// Lines stacks labels downward from the top-left corner of dst.
func (o *Overlay) Lines(dst draw.Image, lines ...string) error {
	b := dst.Bounds()
	y := b.Min.Y + o.padding
	for _, line := range lines {
		if err := o.Label(dst, b.Min.X+o.padding, y, line); err != nil {
			return err
		}
		y += o.LineHeight() + 2*o.padding + 1
	}
	return nil
}

// Quadrants labels the four quadrants of dst in reading order: top-left,
// top-right, bottom-left, bottom-right. It matches the layout of the
// G-buffer debug view.
func (o *Overlay) Quadrants(dst draw.Image, names [4]string) error {
	b := dst.Bounds()
	hw, hh := b.Dx()/2, b.Dy()/2
	for i, name := range names {
		x := b.Min.X + (i%2)*hw + o.padding
		y := b.Min.Y + (i/2)*hh + o.padding
		if err := o.Label(dst, x, y, name); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the font face. Close is idempotent.
func (o *Overlay) Close() error {
	if o.face == nil {
		return nil
	}
	err := o.face.Close()
	o.face = nil
	return err
}
