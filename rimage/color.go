package rimage

import (
	"fmt"
	"image/color"
	"math"

	"github.com/lucasb-eyer/go-colorful"

	"go.viam.com/maskfusion/utils"
)

// Color is an 8-bit RGB triplet.
type Color struct {
	R, G, B uint8
}

// NewColor returns a color from its 8-bit channels.
func NewColor(r, g, b uint8) Color {
	return Color{R: r, G: g, B: b}
}

// NewColorFromColor converts any color.Color, dropping alpha. Fully transparent colors become black.
func NewColorFromColor(c color.Color) Color {
	if cc, ok := c.(Color); ok {
		return cc
	}
	cc, ok := colorful.MakeColor(c)
	if !ok {
		return Color{}
	}
	r, g, b := cc.RGB255()
	return Color{R: r, G: g, B: b}
}

// RGBA implements color.Color.
func (c Color) RGBA() (r, g, b, a uint32) {
	r = uint32(c.R)
	r |= r << 8
	g = uint32(c.G)
	g |= g << 8
	b = uint32(c.B)
	b |= b << 8
	a = 0xffff
	return
}

// Hex returns the "#rrggbb" representation.
func (c Color) Hex() string {
	return fmt.Sprintf("#%.2x%.2x%.2x", c.R, c.G, c.B)
}

func (c Color) String() string {
	return c.Hex()
}

// WeightedBlend returns (c*w + other*otherWeight) / (w + otherWeight) per channel, rounded to the
// nearest 8-bit value. A non-positive total weight returns other.
func (c Color) WeightedBlend(w float32, other Color, otherWeight float32) Color {
	total := w + otherWeight
	if total <= 0 {
		return other
	}
	blend := func(a, b uint8) uint8 {
		v := (float32(a)*w + float32(b)*otherWeight) / total
		return uint8(math.Round(utils.ClampFloat64(float64(v), 0, 255)))
	}
	return Color{R: blend(c.R, other.R), G: blend(c.G, other.G), B: blend(c.B, other.B)}
}
