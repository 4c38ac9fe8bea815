// Package rimage holds the image containers consumed by fusion: metric depth, RGB color and
// single channel segmentation masks.
package rimage

import (
	"image"
	"image/color"

	"github.com/pkg/errors"
)

// ErrDimensionMismatch is returned when two images that must share a pixel grid do not.
var ErrDimensionMismatch = errors.New("image dimensions do not match")

// Dimensioned is anything with a pixel grid.
type Dimensioned interface {
	Width() int
	Height() int
}

// Image is a row-major RGB image. It implements image.Image.
type Image struct {
	width, height int
	data          []Color
}

// NewImage returns a black image of the given size.
func NewImage(width, height int) *Image {
	return &Image{width: width, height: height, data: make([]Color, width*height)}
}

// ConvertImage copies any image.Image into an Image, converting each pixel to 8-bit RGB.
func ConvertImage(img image.Image) *Image {
	if ii, ok := img.(*Image); ok {
		return ii
	}
	b := img.Bounds()
	out := NewImage(b.Dx(), b.Dy())
	for y := 0; y < out.height; y++ {
		for x := 0; x < out.width; x++ {
			out.data[out.kxy(x, y)] = NewColorFromColor(img.At(b.Min.X+x, b.Min.Y+y))
		}
	}
	return out
}

func (i *Image) kxy(x, y int) int {
	return (y * i.width) + x
}

// Width returns the number of columns.
func (i *Image) Width() int {
	return i.width
}

// Height returns the number of rows.
func (i *Image) Height() int {
	return i.height
}

// In reports whether (x, y) is a pixel of the image.
func (i *Image) In(x, y int) bool {
	return x >= 0 && y >= 0 && x < i.width && y < i.height
}

// GetXY returns the color at column x, row y.
func (i *Image) GetXY(x, y int) Color {
	return i.data[i.kxy(x, y)]
}

// SetXY sets the color at column x, row y.
func (i *Image) SetXY(x, y int, c Color) {
	i.data[i.kxy(x, y)] = c
}

// Bounds implements image.Image.
func (i *Image) Bounds() image.Rectangle {
	return image.Rect(0, 0, i.width, i.height)
}

// ColorModel implements image.Image.
func (i *Image) ColorModel() color.Model {
	return color.ModelFunc(func(c color.Color) color.Color { return NewColorFromColor(c) })
}

// At implements image.Image.
func (i *Image) At(x, y int) color.Color {
	if !i.In(x, y) {
		return Color{}
	}
	return i.data[i.kxy(x, y)]
}
