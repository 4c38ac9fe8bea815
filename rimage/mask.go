package rimage

import (
	"image"
	"image/color"

	"go.viam.com/maskfusion/utils"
)

// MonoImage is a single channel 8-bit image. As a segmentation mask, zero marks an included
// (background) pixel and any other label marks an excluded (foreground) pixel.
type MonoImage struct {
	width  int
	height int

	data []uint8
}

// NewMonoImage returns an all-zero image.
func NewMonoImage(width, height int) *MonoImage {
	return &MonoImage{width: width, height: height, data: make([]uint8, width*height)}
}

// Width returns the number of columns.
func (m *MonoImage) Width() int {
	return m.width
}

// Height returns the number of rows.
func (m *MonoImage) Height() int {
	return m.height
}

// In reports whether (x, y) is a pixel of the image.
func (m *MonoImage) In(x, y int) bool {
	return x >= 0 && y >= 0 && x < m.width && y < m.height
}

// Get returns the label at column x, row y.
func (m *MonoImage) Get(x, y int) uint8 {
	return m.data[(y*m.width)+x]
}

// Set sets the label at column x, row y.
func (m *MonoImage) Set(x, y int, v uint8) {
	m.data[(y*m.width)+x] = v
}

// Fill sets every pixel to v.
func (m *MonoImage) Fill(v uint8) {
	for i := range m.data {
		m.data[i] = v
	}
}

// IsExcluded reports whether the label at (x, y) marks foreground. Pixels outside the image are
// never excluded.
func (m *MonoImage) IsExcluded(x, y int) bool {
	return m.In(x, y) && m.Get(x, y) != 0
}

// ConvertImageToMask builds a mask from any image. The values of an 8-bit gray image are its
// labels. Any other image is reduced to 16-bit gray and keeps the high byte as its label, except
// that a pixel with any nonzero channel never drops to label 0. 16-bit instance masks with small
// labels therefore stay excluded.
func ConvertImageToMask(img image.Image) *MonoImage {
	b := img.Bounds()
	m := NewMonoImage(b.Dx(), b.Dy())
	if gray, ok := img.(*image.Gray); ok {
		for y := 0; y < m.height; y++ {
			for x := 0; x < m.width; x++ {
				m.Set(x, y, gray.GrayAt(b.Min.X+x, b.Min.Y+y).Y)
			}
		}
		return m
	}
	for y := 0; y < m.height; y++ {
		for x := 0; x < m.width; x++ {
			m.Set(x, y, maskLabel(img.At(b.Min.X+x, b.Min.Y+y)))
		}
	}
	return m
}

func maskLabel(c color.Color) uint8 {
	r, g, b, _ := c.RGBA()
	if r|g|b == 0 {
		return 0
	}
	y := color.Gray16Model.Convert(c).(color.Gray16).Y
	return uint8(utils.MaxInt(int(y>>8), 1))
}
