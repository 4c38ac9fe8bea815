package rimage

import (
	"image"
	"image/color"
	"math"
	"os"
	"slices"

	// register the png decoder used by ReadDepthPNG.
	_ "image/png"

	"github.com/pkg/errors"
	"go.viam.com/utils"
)

// DepthMap is a row-major image of metric depth along the optical axis, in meters.
// Zero, negative and NaN values mean "no return".
type DepthMap struct {
	width  int
	height int

	data []float32
}

// NewEmptyDepthMap returns a depth map with no valid returns.
func NewEmptyDepthMap(width, height int) *DepthMap {
	return &DepthMap{width: width, height: height, data: make([]float32, width*height)}
}

// ConvertImageToDepthMap converts a 16-bit grayscale image (such as a depth PNG) into a metric depth
// map, multiplying raw values by scale. 3DMatch style millimetre frames use scale 0.001.
func ConvertImageToDepthMap(img image.Image, scale float64) (*DepthMap, error) {
	if scale <= 0 {
		return nil, errors.Errorf("depth scale must be positive, got %v", scale)
	}
	b := img.Bounds()
	dm := NewEmptyDepthMap(b.Dx(), b.Dy())
	switch ii := img.(type) {
	case *image.Gray16:
		for y := 0; y < dm.height; y++ {
			for x := 0; x < dm.width; x++ {
				raw := ii.Gray16At(b.Min.X+x, b.Min.Y+y).Y
				dm.Set(x, y, float32(float64(raw)*scale))
			}
		}
	default:
		for y := 0; y < dm.height; y++ {
			for x := 0; x < dm.width; x++ {
				raw := color.Gray16Model.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray16).Y
				dm.Set(x, y, float32(float64(raw)*scale))
			}
		}
	}
	return dm, nil
}

// ReadDepthPNG reads a single channel 16-bit PNG and scales it to meters.
func ReadDepthPNG(path string, scale float64) (*DepthMap, error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "error opening depth file")
	}
	defer utils.UncheckedErrorFunc(f.Close)
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "error decoding depth file %q", path)
	}
	return ConvertImageToDepthMap(img, scale)
}

// Width returns the number of columns.
func (dm *DepthMap) Width() int {
	return dm.width
}

// Height returns the number of rows.
func (dm *DepthMap) Height() int {
	return dm.height
}

// In reports whether (x, y) is a pixel of the map.
func (dm *DepthMap) In(x, y int) bool {
	return x >= 0 && y >= 0 && x < dm.width && y < dm.height
}

// GetDepth returns the depth at column x, row y.
func (dm *DepthMap) GetDepth(x, y int) float32 {
	return dm.data[(y*dm.width)+x]
}

// Set sets the depth at column x, row y.
func (dm *DepthMap) Set(x, y int, d float32) {
	dm.data[(y*dm.width)+x] = d
}

// Clone returns a deep copy of dm.
func (dm *DepthMap) Clone() *DepthMap {
	return &DepthMap{width: dm.width, height: dm.height, data: slices.Clone(dm.data)}
}

// Fill sets every pixel to d.
func (dm *DepthMap) Fill(d float32) {
	for i := range dm.data {
		dm.data[i] = d
	}
}

// NumValid counts the pixels carrying a valid return.
func (dm *DepthMap) NumValid() int {
	n := 0
	for _, d := range dm.data {
		if IsValidDepth(d) {
			n++
		}
	}
	return n
}

// IsValidDepth reports whether a raw depth value is a usable return.
func IsValidDepth(d float32) bool {
	return d > 0 && !math.IsNaN(float64(d)) && !math.IsInf(float64(d), 0)
}
