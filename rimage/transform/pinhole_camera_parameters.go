package transform

import (
	"encoding/json"
	"fmt"
	"image"
	"io"
	"math"
	"os"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/utils"

	"go.viam.com/maskfusion/rimage"
)

// ErrNoIntrinsics is when a camera does not have intrinsics parameters or other parameters.
var ErrNoIntrinsics = errors.New("camera intrinsic parameters are not available")

// NewNoIntrinsicsError is used when the intriniscs are not defined.
func NewNoIntrinsicsError(msg string) error {
	return errors.Wrap(ErrNoIntrinsics, msg)
}

// PinholeCameraIntrinsics holds the parameters necessary to do a perspective projection of a 3D scene to the 2D plane.
// Pixel (x, y) has its center at image coordinates (x, y); projections round to the nearest pixel.
type PinholeCameraIntrinsics struct {
	Width  int     `json:"width_px" yaml:"width_px"`
	Height int     `json:"height_px" yaml:"height_px"`
	Fx     float64 `json:"fx" yaml:"fx"`
	Fy     float64 `json:"fy" yaml:"fy"`
	Ppx    float64 `json:"ppx" yaml:"ppx"`
	Ppy    float64 `json:"ppy" yaml:"ppy"`
}

// CheckValid checks if the fields for PinholeCameraIntrinsics have valid inputs.
func (params *PinholeCameraIntrinsics) CheckValid() error {
	if params == nil {
		return NewNoIntrinsicsError("Intrinsics do not exist")
	}
	if params.Width <= 0 || params.Height <= 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("Invalid size (%#v, %#v)", params.Width, params.Height))
	}
	if params.Fx <= 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("Invalid focal length Fx = %#v", params.Fx))
	}
	if params.Fy <= 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("Invalid focal length Fy = %#v", params.Fy))
	}
	if params.Ppx < 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("Invalid principal X point Ppx = %#v", params.Ppx))
	}
	if params.Ppy < 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("Invalid principal Y point Ppy = %#v", params.Ppy))
	}
	return nil
}

// CheckImage returns an error unless the image has the resolution these intrinsics describe.
func (params *PinholeCameraIntrinsics) CheckImage(img rimage.Dimensioned) error {
	if params.Width != img.Width() || params.Height != img.Height() {
		return errors.Wrapf(rimage.ErrDimensionMismatch, "image (%d,%d) != intrinsics (%d,%d)",
			img.Width(), img.Height(), params.Width, params.Height)
	}
	return nil
}

// NewPinholeCameraIntrinsicsFromJSONFile takes in a file path to a JSON and turns it into PinholeCameraIntrinsics.
func NewPinholeCameraIntrinsicsFromJSONFile(jsonPath string) (*PinholeCameraIntrinsics, error) {
	//nolint:gosec
	jsonFile, err := os.Open(jsonPath)
	if err != nil {
		return nil, errors.Wrap(err, "error opening JSON file")
	}
	defer utils.UncheckedErrorFunc(jsonFile.Close)
	byteValue, err := io.ReadAll(jsonFile)
	if err != nil {
		return nil, errors.Wrap(err, "error reading JSON data")
	}
	intrinsics := &PinholeCameraIntrinsics{}
	if err := json.Unmarshal(byteValue, intrinsics); err != nil {
		return nil, errors.Wrap(err, "error parsing JSON string")
	}
	return intrinsics, nil
}

// PixelToPoint transforms a pixel with depth to a 3D point in the camera frame.
// The intrinsics parameters should be the ones of the sensor used to obtain the image that
// contains the pixel.
func (params *PinholeCameraIntrinsics) PixelToPoint(x, y, z float64) (float64, float64, float64) {
	xOverZ := (x - params.Ppx) / params.Fx
	yOverZ := (y - params.Ppy) / params.Fy
	return xOverZ * z, yOverZ * z, z
}

// PointToPixel projects a 3D point to continuous image coordinates.
// The intrinsics parameters should be the ones of the sensor we want to project to.
func (params *PinholeCameraIntrinsics) PointToPixel(x, y, z float64) (float64, float64) {
	if z != 0. {
		return (x/z)*params.Fx + params.Ppx, (y/z)*params.Fy + params.Ppy
	}
	// if depth is zero, return negative coordinates so that bounds checks filter it out
	return -1.0, -1.0
}

// Project maps a point in the camera frame to the nearest pixel. It reports false for points at
// or behind the image plane and for pixels outside the image.
func (params *PinholeCameraIntrinsics) Project(pt r3.Vector) (image.Point, bool) {
	if !(pt.Z > 0) {
		return image.Point{}, false
	}
	u, v := params.PointToPixel(pt.X, pt.Y, pt.Z)
	px := image.Point{X: int(math.Round(u)), Y: int(math.Round(v))}
	if px.X < 0 || px.Y < 0 || px.X >= params.Width || px.Y >= params.Height {
		return image.Point{}, false
	}
	return px, true
}

// Backproject returns the camera frame point seen at pixel px with the given depth along the optical axis.
func (params *PinholeCameraIntrinsics) Backproject(px r2.Point, depth float64) r3.Vector {
	x, y, z := params.PixelToPoint(px.X, px.Y, depth)
	return r3.Vector{X: x, Y: y, Z: z}
}

// ViewingRay returns the unit direction, in the camera frame, of the ray through pixel px.
func (params *PinholeCameraIntrinsics) ViewingRay(px r2.Point) r3.Vector {
	return params.Backproject(px, 1).Normalize()
}
