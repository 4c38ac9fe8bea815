// Package transform holds the camera models and the cross-camera mask lookups used to gate fusion.
package transform

import (
	"image"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
)

// Projector maps between camera frame points and pixels of a single camera.
type Projector interface {
	// Project a camera frame point to the nearest pixel, reporting false when it is not visible.
	Project(r3.Vector) (image.Point, bool)
	// Backproject a pixel at a depth along the optical axis.
	Backproject(r2.Point, float64) r3.Vector
}

var _ Projector = (*PinholeCameraIntrinsics)(nil)
