package transform

import (
	"image"
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/maskfusion/rimage"
	"go.viam.com/maskfusion/spatialmath"
)

// aspectRatioTolerance bounds the relative aspect ratio difference accepted for co-registered masks.
const aspectRatioTolerance = 0.01

// MaskReprojector looks up segmentation labels for points seen by one camera in a mask captured by
// another. Lookups that cannot be resolved count as included.
type MaskReprojector struct {
	mask         *rimage.MonoImage
	maskCamera   *PinholeCameraIntrinsics
	sensorToMask spatialmath.Pose
}

// NewMaskReprojector returns a reprojector for a mask captured by maskCamera. sensorToMask is the
// transform T_CM_CS taking points from the integrating sensor's optical frame into the mask camera's.
func NewMaskReprojector(
	mask *rimage.MonoImage,
	maskCamera *PinholeCameraIntrinsics,
	sensorToMask spatialmath.Pose,
) (*MaskReprojector, error) {
	if mask == nil {
		return nil, errors.New("mask image is nil")
	}
	if err := maskCamera.CheckValid(); err != nil {
		return nil, errors.Wrap(err, "mask camera")
	}
	if err := maskCamera.CheckImage(mask); err != nil {
		return nil, errors.Wrap(err, "mask")
	}
	return &MaskReprojector{mask: mask, maskCamera: maskCamera, sensorToMask: sensorToMask}, nil
}

// IsExcluded reports whether the sensor frame point pt lands on a foreground pixel of the mask. The
// sensor pixel is unused: the lookup goes through 3D so that the two cameras may differ.
func (mr *MaskReprojector) IsExcluded(_ image.Point, pt r3.Vector) bool {
	if !(pt.Z > 0) || math.IsInf(pt.Z, 0) {
		return false
	}
	px, ok := mr.maskCamera.Project(mr.sensorToMask.TransformPoint(pt))
	if !ok {
		return false
	}
	return mr.mask.IsExcluded(px.X, px.Y)
}

// CoRegisteredMask looks up labels in a mask sharing the sensor's optical frame. When the mask has a
// different resolution, sensor pixels map to the nearest mask pixel scaled by the resolution ratio.
type CoRegisteredMask struct {
	mask                      *rimage.MonoImage
	sensorWidth, sensorHeight int
	scaleX, scaleY            float64
	sameResolution            bool
}

// NewCoRegisteredMask checks that a mask can be indexed by the sensor's pixels. Resolutions may differ
// only by a uniform scale; anything else would misalign pixels and is rejected.
func NewCoRegisteredMask(mask *rimage.MonoImage, sensor rimage.Dimensioned) (*CoRegisteredMask, error) {
	if mask == nil {
		return nil, errors.New("mask image is nil")
	}
	sw, sh := sensor.Width(), sensor.Height()
	mw, mh := mask.Width(), mask.Height()
	if sw <= 0 || sh <= 0 || mw <= 0 || mh <= 0 {
		return nil, errors.Wrapf(rimage.ErrDimensionMismatch, "empty image: mask (%d,%d) sensor (%d,%d)", mw, mh, sw, sh)
	}
	scaleX := float64(mw) / float64(sw)
	scaleY := float64(mh) / float64(sh)
	if math.Abs(scaleX-scaleY) > aspectRatioTolerance*math.Max(scaleX, scaleY) {
		return nil, errors.Wrapf(rimage.ErrDimensionMismatch,
			"mask (%d,%d) is not a uniform rescale of sensor image (%d,%d)", mw, mh, sw, sh)
	}
	return &CoRegisteredMask{
		mask:           mask,
		sensorWidth:    sw,
		sensorHeight:   sh,
		scaleX:         scaleX,
		scaleY:         scaleY,
		sameResolution: mw == sw && mh == sh,
	}, nil
}

// IsExcluded reports whether sensor pixel px is foreground.
func (cm *CoRegisteredMask) IsExcluded(px image.Point, _ r3.Vector) bool {
	if cm.sameResolution {
		return cm.mask.IsExcluded(px.X, px.Y)
	}
	if px.X < 0 || px.Y < 0 || px.X >= cm.sensorWidth || px.Y >= cm.sensorHeight {
		return false
	}
	mx := int(math.Floor((float64(px.X) + 0.5) * cm.scaleX))
	my := int(math.Floor((float64(px.Y) + 0.5) * cm.scaleY))
	return cm.mask.IsExcluded(mx, my)
}
