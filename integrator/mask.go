package integrator

import (
	"image"

	"github.com/golang/geo/r3"

	"go.viam.com/maskfusion/rimage/transform"
)

// MaskSampler decides whether an observation belongs to excluded foreground. px is the pixel of the
// integrating camera and pt the observed point in that camera's optical frame.
type MaskSampler interface {
	IsExcluded(px image.Point, pt r3.Vector) bool
}

// NoMask is the sampler of the mask-free path: nothing is ever excluded.
var NoMask MaskSampler = noMask{}

type noMask struct{}

func (noMask) IsExcluded(image.Point, r3.Vector) bool {
	return false
}

var (
	_ MaskSampler = (*transform.MaskReprojector)(nil)
	_ MaskSampler = (*transform.CoRegisteredMask)(nil)
)
