package integrator

import (
	"image"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"go.viam.com/maskfusion/rimage"
	"go.viam.com/maskfusion/rimage/transform"
	"go.viam.com/maskfusion/voxel"
)

const testVoxelSize = 0.05

func testCamera() *transform.PinholeCameraIntrinsics {
	return &transform.PinholeCameraIntrinsics{Width: 64, Height: 48, Fx: 50, Fy: 50, Ppx: 32, Ppy: 24}
}

func testTsdfParams() TsdfParams {
	return TsdfParams{
		TruncationDistanceVox:   4,
		MaxIntegrationDistanceM: 7,
		MaxWeight:               100,
		ObservationWeight:       1,
		RaycastSubsampling:      1,
	}
}

func testColorParams() ColorParams {
	return ColorParams{
		SurfaceBandVox:          1,
		TruncationDistanceVox:   4,
		MinTsdfWeight:           1e-4,
		MaxIntegrationDistanceM: 7,
		MaxWeight:               100,
		ObservationWeight:       1,
	}
}

// planeDepth is a camera looking straight at a wall d meters away.
func planeDepth(cam *transform.PinholeCameraIntrinsics, d float32) *rimage.DepthMap {
	dm := rimage.NewEmptyDepthMap(cam.Width, cam.Height)
	dm.Fill(d)
	return dm
}

// boxDepth is a wall 1.5m away with a box 0.8m away covering pixels [20,44)x[12,36).
func boxDepth(cam *transform.PinholeCameraIntrinsics) *rimage.DepthMap {
	dm := planeDepth(cam, 1.5)
	for y := 12; y < 36; y++ {
		for x := 20; x < 44; x++ {
			dm.Set(x, y, 0.8)
		}
	}
	return dm
}

// wallBehindBox splits the colored voxels more than 1.3m away into those seen through the middle
// of the box of boxDepth and the rest. Layers are in the camera frame.
func wallBehindBox(cam *transform.PinholeCameraIntrinsics, colors voxel.LayerReader[voxel.ColorVoxel]) (hidden, visible int) {
	voxel.CallFunctionOnAllVoxels(colors, func(blockIdx, voxelIdx voxel.Index3D, v voxel.ColorVoxel) {
		center := voxel.CenterOfVoxel(blockIdx, voxelIdx, colors.VoxelSize())
		if v.Weight == 0 || center.Z < 1.3 {
			return
		}
		px, ok := cam.Project(center)
		if ok && px.In(image.Rect(24, 16, 40, 32)) {
			hidden++
			return
		}
		visible++
	})
	return hidden, visible
}

func solidColor(cam *transform.PinholeCameraIntrinsics, c rimage.Color) *rimage.Image {
	img := rimage.NewImage(cam.Width, cam.Height)
	for y := 0; y < cam.Height; y++ {
		for x := 0; x < cam.Width; x++ {
			img.SetXY(x, y, c)
		}
	}
	return img
}

type excludeAll struct{}

func (excludeAll) IsExcluded(image.Point, r3.Vector) bool {
	return true
}

// leftHalfMask excludes every pixel left of the principal point.
func leftHalfMask(t *testing.T, cam *transform.PinholeCameraIntrinsics) MaskSampler {
	t.Helper()
	mask := rimage.NewMonoImage(cam.Width, cam.Height)
	for y := 0; y < cam.Height; y++ {
		for x := 0; x < cam.Width/2; x++ {
			mask.Set(x, y, 1)
		}
	}
	sampler, err := transform.NewCoRegisteredMask(mask, rimage.NewEmptyDepthMap(cam.Width, cam.Height))
	test.That(t, err, test.ShouldBeNil)
	return sampler
}

func newTestTsdfLayer(t *testing.T) *voxel.TsdfLayer {
	t.Helper()
	layer, err := voxel.NewLayer[voxel.TsdfVoxel](testVoxelSize)
	test.That(t, err, test.ShouldBeNil)
	return layer
}

func newTestColorLayer(t *testing.T) *voxel.ColorLayer {
	t.Helper()
	layer, err := voxel.NewLayer[voxel.ColorVoxel](testVoxelSize)
	test.That(t, err, test.ShouldBeNil)
	return layer
}

func newTestTsdfIntegrator(t *testing.T) *ProjectiveTsdfIntegrator {
	t.Helper()
	ti, err := NewProjectiveTsdfIntegrator(testTsdfParams())
	test.That(t, err, test.ShouldBeNil)
	return ti
}

func newTestColorIntegrator(t *testing.T) *ProjectiveColorIntegrator {
	t.Helper()
	ci, err := NewProjectiveColorIntegrator(testColorParams())
	test.That(t, err, test.ShouldBeNil)
	return ci
}
