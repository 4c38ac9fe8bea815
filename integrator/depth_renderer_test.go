package integrator

import (
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"go.viam.com/maskfusion/spatialmath"
)

func TestRenderDepthOfPlane(t *testing.T) {
	cam := testCamera()
	tracer := NewSphereTracer(testColorParams().MinTsdfWeight)
	layer := integratedPlane(t)
	truncation := 4 * testVoxelSize

	depth := tracer.RenderDepth(layer.ReadOnly(), spatialmath.NewZeroPose(), cam, truncation, 7)
	test.That(t, depth.Width(), test.ShouldEqual, cam.Width)
	test.That(t, depth.Height(), test.ShouldEqual, cam.Height)
	test.That(t, depth.NumValid(), test.ShouldBeGreaterThan, 0)
	for _, px := range [][2]int{{32, 24}, {10, 40}, {50, 8}, {5, 24}} {
		test.That(t, depth.GetDepth(px[0], px[1]), test.ShouldAlmostEqual, 1, testVoxelSize)
	}

	// the surface ends before maxDistance
	depth = tracer.RenderDepth(layer.ReadOnly(), spatialmath.NewZeroPose(), cam, truncation, 0.5)
	test.That(t, depth.NumValid(), test.ShouldEqual, 0)

	// looking away from the plane
	turned := spatialmath.NewPoseFromAxisAngle(r3.Vector{}, &spatialmath.R4AA{Theta: 3.14159, RY: 1})
	depth = tracer.RenderDepth(layer.ReadOnly(), turned, cam, truncation, 7)
	test.That(t, depth.NumValid(), test.ShouldEqual, 0)
}

func TestRenderDepthFromOffsetPose(t *testing.T) {
	cam := testCamera()
	tracer := NewSphereTracer(testColorParams().MinTsdfWeight)
	layer := integratedPlane(t)

	// half a meter closer to the plane
	closer := spatialmath.NewPoseFromPoint(r3.Vector{Z: 0.5})
	depth := tracer.RenderDepth(layer.ReadOnly(), closer, cam, 4*testVoxelSize, 7)
	test.That(t, depth.GetDepth(32, 24), test.ShouldAlmostEqual, 0.5, testVoxelSize)
}

func TestRenderDepthFindsNearestSurface(t *testing.T) {
	cam := testCamera()
	ti := newTestTsdfIntegrator(t)
	layer := newTestTsdfLayer(t)
	_, err := ti.IntegrateFrame(planeDepth(cam, 1.5), spatialmath.NewZeroPose(), cam, nil, layer)
	test.That(t, err, test.ShouldBeNil)
	for i := 0; i < 10; i++ {
		_, err := ti.IntegrateFrame(boxDepth(cam), spatialmath.NewZeroPose(), cam, nil, layer)
		test.That(t, err, test.ShouldBeNil)
	}

	depth := NewSphereTracer(1e-4).RenderDepth(layer.ReadOnly(), spatialmath.NewZeroPose(), cam, 4*testVoxelSize, 7)
	test.That(t, depth.GetDepth(32, 24), test.ShouldAlmostEqual, 0.8, testVoxelSize)
	test.That(t, depth.GetDepth(4, 4), test.ShouldAlmostEqual, 1.5, testVoxelSize)
}

func TestRenderDepthOfEmptyLayer(t *testing.T) {
	cam := testCamera()
	depth := NewSphereTracer(1e-4).RenderDepth(
		newTestTsdfLayer(t).ReadOnly(), spatialmath.NewZeroPose(), cam, 4*testVoxelSize, 7)
	test.That(t, depth.NumValid(), test.ShouldEqual, 0)
}
