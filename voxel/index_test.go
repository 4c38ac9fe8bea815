package voxel

import (
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func TestBlockIndexFromPosition(t *testing.T) {
	const blockSize = 0.4
	test.That(t, BlockIndexFromPosition(r3.Vector{X: 0.1, Y: 0.1, Z: 0.1}, blockSize), test.ShouldResemble, Index3D{0, 0, 0})
	test.That(t, BlockIndexFromPosition(r3.Vector{X: 0.41, Y: 0.85, Z: 1.3}, blockSize), test.ShouldResemble, Index3D{1, 2, 3})
	// negative coordinates floor away from zero
	test.That(t, BlockIndexFromPosition(r3.Vector{X: -0.01, Y: -0.4, Z: -0.41}, blockSize), test.ShouldResemble, Index3D{-1, -1, -2})
}

func TestVoxelIndexRoundTrip(t *testing.T) {
	const voxelSize = 0.05
	for _, blockIdx := range []Index3D{{0, 0, 0}, {-3, 2, 7}, {5, -1, -1}} {
		for _, voxelIdx := range []Index3D{{0, 0, 0}, {7, 7, 7}, {3, 0, 6}} {
			center := CenterOfVoxel(blockIdx, voxelIdx, voxelSize)
			gotBlock, gotVoxel := BlockAndVoxelIndexFromPosition(center, voxelSize)
			test.That(t, gotBlock, test.ShouldResemble, blockIdx)
			test.That(t, gotVoxel, test.ShouldResemble, voxelIdx)
		}
	}
}

func TestBlockGeometry(t *testing.T) {
	test.That(t, BlockSizeFromVoxelSize(0.05), test.ShouldAlmostEqual, 0.4)
	c := BlockCenter(Index3D{1, -1, 0}, 0.4)
	test.That(t, c.X, test.ShouldAlmostEqual, 0.6)
	test.That(t, c.Y, test.ShouldAlmostEqual, -0.2)
	test.That(t, c.Z, test.ShouldAlmostEqual, 0.2)

	v := CenterOfVoxel(Index3D{0, 0, 0}, Index3D{0, 1, 7}, 0.05)
	test.That(t, v.X, test.ShouldAlmostEqual, 0.025)
	test.That(t, v.Y, test.ShouldAlmostEqual, 0.075)
	test.That(t, v.Z, test.ShouldAlmostEqual, 0.375)

	test.That(t, Index3D{1, 2, 3}.String(), test.ShouldEqual, "(1, 2, 3)")
}
