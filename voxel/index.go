// Package voxel implements sparse, block-allocated voxel grids.
//
// A Layer owns fixed-size cubes of VoxelsPerSide^3 voxels (Blocks) keyed by their integer position
// in the block grid. Blocks are allocated on first write and live as long as the Layer.
package voxel

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
)

// VoxelsPerSide is the side length, in voxels, of every Block.
const VoxelsPerSide = 8

// Index3D is an integer grid coordinate: a block position in the block grid or a voxel position
// inside a block.
type Index3D struct {
	X, Y, Z int
}

func (i Index3D) String() string {
	return fmt.Sprintf("(%d, %d, %d)", i.X, i.Y, i.Z)
}

// BlockIndexFromPosition returns the index of the block containing a world position.
func BlockIndexFromPosition(p r3.Vector, blockSize float64) Index3D {
	return Index3D{
		X: int(math.Floor(p.X / blockSize)),
		Y: int(math.Floor(p.Y / blockSize)),
		Z: int(math.Floor(p.Z / blockSize)),
	}
}

// BlockAndVoxelIndexFromPosition returns the block containing p and the voxel within that block.
func BlockAndVoxelIndexFromPosition(p r3.Vector, voxelSize float64) (Index3D, Index3D) {
	blockSize := BlockSizeFromVoxelSize(voxelSize)
	blockIdx := BlockIndexFromPosition(p, blockSize)
	corner := BlockCorner(blockIdx, blockSize)
	clampIdx := func(v float64) int {
		i := int(math.Floor(v / voxelSize))
		if i < 0 {
			return 0
		}
		if i >= VoxelsPerSide {
			return VoxelsPerSide - 1
		}
		return i
	}
	return blockIdx, Index3D{
		X: clampIdx(p.X - corner.X),
		Y: clampIdx(p.Y - corner.Y),
		Z: clampIdx(p.Z - corner.Z),
	}
}

// BlockSizeFromVoxelSize returns the metric side length of a block.
func BlockSizeFromVoxelSize(voxelSize float64) float64 {
	return voxelSize * VoxelsPerSide
}

// BlockCorner returns the world position of the low corner of a block.
func BlockCorner(blockIdx Index3D, blockSize float64) r3.Vector {
	return r3.Vector{
		X: float64(blockIdx.X) * blockSize,
		Y: float64(blockIdx.Y) * blockSize,
		Z: float64(blockIdx.Z) * blockSize,
	}
}

// BlockCenter returns the world position of the center of a block.
func BlockCenter(blockIdx Index3D, blockSize float64) r3.Vector {
	return BlockCorner(blockIdx, blockSize).Add(r3.Vector{X: 0.5, Y: 0.5, Z: 0.5}.Mul(blockSize))
}

// CenterOfVoxel returns the world position of the center of a voxel.
func CenterOfVoxel(blockIdx, voxelIdx Index3D, voxelSize float64) r3.Vector {
	corner := BlockCorner(blockIdx, BlockSizeFromVoxelSize(voxelSize))
	return r3.Vector{
		X: corner.X + (float64(voxelIdx.X)+0.5)*voxelSize,
		Y: corner.Y + (float64(voxelIdx.Y)+0.5)*voxelSize,
		Z: corner.Z + (float64(voxelIdx.Z)+0.5)*voxelSize,
	}
}
