package voxel

import "go.viam.com/maskfusion/rimage"

// TsdfVoxel holds a truncated signed distance estimate and the weight accumulated behind it.
type TsdfVoxel struct {
	Distance float32
	Weight   float32
}

// ColorVoxel holds a weight-blended color. A zero weight means never observed (or always masked).
type ColorVoxel struct {
	Color  rimage.Color
	Weight float32
}

type (
	// TsdfBlock is a block of TSDF voxels.
	TsdfBlock = Block[TsdfVoxel]
	// ColorBlock is a block of color voxels.
	ColorBlock = Block[ColorVoxel]
	// TsdfLayer is a sparse grid of TSDF voxels.
	TsdfLayer = Layer[TsdfVoxel]
	// ColorLayer is a sparse grid of color voxels.
	ColorLayer = Layer[ColorVoxel]
)
