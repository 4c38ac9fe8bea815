package integrator

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"

	"go.viam.com/maskfusion/rimage"
	"go.viam.com/maskfusion/rimage/transform"
	"go.viam.com/maskfusion/spatialmath"
	"go.viam.com/maskfusion/utils"
	"go.viam.com/maskfusion/voxel"
)

// surfaceStepFraction scales the signed distance of a sample into the next step along a ray.
// Projective distances overestimate the distance to oblique surfaces.
const surfaceStepFraction = 0.8

// SphereTracer renders what a camera sees of the surface stored in a TSDF layer.
type SphereTracer struct {
	// MinTsdfWeight is the weight below which a voxel is treated as unobserved.
	MinTsdfWeight float32
}

// NewSphereTracer returns a SphereTracer ignoring voxels lighter than minTsdfWeight.
func NewSphereTracer(minTsdfWeight float32) *SphereTracer {
	return &SphereTracer{MinTsdfWeight: minTsdfWeight}
}

// RenderDepth returns, for every pixel of camera, the depth along the optical axis of the first
// positive to negative crossing of the TSDF on the pixel's ray. Rays walk through unobserved space
// in steps of truncationDistance and give up at maxDistance; pixels that see no surface are left
// without depth.
func (st *SphereTracer) RenderDepth(
	layer voxel.LayerReader[voxel.TsdfVoxel],
	cameraPose spatialmath.Pose,
	camera *transform.PinholeCameraIntrinsics,
	truncationDistance, maxDistance float64,
) *rimage.DepthMap {
	depth := rimage.NewEmptyDepthMap(camera.Width, camera.Height)
	if layer.NumAllocatedBlocks() == 0 {
		return depth
	}
	origin := cameraPose.Point()
	minStep := layer.VoxelSize() / 2

	utils.GroupWorkParallel(
		camera.Height,
		nil,
		func(groupNum, groupSize, from, to int) (utils.MemberWorkFunc, utils.GroupWorkDoneFunc) {
			lookup := &tsdfLookup{layer: layer, voxelSize: layer.VoxelSize(), minWeight: st.MinTsdfWeight}
			return func(memberNum, y int) {
				for x := 0; x < camera.Width; x++ {
					ray := camera.ViewingRay(r2.Point{X: float64(x), Y: float64(y)})
					dir := cameraPose.TransformPoint(ray).Sub(origin)
					t, ok := castRay(lookup, origin, dir, maxDistance/ray.Z, truncationDistance, minStep)
					if ok {
						depth.Set(x, y, float32(t*ray.Z))
					}
				}
			}, nil
		},
	)
	return depth
}

// castRay marches from origin along the unit direction dir and returns the distance to the first
// zero crossing, interpolated between the samples on either side of it.
func castRay(lookup *tsdfLookup, origin, dir r3.Vector, maxT, truncationDistance, minStep float64) (float64, bool) {
	var prevT, prevDist float64
	havePrev := false
	for t := 0.0; t <= maxT; {
		dist, ok := lookup.distance(origin.Add(dir.Mul(t)))
		if !ok {
			havePrev = false
			t += truncationDistance
			continue
		}
		if dist < 0 {
			if havePrev {
				t = prevT + (t-prevT)*prevDist/(prevDist-dist)
			}
			return t, true
		}
		prevT, prevDist, havePrev = t, dist, true
		t += math.Max(surfaceStepFraction*dist, minStep)
	}
	return 0, false
}

// tsdfLookup reads single voxels out of a layer, keeping a copy of the last block it touched.
type tsdfLookup struct {
	layer     voxel.LayerReader[voxel.TsdfVoxel]
	voxelSize float64
	minWeight float32

	cached      bool
	cachedIdx   voxel.Index3D
	cachedFound bool
	voxels      voxel.Voxels[voxel.TsdfVoxel]
}

func (l *tsdfLookup) distance(p r3.Vector) (float64, bool) {
	blockIdx, voxelIdx := voxel.BlockAndVoxelIndexFromPosition(p, l.voxelSize)
	if !l.cached || blockIdx != l.cachedIdx {
		block, ok := l.layer.GetBlockAtIndex(blockIdx)
		l.cached, l.cachedIdx, l.cachedFound = true, blockIdx, ok
		if ok {
			l.voxels = block.Voxels()
		}
	}
	if !l.cachedFound {
		return 0, false
	}
	v := l.voxels[voxelIdx.X][voxelIdx.Y][voxelIdx.Z]
	if v.Weight <= 0 || v.Weight < l.minWeight {
		return 0, false
	}
	return float64(v.Distance), true
}
