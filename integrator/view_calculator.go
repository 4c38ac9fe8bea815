package integrator

import (
	"math"
	"slices"
	"sync"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/samber/lo"

	"go.viam.com/maskfusion/rimage"
	"go.viam.com/maskfusion/rimage/transform"
	"go.viam.com/maskfusion/spatialmath"
	"go.viam.com/maskfusion/utils"
	"go.viam.com/maskfusion/voxel"
)

// ViewCalculator finds the blocks a camera frame can touch.
type ViewCalculator struct {
	// RaycastSubsampling casts one ray through every Nth pixel in each image direction.
	RaycastSubsampling int
}

// NewViewCalculator returns a ViewCalculator casting a ray through every subsampling-th pixel.
func NewViewCalculator(subsampling int) *ViewCalculator {
	return &ViewCalculator{RaycastSubsampling: utils.MaxInt(subsampling, 1)}
}

// GetBlocksInImageViewRaycast returns, sorted, every block crossed by a ray from the camera center to
// a depth return extended by truncationDistance. Rays stop at maxDistance along the optical axis and
// pixels without a valid depth cast no ray.
func (vc *ViewCalculator) GetBlocksInImageViewRaycast(
	depth *rimage.DepthMap,
	cameraPose spatialmath.Pose,
	camera transform.Projector,
	blockSize, truncationDistance, maxDistance float64,
) []voxel.Index3D {
	rows := sampledCoordinates(depth.Height(), vc.RaycastSubsampling)
	cols := sampledCoordinates(depth.Width(), vc.RaycastSubsampling)
	origin := cameraPose.Point()

	var mu sync.Mutex
	seen := map[voxel.Index3D]struct{}{}
	utils.GroupWorkParallel(
		len(rows),
		nil,
		func(groupNum, groupSize, from, to int) (utils.MemberWorkFunc, utils.GroupWorkDoneFunc) {
			local := map[voxel.Index3D]struct{}{}
			visit := func(idx voxel.Index3D) { local[idx] = struct{}{} }
			return func(memberNum, workNum int) {
					y := rows[workNum]
					for _, x := range cols {
						d := depth.GetDepth(x, y)
						if !rimage.IsValidDepth(d) {
							continue
						}
						end := math.Min(float64(d)+truncationDistance, maxDistance)
						if end <= 0 {
							continue
						}
						pt := camera.Backproject(r2.Point{X: float64(x), Y: float64(y)}, end)
						raycastBlocks(origin, cameraPose.TransformPoint(pt), blockSize, visit)
					}
				}, func() {
					mu.Lock()
					defer mu.Unlock()
					for idx := range local {
						seen[idx] = struct{}{}
					}
				}
		},
	)
	return sortedIndices(seen)
}

// GetBlocksInViewFrustum returns, in input order, the blocks of candidates that may intersect the
// camera frustum between the image plane and maxDistance. The test is conservative: a block's
// bounding sphere is tested against the frustum planes.
func (vc *ViewCalculator) GetBlocksInViewFrustum(
	candidates []voxel.Index3D,
	cameraPose spatialmath.Pose,
	camera *transform.PinholeCameraIntrinsics,
	blockSize, maxDistance float64,
) []voxel.Index3D {
	worldToCamera := spatialmath.PoseInverse(cameraPose)
	planes := frustumSidePlanes(camera)
	radius := blockSize * math.Sqrt(3) / 2
	return lo.Filter(candidates, func(idx voxel.Index3D, _ int) bool {
		c := worldToCamera.TransformPoint(voxel.BlockCenter(idx, blockSize))
		if c.Z+radius <= 0 || c.Z-radius > maxDistance {
			return false
		}
		for _, n := range planes {
			if n.Dot(c) < -radius {
				return false
			}
		}
		return true
	})
}

// frustumSidePlanes returns the inward unit normals of the four side planes of the camera frustum,
// all passing through the optical center. The planes bound the outer edges of the edge pixels.
func frustumSidePlanes(camera *transform.PinholeCameraIntrinsics) []r3.Vector {
	left := (-0.5 - camera.Ppx) / camera.Fx
	right := (float64(camera.Width) - 0.5 - camera.Ppx) / camera.Fx
	top := (-0.5 - camera.Ppy) / camera.Fy
	bottom := (float64(camera.Height) - 0.5 - camera.Ppy) / camera.Fy
	return []r3.Vector{
		r3.Vector{X: 1, Z: -left}.Normalize(),
		r3.Vector{X: -1, Z: right}.Normalize(),
		r3.Vector{Y: 1, Z: -top}.Normalize(),
		r3.Vector{Y: -1, Z: bottom}.Normalize(),
	}
}

// sampledCoordinates returns 0, step, 2*step, ... below n, always ending with n-1.
func sampledCoordinates(n, step int) []int {
	if n <= 0 {
		return nil
	}
	step = utils.MaxInt(step, 1)
	coords := make([]int, 0, n/step+1)
	for i := 0; i < n; i += step {
		coords = append(coords, i)
	}
	if coords[len(coords)-1] != n-1 {
		coords = append(coords, n-1)
	}
	return coords
}

func sortedIndices(set map[voxel.Index3D]struct{}) []voxel.Index3D {
	indices := lo.Keys(set)
	slices.SortFunc(indices, voxel.CompareIndex)
	return indices
}
