// Package integrator fuses depth and color frames into voxel layers by projecting voxel centers
// into the camera.
package integrator

import (
	"image"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"

	"go.viam.com/maskfusion/rimage"
	"go.viam.com/maskfusion/rimage/transform"
	"go.viam.com/maskfusion/spatialmath"
	"go.viam.com/maskfusion/utils"
	"go.viam.com/maskfusion/voxel"
)

// TsdfParams configures a ProjectiveTsdfIntegrator.
type TsdfParams struct {
	// TruncationDistanceVox is the truncation distance in voxels.
	TruncationDistanceVox   float64
	MaxIntegrationDistanceM float64
	MaxWeight               float32
	ObservationWeight       float32
	RaycastSubsampling      int
}

// ProjectiveTsdfIntegrator integrates depth frames into a TSDF layer.
type ProjectiveTsdfIntegrator struct {
	params TsdfParams
	view   *ViewCalculator
}

// NewProjectiveTsdfIntegrator returns an integrator using params.
func NewProjectiveTsdfIntegrator(params TsdfParams) (*ProjectiveTsdfIntegrator, error) {
	if !(params.TruncationDistanceVox > 0) {
		return nil, errors.Errorf("truncation distance must be positive, got %v", params.TruncationDistanceVox)
	}
	if !(params.MaxIntegrationDistanceM > 0) {
		return nil, errors.Errorf("max integration distance must be positive, got %v", params.MaxIntegrationDistanceM)
	}
	if !(params.ObservationWeight > 0) || params.ObservationWeight > params.MaxWeight {
		return nil, errors.Errorf("observation weight must be in (0, %v], got %v", params.MaxWeight, params.ObservationWeight)
	}
	return &ProjectiveTsdfIntegrator{params: params, view: NewViewCalculator(params.RaycastSubsampling)}, nil
}

// Params returns the integrator's parameters.
func (ti *ProjectiveTsdfIntegrator) Params() TsdfParams {
	return ti.params
}

// TruncationDistanceM returns the truncation distance in meters for voxels of voxelSize.
func (ti *ProjectiveTsdfIntegrator) TruncationDistanceM(voxelSize float64) float64 {
	return ti.params.TruncationDistanceVox * voxelSize
}

type tsdfUpdate struct {
	idx voxel.Index3D
	sdf float32
}

// IntegrateFrame fuses depth, taken from cameraPose (camera to layer), into layer. Voxels whose
// observed surface point is excluded by mask are skipped. Blocks are only allocated when at least
// one of their voxels is updated, so a frame that is entirely masked allocates nothing.
func (ti *ProjectiveTsdfIntegrator) IntegrateFrame(
	depth *rimage.DepthMap,
	cameraPose spatialmath.Pose,
	camera *transform.PinholeCameraIntrinsics,
	mask MaskSampler,
	layer *voxel.TsdfLayer,
) (IntegrationStats, error) {
	if depth == nil {
		return IntegrationStats{}, errors.New("no depth frame to integrate")
	}
	if err := camera.CheckValid(); err != nil {
		return IntegrationStats{}, err
	}
	if err := camera.CheckImage(depth); err != nil {
		return IntegrationStats{}, errors.Wrap(err, "depth frame")
	}
	if mask == nil {
		mask = NoMask
	}

	voxelSize := layer.VoxelSize()
	blockSize := layer.BlockSize()
	truncation := ti.TruncationDistanceM(voxelSize)
	maxDistance := ti.params.MaxIntegrationDistanceM

	candidates := ti.view.GetBlocksInImageViewRaycast(depth, cameraPose, camera, blockSize, truncation, maxDistance)
	worldToCamera := spatialmath.PoseInverse(cameraPose)

	var counter statsCounter
	utils.GroupWorkParallel(
		len(candidates),
		nil,
		func(groupNum, groupSize, from, to int) (utils.MemberWorkFunc, utils.GroupWorkDoneFunc) {
			updates := make([]tsdfUpdate, 0, voxel.VoxelsPerSide*voxel.VoxelsPerSide*voxel.VoxelsPerSide)
			return func(memberNum, workNum int) {
				blockIdx := candidates[workNum]
				updates = updates[:0]
				var masked int64
				for x := 0; x < voxel.VoxelsPerSide; x++ {
					for y := 0; y < voxel.VoxelsPerSide; y++ {
						for z := 0; z < voxel.VoxelsPerSide; z++ {
							voxelIdx := voxel.Index3D{X: x, Y: y, Z: z}
							pt := worldToCamera.TransformPoint(voxel.CenterOfVoxel(blockIdx, voxelIdx, voxelSize))
							if pt.Z > maxDistance {
								continue
							}
							px, ok := camera.Project(pt)
							if !ok {
								continue
							}
							d := depth.GetDepth(px.X, px.Y)
							if !rimage.IsValidDepth(d) {
								continue
							}
							if mask.IsExcluded(px, camera.Backproject(pixelCoords(px), float64(d))) {
								masked++
								continue
							}
							sdf := float64(d) - pt.Z
							if sdf < -truncation {
								continue
							}
							if sdf > truncation {
								sdf = truncation
							}
							updates = append(updates, tsdfUpdate{idx: voxelIdx, sdf: float32(sdf)})
						}
					}
				}
				counter.masked.Add(masked)
				if len(updates) == 0 {
					return
				}

				if _, ok := layer.GetBlockAtIndex(blockIdx); !ok {
					counter.allocated.Inc()
				}
				layer.GetOrAllocateBlock(blockIdx).Update(func(voxels *voxel.Voxels[voxel.TsdfVoxel]) {
					for _, u := range updates {
						v := &voxels[u.idx.X][u.idx.Y][u.idx.Z]
						*v = ti.fuse(*v, u.sdf)
					}
				})
				counter.updated.Add(int64(len(updates)))
			}, nil
		},
	)
	return counter.stats(len(candidates)), nil
}

// fuse folds one signed distance observation into v as a weighted running average. The weight
// saturates at MaxWeight.
func (ti *ProjectiveTsdfIntegrator) fuse(v voxel.TsdfVoxel, sdf float32) voxel.TsdfVoxel {
	w := ti.params.ObservationWeight
	total := v.Weight + w
	v.Distance = (v.Distance*v.Weight + sdf*w) / total
	v.Weight = utils.MinFloat32(total, ti.params.MaxWeight)
	return v
}

func pixelCoords(px image.Point) r2.Point {
	return r2.Point{X: float64(px.X), Y: float64(px.Y)}
}
