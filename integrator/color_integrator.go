package integrator

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/maskfusion/rimage"
	"go.viam.com/maskfusion/rimage/transform"
	"go.viam.com/maskfusion/spatialmath"
	"go.viam.com/maskfusion/utils"
	"go.viam.com/maskfusion/voxel"
)

// ColorParams configures a ProjectiveColorIntegrator.
type ColorParams struct {
	// SurfaceBandVox is the half width, in voxels, of the band around the TSDF zero crossing that takes color.
	SurfaceBandVox float64
	// TruncationDistanceVox is the truncation distance of the TSDF layer in voxels. A voxel only
	// takes color when it lies within this distance of the surface rendered from the TSDF.
	TruncationDistanceVox   float64
	MinTsdfWeight           float32
	MaxIntegrationDistanceM float64
	MaxWeight               float32
	ObservationWeight       float32
}

// ProjectiveColorIntegrator integrates color frames into the voxels near a TSDF surface.
type ProjectiveColorIntegrator struct {
	params ColorParams
	view   *ViewCalculator
	tracer *SphereTracer
}

// NewProjectiveColorIntegrator returns an integrator using params.
func NewProjectiveColorIntegrator(params ColorParams) (*ProjectiveColorIntegrator, error) {
	if params.SurfaceBandVox < 0 {
		return nil, errors.Errorf("surface band must not be negative, got %v", params.SurfaceBandVox)
	}
	if !(params.TruncationDistanceVox > 0) {
		return nil, errors.Errorf("truncation distance must be positive, got %v", params.TruncationDistanceVox)
	}
	if !(params.MaxIntegrationDistanceM > 0) {
		return nil, errors.Errorf("max integration distance must be positive, got %v", params.MaxIntegrationDistanceM)
	}
	if !(params.ObservationWeight > 0) || params.ObservationWeight > params.MaxWeight {
		return nil, errors.Errorf("observation weight must be in (0, %v], got %v", params.MaxWeight, params.ObservationWeight)
	}
	return &ProjectiveColorIntegrator{
		params: params,
		view:   NewViewCalculator(1),
		tracer: NewSphereTracer(params.MinTsdfWeight),
	}, nil
}

// Params returns the integrator's parameters.
func (ci *ProjectiveColorIntegrator) Params() ColorParams {
	return ci.params
}

// DepthFrame is a depth image together with the pose and intrinsics of the camera that took it.
type DepthFrame struct {
	Depth  *rimage.DepthMap
	Pose   spatialmath.Pose
	Camera *transform.PinholeCameraIntrinsics
}

// IntegrateFrame fuses img, taken from cameraPose (camera to layer), into colorLayer. Only voxels
// within the surface band of tsdfLayer with enough TSDF weight take color, and only when they are
// visible: within the truncation distance of the depth rendered from tsdfLayer at their pixel. A
// color block is allocated for every TSDF block in view; TSDF blocks are never allocated. Voxels
// whose pixel is excluded by mask keep their color and weight.
func (ci *ProjectiveColorIntegrator) IntegrateFrame(
	img *rimage.Image,
	cameraPose spatialmath.Pose,
	camera *transform.PinholeCameraIntrinsics,
	mask MaskSampler,
	tsdfLayer voxel.LayerReader[voxel.TsdfVoxel],
	colorLayer *voxel.ColorLayer,
) (IntegrationStats, error) {
	return ci.IntegrateFrameWithDepth(img, nil, cameraPose, camera, mask, tsdfLayer, colorLayer)
}

// IntegrateFrameWithDepth is IntegrateFrame with a measured depth frame as a second visibility
// test: a voxel that lands on a valid pixel of observed must also lie within the truncation
// distance of that pixel's depth. A nil observed only uses the rendered depth.
func (ci *ProjectiveColorIntegrator) IntegrateFrameWithDepth(
	img *rimage.Image,
	observed *DepthFrame,
	cameraPose spatialmath.Pose,
	camera *transform.PinholeCameraIntrinsics,
	mask MaskSampler,
	tsdfLayer voxel.LayerReader[voxel.TsdfVoxel],
	colorLayer *voxel.ColorLayer,
) (IntegrationStats, error) {
	if img == nil {
		return IntegrationStats{}, errors.New("no color frame to integrate")
	}
	if err := camera.CheckValid(); err != nil {
		return IntegrationStats{}, err
	}
	if err := camera.CheckImage(img); err != nil {
		return IntegrationStats{}, errors.Wrap(err, "color frame")
	}
	if tsdfLayer.VoxelSize() != colorLayer.VoxelSize() {
		return IntegrationStats{}, errors.Errorf("tsdf voxel size %v != color voxel size %v",
			tsdfLayer.VoxelSize(), colorLayer.VoxelSize())
	}
	if observed != nil {
		if observed.Depth == nil {
			return IntegrationStats{}, errors.New("depth frame has no depth")
		}
		if err := observed.Camera.CheckValid(); err != nil {
			return IntegrationStats{}, errors.Wrap(err, "depth frame")
		}
		if err := observed.Camera.CheckImage(observed.Depth); err != nil {
			return IntegrationStats{}, errors.Wrap(err, "depth frame")
		}
	}
	if mask == nil {
		mask = NoMask
	}

	voxelSize := colorLayer.VoxelSize()
	band := ci.params.SurfaceBandVox * voxelSize
	truncation := ci.params.TruncationDistanceVox * voxelSize
	maxDistance := ci.params.MaxIntegrationDistanceM

	candidates := ci.view.GetBlocksInViewFrustum(
		tsdfLayer.AllBlockIndices(), cameraPose, camera, colorLayer.BlockSize(), maxDistance)
	if len(candidates) == 0 {
		return IntegrationStats{}, nil
	}
	surface := ci.tracer.RenderDepth(tsdfLayer, cameraPose, camera, truncation, maxDistance)
	worldToCamera := spatialmath.PoseInverse(cameraPose)
	var worldToObserved spatialmath.Pose
	if observed != nil {
		worldToObserved = spatialmath.PoseInverse(observed.Pose)
	}

	var counter statsCounter
	utils.GroupWorkParallel(
		len(candidates),
		nil,
		func(groupNum, groupSize, from, to int) (utils.MemberWorkFunc, utils.GroupWorkDoneFunc) {
			return func(memberNum, workNum int) {
				blockIdx := candidates[workNum]
				tsdfBlock, ok := tsdfLayer.GetBlockAtIndex(blockIdx)
				if !ok {
					return
				}
				tsdfVoxels := tsdfBlock.Voxels()

				if _, ok := colorLayer.GetBlockAtIndex(blockIdx); !ok {
					counter.allocated.Inc()
				}
				var updated, masked int64
				colorLayer.GetOrAllocateBlock(blockIdx).Update(func(voxels *voxel.Voxels[voxel.ColorVoxel]) {
					for x := 0; x < voxel.VoxelsPerSide; x++ {
						for y := 0; y < voxel.VoxelsPerSide; y++ {
							for z := 0; z < voxel.VoxelsPerSide; z++ {
								tv := tsdfVoxels[x][y][z]
								if tv.Weight < ci.params.MinTsdfWeight || math.Abs(float64(tv.Distance)) > band {
									continue
								}
								voxelIdx := voxel.Index3D{X: x, Y: y, Z: z}
								center := voxel.CenterOfVoxel(blockIdx, voxelIdx, voxelSize)
								pt := worldToCamera.TransformPoint(center)
								if pt.Z > maxDistance {
									continue
								}
								px, ok := camera.Project(pt)
								if !ok {
									continue
								}
								// hidden behind a closer surface
								if d := surface.GetDepth(px.X, px.Y); !rimage.IsValidDepth(d) ||
									math.Abs(float64(d)-pt.Z) > truncation {
									continue
								}
								if observed != nil && !observed.agrees(worldToObserved.TransformPoint(center), truncation) {
									continue
								}
								if mask.IsExcluded(px, pt) {
									masked++
									continue
								}
								v := &voxels[x][y][z]
								*v = ci.fuse(*v, img.GetXY(px.X, px.Y))
								updated++
							}
						}
					}
				})
				counter.updated.Add(updated)
				counter.masked.Add(masked)
			}, nil
		},
	)
	return counter.stats(len(candidates)), nil
}

// agrees reports whether pt, in the frame's camera frame, lies within truncation of the measured
// depth at its pixel. Points outside the image or on pixels without depth agree.
func (f *DepthFrame) agrees(pt r3.Vector, truncation float64) bool {
	px, ok := f.Camera.Project(pt)
	if !ok {
		return true
	}
	d := f.Depth.GetDepth(px.X, px.Y)
	if !rimage.IsValidDepth(d) {
		return true
	}
	return math.Abs(float64(d)-pt.Z) <= truncation
}

func (ci *ProjectiveColorIntegrator) fuse(v voxel.ColorVoxel, c rimage.Color) voxel.ColorVoxel {
	w := ci.params.ObservationWeight
	v.Color = v.Color.WeightedBlend(v.Weight, c, w)
	v.Weight = utils.MinFloat32(v.Weight+w, ci.params.MaxWeight)
	return v
}
