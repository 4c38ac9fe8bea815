// Package mapper fuses depth and color frames into TSDF and color layers, optionally excluding the
// pixels a segmentation mask marks as foreground.
package mapper

import (
	"sync"

	"github.com/pkg/errors"

	"go.viam.com/maskfusion/config"
	"go.viam.com/maskfusion/integrator"
	"go.viam.com/maskfusion/logging"
	"go.viam.com/maskfusion/rimage"
	"go.viam.com/maskfusion/rimage/transform"
	"go.viam.com/maskfusion/spatialmath"
	"go.viam.com/maskfusion/voxel"
)

// Integrator is the mask-free way of fusing frames into a map.
type Integrator interface {
	// IntegrateDepth fuses a depth frame taken from pose (camera to map).
	IntegrateDepth(depth *rimage.DepthMap, pose spatialmath.Pose, camera *transform.PinholeCameraIntrinsics) error
	// IntegrateColor colors the surface already in the map from a color frame taken from pose.
	IntegrateColor(img *rimage.Image, pose spatialmath.Pose, camera *transform.PinholeCameraIntrinsics) error
}

// MaskedIntegrator also accepts a mask marking pixels to leave out of the map. A mask that
// excludes nothing leaves exactly the map the mask-free calls would.
type MaskedIntegrator interface {
	Integrator
	// IntegrateDepthWithMask fuses depth using a mask co-registered with the depth camera.
	IntegrateDepthWithMask(
		depth *rimage.DepthMap,
		mask *rimage.MonoImage,
		pose spatialmath.Pose,
		camera *transform.PinholeCameraIntrinsics,
	) error
	// IntegrateDepthWithMaskTransform fuses depth using a mask taken by maskCamera, located at
	// depthToMask in the depth camera's frame.
	IntegrateDepthWithMaskTransform(
		depth *rimage.DepthMap,
		mask *rimage.MonoImage,
		pose, depthToMask spatialmath.Pose,
		depthCamera, maskCamera *transform.PinholeCameraIntrinsics,
	) error
	// IntegrateColorWithMask colors the map using a mask co-registered with the color camera.
	IntegrateColorWithMask(
		img *rimage.Image,
		mask *rimage.MonoImage,
		pose spatialmath.Pose,
		camera *transform.PinholeCameraIntrinsics,
	) error
	// IntegrateColorWithMaskTransform colors the map using a mask taken by maskCamera, located at
	// colorToMask in the color camera's frame.
	IntegrateColorWithMaskTransform(
		img *rimage.Image,
		mask *rimage.MonoImage,
		pose, colorToMask spatialmath.Pose,
		colorCamera, maskCamera *transform.PinholeCameraIntrinsics,
	) error
}

var _ MaskedIntegrator = (*Mapper)(nil)

// Mapper owns a TSDF layer and a color layer and integrates frames into them. Calls are
// serialized.
type Mapper struct {
	cfg    config.MapperConfig
	logger logging.Logger

	mu              sync.Mutex
	tsdf            *voxel.TsdfLayer
	color           *voxel.ColorLayer
	tsdfIntegrator  *integrator.ProjectiveTsdfIntegrator
	colorIntegrator *integrator.ProjectiveColorIntegrator
	lastDepthStats  integrator.IntegrationStats
	lastColorStats  integrator.IntegrationStats
	// lastDepth is the most recent integrated depth frame. Color frames taken from the same pose
	// use it to tell visible voxels from hidden ones.
	lastDepth *integrator.DepthFrame
}

// samePoseTolerance is how far apart, in meters and quaternion distance, a depth and a color
// pose may be while still counting as one capture.
const samePoseTolerance = 1e-6

// NewMapper returns an empty map. A nil cfg uses the defaults.
func NewMapper(cfg *config.MapperConfig, logger logging.Logger) (*Mapper, error) {
	var conf config.MapperConfig
	if cfg == nil {
		conf = *config.NewDefaultMapperConfig()
	} else {
		conf = *cfg
		conf.FillDefaults()
	}
	if err := conf.Validate("mapper"); err != nil {
		return nil, err
	}

	tsdf, err := voxel.NewLayer[voxel.TsdfVoxel](conf.VoxelSizeM)
	if err != nil {
		return nil, err
	}
	color, err := voxel.NewLayer[voxel.ColorVoxel](conf.VoxelSizeM)
	if err != nil {
		return nil, err
	}
	tsdfIntegrator, err := integrator.NewProjectiveTsdfIntegrator(integrator.TsdfParams{
		TruncationDistanceVox:   conf.TruncationDistanceVox,
		MaxIntegrationDistanceM: conf.MaxIntegrationDistanceM,
		MaxWeight:               float32(conf.MaxWeight),
		ObservationWeight:       float32(conf.ObservationWeight),
		RaycastSubsampling:      conf.RaycastSubsampling,
	})
	if err != nil {
		return nil, errors.Wrap(err, "cannot create tsdf integrator")
	}
	colorIntegrator, err := integrator.NewProjectiveColorIntegrator(integrator.ColorParams{
		SurfaceBandVox:          conf.ColorSurfaceBandVox,
		TruncationDistanceVox:   conf.TruncationDistanceVox,
		MinTsdfWeight:           float32(conf.MinTsdfWeightForColor),
		MaxIntegrationDistanceM: conf.MaxIntegrationDistanceM,
		MaxWeight:               float32(conf.MaxWeight),
		ObservationWeight:       float32(conf.ObservationWeight),
	})
	if err != nil {
		return nil, errors.Wrap(err, "cannot create color integrator")
	}

	if logger == nil {
		logger = logging.Global().Sublogger("mapper")
	}
	return &Mapper{
		cfg:             conf,
		logger:          logger,
		tsdf:            tsdf,
		color:           color,
		tsdfIntegrator:  tsdfIntegrator,
		colorIntegrator: colorIntegrator,
	}, nil
}

// Config returns the filled-in config the mapper runs with.
func (m *Mapper) Config() config.MapperConfig {
	return m.cfg
}

// TsdfLayer returns a read-only view of the TSDF layer.
func (m *Mapper) TsdfLayer() voxel.LayerReader[voxel.TsdfVoxel] {
	return m.tsdf.ReadOnly()
}

// ColorLayer returns a read-only view of the color layer.
func (m *Mapper) ColorLayer() voxel.LayerReader[voxel.ColorVoxel] {
	return m.color.ReadOnly()
}

// LastDepthStats returns the stats of the most recent successful depth integration.
func (m *Mapper) LastDepthStats() integrator.IntegrationStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastDepthStats
}

// LastColorStats returns the stats of the most recent successful color integration.
func (m *Mapper) LastColorStats() integrator.IntegrationStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastColorStats
}

// Reset drops every block of both layers.
func (m *Mapper) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tsdf.Clear()
	m.color.Clear()
	m.lastDepthStats = integrator.IntegrationStats{}
	m.lastColorStats = integrator.IntegrationStats{}
	m.lastDepth = nil
}

// IntegrateDepth fuses a depth frame taken from pose (camera to map).
func (m *Mapper) IntegrateDepth(
	depth *rimage.DepthMap,
	pose spatialmath.Pose,
	camera *transform.PinholeCameraIntrinsics,
) error {
	return m.integrateDepth(depth, pose, camera, integrator.NoMask)
}

// IntegrateDepthWithMask fuses depth, skipping voxels observed through excluded pixels of mask. A
// mask of a different resolution than the depth frame is sampled by nearest pixel when the aspect
// ratios match and is an error otherwise.
func (m *Mapper) IntegrateDepthWithMask(
	depth *rimage.DepthMap,
	mask *rimage.MonoImage,
	pose spatialmath.Pose,
	camera *transform.PinholeCameraIntrinsics,
) error {
	if depth == nil {
		return errors.New("no depth frame to integrate")
	}
	sampler, err := transform.NewCoRegisteredMask(mask, depth)
	if err != nil {
		return errors.Wrap(err, "depth mask")
	}
	return m.integrateDepth(depth, pose, camera, sampler)
}

// IntegrateDepthWithMaskTransform fuses depth, skipping voxels whose observed surface point
// reprojects into an excluded pixel of a mask taken by maskCamera at depthToMask.
func (m *Mapper) IntegrateDepthWithMaskTransform(
	depth *rimage.DepthMap,
	mask *rimage.MonoImage,
	pose, depthToMask spatialmath.Pose,
	depthCamera, maskCamera *transform.PinholeCameraIntrinsics,
) error {
	sampler, err := transform.NewMaskReprojector(mask, maskCamera, depthToMask)
	if err != nil {
		return errors.Wrap(err, "depth mask")
	}
	return m.integrateDepth(depth, pose, depthCamera, sampler)
}

// IntegrateColor colors the surface already in the TSDF layer from a color frame taken from pose.
func (m *Mapper) IntegrateColor(
	img *rimage.Image,
	pose spatialmath.Pose,
	camera *transform.PinholeCameraIntrinsics,
) error {
	return m.integrateColor(img, pose, camera, integrator.NoMask)
}

// IntegrateColorWithMask colors the surface, leaving voxels seen through excluded pixels of mask
// untouched.
func (m *Mapper) IntegrateColorWithMask(
	img *rimage.Image,
	mask *rimage.MonoImage,
	pose spatialmath.Pose,
	camera *transform.PinholeCameraIntrinsics,
) error {
	if img == nil {
		return errors.New("no color frame to integrate")
	}
	sampler, err := transform.NewCoRegisteredMask(mask, img)
	if err != nil {
		return errors.Wrap(err, "color mask")
	}
	return m.integrateColor(img, pose, camera, sampler)
}

// IntegrateColorWithMaskTransform colors the surface, leaving voxels that reproject into excluded
// pixels of a mask taken by maskCamera at colorToMask untouched.
func (m *Mapper) IntegrateColorWithMaskTransform(
	img *rimage.Image,
	mask *rimage.MonoImage,
	pose, colorToMask spatialmath.Pose,
	colorCamera, maskCamera *transform.PinholeCameraIntrinsics,
) error {
	sampler, err := transform.NewMaskReprojector(mask, maskCamera, colorToMask)
	if err != nil {
		return errors.Wrap(err, "color mask")
	}
	return m.integrateColor(img, pose, colorCamera, sampler)
}

func (m *Mapper) integrateDepth(
	depth *rimage.DepthMap,
	pose spatialmath.Pose,
	camera *transform.PinholeCameraIntrinsics,
	mask integrator.MaskSampler,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if depth != nil && depth.NumValid() == 0 {
		m.logger.Warnw("depth frame has no valid depth", "width", depth.Width(), "height", depth.Height())
	}
	stats, err := m.tsdfIntegrator.IntegrateFrame(depth, pose, camera, mask, m.tsdf)
	if err != nil {
		return err
	}
	m.lastDepthStats = stats
	depthCamera := *camera
	m.lastDepth = &integrator.DepthFrame{Depth: depth.Clone(), Pose: pose, Camera: &depthCamera}
	m.logger.Debugw("integrated depth",
		"candidate_blocks", stats.CandidateBlocks,
		"allocated_blocks", stats.AllocatedBlocks,
		"updated_voxels", stats.UpdatedVoxels,
		"masked_voxels", stats.MaskedVoxels,
		"total_blocks", m.tsdf.NumAllocatedBlocks(),
	)
	return nil
}

func (m *Mapper) integrateColor(
	img *rimage.Image,
	pose spatialmath.Pose,
	camera *transform.PinholeCameraIntrinsics,
	mask integrator.MaskSampler,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var observed *integrator.DepthFrame
	if m.lastDepth != nil && spatialmath.PoseAlmostEqual(m.lastDepth.Pose, pose, samePoseTolerance) {
		observed = m.lastDepth
	}
	stats, err := m.colorIntegrator.IntegrateFrameWithDepth(img, observed, pose, camera, mask, m.tsdf.ReadOnly(), m.color)
	if err != nil {
		return err
	}
	m.lastColorStats = stats
	m.logger.Debugw("integrated color",
		"candidate_blocks", stats.CandidateBlocks,
		"allocated_blocks", stats.AllocatedBlocks,
		"updated_voxels", stats.UpdatedVoxels,
		"masked_voxels", stats.MaskedVoxels,
		"total_blocks", m.color.NumAllocatedBlocks(),
	)
	return nil
}
