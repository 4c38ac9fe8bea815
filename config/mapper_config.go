// Package config defines the tunable parameters of a mapper and how they are read from disk.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"
	"gopkg.in/yaml.v3"
)

// Defaults applied by FillDefaults to unset fields.
const (
	DefaultVoxelSizeM              = 0.05
	DefaultTruncationDistanceVox   = 4.0
	DefaultMaxIntegrationDistanceM = 7.0
	DefaultMaxWeight               = 100.0
	DefaultObservationWeight       = 1.0
	DefaultColorSurfaceBandVox     = 1.0
	DefaultMinTsdfWeightForColor   = 1e-4
	DefaultRaycastSubsampling      = 1
)

// MapperConfig holds the parameters shared by the TSDF and color integrators of one mapper.
type MapperConfig struct {
	VoxelSizeM float64 `json:"voxel_size_m" yaml:"voxel_size_m"`
	// TruncationDistanceVox is the half width of the TSDF band, in voxels.
	TruncationDistanceVox   float64 `json:"truncation_distance_vox,omitempty" yaml:"truncation_distance_vox,omitempty"`
	MaxIntegrationDistanceM float64 `json:"max_integration_distance_m,omitempty" yaml:"max_integration_distance_m,omitempty"`
	MaxWeight               float64 `json:"max_weight,omitempty" yaml:"max_weight,omitempty"`
	ObservationWeight       float64 `json:"observation_weight,omitempty" yaml:"observation_weight,omitempty"`
	// ColorSurfaceBandVox is the half width, in voxels, of the band around the TSDF zero crossing that takes color.
	ColorSurfaceBandVox   float64 `json:"color_surface_band_vox,omitempty" yaml:"color_surface_band_vox,omitempty"`
	MinTsdfWeightForColor float64 `json:"min_tsdf_weight_for_color,omitempty" yaml:"min_tsdf_weight_for_color,omitempty"`
	// RaycastSubsampling casts a candidate-block ray through every Nth depth pixel in each direction.
	RaycastSubsampling int `json:"raycast_subsampling,omitempty" yaml:"raycast_subsampling,omitempty"`
}

// NewDefaultMapperConfig returns a config with every field at its default.
func NewDefaultMapperConfig() *MapperConfig {
	cfg := &MapperConfig{VoxelSizeM: DefaultVoxelSizeM}
	cfg.FillDefaults()
	return cfg
}

// FillDefaults sets every unset optional field to its default. The voxel size is required and left alone.
func (cfg *MapperConfig) FillDefaults() {
	if cfg.TruncationDistanceVox == 0 {
		cfg.TruncationDistanceVox = DefaultTruncationDistanceVox
	}
	if cfg.MaxIntegrationDistanceM == 0 {
		cfg.MaxIntegrationDistanceM = DefaultMaxIntegrationDistanceM
	}
	if cfg.MaxWeight == 0 {
		cfg.MaxWeight = DefaultMaxWeight
	}
	if cfg.ObservationWeight == 0 {
		cfg.ObservationWeight = DefaultObservationWeight
	}
	if cfg.ColorSurfaceBandVox == 0 {
		cfg.ColorSurfaceBandVox = DefaultColorSurfaceBandVox
	}
	if cfg.MinTsdfWeightForColor == 0 {
		cfg.MinTsdfWeightForColor = DefaultMinTsdfWeightForColor
	}
	if cfg.RaycastSubsampling == 0 {
		cfg.RaycastSubsampling = DefaultRaycastSubsampling
	}
}

// Validate ensures all parts of the config are valid.
func (cfg *MapperConfig) Validate(path string) error {
	if cfg.VoxelSizeM == 0 {
		return utils.NewConfigValidationFieldRequiredError(path, "voxel_size_m")
	}
	var errs error
	positive := func(name string, v float64) {
		if !(v > 0) {
			errs = multierr.Append(errs, utils.NewConfigValidationError(path,
				errors.Errorf("%s must be positive, got %v", name, v)))
		}
	}
	positive("voxel_size_m", cfg.VoxelSizeM)
	positive("truncation_distance_vox", cfg.TruncationDistanceVox)
	positive("max_integration_distance_m", cfg.MaxIntegrationDistanceM)
	positive("max_weight", cfg.MaxWeight)
	positive("observation_weight", cfg.ObservationWeight)
	positive("color_surface_band_vox", cfg.ColorSurfaceBandVox)
	positive("min_tsdf_weight_for_color", cfg.MinTsdfWeightForColor)
	if cfg.RaycastSubsampling < 1 {
		errs = multierr.Append(errs, utils.NewConfigValidationError(path,
			errors.Errorf("raycast_subsampling must be at least 1, got %d", cfg.RaycastSubsampling)))
	}
	if cfg.ObservationWeight > cfg.MaxWeight && cfg.MaxWeight > 0 {
		errs = multierr.Append(errs, utils.NewConfigValidationError(path,
			errors.Errorf("observation_weight (%v) cannot exceed max_weight (%v)", cfg.ObservationWeight, cfg.MaxWeight)))
	}
	return errs
}

// TruncationDistanceM returns the metric half width of the TSDF band.
func (cfg *MapperConfig) TruncationDistanceM() float64 {
	return cfg.TruncationDistanceVox * cfg.VoxelSizeM
}

// ReadMapperConfig reads a JSON or YAML (by file extension) config, fills defaults and validates it.
func ReadMapperConfig(path string) (*MapperConfig, error) {
	//nolint:gosec
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "error reading mapper config")
	}
	cfg := &MapperConfig{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	case ".json", "":
		err = json.Unmarshal(data, cfg)
	default:
		return nil, errors.Errorf("unsupported mapper config extension %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, errors.Wrapf(err, "error parsing mapper config %q", path)
	}
	cfg.FillDefaults()
	if err := cfg.Validate(path); err != nil {
		return nil, err
	}
	return cfg, nil
}
