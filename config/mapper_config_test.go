package config

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/multierr"
	"go.viam.com/test"
)

func TestDefaultMapperConfig(t *testing.T) {
	cfg := NewDefaultMapperConfig()
	test.That(t, cfg.Validate("mapper"), test.ShouldBeNil)
	test.That(t, cfg.VoxelSizeM, test.ShouldEqual, DefaultVoxelSizeM)
	test.That(t, cfg.TruncationDistanceM(), test.ShouldAlmostEqual, 0.2)
	test.That(t, cfg.RaycastSubsampling, test.ShouldEqual, 1)
}

func TestValidateMapperConfig(t *testing.T) {
	cfg := &MapperConfig{}
	err := cfg.Validate("mapper")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "voxel_size_m")

	cfg = &MapperConfig{VoxelSizeM: 0.1}
	cfg.FillDefaults()
	cfg.MaxWeight = -1
	cfg.RaycastSubsampling = -2
	err = cfg.Validate("mapper")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, len(multierr.Errors(err)), test.ShouldEqual, 2)
	test.That(t, err.Error(), test.ShouldContainSubstring, "max_weight must be positive")
	test.That(t, err.Error(), test.ShouldContainSubstring, "raycast_subsampling")

	cfg = NewDefaultMapperConfig()
	cfg.ObservationWeight = 500
	err = cfg.Validate("mapper")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "cannot exceed max_weight")
}

func TestReadMapperConfig(t *testing.T) {
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "mapper.json")
	test.That(t, os.WriteFile(jsonPath, []byte(`{"voxel_size_m": 0.02, "max_weight": 20}`), 0o600), test.ShouldBeNil)
	cfg, err := ReadMapperConfig(jsonPath)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.VoxelSizeM, test.ShouldEqual, 0.02)
	test.That(t, cfg.MaxWeight, test.ShouldEqual, 20.0)
	test.That(t, cfg.TruncationDistanceVox, test.ShouldEqual, DefaultTruncationDistanceVox)

	yamlPath := filepath.Join(dir, "mapper.yaml")
	body := "voxel_size_m: 0.1\ntruncation_distance_vox: 2\nraycast_subsampling: 4\n"
	test.That(t, os.WriteFile(yamlPath, []byte(body), 0o600), test.ShouldBeNil)
	cfg, err = ReadMapperConfig(yamlPath)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.TruncationDistanceM(), test.ShouldAlmostEqual, 0.2)
	test.That(t, cfg.RaycastSubsampling, test.ShouldEqual, 4)

	badPath := filepath.Join(dir, "mapper.yaml")
	test.That(t, os.WriteFile(badPath, []byte("truncation_distance_vox: 2\n"), 0o600), test.ShouldBeNil)
	_, err = ReadMapperConfig(badPath)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "voxel_size_m")

	_, err = ReadMapperConfig(filepath.Join(dir, "mapper.toml"))
	test.That(t, err, test.ShouldNotBeNil)

	tomlPath := filepath.Join(dir, "mapper.toml")
	test.That(t, os.WriteFile(tomlPath, []byte(""), 0o600), test.ShouldBeNil)
	_, err = ReadMapperConfig(tomlPath)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "unsupported")
}
