// Package main fuses a single depth, color and mask frame with and without the mask and reports
// what each map contains.
package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	goutils "go.viam.com/utils"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/maskfusion/config"
	"go.viam.com/maskfusion/logging"
	"go.viam.com/maskfusion/mapper"
	"go.viam.com/maskfusion/rimage"
	"go.viam.com/maskfusion/rimage/transform"
	"go.viam.com/maskfusion/spatialmath"
	"go.viam.com/maskfusion/utils"
	"go.viam.com/maskfusion/voxel"
)

const (
	flagConfig      = "config"
	flagIntrinsics  = "intrinsics"
	flagDepth       = "depth"
	flagDepthScale  = "depth-scale"
	flagColor       = "color"
	flagMask        = "mask"
	flagPose        = "pose"
	flagResizeColor = "resize-color"
	flagDebug       = "debug"
)

func main() {
	app := newApp()
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	var logger logging.Logger
	return &cli.App{
		Name:  "maskfuse",
		Usage: "fuse one RGB-D frame into a voxel map with and without a segmentation mask",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    flagDebug,
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging",
			},
		},
		Before: func(c *cli.Context) error {
			if c.Bool(flagDebug) {
				logger = logging.NewDebugLogger("maskfuse")
			} else {
				logger = logging.NewLogger("maskfuse")
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:      "fuse",
				Usage:     "integrate a frame into a masked and an unmasked map and compare them",
				UsageText: "maskfuse fuse --intrinsics cam.json --depth depth.png --mask mask.png [--color color.jpg]",
				Flags: []cli.Flag{
					&cli.PathFlag{
						Name:  flagConfig,
						Usage: "mapper config `FILE` (.json or .yaml); defaults are used when unset",
					},
					&cli.PathFlag{
						Name:     flagIntrinsics,
						Required: true,
						Usage:    "pinhole intrinsics JSON `FILE` shared by the depth, color and mask images",
					},
					&cli.PathFlag{
						Name:     flagDepth,
						Required: true,
						Usage:    "16-bit depth PNG `FILE`",
					},
					&cli.Float64Flag{
						Name:  flagDepthScale,
						Value: 0.001,
						Usage: "meters per depth unit",
					},
					&cli.PathFlag{
						Name:     flagMask,
						Required: true,
						Usage:    "segmentation mask image `FILE`, nonzero pixels are excluded",
					},
					&cli.PathFlag{
						Name:  flagColor,
						Usage: "color image `FILE`",
					},
					&cli.BoolFlag{
						Name:  flagResizeColor,
						Usage: "resample the color image to the intrinsics resolution",
					},
					&cli.PathFlag{
						Name:  flagPose,
						Usage: "text `FILE` holding the 4x4 camera to world matrix, row major; identity when unset",
					},
				},
				Action: func(c *cli.Context) error {
					return fuseAction(c, logger)
				},
			},
		},
	}
}

type frame struct {
	camera *transform.PinholeCameraIntrinsics
	pose   spatialmath.Pose
	depth  *rimage.DepthMap
	color  *rimage.Image
	mask   *rimage.MonoImage
}

func loadFrame(c *cli.Context) (*frame, error) {
	camera, err := transform.NewPinholeCameraIntrinsicsFromJSONFile(c.Path(flagIntrinsics))
	if err != nil {
		return nil, err
	}
	depth, err := rimage.ReadDepthPNG(c.Path(flagDepth), c.Float64(flagDepthScale))
	if err != nil {
		return nil, err
	}
	maskImg, err := imaging.Open(c.Path(flagMask))
	if err != nil {
		return nil, errors.Wrap(err, "cannot read mask")
	}
	f := &frame{
		camera: camera,
		pose:   spatialmath.NewZeroPose(),
		depth:  depth,
		mask:   rimage.ConvertImageToMask(maskImg),
	}

	if path := c.Path(flagColor); path != "" {
		colorImg, err := imaging.Open(path)
		if err != nil {
			return nil, errors.Wrap(err, "cannot read color image")
		}
		if c.Bool(flagResizeColor) {
			colorImg = imaging.Resize(colorImg, camera.Width, camera.Height, imaging.Linear)
		}
		f.color = rimage.ConvertImage(colorImg)
	}

	if path := c.Path(flagPose); path != "" {
		file, err := os.Open(path) //nolint:gosec
		if err != nil {
			return nil, errors.Wrap(err, "cannot read pose")
		}
		defer goutils.UncheckedErrorFunc(file.Close)
		if f.pose, err = readPose(file); err != nil {
			return nil, errors.Wrapf(err, "cannot parse pose in %q", path)
		}
	}
	return f, nil
}

// readPose parses 16 whitespace separated numbers as a row major homogeneous transform.
func readPose(r io.Reader) (spatialmath.Pose, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return spatialmath.Pose{}, err
	}
	fields := strings.Fields(string(body))
	if len(fields) != 16 {
		return spatialmath.Pose{}, errors.Errorf("expected 16 numbers, got %d", len(fields))
	}
	values := make([]float64, len(fields))
	for i, field := range fields {
		if values[i], err = strconv.ParseFloat(field, 64); err != nil {
			return spatialmath.Pose{}, err
		}
	}
	return spatialmath.NewPoseFromMatrix(mat.NewDense(4, 4, values))
}

func integrate(m *mapper.Mapper, f *frame, masked bool) error {
	if masked {
		if err := m.IntegrateDepthWithMask(f.depth, f.mask, f.pose, f.camera); err != nil {
			return err
		}
	} else if err := m.IntegrateDepth(f.depth, f.pose, f.camera); err != nil {
		return err
	}
	if f.color == nil {
		return nil
	}
	if masked {
		return m.IntegrateColorWithMask(f.color, f.mask, f.pose, f.camera)
	}
	return m.IntegrateColor(f.color, f.pose, f.camera)
}

type layerSummary struct {
	tsdfBlocks  int
	colorBlocks int
	observed    int
	colored     int
	// absolute signed distances of observed voxels
	residuals []float64
}

func summarize(m *mapper.Mapper) layerSummary {
	s := layerSummary{
		tsdfBlocks:  m.TsdfLayer().NumAllocatedBlocks(),
		colorBlocks: m.ColorLayer().NumAllocatedBlocks(),
	}
	voxel.CallFunctionOnAllVoxels(m.TsdfLayer(), func(_, _ voxel.Index3D, v voxel.TsdfVoxel) {
		if v.Weight > 0 {
			s.observed++
			s.residuals = append(s.residuals, math.Abs(float64(v.Distance)))
		}
	})
	voxel.CallFunctionOnAllVoxels(m.ColorLayer(), func(_, _ voxel.Index3D, v voxel.ColorVoxel) {
		if v.Weight > 0 {
			s.colored++
		}
	})
	return s
}

// residualString formats the median absolute signed distance of a map's observed voxels.
func (s layerSummary) residualString() string {
	median, err := stats.Median(s.residuals)
	if err != nil {
		return "-"
	}
	return fmt.Sprintf("%.4f", median)
}

func renderSummaries(names []string, maps []*mapper.Mapper) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Map", "TSDF blocks", "Color blocks", "Observed voxels", "Colored voxels", "Median |SDF| (m)"})
	for i, m := range maps {
		s := summarize(m)
		t.AppendRow(table.Row{names[i], s.tsdfBlocks, s.colorBlocks, s.observed, s.colored, s.residualString()})
	}
	return t.Render()
}

func fuseAction(c *cli.Context, logger logging.Logger) error {
	cfg := config.NewDefaultMapperConfig()
	if path := c.Path(flagConfig); path != "" {
		var err error
		if cfg, err = config.ReadMapperConfig(path); err != nil {
			return err
		}
	}
	f, err := loadFrame(c)
	if err != nil {
		return err
	}
	if f.depth.NumValid() == 0 {
		logger.Warnw("depth frame has no valid pixels", "path", c.Path(flagDepth))
	}

	maskedMapper, err := mapper.NewMapper(cfg, logger.Sublogger("masked"))
	if err != nil {
		return err
	}
	unmaskedMapper, err := mapper.NewMapper(cfg, logger.Sublogger("unmasked"))
	if err != nil {
		return err
	}

	elapsed, err := utils.RunInParallel(c.Context, []utils.SimpleFunc{
		func(context.Context) error { return integrate(maskedMapper, f, true) },
		func(context.Context) error { return integrate(unmaskedMapper, f, false) },
	})
	if err != nil {
		return err
	}
	logger.Infow("integrated frame", "elapsed", elapsed, "voxel_size_m", cfg.VoxelSizeM)

	fmt.Fprintln(c.App.Writer, renderSummaries(
		[]string{"unmasked", "masked"},
		[]*mapper.Mapper{unmaskedMapper, maskedMapper},
	))
	fmt.Fprintf(c.App.Writer, "masked depth observations skipped: %d\n", maskedMapper.LastDepthStats().MaskedVoxels)
	if !f.pose.IsIdentity() {
		fmt.Fprintf(c.App.Writer, "camera to world:\n%v\n", mat.Formatted(f.pose.Matrix(), mat.Squeeze()))
	}
	return nil
}
