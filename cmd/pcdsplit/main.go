// Package main is a command line tool that splits a pcd file into a near-floor
// part and an above-floor part, written back out as two pcd files.
package main

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"go.viam.com/pcdsplit/loader"
	"go.viam.com/pcdsplit/pointcloud"
)

func main() {
	logger := golog.NewDevelopmentLogger("pcdsplit")
	app := &cli.App{
		Name:      "pcdsplit",
		Usage:     "split a pcd point cloud into floor and no-floor parts",
		ArgsUsage: "<file.pcd>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "out-dir",
				Value: ".",
				Usage: "directory to write the two output files into",
			},
			&cli.Float64Flag{
				Name:  "threshold",
				Value: pointcloud.DefaultFloorThreshold,
				Usage: "half-height of the floor band; points with |z| at or below it are floor",
			},
			&cli.BoolFlag{
				Name:  "ascii",
				Usage: "write ascii pcd output instead of binary",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return errors.New("expected exactly one pcd file argument")
			}
			return runSplit(c.Context, c.Args().First(), c.String("out-dir"), c.Float64("threshold"), c.Bool("ascii"), logger)
		},
	}
	if err := app.Run(os.Args); err != nil {
		logger.Fatal(err)
	}
}

func runSplit(ctx context.Context, src, outDir string, threshold float64, ascii bool, logger golog.Logger) error {
	l := loader.NewLoader(loader.FileFetcher{}, pointcloud.FloorConfig{Threshold: threshold}, logger)
	res, err := l.Load(ctx, src)
	if err != nil {
		return err
	}

	outputType := pointcloud.PCDBinary
	if ascii {
		outputType = pointcloud.PCDAscii
	}
	base := strings.TrimSuffix(path.Base(src), path.Ext(src))
	for _, group := range []loader.PointGroup{res.Floor, res.NoFloor} {
		suffix := strings.TrimPrefix(group.Name, path.Base(src))
		out := filepath.Join(outDir, base+suffix+".pcd")
		cloud, err := group.ToCloud()
		if err != nil {
			return err
		}
		if err := pointcloud.WriteToPCDFile(cloud, out, outputType); err != nil {
			return errors.Wrapf(err, "writing %q", out)
		}
		logger.Infow("wrote point group", "file", out, "points", cloud.Size())
	}
	return nil
}
