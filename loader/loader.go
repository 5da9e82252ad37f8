// Package loader fetches point cloud files and turns them into named
// near-floor and above-floor point groups.
package loader

import (
	"context"
	"os"
	"path"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"

	"go.viam.com/pcdsplit/pointcloud"
)

// A Fetcher returns the raw bytes of one point cloud source. Implementations
// own the transport; the loader never retries a failed fetch.
type Fetcher interface {
	Fetch(ctx context.Context, src string) ([]byte, error)
}

// FileFetcher reads sources from the local filesystem.
type FileFetcher struct{}

// Fetch reads the file at src.
func (FileFetcher) Fetch(ctx context.Context, src string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	//nolint:gosec
	return os.ReadFile(src)
}

// Group name suffixes. Group names are the last path segment of the source
// plus one of these.
const (
	FloorSuffix   = "-floor"
	NoFloorSuffix = "-no-floor"
)

// PointGroup is a named attribute stream ready for a renderer.
type PointGroup struct {
	Name string
	pointcloud.Attributes
}

// Result holds the two groups produced from one source.
type Result struct {
	NoFloor PointGroup
	Floor   PointGroup
}

// Loader fetches, decodes and splits point cloud sources.
type Loader struct {
	fetcher Fetcher
	cfg     pointcloud.FloorConfig
	logger  golog.Logger
}

// NewLoader returns a loader using the given fetcher and split configuration.
func NewLoader(fetcher Fetcher, cfg pointcloud.FloorConfig, logger golog.Logger) *Loader {
	return &Loader{fetcher: fetcher, cfg: cfg, logger: logger}
}

// Load fetches one source and splits it into its floor and no-floor groups.
// The decode runs off the calling goroutine and is abandoned when the context
// is cancelled. Fetch errors are returned as-is.
func (l *Loader) Load(ctx context.Context, src string) (*Result, error) {
	raw, err := l.fetcher.Fetch(ctx, src)
	if err != nil {
		return nil, err
	}

	job := pointcloud.StartSplitPCD(ctx, raw, l.cfg, l.logger)
	defer job.Cancel()
	res, err := job.Result(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "decoding %q", src)
	}

	base := path.Base(src)
	l.logger.Debugw("split point cloud",
		"source", src,
		"near_floor", res.NearFloor.Len(),
		"above_floor", res.AboveFloor.Len())
	return &Result{
		NoFloor: PointGroup{Name: base + NoFloorSuffix, Attributes: res.AboveFloor},
		Floor:   PointGroup{Name: base + FloorSuffix, Attributes: res.NearFloor},
	}, nil
}
