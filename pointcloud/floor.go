package pointcloud

import (
	"context"
	"encoding/binary"
	"math"

	"github.com/golang/geo/r3"
)

// DefaultFloorThreshold is the default half-height of the floor band, in the
// units of the cloud. Points with |z| at or below it are near-floor.
const DefaultFloorThreshold = 0.3

// FloorConfig controls how a cloud is partitioned into near-floor and
// above-floor groups.
type FloorConfig struct {
	// Threshold is the half-height of the floor band. Zero means
	// DefaultFloorThreshold; a negative value sends every point above floor.
	Threshold float64

	// ByteOrder is the byte order of binary payloads. Nil means little-endian.
	ByteOrder binary.ByteOrder
}

func (c FloorConfig) threshold() float64 {
	if c.Threshold == 0 {
		return DefaultFloorThreshold
	}
	return c.Threshold
}

// nearFloor is the classifier. The boundary point |z| == threshold counts as
// floor.
func (c FloorConfig) nearFloor(z float64) bool {
	return math.Abs(z) <= c.threshold()
}

// SplitResult is the outcome of partitioning one cloud: two independent
// attribute streams, either possibly empty.
type SplitResult struct {
	NearFloor  Attributes
	AboveFloor Attributes
}

func (res *SplitResult) route(cfg FloorConfig, rec pcdRecord) {
	group := &res.AboveFloor
	if cfg.nearFloor(float64(rec.pos[2])) {
		group = &res.NearFloor
	}
	group.Positions = append(group.Positions, rec.pos[0], rec.pos[1], rec.pos[2])
	if rec.hasNormal {
		group.Normals = append(group.Normals, rec.normal[0], rec.normal[1], rec.normal[2])
	}
	if rec.hasColor {
		group.Colors = append(group.Colors, rec.rgb[0], rec.rgb[1], rec.rgb[2])
	}
}

// SplitPCD decodes a pcd buffer and partitions its records by the floor
// classifier in a single pass.
func SplitPCD(raw []byte, cfg FloorConfig) (*SplitResult, error) {
	return splitPCD(context.Background(), raw, cfg)
}

func splitPCD(ctx context.Context, raw []byte, cfg FloorConfig) (*SplitResult, error) {
	header, err := ParsePCDHeader(raw)
	if err != nil {
		return nil, err
	}
	var res SplitResult
	err = walkPCD(ctx, header, raw[header.PayloadOffset():], cfg.ByteOrder, func(rec pcdRecord) error {
		res.route(cfg, rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// SplitCloud partitions an existing cloud into a near-floor cloud and an
// above-floor cloud.
func SplitCloud(cloud PointCloud, cfg FloorConfig) (floor, aboveFloor PointCloud, err error) {
	floor = New()
	aboveFloor = New()
	cloud.Iterate(func(p r3.Vector, d Data) bool {
		target := aboveFloor
		if cfg.nearFloor(p.Z) {
			target = floor
		}
		err = target.Set(p, d)
		return err == nil
	})
	if err != nil {
		return nil, nil, err
	}
	return floor, aboveFloor, nil
}
