package pointcloud

import (
	"bytes"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func encodeCloud(t *testing.T, cloud PointCloud, outputType PCDType) []byte {
	t.Helper()
	var buf bytes.Buffer
	test.That(t, ToPCD(cloud, &buf, outputType), test.ShouldBeNil)
	return buf.Bytes()
}

func TestFloorClassification(t *testing.T) {
	cloud := New()
	test.That(t, cloud.Set(r3.Vector{X: 1, Y: 1, Z: 0}, nil), test.ShouldBeNil)
	test.That(t, cloud.Set(r3.Vector{X: 2, Y: 2, Z: 5}, nil), test.ShouldBeNil)
	test.That(t, cloud.Set(r3.Vector{X: 3, Y: 3, Z: -0.125}, nil), test.ShouldBeNil)

	res, err := SplitPCD(encodeCloud(t, cloud, PCDBinary), FloorConfig{})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.NearFloor.Len(), test.ShouldEqual, 2)
	test.That(t, res.AboveFloor.Len(), test.ShouldEqual, 1)
	test.That(t, res.AboveFloor.Positions, test.ShouldResemble, []float32{2, 2, 5})

	// nothing declared color, so no color stream exists on either side
	test.That(t, res.NearFloor.HasColors(), test.ShouldBeFalse)
	test.That(t, res.AboveFloor.HasColors(), test.ShouldBeFalse)
	test.That(t, res.NearFloor.HasNormals(), test.ShouldBeFalse)
}

func TestFloorThresholdBoundary(t *testing.T) {
	cloud := New()
	// exactly on the boundary counts as floor
	test.That(t, cloud.Set(r3.Vector{X: 0, Y: 0, Z: 0.25}, nil), test.ShouldBeNil)
	test.That(t, cloud.Set(r3.Vector{X: 1, Y: 0, Z: -0.25}, nil), test.ShouldBeNil)
	test.That(t, cloud.Set(r3.Vector{X: 2, Y: 0, Z: 0.5}, nil), test.ShouldBeNil)

	res, err := SplitPCD(encodeCloud(t, cloud, PCDBinary), FloorConfig{Threshold: 0.25})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.NearFloor.Len(), test.ShouldEqual, 2)
	test.That(t, res.AboveFloor.Len(), test.ShouldEqual, 1)
}

func TestFloorThresholdDisabled(t *testing.T) {
	cloud := New()
	test.That(t, cloud.Set(r3.Vector{X: 0, Y: 0, Z: 0}, nil), test.ShouldBeNil)

	res, err := SplitPCD(encodeCloud(t, cloud, PCDBinary), FloorConfig{Threshold: -1})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.NearFloor.Len(), test.ShouldEqual, 0)
	test.That(t, res.AboveFloor.Len(), test.ShouldEqual, 1)
}

func TestFloorSplitKeepsAttributes(t *testing.T) {
	cloud := makeTestCloud(t, true, true)
	res, err := SplitPCD(encodeCloud(t, cloud, PCDBinary), FloorConfig{})
	test.That(t, err, test.ShouldBeNil)

	// z values in makeTestCloud: 0.0 and -0.25 near floor, 5.0 above
	test.That(t, res.NearFloor.Len(), test.ShouldEqual, 2)
	test.That(t, res.AboveFloor.Len(), test.ShouldEqual, 1)

	for _, group := range []*Attributes{&res.NearFloor, &res.AboveFloor} {
		test.That(t, len(group.Normals), test.ShouldEqual, group.Len()*3)
		test.That(t, len(group.Colors), test.ShouldEqual, group.Len()*3)
	}
	// the above-floor point is the green one at (1.5, 2.5, 5)
	test.That(t, res.AboveFloor.Positions, test.ShouldResemble, []float32{1.5, 2.5, 5})
	test.That(t, res.AboveFloor.Colors, test.ShouldResemble, []float32{0, 1, 0})
}

func TestSplitCloud(t *testing.T) {
	cloud := New()
	test.That(t, cloud.Set(r3.Vector{X: 1, Y: 1, Z: 0.1}, NewValueData(1)), test.ShouldBeNil)
	test.That(t, cloud.Set(r3.Vector{X: 2, Y: 2, Z: 3}, NewValueData(2)), test.ShouldBeNil)
	test.That(t, cloud.Set(r3.Vector{X: 3, Y: 3, Z: -3}, NewValueData(3)), test.ShouldBeNil)

	floor, above, err := SplitCloud(cloud, FloorConfig{})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, floor.Size(), test.ShouldEqual, 1)
	test.That(t, above.Size(), test.ShouldEqual, 2)
	test.That(t, CloudContains(floor, 1, 1, 0.1), test.ShouldBeTrue)
	test.That(t, CloudContains(above, 2, 2, 3), test.ShouldBeTrue)
	test.That(t, CloudContains(above, 3, 3, -3), test.ShouldBeTrue)

	d, ok := floor.At(1, 1, 0.1)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, d.Value(), test.ShouldEqual, 1)
}
