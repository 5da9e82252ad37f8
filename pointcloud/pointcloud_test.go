package pointcloud

import (
	"image/color"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func TestPointCloudBasic(t *testing.T) {
	pc := New()

	p0 := NewVector(0, 0, 0)
	d0 := NewValueData(5)

	test.That(t, pc.Set(p0, d0), test.ShouldBeNil)
	d, got := pc.At(0, 0, 0)
	test.That(t, got, test.ShouldBeTrue)
	test.That(t, d, test.ShouldResemble, d0)

	_, got = pc.At(1, 0, 1)
	test.That(t, got, test.ShouldBeFalse)

	p1 := NewVector(1, 0, 1)
	d1 := NewValueData(17)
	test.That(t, pc.Set(p1, d1), test.ShouldBeNil)

	d, got = pc.At(1, 0, 1)
	test.That(t, got, test.ShouldBeTrue)
	test.That(t, d, test.ShouldResemble, d1)
	test.That(t, d, test.ShouldNotResemble, d0)

	p2 := NewVector(-1, -2, 1)
	d2 := NewValueData(81)
	test.That(t, pc.Set(p2, d2), test.ShouldBeNil)
	test.That(t, pc.Size(), test.ShouldEqual, 3)

	count := 0
	pc.Iterate(func(p r3.Vector, d Data) bool {
		switch p.X {
		case 0:
			test.That(t, p, test.ShouldResemble, p0)
		case 1:
			test.That(t, p, test.ShouldResemble, p1)
		case -1:
			test.That(t, p, test.ShouldResemble, p2)
		}
		count++
		return true
	})
	test.That(t, count, test.ShouldEqual, 3)

	test.That(t, CloudContains(pc, 1, 1, 1), test.ShouldBeFalse)
	test.That(t, CloudContains(pc, 1, 0, 1), test.ShouldBeTrue)

	// setting an existing position replaces its data, not adds a point
	test.That(t, pc.Set(p1, NewValueData(99)), test.ShouldBeNil)
	test.That(t, pc.Size(), test.ShouldEqual, 3)
	d, _ = pc.At(1, 0, 1)
	test.That(t, d.Value(), test.ShouldEqual, 99)
}

func TestPointCloudMetaData(t *testing.T) {
	pc := New()
	test.That(t, pc.Set(NewVector(0, 0, 0), nil), test.ShouldBeNil)
	test.That(t, pc.Set(NewVector(2, -3, 5), NewColoredData(color.NRGBA{R: 1, A: 255})), test.ShouldBeNil)
	test.That(t, pc.Set(NewVector(-2, 4, -1), NewValueData(1)), test.ShouldBeNil)

	meta := pc.MetaData()
	test.That(t, meta.HasColor, test.ShouldBeTrue)
	test.That(t, meta.HasValue, test.ShouldBeTrue)
	test.That(t, meta.MinX, test.ShouldEqual, -2)
	test.That(t, meta.MaxX, test.ShouldEqual, 2)
	test.That(t, meta.MinY, test.ShouldEqual, -3)
	test.That(t, meta.MaxY, test.ShouldEqual, 4)
	test.That(t, meta.MinZ, test.ShouldEqual, -1)
	test.That(t, meta.MaxZ, test.ShouldEqual, 5)
}

func TestDataNormal(t *testing.T) {
	d := NewBasicData()
	test.That(t, d.HasNormal(), test.ShouldBeFalse)
	d.SetNormal(r3.Vector{X: 0, Y: 0, Z: 1})
	test.That(t, d.HasNormal(), test.ShouldBeTrue)
	test.That(t, d.Normal(), test.ShouldResemble, r3.Vector{X: 0, Y: 0, Z: 1})
}

func TestCloudMatrix(t *testing.T) {
	pc := New()
	test.That(t, pc.Set(NewVector(1, 2, 3), nil), test.ShouldBeNil)
	test.That(t, pc.Set(NewVector(4, 5, 6), nil), test.ShouldBeNil)

	m := CloudMatrix(pc)
	r, c := m.Dims()
	test.That(t, r, test.ShouldEqual, 2)
	test.That(t, c, test.ShouldEqual, 3)
	test.That(t, m.At(0, 0), test.ShouldEqual, 1)
	test.That(t, m.At(1, 2), test.ShouldEqual, 6)
}

func TestCalculateMean(t *testing.T) {
	pc := New()
	test.That(t, pc.Set(NewVector(0, 0, 0), nil), test.ShouldBeNil)
	test.That(t, pc.Set(NewVector(2, 4, -2), nil), test.ShouldBeNil)

	mean := CalculateMeanOfPointCloud(pc)
	test.That(t, mean, test.ShouldResemble, r3.Vector{X: 1, Y: 2, Z: -1})

	test.That(t, CalculateMeanOfPointCloud(New()), test.ShouldResemble, r3.Vector{})
}

func TestBoundingBox(t *testing.T) {
	_, _, ok := BoundingBoxFromPointCloud(New())
	test.That(t, ok, test.ShouldBeFalse)

	pc := New()
	test.That(t, pc.Set(NewVector(1, 1, 1), nil), test.ShouldBeNil)
	test.That(t, pc.Set(NewVector(-1, 5, 0), nil), test.ShouldBeNil)
	min, max, ok := BoundingBoxFromPointCloud(pc)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, min, test.ShouldResemble, r3.Vector{X: -1, Y: 1, Z: 0})
	test.That(t, max, test.ShouldResemble, r3.Vector{X: 1, Y: 5, Z: 1})
}

func TestAttributesToCloud(t *testing.T) {
	attrs := &Attributes{
		Positions: []float32{1, 2, 3, 4, 5, 6},
		Colors:    []float32{1, 0, 0, 0, 0, 1},
	}
	cloud, err := attrs.ToCloud()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cloud.Size(), test.ShouldEqual, 2)
	d, ok := cloud.At(1, 2, 3)
	test.That(t, ok, test.ShouldBeTrue)
	r, g, b := d.RGB255()
	test.That(t, r, test.ShouldEqual, 255)
	test.That(t, g, test.ShouldEqual, 0)
	test.That(t, b, test.ShouldEqual, 0)

	// mismatched stream lengths are rejected
	attrs = &Attributes{Positions: []float32{1, 2, 3}, Colors: []float32{1}}
	_, err = attrs.ToCloud()
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "color stream")
}
