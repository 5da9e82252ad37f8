package pointcloud

import (
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// CloudMatrix converts a point cloud into a dense matrix with one row per
// point and columns x, y, z. Row order is the cloud's iteration order.
func CloudMatrix(cloud PointCloud) *mat.Dense {
	data := make([]float64, 0, cloud.Size()*3)
	cloud.Iterate(func(p r3.Vector, d Data) bool {
		data = append(data, p.X, p.Y, p.Z)
		return true
	})
	return mat.NewDense(cloud.Size(), 3, data)
}

// CalculateMeanOfPointCloud returns the spatial average center of a point cloud.
func CalculateMeanOfPointCloud(cloud PointCloud) r3.Vector {
	if cloud.Size() == 0 {
		return r3.Vector{}
	}
	m := CloudMatrix(cloud)
	n, _ := m.Dims()
	means := make([]float64, 3)
	for j := 0; j < 3; j++ {
		col := make([]float64, n)
		mat.Col(col, j, m)
		means[j] = stat.Mean(col, nil)
	}
	return r3.Vector{X: means[0], Y: means[1], Z: means[2]}
}

// BoundingBoxFromPointCloud returns the axis aligned bounds of the cloud as a
// min, max vector pair. The second return is false for an empty cloud.
func BoundingBoxFromPointCloud(cloud PointCloud) (r3.Vector, r3.Vector, bool) {
	if cloud.Size() == 0 {
		return r3.Vector{}, r3.Vector{}, false
	}
	meta := cloud.MetaData()
	return r3.Vector{X: meta.MinX, Y: meta.MinY, Z: meta.MinZ},
		r3.Vector{X: meta.MaxX, Y: meta.MaxY, Z: meta.MaxZ}, true
}
