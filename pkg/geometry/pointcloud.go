package geometry

import "slices"

// PointCloud is an unindexed list of points rendered as point primitives.
type PointCloud struct {
	Layout Layout
	Points []Vertex
}

// NewPointCloud creates a point cloud. The layout is copied, the points are
// not.
func NewPointCloud(layout Layout, points []Vertex) PointCloud {
	return PointCloud{Layout: slices.Clone(layout), Points: points}
}

// HasReflectance reports whether points carry a reflectance value.
func (p *PointCloud) HasReflectance() bool {
	return p.Layout.Has(Reflectance)
}

// Bounds returns the bounding box of all points.
func (p *PointCloud) Bounds() AABB {
	return BoundsOf(p.Points)
}
