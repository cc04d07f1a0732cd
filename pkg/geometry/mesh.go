package geometry

import (
	"errors"
	"fmt"
	"slices"
	"weak"
)

// Mesh validation errors.
var (
	ErrIndexOutOfRange    = errors.New("mesh index out of range")
	ErrIncompleteTriangle = errors.New("mesh index count is not a multiple of 3")
)

// Mesh is an indexed triangle list.
type Mesh struct {
	Layout   Layout
	Vertices []Vertex
	Indices  []uint32 // triples form triangles

	// MaterialName is the usemtl name in effect when the mesh was built.
	MaterialName string

	material weak.Pointer[Material]
}

// NewMesh creates a mesh from the given buffers. The layout is copied, the
// vertex and index slices are not.
func NewMesh(layout Layout, vertices []Vertex, indices []uint32) Mesh {
	return Mesh{
		Layout:   slices.Clone(layout),
		Vertices: vertices,
		Indices:  indices,
	}
}

// SetMaterial attaches a non-owning reference to m. The mesh never keeps the
// material alive on its own.
func (m *Mesh) SetMaterial(mat *Material) {
	if mat == nil {
		m.material = weak.Pointer[Material]{}
		return
	}
	m.material = weak.Make(mat)
	m.MaterialName = mat.Name
}

// Material returns the attached material, or nil if none was attached or it
// has since been released by its owner.
func (m *Mesh) Material() *Material {
	return m.material.Value()
}

// Triangles returns the number of triangles.
func (m *Mesh) Triangles() int {
	return len(m.Indices) / 3
}

// Bounds returns the bounding box of all vertices.
func (m *Mesh) Bounds() AABB {
	return BoundsOf(m.Vertices)
}

// Validate checks that every index refers to an existing vertex.
func (m *Mesh) Validate() error {
	if len(m.Indices)%3 != 0 {
		return fmt.Errorf("%w: %d indices", ErrIncompleteTriangle, len(m.Indices))
	}
	n := uint32(len(m.Vertices))
	for i, idx := range m.Indices {
		if idx >= n {
			return fmt.Errorf("%w: index %d is %d, vertex count %d", ErrIndexOutOfRange, i, idx, n)
		}
	}
	return nil
}
