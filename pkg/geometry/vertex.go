// Package geometry provides the in-memory mesh, point cloud and material types
// produced by the loaders and handed to the renderer.
package geometry

import (
	"errors"
	"fmt"
	"slices"
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
)

// Layout errors.
var (
	ErrEmptyLayout       = errors.New("empty vertex layout")
	ErrPositionNotFirst  = errors.New("vertex layout must start with position")
	ErrDuplicateInLayout = errors.New("duplicate component in vertex layout")
)

// Component identifies one attribute of a vertex.
type Component uint8

// Vertex component kinds.
const (
	Position    Component = iota // xyz
	TexCoord                     // uv
	Normal                       // xyz
	Color                        // rgb
	Reflectance                  // scanner intensity
)

// MaxComponents is the number of distinct component kinds.
const MaxComponents = 5

// Size returns the number of float32 values the component occupies.
func (c Component) Size() int {
	switch c {
	case Position, Normal, Color:
		return 3
	case TexCoord:
		return 2
	case Reflectance:
		return 1
	default:
		return 0
	}
}

// String returns a human-readable component name.
func (c Component) String() string {
	switch c {
	case Position:
		return "Position"
	case TexCoord:
		return "TexCoord"
	case Normal:
		return "Normal"
	case Color:
		return "Color"
	case Reflectance:
		return "Reflectance"
	default:
		return fmt.Sprintf("Unknown(%d)", c)
	}
}

// Layout is the ordered list of components a vertex buffer carries.
// The first component is always Position.
type Layout []Component

// Predefined layouts.
var (
	MeshLayout             = Layout{Position, TexCoord, Normal}
	BasicPointLayout       = Layout{Position}
	ReflectancePointLayout = Layout{Position, Reflectance}
)

// Validate checks that the layout starts with Position and has no duplicates.
func (l Layout) Validate() error {
	if len(l) == 0 {
		return ErrEmptyLayout
	}
	if l[0] != Position {
		return ErrPositionNotFirst
	}
	var seen [MaxComponents]bool
	for _, c := range l {
		if int(c) >= MaxComponents {
			return fmt.Errorf("unknown vertex component %d", c)
		}
		if seen[c] {
			return fmt.Errorf("%w: %s", ErrDuplicateInLayout, c)
		}
		seen[c] = true
	}
	return nil
}

// Has reports whether the layout contains c.
func (l Layout) Has(c Component) bool {
	return l.Index(c) >= 0
}

// Index returns the position of c in the layout, or -1.
func (l Layout) Index(c Component) int {
	for i, lc := range l {
		if lc == c {
			return i
		}
	}
	return -1
}

// Stride returns the number of floats per packed vertex.
func (l Layout) Stride() int {
	n := 0
	for _, c := range l {
		n += c.Size()
	}
	return n
}

// Offset returns the float offset of c inside a packed vertex, or -1.
func (l Layout) Offset(c Component) int {
	off := 0
	for _, lc := range l {
		if lc == c {
			return off
		}
		off += lc.Size()
	}
	return -1
}

// Pack appends the interleaved components of vertices to dst in layout order.
func (l Layout) Pack(dst []float32, vertices []Vertex) []float32 {
	stride := l.Stride()
	offsets := make([]int, len(l))
	for i, c := range l {
		offsets[i] = l.Offset(c)
	}

	start := len(dst)
	dst = slices.Grow(dst, len(vertices)*stride)[:start+len(vertices)*stride]
	for i := range vertices {
		rec := dst[start+i*stride:]
		for j, c := range l {
			copy(rec[offsets[j]:], vertices[i].Component(c))
		}
	}
	return dst
}

// String returns the layout as "Position+TexCoord+...".
func (l Layout) String() string {
	s := ""
	for i, c := range l {
		if i > 0 {
			s += "+"
		}
		s += c.String()
	}
	return s
}

// Vertex holds every component a vertex can carry. Which ones are meaningful
// is decided by the Layout of the owning buffer.
type Vertex struct {
	Position    mgl32.Vec3
	TexCoord    mgl32.Vec2
	Normal      mgl32.Vec3
	Color       mgl32.Vec3
	Reflectance float32
}

// Component returns a slice view of the given component's values.
func (v *Vertex) Component(c Component) []float32 {
	switch c {
	case Position:
		return v.Position[:]
	case TexCoord:
		return v.TexCoord[:]
	case Normal:
		return v.Normal[:]
	case Color:
		return v.Color[:]
	case Reflectance:
		return unsafe.Slice(&v.Reflectance, 1)
	default:
		return nil
	}
}

// SetComponent copies values into component c.
func (v *Vertex) SetComponent(c Component, values []float32) {
	copy(v.Component(c), values)
}
