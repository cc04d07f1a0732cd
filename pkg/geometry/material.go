package geometry

import (
	"image"
	"sort"

	"github.com/go-gl/mathgl/mgl32"
)

// Material is a named surface description shared by any number of meshes.
type Material struct {
	Name    string
	Color   *mgl32.Vec4 // RGBA, nil when unset
	Texture *image.RGBA // nil when unset
}

// MaterialTable owns materials by name. Meshes only hold weak references, so
// removing an entry (or dropping the table) releases the material.
type MaterialTable map[string]*Material

// Lookup returns the material called name, or nil.
func (t MaterialTable) Lookup(name string) *Material {
	if t == nil {
		return nil
	}
	return t[name]
}

// Names returns the material names in sorted order.
func (t MaterialTable) Names() []string {
	names := make([]string, 0, len(t))
	for name := range t {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
