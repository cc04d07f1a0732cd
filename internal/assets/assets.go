// Package assets loads geometry files into shared scene collections.
package assets

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Faultbox/pointview/internal/config"
	"github.com/Faultbox/pointview/internal/texture"
	"github.com/Faultbox/pointview/pkg/formats"
	"github.com/Faultbox/pointview/pkg/geometry"
)

// Kind is the loader selected for an input path.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindOBJ          // Wavefront OBJ file
	Kind3DTK         // directory of .3d/.pose scans
	KindC3D          // compact binary point file
)

// String returns a human-readable kind name.
func (k Kind) String() string {
	switch k {
	case KindOBJ:
		return "Wavefront OBJ"
	case Kind3DTK:
		return "3dtk"
	case KindC3D:
		return "compact 3dtk"
	default:
		return "unknown"
	}
}

// ErrUnknownKind is recorded for inputs no loader accepts.
var ErrUnknownKind = errors.New("unrecognized input")

// DetectKind picks the loader for path: directories are 3dtk scan sets,
// files are chosen by extension.
func DetectKind(path string) (Kind, error) {
	info, err := os.Stat(path)
	if err != nil {
		return KindUnknown, err
	}
	if info.IsDir() {
		return Kind3DTK, nil
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".obj":
		return KindOBJ, nil
	case formats.C3DExt:
		return KindC3D, nil
	default:
		return KindUnknown, nil
	}
}

// float32 machine epsilon
const sizeEpsilon = 1.1920929e-07

// Manager owns every mesh, point cloud and material loaded for a scene.
// All methods are safe for concurrent use.
type Manager struct {
	cfg    config.LoadingConfig
	log    *zap.Logger
	images formats.ImageDecoder

	mu        sync.RWMutex
	meshes    []geometry.Mesh
	clouds    []geometry.PointCloud
	materials geometry.MaterialTable
	owners    []geometry.MaterialTable // per-file tables, keep shadowed materials alive
	warnings  []error
}

// NewManager creates a manager using the given loader settings. A nil log
// discards output.
func NewManager(cfg config.LoadingConfig, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		cfg:       cfg,
		log:       log,
		images:    texture.Decoder{FlipVertical: cfg.FlipTextures},
		materials: make(geometry.MaterialTable),
	}
}

// loadResult is what one input path produced.
type loadResult struct {
	meshes    []geometry.Mesh
	clouds    []geometry.PointCloud
	materials geometry.MaterialTable
	warnings  []error
}

func (m *Manager) newLoader(path string) *formats.Loader {
	l := formats.NewLoader(m.log.With(zap.String("input", path)))
	l.Pedantic = m.cfg.Pedantic
	l.DisableMmap = !m.cfg.Mmap
	l.Images = m.images
	return l
}

// loadOne runs the loader for a single path. Partial results are returned
// alongside an error.
func (m *Manager) loadOne(path string) (loadResult, error) {
	var r loadResult

	kind, err := DetectKind(path)
	if err != nil {
		return r, err
	}

	l := m.newLoader(path)
	m.log.Info("loading", zap.String("path", path), zap.Stringer("kind", kind))

	switch kind {
	case KindOBJ:
		r.materials = make(geometry.MaterialTable)
		r.meshes, err = l.LoadOBJ(path, nil, r.materials)
	case Kind3DTK:
		r.clouds, err = l.Load3DTKDirectory(path, nil)
	case KindC3D:
		var cloud geometry.PointCloud
		if cloud, err = l.LoadC3D(path); err == nil {
			r.clouds = append(r.clouds, cloud)
		}
	default:
		m.log.Warn("skipping", zap.String("path", path))
		r.warnings = append(r.warnings, fmt.Errorf("%w: %s", ErrUnknownKind, path))
		return r, nil
	}

	r.warnings = append(r.warnings, l.Warnings()...)
	return r, err
}

// Load loads a single path.
func (m *Manager) Load(ctx context.Context, path string) error {
	return m.LoadAll(ctx, []string{path})
}

// LoadAll loads paths in parallel, bounded by the configured worker count.
// Results are merged in input order regardless of completion order.
//
// A path that fails to load is recorded as a warning and skipped. In
// pedantic mode the first failure cancels the remaining paths and is
// returned; whatever loaded before it is still merged.
func (m *Manager) LoadAll(ctx context.Context, paths []string) error {
	results := make([]loadResult, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(m.cfg.Workers, 1))

	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			r, err := m.loadOne(path)
			if err != nil {
				err = fmt.Errorf("loading %s: %w", path, err)
				if m.cfg.Pedantic {
					results[i] = r
					return err
				}
				m.log.Warn("cannot load", zap.String("path", path), zap.Error(err))
				r.warnings = append(r.warnings, err)
			}
			results[i] = r
			return nil
		})
	}
	err := g.Wait()

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range results {
		m.merge(r)
	}
	return err
}

// merge appends one result. The first material registered under a name
// wins; meshes of later files keep their own material through owners.
func (m *Manager) merge(r loadResult) {
	m.meshes = append(m.meshes, r.meshes...)
	m.clouds = append(m.clouds, r.clouds...)
	m.warnings = append(m.warnings, r.warnings...)

	if len(r.materials) == 0 {
		return
	}
	m.owners = append(m.owners, r.materials)
	for name, mat := range r.materials {
		if _, exists := m.materials[name]; exists {
			m.log.Debug("material name already taken", zap.String("material", name))
			continue
		}
		m.materials[name] = mat
	}
}

// Meshes returns a copy of the loaded mesh list. Vertex and index buffers
// are shared. Mesh material handles stay valid only while the Manager is
// reachable, since it owns every material.
func (m *Manager) Meshes() []geometry.Mesh {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.meshes)
}

// PointClouds returns a copy of the loaded point cloud list. Point buffers
// are shared.
func (m *Manager) PointClouds() []geometry.PointCloud {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.clouds)
}

// Materials returns a copy of the shared material table.
func (m *Manager) Materials() geometry.MaterialTable {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return maps.Clone(m.materials)
}

// Warnings returns every non-fatal problem recorded so far, in input order.
func (m *Manager) Warnings() []error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.warnings)
}

// Stats summarizes the loaded scene.
type Stats struct {
	Meshes    int
	Vertices  int
	Triangles int
	Clouds    int
	Points    int
	Materials int
	Warnings  int
}

// Stats returns counts over everything loaded.
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := Stats{
		Meshes:    len(m.meshes),
		Clouds:    len(m.clouds),
		Materials: len(m.materials),
		Warnings:  len(m.warnings),
	}
	for i := range m.meshes {
		s.Vertices += len(m.meshes[i].Vertices)
		s.Triangles += m.meshes[i].Triangles()
	}
	for i := range m.clouds {
		s.Points += len(m.clouds[i].Points)
	}
	return s
}

// Bounds returns the box enclosing every mesh and point cloud.
func (m *Manager) Bounds() geometry.AABB {
	m.mu.RLock()
	defer m.mu.RUnlock()

	box := geometry.EmptyAABB()
	for i := range m.clouds {
		box = box.Join(m.clouds[i].Bounds())
	}
	for i := range m.meshes {
		box = box.Join(m.meshes[i].Bounds())
	}
	return box
}

// FitScale returns the uniform scale that fits the scene into outer. Axes
// where the scene is flat contribute a factor of 1.
func (m *Manager) FitScale(outer mgl32.Vec3) float32 {
	return FitScale(m.Bounds(), outer)
}

// FitScale returns the uniform scale that fits box into outer.
func FitScale(box geometry.AABB, outer mgl32.Vec3) float32 {
	size := box.Size()
	scale := math32.Inf(1)
	for i := range size {
		factor := float32(1)
		if math32.Abs(size[i]) >= sizeEpsilon {
			factor = outer[i] / size[i]
		}
		scale = math32.Min(scale, factor)
	}
	return scale
}

// ModelMatrix returns the uniform scale matrix for FitScale(outer).
func (m *Manager) ModelMatrix(outer mgl32.Vec3) mgl32.Mat4 {
	s := m.FitScale(outer)
	return mgl32.Scale3D(s, s, s)
}
