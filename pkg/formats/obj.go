package formats

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/Faultbox/pointview/pkg/geometry"
)

// cornerSources is the number of slash separated indices in a face corner:
// position/texcoord/normal.
const cornerSources = 3

// objParser holds the state of one OBJ file. The position, texcoord and
// normal lists live for the whole file; everything else is per mesh.
type objParser struct {
	loader    *Loader
	path      string
	dir       string
	layout    geometry.Layout
	materials geometry.MaterialTable

	// Global lists, each seeded with the fallback entry at index 0.
	positions []mgl32.Vec3
	texCoords []mgl32.Vec2
	normals   []mgl32.Vec3

	// Current mesh.
	vertices []geometry.Vertex
	indices  []uint32
	index    *vertexIndex
	material string

	meshes []geometry.Mesh

	// Scratch buffers reused across faces.
	corners []vertexKey
	slots   []uint32
}

// LoadOBJ parses the OBJ file at path, appends one mesh per object to meshes
// and adds referenced MTL materials to materials.
//
// Only a missing or unreadable file is an error in lenient mode. In pedantic
// mode the first statement error is returned; meshes finished before it are
// still appended.
func (l *Loader) LoadOBJ(path string, meshes []geometry.Mesh, materials geometry.MaterialTable) ([]geometry.Mesh, error) {
	f, err := os.Open(path)
	if err != nil {
		return meshes, fmt.Errorf("%w: %w", ErrCannotOpenFile, err)
	}
	defer f.Close()

	return l.ParseOBJ(f, path, meshes, materials)
}

// ParseOBJ parses OBJ statements from r. path names the source for
// diagnostics and is the base for relative mtllib references.
func (l *Loader) ParseOBJ(r io.Reader, path string, meshes []geometry.Mesh, materials geometry.MaterialTable) ([]geometry.Mesh, error) {
	layout := l.layout()
	if err := layout.Validate(); err != nil {
		return meshes, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	if materials == nil {
		materials = make(geometry.MaterialTable)
	}

	p := &objParser{
		loader:    l,
		path:      path,
		dir:       filepath.Dir(path),
		layout:    slices.Clone(layout),
		materials: materials,
		positions: []mgl32.Vec3{{}},
		texCoords: []mgl32.Vec2{{}},
		normals:   []mgl32.Vec3{{}},
		index:     newVertexIndex(len(layout)),
		meshes:    meshes,
	}

	scanner := newLineScanner(r)
	for scanner.Scan() {
		if scanner.TooLong() {
			if err := l.longLine(path, scanner.Line()); err != nil {
				return p.meshes, err
			}
			continue
		}

		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}

		if err := p.parseStatement(fields); err != nil {
			lineErr := &LineError{Path: path, Line: scanner.Line(), Statement: fields[0], Err: err}
			if err := l.statementError(lineErr); err != nil {
				return p.meshes, err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		p.finishMesh()
		return p.meshes, fmt.Errorf("%w: reading %s: %w", ErrCannotOpenFile, path, err)
	}

	p.finishMesh()

	l.logger().Debug("loaded obj",
		zap.String("path", path),
		zap.Int("meshes", len(p.meshes)-len(meshes)),
		zap.Int("positions", len(p.positions)-1))

	return p.meshes, nil
}

func (p *objParser) parseStatement(fields []string) error {
	args := fields[1:]
	switch fields[0] {
	case "v":
		var v mgl32.Vec3
		if err := parseFloats(v[:], args); err != nil {
			return fmt.Errorf("%w: %w", ErrMalformedVertex, err)
		}
		p.positions = append(p.positions, v)
	case "vt":
		var vt mgl32.Vec2
		if err := parseFloats(vt[:], args); err != nil {
			return fmt.Errorf("%w: %w", ErrMalformedTextureCoordinate, err)
		}
		p.texCoords = append(p.texCoords, vt)
	case "vn":
		var vn mgl32.Vec3
		if err := parseFloats(vn[:], args); err != nil {
			return fmt.Errorf("%w: %w", ErrMalformedNormal, err)
		}
		p.normals = append(p.normals, vn)
	case "f":
		return p.parseFace(args)
	case "o":
		p.finishMesh()
	case "usemtl":
		p.material = strings.Join(args, " ")
	case "mtllib":
		return p.loadMaterialLibrary(strings.Join(args, " "))
	}
	return nil
}

// loadMaterialLibrary parses the referenced MTL file into the shared table.
func (p *objParser) loadMaterialLibrary(ref string) error {
	if ref == "" {
		return fmt.Errorf("%w: mtllib without path", ErrCannotOpenFile)
	}
	return p.loader.LoadMTL(resolvePath(p.dir, ref), p.materials)
}

// parseFace parses every corner before touching the vertex buffer, so a bad
// corner discards the whole face and leaves no unreferenced vertices.
func (p *objParser) parseFace(args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("%w: %d corners", ErrMalformedFace, len(args))
	}

	p.corners = p.corners[:0]
	for _, token := range args {
		key, err := p.parseCorner(token)
		if err != nil {
			return err
		}
		p.corners = append(p.corners, key)
	}

	p.slots = p.slots[:0]
	for i := range p.corners {
		key := p.corners[i]
		slot, ok := p.index.lookupOrInsert(key, func() (uint32, bool) {
			return p.appendVertex(&key)
		})
		if !ok {
			return fmt.Errorf("%w: corner %d", ErrFaceIndexOutOfRange, i)
		}
		p.slots = append(p.slots, slot)
	}

	// Fan triangulation around corner 0.
	for k := 2; k < len(p.slots); k++ {
		p.indices = append(p.indices, p.slots[0], p.slots[k-1], p.slots[k])
	}
	return nil
}

// parseCorner turns "v", "v/vt", "v//vn" or "v/vt/vn" into a key ordered by
// the parser's layout. Missing texcoord or normal indices select the fallback
// entry 0.
func (p *objParser) parseCorner(token string) (vertexKey, error) {
	var key vertexKey

	parts := strings.Split(token, "/")
	if len(parts) > cornerSources || parts[0] == "" {
		return key, fmt.Errorf("%w: corner %q", ErrMalformedFace, token)
	}

	var src [cornerSources]uint32
	lengths := [cornerSources]int{len(p.positions), len(p.texCoords), len(p.normals)}
	for i, part := range parts {
		if part == "" {
			continue
		}
		raw, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return key, fmt.Errorf("%w: corner %q", ErrMalformedFace, token)
		}
		idx, ok := resolveIndex(raw, lengths[i])
		if !ok {
			return key, fmt.Errorf("%w: corner %q", ErrFaceIndexOutOfRange, token)
		}
		src[i] = idx
	}

	for i, c := range p.layout {
		switch c {
		case geometry.Position:
			key[i] = src[0]
		case geometry.TexCoord:
			key[i] = src[1]
		case geometry.Normal:
			key[i] = src[2]
		}
	}
	return key, nil
}

// resolveIndex maps a raw OBJ index onto a list of n entries whose entry 0 is
// the fallback. Positive indices are 1-based and map directly, negative ones
// count back from the end, zero selects the fallback.
func resolveIndex(raw int64, n int) (uint32, bool) {
	if raw < 0 {
		raw += int64(n)
		if raw < 1 {
			return 0, false
		}
	}
	if raw >= int64(n) || raw > math.MaxUint32 {
		return 0, false
	}
	return uint32(raw), true
}

// appendVertex resolves the components named by key and appends the vertex.
func (p *objParser) appendVertex(key *vertexKey) (uint32, bool) {
	if uint64(len(p.vertices)) >= math.MaxUint32 {
		return 0, false
	}

	var v geometry.Vertex
	for i, c := range p.layout {
		values, ok := p.source(c, key[i])
		if !ok {
			return 0, false
		}
		v.SetComponent(c, values)
	}

	slot := uint32(len(p.vertices))
	p.vertices = append(p.vertices, v)
	return slot, true
}

// source returns entry idx of the list backing component c. Components OBJ
// has no list for stay zero.
func (p *objParser) source(c geometry.Component, idx uint32) ([]float32, bool) {
	var (
		values []float32
		ok     bool
	)
	switch c {
	case geometry.Position:
		if ok = int(idx) < len(p.positions); ok {
			values = p.positions[idx][:]
		}
	case geometry.TexCoord:
		if ok = int(idx) < len(p.texCoords); ok {
			values = p.texCoords[idx][:]
		}
	case geometry.Normal:
		if ok = int(idx) < len(p.normals); ok {
			values = p.normals[idx][:]
		}
	default:
		ok = true
	}
	return values, ok
}

// finishMesh emits the current mesh, if any, and starts a new one. The global
// lists are kept because OBJ indices are file-global.
func (p *objParser) finishMesh() {
	if len(p.vertices) == 0 {
		return
	}

	mesh := geometry.NewMesh(p.layout, slices.Clone(p.vertices), slices.Clone(p.indices))
	mesh.MaterialName = p.material
	if p.material != "" {
		if mat := p.materials.Lookup(p.material); mat != nil {
			mesh.SetMaterial(mat)
		} else {
			p.loader.logger().Debug("material not found",
				zap.String("path", p.path),
				zap.String("material", p.material))
		}
	}
	p.meshes = append(p.meshes, mesh)

	p.vertices = p.vertices[:0]
	p.indices = p.indices[:0]
	p.index.reset()
	p.material = ""
}

// parseFloats parses len(dst) floats from the leading fields. Extra fields
// (such as the optional w of "v") are ignored.
func parseFloats(dst []float32, fields []string) error {
	if len(fields) < len(dst) {
		return fmt.Errorf("expected %d numbers, got %d", len(dst), len(fields))
	}
	for i := range dst {
		val, err := strconv.ParseFloat(fields[i], 32)
		if err != nil {
			return err
		}
		dst[i] = float32(val)
	}
	return nil
}

// resolvePath resolves ref relative to dir unless it is absolute.
func resolvePath(dir, ref string) string {
	ref = filepath.FromSlash(ref)
	if filepath.IsAbs(ref) {
		return ref
	}
	return filepath.Join(dir, ref)
}
