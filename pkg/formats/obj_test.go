package formats

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/pointview/pkg/geometry"
)

// writeTestFile writes content to dir/name and returns the path.
func writeTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func parseTestOBJ(t *testing.T, l *Loader, src string) ([]geometry.Mesh, geometry.MaterialTable, error) {
	t.Helper()
	materials := make(geometry.MaterialTable)
	meshes, err := l.ParseOBJ(strings.NewReader(src), "test.obj", nil, materials)
	return meshes, materials, err
}

const quadOBJ = `# unit quad
v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
f 1 2 3
f 1 3 4
`

func TestParseOBJ_DedupSharedCorners(t *testing.T) {
	meshes, _, err := parseTestOBJ(t, NewLoader(nil), quadOBJ)
	require.NoError(t, err)
	require.Len(t, meshes, 1)

	mesh := meshes[0]
	assert.Len(t, mesh.Vertices, 4)
	assert.Equal(t, []uint32{0, 1, 2, 0, 2, 3}, mesh.Indices)
	assert.Equal(t, 2, mesh.Triangles())
	assert.NoError(t, mesh.Validate())
	assert.Equal(t, mgl32.Vec3{1, 1, 0}, mesh.Vertices[2].Position)
}

func TestParseOBJ_DedupDistinguishesAttributes(t *testing.T) {
	src := `v 0 0 0
v 1 0 0
v 0 1 0
vt 0 0
vt 1 1
vn 0 0 1
f 1/1/1 2/1/1 3/1/1
f 1/2/1 2/1/1 3/1/1
`
	meshes, _, err := parseTestOBJ(t, NewLoader(nil), src)
	require.NoError(t, err)
	require.Len(t, meshes, 1)

	// 1/2/1 differs from 1/1/1 by texcoord only
	assert.Len(t, meshes[0].Vertices, 4)
	assert.Equal(t, []uint32{0, 1, 2, 3, 1, 2}, meshes[0].Indices)
	assert.Equal(t, mgl32.Vec2{1, 1}, meshes[0].Vertices[3].TexCoord)
	assert.Equal(t, mgl32.Vec3{0, 0, 1}, meshes[0].Vertices[0].Normal)
}

func TestParseOBJ_PositionOnlyLayout(t *testing.T) {
	src := `v 0 0 0
v 1 0 0
v 0 1 0
vt 0 0
vt 1 1
f 1/1 2/1 3/1
f 1/2 2/2 3/2
`
	l := NewLoader(nil)
	l.Layout = geometry.Layout{geometry.Position}

	meshes, _, err := parseTestOBJ(t, l, src)
	require.NoError(t, err)
	require.Len(t, meshes, 1)
	assert.Len(t, meshes[0].Vertices, 3)
	assert.Equal(t, []uint32{0, 1, 2, 0, 1, 2}, meshes[0].Indices)
	assert.Equal(t, geometry.Layout{geometry.Position}, meshes[0].Layout)
}

func TestParseOBJ_FanTriangulation(t *testing.T) {
	src := `v 0 0 0
v 1 0 0
v 2 1 0
v 1 2 0
v 0 1 0
f 1 2 3 4 5
`
	meshes, _, err := parseTestOBJ(t, NewLoader(nil), src)
	require.NoError(t, err)
	require.Len(t, meshes, 1)

	mesh := meshes[0]
	assert.Equal(t, 3, mesh.Triangles())
	assert.Equal(t, []uint32{0, 1, 2, 0, 2, 3, 0, 3, 4}, mesh.Indices)
	for tri := 0; tri < mesh.Triangles(); tri++ {
		assert.Equal(t, uint32(0), mesh.Indices[tri*3])
	}
}

func TestParseOBJ_NegativeIndices(t *testing.T) {
	src := `v 0 0 0
v 1 0 0
v 0 1 0
f -3 -2 -1
`
	meshes, _, err := parseTestOBJ(t, NewLoader(nil), src)
	require.NoError(t, err)
	require.Len(t, meshes, 1)
	assert.Equal(t, mgl32.Vec3{0, 0, 0}, meshes[0].Vertices[0].Position)
	assert.Equal(t, mgl32.Vec3{0, 1, 0}, meshes[0].Vertices[2].Position)
}

func TestParseOBJ_MalformedNormalLenient(t *testing.T) {
	src := `vn a b c
v 0 0 0
v 1 0 0
v 0 1 0
f 1 2 3
`
	l := NewLoader(nil)
	meshes, _, err := parseTestOBJ(t, l, src)
	require.NoError(t, err)
	require.Len(t, meshes, 1)
	assert.Len(t, meshes[0].Vertices, 3)
	for _, v := range meshes[0].Vertices {
		assert.Equal(t, mgl32.Vec3{}, v.Normal)
	}

	warnings := l.Warnings()
	require.Len(t, warnings, 1)
	assert.ErrorIs(t, warnings[0], ErrMalformedNormal)
}

func TestParseOBJ_MalformedNormalPedantic(t *testing.T) {
	src := `vn a b c
v 0 0 0
v 1 0 0
v 0 1 0
f 1 2 3
`
	l := NewLoader(nil)
	l.Pedantic = true

	meshes, _, err := parseTestOBJ(t, l, src)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedNormal)
	assert.Empty(t, meshes)

	var lineErr *LineError
	require.True(t, errors.As(err, &lineErr))
	assert.Equal(t, 1, lineErr.Line)
	assert.Equal(t, "vn", lineErr.Statement)
	assert.Equal(t, "test.obj:1: vn: "+lineErr.Err.Error(), err.Error())
}

func TestParseOBJ_PedanticKeepsFinishedMeshes(t *testing.T) {
	src := `v 0 0 0
v 1 0 0
v 0 1 0
o first
f 1 2 3
o second
v x y z
`
	l := NewLoader(nil)
	l.Pedantic = true

	meshes, _, err := parseTestOBJ(t, l, src)
	assert.ErrorIs(t, err, ErrMalformedVertex)
	assert.Len(t, meshes, 1)
}

func TestParseOBJ_LongLineLenient(t *testing.T) {
	src := "v 0 0 0\nv 1 0 0\nv 0 1 0\nf 1 2 3\n#" + strings.Repeat("x", 2<<20) + "\nf 3 2 1\n"

	l := NewLoader(nil)
	meshes, _, err := parseTestOBJ(t, l, src)
	require.NoError(t, err)
	require.Len(t, meshes, 1)
	assert.Equal(t, 2, meshes[0].Triangles())

	require.Len(t, l.Warnings(), 1)
	assert.ErrorIs(t, l.Warnings()[0], ErrLineTooLong)

	var lineErr *LineError
	require.True(t, errors.As(l.Warnings()[0], &lineErr))
	assert.Equal(t, 5, lineErr.Line)
}

func TestParseOBJ_LongLinePedantic(t *testing.T) {
	src := "v 0 0 0\nv 1 0 0\nv 0 1 0\no first\nf 1 2 3\no second\n" + strings.Repeat("1", maxLineSize+1) + "\n"

	l := NewLoader(nil)
	l.Pedantic = true

	meshes, _, err := parseTestOBJ(t, l, src)
	assert.ErrorIs(t, err, ErrLineTooLong)
	assert.Len(t, meshes, 1)
}

func TestParseOBJ_FaceOutOfRangeDiscarded(t *testing.T) {
	src := `v 0 0 0
v 1 0 0
v 0 1 0
f 1 2 9
f 1 2 3
`
	l := NewLoader(nil)
	meshes, _, err := parseTestOBJ(t, l, src)
	require.NoError(t, err)
	require.Len(t, meshes, 1)

	// no vertices leaked from the rejected face
	assert.Len(t, meshes[0].Vertices, 3)
	assert.Equal(t, []uint32{0, 1, 2}, meshes[0].Indices)

	warnings := l.Warnings()
	require.Len(t, warnings, 1)
	assert.ErrorIs(t, warnings[0], ErrFaceIndexOutOfRange)
}

func TestParseOBJ_MalformedFaces(t *testing.T) {
	tests := []struct {
		name string
		face string
		want error
	}{
		{"two corners", "f 1 2", ErrMalformedFace},
		{"not a number", "f 1 a 3", ErrMalformedFace},
		{"too many slashes", "f 1/1/1/1 2 3", ErrMalformedFace},
		{"missing position", "f /1 2 3", ErrMalformedFace},
		{"texcoord out of range", "f 1/5 2 3", ErrFaceIndexOutOfRange},
		{"negative past start", "f -4 2 3", ErrFaceIndexOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLoader(nil)
			l.Pedantic = true
			src := "v 0 0 0\nv 1 0 0\nv 0 1 0\n" + tt.face + "\n"

			_, _, err := parseTestOBJ(t, l, src)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestParseOBJ_ObjectsSplitMeshes(t *testing.T) {
	src := `o first
v 0 0 0
v 1 0 0
v 0 1 0
f 1 2 3
o second
v 5 5 5
v 6 5 5
v 5 6 5
f 4 5 6
f 1 2 3
`
	meshes, _, err := parseTestOBJ(t, NewLoader(nil), src)
	require.NoError(t, err)
	require.Len(t, meshes, 2)

	assert.Len(t, meshes[0].Vertices, 3)
	assert.Equal(t, []uint32{0, 1, 2}, meshes[0].Indices)

	// indices are file-global, the dedup index is per mesh
	assert.Len(t, meshes[1].Vertices, 6)
	assert.Equal(t, []uint32{0, 1, 2, 3, 4, 5}, meshes[1].Indices)
	assert.Equal(t, mgl32.Vec3{5, 5, 5}, meshes[1].Vertices[0].Position)
}

func TestParseOBJ_AppendsToExisting(t *testing.T) {
	existing := []geometry.Mesh{{}}
	meshes, err := NewLoader(nil).ParseOBJ(strings.NewReader(quadOBJ), "quad.obj", existing, nil)
	require.NoError(t, err)
	assert.Len(t, meshes, 2)
}

func TestParseOBJ_NoFaces(t *testing.T) {
	meshes, _, err := parseTestOBJ(t, NewLoader(nil), "v 0 0 0\no empty\n")
	require.NoError(t, err)
	assert.Empty(t, meshes)
}

func TestParseOBJ_InvalidLayout(t *testing.T) {
	l := NewLoader(nil)
	l.Layout = geometry.Layout{geometry.Normal}

	_, _, err := parseTestOBJ(t, l, quadOBJ)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestLoadOBJ_WithMaterialLibrary(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "scene.mtl", `newmtl red
Kd 1 0 0
d 0.5
`)
	path := writeTestFile(t, dir, "scene.obj", `mtllib scene.mtl
usemtl red
o tri
v 0 0 0
v 1 0 0
v 0 1 0
f 1 2 3
`)

	materials := make(geometry.MaterialTable)
	meshes, err := NewLoader(nil).LoadOBJ(path, nil, materials)
	require.NoError(t, err)
	require.Len(t, meshes, 1)

	red := materials.Lookup("red")
	require.NotNil(t, red)
	require.NotNil(t, red.Color)
	assert.Equal(t, mgl32.Vec4{1, 0, 0, 0.5}, *red.Color)

	// usemtl before an "o" that emits nothing still applies
	assert.Equal(t, "red", meshes[0].MaterialName)
	assert.Same(t, red, meshes[0].Material())
}

func TestLoadOBJ_UnknownMaterial(t *testing.T) {
	src := "usemtl missing\n" + quadOBJ
	meshes, _, err := parseTestOBJ(t, NewLoader(nil), src)
	require.NoError(t, err)
	require.Len(t, meshes, 1)
	assert.Equal(t, "missing", meshes[0].MaterialName)
	assert.Nil(t, meshes[0].Material())
}

func TestLoadOBJ_MissingMaterialLibrary(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, "scene.obj", "mtllib nowhere.mtl\n"+quadOBJ)

	l := NewLoader(nil)
	meshes, err := l.LoadOBJ(path, nil, nil)
	require.NoError(t, err)
	assert.Len(t, meshes, 1)

	warnings := l.Warnings()
	require.Len(t, warnings, 1)
	assert.ErrorIs(t, warnings[0], ErrCannotOpenFile)
}

func TestLoadOBJ_CannotOpen(t *testing.T) {
	_, err := NewLoader(nil).LoadOBJ(filepath.Join(t.TempDir(), "missing.obj"), nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCannotOpenFile)
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestResolveIndex(t *testing.T) {
	tests := []struct {
		raw  int64
		n    int
		want uint32
		ok   bool
	}{
		{0, 4, 0, true},
		{1, 4, 1, true},
		{3, 4, 3, true},
		{4, 4, 0, false},
		{-1, 4, 3, true},
		{-3, 4, 1, true},
		{-4, 4, 0, false},
	}
	for _, tt := range tests {
		got, ok := resolveIndex(tt.raw, tt.n)
		assert.Equal(t, tt.ok, ok, "raw=%d", tt.raw)
		assert.Equal(t, tt.want, got, "raw=%d", tt.raw)
	}
}
