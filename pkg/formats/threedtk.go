package formats

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/Faultbox/pointview/pkg/geometry"
)

// 3dtk scan file extensions.
const (
	ScanExt = ".3d"
	PoseExt = ".pose"
)

// NumberNotation is the textual float encoding used by a scan file.
type NumberNotation uint8

const (
	NotationGeneral NumberNotation = iota // decimal or scientific
	NotationHex                           // C99 hex float, "0x" prefixed
)

// String returns a human-readable notation name.
func (n NumberNotation) String() string {
	switch n {
	case NotationGeneral:
		return "general"
	case NotationHex:
		return "hex"
	default:
		return fmt.Sprintf("Unknown(%d)", n)
	}
}

// ScanFormat describes the per-line layout of a .3d file.
type ScanFormat struct {
	Floats   int // numbers per line
	Notation NumberNotation
}

// String returns e.g. "4 x hex".
func (f ScanFormat) String() string {
	return fmt.Sprintf("%d x %s", f.Floats, f.Notation)
}

// Supported reports whether the loader can read this format: 3 floats
// (position) or 4 floats (position + reflectance) in either notation.
func (f ScanFormat) Supported() bool {
	return f.Floats == 3 || f.Floats == 4
}

// Pose is the rigid transform of one scan.
type Pose struct {
	Position mgl32.Vec3 // translation
	Rotation mgl32.Vec3 // Euler angles in degrees
}

// Matrix returns the transform: translate by Position, then rotate about X, Y
// and Z in that order.
func (p Pose) Matrix() mgl32.Mat4 {
	return mgl32.Translate3D(p.Position[0], p.Position[1], p.Position[2]).
		Mul4(mgl32.HomogRotate3DX(mgl32.DegToRad(p.Rotation[0]))).
		Mul4(mgl32.HomogRotate3DY(mgl32.DegToRad(p.Rotation[1]))).
		Mul4(mgl32.HomogRotate3DZ(mgl32.DegToRad(p.Rotation[2])))
}

// ReadPose reads the six numbers of a .pose file: x y z offset followed by
// x y z rotation in degrees.
func ReadPose(path string) (Pose, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Pose{}, fmt.Errorf("reading pose: %w", err)
	}

	fields := strings.Fields(string(data))
	if len(fields) < 6 {
		return Pose{}, fmt.Errorf("%w: pose %s has %d numbers, expected 6", ErrInvalidArgument, path, len(fields))
	}

	var values [6]float32
	for i := range values {
		v, err := strconv.ParseFloat(fields[i], 32)
		if err != nil {
			return Pose{}, fmt.Errorf("%w: pose %s: %w", ErrInvalidArgument, path, err)
		}
		values[i] = float32(v)
	}

	return Pose{
		Position: mgl32.Vec3{values[0], values[1], values[2]},
		Rotation: mgl32.Vec3{values[3], values[4], values[5]},
	}, nil
}

// Analyze3DTK sniffs the format of a .3d file from its first line. Every
// number on the line must use the same notation. An empty file yields a
// format with zero floats.
func Analyze3DTK(path string) (ScanFormat, error) {
	f, err := os.Open(path)
	if err != nil {
		return ScanFormat{}, fmt.Errorf("%w: %w", ErrCannotOpenFile, err)
	}
	defer f.Close()

	reader := bufio.NewReader(f)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		// EOF before any byte: empty file
		return ScanFormat{}, nil
	}
	return analyzeLine(line)
}

// analyzeLine walks line character by character, counting number tokens and
// checking that they share one notation.
func analyzeLine(line string) (ScanFormat, error) {
	var format ScanFormat

	i := 0
	for i < len(line) {
		for i < len(line) && isSpace(line[i]) {
			i++
		}
		if i == len(line) {
			break
		}
		start := i
		for i < len(line) && !isSpace(line[i]) {
			i++
		}
		token := line[start:i]

		notation := NotationGeneral
		if isHexToken(token) {
			notation = NotationHex
		}
		if format.Floats == 0 {
			format.Notation = notation
		} else if notation != format.Notation {
			return ScanFormat{}, fmt.Errorf("%w: mixed number notation in %q", ErrInvalidArgument, strings.TrimSpace(line))
		}
		if _, err := parseScanFloat(token, notation); err != nil {
			return ScanFormat{}, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
		}
		format.Floats++
	}
	return format, nil
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n' || c == '\v' || c == '\f'
}

func isHexToken(token string) bool {
	token = strings.TrimLeft(token, "+-")
	return len(token) > 1 && token[0] == '0' && (token[1] == 'x' || token[1] == 'X')
}

// parseScanFloat parses one number. Hex floats without a binary exponent,
// which strconv rejects, get an implicit "p0".
func parseScanFloat(token string, notation NumberNotation) (float32, error) {
	if notation == NotationHex && !strings.ContainsAny(token, "pP") {
		token += "p0"
	}
	v, err := strconv.ParseFloat(token, 32)
	if err != nil {
		return 0, err
	}
	return float32(v), nil
}

// scanPoint converts the numbers of one line into a transformed point.
type scanPoint func(values []float32, m *mgl32.Mat4) geometry.Vertex

// basicScanPoint transforms a position-only point.
func basicScanPoint(values []float32, m *mgl32.Mat4) geometry.Vertex {
	p := m.Mul4x1(mgl32.Vec4{values[0], values[1], values[2], 1}).Vec3()
	return geometry.Vertex{Position: p}
}

// reflectanceScanPoint transforms a point with reflectance. The scanner's X
// axis points the other way, so the transformed X is negated; basic points
// are left as they are.
func reflectanceScanPoint(values []float32, m *mgl32.Mat4) geometry.Vertex {
	p := m.Mul4x1(mgl32.Vec4{values[0], values[1], values[2], 1}).Vec3()
	p[0] = -p[0]
	return geometry.Vertex{
		Position:    p,
		Reflectance: (values[3] + 20) / 40,
	}
}

// Load3DTKFile reads base+".3d" in the given format and applies the pose from
// base+".pose".
func (l *Loader) Load3DTKFile(base string, format ScanFormat) (geometry.PointCloud, error) {
	var (
		layout geometry.Layout
		build  scanPoint
	)
	switch format.Floats {
	case 3:
		layout, build = geometry.BasicPointLayout, basicScanPoint
	case 4:
		layout, build = geometry.ReflectancePointLayout, reflectanceScanPoint
	default:
		return geometry.PointCloud{}, fmt.Errorf("%w: unsupported scan format %s", ErrInvalidArgument, format)
	}

	pose, err := ReadPose(base + PoseExt)
	if err != nil {
		return geometry.PointCloud{}, err
	}
	m := pose.Matrix()

	scanPath := base + ScanExt
	f, err := os.Open(scanPath)
	if err != nil {
		return geometry.PointCloud{}, fmt.Errorf("%w: %w", ErrCannotOpenFile, err)
	}
	defer f.Close()

	var (
		points  []geometry.Vertex
		values  = make([]float32, format.Floats)
		skipped int
	)

	scanner := newLineScanner(f)
	for scanner.Scan() {
		if scanner.TooLong() {
			skipped++
			continue
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if !parseScanLine(values, fields, format.Notation) {
			skipped++
			continue
		}
		points = append(points, build(values, &m))
	}
	if err := scanner.Err(); err != nil {
		return geometry.PointCloud{}, fmt.Errorf("%w: reading %s: %w", ErrCannotOpenFile, scanPath, err)
	}

	if skipped > 0 {
		l.logger().Warn("skipped malformed scan lines",
			zap.String("path", scanPath),
			zap.Int("lines", skipped))
	}

	return geometry.NewPointCloud(layout, points), nil
}

func parseScanLine(dst []float32, fields []string, notation NumberNotation) bool {
	if len(fields) != len(dst) {
		return false
	}
	for i, field := range fields {
		v, err := parseScanFloat(field, notation)
		if err != nil {
			return false
		}
		dst[i] = v
	}
	return true
}

// Load3DTKDirectory loads every <name>.3d / <name>.pose pair in dir, one point
// cloud per file, and appends them to clouds. Files without a pose, with an
// unrecognized format or without points are skipped with a warning; only an
// unreadable directory is an error.
func (l *Loader) Load3DTKDirectory(dir string, clouds []geometry.PointCloud) ([]geometry.PointCloud, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return clouds, fmt.Errorf("reading scan directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ScanExt {
			continue
		}
		scanPath := filepath.Join(dir, entry.Name())
		base := strings.TrimSuffix(scanPath, ScanExt)

		if _, err := os.Stat(base + PoseExt); err != nil {
			l.warn("skipping scan without pose", err, zap.String("path", scanPath))
			continue
		}

		format, err := Analyze3DTK(scanPath)
		if err != nil {
			l.warn("skipping scan", err, zap.String("path", scanPath))
			continue
		}
		if !format.Supported() {
			l.warn("skipping scan with unrecognized format",
				fmt.Errorf("%w: %s: %s", ErrInvalidArgument, scanPath, format),
				zap.String("path", scanPath))
			continue
		}

		cloud, err := l.Load3DTKFile(base, format)
		if err != nil {
			l.warn("skipping scan", err, zap.String("path", scanPath))
			continue
		}
		if len(cloud.Points) == 0 {
			l.warn("skipping empty scan",
				fmt.Errorf("%w: %s has no points", ErrInvalidArgument, scanPath),
				zap.String("path", scanPath))
			continue
		}

		l.logger().Debug("loaded scan",
			zap.String("path", scanPath),
			zap.Stringer("format", format),
			zap.Int("points", len(cloud.Points)))
		clouds = append(clouds, cloud)
	}

	return clouds, nil
}
