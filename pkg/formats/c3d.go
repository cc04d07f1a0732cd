package formats

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"go.uber.org/zap"

	"github.com/Faultbox/pointview/pkg/geometry"
)

// c3d file layout:
//
//	[0:2] magic "3d"
//	[2]   version (1)
//	[3]   floats per record
//	[4:8] point count, big-endian uint32
//	[8:]  records of native-endian float32: x y z [reflectance ...]
const (
	C3DExt = ".c3d"

	c3dMagic      = "3d"
	c3dVersion    = 1
	c3dHeaderSize = 8

	// c3dWriteComponents is the record width written by EncodeC3D.
	c3dWriteComponents = 4

	// minimum floats per record: the position
	c3dMinComponents = 3
)

var (
	ErrInvalidC3DMagic      = fmt.Errorf("%w: invalid c3d magic", ErrInvalidArgument)
	ErrUnsupportedC3D       = fmt.Errorf("%w: unsupported c3d version", ErrInvalidArgument)
	ErrInvalidC3DComponents = fmt.Errorf("%w: c3d records need at least 3 floats", ErrInvalidArgument)
	ErrInvalidC3DSize       = fmt.Errorf("%w: c3d size does not match header", ErrInvalidArgument)

	errMmapUnsupported = errors.New("mmap not supported on this platform")
)

// c3dHeader is the decoded fixed header.
type c3dHeader struct {
	Components int
	Count      uint32
}

// recordSize returns the byte size of one record.
func (h c3dHeader) recordSize() int {
	return h.Components * 4
}

// dataSize returns the expected byte size of the record area.
func (h c3dHeader) dataSize() uint64 {
	return uint64(h.Count) * uint64(h.recordSize())
}

// layout returns the point layout for the records.
func (h c3dHeader) layout() geometry.Layout {
	if h.Components > c3dMinComponents {
		return geometry.ReflectancePointLayout
	}
	return geometry.BasicPointLayout
}

func parseC3DHeader(data []byte) (c3dHeader, error) {
	if len(data) < c3dHeaderSize {
		return c3dHeader{}, fmt.Errorf("%w: %d bytes, need %d", ErrInvalidC3DSize, len(data), c3dHeaderSize)
	}
	if string(data[0:2]) != c3dMagic {
		return c3dHeader{}, fmt.Errorf("%w: %q", ErrInvalidC3DMagic, data[0:2])
	}
	if data[2] != c3dVersion {
		return c3dHeader{}, fmt.Errorf("%w: %d", ErrUnsupportedC3D, data[2])
	}

	h := c3dHeader{
		Components: int(data[3]),
		Count:      binary.BigEndian.Uint32(data[4:8]),
	}
	if h.Components < c3dMinComponents {
		return c3dHeader{}, fmt.Errorf("%w: got %d", ErrInvalidC3DComponents, h.Components)
	}
	return h, nil
}

// checkC3DSize verifies that total, the full file size, holds exactly the
// records announced by the header.
func checkC3DSize(h c3dHeader, total uint64) error {
	if want := c3dHeaderSize + h.dataSize(); total != want {
		return fmt.Errorf("%w: %d bytes, expected %d", ErrInvalidC3DSize, total, want)
	}
	return nil
}

// decodeC3DRecords decodes whole records from data into dst. data must hold
// len(dst) records.
func decodeC3DRecords(dst []geometry.Vertex, data []byte, components int) {
	stride := components * 4
	for i := range dst {
		rec := data[i*stride : (i+1)*stride]
		v := &dst[i]
		v.Position[0] = math.Float32frombits(binary.NativeEndian.Uint32(rec[0:4]))
		v.Position[1] = math.Float32frombits(binary.NativeEndian.Uint32(rec[4:8]))
		v.Position[2] = math.Float32frombits(binary.NativeEndian.Uint32(rec[8:12]))
		if components > c3dMinComponents {
			v.Reflectance = math.Float32frombits(binary.NativeEndian.Uint32(rec[12:16]))
		}
	}
}

// DecodeC3D decodes a complete c3d file held in memory.
func DecodeC3D(data []byte) (geometry.PointCloud, error) {
	h, err := parseC3DHeader(data)
	if err != nil {
		return geometry.PointCloud{}, err
	}
	if err := checkC3DSize(h, uint64(len(data))); err != nil {
		return geometry.PointCloud{}, err
	}

	points := make([]geometry.Vertex, h.Count)
	decodeC3DRecords(points, data[c3dHeaderSize:], h.Components)
	return geometry.NewPointCloud(h.layout(), points), nil
}

// ReadC3DFile reads a c3d file. With useMmap the file is memory-mapped where
// the platform supports it; otherwise it is read through a buffer. Both paths
// return identical results.
func ReadC3DFile(path string, useMmap bool) (geometry.PointCloud, error) {
	if useMmap {
		cloud, err := readC3DMapped(path)
		if !errors.Is(err, errMmapUnsupported) {
			return cloud, err
		}
	}
	return readC3DBuffered(path)
}

// readC3DBuffered streams the records through a bufio.Reader.
func readC3DBuffered(path string) (geometry.PointCloud, error) {
	f, err := os.Open(path)
	if err != nil {
		return geometry.PointCloud{}, fmt.Errorf("%w: %w", ErrCannotOpenFile, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return geometry.PointCloud{}, fmt.Errorf("stat %s: %w", path, err)
	}

	r := bufio.NewReader(f)
	header := make([]byte, c3dHeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return geometry.PointCloud{}, fmt.Errorf("%w: %d bytes, need %d", ErrInvalidC3DSize, info.Size(), c3dHeaderSize)
		}
		return geometry.PointCloud{}, fmt.Errorf("reading %s: %w", path, err)
	}

	h, err := parseC3DHeader(header)
	if err != nil {
		return geometry.PointCloud{}, err
	}
	if err := checkC3DSize(h, uint64(info.Size())); err != nil {
		return geometry.PointCloud{}, err
	}

	points := make([]geometry.Vertex, h.Count)

	// decode in chunks of whole records
	const chunkRecords = 4096
	buf := make([]byte, chunkRecords*h.recordSize())
	for start := 0; start < len(points); start += chunkRecords {
		end := min(start+chunkRecords, len(points))
		chunk := buf[:(end-start)*h.recordSize()]
		if _, err := io.ReadFull(r, chunk); err != nil {
			return geometry.PointCloud{}, fmt.Errorf("reading %s: %w", path, err)
		}
		decodeC3DRecords(points[start:end], chunk, h.Components)
	}

	return geometry.NewPointCloud(h.layout(), points), nil
}

// EncodeC3D writes points as a c3d stream with four floats per record:
// position followed by reflectance.
func EncodeC3D(w io.Writer, points []geometry.Vertex) error {
	if uint64(len(points)) > math.MaxUint32 {
		return fmt.Errorf("%w: %d points", ErrValueTooLarge, len(points))
	}

	bw := bufio.NewWriter(w)

	var header [c3dHeaderSize]byte
	copy(header[0:2], c3dMagic)
	header[2] = c3dVersion
	header[3] = c3dWriteComponents
	binary.BigEndian.PutUint32(header[4:8], uint32(len(points)))
	if _, err := bw.Write(header[:]); err != nil {
		return err
	}

	var rec [c3dWriteComponents * 4]byte
	for i := range points {
		p := &points[i]
		binary.NativeEndian.PutUint32(rec[0:4], math.Float32bits(p.Position[0]))
		binary.NativeEndian.PutUint32(rec[4:8], math.Float32bits(p.Position[1]))
		binary.NativeEndian.PutUint32(rec[8:12], math.Float32bits(p.Position[2]))
		binary.NativeEndian.PutUint32(rec[12:16], math.Float32bits(p.Reflectance))
		if _, err := bw.Write(rec[:]); err != nil {
			return err
		}
	}

	return bw.Flush()
}

// WriteC3DFile writes points to a new c3d file at path.
func WriteC3DFile(path string, points []geometry.Vertex) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCannotOpenFile, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	return EncodeC3D(f, points)
}

// LoadC3D reads a c3d file, memory-mapped unless DisableMmap is set.
func (l *Loader) LoadC3D(path string) (geometry.PointCloud, error) {
	cloud, err := ReadC3DFile(path, !l.DisableMmap)
	if err != nil {
		return cloud, err
	}

	l.logger().Debug("loaded c3d",
		zap.String("path", path),
		zap.Int("points", len(cloud.Points)),
		zap.Stringer("layout", cloud.Layout))
	return cloud, nil
}
