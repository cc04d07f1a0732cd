//go:build linux || darwin || freebsd || netbsd || openbsd

package formats

import (
	"fmt"
	"math"
	"os"

	"golang.org/x/sys/unix"

	"github.com/Faultbox/pointview/pkg/geometry"
)

// readC3DMapped maps the whole file read-only and decodes it in place. The
// mapping and the descriptor are released before returning.
func readC3DMapped(path string) (geometry.PointCloud, error) {
	f, err := os.Open(path)
	if err != nil {
		return geometry.PointCloud{}, fmt.Errorf("%w: %w", ErrCannotOpenFile, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return geometry.PointCloud{}, fmt.Errorf("stat %s: %w", path, err)
	}
	size := info.Size()
	if size < c3dHeaderSize {
		return geometry.PointCloud{}, fmt.Errorf("%w: %d bytes, need %d", ErrInvalidC3DSize, size, c3dHeaderSize)
	}
	if uint64(size) > math.MaxInt {
		return geometry.PointCloud{}, fmt.Errorf("%w: %d bytes", ErrValueTooLarge, size)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return geometry.PointCloud{}, fmt.Errorf("mmap %s: %w", path, err)
	}
	defer unix.Munmap(data)

	return DecodeC3D(data)
}
