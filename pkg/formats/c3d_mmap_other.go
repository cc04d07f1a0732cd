//go:build !(linux || darwin || freebsd || netbsd || openbsd)

package formats

import "github.com/Faultbox/pointview/pkg/geometry"

func readC3DMapped(string) (geometry.PointCloud, error) {
	return geometry.PointCloud{}, errMmapUnsupported
}
