// Package texture decodes material texture files into RGBA pixel grids.
package texture

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"
	"golang.org/x/image/bmp"
)

// ErrUnsupportedImage is returned for files that are not PNG, JPEG, GIF, BMP
// or TGA.
var ErrUnsupportedImage = errors.New("unsupported image format")

// Decoder loads texture files from disk.
type Decoder struct {
	// FlipVertical puts the first image row last, matching bottom-left
	// texture coordinates.
	FlipVertical bool
}

// Decode reads and decodes the image at path. The format is sniffed from the
// file contents; TGA, which has no magic bytes, is recognized by extension.
func (d Decoder) Decode(path string) (*image.RGBA, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading texture: %w", err)
	}

	img, err := DecodeBytes(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	if d.FlipVertical {
		FlipVertical(img)
	}
	return img, nil
}

// DecodeBytes decodes an image held in memory. ext is the file extension
// used as a fallback when sniffing fails.
func DecodeBytes(data []byte, ext string) (*image.RGBA, error) {
	kind, _ := filetype.Match(data)

	var (
		img image.Image
		err error
	)
	switch kind.Extension {
	case "png":
		img, err = png.Decode(bytes.NewReader(data))
	case "jpg":
		img, err = jpeg.Decode(bytes.NewReader(data))
	case "gif":
		img, err = gif.Decode(bytes.NewReader(data))
	case "bmp":
		img, err = bmp.Decode(bytes.NewReader(data))
	default:
		if kind == filetype.Unknown && strings.EqualFold(ext, ".tga") {
			return DecodeTGA(data)
		}
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedImage, describeKind(kind.Extension, ext))
	}
	if err != nil {
		return nil, err
	}
	return ToRGBA(img), nil
}

func describeKind(sniffed, ext string) string {
	if sniffed != "" && sniffed != "unknown" {
		return sniffed
	}
	if ext != "" {
		return ext
	}
	return "unknown"
}

// ToRGBA converts any image.Image to *image.RGBA with its origin at (0, 0).
func ToRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Bounds().Min == (image.Point{}) {
		return rgba
	}
	bounds := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)
	return rgba
}

// FlipVertical mirrors img top to bottom in place.
func FlipVertical(img *image.RGBA) {
	bounds := img.Bounds()
	rowLen := bounds.Dx() * 4
	tmp := make([]byte, rowLen)
	for top, bottom := bounds.Min.Y, bounds.Max.Y-1; top < bottom; top, bottom = top+1, bottom-1 {
		a := img.Pix[img.PixOffset(bounds.Min.X, top):][:rowLen]
		b := img.Pix[img.PixOffset(bounds.Min.X, bottom):][:rowLen]
		copy(tmp, a)
		copy(a, b)
		copy(b, tmp)
	}
}
