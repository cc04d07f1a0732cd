package texture

import (
	"errors"
	"fmt"
	"image"
)

// TGA image type constants.
const (
	TGATypeUncompressed = 2  // Uncompressed true-color
	TGATypeRLE          = 10 // RLE compressed true-color
)

const tgaHeaderSize = 18

var (
	ErrTruncatedTGA   = errors.New("TGA data truncated")
	ErrUnsupportedTGA = errors.New("unsupported TGA")
)

// tgaPixels writes decoded pixels into an image in file order, honoring the
// origin bit of the descriptor.
type tgaPixels struct {
	img         *image.RGBA
	width       int
	height      int
	bpp         int // bytes per pixel
	topToBottom bool
	next        int // pixels written so far
}

func (p *tgaPixels) done() bool {
	return p.next >= p.width*p.height
}

// put stores one BGR(A) pixel and advances.
func (p *tgaPixels) put(src []byte) {
	x := p.next % p.width
	y := p.next / p.width
	if !p.topToBottom {
		y = p.height - 1 - y
	}
	i := p.img.PixOffset(x, y)
	p.img.Pix[i+0] = src[2]
	p.img.Pix[i+1] = src[1]
	p.img.Pix[i+2] = src[0]
	p.img.Pix[i+3] = 255
	if p.bpp == 4 {
		p.img.Pix[i+3] = src[3]
	}
	p.next++
}

// DecodeTGA decodes a TGA image.
// Supports uncompressed true-color (type 2) and RLE compressed (type 10)
// images at 24 or 32 bits per pixel.
func DecodeTGA(data []byte) (*image.RGBA, error) {
	if len(data) < tgaHeaderSize {
		return nil, fmt.Errorf("%w: %d byte header", ErrTruncatedTGA, len(data))
	}

	idLength := int(data[0])
	colorMapType := data[1]
	imageType := data[2]
	width := int(data[12]) | int(data[13])<<8
	height := int(data[14]) | int(data[15])<<8
	bitsPerPixel := int(data[16])
	descriptor := data[17]

	if colorMapType != 0 {
		return nil, fmt.Errorf("%w: color-mapped", ErrUnsupportedTGA)
	}
	if imageType != TGATypeUncompressed && imageType != TGATypeRLE {
		return nil, fmt.Errorf("%w: type %d", ErrUnsupportedTGA, imageType)
	}
	if bitsPerPixel != 24 && bitsPerPixel != 32 {
		return nil, fmt.Errorf("%w: %d bits per pixel", ErrUnsupportedTGA, bitsPerPixel)
	}

	offset := tgaHeaderSize + idLength
	if offset > len(data) {
		return nil, ErrTruncatedTGA
	}

	px := &tgaPixels{
		img:         image.NewRGBA(image.Rect(0, 0, width, height)),
		width:       width,
		height:      height,
		bpp:         bitsPerPixel / 8,
		topToBottom: descriptor&0x20 != 0,
	}

	var err error
	if imageType == TGATypeUncompressed {
		err = decodeTGARaw(px, data[offset:])
	} else {
		err = decodeTGARLE(px, data[offset:])
	}
	if err != nil {
		return nil, err
	}
	return px.img, nil
}

func decodeTGARaw(px *tgaPixels, data []byte) error {
	if len(data) < px.width*px.height*px.bpp {
		return fmt.Errorf("%w: pixel data", ErrTruncatedTGA)
	}
	for i := 0; !px.done(); i += px.bpp {
		px.put(data[i:])
	}
	return nil
}

// decodeTGARLE decodes run-length packets: the high bit of the packet header
// selects a repeated pixel, otherwise count raw pixels follow.
func decodeTGARLE(px *tgaPixels, data []byte) error {
	i := 0
	for !px.done() {
		if i >= len(data) {
			return fmt.Errorf("%w: RLE packets", ErrTruncatedTGA)
		}
		header := data[i]
		i++
		count := int(header&0x7F) + 1

		if header&0x80 != 0 {
			if i+px.bpp > len(data) {
				return fmt.Errorf("%w: RLE pixel", ErrTruncatedTGA)
			}
			for n := 0; n < count && !px.done(); n++ {
				px.put(data[i:])
			}
			i += px.bpp
			continue
		}

		for n := 0; n < count && !px.done(); n++ {
			if i+px.bpp > len(data) {
				return fmt.Errorf("%w: raw pixel", ErrTruncatedTGA)
			}
			px.put(data[i:])
			i += px.bpp
		}
	}
	return nil
}
