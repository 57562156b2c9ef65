package loaders

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
)

const tgaHeaderSize = 18

type tgaHeader struct {
	idLength   uint8
	colorMap   uint8
	imageType  uint8
	width      int
	height     int
	bpp        uint8
	descriptor uint8
}

var errTGAUnsupported = errors.New("tga: unsupported image type")

func readTGAHeader(data []byte) (tgaHeader, error) {
	if len(data) < tgaHeaderSize {
		return tgaHeader{}, io.ErrUnexpectedEOF
	}
	h := tgaHeader{
		idLength:   data[0],
		colorMap:   data[1],
		imageType:  data[2],
		width:      int(binary.LittleEndian.Uint16(data[12:])),
		height:     int(binary.LittleEndian.Uint16(data[14:])),
		bpp:        data[16],
		descriptor: data[17],
	}
	if h.colorMap != 0 {
		return h, errTGAUnsupported
	}
	switch h.imageType {
	case 2, 10:
		if h.bpp != 24 && h.bpp != 32 {
			return h, fmt.Errorf("tga: %d bit truecolor: %w", h.bpp, errTGAUnsupported)
		}
	case 3, 11:
		if h.bpp != 8 {
			return h, fmt.Errorf("tga: %d bit grayscale: %w", h.bpp, errTGAUnsupported)
		}
	default:
		return h, errTGAUnsupported
	}
	if h.width == 0 || h.height == 0 {
		return h, errors.New("tga: empty image")
	}
	return h, nil
}

func decodeTGAConfig(data []byte) (image.Config, error) {
	h, err := readTGAHeader(data)
	if err != nil {
		return image.Config{}, err
	}
	return image.Config{ColorModel: color.NRGBAModel, Width: h.width, Height: h.height}, nil
}

// decodeTGA reads uncompressed and RLE truecolor or grayscale targa files.
func decodeTGA(data []byte) (*image.NRGBA, error) {
	h, err := readTGAHeader(data)
	if err != nil {
		return nil, err
	}
	px := data[tgaHeaderSize+int(h.idLength):]
	bytesPerPixel := int(h.bpp / 8)
	raw := make([]byte, h.width*h.height*bytesPerPixel)

	if h.imageType == 2 || h.imageType == 3 {
		if len(px) < len(raw) {
			return nil, io.ErrUnexpectedEOF
		}
		copy(raw, px)
	} else if err := unpackTGARLE(raw, px, bytesPerPixel); err != nil {
		return nil, err
	}

	img := image.NewNRGBA(image.Rect(0, 0, h.width, h.height))
	topDown := h.descriptor&0x20 != 0
	for y := 0; y < h.height; y++ {
		row := y
		if !topDown {
			row = h.height - 1 - y
		}
		for x := 0; x < h.width; x++ {
			s := raw[(y*h.width+x)*bytesPerPixel:]
			d := img.PixOffset(x, row)
			switch bytesPerPixel {
			case 1:
				img.Pix[d], img.Pix[d+1], img.Pix[d+2], img.Pix[d+3] = s[0], s[0], s[0], 255
			case 3:
				img.Pix[d], img.Pix[d+1], img.Pix[d+2], img.Pix[d+3] = s[2], s[1], s[0], 255
			case 4:
				img.Pix[d], img.Pix[d+1], img.Pix[d+2], img.Pix[d+3] = s[2], s[1], s[0], s[3]
			}
		}
	}
	return img, nil
}

func unpackTGARLE(dst, src []byte, bpp int) error {
	o, i := 0, 0
	for o < len(dst) {
		if i >= len(src) {
			return io.ErrUnexpectedEOF
		}
		packet := src[i]
		i++
		count := int(packet&0x7f) + 1
		if o+count*bpp > len(dst) {
			return errors.New("tga: run overflows image")
		}
		if packet&0x80 != 0 {
			if i+bpp > len(src) {
				return io.ErrUnexpectedEOF
			}
			for n := 0; n < count; n++ {
				copy(dst[o:], src[i:i+bpp])
				o += bpp
			}
			i += bpp
			continue
		}
		if i+count*bpp > len(src) {
			return io.ErrUnexpectedEOF
		}
		copy(dst[o:], src[i:i+count*bpp])
		o += count * bpp
		i += count * bpp
	}
	return nil
}

// EncodeTGA writes an uncompressed 32 bit top-down targa. Used to produce
// fixtures and default media.
func EncodeTGA(img *image.NRGBA) []byte {
	b := img.Bounds()
	out := make([]byte, tgaHeaderSize, tgaHeaderSize+b.Dx()*b.Dy()*4)
	out[2] = 2
	binary.LittleEndian.PutUint16(out[12:], uint16(b.Dx()))
	binary.LittleEndian.PutUint16(out[14:], uint16(b.Dy()))
	out[16] = 32
	out[17] = 0x20 | 8
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			p := img.Pix[img.PixOffset(x, y):]
			out = append(out, p[2], p[1], p[0], p[3])
		}
	}
	return out
}
