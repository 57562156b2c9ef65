package loaders

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"path"
	"strings"

	"github.com/h2non/filetype"
	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	"golang.org/x/image/tiff"
	"golang.org/x/image/webp"
)

// Container is a source image file format.
type Container int

const (
	ContainerUnknown Container = iota
	ContainerTGA
	ContainerPNG
	ContainerJPEG
	ContainerGIF
	ContainerBMP
	ContainerTIFF
	ContainerWEBP
)

var (
	ErrUnknownContainer  = errors.New("unknown image container")
	ErrContainerMismatch = errors.New("file content does not match its extension")
)

type codec struct {
	extensions []string
	// sniffed is the extension h2non/filetype reports. Empty when the
	// container has no magic number.
	sniffed      string
	decode       func([]byte) (image.Image, error)
	decodeConfig func([]byte) (image.Config, error)
}

func reader(fn func(*bytes.Reader) (image.Image, error)) func([]byte) (image.Image, error) {
	return func(b []byte) (image.Image, error) { return fn(bytes.NewReader(b)) }
}

func configReader(fn func(*bytes.Reader) (image.Config, error)) func([]byte) (image.Config, error) {
	return func(b []byte) (image.Config, error) { return fn(bytes.NewReader(b)) }
}

var codecs = map[Container]codec{
	ContainerTGA: {
		extensions:   []string{".tga"},
		decode:       func(b []byte) (image.Image, error) { return decodeTGA(b) },
		decodeConfig: decodeTGAConfig,
	},
	ContainerPNG: {
		extensions:   []string{".png"},
		sniffed:      "png",
		decode:       reader(func(r *bytes.Reader) (image.Image, error) { return png.Decode(r) }),
		decodeConfig: configReader(func(r *bytes.Reader) (image.Config, error) { return png.DecodeConfig(r) }),
	},
	ContainerJPEG: {
		extensions:   []string{".jpg", ".jpeg"},
		sniffed:      "jpg",
		decode:       reader(func(r *bytes.Reader) (image.Image, error) { return jpeg.Decode(r) }),
		decodeConfig: configReader(func(r *bytes.Reader) (image.Config, error) { return jpeg.DecodeConfig(r) }),
	},
	ContainerGIF: {
		extensions:   []string{".gif"},
		sniffed:      "gif",
		decode:       reader(func(r *bytes.Reader) (image.Image, error) { return gif.Decode(r) }),
		decodeConfig: configReader(func(r *bytes.Reader) (image.Config, error) { return gif.DecodeConfig(r) }),
	},
	ContainerBMP: {
		extensions:   []string{".bmp"},
		sniffed:      "bmp",
		decode:       reader(func(r *bytes.Reader) (image.Image, error) { return bmp.Decode(r) }),
		decodeConfig: configReader(func(r *bytes.Reader) (image.Config, error) { return bmp.DecodeConfig(r) }),
	},
	ContainerTIFF: {
		extensions:   []string{".tif", ".tiff"},
		sniffed:      "tif",
		decode:       reader(func(r *bytes.Reader) (image.Image, error) { return tiff.Decode(r) }),
		decodeConfig: configReader(func(r *bytes.Reader) (image.Config, error) { return tiff.DecodeConfig(r) }),
	},
	ContainerWEBP: {
		extensions:   []string{".webp"},
		sniffed:      "webp",
		decode:       reader(func(r *bytes.Reader) (image.Image, error) { return webp.Decode(r) }),
		decodeConfig: configReader(func(r *bytes.Reader) (image.Config, error) { return webp.DecodeConfig(r) }),
	},
}

// ContainerFor picks the container from the file extension.
func ContainerFor(name string) Container {
	ext := strings.ToLower(path.Ext(name))
	for c, cd := range codecs {
		for _, e := range cd.extensions {
			if e == ext {
				return c
			}
		}
	}
	return ContainerUnknown
}

// Sniff checks that data really holds container c. Containers without a magic
// number only fail when the content is recognized as something else.
func Sniff(c Container, data []byte) error {
	cd, ok := codecs[c]
	if !ok {
		return ErrUnknownContainer
	}
	kind, err := filetype.Match(data)
	known := err == nil && kind != filetype.Unknown
	if cd.sniffed == "" {
		if known && filetype.IsImage(data) {
			return fmt.Errorf("%w: found %s", ErrContainerMismatch, kind.Extension)
		}
		return nil
	}
	if !known {
		return fmt.Errorf("%w: expected %s", ErrContainerMismatch, cd.sniffed)
	}
	if kind.Extension != cd.sniffed {
		return fmt.Errorf("%w: found %s", ErrContainerMismatch, kind.Extension)
	}
	return nil
}

// DecodeConfig reads only the dimensions of an image.
func DecodeConfig(c Container, data []byte) (image.Config, error) {
	cd, ok := codecs[c]
	if !ok {
		return image.Config{}, ErrUnknownContainer
	}
	return cd.decodeConfig(data)
}

// Decode returns the image as non-premultiplied RGBA.
func Decode(c Container, data []byte) (*image.NRGBA, error) {
	cd, ok := codecs[c]
	if !ok {
		return nil, ErrUnknownContainer
	}
	img, err := cd.decode(data)
	if err != nil {
		return nil, err
	}
	return ToNRGBA(img), nil
}

// ToNRGBA converts img, returning it unchanged when it already is NRGBA at the origin.
func ToNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok && n.Bounds().Min == (image.Point{}) {
		return n
	}
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}
