package loaders

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func checker(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if (x+y)%2 == 0 {
				img.SetNRGBA(x, y, color.NRGBA{R: 255, G: 10, B: 20, A: 255})
			} else {
				img.SetNRGBA(x, y, color.NRGBA{R: 0, G: 200, B: 100, A: 128})
			}
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestContainerFor(t *testing.T) {
	assert.Equal(t, ContainerTGA, ContainerFor("Textures/Missing_Texture.tga"))
	assert.Equal(t, ContainerJPEG, ContainerFor("a/b.JPEG"))
	assert.Equal(t, ContainerTIFF, ContainerFor("scan.tif"))
	assert.Equal(t, ContainerWEBP, ContainerFor("x.webp"))
	assert.Equal(t, ContainerUnknown, ContainerFor("x.dds"))
}

func TestTGARoundTrip(t *testing.T) {
	src := checker(3, 2)
	data := EncodeTGA(src)

	cfg, err := DecodeConfig(ContainerTGA, data)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Width)
	assert.Equal(t, 2, cfg.Height)

	require.NoError(t, Sniff(ContainerTGA, data))
	img, err := Decode(ContainerTGA, data)
	require.NoError(t, err)
	assert.Equal(t, src.Pix, img.Pix)
}

func TestTGABottomUpRLE(t *testing.T) {
	// 2x2, 24 bit, RLE, bottom-left origin: a run of two blue pixels, then two raw red ones.
	header := make([]byte, tgaHeaderSize)
	header[2] = 10
	header[12], header[14] = 2, 2
	header[16] = 24
	body := []byte{
		0x81, 255, 0, 0, // run of 2 blue (BGR)
		0x01, 0, 0, 255, 0, 0, 255, // 2 raw red
	}
	img, err := Decode(ContainerTGA, append(header, body...))
	require.NoError(t, err)
	// First stored row is the bottom one.
	assert.Equal(t, color.NRGBA{B: 255, A: 255}, img.NRGBAAt(0, 1))
	assert.Equal(t, color.NRGBA{R: 255, A: 255}, img.NRGBAAt(1, 0))

	_, err = Decode(ContainerTGA, append(header, body[:6]...))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestSniffRejectsMismatchedContent(t *testing.T) {
	data := encodePNG(t, checker(2, 2))
	require.NoError(t, Sniff(ContainerPNG, data))
	assert.ErrorIs(t, Sniff(ContainerJPEG, data), ErrContainerMismatch)
	assert.ErrorIs(t, Sniff(ContainerTGA, data), ErrContainerMismatch)
	assert.ErrorIs(t, Sniff(ContainerBMP, []byte("not an image at all")), ErrContainerMismatch)
	assert.ErrorIs(t, Sniff(ContainerUnknown, data), ErrUnknownContainer)
}

func TestDecodePNG(t *testing.T) {
	src := checker(4, 4)
	img, err := Decode(ContainerPNG, encodePNG(t, src))
	require.NoError(t, err)
	assert.Equal(t, src.Bounds(), img.Bounds())
	assert.Equal(t, src.NRGBAAt(1, 0), img.NRGBAAt(1, 0))
}

func TestMipChain(t *testing.T) {
	chain := MipChain(checker(8, 2))
	require.Len(t, chain, 4)
	sizes := make([]image.Point, len(chain))
	for i, m := range chain {
		sizes[i] = m.Bounds().Size()
	}
	assert.Equal(t, []image.Point{{8, 2}, {4, 1}, {2, 1}, {1, 1}}, sizes)

	r := Resize(checker(8, 8), 4, 2)
	assert.Equal(t, image.Pt(4, 2), r.Bounds().Size())
}

func TestBinaryReader(t *testing.T) {
	var w BinaryWriter
	w.Write(uint16(7))
	w.Write(struct {
		A uint8
		B float32
	}{3, 1.5})
	w.WriteBytes([]byte{9})
	w.Align(4)
	require.Equal(t, 8, len(w.Bytes()))

	r := NewBinaryReader(w.Bytes())
	var id uint16
	require.NoError(t, r.Read(&id))
	assert.Equal(t, uint16(7), id)

	var group struct {
		A uint8
		B float32
	}
	require.NoError(t, r.Read(&group))
	assert.Equal(t, float32(1.5), group.B)

	b, err := r.Bytes(1)
	require.NoError(t, err)
	assert.Equal(t, []byte{9}, b)
	require.NoError(t, r.Align(4))
	assert.Equal(t, 0, r.Len())

	_, err = r.U32()
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}
