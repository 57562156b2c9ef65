package assets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/kiln/engine/resources"
)

func solidImage(w, h int, rgba [4]byte) *resources.Image {
	data := make([]byte, 0, w*h*4)
	for i := 0; i < w*h; i++ {
		data = append(data, rgba[:]...)
	}
	return &resources.Image{
		Format: resources.ImageFormatRGBA8888,
		BPP:    32,
		Frames: []resources.Frame{{Mips: []resources.Mipmap{{Width: w, Height: h, Stride: w * 4, Data: data}}}},
	}
}

func TestDXT1SolidBlock(t *testing.T) {
	out, err := DXTCompressor{}.Compress(solidImage(4, 4, [4]byte{255, 0, 0, 255}), resources.ImageFormatDXT1, false)
	require.NoError(t, err)
	assert.Equal(t, resources.ImageFormatDXT1, out.Format)
	assert.Equal(t, 4, out.BPP)
	// Both endpoints are pure red in 565 and every index is 0.
	assert.Equal(t, []byte{0x00, 0xf8, 0x00, 0xf8, 0, 0, 0, 0}, out.Frames[0].Mips[0].Data)
}

func TestDXT5SolidBlock(t *testing.T) {
	out, err := DXTCompressor{}.Compress(solidImage(4, 4, [4]byte{0, 0, 255, 128}), resources.ImageFormatDXT5, true)
	require.NoError(t, err)
	data := out.Frames[0].Mips[0].Data
	require.Len(t, data, 16)
	assert.Equal(t, []byte{128, 128, 0, 0, 0, 0, 0, 0}, data[:8])
	assert.Equal(t, []byte{0x1f, 0x00, 0x1f, 0x00}, data[8:12])
}

func TestDXTTwoColors(t *testing.T) {
	img := solidImage(4, 4, [4]byte{0, 0, 0, 255})
	data := img.Frames[0].Mips[0].Data
	for i := 0; i < 8; i++ {
		// Top half white.
		copy(data[i*4:], []byte{255, 255, 255, 255})
	}
	out, err := DXTCompressor{}.Compress(img, resources.ImageFormatDXT1, true)
	require.NoError(t, err)
	block := out.Frames[0].Mips[0].Data
	assert.Equal(t, []byte{0xff, 0xff, 0x00, 0x00}, block[:4])
	// Index 0 (white) for the top rows, index 1 (black) for the bottom rows.
	assert.Equal(t, []byte{0x00, 0x00, 0x55, 0x55}, block[4:])
}

func TestDXTPartialBlocks(t *testing.T) {
	out, err := DXTCompressor{}.Compress(solidImage(5, 3, [4]byte{1, 2, 3, 4}), resources.ImageFormatDXT1, true)
	require.NoError(t, err)
	m := out.Frames[0].Mips[0]
	assert.Len(t, m.Data, 2*8)
	assert.Equal(t, 16, m.Stride)
	assert.Equal(t, 5, m.Width)
	assert.Equal(t, 3, m.Height)
}

func TestDXTRejectsUnsupportedInput(t *testing.T) {
	img := solidImage(4, 4, [4]byte{})
	_, err := DXTCompressor{}.Compress(img, resources.ImageFormatPVR4, true)
	assert.Error(t, err)

	img.Format = resources.ImageFormatRGB888
	_, err = DXTCompressor{}.Compress(img, resources.ImageFormatDXT1, true)
	assert.Error(t, err)
}
