package assets

import (
	"github.com/spaghettifunk/kiln/engine/assets/loaders"
	"github.com/spaghettifunk/kiln/engine/resources"
)

// CookTexture writes images in the cooked texture layout. Mip data is padded
// to four bytes.
func CookTexture(images []*resources.Image) []byte {
	var w loaders.BinaryWriter
	w.Write(uint32(len(images)))
	for _, img := range images {
		w.Write(cookedImageHeader{Format: uint32(img.Format), BPP: uint32(img.BPP), NumFrames: uint32(len(img.Frames))})
		for _, f := range img.Frames {
			w.Write(cookedFrameHeader{NumMips: uint32(len(f.Mips)), Flags: f.Flags})
			for _, m := range f.Mips {
				w.Write(cookedMipHeader{
					Width:    uint32(m.Width),
					Height:   uint32(m.Height),
					Stride:   uint32(m.Stride),
					DataSize: uint32(len(m.Data)),
				})
				w.WriteBytes(m.Data)
				w.Align(4)
			}
		}
	}
	return w.Bytes()
}

// CookedTag returns the tag data a cooked texture entry carries.
func (t *TextureParser) CookedTag() []uint32 {
	tags := make([]uint32, len(t.images))
	for i := range tags {
		tags[i] = uint32(t.tag)
	}
	return tags
}
