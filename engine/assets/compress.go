package assets

import (
	"fmt"

	"github.com/spaghettifunk/kiln/engine/resources"
)

// Compressor is a pluggable GPU format encoder. The output must keep the
// frame and mip topology of the input.
type Compressor interface {
	Name() string
	Compress(img *resources.Image, format resources.ImageFormat, fast bool) (*resources.Image, error)
}

// DXTCompressor encodes RGBA8888 images to BC1 (DXT1) or BC3 (DXT5). Fast
// mode uses the plain bounding box of each block as endpoints; otherwise
// the box is inset to reduce the error of the extremes.
type DXTCompressor struct{}

func (DXTCompressor) Name() string { return "DXT" }

func (DXTCompressor) Compress(img *resources.Image, format resources.ImageFormat, fast bool) (*resources.Image, error) {
	if img.Format != resources.ImageFormatRGBA8888 {
		return nil, fmt.Errorf("dxt: source must be RGBA8888, got %s", img.Format)
	}
	var blockSize, bpp int
	switch format {
	case resources.ImageFormatDXT1:
		blockSize, bpp = 8, 4
	case resources.ImageFormatDXT5:
		blockSize, bpp = 16, 8
	default:
		return nil, fmt.Errorf("dxt: cannot encode %s", format)
	}

	out := &resources.Image{Format: format, BPP: bpp}
	for _, f := range img.Frames {
		frame := resources.Frame{Flags: f.Flags}
		for _, m := range f.Mips {
			if len(m.Data) < m.Width*m.Height*4 {
				return nil, fmt.Errorf("dxt: mip %dx%d holds %d bytes", m.Width, m.Height, len(m.Data))
			}
			bw, bh := (m.Width+3)/4, (m.Height+3)/4
			data := make([]byte, 0, bw*bh*blockSize)
			var block [16][4]uint8
			for by := 0; by < bh; by++ {
				for bx := 0; bx < bw; bx++ {
					fetchBlock(&block, m, bx*4, by*4)
					if format == resources.ImageFormatDXT5 {
						data = encodeAlphaBlock(data, &block, fast)
					}
					data = encodeColorBlock(data, &block, fast)
				}
			}
			frame.Mips = append(frame.Mips, resources.Mipmap{Width: m.Width, Height: m.Height, Stride: bw * blockSize, Data: data})
		}
		out.Frames = append(out.Frames, frame)
	}
	return out, nil
}

// fetchBlock copies a 4x4 block, clamping reads at the image edge.
func fetchBlock(block *[16][4]uint8, m resources.Mipmap, x0, y0 int) {
	for y := 0; y < 4; y++ {
		sy := min(y0+y, m.Height-1)
		for x := 0; x < 4; x++ {
			sx := min(x0+x, m.Width-1)
			o := sy*m.Stride + sx*4
			copy(block[y*4+x][:], m.Data[o:o+4])
		}
	}
}

func to565(r, g, b uint8) uint16 {
	return uint16(r>>3)<<11 | uint16(g>>2)<<5 | uint16(b>>3)
}

func from565(c uint16) [3]int {
	r := int(c>>11) & 31
	g := int(c>>5) & 63
	b := int(c) & 31
	return [3]int{r<<3 | r>>2, g<<2 | g>>4, b<<3 | b>>2}
}

func encodeColorBlock(dst []byte, block *[16][4]uint8, fast bool) []byte {
	lo := [3]int{255, 255, 255}
	hi := [3]int{0, 0, 0}
	for _, p := range block {
		for c := 0; c < 3; c++ {
			lo[c] = min(lo[c], int(p[c]))
			hi[c] = max(hi[c], int(p[c]))
		}
	}
	if !fast {
		for c := 0; c < 3; c++ {
			inset := (hi[c] - lo[c]) >> 4
			lo[c] += inset
			hi[c] -= inset
		}
	}

	c0 := to565(uint8(hi[0]), uint8(hi[1]), uint8(hi[2]))
	c1 := to565(uint8(lo[0]), uint8(lo[1]), uint8(lo[2]))
	var indices uint32
	if c0 != c1 {
		if c0 < c1 {
			c0, c1 = c1, c0
		}
		// Four color mode requires c0 > c1.
		e0, e1 := from565(c0), from565(c1)
		var palette [4][3]int
		for c := 0; c < 3; c++ {
			palette[0][c] = e0[c]
			palette[1][c] = e1[c]
			palette[2][c] = (2*e0[c] + e1[c]) / 3
			palette[3][c] = (e0[c] + 2*e1[c]) / 3
		}
		for i, p := range block {
			best, bestDist := 0, 1<<30
			for k, q := range palette {
				dr, dg, db := int(p[0])-q[0], int(p[1])-q[1], int(p[2])-q[2]
				if d := dr*dr + dg*dg + db*db; d < bestDist {
					best, bestDist = k, d
				}
			}
			indices |= uint32(best) << (2 * i)
		}
	}
	return append(dst,
		byte(c0), byte(c0>>8),
		byte(c1), byte(c1>>8),
		byte(indices), byte(indices>>8), byte(indices>>16), byte(indices>>24))
}

func encodeAlphaBlock(dst []byte, block *[16][4]uint8, fast bool) []byte {
	lo, hi := 255, 0
	for _, p := range block {
		lo = min(lo, int(p[3]))
		hi = max(hi, int(p[3]))
	}
	if !fast {
		inset := (hi - lo) >> 5
		lo += inset
		hi -= inset
	}

	a0, a1 := hi, lo
	var bits uint64
	if a0 != a1 {
		// Eight alpha mode requires a0 > a1.
		var palette [8]int
		palette[0], palette[1] = a0, a1
		for k := 1; k < 7; k++ {
			palette[k+1] = ((7-k)*a0 + k*a1) / 7
		}
		for i, p := range block {
			best, bestDist := 0, 1<<30
			for k, q := range palette {
				d := int(p[3]) - q
				if d < 0 {
					d = -d
				}
				if d < bestDist {
					best, bestDist = k, d
				}
			}
			bits |= uint64(best) << (3 * i)
		}
	}
	dst = append(dst, byte(a0), byte(a1))
	for i := 0; i < 6; i++ {
		dst = append(dst, byte(bits>>(8*i)))
	}
	return dst
}
