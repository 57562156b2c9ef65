package resources

type ImageFormat uint32

const (
	ImageFormatRGB888 ImageFormat = iota
	ImageFormatRGBA8888
	ImageFormatDXT1
	ImageFormatDXT5
	ImageFormatPVR2
	ImageFormatPVR4
)

var imageFormatNames = []string{"RGB888", "RGBA8888", "DXT1", "DXT5", "PVR2", "PVR4"}

func (f ImageFormat) String() string {
	if int(f) < len(imageFormatNames) {
		return imageFormatNames[f]
	}
	return "Invalid"
}

func (f ImageFormat) Valid() bool {
	return int(f) < len(imageFormatNames)
}

func (f ImageFormat) Compressed() bool {
	return f >= ImageFormatDXT1 && f.Valid()
}

/** @brief Sampling capabilities of a texture. */
type TextureTag uint32

const (
	TextureTagWrapS TextureTag = 1 << iota
	TextureTagWrapT
	TextureTagWrapR
	TextureTagMipmap
	TextureTagFilterBilinear
	TextureTagFilterTrilinear
	TextureTagLocalized
)

func (t TextureTag) Has(f TextureTag) bool {
	return t&f == f
}

/** @brief Cheap description of a texture, valid after Info. */
type TextureHeader struct {
	Format  ImageFormat
	Width   int
	Height  int
	NumMips int
}

type Mipmap struct {
	Width  int
	Height int
	/** @brief Bytes per row, or per block row for compressed formats. */
	Stride int
	Data   []byte
}

type Frame struct {
	Flags uint32
	Mips  []Mipmap
}

/** @brief One image of a texture, which may hold several animation frames. */
type Image struct {
	Format ImageFormat
	/** @brief Bits per pixel. */
	BPP    int
	Frames []Frame
}

// DataSize is the total number of pixel bytes across frames and mips.
func (img *Image) DataSize() int {
	n := 0
	for _, f := range img.Frames {
		for _, m := range f.Mips {
			n += len(m.Data)
		}
	}
	return n
}

// Header derives a header from the first frame.
func (img *Image) Header() TextureHeader {
	h := TextureHeader{Format: img.Format}
	if len(img.Frames) > 0 && len(img.Frames[0].Mips) > 0 {
		h.Width = img.Frames[0].Mips[0].Width
		h.Height = img.Frames[0].Mips[0].Height
		h.NumMips = len(img.Frames[0].Mips)
	}
	return h
}
