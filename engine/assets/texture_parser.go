package assets

import (
	"errors"
	"fmt"
	"image"
	"io/fs"
	"path"
	"strings"

	"github.com/spaghettifunk/kiln/engine/assets/loaders"
	"github.com/spaghettifunk/kiln/engine/core"
	"github.com/spaghettifunk/kiln/engine/math"
	"github.com/spaghettifunk/kiln/engine/packages"
	"github.com/spaghettifunk/kiln/engine/resources"
)

type textureState int

const (
	textureNone textureState = iota
	textureLoading
	textureParsing
	textureHeader
	textureDone
)

type textureStage int

const (
	stageOpen textureStage = iota
	stageImages
	stageRead
	stageConfig
	stageDecode
	stageTag
	stageResize
	stageMipmap
	stageCompress
	stageCommit
)

// CompressionStats reports the byte totals of the last compression.
type CompressionStats struct {
	Backend      string
	Uncompressed int
	Compressed   int
}

// textureWork is the in-flight part of a texture. Nothing in it is visible
// through the parser accessors until it is committed.
type textureWork struct {
	target core.Level
	stage  textureStage

	reader    *loaders.BinaryReader
	numImages int
	images    []*resources.Image

	files     []string
	bundle    bool
	container loaders.Container
	data      [][]byte
	next      int
	config    image.Config
	frames    []*image.NRGBA
	mips      [][]*image.NRGBA
	tag       resources.TextureTag
	img       *resources.Image
	stats     CompressionStats
}

// TextureParser decodes a texture from a cooked blob or from source image
// files. An Info request on a source texture stops at the header without
// decoding pixels.
type TextureParser struct {
	asset *Asset
	state textureState

	header      resources.TextureHeader
	headerValid bool
	tag         resources.TextureTag
	images      []*resources.Image
	stats       CompressionStats

	work *textureWork
}

func newTextureParser(a *Asset) *TextureParser {
	return &TextureParser{asset: a}
}

func (t *TextureParser) HeaderValid() bool                  { return t.headerValid }
func (t *TextureParser) ImagesValid() bool                  { return t.images != nil }
func (t *TextureParser) Header() resources.TextureHeader    { return t.header }
func (t *TextureParser) Tag() resources.TextureTag          { return t.tag }
func (t *TextureParser) Images() []*resources.Image         { return t.images }
func (t *TextureParser) CompressionStats() CompressionStats { return t.stats }

// FrameCount is the number of animation frames of the first image.
func (t *TextureParser) FrameCount() int {
	if len(t.images) == 0 {
		return 0
	}
	return len(t.images[0].Frames)
}

func (t *TextureParser) level() core.Level {
	switch t.state {
	case textureDone:
		return core.LevelLoaded
	case textureHeader:
		return core.LevelInfo
	}
	return core.LevelUnloaded
}

// settle returns the state to whatever is committed.
func (t *TextureParser) settle() {
	t.work = nil
	switch {
	case t.images != nil:
		t.state = textureDone
	case t.headerValid:
		t.state = textureHeader
	default:
		t.state = textureNone
	}
}

func (t *TextureParser) path() string {
	return t.asset.entry.Path
}

func (t *TextureParser) Process(ts core.TimeSlice, flags core.PhaseFlags) error {
	step := core.Plan(t.level(), flags)
	switch step.Action {
	case core.ActionNone, core.ActionSatisfied:
		return nil
	case core.ActionCancel:
		// Committed data survives: a loaded texture may be shared and is
		// unloaded by its last release.
		t.settle()
		return nil
	case core.ActionUnload:
		t.images = nil
		t.header = resources.TextureHeader{}
		t.headerValid = false
		t.tag = 0
		t.settle()
		return nil
	case core.ActionTrim:
		t.images = nil
		t.settle()
		return nil
	}

	if t.work == nil || t.work.target < step.Target {
		t.begin(step.Target)
	}
	meta := t.asset.meta(flags)
	for t.work.stage != stageCommit {
		if !ts.Remaining() {
			return core.ErrPending
		}
		if err := t.step(meta, flags); err != nil {
			t.settle()
			core.LogDebug("texture %s: %s", t.path(), err)
			return err
		}
		ts.Spend(1)
	}
	t.commit()
	return nil
}

func (t *TextureParser) begin(target core.Level) {
	if t.asset.entry.Cooked {
		// The cooked blob is its own header, so every request loads it whole.
		t.work = &textureWork{target: core.LevelLoaded, stage: stageOpen}
		t.state = textureLoading
		return
	}
	t.work = &textureWork{target: target, stage: stageRead}
	t.state = textureParsing
}

func (t *TextureParser) commit() {
	w := t.work
	switch {
	case w.images != nil:
		t.images = w.images
		t.header = w.images[0].Header()
		t.tag = w.tag
	case w.img != nil:
		t.images = []*resources.Image{w.img}
		t.header = w.img.Header()
		t.tag = w.tag
		t.stats = w.stats
	default:
		t.header = resources.TextureHeader{Format: resources.ImageFormatRGBA8888, Width: w.config.Width, Height: w.config.Height, NumMips: 1}
	}
	t.headerValid = true
	t.settle()
}

func (t *TextureParser) step(meta packages.Meta, flags core.PhaseFlags) error {
	w := t.work
	switch w.stage {
	case stageOpen:
		return t.openCooked()
	case stageImages:
		return t.readCookedImage()
	case stageRead:
		return t.readSource(meta, flags)
	case stageConfig:
		return t.decodeConfig()
	case stageDecode:
		return t.decodeFrame(flags)
	case stageTag:
		return t.readTag(meta, flags)
	case stageResize:
		return t.resize(meta)
	case stageMipmap:
		return t.mipmap()
	case stageCompress:
		return t.compress(meta, flags)
	}
	return fmt.Errorf("texture %s: unexpected stage %d", t.path(), w.stage)
}

func (t *TextureParser) openCooked() error {
	w := t.work
	if len(t.asset.entry.Tag) == 0 {
		return core.KeyError(core.MetaError, t.path(), "tag", errors.New("cooked texture has no tag data"))
	}
	w.tag = resources.TextureTag(t.asset.entry.Tag[0])

	data, err := loaders.ReadFile(t.asset.manager.fsys, t.asset.entry.CookedPath())
	if err != nil {
		return openError(t.path(), err)
	}
	w.reader = loaders.NewBinaryReader(data)
	n, err := w.reader.U32()
	if err != nil {
		return readError(t.path(), err)
	}
	if n == 0 {
		return core.Errorf(core.InvalidFormat, t.path(), "cooked texture holds no images")
	}
	w.numImages = int(n)
	w.stage = stageImages
	return nil
}

type cookedImageHeader struct {
	Format    uint32
	BPP       uint32
	NumFrames uint32
}

type cookedFrameHeader struct {
	NumMips uint32
	Flags   uint32
}

type cookedMipHeader struct {
	Width    uint32
	Height   uint32
	Stride   uint32
	DataSize uint32
}

func (t *TextureParser) readCookedImage() error {
	w := t.work
	r := w.reader

	var ih cookedImageHeader
	if err := r.Read(&ih); err != nil {
		return readError(t.path(), err)
	}
	img := &resources.Image{Format: resources.ImageFormat(ih.Format), BPP: int(ih.BPP)}
	if !img.Format.Valid() {
		return core.Errorf(core.ParseError, t.path(), "image format %d out of range", ih.Format)
	}
	for f := uint32(0); f < ih.NumFrames; f++ {
		var fh cookedFrameHeader
		if err := r.Read(&fh); err != nil {
			return readError(t.path(), err)
		}
		frame := resources.Frame{Flags: fh.Flags}
		for m := uint32(0); m < fh.NumMips; m++ {
			var mh cookedMipHeader
			if err := r.Read(&mh); err != nil {
				return readError(t.path(), err)
			}
			data, err := r.Bytes(int(mh.DataSize))
			if err != nil {
				return readError(t.path(), err)
			}
			if err := r.Align(4); err != nil {
				return readError(t.path(), err)
			}
			frame.Mips = append(frame.Mips, resources.Mipmap{
				Width:  int(mh.Width),
				Height: int(mh.Height),
				Stride: int(mh.Stride),
				Data:   data,
			})
		}
		img.Frames = append(img.Frames, frame)
	}
	if len(img.Frames) == 0 || len(img.Frames[0].Mips) == 0 {
		return core.Errorf(core.InvalidFormat, t.path(), "image %d has no pixel data", len(w.images))
	}

	w.images = append(w.images, img)
	if len(w.images) == w.numImages {
		w.stage = stageCommit
	}
	return nil
}

// bundleFrame names frame n of a "+0name.ext" style frame bundle.
func bundleFrame(file string, n int) string {
	dir, base := path.Split(file)
	return dir + fmt.Sprintf("+%d", n) + strings.TrimLeft(base[1:], "0123456789")
}

func isBundle(file string) bool {
	base := path.Base(file)
	return len(base) > 2 && base[0] == '+' && base[1] >= '0' && base[1] <= '9'
}

func (t *TextureParser) setSource(file string) error {
	w := t.work
	w.container = loaders.ContainerFor(file)
	if w.container == loaders.ContainerUnknown {
		return core.KeyError(core.InvalidFormat, t.path(), "Source.File", fmt.Errorf("%q: %w", file, loaders.ErrUnknownContainer))
	}
	w.bundle = isBundle(file)
	w.files = []string{file}
	if w.bundle {
		w.files[0] = bundleFrame(file, 0)
	}
	w.data = nil
	return nil
}

// readSource reads one source file per call.
func (t *TextureParser) readSource(meta packages.Meta, flags core.PhaseFlags) error {
	w := t.work
	if w.files == nil {
		file, err := meta.String("Source.File")
		if err != nil {
			return err
		}
		if err := t.setSource(file); err != nil {
			return err
		}
	}

	n := len(w.data)
	name := w.files[0]
	if w.bundle {
		name = bundleFrame(w.files[0], n)
	}
	data, err := loaders.ReadFile(t.asset.manager.fsys, name)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return core.Wrap(core.IOError, t.path(), err)
		}
		if n > 0 {
			// End of a frame bundle.
			return t.sourceRead()
		}
		fallback := t.asset.manager.opts.MissingTextureSource
		if flags.Any(core.PhaseNoDefaultMedia) || fallback == "" || name == fallback {
			return core.KeyError(core.MissingFile, t.path(), "Source.File", err)
		}
		core.LogWarn("texture %s: source %q not found, using %s", t.path(), name, fallback)
		return t.setSource(fallback)
	}
	if err := loaders.Sniff(w.container, data); err != nil {
		return core.Errorf(core.InvalidFormat, t.path(), "%s: %w", name, err)
	}
	w.data = append(w.data, data)
	if !w.bundle {
		return t.sourceRead()
	}
	return nil
}

func (t *TextureParser) sourceRead() error {
	w := t.work
	if w.target <= core.LevelInfo {
		w.stage = stageConfig
	} else {
		w.stage = stageDecode
	}
	return nil
}

func (t *TextureParser) checkFrameSize(n, width, height int) error {
	w := t.work
	if n == 0 {
		w.config.Width, w.config.Height = width, height
		return nil
	}
	if width != w.config.Width || height != w.config.Height {
		return core.Errorf(core.InvalidFormat, t.path(), "frame %d is %dx%d, frame 0 is %dx%d", n, width, height, w.config.Width, w.config.Height)
	}
	return nil
}

// decodeConfig reads the dimensions of one frame without decoding pixels.
func (t *TextureParser) decodeConfig() error {
	w := t.work
	cfg, err := loaders.DecodeConfig(w.container, w.data[w.next])
	if err != nil {
		return core.Errorf(core.InvalidFormat, t.path(), "frame %d: %w", w.next, err)
	}
	if err := t.checkFrameSize(w.next, cfg.Width, cfg.Height); err != nil {
		return err
	}
	w.next++
	if w.next == len(w.data) {
		w.stage = stageCommit
	}
	return nil
}

func (t *TextureParser) decodeFrame(flags core.PhaseFlags) error {
	w := t.work
	img, err := loaders.Decode(w.container, w.data[w.next])
	if err != nil {
		return core.Errorf(core.InvalidFormat, t.path(), "frame %d: %w", w.next, err)
	}
	b := img.Bounds()
	if err := t.checkFrameSize(w.next, b.Dx(), b.Dy()); err != nil {
		return err
	}
	w.frames = append(w.frames, img)
	w.next++
	if w.next < len(w.data) {
		return nil
	}
	w.data = nil
	if flags.Any(core.PhaseUnformatted) {
		w.img = buildImage(w.frames, nil)
		w.stage = stageCommit
		return nil
	}
	w.stage = stageTag
	return nil
}

func (t *TextureParser) readTag(meta packages.Meta, flags core.PhaseFlags) error {
	w := t.work
	for _, f := range []struct {
		key string
		tag resources.TextureTag
	}{
		{"Wrap.S", resources.TextureTagWrapS},
		{"Wrap.T", resources.TextureTagWrapT},
		{"Wrap.R", resources.TextureTagWrapR},
		{"Mipmap", resources.TextureTagMipmap},
		{"Filter", resources.TextureTagFilterBilinear},
	} {
		on, err := meta.Bool(f.key)
		if err != nil {
			return err
		}
		if on {
			w.tag |= f.tag
		}
	}
	if w.tag.Has(resources.TextureTagMipmap | resources.TextureTagFilterBilinear) {
		w.tag |= resources.TextureTagFilterTrilinear
	}

	// Mobile GPUs cannot wrap or mipmap non power of two textures.
	needsPow2 := w.tag&(resources.TextureTagWrapS|resources.TextureTagWrapT|resources.TextureTagWrapR|resources.TextureTagMipmap) != 0
	if needsPow2 && flags.Targets(t.asset.manager.opts.DefaultTarget).Any(core.TargetIOS) {
		if !math.IsPowerOf2(w.config.Width) || !math.IsPowerOf2(w.config.Height) {
			return core.Errorf(core.MetaError, t.path(), "%dx%d is not a power of 2 but is flagged for mipmap/wrap", w.config.Width, w.config.Height)
		}
	}
	w.stage = stageResize
	return nil
}

func (t *TextureParser) resize(meta packages.Meta) error {
	w := t.work
	on, err := meta.Bool("Resize")
	if err != nil {
		return err
	}
	if on {
		width, err := meta.Int("Resize.Width")
		if err != nil {
			return err
		}
		height, err := meta.Int("Resize.Height")
		if err != nil {
			return err
		}
		if width < 1 || height < 1 {
			return core.KeyError(core.MetaError, t.path(), "Resize.Width", fmt.Errorf("invalid size %dx%d", width, height))
		}
		if width != w.config.Width || height != w.config.Height {
			core.LogInfo("texture %s: resized from %dx%d to %dx%d", t.path(), w.config.Width, w.config.Height, width, height)
			for i, f := range w.frames {
				w.frames[i] = loaders.Resize(f, width, height)
			}
			w.config.Width, w.config.Height = width, height
		}
	}
	w.stage = stageMipmap
	return nil
}

func (t *TextureParser) mipmap() error {
	w := t.work
	if w.tag.Has(resources.TextureTagMipmap) {
		w.mips = make([][]*image.NRGBA, len(w.frames))
		for i, f := range w.frames {
			w.mips[i] = loaders.MipChain(f)
		}
	}
	w.img = buildImage(w.frames, w.mips)
	w.frames, w.mips = nil, nil
	w.stage = stageCompress
	return nil
}

func (t *TextureParser) compress(meta packages.Meta, flags core.PhaseFlags) error {
	w := t.work
	backend, format, err := t.compression(meta, flags)
	if err != nil {
		return err
	}
	w.stage = stageCommit
	if backend == "" {
		return nil
	}

	c, ok := t.asset.manager.compressors[backend]
	if !ok {
		return core.Errorf(core.CompilerError, t.path(), "no %s compression backend", backend)
	}
	out, err := c.Compress(w.img, format, flags.Any(core.PhaseFastCook))
	if err != nil {
		return core.Wrap(core.CompilerError, t.path(), err)
	}
	w.stats = CompressionStats{Backend: backend, Uncompressed: w.img.DataSize(), Compressed: out.DataSize()}
	core.LogInfo("texture %s: %s compressed %d bytes to %d bytes", t.path(), format, w.stats.Uncompressed, w.stats.Compressed)
	w.img = out
	return nil
}

// compression picks the backend and format for the request's target. An
// empty backend means the texture stays uncompressed.
func (t *TextureParser) compression(meta packages.Meta, flags core.PhaseFlags) (string, resources.ImageFormat, error) {
	enabled, err := meta.Bool("Compression.Enabled")
	if err != nil || !enabled {
		return "", 0, err
	}

	var backend string
	var format resources.ImageFormat
	if flags.Targets(t.asset.manager.opts.DefaultTarget).Any(core.TargetIOS) {
		mode, err := meta.String("Compression.PVR")
		if err != nil {
			return "", 0, err
		}
		switch mode {
		case "Disabled":
			return "", 0, nil
		case "PVRTC2":
			format = resources.ImageFormatPVR2
		case "PVRTC4":
			format = resources.ImageFormatPVR4
		default:
			return "", 0, core.KeyError(core.MetaError, t.path(), "Compression.PVR", fmt.Errorf("unknown mode %q", mode))
		}
		backend = "PVR"
	} else {
		mode, err := meta.String("Compression.DXT.Mode")
		if err != nil {
			return "", 0, err
		}
		switch mode {
		case "Disabled":
			return "", 0, nil
		case "DXT1":
			format = resources.ImageFormatDXT1
		case "DXT5":
			format = resources.ImageFormatDXT5
		default:
			return "", 0, core.KeyError(core.MetaError, t.path(), "Compression.DXT.Mode", fmt.Errorf("unknown mode %q", mode))
		}
		backend = "DXT"
	}

	h := t.work.img.Header()
	if !math.IsPowerOf2(h.Width) || !math.IsPowerOf2(h.Height) {
		return "", 0, core.Errorf(core.MetaError, t.path(), "%dx%d is flagged for compression but is not a power of two", h.Width, h.Height)
	}
	if backend == "PVR" && h.Width != h.Height {
		return "", 0, core.Errorf(core.MetaError, t.path(), "%dx%d is flagged for PVR compression but is not square", h.Width, h.Height)
	}
	return backend, format, nil
}

// buildImage packs decoded frames (and optional mip chains) as RGBA8888.
func buildImage(frames []*image.NRGBA, mips [][]*image.NRGBA) *resources.Image {
	img := &resources.Image{Format: resources.ImageFormatRGBA8888, BPP: 32}
	for i, f := range frames {
		chain := []*image.NRGBA{f}
		if mips != nil {
			chain = mips[i]
		}
		frame := resources.Frame{}
		for _, m := range chain {
			b := m.Bounds()
			data := make([]byte, b.Dx()*b.Dy()*4)
			for y := 0; y < b.Dy(); y++ {
				copy(data[y*b.Dx()*4:], m.Pix[y*m.Stride:y*m.Stride+b.Dx()*4])
			}
			frame.Mips = append(frame.Mips, resources.Mipmap{Width: b.Dx(), Height: b.Dy(), Stride: b.Dx() * 4, Data: data})
		}
		img.Frames = append(img.Frames, frame)
	}
	return img
}
