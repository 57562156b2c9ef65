package assets

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strconv"
	"strings"

	"github.com/spaghettifunk/kiln/engine/assets/loaders"
	"github.com/spaghettifunk/kiln/engine/core"
	"github.com/spaghettifunk/kiln/engine/math"
	"github.com/spaghettifunk/kiln/engine/packages"
	"github.com/spaghettifunk/kiln/engine/resources"
)

// Cooked material field groups, in stream order. Each group is read whole.
type cookedHeader struct {
	ShaderID    uint16
	Procedural  uint8
	Sort        uint8
	BlendMode   uint8
	DepthFunc   uint8
	AlphaTest   uint8
	AlphaValue  uint8
	DoubleSided uint8
	DepthWrite  uint8
}

type cookedTCMod struct {
	TypeS, TypeT   uint8
	AmpS, AmpT     float32
	FreqS, FreqT   float32
	PhaseS, PhaseT float32
	BaseS, BaseT   float32
}

type cookedSlot struct {
	Import uint8
	FPS    float32
	Clamp  uint8
	TCGen  uint8
	Mods   [resources.NumTCMods]cookedTCMod
}

type cookedColor struct {
	RGBA      [resources.NumColorIndices][4]uint8
	WaveType  uint8
	Amplitude float32
	Freq      float32
	Phase     float32
	Base      float32
}

type materialStep func(meta packages.Meta, flags core.PhaseFlags) error

// MaterialParser builds a MaterialDescription from a cooked stream or from
// authoring metadata. Work is split into field groups; the description is
// only published once every group parsed.
type MaterialParser struct {
	asset *Asset
	level core.Level
	desc  *resources.MaterialDescription

	scratch *resources.MaterialDescription
	steps   []materialStep
	next    int
	reader  *loaders.BinaryReader
}

func newMaterialParser(a *Asset) *MaterialParser {
	return &MaterialParser{asset: a}
}

// Material is nil until parsing succeeded.
func (p *MaterialParser) Material() *resources.MaterialDescription {
	return p.desc
}

func (p *MaterialParser) Level() core.Level {
	return p.level
}

func (p *MaterialParser) Process(ts core.TimeSlice, flags core.PhaseFlags) error {
	step := core.Plan(p.level, flags)
	switch step.Action {
	case core.ActionNone, core.ActionSatisfied, core.ActionTrim:
		return nil
	case core.ActionCancel, core.ActionUnload:
		p.reset()
		p.desc = nil
		p.level = core.LevelUnloaded
		return nil
	}

	if p.steps == nil {
		p.begin()
	}
	meta := p.asset.meta(flags)
	for p.next < len(p.steps) {
		if !ts.Remaining() {
			return core.ErrPending
		}
		if err := p.steps[p.next](meta, flags); err != nil {
			p.reset()
			return err
		}
		ts.Spend(1)
		p.next++
	}

	p.scratch.Animated = p.scratch.HasWaves()
	p.desc = p.scratch
	p.reset()
	// Every request needs the whole description, so parsing always ends loaded.
	p.level = core.LevelLoaded
	return nil
}

func (p *MaterialParser) begin() {
	p.scratch = resources.NewMaterialDescription()
	p.next = 0
	if p.asset.entry.Cooked {
		p.steps = append(p.steps, p.openCooked, p.readCookedHeader)
		for i := 0; i < resources.MaxTextureSlotsPerSource; i++ {
			p.steps = append(p.steps, p.readCookedSlot(i))
		}
		for i := 0; i < resources.NumColors; i++ {
			p.steps = append(p.steps, p.readCookedColor(i))
		}
		return
	}
	p.steps = append(p.steps, p.parseHeader)
	for i := 0; i < resources.MaxTextureSlotsPerSource; i++ {
		p.steps = append(p.steps, p.parseSlot(i))
	}
	for i := 0; i < resources.NumColors; i++ {
		p.steps = append(p.steps, p.parseColor(i))
	}
}

func (p *MaterialParser) reset() {
	p.scratch = nil
	p.steps = nil
	p.next = 0
	p.reader = nil
}

func (p *MaterialParser) path() string {
	return p.asset.entry.Path
}

// openError maps a failed open to MissingFile or IOError.
func openError(asset string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return core.Wrap(core.MissingFile, asset, err)
	}
	return core.Wrap(core.IOError, asset, err)
}

// readError maps a failed read: truncation is a malformed stream, anything
// else is the device.
func readError(asset string, err error) error {
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return core.Wrap(core.ParseError, asset, fmt.Errorf("truncated stream: %w", err))
	}
	return core.Wrap(core.IOError, asset, err)
}

func withSlot(err error, slot int) error {
	var pe *core.ProcessError
	if errors.As(err, &pe) {
		pe.Slot = slot
	}
	return err
}

func (p *MaterialParser) badEnum(field string, v uint8) error {
	return core.KeyError(core.ParseError, p.path(), field, fmt.Errorf("enum value %d out of range", v))
}

func (p *MaterialParser) openCooked(packages.Meta, core.PhaseFlags) error {
	data, err := loaders.ReadFile(p.asset.manager.fsys, p.asset.entry.CookedPath())
	if err != nil {
		return openError(p.path(), err)
	}
	p.reader = loaders.NewBinaryReader(data)
	return nil
}

func (p *MaterialParser) readCookedHeader(packages.Meta, core.PhaseFlags) error {
	var h cookedHeader
	if err := p.reader.Read(&h); err != nil {
		return readError(p.path(), err)
	}
	d := p.scratch
	d.ShaderID = int(h.ShaderID)
	if e, ok := p.asset.manager.registry.Entry(d.ShaderID); ok {
		d.ShaderName = e.Path
	}
	d.Procedural = h.Procedural != 0
	d.Sort = resources.Sort(h.Sort)
	d.BlendMode = resources.BlendMode(h.BlendMode)
	d.DepthFunc = resources.DepthFunc(h.DepthFunc)
	d.AlphaTest = resources.AlphaTest(h.AlphaTest)
	d.AlphaValue = h.AlphaValue
	d.DoubleSided = h.DoubleSided != 0
	d.DepthWrite = h.DepthWrite != 0

	switch {
	case !d.Sort.Valid():
		return p.badEnum("Sort", h.Sort)
	case !d.BlendMode.Valid():
		return p.badEnum("BlendMode", h.BlendMode)
	case !d.DepthFunc.Valid():
		return p.badEnum("DepthFunc", h.DepthFunc)
	case !d.AlphaTest.Valid():
		return p.badEnum("AlphaTest", h.AlphaTest)
	}
	return nil
}

func (p *MaterialParser) readCookedSlot(i int) materialStep {
	return func(packages.Meta, core.PhaseFlags) error {
		var s cookedSlot
		if err := p.reader.Read(&s); err != nil {
			return withSlot(readError(p.path(), err), i)
		}
		slot := &p.scratch.Textures[i]
		slot.TextureID = -1
		if s.Import != resources.UnboundImport {
			id, err := p.asset.entry.ResolveImport(int(s.Import))
			if err != nil {
				return withSlot(err, i)
			}
			slot.TextureID = id
		}
		slot.FramesPerSecond = s.FPS
		slot.ClampFrames = s.Clamp != 0
		slot.TCGen = resources.TCGen(s.TCGen)
		if !slot.TCGen.Valid() {
			return withSlot(p.badEnum("tcGen", s.TCGen), i)
		}
		for k, m := range s.Mods {
			st := [2]resources.WaveType{resources.WaveType(m.TypeS), resources.WaveType(m.TypeT)}
			if !st[0].Valid() || !st[1].Valid() {
				return withSlot(p.badEnum("tcMod."+resources.TCModNames[k]+".Type", max(m.TypeS, m.TypeT)), i)
			}
			slot.Mods[k][0] = resources.WaveAnim{Type: st[0], Amplitude: m.AmpS, Freq: m.FreqS, Phase: m.PhaseS, Base: m.BaseS}
			slot.Mods[k][1] = resources.WaveAnim{Type: st[1], Amplitude: m.AmpT, Freq: m.FreqT, Phase: m.PhaseT, Base: m.BaseT}
		}
		return nil
	}
}

func (p *MaterialParser) readCookedColor(i int) materialStep {
	return func(packages.Meta, core.PhaseFlags) error {
		var c cookedColor
		if err := p.reader.Read(&c); err != nil {
			return readError(p.path(), err)
		}
		for k := range c.RGBA {
			for j, v := range c.RGBA[k] {
				p.scratch.Colors[i][k][j] = float32(v) / 255
			}
		}
		w := resources.WaveType(c.WaveType)
		if !w.Valid() {
			return p.badEnum(fmt.Sprintf("Color%d.Gen.Type", i), c.WaveType)
		}
		p.scratch.ColorWaves[i] = resources.WaveAnim{Type: w, Amplitude: c.Amplitude, Freq: c.Freq, Phase: c.Phase, Base: c.Base}
		return nil
	}
}

func (p *MaterialParser) parseHeader(meta packages.Meta, _ core.PhaseFlags) error {
	d := p.scratch
	reg := p.asset.manager.registry

	shaderPath, err := meta.String("Source.Shader")
	if err != nil {
		return err
	}
	shader, ok := reg.Resolve(shaderPath)
	if !ok {
		return core.KeyError(core.MissingFile, p.path(), "Source.Shader", fmt.Errorf("shader %q not found", shaderPath))
	}
	if shader.Type != resources.AssetTypeShader {
		return core.KeyError(core.MetaError, p.path(), "Source.Shader", fmt.Errorf("%q is a %s", shaderPath, shader.Type))
	}
	d.ShaderID = shader.ID
	d.ShaderName = shader.Path

	if d.Sort, err = packages.Enum[resources.Sort](meta, "Sort", resources.SortNames); err != nil {
		return err
	}
	if d.AlphaTest, err = packages.Enum[resources.AlphaTest](meta, "AlphaTest", resources.AlphaTestNames); err != nil {
		return err
	}
	alpha, err := meta.Int("AlphaTestVal")
	if err != nil {
		return err
	}
	d.AlphaValue = uint8(math.Clamp(alpha, 0, 255))

	if d.BlendMode, err = packages.Enum[resources.BlendMode](meta, "BlendMode", resources.BlendModeNames); err != nil {
		return err
	}
	if d.DoubleSided, err = meta.Bool("DoubleSided"); err != nil {
		return err
	}
	if d.DepthWrite, err = meta.Bool("DepthWrite"); err != nil {
		return err
	}
	if d.DepthFunc, err = packages.Enum[resources.DepthFunc](meta, "DepthFunc", resources.DepthFuncNames); err != nil {
		return err
	}
	d.Procedural, err = meta.Bool("ProceduralTextures")
	return err
}

func (p *MaterialParser) parseSlot(i int) materialStep {
	return func(meta packages.Meta, flags core.PhaseFlags) error {
		prefix := fmt.Sprintf("Texture%d.", i+1)
		slot := &p.scratch.Textures[i]

		ref, err := meta.String(prefix + "Source.Texture")
		if err != nil {
			return withSlot(err, i)
		}
		if slot.TextureID, err = p.resolveTexture(ref, prefix+"Source.Texture", i, flags); err != nil {
			return withSlot(err, i)
		}
		if slot.FramesPerSecond, err = meta.Float32(prefix + "Source.FramesPerSecond"); err != nil {
			return withSlot(err, i)
		}
		if slot.ClampFrames, err = meta.Bool(prefix + "Source.ClampTextureFrames"); err != nil {
			return withSlot(err, i)
		}
		if slot.TCGen, err = packages.Enum[resources.TCGen](meta, prefix+"tcGen", resources.TCGenNames); err != nil {
			return withSlot(err, i)
		}

		for k, name := range resources.TCModNames {
			key := prefix + "tcMod." + name + "."
			t, err := packages.Enum[resources.WaveType](meta, key+"Type", resources.WaveTypeNames)
			if err != nil {
				return withSlot(err, i)
			}
			var vals [4][2]float32
			for n, field := range []string{"Amplitude", "Frequency", "Phase", "Base"} {
				if vals[n], err = p.pair(meta, key+field); err != nil {
					return withSlot(err, i)
				}
			}
			for st := 0; st < 2; st++ {
				slot.Mods[k][st] = resources.WaveAnim{Type: t, Amplitude: vals[0][st], Freq: vals[1][st], Phase: vals[2][st], Base: vals[3][st]}
			}
		}
		return nil
	}
}

// resolveTexture applies the fallback policy for a slot reference. An empty
// reference stays unbound unless procedural substitution applies.
func (p *MaterialParser) resolveTexture(ref, key string, slot int, flags core.PhaseFlags) (int, error) {
	reg := p.asset.manager.registry
	opts := p.asset.manager.opts

	if ref == "" {
		if !p.scratch.Procedural || !opts.ProceduralSubstitution {
			return -1, nil
		}
		id := reg.ResolveID(opts.ProceduralTexture)
		if id < 0 {
			return -1, core.SlotError(core.MissingFile, p.path(), slot, fmt.Errorf("procedural texture %q not found", opts.ProceduralTexture))
		}
		return id, nil
	}

	e, ok := reg.Resolve(ref)
	if !ok && !flags.Any(core.PhaseNoDefaultMedia) {
		if e, ok = reg.Resolve(opts.MissingTexture); ok {
			core.LogWarn("material %s: texture %q not found, using %s", p.path(), ref, opts.MissingTexture)
		}
	}
	if !ok {
		return -1, core.KeyError(core.MissingFile, p.path(), key, fmt.Errorf("texture %q not found", ref))
	}
	if e.Type != resources.AssetTypeTexture {
		return -1, core.KeyError(core.MetaError, p.path(), key, fmt.Errorf("%q is a %s", e.Path, e.Type))
	}
	return e.ID, nil
}

// pair reads "s t". A single value applies to both coordinates.
func (p *MaterialParser) pair(meta packages.Meta, key string) ([2]float32, error) {
	var out [2]float32
	v, err := meta.String(key)
	if err != nil {
		return out, err
	}
	fields := strings.Fields(v)
	if len(fields) != 1 && len(fields) != 2 {
		return out, core.KeyError(core.MetaError, p.path(), key, fmt.Errorf("want 1 or 2 values, got %q", v))
	}
	for i := range out {
		field := fields[min(i, len(fields)-1)]
		f, err := strconv.ParseFloat(field, 32)
		if err != nil {
			return out, core.KeyError(core.MetaError, p.path(), key, fmt.Errorf("invalid number %q", field))
		}
		out[i] = float32(f)
	}
	return out, nil
}

func (p *MaterialParser) parseColor(i int) materialStep {
	return func(meta packages.Meta, _ core.PhaseFlags) error {
		for k := 0; k < resources.NumColorIndices; k++ {
			rgba, err := meta.Ints(fmt.Sprintf("Color%d.%c", i, 'A'+k), 4)
			if err != nil {
				return err
			}
			for j, v := range rgba {
				p.scratch.Colors[i][k][j] = float32(math.Clamp(v, 0, 255)) / 255
			}
		}

		gen := fmt.Sprintf("Color%d.Gen.", i)
		t, err := packages.Enum[resources.WaveType](meta, gen+"Type", resources.WaveTypeNames)
		if err != nil {
			return err
		}
		w := resources.WaveAnim{Type: t}
		for _, f := range []struct {
			key string
			dst *float32
		}{{"Amplitude", &w.Amplitude}, {"Frequency", &w.Freq}, {"Phase", &w.Phase}, {"Base", &w.Base}} {
			if *f.dst, err = meta.Float32(gen + f.key); err != nil {
				return err
			}
		}
		p.scratch.ColorWaves[i] = w
		return nil
	}
}
