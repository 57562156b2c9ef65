package assets

import (
	"errors"

	"github.com/spaghettifunk/kiln/engine/core"
	"github.com/spaghettifunk/kiln/engine/resources"
)

var errSlotRequired = errors.New("shader requires a texture in this slot")

// MaterialLoader drives a material's parser, its shader and then every
// texture it references, all from one time slice. Two cursors (source
// category and slot) let the fan-out suspend between any two slots.
type MaterialLoader struct {
	asset  *Asset
	parser *MaterialParser
	deps   *Dependencies

	level  core.Level
	target core.Level
	shader Shader

	source   resources.TextureSource
	slot     int
	animated bool

	// ShaderOnly skips the texture fan-out.
	ShaderOnly bool
}

func newMaterialLoader(a *Asset) *MaterialLoader {
	return &MaterialLoader{
		asset:  a,
		parser: newMaterialParser(a),
		deps:   NewDependencies(a.manager),
	}
}

func (l *MaterialLoader) Level() core.Level {
	return l.level
}

func (l *MaterialLoader) Parser() *MaterialParser {
	return l.parser
}

// Dependencies exposes the texture handles held by the loader.
func (l *MaterialLoader) Dependencies() *Dependencies {
	return l.deps
}

// Animated is true when a wave animates the material or a bound texture has
// several frames played at a non-zero rate.
func (l *MaterialLoader) Animated() bool {
	if d := l.parser.Material(); d != nil && d.Animated {
		return true
	}
	return l.animated
}

func (l *MaterialLoader) Process(ts core.TimeSlice, flags core.PhaseFlags) error {
	step := core.Plan(l.level, flags)
	switch step.Action {
	case core.ActionNone, core.ActionSatisfied:
		return nil
	case core.ActionCancel:
		l.cancel()
		return nil
	case core.ActionUnload:
		l.unload()
		return nil
	case core.ActionTrim:
		return l.deps.Each(func(h *Handle) error {
			return h.Process(core.Infinite, core.PhaseTrim)
		})
	case core.ActionRewind:
		// The description stays; only the fan-out starts over.
		l.level = core.LevelUnloaded
		l.rewind(step.Target)
	}
	if step.Target != l.target {
		l.rewind(step.Target)
	}

	if err := l.parser.Process(ts, flags); err != nil {
		return err
	}
	desc := l.parser.Material()

	if l.target >= core.LevelParsed && l.shader == nil {
		sh, err := l.asset.manager.shaders.LoadShader(ts, desc.ShaderID)
		if err != nil {
			return err
		}
		l.shader = sh
	}

	if !l.ShaderOnly {
		for ; l.source < resources.NumTextureSources; l.source, l.slot = l.source+1, 0 {
			for ; l.slot < resources.MaxTextureSlotsPerSource; l.slot++ {
				if err := l.processSlot(ts, flags, desc); err != nil {
					return err
				}
			}
		}
	}

	l.level = l.target
	return nil
}

func (l *MaterialLoader) processSlot(ts core.TimeSlice, flags core.PhaseFlags, desc *resources.MaterialDescription) error {
	slot := desc.Textures[l.slot]
	required := l.target >= core.LevelParsed && !desc.Procedural && l.shader != nil && l.shader.Requires(l.source, l.slot)

	if slot.TextureID < 0 {
		if required {
			return core.SlotError(core.MissingFile, l.asset.entry.Path, l.slot, errSlotRequired)
		}
		return nil
	}
	if _, held := l.deps.Get(slot.TextureID); !held {
		if _, ok := l.asset.manager.registry.Entry(slot.TextureID); !ok {
			if required {
				return core.SlotError(core.MissingFile, l.asset.entry.Path, l.slot, errSlotRequired)
			}
			return nil
		}
	}

	h, err := l.deps.Drive(slot.TextureID, ts, flags)
	if err != nil {
		return err
	}
	if tex := h.Texture(); tex != nil && tex.FrameCount() > 1 && slot.FramesPerSecond > 0 {
		l.animated = true
	}
	return nil
}

func (l *MaterialLoader) rewind(target core.Level) {
	l.target = target
	l.source = 0
	l.slot = 0
}

func (l *MaterialLoader) cancel() {
	l.deps.Cancel()
	l.deps.Release()
	_ = l.parser.Process(core.Infinite, core.PhaseCancel)
	l.reset()
}

func (l *MaterialLoader) unload() {
	l.deps.Release()
	_ = l.parser.Process(core.Infinite, core.PhaseUnload)
	l.reset()
}

func (l *MaterialLoader) reset() {
	l.shader = nil
	l.animated = false
	l.level = core.LevelUnloaded
	l.rewind(core.LevelUnloaded)
}
