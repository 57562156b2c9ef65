package systems

import (
	"fmt"

	"github.com/spaghettifunk/kiln/engine/assets"
	"github.com/spaghettifunk/kiln/engine/core"
	"github.com/spaghettifunk/kiln/engine/packages"
	"github.com/spaghettifunk/kiln/engine/resources"
)

// CookOutput is a cooked package: its manifest and the binaries the
// manifest's entries point at, keyed by cooked path.
type CookOutput struct {
	Manifest *packages.Manifest
	Files    map[string][]byte
}

/**
 * @brief Cooks every authoring asset of the registry for one target.
 * Entries are emitted in id order, so a manifest built from them assigns the
 * same ids and cooked shader references stay valid.
 * @param name The name of the cooked manifest.
 * @param flags Target and cook options such as PhaseFastCook. Phase bits are ignored.
 */
func (p *Pipeline) Cook(name string, flags core.PhaseFlags) (*CookOutput, error) {
	flags = flags.Without(core.PhaseInfo | core.PhaseParse | core.PhaseLoad | core.PhaseUnload | core.PhaseTrim | core.PhaseCancel)
	out := &CookOutput{
		Manifest: &packages.Manifest{Name: name},
		Files:    make(map[string][]byte),
	}
	for _, e := range p.registry.Entries() {
		cfg, err := p.cookEntry(e, flags, out)
		if err != nil {
			core.LogError("failed to cook '%s': %s", e.Path, err)
			return nil, err
		}
		out.Manifest.Assets = append(out.Manifest.Assets, cfg)
	}
	core.LogInfo("cooked %d assets into '%s'", len(out.Manifest.Assets), name)
	return out, nil
}

func (p *Pipeline) cookEntry(e *packages.Entry, flags core.PhaseFlags, out *CookOutput) (packages.AssetConfig, error) {
	cfg := e.Config()
	if e.Cooked || e.Type == resources.AssetTypeShader {
		return cfg, nil
	}
	h, err := p.assetManager.Acquire(e.ID)
	if err != nil {
		return cfg, err
	}
	defer h.Release()

	cfg.Cooked = true
	cfg.Keys = nil
	cfg.Targets = nil

	switch e.Type {
	case resources.AssetTypeMaterial:
		// Only the description is cooked; textures are cooked as entries of their own.
		if err := h.MaterialLoader().Parser().Process(core.Infinite, flags|core.PhaseParse); err != nil {
			return cfg, err
		}
		data, imports, err := assets.CookMaterial(p.registry, h.Material())
		if err != nil {
			return cfg, core.Wrap(core.ErrorGeneric, e.Path, err)
		}
		cfg.Imports = imports
		out.Files[e.CookedPath()] = data
	case resources.AssetTypeTexture:
		if err := h.Process(core.Infinite, flags|core.PhaseLoad); err != nil {
			return cfg, err
		}
		t := h.Texture()
		cfg.Tag = t.CookedTag()
		out.Files[e.CookedPath()] = assets.CookTexture(t.Images())
		if s := t.CompressionStats(); s.Backend != "" {
			core.LogDebug("'%s': %s %d -> %d bytes", e.Path, s.Backend, s.Uncompressed, s.Compressed)
		}
	default:
		return cfg, fmt.Errorf("cannot cook asset type %s", e.Type)
	}
	return cfg, nil
}
