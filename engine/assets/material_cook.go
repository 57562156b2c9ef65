package assets

import (
	"fmt"
	gomath "math"

	"github.com/spaghettifunk/kiln/engine/assets/loaders"
	"github.com/spaghettifunk/kiln/engine/math"
	"github.com/spaghettifunk/kiln/engine/packages"
	"github.com/spaghettifunk/kiln/engine/resources"
)

func b2u(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

// CookMaterial serializes a description into the cooked stream layout and
// returns the import table the stream's slot indices refer to. Texture ids
// are looked up in registry and imported in slot order.
func CookMaterial(registry *packages.Registry, desc *resources.MaterialDescription) ([]byte, []string, error) {
	if desc.ShaderID < 0 || desc.ShaderID > gomath.MaxUint16 {
		return nil, nil, fmt.Errorf("shader id %d does not fit the cooked format", desc.ShaderID)
	}

	var w loaders.BinaryWriter
	w.Write(cookedHeader{
		ShaderID:    uint16(desc.ShaderID),
		Procedural:  b2u(desc.Procedural),
		Sort:        uint8(desc.Sort),
		BlendMode:   uint8(desc.BlendMode),
		DepthFunc:   uint8(desc.DepthFunc),
		AlphaTest:   uint8(desc.AlphaTest),
		AlphaValue:  desc.AlphaValue,
		DoubleSided: b2u(desc.DoubleSided),
		DepthWrite:  b2u(desc.DepthWrite),
	})

	var imports []string
	index := make(map[int]uint8)
	for i, slot := range desc.Textures {
		cs := cookedSlot{
			Import: resources.UnboundImport,
			FPS:    slot.FramesPerSecond,
			Clamp:  b2u(slot.ClampFrames),
			TCGen:  uint8(slot.TCGen),
		}
		if slot.TextureID >= 0 {
			idx, ok := index[slot.TextureID]
			if !ok {
				e, found := registry.Entry(slot.TextureID)
				if !found {
					return nil, nil, fmt.Errorf("slot %d: texture id %d is not registered", i, slot.TextureID)
				}
				idx = uint8(len(imports))
				imports = append(imports, e.Path)
				index[slot.TextureID] = idx
			}
			cs.Import = idx
		}
		for k, m := range slot.Mods {
			cs.Mods[k] = cookedTCMod{
				TypeS: uint8(m[0].Type), TypeT: uint8(m[1].Type),
				AmpS: m[0].Amplitude, AmpT: m[1].Amplitude,
				FreqS: m[0].Freq, FreqT: m[1].Freq,
				PhaseS: m[0].Phase, PhaseT: m[1].Phase,
				BaseS: m[0].Base, BaseT: m[1].Base,
			}
		}
		w.Write(cs)
	}

	for i := 0; i < resources.NumColors; i++ {
		wave := desc.ColorWaves[i]
		cc := cookedColor{
			WaveType:  uint8(wave.Type),
			Amplitude: wave.Amplitude,
			Freq:      wave.Freq,
			Phase:     wave.Phase,
			Base:      wave.Base,
		}
		for k := range cc.RGBA {
			for j, v := range desc.Colors[i][k] {
				cc.RGBA[k][j] = uint8(gomath.Round(float64(math.Clamp(v*255, 0, 255))))
			}
		}
		w.Write(cc)
	}
	return w.Bytes(), imports, nil
}
