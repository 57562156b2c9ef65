package systems

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/kiln/engine/assets/loaders"
	"github.com/spaghettifunk/kiln/engine/packages"
	"github.com/spaghettifunk/kiln/engine/resources"
)

func tga(w, h int) []byte {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 50), G: uint8(y * 50), B: 90, A: 255})
		}
	}
	return loaders.EncodeTGA(img)
}

func textureConfig(path, file string, extra map[string]any) packages.AssetConfig {
	keys := map[string]any{
		"Source.File":         file,
		"Wrap.S":              true,
		"Wrap.T":              true,
		"Wrap.R":              false,
		"Mipmap":              true,
		"Filter":              true,
		"Resize":              false,
		"Compression.Enabled": false,
	}
	for k, v := range extra {
		keys[k] = v
	}
	return packages.AssetConfig{Path: path, Type: "texture", Keys: keys}
}

func materialConfig(path, shader string, textures ...string) packages.AssetConfig {
	keys := map[string]any{
		"Source.Shader":      shader,
		"Sort":               "Translucent",
		"AlphaTest":          "GEqual",
		"AlphaTestVal":       128,
		"BlendMode":          "Alpha",
		"DoubleSided":        false,
		"DepthWrite":         true,
		"DepthFunc":          "LEqual",
		"ProceduralTextures": false,
	}
	for i := 0; i < resources.MaxTextureSlotsPerSource; i++ {
		prefix := fmt.Sprintf("Texture%d.", i+1)
		ref := ""
		if i < len(textures) {
			ref = textures[i]
		}
		keys[prefix+"Source.Texture"] = ref
		keys[prefix+"Source.FramesPerSecond"] = 0
		keys[prefix+"Source.ClampTextureFrames"] = false
		keys[prefix+"tcGen"] = "Vertex"
		for _, mod := range resources.TCModNames {
			keys[prefix+"tcMod."+mod+".Type"] = "Identity"
			for _, f := range []string{"Amplitude", "Frequency", "Phase", "Base"} {
				keys[prefix+"tcMod."+mod+"."+f] = "0"
			}
		}
	}
	for i := 0; i < resources.NumColors; i++ {
		keys[fmt.Sprintf("Color%d.A", i)] = "255 200 100 255"
		keys[fmt.Sprintf("Color%d.B", i)] = "0 0 0 255"
		gen := fmt.Sprintf("Color%d.Gen.", i)
		keys[gen+"Type"] = "Identity"
		for _, f := range []string{"Amplitude", "Frequency", "Phase", "Base"} {
			keys[gen+f] = 0
		}
	}
	return packages.AssetConfig{Path: path, Type: "material", Keys: keys}
}

// testPackage is a small authoring package: a shader that needs slot 1, two
// textures and a material using both.
func testPackage(t *testing.T) fstest.MapFS {
	t.Helper()
	m := &packages.Manifest{
		Name: "base",
		Assets: []packages.AssetConfig{
			{Path: "Shaders/Lit", Type: "shader", Keys: map[string]any{"Requires.Texture1": true}},
			textureConfig("Textures/Wall", "Textures/wall.tga", nil),
			textureConfig("Textures/Wall_N", "Textures/wall_n.tga", map[string]any{
				"Compression.Enabled":  true,
				"Compression.DXT.Mode": "DXT5",
			}),
			materialConfig("Materials/Wall", "Shaders/Lit", "Textures/Wall", "Textures/Wall_N"),
		},
	}
	var buf bytes.Buffer
	require.NoError(t, packages.WriteManifest(&buf, m))
	return fstest.MapFS{
		"base.toml":           {Data: buf.Bytes()},
		"Textures/wall.tga":   {Data: tga(8, 8)},
		"Textures/wall_n.tga": {Data: tga(8, 8)},
	}
}

func newTestPipeline(t *testing.T, fsys fstest.MapFS, manifests ...string) *Pipeline {
	t.Helper()
	config := DefaultPipelineConfig()
	config.Manifests = manifests
	config.MaxRequests = 4
	p, err := NewPipeline(config, fsys)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Shutdown() })
	return p
}
