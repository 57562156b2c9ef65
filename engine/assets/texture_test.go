package assets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/kiln/engine/core"
	"github.com/spaghettifunk/kiln/engine/packages"
	"github.com/spaghettifunk/kiln/engine/resources"
)

// cookTexture loads an authoring texture and registers its cooked form.
func cookTexture(t *testing.T, env *testEnv, from, to string) *Handle {
	t.Helper()
	src := env.acquire(from)
	require.NoError(t, src.Process(core.Infinite, core.PhaseLoad))
	id := env.add(packages.AssetConfig{Path: to, Type: "texture", Cooked: true, Tag: src.Texture().CookedTag()})
	entry, _ := env.reg.Entry(id)
	env.file(entry.CookedPath(), CookTexture(src.Texture().Images()))
	return src
}

func TestCookedTextureRoundTrip(t *testing.T) {
	env := newEnv(t)
	env.texture("Textures/Wall", "Textures/wall.tga", 4, 4, map[string]any{"Mipmap": true, "Wrap.S": true})
	src := cookTexture(t, env, "Textures/Wall", "Textures/Wall_Cooked")

	h := env.acquire("Textures/Wall_Cooked")
	// A cooked texture is loaded whole even for Info.
	require.NoError(t, h.Process(core.Infinite, core.PhaseInfo))
	tex := h.Texture()
	assert.True(t, tex.HeaderValid())
	assert.True(t, tex.ImagesValid())
	assert.Equal(t, src.Texture().Header(), tex.Header())
	assert.Equal(t, src.Texture().Tag(), tex.Tag())
	assert.Equal(t, src.Texture().Images(), tex.Images())
	assert.Equal(t, resources.TextureHeader{Format: resources.ImageFormatRGBA8888, Width: 4, Height: 4, NumMips: 3}, tex.Header())
	assert.True(t, tex.Tag().Has(resources.TextureTagWrapS|resources.TextureTagMipmap|resources.TextureTagFilterTrilinear))
}

func TestCookedTextureWithoutBudget(t *testing.T) {
	env := newEnv(t)
	env.texture("Textures/Wall", "Textures/wall.tga", 2, 2, nil)
	cookTexture(t, env, "Textures/Wall", "Textures/Wall_Cooked")

	h := env.acquire("Textures/Wall_Cooked")
	require.ErrorIs(t, h.Process(core.NewWorkSlice(0), core.PhaseInfo), core.ErrPending)
	assert.False(t, h.Texture().HeaderValid())
	require.ErrorIs(t, h.Process(core.NewWorkSlice(1), core.PhaseInfo), core.ErrPending)
	assert.False(t, h.Texture().HeaderValid())

	require.NoError(t, h.Process(core.NewWorkSlice(1), core.PhaseInfo))
	assert.True(t, h.Texture().HeaderValid())
}

func TestCookedTextureErrors(t *testing.T) {
	env := newEnv(t)
	env.add(packages.AssetConfig{Path: "Textures/NoTag", Type: "texture", Cooked: true})
	id := env.add(packages.AssetConfig{Path: "Textures/Empty", Type: "texture", Cooked: true, Tag: []uint32{0}})
	entry, _ := env.reg.Entry(id)
	env.file(entry.CookedPath(), CookTexture(nil))
	env.add(packages.AssetConfig{Path: "Textures/Gone", Type: "texture", Cooked: true, Tag: []uint32{0}})

	err := env.acquire("Textures/NoTag").Process(core.Infinite, core.PhaseLoad)
	require.ErrorIs(t, err, core.ErrMeta)
	assert.Equal(t, "tag", processError(t, err).Key)
	assert.ErrorIs(t, env.acquire("Textures/Empty").Process(core.Infinite, core.PhaseLoad), core.ErrInvalidFormat)
	assert.ErrorIs(t, env.acquire("Textures/Gone").Process(core.Infinite, core.PhaseLoad), core.ErrMissingFile)
}

func TestInfoReadsHeaderOnly(t *testing.T) {
	env := newEnv(t)
	env.texture("Textures/Sign", "Textures/sign.tga", 6, 4, nil)

	h := env.acquire("Textures/Sign")
	calls, err := drive(t, h, 1, core.PhaseInfo)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)

	tex := h.Texture()
	assert.True(t, tex.HeaderValid())
	assert.False(t, tex.ImagesValid())
	assert.Equal(t, core.LevelInfo, tex.level())
	assert.Equal(t, resources.TextureHeader{Format: resources.ImageFormatRGBA8888, Width: 6, Height: 4, NumMips: 1}, tex.Header())

	require.NoError(t, h.Process(core.Infinite, core.PhaseLoad))
	assert.True(t, tex.ImagesValid())
	assert.Equal(t, core.LevelLoaded, tex.level())
}

func TestFrameBundle(t *testing.T) {
	env := newEnv(t)
	for _, name := range []string{"Textures/+0fire.tga", "Textures/+1fire.tga", "Textures/+2fire.tga"} {
		env.file(name, tgaData(2, 2))
	}
	env.add(packages.AssetConfig{Path: "Textures/Fire", Type: "texture", Keys: textureKeys("Textures/+0fire.tga", nil)})

	h := env.acquire("Textures/Fire")
	require.NoError(t, h.Process(core.Infinite, core.PhaseLoad))
	assert.Equal(t, 3, h.Texture().FrameCount())
	for _, f := range h.Texture().Images()[0].Frames {
		assert.Len(t, f.Mips, 1)
	}
}

func TestFrameBundleSizeMismatch(t *testing.T) {
	env := newEnv(t)
	env.file("Textures/+0fire.tga", tgaData(2, 2))
	env.file("Textures/+1fire.tga", tgaData(4, 2))
	env.add(packages.AssetConfig{Path: "Textures/Fire", Type: "texture", Keys: textureKeys("Textures/+0fire.tga", nil)})

	h := env.acquire("Textures/Fire")
	assert.ErrorIs(t, h.Process(core.Infinite, core.PhaseInfo), core.ErrInvalidFormat)
	assert.ErrorIs(t, h.Process(core.Infinite, core.PhaseLoad), core.ErrInvalidFormat)
	assert.False(t, h.Texture().HeaderValid())
}

func TestDXTCompression(t *testing.T) {
	for _, tc := range []struct {
		mode      string
		format    resources.ImageFormat
		blockSize int
	}{
		{"DXT1", resources.ImageFormatDXT1, 8},
		{"DXT5", resources.ImageFormatDXT5, 16},
	} {
		t.Run(tc.mode, func(t *testing.T) {
			env := newEnv(t)
			env.texture("Textures/Wall", "Textures/wall.tga", 8, 8, map[string]any{
				"Mipmap":               true,
				"Compression.Enabled":  true,
				"Compression.DXT.Mode": tc.mode,
			})

			h := env.acquire("Textures/Wall")
			require.NoError(t, h.Process(core.Infinite, core.PhaseLoad|core.PhaseFastCook))
			tex := h.Texture()
			assert.Equal(t, resources.TextureHeader{Format: tc.format, Width: 8, Height: 8, NumMips: 4}, tex.Header())

			mips := tex.Images()[0].Frames[0].Mips
			assert.Len(t, mips[0].Data, 4*tc.blockSize)
			for _, m := range mips[1:] {
				assert.Len(t, m.Data, tc.blockSize)
			}
			stats := tex.CompressionStats()
			assert.Equal(t, "DXT", stats.Backend)
			assert.Equal(t, (64+16+4+1)*4, stats.Uncompressed)
			assert.Equal(t, 7*tc.blockSize, stats.Compressed)
		})
	}
}

func TestCompressionDisabled(t *testing.T) {
	env := newEnv(t)
	env.texture("Textures/Wall", "Textures/wall.tga", 8, 8, map[string]any{
		"Compression.Enabled":  true,
		"Compression.DXT.Mode": "Disabled",
	})
	h := env.acquire("Textures/Wall")
	require.NoError(t, h.Process(core.Infinite, core.PhaseLoad))
	assert.Equal(t, resources.ImageFormatRGBA8888, h.Texture().Header().Format)
	assert.Empty(t, h.Texture().CompressionStats().Backend)
}

func TestCompressionNeedsPowerOfTwo(t *testing.T) {
	env := newEnv(t)
	env.texture("Textures/Sign", "Textures/sign.tga", 6, 4, map[string]any{
		"Compression.Enabled":  true,
		"Compression.DXT.Mode": "DXT1",
	})
	err := env.acquire("Textures/Sign").Process(core.Infinite, core.PhaseLoad)
	assert.ErrorIs(t, err, core.ErrMeta)
}

func TestPVRWithoutBackend(t *testing.T) {
	env := newEnv(t)
	env.file("Textures/wall.tga", tgaData(8, 8))
	env.add(packages.AssetConfig{
		Path: "Textures/Wall",
		Type: "texture",
		Keys: textureKeys("Textures/wall.tga", map[string]any{
			"Compression.Enabled":  true,
			"Compression.DXT.Mode": "DXT1",
		}),
		Targets: map[string]map[string]any{
			"ipad": {"Compression.PVR": "PVRTC4"},
		},
	})

	h := env.acquire("Textures/Wall")
	err := h.Process(core.Infinite, core.PhaseLoad|core.TargetIPad)
	require.ErrorIs(t, err, core.ErrCompiler)
	assert.False(t, h.Texture().ImagesValid())

	// The same texture cooks fine for the desktop.
	require.NoError(t, h.Process(core.Infinite, core.PhaseLoad|core.TargetPC))
	assert.Equal(t, resources.ImageFormatDXT1, h.Texture().Header().Format)
}

func TestIOSNeedsPowerOfTwoForWrap(t *testing.T) {
	env := newEnv(t)
	env.texture("Textures/Sign", "Textures/sign.tga", 6, 4, map[string]any{"Wrap.S": true})

	h := env.acquire("Textures/Sign")
	require.ErrorIs(t, h.Process(core.Infinite, core.PhaseLoad|core.TargetIPhone), core.ErrMeta)
	require.NoError(t, h.Process(core.Infinite, core.PhaseLoad))
	assert.True(t, h.Texture().Tag().Has(resources.TextureTagWrapS))
}

func TestResize(t *testing.T) {
	env := newEnv(t)
	env.texture("Textures/Sign", "Textures/sign.tga", 6, 4, map[string]any{
		"Resize":        true,
		"Resize.Width":  8,
		"Resize.Height": 8,
	})
	env.texture("Textures/Bad", "Textures/bad.tga", 6, 4, map[string]any{
		"Resize":        true,
		"Resize.Width":  0,
		"Resize.Height": 8,
	})

	h := env.acquire("Textures/Sign")
	require.NoError(t, h.Process(core.Infinite, core.PhaseLoad))
	assert.Equal(t, 8, h.Texture().Header().Width)
	assert.Equal(t, 8, h.Texture().Header().Height)
	assert.Len(t, h.Texture().Images()[0].Frames[0].Mips[0].Data, 8*8*4)

	err := env.acquire("Textures/Bad").Process(core.Infinite, core.PhaseLoad)
	require.ErrorIs(t, err, core.ErrMeta)
	assert.Equal(t, "Resize.Width", processError(t, err).Key)
}

func TestUnformattedSkipsTagKeys(t *testing.T) {
	env := newEnv(t)
	env.file("Textures/raw.tga", tgaData(3, 3))
	env.add(packages.AssetConfig{Path: "Textures/Raw", Type: "texture", Keys: map[string]any{"Source.File": "Textures/raw.tga"}})

	h := env.acquire("Textures/Raw")
	require.NoError(t, h.Process(core.Infinite, core.PhaseLoad|core.PhaseUnformatted))
	assert.Equal(t, resources.TextureHeader{Format: resources.ImageFormatRGBA8888, Width: 3, Height: 3, NumMips: 1}, h.Texture().Header())
	assert.Equal(t, resources.TextureTag(0), h.Texture().Tag())
}

func TestTrimAndUnload(t *testing.T) {
	env := newEnv(t)
	env.texture("Textures/Wall", "Textures/wall.tga", 4, 4, nil)

	h := env.acquire("Textures/Wall")
	require.NoError(t, h.Process(core.Infinite, core.PhaseLoad))

	require.NoError(t, h.Process(core.Infinite, core.PhaseTrim))
	assert.False(t, h.Texture().ImagesValid())
	assert.True(t, h.Texture().HeaderValid())
	assert.Equal(t, core.LevelInfo, h.Texture().level())
	// Trimming a header-only texture is a no-op.
	require.NoError(t, h.Process(core.Infinite, core.PhaseTrim))

	require.NoError(t, h.Process(core.Infinite, core.PhaseUnload))
	assert.False(t, h.Texture().HeaderValid())
	assert.Equal(t, core.LevelUnloaded, h.Texture().level())
}

func TestMissingSourceFallback(t *testing.T) {
	env := newEnv(t)
	env.file("Textures/Missing_Texture.tga", tgaData(2, 2))
	env.add(packages.AssetConfig{Path: "Textures/Gone", Type: "texture", Keys: textureKeys("Textures/gone.tga", nil)})

	h := env.acquire("Textures/Gone")
	require.NoError(t, h.Process(core.Infinite, core.PhaseLoad))
	assert.Equal(t, 2, h.Texture().Header().Width)
	h.Release()

	h = env.acquire("Textures/Gone")
	err := h.Process(core.Infinite, core.PhaseLoad|core.PhaseNoDefaultMedia)
	require.ErrorIs(t, err, core.ErrMissingFile)
	assert.Equal(t, "Source.File", processError(t, err).Key)
}

func TestSourceContainerErrors(t *testing.T) {
	env := newEnv(t)
	env.file("Textures/fake.png", tgaData(2, 2))
	env.add(packages.AssetConfig{Path: "Textures/Fake", Type: "texture", Keys: textureKeys("Textures/fake.png", nil)})
	env.add(packages.AssetConfig{Path: "Textures/DDS", Type: "texture", Keys: textureKeys("Textures/wall.dds", nil)})

	assert.ErrorIs(t, env.acquire("Textures/Fake").Process(core.Infinite, core.PhaseInfo), core.ErrInvalidFormat)
	err := env.acquire("Textures/DDS").Process(core.Infinite, core.PhaseInfo)
	require.ErrorIs(t, err, core.ErrInvalidFormat)
	assert.Equal(t, "Source.File", processError(t, err).Key)
}

func TestTextureCancel(t *testing.T) {
	env := newEnv(t)
	env.texture("Textures/Wall", "Textures/wall.tga", 4, 4, nil)

	h := env.acquire("Textures/Wall")
	require.ErrorIs(t, h.Process(core.NewWorkSlice(2), core.PhaseLoad), core.ErrPending)
	require.NoError(t, h.Cancel())
	assert.False(t, h.Texture().HeaderValid())
	assert.Nil(t, h.Texture().work)

	require.NoError(t, h.Process(core.Infinite, core.PhaseLoad))
	images := h.Texture().Images()

	// Committed data survives a cancel; only the last release unloads it.
	require.NoError(t, h.Cancel())
	assert.Equal(t, images, h.Texture().Images())
}

func TestTextureErrorKeepsCommittedHeader(t *testing.T) {
	env := newEnv(t)
	env.texture("Textures/Wall", "Textures/wall.tga", 4, 4, nil)

	h := env.acquire("Textures/Wall")
	require.NoError(t, h.Process(core.Infinite, core.PhaseInfo))
	env.file("Textures/wall.tga", []byte("garbage"))

	require.ErrorIs(t, h.Process(core.Infinite, core.PhaseLoad), core.ErrInvalidFormat)
	assert.True(t, h.Texture().HeaderValid())
	assert.Equal(t, core.LevelInfo, h.Texture().level())
}
