package assets

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"io/fs"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/kiln/engine/assets/loaders"
	"github.com/spaghettifunk/kiln/engine/core"
	"github.com/spaghettifunk/kiln/engine/packages"
	"github.com/spaghettifunk/kiln/engine/resources"
)

// countingFS records every open so tests can assert on I/O.
type countingFS struct {
	files fstest.MapFS
	opens map[string]int
}

func (c *countingFS) Open(name string) (fs.File, error) {
	c.opens[name]++
	return c.files.Open(name)
}

func (c *countingFS) total() int {
	n := 0
	for _, v := range c.opens {
		n += v
	}
	return n
}

type fakeShader struct {
	required [resources.MaxTextureSlotsPerSource]bool
}

func (s *fakeShader) Requires(source resources.TextureSource, slot int) bool {
	return source == resources.TextureSourceTexture && s.required[slot]
}

// fakeShaders costs one unit per load, like a real shader system.
type fakeShaders struct {
	shaders map[int]*fakeShader
	loads   int
}

func (f *fakeShaders) LoadShader(ts core.TimeSlice, id int) (Shader, error) {
	if !ts.Remaining() {
		return nil, core.ErrPending
	}
	ts.Spend(1)
	f.loads++
	if sh, ok := f.shaders[id]; ok {
		return sh, nil
	}
	return &fakeShader{}, nil
}

type testEnv struct {
	t       *testing.T
	fsys    *countingFS
	reg     *packages.Registry
	shaders *fakeShaders
	events  *core.EventBus
	opts    Options
	m       *Manager
}

func newEnv(t *testing.T) *testEnv {
	return &testEnv{
		t:       t,
		fsys:    &countingFS{files: fstest.MapFS{}, opens: make(map[string]int)},
		reg:     packages.NewRegistry(),
		shaders: &fakeShaders{shaders: make(map[int]*fakeShader)},
		events:  core.NewEventBus(),
		opts: Options{
			ProceduralSubstitution: true,
			ProceduralTexture:      "Sys/T_Procedural",
			MissingTexture:         "Sys/T_Missing",
			MissingTextureSource:   "Textures/Missing_Texture.tga",
		},
	}
}

func (e *testEnv) manager() *Manager {
	if e.m == nil {
		e.m = NewManager(e.reg, e.fsys, e.shaders, e.events, e.opts)
		e.m.RegisterCompressor(DXTCompressor{})
	}
	return e.m
}

func (e *testEnv) add(cfg packages.AssetConfig) int {
	e.t.Helper()
	entry, err := e.reg.Add(cfg)
	require.NoError(e.t, err)
	return entry.ID
}

func (e *testEnv) file(name string, data []byte) {
	e.fsys.files[name] = &fstest.MapFile{Data: data}
}

func (e *testEnv) acquire(path string) *Handle {
	e.t.Helper()
	h, err := e.manager().AcquirePath(path)
	require.NoError(e.t, err)
	return h
}

func (e *testEnv) shader(path string, required ...int) int {
	id := e.add(packages.AssetConfig{Path: path, Type: "shader"})
	sh := &fakeShader{}
	for _, slot := range required {
		sh.required[slot] = true
	}
	e.shaders.shaders[id] = sh
	return id
}

// texture registers an authoring texture backed by a w x h TGA file.
func (e *testEnv) texture(path, file string, w, h int, keys map[string]any) int {
	e.file(file, tgaData(w, h))
	return e.add(packages.AssetConfig{Path: path, Type: "texture", Keys: textureKeys(file, keys)})
}

// material registers an authoring material bound to textures in slot order.
func (e *testEnv) material(path, shader string, textures []string, keys map[string]any) int {
	return e.add(packages.AssetConfig{Path: path, Type: "material", Keys: materialKeys(shader, textures, keys)})
}

// cookedMaterial cooks desc and registers it under path.
func (e *testEnv) cookedMaterial(path string, desc *resources.MaterialDescription) int {
	e.t.Helper()
	data, imports, err := CookMaterial(e.reg, desc)
	require.NoError(e.t, err)
	id := e.add(packages.AssetConfig{Path: path, Type: "material", Cooked: true, Imports: imports})
	entry, _ := e.reg.Entry(id)
	e.file(entry.CookedPath(), data)
	return id
}

func testImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 40), G: uint8(y * 40), B: 200, A: 255})
		}
	}
	return img
}

func tgaData(w, h int) []byte {
	return loaders.EncodeTGA(testImage(w, h))
}

func textureKeys(file string, extra map[string]any) map[string]any {
	keys := map[string]any{
		"Source.File":         file,
		"Wrap.S":              false,
		"Wrap.T":              false,
		"Wrap.R":              false,
		"Mipmap":              false,
		"Filter":              true,
		"Resize":              false,
		"Compression.Enabled": false,
	}
	for k, v := range extra {
		if v == nil {
			delete(keys, k)
			continue
		}
		keys[k] = v
	}
	return keys
}

func materialKeys(shader string, textures []string, extra map[string]any) map[string]any {
	keys := map[string]any{
		"Source.Shader":      shader,
		"Sort":               "Solid",
		"AlphaTest":          "None",
		"AlphaTestVal":       0,
		"BlendMode":          "None",
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
		keys[fmt.Sprintf("Color%d.A", i)] = "255 255 255 255"
		keys[fmt.Sprintf("Color%d.B", i)] = "0 0 0 255"
		gen := fmt.Sprintf("Color%d.Gen.", i)
		keys[gen+"Type"] = "Identity"
		for _, f := range []string{"Amplitude", "Frequency", "Phase", "Base"} {
			keys[gen+f] = 0
		}
	}
	for k, v := range extra {
		if v == nil {
			delete(keys, k)
			continue
		}
		keys[k] = v
	}
	return keys
}

// drive calls Process with units of budget per call until it stops
// returning Pending, and reports how many calls it took.
func drive(t *testing.T, p Processor, units int, flags core.PhaseFlags) (int, error) {
	t.Helper()
	for calls := 1; calls < 10000; calls++ {
		err := p.Process(core.NewWorkSlice(units), flags)
		if err != core.ErrPending {
			return calls, err
		}
	}
	t.Fatal("processor never finished")
	return 0, nil
}

func processError(t *testing.T, err error) *core.ProcessError {
	t.Helper()
	var pe *core.ProcessError
	require.True(t, errors.As(err, &pe), "expected a *core.ProcessError, got %T: %v", err, err)
	return pe
}
