package systems

import (
	"bytes"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/kiln/engine/core"
	"github.com/spaghettifunk/kiln/engine/packages"
	"github.com/spaghettifunk/kiln/engine/resources"
)

func loadNow(t *testing.T, p *Pipeline, path string) *Request {
	t.Helper()
	var doneErr error
	r, err := p.Request(path, core.PhaseLoad, func(r *Request, err error) { doneErr = err })
	require.NoError(t, err)
	t.Cleanup(r.Handle.Release)
	p.Flush(64)
	require.NoError(t, doneErr)
	return r
}

func TestCookedPackageLoadsTheSame(t *testing.T) {
	authoring := newTestPipeline(t, testPackage(t), "base.toml")
	out, err := authoring.Cook("base_pc", core.TargetPC|core.PhaseLoad)
	require.NoError(t, err)

	var paths []string
	for _, a := range out.Manifest.Assets {
		paths = append(paths, a.Path)
	}
	assert.Equal(t, []string{"Shaders/Lit", "Textures/Wall", "Textures/Wall_N", "Materials/Wall"}, paths)
	assert.False(t, out.Manifest.Assets[0].Cooked, "shaders are not cooked")
	for _, a := range out.Manifest.Assets[1:] {
		assert.True(t, a.Cooked, a.Path)
		assert.Nil(t, a.Keys, a.Path)
	}
	assert.Equal(t, []string{"Textures/Wall", "Textures/Wall_N"}, out.Manifest.Assets[3].Imports)
	assert.NotEmpty(t, out.Manifest.Assets[1].Tag)
	assert.Len(t, out.Files, 3)
	assert.Contains(t, out.Files, "Cooked/Materials/Wall.bin")
	assert.Empty(t, authoring.Assets().Live(), "cooking releases what it loaded")

	fsys := fstest.MapFS{}
	for name, data := range out.Files {
		fsys[name] = &fstest.MapFile{Data: data}
	}
	var buf bytes.Buffer
	require.NoError(t, packages.WriteManifest(&buf, out.Manifest))
	fsys["base_pc.toml"] = &fstest.MapFile{Data: buf.Bytes()}
	cooked := newTestPipeline(t, fsys, "base_pc.toml")

	want := loadNow(t, authoring, "Materials/Wall")
	got := loadNow(t, cooked, "Materials/Wall")
	assert.Equal(t, want.Handle.Material(), got.Handle.Material())

	for _, path := range []string{"Textures/Wall", "Textures/Wall_N"} {
		a := loadNow(t, authoring, path).Handle.Texture()
		c := loadNow(t, cooked, path).Handle.Texture()
		assert.Equal(t, a.Header(), c.Header(), path)
		assert.Equal(t, a.Images(), c.Images(), path)
	}
	n := loadNow(t, cooked, "Textures/Wall_N").Handle.Texture()
	assert.Equal(t, resources.ImageFormatDXT5, n.Header().Format)
	assert.Equal(t, 4, n.Header().NumMips)
}

func TestCookIsIdempotentForCookedEntries(t *testing.T) {
	authoring := newTestPipeline(t, testPackage(t), "base.toml")
	out, err := authoring.Cook("base_pc", core.TargetPC)
	require.NoError(t, err)

	fsys := fstest.MapFS{}
	for name, data := range out.Files {
		fsys[name] = &fstest.MapFile{Data: data}
	}
	var buf bytes.Buffer
	require.NoError(t, packages.WriteManifest(&buf, out.Manifest))
	fsys["base_pc.toml"] = &fstest.MapFile{Data: buf.Bytes()}

	again, err := newTestPipeline(t, fsys, "base_pc.toml").Cook("base_pc", core.TargetPC)
	require.NoError(t, err)
	assert.Empty(t, again.Files)
	assert.Equal(t, out.Manifest.Assets, again.Manifest.Assets)
}
