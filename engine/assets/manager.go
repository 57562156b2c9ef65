package assets

import (
	"errors"
	"fmt"
	"io/fs"
	"sort"

	"github.com/spaghettifunk/kiln/engine/core"
	"github.com/spaghettifunk/kiln/engine/packages"
	"github.com/spaghettifunk/kiln/engine/resources"
)

// Processor is the single entry point every asset type implements. A nil
// error is Success, core.ErrPending means call again with more budget, any
// other error is terminal for this attempt.
type Processor interface {
	Process(ts core.TimeSlice, flags core.PhaseFlags) error
}

// Options are the pipeline policies the processors consult.
type Options struct {
	// ProceduralSubstitution binds ProceduralTexture to empty slots of
	// procedural materials. Engine-internal packages turn it off.
	ProceduralSubstitution bool
	ProceduralTexture      string
	// MissingTexture replaces unresolvable material texture references.
	MissingTexture string
	// MissingTextureSource replaces a texture source file that does not exist.
	MissingTextureSource string
	// DefaultTarget is used when a request names no target platform.
	DefaultTarget core.PhaseFlags
}

// Manager owns the table of live assets. Assets are created on first
// acquisition and destroyed when their last handle is released.
type Manager struct {
	registry    *packages.Registry
	fsys        fs.FS
	opts        Options
	shaders     ShaderLoader
	compressors map[string]Compressor
	events      *core.EventBus

	assets map[int]*Asset

	watcher *Watcher
}

func NewManager(registry *packages.Registry, fsys fs.FS, shaders ShaderLoader, events *core.EventBus, opts Options) *Manager {
	if events == nil {
		events = core.NewEventBus()
	}
	if opts.DefaultTarget&core.TargetMask == 0 {
		opts.DefaultTarget = core.TargetDefault
	}
	return &Manager{
		registry:    registry,
		fsys:        fsys,
		opts:        opts,
		shaders:     shaders,
		compressors: make(map[string]Compressor),
		events:      events,
		assets:      make(map[int]*Asset),
	}
}

// RegisterCompressor makes a compression backend available under its name.
func (m *Manager) RegisterCompressor(c Compressor) {
	m.compressors[c.Name()] = c
}

func (m *Manager) Registry() *packages.Registry {
	return m.registry
}

// Acquire returns a new handle to the asset with the given id, creating the
// asset if nobody holds it yet.
func (m *Manager) Acquire(id int) (*Handle, error) {
	if a, ok := m.assets[id]; ok {
		a.refs++
		return &Handle{asset: a}, nil
	}
	entry, ok := m.registry.Entry(id)
	if !ok {
		return nil, core.Errorf(core.MissingFile, "", "no asset with id %d", id)
	}
	a, err := newAsset(m, entry)
	if err != nil {
		return nil, err
	}
	a.refs = 1
	m.assets[id] = a
	return &Handle{asset: a}, nil
}

func (m *Manager) AcquirePath(path string) (*Handle, error) {
	id := m.registry.ResolveID(path)
	if id < 0 {
		return nil, core.Errorf(core.MissingFile, path, "not in any package")
	}
	return m.Acquire(id)
}

// Live returns the ids of live assets in ascending order.
func (m *Manager) Live() []int {
	ids := make([]int, 0, len(m.assets))
	for id := range m.assets {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func (m *Manager) release(a *Asset) {
	a.refs--
	if a.refs > 0 {
		return
	}
	// Cancel first so in-flight sub-handles are released before the unload.
	_ = a.Process(core.Infinite, core.PhaseCancel)
	_ = a.Process(core.Infinite, core.PhaseUnload)
	delete(m.assets, a.entry.ID)
	m.events.Fire(core.EventAssetReleased, m, core.EventContext{AssetID: a.entry.ID, Path: a.entry.Path})
}

// Shutdown stops watching and force-unloads every live asset.
func (m *Manager) Shutdown() error {
	var err error
	if m.watcher != nil {
		err = m.watcher.Close()
		m.watcher = nil
	}
	for _, id := range m.Live() {
		// Cancelling a material may already have released its textures.
		a, ok := m.assets[id]
		if !ok {
			continue
		}
		_ = a.Process(core.Infinite, core.PhaseCancel)
		_ = a.Process(core.Infinite, core.PhaseUnload)
		delete(m.assets, id)
	}
	return err
}

// Asset is the shared state behind every handle to one asset id. The
// processor variant is fixed by the entry type.
type Asset struct {
	manager *Manager
	entry   *packages.Entry
	refs    int

	material *MaterialLoader
	texture  *TextureParser
	shader   *shaderProcessor
}

func newAsset(m *Manager, entry *packages.Entry) (*Asset, error) {
	a := &Asset{manager: m, entry: entry}
	switch entry.Type {
	case resources.AssetTypeMaterial:
		a.material = newMaterialLoader(a)
	case resources.AssetTypeTexture:
		a.texture = newTextureParser(a)
	case resources.AssetTypeShader:
		a.shader = &shaderProcessor{asset: a}
	default:
		return nil, core.Errorf(core.ErrorGeneric, entry.Path, "no processor for asset type %s", entry.Type)
	}
	return a, nil
}

func (a *Asset) Process(ts core.TimeSlice, flags core.PhaseFlags) error {
	switch a.entry.Type {
	case resources.AssetTypeMaterial:
		return a.material.Process(ts, flags)
	case resources.AssetTypeTexture:
		return a.texture.Process(ts, flags)
	case resources.AssetTypeShader:
		return a.shader.Process(ts, flags)
	}
	panic(fmt.Sprintf("asset %q: unhandled type %s", a.entry.Path, a.entry.Type))
}

func (a *Asset) meta(flags core.PhaseFlags) packages.Meta {
	return a.entry.Meta(flags.Targets(a.manager.opts.DefaultTarget))
}

var errReleased = errors.New("handle already released")

// Handle is an owning reference to an asset. Copies must not be released
// twice; Release is idempotent on the same handle value.
type Handle struct {
	asset    *Asset
	released bool
}

func (h *Handle) ID() int {
	return h.asset.entry.ID
}

func (h *Handle) Path() string {
	return h.asset.entry.Path
}

func (h *Handle) Type() resources.AssetType {
	return h.asset.entry.Type
}

func (h *Handle) Process(ts core.TimeSlice, flags core.PhaseFlags) error {
	if h.released {
		return core.Wrap(core.ErrorGeneric, h.asset.entry.Path, errReleased)
	}
	return h.asset.Process(ts, flags)
}

// Cancel is Process(core.Infinite, core.PhaseCancel).
func (h *Handle) Cancel() error {
	return h.Process(core.Infinite, core.PhaseCancel)
}

// Release drops this reference. The last release cancels and unloads the asset.
func (h *Handle) Release() {
	if h.released {
		return
	}
	h.released = true
	h.asset.manager.release(h.asset)
}

// Material returns the parsed description, or nil for non-materials and
// materials that are not parsed yet.
func (h *Handle) Material() *resources.MaterialDescription {
	if h.asset.material == nil {
		return nil
	}
	return h.asset.material.parser.Material()
}

// MaterialLoader is nil for non-materials.
func (h *Handle) MaterialLoader() *MaterialLoader {
	return h.asset.material
}

// Texture is nil for non-textures.
func (h *Handle) Texture() *TextureParser {
	return h.asset.texture
}

// Shader returns the loaded shader of a shader asset.
func (h *Handle) Shader() Shader {
	if h.asset.shader == nil {
		return nil
	}
	return h.asset.shader.shader
}
