package systems

import (
	"fmt"

	"github.com/spaghettifunk/kiln/engine/assets"
	"github.com/spaghettifunk/kiln/engine/core"
	"github.com/spaghettifunk/kiln/engine/packages"
	"github.com/spaghettifunk/kiln/engine/resources"
)

/** @brief Configuration for the shader system. */
type ShaderSystemConfig struct {
	/** @brief The maximum number of shaders held in the system. */
	MaxShaderCount int
}

/** @brief The texture requirements of one shader pass. */
type ShaderInfo struct {
	ID   int
	Name string
	// required[source][slot] is set when the pass samples that slot.
	required [resources.NumTextureSources][resources.MaxTextureSlotsPerSource]bool
}

func (s *ShaderInfo) Requires(source resources.TextureSource, slot int) bool {
	if source >= resources.NumTextureSources || slot < 0 || slot >= resources.MaxTextureSlotsPerSource {
		return false
	}
	return s.required[source][slot]
}

// ShaderSystem reads shader entries from the registry and answers which
// texture slots each shader needs. Shader entries carry boolean
// Requires.Texture<N> keys, N counting slots from 1; a missing key is false.
type ShaderSystem struct {
	// This system's configuration.
	Config *ShaderSystemConfig
	// Loaded shaders by asset id.
	Shaders map[int]*ShaderInfo

	registry *packages.Registry
}

func NewShaderSystem(config *ShaderSystemConfig, registry *packages.Registry) (*ShaderSystem, error) {
	if config.MaxShaderCount <= 0 {
		err := fmt.Errorf("NewShaderSystem - config.MaxShaderCount must be greater than 0")
		core.LogError("%s", err)
		return nil, err
	}
	return &ShaderSystem{
		Config:   config,
		Shaders:  make(map[int]*ShaderInfo),
		registry: registry,
	}, nil
}

/**
 * @brief Loads the shader with the given asset id, or returns the cached one.
 * Reading a shader costs one unit of the time slice. Per-target
 * overrides of Requires.Texture<N> are ignored.
 *
 * @param ts The time slice to spend.
 * @param id The asset id of the shader entry.
 */
func (shaderSystem *ShaderSystem) LoadShader(ts core.TimeSlice, id int) (assets.Shader, error) {
	if sh, ok := shaderSystem.Shaders[id]; ok {
		return sh, nil
	}
	if !ts.Remaining() {
		return nil, core.ErrPending
	}

	entry, ok := shaderSystem.registry.Entry(id)
	if !ok {
		return nil, core.Errorf(core.MissingFile, "", "no shader with id %d", id)
	}
	if entry.Type != resources.AssetTypeShader {
		return nil, core.Errorf(core.MissingFile, entry.Path, "asset is a %s, not a shader", entry.Type)
	}
	if len(shaderSystem.Shaders) >= shaderSystem.Config.MaxShaderCount {
		return nil, core.Errorf(core.ErrorGeneric, entry.Path, "shader system is full (%d shaders)", shaderSystem.Config.MaxShaderCount)
	}

	sh := &ShaderInfo{ID: id, Name: entry.Path}
	// Shaders are cached by id and shared by every target, so slot
	// requirements come from the base keys only.
	meta := entry.Meta(core.TargetDefault)
	for slot := 0; slot < resources.MaxTextureSlotsPerSource; slot++ {
		key := fmt.Sprintf("Requires.Texture%d", slot+1)
		if !meta.Has(key) {
			continue
		}
		v, err := meta.Bool(key)
		if err != nil {
			return nil, err
		}
		sh.required[resources.TextureSourceTexture][slot] = v
	}
	ts.Spend(1)

	shaderSystem.Shaders[id] = sh
	core.LogDebug("shader '%s' loaded", entry.Path)
	return sh, nil
}

// Forget drops a cached shader so the next load reads its entry again.
func (shaderSystem *ShaderSystem) Forget(id int) {
	delete(shaderSystem.Shaders, id)
}

/**
 * @brief Shuts down the shader system.
 */
func (shaderSystem *ShaderSystem) Shutdown() error {
	shaderSystem.Shaders = make(map[int]*ShaderInfo)
	return nil
}
