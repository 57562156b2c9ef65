package systems

import (
	"io/fs"
	"os"

	"github.com/google/uuid"

	"github.com/spaghettifunk/kiln/engine/assets"
	"github.com/spaghettifunk/kiln/engine/core"
	"github.com/spaghettifunk/kiln/engine/packages"
	"github.com/spaghettifunk/kiln/engine/resources"
)

// Pipeline wires the registry, the asset manager and its collaborators
// together and drives requests one tick at a time. It is not safe for
// concurrent use; call it from one thread.
type Pipeline struct {
	config *PipelineConfig

	registry     *packages.Registry
	events       *core.EventBus
	metrics      *core.Metrics
	shaderSystem *ShaderSystem
	assetManager *assets.Manager
	requests     *RequestQueue
}

/**
 * @brief Creates a pipeline.
 * @param config The configuration. Nil uses DefaultPipelineConfig.
 * @param fsys The file system assets are read from. Nil uses config.Root on disk.
 */
func NewPipeline(config *PipelineConfig, fsys fs.FS) (*Pipeline, error) {
	if config == nil {
		config = DefaultPipelineConfig()
	} else if err := config.normalize(); err != nil {
		return nil, err
	}
	core.SetLogLevel(core.ParseLogLevel(config.LogLevel))
	if fsys == nil {
		fsys = os.DirFS(config.Root)
	}

	registry := packages.NewRegistry()
	for _, name := range config.Manifests {
		m, err := registry.LoadManifest(fsys, name)
		if err != nil {
			core.LogError("failed to load manifest '%s': %s", name, err)
			return nil, err
		}
		core.LogInfo("manifest '%s' loaded with %d assets", m.Name, len(m.Assets))
	}

	ss, err := NewShaderSystem(&ShaderSystemConfig{
		MaxShaderCount: config.MaxShaders,
	}, registry)
	if err != nil {
		return nil, err
	}

	events := core.NewEventBus()
	metrics := core.NewMetrics()
	rq, err := NewRequestQueue(config.MaxRequests, events, metrics)
	if err != nil {
		return nil, err
	}

	am := assets.NewManager(registry, fsys, ss, events, config.Options())
	am.RegisterCompressor(assets.DXTCompressor{})

	p := &Pipeline{
		config:       config,
		registry:     registry,
		events:       events,
		metrics:      metrics,
		shaderSystem: ss,
		assetManager: am,
		requests:     rq,
	}
	events.Register(core.EventAssetChanged, p, p.onAssetChanged)

	if config.Watch {
		if err := am.Watch(config.Root); err != nil {
			core.LogError("failed to watch '%s': %s", config.Root, err)
			return nil, err
		}
	}
	core.LogInfo("Pipeline initialized with %d assets", len(registry.Entries()))
	return p, nil
}

// A changed shader entry must be read again on its next load.
func (p *Pipeline) onAssetChanged(code core.EventCode, sender interface{}, listener interface{}, data core.EventContext) bool {
	if e, ok := p.registry.Entry(data.AssetID); ok && e.Type == resources.AssetTypeShader {
		p.shaderSystem.Forget(data.AssetID)
	}
	return false
}

func (p *Pipeline) Config() *PipelineConfig {
	return p.config
}

func (p *Pipeline) Registry() *packages.Registry {
	return p.registry
}

func (p *Pipeline) Assets() *assets.Manager {
	return p.assetManager
}

func (p *Pipeline) Events() *core.EventBus {
	return p.events
}

func (p *Pipeline) Metrics() *core.Metrics {
	return p.metrics
}

func (p *Pipeline) Shaders() *ShaderSystem {
	return p.shaderSystem
}

/**
 * @brief Acquires the asset at path and queues it for processing.
 * @param path The asset path as named in a manifest.
 * @param flags The phases and targets to process with.
 * @param onDone Optional completion callback. The request's handle belongs
 * to the caller once it runs.
 */
func (p *Pipeline) Request(path string, flags core.PhaseFlags, onDone func(r *Request, err error)) (*Request, error) {
	h, err := p.assetManager.AcquirePath(path)
	if err != nil {
		return nil, err
	}
	r, err := p.requests.Submit(h, flags, onDone)
	if err != nil {
		h.Release()
		return nil, err
	}
	return r, nil
}

// Cancel aborts a queued request and releases its handle.
func (p *Pipeline) Cancel(id uuid.UUID) error {
	r, ok := p.requests.byID[id]
	if !ok {
		return ErrUnknownRequest
	}
	err := p.requests.Cancel(id)
	r.Handle.Release()
	return err
}

// Pending is the number of requests that have not finished yet.
func (p *Pipeline) Pending() int {
	return p.requests.Pending()
}

/**
 * @brief Runs one update cycle: applies source changes, then drives queued
 * requests within ts.
 * @return The number of requests that finished.
 */
func (p *Pipeline) Tick(ts core.TimeSlice) int {
	clock := core.NewClock()
	clock.Start()
	p.assetManager.PollChanges()
	done := p.requests.Tick(ts)
	clock.Update()
	p.metrics.Update(clock.Elapsed())
	return done
}

// Flush ticks with the given per-tick unit budget until no request is
// pending, and returns the number of ticks it took.
func (p *Pipeline) Flush(unitsPerTick int) int {
	if unitsPerTick < 1 {
		unitsPerTick = 1
	}
	ticks := 0
	for p.Pending() > 0 {
		p.Tick(core.NewWorkSlice(unitsPerTick))
		ticks++
	}
	return ticks
}

/**
 * @brief Shuts the pipeline down, canceling requests and unloading every asset.
 */
func (p *Pipeline) Shutdown() error {
	if err := p.requests.Shutdown(); err != nil {
		return err
	}
	if err := p.assetManager.Shutdown(); err != nil {
		core.LogError("%s", err)
		return err
	}
	if err := p.shaderSystem.Shutdown(); err != nil {
		return err
	}
	p.events.Shutdown()
	core.LogInfo("Pipeline shut down")
	return nil
}
