package testbed

import (
	"github.com/spaghettifunk/kiln/engine"
	"github.com/spaghettifunk/kiln/engine/assets"
	"github.com/spaghettifunk/kiln/engine/core"
	"github.com/spaghettifunk/kiln/engine/resources"
	"github.com/spaghettifunk/kiln/engine/systems"
)

// PreviewGame keeps a set of assets loaded and reloads them whenever their
// sources change, the way an editor preview would.
type PreviewGame struct {
	*engine.Game
}

type gameState struct {
	flags core.PhaseFlags
	paths []string

	loaded map[string]*assets.Handle
	failed map[string]error
	// Paths to request on the next update.
	dirty   map[string]bool
	reloads int
}

/**
 * @brief Creates a preview of the given asset paths.
 * @param config The application config.
 * @param flags The phases and targets each asset is loaded with.
 * @param paths The assets to keep loaded. Empty previews every material.
 */
func NewPreviewGame(config *engine.ApplicationConfig, flags core.PhaseFlags, paths ...string) *PreviewGame {
	g := &PreviewGame{
		Game: &engine.Game{
			ApplicationConfig: config,
			State: &gameState{
				flags:  flags,
				paths:  paths,
				loaded: make(map[string]*assets.Handle),
				failed: make(map[string]error),
				dirty:  make(map[string]bool),
			},
		},
	}
	g.FnInitialize = g.Initialize
	g.FnUpdate = g.Update
	g.FnShutdown = g.Shutdown
	return g
}

func (g *PreviewGame) state() *gameState {
	return g.State.(*gameState)
}

func (g *PreviewGame) Initialize() error {
	core.LogInfo("initializing preview...")
	state := g.state()
	if len(state.paths) == 0 {
		for _, e := range g.Pipeline.Registry().Entries() {
			if e.Type == resources.AssetTypeMaterial {
				state.paths = append(state.paths, e.Path)
			}
		}
	}
	for _, path := range state.paths {
		state.dirty[path] = true
	}
	g.Pipeline.Events().Register(core.EventAssetChanged, g, g.onAssetChanged)
	return nil
}

func (g *PreviewGame) Update(deltaTime float64) error {
	state := g.state()
	for path := range state.dirty {
		if _, err := g.Pipeline.Request(path, state.flags, g.onRequestDone); err != nil {
			// Likely a full queue; try again next frame.
			core.LogWarn("failed to request '%s': %s", path, err)
			continue
		}
		delete(state.dirty, path)
	}
	return nil
}

func (g *PreviewGame) Shutdown() error {
	state := g.state()
	for path, h := range state.loaded {
		h.Release()
		delete(state.loaded, path)
	}
	g.Pipeline.Events().Unregister(core.EventAssetChanged, g)
	return nil
}

// Ready reports whether every previewed asset finished its latest request.
func (g *PreviewGame) Ready() bool {
	state := g.state()
	return len(state.dirty) == 0 && g.Pipeline.Pending() == 0
}

func (g *PreviewGame) Handle(path string) *assets.Handle {
	return g.state().loaded[path]
}

func (g *PreviewGame) Err(path string) error {
	return g.state().failed[path]
}

// Reloads counts requests made after the initial load.
func (g *PreviewGame) Reloads() int {
	return g.state().reloads
}

func (g *PreviewGame) onRequestDone(r *systems.Request, err error) {
	state := g.state()
	path := r.Handle.Path()
	if old, ok := state.loaded[path]; ok {
		old.Release()
	}
	if err != nil {
		core.LogError("preview of '%s' failed: %s", path, err)
		state.failed[path] = err
		delete(state.loaded, path)
		r.Handle.Release()
		return
	}
	delete(state.failed, path)
	state.loaded[path] = r.Handle
	core.LogInfo("'%s' ready after %d ticks", path, r.Ticks)
}

func (g *PreviewGame) onAssetChanged(code core.EventCode, sender interface{}, listener interface{}, data core.EventContext) bool {
	state := g.state()
	for _, path := range state.paths {
		if path == data.Path {
			state.dirty[path] = true
			state.reloads++
		}
	}
	return false
}
