package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/spaghettifunk/kiln/engine/core"
	"github.com/spaghettifunk/kiln/engine/systems"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
)

// Engine ticks a pipeline at a fixed frame rate on behalf of a Game, giving
// each frame a bounded slice of wall-clock time for asset work.
type Engine struct {
	currentStage Stage
	gameInstance *Game
	pipeline     *systems.Pipeline
	clock        *core.Clock
	lastTime     time.Duration
	frameCount   uint64
}

func New(g *Game) (*Engine, error) {
	if g == nil || g.ApplicationConfig == nil {
		return nil, fmt.Errorf("engine needs a game with an application config")
	}
	p, err := systems.NewPipeline(g.ApplicationConfig.Pipeline, g.ApplicationConfig.FS)
	if err != nil {
		core.LogError("%s", err)
		return nil, err
	}
	g.Pipeline = p

	return &Engine{
		currentStage: EngineStageUninitialized,
		gameInstance: g,
		pipeline:     p,
		clock:        core.NewClock(),
	}, nil
}

func (e *Engine) Stage() Stage {
	return e.currentStage
}

func (e *Engine) Pipeline() *systems.Pipeline {
	return e.pipeline
}

func (e *Engine) Initialize() error {
	if e.currentStage != EngineStageUninitialized {
		return fmt.Errorf("engine already initialized")
	}
	e.currentStage = EngineStageInitializing
	if e.gameInstance.FnInitialize != nil {
		if err := e.gameInstance.FnInitialize(); err != nil {
			return err
		}
	}
	e.currentStage = EngineStageInitialized
	core.LogInfo("%s initialized", e.gameInstance.ApplicationConfig.Name)
	return nil
}

// Run steps frames until ctx is done or a frame fails. Frames that finish
// early give the rest of their time back to the OS.
func (e *Engine) Run(ctx context.Context) error {
	if e.currentStage != EngineStageInitialized {
		return fmt.Errorf("engine must be initialized before running")
	}
	e.currentStage = EngineStageRunning
	e.clock.Start()
	e.lastTime = 0

	targetFrame := e.gameInstance.ApplicationConfig.frameTime()
	ticker := time.NewTicker(targetFrame)
	defer ticker.Stop()

	for {
		if err := e.Step(); err != nil {
			core.LogError("frame %d failed, shutting down: %s", e.frameCount, err)
			e.currentStage = EngineStageInitialized
			return err
		}
		if ctx.Err() != nil {
			e.currentStage = EngineStageInitialized
			return nil
		}
		select {
		case <-ctx.Done():
			e.currentStage = EngineStageInitialized
			return nil
		case <-ticker.C:
		}
	}
}

// Step runs a single frame: the game update, then one pipeline tick.
func (e *Engine) Step() error {
	e.clock.Update()
	currentTime := e.clock.Elapsed()
	delta := currentTime - e.lastTime

	if e.gameInstance.FnUpdate != nil {
		if err := e.gameInstance.FnUpdate(delta.Seconds()); err != nil {
			return err
		}
	}

	done := e.pipeline.Tick(core.NewTimeSlice(e.gameInstance.ApplicationConfig.tickBudget()))
	if done > 0 {
		core.LogDebug("frame %d: %d requests done, %d pending", e.frameCount, done, e.pipeline.Pending())
	}

	e.frameCount++
	if e.frameCount%uint64(core.AVG_COUNT) == 0 {
		core.LogDebug("average tick time %.3fms", e.pipeline.Metrics().TickTime())
	}
	e.lastTime = currentTime
	return nil
}

// Frames is the number of frames stepped so far.
func (e *Engine) Frames() uint64 {
	return e.frameCount
}

func (e *Engine) Shutdown() error {
	e.currentStage = EngineStageShuttingDown
	if e.gameInstance.FnShutdown != nil {
		if err := e.gameInstance.FnShutdown(); err != nil {
			core.LogError("%s", err)
		}
	}
	if err := e.pipeline.Shutdown(); err != nil {
		return err
	}
	e.currentStage = EngineStageUninitialized
	core.LogInfo("%s shut down", e.gameInstance.ApplicationConfig.Name)
	return nil
}
