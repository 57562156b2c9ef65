package engine

import (
	"github.com/spaghettifunk/kiln/engine/systems"
)

// Game is the client driven by the engine loop. Every callback is optional.
type Game struct {
	ApplicationConfig *ApplicationConfig
	Pipeline          *systems.Pipeline
	State             interface{}
	FnInitialize      Initialize
	FnUpdate          Update
	FnShutdown        Shutdown
}

type Initialize func() error
type Update func(deltaTime float64) error
type Shutdown func() error
