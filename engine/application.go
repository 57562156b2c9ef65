package engine

import (
	"io/fs"
	"time"

	"github.com/spaghettifunk/kiln/engine/systems"
)

type ApplicationConfig struct {
	// The application name used in logs.
	Name string
	// How many times per second the pipeline is ticked.
	FrameRate int
	// Wall-clock budget for asset work in one frame.
	TickBudget time.Duration
	// The pipeline configuration. Nil uses the defaults.
	Pipeline *systems.PipelineConfig
	// Assets are read from FS. Nil reads Pipeline.Root from disk.
	FS fs.FS
}

func (c *ApplicationConfig) frameTime() time.Duration {
	if c.FrameRate <= 0 {
		return time.Second / 60
	}
	return time.Second / time.Duration(c.FrameRate)
}

// tickBudget defaults to half a frame.
func (c *ApplicationConfig) tickBudget() time.Duration {
	if c.TickBudget <= 0 {
		return c.frameTime() / 2
	}
	return c.TickBudget
}
