package engine

import (
	"context"
	"errors"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *ApplicationConfig {
	return &ApplicationConfig{
		Name:      "test",
		FrameRate: 1000,
		FS:        fstest.MapFS{},
	}
}

func TestNewNeedsConfig(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
	_, err = New(&Game{})
	assert.Error(t, err)
}

func TestEngineLifecycle(t *testing.T) {
	var (
		initialized bool
		updates     int
		shutdown    bool
	)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	g := &Game{ApplicationConfig: testConfig()}
	g.FnInitialize = func() error {
		initialized = true
		return nil
	}
	g.FnUpdate = func(deltaTime float64) error {
		assert.GreaterOrEqual(t, deltaTime, 0.0)
		updates++
		if updates == 3 {
			cancel()
		}
		return nil
	}
	g.FnShutdown = func() error {
		shutdown = true
		return nil
	}

	e, err := New(g)
	require.NoError(t, err)
	assert.Same(t, e.Pipeline(), g.Pipeline)
	require.Error(t, e.Run(ctx), "running needs initialization")

	require.NoError(t, e.Initialize())
	assert.True(t, initialized)
	assert.Error(t, e.Initialize())

	require.NoError(t, e.Run(ctx))
	assert.Equal(t, 3, updates)
	assert.Equal(t, uint64(3), e.Frames())
	assert.Equal(t, EngineStageInitialized, e.Stage())
	assert.Equal(t, int64(3), e.Pipeline().Metrics().Ticks)

	require.NoError(t, e.Shutdown())
	assert.True(t, shutdown)
	assert.Equal(t, EngineStageUninitialized, e.Stage())
}

func TestEngineStopsOnUpdateError(t *testing.T) {
	boom := errors.New("boom")
	g := &Game{ApplicationConfig: testConfig()}
	g.FnUpdate = func(float64) error { return boom }

	e, err := New(g)
	require.NoError(t, err)
	defer e.Shutdown()
	require.NoError(t, e.Initialize())
	assert.ErrorIs(t, e.Run(context.Background()), boom)
	assert.Equal(t, uint64(0), e.Frames())
}

func TestTickBudgetDefaults(t *testing.T) {
	c := &ApplicationConfig{}
	assert.Equal(t, 16666666, int(c.frameTime()))
	assert.Equal(t, c.frameTime()/2, c.tickBudget())
	c.FrameRate = 100
	assert.Equal(t, 5000000, int(c.tickBudget()))
}
