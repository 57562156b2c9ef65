package assets

import (
	"github.com/spaghettifunk/kiln/engine/core"
	"github.com/spaghettifunk/kiln/engine/resources"
)

// Shader is the part of a shader the pipeline cares about: which texture
// slots a pass cannot render without.
type Shader interface {
	Requires(source resources.TextureSource, slot int) bool
}

// ShaderLoader is the external shader collaborator. LoadShader must honor the
// time slice like any processor and return core.ErrPending when it is spent.
type ShaderLoader interface {
	LoadShader(ts core.TimeSlice, id int) (Shader, error)
}

// shaderProcessor makes shader entries addressable as assets. The shader
// itself is owned by the ShaderLoader.
type shaderProcessor struct {
	asset  *Asset
	level  core.Level
	shader Shader
}

func (s *shaderProcessor) Process(ts core.TimeSlice, flags core.PhaseFlags) error {
	step := core.Plan(s.level, flags)
	switch step.Action {
	case core.ActionNone, core.ActionSatisfied, core.ActionTrim:
		return nil
	case core.ActionCancel, core.ActionUnload:
		s.shader = nil
		s.level = core.LevelUnloaded
		return nil
	}
	sh, err := s.asset.manager.shaders.LoadShader(ts, s.asset.entry.ID)
	if err != nil {
		return err
	}
	s.shader = sh
	s.level = core.LevelLoaded
	return nil
}
