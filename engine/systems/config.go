package systems

import (
	"fmt"
	"io/fs"

	"github.com/pelletier/go-toml/v2"

	"github.com/spaghettifunk/kiln/engine/assets"
	"github.com/spaghettifunk/kiln/engine/core"
)

/** @brief The configuration of a pipeline. Zero fields take the defaults below. */
type PipelineConfig struct {
	/** @brief The directory assets are read from and watched under. */
	Root string `toml:"root"`
	/** @brief Manifests to load, relative to Root, in order. */
	Manifests []string `toml:"manifests"`
	/** @brief Watch Root and invalidate assets whose sources change. */
	Watch bool `toml:"watch"`

	ProceduralSubstitution bool   `toml:"procedural_substitution"`
	ProceduralTexture      string `toml:"procedural_texture"`
	MissingTexture         string `toml:"missing_texture"`
	MissingTextureSource   string `toml:"missing_texture_source"`
	/** @brief pc, iphone or ipad. */
	DefaultTarget string `toml:"default_target"`

	LogLevel string `toml:"log_level"`
	/** @brief The maximum number of outstanding requests. */
	MaxRequests int `toml:"max_requests"`
	/** @brief The maximum number of distinct shaders. */
	MaxShaders int `toml:"max_shaders"`
}

const (
	DefaultProceduralTexture    = "Sys/T_Procedural"
	DefaultMissingTexture       = "Sys/T_Missing"
	DefaultMissingTextureSource = "Textures/Missing_Texture.tga"
)

func DefaultPipelineConfig() *PipelineConfig {
	c := &PipelineConfig{Root: ".", ProceduralSubstitution: true}
	c.normalize()
	return c
}

/**
 * @brief Reads a pipeline configuration from a TOML file. Unknown keys are errors.
 * @param fsys The file system to read from.
 * @param name The path of the configuration file.
 */
func LoadPipelineConfig(fsys fs.FS, name string) (*PipelineConfig, error) {
	f, err := fsys.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	c := &PipelineConfig{Root: ".", ProceduralSubstitution: true}
	if err := toml.NewDecoder(f).DisallowUnknownFields().Decode(c); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if err := c.normalize(); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return c, nil
}

func (c *PipelineConfig) normalize() error {
	if c.Root == "" {
		c.Root = "."
	}
	if c.ProceduralTexture == "" {
		c.ProceduralTexture = DefaultProceduralTexture
	}
	if c.MissingTexture == "" {
		c.MissingTexture = DefaultMissingTexture
	}
	if c.MissingTextureSource == "" {
		c.MissingTextureSource = DefaultMissingTextureSource
	}
	if c.DefaultTarget == "" {
		c.DefaultTarget = "pc"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.MaxRequests <= 0 {
		c.MaxRequests = 256
	}
	if c.MaxShaders <= 0 {
		c.MaxShaders = 512
	}
	_, err := c.target()
	return err
}

func (c *PipelineConfig) target() (core.PhaseFlags, error) {
	f := core.ParsePhaseFlags(c.DefaultTarget)
	if f&core.TargetMask == 0 || f&^core.TargetMask != 0 {
		return 0, fmt.Errorf("default_target: %q is not pc, iphone or ipad", c.DefaultTarget)
	}
	return f, nil
}

// Options converts the configuration into the asset manager's policies.
func (c *PipelineConfig) Options() assets.Options {
	target, _ := c.target()
	return assets.Options{
		ProceduralSubstitution: c.ProceduralSubstitution,
		ProceduralTexture:      c.ProceduralTexture,
		MissingTexture:         c.MissingTexture,
		MissingTextureSource:   c.MissingTextureSource,
		DefaultTarget:          target,
	}
}
