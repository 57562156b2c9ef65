/*
kiln drives the asset pipeline from the command line:

	kiln load    [-config file] [-target pc] [-phase Load] [-units n] path...
	kiln cook    [-config file] [-target pc] [-fast] [-name name] [-out dir]
	kiln preview [-config file] [-target pc] [-fps n] [path...]
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spaghettifunk/kiln/engine"
	"github.com/spaghettifunk/kiln/engine/core"
	"github.com/spaghettifunk/kiln/engine/packages"
	"github.com/spaghettifunk/kiln/engine/systems"
	"github.com/spaghettifunk/kiln/testbed"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "load":
		err = load(os.Args[2:])
	case "cook":
		err = cook(os.Args[2:])
	case "preview":
		err = preview(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		core.LogFatal("%s", err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: kiln <load|cook|preview> [flags] [path...]")
}

type commonFlags struct {
	config string
	target string
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.config, "config", "", "pipeline configuration file")
	fs.StringVar(&c.target, "target", "", "target platform (pc, iphone, ipad)")
}

func (c *commonFlags) pipelineConfig() (*systems.PipelineConfig, error) {
	if c.config == "" {
		return systems.DefaultPipelineConfig(), nil
	}
	config, err := systems.LoadPipelineConfig(os.DirFS(filepath.Dir(c.config)), filepath.Base(c.config))
	if err != nil {
		return nil, err
	}
	// A relative root is relative to the configuration file.
	if !filepath.IsAbs(config.Root) {
		config.Root = filepath.Join(filepath.Dir(c.config), config.Root)
	}
	return config, nil
}

func (c *commonFlags) targets() core.PhaseFlags {
	return core.ParsePhaseFlags(c.target) & core.TargetMask
}

func load(args []string) error {
	var (
		common commonFlags
		phase  string
		units  int
	)
	fs := flag.NewFlagSet("load", flag.ExitOnError)
	common.register(fs)
	fs.StringVar(&phase, "phase", "Load", "phase to process (Info, Parse, Load)")
	fs.IntVar(&units, "units", 64, "work units per tick")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("load needs at least one asset path")
	}

	config, err := common.pipelineConfig()
	if err != nil {
		return err
	}
	p, err := systems.NewPipeline(config, nil)
	if err != nil {
		return err
	}
	defer p.Shutdown()

	flags := core.ParsePhaseFlags(phase) | common.targets()
	failed := 0
	for _, path := range fs.Args() {
		_, err := p.Request(path, flags, func(r *systems.Request, err error) {
			defer r.Handle.Release()
			if err != nil {
				failed++
				return
			}
			core.LogInfo("'%s' reached %s in %d ticks", r.Handle.Path(), flags.Requested(), r.Ticks)
		})
		if err != nil {
			core.LogError("failed to request '%s': %s", path, err)
			failed++
		}
	}
	ticks := p.Flush(units)
	core.LogInfo("%d ticks, %d completed, %d failed", ticks, p.Metrics().Completed, p.Metrics().Failed)
	if failed > 0 {
		return fmt.Errorf("%d assets failed", failed)
	}
	return nil
}

func cook(args []string) error {
	var (
		common commonFlags
		fast   bool
		name   string
		out    string
	)
	fs := flag.NewFlagSet("cook", flag.ExitOnError)
	common.register(fs)
	fs.BoolVar(&fast, "fast", false, "skip slow compression")
	fs.StringVar(&name, "name", "cooked", "name of the cooked manifest")
	fs.StringVar(&out, "out", "build", "output directory")
	if err := fs.Parse(args); err != nil {
		return err
	}

	config, err := common.pipelineConfig()
	if err != nil {
		return err
	}
	p, err := systems.NewPipeline(config, nil)
	if err != nil {
		return err
	}
	defer p.Shutdown()

	flags := common.targets()
	if flags == 0 {
		flags = core.ParsePhaseFlags(config.DefaultTarget)
	}
	if fast {
		flags |= core.PhaseFastCook
	}
	result, err := p.Cook(name, flags)
	if err != nil {
		return err
	}

	for file, data := range result.Files {
		dst := filepath.Join(out, filepath.FromSlash(file))
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(dst, data, 0o644); err != nil {
			return err
		}
	}
	f, err := os.Create(filepath.Join(out, name+".toml"))
	if err != nil {
		return err
	}
	defer f.Close()
	if err := packages.WriteManifest(f, result.Manifest); err != nil {
		return err
	}
	core.LogInfo("wrote %d files to '%s'", len(result.Files)+1, out)
	return f.Close()
}

func preview(args []string) error {
	var (
		common commonFlags
		fps    int
	)
	fs := flag.NewFlagSet("preview", flag.ExitOnError)
	common.register(fs)
	fs.IntVar(&fps, "fps", 30, "frames per second")
	if err := fs.Parse(args); err != nil {
		return err
	}

	config, err := common.pipelineConfig()
	if err != nil {
		return err
	}
	config.Watch = true

	g := testbed.NewPreviewGame(&engine.ApplicationConfig{
		Name:      "kiln preview",
		FrameRate: fps,
		Pipeline:  config,
	}, core.PhaseLoad|common.targets(), fs.Args()...)

	e, err := engine.New(g.Game)
	if err != nil {
		return err
	}
	if err := e.Initialize(); err != nil {
		return err
	}

	// stop on sigterm and other system calls
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
	defer stop()

	if err := e.Run(ctx); err != nil {
		_ = e.Shutdown()
		return err
	}
	return e.Shutdown()
}
