package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"warp/internal/config"
	"warp/internal/engine"
	"warp/internal/isa"
	"warp/internal/program"
	"warp/internal/trace"
)

// loadConfig resolves the effective configuration: the --config path if
// given, otherwise the nearest warp.toml, otherwise all defaults.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, fmt.Errorf("failed to get config flag: %w", err)
	}
	if path != "" {
		return config.Load(path)
	}
	cfg, _, err := config.Discover(".")
	return cfg, err
}

// applyColorMode honors the persistent --color flag.
func applyColorMode(cmd *cobra.Command) error {
	mode, err := cmd.Flags().GetString("color")
	if err != nil {
		return fmt.Errorf("failed to get color flag: %w", err)
	}
	switch mode {
	case "on":
		color.NoColor = false
	case "off":
		color.NoColor = true
	case "auto":
		color.NoColor = !isTerminal(os.Stdout)
	default:
		return fmt.Errorf("unsupported color mode %q (must be auto, on or off)", mode)
	}
	return nil
}

// buildEngine wires a configured engine around a loaded program. The
// target defaults to x86-64 and can be overridden by config or flag.
func buildEngine(cfg *config.Config, prog *program.Program, targetFlag string) (*engine.Engine, error) {
	src, err := prog.SourceISA()
	if err != nil {
		return nil, err
	}
	pair := cfg.Pair(isa.Pair{Source: src, Target: isa.X86_64})
	pair.Source = src
	if targetFlag != "" {
		t, err := isa.Parse(targetFlag)
		if err != nil {
			return nil, err
		}
		pair.Target = t
	}

	tr, err := trace.New(cfg.TraceConfig())
	if err != nil {
		return nil, err
	}

	workers := cfg.Engine.Workers
	queueDepth := cfg.Engine.QueueDepth
	return engine.New(engine.Options{
		Pair:         pair,
		Decoder:      engine.BlockMap(prog.BlockMap()),
		Tracer:       tr,
		Profile:      cfg.ProfileConfig(),
		Cache:        cfg.CacheConfig(),
		Collector:    cfg.CollectorConfig(),
		ArenaGenSize: cfg.ArenaGenSize(),
		Workers:      workers,
		QueueDepth:   queueDepth,
	})
}
