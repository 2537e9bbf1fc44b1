// Package config loads warp.toml, the runtime configuration file. Every
// field has a working default; a missing file or section means defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"warp/internal/cache"
	"warp/internal/collector"
	"warp/internal/isa"
	"warp/internal/profile"
	"warp/internal/trace"
)

// FileName is the manifest searched for upward from the start directory.
const FileName = "warp.toml"

// Config is the decoded file.
type Config struct {
	Engine    EngineConfig    `toml:"engine"`
	Profile   ProfileConfig   `toml:"profile"`
	Cache     CacheConfig     `toml:"cache"`
	Arena     ArenaConfig     `toml:"arena"`
	Collector CollectorConfig `toml:"collector"`
	Trace     TraceConfig     `toml:"trace"`
}

type EngineConfig struct {
	Source     string `toml:"source"`
	Target     string `toml:"target"`
	Workers    int    `toml:"workers"`
	QueueDepth int    `toml:"queue_depth"`
}

type ProfileConfig struct {
	JitThreshold uint64 `toml:"jit_threshold"`
	AotThreshold uint64 `toml:"aot_threshold"`
	SampleWindow int    `toml:"sample_window"`
}

type CacheConfig struct {
	Shards       int     `toml:"shards"`
	ColdCapacity int     `toml:"cold_capacity"`
	HotCapacity  int     `toml:"hot_capacity"`
	Policy       string  `toml:"policy"`
	DecayFactor  float64 `toml:"decay_factor"`
}

type ArenaConfig struct {
	GenerationKB int `toml:"generation_kb"`
}

type CollectorConfig struct {
	QuotaUS       int `toml:"quota_us"`
	TargetPauseUS int `toml:"target_pause_us"`
	HighWaterKB   int `toml:"high_water_kb"`
	EvictionBurst int `toml:"eviction_burst"`
	IntervalMS    int `toml:"interval_ms"`
}

type TraceConfig struct {
	Level    string `toml:"level"`
	Output   string `toml:"output"`
	RingSize int    `toml:"ring_size"`
}

// Find walks upward from startDir looking for warp.toml.
func Find(startDir string) (string, bool, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// Load reads one file.
func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if err := cfg.validate(path); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Discover finds and loads the nearest warp.toml, or returns a zero
// config (all defaults) when none exists.
func Discover(startDir string) (*Config, string, error) {
	path, ok, err := Find(startDir)
	if err != nil {
		return nil, "", err
	}
	if !ok {
		return &Config{}, "", nil
	}
	cfg, err := Load(path)
	return cfg, path, err
}

func (c *Config) validate(path string) error {
	var errs []error
	if c.Engine.Source != "" {
		if _, err := isa.Parse(c.Engine.Source); err != nil {
			errs = append(errs, fmt.Errorf("[engine].source: %w", err))
		}
	}
	if c.Engine.Target != "" {
		if _, err := isa.Parse(c.Engine.Target); err != nil {
			errs = append(errs, fmt.Errorf("[engine].target: %w", err))
		}
	}
	if c.Profile.AotThreshold != 0 && c.Profile.AotThreshold <= c.Profile.JitThreshold {
		errs = append(errs, fmt.Errorf("[profile].aot_threshold must exceed jit_threshold"))
	}
	if c.Cache.Policy != "" && c.Cache.Policy != "lru" && c.Cache.Policy != "lfu" {
		errs = append(errs, fmt.Errorf("[cache].policy: %q is not lru or lfu", c.Cache.Policy))
	}
	if c.Cache.DecayFactor < 0 || c.Cache.DecayFactor > 1 {
		errs = append(errs, fmt.Errorf("[cache].decay_factor must be in (0, 1]"))
	}
	if c.Trace.Level != "" {
		if _, err := trace.ParseLevel(c.Trace.Level); err != nil {
			errs = append(errs, fmt.Errorf("[trace].level: %w", err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// Pair resolves the configured ISA pair, with def filling blank fields.
func (c *Config) Pair(def isa.Pair) isa.Pair {
	out := def
	if c.Engine.Source != "" {
		if id, err := isa.Parse(c.Engine.Source); err == nil {
			out.Source = id
		}
	}
	if c.Engine.Target != "" {
		if id, err := isa.Parse(c.Engine.Target); err == nil {
			out.Target = id
		}
	}
	return out
}

// ProfileConfig converts to the profiler's native config. Zero fields
// stay zero; the profiler applies its own defaults.
func (c *Config) ProfileConfig() profile.Config {
	return profile.Config{
		JitThreshold: c.Profile.JitThreshold,
		AotThreshold: c.Profile.AotThreshold,
		SampleWindow: c.Profile.SampleWindow,
	}
}

// CacheConfig converts to the cache's native config.
func (c *Config) CacheConfig() cache.Config {
	out := cache.Config{
		Shards:       c.Cache.Shards,
		ColdCapacity: c.Cache.ColdCapacity,
		HotCapacity:  c.Cache.HotCapacity,
		DecayFactor:  c.Cache.DecayFactor,
	}
	if c.Cache.Policy == "lfu" {
		out.Policy = cache.PolicyLFU
	}
	return out
}

// CollectorConfig converts to the collector's native config.
func (c *Config) CollectorConfig() collector.Config {
	return collector.Config{
		Quota:         time.Duration(c.Collector.QuotaUS) * time.Microsecond,
		TargetPause:   time.Duration(c.Collector.TargetPauseUS) * time.Microsecond,
		HighWater:     uint64(c.Collector.HighWaterKB) * 1024,
		EvictionBurst: uint64(c.Collector.EvictionBurst),
		Interval:      time.Duration(c.Collector.IntervalMS) * time.Millisecond,
	}
}

// ArenaGenSize returns the configured generation size in bytes, zero for
// the arena default.
func (c *Config) ArenaGenSize() uint32 {
	return uint32(c.Arena.GenerationKB) * 1024
}

// TraceConfig converts to the tracer's native config.
func (c *Config) TraceConfig() trace.Config {
	lvl := trace.LevelOff
	if c.Trace.Level != "" {
		if v, err := trace.ParseLevel(c.Trace.Level); err == nil {
			lvl = v
		}
	}
	return trace.Config{
		Level:      lvl,
		OutputPath: c.Trace.Output,
		RingSize:   c.Trace.RingSize,
	}
}
