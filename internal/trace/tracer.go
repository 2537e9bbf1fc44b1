// Package trace is the execution core's structured tracing layer: cheap
// enough to leave compiled in, verbose enough to reconstruct what the
// engine, the compile workers and the collector were doing when something
// went wrong. Events stream to a writer, accumulate in a crash ring, or
// both.
package trace

import (
	"fmt"
	"io"
	"os"
)

// Tracer is the interface for emitting trace events.
type Tracer interface {
	// Emit records a trace event. Must be goroutine-safe.
	Emit(ev *Event)

	// Flush ensures all buffered events are written.
	Flush() error

	// Close flushes and releases resources.
	Close() error

	// Level returns the current tracing level.
	Level() Level

	// Enabled returns true if tracing is active (Level > LevelOff).
	Enabled() bool
}

// Config holds tracer configuration.
type Config struct {
	Level      Level
	Output     io.Writer // if nil, OutputPath is used
	OutputPath string    // "-" or empty means stderr
	RingSize   int       // crash ring capacity (default 4096)
	Ring       bool      // keep a crash ring alongside the stream
}

// New creates a Tracer from Config.
func New(cfg Config) (Tracer, error) {
	if cfg.Level == LevelOff {
		return NewNop(), nil
	}
	if cfg.RingSize <= 0 {
		cfg.RingSize = 4096
	}

	w, err := openOutput(cfg)
	if err != nil {
		return nil, err
	}
	stream := NewStreamTracer(w, cfg.Level)
	if !cfg.Ring {
		return stream, nil
	}
	return NewMultiTracer(cfg.Level, stream, NewRingTracer(cfg.RingSize, cfg.Level)), nil
}

func openOutput(cfg Config) (io.Writer, error) {
	if cfg.Output != nil {
		return cfg.Output, nil
	}
	if cfg.OutputPath == "" || cfg.OutputPath == "-" {
		return os.Stderr, nil
	}
	f, err := os.Create(cfg.OutputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace output: %w", err)
	}
	return f, nil
}

// MultiTracer fans events out to several tracers.
type MultiTracer struct {
	level   Level
	tracers []Tracer
}

// NewMultiTracer creates a tracer that forwards to all given tracers.
func NewMultiTracer(level Level, tracers ...Tracer) *MultiTracer {
	return &MultiTracer{level: level, tracers: tracers}
}

// Emit implements Tracer.
func (m *MultiTracer) Emit(ev *Event) {
	for _, t := range m.tracers {
		t.Emit(ev)
	}
}

// Flush implements Tracer.
func (m *MultiTracer) Flush() error {
	var first error
	for _, t := range m.tracers {
		if err := t.Flush(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Close implements Tracer.
func (m *MultiTracer) Close() error {
	var first error
	for _, t := range m.tracers {
		if err := t.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Level implements Tracer.
func (m *MultiTracer) Level() Level { return m.level }

// Enabled implements Tracer.
func (m *MultiTracer) Enabled() bool { return m.level > LevelOff }
