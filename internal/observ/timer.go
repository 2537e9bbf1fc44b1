// Package observ carries lightweight timing instrumentation for batch
// operations: precompilation runs, image export, benchmark sweeps.
package observ

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// Phase is one timed step of a batch operation.
type Phase struct {
	Name  string
	Start time.Time
	Dur   time.Duration
	Note  string
}

// Timer tracks successive phases. Not safe for concurrent use; batch
// drivers time from a single goroutine.
type Timer struct {
	phases []*Phase
}

// NewTimer creates an empty Timer.
func NewTimer() *Timer { return &Timer{} }

// Begin starts a phase.
func (t *Timer) Begin(name string) *Phase {
	p := &Phase{Name: name, Start: time.Now()}
	t.phases = append(t.phases, p)
	return p
}

// End finishes the phase with an optional note.
func (p *Phase) End(note string) {
	p.Dur = time.Since(p.Start)
	p.Note = note
}

// Add records an externally measured duration, e.g. compile time summed
// across workers, as its own line in the report.
func (t *Timer) Add(name string, dur time.Duration, note string) {
	t.phases = append(t.phases, &Phase{Name: name, Dur: dur, Note: note})
}

// Summary renders the phases for terminal output.
func (t *Timer) Summary() string {
	report := t.Report()
	out := "timings:\n"
	for _, p := range report.Phases {
		out += fmt.Sprintf("  %-20s %7.2f ms", p.Name, p.DurationMS)
		if p.Note != "" {
			out += "  // " + p.Note
		}
		out += "\n"
	}
	out += fmt.Sprintf("  %-20s %7.2f ms\n", "total", report.TotalMS)
	return out
}

// PhaseReport is one phase in serializable form.
type PhaseReport struct {
	Name       string  `json:"name"`
	DurationMS float64 `json:"duration_ms"`
	Note       string  `json:"note,omitempty"`
}

// Report aggregates the timer in milliseconds.
type Report struct {
	TotalMS float64       `json:"total_ms"`
	Phases  []PhaseReport `json:"phases"`
}

// Report flattens the recorded phases.
func (t *Timer) Report() Report {
	report := Report{}
	var total time.Duration
	for _, phase := range t.phases {
		total += phase.Dur
		report.Phases = append(report.Phases, PhaseReport{
			Name:       phase.Name,
			DurationMS: durationToMillis(phase.Dur),
			Note:       phase.Note,
		})
	}
	report.TotalMS = durationToMillis(total)
	return report
}

// WriteJSON emits the report as indented JSON, for machine consumers of
// bench and precompile output.
func (t *Timer) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(t.Report())
}

func durationToMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
