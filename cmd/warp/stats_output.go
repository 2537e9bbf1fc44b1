package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	"warp/internal/engine"
)

var (
	statHeaderColor = color.New(color.FgCyan, color.Bold)
	statValueColor  = color.New(color.FgWhite)
	statHotColor    = color.New(color.FgYellow)
)

// printStats renders the engine counters as an aligned two-column table.
func printStats(out io.Writer, st engine.ExecutionStats) {
	statHeaderColor.Fprintln(out, "execution")
	row(out, "interpreter", fmt.Sprintf("%d", st.InterpreterExecutions))
	row(out, "jit", fmt.Sprintf("%d", st.JitExecutions))
	row(out, "aot", fmt.Sprintf("%d", st.AotExecutions))

	statHeaderColor.Fprintln(out, "cache")
	row(out, "entries", fmt.Sprintf("%d (%d hot)", st.Cache.Entries, st.Cache.HotEntries))
	row(out, "hit rate", fmt.Sprintf("%.1f%%", st.CacheHitRate*100))
	row(out, "evictions", fmt.Sprintf("%d", st.Cache.Evictions))

	statHeaderColor.Fprintln(out, "arena")
	row(out, "generations", fmt.Sprintf("%d", st.Arena.Generations))
	row(out, "live bytes", fmt.Sprintf("%d", st.Arena.LiveBytes))
	row(out, "unmapped bytes", fmt.Sprintf("%d", st.Arena.Unmapped))

	statHeaderColor.Fprintln(out, "collector")
	row(out, "cycles", fmt.Sprintf("%d", st.Collector.Cycles))
	row(out, "swept", fmt.Sprintf("%d", st.Collector.Swept))
	row(out, "last pause", st.Collector.LastPause.String())

	if len(st.Workers) > 0 {
		statHeaderColor.Fprintln(out, "workers")
		for i, w := range st.Workers {
			label := fmt.Sprintf("worker %d", i)
			val := fmt.Sprintf("%d compiled, %d failed, %s", w.Compiled, w.Failed, w.CompileTime)
			if w.Compiled > 0 {
				statHotColor.Fprintf(out, "  %s %s\n", pad(label, 16), val)
			} else {
				row(out, label, val)
			}
		}
	}
}

func row(out io.Writer, label, value string) {
	statValueColor.Fprintf(out, "  %s %s\n", pad(label, 16), value)
}

// pad right-pads to a display width, not a byte count.
func pad(s string, width int) string {
	w := runewidth.StringWidth(s)
	for w < width {
		s += " "
		w++
	}
	return s
}
