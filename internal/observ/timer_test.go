package observ

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestTimer_PhasesAndTotal(t *testing.T) {
	tm := NewTimer()
	p := tm.Begin("translate")
	time.Sleep(time.Millisecond)
	p.End("4 blocks")
	tm.Add("compile (workers)", 25*time.Millisecond, "")

	report := tm.Report()
	if len(report.Phases) != 2 {
		t.Fatalf("phases = %d, want 2", len(report.Phases))
	}
	if report.Phases[0].Name != "translate" || report.Phases[0].DurationMS <= 0 {
		t.Fatalf("phase 0 = %+v", report.Phases[0])
	}
	if report.Phases[1].DurationMS != 25 {
		t.Fatalf("added duration = %v ms, want 25", report.Phases[1].DurationMS)
	}
	if report.TotalMS < 25 {
		t.Fatalf("total = %v ms, want at least the added phase", report.TotalMS)
	}
}

func TestTimer_Summary(t *testing.T) {
	tm := NewTimer()
	tm.Add("encode", 3*time.Millisecond, "12 blobs")
	out := tm.Summary()
	if !strings.Contains(out, "encode") || !strings.Contains(out, "12 blobs") {
		t.Fatalf("summary missing phase line: %q", out)
	}
	if !strings.Contains(out, "total") {
		t.Fatalf("summary missing total line: %q", out)
	}
}

func TestTimer_WriteJSON(t *testing.T) {
	tm := NewTimer()
	tm.Add("sweep", 2*time.Millisecond, "")

	var buf bytes.Buffer
	if err := tm.WriteJSON(&buf); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	var report Report
	if err := json.Unmarshal(buf.Bytes(), &report); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if report.TotalMS != 2 || len(report.Phases) != 1 {
		t.Fatalf("decoded = %+v", report)
	}
}
