package store

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/san-kum/pbdsim/internal/compute"
	"github.com/san-kum/pbdsim/internal/pbd"
	"github.com/san-kum/pbdsim/internal/sim"
)

func TestRowsFormat(t *testing.T) {
	dir := t.TempDir()
	groups := pbd.NewGroups(1, pbd.DefaultInitOptions())

	w := NewTraceWriter(dir)
	if err := w.Observe(0, groups); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "out000000.csv"))
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 1+pbd.BeadCount+1 {
		t.Fatalf("expected %d lines, got %d", pbd.BeadCount+2, len(lines))
	}
	if lines[0] != "f,t,x,y,r" {
		t.Errorf("header = %q", lines[0])
	}
	if lines[1] != "0,0,0.800000,0.000000,0.100000" {
		t.Errorf("first bead row = %q", lines[1])
	}
	if lines[9] != "0,1,0.000000,0.000000,0.800000" {
		t.Errorf("wire row = %q", lines[9])
	}
}

func TestTraceWriterFullRun(t *testing.T) {
	dir := t.TempDir()
	st := New(dir)
	if err := st.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	cfg := sim.DefaultConfig()
	cfg.Frames = 3
	cfg.Substeps = 10
	e, err := sim.New(cfg, compute.NewCPUBackend(), pbd.NewGroups(3, pbd.DefaultInitOptions()))
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	obs, closeTrace := st.TraceObserver(sim.FullTrace)
	if _, err := e.Run(context.Background(), obs); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if err := closeTrace(); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		rows, err := LoadTrace(st.TracePath(i))
		if err != nil {
			t.Fatalf("load group %d: %v", i, err)
		}
		frames, err := SplitFrames(rows)
		if err != nil {
			t.Fatal(err)
		}
		if len(frames) != 4 {
			t.Fatalf("group %d: expected 4 frames, got %d", i, len(frames))
		}
		for f, fr := range frames {
			if fr.Index != f || len(fr.Beads) != pbd.BeadCount || fr.Wire.R != 0.8 {
				t.Errorf("group %d frame %d: %+v", i, f, fr)
			}
		}
	}
}

func TestEndsWriter(t *testing.T) {
	dir := t.TempDir()
	initial := pbd.NewGroups(2, pbd.DefaultInitOptions())
	final := pbd.Clone(initial)
	final[1].Pos[0] = pbd.V(0, 0.8)

	w := NewEndsWriter(dir)
	if err := w.Observe(0, initial); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, TraceName(0))); !os.IsNotExist(err) {
		t.Error("file written before the final frame")
	}
	if err := w.Observe(1, final); err != nil {
		t.Fatal(err)
	}
	if err := w.Observe(2, final); err == nil {
		t.Error("expected error for a third frame")
	}

	rows, err := LoadTrace(filepath.Join(dir, TraceName(1)))
	if err != nil {
		t.Fatal(err)
	}
	frames, err := SplitFrames(rows)
	if err != nil {
		t.Fatal(err)
	}
	if len(frames) != 2 || frames[0].Index != 0 || frames[1].Index != 1 {
		t.Fatalf("unexpected frames %+v", frames)
	}
	if frames[0].Beads[0].X != 0.8 || frames[1].Beads[0].Y != 0.8 {
		t.Errorf("bead 0: initial %+v final %+v", frames[0].Beads[0], frames[1].Beads[0])
	}
}

func TestSplitFramesErrors(t *testing.T) {
	tests := []struct {
		name string
		rows []Row
	}{
		{"missing wire", []Row{{Frame: 0}, {Frame: 1}}},
		{"trailing beads", []Row{{Frame: 0}}},
		{"unknown type", []Row{{Frame: 0, Type: 5}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := SplitFrames(tt.rows); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestSummarySaveLoad(t *testing.T) {
	st := New(t.TempDir())
	if err := st.Init(); err != nil {
		t.Fatal(err)
	}

	meta := RunMetadata{
		Timestamp: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Seed:      100,
		Dt:        1.0 / 6000,
		Result: sim.Result{
			Groups:  4,
			Backend: "cpu",
			Mode:    "ends-only",
			Metrics: map[string]float64{"wire_drift": 1e-7},
		},
	}
	if err := st.SaveSummary(meta); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	got, err := st.LoadSummary()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if got.Seed != 100 || got.Result.Groups != 4 || got.Result.Backend != "cpu" {
		t.Errorf("loaded %+v", got)
	}
	if got.Result.Metrics["wire_drift"] != 1e-7 {
		t.Errorf("expected drift 1e-7, got %g", got.Result.Metrics["wire_drift"])
	}
}

func TestSummarySaveErrors(t *testing.T) {
	missing := New(filepath.Join(t.TempDir(), "missing"))
	if err := missing.SaveSummary(RunMetadata{}); err == nil {
		t.Error("expected error saving into a missing directory")
	}

	st := New(t.TempDir())
	meta := RunMetadata{Result: sim.Result{Metrics: map[string]float64{"energy_drift": math.NaN()}}}
	err := st.SaveSummary(meta)
	if err == nil || !strings.Contains(err.Error(), summaryFile) {
		t.Errorf("expected encode error naming %s, got %v", summaryFile, err)
	}
}

func TestTracePath(t *testing.T) {
	st := New("")
	if st.Dir() != "." {
		t.Errorf("empty dir should default to ., got %q", st.Dir())
	}
	if got := New("out").TracePath(12); got != filepath.Join("out", "out000012.csv") {
		t.Errorf("TracePath(12) = %q", got)
	}
}
