package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/dronetrace/internal/compare"
	"github.com/san-kum/dronetrace/internal/dynamo"
	"github.com/san-kum/dronetrace/internal/recorder"
)

func testSnapshot() recorder.Snapshot {
	ctrl := dynamo.NewControlVector(dynamo.ControlTarget{Pos: r3.Vec{Z: 1}, Vel: r3.Vec{X: 0.1}})
	return recorder.Snapshot{
		dynamo.TrackReference: {
			{Time: 0.01, State: dynamo.VehicleState{Pos: r3.Vec{Z: 0.1}, RPY: r3.Vec{Z: 0.3}}, Control: ctrl},
			{Time: 0.02, State: dynamo.VehicleState{Pos: r3.Vec{Z: 0.1 + 1e-9}}, Control: ctrl},
		},
		dynamo.TrackLive: {
			{Time: 0, State: dynamo.VehicleState{Pos: r3.Vec{Z: 0.1}, Quat: dynamo.IdentityQuat(), RPM: dynamo.ActuatorCommand{1.5, 2, 3, 14468.123456789}}, Control: ctrl},
			{Time: 0.01, State: dynamo.VehicleState{Pos: r3.Vec{X: 1.0 / 3, Z: 0.1}, Quat: dynamo.IdentityQuat()}, Control: ctrl},
		},
	}
}

func TestStoreSaveLoad(t *testing.T) {
	st := New(t.TempDir())
	if err := st.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	runID, err := st.Save(RunMetadata{Drone: "cf2x", Physics: "dyn", Seed: 42, Metrics: map[string]float64{"tracking_rmse": 0.01}}, testSnapshot())
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if runID == "" {
		t.Error("expected non-empty run id")
	}

	meta, err := st.Load(runID)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if meta.Drone != "cf2x" || meta.Seed != 42 {
		t.Errorf("unexpected metadata %+v", meta)
	}
	if diff := cmp.Diff([]string{"reference", "live"}, meta.Tracks); diff != "" {
		t.Errorf("tracks mismatch (-want +got):\n%s", diff)
	}

	got, err := st.LoadTracks(runID)
	if err != nil {
		t.Fatalf("load tracks failed: %v", err)
	}
	if diff := cmp.Diff(testSnapshot(), got); diff != "" {
		t.Errorf("tracks differ after round trip (-want +got):\n%s", diff)
	}
}

func TestTrackHeader(t *testing.T) {
	st := New(t.TempDir())
	runID, err := st.Save(RunMetadata{}, testSnapshot())
	if err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(st.RunDir(runID), "live.csv"))
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d lines", len(lines))
	}
	header := strings.Split(lines[0], ",")
	if len(header) != 33 || header[0] != "time" || header[20] != "rpm3" || header[21] != "target_x" {
		t.Errorf("unexpected header %v", header)
	}
	for _, line := range lines[1:] {
		if n := len(strings.Split(line, ",")); n != 33 {
			t.Errorf("row has %d fields", n)
		}
	}
}

func TestLoadTracksRejectsDrift(t *testing.T) {
	st := New(t.TempDir())
	runID, err := st.Save(RunMetadata{}, testSnapshot())
	if err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(st.RunDir(runID), "live.csv")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatal(err)
	}
	f.WriteString("0.02,1,2,3\n")
	f.Close()

	_, err = st.LoadTracks(runID)
	if !errors.Is(err, dynamo.ErrSchema) {
		t.Errorf("expected schema error, got %v", err)
	}
}

func TestListAndLatest(t *testing.T) {
	st := New(t.TempDir())

	runs, err := st.List()
	if err != nil || len(runs) != 0 {
		t.Fatalf("expected empty list, got %v, %v", runs, err)
	}
	if _, err := st.Latest(); err == nil {
		t.Error("expected error with no runs")
	}

	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	older, _ := st.Save(RunMetadata{Timestamp: base, Physics: "dyn"}, testSnapshot())
	newer, _ := st.Save(RunMetadata{Timestamp: base.Add(time.Minute), Physics: "rk4"}, testSnapshot())

	runs, err = st.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 || runs[0].ID != older || runs[1].ID != newer {
		t.Errorf("unexpected order %v", runs)
	}

	latest, err := st.Latest()
	if err != nil || latest.ID != newer {
		t.Errorf("expected latest %s, got %v (%v)", newer, latest, err)
	}
}

func TestListMissingDir(t *testing.T) {
	st := New(filepath.Join(t.TempDir(), "nope"))
	runs, err := st.List()
	if err != nil || len(runs) != 0 {
		t.Errorf("expected empty list, got %v, %v", runs, err)
	}
}

func TestNewRunIDUnique(t *testing.T) {
	now := time.Now()
	a, b := NewRunID(now), NewRunID(now)
	if a == b {
		t.Errorf("run ids collide: %s", a)
	}
	if !strings.HasPrefix(a, now.UTC().Format("20060102T150405")) {
		t.Errorf("run id %s lacks timestamp prefix", a)
	}
}

func TestExporter(t *testing.T) {
	st := New(filepath.Join(t.TempDir(), "results"))
	var saved string
	exp := st.Exporter(RunMetadata{Drone: "cf2p", Physics: "gnd"}, func(id string) { saved = id })

	sum := compare.Summary{Rate: 100, Duration: 5, Steps: 500, AltitudeOffset: 0.2, StartedAt: time.Now(), Metrics: map[string]float64{"saturation": 0.1}}
	if err := exp.Export(context.Background(), sum, testSnapshot()); err != nil {
		t.Fatal(err)
	}
	if saved == "" {
		t.Fatal("onSaved not called")
	}

	meta, err := st.Load(saved)
	if err != nil {
		t.Fatal(err)
	}
	if meta.Drone != "cf2p" || meta.Steps != 500 || meta.Rate != 100 || meta.Metrics["saturation"] != 0.1 {
		t.Errorf("unexpected metadata %+v", meta)
	}
}

func TestExportJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := ExportJSON(&buf, RunMetadata{ID: "run1"}, testSnapshot()); err != nil {
		t.Fatal(err)
	}

	var data ExportData
	if err := json.Unmarshal(buf.Bytes(), &data); err != nil {
		t.Fatal(err)
	}
	if data.Run.ID != "run1" || len(data.Tracks) != 2 {
		t.Fatalf("unexpected export %+v", data)
	}
	live := data.Tracks[1]
	if live.Name != "live" || len(live.States[0]) != 20 || len(live.Controls[0]) != 12 {
		t.Errorf("unexpected live track %+v", live)
	}
	if live.States[0][19] != 14468.123456789 {
		t.Errorf("precision lost: %v", live.States[0][19])
	}
}
