// Package storage persists finished comparison runs as a directory of
// metadata.json plus one CSV file per recorded track.
package storage

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/san-kum/dronetrace/internal/compare"
	"github.com/san-kum/dronetrace/internal/dynamo"
	"github.com/san-kum/dronetrace/internal/recorder"
)

const metadataFile = "metadata.json"

// Column names of every track CSV, in order.
var (
	StateColumns = [dynamo.StateWidth]string{
		"x", "y", "z",
		"qx", "qy", "qz", "qw",
		"roll", "pitch", "yaw",
		"vx", "vy", "vz",
		"wx", "wy", "wz",
		"rpm0", "rpm1", "rpm2", "rpm3",
	}
	ControlColumns = [dynamo.ControlWidth]string{
		"target_x", "target_y", "target_z",
		"target_vx", "target_vy", "target_vz",
		"u6", "u7", "u8", "u9", "u10", "u11",
	}
)

// Header is the first row of every track CSV.
func Header() []string {
	h := make([]string, 0, 1+dynamo.StateWidth+dynamo.ControlWidth)
	h = append(h, "time")
	h = append(h, StateColumns[:]...)
	return append(h, ControlColumns[:]...)
}

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

// RunDir is the directory holding run id.
func (s *Store) RunDir(id string) string { return filepath.Join(s.baseDir, id) }

type RunMetadata struct {
	ID             string             `json:"id"`
	Timestamp      time.Time          `json:"timestamp"`
	Drone          string             `json:"drone"`
	Physics        string             `json:"physics"`
	Controller     string             `json:"controller"`
	TraceFile      string             `json:"trace_file,omitempty"`
	Seed           int64              `json:"seed"`
	Rate           int                `json:"rate"`
	Duration       int                `json:"duration"`
	Steps          int                `json:"steps"`
	AltitudeOffset float64            `json:"altitude_offset"`
	Overruns       int                `json:"overruns"`
	Metrics        map[string]float64 `json:"metrics"`
	Tracks         []string           `json:"tracks"`
}

// NewRunID returns a sortable, unique run id.
func NewRunID(now time.Time) string {
	return fmt.Sprintf("%s_%s", now.UTC().Format("20060102T150405"), uuid.NewString()[:8])
}

// Save writes meta and every track of snap into a new run directory. An
// empty meta.ID is filled in.
func (s *Store) Save(meta RunMetadata, snap recorder.Snapshot) (string, error) {
	if meta.Timestamp.IsZero() {
		meta.Timestamp = time.Now()
	}
	if meta.ID == "" {
		meta.ID = NewRunID(meta.Timestamp)
	}
	runDir := s.RunDir(meta.ID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta.Tracks = nil
	for _, tr := range snap.Tracks() {
		if err := writeTrack(filepath.Join(runDir, tr.String()+".csv"), snap[tr]); err != nil {
			return "", fmt.Errorf("write %s track: %w", tr, err)
		}
		meta.Tracks = append(meta.Tracks, tr.String())
	}

	metaFile, err := os.Create(filepath.Join(runDir, metadataFile))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}
	return meta.ID, metaFile.Close()
}

func writeTrack(path string, recs []recorder.Record) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	w := csv.NewWriter(bw)
	if err := w.Write(Header()); err != nil {
		return err
	}

	row := make([]string, 0, 1+dynamo.StateWidth+dynamo.ControlWidth)
	for _, rec := range recs {
		row = append(row[:0], formatFloat(rec.Time))
		for _, v := range rec.State.Vector() {
			row = append(row, formatFloat(v))
		}
		for _, v := range rec.Control {
			row = append(row, formatFloat(v))
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	return f.Close()
}

// formatFloat keeps full precision so stored runs can be compared exactly.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.Before(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.RunDir(runID), metadataFile))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// Latest returns the most recent run, or an error when there is none.
func (s *Store) Latest() (*RunMetadata, error) {
	runs, err := s.List()
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, fmt.Errorf("no runs in %s", s.baseDir)
	}
	return &runs[len(runs)-1], nil
}

// LoadTracks reads every track CSV of a run back into records. Rows whose
// width differs from the header fail with dynamo.ErrSchema.
func (s *Store) LoadTracks(runID string) (recorder.Snapshot, error) {
	meta, err := s.Load(runID)
	if err != nil {
		return nil, err
	}

	snap := make(recorder.Snapshot, len(meta.Tracks))
	for i, name := range meta.Tracks {
		tr, ok := parseTrack(name)
		if !ok {
			tr = dynamo.Track(i)
		}
		recs, err := readTrack(filepath.Join(s.RunDir(runID), name+".csv"))
		if err != nil {
			return nil, fmt.Errorf("read %s track: %w", name, err)
		}
		snap[tr] = recs
	}
	return snap, nil
}

func parseTrack(name string) (dynamo.Track, bool) {
	for _, tr := range []dynamo.Track{dynamo.TrackReference, dynamo.TrackLive} {
		if tr.String() == name {
			return tr, true
		}
	}
	return 0, false
}

func readTrack(path string) ([]recorder.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(bufio.NewReader(f))
	r.FieldsPerRecord = -1

	width := 1 + dynamo.StateWidth + dynamo.ControlWidth
	if _, err := r.Read(); err != nil {
		return nil, dynamo.Schemaf("missing header: %v", err)
	}

	var recs []recorder.Record
	for line := 2; ; line++ {
		fields, err := r.Read()
		if err == io.EOF {
			return recs, nil
		}
		if err != nil {
			return nil, err
		}
		if len(fields) != width {
			return nil, dynamo.Schemaf("line %d has %d fields, want %d", line, len(fields), width)
		}

		vals := make([]float64, width)
		for j, field := range fields {
			if vals[j], err = strconv.ParseFloat(field, 64); err != nil {
				return nil, fmt.Errorf("line %d field %d: %w", line, j, err)
			}
		}

		var sv [dynamo.StateWidth]float64
		var cv dynamo.ControlVector
		copy(sv[:], vals[1:1+dynamo.StateWidth])
		copy(cv[:], vals[1+dynamo.StateWidth:])
		recs = append(recs, recorder.Record{Time: vals[0], State: dynamo.VehicleStateFromVector(sv), Control: cv})
	}
}

// Exporter saves a finished run under meta, filling run figures from the
// driver summary. onSaved, when set, receives the new run id.
func (s *Store) Exporter(meta RunMetadata, onSaved func(id string)) compare.Exporter {
	return compare.ExporterFunc(func(_ context.Context, sum compare.Summary, snap recorder.Snapshot) error {
		m := meta
		m.Timestamp = sum.StartedAt
		m.Rate = sum.Rate
		m.Duration = sum.Duration
		m.Steps = sum.Steps
		m.AltitudeOffset = sum.AltitudeOffset
		m.Overruns = sum.Overruns
		m.Metrics = sum.Metrics

		if err := s.Init(); err != nil {
			return err
		}
		id, err := s.Save(m, snap)
		if err != nil {
			return err
		}
		if onSaved != nil {
			onSaved(id)
		}
		return nil
	})
}
