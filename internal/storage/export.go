package storage

import (
	"encoding/json"
	"io"

	"github.com/san-kum/dronetrace/internal/recorder"
)

type TrackData struct {
	Name     string      `json:"name"`
	Times    []float64   `json:"times"`
	States   [][]float64 `json:"states"`
	Controls [][]float64 `json:"controls"`
}

type ExportData struct {
	Run    RunMetadata `json:"run"`
	Header []string    `json:"header"`
	Tracks []TrackData `json:"tracks"`
}

// ExportJSON writes a run and its tracks as one indented JSON document.
func ExportJSON(w io.Writer, meta RunMetadata, snap recorder.Snapshot) error {
	data := ExportData{Run: meta, Header: Header()}

	for _, tr := range snap.Tracks() {
		recs := snap[tr]
		td := TrackData{
			Name:     tr.String(),
			Times:    make([]float64, len(recs)),
			States:   make([][]float64, len(recs)),
			Controls: make([][]float64, len(recs)),
		}
		for i, rec := range recs {
			v := rec.State.Vector()
			td.Times[i] = rec.Time
			td.States[i] = v[:]
			td.Controls[i] = append([]float64(nil), rec.Control[:]...)
		}
		data.Tracks = append(data.Tracks, td)
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}
