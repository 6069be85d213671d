// Package export renders recorded runs as PNG or SVG figures with gonum/plot.
package export

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/san-kum/dronetrace/internal/dynamo"
	"github.com/san-kum/dronetrace/internal/recorder"
)

// Group is one figure: a set of state columns plotted against time.
type Group struct {
	Name    string
	Title   string
	YLabel  string
	Columns []int
	Labels  []string
}

// Groups follow the live state layout.
var Groups = []Group{
	{"position", "Position", "m", []int{0, 1, 2}, []string{"x", "y", "z"}},
	{"attitude", "Roll, pitch, yaw", "rad", []int{7, 8, 9}, []string{"roll", "pitch", "yaw"}},
	{"velocity", "Velocity", "m/s", []int{10, 11, 12}, []string{"vx", "vy", "vz"}},
	{"angular_velocity", "Angular velocity", "rad/s", []int{13, 14, 15}, []string{"wx", "wy", "wz"}},
	{"rpm", "Rotor speed", "RPM", []int{16, 17, 18, 19}, []string{"rpm0", "rpm1", "rpm2", "rpm3"}},
}

var palette = []color.Color{
	color.RGBA{R: 220, G: 50, B: 47, A: 255},
	color.RGBA{R: 38, G: 139, B: 210, A: 255},
	color.RGBA{R: 133, G: 153, B: 0, A: 255},
	color.RGBA{R: 211, G: 54, B: 130, A: 255},
}

var (
	figureWidth  = 10 * vg.Inch
	figureHeight = 4 * vg.Inch
)

// PlotRun writes one figure per group into dir and returns the file paths.
// format is "png" or "svg". Reference lines are dashed, live lines solid.
func PlotRun(dir string, snap recorder.Snapshot, format string) ([]string, error) {
	if format != "png" && format != "svg" {
		return nil, fmt.Errorf("unsupported plot format: %s", format)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(Groups))
	for _, g := range Groups {
		p, err := groupPlot(g, snap)
		if err != nil {
			return nil, fmt.Errorf("plot %s: %w", g.Name, err)
		}
		path := filepath.Join(dir, g.Name+"."+format)
		if err := p.Save(figureWidth, figureHeight, path); err != nil {
			return nil, fmt.Errorf("save %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func groupPlot(g Group, snap recorder.Snapshot) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = g.Title
	p.X.Label.Text = "time (s)"
	p.Y.Label.Text = g.YLabel
	p.Add(plotter.NewGrid())

	for _, tr := range snap.Tracks() {
		recs := snap[tr]
		if len(recs) == 0 {
			continue
		}
		for k, col := range g.Columns {
			line, err := plotter.NewLine(series(recs, col))
			if err != nil {
				return nil, err
			}
			line.Color = palette[k%len(palette)]
			line.Width = vg.Points(1)
			if tr == dynamo.TrackReference {
				line.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
			}
			p.Add(line)
			p.Legend.Add(fmt.Sprintf("%s %s", g.Labels[k], tr), line)
		}
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
	return p, nil
}

func series(recs []recorder.Record, col int) plotter.XYs {
	pts := make(plotter.XYs, len(recs))
	for i, rec := range recs {
		v := rec.State.Vector()
		pts[i] = plotter.XY{X: rec.Time, Y: v[col]}
	}
	return pts
}
