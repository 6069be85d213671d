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
)

// FrameRecorder collects the flown path on every step and writes one PNG
// frame of the side view (x against z) on every render tick.
type FrameRecorder struct {
	dir    string
	live   plotter.XYs
	ref    plotter.XYs
	frames []string
}

func NewFrameRecorder(dir string) (*FrameRecorder, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &FrameRecorder{dir: dir}, nil
}

func (f *FrameRecorder) Observe(rec dynamo.StepRecord) {
	f.live = append(f.live, plotter.XY{X: rec.Live.Pos.X, Y: rec.Live.Pos.Z})
	f.ref = append(f.ref, plotter.XY{X: rec.Reference.Pos.X, Y: rec.Reference.Pos.Z})
}

func (f *FrameRecorder) Render(rec dynamo.StepRecord) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("t = %.2f s", rec.Time)
	p.X.Label.Text = "x (m)"
	p.Y.Label.Text = "z (m)"
	p.Add(plotter.NewGrid())

	if len(f.ref) > 0 {
		ref, err := plotter.NewLine(f.ref)
		if err != nil {
			return err
		}
		ref.Color = color.Gray{Y: 128}
		ref.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
		p.Add(ref)
		p.Legend.Add("reference", ref)
	}
	if len(f.live) > 0 {
		live, err := plotter.NewLine(f.live)
		if err != nil {
			return err
		}
		live.Color = palette[1]
		p.Add(live)
		p.Legend.Add("live", live)
	}

	vehicle, err := plotter.NewScatter(plotter.XYs{{X: rec.Live.Pos.X, Y: rec.Live.Pos.Z}})
	if err != nil {
		return err
	}
	vehicle.Color = palette[0]
	p.Add(vehicle)

	path := filepath.Join(f.dir, fmt.Sprintf("frame_%04d.png", len(f.frames)))
	if err := p.Save(6*vg.Inch, 6*vg.Inch, path); err != nil {
		return err
	}
	f.frames = append(f.frames, path)
	return nil
}

// Frames lists the files written so far.
func (f *FrameRecorder) Frames() []string { return f.frames }
