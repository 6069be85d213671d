package viz

import (
	"fmt"
	"io"

	"github.com/san-kum/dronetrace/internal/compare"
	"github.com/san-kum/dronetrace/internal/dynamo"
)

var _ compare.Renderer = (*Printout)(nil)

// Printout writes one status line per rendered step: simulated and trace
// time, live and reference position, tracking errors and rotor speeds.
type Printout struct {
	w     io.Writer
	steps int
}

// NewPrintout writes to w. steps is the run length shown next to the step
// index; zero omits it.
func NewPrintout(w io.Writer, steps int) *Printout {
	return &Printout{w: w, steps: steps}
}

func (p *Printout) Render(rec dynamo.StepRecord) error {
	it := fmt.Sprintf("it %05d", rec.Step)
	if p.steps > 0 {
		it = fmt.Sprintf("it %05d/%05d", rec.Step, p.steps)
	}
	live, ref := rec.Live.Pos, rec.Reference.Pos
	_, err := fmt.Fprintf(p.w, "%s %s %s\n  %s %s\n  %s %s\n  %s %s\n",
		titleStyle.Render(it),
		subtleStyle.Render(fmt.Sprintf("sim %6.2fs", rec.Time)),
		subtleStyle.Render(fmt.Sprintf("trace %6.2fs", rec.TraceTime)),
		subtleStyle.Render("live"),
		valueStyle.Render(fmt.Sprintf("x %+06.2f y %+06.2f z %+06.2f  r %+05.2f p %+05.2f y %+05.2f",
			live.X, live.Y, live.Z, rec.Live.RPY.X, rec.Live.RPY.Y, rec.Live.RPY.Z)),
		subtleStyle.Render("ref "),
		valueStyle.Render(fmt.Sprintf("x %+06.2f y %+06.2f z %+06.2f", ref.X, ref.Y, ref.Z)),
		subtleStyle.Render("err "),
		ErrorStyle(rec.PosErr).Render(fmt.Sprintf("pos %.3f yaw %.3f  rpm %.0f %.0f %.0f %.0f",
			rec.PosErr, rec.YawErr, rec.Command[0], rec.Command[1], rec.Command[2], rec.Command[3])),
	)
	return err
}
