package viz

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/dronetrace/internal/compare"
	"github.com/san-kum/dronetrace/internal/dynamo"
)

const (
	viewCols       = 48
	viewRows       = 14
	historyLimit   = 600
	chartWidth     = 40
	chartHeight    = 6
	sparklineWidth = 30
)

var (
	canvasStyle = lipgloss.NewStyle().Padding(1, 2)
	statsStyle  = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(lipgloss.Color("240")).
			Padding(1, 2).
			Width(58)
	helpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).MarginTop(1)
)

// StepMsg carries a copy of one step into the live view.
type StepMsg dynamo.StepRecord

// DoneMsg ends the live view once the run has stopped.
type DoneMsg struct {
	Summary compare.Summary
	Err     error
}

// Model is the bubbletea model of a running comparison. It never touches the
// driver; all data arrives as messages.
type Model struct {
	title  string
	steps  int
	onQuit func()

	view    *SideView
	altRef  []float64
	altLive []float64
	errs    []float64
	last    dynamo.StepRecord
	seen    int

	done    bool
	summary compare.Summary
	err     error
}

// NewModel builds a live view for a run of steps steps. onQuit, when set, is
// called once if the user quits before the run is done.
func NewModel(title string, steps int, onQuit func()) Model {
	return Model{
		title:  title,
		steps:  steps,
		onQuit: onQuit,
		view:   NewSideView(viewCols, viewRows, historyLimit),
	}
}

func (m Model) Init() tea.Cmd { return nil }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			if !m.done && m.onQuit != nil {
				m.onQuit()
				m.onQuit = nil
			}
			return m, tea.Quit
		}
	case StepMsg:
		rec := dynamo.StepRecord(msg)
		m.view.Push(rec)
		m.altRef = pushCapped(m.altRef, rec.Reference.Pos.Z)
		m.altLive = pushCapped(m.altLive, rec.Live.Pos.Z)
		m.errs = pushCapped(m.errs, rec.PosErr)
		m.last = rec
		m.seen++
	case DoneMsg:
		m.done = true
		m.summary = msg.Summary
		m.err = msg.Err
		return m, tea.Quit
	}
	return m, nil
}

func pushCapped(xs []float64, v float64) []float64 {
	if len(xs) >= historyLimit {
		xs = append(xs[:0], xs[1:]...)
	}
	return append(xs, v)
}

// Done reports whether the run finished, and with which error.
func (m Model) Done() (bool, error) { return m.done, m.err }

func (m Model) View() string {
	var s strings.Builder
	s.WriteString(titleStyle.Render(strings.ToUpper(m.title)) + "\n")

	switch {
	case m.done && m.err != nil:
		s.WriteString(failedStyle.Render("FAILED") + " " + subtleStyle.Render(m.err.Error()) + "\n\n")
	case m.done:
		s.WriteString(doneStyle.Render("DONE") + "\n\n")
	default:
		s.WriteString(runningStyle.Render("RUNNING") + "\n\n")
	}

	rec := m.last
	frac := 0.0
	if m.steps > 0 {
		frac = float64(rec.Step+1) / float64(m.steps)
		if m.seen == 0 {
			frac = 0
		}
		if m.done && m.err == nil {
			frac = 1
		}
	}
	s.WriteString(ProgressBar(frac, sparklineWidth) + fmt.Sprintf(" %3.0f%%\n\n", frac*100))

	s.WriteString(row("Sim time", fmt.Sprintf("%.2fs", rec.Time)) + "\n")
	s.WriteString(row("Trace time", fmt.Sprintf("%.2fs", rec.TraceTime)) + "\n")
	s.WriteString(row("Live", fmt.Sprintf("%+.3f %+.3f %+.3f", rec.Live.Pos.X, rec.Live.Pos.Y, rec.Live.Pos.Z)) + "\n")
	s.WriteString(row("Reference", fmt.Sprintf("%+.3f %+.3f %+.3f", rec.Reference.Pos.X, rec.Reference.Pos.Y, rec.Reference.Pos.Z)) + "\n")
	s.WriteString(labelStyle.Render("Pos error") + ErrorStyle(rec.PosErr).Render(fmt.Sprintf("%.4f m", rec.PosErr)) + "\n")
	s.WriteString(row("Yaw error", fmt.Sprintf("%.4f rad", rec.YawErr)) + "\n")
	s.WriteString(row("RPM", fmt.Sprintf("%.0f %.0f %.0f %.0f", rec.Command[0], rec.Command[1], rec.Command[2], rec.Command[3])) + "\n")
	s.WriteString(labelStyle.Render("Error") + subtleStyle.Render(Sparkline(m.errs, sparklineWidth)) + "\n\n")

	if len(m.altLive) >= 2 {
		s.WriteString(altitudePlot([][]float64{m.altRef, m.altLive}, chartWidth, chartHeight, "altitude: reference (green), live (cyan)") + "\n")
	}

	if m.done && m.err == nil {
		s.WriteString("\n" + RenderSummary(m.summary) + "\n")
	}
	s.WriteString(helpStyle.Render("q: quit"))

	canvas := canvasStyle.Render(m.view.Render())
	return lipgloss.JoinHorizontal(lipgloss.Top, canvas, statsStyle.Render(s.String()))
}

// Sender is the part of tea.Program the observer needs.
type Sender interface {
	Send(msg tea.Msg)
}

var _ compare.Observer = (*ProgramObserver)(nil)

// ProgramObserver forwards every nth step to a running tea.Program.
type ProgramObserver struct {
	to    Sender
	every int
}

// NewProgramObserver sends roughly fps updates per simulated second at the
// given control rate.
func NewProgramObserver(to Sender, rate, fps int) *ProgramObserver {
	every := 1
	if fps > 0 && rate > fps {
		every = rate / fps
	}
	return &ProgramObserver{to: to, every: every}
}

func (o *ProgramObserver) Observe(rec dynamo.StepRecord) {
	if rec.Step%o.every == 0 {
		o.to.Send(StepMsg(rec))
	}
}
