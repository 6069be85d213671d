package viz

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/dronetrace/internal/compare"
	"github.com/san-kum/dronetrace/internal/dynamo"
	"github.com/san-kum/dronetrace/internal/recorder"
)

// RenderSummary formats a finished run as a bordered panel.
func RenderSummary(sum compare.Summary) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("RUN SUMMARY") + "\n\n")
	b.WriteString(row("Rate", fmt.Sprintf("%d Hz", sum.Rate)) + "\n")
	b.WriteString(row("Duration", fmt.Sprintf("%d s", sum.Duration)) + "\n")
	b.WriteString(row("Steps", fmt.Sprintf("%d / %d samples", sum.Steps, sum.TraceSamples)) + "\n")
	b.WriteString(row("Alt offset", fmt.Sprintf("%+.4f m", sum.AltitudeOffset)) + "\n")
	if sum.Elapsed > 0 {
		b.WriteString(row("Wall time", sum.Elapsed.Round(time.Millisecond).String()) + "\n")
	}
	if sum.Overruns > 0 {
		b.WriteString(row("Overruns", warnStyle.Render(fmt.Sprintf("%d", sum.Overruns))) + "\n")
	}

	f := sum.Final
	b.WriteString("\n" + row("Final pos", fmt.Sprintf("%+.3f %+.3f %+.3f", f.Live.Pos.X, f.Live.Pos.Y, f.Live.Pos.Z)) + "\n")
	b.WriteString(row("Target", fmt.Sprintf("%+.3f %+.3f %+.3f", f.Target.Pos.X, f.Target.Pos.Y, f.Target.Pos.Z)) + "\n")
	b.WriteString(labelStyle.Render("Pos error") + ErrorStyle(f.PosErr).Render(fmt.Sprintf("%.4f m", f.PosErr)) + "\n")

	if len(sum.Metrics) > 0 {
		names := make([]string, 0, len(sum.Metrics))
		for name := range sum.Metrics {
			names = append(names, name)
		}
		sort.Strings(names)
		b.WriteString("\n" + subtleStyle.Render("METRICS") + "\n")
		for _, name := range names {
			b.WriteString(fmt.Sprintf("  %-20s %s\n", name, valueStyle.Render(fmt.Sprintf("%.4f", sum.Metrics[name]))))
		}
	}
	return panelStyle.Render(strings.TrimRight(b.String(), "\n"))
}

// AltitudeChart plots reference and live altitude of a recorded run, each
// resampled to at most width points.
func AltitudeChart(snap recorder.Snapshot, width, height int) string {
	ref := altitudes(snap[dynamo.TrackReference], width)
	live := altitudes(snap[dynamo.TrackLive], width)
	if len(live) < 2 {
		return subtleStyle.Render("(no samples)")
	}
	series := [][]float64{live}
	caption := "altitude [m]: live"
	if len(ref) >= 2 {
		series = [][]float64{ref, live}
		caption = "altitude [m]: reference (green), live (cyan)"
	}
	return altitudePlot(series, width, height, caption)
}

func altitudePlot(series [][]float64, width, height int, caption string) string {
	colors := []asciigraph.AnsiColor{asciigraph.Cyan}
	if len(series) == 2 {
		colors = []asciigraph.AnsiColor{asciigraph.Green, asciigraph.Cyan}
	}
	return asciigraph.PlotMany(series,
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Precision(2),
		asciigraph.SeriesColors(colors...),
		asciigraph.Caption(caption))
}

func altitudes(recs []recorder.Record, width int) []float64 {
	if len(recs) == 0 {
		return nil
	}
	n := len(recs)
	if width > 0 && n > width {
		n = width
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = recs[i*len(recs)/n].State.Pos.Z
	}
	return out
}
