package viz

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444466")).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00ffff"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888899")).
			Width(12)

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00ccff")).
			Bold(true)

	subtleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666688"))

	runningStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00ff88"))

	doneStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#ffaa00"))

	failedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#ff4444"))

	goodStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#00ff88"))
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#ffcc00"))
	badStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff4444"))
)

// ErrorStyle colours a tracking error by magnitude in meters.
func ErrorStyle(err float64) lipgloss.Style {
	switch {
	case err < 0.05:
		return goodStyle
	case err < 0.25:
		return warnStyle
	default:
		return badStyle
	}
}

// ProgressBar renders a fraction in [0, 1] as a bar of the given width.
func ProgressBar(frac float64, width int) string {
	filled := int(frac * float64(width))
	filled = max(0, min(filled, width))
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	switch {
	case frac >= 1:
		return goodStyle.Render(bar)
	case frac > 0.5:
		return warnStyle.Render(bar)
	default:
		return subtleStyle.Render(bar)
	}
}

// Sparkline squeezes values into width block characters, sampling evenly.
func Sparkline(values []float64, width int) string {
	if len(values) == 0 || width <= 0 {
		return strings.Repeat("─", max(width, 0))
	}
	blocks := []rune("▁▂▃▄▅▆▇█")

	lo, hi := values[0], values[0]
	for _, v := range values {
		lo, hi = min(lo, v), max(hi, v)
	}
	span := hi - lo
	if span == 0 {
		span = 1
	}

	n := min(width, len(values))
	var b strings.Builder
	for i := 0; i < n; i++ {
		v := values[i*len(values)/n]
		idx := int((v - lo) / span * float64(len(blocks)-1))
		b.WriteRune(blocks[max(0, min(idx, len(blocks)-1))])
	}
	return b.String()
}

func row(label, value string) string {
	return labelStyle.Render(label) + valueStyle.Render(value)
}

// Highlight renders s in the title colour.
func Highlight(s string) string { return titleStyle.Render(s) }
