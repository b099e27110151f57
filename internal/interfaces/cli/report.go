package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/GanizaniSitara/controls-ux/internal/application/dto"
	"github.com/GanizaniSitara/controls-ux/internal/domain/entity"
)

var (
	accent  = lipgloss.Color("#2563EB")
	fg      = lipgloss.Color("#E5E7EB")
	dim     = lipgloss.Color("#6B7280")
	faint   = lipgloss.Color("#3F3F46")
	success = lipgloss.Color("#22C55E")
	warning = lipgloss.Color("#F59E0B")
	danger  = lipgloss.Color("#EF4444")
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(accent)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Padding(0, 2).
			Width(76)

	nameStyle     = lipgloss.NewStyle().Bold(true).Foreground(fg).Width(34)
	dimStyle      = lipgloss.NewStyle().Foreground(dim)
	faintStyle    = lipgloss.NewStyle().Foreground(faint)
	passStyle     = lipgloss.NewStyle().Foreground(success)
	warnStyle     = lipgloss.NewStyle().Foreground(warning)
	failStyle     = lipgloss.NewStyle().Foreground(danger)
	separatorLine = faintStyle.Render(strings.Repeat("─", 76))
)

const barWidth = 20

// RenderFitnessReport renders fitness results as a terminal table headed by
// the snapshot source and its metadata.
func RenderFitnessReport(source string, meta entity.CacheMetadata, results []*dto.FitnessResultDTO) string {
	var b strings.Builder

	header := headerStyle.Render("Controls fitness report") + "\n" +
		dimStyle.Render(summaryLines(source, meta))
	b.WriteString(boxStyle.Render(header))
	b.WriteString("\n\n")

	if len(results) == 0 {
		b.WriteString(dimStyle.Render("  no fitness results"))
		b.WriteString("\n")
		return b.String()
	}

	for _, r := range results {
		pct := r.PassingPercentage
		fmt.Fprintf(&b, "  %s %s %s  %s %s %s\n",
			nameStyle.Render(truncate(r.Name, 34)),
			coloredBar(pct, barWidth),
			scoreStyle(pct).Render(fmt.Sprintf("%5.1f%%", pct)),
			passStyle.Render(fmt.Sprintf("%d pass", r.PassingCount)),
			warnStyle.Render(fmt.Sprintf("%d warn", r.WarningCount)),
			failStyle.Render(fmt.Sprintf("%d fail", r.FailingCount)),
		)
	}
	b.WriteString(separatorLine)
	b.WriteString("\n")
	return b.String()
}

func summaryLines(source string, meta entity.CacheMetadata) string {
	lines := []string{fmt.Sprintf("source %s · %d applications", source, meta.Size)}
	if meta.LastUpdate != nil {
		lines = append(lines, "updated "+meta.LastUpdate.UTC().Format("2006-01-02 15:04:05Z"))
	}
	if len(meta.FailedProviders) > 0 {
		lines = append(lines, "failed providers: "+strings.Join(meta.FailedProviders, ", "))
	}
	if meta.LastError != "" {
		lines = append(lines, "last error: "+meta.LastError)
	}
	return strings.Join(lines, "\n")
}

func coloredBar(pct float64, width int) string {
	filled := int(pct / 100 * float64(width))
	if filled < 0 {
		filled = 0
	}
	if filled > width {
		filled = width
	}
	style := scoreStyle(pct)
	return style.Render(strings.Repeat("█", filled)) + faintStyle.Render(strings.Repeat("░", width-filled))
}

func scoreStyle(pct float64) lipgloss.Style {
	switch {
	case pct >= 80:
		return passStyle
	case pct >= 50:
		return warnStyle
	default:
		return failStyle
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
