package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"ContentCurator/internal/domain"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errorStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
)

// renderSummary prints the iterations and the top high quality items.
func renderSummary(run domain.PipelineRun, top int) string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render(fmt.Sprintf("%s  (%s)", run.SeedQuery, run.StopReason)))
	sb.WriteString("\n\n")

	rows := [][]string{{"#", "Query", "Mode", "Found", "Scored", "Avg", "HQ"}}
	for _, rec := range run.Iterations {
		rows = append(rows, []string{
			fmt.Sprint(rec.IterationIndex),
			runewidth.Truncate(rec.QueryText, 40, "..."),
			rec.SynthesisMode,
			fmt.Sprint(rec.ItemsDiscovered),
			fmt.Sprint(rec.ItemsEvaluated),
			fmt.Sprintf("%.2f", rec.AvgScore),
			fmt.Sprintf("%.0f%%", rec.HighQualityRatio*100),
		})
	}
	sb.WriteString(renderRows(rows))
	sb.WriteString("\n")

	best := run.HighQuality()
	if len(best) == 0 {
		sb.WriteString(warnStyle.Render(fmt.Sprintf("no items reached %.1f", run.QualityThreshold)))
		sb.WriteString("\n")
	} else {
		if len(best) > top {
			best = best[:top]
		}
		rows = [][]string{{"Score", "Source", "Title"}}
		for _, s := range best {
			rows = append(rows, []string{
				fmt.Sprintf("%.1f", s.Evaluation.OverallScore),
				string(s.Item.SourceType),
				runewidth.Truncate(s.Item.Title, 60, "..."),
			})
		}
		sb.WriteString(renderRows(rows))
		for _, s := range best {
			sb.WriteString(mutedStyle.Render(s.Item.URL))
			sb.WriteString("\n")
		}
	}

	if n := len(run.AdapterFailures); n > 0 {
		sb.WriteString(warnStyle.Render(fmt.Sprintf("%d adapter failures, see the report for details", n)))
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

// renderRows renders rows[0] as the header and the rest as body rows.
func renderRows(rows [][]string) string {
	if len(rows) == 0 {
		return ""
	}
	widths := make([]int, len(rows[0]))
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) {
				widths[i] = max(widths[i], lipgloss.Width(cell)+2)
			}
		}
	}

	var sb strings.Builder
	sep := mutedStyle.Render("|")
	for r, row := range rows {
		style := cellStyle
		if r == 0 {
			style = headerStyle
		}
		for i, cell := range row {
			if i >= len(widths) {
				break
			}
			sb.WriteString(style.Width(widths[i]).Render(cell))
			if i < len(row)-1 {
				sb.WriteString(sep)
			}
		}
		sb.WriteString("\n")
		if r == 0 {
			total := len(widths) - 1
			for _, w := range widths {
				total += w
			}
			sb.WriteString(mutedStyle.Render(strings.Repeat("-", total)))
			sb.WriteString("\n")
		}
	}
	return sb.String()
}
