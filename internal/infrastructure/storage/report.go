package storage

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"ContentCurator/internal/domain"
)

const (
	titleWidth  = 50
	authorWidth = 30
)

// RenderReport formats run as a markdown document: iterations, the top
// high quality items and summary statistics.
func RenderReport(run domain.PipelineRun, topN int) string {
	var b strings.Builder

	b.WriteString("# Content Curation Results\n\n")
	fmt.Fprintf(&b, "- Seed query: %s\n", run.SeedQuery)
	fmt.Fprintf(&b, "- Run: %s\n", run.ID)
	fmt.Fprintf(&b, "- Started: %s\n", run.StartedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "- Duration: %s\n", run.FinishedAt.Sub(run.StartedAt).Round(time.Second))
	fmt.Fprintf(&b, "- Stop reason: %s\n", run.StopReason)
	fmt.Fprintf(&b, "- Quality threshold: %.1f/10\n", run.QualityThreshold)

	b.WriteString("\n## Iterations\n\n")
	rows := [][]string{{"#", "Query", "Mode", "Discovered", "Evaluated", "Avg", "High quality", "Failed adapters"}}
	for _, rec := range run.Iterations {
		rows = append(rows, []string{
			fmt.Sprint(rec.IterationIndex),
			rec.QueryText,
			rec.SynthesisMode,
			fmt.Sprint(rec.ItemsDiscovered),
			fmt.Sprint(rec.ItemsEvaluated),
			fmt.Sprintf("%.2f", rec.AvgScore),
			fmt.Sprintf("%d (%.0f%%)", rec.HighQualityCount, rec.HighQualityRatio*100),
			strings.Join(rec.FailedAdapters, ", "),
		})
	}
	writeTable(&b, rows)

	b.WriteString("\n## High Quality Content\n\n")
	top := run.HighQuality()
	if len(top) == 0 {
		b.WriteString("No content reached the quality threshold.\n")
	} else {
		if topN > 0 && len(top) > topN {
			top = top[:topN]
		}
		rows = [][]string{{"Title", "Source", "Author", "Published", "Score", "URL"}}
		for _, s := range top {
			rows = append(rows, []string{
				runewidth.Truncate(orDefault(s.Item.Title, "Untitled"), titleWidth, "..."),
				string(s.Item.SourceType),
				runewidth.Truncate(orDefault(s.Item.Metadata.Author, "Unknown"), authorWidth, "..."),
				publishDate(s.Item.Metadata.PublishedAt),
				fmt.Sprintf("%.1f/10", s.Evaluation.OverallScore),
				fmt.Sprintf("[Link](%s)", s.Item.URL),
			})
		}
		writeTable(&b, rows)
		writeNotes(&b, top)
	}

	writeStats(&b, run)
	return b.String()
}

// writeNotes lists the backend's summary, per-perspective scores and
// per-dimension reasoning for the reported items that have any.
func writeNotes(b *strings.Builder, top []domain.ScoredItem) {
	header := false
	for _, s := range top {
		ev := s.Evaluation
		if ev.Summary == "" && len(ev.Reasoning) == 0 && len(ev.Perspectives) == 0 {
			continue
		}
		if !header {
			b.WriteString("\n### Reviewer Notes\n")
			header = true
		}
		fmt.Fprintf(b, "\n**%s** (%.1f/10)\n\n", escapeCell(orDefault(s.Item.Title, s.Item.URL)), ev.OverallScore)
		if ev.Summary != "" {
			fmt.Fprintf(b, "%s\n\n", escapeCell(ev.Summary))
		}
		for _, p := range ev.Perspectives {
			line := fmt.Sprintf("- %s: %.1f/10", p.Name, p.OverallScore)
			if p.Summary != "" {
				line += ", " + escapeCell(p.Summary)
			}
			b.WriteString(line + "\n")
		}
		dims := make([]string, 0, len(ev.Reasoning))
		for dim := range ev.Reasoning {
			dims = append(dims, dim)
		}
		sort.Strings(dims)
		for _, dim := range dims {
			fmt.Fprintf(b, "- %s (%.1f): %s\n", dim, ev.DimensionScores[dim], escapeCell(ev.Reasoning[dim]))
		}
	}
}

func writeStats(b *strings.Builder, run domain.PipelineRun) {
	c := run.Counts
	b.WriteString("\n## Statistics\n\n")
	fmt.Fprintf(b, "- Total items: %d\n", len(run.Items))
	fmt.Fprintf(b, "- Extraction: %d ok, %d partial, %d too short, %d failed\n",
		c.Extraction.OK, c.Extraction.Partial, c.Extraction.TooShort, c.Extraction.Failed)
	fmt.Fprintf(b, "- Evaluation: %d ok, %d error\n", c.Evaluation.OK, c.Evaluation.Error)
	fmt.Fprintf(b, "- Cache hits: %d fetch, %d scored\n", c.CacheHitsFetch, c.CacheHitsScored)

	var total float64
	var scored int
	for _, ev := range run.Evaluations {
		if ev.OK() {
			total += ev.OverallScore
			scored++
		}
	}
	if scored > 0 {
		fmt.Fprintf(b, "- Average quality: %.1f/10\n", total/float64(scored))
	}

	var earliest, latest *time.Time
	bySource := map[domain.SourceType]int{}
	for _, item := range run.Items {
		bySource[item.SourceType]++
		if p := item.Metadata.PublishedAt; p != nil {
			if earliest == nil || p.Before(*earliest) {
				earliest = p
			}
			if latest == nil || p.After(*latest) {
				latest = p
			}
		}
	}
	if earliest != nil {
		fmt.Fprintf(b, "- Date range: %s to %s\n", publishDate(earliest), publishDate(latest))
	}

	if len(bySource) > 0 {
		b.WriteString("\n### By Source\n\n")
		sources := make([]string, 0, len(bySource))
		for st := range bySource {
			sources = append(sources, string(st))
		}
		sort.Strings(sources)
		for _, st := range sources {
			fmt.Fprintf(b, "- %s: %d\n", st, bySource[domain.SourceType(st)])
		}
	}

	if len(run.AdapterFailures) > 0 {
		b.WriteString("\n### Adapter Failures\n\n")
		for _, f := range run.AdapterFailures {
			fmt.Fprintf(b, "- iteration %d, %s (%s): %s\n", f.IterationIndex, f.Adapter, f.SourceType, f.Detail)
		}
	}
}

// writeTable pads every cell to its column's display width so the raw
// markdown stays readable.
func writeTable(b *strings.Builder, rows [][]string) {
	if len(rows) == 0 {
		return
	}
	widths := make([]int, len(rows[0]))
	for _, row := range rows {
		for i, cell := range row {
			row[i] = escapeCell(cell)
			if w := runewidth.StringWidth(row[i]); w > widths[i] {
				widths[i] = w
			}
		}
	}
	for i := range widths {
		if widths[i] < 3 {
			widths[i] = 3
		}
	}

	writeRow := func(cells []string) {
		b.WriteString("|")
		for i, cell := range cells {
			b.WriteString(" ")
			b.WriteString(runewidth.FillRight(cell, widths[i]))
			b.WriteString(" |")
		}
		b.WriteString("\n")
	}

	writeRow(rows[0])
	sep := make([]string, len(widths))
	for i, w := range widths {
		sep[i] = strings.Repeat("-", w)
	}
	writeRow(sep)
	for _, row := range rows[1:] {
		writeRow(row)
	}
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "|", `\|`)
}

func publishDate(t *time.Time) string {
	if t == nil {
		return "N/A"
	}
	return t.UTC().Format("2006-01-02")
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
