package usecase

import (
	"fmt"
	"strings"

	"ContentCurator/internal/domain"
)

// buildDigestMessage lists the best items of run, at most limit of them.
// It returns an empty string when nothing reached the quality threshold.
func buildDigestMessage(run domain.PipelineRun, limit int) string {
	top := run.HighQuality()
	if len(top) == 0 {
		return ""
	}
	if limit > 0 && len(top) > limit {
		top = top[:limit]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d high quality of %d items\n\n", run.SeedQuery, len(run.HighQuality()), len(run.Items))
	for _, s := range top {
		title := s.Item.Title
		if title == "" {
			title = s.Item.URL
		}
		fmt.Fprintf(&b, "- %s\nScore: %.2f (%s)\n%s\n\n",
			title,
			s.Evaluation.OverallScore,
			s.Item.SourceType,
			s.Item.URL)
	}
	return strings.TrimRight(b.String(), "\n")
}
