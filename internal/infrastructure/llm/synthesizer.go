package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"ContentCurator/internal/domain"
	"ContentCurator/internal/ports"
)

const synthesizerSystemPrompt = `You design web search queries for a research assistant that curates engineering career content.
Empirically, broader queries outperform narrow ones: short queries of two to five words that name a topic find more high quality material than long, stacked keyword lists.
You answer with JSON only.`

// Synthesizer implements ports.QuerySynthesizer on top of a chat model.
type Synthesizer struct {
	completer ports.Completer
}

var _ ports.QuerySynthesizer = (*Synthesizer)(nil)

// NewSynthesizer wraps completer.
func NewSynthesizer(completer ports.Completer) *Synthesizer {
	return &Synthesizer{completer: completer}
}

// Synthesize proposes up to req.MaxCandidates follow-up queries. Every
// failure is wrapped in domain.ErrSynthesisFailure.
func (s *Synthesizer) Synthesize(ctx context.Context, req ports.SynthesisRequest) ([]string, error) {
	reply, err := s.completer.Complete(ctx, synthesizerSystemPrompt, synthesisPrompt(req))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSynthesisFailure, err)
	}

	queries := parseQueries(reply)
	if len(queries) == 0 {
		return nil, fmt.Errorf("%w: no queries in reply %q", domain.ErrSynthesisFailure, truncate(reply, 200))
	}
	if req.MaxCandidates > 0 && len(queries) > req.MaxCandidates {
		queries = queries[:req.MaxCandidates]
	}
	return queries, nil
}

func synthesisPrompt(req ports.SynthesisRequest) string {
	n := req.MaxCandidates
	if n <= 0 {
		n = 5
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Seed query: %s\nCurrent query: %s\n\n", req.SeedQuery, req.CurrentQuery)
	if len(req.History) > 0 {
		b.WriteString("Previous iterations:\n")
		for _, rec := range req.History {
			fmt.Fprintf(&b, "- %q: %d evaluated, average %.2f, %.0f%% high quality\n",
				rec.QueryText, rec.ItemsEvaluated, rec.AvgScore, rec.HighQualityRatio*100)
		}
		b.WriteString("\n")
	}
	if len(req.Themes) > 0 {
		fmt.Fprintf(&b, "Themes in the best results: %s\n", strings.Join(req.Themes, ", "))
	}
	if len(req.TopTitles) > 0 {
		b.WriteString("Best titles:\n")
		for _, t := range req.TopTitles {
			fmt.Fprintf(&b, "- %s\n", t)
		}
	}
	fmt.Fprintf(&b, "\nPropose %d new queries that stay on the seed topic, explore the strongest themes and differ from every previous query.\n", n)
	b.WriteString(`Reply as {"queries": ["...", "..."]}`)
	return b.String()
}

// parseQueries accepts {"queries": [...]}, a bare JSON array or one query
// per line.
func parseQueries(reply string) []string {
	if body, ok := extractJSON(reply); ok {
		var wrapped struct {
			Queries []string `json:"queries"`
		}
		if err := json.Unmarshal([]byte(body), &wrapped); err == nil && len(wrapped.Queries) > 0 {
			return clean(wrapped.Queries)
		}
	}
	if open, end := strings.Index(reply, "["), strings.LastIndex(reply, "]"); open >= 0 && end > open {
		var list []string
		if err := json.Unmarshal([]byte(reply[open:end+1]), &list); err == nil {
			return clean(list)
		}
	}

	var lines []string
	for _, line := range strings.Split(reply, "\n") {
		line = strings.TrimLeft(strings.TrimSpace(line), "-*0123456789.) ")
		if line == "" || strings.ContainsAny(line, "{}[]") || strings.HasSuffix(line, ":") {
			continue
		}
		lines = append(lines, line)
	}
	return clean(lines)
}

func clean(queries []string) []string {
	out := make([]string, 0, len(queries))
	seen := map[string]bool{}
	for _, q := range queries {
		q = strings.Trim(strings.TrimSpace(q), `"'`)
		q = strings.Join(strings.Fields(q), " ")
		key := strings.ToLower(q)
		if q == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, q)
	}
	return out
}
