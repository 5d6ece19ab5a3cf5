package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"ContentCurator/internal/domain"
	"ContentCurator/internal/ports"
)

const (
	scorerSystemPrompt = `You are an engineering director with twenty years of experience growing technical talent.
You judge learning material purely on technical merit and on how much it helps an ambitious engineer grow without depending on a manager's opinion.
You are rigorous, evidence driven and free of bias. You answer with JSON only.`

	maxScoredRunes = 12000
)

// Scorer implements ports.ScoringBackend on top of a chat model.
type Scorer struct {
	completer ports.Completer
}

var _ ports.ScoringBackend = (*Scorer)(nil)

// NewScorer wraps completer.
func NewScorer(completer ports.Completer) *Scorer {
	return &Scorer{completer: completer}
}

// Score asks the model for a 0-10 score per dimension. The raw values are
// returned as parsed; range checks and coercion happen in the evaluator.
func (s *Scorer) Score(ctx context.Context, text string, dimensions []domain.Dimension) (map[string]any, error) {
	reply, err := s.completer.Complete(ctx, scorerSystemPrompt, scoringPrompt(text, dimensions))
	if err != nil {
		return nil, err
	}

	raw, ok := parseScores(reply, dimensions)
	if !ok {
		return nil, fmt.Errorf("%w: no scores in reply %q", domain.ErrScoringParse, truncate(reply, 200))
	}
	return raw, nil
}

func scoringPrompt(text string, dimensions []domain.Dimension) string {
	var b strings.Builder
	b.WriteString("Assess this content:\n\n---\n")
	b.WriteString(truncate(text, maxScoredRunes))
	b.WriteString("\n---\n\nScore it on each criterion from 0 (worthless) to 10 (exceptional):\n\n")
	for i, d := range dimensions {
		fmt.Fprintf(&b, "%d. %s", i+1, d.Name)
		if d.Description != "" {
			b.WriteString(": " + d.Description)
		}
		b.WriteString("\n")
	}
	b.WriteString("\nIf a criterion cannot be judged from this content, use \"N/A\" as its score.\n")
	b.WriteString("Reply with a JSON object of this shape and nothing else:\n")
	b.WriteString(`{"scores": {"<criterion>": {"score": 7, "reasoning": "one or two sentences"}}, "summary": "one sentence"}`)
	return b.String()
}

var scoreLine = regexp.MustCompile(`(?im)^[\s*\-\d.)]*([a-z][a-z _-]+?)\s*[:=\-]\s*(n/?a|\d+(?:\.\d+)?(?:\s*/\s*\d+)?)`)

// parseScores reads a JSON object from reply, falling back to
// "name: score" lines when the model ignored the format.
func parseScores(reply string, dimensions []domain.Dimension) (map[string]any, bool) {
	if body, ok := extractJSON(reply); ok {
		dec := json.NewDecoder(strings.NewReader(body))
		dec.UseNumber()
		var raw map[string]any
		if err := dec.Decode(&raw); err == nil && len(raw) > 0 {
			return raw, true
		}
	}

	known := map[string]bool{}
	for _, d := range dimensions {
		known[normalizeName(d.Name)] = true
	}
	raw := map[string]any{}
	for _, m := range scoreLine.FindAllStringSubmatch(reply, -1) {
		name := normalizeName(m[1])
		if known[name] {
			raw[name] = strings.TrimSpace(m[2])
		}
	}
	return raw, len(raw) > 0
}

// extractJSON returns the first fenced JSON block, or the outermost brace
// span of reply.
func extractJSON(reply string) (string, bool) {
	if start := strings.Index(reply, "```"); start >= 0 {
		rest := reply[start+3:]
		rest = strings.TrimPrefix(rest, "json")
		if end := strings.Index(rest, "```"); end >= 0 {
			body := strings.TrimSpace(rest[:end])
			if strings.HasPrefix(body, "{") || strings.HasPrefix(body, "[") {
				return body, true
			}
		}
	}
	open := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if open < 0 || end <= open {
		return "", false
	}
	return reply[open : end+1], true
}

func normalizeName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(name)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
