package usecase

import (
	"context"
	"sort"
	"strings"

	"ContentCurator/internal/domain"
	"ContentCurator/internal/ports"
)

// Synthesis modes recorded on iteration records.
const (
	ModeSeed     = "seed"
	ModeLLM      = "llm"
	ModeTemplate = "template"
)

type evolutionState struct {
	seed     string
	current  string
	history  []domain.QueryIterationRecord
	analysis analysis
	seen     map[string]bool
}

// nextQuery proposes the follow-up query. An empty result means no new
// query could be produced and the run stops.
func (p *Pipeline) nextQuery(ctx context.Context, st evolutionState, cfg RunConfig) (string, string) {
	if p.synthesizer != nil {
		candidates, err := p.synthesizer.Synthesize(ctx, ports.SynthesisRequest{
			SeedQuery:     st.seed,
			CurrentQuery:  st.current,
			History:       st.history,
			Themes:        st.analysis.Themes,
			TopTitles:     st.analysis.TopTitles,
			MaxCandidates: cfg.MaxCandidates,
		})
		if err == nil {
			ranked := rankCandidates(candidates, st)
			if len(ranked) == 0 {
				return "", ModeLLM
			}
			return ranked[0], ModeLLM
		}
		if ctx.Err() != nil {
			return "", ModeLLM
		}
		p.logger.Warn("query synthesis failed, using template", "error", err)
	}

	q := templateQuery(st.current, st.analysis.Themes, 2)
	if q == "" || st.seen[queryKey(q)] {
		return "", ModeTemplate
	}
	return q, ModeTemplate
}

// templateQuery appends up to n themes missing from the current query.
func templateQuery(current string, themes []string, n int) string {
	present := map[string]bool{}
	for _, t := range tokenize(current) {
		present[t] = true
	}

	var extra []string
	for _, th := range themes {
		if len(extra) == n {
			break
		}
		if !present[strings.ToLower(th)] {
			extra = append(extra, th)
		}
	}
	if len(extra) == 0 {
		return ""
	}
	return strings.TrimSpace(current + " " + strings.Join(extra, " "))
}

type candidate struct {
	query     string
	relevance float64
	coverage  int
	terms     int
	order     int
}

// rankCandidates drops empty and already used queries and orders the rest
// by projected relevance, then adapter coverage, then fewer terms.
func rankCandidates(queries []string, st evolutionState) []string {
	themeWeight := map[string]float64{}
	for i, th := range st.analysis.Themes {
		themeWeight[strings.ToLower(th)] = float64(len(st.analysis.Themes)-i) / float64(len(st.analysis.Themes))
	}
	seedTerms := map[string]bool{}
	for _, t := range tokenize(st.seed) {
		seedTerms[t] = true
	}

	var cands []candidate
	used := map[string]bool{}
	for i, q := range queries {
		q = strings.Join(strings.Fields(q), " ")
		key := queryKey(q)
		if q == "" || st.seen[key] || used[key] {
			continue
		}
		used[key] = true

		terms := tokenize(q)
		c := candidate{query: q, terms: len(strings.Fields(q)), order: i}
		types := map[domain.SourceType]bool{}
		for _, t := range terms {
			c.relevance += themeWeight[t]
			if seedTerms[t] {
				c.relevance += 0.5
			}
			for srcType := range st.analysis.Coverage[t] {
				types[srcType] = true
			}
		}
		c.coverage = len(types)
		cands = append(cands, c)
	}

	sort.SliceStable(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.relevance != b.relevance {
			return a.relevance > b.relevance
		}
		if a.coverage != b.coverage {
			return a.coverage > b.coverage
		}
		if a.terms != b.terms {
			return a.terms < b.terms
		}
		return a.order < b.order
	})

	out := make([]string, len(cands))
	for i, c := range cands {
		out[i] = c.query
	}
	return out
}

func queryKey(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}
