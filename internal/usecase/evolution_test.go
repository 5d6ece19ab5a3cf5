package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ContentCurator/internal/domain"
)

func okEval(url string, score float64) domain.EvaluationResult {
	return domain.EvaluationResult{ItemURL: url, OverallScore: score, Status: domain.EvaluationOK}
}

func TestAnalyzeComputesQualityMetrics(t *testing.T) {
	items := []domain.ContentItem{
		{URL: "https://a.example/1", Title: "Kubernetes operators in practice", SourceType: domain.SourceArticle, RawText: "operators reconcile state"},
		{URL: "https://b.example/2", Title: "Writing operators", SourceType: domain.SourceVideo, RawText: "reconcile loops and operators"},
		{URL: "https://c.example/3", Title: "Low effort listicle", SourceType: domain.SourceWeb, RawText: "ten tips"},
	}
	evals := []domain.EvaluationResult{
		okEval("https://a.example/1", 8),
		okEval("https://b.example/2", 6),
		okEval("https://c.example/3", 1),
		{ItemURL: "https://d.example/4", Status: domain.EvaluationError},
	}

	got := analyze("kubernetes", items, evals, 4.0, 5)

	assert.Equal(t, 3, got.Evaluated)
	assert.InDelta(t, 5.0, got.AvgScore, 1e-9)
	assert.InDelta(t, 2.0/3.0, got.HighQualityRatio, 1e-9)
	assert.Equal(t, 2, got.HighQualityCount)
	assert.Equal(t, []string{"a.example", "b.example", "c.example"}, got.SourceDomains)
	assert.Equal(t, []string{"Kubernetes operators in practice", "Writing operators"}, got.TopTitles)

	require.NotEmpty(t, got.Themes)
	assert.Equal(t, "operators", got.Themes[0])
	assert.NotContains(t, got.Themes, "kubernetes", "query terms are excluded")
	assert.NotContains(t, got.Themes, "tips", "low scorers do not contribute themes")
	assert.True(t, got.Coverage["operators"][domain.SourceArticle])
	assert.True(t, got.Coverage["operators"][domain.SourceVideo])
}

func TestAnalyzeWithoutEvaluations(t *testing.T) {
	got := analyze("q", nil, nil, 4.0, 5)
	assert.Zero(t, got.Evaluated)
	assert.Zero(t, got.AvgScore)
	assert.Zero(t, got.HighQualityRatio)
	assert.Empty(t, got.Themes)
}

func TestTokenizeDropsStopWordsAndShortTerms(t *testing.T) {
	assert.Equal(t, []string{"event-driven", "systems", "scale"}, tokenize("How Event-Driven systems scale, in 2024, at 10x"))
}

func TestTemplateQueryAppendsMissingThemes(t *testing.T) {
	assert.Equal(t, "rust async runtime tokio", templateQuery("rust async", []string{"async", "runtime", "tokio", "futures"}, 2))
	assert.Equal(t, "", templateQuery("rust async", []string{"rust", "async"}, 2))
}

func TestRankCandidatesPrefersRelevanceThenCoverage(t *testing.T) {
	st := evolutionState{
		seed: "rust async",
		seen: map[string]bool{"rust async": true},
		analysis: analysis{
			Themes: []string{"runtime", "tokio", "futures"},
			Coverage: map[string]map[domain.SourceType]bool{
				"runtime": {domain.SourceArticle: true},
				"tokio":   {domain.SourceArticle: true, domain.SourceVideo: true},
			},
		},
	}

	got := rankCandidates([]string{
		"rust async",
		"cooking recipes",
		"tokio internals",
		"rust runtime",
		"async runtime design",
		"rust runtime",
	}, st)

	assert.Equal(t, []string{"rust runtime", "async runtime design", "tokio internals", "cooking recipes"}, got)
}

func TestRankCandidatesBreaksTiesTowardCoverageThenBrevity(t *testing.T) {
	st := evolutionState{
		seen: map[string]bool{},
		analysis: analysis{
			Coverage: map[string]map[domain.SourceType]bool{
				"podcasts": {domain.SourceVideo: true, domain.SourceArticle: true},
			},
		},
	}

	got := rankCandidates([]string{"long winded query text", "short query", "podcasts"}, st)
	assert.Equal(t, []string{"podcasts", "short query", "long winded query text"}, got)
}

func TestShouldStopOrder(t *testing.T) {
	cfg := RunConfig{MaxIterations: 3, DegradationFloor: 0.5}
	history := []domain.QueryIterationRecord{{AvgScore: 6}, {AvgScore: 2}}

	reason, stop := shouldStop(1, history, cfg)
	require.True(t, stop)
	assert.Equal(t, domain.StopQualityDropped, reason)

	reason, stop = shouldStop(2, append(history, domain.QueryIterationRecord{AvgScore: 1}), cfg)
	require.True(t, stop)
	assert.Equal(t, domain.StopMaxIterations, reason)

	_, stop = shouldStop(0, history[:1], cfg)
	assert.False(t, stop)
}

func TestRunConfigNormalizedAppliesDefaults(t *testing.T) {
	cfg := RunConfig{DegradationFloor: 2}.normalized()
	def := DefaultRunConfig()
	assert.Equal(t, def.MaxIterations, cfg.MaxIterations)
	assert.Equal(t, *def.QualityThreshold, *cfg.QualityThreshold)
	assert.Equal(t, def.DegradationFloor, cfg.DegradationFloor)
	assert.Equal(t, def.PoolSize, cfg.PoolSize)
	assert.Len(t, cfg.Criteria, 5)
}

func TestRunConfigKeepsZeroThreshold(t *testing.T) {
	cfg := RunConfig{QualityThreshold: Threshold(0)}.normalized()
	assert.Equal(t, 0.0, cfg.threshold())

	cfg = RunConfig{QualityThreshold: Threshold(-1)}.normalized()
	assert.Equal(t, 4.0, cfg.threshold())

	assert.Equal(t, 4.0, RunConfig{}.threshold())
}
