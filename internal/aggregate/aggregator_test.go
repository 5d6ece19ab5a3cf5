package aggregate

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ContentCurator/internal/domain"
)

func item(url string, status domain.ExtractionStatus, text string) domain.ContentItem {
	return domain.ContentItem{URL: url, RawText: text, ExtractionStatus: status}
}

func evaluation(url string, score float64, ok bool) domain.EvaluationResult {
	if !ok {
		return domain.EvaluationResult{ItemURL: url, Status: domain.EvaluationError, ErrorDetail: "boom"}
	}
	return domain.EvaluationResult{ItemURL: url, OverallScore: score, Status: domain.EvaluationOK}
}

func TestAggregatorDedupsAndPrefersSuccessfulExtraction(t *testing.T) {
	t.Parallel()

	a := New()
	require.NoError(t, a.AddIteration(
		domain.QueryIterationRecord{IterationIndex: 0, QueryText: "q0", Counts: domain.PhaseCounts{Discovered: 3, AdaptersOK: 2}},
		[]domain.ContentItem{
			item("https://a.example/x", domain.StatusOK, "first a"),
			item("https://b.example/y", domain.StatusFailed, ""),
			item("https://c.example/z", domain.StatusTooShort, "tiny"),
		},
		[]domain.EvaluationResult{evaluation("https://a.example/x", 6, true)},
		[]domain.AdapterFailure{{Adapter: "medium", SourceType: domain.SourceArticle, Kind: domain.FailureAdapterUnavailable}},
	))
	require.NoError(t, a.AddIteration(
		domain.QueryIterationRecord{IterationIndex: 1, QueryText: "q1", Counts: domain.PhaseCounts{Discovered: 2, AdaptersOK: 3}},
		[]domain.ContentItem{
			item("https://www.a.example/x/", domain.StatusOK, "second a"),
			item("https://b.example/y", domain.StatusOK, "recovered b"),
		},
		[]domain.EvaluationResult{
			evaluation("https://b.example/y", 8, true),
			evaluation("https://a.example/x", 2, true),
		},
		nil,
	))

	var run domain.PipelineRun
	a.Finalize(&run)

	require.Len(t, run.Items, 3)
	assert.Equal(t, []string{"https://a.example/x", "https://b.example/y", "https://c.example/z"},
		[]string{run.Items[0].URL, run.Items[1].URL, run.Items[2].URL})
	assert.Equal(t, "first a", run.Items[0].RawText)
	assert.Equal(t, "recovered b", run.Items[1].RawText)
	assert.Equal(t, domain.StatusOK, run.Items[1].ExtractionStatus)

	require.Len(t, run.Evaluations, 2)
	assert.Equal(t, "https://a.example/x", run.Evaluations[0].ItemURL)
	assert.Equal(t, 6.0, run.Evaluations[0].OverallScore)
	assert.Equal(t, "https://b.example/y", run.Evaluations[1].ItemURL)

	want := domain.PhaseCounts{
		Discovered:     5,
		AdaptersOK:     5,
		AdaptersFailed: 1,
		Extraction:     domain.ExtractionCounts{OK: 3, Failed: 1, TooShort: 1},
		Evaluation:     domain.EvaluationCounts{OK: 3},
	}
	if diff := cmp.Diff(want, run.Counts); diff != "" {
		t.Fatalf("run counts mismatch (-want +got):\n%s", diff)
	}

	require.Len(t, run.AdapterFailures, 1)
	assert.Equal(t, 0, run.AdapterFailures[0].IterationIndex)
	assert.Equal(t, []string{"medium"}, run.Iterations[0].FailedAdapters)
	assert.Empty(t, run.Iterations[1].FailedAdapters)
	assert.Equal(t, 2, run.Iterations[1].Counts.Extraction.OK)
}

func TestAggregatorReplacesErrorEvaluationWithOK(t *testing.T) {
	t.Parallel()

	a := New()
	items := []domain.ContentItem{item("https://a.example", domain.StatusOK, "a")}
	require.NoError(t, a.AddIteration(domain.QueryIterationRecord{IterationIndex: 0}, items, []domain.EvaluationResult{evaluation("https://a.example", 0, false)}, nil))
	require.NoError(t, a.AddIteration(domain.QueryIterationRecord{IterationIndex: 1}, items, []domain.EvaluationResult{evaluation("https://a.example", 7, true)}, nil))
	require.NoError(t, a.AddIteration(domain.QueryIterationRecord{IterationIndex: 2}, items, []domain.EvaluationResult{evaluation("https://a.example", 0, false)}, nil))

	var run domain.PipelineRun
	a.Finalize(&run)

	require.Len(t, run.Evaluations, 1)
	assert.True(t, run.Evaluations[0].OK())
	assert.Equal(t, 7.0, run.Evaluations[0].OverallScore)
	assert.Equal(t, domain.EvaluationCounts{OK: 1, Error: 2}, run.Counts.Evaluation)
}

func TestAggregatorReplacesEvaluationWithItsItem(t *testing.T) {
	t.Parallel()

	a := New()
	require.NoError(t, a.AddIteration(domain.QueryIterationRecord{IterationIndex: 0},
		[]domain.ContentItem{item("https://a.example/post", domain.StatusPartial, "teaser")},
		[]domain.EvaluationResult{evaluation("https://a.example/post", 3, true)}, nil))
	require.NoError(t, a.AddIteration(domain.QueryIterationRecord{IterationIndex: 1},
		[]domain.ContentItem{item("https://a.example/post", domain.StatusOK, "full text")},
		[]domain.EvaluationResult{evaluation("https://a.example/post", 8, true)}, nil))
	require.NoError(t, a.AddIteration(domain.QueryIterationRecord{IterationIndex: 2},
		[]domain.ContentItem{item("https://a.example/post", domain.StatusPartial, "teaser again")},
		[]domain.EvaluationResult{evaluation("https://a.example/post", 1, true)}, nil))

	var run domain.PipelineRun
	a.Finalize(&run)

	require.Len(t, run.Items, 1)
	assert.Equal(t, "full text", run.Items[0].RawText)
	require.Len(t, run.Evaluations, 1)
	assert.Equal(t, 8.0, run.Evaluations[0].OverallScore, "the kept item keeps the evaluation made for it")
}

func TestAggregatorRejectsNonIncreasingIndex(t *testing.T) {
	t.Parallel()

	a := New()
	require.NoError(t, a.AddIteration(domain.QueryIterationRecord{IterationIndex: 0}, nil, nil, nil))
	require.NoError(t, a.AddIteration(domain.QueryIterationRecord{IterationIndex: 1}, nil, nil, nil))
	assert.Error(t, a.AddIteration(domain.QueryIterationRecord{IterationIndex: 1}, nil, nil, nil))

	last, ok := a.Last()
	require.True(t, ok)
	assert.Equal(t, 1, last.IterationIndex)
	assert.Len(t, a.Iterations(), 2)
}

func TestEvaluationForUnknownItemIsIgnored(t *testing.T) {
	t.Parallel()

	a := New()
	require.NoError(t, a.AddIteration(domain.QueryIterationRecord{}, nil, []domain.EvaluationResult{evaluation("https://ghost.example", 9, true)}, nil))

	var run domain.PipelineRun
	a.Finalize(&run)
	assert.Empty(t, run.Evaluations)
	assert.Equal(t, 1, run.Counts.Evaluation.OK)
}
