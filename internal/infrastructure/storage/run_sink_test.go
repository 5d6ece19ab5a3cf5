package storage

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ContentCurator/internal/domain"
)

func sampleRun() domain.PipelineRun {
	started := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	published := time.Date(2023, 11, 5, 0, 0, 0, 0, time.UTC)
	return domain.PipelineRun{
		ID:               "0f8fad5b-d9cb-469f-a165-70867728950e",
		SeedQuery:        "engineering growth",
		StartedAt:        started,
		FinishedAt:       started.Add(95 * time.Second),
		StopReason:       domain.StopMaxIterations,
		QualityThreshold: 4,
		Iterations: []domain.QueryIterationRecord{{
			IterationIndex:   0,
			QueryText:        "engineering growth",
			SynthesisMode:    "seed",
			ItemsDiscovered:  3,
			ItemsEvaluated:   2,
			AvgScore:         5.5,
			HighQualityCount: 1,
			HighQualityRatio: 0.5,
			FailedAdapters:   []string{"youtube"},
		}},
		Items: []domain.ContentItem{
			{URL: "https://a.example/1", Title: "Growing | as an engineer", SourceType: domain.SourceArticle, ExtractionStatus: domain.StatusOK,
				Metadata: domain.Metadata{Author: "Dana", PublishedAt: &published}},
			{URL: "https://b.example/2", Title: "Filler", SourceType: domain.SourceWeb, ExtractionStatus: domain.StatusOK},
			{URL: "https://c.example/3", SourceType: domain.SourceVideo, ExtractionStatus: domain.StatusFailed},
		},
		Evaluations: []domain.EvaluationResult{
			{ItemURL: "https://a.example/1", OverallScore: 8, Status: domain.EvaluationOK},
			{ItemURL: "https://b.example/2", OverallScore: 3, Status: domain.EvaluationOK},
		},
		Counts: domain.PhaseCounts{
			Discovered: 3,
			Extraction: domain.ExtractionCounts{OK: 2, Failed: 1},
			Evaluation: domain.EvaluationCounts{OK: 2},
		},
		AdapterFailures: []domain.AdapterFailure{{Adapter: "youtube", SourceType: domain.SourceVideo, Detail: "quota"}},
	}
}

func TestRunSinkWritesAllFiles(t *testing.T) {
	root := t.TempDir()
	sink := NewRunSink(root, 10, func() []byte { return []byte("level=INFO msg=done\n") })

	run := sampleRun()
	dir, err := sink.Save(context.Background(), run)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "20240301_093000_0f8fad5b"), dir)

	for _, name := range []string{AllResultsFile, MetricsFile, HighQualityFile, ReportFile, RunLogFile} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}

	loaded, err := LoadRun(dir)
	require.NoError(t, err)
	assert.Equal(t, run.ID, loaded.ID)
	assert.Len(t, loaded.Items, 3)

	raw, err := os.ReadFile(filepath.Join(dir, HighQualityFile))
	require.NoError(t, err)
	var high []domain.ScoredItem
	require.NoError(t, json.Unmarshal(raw, &high))
	require.Len(t, high, 1)
	assert.Equal(t, "https://a.example/1", high[0].Item.URL)

	raw, err = os.ReadFile(filepath.Join(dir, MetricsFile))
	require.NoError(t, err)
	var metrics []domain.QueryIterationRecord
	require.NoError(t, json.Unmarshal(raw, &metrics))
	assert.Equal(t, run.Iterations[0].QueryText, metrics[0].QueryText)

	latest, err := LatestRunDir(root)
	require.NoError(t, err)
	assert.Equal(t, dir, latest)
}

func TestRunSinkWritesEmptyHighQualityList(t *testing.T) {
	run := sampleRun()
	run.QualityThreshold = 9.5

	dir, err := NewRunSink(t.TempDir(), 10, nil).Save(context.Background(), run)
	require.NoError(t, err)

	raw, err := os.ReadFile(filepath.Join(dir, HighQualityFile))
	require.NoError(t, err)
	assert.JSONEq(t, "[]", string(raw))
	_, err = os.Stat(filepath.Join(dir, RunLogFile))
	assert.True(t, os.IsNotExist(err))
}

func TestRenderReport(t *testing.T) {
	report := RenderReport(sampleRun(), 5)

	assert.True(t, strings.HasPrefix(report, "# Content Curation Results\n"))
	assert.Contains(t, report, "- Stop reason: max_iterations")
	assert.Contains(t, report, "- Duration: 1m35s")
	assert.Contains(t, report, `Growing \| as an engineer`)
	assert.Contains(t, report, "| 8.0/10 |")
	assert.Contains(t, report, "[Link](https://a.example/1)")
	assert.NotContains(t, report, "Filler", "items below the threshold are left out of the table")
	assert.Contains(t, report, "- Extraction: 2 ok, 0 partial, 0 too short, 1 failed")
	assert.Contains(t, report, "- Date range: 2023-11-05 to 2023-11-05")
	assert.Contains(t, report, "- iteration 0, youtube (video): quota")
	assert.NotContains(t, report, "### Reviewer Notes", "no item carries a summary")
}

func TestRenderReportShowsReviewerNotes(t *testing.T) {
	run := sampleRun()
	run.Evaluations[0] = domain.EvaluationResult{
		ItemURL:         "https://a.example/1",
		OverallScore:    7,
		Status:          domain.EvaluationOK,
		Method:          "dual_perspective",
		DimensionScores: map[string]float64{"team_growth": 8, "technical_depth": 6},
		Summary:         "Practical advice for new leads.",
		Reasoning:       map[string]string{"technical_depth": "light on internals"},
		Perspectives: []domain.PerspectiveScore{
			{Name: "engineering_manager", OverallScore: 8, Summary: "useful for managers"},
			{Name: "staff_engineer", OverallScore: 6},
		},
	}

	report := RenderReport(run, 5)

	assert.Contains(t, report, "### Reviewer Notes")
	assert.Contains(t, report, "Practical advice for new leads.")
	assert.Contains(t, report, "- engineering_manager: 8.0/10, useful for managers\n")
	assert.Contains(t, report, "- staff_engineer: 6.0/10\n")
	assert.Contains(t, report, "- technical_depth (6.0): light on internals")
	assert.Less(t, strings.Index(report, "### Reviewer Notes"), strings.Index(report, "## Statistics"))
}

func TestWriteTableAlignsColumns(t *testing.T) {
	var b strings.Builder
	writeTable(&b, [][]string{{"A", "Title"}, {"1", "日本語"}, {"22", "x"}})

	lines := strings.Split(strings.TrimSpace(b.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "| A   | Title  |", lines[0])
	assert.Equal(t, "| --- | ------ |", lines[1])
	assert.Equal(t, "| 1   | 日本語 |", lines[2])
	assert.Equal(t, "| 22  | x      |", lines[3])
}
