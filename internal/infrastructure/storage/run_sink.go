package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"ContentCurator/internal/domain"
	"ContentCurator/internal/ports"
)

// Files written into every run directory.
const (
	AllResultsFile  = "all_results.json"
	MetricsFile     = "query_metrics.json"
	HighQualityFile = "high_quality_content.json"
	ReportFile      = "report.md"
	RunLogFile      = "run.log"
)

// RunSink writes each finished run into its own directory under root.
type RunSink struct {
	root   string
	topN   int
	runLog func() []byte
}

var _ ports.RunSink = (*RunSink)(nil)

// NewRunSink returns a sink rooted at root. runLog, when set, supplies the
// captured log output written to run.log.
func NewRunSink(root string, topN int, runLog func() []byte) *RunSink {
	return &RunSink{root: root, topN: topN, runLog: runLog}
}

// Save writes the result files and returns the run directory.
func (s *RunSink) Save(ctx context.Context, run domain.PipelineRun) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	dir := filepath.Join(s.root, RunDirName(run))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create run dir: %w", err)
	}

	high := run.HighQuality()
	if high == nil {
		high = []domain.ScoredItem{}
	}

	files := []struct {
		name string
		v    any
	}{
		{AllResultsFile, run},
		{MetricsFile, run.Iterations},
		{HighQualityFile, high},
	}
	for _, f := range files {
		if err := writeJSON(filepath.Join(dir, f.name), f.v); err != nil {
			return "", err
		}
	}

	if err := os.WriteFile(filepath.Join(dir, ReportFile), []byte(RenderReport(run, s.topN)), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", ReportFile, err)
	}

	if s.runLog != nil {
		if err := os.WriteFile(filepath.Join(dir, RunLogFile), s.runLog(), 0o644); err != nil {
			return "", fmt.Errorf("write %s: %w", RunLogFile, err)
		}
	}

	return dir, nil
}

// RunDirName is the directory a run is stored in: start time then the
// first eight characters of the run ID.
func RunDirName(run domain.PipelineRun) string {
	id := run.ID
	if len(id) > 8 {
		id = id[:8]
	}
	return run.StartedAt.UTC().Format("20060102_150405") + "_" + id
}

// LoadRun reads all_results.json back from a run directory.
func LoadRun(dir string) (domain.PipelineRun, error) {
	raw, err := os.ReadFile(filepath.Join(dir, AllResultsFile))
	if err != nil {
		return domain.PipelineRun{}, fmt.Errorf("read run: %w", err)
	}
	var run domain.PipelineRun
	if err := json.Unmarshal(raw, &run); err != nil {
		return domain.PipelineRun{}, fmt.Errorf("decode run: %w", err)
	}
	return run, nil
}

// LatestRunDir returns the newest run directory under root.
func LatestRunDir(root string) (string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return "", fmt.Errorf("list runs: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(root, e.Name(), ReportFile)); err == nil {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return "", fmt.Errorf("no runs under %s", root)
	}
	sort.Strings(names)
	return filepath.Join(root, names[len(names)-1]), nil
}

func writeJSON(path string, v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}
