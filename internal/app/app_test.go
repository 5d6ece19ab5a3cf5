package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ContentCurator/internal/config"
	"ContentCurator/internal/domain"
	"ContentCurator/internal/infrastructure/storage"
	"ContentCurator/internal/logging"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

const page = `<html><head><title>Growth loops explained</title></head><body>
<article><h1>Growth loops explained</h1><p>%s</p></article></body></html>`

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Defaults()
	cfg.Cache.Driver = "memory"
	cfg.Evaluation.Backend = "service"
	cfg.Evolution.Synthesizer = "template"
	cfg.Output.Dir = t.TempDir()
	cfg.HTTP.HostInterval = time.Millisecond
	cfg.Retry.MaxAttempts = 1
	cfg.Sources.Enabled = []domain.SourceType{domain.SourceWeb}
	cfg.Sources.Search.Endpoint = ""
	return cfg
}

func TestRunEndToEnd(t *testing.T) {
	body := strings.Repeat("Retention experiments compound when onboarding funnels are instrumented. ", 10)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/post":
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprintf(w, page, body)
		case "/score":
			_, _ = w.Write([]byte(`{"scores": {"technical_accuracy": 7, "growth_actionability": 7, "evidence_based": 7, "technical_depth": 7, "bias_mitigation": 7}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	cfg := testConfig(t)
	cfg.Sources.SeedURLs = []string{srv.URL + "/post"}
	cfg.LLM.Service.Endpoint = srv.URL
	cfg.Evolution.MaxIterations = 2

	capture := &logging.Capture{}
	application, err := New(context.Background(), cfg, logging.NewWithWriter(capture, "info"), capture)
	require.NoError(t, err)
	defer application.Close()

	run, err := application.Run(context.Background(), "growth loops")
	require.NoError(t, err)

	require.Len(t, run.Iterations, 2)
	assert.Equal(t, domain.StopMaxIterations, run.StopReason)
	assert.Equal(t, "template", run.Iterations[1].SynthesisMode)
	require.NotEmpty(t, run.HighQuality())
	assert.InDelta(t, 7.0, run.HighQuality()[0].Evaluation.OverallScore, 1e-9)

	dir, err := storage.LatestRunDir(cfg.Output.Dir)
	require.NoError(t, err)
	saved, err := storage.LoadRun(dir)
	require.NoError(t, err)
	assert.Equal(t, run.ID, saved.ID)

	report, err := os.ReadFile(filepath.Join(dir, storage.ReportFile))
	require.NoError(t, err)
	assert.Contains(t, string(report), "Growth loops explained")

	runLog, err := os.ReadFile(filepath.Join(dir, storage.RunLogFile))
	require.NoError(t, err)
	assert.Contains(t, string(runLog), "run started")
}

func TestNewRequiresScoringCredentials(t *testing.T) {
	cfg := testConfig(t)
	cfg.Sources.SeedURLs = []string{"https://example.com/post"}
	cfg.Evaluation.Backend = "chatgpt"
	cfg.LLM.ChatGPT.APIKey = ""

	_, err := New(context.Background(), cfg, quietLogger, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scoring backend")
}

func TestNewFailsWithoutSources(t *testing.T) {
	cfg := testConfig(t)

	_, err := New(context.Background(), cfg, quietLogger, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no content sources")
}

func TestBuildRegistrySkipsKeyedSourcesWithoutKeys(t *testing.T) {
	cfg := config.Defaults()
	cfg.Sources.Enabled = nil

	registry, err := buildRegistry(cfg, nil, quietLogger)
	require.NoError(t, err)

	var names []string
	for _, a := range registry.List() {
		names = append(names, a.Name())
	}
	assert.ElementsMatch(t, []string{"search", "substack", "arxiv", "reddit"}, names)

	cfg.Sources.Enabled = []domain.SourceType{domain.SourceVideo}
	registry, err = buildRegistry(cfg, nil, quietLogger)
	require.NoError(t, err)
	require.Equal(t, 1, registry.Len(), "an explicitly enabled source is kept so its failure is reported")
}

func TestClearCacheValidatesScope(t *testing.T) {
	cfg := testConfig(t)
	cfg.Sources.SeedURLs = []string{"https://example.com/post"}

	application, err := New(context.Background(), cfg, quietLogger, nil)
	require.NoError(t, err)
	defer application.Close()

	require.NoError(t, application.ClearCache(context.Background(), ""))
	require.NoError(t, application.ClearCache(context.Background(), "content"))
	require.Error(t, application.ClearCache(context.Background(), "everything"))

	_, err = application.CacheStats(context.Background())
	require.Error(t, err, "memory caches keep no statistics")
}

func TestReloadSwapsConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Sources.SeedURLs = []string{"https://example.com/post"}

	application, err := New(context.Background(), cfg, quietLogger, nil)
	require.NoError(t, err)
	defer application.Close()

	next := application.Config()
	next.Evolution.MaxIterations = 7
	application.Reload(next)
	assert.Equal(t, 7, application.Config().RunConfig().MaxIterations)
}
