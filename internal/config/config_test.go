package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ContentCurator/internal/domain"
	"ContentCurator/internal/evaluator"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestParseKeepsDefaultsForMissingKeys(t *testing.T) {
	cfg, err := Parse([]byte(`
evolution:
  maxIterations: 5
sources:
  enabled: [web, paper]
  limits:
    paper: 3
  search:
    endpoint: https://search.internal/api?q={query}
    headers:
      Authorization: Bearer ${SEARCH_API_KEY}
scheduler:
  seedQueries: ["staff engineer growth"]
`))
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Evolution.MaxIterations)
	assert.Equal(t, 0.5, cfg.Evolution.DegradationFloor)
	assert.Equal(t, []domain.SourceType{domain.SourceWeb, domain.SourcePaper}, cfg.Sources.Enabled)
	assert.Equal(t, map[domain.SourceType]int{domain.SourcePaper: 3}, cfg.Sources.Limits)
	assert.Equal(t, map[string]string{"Authorization": "Bearer ${SEARCH_API_KEY}"}, cfg.Sources.Search.Headers,
		"headers replace the defaults instead of merging")
	assert.Equal(t, "web.results", cfg.Sources.Search.ResultPath)
	assert.Equal(t, 30*time.Second, cfg.HTTP.Timeout)
	assert.Equal(t, []string{"staff engineer growth"}, cfg.Scheduler.SeedQueries)
}

func TestParseDurations(t *testing.T) {
	cfg, err := Parse([]byte(`
cache:
  ttl: 48h
retry:
  maxAttempts: 5
  baseDelay: 250ms
`))
	require.NoError(t, err)
	assert.Equal(t, 48*time.Hour, cfg.Cache.TTL)
	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.Retry.BaseDelay)
	assert.Equal(t, 2.0, cfg.Retry.Multiplier)
}

func TestLoadFileAppliesEnvOverrides(t *testing.T) {
	t.Setenv(openAIAPIKeyEnv, "sk-test")
	t.Setenv(rapidAPIKeyEnv, "rapid")
	t.Setenv(telegramChatIDEnv, "42")

	path := writeConfig(t, t.TempDir(), "llm:\n  chatgpt:\n    apiKey: from-file\n")
	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "sk-test", cfg.LLM.ChatGPT.APIKey)
	assert.Equal(t, "rapid", cfg.Sources.Medium.APIKey)
	assert.Equal(t, "42", cfg.Notifications.Telegram.ChatID)
	assert.Equal(t, "UTC", cfg.Scheduler.Location().String())
}

func TestLoadFileRejectsInvalidSettings(t *testing.T) {
	dir := t.TempDir()
	for name, body := range map[string]string{
		"unknown source":  "sources:\n  enabled: [podcast]\n",
		"unknown backend": "evaluation:\n  backend: oracle\n",
		"unknown method":  "evaluation:\n  method: triple\n",
		"bad threshold":   "evaluation:\n  qualityThreshold: 11\n",
		"bad floor":       "evolution:\n  degradationFloor: 1.5\n",
		"bad yaml":        "evolution: [\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := LoadFile(writeConfig(t, dir, body))
			assert.Error(t, err)
		})
	}
}

func TestEvaluationMethod(t *testing.T) {
	dir := t.TempDir()

	cfg, err := LoadFile(writeConfig(t, dir, "evaluation:\n  method: Dual_Perspective\n"))
	require.NoError(t, err)
	assert.Equal(t, evaluator.MethodDualPerspective, cfg.Evaluation.Method)

	cfg, err = LoadFile(writeConfig(t, dir, "evaluation:\n  method: \"\"\n"))
	require.NoError(t, err)
	assert.Equal(t, evaluator.MethodStandard, cfg.Evaluation.Method)
}

func TestLoadFallsBackToDefaults(t *testing.T) {
	t.Setenv(configPathEnv, filepath.Join(t.TempDir(), "missing.yaml"))
	cfg := Load()
	assert.Equal(t, Defaults().Evolution, cfg.Evolution)
}

func TestRunConfigConversion(t *testing.T) {
	cfg := Defaults()
	cfg.Sources.Enabled = []domain.SourceType{domain.SourceVideo}
	cfg.Sources.Limits = map[domain.SourceType]int{domain.SourceVideo: 4}
	cfg.Cache.Enabled = false

	rc := cfg.RunConfig()
	assert.Equal(t, []domain.SourceType{domain.SourceVideo}, rc.Sources)
	assert.Equal(t, 4, rc.SourceLimits[domain.SourceVideo])
	assert.Equal(t, evaluator.DefaultCriteria(), rc.Criteria)
	require.NotNil(t, rc.QualityThreshold)
	assert.Equal(t, 4.0, *rc.QualityThreshold)
	assert.Equal(t, 3, rc.MaxIterations)
	assert.False(t, rc.UseCache)

	cfg.Evaluation.Criteria = map[string]float64{"technical_depth": 1}
	assert.Equal(t, map[string]float64{"technical_depth": 1}, cfg.RunConfig().Criteria)

	cfg.Evaluation.QualityThreshold = 0
	assert.Equal(t, 0.0, *cfg.RunConfig().QualityThreshold, "an explicit zero threshold is kept")
}

func TestWatchReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "evolution:\n  maxIterations: 2\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan Config, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, 20*time.Millisecond, nil, func(c Config) { changes <- c })
	}()

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("evolution:\n  maxIterations: 6\n"), 0o644))

	select {
	case cfg := <-changes:
		assert.Equal(t, 6, cfg.Evolution.MaxIterations)
	case <-time.After(5 * time.Second):
		t.Fatal("config change was not observed")
	}

	cancel()
	require.NoError(t, <-done)
}
