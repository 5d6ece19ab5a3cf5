package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"ContentCurator/internal/cache"
	"ContentCurator/internal/config"
	"ContentCurator/internal/domain"
	"ContentCurator/internal/evaluator"
	"ContentCurator/internal/extractor"
	"ContentCurator/internal/infrastructure/fetch"
	"ContentCurator/internal/infrastructure/llm"
	"ContentCurator/internal/infrastructure/ml"
	"ContentCurator/internal/infrastructure/scheduler"
	"ContentCurator/internal/infrastructure/sources"
	"ContentCurator/internal/infrastructure/storage"
	"ContentCurator/internal/infrastructure/telegram"
	"ContentCurator/internal/logging"
	"ContentCurator/internal/ports"
	"ContentCurator/internal/source"
	"ContentCurator/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	logger   *slog.Logger
	runLog   *logging.Capture
	store    cache.Store
	db       *sql.DB
	registry *source.Registry
	pipeline *usecase.Pipeline

	mu  sync.RWMutex
	cfg config.Config
}

// New builds the application. runLog, when set, receives the log output
// that is saved as run.log next to each run's results.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger, runLog *logging.Capture) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}
	a := &Application{cfg: cfg, logger: baseLogger, runLog: runLog}

	if err := a.openCache(ctx); err != nil {
		return nil, err
	}

	fetcher := fetch.New(fetch.Config{
		Timeout:      cfg.HTTP.Timeout,
		MaxBytes:     cfg.HTTP.MaxBytes,
		UserAgent:    cfg.HTTP.UserAgent,
		HostInterval: cfg.HTTP.HostInterval,
		HostBurst:    cfg.HTTP.HostBurst,
		Retry:        cfg.Retry,
	}, nil, baseLogger.With("component", "fetch"))

	registry, err := buildRegistry(cfg, fetcher, baseLogger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.registry = registry

	completers := map[string]ports.Completer{}
	completer := func(name string) (ports.Completer, error) {
		if c, ok := completers[name]; ok {
			return c, nil
		}
		var c ports.Completer
		switch name {
		case "chatgpt":
			if cfg.LLM.ChatGPT.APIKey == "" {
				return nil, errors.New("chatgpt API key is not configured")
			}
			c = llm.NewChatGPTClient(cfg.LLM.ChatGPT)
		case "gemini":
			g, err := llm.NewGeminiClient(ctx, cfg.LLM.Gemini)
			if err != nil {
				return nil, err
			}
			c = g
		default:
			return nil, fmt.Errorf("unknown completer %q", name)
		}
		completers[name] = c
		return c, nil
	}

	var backend ports.ScoringBackend
	switch cfg.Evaluation.Backend {
	case "service":
		backend = ml.NewClient(cfg.LLM.Service)
	default:
		c, err := completer(cfg.Evaluation.Backend)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("scoring backend: %w", err)
		}
		backend = llm.NewScorer(c)
	}

	var synthesizer ports.QuerySynthesizer
	if cfg.Evolution.Synthesizer != "template" {
		c, err := completer(cfg.Evolution.Synthesizer)
		if err != nil {
			baseLogger.Warn("query synthesizer unavailable, using template queries", "error", err)
		} else {
			synthesizer = llm.NewSynthesizer(c)
		}
	}

	var notifier ports.Notifier
	if tg := cfg.Notifications.Telegram; tg.BotToken != "" && tg.ChatID != "" {
		notifier = telegram.NewNotifier(tg.BotToken, tg.ChatID)
	}

	var captured func() []byte
	if runLog != nil {
		captured = runLog.Bytes
	}

	a.pipeline = usecase.NewPipeline(usecase.PipelineDeps{
		Discovery: source.NewDiscovery(registry, a.store, cfg.Cache.TTL, baseLogger.With("component", "discovery")),
		Extractor: extractor.New(fetcher, a.store, extractor.Options{
			MinContentLength: cfg.Extraction.MinContentLength,
			MaxPDFPages:      cfg.Extraction.MaxPDFPages,
			Languages:        cfg.Extraction.Languages,
			MaxComments:      cfg.Extraction.MaxComments,
			PoolSize:         cfg.Evaluation.PoolSize,
			CacheTTL:         cfg.Cache.TTL,
			ItemTimeout:      cfg.Extraction.ItemTimeout,
		}, baseLogger.With("component", "extractor")),
		Evaluator: evaluator.New(backend, a.store, evaluator.Options{
			PoolSize:    cfg.Evaluation.PoolSize,
			ItemTimeout: cfg.Evaluation.ItemTimeout,
			CacheTTL:    cfg.Cache.TTL,
			Retry:       cfg.Retry,
			Method:      cfg.Evaluation.Method,
		}, baseLogger.With("component", "evaluator")),
		Synthesizer: synthesizer,
		Sink:        storage.NewRunSink(cfg.Output.Dir, cfg.Output.TopN, captured),
		Notifier:    notifier,
		Logger:      baseLogger.With("component", "pipeline"),
	})

	return a, nil
}

func (a *Application) openCache(ctx context.Context) error {
	cfg := a.cfg
	if !cfg.Cache.Enabled {
		a.store = cache.Nop{}
		return nil
	}

	if strings.EqualFold(cfg.Cache.Driver, "memory") {
		a.store = cache.NewMemory(cfg.Cache.TTL)
		return nil
	}

	dialect, err := storage.ParseDialect(cfg.Cache.Driver)
	if err != nil {
		return err
	}
	db, err := storage.Open(ctx, dialect, cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("open cache database: %w", err)
	}
	store, err := storage.NewSQLCache(ctx, db, dialect, cfg.Cache.TTL, a.logger.With("component", "cache"))
	if err != nil {
		db.Close()
		return fmt.Errorf("init cache: %w", err)
	}
	a.db = db
	a.store = store
	return nil
}

// buildRegistry registers one adapter per enabled source type. Adapters
// that need an API key are skipped with a warning when it is missing.
func buildRegistry(cfg config.Config, fetcher *fetch.Fetcher, log *slog.Logger) (*source.Registry, error) {
	enabled := map[domain.SourceType]bool{}
	for _, st := range cfg.Sources.Enabled {
		enabled[st] = true
	}
	on := func(st domain.SourceType) bool { return len(enabled) == 0 || enabled[st] }

	registry := source.NewRegistry()
	if on(domain.SourceWeb) {
		if cfg.Sources.Search.Endpoint != "" {
			registry.Register(sources.NewSearchAdapter(cfg.Sources.Search, fetcher, log.With("component", "source.search")))
		}
		if len(cfg.Sources.SeedURLs) > 0 {
			registry.Register(sources.NewSeedURLAdapter(cfg.Sources.SeedURLs))
		}
	}

	platforms := []struct {
		kind   domain.SourceType
		name   string
		lister sources.Lister
		keyed  bool
		hasKey bool
	}{
		{domain.SourceNewsletter, "substack", sources.NewSubstackLister(fetcher, cfg.Sources.Substack.Publications), false, true},
		{domain.SourceArticle, "medium", sources.NewMediumLister(fetcher, cfg.Sources.Medium.APIKey), true, cfg.Sources.Medium.APIKey != ""},
		{domain.SourceVideo, "youtube", sources.NewYouTubeLister(fetcher, cfg.Sources.YouTube.APIKey, cfg.Sources.YouTube.QuerySuffix), true, cfg.Sources.YouTube.APIKey != ""},
		{domain.SourcePaper, "arxiv", sources.NewArxivLister(fetcher, cfg.Sources.Arxiv.Categories, cfg.Sources.Arxiv.SortBy), false, true},
		{domain.SourceDiscussion, "reddit", sources.NewRedditLister(fetcher, cfg.Sources.Reddit.Subreddits), false, true},
	}
	for _, p := range platforms {
		if !on(p.kind) {
			continue
		}
		if p.keyed && !p.hasKey && len(enabled) == 0 {
			log.Warn("source skipped, API key missing", "source", p.name)
			continue
		}
		adapter, err := sources.NewPlatformAdapter(p.kind, p.lister, sources.PlatformOptions{
			Name:       p.name,
			MaxResults: cfg.Sources.DefaultLimit,
			Timeout:    cfg.Sources.Timeout,
			Interval:   cfg.Sources.Interval,
		}, log.With("component", "source."+p.name))
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", p.name, err)
		}
		registry.Register(adapter)
	}

	if registry.Len() == 0 {
		return nil, errors.New("no content sources are enabled")
	}
	return registry, nil
}

// Config returns the active configuration.
func (a *Application) Config() config.Config {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cfg
}

// Reload swaps in cfg for future runs. Per-run settings take effect on the
// next run; adapters, backends and the cache keep their startup wiring.
func (a *Application) Reload(cfg config.Config) {
	a.mu.Lock()
	a.cfg = cfg
	a.mu.Unlock()
}

// Run executes one pipeline run for seed with the active configuration.
func (a *Application) Run(ctx context.Context, seed string) (domain.PipelineRun, error) {
	return a.RunWith(ctx, seed, a.Config().RunConfig())
}

// RunWith executes one run with an explicit run configuration.
func (a *Application) RunWith(ctx context.Context, seed string, rc usecase.RunConfig) (domain.PipelineRun, error) {
	if a.runLog != nil {
		a.runLog.Reset()
	}
	return a.pipeline.Run(ctx, seed, rc)
}

// Watch re-runs the configured seed queries on the scheduler's cadence and
// reloads the config file on change until ctx is done.
func (a *Application) Watch(ctx context.Context, configPath string) error {
	cfg := a.Config()
	if len(cfg.Scheduler.SeedQueries) == 0 {
		return errors.New("scheduler.seedQueries is empty")
	}

	driver, err := scheduler.NewCronScheduler(cfg.Scheduler.CronExpression, cfg.Scheduler.Location())
	if err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}

	sched := usecase.NewScheduler(driver, runnerFunc(a.RunWith), cfg.Scheduler.SeedQueries,
		func() usecase.RunConfig { return a.Config().RunConfig() },
		a.logger.With("component", "scheduler"))

	if configPath != "" {
		go func() {
			err := config.Watch(ctx, configPath, config.DefaultDebounce, a.logger.With("component", "config"), a.Reload)
			if err != nil {
				a.logger.Warn("config watch stopped", "error", err)
			}
		}()
	}

	if err := sched.Start(ctx); err != nil {
		return err
	}
	a.logger.Info("watching", "schedule", cfg.Scheduler.CronExpression, "seeds", len(cfg.Scheduler.SeedQueries))
	<-ctx.Done()
	return sched.Stop(context.WithoutCancel(ctx))
}

type runnerFunc func(ctx context.Context, seed string, rc usecase.RunConfig) (domain.PipelineRun, error)

func (f runnerFunc) Run(ctx context.Context, seed string, rc usecase.RunConfig) (domain.PipelineRun, error) {
	return f(ctx, seed, rc)
}

// ClearCache removes one scope, or every entry when scope is empty.
func (a *Application) ClearCache(ctx context.Context, scope string) error {
	if scope != "" {
		valid := false
		for _, s := range cache.Scopes() {
			if string(s) == scope {
				valid = true
			}
		}
		if !valid {
			return fmt.Errorf("unknown cache scope %q", scope)
		}
	}
	return a.store.Clear(ctx, cache.Scope(scope))
}

// CacheStats reports live and expired entries per scope for SQL caches.
func (a *Application) CacheStats(ctx context.Context) (map[cache.Scope][2]int, error) {
	sq, ok := a.store.(*storage.SQLCache)
	if !ok {
		return nil, errors.New("cache statistics need a sqlite or postgres cache")
	}
	return sq.Stats(ctx)
}

// Close releases the cache database.
func (a *Application) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}
