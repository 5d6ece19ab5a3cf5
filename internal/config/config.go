package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"ContentCurator/internal/domain"
	"ContentCurator/internal/evaluator"
	"ContentCurator/internal/infrastructure/sources"
	"ContentCurator/internal/retry"
	"ContentCurator/internal/usecase"
)

const (
	defaultTimezone   = "UTC"
	configPathEnv     = "CONTENT_CURATOR_CONFIG"
	databaseDSNEnv    = "DATABASE_DSN"
	openAIAPIKeyEnv   = "OPENAI_API_KEY"
	openAIModelEnv    = "OPENAI_MODEL"
	geminiAPIKeyEnv   = "GEMINI_API_KEY"
	rapidAPIKeyEnv    = "RAPIDAPI_KEY"
	youtubeAPIKeyEnv  = "YOUTUBE_API_KEY"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv = "TELEGRAM_CHAT_ID"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging       LoggingConfig      `yaml:"logging"`
	Cache         CacheConfig        `yaml:"cache"`
	Database      DatabaseConfig     `yaml:"database"`
	HTTP          HTTPConfig         `yaml:"http"`
	Retry         retry.Policy       `yaml:"retry"`
	Sources       SourcesConfig      `yaml:"sources"`
	Extraction    ExtractionConfig   `yaml:"extraction"`
	Evaluation    EvaluationConfig   `yaml:"evaluation"`
	Evolution     EvolutionConfig    `yaml:"evolution"`
	LLM           LLMConfig          `yaml:"llm"`
	Output        OutputConfig       `yaml:"output"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	Notifications NotificationConfig `yaml:"notifications"`
}

// LoggingConfig selects the slog level.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// CacheConfig selects the cache backend. Driver is memory, sqlite or
// postgres; the SQL drivers read Database.DSN.
type CacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	Driver  string        `yaml:"driver"`
	TTL     time.Duration `yaml:"ttl"`
}

// DatabaseConfig describes the SQL connection used by the durable cache.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// HTTPConfig tunes the shared fetcher.
type HTTPConfig struct {
	Timeout      time.Duration `yaml:"timeout"`
	MaxBytes     int64         `yaml:"maxBytes"`
	UserAgent    string        `yaml:"userAgent"`
	HostInterval time.Duration `yaml:"hostInterval"`
	HostBurst    int           `yaml:"hostBurst"`
}

// SourcesConfig lists enabled source types and per-platform settings.
type SourcesConfig struct {
	Enabled      []domain.SourceType       `yaml:"enabled"`
	DefaultLimit int                       `yaml:"defaultLimit"`
	Limits       map[domain.SourceType]int `yaml:"limits"`
	Timeout      time.Duration             `yaml:"timeout"`
	Interval     time.Duration             `yaml:"interval"`
	Search       sources.SearchConfig      `yaml:"search"`
	Substack     SubstackConfig            `yaml:"substack"`
	Medium       MediumConfig              `yaml:"medium"`
	YouTube      YouTubeConfig             `yaml:"youtube"`
	Arxiv        ArxivConfig               `yaml:"arxiv"`
	Reddit       RedditConfig              `yaml:"reddit"`
	SeedURLs     []string                  `yaml:"seedUrls"`
}

// SubstackConfig lists the newsletters searched.
type SubstackConfig struct {
	Publications []string `yaml:"publications"`
}

// MediumConfig carries the RapidAPI credentials.
type MediumConfig struct {
	APIKey string `yaml:"apiKey"`
}

// YouTubeConfig carries the Data API key and an optional query suffix.
type YouTubeConfig struct {
	APIKey      string `yaml:"apiKey"`
	QuerySuffix string `yaml:"querySuffix"`
}

// ArxivConfig selects categories and ordering.
type ArxivConfig struct {
	Categories []string `yaml:"categories"`
	SortBy     string   `yaml:"sortBy"`
}

// RedditConfig lists the subreddits searched.
type RedditConfig struct {
	Subreddits []string `yaml:"subreddits"`
}

// ExtractionConfig tunes the content extractor.
type ExtractionConfig struct {
	MinContentLength int           `yaml:"minContentLength"`
	MaxPDFPages      int           `yaml:"maxPdfPages"`
	Languages        []string      `yaml:"languages"`
	MaxComments      int           `yaml:"maxComments"`
	ItemTimeout      time.Duration `yaml:"itemTimeout"`
}

// EvaluationConfig selects the scoring backend and rubric. Backend is
// chatgpt, gemini or service. Method is standard or dual_perspective; the
// dual method scores with the manager and staff engineer rubrics and
// ignores Criteria.
type EvaluationConfig struct {
	Backend          string             `yaml:"backend"`
	Method           string             `yaml:"method"`
	Criteria         map[string]float64 `yaml:"criteria"`
	QualityThreshold float64            `yaml:"qualityThreshold"`
	PoolSize         int                `yaml:"poolSize"`
	ItemTimeout      time.Duration      `yaml:"itemTimeout"`
}

// EvolutionConfig bounds the query evolution loop.
type EvolutionConfig struct {
	MaxIterations    int     `yaml:"maxIterations"`
	DegradationFloor float64 `yaml:"degradationFloor"`
	MaxCandidates    int     `yaml:"maxCandidates"`
	MaxThemes        int     `yaml:"maxThemes"`
	// Synthesizer is chatgpt, gemini or template.
	Synthesizer string `yaml:"synthesizer"`
}

// LLMConfig groups the model endpoints.
type LLMConfig struct {
	ChatGPT ChatGPTConfig `yaml:"chatgpt"`
	Gemini  GeminiConfig  `yaml:"gemini"`
	Service ServiceConfig `yaml:"service"`
}

// ChatGPTConfig defines how to contact the ChatGPT API.
type ChatGPTConfig struct {
	Endpoint    string        `yaml:"endpoint"`
	Model       string        `yaml:"model"`
	APIKey      string        `yaml:"apiKey"`
	Temperature float64       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
}

// GeminiConfig defines how to contact the Gemini API.
type GeminiConfig struct {
	Model       string  `yaml:"model"`
	APIKey      string  `yaml:"apiKey"`
	Temperature float64 `yaml:"temperature"`
}

// ServiceConfig describes a remote scoring service.
type ServiceConfig struct {
	Endpoint string        `yaml:"endpoint"`
	APIKey   string        `yaml:"apiKey"`
	Timeout  time.Duration `yaml:"timeout"`
}

// OutputConfig controls the run directory and report size.
type OutputConfig struct {
	Dir  string `yaml:"dir"`
	TopN int    `yaml:"topN"`
}

// SchedulerConfig defines when watch mode re-runs the seed queries.
type SchedulerConfig struct {
	CronExpression string         `yaml:"cronExpression"`
	Timezone       string         `yaml:"timezone"`
	SeedQueries    []string       `yaml:"seedQueries"`
	location       *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// NotificationConfig encapsulates outbound channels (Telegram, etc.).
type NotificationConfig struct {
	Telegram   TelegramConfig `yaml:"telegram"`
	DigestSize int            `yaml:"digestSize"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// Path returns the config file named by CONTENT_CURATOR_CONFIG.
func Path() string {
	return os.Getenv(configPathEnv)
}

// Load reads YAML configuration (if present) and applies environment overrides.
// An unreadable or invalid file is logged and the defaults are used.
func Load() Config {
	path := Path()
	cfg, err := LoadFile(path)
	if err != nil {
		log.Printf("config: %v (falling back to defaults)", err)
		cfg = Defaults()
		cfg.applyEnvOverrides()
		cfg.bindTimezone()
	}
	return cfg
}

// LoadFile reads path over the defaults; an empty path yields the
// defaults. Environment overrides are applied last.
func LoadFile(path string) (Config, error) {
	cfg := Defaults()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read %s: %w", path, err)
		}
		cfg, err = Parse(raw)
		if err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse decodes raw YAML on top of the defaults. Keys absent from raw keep
// their default values; lists and maps present in raw replace the defaults.
func Parse(raw []byte) (Config, error) {
	cfg := Defaults()
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, err
	}

	// yaml.v3 merges into non-nil maps, so the search maps are decoded
	// again on their own.
	var probe struct {
		Sources struct {
			Search struct {
				Headers map[string]string `yaml:"headers"`
				Fields  map[string]string `yaml:"fields"`
			} `yaml:"search"`
		} `yaml:"sources"`
	}
	if err := yaml.Unmarshal(raw, &probe); err != nil {
		return Config{}, err
	}
	if probe.Sources.Search.Headers != nil {
		cfg.Sources.Search.Headers = probe.Sources.Search.Headers
	}
	if probe.Sources.Search.Fields != nil {
		cfg.Sources.Search.Fields = probe.Sources.Search.Fields
	}
	return cfg, nil
}

// Validate rejects settings the pipeline cannot run with.
func (c Config) Validate() error {
	for _, st := range c.Sources.Enabled {
		if !st.Valid() {
			return fmt.Errorf("sources.enabled: unknown source type %q", st)
		}
	}
	for st := range c.Sources.Limits {
		if !st.Valid() {
			return fmt.Errorf("sources.limits: unknown source type %q", st)
		}
	}
	switch c.Evaluation.Backend {
	case "chatgpt", "gemini", "service":
	default:
		return fmt.Errorf("evaluation.backend: unknown backend %q", c.Evaluation.Backend)
	}
	switch c.Evaluation.Method {
	case evaluator.MethodStandard, evaluator.MethodDualPerspective:
	default:
		return fmt.Errorf("evaluation.method: unknown method %q", c.Evaluation.Method)
	}
	switch c.Evolution.Synthesizer {
	case "chatgpt", "gemini", "template":
	default:
		return fmt.Errorf("evolution.synthesizer: unknown synthesizer %q", c.Evolution.Synthesizer)
	}
	if c.Evaluation.QualityThreshold < 0 || c.Evaluation.QualityThreshold > 10 {
		return fmt.Errorf("evaluation.qualityThreshold %.2f is outside [0, 10]", c.Evaluation.QualityThreshold)
	}
	if f := c.Evolution.DegradationFloor; f < 0 || f > 1 {
		return fmt.Errorf("evolution.degradationFloor %.2f is outside [0, 1]", f)
	}
	return nil
}

// RunConfig converts the settings into the pipeline's per-run options.
func (c Config) RunConfig() usecase.RunConfig {
	criteria := evaluator.DefaultCriteria()
	if len(c.Evaluation.Criteria) > 0 {
		criteria = make(map[string]float64, len(c.Evaluation.Criteria))
		for k, v := range c.Evaluation.Criteria {
			criteria[k] = v
		}
	}
	limits := make(map[domain.SourceType]int, len(c.Sources.Limits))
	for k, v := range c.Sources.Limits {
		limits[k] = v
	}

	return usecase.RunConfig{
		Sources:          append([]domain.SourceType(nil), c.Sources.Enabled...),
		DefaultLimit:     c.Sources.DefaultLimit,
		SourceLimits:     limits,
		Criteria:         criteria,
		QualityThreshold: usecase.Threshold(c.Evaluation.QualityThreshold),
		MaxIterations:    c.Evolution.MaxIterations,
		DegradationFloor: c.Evolution.DegradationFloor,
		UseCache:         c.Cache.Enabled,
		PoolSize:         c.Evaluation.PoolSize,
		MaxCandidates:    c.Evolution.MaxCandidates,
		MaxThemes:        c.Evolution.MaxThemes,
		DigestSize:       c.Notifications.DigestSize,
	}
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}

	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}

	if v := os.Getenv(openAIAPIKeyEnv); v != "" {
		c.LLM.ChatGPT.APIKey = v
	}

	if v := os.Getenv(openAIModelEnv); v != "" {
		c.LLM.ChatGPT.Model = v
	}

	if v := os.Getenv(geminiAPIKeyEnv); v != "" {
		c.LLM.Gemini.APIKey = v
	}

	if v := os.Getenv(rapidAPIKeyEnv); v != "" {
		c.Sources.Medium.APIKey = v
	}

	if v := os.Getenv(youtubeAPIKeyEnv); v != "" {
		c.Sources.YouTube.APIKey = v
	}

	c.Evaluation.Backend = strings.ToLower(strings.TrimSpace(c.Evaluation.Backend))
	c.Evaluation.Method = strings.ToLower(strings.TrimSpace(c.Evaluation.Method))
	if c.Evaluation.Method == "" {
		c.Evaluation.Method = evaluator.MethodStandard
	}
	c.Evolution.Synthesizer = strings.ToLower(strings.TrimSpace(c.Evolution.Synthesizer))
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Scheduler.location = loc
}

// Defaults returns the configuration used when no file is given.
func Defaults() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Logging:  LoggingConfig{Level: "info"},
		Cache:    CacheConfig{Enabled: true, Driver: "sqlite", TTL: 7 * 24 * time.Hour},
		Database: DatabaseConfig{DSN: "cache/content_curator.db"},
		HTTP: HTTPConfig{
			Timeout:      30 * time.Second,
			MaxBytes:     20 << 20,
			UserAgent:    "ContentCurator/1.0 (+https://github.com/content-curator)",
			HostInterval: 500 * time.Millisecond,
			HostBurst:    2,
		},
		Retry: retry.DefaultPolicy(),
		Sources: SourcesConfig{
			DefaultLimit: 10,
			Timeout:      45 * time.Second,
			Interval:     time.Second,
			Search:       sources.DefaultSearchConfig(),
			Arxiv: ArxivConfig{
				Categories: []string{"cs.SE", "cs.CY", "cs.HC"},
				SortBy:     "relevance",
			},
		},
		Extraction: ExtractionConfig{
			MinContentLength: 200,
			MaxPDFPages:      30,
			Languages:        []string{"en"},
			MaxComments:      10,
			ItemTimeout:      60 * time.Second,
		},
		Evaluation: EvaluationConfig{
			Backend:          "chatgpt",
			Method:           evaluator.MethodStandard,
			QualityThreshold: 4.0,
			PoolSize:         8,
			ItemTimeout:      90 * time.Second,
		},
		Evolution: EvolutionConfig{
			MaxIterations:    3,
			DegradationFloor: 0.5,
			MaxCandidates:    5,
			MaxThemes:        8,
			Synthesizer:      "chatgpt",
		},
		LLM: LLMConfig{
			ChatGPT: ChatGPTConfig{
				Endpoint:    "https://api.openai.com/v1/chat/completions",
				Model:       "gpt-4o-mini",
				Temperature: 0.2,
				Timeout:     60 * time.Second,
			},
			Gemini: GeminiConfig{Model: "gemini-2.0-flash", Temperature: 0.2},
			Service: ServiceConfig{Timeout: 30 * time.Second},
		},
		Output: OutputConfig{Dir: "results", TopN: 20},
		Scheduler: SchedulerConfig{
			CronExpression: "@daily",
			Timezone:       defaultTimezone,
			location:       tz,
		},
		Notifications: NotificationConfig{DigestSize: 5},
	}
}
