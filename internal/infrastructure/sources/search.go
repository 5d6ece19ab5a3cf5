package sources

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"ContentCurator/internal/domain"
	"ContentCurator/internal/source"
)

// SearchConfig describes a JSON web search API.
type SearchConfig struct {
	Name string `yaml:"name"`
	// Endpoint is a URL template; {query} and {limit} are substituted.
	Endpoint string `yaml:"endpoint"`
	// Headers values support ${ENV_VAR} expansion.
	Headers map[string]string `yaml:"headers"`
	// ResultPath is the dot path to the result array, e.g. "web.results".
	ResultPath string `yaml:"resultPath"`
	// Fields maps url, title, snippet and score onto result keys.
	Fields     map[string]string `yaml:"fields"`
	MaxResults int               `yaml:"maxResults"`
	Timeout    time.Duration     `yaml:"timeout"`
	Interval   time.Duration     `yaml:"interval"`
}

// DefaultSearchConfig targets the Brave web search API.
func DefaultSearchConfig() SearchConfig {
	return SearchConfig{
		Name:       "search",
		Endpoint:   "https://api.search.brave.com/res/v1/web/search?q={query}&count={limit}",
		Headers:    map[string]string{"X-Subscription-Token": "${SEARCH_API_KEY}"},
		ResultPath: "web.results",
		Fields:     map[string]string{"url": "url", "title": "title", "snippet": "description", "score": "score"},
		MaxResults: 20,
		Timeout:    20 * time.Second,
		Interval:   time.Second,
	}
}

// SearchAdapter serves the web source type from a search backend.
type SearchAdapter struct {
	cfg     SearchConfig
	client  jsonGetter
	limiter *rate.Limiter
	logger  *slog.Logger
}

var _ source.Adapter = (*SearchAdapter)(nil)

// NewSearchAdapter wires a search backend description to the fetcher.
func NewSearchAdapter(cfg SearchConfig, client jsonGetter, log *slog.Logger) *SearchAdapter {
	def := DefaultSearchConfig()
	if cfg.Name == "" {
		cfg.Name = def.Name
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = def.Endpoint
		if cfg.Headers == nil {
			cfg.Headers = def.Headers
		}
	}
	if cfg.ResultPath == "" && cfg.Fields == nil {
		cfg.ResultPath = def.ResultPath
	}
	if cfg.Fields == nil {
		cfg.Fields = def.Fields
	}
	return &SearchAdapter{
		cfg:     cfg,
		client:  client,
		limiter: newLimiter(cfg.Interval),
		logger:  log,
	}
}

func (s *SearchAdapter) Name() string                  { return s.cfg.Name }
func (s *SearchAdapter) SourceType() domain.SourceType { return domain.SourceWeb }
func (s *SearchAdapter) Limits() source.Limits {
	return source.Limits{MaxResults: s.cfg.MaxResults, Timeout: s.cfg.Timeout}
}

// Discover calls the search API and maps its ranked results. Results keep
// the backend's order, score descending when the backend returns scores.
func (s *SearchAdapter) Discover(ctx context.Context, query string, limit int) ([]domain.CandidateRef, error) {
	headers := make(map[string]string, len(s.cfg.Headers))
	for k, v := range s.cfg.Headers {
		expanded := os.Expand(v, os.Getenv)
		if strings.TrimSpace(expanded) == "" {
			return nil, unavailable("search header %s is empty", k)
		}
		headers[k] = expanded
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	endpoint := strings.NewReplacer(
		"{query}", url.QueryEscape(query),
		"{limit}", strconv.Itoa(limit),
	).Replace(s.cfg.Endpoint)

	var raw any
	if err := s.client.GetJSON(ctx, endpoint, headers, &raw); err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}

	items, err := walkPath(raw, s.cfg.ResultPath)
	if err != nil {
		return nil, fmt.Errorf("search result path %q: %w", s.cfg.ResultPath, err)
	}

	refs := make([]domain.CandidateRef, 0, len(items))
	for rank, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		link := asString(obj[s.field("url")])
		if link == "" {
			continue
		}
		preview := map[string]string{"rank": strconv.Itoa(rank + 1)}
		if snippet := asString(obj[s.field("snippet")]); snippet != "" {
			preview["snippet"] = snippet
		}
		if score := asString(obj[s.field("score")]); score != "" {
			preview["score"] = score
		}
		refs = append(refs, domain.CandidateRef{
			URL:        link,
			Title:      asString(obj[s.field("title")]),
			SourceType: DetectSourceType(link),
			Adapter:    s.cfg.Name,
			Preview:    preview,
		})
		if limit > 0 && len(refs) >= limit {
			break
		}
	}

	if s.logger != nil {
		s.logger.Debug("search discover", "query", query, "count", len(refs))
	}
	return refs, nil
}

// ResolveURLs accepts any URL; the source type is inferred from the host.
func (s *SearchAdapter) ResolveURLs(_ context.Context, urls []string) ([]domain.CandidateRef, error) {
	out := make([]domain.CandidateRef, 0, len(urls))
	for _, u := range urls {
		if u = strings.TrimSpace(u); u != "" {
			out = append(out, domain.CandidateRef{URL: u, SourceType: DetectSourceType(u), Adapter: s.cfg.Name})
		}
	}
	return out, nil
}

func (s *SearchAdapter) field(name string) string {
	if f, ok := s.cfg.Fields[name]; ok {
		return f
	}
	return name
}

// walkPath walks a dot path into decoded JSON and returns the array found
// there. An empty path requires the root itself to be an array.
func walkPath(v any, path string) ([]any, error) {
	current := v
	if path != "" {
		for _, part := range strings.Split(path, ".") {
			obj, ok := current.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("expected object at %q, got %T", part, current)
			}
			current, ok = obj[part]
			if !ok {
				return nil, fmt.Errorf("key %q not found", part)
			}
		}
	}
	arr, ok := current.([]any)
	if !ok {
		return nil, fmt.Errorf("not an array")
	}
	return arr, nil
}

func asString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}
