// Package sources implements the concrete discovery adapters: a web search
// API, the platform kinds (newsletter, article, video, paper, discussion)
// and explicit seed URLs.
package sources

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"ContentCurator/internal/domain"
	"ContentCurator/internal/infrastructure/fetch"
	"ContentCurator/internal/source"
)

// Lister performs the platform specific search behind a PlatformAdapter.
type Lister interface {
	List(ctx context.Context, query string, limit int) ([]domain.CandidateRef, error)
}

// PlatformOptions tunes a PlatformAdapter.
type PlatformOptions struct {
	Name       string
	MaxResults int
	Timeout    time.Duration
	// Interval is the minimum spacing between calls to the platform.
	Interval time.Duration
}

// PlatformAdapter is the single adapter type for every platform kind.
type PlatformAdapter struct {
	kind    domain.SourceType
	name    string
	lister  Lister
	limits  source.Limits
	limiter *rate.Limiter
	logger  *slog.Logger
}

var _ source.Adapter = (*PlatformAdapter)(nil)

// NewPlatformAdapter binds a lister to one platform kind. The web kind is
// served by SearchAdapter and is rejected here.
func NewPlatformAdapter(kind domain.SourceType, lister Lister, opts PlatformOptions, log *slog.Logger) (*PlatformAdapter, error) {
	if !kind.Valid() || kind == domain.SourceWeb {
		return nil, fmt.Errorf("unsupported platform kind %q", kind)
	}
	if lister == nil {
		return nil, fmt.Errorf("platform %s: lister is nil", kind)
	}
	name := opts.Name
	if name == "" {
		name = string(kind)
	}
	return &PlatformAdapter{
		kind:    kind,
		name:    name,
		lister:  lister,
		limits:  source.Limits{MaxResults: opts.MaxResults, Timeout: opts.Timeout},
		limiter: newLimiter(opts.Interval),
		logger:  log,
	}, nil
}

func (p *PlatformAdapter) Name() string                  { return p.name }
func (p *PlatformAdapter) SourceType() domain.SourceType { return p.kind }
func (p *PlatformAdapter) Limits() source.Limits         { return p.limits }

// Discover runs the platform search, tagging results with this adapter.
func (p *PlatformAdapter) Discover(ctx context.Context, query string, limit int) ([]domain.CandidateRef, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	refs, err := p.lister.List(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p.name, err)
	}
	for i := range refs {
		refs[i].SourceType = p.kind
		refs[i].Adapter = p.name
	}
	if p.logger != nil {
		p.logger.Debug("platform discover", "adapter", p.name, "query", query, "count", len(refs))
	}
	if limit > 0 && len(refs) > limit {
		refs = refs[:limit]
	}
	return refs, nil
}

// ResolveURLs accepts URLs that belong to this platform kind.
func (p *PlatformAdapter) ResolveURLs(_ context.Context, urls []string) ([]domain.CandidateRef, error) {
	return resolveByType(urls, p.kind, p.name), nil
}

func resolveByType(urls []string, kind domain.SourceType, adapter string) []domain.CandidateRef {
	out := make([]domain.CandidateRef, 0, len(urls))
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" || DetectSourceType(u) != kind {
			continue
		}
		out = append(out, domain.CandidateRef{URL: u, SourceType: kind, Adapter: adapter})
	}
	return out
}

func newLimiter(interval time.Duration) *rate.Limiter {
	if interval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}

// rankByQuery orders refs by how many query terms appear in their title
// and preview text. The sort is stable so the platform's own order breaks
// ties.
func rankByQuery(refs []domain.CandidateRef, query string, text func(domain.CandidateRef) string) []domain.CandidateRef {
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return refs
	}
	scores := make(map[string]int, len(refs))
	for _, r := range refs {
		body := strings.ToLower(text(r))
		n := 0
		for _, t := range terms {
			if strings.Contains(body, t) {
				n++
			}
		}
		scores[r.URL] = n
	}
	sort.SliceStable(refs, func(i, j int) bool {
		return scores[refs[i].URL] > scores[refs[j].URL]
	})
	return refs
}

// unavailable builds the error returned when a platform is not configured.
func unavailable(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrAdapterUnavailable, fmt.Sprintf(format, args...))
}

// jsonGetter is the subset of the fetcher the listers need.
type jsonGetter interface {
	GetJSON(ctx context.Context, rawURL string, headers map[string]string, v any) error
	Get(ctx context.Context, rawURL string, headers map[string]string) (*fetch.Response, error)
}

var _ jsonGetter = (*fetch.Fetcher)(nil)
