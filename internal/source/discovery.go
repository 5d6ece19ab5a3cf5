package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ContentCurator/internal/cache"
	"ContentCurator/internal/domain"
	"ContentCurator/internal/workerpool"
)

// Request describes one discovery pass.
type Request struct {
	Query string
	// Sources restricts the pass to these source types; empty means all.
	Sources      []domain.SourceType
	DefaultLimit int
	Limits       map[domain.SourceType]int
	UseCache     bool
}

func (r Request) limitFor(t domain.SourceType) int {
	if n, ok := r.Limits[t]; ok && n > 0 {
		return n
	}
	return r.DefaultLimit
}

// Outcome is the merged result of a discovery pass.
type Outcome struct {
	Candidates []domain.CandidateRef
	Failures   []domain.AdapterFailure
	AdaptersOK int
	CacheHits  int
}

// Discovery fans a query out to every enabled adapter.
type Discovery struct {
	registry *Registry
	cache    cache.Store
	cacheTTL time.Duration
	logger   *slog.Logger
}

// NewDiscovery wires the registry with the discovery cache.
func NewDiscovery(reg *Registry, store cache.Store, cacheTTL time.Duration, log *slog.Logger) *Discovery {
	if store == nil {
		store = cache.Nop{}
	}
	return &Discovery{
		registry: reg,
		cache:    store,
		cacheTTL: cacheTTL,
		logger:   log,
	}
}

// discoveryEntry is the cached adapter answer together with the limit it
// was asked for; a larger limit later is a miss.
type discoveryEntry struct {
	Limit      int                   `json:"limit"`
	Candidates []domain.CandidateRef `json:"candidates"`
}

type adapterResult struct {
	candidates []domain.CandidateRef
	err        error
	cached     bool
}

// Discover queries all enabled adapters concurrently. A failing adapter is
// reported in Outcome.Failures and never affects the others. Candidates are
// deduplicated by normalized URL, first adapter in registration order wins.
func (d *Discovery) Discover(ctx context.Context, req Request) Outcome {
	if d.registry == nil {
		return Outcome{}
	}

	adapters := d.registry.List(req.Sources...)
	d.debug("discover", "query", req.Query, "adapters", len(adapters))

	results := workerpool.Map(ctx, len(adapters), adapters, func(ctx context.Context, a Adapter) adapterResult {
		return d.run(ctx, a, req)
	}, func(_ Adapter, err error) adapterResult {
		return adapterResult{err: err}
	})

	var out Outcome
	seen := map[string]bool{}
	for i, res := range results {
		adapter := adapters[i]
		if res.err != nil {
			d.debug("adapter failed", "adapter", adapter.Name(), "error", res.err)
			out.Failures = append(out.Failures, domain.AdapterFailure{
				Adapter:    adapter.Name(),
				SourceType: adapter.SourceType(),
				Kind:       domain.FailureAdapterUnavailable,
				Detail:     res.err.Error(),
			})
			continue
		}
		out.AdaptersOK++
		if res.cached {
			out.CacheHits++
		}

		for _, cand := range res.candidates {
			cand.URL = cache.NormalizeURL(cand.URL)
			if cand.URL == "" || seen[cand.URL] {
				continue
			}
			seen[cand.URL] = true
			if cand.Adapter == "" {
				cand.Adapter = adapter.Name()
			}
			if cand.SourceType == "" {
				cand.SourceType = adapter.SourceType()
			}
			out.Candidates = append(out.Candidates, cand)
		}
		d.debug("adapter produced candidates", "adapter", adapter.Name(), "count", len(res.candidates), "cached", res.cached)
	}

	d.debug("discovery done", "candidates", len(out.Candidates), "failures", len(out.Failures))
	return out
}

func (d *Discovery) run(ctx context.Context, a Adapter, req Request) adapterResult {
	limit := req.limitFor(a.SourceType())
	lim := a.Limits()
	if lim.MaxResults > 0 && (limit <= 0 || limit > lim.MaxResults) {
		limit = lim.MaxResults
	}
	if limit <= 0 {
		return adapterResult{}
	}

	key := cache.DiscoveryKey(req.Query, string(a.SourceType())+"/"+a.Name())
	if req.UseCache {
		var cached discoveryEntry
		if cache.GetJSON(ctx, d.cache, key, &cached) && cached.Limit >= limit {
			return adapterResult{candidates: truncate(cached.Candidates, limit), cached: true}
		}
	}

	callCtx := ctx
	if lim.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, lim.Timeout)
		defer cancel()
	}

	candidates, err := a.Discover(callCtx, req.Query, limit)
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			err = fmt.Errorf("timed out after %s: %w", lim.Timeout, err)
		}
		return adapterResult{err: fmt.Errorf("%w: %v", domain.ErrAdapterUnavailable, err)}
	}
	candidates = truncate(candidates, limit)

	if req.UseCache {
		entry := discoveryEntry{Limit: limit, Candidates: candidates}
		if err := cache.PutJSON(ctx, d.cache, key, entry, d.cacheTTL); err != nil {
			d.debug("discovery cache write failed", "adapter", a.Name(), "error", err)
		}
	}
	return adapterResult{candidates: candidates}
}

func truncate(refs []domain.CandidateRef, limit int) []domain.CandidateRef {
	if limit > 0 && len(refs) > limit {
		return refs[:limit]
	}
	return refs
}

func (d *Discovery) debug(msg string, args ...interface{}) {
	if d.logger != nil {
		d.logger.Debug(msg, args...)
	}
}
