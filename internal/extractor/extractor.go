// Package extractor turns candidate references into extracted content
// items, choosing a strategy per source type and caching results by
// normalized URL.
package extractor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"ContentCurator/internal/cache"
	"ContentCurator/internal/domain"
	"ContentCurator/internal/infrastructure/fetch"
	"ContentCurator/internal/workerpool"
)

// Fetcher is the HTTP surface the strategies need.
type Fetcher interface {
	Get(ctx context.Context, rawURL string, headers map[string]string) (*fetch.Response, error)
	GetJSON(ctx context.Context, rawURL string, headers map[string]string, v any) error
}

// Document is what a strategy produces before status classification.
type Document struct {
	Title    string
	Text     string
	Metadata domain.Metadata
	// Partial marks preview-only content (paywall, abstract fallback).
	Partial bool
	Detail  string
}

// Strategy extracts one kind of content.
type Strategy interface {
	Extract(ctx context.Context, ref domain.CandidateRef) (Document, error)
}

// Options tunes extraction.
type Options struct {
	MinContentLength int
	MaxPDFPages      int
	Languages        []string
	MaxComments      int
	PoolSize         int
	CacheTTL         time.Duration
	ItemTimeout      time.Duration
}

func (o *Options) defaults() {
	if o.MinContentLength <= 0 {
		o.MinContentLength = 200
	}
	if o.MaxPDFPages <= 0 {
		o.MaxPDFPages = 30
	}
	if len(o.Languages) == 0 {
		o.Languages = []string{"en"}
	}
	if o.MaxComments <= 0 {
		o.MaxComments = 10
	}
	if o.PoolSize <= 0 {
		o.PoolSize = workerpool.DefaultSize
	}
}

// BatchOptions adjusts one batch. The zero value uses the configured pool
// size and the cache.
type BatchOptions struct {
	PoolSize    int
	BypassCache bool
}

// Batch is the outcome of ExtractBatch plus how many items came from cache.
type Batch struct {
	Items     []domain.ContentItem
	CacheHits int
}

// Extractor is safe for concurrent use.
type Extractor struct {
	cache      cache.Store
	opts       Options
	strategies map[domain.SourceType]Strategy
	logger     *slog.Logger
	now        func() time.Time
}

// New builds an extractor with the html, transcript, pdf and thread
// strategies wired to f.
func New(f Fetcher, store cache.Store, opts Options, log *slog.Logger) *Extractor {
	opts.defaults()
	if store == nil {
		store = cache.Nop{}
	}

	pdf := NewPDFStrategy(f, opts.MaxPDFPages)
	htmlNewsletter := NewHTMLStrategy(f, pdf, true)
	htmlPlain := NewHTMLStrategy(f, pdf, false)

	return &Extractor{
		cache:  store,
		opts:   opts,
		logger: log,
		now:    time.Now,
		strategies: map[domain.SourceType]Strategy{
			domain.SourceWeb:        htmlPlain,
			domain.SourceNewsletter: htmlNewsletter,
			domain.SourceArticle:    htmlNewsletter,
			domain.SourceVideo:      NewTranscriptStrategy(f, opts.Languages),
			domain.SourcePaper:      pdf,
			domain.SourceDiscussion: NewThreadStrategy(f, opts.MaxComments),
		},
	}
}

// WithStrategy overrides the strategy for one source type.
func (e *Extractor) WithStrategy(t domain.SourceType, s Strategy) *Extractor {
	e.strategies[t] = s
	return e
}

// Extract returns the item for ref. Failures are reported on the item
// status, never as an error.
func (e *Extractor) Extract(ctx context.Context, ref domain.CandidateRef) domain.ContentItem {
	item, _ := e.extract(ctx, ref, e.cache)
	return item
}

// ExtractBatch extracts refs with a bounded pool and returns once every
// item is done, in input order.
func (e *Extractor) ExtractBatch(ctx context.Context, refs []domain.CandidateRef) []domain.ContentItem {
	return e.Run(ctx, refs, BatchOptions{}).Items
}

// Run is ExtractBatch with per-batch options and cache accounting.
func (e *Extractor) Run(ctx context.Context, refs []domain.CandidateRef, opts BatchOptions) Batch {
	size := opts.PoolSize
	if size <= 0 {
		size = e.opts.PoolSize
	}
	store := e.cache
	if opts.BypassCache {
		store = cache.Nop{}
	}

	type result struct {
		item domain.ContentItem
		hit  bool
	}

	results := workerpool.Map(ctx, size, refs, func(ctx context.Context, ref domain.CandidateRef) result {
		item, hit := e.extract(ctx, ref, store)
		return result{item: item, hit: hit}
	}, func(ref domain.CandidateRef, err error) result {
		return result{item: e.failed(ref, err)}
	})

	batch := Batch{Items: make([]domain.ContentItem, len(results))}
	for i, r := range results {
		batch.Items[i] = r.item
		if r.hit {
			batch.CacheHits++
		}
	}
	return batch
}

func (e *Extractor) extract(ctx context.Context, ref domain.CandidateRef, store cache.Store) (domain.ContentItem, bool) {
	ref.URL = strings.TrimSpace(ref.URL)
	if ref.URL == "" {
		return e.failed(ref, fmt.Errorf("%w: empty url", domain.ErrPermanentFetch)), false
	}

	key := cache.ContentKey(ref.URL)
	var cached domain.ContentItem
	if cache.GetJSON(ctx, store, key, &cached) && cached.URL != "" {
		e.debug("content cache hit", "url", cached.URL)
		return cached, true
	}

	strategy, ok := e.strategies[ref.SourceType]
	if !ok {
		strategy = e.strategies[domain.SourceWeb]
	}

	callCtx := ctx
	if e.opts.ItemTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, e.opts.ItemTimeout)
		defer cancel()
	}

	doc, err := strategy.Extract(callCtx, ref)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			err = fmt.Errorf("%w: extraction timed out: %v", domain.ErrTransientNetwork, err)
		}
		e.debug("extraction failed", "url", ref.URL, "error", err)
		return e.failed(ref, err), false
	}

	item := e.classify(ref, doc)
	if err := cache.PutJSON(ctx, store, key, item, e.opts.CacheTTL); err != nil {
		e.debug("content cache write failed", "url", ref.URL, "error", err)
	}
	return item, false
}

func (e *Extractor) classify(ref domain.CandidateRef, doc Document) domain.ContentItem {
	text := strings.TrimSpace(doc.Text)
	title := strings.TrimSpace(doc.Title)
	if title == "" {
		title = ref.Title
	}

	item := domain.ContentItem{
		URL:         cache.NormalizeURL(ref.URL),
		Title:       title,
		SourceType:  ref.SourceType,
		RawText:     text,
		ContentHash: cache.ContentHash(text),
		Metadata:    mergeMetadata(doc.Metadata, ref.Preview),
		ExtractedAt: e.now().UTC(),
	}

	switch {
	case utf8.RuneCountInString(text) < e.opts.MinContentLength:
		return item.WithStatus(domain.StatusTooShort, fmt.Sprintf("%d characters, minimum %d", utf8.RuneCountInString(text), e.opts.MinContentLength))
	case doc.Partial:
		return item.WithStatus(domain.StatusPartial, doc.Detail)
	default:
		return item.WithStatus(domain.StatusOK, "")
	}
}

func (e *Extractor) failed(ref domain.CandidateRef, err error) domain.ContentItem {
	return domain.ContentItem{
		URL:         cache.NormalizeURL(ref.URL),
		Title:       ref.Title,
		SourceType:  ref.SourceType,
		Metadata:    mergeMetadata(domain.Metadata{}, ref.Preview),
		ExtractedAt: e.now().UTC(),
	}.WithStatus(domain.StatusFailed, err.Error())
}

var engagementKeys = []string{"claps", "voters", "responses", "reactions", "comments", "score", "num_comments", "views", "likes"}

// mergeMetadata fills gaps in md from the discovery preview.
func mergeMetadata(md domain.Metadata, preview map[string]string) domain.Metadata {
	if md.Author == "" {
		md.Author = preview["author"]
	}
	if md.PublishedAt == nil {
		for _, k := range []string{"published_at", "post_date"} {
			if t, ok := parseTime(preview[k]); ok {
				md.PublishedAt = &t
				break
			}
		}
	}
	for _, k := range engagementKeys {
		v, err := strconv.ParseFloat(preview[k], 64)
		if err != nil {
			continue
		}
		if md.Engagement == nil {
			md.Engagement = map[string]float64{}
		}
		if _, exists := md.Engagement[k]; !exists {
			md.Engagement[k] = v
		}
	}
	return md
}

func parseTime(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05.000Z", "2006-01-02 15:04:05", "2006-01-02", time.RFC1123Z, time.RFC1123} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func (e *Extractor) debug(msg string, args ...interface{}) {
	if e.logger != nil {
		e.logger.Debug(msg, args...)
	}
}
