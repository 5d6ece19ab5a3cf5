// Package evaluator scores extracted content against a weighted rubric
// with a bounded pool of scoring calls.
package evaluator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"ContentCurator/internal/cache"
	"ContentCurator/internal/domain"
	"ContentCurator/internal/ports"
	"ContentCurator/internal/retry"
	"ContentCurator/internal/workerpool"
)

// Options tunes evaluation.
type Options struct {
	PoolSize    int
	ItemTimeout time.Duration
	CacheTTL    time.Duration
	Retry       retry.Policy
	// Method is MethodStandard or MethodDualPerspective. The dual method
	// scores every item once per perspective and ignores the batch criteria.
	Method       string
	Perspectives []Perspective
}

// BatchOptions adjusts one batch. The zero value uses the configured pool
// size and the cache.
type BatchOptions struct {
	PoolSize    int
	BypassCache bool
}

// Batch is the outcome of one evaluation pass plus cache accounting.
type Batch struct {
	Results   []domain.EvaluationResult
	CacheHits int
}

// Evaluator is safe for concurrent use.
type Evaluator struct {
	backend ports.ScoringBackend
	cache   cache.Store
	opts    Options
	logger  *slog.Logger
	parts   []perspectiveRubric
}

// New builds an evaluator over backend.
func New(backend ports.ScoringBackend, store cache.Store, opts Options, log *slog.Logger) *Evaluator {
	if opts.PoolSize <= 0 {
		opts.PoolSize = workerpool.DefaultSize
	}
	if opts.ItemTimeout <= 0 {
		opts.ItemTimeout = 90 * time.Second
	}
	opts.Retry = opts.Retry.Normalize()
	if store == nil {
		store = cache.Nop{}
	}
	e := &Evaluator{backend: backend, cache: store, opts: opts, logger: log}
	if opts.Method == MethodDualPerspective {
		if len(opts.Perspectives) == 0 {
			opts.Perspectives = DualPerspectives()
		}
		e.parts = perspectiveRubrics(opts.Perspectives)
	} else {
		e.opts.Method = MethodStandard
	}
	return e
}

// Method reports the scoring method in use.
func (e *Evaluator) Method() string {
	return e.opts.Method
}

func (e *Evaluator) rubric(criteria map[string]float64) Rubric {
	if e.opts.Method == MethodDualPerspective {
		return mergedRubric(e.parts)
	}
	return NewRubric(criteria)
}

// EvaluateBatch returns exactly one result per item, in input order.
func (e *Evaluator) EvaluateBatch(ctx context.Context, items []domain.ContentItem, criteria map[string]float64) []domain.EvaluationResult {
	return e.Run(ctx, items, criteria, BatchOptions{}).Results
}

// Run is EvaluateBatch with per-batch options and cache accounting.
func (e *Evaluator) Run(ctx context.Context, items []domain.ContentItem, criteria map[string]float64, opts BatchOptions) Batch {
	rubric := e.rubric(criteria)
	size := opts.PoolSize
	if size <= 0 {
		size = e.opts.PoolSize
	}
	store := e.cache
	if opts.BypassCache {
		store = cache.Nop{}
	}

	type result struct {
		eval domain.EvaluationResult
		hit  bool
	}

	results := workerpool.Map(ctx, size, items, func(ctx context.Context, item domain.ContentItem) result {
		eval, hit := e.evaluate(ctx, item, rubric, store)
		return result{eval: eval, hit: hit}
	}, func(item domain.ContentItem, err error) result {
		return result{eval: errorResult(item.URL, rubric, err)}
	})

	batch := Batch{Results: make([]domain.EvaluationResult, len(results))}
	for i, r := range results {
		batch.Results[i] = r.eval
		if r.hit {
			batch.CacheHits++
		}
	}
	return batch
}

// Evaluate scores a single item.
func (e *Evaluator) Evaluate(ctx context.Context, item domain.ContentItem, criteria map[string]float64) domain.EvaluationResult {
	eval, _ := e.evaluate(ctx, item, e.rubric(criteria), e.cache)
	return eval
}

func (e *Evaluator) evaluate(ctx context.Context, item domain.ContentItem, rubric Rubric, store cache.Store) (domain.EvaluationResult, bool) {
	if !item.ExtractionStatus.Evaluable() {
		return errorResult(item.URL, rubric, fmt.Errorf("extraction status %q is not evaluable", item.ExtractionStatus)), false
	}
	if len(rubric) == 0 {
		return errorResult(item.URL, rubric, errors.New("rubric has no dimensions")), false
	}
	if e.backend == nil {
		return errorResult(item.URL, rubric, errors.New("no scoring backend configured")), false
	}

	key := cache.EvaluationKey(item.URL, item.ContentHash, e.opts.Method+":"+rubric.Key())
	var cached domain.EvaluationResult
	if cache.GetJSON(ctx, store, key, &cached) && cached.OK() {
		return cached, true
	}

	callCtx, cancel := context.WithTimeout(ctx, e.opts.ItemTimeout)
	defer cancel()

	var res domain.EvaluationResult
	if e.opts.Method == MethodDualPerspective {
		res = e.scorePerspectives(callCtx, item, rubric)
	} else {
		res = e.score(callCtx, item.URL, scoringText(item), rubric)
	}

	if res.OK() {
		if err := cache.PutJSON(ctx, store, key, res, e.opts.CacheTTL); err != nil {
			e.debug("evaluation cache write failed", "url", item.URL, "error", err)
		}
	} else {
		e.debug("scoring response unusable", "url", item.URL, "detail", res.ErrorDetail)
	}
	return res, false
}

// score runs one backend call with retries and combines its answer.
func (e *Evaluator) score(ctx context.Context, url, text string, rubric Rubric) domain.EvaluationResult {
	var raw map[string]any
	err := retry.Do(ctx, e.opts.Retry, domain.Transient, func(ctx context.Context) error {
		var err error
		raw, err = e.backend.Score(ctx, text, rubric)
		return err
	})
	if err != nil {
		e.debug("scoring failed", "url", url, "error", err)
		return errorResult(url, rubric, fmt.Errorf("score: %w", err))
	}
	return combine(url, rubric, raw)
}

// scorePerspectives scores item once per perspective. Any failed
// perspective fails the whole evaluation.
func (e *Evaluator) scorePerspectives(ctx context.Context, item domain.ContentItem, merged Rubric) domain.EvaluationResult {
	text := scoringText(item)
	results := make([]domain.EvaluationResult, 0, len(e.parts))
	for _, p := range e.parts {
		res := e.score(ctx, item.URL, perspectiveText(p, text), p.rubric)
		if !res.OK() {
			return errorResult(item.URL, merged, fmt.Errorf("%s perspective: %s", p.Name, res.ErrorDetail))
		}
		results = append(results, res)
	}
	return mergePerspectives(item.URL, e.parts, results)
}

// combine coerces raw dimension values and computes the weighted score.
// Unparsable dimensions are omitted and the remaining weights rescaled.
func combine(url string, rubric Rubric, raw map[string]any) domain.EvaluationResult {
	scores := make(map[string]float64, len(rubric))
	reasoning := map[string]string{}
	var dropped []string
	for _, d := range rubric {
		v, found := lookup(raw, d.Name)
		if !found {
			dropped = append(dropped, d.Name)
			continue
		}
		if why := reasonOf(v); why != "" {
			reasoning[d.Name] = why
		}
		score, ok := CoerceScore(v)
		if !ok {
			dropped = append(dropped, d.Name)
			continue
		}
		scores[d.Name] = score
	}

	if len(scores) == 0 {
		return errorResult(url, rubric, fmt.Errorf("%w: no dimension could be parsed", domain.ErrScoringParse))
	}

	weights := rubric.renormalize(scores)
	overall := 0.0
	for name, score := range scores {
		overall += score * weights[name]
	}

	res := domain.EvaluationResult{
		ItemURL:         url,
		DimensionScores: scores,
		Weights:         weights,
		OverallScore:    clamp(overall),
		Status:          domain.EvaluationOK,
		Method:          MethodStandard,
	}
	if summary, ok := raw["summary"].(string); ok {
		res.Summary = strings.TrimSpace(summary)
	}
	if len(reasoning) > 0 {
		res.Reasoning = reasoning
	}
	if len(dropped) > 0 {
		res.ErrorDetail = fmt.Sprintf("%v: omitted %v", domain.ErrScoringParse, dropped)
	}
	return res
}

func errorResult(url string, rubric Rubric, err error) domain.EvaluationResult {
	return domain.EvaluationResult{
		ItemURL:         url,
		DimensionScores: map[string]float64{},
		Weights:         rubric.Weights(),
		Status:          domain.EvaluationError,
		ErrorDetail:     err.Error(),
	}
}

func scoringText(item domain.ContentItem) string {
	if item.Title == "" {
		return item.RawText
	}
	return "Title: " + item.Title + "\n\n" + item.RawText
}

func (e *Evaluator) debug(msg string, args ...interface{}) {
	if e.logger != nil {
		e.logger.Debug(msg, args...)
	}
}
