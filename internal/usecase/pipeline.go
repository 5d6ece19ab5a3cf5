package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"ContentCurator/internal/aggregate"
	"ContentCurator/internal/domain"
	"ContentCurator/internal/evaluator"
	"ContentCurator/internal/extractor"
	"ContentCurator/internal/ports"
	"ContentCurator/internal/source"
)

// Discoverer fans a query out to the source adapters.
type Discoverer interface {
	Discover(ctx context.Context, req source.Request) source.Outcome
}

// ContentExtractor turns candidates into content items, one per input.
type ContentExtractor interface {
	Run(ctx context.Context, refs []domain.CandidateRef, opts extractor.BatchOptions) extractor.Batch
}

// ContentEvaluator scores items, one result per input.
type ContentEvaluator interface {
	Run(ctx context.Context, items []domain.ContentItem, criteria map[string]float64, opts evaluator.BatchOptions) evaluator.Batch
}

// PipelineDeps wires all driven adapters into the evolution pipeline.
type PipelineDeps struct {
	Discovery   Discoverer
	Extractor   ContentExtractor
	Evaluator   ContentEvaluator
	Synthesizer ports.QuerySynthesizer
	Sink        ports.RunSink
	Notifier    ports.Notifier
	Logger      *slog.Logger
	Now         func() time.Time
}

// Pipeline runs the discover, extract, evaluate, analyze loop and evolves
// the query between iterations.
type Pipeline struct {
	discovery   Discoverer
	extractor   ContentExtractor
	evaluator   ContentEvaluator
	synthesizer ports.QuerySynthesizer
	sink        ports.RunSink
	notifier    ports.Notifier
	logger      *slog.Logger
	now         func() time.Time
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Pipeline{
		discovery:   deps.Discovery,
		extractor:   deps.Extractor,
		evaluator:   deps.Evaluator,
		synthesizer: deps.Synthesizer,
		sink:        deps.Sink,
		notifier:    deps.Notifier,
		logger:      logger,
		now:         now,
	}
}

// Run evolves seed over at most cfg.MaxIterations iterations. Adapter,
// extraction and scoring failures are recorded on the run and never end
// it. Cancelling ctx stops the loop; the partial run is returned together
// with ctx.Err().
func (p *Pipeline) Run(ctx context.Context, seed string, cfg RunConfig) (domain.PipelineRun, error) {
	seed = strings.Join(strings.Fields(seed), " ")
	if seed == "" {
		return domain.PipelineRun{}, errors.New("seed query is empty")
	}
	if p.discovery == nil || p.extractor == nil || p.evaluator == nil {
		return domain.PipelineRun{}, errors.New("pipeline is missing discovery, extractor or evaluator")
	}
	cfg = cfg.normalized()

	run := domain.PipelineRun{
		ID:               uuid.NewString(),
		SeedQuery:        seed,
		StartedAt:        p.now(),
		QualityThreshold: cfg.threshold(),
	}
	log := p.logger.With("run", run.ID)
	log.Info("run started", "seed", seed, "max_iterations", cfg.MaxIterations)

	agg := aggregate.New()
	st := evolutionState{
		seed:    seed,
		current: seed,
		seen:    map[string]bool{queryKey(seed): true},
	}
	mode := ModeSeed
	var derivedFrom *int

	for index := 0; ; index++ {
		if ctx.Err() != nil {
			run.StopReason = domain.StopAborted
			break
		}

		record, it := p.iterate(ctx, st.current, cfg)
		record.IterationIndex = index
		record.DerivedFrom = derivedFrom
		record.SynthesisMode = mode

		if err := agg.AddIteration(record, it.items, it.evaluations, it.failures); err != nil {
			return run, fmt.Errorf("record iteration %d: %w", index, err)
		}
		st.history = agg.Iterations()
		st.analysis = it.analysis

		log.Info("iteration done",
			"index", index,
			"query", record.QueryText,
			"discovered", record.ItemsDiscovered,
			"evaluated", record.ItemsEvaluated,
			"avg_score", record.AvgScore,
			"high_quality_ratio", record.HighQualityRatio,
			"failed_adapters", len(it.failures))

		if ctx.Err() != nil {
			run.StopReason = domain.StopAborted
			break
		}
		if reason, stop := shouldStop(index, st.history, cfg); stop {
			run.StopReason = reason
			break
		}

		next, nextMode := p.nextQuery(ctx, st, cfg)
		if next == "" {
			if ctx.Err() != nil {
				run.StopReason = domain.StopAborted
			} else {
				run.StopReason = domain.StopNoNewQuery
			}
			break
		}
		st.seen[queryKey(next)] = true
		st.current = next
		mode = nextMode
		parent := index
		derivedFrom = &parent
	}

	agg.Finalize(&run)
	run.FinishedAt = p.now()
	log.Info("run finished",
		"stop_reason", run.StopReason,
		"iterations", len(run.Iterations),
		"items", len(run.Items),
		"duration", run.FinishedAt.Sub(run.StartedAt))

	if run.StopReason == domain.StopAborted {
		return run, ctx.Err()
	}
	p.publish(ctx, log, run, cfg)
	return run, nil
}

type iterationOutput struct {
	items       []domain.ContentItem
	evaluations []domain.EvaluationResult
	failures    []domain.AdapterFailure
	analysis    analysis
}

// iterate runs one discover, extract, evaluate, analyze pass. Every phase
// completes for the whole batch before the next one starts.
func (p *Pipeline) iterate(ctx context.Context, query string, cfg RunConfig) (domain.QueryIterationRecord, iterationOutput) {
	started := p.now()
	record := domain.QueryIterationRecord{QueryText: query, StartedAt: started}

	found := p.discovery.Discover(ctx, source.Request{
		Query:        query,
		Sources:      cfg.Sources,
		DefaultLimit: cfg.DefaultLimit,
		Limits:       cfg.SourceLimits,
		UseCache:     cfg.UseCache,
	})
	record.ItemsDiscovered = len(found.Candidates)
	record.Counts.Discovered = len(found.Candidates)
	record.Counts.AdaptersOK = found.AdaptersOK
	record.Counts.CacheHitsFetch = found.CacheHits

	var out iterationOutput
	out.failures = found.Failures

	extracted := p.extractor.Run(ctx, found.Candidates, extractor.BatchOptions{
		PoolSize:    cfg.PoolSize,
		BypassCache: !cfg.UseCache,
	})
	out.items = extracted.Items
	record.Counts.CacheHitsFetch += extracted.CacheHits

	evaluable := make([]domain.ContentItem, 0, len(out.items))
	for _, item := range out.items {
		if item.ExtractionStatus.Evaluable() {
			evaluable = append(evaluable, item)
		}
	}

	scored := p.evaluator.Run(ctx, evaluable, cfg.Criteria, evaluator.BatchOptions{
		PoolSize:    cfg.PoolSize,
		BypassCache: !cfg.UseCache,
	})
	out.evaluations = scored.Results
	record.Counts.CacheHitsScored = scored.CacheHits

	out.analysis = analyze(query, out.items, out.evaluations, cfg.threshold(), cfg.MaxThemes)
	record.ItemsEvaluated = out.analysis.Evaluated
	record.AvgScore = out.analysis.AvgScore
	record.HighQualityRatio = out.analysis.HighQualityRatio
	record.HighQualityCount = out.analysis.HighQualityCount
	record.Themes = out.analysis.Themes
	record.SourceDomains = out.analysis.SourceDomains
	record.Duration = p.now().Sub(started)
	return record, out
}

// shouldStop applies the iteration budget first, then the degradation
// floor relative to the first iteration.
func shouldStop(index int, history []domain.QueryIterationRecord, cfg RunConfig) (domain.StopReason, bool) {
	if index+1 >= cfg.MaxIterations {
		return domain.StopMaxIterations, true
	}
	if index > 0 && len(history) > 0 {
		first := history[0].AvgScore
		last := history[len(history)-1].AvgScore
		if last < first*cfg.DegradationFloor {
			return domain.StopQualityDropped, true
		}
	}
	return "", false
}

// publish hands the finished run to the sink and the notifier. Their
// failures are logged and never change the run.
func (p *Pipeline) publish(ctx context.Context, log *slog.Logger, run domain.PipelineRun, cfg RunConfig) {
	if p.sink != nil {
		location, err := p.sink.Save(ctx, run)
		if err != nil {
			log.Error("save run failed", "error", err)
		} else {
			log.Info("run saved", "location", location)
		}
	}

	if p.notifier == nil {
		return
	}
	message := buildDigestMessage(run, cfg.DigestSize)
	if message == "" {
		return
	}
	if err := p.notifier.PublishDigest(ctx, message); err != nil {
		log.Error("publish digest failed", "error", err)
	}
}
