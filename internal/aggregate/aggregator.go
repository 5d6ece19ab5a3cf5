// Package aggregate folds iteration outputs into a single deduplicated run.
package aggregate

import (
	"fmt"
	"sort"

	"ContentCurator/internal/cache"
	"ContentCurator/internal/domain"
)

// Aggregator is not safe for concurrent use; the pipeline drives it from
// its coordinating goroutine.
type Aggregator struct {
	iterations []domain.QueryIterationRecord
	failures   []domain.AdapterFailure
	counts     domain.PhaseCounts

	order []string
	items map[string]domain.ContentItem
	evals map[string]domain.EvaluationResult
}

// New returns an empty aggregator.
func New() *Aggregator {
	return &Aggregator{
		items: map[string]domain.ContentItem{},
		evals: map[string]domain.EvaluationResult{},
	}
}

// AddIteration records one iteration. Extraction and evaluation counts and
// the failed adapter list are derived from the inputs; discovery counts are
// taken from record. Iteration indices must be strictly increasing.
func (a *Aggregator) AddIteration(record domain.QueryIterationRecord, items []domain.ContentItem, evaluations []domain.EvaluationResult, failures []domain.AdapterFailure) error {
	if n := len(a.iterations); n > 0 && record.IterationIndex <= a.iterations[n-1].IterationIndex {
		return fmt.Errorf("iteration index %d does not follow %d", record.IterationIndex, a.iterations[n-1].IterationIndex)
	}

	record.Counts.Extraction = domain.ExtractionCounts{}
	record.Counts.Evaluation = domain.EvaluationCounts{}
	record.Counts.AdaptersFailed = len(failures)

	for _, item := range items {
		record.Counts.Extraction.Add(item.ExtractionStatus)
		a.addItem(item)
	}
	for _, ev := range evaluations {
		if ev.OK() {
			record.Counts.Evaluation.OK++
		} else {
			record.Counts.Evaluation.Error++
		}
		a.addEvaluation(ev)
	}

	record.FailedAdapters = record.FailedAdapters[:0:0]
	for _, f := range failures {
		f.IterationIndex = record.IterationIndex
		a.failures = append(a.failures, f)
		record.FailedAdapters = append(record.FailedAdapters, f.Adapter)
	}
	sort.Strings(record.FailedAdapters)

	a.counts.Merge(record.Counts)
	a.iterations = append(a.iterations, record)
	return nil
}

// Last returns the most recently added record.
func (a *Aggregator) Last() (domain.QueryIterationRecord, bool) {
	if len(a.iterations) == 0 {
		return domain.QueryIterationRecord{}, false
	}
	return a.iterations[len(a.iterations)-1], true
}

// Iterations returns a copy of the records added so far.
func (a *Aggregator) Iterations() []domain.QueryIterationRecord {
	return append([]domain.QueryIterationRecord(nil), a.iterations...)
}

// Counts returns the run-level totals.
func (a *Aggregator) Counts() domain.PhaseCounts {
	return a.counts
}

// Finalize copies the aggregated state into run. Items keep first-seen
// order and evaluations are listed in the same order as their items.
func (a *Aggregator) Finalize(run *domain.PipelineRun) {
	run.Iterations = a.Iterations()
	run.Counts = a.counts
	run.AdapterFailures = append([]domain.AdapterFailure(nil), a.failures...)

	run.Items = make([]domain.ContentItem, 0, len(a.order))
	run.Evaluations = make([]domain.EvaluationResult, 0, len(a.evals))
	for _, url := range a.order {
		run.Items = append(run.Items, a.items[url])
		if ev, ok := a.evals[url]; ok {
			run.Evaluations = append(run.Evaluations, ev)
		}
	}
}

func (a *Aggregator) addItem(item domain.ContentItem) {
	url := cache.NormalizeURL(item.URL)
	if url == "" {
		return
	}
	item.URL = url

	existing, seen := a.items[url]
	if !seen {
		a.order = append(a.order, url)
		a.items[url] = item
		return
	}
	if rank(item.ExtractionStatus) > rank(existing.ExtractionStatus) {
		a.items[url] = item
		// The stored evaluation scored the replaced content.
		delete(a.evals, url)
	}
}

func (a *Aggregator) addEvaluation(ev domain.EvaluationResult) {
	url := cache.NormalizeURL(ev.ItemURL)
	if _, known := a.items[url]; !known {
		return
	}
	ev.ItemURL = url

	existing, seen := a.evals[url]
	if !seen || (!existing.OK() && ev.OK()) {
		a.evals[url] = ev
	}
}

func rank(status domain.ExtractionStatus) int {
	switch status {
	case domain.StatusOK:
		return 3
	case domain.StatusPartial:
		return 2
	case domain.StatusTooShort:
		return 1
	default:
		return 0
	}
}
