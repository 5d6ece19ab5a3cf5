package domain

import (
	"sort"
	"time"
)

// FailureKind classifies an isolated failure recorded on the run.
type FailureKind string

const (
	FailureAdapterUnavailable FailureKind = "AdapterUnavailable"
)

// AdapterFailure records a source adapter that could not serve an iteration.
type AdapterFailure struct {
	Adapter        string      `json:"adapter"`
	SourceType     SourceType  `json:"source_type"`
	Kind           FailureKind `json:"kind"`
	Detail         string      `json:"detail"`
	IterationIndex int         `json:"iteration_index"`
}

// ExtractionCounts tallies extraction statuses.
type ExtractionCounts struct {
	OK       int `json:"ok"`
	Partial  int `json:"partial"`
	Failed   int `json:"failed"`
	TooShort int `json:"too_short"`
}

// Add increments the bucket matching status.
func (c *ExtractionCounts) Add(status ExtractionStatus) {
	switch status {
	case StatusOK:
		c.OK++
	case StatusPartial:
		c.Partial++
	case StatusTooShort:
		c.TooShort++
	default:
		c.Failed++
	}
}

// Total returns the number of counted items.
func (c ExtractionCounts) Total() int {
	return c.OK + c.Partial + c.Failed + c.TooShort
}

// EvaluationCounts tallies evaluation outcomes.
type EvaluationCounts struct {
	OK    int `json:"ok"`
	Error int `json:"error"`
}

// PhaseCounts summarizes what happened in each phase so data loss is visible.
type PhaseCounts struct {
	Discovered      int              `json:"discovered"`
	AdaptersOK      int              `json:"adapters_ok"`
	AdaptersFailed  int              `json:"adapters_failed"`
	Extraction      ExtractionCounts `json:"extraction"`
	Evaluation      EvaluationCounts `json:"evaluation"`
	CacheHitsFetch  int              `json:"cache_hits_fetch"`
	CacheHitsScored int              `json:"cache_hits_scored"`
}

// Merge adds other into c.
func (c *PhaseCounts) Merge(other PhaseCounts) {
	c.Discovered += other.Discovered
	c.AdaptersOK += other.AdaptersOK
	c.AdaptersFailed += other.AdaptersFailed
	c.Extraction.OK += other.Extraction.OK
	c.Extraction.Partial += other.Extraction.Partial
	c.Extraction.Failed += other.Extraction.Failed
	c.Extraction.TooShort += other.Extraction.TooShort
	c.Evaluation.OK += other.Evaluation.OK
	c.Evaluation.Error += other.Evaluation.Error
	c.CacheHitsFetch += other.CacheHitsFetch
	c.CacheHitsScored += other.CacheHitsScored
}

// QueryIterationRecord is the immutable summary of one evolution iteration.
type QueryIterationRecord struct {
	IterationIndex   int           `json:"iteration_index"`
	QueryText        string        `json:"query_text"`
	ItemsDiscovered  int           `json:"items_discovered"`
	ItemsEvaluated   int           `json:"items_evaluated"`
	AvgScore         float64       `json:"avg_score"`
	HighQualityRatio float64       `json:"high_quality_ratio"`
	HighQualityCount int           `json:"high_quality_count"`
	DerivedFrom      *int          `json:"derived_from,omitempty"`
	Themes           []string      `json:"themes,omitempty"`
	SourceDomains    []string      `json:"source_domains,omitempty"`
	FailedAdapters   []string      `json:"failed_adapters,omitempty"`
	Counts           PhaseCounts   `json:"counts"`
	SynthesisMode    string        `json:"synthesis_mode,omitempty"`
	StartedAt        time.Time     `json:"started_at"`
	Duration         time.Duration `json:"duration_ns"`
}

// StopReason explains why the evolution loop terminated.
type StopReason string

const (
	StopMaxIterations  StopReason = "max_iterations"
	StopQualityDropped StopReason = "quality_degraded"
	StopNoNewQuery     StopReason = "no_new_query"
	StopAborted        StopReason = "aborted"
)

// PipelineRun aggregates every iteration and the deduplicated corpus.
type PipelineRun struct {
	ID               string                 `json:"id"`
	SeedQuery        string                 `json:"seed_query"`
	StartedAt        time.Time              `json:"started_at"`
	FinishedAt       time.Time              `json:"finished_at"`
	Iterations       []QueryIterationRecord `json:"iterations"`
	Items            []ContentItem          `json:"items"`
	Evaluations      []EvaluationResult     `json:"evaluations"`
	Counts           PhaseCounts            `json:"counts"`
	AdapterFailures  []AdapterFailure       `json:"adapter_failures,omitempty"`
	StopReason       StopReason             `json:"stop_reason"`
	QualityThreshold float64                `json:"quality_threshold"`
}

// EvaluationFor returns the evaluation associated with url, if any.
func (r PipelineRun) EvaluationFor(url string) (EvaluationResult, bool) {
	for _, ev := range r.Evaluations {
		if ev.ItemURL == url {
			return ev, true
		}
	}
	return EvaluationResult{}, false
}

// ScoredItem pairs an item with its successful evaluation.
type ScoredItem struct {
	Item       ContentItem      `json:"item"`
	Evaluation EvaluationResult `json:"evaluation"`
}

// HighQuality returns items whose overall score reaches the run threshold,
// best first. Equal scores keep item order.
func (r PipelineRun) HighQuality() []ScoredItem {
	return r.Ranked(r.QualityThreshold)
}

// Ranked returns every successfully evaluated item scoring at least min,
// best first.
func (r PipelineRun) Ranked(min float64) []ScoredItem {
	byURL := make(map[string]EvaluationResult, len(r.Evaluations))
	for _, ev := range r.Evaluations {
		if ev.OK() {
			byURL[ev.ItemURL] = ev
		}
	}

	var out []ScoredItem
	for _, item := range r.Items {
		ev, ok := byURL[item.URL]
		if !ok || ev.OverallScore < min {
			continue
		}
		out = append(out, ScoredItem{Item: item, Evaluation: ev})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Evaluation.OverallScore > out[j].Evaluation.OverallScore
	})
	return out
}
