package ports

import (
	"context"
	"time"

	"ContentCurator/internal/domain"
)

// ScoringBackend rates a text against rubric dimensions. Values may be
// numbers, numeric strings, nested {"score": x} objects or free text; the
// evaluator coerces them.
type ScoringBackend interface {
	Score(ctx context.Context, text string, dimensions []domain.Dimension) (map[string]any, error)
}

// SynthesisRequest summarizes the run so far for query synthesis.
type SynthesisRequest struct {
	SeedQuery     string
	CurrentQuery  string
	History       []domain.QueryIterationRecord
	Themes        []string
	TopTitles     []string
	MaxCandidates int
}

// QuerySynthesizer proposes follow-up search queries.
type QuerySynthesizer interface {
	Synthesize(ctx context.Context, req SynthesisRequest) ([]string, error)
}

// Completer sends one system/user exchange to a chat model.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// RunSink persists a finished run and returns where it was written.
type RunSink interface {
	Save(ctx context.Context, run domain.PipelineRun) (string, error)
}

// Notifier streams selected digests to Telegram or other channels.
type Notifier interface {
	PublishDigest(ctx context.Context, digest string) error
}

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
