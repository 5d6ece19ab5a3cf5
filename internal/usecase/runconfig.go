package usecase

import (
	"ContentCurator/internal/domain"
	"ContentCurator/internal/evaluator"
	"ContentCurator/internal/workerpool"
)

// RunConfig controls one pipeline run.
type RunConfig struct {
	// Sources restricts discovery to these source types; empty means all
	// registered adapters.
	Sources          []domain.SourceType
	DefaultLimit     int
	SourceLimits     map[domain.SourceType]int
	Criteria         map[string]float64
	// QualityThreshold is the minimum overall score of a high quality item.
	// Nil means the default; zero is a valid threshold.
	QualityThreshold *float64
	MaxIterations    int
	// DegradationFloor stops the run once an iteration averages below this
	// fraction of the first iteration's average.
	DegradationFloor float64
	UseCache         bool
	PoolSize         int
	// MaxCandidates bounds how many follow-up queries synthesis proposes.
	MaxCandidates int
	MaxThemes     int
	// DigestSize is how many top items go into the notification digest.
	DigestSize int
}

// DefaultRunConfig returns the documented defaults.
func DefaultRunConfig() RunConfig {
	return RunConfig{
		DefaultLimit:     10,
		Criteria:         evaluator.DefaultCriteria(),
		QualityThreshold: Threshold(4.0),
		MaxIterations:    3,
		DegradationFloor: 0.5,
		UseCache:         true,
		PoolSize:         workerpool.DefaultSize,
		MaxCandidates:    5,
		MaxThemes:        8,
		DigestSize:       5,
	}
}

// Threshold returns a QualityThreshold value.
func Threshold(v float64) *float64 {
	return &v
}

// threshold is the resolved quality threshold.
func (c RunConfig) threshold() float64 {
	if c.QualityThreshold == nil {
		return *DefaultRunConfig().QualityThreshold
	}
	return *c.QualityThreshold
}

func (c RunConfig) normalized() RunConfig {
	def := DefaultRunConfig()
	if c.DefaultLimit <= 0 {
		c.DefaultLimit = def.DefaultLimit
	}
	if len(c.Criteria) == 0 {
		c.Criteria = def.Criteria
	}
	if c.QualityThreshold == nil || *c.QualityThreshold < 0 {
		c.QualityThreshold = def.QualityThreshold
	}
	if c.MaxIterations <= 0 {
		c.MaxIterations = def.MaxIterations
	}
	if c.DegradationFloor <= 0 || c.DegradationFloor > 1 {
		c.DegradationFloor = def.DegradationFloor
	}
	if c.PoolSize <= 0 {
		c.PoolSize = def.PoolSize
	}
	if c.MaxCandidates <= 0 {
		c.MaxCandidates = def.MaxCandidates
	}
	if c.MaxThemes <= 0 {
		c.MaxThemes = def.MaxThemes
	}
	if c.DigestSize <= 0 {
		c.DigestSize = def.DigestSize
	}
	return c
}
