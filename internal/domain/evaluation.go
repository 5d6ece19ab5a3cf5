package domain

// EvaluationStatus is the outcome of scoring a single item.
type EvaluationStatus string

const (
	EvaluationOK    EvaluationStatus = "ok"
	EvaluationError EvaluationStatus = "error"
)

// Dimension is one weighted rubric criterion.
type Dimension struct {
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Weight      float64 `json:"weight"`
}

// EvaluationResult is the immutable score of one item for one evaluation pass.
type EvaluationResult struct {
	ItemURL         string             `json:"item_url"`
	DimensionScores map[string]float64 `json:"dimension_scores"`
	Weights         map[string]float64 `json:"weights"`
	OverallScore    float64            `json:"overall_score"`
	Status          EvaluationStatus   `json:"status"`
	ErrorDetail     string             `json:"error_detail,omitempty"`
	// Summary and Reasoning are the backend's own words, when it gave any.
	// Reasoning is keyed by dimension.
	Summary      string             `json:"summary,omitempty"`
	Reasoning    map[string]string  `json:"reasoning,omitempty"`
	Method       string             `json:"method,omitempty"`
	Perspectives []PerspectiveScore `json:"perspectives,omitempty"`
}

// PerspectiveScore is one reviewer's breakdown in a multi-perspective
// evaluation.
type PerspectiveScore struct {
	Name            string             `json:"name"`
	DimensionScores map[string]float64 `json:"dimension_scores"`
	Weights         map[string]float64 `json:"weights"`
	OverallScore    float64            `json:"overall_score"`
	Summary         string             `json:"summary,omitempty"`
}

// OK reports whether the result carries a usable score.
func (e EvaluationResult) OK() bool {
	return e.Status == EvaluationOK
}
