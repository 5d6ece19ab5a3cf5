package evaluator

import (
	"fmt"
	"sort"
	"strings"

	"ContentCurator/internal/domain"
)

// Evaluation methods.
const (
	MethodStandard        = "standard"
	MethodDualPerspective = "dual_perspective"
)

// Perspective is a reviewer persona with its own rubric.
type Perspective struct {
	Name     string
	Preamble string
	Criteria map[string]float64
}

// DualPerspectives returns the engineering manager and staff engineer
// reviewers.
func DualPerspectives() []Perspective {
	return []Perspective{
		{
			Name: "engineering_manager",
			Preamble: "Review this as an experienced engineering manager deciding whether it helps other engineering leaders: " +
				"leadership frameworks, team growth, process improvement and people management.",
			Criteria: map[string]float64{
				"leadership_frameworks": 0.30,
				"team_growth":           0.25,
				"process_improvement":   0.20,
				"people_management":     0.15,
				"practical_application": 0.10,
			},
		},
		{
			Name: "staff_engineer",
			Preamble: "Review this as a staff or principal engineer deciding whether it is technically worth a senior engineer's time: " +
				"depth, architecture, systems thinking and engineering excellence.",
			Criteria: map[string]float64{
				"technical_depth":         0.30,
				"architectural_insight":   0.25,
				"systems_thinking":        0.20,
				"engineering_excellence":  0.15,
				"technical_applicability": 0.10,
			},
		},
	}
}

type perspectiveRubric struct {
	Perspective
	rubric Rubric
}

func perspectiveRubrics(perspectives []Perspective) []perspectiveRubric {
	out := make([]perspectiveRubric, 0, len(perspectives))
	for _, p := range perspectives {
		if r := NewRubric(p.Criteria); len(r) > 0 {
			out = append(out, perspectiveRubric{Perspective: p, rubric: r})
		}
	}
	return out
}

// mergedRubric spreads the weight evenly across perspectives; a dimension
// shared by several perspectives collects each share.
func mergedRubric(parts []perspectiveRubric) Rubric {
	if len(parts) == 0 {
		return nil
	}
	weights := map[string]float64{}
	for _, p := range parts {
		for _, d := range p.rubric {
			weights[d.Name] += d.Weight / float64(len(parts))
		}
	}
	names := make([]string, 0, len(weights))
	for name := range weights {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make(Rubric, 0, len(names))
	for _, name := range names {
		out = append(out, domain.Dimension{Name: name, Description: knownDescriptions[name], Weight: weights[name]})
	}
	return out
}

// mergePerspectives averages per-perspective results. The overall score is
// the mean of the perspective scores; a shared dimension gets the weighted
// mean of its scores so overall stays the weighted sum of the dimensions.
func mergePerspectives(url string, parts []perspectiveRubric, results []domain.EvaluationResult) domain.EvaluationResult {
	n := float64(len(results))
	scores := map[string]float64{}
	weights := map[string]float64{}
	reasoning := map[string]string{}
	var summaries, details []string
	res := domain.EvaluationResult{
		ItemURL: url,
		Status:  domain.EvaluationOK,
		Method:  MethodDualPerspective,
	}

	overall := 0.0
	for i, r := range results {
		name := parts[i].Name
		overall += r.OverallScore / n
		for dim, score := range r.DimensionScores {
			w := r.Weights[dim] / n
			scores[dim] += score * w
			weights[dim] += w
		}
		for dim, why := range r.Reasoning {
			if _, taken := reasoning[dim]; !taken {
				reasoning[dim] = why
			}
		}
		if r.Summary != "" {
			summaries = append(summaries, r.Summary)
		}
		if r.ErrorDetail != "" {
			details = append(details, name+": "+r.ErrorDetail)
		}
		res.Perspectives = append(res.Perspectives, domain.PerspectiveScore{
			Name:            name,
			DimensionScores: r.DimensionScores,
			Weights:         r.Weights,
			OverallScore:    r.OverallScore,
			Summary:         r.Summary,
		})
	}
	for dim, w := range weights {
		if w > 0 {
			scores[dim] /= w
		}
	}

	res.DimensionScores = scores
	res.Weights = weights
	res.OverallScore = clamp(overall)
	res.Summary = strings.Join(summaries, " ")
	if len(reasoning) > 0 {
		res.Reasoning = reasoning
	}
	res.ErrorDetail = strings.Join(details, "; ")
	return res
}

func perspectiveText(p perspectiveRubric, text string) string {
	return fmt.Sprintf("Reviewer perspective: %s\n\n%s", p.Preamble, text)
}
