package evaluator

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"ContentCurator/internal/domain"
)

var knownDescriptions = map[string]string{
	"technical_accuracy":   "Precision of technical information and engineering concepts",
	"growth_actionability": "Concrete actions engineers can take to advance their careers",
	"evidence_based":       "Uses empirical data, case studies, or clear reasoning rather than opinions",
	"technical_depth":      "Provides sufficient depth for senior engineers to gain value",
	"bias_mitigation":      "Avoids common biases in evaluation; focuses on objective measures of growth",
	"relevance":            "How closely the content matches the topic being researched",
	"quality":              "Clarity, structure and correctness of the writing",
	"depth":                "Goes beyond surface level explanations",
	"practicality":         "Advice that can be applied directly",

	"leadership_frameworks":   "Management frameworks and leadership approaches a manager can adopt",
	"team_growth":             "Helps grow engineers and build stronger teams",
	"process_improvement":     "Improves how teams plan, ship and learn",
	"people_management":       "Hiring, feedback, performance and career conversations",
	"practical_application":   "Can be applied by an engineering manager next week",
	"architectural_insight":   "Useful reasoning about system architecture and its tradeoffs",
	"systems_thinking":        "Considers interactions, failure modes and second order effects",
	"engineering_excellence":  "Raises the bar on code quality, reliability and operations",
	"technical_applicability": "Techniques a senior engineer can put into practice",
}

// DefaultCriteria returns the default rubric weights.
func DefaultCriteria() map[string]float64 {
	return map[string]float64{
		"technical_accuracy":   0.25,
		"growth_actionability": 0.30,
		"evidence_based":       0.20,
		"technical_depth":      0.15,
		"bias_mitigation":      0.10,
	}
}

// Rubric is an ordered set of dimensions whose weights sum to 1.
type Rubric []domain.Dimension

// NewRubric normalizes criteria weights. Non-positive or non-finite weights
// are dropped; when nothing remains every named dimension gets an equal
// share. Dimensions are sorted by name.
func NewRubric(criteria map[string]float64) Rubric {
	names := make([]string, 0, len(criteria))
	for name := range criteria {
		if strings.TrimSpace(name) != "" {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	total := 0.0
	for _, name := range names {
		if w := criteria[name]; w > 0 && !math.IsInf(w, 0) && !math.IsNaN(w) {
			total += w
		}
	}

	rubric := make(Rubric, 0, len(names))
	for _, name := range names {
		w := criteria[name]
		switch {
		case total == 0:
			w = 1 / float64(len(names))
		case w > 0 && !math.IsInf(w, 0) && !math.IsNaN(w):
			w /= total
		default:
			continue
		}
		rubric = append(rubric, domain.Dimension{Name: name, Description: knownDescriptions[name], Weight: w})
	}
	return rubric
}

// Weights returns the dimension weights as a map.
func (r Rubric) Weights() map[string]float64 {
	out := make(map[string]float64, len(r))
	for _, d := range r {
		out[d.Name] = d.Weight
	}
	return out
}

// Key identifies the rubric in evaluation cache keys.
func (r Rubric) Key() string {
	parts := make([]string, len(r))
	for i, d := range r {
		parts[i] = d.Name + "=" + strconv.FormatFloat(d.Weight, 'f', 6, 64)
	}
	return strings.Join(parts, ";")
}

// renormalize returns the weights of the scored dimensions rescaled to sum to 1.
func (r Rubric) renormalize(scored map[string]float64) map[string]float64 {
	total := 0.0
	for _, d := range r {
		if _, ok := scored[d.Name]; ok {
			total += d.Weight
		}
	}
	out := make(map[string]float64, len(scored))
	for _, d := range r {
		if _, ok := scored[d.Name]; ok && total > 0 {
			out[d.Name] = d.Weight / total
		}
	}
	return out
}
