package evaluator

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
)

const (
	minScore = 0.0
	maxScore = 10.0
)

var (
	leadingNumber = regexp.MustCompile(`^[-+]?\d+(?:\.\d+)?`)
	outOf         = regexp.MustCompile(`^\s*(?:/|out\s+of)\s*(\d+(?:\.\d+)?)`)
)

// CoerceScore converts a backend value into a score in [0,10]. Accepted
// shapes are numbers, strings with a leading number ("7", "7/10",
// "8.5 out of 10") and objects carrying a "score" field. A denominator
// other than 10 rescales the value.
func CoerceScore(v any) (float64, bool) {
	var (
		score float64
		ok    bool
	)

	switch x := v.(type) {
	case float64:
		score, ok = x, true
	case float32:
		score, ok = float64(x), true
	case int:
		score, ok = float64(x), true
	case int64:
		score, ok = float64(x), true
	case json.Number:
		f, err := x.Float64()
		score, ok = f, err == nil
	case string:
		score, ok = parseScoreString(x)
	case map[string]any:
		for _, key := range []string{"score", "value", "rating"} {
			if inner, found := x[key]; found {
				return CoerceScore(inner)
			}
		}
	}

	if !ok || math.IsNaN(score) || math.IsInf(score, 0) {
		return 0, false
	}
	return clamp(score), true
}

func parseScoreString(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	num := leadingNumber.FindString(s)
	if num == "" {
		return 0, false
	}
	value, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, false
	}

	if m := outOf.FindStringSubmatch(strings.ToLower(s[len(num):])); m != nil {
		if denom, err := strconv.ParseFloat(m[1], 64); err == nil && denom > 0 && denom != maxScore {
			value = value / denom * maxScore
		}
	}
	return value, true
}

func clamp(v float64) float64 {
	return math.Max(minScore, math.Min(maxScore, v))
}

// reasonOf returns the explanation attached to a nested dimension value.
func reasonOf(v any) string {
	m, ok := v.(map[string]any)
	if !ok {
		return ""
	}
	for _, key := range []string{"reasoning", "explanation", "rationale"} {
		if s, ok := m[key].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

// lookup finds a dimension in the backend response, tolerating case and
// separator differences and a wrapping "scores" object.
func lookup(raw map[string]any, name string) (any, bool) {
	if v, ok := raw[name]; ok {
		return v, true
	}
	want := canonical(name)
	for k, v := range raw {
		if canonical(k) == want {
			return v, true
		}
	}
	if nested, ok := raw["scores"].(map[string]any); ok {
		return lookup(nested, name)
	}
	return nil, false
}

func canonical(name string) string {
	return strings.NewReplacer(" ", "", "_", "", "-", "").Replace(strings.ToLower(strings.TrimSpace(name)))
}
