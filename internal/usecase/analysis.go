package usecase

import (
	"sort"
	"strings"
	"unicode"

	"ContentCurator/internal/cache"
	"ContentCurator/internal/domain"
)

var stopWords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "by": true, "for": true, "from": true, "has": true, "he": true,
	"in": true, "is": true, "it": true, "its": true, "of": true, "on": true,
	"that": true, "the": true, "to": true, "was": true, "were": true, "will": true,
	"with": true, "this": true, "but": true, "they": true, "have": true,
	"had": true, "what": true, "when": true, "where": true, "who": true, "which": true,
	"why": true, "how": true, "all": true, "any": true, "both": true, "each": true,
	"few": true, "more": true, "most": true, "other": true, "some": true, "such": true,
	"no": true, "nor": true, "not": true, "only": true, "own": true, "same": true,
	"so": true, "than": true, "too": true, "very": true, "can": true, "did": true,
	"do": true, "does": true, "doing": true, "done": true, "down": true, "up": true,
	"you": true, "your": true, "our": true, "their": true, "them": true, "there": true,
	"about": true, "into": true, "over": true, "just": true, "also": true, "like": true,
	"one": true, "get": true, "would": true, "could": true, "should": true, "been": true,
	"being": true, "these": true, "those": true, "then": true, "out": true, "if": true,
	"or": true, "we": true, "i": true, "my": true, "me": true, "us": true, "his": true,
	"her": true, "she": true, "him": true, "new": true, "http": true, "https": true,
	"www": true, "com": true, "top": true, "comments": true, "points": true,
}

const (
	titleWeight   = 3
	textWordLimit = 1500
)

type analysis struct {
	AvgScore         float64
	HighQualityRatio float64
	HighQualityCount int
	Evaluated        int
	Themes           []string
	TopTitles        []string
	SourceDomains    []string
	// Coverage maps a lowercase term to the source types of the high
	// scoring items that mention it.
	Coverage map[string]map[domain.SourceType]bool
}

type scored struct {
	item  domain.ContentItem
	score float64
}

// analyze computes the quality metrics of one iteration and mines themes
// from its high scoring items.
func analyze(query string, items []domain.ContentItem, evaluations []domain.EvaluationResult, threshold float64, maxThemes int) analysis {
	byURL := make(map[string]domain.ContentItem, len(items))
	for _, it := range items {
		byURL[it.URL] = it
	}

	var (
		out     analysis
		total   float64
		high    []scored
		domains = map[string]bool{}
	)
	for _, ev := range evaluations {
		if !ev.OK() {
			continue
		}
		out.Evaluated++
		total += ev.OverallScore
		it, ok := byURL[ev.ItemURL]
		if !ok {
			it = domain.ContentItem{URL: ev.ItemURL}
		}
		if d := cache.Domain(ev.ItemURL); d != "" {
			domains[d] = true
		}
		if ev.OverallScore >= threshold {
			high = append(high, scored{item: it, score: ev.OverallScore})
		}
	}

	if out.Evaluated > 0 {
		out.AvgScore = total / float64(out.Evaluated)
		out.HighQualityRatio = float64(len(high)) / float64(out.Evaluated)
	}
	out.HighQualityCount = len(high)

	for d := range domains {
		out.SourceDomains = append(out.SourceDomains, d)
	}
	sort.Strings(out.SourceDomains)

	sort.SliceStable(high, func(i, j int) bool { return high[i].score > high[j].score })
	for i, h := range high {
		if i == 5 {
			break
		}
		if h.item.Title != "" {
			out.TopTitles = append(out.TopTitles, h.item.Title)
		}
	}

	out.Themes, out.Coverage = themes(query, high, maxThemes)
	return out
}

// themes ranks terms by weighted document frequency across high scorers,
// titles counting more than body text. Stop words and query terms are
// excluded; ties sort alphabetically.
func themes(query string, high []scored, max int) ([]string, map[string]map[domain.SourceType]bool) {
	exclude := map[string]bool{}
	for _, t := range tokenize(query) {
		exclude[t] = true
	}

	weights := map[string]int{}
	coverage := map[string]map[domain.SourceType]bool{}
	for _, h := range high {
		seen := map[string]bool{}
		add := func(term string, w int) {
			if exclude[term] || seen[term] {
				return
			}
			seen[term] = true
			weights[term] += w
			if coverage[term] == nil {
				coverage[term] = map[domain.SourceType]bool{}
			}
			coverage[term][h.item.SourceType] = true
		}
		for _, t := range tokenize(h.item.Title) {
			add(t, titleWeight)
		}
		words := tokenize(h.item.RawText)
		if len(words) > textWordLimit {
			words = words[:textWordLimit]
		}
		for _, t := range words {
			add(t, 1)
		}
	}

	terms := make([]string, 0, len(weights))
	for t, w := range weights {
		if len(high) > 1 && w < 2 {
			continue
		}
		terms = append(terms, t)
	}
	sort.Slice(terms, func(i, j int) bool {
		if weights[terms[i]] != weights[terms[j]] {
			return weights[terms[i]] > weights[terms[j]]
		}
		return terms[i] < terms[j]
	})
	if len(terms) > max {
		terms = terms[:max]
	}
	return terms, coverage
}

// tokenize lowercases text and keeps alphabetic words of three or more
// letters that are not stop words.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && r != '-'
	})
	out := fields[:0]
	for _, f := range fields {
		f = strings.Trim(f, "-")
		if len([]rune(f)) < 3 || stopWords[f] {
			continue
		}
		out = append(out, f)
	}
	return out
}
