package extractor

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var paywallSelectors = []string{
	".paywall-indicator",
	".locked-indicator",
	".locked-content",
	".paid-content",
	".subscriber-content",
	".subscription-only",
}

var paywallPhrases = []string{
	"subscribe to continue reading",
	"this post is for paid subscribers",
	"this post is for paying subscribers",
	"subscribe to read",
	"paid subscribers only",
	"for subscribers only",
	"for paid subscribers",
}

var previewSelectors = []string{
	".available-content",
	".preview-content",
	".public-content",
	".free-content",
}

// detectPaywall reports whether the page hides its body behind a
// subscription, and which signal matched. doc must already be cleaned of
// boilerplate; phrases and buttons only count inside main.
func detectPaywall(doc *goquery.Document, main *goquery.Selection) (string, bool) {
	for _, sel := range paywallSelectors {
		if doc.Find(sel).Length() > 0 {
			return "indicator " + sel, true
		}
	}

	text := strings.ToLower(main.Text())
	for _, phrase := range paywallPhrases {
		if strings.Contains(text, phrase) {
			return "phrase \"" + phrase + "\"", true
		}
	}

	reason := ""
	main.Find(".subscribe-button, .subscription-button").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		label := strings.ToLower(s.Text())
		if strings.Contains(label, "subscribe") && (strings.Contains(label, "read") || strings.Contains(label, "continue")) {
			reason = "subscribe button"
			return false
		}
		return true
	})
	return reason, reason != ""
}

// previewText collects the publicly visible part of a paywalled page.
func previewText(doc *goquery.Document) string {
	var parts []string
	if sub := normalizeText(doc.Find(".subtitle").First().Text()); sub != "" {
		parts = append(parts, sub)
	}

	if body := visiblePreview(doc); body != "" {
		parts = append(parts, body)
	}
	return strings.Join(parts, "\n\n")
}

func visiblePreview(doc *goquery.Document) string {
	for _, sel := range previewSelectors {
		node := doc.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		node.Find("script, style, .subscribe-widget").Remove()
		if text := normalizeText(node.Text()); text != "" {
			return text
		}
	}

	var paragraphs []string
	doc.Find("article p").EachWithBreak(func(_ int, p *goquery.Selection) bool {
		class := strings.ToLower(p.Parent().AttrOr("class", ""))
		for _, marker := range []string{"subscribe", "paywall", "locked", "cta"} {
			if strings.Contains(class, marker) {
				return true
			}
		}
		if text := normalizeText(p.Text()); text != "" {
			paragraphs = append(paragraphs, text)
		}
		return len(paragraphs) < 3
	})
	if len(paragraphs) > 0 {
		return strings.Join(paragraphs, "\n\n")
	}

	return normalizeText(doc.Find("article .post-header, article .post-intro, article .intro").Text())
}
