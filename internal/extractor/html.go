package extractor

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"

	"ContentCurator/internal/domain"
	"ContentCurator/internal/infrastructure/fetch"
)

const boilerplateSelector = "script, style, noscript, template, iframe, svg, form, nav, header, footer, aside, " +
	"[role=navigation], [role=banner], [role=contentinfo], [aria-hidden=true], " +
	".share, .social, .comments, .comment-list, .related, .newsletter-signup, .subscribe-widget, .cookie, .advert, .ad"

// Landmarks tried in order before falling back to text density.
var contentSelectors = []string{
	"article",
	"main",
	"[role=main]",
	".available-content",
	".post-content",
	".entry-content",
	".article-body",
	"#content",
}

const minLandmarkRunes = 200

var blankLines = regexp.MustCompile(`\n{3,}`)

// HTMLStrategy extracts the readable body of a web page as markdown.
type HTMLStrategy struct {
	fetcher  Fetcher
	pdf      *PDFStrategy
	paywall  bool
	policy   *bluemonday.Policy
	markdown *converter.Converter
}

// NewHTMLStrategy returns an HTML strategy. detectPaywall enables preview
// extraction for subscription pages. Responses served as PDF are handed to
// pdf when it is not nil.
func NewHTMLStrategy(f Fetcher, pdf *PDFStrategy, detectPaywall bool) *HTMLStrategy {
	return &HTMLStrategy{
		fetcher: f,
		pdf:     pdf,
		paywall: detectPaywall,
		policy:  bluemonday.UGCPolicy(),
		markdown: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
	}
}

// Extract fetches ref.URL and converts its main content.
func (s *HTMLStrategy) Extract(ctx context.Context, ref domain.CandidateRef) (Document, error) {
	resp, err := s.fetcher.Get(ctx, ref.URL, map[string]string{"Accept": "text/html,application/xhtml+xml"})
	if err != nil {
		return Document{}, err
	}
	if isPDF(resp) && s.pdf != nil {
		return s.pdf.Parse(resp.Body, ref)
	}
	return s.Parse(resp.Body, ref.URL)
}

// Parse extracts a document from raw HTML.
func (s *HTMLStrategy) Parse(body []byte, pageURL string) (Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return Document{}, &domain.FetchError{URL: pageURL, Kind: domain.ErrPermanentFetch, Err: fmt.Errorf("parse html: %w", err)}
	}

	out := Document{
		Title:    pageTitle(doc),
		Metadata: pageMetadata(doc),
	}

	main := cleanDocument(doc)
	if s.paywall {
		if reason, ok := detectPaywall(doc, main); ok {
			out.Text = previewText(doc)
			out.Partial = true
			out.Detail = "paywalled: " + reason
			return out, nil
		}
	}

	text, err := s.toMarkdown(outerHTML(doc, main), pageURL)
	if err != nil {
		return Document{}, &domain.FetchError{URL: pageURL, Kind: domain.ErrPermanentFetch, Err: err}
	}
	out.Text = text
	return out, nil
}

func (s *HTMLStrategy) toMarkdown(fragment, pageURL string) (string, error) {
	clean := s.policy.Sanitize(fragment)
	md, err := s.markdown.ConvertString(clean, converter.WithDomain(pageURL))
	if err != nil {
		plain, perr := goquery.NewDocumentFromReader(strings.NewReader(clean))
		if perr != nil {
			return "", fmt.Errorf("convert markdown: %w", err)
		}
		return normalizeText(plain.Text()), nil
	}
	md = strings.ReplaceAll(md, "\r\n", "\n")
	return strings.TrimSpace(blankLines.ReplaceAllString(md, "\n\n")), nil
}

// cleanDocument strips boilerplate from doc and returns the element most
// likely to hold the article body.
func cleanDocument(doc *goquery.Document) *goquery.Selection {
	doc.Find(boilerplateSelector).Remove()
	return mainSelection(doc)
}

func mainSelection(doc *goquery.Document) *goquery.Selection {
	for _, sel := range contentSelectors {
		node := doc.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		if utf8.RuneCountInString(strings.TrimSpace(node.Text())) < minLandmarkRunes {
			continue
		}
		return node
	}

	body := doc.Find("body")
	if body.Length() > 0 {
		if n := densestNode(body.Nodes[0]); n != nil {
			return doc.FindNodes(n)
		}
		return body
	}
	return doc.Selection
}

func outerHTML(doc *goquery.Document, sel *goquery.Selection) string {
	if sel.Length() > 0 && sel != doc.Selection {
		if h, err := goquery.OuterHtml(sel); err == nil {
			return h
		}
	}
	h, _ := doc.Html()
	return h
}

func pageTitle(doc *goquery.Document) string {
	if t, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok && strings.TrimSpace(t) != "" {
		return strings.TrimSpace(t)
	}
	if t := normalizeText(doc.Find("title").First().Text()); t != "" {
		return t
	}
	return normalizeText(doc.Find("h1").First().Text())
}

func pageMetadata(doc *goquery.Document) domain.Metadata {
	var md domain.Metadata
	for _, sel := range []string{`meta[name="author"]`, `meta[property="article:author"]`, `meta[name="twitter:creator"]`} {
		if v, ok := doc.Find(sel).Attr("content"); ok && strings.TrimSpace(v) != "" {
			md.Author = strings.TrimSpace(v)
			break
		}
	}
	if md.Author == "" {
		md.Author = normalizeText(doc.Find(`[rel="author"]`).First().Text())
	}

	published, _ := doc.Find(`meta[property="article:published_time"]`).Attr("content")
	if published == "" {
		published, _ = doc.Find("time[datetime]").First().Attr("datetime")
	}
	if t, ok := parseTime(published); ok {
		md.PublishedAt = &t
	}
	return md
}

func isPDF(resp *fetch.Response) bool {
	if strings.Contains(strings.ToLower(resp.ContentType), "application/pdf") {
		return true
	}
	return bytes.HasPrefix(resp.Body, []byte("%PDF-"))
}

// normalizeText collapses whitespace inside lines and drops blank lines.
func normalizeText(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
