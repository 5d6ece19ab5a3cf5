package sources

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"ContentCurator/internal/domain"
)

const (
	arxivBaseURL = "https://arxiv.org"
	arxivAPIURL  = "http://export.arxiv.org/api/query"
)

var dateExpr = regexp.MustCompile(`\d{1,2} [A-Za-z]{3} \d{4}`)

// ArxivLister searches papers through the arXiv Atom API. When the API is
// unavailable it scans the recent listing pages of the configured
// categories and keeps entries mentioning the query.
type ArxivLister struct {
	client     jsonGetter
	apiURL     string
	listingURL string
	categories []string
	sortBy     string
	pageSize   int
}

// NewArxivLister wires the fetcher; sortBy is "relevance" or "submittedDate".
func NewArxivLister(client jsonGetter, categories []string, sortBy string) *ArxivLister {
	if sortBy == "" {
		sortBy = "submittedDate"
	}
	return &ArxivLister{
		client:     client,
		apiURL:     arxivAPIURL,
		listingURL: arxivBaseURL,
		categories: categories,
		sortBy:     sortBy,
		pageSize:   100,
	}
}

// List returns papers for query, newest first unless sorted by relevance.
func (a *ArxivLister) List(ctx context.Context, query string, limit int) ([]domain.CandidateRef, error) {
	refs, err := a.search(ctx, query, limit)
	if err == nil {
		return refs, nil
	}
	if ctx.Err() != nil || len(a.categories) == 0 {
		return nil, err
	}

	listed, lerr := a.scanListings(ctx, query, limit)
	if lerr != nil {
		return nil, fmt.Errorf("api: %v; listing: %w", err, lerr)
	}
	return listed, nil
}

func (a *ArxivLister) search(ctx context.Context, query string, limit int) ([]domain.CandidateRef, error) {
	params := url.Values{}
	params.Set("search_query", "all:"+query)
	params.Set("start", "0")
	params.Set("max_results", strconv.Itoa(max(limit, 1)))
	params.Set("sortBy", a.sortBy)
	params.Set("sortOrder", "descending")

	resp, err := a.client.Get(ctx, a.apiURL+"?"+params.Encode(), map[string]string{"Accept": "application/atom+xml"})
	if err != nil {
		return nil, fmt.Errorf("query api: %w", err)
	}
	entries, err := parseFeed(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("decode api: %w", err)
	}

	refs := make([]domain.CandidateRef, 0, len(entries))
	for _, e := range entries {
		link := absURL(e.Link)
		if link == "" {
			continue
		}
		preview := map[string]string{
			"arxiv_id":     ArxivID(link),
			"abstract":     e.Summary,
			"published_at": e.Published,
			"category":     e.Category,
			"pdf_url":      absURL(e.PDFLink),
		}
		if len(e.Authors) > 0 {
			preview["author"] = strings.Join(e.Authors, ", ")
		}
		refs = append(refs, domain.CandidateRef{URL: link, Title: e.Title, Preview: preview})
	}
	return refs, nil
}

// scanListings walks each category's recent listing and keeps entries
// whose title or abstract contains a query term.
func (a *ArxivLister) scanListings(ctx context.Context, query string, limit int) ([]domain.CandidateRef, error) {
	var refs []domain.CandidateRef
	seen := map[string]struct{}{}

	for _, cat := range a.categories {
		pageURL, err := buildPageURL(a.listingURL+"/list/"+cat+"/pastweek", 0, a.pageSize)
		if err != nil {
			return nil, fmt.Errorf("category %s: %w", cat, err)
		}

		resp, err := a.client.Get(ctx, pageURL, nil)
		if err != nil {
			return nil, fmt.Errorf("category %s: %w", cat, err)
		}
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
		if err != nil {
			return nil, fmt.Errorf("category %s: parse document: %w", cat, err)
		}

		doc.Find("dl > dt").Each(func(_ int, dt *goquery.Selection) {
			ref, err := parseEntry(dt, dt.Next(), a.listingURL, cat)
			if err != nil {
				return
			}
			if _, ok := seen[ref.URL]; ok {
				return
			}
			seen[ref.URL] = struct{}{}
			refs = append(refs, ref)
		})
	}

	refs = rankByQuery(refs, query, func(r domain.CandidateRef) string {
		return r.Title + " " + r.Preview["abstract"]
	})
	terms := strings.Fields(strings.ToLower(query))
	kept := refs[:0]
	for _, r := range refs {
		if matchesAny(strings.ToLower(r.Title+" "+r.Preview["abstract"]), terms) {
			kept = append(kept, r)
		}
	}
	if limit > 0 && len(kept) > limit {
		kept = kept[:limit]
	}
	return kept, nil
}

func parseEntry(dt, dd *goquery.Selection, base, category string) (domain.CandidateRef, error) {
	link := dt.Find("a[href*=\"/abs/\"]").First()
	href, ok := link.Attr("href")
	if !ok || href == "" {
		return domain.CandidateRef{}, fmt.Errorf("entry without abstract link")
	}
	if !strings.HasPrefix(href, "http") {
		href = strings.TrimSuffix(base, "/") + href
	}

	id := strings.TrimSpace(link.Text())
	id = strings.TrimPrefix(id, "arXiv:")
	if id == "" {
		id = ArxivID(href)
	}

	title := strings.TrimSpace(dd.Find(".list-title").First().Text())
	title = strings.TrimSpace(strings.TrimPrefix(title, "Title:"))

	summary := dd.Find("p.mathjax").First().Text()
	summary = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(summary), "Abstract:"))

	authors := strings.TrimSpace(dd.Find(".list-authors").First().Text())
	authors = strings.TrimSpace(strings.TrimPrefix(authors, "Authors:"))

	dateText := strings.TrimSpace(dd.Find(".list-date").First().Text())
	if dateText == "" {
		dateText = strings.TrimSpace(dd.Find(".list-dateline").First().Text())
	}
	published := ""
	if match := dateExpr.FindString(dateText); match != "" {
		if parsed, err := time.Parse("2 Jan 2006", match); err == nil {
			published = parsed.Format(time.RFC3339)
		}
	}

	return domain.CandidateRef{
		URL:   href,
		Title: title,
		Preview: map[string]string{
			"arxiv_id":     id,
			"abstract":     summary,
			"author":       collapseSpace(authors),
			"published_at": published,
			"category":     category,
		},
	}, nil
}

func buildPageURL(base string, skip, pageSize int) (string, error) {
	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid category url %s: %w", base, err)
	}

	query := parsed.Query()
	query.Set("skip", strconv.Itoa(skip))
	query.Set("show", strconv.Itoa(pageSize))
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

// absURL upgrades arXiv's http identifiers to https.
func absURL(link string) string {
	link = strings.TrimSpace(link)
	if strings.HasPrefix(link, "http://arxiv.org/") {
		return "https://" + strings.TrimPrefix(link, "http://")
	}
	return link
}

func matchesAny(text string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(text, t) {
			return true
		}
	}
	return false
}
