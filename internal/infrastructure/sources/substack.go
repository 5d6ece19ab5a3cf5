package sources

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"ContentCurator/internal/domain"
)

// DefaultNewsletters is the curated engineering leadership list.
var DefaultNewsletters = []string{
	"pragmaticengineer",
	"theengineeringmanager",
	"platocommunity",
	"bytesized",
	"techwriting",
	"engineeringorg",
	"techlead",
}

type substackPost struct {
	ID            int64   `json:"id"`
	Title         string  `json:"title"`
	Subtitle      string  `json:"subtitle"`
	Slug          string  `json:"slug"`
	CanonicalURL  string  `json:"canonical_url"`
	PostDate      string  `json:"post_date"`
	Audience      string  `json:"audience"`
	ReactionCount float64 `json:"reaction_count"`
	CommentCount  float64 `json:"comment_count"`
	Bylines       []struct {
		Name string `json:"name"`
	} `json:"publishedBylines"`
}

// SubstackLister searches the archives of curated publications.
type SubstackLister struct {
	client       jsonGetter
	publications []string
	baseURL      func(publication string) string
}

// NewSubstackLister uses DefaultNewsletters when publications is empty.
func NewSubstackLister(client jsonGetter, publications []string) *SubstackLister {
	if len(publications) == 0 {
		publications = DefaultNewsletters
	}
	return &SubstackLister{
		client:       client,
		publications: publications,
		baseURL: func(publication string) string {
			return fmt.Sprintf("https://%s.substack.com", publication)
		},
	}
}

// List queries each publication's archive search and falls back to its
// RSS feed when the archive API fails. One broken publication does not
// fail the call; the call fails only when every publication does.
func (s *SubstackLister) List(ctx context.Context, query string, limit int) ([]domain.CandidateRef, error) {
	var (
		refs    []domain.CandidateRef
		lastErr error
		okCount int
	)
	for _, pub := range s.publications {
		posts, err := s.archive(ctx, pub, query, limit)
		if err != nil {
			posts, err = s.feed(ctx, pub)
		}
		if err != nil {
			lastErr = fmt.Errorf("publication %s: %w", pub, err)
			continue
		}
		okCount++
		refs = append(refs, posts...)
	}
	if okCount == 0 && lastErr != nil {
		return nil, lastErr
	}

	refs = rankByQuery(refs, query, func(r domain.CandidateRef) string {
		return r.Title + " " + r.Preview["subtitle"]
	})
	if limit > 0 && len(refs) > limit {
		refs = refs[:limit]
	}
	return refs, nil
}

func (s *SubstackLister) archive(ctx context.Context, pub, query string, limit int) ([]domain.CandidateRef, error) {
	base := s.baseURL(pub)
	params := url.Values{}
	params.Set("sort", "new")
	params.Set("offset", "0")
	params.Set("limit", strconv.Itoa(max(limit, 12)))
	if query != "" {
		params.Set("search", query)
	}

	var posts []substackPost
	if err := s.client.GetJSON(ctx, base+"/api/v1/archive?"+params.Encode(), nil, &posts); err != nil {
		return nil, err
	}

	refs := make([]domain.CandidateRef, 0, len(posts))
	for _, p := range posts {
		link := p.CanonicalURL
		if link == "" && p.Slug != "" {
			link = base + "/p/" + p.Slug
		}
		if link == "" {
			continue
		}
		preview := map[string]string{
			"publication": pub,
			"subtitle":    p.Subtitle,
			"post_date":   p.PostDate,
			"audience":    p.Audience,
			"reactions":   strconv.FormatFloat(p.ReactionCount, 'f', -1, 64),
			"comments":    strconv.FormatFloat(p.CommentCount, 'f', -1, 64),
		}
		if len(p.Bylines) > 0 {
			preview["author"] = p.Bylines[0].Name
		}
		refs = append(refs, domain.CandidateRef{URL: link, Title: strings.TrimSpace(p.Title), Preview: preview})
	}
	return refs, nil
}

func (s *SubstackLister) feed(ctx context.Context, pub string) ([]domain.CandidateRef, error) {
	resp, err := s.client.Get(ctx, s.baseURL(pub)+"/feed", map[string]string{"Accept": "application/rss+xml, application/xml"})
	if err != nil {
		return nil, err
	}
	entries, err := parseFeed(resp.Body)
	if err != nil {
		return nil, err
	}

	refs := make([]domain.CandidateRef, 0, len(entries))
	for _, e := range entries {
		if e.Link == "" {
			continue
		}
		preview := map[string]string{"publication": pub, "post_date": e.Published}
		if len(e.Authors) > 0 {
			preview["author"] = e.Authors[0]
		}
		refs = append(refs, domain.CandidateRef{URL: e.Link, Title: e.Title, Preview: preview})
	}
	return refs, nil
}
