package sources

import (
	"context"
	"strings"

	"ContentCurator/internal/domain"
	"ContentCurator/internal/source"
)

// SeedURLAdapter returns a fixed list of URLs for every query, so curated
// material always enters the run without a search.
type SeedURLAdapter struct {
	urls []string
}

var _ source.Adapter = (*SeedURLAdapter)(nil)

// NewSeedURLAdapter keeps the non-empty URLs in order.
func NewSeedURLAdapter(urls []string) *SeedURLAdapter {
	kept := make([]string, 0, len(urls))
	for _, u := range urls {
		if u = strings.TrimSpace(u); u != "" {
			kept = append(kept, u)
		}
	}
	return &SeedURLAdapter{urls: kept}
}

func (s *SeedURLAdapter) Name() string                  { return "seed" }
func (s *SeedURLAdapter) SourceType() domain.SourceType { return domain.SourceWeb }
func (s *SeedURLAdapter) Limits() source.Limits         { return source.Limits{MaxResults: len(s.urls)} }

// Discover ignores the query.
func (s *SeedURLAdapter) Discover(ctx context.Context, _ string, limit int) ([]domain.CandidateRef, error) {
	refs, _ := s.ResolveURLs(ctx, s.urls)
	if limit > 0 && len(refs) > limit {
		refs = refs[:limit]
	}
	return refs, nil
}

// ResolveURLs tags each URL with the source type inferred from its host.
func (s *SeedURLAdapter) ResolveURLs(_ context.Context, urls []string) ([]domain.CandidateRef, error) {
	out := make([]domain.CandidateRef, 0, len(urls))
	for _, u := range urls {
		if u = strings.TrimSpace(u); u != "" {
			out = append(out, domain.CandidateRef{URL: u, SourceType: DetectSourceType(u), Adapter: "seed"})
		}
	}
	return out, nil
}
