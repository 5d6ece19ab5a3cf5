package sources

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"ContentCurator/internal/domain"
)

const (
	mediumAPIHost = "medium2.p.rapidapi.com"
	mediumAPIBase = "https://" + mediumAPIHost
)

type mediumSearch struct {
	Articles []string `json:"articles"`
}

type mediumArticle struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Subtitle    string   `json:"subtitle"`
	URL         string   `json:"url"`
	Author      string   `json:"author"`
	PublishedAt string   `json:"published_at"`
	Claps       float64  `json:"claps"`
	Voters      float64  `json:"voters"`
	Responses   float64  `json:"responses_count"`
	ReadingTime float64  `json:"reading_time"`
	IsLocked    bool     `json:"is_locked"`
	Tags        []string `json:"tags"`
}

// MediumLister searches articles through the RapidAPI Medium gateway.
type MediumLister struct {
	client  jsonGetter
	apiKey  string
	baseURL string
}

// NewMediumLister returns a lister; an empty apiKey makes every call fail
// as unavailable.
func NewMediumLister(client jsonGetter, apiKey string) *MediumLister {
	return &MediumLister{client: client, apiKey: apiKey, baseURL: mediumAPIBase}
}

// List resolves search hits into article metadata, skipping articles whose
// info lookup fails.
func (m *MediumLister) List(ctx context.Context, query string, limit int) ([]domain.CandidateRef, error) {
	if m.apiKey == "" {
		return nil, unavailable("medium: RapidAPI key is not configured")
	}

	headers := map[string]string{
		"X-RapidAPI-Key":  m.apiKey,
		"X-RapidAPI-Host": mediumAPIHost,
	}

	var search mediumSearch
	if err := m.client.GetJSON(ctx, m.baseURL+"/search/articles?query="+url.QueryEscape(query), headers, &search); err != nil {
		return nil, fmt.Errorf("search articles: %w", err)
	}

	refs := make([]domain.CandidateRef, 0, limit)
	for _, id := range search.Articles {
		if limit > 0 && len(refs) >= limit {
			break
		}
		var info mediumArticle
		if err := m.client.GetJSON(ctx, m.baseURL+"/article/"+url.PathEscape(id), headers, &info); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		if info.URL == "" {
			continue
		}
		refs = append(refs, domain.CandidateRef{
			URL:   info.URL,
			Title: info.Title,
			Preview: map[string]string{
				"article_id":   id,
				"subtitle":     info.Subtitle,
				"author":       info.Author,
				"published_at": info.PublishedAt,
				"claps":        strconv.FormatFloat(info.Claps, 'f', -1, 64),
				"voters":       strconv.FormatFloat(info.Voters, 'f', -1, 64),
				"responses":    strconv.FormatFloat(info.Responses, 'f', -1, 64),
				"locked":       strconv.FormatBool(info.IsLocked),
			},
		})
	}
	return refs, nil
}
