package sources

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"ContentCurator/internal/domain"
)

const youtubeAPIBase = "https://www.googleapis.com/youtube/v3"

type youtubeSearchResponse struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
		Snippet struct {
			Title        string `json:"title"`
			Description  string `json:"description"`
			ChannelTitle string `json:"channelTitle"`
			PublishedAt  string `json:"publishedAt"`
		} `json:"snippet"`
	} `json:"items"`
}

type youtubeVideosResponse struct {
	Items []struct {
		ID         string `json:"id"`
		Statistics struct {
			ViewCount    string `json:"viewCount"`
			LikeCount    string `json:"likeCount"`
			CommentCount string `json:"commentCount"`
		} `json:"statistics"`
	} `json:"items"`
}

// YouTubeLister searches captioned videos through the Data API v3.
type YouTubeLister struct {
	client      jsonGetter
	apiKey      string
	baseURL     string
	querySuffix string
	language    string
}

// NewYouTubeLister returns a lister. querySuffix is appended to every
// search to steer results toward the curated domain.
func NewYouTubeLister(client jsonGetter, apiKey, querySuffix string) *YouTubeLister {
	return &YouTubeLister{
		client:      client,
		apiKey:      apiKey,
		baseURL:     youtubeAPIBase,
		querySuffix: querySuffix,
		language:    "en",
	}
}

// List restricts the search to videos with closed captions, since only
// those can be transcribed, and enriches them with view statistics.
func (y *YouTubeLister) List(ctx context.Context, query string, limit int) ([]domain.CandidateRef, error) {
	if y.apiKey == "" {
		return nil, unavailable("youtube: API key is not configured")
	}

	q := strings.TrimSpace(query + " " + y.querySuffix)
	params := url.Values{}
	params.Set("part", "id,snippet")
	params.Set("type", "video")
	params.Set("videoCaption", "closedCaption")
	params.Set("relevanceLanguage", y.language)
	params.Set("order", "relevance")
	params.Set("maxResults", strconv.Itoa(min(max(limit, 1), 50)))
	params.Set("q", q)
	params.Set("key", y.apiKey)

	var search youtubeSearchResponse
	if err := y.client.GetJSON(ctx, y.baseURL+"/search?"+params.Encode(), nil, &search); err != nil {
		return nil, fmt.Errorf("search videos: %w", err)
	}

	refs := make([]domain.CandidateRef, 0, len(search.Items))
	ids := make([]string, 0, len(search.Items))
	for _, item := range search.Items {
		id := item.ID.VideoID
		if id == "" {
			continue
		}
		ids = append(ids, id)
		refs = append(refs, domain.CandidateRef{
			URL:   "https://www.youtube.com/watch?v=" + id,
			Title: item.Snippet.Title,
			Preview: map[string]string{
				"video_id":     id,
				"author":       item.Snippet.ChannelTitle,
				"published_at": item.Snippet.PublishedAt,
				"description":  item.Snippet.Description,
			},
		})
	}

	if len(ids) > 0 {
		y.attachStatistics(ctx, ids, refs)
	}
	return refs, nil
}

// attachStatistics is best effort; missing statistics leave the preview as is.
func (y *YouTubeLister) attachStatistics(ctx context.Context, ids []string, refs []domain.CandidateRef) {
	params := url.Values{}
	params.Set("part", "statistics")
	params.Set("id", strings.Join(ids, ","))
	params.Set("key", y.apiKey)

	var videos youtubeVideosResponse
	if err := y.client.GetJSON(ctx, y.baseURL+"/videos?"+params.Encode(), nil, &videos); err != nil {
		return
	}
	stats := make(map[string]int, len(videos.Items))
	for i, v := range videos.Items {
		stats[v.ID] = i
	}
	for _, ref := range refs {
		i, ok := stats[ref.Preview["video_id"]]
		if !ok {
			continue
		}
		s := videos.Items[i].Statistics
		ref.Preview["views"] = s.ViewCount
		ref.Preview["likes"] = s.LikeCount
		ref.Preview["comments"] = s.CommentCount
	}
}
