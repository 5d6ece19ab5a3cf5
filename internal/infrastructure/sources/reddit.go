package sources

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"ContentCurator/internal/domain"
)

// DefaultSubreddits are the career and engineering communities searched
// when none are configured.
var DefaultSubreddits = []string{
	"cscareerquestions",
	"ExperiencedDevs",
	"AskEngineers",
	"softwareengineering",
	"engineering",
	"programming",
	"engineeringmanagement",
	"techleadership",
	"datascience",
	"devops",
	"careeradvice",
	"learnprogramming",
}

type redditListing struct {
	Data struct {
		Children []struct {
			Kind string     `json:"kind"`
			Data redditPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditPost struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Author      string  `json:"author"`
	Subreddit   string  `json:"subreddit"`
	Permalink   string  `json:"permalink"`
	SelfText    string  `json:"selftext"`
	Score       float64 `json:"score"`
	NumComments float64 `json:"num_comments"`
	CreatedUTC  float64 `json:"created_utc"`
	Over18      bool    `json:"over_18"`
}

// RedditLister searches submissions across a fixed set of subreddits.
type RedditLister struct {
	client     jsonGetter
	subreddits []string
	baseURL    string
}

// NewRedditLister uses DefaultSubreddits when subreddits is empty.
func NewRedditLister(client jsonGetter, subreddits []string) *RedditLister {
	if len(subreddits) == 0 {
		subreddits = DefaultSubreddits
	}
	return &RedditLister{client: client, subreddits: subreddits, baseURL: "https://www.reddit.com"}
}

// List runs one relevance search over the combined subreddits.
func (r *RedditLister) List(ctx context.Context, query string, limit int) ([]domain.CandidateRef, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("restrict_sr", "1")
	params.Set("sort", "relevance")
	params.Set("limit", strconv.Itoa(min(max(limit*3, 1), 100)))

	endpoint := fmt.Sprintf("%s/r/%s/search.json?%s", r.baseURL, strings.Join(r.subreddits, "+"), params.Encode())

	var listing redditListing
	if err := r.client.GetJSON(ctx, endpoint, nil, &listing); err != nil {
		return nil, fmt.Errorf("search subreddits: %w", err)
	}

	refs := make([]domain.CandidateRef, 0, limit)
	for _, child := range listing.Data.Children {
		post := child.Data
		if post.Permalink == "" || post.Over18 {
			continue
		}
		refs = append(refs, domain.CandidateRef{
			URL:   r.baseURL + post.Permalink,
			Title: post.Title,
			Preview: map[string]string{
				"thread_id":    post.ID,
				"subreddit":    post.Subreddit,
				"author":       post.Author,
				"score":        strconv.FormatFloat(post.Score, 'f', -1, 64),
				"num_comments": strconv.FormatFloat(post.NumComments, 'f', -1, 64),
				"published_at": time.Unix(int64(post.CreatedUTC), 0).UTC().Format(time.RFC3339),
			},
		})
		if limit > 0 && len(refs) >= limit {
			break
		}
	}
	return refs, nil
}
