package extractor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"ContentCurator/internal/domain"
	"ContentCurator/internal/infrastructure/sources"
)

const redditBase = "https://www.reddit.com"

type redditListing struct {
	Data struct {
		Children []struct {
			Kind string          `json:"kind"`
			Data json.RawMessage `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditPost struct {
	Title       string  `json:"title"`
	Selftext    string  `json:"selftext"`
	Author      string  `json:"author"`
	Subreddit   string  `json:"subreddit"`
	URL         string  `json:"url"`
	IsSelf      bool    `json:"is_self"`
	Score       float64 `json:"score"`
	NumComments float64 `json:"num_comments"`
	CreatedUTC  float64 `json:"created_utc"`
}

type redditComment struct {
	Body          string  `json:"body"`
	Author        string  `json:"author"`
	Score         float64 `json:"score"`
	Stickied      bool    `json:"stickied"`
	Distinguished string  `json:"distinguished"`
}

// ThreadStrategy reads a discussion thread: the submission and its top
// comments.
type ThreadStrategy struct {
	fetcher     Fetcher
	maxComments int
	baseURL     string
}

// NewThreadStrategy keeps at most maxComments top level comments.
func NewThreadStrategy(f Fetcher, maxComments int) *ThreadStrategy {
	return &ThreadStrategy{fetcher: f, maxComments: maxComments, baseURL: redditBase}
}

func (s *ThreadStrategy) Extract(ctx context.Context, ref domain.CandidateRef) (Document, error) {
	id := ref.Preview["thread_id"]
	if id == "" {
		id = sources.RedditThreadID(ref.URL)
	}
	if id == "" {
		return Document{}, &domain.FetchError{URL: ref.URL, Kind: domain.ErrPermanentFetch, Err: errors.New("no thread id in url")}
	}

	endpoint := fmt.Sprintf("%s/comments/%s.json?sort=top&raw_json=1&limit=%d", s.baseURL, url.PathEscape(id), s.maxComments*2)
	var listings []redditListing
	if err := s.fetcher.GetJSON(ctx, endpoint, nil, &listings); err != nil {
		return Document{}, err
	}
	if len(listings) == 0 || len(listings[0].Data.Children) == 0 {
		return Document{}, &domain.FetchError{URL: ref.URL, Kind: domain.ErrPermanentFetch, Err: errors.New("thread has no submission")}
	}

	var post redditPost
	if err := json.Unmarshal(listings[0].Data.Children[0].Data, &post); err != nil {
		return Document{}, &domain.FetchError{URL: ref.URL, Kind: domain.ErrPermanentFetch, Err: fmt.Errorf("decode submission: %w", err)}
	}

	var comments []redditComment
	if len(listings) > 1 {
		for _, child := range listings[1].Data.Children {
			if child.Kind != "t1" {
				continue
			}
			var c redditComment
			if err := json.Unmarshal(child.Data, &c); err != nil {
				continue
			}
			body := strings.TrimSpace(c.Body)
			if body == "" || body == "[deleted]" || body == "[removed]" || c.Stickied || c.Distinguished == "moderator" {
				continue
			}
			c.Body = body
			comments = append(comments, c)
		}
	}
	sort.SliceStable(comments, func(i, j int) bool { return comments[i].Score > comments[j].Score })
	if len(comments) > s.maxComments {
		comments = comments[:s.maxComments]
	}

	var b strings.Builder
	b.WriteString(strings.TrimSpace(post.Title))
	if text := strings.TrimSpace(post.Selftext); text != "" {
		b.WriteString("\n\n")
		b.WriteString(text)
	} else if !post.IsSelf && post.URL != "" {
		b.WriteString("\n\nLink: ")
		b.WriteString(post.URL)
	}
	if len(comments) > 0 {
		b.WriteString("\n\nTop comments:")
		for _, c := range comments {
			fmt.Fprintf(&b, "\n\n[%s, %s points] %s", c.Author, strconv.FormatFloat(c.Score, 'f', -1, 64), c.Body)
		}
	}

	doc := Document{
		Title: post.Title,
		Text:  b.String(),
		Metadata: domain.Metadata{
			Author: post.Author,
			Engagement: map[string]float64{
				"score":        post.Score,
				"num_comments": post.NumComments,
			},
		},
	}
	if post.CreatedUTC > 0 {
		t := time.Unix(int64(post.CreatedUTC), 0).UTC()
		doc.Metadata.PublishedAt = &t
	}
	return doc, nil
}
