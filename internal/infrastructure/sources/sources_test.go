package sources

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ContentCurator/internal/domain"
	"ContentCurator/internal/infrastructure/fetch"
	"ContentCurator/internal/retry"
)

func testFetcher(server *httptest.Server) *fetch.Fetcher {
	return fetch.New(fetch.Config{
		Timeout: 2 * time.Second,
		Retry:   retry.Policy{MaxAttempts: 1, BaseDelay: time.Millisecond, Multiplier: 2, MaxDelay: time.Millisecond},
	}, server.Client(), nil)
}

func TestDetectSourceType(t *testing.T) {
	t.Parallel()

	cases := map[string]domain.SourceType{
		"https://pragmaticengineer.substack.com/p/growth":  domain.SourceNewsletter,
		"https://medium.com/@someone/post-123":             domain.SourceArticle,
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ":      domain.SourceVideo,
		"https://youtu.be/dQw4w9WgXcQ":                     domain.SourceVideo,
		"https://arxiv.org/abs/2501.00001":                 domain.SourcePaper,
		"https://example.com/whitepaper.pdf":               domain.SourcePaper,
		"https://www.reddit.com/r/devops/comments/abc123/": domain.SourceDiscussion,
		"https://martinfowler.com/articles/growth.html":    domain.SourceWeb,
	}
	for u, want := range cases {
		assert.Equal(t, want, DetectSourceType(u), u)
	}
}

func TestIdentifierExtraction(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "dQw4w9WgXcQ", YouTubeVideoID("https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=10"))
	assert.Equal(t, "dQw4w9WgXcQ", YouTubeVideoID("https://youtu.be/dQw4w9WgXcQ"))
	assert.Empty(t, YouTubeVideoID("https://example.com"))

	assert.Equal(t, "2501.00001v2", ArxivID("https://arxiv.org/abs/2501.00001v2"))
	assert.Equal(t, "2501.00001", ArxivID("https://arxiv.org/pdf/2501.00001"))

	assert.Equal(t, "abc123", RedditThreadID("https://www.reddit.com/r/devops/comments/abc123/title/"))
	assert.Equal(t, "xyz", RedditThreadID("https://redd.it/xyz"))
}

func TestSearchAdapterWalksResults(t *testing.T) {
	t.Setenv("CURATOR_TEST_SEARCH_KEY", "secret")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("X-Token"))
		assert.Equal(t, "growth loops", r.URL.Query().Get("q"))
		assert.Equal(t, "2", r.URL.Query().Get("n"))
		_, _ = w.Write([]byte(`{"data":{"hits":[
			{"link":"https://a.example/post","name":"A","desc":"first"},
			{"name":"missing url"},
			{"link":"https://arxiv.org/abs/2501.00001","name":"B","relevance":0.5},
			{"link":"https://c.example","name":"C"}
		]}}`))
	}))
	defer server.Close()

	adapter := NewSearchAdapter(SearchConfig{
		Name:       "custom",
		Endpoint:   server.URL + "/search?q={query}&n={limit}",
		Headers:    map[string]string{"X-Token": "${CURATOR_TEST_SEARCH_KEY}"},
		ResultPath: "data.hits",
		Fields:     map[string]string{"url": "link", "title": "name", "snippet": "desc", "score": "relevance"},
	}, testFetcher(server), nil)

	refs, err := adapter.Discover(context.Background(), "growth loops", 2)
	require.NoError(t, err)
	require.Len(t, refs, 2)

	assert.Equal(t, "https://a.example/post", refs[0].URL)
	assert.Equal(t, "first", refs[0].Preview["snippet"])
	assert.Equal(t, domain.SourceWeb, refs[0].SourceType)
	assert.Equal(t, domain.SourcePaper, refs[1].SourceType)
	assert.Equal(t, "0.5", refs[1].Preview["score"])
	assert.Equal(t, "custom", refs[1].Adapter)
}

func TestSearchAdapterWithoutKeyIsUnavailable(t *testing.T) {
	t.Setenv("SEARCH_API_KEY", "")

	adapter := NewSearchAdapter(SearchConfig{}, nil, nil)
	_, err := adapter.Discover(context.Background(), "q", 5)
	assert.True(t, errors.Is(err, domain.ErrAdapterUnavailable))
}

func TestPlatformAdapterRejectsUnknownKind(t *testing.T) {
	t.Parallel()

	_, err := NewPlatformAdapter(domain.SourceWeb, NewRedditLister(nil, nil), PlatformOptions{}, nil)
	assert.Error(t, err)
	_, err = NewPlatformAdapter("podcast", NewRedditLister(nil, nil), PlatformOptions{}, nil)
	assert.Error(t, err)
}

func TestPlatformAdapterTagsResults(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/r/devops+programming/search.json", r.URL.Path)
		assert.Equal(t, "1", r.URL.Query().Get("restrict_sr"))
		_, _ = w.Write([]byte(`{"data":{"children":[
			{"kind":"t3","data":{"id":"a1","title":"On-call growth","subreddit":"devops","permalink":"/r/devops/comments/a1/x/","score":42,"num_comments":7,"created_utc":1700000000}},
			{"kind":"t3","data":{"id":"a2","title":"nsfw","permalink":"/r/devops/comments/a2/y/","over_18":true}}
		]}}`))
	}))
	defer server.Close()

	lister := NewRedditLister(testFetcher(server), []string{"devops", "programming"})
	lister.baseURL = server.URL
	adapter, err := NewPlatformAdapter(domain.SourceDiscussion, lister, PlatformOptions{Name: "reddit", MaxResults: 10}, nil)
	require.NoError(t, err)

	refs, err := adapter.Discover(context.Background(), "on-call", 5)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, server.URL+"/r/devops/comments/a1/x/", refs[0].URL)
	assert.Equal(t, domain.SourceDiscussion, refs[0].SourceType)
	assert.Equal(t, "reddit", refs[0].Adapter)
	assert.Equal(t, "42", refs[0].Preview["score"])
	assert.Equal(t, "7", refs[0].Preview["num_comments"])

	resolved, err := adapter.ResolveURLs(context.Background(), []string{"https://www.reddit.com/r/x/comments/b2/", "https://example.com"})
	require.NoError(t, err)
	require.Len(t, resolved, 1)
}

func TestSubstackListerRanksAndFallsBackToFeed(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/good/api/v1/archive"):
			assert.Equal(t, "mentoring", r.URL.Query().Get("search"))
			_, _ = w.Write([]byte(`[
				{"title":"Hiring notes","slug":"hiring","audience":"everyone"},
				{"title":"Mentoring juniors","canonical_url":"https://good.substack.com/p/mentoring","audience":"only_paid","reaction_count":12}
			]`))
		case strings.HasPrefix(r.URL.Path, "/broken/api"):
			w.WriteHeader(http.StatusNotFound)
		case r.URL.Path == "/broken/feed":
			_, _ = w.Write([]byte(`<rss version="2.0"><channel>
				<item><title>Mentoring at scale</title><link>https://broken.substack.com/p/scale</link></item>
			</channel></rss>`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	lister := NewSubstackLister(testFetcher(server), []string{"good", "broken"})
	lister.baseURL = func(pub string) string { return server.URL + "/" + pub }

	refs, err := lister.List(context.Background(), "mentoring", 10)
	require.NoError(t, err)
	require.Len(t, refs, 3)

	assert.Equal(t, "Mentoring juniors", refs[0].Title)
	assert.Equal(t, "only_paid", refs[0].Preview["audience"])
	assert.Equal(t, "Mentoring at scale", refs[1].Title)
	assert.Equal(t, server.URL+"/good/p/hiring", refs[2].URL)
}

func TestSubstackListerFailsWhenEveryPublicationFails(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	lister := NewSubstackLister(testFetcher(server), []string{"gone"})
	lister.baseURL = func(pub string) string { return server.URL + "/" + pub }

	_, err := lister.List(context.Background(), "q", 5)
	assert.Error(t, err)
}

func TestMediumListerResolvesArticleInfo(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key", r.Header.Get("X-RapidAPI-Key"))
		switch r.URL.Path {
		case "/search/articles":
			_, _ = w.Write([]byte(`{"articles":["a1","a2","a3"]}`))
		case "/article/a1":
			_, _ = w.Write([]byte(`{"id":"a1","title":"Staff engineer path","url":"https://medium.com/p/a1","author":"u1","claps":300,"is_locked":true}`))
		case "/article/a2":
			w.WriteHeader(http.StatusNotFound)
		case "/article/a3":
			_, _ = w.Write([]byte(`{"id":"a3","title":"Promotion packets","url":"https://medium.com/p/a3"}`))
		}
	}))
	defer server.Close()

	lister := NewMediumLister(testFetcher(server), "key")
	lister.baseURL = server.URL

	refs, err := lister.List(context.Background(), "staff engineer", 5)
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.Equal(t, "300", refs[0].Preview["claps"])
	assert.Equal(t, "true", refs[0].Preview["locked"])
	assert.Equal(t, "https://medium.com/p/a3", refs[1].URL)

	_, err = NewMediumLister(nil, "").List(context.Background(), "q", 5)
	assert.True(t, errors.Is(err, domain.ErrAdapterUnavailable))
}

func TestYouTubeListerAttachesStatistics(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/search":
			assert.Equal(t, "closedCaption", r.URL.Query().Get("videoCaption"))
			assert.Equal(t, "tech lead engineering career", r.URL.Query().Get("q"))
			_, _ = w.Write([]byte(`{"items":[{"id":{"videoId":"dQw4w9WgXcQ"},"snippet":{"title":"Tech lead 101","channelTitle":"Chan"}}]}`))
		case "/videos":
			_, _ = w.Write([]byte(`{"items":[{"id":"dQw4w9WgXcQ","statistics":{"viewCount":"1000","likeCount":"50"}}]}`))
		}
	}))
	defer server.Close()

	lister := NewYouTubeLister(testFetcher(server), "key", "engineering career")
	lister.baseURL = server.URL

	refs, err := lister.List(context.Background(), "tech lead", 3)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "https://www.youtube.com/watch?v=dQw4w9WgXcQ", refs[0].URL)
	assert.Equal(t, "1000", refs[0].Preview["views"])
	assert.Equal(t, "Chan", refs[0].Preview["author"])
}

func TestSeedURLAdapterIgnoresQuery(t *testing.T) {
	t.Parallel()

	adapter := NewSeedURLAdapter([]string{" https://arxiv.org/abs/2501.00001 ", "", "https://example.com/post"})
	refs, err := adapter.Discover(context.Background(), "anything", 10)
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.Equal(t, domain.SourcePaper, refs[0].SourceType)
	assert.Equal(t, domain.SourceWeb, refs[1].SourceType)
	assert.Equal(t, 2, adapter.Limits().MaxResults)
}
