package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

const atomFixture = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom" xmlns:arxiv="http://arxiv.org/schemas/atom">
  <entry>
    <id>http://arxiv.org/abs/2501.00001v1</id>
    <published>2025-01-02T00:00:00Z</published>
    <title>Growth Loops in
      Engineering Teams</title>
    <summary>We study feedback loops.</summary>
    <author><name>Ada Lovelace</name></author>
    <author><name>Alan Turing</name></author>
    <link href="http://arxiv.org/abs/2501.00001v1" rel="alternate" type="text/html"/>
    <link title="pdf" href="http://arxiv.org/pdf/2501.00001v1" rel="related" type="application/pdf"/>
    <arxiv:primary_category term="cs.SE"/>
  </entry>
</feed>`

const listingFixture = `
<dl>
  <dt>
    <span class="list-identifier"><a href="/abs/2501.00001">arXiv:2501.00001</a></span>
  </dt>
  <dd>
    <div class="list-date">Date: 8 Nov 2025</div>
    <div class="list-title mathjax">Title: Mentoring Senior Engineers</div>
    <div class="list-authors">Authors: Grace Hopper</div>
    <p class="mathjax">Abstract: A study of mentoring.</p>
  </dd>
  <dt>
    <span class="list-identifier"><a href="/abs/2501.00002">arXiv:2501.00002</a></span>
  </dt>
  <dd>
    <div class="list-date">Date: 7 Nov 2025</div>
    <div class="list-title mathjax">Title: Quantum Widgets</div>
    <p class="mathjax">Abstract: unrelated.</p>
  </dd>
</dl>`

func TestBuildPageURL(t *testing.T) {
	t.Parallel()

	base := "https://export.arxiv.org/list/cs.AI/pastweek"
	u, err := buildPageURL(base, 200, 100)
	if err != nil {
		t.Fatalf("buildPageURL returned error: %v", err)
	}

	parsed, err := url.Parse(u)
	if err != nil {
		t.Fatalf("parse result: %v", err)
	}

	if parsed.Scheme != "https" || parsed.Host != "export.arxiv.org" {
		t.Fatalf("unexpected host: %s", parsed.Host)
	}

	q := parsed.Query()
	if q.Get("skip") != "200" {
		t.Fatalf("expected skip=200, got %s", q.Get("skip"))
	}
	if q.Get("show") != "100" {
		t.Fatalf("expected show=100, got %s", q.Get("show"))
	}
}

func TestParseEntry(t *testing.T) {
	t.Parallel()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(listingFixture))
	if err != nil {
		t.Fatalf("new document: %v", err)
	}

	dt := doc.Find("dt").First()
	ref, err := parseEntry(dt, dt.Next(), arxivBaseURL, "cs.SE")
	if err != nil {
		t.Fatalf("parseEntry error: %v", err)
	}

	if ref.URL != "https://arxiv.org/abs/2501.00001" {
		t.Fatalf("unexpected url: %s", ref.URL)
	}
	if ref.Title != "Mentoring Senior Engineers" {
		t.Fatalf("unexpected title: %s", ref.Title)
	}
	if ref.Preview["abstract"] != "A study of mentoring." {
		t.Fatalf("unexpected abstract: %s", ref.Preview["abstract"])
	}
	if ref.Preview["arxiv_id"] != "2501.00001" {
		t.Fatalf("unexpected id: %s", ref.Preview["arxiv_id"])
	}
	if ref.Preview["author"] != "Grace Hopper" {
		t.Fatalf("unexpected author: %s", ref.Preview["author"])
	}
	if !strings.HasPrefix(ref.Preview["published_at"], "2025-11-08") {
		t.Fatalf("unexpected published date: %s", ref.Preview["published_at"])
	}
}

func TestArxivListerUsesAtomAPI(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("search_query"); got != "all:growth loops" {
			t.Errorf("unexpected search_query %q", got)
		}
		if got := r.URL.Query().Get("max_results"); got != "5" {
			t.Errorf("unexpected max_results %q", got)
		}
		_, _ = w.Write([]byte(atomFixture))
	}))
	defer server.Close()

	lister := NewArxivLister(testFetcher(server), nil, "")
	lister.apiURL = server.URL + "/api/query"

	refs, err := lister.List(context.Background(), "growth loops", 5)
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(refs) != 1 {
		t.Fatalf("expected 1 paper, got %d", len(refs))
	}

	ref := refs[0]
	if ref.URL != "https://arxiv.org/abs/2501.00001v1" {
		t.Fatalf("unexpected url: %s", ref.URL)
	}
	if ref.Title != "Growth Loops in Engineering Teams" {
		t.Fatalf("unexpected title: %q", ref.Title)
	}
	if ref.Preview["pdf_url"] != "https://arxiv.org/pdf/2501.00001v1" {
		t.Fatalf("unexpected pdf url: %s", ref.Preview["pdf_url"])
	}
	if ref.Preview["author"] != "Ada Lovelace, Alan Turing" {
		t.Fatalf("unexpected authors: %s", ref.Preview["author"])
	}
	if ref.Preview["category"] != "cs.SE" {
		t.Fatalf("unexpected category: %s", ref.Preview["category"])
	}
}

func TestArxivListerFallsBackToListings(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api") {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if r.URL.Path != "/list/cs.SE/pastweek" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(listingFixture))
	}))
	defer server.Close()

	lister := NewArxivLister(testFetcher(server), []string{"cs.SE"}, "relevance")
	lister.apiURL = server.URL + "/api/query"
	lister.listingURL = server.URL

	refs, err := lister.List(context.Background(), "mentoring", 10)
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(refs) != 1 {
		t.Fatalf("expected 1 matching paper, got %d", len(refs))
	}
	if refs[0].URL != server.URL+"/abs/2501.00001" {
		t.Fatalf("unexpected url: %s", refs[0].URL)
	}
}
