package sources

import (
	"net/url"
	"regexp"
	"strings"

	"ContentCurator/internal/domain"
)

var (
	youtubeIDExpr = regexp.MustCompile(`(?:youtube\.com/watch\?(?:.*&)?v=|youtu\.be/|youtube\.com/embed/|youtube\.com/v/|youtube\.com/live/|youtube\.com/shorts/)([A-Za-z0-9_-]{11})`)
	arxivIDExpr   = regexp.MustCompile(`arxiv\.org/(?:abs|pdf)/([0-9]{4}\.[0-9]{4,5}(?:v[0-9]+)?|[a-z\-]+(?:\.[A-Z]{2})?/[0-9]{7}(?:v[0-9]+)?)`)
	redditIDExpr  = regexp.MustCompile(`(?:/comments/|redd\.it/)([A-Za-z0-9]+)`)
)

// DetectSourceType infers the source type of a URL from its host and path.
func DetectSourceType(rawURL string) domain.SourceType {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return domain.SourceWeb
	}
	host := strings.TrimPrefix(strings.ToLower(parsed.Hostname()), "www.")
	path := strings.ToLower(parsed.Path)

	switch {
	case host == "substack.com" || strings.HasSuffix(host, ".substack.com"):
		return domain.SourceNewsletter
	case host == "medium.com" || strings.HasSuffix(host, ".medium.com"):
		return domain.SourceArticle
	case host == "youtube.com" || host == "m.youtube.com" || host == "youtu.be":
		return domain.SourceVideo
	case host == "arxiv.org" || host == "export.arxiv.org":
		return domain.SourcePaper
	case host == "reddit.com" || host == "old.reddit.com" || host == "redd.it":
		return domain.SourceDiscussion
	case strings.HasSuffix(path, ".pdf"):
		return domain.SourcePaper
	default:
		return domain.SourceWeb
	}
}

// YouTubeVideoID extracts the 11 character video id, or "".
func YouTubeVideoID(rawURL string) string {
	if m := youtubeIDExpr.FindStringSubmatch(rawURL); m != nil {
		return m[1]
	}
	return ""
}

// ArxivID extracts the arXiv identifier from an abs or pdf URL, or "".
func ArxivID(rawURL string) string {
	if m := arxivIDExpr.FindStringSubmatch(rawURL); m != nil {
		return strings.TrimSuffix(m[1], ".pdf")
	}
	return ""
}

// RedditThreadID extracts the submission id from a thread URL, or "".
func RedditThreadID(rawURL string) string {
	if m := redditIDExpr.FindStringSubmatch(rawURL); m != nil {
		return m[1]
	}
	return ""
}
