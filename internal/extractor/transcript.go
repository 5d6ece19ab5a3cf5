package extractor

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"net/url"
	"strings"

	"ContentCurator/internal/domain"
	"ContentCurator/internal/infrastructure/sources"
)

const youtubeBase = "https://www.youtube.com"

type trackList struct {
	Tracks []track `xml:"track"`
}

type track struct {
	Name     string `xml:"name,attr"`
	LangCode string `xml:"lang_code,attr"`
	Kind     string `xml:"kind,attr"`
}

type timedText struct {
	Segments []struct {
		Text string `xml:",chardata"`
	} `xml:"text"`
}

type oembed struct {
	Title      string `json:"title"`
	AuthorName string `json:"author_name"`
}

// TranscriptStrategy assembles video transcripts from YouTube timed text.
type TranscriptStrategy struct {
	fetcher   Fetcher
	languages []string
	baseURL   string
}

// NewTranscriptStrategy prefers languages in the given order and falls
// back to any available track.
func NewTranscriptStrategy(f Fetcher, languages []string) *TranscriptStrategy {
	return &TranscriptStrategy{fetcher: f, languages: languages, baseURL: youtubeBase}
}

// Extract fails permanently when no transcript track can be read.
func (s *TranscriptStrategy) Extract(ctx context.Context, ref domain.CandidateRef) (Document, error) {
	id := ref.Preview["video_id"]
	if id == "" {
		id = sources.YouTubeVideoID(ref.URL)
	}
	if id == "" {
		return Document{}, &domain.FetchError{URL: ref.URL, Kind: domain.ErrPermanentFetch, Err: errors.New("no video id in url")}
	}

	resp, err := s.fetcher.Get(ctx, s.baseURL+"/api/timedtext?type=list&v="+url.QueryEscape(id), nil)
	if err != nil {
		return Document{}, err
	}
	var list trackList
	if len(bytes.TrimSpace(resp.Body)) == 0 {
		return Document{}, &domain.FetchError{URL: ref.URL, Kind: domain.ErrPermanentFetch, Err: errors.New("no transcript available")}
	}
	if err := xml.Unmarshal(resp.Body, &list); err != nil {
		return Document{}, &domain.FetchError{URL: ref.URL, Kind: domain.ErrPermanentFetch, Err: fmt.Errorf("decode track list: %w", err)}
	}

	var lastErr error
	for _, t := range orderTracks(list.Tracks, s.languages) {
		text, err := s.fetchTrack(ctx, id, t)
		if err != nil {
			if ctx.Err() != nil {
				return Document{}, err
			}
			lastErr = err
			continue
		}
		if text == "" {
			continue
		}

		doc := Document{Title: ref.Title, Text: text}
		s.describe(ctx, ref, &doc)
		return doc, nil
	}

	detail := errors.New("no transcript available")
	if lastErr != nil {
		detail = fmt.Errorf("no transcript available: %v", lastErr)
	}
	return Document{}, &domain.FetchError{URL: ref.URL, Kind: domain.ErrPermanentFetch, Err: detail}
}

func (s *TranscriptStrategy) fetchTrack(ctx context.Context, id string, t track) (string, error) {
	q := url.Values{}
	q.Set("v", id)
	q.Set("lang", t.LangCode)
	if t.Name != "" {
		q.Set("name", t.Name)
	}
	if t.Kind != "" {
		q.Set("kind", t.Kind)
	}

	resp, err := s.fetcher.Get(ctx, s.baseURL+"/api/timedtext?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}
	var tt timedText
	if err := xml.Unmarshal(resp.Body, &tt); err != nil {
		return "", fmt.Errorf("decode transcript %s: %w", t.LangCode, err)
	}

	lines := make([]string, 0, len(tt.Segments))
	for _, seg := range tt.Segments {
		line := strings.Join(strings.Fields(html.UnescapeString(seg.Text)), " ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n"), nil
}

// describe fills title and channel from oEmbed when discovery did not.
func (s *TranscriptStrategy) describe(ctx context.Context, ref domain.CandidateRef, doc *Document) {
	if doc.Title != "" && ref.Preview["author"] != "" {
		return
	}
	var info oembed
	endpoint := s.baseURL + "/oembed?format=json&url=" + url.QueryEscape(ref.URL)
	if err := s.fetcher.GetJSON(ctx, endpoint, nil, &info); err != nil {
		return
	}
	if doc.Title == "" {
		doc.Title = info.Title
	}
	if doc.Metadata.Author == "" {
		doc.Metadata.Author = info.AuthorName
	}
}

// orderTracks ranks tracks by preferred language, manual captions before
// generated ones, followed by every remaining track.
func orderTracks(tracks []track, languages []string) []track {
	ordered := make([]track, 0, len(tracks))
	used := make([]bool, len(tracks))
	take := func(match func(track) bool) {
		for i, t := range tracks {
			if !used[i] && match(t) {
				used[i] = true
				ordered = append(ordered, t)
			}
		}
	}

	for _, lang := range languages {
		lang = strings.ToLower(lang)
		matches := func(t track) bool {
			code := strings.ToLower(t.LangCode)
			return code == lang || strings.HasPrefix(code, lang+"-")
		}
		take(func(t track) bool { return matches(t) && t.Kind == "" })
		take(func(t track) bool { return matches(t) })
	}
	take(func(t track) bool { return t.Kind == "" })
	take(func(track) bool { return true })
	return ordered
}
