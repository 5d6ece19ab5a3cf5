package domain

import "time"

// SourceType enumerates the content origins the pipeline understands.
type SourceType string

const (
	SourceWeb        SourceType = "web"
	SourceNewsletter SourceType = "newsletter"
	SourceArticle    SourceType = "article"
	SourceVideo      SourceType = "video"
	SourcePaper      SourceType = "paper"
	SourceDiscussion SourceType = "discussion"
)

// KnownSourceTypes lists every source type in a stable order.
func KnownSourceTypes() []SourceType {
	return []SourceType{SourceWeb, SourceNewsletter, SourceArticle, SourceVideo, SourcePaper, SourceDiscussion}
}

// Valid reports whether the source type is one of the known variants.
func (s SourceType) Valid() bool {
	for _, known := range KnownSourceTypes() {
		if s == known {
			return true
		}
	}
	return false
}

// CandidateRef is a discovered, not yet extracted, content reference.
type CandidateRef struct {
	URL        string            `json:"url"`
	Title      string            `json:"title,omitempty"`
	SourceType SourceType        `json:"source_type"`
	Adapter    string            `json:"adapter,omitempty"`
	Preview    map[string]string `json:"preview_metadata,omitempty"`
}

// ExtractionStatus tracks the outcome of content extraction.
type ExtractionStatus string

const (
	StatusOK       ExtractionStatus = "ok"
	StatusPartial  ExtractionStatus = "partial"
	StatusFailed   ExtractionStatus = "failed"
	StatusTooShort ExtractionStatus = "too_short"
)

// Evaluable reports whether items with this status are handed to the evaluator.
func (s ExtractionStatus) Evaluable() bool {
	return s == StatusOK || s == StatusPartial
}

// Metadata carries author, date and engagement signals for an item.
type Metadata struct {
	Author      string             `json:"author,omitempty"`
	PublishedAt *time.Time         `json:"published_at,omitempty"`
	Engagement  map[string]float64 `json:"engagement_signals,omitempty"`
}

// ContentItem is an extracted document keyed by its normalized URL.
type ContentItem struct {
	URL              string           `json:"url"`
	Title            string           `json:"title"`
	SourceType       SourceType       `json:"source_type"`
	RawText          string           `json:"raw_text"`
	ContentHash      string           `json:"content_hash,omitempty"`
	Metadata         Metadata         `json:"metadata"`
	ExtractionStatus ExtractionStatus `json:"extraction_status"`
	ExtractionError  string           `json:"extraction_error,omitempty"`
	ExtractedAt      time.Time        `json:"extracted_at"`
}

// WithStatus returns a copy of the item carrying a new extraction status.
func (c ContentItem) WithStatus(status ExtractionStatus, detail string) ContentItem {
	c.ExtractionStatus = status
	c.ExtractionError = detail
	return c
}
