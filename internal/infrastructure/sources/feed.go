package sources

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"
)

// feedEntry is one item of an RSS 2.0 or Atom 1.0 feed.
type feedEntry struct {
	ID        string
	Title     string
	Link      string
	PDFLink   string
	Summary   string
	Published string
	Authors   []string
	Category  string
}

type atomFeed struct {
	XMLName xml.Name    `xml:"feed"`
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	ID        string       `xml:"id"`
	Title     string       `xml:"title"`
	Summary   string       `xml:"summary"`
	Published string       `xml:"published"`
	Updated   string       `xml:"updated"`
	Authors   []atomAuthor `xml:"author"`
	Links     []atomLink   `xml:"link"`
	Primary   atomCategory `xml:"primary_category"`
}

type atomAuthor struct {
	Name string `xml:"name"`
}

type atomLink struct {
	Href  string `xml:"href,attr"`
	Rel   string `xml:"rel,attr"`
	Type  string `xml:"type,attr"`
	Title string `xml:"title,attr"`
}

type atomCategory struct {
	Term string `xml:"term,attr"`
}

type rssRoot struct {
	XMLName xml.Name `xml:"rss"`
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	GUID        string `xml:"guid"`
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
	Creator     string `xml:"creator"`
}

// parseFeed detects RSS or Atom from the root element and returns entries.
func parseFeed(data []byte) ([]feedEntry, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty feed")
	}

	switch rootElement(trimmed) {
	case "feed":
		var feed atomFeed
		if err := xml.Unmarshal(trimmed, &feed); err != nil {
			return nil, fmt.Errorf("parse atom: %w", err)
		}
		out := make([]feedEntry, 0, len(feed.Entries))
		for _, e := range feed.Entries {
			entry := feedEntry{
				ID:        strings.TrimSpace(e.ID),
				Title:     collapseSpace(e.Title),
				Summary:   collapseSpace(e.Summary),
				Published: strings.TrimSpace(e.Published),
				Category:  e.Primary.Term,
			}
			if entry.Published == "" {
				entry.Published = strings.TrimSpace(e.Updated)
			}
			for _, a := range e.Authors {
				if name := strings.TrimSpace(a.Name); name != "" {
					entry.Authors = append(entry.Authors, name)
				}
			}
			for _, l := range e.Links {
				switch {
				case l.Title == "pdf" || l.Type == "application/pdf":
					entry.PDFLink = l.Href
				case l.Rel == "alternate" || (l.Rel == "" && entry.Link == ""):
					entry.Link = l.Href
				}
			}
			if entry.Link == "" {
				entry.Link = entry.ID
			}
			out = append(out, entry)
		}
		return out, nil
	case "rss":
		var root rssRoot
		if err := xml.Unmarshal(trimmed, &root); err != nil {
			return nil, fmt.Errorf("parse rss: %w", err)
		}
		out := make([]feedEntry, 0, len(root.Channel.Items))
		for _, item := range root.Channel.Items {
			entry := feedEntry{
				ID:        strings.TrimSpace(item.GUID),
				Title:     collapseSpace(item.Title),
				Link:      strings.TrimSpace(item.Link),
				Summary:   strings.TrimSpace(item.Description),
				Published: strings.TrimSpace(item.PubDate),
			}
			if c := strings.TrimSpace(item.Creator); c != "" {
				entry.Authors = []string{c}
			}
			out = append(out, entry)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown feed format")
	}
}

func rootElement(data []byte) string {
	d := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := d.Token()
		if err != nil {
			return ""
		}
		if se, ok := tok.(xml.StartElement); ok {
			return strings.ToLower(se.Name.Local)
		}
	}
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
