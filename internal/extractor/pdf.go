package extractor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"ContentCurator/internal/domain"
	"ContentCurator/internal/infrastructure/sources"
)

// PDFStrategy reads the text layer of PDF documents.
type PDFStrategy struct {
	fetcher  Fetcher
	maxPages int
}

// NewPDFStrategy returns a strategy reading at most maxPages pages.
func NewPDFStrategy(f Fetcher, maxPages int) *PDFStrategy {
	return &PDFStrategy{fetcher: f, maxPages: maxPages}
}

// Extract downloads the PDF behind ref. arXiv abstract pages are rewritten
// to their PDF. When the PDF cannot be read but the candidate carries an
// abstract, the abstract is returned as partial content.
func (s *PDFStrategy) Extract(ctx context.Context, ref domain.CandidateRef) (Document, error) {
	target := pdfURL(ref)

	resp, err := s.fetcher.Get(ctx, target, map[string]string{"Accept": "application/pdf"})
	if err == nil {
		if !isPDF(resp) {
			err = &domain.FetchError{URL: target, Kind: domain.ErrPermanentFetch, Err: fmt.Errorf("unexpected content type %q", resp.ContentType)}
		} else {
			var doc Document
			if doc, err = s.Parse(resp.Body, ref); err == nil {
				return doc, nil
			}
		}
	}

	if ctx.Err() != nil {
		return Document{}, err
	}
	if abstract := strings.TrimSpace(ref.Preview["abstract"]); abstract != "" {
		return Document{
			Title:   ref.Title,
			Text:    abstract,
			Partial: true,
			Detail:  "abstract only: " + err.Error(),
		}, nil
	}
	return Document{}, err
}

// Parse extracts text page by page.
func (s *PDFStrategy) Parse(body []byte, ref domain.CandidateRef) (Document, error) {
	conf := model.NewDefaultConfiguration()
	pdfCtx, err := api.ReadValidateAndOptimize(bytes.NewReader(body), conf)
	if err != nil {
		return Document{}, &domain.FetchError{URL: ref.URL, Kind: domain.ErrPermanentFetch, Err: fmt.Errorf("read pdf: %w", err)}
	}

	pages := pdfCtx.PageCount
	truncated := false
	if s.maxPages > 0 && pages > s.maxPages {
		pages, truncated = s.maxPages, true
	}

	var text strings.Builder
	for pageNr := 1; pageNr <= pages; pageNr++ {
		page := pageText(pdfCtx, pageNr)
		if page == "" {
			continue
		}
		if text.Len() > 0 {
			text.WriteString("\n\n")
		}
		text.WriteString(page)
	}
	if text.Len() == 0 {
		return Document{}, &domain.FetchError{URL: ref.URL, Kind: domain.ErrPermanentFetch, Err: errors.New("pdf has no text layer")}
	}

	doc := Document{Title: ref.Title, Text: text.String()}
	if doc.Title == "" {
		doc.Title = firstLine(doc.Text, 200)
	}
	if truncated {
		doc.Detail = fmt.Sprintf("read %d of %d pages", pages, pdfCtx.PageCount)
	}
	return doc, nil
}

func pageText(pdfCtx *model.Context, pageNr int) string {
	r, err := pdfcpu.ExtractPageContent(pdfCtx, pageNr)
	if err != nil || r == nil {
		return ""
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return ""
	}
	return normalizeText(streamText(data))
}

func pdfURL(ref domain.CandidateRef) string {
	if u := strings.TrimSpace(ref.Preview["pdf_url"]); u != "" {
		return u
	}
	if id := sources.ArxivID(ref.URL); id != "" {
		return "https://arxiv.org/pdf/" + id
	}
	return ref.URL
}

func firstLine(text string, max int) string {
	line, _, _ := strings.Cut(text, "\n")
	line = strings.TrimSpace(line)
	if r := []rune(line); len(r) > max {
		line = string(r[:max])
	}
	return line
}

// streamText walks a page content stream and collects the operands of the
// text showing operators (Tj, TJ, ' and ").
func streamText(data []byte) string {
	var (
		out     strings.Builder
		pending []string
	)
	flush := func(newline bool) {
		if newline && out.Len() > 0 {
			out.WriteByte('\n')
		}
		for _, s := range pending {
			out.WriteString(s)
		}
		pending = pending[:0]
	}
	space := func() {
		if s := out.String(); s != "" && !strings.HasSuffix(s, " ") && !strings.HasSuffix(s, "\n") {
			out.WriteByte(' ')
		}
	}

	for i := 0; i < len(data); {
		c := data[i]
		switch {
		case c == '(':
			s, n := readLiteral(data[i:])
			pending = append(pending, s)
			i += n
		case c == '%':
			for i < len(data) && data[i] != '\n' && data[i] != '\r' {
				i++
			}
		case c == '<':
			if i+1 < len(data) && data[i+1] == '<' {
				i += 2
				continue
			}
			for i < len(data) && data[i] != '>' {
				i++
			}
			i++
		case isDelimiter(c):
			i++
		default:
			start := i
			for i < len(data) && !isDelimiter(data[i]) && data[i] != '(' && data[i] != '<' && data[i] != '%' {
				i++
			}
			switch string(data[start:i]) {
			case "Tj", "TJ":
				flush(false)
			case "'", `"`:
				flush(true)
			case "T*", "ET":
				pending = pending[:0]
				out.WriteByte('\n')
			case "Td", "TD", "Tm":
				pending = pending[:0]
				space()
			default:
				if isOperator(data[start:i]) {
					pending = pending[:0]
				}
			}
		}
	}
	return out.String()
}

func isDelimiter(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\f', 0, '[', ']', '{', '}', '/', '>', ')':
		return true
	}
	return false
}

func isOperator(tok []byte) bool {
	if len(tok) == 0 {
		return false
	}
	c := tok[0]
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '*'
}

// readLiteral decodes a parenthesised PDF string starting at data[0] and
// returns it with the number of bytes consumed.
func readLiteral(data []byte) (string, int) {
	var sb strings.Builder
	depth := 0
	i := 0
	for ; i < len(data); i++ {
		c := data[i]
		switch c {
		case '(':
			depth++
			if depth == 1 {
				continue
			}
		case ')':
			depth--
			if depth == 0 {
				return sb.String(), i + 1
			}
		case '\\':
			if i+1 >= len(data) {
				continue
			}
			i++
			switch e := data[i]; e {
			case 'n':
				sb.WriteByte('\n')
			case 'r':
				sb.WriteByte('\r')
			case 't':
				sb.WriteByte('\t')
			case 'b', 'f':
			case '\r', '\n':
			default:
				if e >= '0' && e <= '7' {
					val := int(e - '0')
					for k := 0; k < 2 && i+1 < len(data) && data[i+1] >= '0' && data[i+1] <= '7'; k++ {
						i++
						val = val*8 + int(data[i]-'0')
					}
					sb.WriteByte(byte(val))
				} else {
					sb.WriteByte(e)
				}
			}
			continue
		}
		sb.WriteByte(c)
	}
	return sb.String(), i
}
