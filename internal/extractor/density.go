package extractor

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var containerTags = map[atom.Atom]bool{
	atom.Div:     true,
	atom.Section: true,
	atom.Article: true,
	atom.Main:    true,
	atom.Td:      true,
}

// densestNode picks the container whose paragraphs carry the most text,
// ignoring link-heavy blocks such as menus and footers.
func densestNode(root *html.Node) *html.Node {
	var (
		best      *html.Node
		bestScore float64
	)

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && containerTags[n.DataAtom] {
			total, linked := textLengths(n, false)
			if total >= minLandmarkRunes && float64(linked)/float64(total) <= 0.5 {
				score := float64(paragraphText(n)) + 0.3*float64(total-linked)
				if score > bestScore {
					best, bestScore = n, score
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return best
}

// textLengths returns the rune count of all text under n and of the part
// inside links.
func textLengths(n *html.Node, inLink bool) (total, linked int) {
	switch n.Type {
	case html.TextNode:
		l := utf8.RuneCountInString(strings.TrimSpace(n.Data))
		if inLink {
			return l, l
		}
		return l, 0
	case html.ElementNode:
		switch n.DataAtom {
		case atom.Script, atom.Style, atom.Noscript:
			return 0, 0
		case atom.A:
			inLink = true
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		t, l := textLengths(c, inLink)
		total += t
		linked += l
	}
	return total, linked
}

// paragraphText counts text in the direct <p> children of n.
func paragraphText(n *html.Node) int {
	sum := 0
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == atom.P {
			t, l := textLengths(c, false)
			sum += t - l
		}
	}
	return sum
}
