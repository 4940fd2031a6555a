package extract

import (
	"strings"
	"unicode/utf8"

	"github.com/ppiankov/rehost/internal/model"
	"golang.org/x/net/html"
)

// PlainText returns the visible text of a description, collapsing whitespace.
// HTML and XHTML content is parsed; anything else is returned as-is.
func PlainText(d model.Link) string {
	switch d.MediaType {
	case model.MediaTypeHTML, "application/xhtml+xml":
	default:
		return collapseSpace(d.Content)
	}

	doc, err := html.Parse(strings.NewReader(d.Content))
	if err != nil {
		return collapseSpace(d.Content)
	}
	return collapseSpace(extractVisibleText(doc))
}

// Excerpt returns at most max runes of the description's plain text
func Excerpt(d model.Link, max int) string {
	text := PlainText(d)
	if max <= 0 || utf8.RuneCountInString(text) <= max {
		return text
	}
	runes := []rune(text)
	return strings.TrimSpace(string(runes[:max])) + "…"
}

// extractVisibleText extracts text nodes from HTML, skipping scripts/styles.
// Block elements are separated by a space; inline markup is not.
func extractVisibleText(n *html.Node) string {
	var buf strings.Builder

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "iframe":
				return
			case "p", "div", "br", "li", "h1", "h2", "h3", "h4", "h5", "h6", "blockquote", "tr":
				buf.WriteString(" ")
			}
		}

		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	walk(n)
	return buf.String()
}
