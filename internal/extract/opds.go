package extract

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/ppiankov/rehost/internal/model"
	"golang.org/x/net/html/charset"
)

const (
	nsAtom    = "http://www.w3.org/2005/Atom"
	nsDCTerms = "http://purl.org/dc/terms/"
)

var (
	// ErrNotOPDS is returned when the document root is neither a feed nor an entry
	ErrNotOPDS = errors.New("document is not an Atom feed or entry")

	// ErrNotSingleEntry is returned by ParseEntry when the document holds zero or several entries
	ErrNotSingleEntry = errors.New("document does not contain exactly one entry")
)

type atomFeed struct {
	Title   string      `xml:"http://www.w3.org/2005/Atom title"`
	Entries []atomEntry `xml:"http://www.w3.org/2005/Atom entry"`
}

type atomEntry struct {
	ID        string       `xml:"http://www.w3.org/2005/Atom id"`
	Title     string       `xml:"http://www.w3.org/2005/Atom title"`
	Updated   string       `xml:"http://www.w3.org/2005/Atom updated"`
	Authors   []atomPerson `xml:"http://www.w3.org/2005/Atom author"`
	Rights    string       `xml:"http://www.w3.org/2005/Atom rights"`
	Summary   *atomText    `xml:"http://www.w3.org/2005/Atom summary"`
	Content   *atomText    `xml:"http://www.w3.org/2005/Atom content"`
	Links     []atomLink   `xml:"http://www.w3.org/2005/Atom link"`
	Source    string       `xml:"http://purl.org/dc/terms/ source"`
	Issued    string       `xml:"http://purl.org/dc/terms/ issued"`
	Language  string       `xml:"http://purl.org/dc/terms/ language"`
	Publisher string       `xml:"http://purl.org/dc/terms/ publisher"`
}

type atomPerson struct {
	Name string `xml:"http://www.w3.org/2005/Atom name"`
}

type atomText struct {
	Type  string `xml:"type,attr"`
	Text  string `xml:",chardata"`
	Inner string `xml:",innerxml"`
}

type atomLink struct {
	Rel  string `xml:"rel,attr"`
	Href string `xml:"href,attr"`
	Type string `xml:"type,attr"`
}

// Parse reads an OPDS feed or a single-entry document into works.
// Relative link hrefs are resolved against baseURL when it is set.
func Parse(data []byte, baseURL string) ([]*model.Work, error) {
	entries, err := decode(data)
	if err != nil {
		return nil, err
	}

	var base *url.URL
	if baseURL != "" {
		if base, err = url.Parse(baseURL); err != nil {
			return nil, fmt.Errorf("parse base URL: %w", err)
		}
	}

	works := make([]*model.Work, 0, len(entries))
	for i := range entries {
		works = append(works, entries[i].toWork(base))
	}
	return works, nil
}

// ParseEntry reads a document that must hold exactly one entry
func ParseEntry(data []byte, baseURL string) (*model.Work, error) {
	works, err := Parse(data, baseURL)
	if err != nil {
		return nil, err
	}
	if len(works) != 1 {
		return nil, fmt.Errorf("%w: found %d", ErrNotSingleEntry, len(works))
	}
	return works[0], nil
}

// decode accepts either <feed> or <entry> as the document root
func decode(data []byte) ([]atomEntry, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.CharsetReader = charset.NewReaderLabel
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil, ErrNotOPDS
		}
		if err != nil {
			return nil, fmt.Errorf("parse xml: %w", err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if start.Name.Space != nsAtom {
			return nil, ErrNotOPDS
		}

		switch start.Name.Local {
		case "feed":
			var feed atomFeed
			if err := dec.DecodeElement(&feed, &start); err != nil {
				return nil, fmt.Errorf("parse feed: %w", err)
			}
			return feed.Entries, nil
		case "entry":
			var entry atomEntry
			if err := dec.DecodeElement(&entry, &start); err != nil {
				return nil, fmt.Errorf("parse entry: %w", err)
			}
			return []atomEntry{entry}, nil
		default:
			return nil, ErrNotOPDS
		}
	}
}

func (e *atomEntry) toWork(base *url.URL) *model.Work {
	w := &model.Work{
		Identifier: strings.TrimSpace(e.ID),
		Title:      collapseSpace(e.Title),
		Updated:    strings.TrimSpace(e.Updated),
		Language:   strings.TrimSpace(e.Language),
		Publisher:  strings.TrimSpace(e.Publisher),
		Rights:     strings.TrimSpace(e.Rights),
		Source:     strings.TrimSpace(e.Source),
		Issued:     strings.TrimSpace(e.Issued),
	}

	for _, a := range e.Authors {
		if name := collapseSpace(a.Name); name != "" {
			w.Authors = append(w.Authors, name)
		}
	}

	for _, l := range e.Links {
		href := strings.TrimSpace(l.Href)
		if base != nil && href != "" {
			href = resolveURL(base, href)
		}
		if href == "" {
			continue
		}
		rel := l.Rel
		if rel == "" {
			rel = model.RelAlternate
		}
		w.Links = append(w.Links, model.Link{Rel: rel, Href: href, MediaType: l.Type})
	}

	for _, t := range []*atomText{e.Summary, e.Content} {
		if d, ok := t.description(); ok {
			w.Links = append(w.Links, d)
		}
	}

	return w
}

// description turns a summary or content element into a description link
func (t *atomText) description() (model.Link, bool) {
	if t == nil {
		return model.Link{}, false
	}

	var mediaType, content string
	switch strings.ToLower(t.Type) {
	case "html":
		mediaType, content = model.MediaTypeHTML, t.Text
	case "xhtml":
		mediaType, content = "application/xhtml+xml", t.Inner
	case "", "text":
		mediaType, content = model.MediaTypeText, t.Text
	default:
		mediaType, content = t.Type, t.Text
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return model.Link{}, false
	}
	return model.Link{Rel: model.RelDescription, MediaType: mediaType, Content: content}, true
}

// resolveURL resolves a relative URL against a base URL, keeping only http(s)
func resolveURL(base *url.URL, href string) string {
	if strings.HasPrefix(href, "#") {
		return ""
	}

	parsed, err := url.Parse(href)
	if err != nil {
		return ""
	}

	resolved := base.ResolveReference(parsed)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	return resolved.String()
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
