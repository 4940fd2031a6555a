package model

// Link relations used by OPDS feeds
const (
	RelAlternate          = "alternate"
	RelDescription        = "http://schema.org/description"
	RelOpenAccessDownload = "http://opds-spec.org/acquisition/open-access"
	RelGenericAcquisition = "http://opds-spec.org/acquisition"
	RelImage              = "http://opds-spec.org/image"
	RelThumbnail          = "http://opds-spec.org/image/thumbnail"
)

// Media types the importer cares about
const (
	MediaTypeEPUB      = "application/epub+zip"
	MediaTypeOPDSEntry = "application/atom+xml;type=entry;profile=opds-catalog"
	MediaTypeOPDSFeed  = "application/atom+xml;profile=opds-catalog;kind=acquisition"
	MediaTypeText      = "text/plain"
	MediaTypeHTML      = "text/html"
)

// Link is a single typed reference attached to a work: a download, a cover,
// an alternate representation, or an inline description (Content set, Href empty).
type Link struct {
	Rel       string `json:"rel"`
	Href      string `json:"href,omitempty"`
	MediaType string `json:"media_type,omitempty"`
	Content   string `json:"content,omitempty"`
}

// IsDescription reports whether the link carries descriptive text
func (l Link) IsDescription() bool {
	return l.Rel == RelDescription
}

// IsAlternateEntry reports whether the link points at a fetchable
// single-entry OPDS document for the same work
func (l Link) IsAlternateEntry() bool {
	return l.Rel == RelAlternate && l.Href != "" && l.MediaType == MediaTypeOPDSEntry
}

// LinksWithRel returns the links with the given relation, in order
func LinksWithRel(links []Link, rel string) []Link {
	var out []Link
	for _, l := range links {
		if l.Rel == rel {
			out = append(out, l)
		}
	}
	return out
}
