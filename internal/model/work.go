package model

// Work is the descriptive metadata for one book extracted from a feed entry.
// It is created per import and discarded once the catalog is written.
type Work struct {
	Identifier string   `json:"identifier"`
	Title      string   `json:"title"`
	Authors    []string `json:"authors,omitempty"`
	Language   string   `json:"language,omitempty"`
	Publisher  string   `json:"publisher,omitempty"`
	Updated    string   `json:"updated,omitempty"`

	// Raw provider signals used for rights determination
	Rights string `json:"rights,omitempty"`
	Source string `json:"source,omitempty"`
	Issued string `json:"issued,omitempty"`

	Links []Link `json:"links"`

	// DefaultRightsURI applies to every open-access download of the work
	DefaultRightsURI RightsStatus `json:"default_rights_uri,omitempty"`
}

// OpenAccessLinks returns the work's open-access download links
func (w *Work) OpenAccessLinks() []Link {
	return LinksWithRel(w.Links, RelOpenAccessDownload)
}

// Descriptions returns the work's description links
func (w *Work) Descriptions() []Link {
	return LinksWithRel(w.Links, RelDescription)
}
