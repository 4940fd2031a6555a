package adapters

import (
	"net/url"
	"strings"

	"github.com/ppiankov/rehost/internal/model"
)

// GenericAdapter is the fallback adapter for plain OPDS feeds
type GenericAdapter struct{}

// NewGenericAdapter creates a new generic adapter
func NewGenericAdapter() *GenericAdapter {
	return &GenericAdapter{}
}

// Name returns the adapter name
func (a *GenericAdapter) Name() string {
	return "opds"
}

// CanHandle always returns true (fallback adapter)
func (a *GenericAdapter) CanHandle(feedURL string) bool {
	return true
}

// ShapeLink keeps links as published
func (a *GenericAdapter) ShapeLink(link model.Link) model.Link {
	return link
}

// RightsURI trusts the entry's rights element when it is a known rights URI
// or license name; anything else is unknown.
func (a *GenericAdapter) RightsURI(work *model.Work) (model.RightsStatus, error) {
	return rightsFromString(work.Rights), nil
}

// ImproveDescriptions is off for generic feeds
func (a *GenericAdapter) ImproveDescriptions() bool {
	return false
}

var rightsByName = map[string]model.RightsStatus{
	"public domain in the usa": model.RightsPublicDomainUSA,
	"cc-by":                    model.RightsCCBY,
	"cc-by-sa":                 model.RightsCCBYSA,
	"cc-by-nc":                 model.RightsCCBYNC,
	"cc-by-nc-nd":              model.RightsCCBYNCND,
	"cc-by-nc-sa":              model.RightsCCBYNCSA,
	"open access":              model.RightsGenericOpenAccess,
	"in copyright":             model.RightsInCopyright,
}

func rightsFromString(s string) model.RightsStatus {
	s = strings.TrimSpace(s)
	if status := model.RightsStatus(strings.TrimSuffix(s, "/")); status.Known() {
		return status
	}
	if status, ok := rightsByName[strings.ToLower(s)]; ok {
		return status
	}
	return model.RightsUnknown
}

func extractHost(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return parsed.Hostname()
}
