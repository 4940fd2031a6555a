package adapters

import (
	"strings"

	"github.com/ppiankov/rehost/internal/model"
	"github.com/ppiankov/rehost/internal/rights"
)

// FeedbooksAdapter imports the FeedBooks public-domain and CC catalog.
//
// FeedBooks puts its open-access content behind generic acquisition links.
// EPUBs are treated as open-access downloads; at FeedBooks' request the
// other formats stay generic. Rights come from the FeedBooks rehosting policy.
type FeedbooksAdapter struct {
	policy *rights.Policy
	hosts  []string
}

// NewFeedbooksAdapter creates an adapter using the default rehosting policy
func NewFeedbooksAdapter() *FeedbooksAdapter {
	return &FeedbooksAdapter{
		policy: rights.DefaultPolicy(),
		hosts:  []string{"feedbooks.com", "feedbooks.net"},
	}
}

// Name returns the adapter name
func (a *FeedbooksAdapter) Name() string {
	return "feedbooks"
}

// CanHandle matches feeds served from a FeedBooks host
func (a *FeedbooksAdapter) CanHandle(feedURL string) bool {
	host := strings.ToLower(extractHost(feedURL))
	for _, h := range a.hosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}

// ShapeLink promotes EPUB acquisitions to open-access downloads
func (a *FeedbooksAdapter) ShapeLink(link model.Link) model.Link {
	if link.Rel == model.RelGenericAcquisition && strings.HasPrefix(link.MediaType, model.MediaTypeEPUB) {
		link.Rel = model.RelOpenAccessDownload
	}
	return link
}

// RightsURI applies the rehosting policy to the entry's rights, source and issue date
func (a *FeedbooksAdapter) RightsURI(work *model.Work) (model.RightsStatus, error) {
	return a.policy.RightsURI(work.Rights, work.Source, work.Issued)
}

// ImproveDescriptions is on: the main feed only carries short summaries
func (a *FeedbooksAdapter) ImproveDescriptions() bool {
	return true
}
