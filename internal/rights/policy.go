// Package rights decides whether a provider's book may be rehosted on a US
// server and which license the rehosted copy carries.
//
// The provider relicenses its derivative editions as CC-BY-NC, so the
// underlying text's exact copyright status matters only for two questions:
// is the text still under US copyright (then it cannot be hosted at all),
// and is it under a CC license more restrictive than CC-BY-NC (then that
// license has to be kept).
package rights

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ppiankov/rehost/internal/model"
)

// PublicDomainCutoff is the first publication year not treated as public
// domain in the US.
const PublicDomainCutoff = 1923

// Provider rights statements
const (
	RightsPublicDomainUSAOnly = "This work was published before 1923 and is in the public domain in the USA only."
	RightsLife70AndUSA        = "This work is available for countries where copyright is Life+70 and in the USA."
	RightsLife50OrUSA         = "This work is available for countries where copyright is Life+50 or in the USA (published before 1923)."
	RightsAttribution         = "Attribution (cc by)"
	RightsAttributionNC       = "Attribution Non-Commercial (cc by-nc)"
	RightsAttributionSA       = "Attribution Share Alike (cc by-sa)"
	RightsAttributionNCND     = "Attribution Non-Commercial No Derivatives (cc by-nc-nd)"
	RightsAttributionNCSA     = "Attribution Non-Commercial Share Alike (cc by-nc-sa)"

	// RightsUnknownDisclaimer is the generic notice the provider uses when it
	// makes no claim about the text's status.
	RightsUnknownDisclaimer = "Please read the legal notice included in this e-book and/or check the copyright status in your country."
)

// ErrInvalidYear is returned when a publication year is not a number
var ErrInvalidYear = errors.New("invalid publication year")

// Verdict answers "can this book be rehosted in the US?"
type Verdict int

const (
	Denied  Verdict = iota // positively still under US copyright
	Allowed                // safe to rehost
	Unknown                // not enough information; hold for manual review
)

func (v Verdict) String() string {
	switch v {
	case Allowed:
		return "allowed"
	case Denied:
		return "denied"
	default:
		return "unknown"
	}
}

// Input is the set of provider signals for one work
type Input struct {
	Rights          string
	Source          string
	PublicationYear int // 0 when unknown
}

// Policy holds the rule tables for one provider agreement
type Policy struct {
	Cutoff int

	// rehostable rights statements
	allowed map[string]bool

	// licenses the provider cannot loosen to its default
	preserved map[string]model.RightsStatus

	// US-hosted open-content sites, matched as substrings of the source
	usSites []string

	// bare site tokens that name the US edition of a multi-country site
	usTokens map[string]bool

	unknownDisclaimer string
	defaultLicense    model.RightsStatus
}

// DefaultPolicy returns the rules for the FeedBooks agreement
func DefaultPolicy() *Policy {
	return &Policy{
		Cutoff: PublicDomainCutoff,
		allowed: map[string]bool{
			RightsPublicDomainUSAOnly: true,
			RightsLife70AndUSA:        true,
			RightsLife50OrUSA:         true,
			RightsAttribution:         true,
			RightsAttributionNC:       true,
			RightsAttributionSA:       true,
			RightsAttributionNCND:     true,
			RightsAttributionNCSA:     true,
		},
		preserved: map[string]model.RightsStatus{
			RightsAttributionSA:   model.RightsCCBYSA,
			RightsAttributionNCND: model.RightsCCBYNCND,
			RightsAttributionNCSA: model.RightsCCBYNCSA,
		},
		usSites: []string{
			"archive.org",
			"craphound.com",
			"en.wikipedia.org",
			"en.wikisource.org",
			"futurismic.com",
			"gutenberg.org",
			"project gutenberg",
			"shakespeare.mit.edu",
		},
		usTokens: map[string]bool{
			"wikisource": true,
			"gutenberg":  true,
		},
		unknownDisclaimer: RightsUnknownDisclaimer,
		defaultLicense:    model.RightsCCBYNC,
	}
}

var defaultPolicy = DefaultPolicy()

// CanRehostInUS applies the rules in order and stops at the first match.
func (p *Policy) CanRehostInUS(in Input) Verdict {
	// Anything published before the cutoff, no matter where it came from.
	if in.PublicationYear != 0 && in.PublicationYear < p.Cutoff {
		return Allowed
	}

	if p.allowed[in.Rights] {
		return Allowed
	}

	source := strings.ToLower(in.Source)
	for _, site := range p.usSites {
		if strings.Contains(source, site) {
			return Allowed
		}
	}

	if p.usTokens[source] {
		return Allowed
	}

	// gutenberg.net.au has a shorter copyright term than the US one
	if strings.Contains(source, "gutenberg.net") && !strings.Contains(source, "gutenberg.net.au") {
		return Allowed
	}

	if in.Rights == p.unknownDisclaimer {
		return Unknown
	}

	return Denied
}

// Classify maps a work's signals to the license its rehosted copy carries.
func (p *Policy) Classify(in Input) model.RightsStatus {
	switch p.CanRehostInUS(in) {
	case Denied:
		return model.RightsInCopyright
	case Unknown:
		return model.RightsUnknown
	}
	if status, ok := p.preserved[in.Rights]; ok {
		return status
	}
	return p.defaultLicense
}

// RightsURI parses issued and classifies. The only error is an unparseable year.
func (p *Policy) RightsURI(rights, source, issued string) (model.RightsStatus, error) {
	year, err := ParseYear(issued)
	if err != nil {
		return "", err
	}
	return p.Classify(Input{Rights: rights, Source: source, PublicationYear: year}), nil
}

// Preserved reports whether rights names a license that must be kept as-is
func (p *Policy) Preserved(rights string) bool {
	_, ok := p.preserved[rights]
	return ok
}

// CanRehostInUS uses the default policy
func CanRehostInUS(in Input) Verdict { return defaultPolicy.CanRehostInUS(in) }

// Classify uses the default policy
func Classify(in Input) model.RightsStatus { return defaultPolicy.Classify(in) }

// RightsURI uses the default policy
func RightsURI(rights, source, issued string) (model.RightsStatus, error) {
	return defaultPolicy.RightsURI(rights, source, issued)
}

// ParseYear reads the year from a dcterms:issued value. Both "1897" and
// "1897-05-01" give 1897; an empty value gives 0.
func ParseYear(text string) (int, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, nil
	}
	head := text
	if idx := strings.Index(text, "-"); idx > 0 {
		head = text[:idx]
	}
	year, err := strconv.Atoi(head)
	if err != nil || year < 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidYear, text)
	}
	return year, nil
}
