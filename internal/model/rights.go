package model

// RightsStatus is a canonical rights-status URI attached to a work
type RightsStatus string

const (
	RightsPublicDomainUSA   RightsStatus = "http://librarysimplified.org/terms/rights-status/public-domain-usa"
	RightsCCBY              RightsStatus = "https://creativecommons.org/licenses/by/4.0"
	RightsCCBYSA            RightsStatus = "https://creativecommons.org/licenses/by-sa/4.0"
	RightsCCBYNC            RightsStatus = "https://creativecommons.org/licenses/by-nc/4.0"
	RightsCCBYNCND          RightsStatus = "https://creativecommons.org/licenses/by-nc-nd/4.0"
	RightsCCBYNCSA          RightsStatus = "https://creativecommons.org/licenses/by-nc-sa/4.0"
	RightsGenericOpenAccess RightsStatus = "http://librarysimplified.org/terms/rights-status/generic-open-access"
	RightsInCopyright       RightsStatus = "http://librarysimplified.org/terms/rights-status/in-copyright"
	RightsUnknown           RightsStatus = "http://librarysimplified.org/terms/rights-status/unknown"
)

var rightsNames = map[RightsStatus]string{
	RightsPublicDomainUSA:   "Public domain in the USA",
	RightsCCBY:              "CC-BY",
	RightsCCBYSA:            "CC-BY-SA",
	RightsCCBYNC:            "CC-BY-NC",
	RightsCCBYNCND:          "CC-BY-NC-ND",
	RightsCCBYNCSA:          "CC-BY-NC-SA",
	RightsGenericOpenAccess: "Open access",
	RightsInCopyright:       "In copyright",
	RightsUnknown:           "Unknown",
}

// Known reports whether s belongs to the rights vocabulary
func (s RightsStatus) Known() bool {
	_, ok := rightsNames[s]
	return ok
}

// OpenAccess reports whether a work with this status may be published in
// the open-access catalog
func (s RightsStatus) OpenAccess() bool {
	if !s.Known() {
		return false
	}
	return s != RightsInCopyright && s != RightsUnknown
}

// Name returns a short human-readable label
func (s RightsStatus) Name() string {
	if name, ok := rightsNames[s]; ok {
		return name
	}
	return string(s)
}
