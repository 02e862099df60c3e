package extract

import (
	"net/url"
	"strings"
)

// Site represents a supported job board.
type Site string

const (
	// SiteLinkedIn is linkedin.com
	SiteLinkedIn Site = "linkedin"
	// SiteIndeed is any indeed.* country domain
	SiteIndeed Site = "indeed"
	// SiteGlassdoor is any glassdoor.* country domain
	SiteGlassdoor Site = "glassdoor"
	// SiteGeneric is every other site
	SiteGeneric Site = "generic"
)

// siteMarkers are checked in order; the first hostname substring match wins.
var siteMarkers = []struct {
	site   Site
	marker string
}{
	{SiteLinkedIn, "linkedin.com"},
	{SiteIndeed, "indeed."},
	{SiteGlassdoor, "glassdoor."},
}

// DetectSite identifies the job board from a hostname. Matching is on
// lower-cased substrings, so "uk.indeed.com" and "www.glassdoor.co.uk" resolve
// to their sites. Anything unrecognized is SiteGeneric.
func DetectSite(hostname string) Site {
	host := strings.ToLower(hostname)
	for _, m := range siteMarkers {
		if strings.Contains(host, m.marker) {
			return m.site
		}
	}
	return SiteGeneric
}

// Resolve returns the profile for hostname.
func Resolve(hostname string) Profile {
	return Lookup(DetectSite(hostname))
}

// ResolveURL returns the profile for the host of location.
func ResolveURL(location string) Profile {
	return Resolve(HostnameOf(location))
}

// HostnameOf extracts the lower-cased hostname from a URL. Locations without
// a scheme, such as "www.linkedin.com/jobs/view/123", are treated as https
// URLs. Locations with no host, such as file paths, yield "" and resolve to
// the generic profile.
func HostnameOf(location string) string {
	raw := strings.TrimSpace(location)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
