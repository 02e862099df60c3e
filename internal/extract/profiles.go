package extract

import (
	"fmt"
	"slices"
	"time"

	"github.com/andybalholm/cascadia"
)

// Profile holds the selector priorities and readiness wait for one site.
// Selector lists are ordered: earlier entries win.
type Profile struct {
	Site        Site          `json:"site" yaml:"site"`
	Title       []string      `json:"title" yaml:"title"`
	Company     []string      `json:"company" yaml:"company"`
	Description []string      `json:"description" yaml:"description"`
	Ready       []string      `json:"ready,omitempty" yaml:"ready,omitempty"`
	Wait        time.Duration `json:"-" yaml:"wait"`
	// DocumentTitleFallback uses the document title when no title selector has content.
	DocumentTitleFallback bool `json:"document_title_fallback,omitempty" yaml:"document_title_fallback,omitempty"`
}

// ReadySelectors returns the readiness markers for the profile. Profiles
// without explicit markers wait on their title and description selectors.
func (p Profile) ReadySelectors() []string {
	if len(p.Ready) > 0 {
		return slices.Clone(p.Ready)
	}
	if p.Wait <= 0 {
		return nil
	}
	return append(slices.Clone(p.Title), p.Description...)
}

// Validate compiles every selector in the profile and reports the first that
// does not parse.
func (p Profile) Validate() error {
	lists := []struct {
		field     string
		selectors []string
	}{
		{"title", p.Title},
		{"company", p.Company},
		{"description", p.Description},
		{"ready", p.Ready},
	}
	for _, l := range lists {
		for _, sel := range l.selectors {
			if _, err := cascadia.Compile(sel); err != nil {
				return fmt.Errorf("%s profile: invalid %s selector %q: %w", p.Site, l.field, sel, err)
			}
		}
	}
	return nil
}

func (p Profile) clone() Profile {
	p.Title = slices.Clone(p.Title)
	p.Company = slices.Clone(p.Company)
	p.Description = slices.Clone(p.Description)
	p.Ready = slices.Clone(p.Ready)
	return p
}

var linkedInProfile = Profile{
	Site: SiteLinkedIn,
	Ready: []string{
		".jobs-unified-top-card__job-title h1",
		".job-details-jobs-unified-top-card__job-title h1",
		".jobs-description__content",
		".show-more-less-html__markup",
	},
	Wait: 3500 * time.Millisecond,
	Title: []string{
		".jobs-unified-top-card__job-title h1",
		".job-details-jobs-unified-top-card__job-title h1",
		"h1.t-24.t-bold.inline",
		"h1.t-24.t-bold",
	},
	Company: []string{
		".jobs-unified-top-card__company-name a",
		".jobs-unified-top-card__company-name",
		".job-details-jobs-unified-top-card__company-name a",
		".job-details-jobs-unified-top-card__company-name",
		".topcard__org-name-link",
	},
	Description: []string{
		".jobs-description__content",
		".jobs-description-content__text",
		".show-more-less-html__markup",
		".jobs-box__html-content",
		"article",
	},
}

var indeedProfile = Profile{
	Site: SiteIndeed,
	Ready: []string{
		"h1.jobsearch-JobInfoHeader-title",
		"#jobDescriptionText",
		"[data-testid='jobDetailTitle']",
		"[data-testid='jobDescriptionText']",
	},
	Wait: 3500 * time.Millisecond,
	Title: []string{
		"h1.jobsearch-JobInfoHeader-title",
		"[data-testid='jobDetailTitle']",
		"h1",
	},
	Company: []string{
		"[data-testid='company-name']",
		"div.jobsearch-InlineCompanyRating div:first-child",
		"div.jobsearch-CompanyInfoWithoutHeaderImage div:first-child",
		"div.jobsearch-CompanyInfoContainer a",
		"div.jobsearch-CompanyInfoContainer div",
	},
	Description: []string{
		"#jobDescriptionText",
		"[data-testid='jobDescriptionText']",
		".jobsearch-jobDescriptionText",
		"article",
		"main",
	},
}

var glassdoorProfile = Profile{
	Site: SiteGlassdoor,
	// The employer name renders alongside the title on Glassdoor, so it is a
	// usable readiness marker there.
	Ready: []string{
		"h1[data-test='job-title']",
		"[data-test='employer-name']",
		"[data-test='jobDescriptionContent']",
		"[data-test='job-description']",
	},
	Wait: 4500 * time.Millisecond,
	Title: []string{
		"h1[data-test='job-title']",
		"h1[data-test='jobTitle']",
		"h1",
	},
	Company: []string{
		"[data-test='employer-name']",
		"[data-test='employerName']",
		"[data-test='employer']",
		"[class*='EmployerProfile_employerName__']",
		".employerName",
	},
	Description: []string{
		"[data-test='jobDescriptionContent']",
		"[data-test='job-description']",
		"[data-test='jobDescription']",
		"article",
		"main",
	},
}

// The generic profile has no knowledge of a site's render timing, so it
// never waits.
var genericProfile = Profile{
	Site:                  SiteGeneric,
	Title:                 []string{"h1"},
	DocumentTitleFallback: true,
	Company: []string{
		"[data-company-name]",
		".company",
	},
	Description: []string{
		"[data-job-description]",
		".description",
		"article",
		"main",
		"body",
	},
}

var profiles = map[Site]Profile{
	SiteLinkedIn:  linkedInProfile,
	SiteIndeed:    indeedProfile,
	SiteGlassdoor: glassdoorProfile,
	SiteGeneric:   genericProfile,
}

// Lookup returns a copy of the profile for site, or the generic profile for
// an unknown site.
func Lookup(site Site) Profile {
	p, ok := profiles[site]
	if !ok {
		p = genericProfile
	}
	return p.clone()
}

// Profiles returns copies of all profiles in resolution order, generic last.
func Profiles() []Profile {
	out := make([]Profile, 0, len(siteMarkers)+1)
	for _, m := range siteMarkers {
		out = append(out, Lookup(m.site))
	}
	return append(out, Lookup(SiteGeneric))
}
