package validate

import (
	"net/url"
	"sort"
	"strings"
)

// Vertical is a regulated domain with a curated set of authoritative hosts
type Vertical string

const (
	VerticalHealthcare Vertical = "healthcare"
	VerticalFinancial  Vertical = "financial"
	VerticalLegal      Vertical = "legal"
	VerticalInsurance  Vertical = "insurance"
)

// defaultAllowlists are the built-in authority hosts per vertical
var defaultAllowlists = map[Vertical][]string{
	VerticalHealthcare: {
		"nih.gov", "cdc.gov", "fda.gov", "who.int", "nhs.uk",
		"ema.europa.eu", "cochrane.org", "nejm.org", "thelancet.com",
		"bmj.com", "jamanetwork.com", "mayoclinic.org",
	},
	VerticalFinancial: {
		"sec.gov", "federalreserve.gov", "treasury.gov", "finra.org",
		"fdic.gov", "bls.gov", "bea.gov", "imf.org", "worldbank.org",
		"bis.org", "ecb.europa.eu", "bankofengland.co.uk",
	},
	VerticalLegal: {
		"law.cornell.edu", "supremecourt.gov", "uscourts.gov",
		"justice.gov", "congress.gov", "govinfo.gov", "ecfr.gov",
		"legislation.gov.uk", "eur-lex.europa.eu", "curia.europa.eu",
	},
	VerticalInsurance: {
		"naic.org", "iii.org", "cms.gov", "healthcare.gov",
		"irmi.com", "eiopa.europa.eu", "insurance.ca.gov", "dfs.ny.gov",
	},
}

// AuthorityClassifier decides whether a URL belongs to an authority
// allowlist for a vertical
type AuthorityClassifier struct {
	allowlists map[Vertical]map[string]bool
}

// NewAuthorityClassifier creates a classifier from the built-in allowlists
// merged with extra hosts keyed by vertical name
func NewAuthorityClassifier(extra map[string][]string) *AuthorityClassifier {
	classifier := &AuthorityClassifier{
		allowlists: make(map[Vertical]map[string]bool),
	}

	for vertical, hosts := range defaultAllowlists {
		classifier.add(vertical, hosts)
	}
	for name, hosts := range extra {
		classifier.add(Vertical(strings.ToLower(strings.TrimSpace(name))), hosts)
	}

	return classifier
}

func (a *AuthorityClassifier) add(vertical Vertical, hosts []string) {
	set, ok := a.allowlists[vertical]
	if !ok {
		set = make(map[string]bool)
		a.allowlists[vertical] = set
	}
	for _, host := range hosts {
		host = strings.ToLower(strings.TrimSpace(host))
		if host != "" {
			set[host] = true
		}
	}
}

// IsAuthoritative reports whether rawURL's host is on the allowlist for
// the vertical (exact match or subdomain)
func (a *AuthorityClassifier) IsAuthoritative(rawURL string, vertical string) bool {
	set, ok := a.allowlists[Vertical(strings.ToLower(strings.TrimSpace(vertical)))]
	if !ok || rawURL == "" {
		return false
	}

	host := hostOf(rawURL)
	if host == "" {
		return false
	}

	if set[host] {
		return true
	}
	for domain := range set {
		if strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}

// Verticals returns the known vertical names in sorted order
func (a *AuthorityClassifier) Verticals() []string {
	names := make([]string, 0, len(a.allowlists))
	for v := range a.allowlists {
		names = append(names, string(v))
	}
	sort.Strings(names)
	return names
}

// hostOf extracts the lowercase host without port
func hostOf(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := strings.ToLower(parsed.Host)
	if idx := strings.Index(host, ":"); idx > 0 {
		host = host[:idx]
	}
	return host
}
