package model

import (
	"math"
	"strings"
	"time"
)

// Source is an information source that can back or contradict a claim.
// A zero CredibilityScore only counts as a score when Scored is set.
type Source struct {
	ID               string     `json:"id"`
	Name             string     `json:"name"`
	Title            string     `json:"title,omitempty"`
	URL              string     `json:"url,omitempty"`
	Kind             SourceKind `json:"kind"`
	CredibilityScore int        `json:"credibility_score"`
	PublishedAt      *time.Time `json:"published_at,omitempty"`
	LastVerified     *time.Time `json:"last_verified,omitempty"`
	Author           string     `json:"author,omitempty"`
	Scored           bool       `json:"scored,omitempty"`
}

// HasCredibility reports whether CredibilityScore holds an actual score
func (s Source) HasCredibility() bool {
	return s.Scored || s.CredibilityScore > 0
}

// SourceKind classifies where a source comes from
type SourceKind string

const (
	SourceKindGovernment   SourceKind = "government"
	SourceKindAcademic     SourceKind = "academic"
	SourceKindIndustry     SourceKind = "industry"
	SourceKindNews         SourceKind = "news"
	SourceKindEncyclopedia SourceKind = "encyclopedia"
	SourceKindInternal     SourceKind = "internal"
	SourceKindOther        SourceKind = "other"
)

// ParseSourceKind maps a string to a SourceKind, falling back to other
func ParseSourceKind(s string) SourceKind {
	switch SourceKind(strings.ToLower(strings.TrimSpace(s))) {
	case SourceKindGovernment:
		return SourceKindGovernment
	case SourceKindAcademic:
		return SourceKindAcademic
	case SourceKindIndustry:
		return SourceKindIndustry
	case SourceKindNews:
		return SourceKindNews
	case SourceKindEncyclopedia:
		return SourceKindEncyclopedia
	case SourceKindInternal:
		return SourceKindInternal
	default:
		return SourceKindOther
	}
}

// Key returns the deduplication identity of the source: url (or title when
// the url is empty) plus kind.
func (s Source) Key() string {
	ident := strings.TrimSpace(s.URL)
	if ident == "" {
		ident = strings.TrimSpace(s.Title)
	}
	return ident + "|" + string(s.Kind)
}

// DisplayTitle returns the title, falling back to the name and then the id
func (s Source) DisplayTitle() string {
	switch {
	case s.Title != "":
		return s.Title
	case s.Name != "":
		return s.Name
	default:
		return s.ID
	}
}

// DedupeSources merges source lists keeping the first occurrence of each key
func DedupeSources(lists ...[]Source) []Source {
	seen := make(map[string]bool)
	unique := make([]Source, 0)

	for _, list := range lists {
		for _, src := range list {
			key := src.Key()
			if seen[key] {
				continue
			}
			seen[key] = true
			unique = append(unique, src)
		}
	}

	return unique
}

// DedupeStrings merges string lists keeping first-occurrence order
func DedupeStrings(lists ...[]string) []string {
	seen := make(map[string]bool)
	unique := make([]string, 0)

	for _, list := range lists {
		for _, s := range list {
			if s == "" || seen[s] {
				continue
			}
			seen[s] = true
			unique = append(unique, s)
		}
	}

	return unique
}

// ClampScore bounds a confidence or credibility value to [0,100]
func ClampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// RoundScore rounds a float score and clamps it to [0,100]
func RoundScore(v float64) int {
	if math.IsNaN(v) {
		return 0
	}
	return ClampScore(int(math.Round(v)))
}

// ClampWeight bounds a reliability weight to [0,1]
func ClampWeight(w float64) float64 {
	if math.IsNaN(w) || w < 0 {
		return 0
	}
	if w > 1 {
		return 1
	}
	return w
}
