package score

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/ppiankov/veritas/internal/model"
	"github.com/ppiankov/veritas/internal/validate"
)

// Factor weights; they sum to 1.0
const (
	weightKind      = 0.25
	weightRecency   = 0.15
	weightAuthor    = 0.20
	weightRelevance = 0.20
	weightHistory   = 0.15
	weightCitation  = 0.05
)

const (
	// FeedbackStep is the credibility change for one unit of feedback weight
	FeedbackStep = 5

	// DefaultHistoryScore is used when a source has never been scored
	DefaultHistoryScore = 70

	maxAssessmentConfidence = 95
)

// kindScores is the fixed source-kind lookup
var kindScores = map[model.SourceKind]int{
	model.SourceKindGovernment:   95,
	model.SourceKindAcademic:     90,
	model.SourceKindEncyclopedia: 80,
	model.SourceKindIndustry:     75,
	model.SourceKindInternal:     70,
	model.SourceKindNews:         60,
	model.SourceKindOther:        50,
}

// institutionalMarkers indicate an organisational author
var institutionalMarkers = []string{
	"university", "institute", "hospital", "agency", "department",
	"ministry", "association", "foundation", "college", "center",
	"centre", "organization", "organisation", "commission", "council",
}

// Factors holds the individual factor scores (0-100 each)
type Factors struct {
	SourceKind      int `json:"source_kind"`
	Recency         int `json:"recency"`
	Author          int `json:"author"`
	DomainRelevance int `json:"domain_relevance"`
	History         int `json:"verification_history"`
	Citation        int `json:"citation"`
}

// Assessment is the credibility rating of one source
type Assessment struct {
	OverallScore int      `json:"overall_score"`
	Factors      Factors  `json:"factors"`
	Reasoning    []string `json:"reasoning"`
	Confidence   int      `json:"confidence"` // Trust in the assessment itself
}

// Scorer rates source credibility from static and contextual factors
type Scorer struct {
	authority *validate.AuthorityClassifier
	now       func() time.Time
}

// NewScorer creates a new scorer. A nil classifier uses the built-in allowlists.
func NewScorer(authority *validate.AuthorityClassifier) *Scorer {
	if authority == nil {
		authority = validate.NewAuthorityClassifier(nil)
	}
	return &Scorer{
		authority: authority,
		now:       time.Now,
	}
}

// Assess rates a source, optionally in the context of a domain vertical
func (s *Scorer) Assess(source model.Source, domain string) Assessment {
	f := Factors{
		SourceKind:      s.kindFactor(source.Kind),
		Recency:         s.recencyFactor(source),
		Author:          s.authorFactor(source.Author),
		DomainRelevance: s.relevanceFactor(source.URL, domain),
		History:         s.historyFactor(source),
		Citation:        s.citationFactor(source.Kind),
	}

	weighted := float64(f.SourceKind)*weightKind +
		float64(f.Recency)*weightRecency +
		float64(f.Author)*weightAuthor +
		float64(f.DomainRelevance)*weightRelevance +
		float64(f.History)*weightHistory +
		float64(f.Citation)*weightCitation

	return Assessment{
		OverallScore: model.RoundScore(weighted),
		Factors:      f,
		Reasoning:    s.reasoning(source, domain, f),
		Confidence:   s.confidence(f),
	}
}

// Rank sorts sources by overall score, highest first. Ties keep input order.
func (s *Scorer) Rank(sources []model.Source, domain string) []model.Source {
	type scored struct {
		source model.Source
		score  int
	}

	items := make([]scored, len(sources))
	for i, src := range sources {
		items[i] = scored{source: src, score: s.Assess(src, domain).OverallScore}
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].score > items[j].score
	})

	ranked := make([]model.Source, len(items))
	for i, it := range items {
		ranked[i] = it.source
	}
	return ranked
}

// UpdateFromFeedback moves a credibility score by FeedbackStep*weight in the
// direction of the feedback, clamped to [0,100]. weight <= 0 counts as 1.0.
func UpdateFromFeedback(current int, fb model.Feedback, weight float64) int {
	if weight <= 0 || math.IsNaN(weight) {
		weight = 1.0
	}
	return model.RoundScore(float64(current) + fb.Sign()*FeedbackStep*weight)
}

func (s *Scorer) kindFactor(kind model.SourceKind) int {
	if v, ok := kindScores[kind]; ok {
		return v
	}
	return kindScores[model.SourceKindOther]
}

// recencyFactor buckets the age of the last verification (or publication)
func (s *Scorer) recencyFactor(source model.Source) int {
	ref := source.LastVerified
	if ref == nil {
		ref = source.PublishedAt
	}
	if ref == nil {
		return 30
	}

	days := int(s.now().Sub(*ref).Hours() / 24)
	switch {
	case days <= 30:
		return 100
	case days <= 90:
		return 90
	case days <= 365:
		return 75
	case days <= 1095:
		return 60
	case days <= 1825:
		return 40
	default:
		return 20
	}
}

func (s *Scorer) authorFactor(author string) int {
	a := strings.ToLower(strings.TrimSpace(author))
	if a == "" {
		return 50
	}

	switch {
	case strings.Contains(a, "phd") || strings.Contains(a, "ph.d") || strings.HasPrefix(a, "dr.") || strings.Contains(a, " dr."):
		return 90
	case strings.Contains(a, "professor") || strings.Contains(a, "prof."):
		return 88
	case strings.Contains(a, "m.d.") || strings.HasSuffix(a, " md") || strings.Contains(a, ", md"):
		return 85
	case strings.Contains(a, "j.d.") || strings.Contains(a, "esq") || strings.Contains(a, "attorney"):
		return 82
	}

	for _, marker := range institutionalMarkers {
		if strings.Contains(a, marker) {
			return 80
		}
	}
	return 60
}

func (s *Scorer) relevanceFactor(rawURL, domain string) int {
	if strings.TrimSpace(domain) == "" {
		return 70
	}
	if s.authority.IsAuthoritative(rawURL, domain) {
		return 95
	}
	return 60
}

func (s *Scorer) historyFactor(source model.Source) int {
	if !source.HasCredibility() {
		return DefaultHistoryScore
	}
	return model.ClampScore(source.CredibilityScore)
}

func (s *Scorer) citationFactor(kind model.SourceKind) int {
	switch kind {
	case model.SourceKindAcademic:
		return 85
	case model.SourceKindGovernment:
		return 80
	default:
		return 60
	}
}

// confidence is how much the assessment itself can be trusted
func (s *Scorer) confidence(f Factors) int {
	c := 50
	if f.Author > 50 {
		c += 15
	}
	if f.Recency > 70 {
		c += 15
	}
	if f.DomainRelevance > 80 {
		c += 10
	}
	if f.History > 70 {
		c += 10
	}
	if c > maxAssessmentConfidence {
		c = maxAssessmentConfidence
	}
	return c
}

// reasoning produces explanatory notes for factors crossing a threshold
func (s *Scorer) reasoning(source model.Source, domain string, f Factors) []string {
	var notes []string

	if f.SourceKind >= 90 {
		notes = append(notes, fmt.Sprintf("High-authority source type (%s)", source.Kind))
	} else if f.SourceKind <= 60 {
		notes = append(notes, fmt.Sprintf("Low-authority source type (%s)", source.Kind))
	}

	switch {
	case f.Recency >= 90:
		notes = append(notes, "Recently published or verified")
	case f.Recency == 30:
		notes = append(notes, "No publication or verification date")
	case f.Recency <= 40:
		notes = append(notes, "Information may be outdated")
	}

	if f.Author >= 85 {
		notes = append(notes, "Author has strong credentials")
	} else if f.Author <= 50 {
		notes = append(notes, "Limited author information")
	}

	if domain != "" {
		if f.DomainRelevance >= 90 {
			notes = append(notes, fmt.Sprintf("Recognized authority for %s", domain))
		} else if f.DomainRelevance <= 60 {
			notes = append(notes, fmt.Sprintf("Not a recognized %s authority", domain))
		}
	}

	if f.History >= 90 {
		notes = append(notes, "Strong verification history")
	} else if f.History <= 50 {
		notes = append(notes, "Poor verification history")
	}

	return notes
}
