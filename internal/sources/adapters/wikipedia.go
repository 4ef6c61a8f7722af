package adapters

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ppiankov/veritas/internal/extract"
	"github.com/ppiankov/veritas/internal/model"
)

const (
	wikipediaReliability          = 80
	wikipediaSensitiveReliability = 65

	// disputeWindow is the look-back for edit-war detection
	disputeWindow = 30 * 24 * time.Hour

	highDisputePenalty   = 15
	mediumDisputePenalty = 8
)

// wikipediaSensitiveDomains hold claims where an open encyclopedia is a weaker witness
var wikipediaSensitiveDomains = map[string]bool{
	"healthcare": true,
	"legal":      true,
	"financial":  true,
}

// WikipediaAdapter searches Wikipedia through the MediaWiki API
type WikipediaAdapter struct {
	base
	checkRevisions bool
	now            func() time.Time
}

// NewWikipediaAdapter creates an adapter for en.wikipedia.org unless WithBaseURL says otherwise
func NewWikipediaAdapter(opts ...Option) *WikipediaAdapter {
	a := &WikipediaAdapter{checkRevisions: true, now: time.Now}
	a.init("https://en.wikipedia.org", "/w/api.php?action=query&meta=siteinfo&format=json", opts)
	return a
}

// SetRevisionCheck toggles the edit-war lookup on the top hit
func (a *WikipediaAdapter) SetRevisionCheck(enabled bool) {
	a.checkRevisions = enabled
}

func (a *WikipediaAdapter) Name() string     { return "wikipedia" }
func (a *WikipediaAdapter) Reliability() int { return wikipediaReliability }

func (a *WikipediaAdapter) SupportedDomains() []string {
	return []string{"general", "healthcare", "financial", "legal", "insurance"}
}

func (a *WikipediaAdapter) ReliabilityForDomain(domain string) int {
	if wikipediaSensitiveDomains[domain] {
		return wikipediaSensitiveReliability
	}
	return wikipediaReliability
}

func (a *WikipediaAdapter) IsAvailable(ctx context.Context) bool {
	return a.available(ctx)
}

type wikiSearchResponse struct {
	Query struct {
		Search []wikiSearchHit `json:"search"`
	} `json:"query"`
}

type wikiSearchHit struct {
	PageID    int    `json:"pageid"`
	Title     string `json:"title"`
	Snippet   string `json:"snippet"`
	Timestamp string `json:"timestamp"`
}

// Query searches articles and judges the claim against their snippets
func (a *WikipediaAdapter) Query(ctx context.Context, q model.SourceQuery) (model.SourceResult, error) {
	start := time.Now()

	terms, search := searchTerms(q.Statement)
	if search == "" {
		return model.EmptySourceResult(time.Since(start)), nil
	}

	params := url.Values{
		"action":        {"query"},
		"list":          {"search"},
		"srsearch":      {search},
		"srlimit":       {strconv.Itoa(resultLimit(q.MaxResults))},
		"srprop":        {"snippet|timestamp"},
		"format":        {"json"},
		"formatversion": {"2"},
	}

	var resp wikiSearchResponse
	if err := a.getJSON(ctx, a.baseURL+"/w/api.php?"+params.Encode(), &resp); err != nil {
		if abandoned(ctx) {
			return model.EmptySourceResult(time.Since(start)), ctx.Err()
		}
		return model.EmptySourceResult(time.Since(start)), nil
	}

	reliability := a.ReliabilityForDomain(q.Domain)
	var matches []match
	for _, hit := range resp.Query.Search {
		text := hit.Title + ". " + extract.StripTags(hit.Snippet)
		passage, overlap := bestPassage(terms, text)
		if overlap < minRelevance {
			continue
		}

		src := model.Source{
			ID:               "wikipedia:" + strconv.Itoa(hit.PageID),
			Name:             "Wikipedia",
			Title:            hit.Title,
			URL:              a.articleURL(hit.Title),
			Kind:             model.SourceKindEncyclopedia,
			CredibilityScore: reliability,
		}
		if ts, err := time.Parse(time.RFC3339, hit.Timestamp); err == nil {
			src.LastVerified = &ts
		}

		matches = append(matches, match{
			source:      src,
			passage:     passage,
			overlap:     overlap,
			contradicts: contradicts(q.Statement, passage),
		})
	}

	result := verdict(matches, reliability, start)

	if a.checkRevisions && len(matches) > 0 {
		if d, err := a.disputeFor(ctx, matches[0].source); err == nil {
			a.applyDispute(&result, matches[0].source.Title, d)
		}
	}

	result.QueryDuration = time.Since(start)
	return result, nil
}

func (a *WikipediaAdapter) articleURL(title string) string {
	return a.baseURL + "/wiki/" + url.PathEscape(strings.ReplaceAll(title, " ", "_"))
}

type wikiRevision struct {
	Timestamp string `json:"timestamp"`
	User      string `json:"user"`
	Comment   string `json:"comment"`
}

type wikiRevisionsResponse struct {
	Query struct {
		Pages []struct {
			PageID    int            `json:"pageid"`
			Revisions []wikiRevision `json:"revisions"`
		} `json:"pages"`
	} `json:"query"`
}

// dispute summarizes recent edit activity on one article
type dispute struct {
	RecentEdits   int
	Reverts       int
	UniqueEditors int
	EditsPerDay   float64
	LastEdit      time.Time
	Severity      string // "", low, medium, high
}

func (a *WikipediaAdapter) disputeFor(ctx context.Context, top model.Source) (dispute, error) {
	pageID := strings.TrimPrefix(top.ID, "wikipedia:")
	params := url.Values{
		"action":        {"query"},
		"prop":          {"revisions"},
		"pageids":       {pageID},
		"rvlimit":       {"100"},
		"rvprop":        {"timestamp|user|comment"},
		"format":        {"json"},
		"formatversion": {"2"},
	}

	var resp wikiRevisionsResponse
	if err := a.getJSON(ctx, a.baseURL+"/w/api.php?"+params.Encode(), &resp); err != nil {
		return dispute{}, err
	}
	if len(resp.Query.Pages) == 0 {
		return dispute{}, fmt.Errorf("no revisions for page %s", pageID)
	}

	return analyzeRevisions(resp.Query.Pages[0].Revisions, a.now()), nil
}

// analyzeRevisions detects edit-war patterns in newest-first revisions.
// High: more than 10 edits and 3 reverts in the window, or over 5 edits a day.
// Medium: more than 5 edits and 1 revert, or over 2 edits a day.
func analyzeRevisions(revisions []wikiRevision, now time.Time) dispute {
	var d dispute
	since := now.Add(-disputeWindow)
	editors := make(map[string]bool)
	var oldest time.Time

	for _, rev := range revisions {
		t, err := time.Parse(time.RFC3339, rev.Timestamp)
		if err != nil {
			continue
		}

		if t.After(since) {
			d.RecentEdits++
			editors[rev.User] = true
			if t.After(d.LastEdit) {
				d.LastEdit = t
			}
			if oldest.IsZero() || t.Before(oldest) {
				oldest = t
			}
		}

		comment := strings.ToLower(rev.Comment)
		if strings.Contains(comment, "revert") || strings.Contains(comment, "rv ") ||
			strings.Contains(comment, "undo") || strings.Contains(comment, "undid") {
			d.Reverts++
		}
	}
	d.UniqueEditors = len(editors)

	if d.RecentEdits > 0 {
		days := now.Sub(oldest).Hours() / 24
		if days < 1 {
			days = 1
		}
		d.EditsPerDay = float64(d.RecentEdits) / days
	}

	switch {
	case (d.RecentEdits > 10 && d.Reverts > 3) || d.EditsPerDay > 5:
		d.Severity = "high"
	case (d.RecentEdits > 5 && d.Reverts > 1) || d.EditsPerDay > 2:
		d.Severity = "medium"
	case d.Reverts > 0:
		d.Severity = "low"
	}
	return d
}

// applyDispute lowers confidence for actively contested articles and
// records the last edit as the verification date of the top source
func (a *WikipediaAdapter) applyDispute(result *model.SourceResult, title string, d dispute) {
	if !d.LastEdit.IsZero() && len(result.Sources) > 0 {
		last := d.LastEdit
		result.Sources[0].LastVerified = &last
	}

	penalty := 0
	switch d.Severity {
	case "high":
		penalty = highDisputePenalty
	case "medium":
		penalty = mediumDisputePenalty
	default:
		return
	}

	result.Confidence = model.ClampScore(result.Confidence - penalty)
	result.Evidence = append(result.Evidence, fmt.Sprintf(
		"Wikipedia: %q is actively disputed (%d reverts, %d editors in 30 days)",
		title, d.Reverts, d.UniqueEditors))
}
