package adapters

import (
	"context"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/veritas/internal/model"
)

const (
	openAlexReliability           = 85
	openAlexHealthcareReliability = 90

	// openAlexBatchParallel bounds concurrent requests in QueryBatch
	openAlexBatchParallel = 4

	maxAuthors = 3
)

// OpenAlexAdapter searches scholarly works through the OpenAlex API
type OpenAlexAdapter struct {
	base
	email string
}

// NewOpenAlexAdapter creates an adapter for api.openalex.org. A non-empty
// email is sent as mailto for polite pool access.
func NewOpenAlexAdapter(email string, opts ...Option) *OpenAlexAdapter {
	a := &OpenAlexAdapter{email: email}
	a.init("https://api.openalex.org", "/works?per_page=1", opts)
	return a
}

func (a *OpenAlexAdapter) Name() string     { return "openalex" }
func (a *OpenAlexAdapter) Reliability() int { return openAlexReliability }

func (a *OpenAlexAdapter) SupportedDomains() []string {
	return []string{"general", "healthcare", "financial", "legal"}
}

func (a *OpenAlexAdapter) ReliabilityForDomain(domain string) int {
	if domain == "healthcare" {
		return openAlexHealthcareReliability
	}
	return openAlexReliability
}

func (a *OpenAlexAdapter) IsAvailable(ctx context.Context) bool {
	return a.available(ctx)
}

// Query searches works and judges the claim against titles and abstracts
func (a *OpenAlexAdapter) Query(ctx context.Context, q model.SourceQuery) (model.SourceResult, error) {
	start := time.Now()

	terms, search := searchTerms(q.Statement)
	if search == "" {
		return model.EmptySourceResult(time.Since(start)), nil
	}

	params := url.Values{
		"search":   {search},
		"per_page": {strconv.Itoa(resultLimit(q.MaxResults))},
		"page":     {"1"},
	}
	if a.email != "" {
		params.Set("mailto", a.email)
	}

	var resp openAlexResponse
	if err := a.getJSON(ctx, a.baseURL+"/works?"+params.Encode(), &resp); err != nil {
		if abandoned(ctx) {
			return model.EmptySourceResult(time.Since(start)), ctx.Err()
		}
		return model.EmptySourceResult(time.Since(start)), nil
	}

	reliability := a.ReliabilityForDomain(q.Domain)
	var matches []match
	for _, work := range resp.Results {
		title := work.Title
		if title == "" {
			title = work.DisplayName
		}
		passage, overlap := bestPassage(terms, title+". "+reconstructAbstract(work.AbstractInvertedIndex))
		if overlap < minRelevance {
			continue
		}

		m := match{
			source:      workSource(work, title, reliability),
			passage:     passage,
			overlap:     overlap,
			contradicts: contradicts(q.Statement, passage),
		}
		if work.IsRetracted {
			m.contradicts = true
			m.passage = "work has been retracted"
		}
		matches = append(matches, m)
	}

	result := verdict(matches, reliability, start)
	return result, nil
}

// QueryBatch answers several queries concurrently; results keep query order
func (a *OpenAlexAdapter) QueryBatch(ctx context.Context, queries []model.SourceQuery) ([]model.SourceResult, error) {
	results := make([]model.SourceResult, len(queries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(openAlexBatchParallel)
	for i, q := range queries {
		g.Go(func() error {
			r, err := a.Query(gctx, q)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func workSource(work openAlexWork, title string, reliability int) model.Source {
	src := model.Source{
		ID:               "openalex:" + shortWorkID(work.ID),
		Name:             "OpenAlex",
		Title:            title,
		URL:              work.DOI,
		Kind:             model.SourceKindAcademic,
		CredibilityScore: reliability,
	}
	if src.URL == "" {
		src.URL = work.ID
	}

	var authors []string
	for _, authorship := range work.Authorships {
		if authorship.Author.DisplayName != "" {
			authors = append(authors, authorship.Author.DisplayName)
		}
		if len(authors) == maxAuthors {
			break
		}
	}
	src.Author = strings.Join(authors, ", ")

	if work.PublicationDate != "" {
		if t, err := time.Parse("2006-01-02", work.PublicationDate); err == nil {
			src.PublishedAt = &t
		}
	} else if work.PublicationYear > 0 {
		t := time.Date(work.PublicationYear, 1, 1, 0, 0, 0, 0, time.UTC)
		src.PublishedAt = &t
	}

	return src
}

// shortWorkID strips the https://openalex.org/ prefix from a work id
func shortWorkID(id string) string {
	if i := strings.LastIndex(id, "/"); i >= 0 {
		return id[i+1:]
	}
	return id
}

// reconstructAbstract converts OpenAlex's abstract_inverted_index back to
// plain text. The index maps each word to the positions where it appears.
func reconstructAbstract(invertedIndex map[string][]int) string {
	if len(invertedIndex) == 0 {
		return ""
	}

	type posWord struct {
		pos  int
		word string
	}
	var pairs []posWord
	for word, positions := range invertedIndex {
		for _, pos := range positions {
			pairs = append(pairs, posWord{pos: pos, word: word})
		}
	}

	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].pos < pairs[j].pos
	})

	words := make([]string, len(pairs))
	for i, p := range pairs {
		words[i] = p.word
	}
	return strings.Join(words, " ")
}

// OpenAlex API JSON structures
type openAlexResponse struct {
	Meta    openAlexMeta   `json:"meta"`
	Results []openAlexWork `json:"results"`
}

type openAlexMeta struct {
	Count   int `json:"count"`
	PerPage int `json:"per_page"`
	Page    int `json:"page"`
}

type openAlexWork struct {
	ID                    string               `json:"id"`
	Title                 string               `json:"title"`
	DisplayName           string               `json:"display_name"`
	DOI                   string               `json:"doi"`
	PublicationDate       string               `json:"publication_date"`
	PublicationYear       int                  `json:"publication_year"`
	Authorships           []openAlexAuthorship `json:"authorships"`
	AbstractInvertedIndex map[string][]int     `json:"abstract_inverted_index"`
	IsRetracted           bool                 `json:"is_retracted"`
	CitedByCount          int                  `json:"cited_by_count"`
}

type openAlexAuthorship struct {
	Author openAlexAuthor `json:"author"`
}

type openAlexAuthor struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}
