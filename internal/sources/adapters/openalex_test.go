package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/veritas/internal/model"
	"github.com/ppiankov/veritas/internal/sources"
)

func TestReconstructAbstract(t *testing.T) {
	tests := []struct {
		name  string
		index map[string][]int
		want  string
	}{
		{"nil map", nil, ""},
		{"single word", map[string][]int{"hello": {0}}, "hello"},
		{"ordered", map[string][]int{"We": {0}, "propose": {1}, "a": {2}, "method": {3}}, "We propose a method"},
		{"repeated word", map[string][]int{"the": {0, 3}, "cat": {1}, "saw": {2}, "dog": {4}}, "the cat saw the dog"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, reconstructAbstract(tt.index))
		})
	}
}

func openAlexWorkJSON(id, title, abstract string, retracted bool) map[string]any {
	index := map[string][]int{}
	for i, w := range strings.Fields(abstract) {
		index[w] = append(index[w], i)
	}
	return map[string]any{
		"id":                      "https://openalex.org/" + id,
		"title":                   title,
		"doi":                     "https://doi.org/10.1000/" + strings.ToLower(id),
		"publication_date":        "2021-06-15",
		"abstract_inverted_index": index,
		"is_retracted":            retracted,
		"authorships": []map[string]any{
			{"author": map[string]any{"display_name": "Dr. Ada Lovelace"}},
			{"author": map[string]any{"display_name": "B. Babbage"}},
			{"author": map[string]any{"display_name": "C. Three"}},
			{"author": map[string]any{"display_name": "D. Four"}},
		},
	}
}

// openAlexServer serves works and returns a getter for the last request URL
func openAlexServer(t *testing.T, works ...map[string]any) (*httptest.Server, func() *url.URL) {
	t.Helper()
	var mu sync.Mutex
	var last *url.URL
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		last = r.URL
		mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{"meta": map[string]any{"count": len(works)}, "results": works})
	}))
	t.Cleanup(srv.Close)
	return srv, func() *url.URL {
		mu.Lock()
		defer mu.Unlock()
		return last
	}
}

func TestOpenAlexAdapter_Query_Supported(t *testing.T) {
	srv, last := openAlexServer(t,
		openAlexWorkJSON("W42", "Aspirin and fever", "We show that aspirin reduces fever in adults. Other results follow.", false),
	)
	a := NewOpenAlexAdapter("team@example.com", WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))

	res, err := a.Query(context.Background(), model.SourceQuery{Statement: "Aspirin reduces fever in adults.", MaxResults: 5})
	require.NoError(t, err)

	u := last()
	assert.Equal(t, "/works", u.Path)
	assert.Equal(t, "aspirin reduces fever adults", u.Query().Get("search"))
	assert.Equal(t, "5", u.Query().Get("per_page"))
	assert.Equal(t, "team@example.com", u.Query().Get("mailto"))

	assert.True(t, res.IsSupported)
	assert.Equal(t, 85, res.Confidence)
	require.Len(t, res.Sources, 1)

	src := res.Sources[0]
	assert.Equal(t, "openalex:W42", src.ID)
	assert.Equal(t, "https://doi.org/10.1000/w42", src.URL)
	assert.Equal(t, model.SourceKindAcademic, src.Kind)
	assert.Equal(t, "Dr. Ada Lovelace, B. Babbage, C. Three", src.Author)
	require.NotNil(t, src.PublishedAt)
	assert.Equal(t, 2021, src.PublishedAt.Year())

	assert.Equal(t, []string{"Aspirin and fever: We show that aspirin reduces fever in adults."}, res.Evidence)
}

func TestOpenAlexAdapter_Query_HealthcareReliability(t *testing.T) {
	srv, last := openAlexServer(t,
		openAlexWorkJSON("W1", "Aspirin reduces fever in adults", "", false),
	)
	a := NewOpenAlexAdapter("", WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))

	res, err := a.Query(context.Background(), model.SourceQuery{Statement: "Aspirin reduces fever in adults.", Domain: "healthcare"})
	require.NoError(t, err)
	assert.Equal(t, 90, res.Confidence)
	assert.Empty(t, last().Query().Get("mailto"))
}

func TestOpenAlexAdapter_Query_RetractedWorkContradicts(t *testing.T) {
	srv, _ := openAlexServer(t,
		openAlexWorkJSON("W9", "Aspirin reduces fever in adults", "", true),
	)
	a := NewOpenAlexAdapter("", WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))

	res, err := a.Query(context.Background(), model.SourceQuery{Statement: "Aspirin reduces fever in adults."})
	require.NoError(t, err)
	assert.False(t, res.IsSupported)
	assert.Equal(t, []string{"Aspirin reduces fever in adults: work has been retracted"}, res.Contradictions)
}

func TestOpenAlexAdapter_Query_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	a := NewOpenAlexAdapter("", WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	res, err := a.Query(context.Background(), model.SourceQuery{Statement: "Aspirin reduces fever."})
	require.NoError(t, err)
	assert.Equal(t, model.EmptySourceResult(res.QueryDuration), res)
}

func TestOpenAlexAdapter_QueryBatch_KeepsOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		search := r.URL.Query().Get("search")
		work := openAlexWorkJSON("W"+fmt.Sprint(len(search)), search, "", false)
		_ = json.NewEncoder(w).Encode(map[string]any{"results": []any{work}})
	}))
	defer srv.Close()

	a := NewOpenAlexAdapter("", WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	queries := []model.SourceQuery{
		{Statement: "alpha particles"},
		{Statement: "beta decay rates"},
		{Statement: "gamma radiation shielding"},
		{Statement: "neutron stars"},
		{Statement: "quark gluon plasma"},
	}

	var _ sources.BatchQuerier = a
	results, err := sources.QueryEach(context.Background(), a, queries)
	require.NoError(t, err)
	require.Len(t, results, len(queries))

	for i, q := range queries {
		_, want := searchTerms(q.Statement)
		require.Len(t, results[i].Sources, 1)
		assert.Equal(t, want, results[i].Sources[0].Title)
	}
}

func TestOpenAlexAdapter_QueryBatch_Cancelled(t *testing.T) {
	srv, _ := openAlexServer(t)
	a := NewOpenAlexAdapter("", WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.QueryBatch(ctx, []model.SourceQuery{{Statement: "alpha particles"}})
	assert.Error(t, err)
}

func TestShortWorkID(t *testing.T) {
	assert.Equal(t, "W2741809807", shortWorkID("https://openalex.org/W2741809807"))
	assert.Equal(t, "W1", shortWorkID("W1"))
}
