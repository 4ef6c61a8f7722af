package adapters

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/veritas/internal/model"
	"github.com/ppiankov/veritas/internal/sources"
	"github.com/ppiankov/veritas/internal/worker"
)

var (
	_ sources.Adapter      = (*WikipediaAdapter)(nil)
	_ sources.Adapter      = (*OpenAlexAdapter)(nil)
	_ sources.Adapter      = (*LLMAdapter)(nil)
	_ sources.BatchQuerier = (*OpenAlexAdapter)(nil)
)

func TestAdapters_ThroughManager(t *testing.T) {
	wiki, _ := wikiServer(t, parisSearch, "")
	alex := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, `{"results":[]}`)
	}))
	defer alex.Close()

	limiter := worker.NewLimiter(0, 1)
	w := NewWikipediaAdapter(WithBaseURL(wiki.URL), WithHTTPClient(wiki.Client()), WithLimiter(limiter))
	w.SetRevisionCheck(false)
	o := NewOpenAlexAdapter("", WithBaseURL(alex.URL), WithHTTPClient(alex.Client()), WithLimiter(limiter))

	m := sources.NewManager(nil)
	m.Register(w, nil)
	m.Register(o, nil)

	q := model.SourceQuery{Statement: "Paris is the capital of France."}

	all := m.QueryAll(context.Background(), q)
	assert.Equal(t, []string{"wikipedia", "openalex"}, all.AvailableSources)
	// (80*0.8 + 0*0.85) / 1.65
	assert.Equal(t, 39, all.OverallConfidence)
	assert.False(t, all.IsSupported)

	// openalex outranks wikipedia but finds nothing, so consensus runs
	best := m.QueryBest(context.Background(), q)
	assert.Equal(t, all.OverallConfidence, best.OverallConfidence)
	assert.Equal(t, all.AvailableSources, best.AvailableSources)
	require.Len(t, best.Sources, 1)
	assert.Equal(t, "wikipedia:22989", best.Sources[0].ID)
}
