package adapters

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/veritas/internal/model"
	"github.com/ppiankov/veritas/internal/util"
)

func init() {
	util.RetryBaseDelay = time.Millisecond
}

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func wikiServer(t *testing.T, search string, revisions string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		q := r.URL.Query()
		switch {
		case q.Get("list") == "search":
			_, _ = fmt.Fprint(w, search)
		case q.Get("prop") == "revisions":
			_, _ = fmt.Fprint(w, revisions)
		case q.Get("meta") == "siteinfo":
			_, _ = fmt.Fprint(w, `{"query":{"general":{"sitename":"Wikipedia"}}}`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func newWiki(srv *httptest.Server, revisions bool) *WikipediaAdapter {
	a := NewWikipediaAdapter(WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	a.SetRevisionCheck(revisions)
	a.now = func() time.Time { return fixedNow }
	return a
}

const parisSearch = `{"query":{"search":[
	{"pageid":22989,"title":"Paris","snippet":"<span class=\"searchmatch\">Paris</span> is the capital and largest city of <span class=\"searchmatch\">France</span>","timestamp":"2026-02-20T10:00:00Z"},
	{"pageid":1,"title":"Cheese","snippet":"a dairy product","timestamp":"2026-01-01T00:00:00Z"}
]}}`

func TestWikipediaAdapter_Query_Supported(t *testing.T) {
	requests := make(chan *http.Request, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests <- r.Clone(context.Background())
		_, _ = fmt.Fprint(w, parisSearch)
	}))
	defer srv.Close()

	a := newWiki(srv, false)
	res, err := a.Query(context.Background(), model.SourceQuery{Statement: "Paris is the capital of France."})
	require.NoError(t, err)

	req := <-requests
	assert.Equal(t, "paris capital france", req.URL.Query().Get("srsearch"))
	assert.Equal(t, "3", req.URL.Query().Get("srlimit"))
	assert.Equal(t, defaultUserAgent, req.Header.Get("User-Agent"))

	assert.True(t, res.IsSupported)
	assert.Equal(t, 80, res.Confidence)
	require.Len(t, res.Sources, 1, "irrelevant hits are dropped")

	src := res.Sources[0]
	assert.Equal(t, "wikipedia:22989", src.ID)
	assert.Equal(t, srv.URL+"/wiki/Paris", src.URL)
	assert.Equal(t, model.SourceKindEncyclopedia, src.Kind)
	assert.Equal(t, 80, src.CredibilityScore)
	require.NotNil(t, src.LastVerified)
	assert.Equal(t, 2026, src.LastVerified.Year())

	require.Len(t, res.Evidence, 1)
	assert.Equal(t, "Paris: Paris is the capital and largest city of France", res.Evidence[0])
	assert.Empty(t, res.Contradictions)
	assert.Greater(t, res.QueryDuration, time.Duration(0))
}

func TestWikipediaAdapter_Query_SensitiveDomain(t *testing.T) {
	srv, _ := wikiServer(t, parisSearch, "")
	a := newWiki(srv, false)

	res, err := a.Query(context.Background(), model.SourceQuery{Statement: "Paris is the capital of France.", Domain: "legal"})
	require.NoError(t, err)
	assert.Equal(t, 65, res.Confidence)
	assert.Equal(t, 65, res.Sources[0].CredibilityScore)
}

func TestWikipediaAdapter_Query_Contradicted(t *testing.T) {
	srv, _ := wikiServer(t, `{"query":{"search":[
		{"pageid":7,"title":"Vaccines and autism","snippet":"Vaccines do not cause autism","timestamp":"2026-02-01T00:00:00Z"}
	]}}`, "")
	a := newWiki(srv, false)

	res, err := a.Query(context.Background(), model.SourceQuery{Statement: "Vaccines cause autism."})
	require.NoError(t, err)

	assert.False(t, res.IsSupported)
	assert.Equal(t, 0, res.Confidence)
	assert.Equal(t, []string{"Vaccines and autism: Vaccines do not cause autism"}, res.Contradictions)
	assert.Empty(t, res.Evidence)
}

func TestWikipediaAdapter_Query_OrdinaryFailures(t *testing.T) {
	tests := []struct {
		name      string
		handler   http.HandlerFunc
		statement string
	}{
		{
			name:      "server error",
			handler:   func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusServiceUnavailable) },
			statement: "Paris is the capital of France.",
		},
		{
			name:      "garbage body",
			handler:   func(w http.ResponseWriter, r *http.Request) { _, _ = fmt.Fprint(w, "<html>") },
			statement: "Paris is the capital of France.",
		},
		{
			name: "no relevant hits",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = fmt.Fprint(w, `{"query":{"search":[{"pageid":1,"title":"Cheese","snippet":"a dairy product"}]}}`)
			},
			statement: "Paris is the capital of France.",
		},
		{
			name:      "only stopwords",
			handler:   func(w http.ResponseWriter, r *http.Request) { t.Error("no request expected") },
			statement: "it is as it is",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			res, err := newWiki(srv, false).Query(context.Background(), model.SourceQuery{Statement: tt.statement})
			require.NoError(t, err)
			assert.Equal(t, 0, res.Confidence)
			assert.False(t, res.IsSupported)
			assert.Empty(t, res.Sources)
			assert.NotNil(t, res.Evidence)
		})
	}
}

func TestWikipediaAdapter_Query_CancelledIsAnError(t *testing.T) {
	srv, _ := wikiServer(t, parisSearch, "")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newWiki(srv, false).Query(ctx, model.SourceQuery{Statement: "Paris is the capital of France."})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWikipediaAdapter_Query_DisputedArticle(t *testing.T) {
	revs := `{"query":{"pages":[{"pageid":22989,"revisions":[`
	for i := 0; i < 12; i++ {
		comment := "copyedit"
		if i%3 == 0 {
			comment = "Reverted edits by Someone"
		}
		if i > 0 {
			revs += ","
		}
		ts := fixedNow.Add(-time.Duration(i+1) * 24 * time.Hour).Format(time.RFC3339)
		revs += fmt.Sprintf(`{"timestamp":%q,"user":"u%d","comment":%q}`, ts, i%5, comment)
	}
	revs += `]}]}}`

	srv, _ := wikiServer(t, parisSearch, revs)
	res, err := newWiki(srv, true).Query(context.Background(), model.SourceQuery{Statement: "Paris is the capital of France."})
	require.NoError(t, err)

	assert.Equal(t, 80-highDisputePenalty, res.Confidence)
	require.Len(t, res.Evidence, 2)
	assert.Contains(t, res.Evidence[1], "actively disputed")
	require.NotNil(t, res.Sources[0].LastVerified)
	assert.True(t, fixedNow.Add(-24*time.Hour).Equal(*res.Sources[0].LastVerified))
}

func TestWikipediaAdapter_Query_RevisionFailureIgnored(t *testing.T) {
	srv, _ := wikiServer(t, parisSearch, "not json")
	res, err := newWiki(srv, true).Query(context.Background(), model.SourceQuery{Statement: "Paris is the capital of France."})
	require.NoError(t, err)
	assert.Equal(t, 80, res.Confidence)
}

func TestAnalyzeRevisions(t *testing.T) {
	at := func(days float64, user, comment string) wikiRevision {
		return wikiRevision{
			Timestamp: fixedNow.Add(-time.Duration(days * 24 * float64(time.Hour))).Format(time.RFC3339),
			User:      user,
			Comment:   comment,
		}
	}

	tests := []struct {
		name     string
		revs     []wikiRevision
		severity string
		recent   int
	}{
		{"quiet", []wikiRevision{at(20, "a", "typo"), at(200, "b", "expand")}, "", 1},
		{"single revert", []wikiRevision{at(20, "a", "undo vandalism")}, "low", 1},
		{"old edits ignored", []wikiRevision{at(40, "a", "x"), at(50, "b", "y")}, "", 0},
		{"busy day", []wikiRevision{at(0.1, "a", "x"), at(0.2, "b", "x"), at(0.3, "c", "x"), at(0.4, "d", "x"), at(0.5, "e", "x"), at(0.6, "f", "x")}, "high", 6},
		{"medium", []wikiRevision{
			at(1, "a", "rv spam"), at(3, "b", "x"), at(5, "c", "undid revision"), at(7, "a", "x"), at(9, "b", "x"), at(11, "c", "x"),
		}, "medium", 6},
		{"bad timestamps", []wikiRevision{{Timestamp: "yesterday", User: "a"}}, "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := analyzeRevisions(tt.revs, fixedNow)
			assert.Equal(t, tt.severity, d.Severity)
			assert.Equal(t, tt.recent, d.RecentEdits)
		})
	}
}

func TestWikipediaAdapter_IsAvailable_Memoized(t *testing.T) {
	srv, calls := wikiServer(t, parisSearch, "")
	a := newWiki(srv, false)

	assert.True(t, a.IsAvailable(context.Background()))
	assert.True(t, a.IsAvailable(context.Background()))
	assert.Equal(t, int32(1), calls.Load())
}

func TestWikipediaAdapter_IsAvailable_Down(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	assert.False(t, newWiki(srv, false).IsAvailable(context.Background()))
}

func TestWikipediaAdapter_Metadata(t *testing.T) {
	a := NewWikipediaAdapter()
	assert.Equal(t, "wikipedia", a.Name())
	assert.Equal(t, 80, a.Reliability())
	assert.Equal(t, 80, a.ReliabilityForDomain(""))
	assert.Equal(t, 65, a.ReliabilityForDomain("healthcare"))
	assert.Equal(t, 80, a.ReliabilityForDomain("insurance"))
	assert.Contains(t, a.SupportedDomains(), "legal")
	assert.Equal(t, "https://en.wikipedia.org", a.baseURL)
}
