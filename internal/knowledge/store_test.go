package knowledge

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/veritas/internal/model"
)

const fluStatement = "Influenza vaccines reduce hospitalization risk in adults"

func intPtr(n int) *int { return &n }

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "knowledge.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func seededStore(t *testing.T) *Store {
	t.Helper()
	store := newTestStore(t)
	_, err := store.Import(context.Background(), &Seed{
		Sources: []SeedSource{
			{ID: "cdc", Name: "CDC", Title: "Flu vaccine effectiveness", URL: "https://www.cdc.gov/flu", Kind: "government", Credibility: intPtr(90)},
			{ID: "blog", Name: "Health Blog", URL: "https://blog.example.com/flu", Kind: "news"},
			{ID: "britannica", Name: "Britannica", Title: "Eiffel Tower", Kind: "encyclopedia", Credibility: intPtr(80)},
		},
		Facts: []SeedFact{
			{Statement: fluStatement, Domain: "healthcare", Confidence: 90, Source: "cdc"},
			{Statement: fluStatement, Domain: "healthcare", Stance: "contradicts", Confidence: 40, Source: "blog"},
			{Statement: "The Eiffel Tower is located in Paris", Confidence: 95, Source: "britannica"},
		},
	})
	require.NoError(t, err)
	return store
}

func TestOpen_CreatesDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "knowledge.db")
	store, err := Open(path)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	_, err = os.Stat(path)
	assert.NoError(t, err)
	assert.Equal(t, path, store.Path())
}

func TestOpen_InMemory(t *testing.T) {
	store, err := Open(":memory:")
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	require.NoError(t, store.AddSource(context.Background(), model.Source{ID: "a", Kind: model.SourceKindAcademic}))
	src, err := store.Source(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, "a", src.Name, "name defaults to id")
}

func TestVerify_WeighsStances(t *testing.T) {
	store := seededStore(t)

	verdict, err := store.Verify(context.Background(), fluStatement, "healthcare")
	require.NoError(t, err)

	assert.True(t, verdict.IsSupported)
	// mean 90 scaled by share 90/130
	assert.Equal(t, 62, verdict.Confidence)
	require.Len(t, verdict.SupportingSources, 1)
	assert.Equal(t, "cdc", verdict.SupportingSources[0].ID)
	assert.Equal(t, model.SourceKindGovernment, verdict.SupportingSources[0].Kind)
	assert.Equal(t, 90, verdict.SupportingSources[0].CredibilityScore)
	require.Len(t, verdict.ContradictingSources, 1)
	assert.Equal(t, "blog", verdict.ContradictingSources[0].ID)
}

func TestVerify_NegatedStatementFlipsStances(t *testing.T) {
	store := seededStore(t)

	verdict, err := store.Verify(context.Background(), "Influenza vaccines do not reduce hospitalization risk in adults", "healthcare")
	require.NoError(t, err)

	assert.False(t, verdict.IsSupported)
	assert.Equal(t, 62, verdict.Confidence)
	require.Len(t, verdict.SupportingSources, 1)
	assert.Equal(t, "blog", verdict.SupportingSources[0].ID)
	require.Len(t, verdict.ContradictingSources, 1)
	assert.Equal(t, "cdc", verdict.ContradictingSources[0].ID)
}

func TestVerify_DomainScoping(t *testing.T) {
	store := seededStore(t)
	ctx := context.Background()

	verdict, err := store.Verify(ctx, fluStatement, "financial")
	require.NoError(t, err)
	assert.False(t, verdict.IsSupported)
	assert.Zero(t, verdict.Confidence)

	// domain-agnostic facts apply everywhere
	verdict, err = store.Verify(ctx, "The Eiffel Tower is in Paris", "financial")
	require.NoError(t, err)
	assert.True(t, verdict.IsSupported)
	assert.Equal(t, 95, verdict.Confidence)

	// an empty domain considers every fact
	verdict, err = store.Verify(ctx, fluStatement, "")
	require.NoError(t, err)
	assert.True(t, verdict.IsSupported)
}

func TestVerify_NoMatch(t *testing.T) {
	store := seededStore(t)

	for _, statement := range []string{"Paris has many bridges", "", "it is as it is"} {
		verdict, err := store.Verify(context.Background(), statement, "")
		require.NoError(t, err)
		assert.False(t, verdict.IsSupported, statement)
		assert.Zero(t, verdict.Confidence, statement)
		assert.NotNil(t, verdict.SupportingSources)
		assert.Empty(t, verdict.SupportingSources)
		assert.NotNil(t, verdict.ContradictingSources)
	}
}

func TestUpdateCredibility(t *testing.T) {
	store := seededStore(t)
	ctx := context.Background()

	score, err := store.UpdateCredibility(ctx, "blog", model.FeedbackPositive)
	require.NoError(t, err)
	assert.Equal(t, 75, score, "unscored sources start from 70")

	score, err = store.UpdateCredibility(ctx, "cdc", model.FeedbackNegative)
	require.NoError(t, err)
	assert.Equal(t, 85, score)

	src, err := store.Source(ctx, "cdc")
	require.NoError(t, err)
	assert.Equal(t, 85, src.CredibilityScore)

	_, err = store.UpdateCredibility(ctx, "ghost", model.FeedbackPositive)
	assert.ErrorIs(t, err, ErrSourceNotFound)
}

func TestUpdateCredibility_Clamps(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.AddSource(ctx, model.Source{ID: "top", CredibilityScore: 98}))

	for i := 0; i < 3; i++ {
		_, err := store.UpdateCredibility(ctx, "top", model.FeedbackPositive)
		require.NoError(t, err)
	}
	src, err := store.Source(ctx, "top")
	require.NoError(t, err)
	assert.Equal(t, 100, src.CredibilityScore)
}

func TestUpdateCredibility_NegativeFeedbackReachesZero(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.AddSource(ctx, model.Source{ID: "rumor", CredibilityScore: 10}))

	var got []int
	for i := 0; i < 4; i++ {
		score, err := store.UpdateCredibility(ctx, "rumor", model.FeedbackNegative)
		require.NoError(t, err)
		got = append(got, score)
	}
	assert.Equal(t, []int{5, 0, 0, 0}, got)

	src, err := store.Source(ctx, "rumor")
	require.NoError(t, err)
	assert.True(t, src.Scored)
	assert.Equal(t, 0, src.CredibilityScore)

	score, err := store.UpdateCredibility(ctx, "rumor", model.FeedbackPositive)
	require.NoError(t, err)
	assert.Equal(t, 5, score)
}

func TestAddSource_UnscoredStaysUnscored(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.AddSource(ctx, model.Source{ID: "fresh"}))
	require.NoError(t, store.AddSource(ctx, model.Source{ID: "zeroed", Scored: true}))

	fresh, err := store.Source(ctx, "fresh")
	require.NoError(t, err)
	assert.False(t, fresh.HasCredibility())

	zeroed, err := store.Source(ctx, "zeroed")
	require.NoError(t, err)
	assert.True(t, zeroed.HasCredibility())
	assert.Equal(t, 0, zeroed.CredibilityScore)

	score, err := store.UpdateCredibility(ctx, "zeroed", model.FeedbackNegative)
	require.NoError(t, err)
	assert.Equal(t, 0, score)
}

func TestMarkVerified(t *testing.T) {
	store := seededStore(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)

	require.NoError(t, store.MarkVerified(ctx, "cdc", at))

	src, err := store.Source(ctx, "cdc")
	require.NoError(t, err)
	require.NotNil(t, src.LastVerified)
	assert.True(t, at.Equal(*src.LastVerified))

	assert.ErrorIs(t, store.MarkVerified(ctx, "ghost", at), ErrSourceNotFound)
}

func TestAddFact(t *testing.T) {
	store := seededStore(t)
	ctx := context.Background()

	_, err := store.AddFact(ctx, Fact{Statement: "x happens", SourceID: "ghost"})
	assert.ErrorIs(t, err, ErrSourceNotFound)

	_, err = store.AddFact(ctx, Fact{Statement: "x happens", SourceID: "cdc", Stance: "maybe"})
	assert.Error(t, err)

	_, err = store.AddFact(ctx, Fact{Statement: "  ", SourceID: "cdc"})
	assert.Error(t, err)

	first, err := store.AddFact(ctx, Fact{Statement: "Handwashing reduces infection", SourceID: "cdc", Confidence: 70})
	require.NoError(t, err)
	second, err := store.AddFact(ctx, Fact{Statement: "Handwashing reduces infection", SourceID: "cdc", Confidence: 150})
	require.NoError(t, err)
	assert.Equal(t, first, second, "same statement, domain and source updates in place")

	facts, err := store.Facts(ctx, "cdc")
	require.NoError(t, err)
	require.Len(t, facts, 2)
	assert.Equal(t, StanceSupports, facts[1].Stance)
	assert.Equal(t, 100, facts[1].Confidence)
}

func TestSources_Ordered(t *testing.T) {
	store := seededStore(t)

	srcs, err := store.Sources(context.Background())
	require.NoError(t, err)

	ids := make([]string, len(srcs))
	for i, s := range srcs {
		ids[i] = s.ID
	}
	assert.Equal(t, []string{"blog", "britannica", "cdc"}, ids)
}
