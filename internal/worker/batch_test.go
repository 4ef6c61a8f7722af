package worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/veritas/internal/model"
)

// stubChecker returns a result per location, failing those listed in fail
type stubChecker struct {
	fail  map[string]bool
	calls atomic.Int32
}

func (s *stubChecker) CheckDocument(ctx context.Context, location string) (*model.FactCheckResult, error) {
	s.calls.Add(1)
	// later inputs finish first so ordering depends on the sort
	time.Sleep(time.Duration(len(location)%3) * time.Millisecond)
	if s.fail[location] {
		return nil, errors.New("fetch failed")
	}
	return &model.FactCheckResult{VerificationID: "r-" + location, OverallConfidence: 90}, nil
}

func TestBatchProcessor_ProcessLocations_KeepsOrder(t *testing.T) {
	checker := &stubChecker{fail: map[string]bool{"b.md": true}}
	processor := NewBatchProcessor(checker, 3)

	locations := []string{"a.md", "b.md", "https://example.com/c", "dd.txt", "e"}
	outcomes := processor.ProcessLocations(context.Background(), locations)

	require.Len(t, outcomes, len(locations))
	for i, out := range outcomes {
		assert.Equal(t, i, out.Index)
		assert.Equal(t, locations[i], out.Location)
	}

	assert.Error(t, outcomes[1].Err)
	assert.Nil(t, outcomes[1].Result)
	require.NoError(t, outcomes[0].Err)
	assert.Equal(t, "r-a.md", outcomes[0].Result.VerificationID)
	assert.Equal(t, int32(5), checker.calls.Load())
}

func TestBatchProcessor_ProcessLocations_Empty(t *testing.T) {
	processor := NewBatchProcessor(&stubChecker{}, 2)
	outcomes := processor.ProcessLocations(context.Background(), nil)
	assert.NotNil(t, outcomes)
	assert.Empty(t, outcomes)
}

func TestReadLocationsFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docs.txt")
	content := "# documents to check\n\ndocs/a.md\n  https://example.com/post  \ndocs/a.md\n# trailing comment\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	locations, err := ReadLocationsFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"docs/a.md", "https://example.com/post"}, locations)
}

func TestReadLocationsFromFile_Missing(t *testing.T) {
	_, err := ReadLocationsFromFile(filepath.Join(t.TempDir(), "nope.txt"))
	assert.Error(t, err)
}

func TestBatchProcessor_ProcessFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docs.txt")
	require.NoError(t, os.WriteFile(path, []byte("one.md\ntwo.md\n"), 0o644))

	checker := &stubChecker{}
	outcomes, err := NewBatchProcessor(checker, 2).ProcessFile(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, outcomes, 2)
	assert.Equal(t, "one.md", outcomes[0].Location)
	assert.Equal(t, "two.md", outcomes[1].Location)
}
