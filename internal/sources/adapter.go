// Package sources queries pluggable external knowledge sources and
// consolidates their independent verdicts into one weighted verdict.
package sources

import (
	"context"
	"fmt"

	"github.com/ppiankov/veritas/internal/model"
)

// Adapter is one external knowledge provider.
//
// Query returns an empty result with a nil error on ordinary failure (no
// match, upstream 404, unparsable payload). A non-nil error or a panic is an
// unexpected failure; the Manager then treats the adapter as unavailable for
// that call.
type Adapter interface {
	Name() string
	Reliability() int // Base reliability, 0-100
	SupportedDomains() []string
	Query(ctx context.Context, q model.SourceQuery) (model.SourceResult, error)
	IsAvailable(ctx context.Context) bool
	ReliabilityForDomain(domain string) int
}

// BatchQuerier is implemented by adapters that can answer several queries
// in one round trip
type BatchQuerier interface {
	QueryBatch(ctx context.Context, queries []model.SourceQuery) ([]model.SourceResult, error)
}

// QueryEach answers every query with the adapter, using its batch capability
// when available and sequential queries otherwise. Results keep query order.
func QueryEach(ctx context.Context, a Adapter, queries []model.SourceQuery) ([]model.SourceResult, error) {
	if len(queries) == 0 {
		return []model.SourceResult{}, nil
	}

	if batcher, ok := a.(BatchQuerier); ok {
		results, err := batcher.QueryBatch(ctx, queries)
		if err != nil {
			return nil, fmt.Errorf("%s batch query: %w", a.Name(), err)
		}
		if len(results) != len(queries) {
			return nil, fmt.Errorf("%s batch query: got %d results for %d queries", a.Name(), len(results), len(queries))
		}
		return results, nil
	}

	results := make([]model.SourceResult, 0, len(queries))
	for _, q := range queries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r, err := a.Query(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("%s query: %w", a.Name(), err)
		}
		results = append(results, r)
	}
	return results, nil
}
