// Package adapters implements knowledge sources backed by public APIs and
// language models.
package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ppiankov/veritas/internal/util"
	"github.com/ppiankov/veritas/internal/worker"
)

const (
	defaultUserAgent    = "Veritas/0.1 (+https://github.com/ppiankov/veritas)"
	defaultMaxBodyBytes = 2_000_000
	defaultMaxResults   = 3
	maxResultsCap       = 10
	availabilityTTL     = time.Minute
)

// errStatus marks an upstream HTTP failure, which adapters treat as an ordinary miss
var errStatus = errors.New("unexpected status")

// Option configures an HTTP-backed adapter
type Option func(*base)

// WithBaseURL points the adapter at another endpoint, e.g. a mirror or test server
func WithBaseURL(u string) Option {
	return func(b *base) {
		if u != "" {
			b.baseURL = strings.TrimSuffix(u, "/")
		}
	}
}

// WithHTTPClient replaces the HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(b *base) {
		if c != nil {
			b.client = c
		}
	}
}

// WithLimiter throttles requests per host
func WithLimiter(l *worker.Limiter) Option {
	return func(b *base) { b.limiter = l }
}

// WithUserAgent sets the User-Agent header; public APIs require one
func WithUserAgent(ua string) Option {
	return func(b *base) {
		if ua != "" {
			b.userAgent = ua
		}
	}
}

// WithMaxBodyBytes bounds how much of a response is read
func WithMaxBodyBytes(n int64) Option {
	return func(b *base) {
		if n > 0 {
			b.maxBody = n
		}
	}
}

// base is the transport shared by HTTP-backed adapters
type base struct {
	baseURL   string
	client    *http.Client
	limiter   *worker.Limiter
	userAgent string
	maxBody   int64

	avail     availability
	availPath string
}

func (b *base) init(defaultURL, availPath string, opts []Option) {
	b.baseURL = defaultURL
	b.client = util.NewHTTPClient(15*time.Second, "", "", "")
	b.userAgent = defaultUserAgent
	b.maxBody = defaultMaxBodyBytes
	b.availPath = availPath
	for _, opt := range opts {
		opt(b)
	}
}

// getJSON fetches rawURL and decodes the body into out. Non-200 answers
// return an error wrapping errStatus after retries are exhausted.
func (b *base) getJSON(ctx context.Context, rawURL string, out any) error {
	if err := b.limiter.Wait(ctx, rawURL); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", b.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := util.DoWithRetry(ctx, b.client, req, 0)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: HTTP %d from %s", errStatus, resp.StatusCode, req.URL.Host)
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, b.maxBody)).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// available probes the API, remembering the answer for availabilityTTL
func (b *base) available(ctx context.Context) bool {
	return b.avail.check(ctx, func(ctx context.Context) bool {
		var discard json.RawMessage
		return b.getJSON(ctx, b.baseURL+b.availPath, &discard) == nil
	})
}

// availability memoizes a liveness probe so the Manager's per-query
// IsAvailable call does not double upstream traffic
type availability struct {
	mu sync.Mutex
	ok bool
	at time.Time
}

func (a *availability) check(ctx context.Context, probe func(context.Context) bool) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.at.IsZero() && time.Since(a.at) < availabilityTTL {
		return a.ok
	}

	ok := probe(ctx)
	if ctx.Err() != nil {
		// a cancelled probe says nothing about the upstream
		return false
	}

	a.ok = ok
	a.at = time.Now()
	return ok
}

// abandoned reports whether the caller gave up, in which case the failure
// belongs to the caller rather than the API
func abandoned(ctx context.Context) bool {
	return ctx.Err() != nil
}

func resultLimit(n int) int {
	if n <= 0 {
		return defaultMaxResults
	}
	if n > maxResultsCap {
		return maxResultsCap
	}
	return n
}
