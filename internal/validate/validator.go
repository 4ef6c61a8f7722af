package validate

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ppiankov/veritas/internal/util"
)

const linkCheckMaxRetries = 3

// linkSleepFunc is the sleep function used between retries (injectable for tests)
var linkSleepFunc = time.Sleep

// LinkStatus is the outcome of checking one source URL
type LinkStatus struct {
	URL          string     `json:"url"`
	StatusCode   int        `json:"status_code,omitempty"`
	IsAccessible bool       `json:"is_accessible"`
	IsDead       bool       `json:"is_dead"`
	RedirectURL  string     `json:"redirect_url,omitempty"`
	LastModified *time.Time `json:"last_modified,omitempty"`
	CheckedAt    time.Time  `json:"checked_at"`
	Error        string     `json:"error,omitempty"`
}

// LinkChecker HEAD-checks source URLs concurrently
type LinkChecker struct {
	httpClient *http.Client
	maxWorkers int
	userAgent  string
	now        func() time.Time
}

// NewLinkChecker creates a new link checker
func NewLinkChecker(timeout time.Duration, maxWorkers int, userAgent, httpProxy, httpsProxy, noProxy string) *LinkChecker {
	if maxWorkers <= 0 {
		maxWorkers = 20
	}
	if userAgent == "" {
		userAgent = "Veritas/0.1 (+https://github.com/ppiankov/veritas)"
	}

	return &LinkChecker{
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy: util.NewProxyFunc(httpProxy, httpsProxy, noProxy),
			},
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("stopped after 3 redirects")
				}
				return nil
			},
		},
		maxWorkers: maxWorkers,
		userAgent:  userAgent,
		now:        time.Now,
	}
}

// Check checks all URLs concurrently; results keep input order
func (c *LinkChecker) Check(ctx context.Context, urls []string) []LinkStatus {
	if len(urls) == 0 {
		return []LinkStatus{}
	}

	results := make([]LinkStatus, len(urls))
	var wg sync.WaitGroup
	semaphore := make(chan struct{}, c.maxWorkers)

	for i, u := range urls {
		wg.Add(1)
		go func(idx int, rawURL string) {
			defer wg.Done()

			select {
			case <-ctx.Done():
				results[idx] = LinkStatus{
					URL:       rawURL,
					CheckedAt: c.now(),
					Error:     "context cancelled",
				}
				return
			case semaphore <- struct{}{}:
			}
			defer func() { <-semaphore }()

			results[idx] = c.checkWithRetry(ctx, rawURL)
		}(i, u)
	}

	wg.Wait()
	return results
}

// checkSingle issues one HEAD request
func (c *LinkChecker) checkSingle(ctx context.Context, rawURL string) LinkStatus {
	status := LinkStatus{
		URL:       rawURL,
		CheckedAt: c.now(),
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		status.Error = fmt.Sprintf("create request: %v", err)
		status.IsDead = true
		return status
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		status.Error = fmt.Sprintf("request failed: %v", err)
		status.IsDead = true
		return status
	}
	defer func() { _ = resp.Body.Close() }()

	status.StatusCode = resp.StatusCode
	if resp.StatusCode >= 200 && resp.StatusCode < 400 {
		status.IsAccessible = true
	} else if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
		status.IsDead = true
	}

	if resp.Request.URL.String() != rawURL {
		status.RedirectURL = resp.Request.URL.String()
	}

	if lastModified := resp.Header.Get("Last-Modified"); lastModified != "" {
		if t, err := http.ParseTime(lastModified); err == nil {
			status.LastModified = &t
		}
	}

	return status
}

// checkWithRetry retries transient failures with exponential backoff
func (c *LinkChecker) checkWithRetry(ctx context.Context, rawURL string) LinkStatus {
	var status LinkStatus
	for attempt := 0; attempt < linkCheckMaxRetries; attempt++ {
		status = c.checkSingle(ctx, rawURL)
		if !isRetryableLinkStatus(status) {
			return status
		}
		if attempt < linkCheckMaxRetries-1 {
			linkSleepFunc(time.Duration(1<<uint(attempt)) * time.Second)
		}
	}
	return status
}

// isRetryableLinkStatus returns true for results that indicate transient failures
func isRetryableLinkStatus(status LinkStatus) bool {
	if status.StatusCode >= 500 && status.StatusCode < 600 {
		return true
	}
	if status.StatusCode == http.StatusTooManyRequests {
		return true
	}
	return status.Error != "" && isRetryableNetworkError(status.Error)
}

// isRetryableNetworkError checks error strings for transient network failures
func isRetryableNetworkError(errMsg string) bool {
	s := strings.ToLower(errMsg)
	return strings.Contains(s, "timeout") ||
		strings.Contains(s, "connection refused") ||
		strings.Contains(s, "connection reset")
}
