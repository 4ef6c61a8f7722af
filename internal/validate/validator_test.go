package validate

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func init() {
	// Disable retry sleep in all tests for fast execution
	linkSleepFunc = func(d time.Duration) {}
}

func TestLinkChecker_CheckSingle_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("Expected HEAD request, got %s", r.Method)
		}
		if r.Header.Get("User-Agent") != "test-agent" {
			t.Errorf("Expected User-Agent test-agent, got %q", r.Header.Get("User-Agent"))
		}
		w.Header().Set("Last-Modified", "Mon, 02 Jan 2023 15:04:05 GMT")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	checker := NewLinkChecker(5*time.Second, 20, "test-agent", "", "", "")
	status := checker.checkSingle(context.Background(), server.URL)

	if !status.IsAccessible {
		t.Error("Expected link to be accessible")
	}
	if status.StatusCode != http.StatusOK {
		t.Errorf("Expected status code 200, got %d", status.StatusCode)
	}
	if status.IsDead {
		t.Error("Expected link not to be dead")
	}
	if status.LastModified == nil {
		t.Fatal("Expected Last-Modified to be parsed")
	}
	if status.LastModified.Year() != 2023 {
		t.Errorf("Expected Last-Modified year 2023, got %d", status.LastModified.Year())
	}
	if status.CheckedAt.IsZero() {
		t.Error("Expected CheckedAt to be set")
	}
}

func TestLinkChecker_CheckSingle_Dead(t *testing.T) {
	for _, code := range []int{http.StatusNotFound, http.StatusGone} {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(code)
		}))

		checker := NewLinkChecker(5*time.Second, 20, "", "", "", "")
		status := checker.checkSingle(context.Background(), server.URL)
		server.Close()

		if status.IsAccessible {
			t.Errorf("Expected %d link not to be accessible", code)
		}
		if !status.IsDead {
			t.Errorf("Expected %d link to be marked as dead", code)
		}
	}
}

func TestLinkChecker_CheckSingle_Redirect(t *testing.T) {
	finalServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer finalServer.Close()

	redirectServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, finalServer.URL, http.StatusMovedPermanently)
	}))
	defer redirectServer.Close()

	checker := NewLinkChecker(5*time.Second, 20, "", "", "", "")
	status := checker.checkSingle(context.Background(), redirectServer.URL)

	if !status.IsAccessible {
		t.Error("Expected redirected link to be accessible")
	}
	if status.RedirectURL != finalServer.URL {
		t.Errorf("Expected redirect to %s, got %s", finalServer.URL, status.RedirectURL)
	}
}

func TestLinkChecker_Check_OrderAndConcurrency(t *testing.T) {
	serverCount := 10
	urls := make([]string, serverCount)
	for i := 0; i < serverCount; i++ {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(100 * time.Millisecond)
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()
		urls[i] = server.URL
	}

	checker := NewLinkChecker(5*time.Second, 20, "", "", "", "")

	start := time.Now()
	results := checker.Check(context.Background(), urls)
	duration := time.Since(start)

	if len(results) != serverCount {
		t.Fatalf("Expected %d results, got %d", serverCount, len(results))
	}
	if duration > 500*time.Millisecond {
		t.Errorf("Checking took too long (%v), concurrent execution may not be working", duration)
	}
	for i, status := range results {
		if status.URL != urls[i] {
			t.Errorf("Result %d: expected URL %s, got %s", i, urls[i], status.URL)
		}
		if !status.IsAccessible {
			t.Errorf("Result %d: expected accessible", i)
		}
	}
}

func TestLinkChecker_Check_Empty(t *testing.T) {
	checker := NewLinkChecker(5*time.Second, 20, "", "", "", "")

	results := checker.Check(context.Background(), nil)
	if len(results) != 0 {
		t.Errorf("Expected 0 results, got %d", len(results))
	}
}

func TestLinkChecker_Check_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	checker := NewLinkChecker(10*time.Second, 20, "", "", "", "")

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	results := checker.Check(ctx, []string{server.URL})
	if len(results) != 1 {
		t.Fatalf("Expected 1 result, got %d", len(results))
	}
	if results[0].IsAccessible {
		t.Error("Expected link not to be accessible after context cancellation")
	}
}

func TestNewLinkChecker_DefaultWorkers(t *testing.T) {
	checker := NewLinkChecker(5*time.Second, 0, "", "", "", "")

	if checker.maxWorkers != 20 {
		t.Errorf("Expected default max workers to be 20, got %d", checker.maxWorkers)
	}
	if checker.userAgent == "" {
		t.Error("Expected default user agent")
	}
}

func TestCheckWithRetry_TransientThenSuccess(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	checker := NewLinkChecker(5*time.Second, 20, "", "", "", "")
	status := checker.checkWithRetry(context.Background(), server.URL)

	if !status.IsAccessible {
		t.Error("Expected accessible after retry")
	}
	if attempts.Load() != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts.Load())
	}
}

func TestCheckWithRetry_PermanentFailure(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	checker := NewLinkChecker(5*time.Second, 20, "", "", "", "")
	status := checker.checkWithRetry(context.Background(), server.URL)

	if !status.IsDead {
		t.Error("Expected dead for 404")
	}
	if attempts.Load() != 1 {
		t.Errorf("Expected 1 attempt for non-retryable status, got %d", attempts.Load())
	}
}

func TestIsRetryableLinkStatus(t *testing.T) {
	tests := []struct {
		desc      string
		status    LinkStatus
		retryable bool
	}{
		{"200 OK", LinkStatus{StatusCode: 200, IsAccessible: true}, false},
		{"404 Not Found", LinkStatus{StatusCode: 404, IsDead: true}, false},
		{"500 Server Error", LinkStatus{StatusCode: 500}, true},
		{"503 Service Unavailable", LinkStatus{StatusCode: 503}, true},
		{"429 Too Many Requests", LinkStatus{StatusCode: 429}, true},
		{"timeout error", LinkStatus{Error: "request failed: timeout"}, true},
		{"connection reset", LinkStatus{Error: "request failed: connection reset by peer"}, true},
		{"create request error", LinkStatus{Error: "create request: invalid URL"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			if got := isRetryableLinkStatus(tt.status); got != tt.retryable {
				t.Errorf("isRetryableLinkStatus(%s) = %v, want %v", tt.desc, got, tt.retryable)
			}
		})
	}
}
