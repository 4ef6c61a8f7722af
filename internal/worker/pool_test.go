package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestNewPool_WorkerFloor(t *testing.T) {
	assert.Equal(t, 5, NewPool[int](context.Background(), 5).workers)
	assert.Equal(t, 1, NewPool[int](context.Background(), 0).workers)
	assert.Equal(t, 1, NewPool[int](context.Background(), -3).workers)
}

func TestPool_SubmitAndWait(t *testing.T) {
	pool := NewPool[int](context.Background(), 2)
	pool.Start()

	for i := 0; i < 4; i++ {
		n := i
		require.True(t, pool.Submit(JobFunc[int](func(context.Context) int { return n * n })))
	}

	results := pool.Wait()
	assert.ElementsMatch(t, []int{0, 1, 4, 9}, results)
}

func TestPool_RunManyJobs(t *testing.T) {
	// far more jobs than the channel buffers hold
	var executed atomic.Int32
	jobs := make([]Job[int], 200)
	for i := range jobs {
		n := i
		jobs[i] = JobFunc[int](func(context.Context) int {
			executed.Add(1)
			return n
		})
	}

	results := NewPool[int](context.Background(), 3).Run(jobs)

	assert.Len(t, results, 200)
	assert.Equal(t, int32(200), executed.Load())
}

func TestPool_RunBoundsConcurrency(t *testing.T) {
	const workers = 4
	var current, peak atomic.Int32

	jobs := make([]Job[struct{}], 40)
	for i := range jobs {
		jobs[i] = JobFunc[struct{}](func(context.Context) struct{} {
			n := current.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			current.Add(-1)
			return struct{}{}
		})
	}

	NewPool[struct{}](context.Background(), workers).Run(jobs)

	assert.LessOrEqual(t, peak.Load(), int32(workers))
	assert.Positive(t, peak.Load())
}

func TestPool_RunEmpty(t *testing.T) {
	results := NewPool[int](context.Background(), 2).Run(nil)
	assert.Empty(t, results)
}

func TestPool_RunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var executed atomic.Int32
	jobs := make([]Job[int], 50)
	for i := range jobs {
		jobs[i] = JobFunc[int](func(ctx context.Context) int {
			if executed.Add(1) == 1 {
				cancel()
			}
			<-ctx.Done()
			return 0
		})
	}

	done := make(chan []int, 1)
	go func() { done <- NewPool[int](ctx, 2).Run(jobs) }()

	select {
	case results := <-done:
		assert.Less(t, len(results), 50)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestPool_SubmitAfterShutdown(t *testing.T) {
	pool := NewPool[int](context.Background(), 2)
	pool.Start()
	pool.Shutdown()

	done := make(chan bool, 1)
	go func() { done <- pool.Submit(JobFunc[int](func(context.Context) int { return 1 })) }()

	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("Submit after shutdown blocked")
	}
}

func TestPool_ShutdownInterruptsRunningJob(t *testing.T) {
	pool := NewPool[int](context.Background(), 1)
	pool.Start()

	started := make(chan struct{})
	pool.Submit(JobFunc[int](func(ctx context.Context) int {
		close(started)
		<-ctx.Done()
		return 0
	}))
	<-started

	finished := make(chan struct{})
	go func() {
		pool.Shutdown()
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("Shutdown timed out")
	}

	for range pool.results {
	}
}
