package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type orderedResult struct {
	id  int
	err error
}

func (r *orderedResult) GetError() error {
	return r.err
}

// orderedJob reports its id; jobs with odd ids fail when failOdd is set
type orderedJob struct {
	id       int
	duration time.Duration
	failOdd  bool
	inFlight *int32
	peak     *int32
}

func (j *orderedJob) Execute(ctx context.Context) Result {
	if j.inFlight != nil {
		now := atomic.AddInt32(j.inFlight, 1)
		for {
			seen := atomic.LoadInt32(j.peak)
			if now <= seen || atomic.CompareAndSwapInt32(j.peak, seen, now) {
				break
			}
		}
		defer atomic.AddInt32(j.inFlight, -1)
	}

	if j.duration > 0 {
		select {
		case <-time.After(j.duration):
		case <-ctx.Done():
			return &orderedResult{id: j.id, err: ctx.Err()}
		}
	}
	if j.failOdd && j.id%2 == 1 {
		return &orderedResult{id: j.id, err: errors.New("odd job")}
	}
	return &orderedResult{id: j.id}
}

// waitWithin runs pool.Wait and fails the test if it does not return in time
func waitWithin(t *testing.T, pool *Pool, limit time.Duration) []Result {
	t.Helper()

	done := make(chan []Result, 1)
	go func() { done <- pool.Wait() }()

	select {
	case results := <-done:
		return results
	case <-time.After(limit):
		t.Fatalf("Wait did not return within %v", limit)
		return nil
	}
}

func TestNewPool_WorkerFloor(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{in: 5, want: 5},
		{in: 0, want: 1},
		{in: -3, want: 1},
	}

	for _, tt := range tests {
		if got := NewPool(tt.in).workers; got != tt.want {
			t.Errorf("NewPool(%d).workers = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestPool_ResultsInSubmissionOrder(t *testing.T) {
	pool := NewPool(4)
	pool.Start()

	count := 20
	for i := 0; i < count; i++ {
		// Later jobs finish first
		pool.Submit(&orderedJob{id: i, duration: time.Duration(count-i) * time.Millisecond})
	}

	results := waitWithin(t, pool, 5*time.Second)
	if len(results) != count {
		t.Fatalf("expected %d results, got %d", count, len(results))
	}
	for i, res := range results {
		if got := res.(*orderedResult).id; got != i {
			t.Errorf("result %d: expected job %d, got %d", i, i, got)
		}
	}
}

func TestPool_SubmitFarMoreJobsThanBuffered(t *testing.T) {
	workers := 2
	count := 200 // both channels hold 2*workers entries

	pool := NewPool(workers)
	pool.Start()

	submitted := make(chan struct{})
	go func() {
		for i := 0; i < count; i++ {
			pool.Submit(&orderedJob{id: i})
		}
		close(submitted)
	}()

	select {
	case <-submitted:
	case <-time.After(5 * time.Second):
		t.Fatal("Submit blocked before Wait was called")
	}

	results := waitWithin(t, pool, 5*time.Second)
	if len(results) != count {
		t.Fatalf("expected %d results, got %d", count, len(results))
	}
	for i, res := range results {
		if res == nil {
			t.Fatalf("result %d missing", i)
		}
		if got := res.(*orderedResult).id; got != i {
			t.Errorf("result %d: expected job %d, got %d", i, i, got)
		}
	}
}

func TestPool_ConcurrencyBoundedByWorkers(t *testing.T) {
	workers := 3
	pool := NewPool(workers)
	pool.Start()

	var inFlight, peak int32
	for i := 0; i < 30; i++ {
		pool.Submit(&orderedJob{id: i, duration: 5 * time.Millisecond, inFlight: &inFlight, peak: &peak})
	}
	waitWithin(t, pool, 5*time.Second)

	if got := atomic.LoadInt32(&peak); got > int32(workers) {
		t.Errorf("peak concurrency %d exceeded %d workers", got, workers)
	}
	if got := atomic.LoadInt32(&peak); got < 2 {
		t.Logf("peak concurrency was %d, expected jobs to overlap", got)
	}
}

func TestPool_FailedJobsKeepTheirSlot(t *testing.T) {
	pool := NewPool(2)
	pool.Start()

	for i := 0; i < 6; i++ {
		pool.Submit(&orderedJob{id: i, failOdd: true})
	}

	results := waitWithin(t, pool, 5*time.Second)
	for i, res := range results {
		failed := res.GetError() != nil
		if failed != (i%2 == 1) {
			t.Errorf("result %d: failed=%v", i, failed)
		}
	}
}

func TestPool_ParentContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	pool := NewPoolWithContext(ctx, 1)
	pool.Start()

	pool.Submit(&orderedJob{id: 0, duration: time.Minute})
	cancel()

	// Submit after cancellation is dropped
	pool.Submit(&orderedJob{id: 1})

	results := waitWithin(t, pool, time.Second)
	if len(results) != 1 {
		t.Fatalf("expected 1 submitted job, got %d", len(results))
	}
	// The job either saw the cancellation or was never picked up
	if res := results[0]; res != nil && !errors.Is(res.GetError(), context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", res.GetError())
	}
}

func TestPool_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pool := NewPoolWithContext(ctx, 2)
	pool.Start()
	for i := 0; i < 10; i++ {
		pool.Submit(&orderedJob{id: i})
	}

	if results := waitWithin(t, pool, time.Second); len(results) != 0 {
		t.Errorf("expected no results from a cancelled pool, got %d", len(results))
	}
}
