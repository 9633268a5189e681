package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
)

func waitTerminal(t *testing.T, q *Queue, id string) Record {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		rec, err := q.Status(id)
		if err != nil {
			t.Fatalf("status %s: %v", id, err)
		}
		if rec.Status.Terminal() {
			return rec
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("task %s never reached a terminal state", id)
	return Record{}
}

func TestSubmitReturnsDistinctIDs(t *testing.T) {
	q := New(Options{})
	defer q.Close()

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := q.Submit(func(context.Context) (any, error) { return nil, nil }, "noop")
		if seen[id] {
			t.Fatalf("duplicate id issued: %s", id)
		}
		seen[id] = true
	}
}

func TestSubmitDoesNotBlockOnSlowOperations(t *testing.T) {
	q := New(Options{})
	defer q.Close()

	start := time.Now()
	id := q.Submit(func(ctx context.Context) (any, error) {
		select {
		case <-time.After(300 * time.Millisecond):
		case <-ctx.Done():
		}
		return "done", nil
	}, "slow")
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Fatalf("submit took %s, expected immediate return", elapsed)
	}

	rec, err := q.Status(id)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if rec.Status != StatusPending && rec.Status != StatusRunning {
		t.Fatalf("expected pending or running right after submit, got %s", rec.Status)
	}
}

func TestCompletedTaskCarriesResultAndTimestamps(t *testing.T) {
	q := New(Options{})
	defer q.Close()

	id := q.Submit(func(context.Context) (any, error) { return 42, nil }, "add")
	rec := waitTerminal(t, q, id)

	if rec.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s", rec.Status)
	}
	if rec.Result != 42 {
		t.Fatalf("expected result 42, got %v", rec.Result)
	}
	if rec.Err != nil {
		t.Fatalf("completed task must not carry an error: %+v", rec.Err)
	}
	if rec.StartedAt == nil || rec.CompletedAt == nil {
		t.Fatalf("terminal task missing timestamps: started=%v completed=%v", rec.StartedAt, rec.CompletedAt)
	}
	if rec.StartedAt.After(*rec.CompletedAt) {
		t.Fatalf("started_at %s after completed_at %s", rec.StartedAt, rec.CompletedAt)
	}
	if rec.CreatedAt.After(*rec.StartedAt) {
		t.Fatalf("created_at %s after started_at %s", rec.CreatedAt, rec.StartedAt)
	}
	if rec.Op != "add" {
		t.Fatalf("expected operation label add, got %q", rec.Op)
	}
}

func TestFailedTaskCarriesStructuredError(t *testing.T) {
	q := New(Options{})
	defer q.Close()

	id := q.Submit(func(context.Context) (any, error) {
		return nil, fmt.Errorf("parse question: %w", errors.New("bad input"))
	}, "chat")
	rec := waitTerminal(t, q, id)

	if rec.Status != StatusFailed {
		t.Fatalf("expected failed, got %s", rec.Status)
	}
	if rec.Result != nil {
		t.Fatalf("failed task must not carry a result: %v", rec.Result)
	}
	if rec.Err == nil {
		t.Fatal("failed task missing error detail")
	}
	if !strings.Contains(rec.Err.Message, "bad input") {
		t.Fatalf("error message %q missing cause", rec.Err.Message)
	}
	if !strings.Contains(rec.Err.Trace, "caused by: bad input") {
		t.Fatalf("trace %q missing unwrapped cause", rec.Err.Trace)
	}
	if rec.Err.Type == "" {
		t.Fatal("error type must be set")
	}
	if rec.StartedAt == nil || rec.CompletedAt == nil {
		t.Fatal("failed task missing timestamps")
	}
}

func TestPanickingOperationIsContained(t *testing.T) {
	q := New(Options{})
	defer q.Close()

	id := q.Submit(func(context.Context) (any, error) {
		panic("boom")
	}, "panicky")
	rec := waitTerminal(t, q, id)

	if rec.Status != StatusFailed {
		t.Fatalf("expected failed, got %s", rec.Status)
	}
	if rec.Err.Type != "panic" || rec.Err.Message != "boom" {
		t.Fatalf("unexpected error detail: %+v", rec.Err)
	}
	if !strings.Contains(rec.Err.Trace, "goroutine") {
		t.Fatal("panic trace should carry a stack")
	}
}

func TestFailingTaskDoesNotAffectOthers(t *testing.T) {
	q := New(Options{})
	defer q.Close()

	ids := make([]string, 10)
	for i := range ids {
		i := i
		if i == 3 {
			ids[i] = q.Submit(func(context.Context) (any, error) {
				return nil, errors.New("immediate failure")
			}, "fail")
			continue
		}
		ids[i] = q.Submit(func(ctx context.Context) (any, error) {
			time.Sleep(200 * time.Millisecond)
			return i, nil
		}, "sleep")
	}

	for i, id := range ids {
		rec := waitTerminal(t, q, id)
		if i == 3 {
			if rec.Status != StatusFailed {
				t.Fatalf("task %d: expected failed, got %s", i, rec.Status)
			}
			continue
		}
		if rec.Status != StatusCompleted {
			t.Fatalf("task %d: expected completed, got %s", i, rec.Status)
		}
		if rec.Result != i {
			t.Fatalf("task %d: expected result %d, got %v", i, i, rec.Result)
		}
	}
}

func TestPollingTerminalTaskIsIdempotent(t *testing.T) {
	q := New(Options{})
	defer q.Close()

	id := q.Submit(func(context.Context) (any, error) {
		return map[string]any{"answer": "ok"}, nil
	}, "chat")
	first := waitTerminal(t, q, id)
	firstJSON, err := json.Marshal(first)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	for i := 0; i < 5; i++ {
		rec, err := q.Status(id)
		if err != nil {
			t.Fatalf("status: %v", err)
		}
		got, err := json.Marshal(rec)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		if string(got) != string(firstJSON) {
			t.Fatalf("poll %d changed: %s vs %s", i, got, firstJSON)
		}
	}
}

func TestCleanRespectsAgeAndStatus(t *testing.T) {
	q := New(Options{})
	defer q.Close()

	recent := q.Submit(func(context.Context) (any, error) { return 1, nil }, "recent")
	old := q.Submit(func(context.Context) (any, error) { return 2, nil }, "old")
	waitTerminal(t, q, recent)
	waitTerminal(t, q, old)

	release := make(chan struct{})
	running := q.Submit(func(context.Context) (any, error) {
		<-release
		return nil, nil
	}, "running")
	defer close(release)

	// Backdate the old task's completion well past the threshold.
	stale := time.Now().UTC().Add(-100 * time.Second)
	q.store.update(old, func(rec *Record) { rec.CompletedAt = &stale })

	removed := q.Clean(60 * time.Second)
	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
	if _, err := q.Status(old); !errors.Is(err, ErrNotFound) {
		t.Fatalf("old task should be gone, got err=%v", err)
	}
	if _, err := q.Status(recent); err != nil {
		t.Fatalf("recent task should survive: %v", err)
	}
	if _, err := q.Status(running); err != nil {
		t.Fatalf("running task must never be cleaned: %v", err)
	}
}

func TestStatusUnknownID(t *testing.T) {
	q := New(Options{})
	defer q.Close()

	if _, err := q.Status("00000000-0000-0000-0000-000000000000"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	id := q.Submit(func(context.Context) (any, error) { return nil, nil }, "noop")
	waitTerminal(t, q, id)
	q.Clean(0)

	if _, err := q.Status(id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("cleaned task should be indistinguishable from unknown, got %v", err)
	}
}

func TestListFiltersByStatus(t *testing.T) {
	q := New(Options{})
	defer q.Close()

	release := make(chan struct{})
	var started sync.WaitGroup
	started.Add(2)
	for i := 0; i < 2; i++ {
		q.Submit(func(context.Context) (any, error) {
			started.Done()
			<-release
			return nil, nil
		}, "held")
	}
	done := q.Submit(func(context.Context) (any, error) { return "x", nil }, "quick")
	waitTerminal(t, q, done)
	started.Wait()

	if got := len(q.List(StatusRunning)); got != 2 {
		t.Fatalf("expected 2 running, got %d", got)
	}
	if got := len(q.List(StatusCompleted)); got != 1 {
		t.Fatalf("expected 1 completed, got %d", got)
	}
	if got := len(q.List("")); got != 3 {
		t.Fatalf("expected 3 total, got %d", got)
	}
	close(release)
}

func TestStatsCensus(t *testing.T) {
	q := New(Options{})
	defer q.Close()

	ok := q.Submit(func(context.Context) (any, error) { return 1, nil }, "ok")
	bad := q.Submit(func(context.Context) (any, error) { return nil, errors.New("nope") }, "bad")
	waitTerminal(t, q, ok)
	waitTerminal(t, q, bad)

	st := q.Stats()
	if st.Total != 2 || st.Completed != 1 || st.Failed != 1 {
		t.Fatalf("unexpected stats: %+v", st)
	}
	if st.Pending != 0 || st.Running != 0 {
		t.Fatalf("no tasks should remain active: %+v", st)
	}
}

func TestConcurrencyCapHoldsBackExecution(t *testing.T) {
	q := New(Options{MaxConcurrent: 1})
	defer q.Close()

	started := make(chan struct{})
	release := make(chan struct{})
	defer close(release)

	blocker := q.Submit(func(context.Context) (any, error) {
		close(started)
		<-release
		return nil, nil
	}, "blocker")

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("blocker never started")
	}

	// The only slot is now held, so a second submission cannot leave
	// pending until the blocker returns.
	second := q.Submit(func(context.Context) (any, error) { return nil, nil }, "second")
	deadline := time.Now().Add(100 * time.Millisecond)
	for time.Now().Before(deadline) {
		rec, err := q.Status(second)
		if err != nil {
			t.Fatalf("status: %v", err)
		}
		if rec.Status != StatusPending {
			t.Fatalf("capped task left pending while slot held, got %s", rec.Status)
		}
		time.Sleep(5 * time.Millisecond)
	}

	release <- struct{}{}
	if got := waitTerminal(t, q, second); got.Status != StatusCompleted {
		t.Fatalf("expected completed after slot freed, got %s", got.Status)
	}
	if got := waitTerminal(t, q, blocker); got.Status != StatusCompleted {
		t.Fatalf("blocker should complete, got %s", got.Status)
	}
}

func TestCloseFailsCappedPendingTask(t *testing.T) {
	q := New(Options{MaxConcurrent: 1})

	started := make(chan struct{})
	release := make(chan struct{})
	defer close(release)

	q.Submit(func(context.Context) (any, error) {
		close(started)
		<-release
		return nil, nil
	}, "blocker")

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("blocker never started")
	}

	second := q.Submit(func(context.Context) (any, error) { return nil, nil }, "second")

	closed := make(chan struct{})
	go func() {
		q.Close()
		close(closed)
	}()

	rec := waitTerminal(t, q, second)
	if rec.Status != StatusFailed {
		t.Fatalf("capped task should fail on close, got %s", rec.Status)
	}
	if rec.Err == nil || rec.Err.Type != "shutdown" {
		t.Fatalf("unexpected error: %+v", rec.Err)
	}
	if rec.CompletedAt == nil {
		t.Fatal("failed task missing completed_at")
	}
	if rec.StartedAt == nil {
		t.Fatal("failed task missing started_at")
	}
	if rec.CompletedAt.Before(*rec.StartedAt) {
		t.Fatalf("completed_at %v precedes started_at %v", rec.CompletedAt, rec.StartedAt)
	}

	release <- struct{}{}
	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not return after blocker released")
	}
}

func TestBackgroundSweepRemovesTerminalRecords(t *testing.T) {
	q := New(Options{SweepInterval: 20 * time.Millisecond, SweepMaxAge: 0})
	defer q.Close()

	id := q.Submit(func(context.Context) (any, error) { return nil, nil }, "noop")
	waitTerminal(t, q, id)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := q.Status(id); errors.Is(err, ErrNotFound) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("sweep never removed the terminal record")
}
