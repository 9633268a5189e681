package task

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"financial-rag/internal/telemetry"
)

// ErrNotFound is returned for ids that were never issued or have since been
// cleaned. The two cases are indistinguishable on purpose.
var ErrNotFound = errors.New("task not found")

// Options configures a Queue. The zero value gives unbounded concurrency
// and no background sweep, matching the reference behavior.
type Options struct {
	// MaxConcurrent caps how many operations run at once. Zero means no cap.
	MaxConcurrent int
	// SweepInterval, when positive, runs Clean(SweepMaxAge) periodically in
	// the background so terminal records do not accumulate forever.
	SweepInterval time.Duration
	// SweepMaxAge is the age threshold for the background sweep.
	SweepMaxAge time.Duration
}

// Stats is a point-in-time census over the store. It is a snapshot, not a
// linearizable view; good enough for dashboards.
type Stats struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Running   int `json:"running"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// Queue tracks background operations: submit returns an id immediately,
// status is polled, terminal records are garbage-collected by age.
// Construct one per process and inject it where needed.
type Queue struct {
	store  *store
	runner *runner
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// New builds a Queue and, if configured, starts its sweep goroutine.
func New(opts Options) *Queue {
	ctx, cancel := context.WithCancel(context.Background())
	st := newStore()
	q := &Queue{
		store:  st,
		runner: newRunner(st, opts.MaxConcurrent),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	if opts.SweepInterval > 0 {
		go q.sweep(opts.SweepInterval, opts.SweepMaxAge)
	} else {
		close(q.done)
	}
	return q
}

// Submit registers op under a fresh id and schedules it for background
// execution. It returns without waiting on any part of the operation.
func (q *Queue) Submit(op Op, label string) string {
	id := uuid.New().String()
	q.store.insert(&Record{
		ID:        id,
		Op:        label,
		Status:    StatusPending,
		CreatedAt: time.Now().UTC(),
	})
	q.runner.wg.Add(1)
	go q.runner.execute(q.ctx, id, op)
	telemetry.TasksSubmitted.Inc()
	log.Printf("task %s submitted: %s", id, label)
	return id
}

// Status returns a copy of the current record for id.
func (q *Queue) Status(id string) (Record, error) {
	rec, ok := q.store.get(id)
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

// List returns all current records, optionally restricted to one status.
// Order is unspecified.
func (q *Queue) List(status Status) []Record {
	if status == "" {
		return q.store.list(nil)
	}
	return q.store.list(func(rec *Record) bool { return rec.Status == status })
}

// Clean removes terminal records whose completion is older than maxAge and
// returns how many were removed. Pending and running records are never
// touched regardless of age.
func (q *Queue) Clean(maxAge time.Duration) int {
	cutoff := time.Now().UTC().Add(-maxAge)
	removed := q.store.deleteWhere(func(rec *Record) bool {
		return rec.Status.Terminal() && rec.CompletedAt != nil && rec.CompletedAt.Before(cutoff)
	})
	if removed > 0 {
		log.Printf("task queue: cleaned %d records older than %s", removed, maxAge)
	}
	return removed
}

// Stats counts records by status.
func (q *Queue) Stats() Stats {
	var st Stats
	for _, rec := range q.store.list(nil) {
		st.Total++
		switch rec.Status {
		case StatusPending:
			st.Pending++
		case StatusRunning:
			st.Running++
		case StatusCompleted:
			st.Completed++
		case StatusFailed:
			st.Failed++
		}
	}
	return st
}

// Close stops the sweep goroutine and waits for in-flight operations to
// settle. Operations still pending behind a concurrency cap are failed
// rather than started.
func (q *Queue) Close() {
	q.cancel()
	<-q.done
	q.runner.wg.Wait()
}

func (q *Queue) sweep(interval, maxAge time.Duration) {
	defer close(q.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-q.ctx.Done():
			return
		case <-ticker.C:
			q.Clean(maxAge)
		}
	}
}
