package task

import (
	"context"
	"errors"
	"fmt"
	"log"
	"runtime/debug"
	"sync"
	"time"

	"financial-rag/internal/telemetry"
)

// Op is the unit of work submitted to the queue. The HTTP layer binds its
// arguments via closure before submitting; the runner treats it as a black
// box that produces a value or an error.
type Op func(ctx context.Context) (any, error)

// runner executes submitted operations out of band and drives their records
// through running into a terminal state. A failing operation, including one
// that panics, never propagates past execute.
type runner struct {
	store *store
	sem   chan struct{} // nil means unbounded
	wg    sync.WaitGroup
}

func newRunner(st *store, maxConcurrent int) *runner {
	r := &runner{store: st}
	if maxConcurrent > 0 {
		r.sem = make(chan struct{}, maxConcurrent)
	}
	return r
}

// execute runs exactly once per submitted task. With a concurrency cap the
// task stays pending until a slot frees; running is stamped the instant the
// operation is about to be invoked.
func (r *runner) execute(ctx context.Context, id string, op Op) {
	defer r.wg.Done()

	if r.sem != nil {
		select {
		case r.sem <- struct{}{}:
			defer func() { <-r.sem }()
		case <-ctx.Done():
			r.finishFailed(id, &ExecError{
				Type:    "shutdown",
				Message: "queue closed before execution began",
				Trace:   ctx.Err().Error(),
			})
			return
		}
	}

	started := time.Now().UTC()
	r.store.update(id, func(rec *Record) {
		rec.Status = StatusRunning
		rec.StartedAt = &started
	})
	telemetry.TasksInFlight.Inc()
	defer telemetry.TasksInFlight.Dec()

	result, err := invoke(ctx, op)
	if err != nil {
		r.finishFailed(id, execErrorFrom(err))
		log.Printf("task %s failed: %v", id, err)
		telemetry.TasksFailed.Inc()
		return
	}

	completed := time.Now().UTC()
	r.store.update(id, func(rec *Record) {
		rec.Status = StatusCompleted
		rec.Result = result
		rec.CompletedAt = &completed
	})
	telemetry.TasksCompleted.Inc()
}

func (r *runner) finishFailed(id string, execErr *ExecError) {
	completed := time.Now().UTC()
	r.store.update(id, func(rec *Record) {
		rec.Status = StatusFailed
		rec.Err = execErr
		// A task failed before its operation ran still records a start:
		// completed_at is never set without started_at.
		if rec.StartedAt == nil {
			rec.StartedAt = &completed
		}
		rec.CompletedAt = &completed
	})
}

// invoke calls op, converting a panic into an error so a misbehaving
// operation cannot take down the runner or any other task.
func invoke(ctx context.Context, op Op) (result any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &panicError{value: rec, stack: debug.Stack()}
		}
	}()
	return op(ctx)
}

type panicError struct {
	value any
	stack []byte
}

func (e *panicError) Error() string {
	return fmt.Sprintf("panic: %v", e.value)
}

func execErrorFrom(err error) *ExecError {
	var pe *panicError
	if errors.As(err, &pe) {
		return &ExecError{
			Type:    "panic",
			Message: fmt.Sprint(pe.value),
			Trace:   string(pe.stack),
		}
	}
	trace := err.Error()
	for cause := errors.Unwrap(err); cause != nil; cause = errors.Unwrap(cause) {
		trace += "\ncaused by: " + cause.Error()
	}
	return &ExecError{
		Type:    fmt.Sprintf("%T", err),
		Message: err.Error(),
		Trace:   trace,
	}
}
