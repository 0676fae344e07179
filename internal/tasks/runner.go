// Package tasks runs detached best-effort work whose outcome only ever reaches the log.
package tasks

import (
	"context"
	"sync"
	"time"

	"github.com/onepointalo/alo/internal/logging"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Task is a unit of background work. A returned error is logged as non-critical.
type Task func(ctx context.Context) error

// Scheduler accepts detached tasks. *Runner satisfies it.
type Scheduler interface {
	Go(name string, fn Task) bool
}

var _ Scheduler = (*Runner)(nil)

// Runner executes tasks on a bounded errgroup. A task never fails the group,
// so one failure does not cancel its siblings.
type Runner struct {
	group   errgroup.Group
	ctx     context.Context
	cancel  context.CancelFunc
	log     zerolog.Logger
	timeout time.Duration

	mu     sync.Mutex
	closed bool
}

// RunnerOption defines a function type to modify the Runner instance.
type RunnerOption func(*Runner)

// WithTimeout bounds each task's context.
func WithTimeout(d time.Duration) RunnerOption {
	return func(r *Runner) {
		r.timeout = d
	}
}

func NewRunner(log zerolog.Logger, limit int, options ...RunnerOption) *Runner {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Runner{
		ctx:    ctx,
		cancel: cancel,
		log:    logging.Component(log, "tasks"),
	}
	if limit > 0 {
		r.group.SetLimit(limit)
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

// Go schedules fn without waiting for it. It reports false when the runner is
// closed or saturated, in which case the task is dropped.
func (r *Runner) Go(name string, fn Task) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		r.log.Warn().Str("task", name).Bool("non_critical", true).Msg("runner closed, task dropped (non-critical)")
		return false
	}

	started := r.group.TryGo(func() error {
		ctx := r.ctx
		if r.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, r.timeout)
			defer cancel()
		}
		if err := fn(ctx); err != nil {
			logging.NonCritical(r.log, err).Str("task", name).Msg("background task failed (non-critical)")
		}
		return nil
	})
	if !started {
		r.log.Warn().Str("task", name).Bool("non_critical", true).Msg("runner saturated, task dropped (non-critical)")
	}
	return started
}

// Wait blocks until every scheduled task has finished.
func (r *Runner) Wait() {
	_ = r.group.Wait()
}

// Shutdown stops accepting tasks and waits for running ones until ctx is done,
// after which their contexts are cancelled.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.Wait()
		close(done)
	}()

	defer r.cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
