// Package task manages the goroutines a terminal runs on behalf of its transport:
// reader loops, writer loops and the notification dispatcher.
package task

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arloliu/go-terminal/internal/pool"
	"github.com/arloliu/go-terminal/logger"
)

// ErrStopped is returned when starting a task on a stopped Manager.
var ErrStopped = errors.New("task: manager stopped")

// Func is a task body executed repeatedly. It returns false to end the task.
type Func func(ctx context.Context) bool

// Manager manages the lifecycle of goroutines.
//
// Tasks observe the manager context; Stop cancels it and Wait blocks until every
// task returned. After Stop and Wait, Reset re-arms the manager so that a terminal
// can be restarted.
//
// Example Usage:
//
//	mgr := task.NewManager(ctx, logger)
//	_ = mgr.Loop("reader", func(ctx context.Context) bool {
//	    // ... read once ...
//	    return true
//	})
//	mgr.Stop()
//	mgr.Wait()
type Manager struct {
	pctx   context.Context
	logger logger.Logger

	mu      sync.RWMutex // protects ctx, cancel and stopped
	ctx     context.Context
	cancel  context.CancelFunc
	stopped bool

	wg    sync.WaitGroup
	count atomic.Int32
}

// NewManager creates a Manager whose tasks are bound to ctx.
func NewManager(ctx context.Context, l logger.Logger) *Manager {
	mgr := &Manager{pctx: ctx, logger: l}
	mgr.ctx, mgr.cancel = context.WithCancel(ctx)

	return mgr
}

// Context returns the context tasks currently run under.
func (mgr *Manager) Context() context.Context {
	mgr.mu.RLock()
	defer mgr.mu.RUnlock()

	return mgr.ctx
}

// Go runs fn once in a new goroutine.
func (mgr *Manager) Go(name string, fn func(ctx context.Context)) error {
	ctx, err := mgr.add()
	if err != nil {
		return fmt.Errorf("start %s: %w", name, err)
	}

	mgr.logger.Debug("start task", "name", name)

	go func() {
		defer mgr.done(name)
		defer func() {
			if r := recover(); r != nil {
				mgr.logger.Error("panic in task", "name", name, "panic", r)
			}
		}()

		fn(ctx)
	}()

	return nil
}

// Loop runs fn repeatedly until it returns false or the manager is stopped.
func (mgr *Manager) Loop(name string, fn Func) error {
	return mgr.Go(name, func(ctx context.Context) {
		for {
			select {
			case <-ctx.Done():
				return
			default:
				if !fn(ctx) {
					return
				}
			}
		}
	})
}

// Recover calls fn and reports whether it panicked. The panic is logged and swallowed.
func (mgr *Manager) Recover(name string, fn func()) (panicked bool) {
	defer func() {
		if r := recover(); r != nil {
			panicked = true
			mgr.logger.Error("panic in callback", "name", name, "panic", r)
		}
	}()

	fn()

	return false
}

// Stop cancels the context of all running tasks. New tasks are rejected until Reset.
func (mgr *Manager) Stop() {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()

	mgr.stopped = true
	mgr.cancel()
}

// Wait blocks until all tasks have returned.
func (mgr *Manager) Wait() {
	mgr.wg.Wait()
}

// WaitTimeout waits like Wait but gives up after d. It returns false on timeout.
func (mgr *Manager) WaitTimeout(d time.Duration) bool {
	doneCh := make(chan struct{})
	go func() {
		mgr.wg.Wait()
		close(doneCh)
	}()

	timer := pool.GetTimer(d)
	defer pool.PutTimer(timer)

	select {
	case <-doneCh:
		return true
	case <-timer.C:
		return false
	}
}

// Reset re-creates the task context after Stop so new tasks can be started.
// It has no effect on a manager that is not stopped or whose parent context ended.
func (mgr *Manager) Reset() {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()

	if !mgr.stopped || mgr.pctx.Err() != nil {
		return
	}
	mgr.ctx, mgr.cancel = context.WithCancel(mgr.pctx)
	mgr.stopped = false
}

// TaskCount returns the number of running tasks.
func (mgr *Manager) TaskCount() int {
	return int(mgr.count.Load())
}

func (mgr *Manager) add() (context.Context, error) {
	mgr.mu.RLock()
	defer mgr.mu.RUnlock()

	if mgr.stopped {
		return nil, ErrStopped
	}
	if err := mgr.ctx.Err(); err != nil {
		return nil, err
	}

	mgr.wg.Add(1)
	mgr.count.Add(1)

	return mgr.ctx, nil
}

func (mgr *Manager) done(name string) {
	mgr.count.Add(-1)
	mgr.logger.Debug("task terminated", "name", name, "task_count", mgr.TaskCount())
	mgr.wg.Done()
}
