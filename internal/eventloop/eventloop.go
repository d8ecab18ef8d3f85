// Package eventloop runs every state mutation of the viewer on a single goroutine.
// Network calls run elsewhere and hand their results back through Post.
package eventloop

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"mapping-viewer/internal/common/logger"
)

// ErrStopped is returned by Do once the loop has exited.
var ErrStopped = errors.New("EVENT_LOOP_STOPPED")

// Scheduler is the surface components use to queue work and timers.
type Scheduler interface {
	// Post queues fn to run on the loop after the currently running task.
	Post(fn func())
	// After runs fn on the loop once d has elapsed. cancel is safe to call at any time.
	After(d time.Duration, fn func()) (cancel func())
	// Spawn runs blocking work off the loop. fn must Post anything that touches loop state.
	Spawn(fn func())
}

// Fetch runs call off the loop and delivers its result to done on the loop.
func Fetch[T any](s Scheduler, ctx context.Context, call func(context.Context) (T, error), done func(T, error)) {
	s.Spawn(func() {
		v, err := call(ctx)
		s.Post(func() { done(v, err) })
	})
}

// Loop is the production Scheduler.
type Loop struct {
	logger logger.Logger

	mu      sync.Mutex
	queue   []func()
	wake    chan struct{}
	stopped chan struct{}
}

func New(log logger.Logger) *Loop {
	return &Loop{
		logger:  logger.ForComponent(log, "eventloop"),
		wake:    make(chan struct{}, 1),
		stopped: make(chan struct{}),
	}
}

func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *Loop) After(d time.Duration, fn func()) func() {
	var (
		mu       sync.Mutex
		canceled bool
	)
	t := time.AfterFunc(d, func() {
		l.Post(func() {
			mu.Lock()
			skip := canceled
			mu.Unlock()
			if !skip {
				fn()
			}
		})
	})
	return func() {
		mu.Lock()
		canceled = true
		mu.Unlock()
		t.Stop()
	}
}

func (l *Loop) Spawn(fn func()) {
	go fn()
}

// Run processes tasks until ctx ends. It must be called exactly once.
func (l *Loop) Run(ctx context.Context) {
	defer close(l.stopped)

	for {
		select {
		case <-ctx.Done():
			l.logger.Debug("event loop stopped", map[string]interface{}{"reason": ctx.Err().Error()})
			return
		case <-l.wake:
			for {
				l.mu.Lock()
				if len(l.queue) == 0 {
					l.mu.Unlock()
					break
				}
				task := l.queue[0]
				l.queue[0] = nil
				l.queue = l.queue[1:]
				l.mu.Unlock()

				l.runTask(task)

				if ctx.Err() != nil {
					break
				}
			}
		}
	}
}

func (l *Loop) runTask(task func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("task panicked", map[string]interface{}{"panic": fmt.Sprint(r)})
		}
	}()
	task()
}

// Do runs fn on the loop and waits for it to finish.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	l.Post(func() {
		defer close(done)
		fn()
	})
	select {
	case <-done:
		return nil
	case <-l.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}
