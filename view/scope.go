// Package view ties background work to the lifetime of one view. Everything
// started on a Scope stops when the view closes, and no state update runs
// after Close returns.
package view

import (
	"context"
	"errors"
	"runtime/debug"
	"sync"
	"time"

	logger "github.com/sirupsen/logrus"
)

// ErrClosed is returned by Update once the scope has closed.
var ErrClosed = errors.New("view: scope closed")

// Scope is one mounted view.
type Scope struct {
	name   string
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex // held while an update runs and while closing
	mounted bool
	wg      sync.WaitGroup
	onPanic func(r any)
}

// Mount opens a scope whose context is derived from parent.
func Mount(parent context.Context, name string) *Scope {
	ctx, cancel := context.WithCancel(parent)
	return &Scope{name: name, ctx: ctx, cancel: cancel, mounted: true}
}

// Context is cancelled when the scope closes. In-flight requests started by
// the view should use it.
func (s *Scope) Context() context.Context { return s.ctx }

func (s *Scope) Name() string { return s.name }

// Mounted reports whether the scope is still open.
func (s *Scope) Mounted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mounted && s.ctx.Err() == nil
}

// Update runs fn only while the scope is mounted. Close waits for a running
// fn, so after Close returns no fn can start.
func (s *Scope) Update(fn func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.mounted || s.ctx.Err() != nil {
		return ErrClosed
	}
	fn()
	return nil
}

// OnPanic sets the hook run when a goroutine started with Go panics. The
// scope is already unmounted when fn runs.
func (s *Scope) OnPanic(fn func(r any)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onPanic = fn
}

// Go runs fn in a goroutine owned by the scope. Close waits for it. A panic
// in fn unmounts the scope instead of crashing the process.
func (s *Scope) Go(fn func(ctx context.Context)) {
	s.mu.Lock()
	if !s.mounted {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		defer s.rescue()
		fn(s.ctx)
	}()
}

// rescue recovers a panicking scope goroutine. It cancels the scope without
// waiting, since the caller is one of the goroutines Close waits for.
func (s *Scope) rescue() {
	r := recover()
	if r == nil {
		return
	}
	s.mu.Lock()
	s.mounted = false
	s.cancel()
	hook := s.onPanic
	s.mu.Unlock()

	if hook != nil {
		hook(r)
		return
	}
	logger.WithFields(logger.Fields{
		"view":  s.name,
		"panic": r,
		"stack": string(debug.Stack()),
	}).Error("recovered panic")
}

// Every runs fn now and then on every tick of period until the scope
// closes. Errors are logged and polling continues.
func (s *Scope) Every(period time.Duration, fn func(ctx context.Context) error) {
	if period <= 0 {
		period = time.Minute
	}
	s.Go(func(ctx context.Context) {
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		for {
			if err := fn(ctx); err != nil && ctx.Err() == nil {
				logger.WithError(err).WithField("view", s.name).Warn("poll failed")
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	})
}

// Close unmounts the view: it cancels the context, blocks until no update is
// running, then waits for every goroutine started with Go. Close is
// idempotent.
func (s *Scope) Close() {
	s.mu.Lock()
	if !s.mounted {
		s.mu.Unlock()
		s.wg.Wait()
		return
	}
	s.mounted = false
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()
	logger.WithField("view", s.name).Debug("view closed")
}
