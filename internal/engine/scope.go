package engine

import (
	"context"
	"errors"
	"sync"
)

// ErrScopeClosed is returned for results that arrive after their scope was
// closed. The result itself is discarded.
var ErrScopeClosed = errors.New("scope closed before the response arrived")

// Scope ties in-flight loads to the lifetime of one screen. Closing it
// cancels pending requests and drops late results.
type Scope struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
}

// NewScope opens a scope under parent.
func NewScope(parent context.Context) *Scope {
	ctx, cancel := context.WithCancel(parent)
	return &Scope{ctx: ctx, cancel: cancel}
}

// Context is the context loads in this scope run under.
func (s *Scope) Context() context.Context { return s.ctx }

// Close cancels the scope. It is safe to call more than once.
func (s *Scope) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cancel()
}

// Closed reports whether Close was called or the parent context ended.
func (s *Scope) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed || s.ctx.Err() != nil
}

// Load runs fn within the scope and delivers its result only if the scope is
// still open when fn returns.
func Load[T any](s *Scope, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if s.Closed() {
		return zero, ErrScopeClosed
	}
	v, err := fn(s.ctx)
	if s.Closed() {
		return zero, ErrScopeClosed
	}
	return v, err
}
