package coordinator

import (
	"context"
	"sync"
)

// Session tracks the one cancellable operation of an interactive session.
// Begin replaces the tracked operation without cancelling the previous one;
// Abort cancels whatever is tracked at that moment.
type Session struct {
	mu      sync.Mutex
	seq     uint64
	current uint64
	cancel  context.CancelFunc
	closed  bool
}

// NewSession creates an idle session.
func NewSession() *Session {
	return &Session{}
}

// Begin derives a cancellable context from parent and tracks it. The
// returned release func must be called when the operation ends; it cancels
// the context and stops tracking it if it is still current. After Close,
// Begin returns an already cancelled context.
func (s *Session) Begin(parent context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		cancel()
		return ctx, func() {}
	}

	s.seq++
	id := s.seq
	s.current = id
	s.cancel = cancel

	return ctx, func() {
		cancel()
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.current == id {
			s.current = 0
			s.cancel = nil
		}
	}
}

// Abort cancels the tracked operation and reports whether there was one.
func (s *Session) Abort() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel == nil {
		return false
	}
	s.cancel()
	s.cancel = nil
	s.current = 0
	return true
}

// Active reports whether an operation is tracked.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// Close aborts the tracked operation and refuses new ones.
func (s *Session) Close() {
	s.Abort()
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}
