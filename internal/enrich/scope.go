package enrich

import (
	"context"
	"sync"
)

// Scopes tracks the single live run of a pipeline. Beginning a new scope
// cancels the previous one, and a superseded scope can no longer publish.
type Scopes struct {
	mu      sync.Mutex
	current *Scope
	seq     uint64
}

// Scope is one run's cancellation context.
type Scope struct {
	owner  *Scopes
	id     uint64
	ctx    context.Context
	cancel context.CancelFunc
}

// Begin starts a new run derived from parent and cancels the previous one.
func (s *Scopes) Begin(parent context.Context) *Scope {
	ctx, cancel := context.WithCancel(parent)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil {
		s.current.cancel()
	}
	s.seq++
	sc := &Scope{owner: s, id: s.seq, ctx: ctx, cancel: cancel}
	s.current = sc
	return sc
}

// Cancel ends the live run, if any.
func (s *Scopes) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil {
		s.current.cancel()
		s.current = nil
	}
}

// Context is cancelled when the scope is superseded or ended.
func (sc *Scope) Context() context.Context { return sc.ctx }

// Current reports whether sc is still the live run.
func (sc *Scope) Current() bool {
	sc.owner.mu.Lock()
	defer sc.owner.mu.Unlock()
	return sc.live()
}

func (sc *Scope) live() bool {
	return sc.owner.current == sc && sc.ctx.Err() == nil
}

// Publish runs fn only if sc is still live. fn runs under the owner's lock,
// so a concurrent Begin waits for it and nothing stale lands afterwards;
// fn must not block.
func (sc *Scope) Publish(fn func()) bool {
	sc.owner.mu.Lock()
	defer sc.owner.mu.Unlock()
	if !sc.live() {
		return false
	}
	fn()
	return true
}

// End releases the scope's context. Ending a superseded scope is a no-op
// for the live one.
func (sc *Scope) End() {
	sc.owner.mu.Lock()
	defer sc.owner.mu.Unlock()
	sc.cancel()
	if sc.owner.current == sc {
		sc.owner.current = nil
	}
}
