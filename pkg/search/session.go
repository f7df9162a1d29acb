// ABOUTME: Session serializing interactive searches with last-request-wins
// ABOUTME: Submitting a new search cancels the one still in flight

package search

import (
	"context"
	"sync"
)

// Outcome carries the result of one submitted search.
type Outcome struct {
	Results []Result
	Err     error
}

// Session runs searches one submission at a time from the caller's view:
// submitting a new search cancels the previous one, whose outcome reports
// context.Canceled. Each submission gets its own outcome channel.
type Session struct {
	engine *Engine

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewSession wraps an engine in a last-request-wins submission boundary.
func NewSession(engine *Engine) *Session {
	return &Session{engine: engine}
}

// Submit starts a search and cancels any search still in flight. The
// returned channel delivers exactly one Outcome, then closes.
func (s *Session) Submit(ctx context.Context, f Filters) <-chan Outcome {
	ctx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.cancel = cancel
	s.mu.Unlock()

	out := make(chan Outcome, 1)
	go func() {
		defer cancel()
		defer close(out)
		results, err := s.engine.Search(ctx, f)
		out <- Outcome{Results: results, Err: err}
	}()
	return out
}

// Close cancels any search still in flight. The session remains usable.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}
