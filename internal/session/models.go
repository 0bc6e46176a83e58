package session

import (
	"context"
	"sync"
	"time"
)

// State is the pipeline stage a session currently occupies.
type State string

const (
	StateIdle       State = "idle"
	StateFetching   State = "fetching"
	StateProcessing State = "processing"
	StateGenerating State = "generating"
)

// Document records one generated certificate PDF.
type Document struct {
	Identifier string
	Path       string
}

// Session is the in-memory handle for one user's isolated working set. Record
// data lives in the store's database; the handle carries identity, the private
// directories, and the primitives serializing this user's pipeline stages.
type Session struct {
	UserID    string
	Dir       string
	PDFDir    string
	CreatedAt time.Time

	// stageMu guarantees at most one of fetch, process, or generate runs for
	// this session at any time. Different sessions proceed fully in parallel.
	stageMu sync.Mutex

	mu       sync.Mutex
	state    State
	lastUsed time.Time
	cancel   context.CancelFunc
}

// Acquire blocks until this session's stage slot is free.
func (s *Session) Acquire() { s.stageMu.Lock() }

// Release frees the stage slot.
func (s *Session) Release() { s.stageMu.Unlock() }

// State returns the session's current pipeline state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SetState moves the session to the given state and refreshes its activity
// timestamp, which the sweeper uses to detect abandonment.
func (s *Session) SetState(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	s.lastUsed = time.Now()
}

// LastUsed reports the last state transition time.
func (s *Session) LastUsed() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

// BeginRun derives a cancelable context for an in-flight pipeline run and
// remembers its cancel function so AbortRun can interrupt it.
func (s *Session) BeginRun(ctx context.Context) context.Context {
	runCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()
	return runCtx
}

// EndRun clears the stored cancel function after a run finishes.
func (s *Session) EndRun() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.mu.Unlock()
}

// AbortRun cancels the in-flight run, if any. In-flight browser operations
// abort rather than run to completion.
func (s *Session) AbortRun() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}
