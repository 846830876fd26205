package scheduler

import "sync/atomic"

// RunState is the lifecycle of a Scheduler's run loop.
//
//	StateAwake -> StateRunning       [Run()]
//	StateRunning -> StateTerminating [Shutdown()]
//	StateTerminating -> StateTerminated
//
// Grounded on eventloop/state.go's FastState; the Sleeping state of the
// teacher's poller-driven loop is dropped since this scheduler never
// blocks in a syscall poll, only on a buffered wakeup channel or ctx.Done.
type RunState uint64

const (
	StateAwake RunState = iota
	StateRunning
	StateTerminating
	StateTerminated
)

func (s RunState) String() string {
	switch s {
	case StateAwake:
		return "Awake"
	case StateRunning:
		return "Running"
	case StateTerminating:
		return "Terminating"
	case StateTerminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// FastState is a lock-free state machine for RunState transitions.
type FastState struct {
	v atomic.Uint64
}

// NewFastState creates a state machine starting at StateAwake.
func NewFastState() *FastState {
	s := &FastState{}
	s.v.Store(uint64(StateAwake))
	return s
}

// Load returns the current state.
func (s *FastState) Load() RunState {
	return RunState(s.v.Load())
}

// Store unconditionally sets the state.
func (s *FastState) Store(state RunState) {
	s.v.Store(uint64(state))
}

// TryTransition atomically moves from one state to another, returning
// whether it succeeded.
func (s *FastState) TryTransition(from, to RunState) bool {
	return s.v.CompareAndSwap(uint64(from), uint64(to))
}

// CanAcceptWork reports whether new mail/timers may still be queued.
func (s *FastState) CanAcceptWork() bool {
	state := s.Load()
	return state == StateAwake || state == StateRunning
}
