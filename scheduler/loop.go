package scheduler

import (
	"container/heap"
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// TimerHandle identifies a scheduled timer for cancellation.
type TimerHandle uint64

// timerEntry is one scheduled callback in the min-heap, ordered by when.
type timerEntry struct {
	handle    TimerHandle
	when      time.Time
	fn        func()
	cancelled bool
}

// timerHeap is a min-heap of timerEntry ordered by deadline, grounded on
// eventloop/loop.go's container/heap-based timer queue.
type timerHeap []*timerEntry

func (h timerHeap) Len() int            { return len(h) }
func (h timerHeap) Less(i, j int) bool  { return h[i].when.Before(h[j].when) }
func (h timerHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *timerHeap) Push(x any)         { *h = append(*h, x.(*timerEntry)) }
func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return x
}

// Scheduler is the single-goroutine run loop of spec §5: one goroutine
// processes mail and fired timers serially, giving its owner (a
// DomainParticipantActor) a lock-free single-threaded execution model.
type Scheduler struct { // betteralign:ignore
	state *FastState

	mu      sync.Mutex
	mailbox *ChunkedQueue
	timers  timerHeap
	nextID  atomic.Uint64
	byID    map[TimerHandle]*timerEntry

	wake chan struct{}
	done chan struct{}

	Logger *Logger
}

// New constructs a Scheduler in the Awake state; call Run to start
// processing.
func New() *Scheduler {
	return &Scheduler{
		state:   NewFastState(),
		mailbox: NewChunkedQueue(),
		byID:    make(map[TimerHandle]*timerEntry),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

// Submit enqueues fn for execution on the run loop goroutine, safe to call
// from any goroutine (spec §5: per-socket recv goroutines forward parsed
// datagrams this way).
func (s *Scheduler) Submit(fn func()) error {
	if !s.state.CanAcceptWork() {
		return ErrSchedulerTerminated
	}
	s.mu.Lock()
	s.mailbox.Push(fn)
	s.mu.Unlock()
	s.signalWake()
	return nil
}

// ScheduleTimer registers fn to run once after delay has elapsed, on the
// run loop goroutine. The returned handle may be passed to CancelTimer.
func (s *Scheduler) ScheduleTimer(delay time.Duration, fn func()) (TimerHandle, error) {
	if !s.state.CanAcceptWork() {
		return 0, ErrSchedulerTerminated
	}
	id := TimerHandle(s.nextID.Add(1))
	e := &timerEntry{handle: id, when: time.Now().Add(delay), fn: fn}
	s.mu.Lock()
	heap.Push(&s.timers, e)
	s.byID[id] = e
	s.mu.Unlock()
	s.signalWake()
	return id, nil
}

// CancelTimer prevents a pending timer from firing. It is a no-op if the
// timer already fired or was already cancelled.
func (s *Scheduler) CancelTimer(h TimerHandle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.byID[h]; ok {
		e.cancelled = true
		delete(s.byID, h)
	}
}

func (s *Scheduler) signalWake() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Run blocks until ctx is cancelled or Shutdown is called, draining the
// mailbox and firing elapsed timers as they come due.
func (s *Scheduler) Run(ctx context.Context) error {
	if !s.state.TryTransition(StateAwake, StateRunning) {
		if s.state.Load() == StateTerminated {
			return ErrSchedulerTerminated
		}
		return ErrSchedulerAlreadyRunning
	}
	defer close(s.done)

	for {
		if s.drainOnce() {
			continue
		}
		if s.state.Load() == StateTerminated {
			return nil
		}

		wait := s.nextTimerWait()
		select {
		case <-ctx.Done():
			s.state.Store(StateTerminated)
			return ctx.Err()
		case <-s.wake:
			continue
		case <-time.After(wait):
			continue
		}
	}
}

// drainOnce pops and runs one piece of mail or one elapsed timer, in that
// priority order (mail before timers, matching the teacher's macrotask
// ordering in eventloop/loop.go), and reports whether there is more work
// without waiting.
func (s *Scheduler) drainOnce() bool {
	s.mu.Lock()
	fn, ok := s.mailbox.Pop()
	if !ok {
		fn, ok = s.popDueTimer()
	}
	terminating := s.state.Load() == StateTerminating
	empty := !ok && s.mailbox.Length() == 0 && s.timers.Len() == 0
	s.mu.Unlock()

	if terminating && empty {
		s.state.Store(StateTerminated)
		return false
	}
	if !ok {
		return false
	}
	s.runSafely(fn)
	return true
}

// popDueTimer pops and returns the callback of the earliest timer if its
// deadline has passed. Caller must hold s.mu.
func (s *Scheduler) popDueTimer() (func(), bool) {
	for s.timers.Len() > 0 {
		e := s.timers[0]
		if e.cancelled {
			heap.Pop(&s.timers)
			continue
		}
		if e.when.After(time.Now()) {
			return nil, false
		}
		heap.Pop(&s.timers)
		delete(s.byID, e.handle)
		return e.fn, true
	}
	return nil, false
}

// nextTimerWait returns how long to sleep before the earliest pending
// timer is due, capped so a Submit/Shutdown wakeup is never delayed more
// than a second.
func (s *Scheduler) nextTimerWait() time.Duration {
	const maxWait = time.Second
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.timers.Len() > 0 {
		e := s.timers[0]
		if e.cancelled {
			heap.Pop(&s.timers)
			continue
		}
		d := time.Until(e.when)
		if d <= 0 {
			return 0
		}
		if d > maxWait {
			return maxWait
		}
		return d
	}
	return maxWait
}

func (s *Scheduler) runSafely(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			if s.Logger != nil {
				s.Logger.Err().Str("panic", "recovered").Log("scheduler: recovered panic in run loop callback")
			}
		}
	}()
	fn()
}

// Shutdown requests the run loop stop once its mailbox and timers drain,
// blocking until Run returns or ctx expires.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	for {
		cur := s.state.Load()
		if cur == StateTerminated {
			return nil
		}
		if cur == StateTerminating {
			break
		}
		if s.state.TryTransition(cur, StateTerminating) {
			if cur == StateAwake {
				s.state.Store(StateTerminated)
				return nil
			}
			break
		}
	}
	s.signalWake()
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
