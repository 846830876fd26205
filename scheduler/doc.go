// Package scheduler provides the single-goroutine run loop that drives one
// DomainParticipantActor: a mutex-guarded mailbox queue for cross-goroutine
// submissions (the per-socket blocking-recv goroutines, and any other
// caller), plus a min-heap of timers for heartbeat, deadline, lifespan, and
// lease-duration expiry (spec §5).
//
// # Architecture
//
// [Scheduler] owns a [FastState] lifecycle (Awake -> Running -> Terminating
// -> Terminated) and a single goroutine that alternates between draining the
// mailbox queue and firing any timers whose deadline has elapsed, sleeping on
// a wakeup channel in between. All mail and all timer callbacks run on that
// one goroutine, giving the actor they drive a single-threaded execution
// guarantee without additional locking (spec §5 "single active goroutine per
// actor").
//
// # Submission
//
// [Scheduler.Submit] may be called from any goroutine and enqueues a
// callback for the run loop to execute in FIFO order relative to other
// Submit calls and fired timers. [Scheduler.ScheduleTimer] registers a
// one-shot timer; the returned [TimerHandle] can be passed to
// [Scheduler.CancelTimer] before it fires.
package scheduler
