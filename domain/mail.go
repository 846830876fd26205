// Package domain implements the DomainParticipantActor of spec §4.6: the
// entity tree (participant, topic, publisher, subscriber, writer, reader),
// its discovery and transport wiring, and the listener dispatch model.
//
// Every public method that touches shared actor state is realized as a
// closure submitted to the participant's scheduler.Scheduler, rather than as
// an explicit discriminated mail-variant type. A closure captures exactly
// the arguments and one-shot reply channel spec §4.6 describes for "mail,"
// and the scheduler already serializes delivery to a single goroutine per
// participant; introducing a separate tagged union on top would duplicate
// that structure without changing the execution guarantee. submitSync below
// is the one-shot-reply-channel helper every blocking entry point uses.
package domain

import (
	"context"
	"time"

	"github.com/joeycumines/go-rtps/ddserror"
	"github.com/joeycumines/go-rtps/scheduler"
)

// submitSync runs fn on p's run loop goroutine and blocks the caller until
// it completes, returning fn's result. It is the mail-plus-reply-channel
// realization spec §4.6 calls for.
func submitSync[T any](s *scheduler.Scheduler, fn func() T) (T, error) {
	var zero T
	result := make(chan T, 1)
	err := s.Submit(func() {
		result <- fn()
	})
	if err != nil {
		return zero, err
	}
	return <-result, nil
}

// submitSyncErr is submitSync specialized for handlers that only report an
// error, the common shape for create/delete/set-qos operations.
func submitSyncErr(s *scheduler.Scheduler, fn func() error) error {
	v, err := submitSync(s, fn)
	if err != nil {
		return err
	}
	return v
}

// pollUntil implements the poll-and-yield coroutine pattern of spec §9
// "Coroutine control flow": repeatedly evaluates cond (itself a mail round
// trip) until it reports true or timeout elapses, yielding between
// attempts rather than blocking the actor goroutine. Every blocking
// wait_for_* operation is built on this.
func pollUntil(ctx context.Context, timeout time.Duration, cond func() bool) error {
	deadline := time.Now().Add(timeout)
	const pollInterval = 5 * time.Millisecond
	for {
		if cond() {
			return nil
		}
		if !time.Now().Before(deadline) {
			return ddserror.ErrTimeout
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}
