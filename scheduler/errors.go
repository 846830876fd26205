package scheduler

import "errors"

// Sentinel errors for the run loop, mirroring eventloop/errors.go's
// sentinel-plus-wrap style but trimmed to what this scheduler's state
// machine can actually produce.
var (
	// ErrSchedulerAlreadyRunning is returned when Run is called twice.
	ErrSchedulerAlreadyRunning = errors.New("scheduler: already running")

	// ErrSchedulerTerminated is returned when Submit/ScheduleTimer/Run is
	// called after Shutdown has completed (or begun, for Submit/ScheduleTimer).
	ErrSchedulerTerminated = errors.New("scheduler: terminated")
)
