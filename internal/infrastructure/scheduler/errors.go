package scheduler

import "errors"

var (
	// ErrWorkerNotRunning is returned when submitting to a stopped worker
	ErrWorkerNotRunning = errors.New("scheduler: worker is not running")

	// ErrQueueFull is returned when the job queue is full
	ErrQueueFull = errors.New("scheduler: job queue is full")

	// ErrAlreadyQueued is returned when the order is already queued or being synchronized
	ErrAlreadyQueued = errors.New("scheduler: order is already queued")

	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("scheduler: invalid configuration")

	// ErrScanInProgress is returned when another scan holds the batch lock
	ErrScanInProgress = errors.New("scheduler: scan already in progress")
)
