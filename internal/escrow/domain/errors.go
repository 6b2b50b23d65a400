package domain

import "errors"

var (
	// ErrInvalidParams is returned when creation or resolution arguments
	// fail validation before any state is touched.
	ErrInvalidParams = errors.New("invalid parameters")

	// ErrInvalidJobID is returned when a job id is zero, negative, or
	// exceeds the allocated counter.
	ErrInvalidJobID = errors.New("invalid job id")

	// ErrInvalidState is returned when a job is not in the exact status an
	// operation requires.
	ErrInvalidState = errors.New("job is not in the required status")

	// ErrUnauthorized is returned when the caller does not hold the role an
	// operation requires.
	ErrUnauthorized = errors.New("caller is not authorized for this operation")

	// ErrAlreadyAssigned is returned when applying to a job whose
	// contractor is already set.
	ErrAlreadyAssigned = errors.New("job already has a contractor")

	// ErrDeadlineExceeded is returned when delivery is attempted after the
	// job deadline.
	ErrDeadlineExceeded = errors.New("delivery deadline exceeded")

	// ErrTimeNotElapsed is returned when a time-gated operation is invoked
	// before its precondition holds.
	ErrTimeNotElapsed = errors.New("required time has not elapsed")

	// ErrTransferFailed is returned when the custody adapter reports a
	// failed transfer. The enclosing operation rolls back entirely.
	ErrTransferFailed = errors.New("asset transfer failed")

	// ErrReentrantCall is returned when a fund-moving operation is entered
	// while another one is already in flight.
	ErrReentrantCall = errors.New("reentrant call into a fund-moving operation")
)
