package errors

import "errors"

var (
	ErrNotFound = errors.New("reservation not found")

	// ErrStatusChanged is returned by guarded writes when the stored record no
	// longer matches what the caller read.
	ErrStatusChanged = errors.New("reservation was modified concurrently")

	ErrLockTimeout = errors.New("timed out waiting for room lock")

	ErrNoTransaction = errors.New("locked read requires a transaction")

	ErrInvalidDateRange = errors.New("end date has to be at least 1 day after start date")
)
