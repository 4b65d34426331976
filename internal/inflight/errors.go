package inflight

import "errors"

var (
	// ErrSuperseded is the cancellation cause of a call replaced by a newer
	// call with the same key.
	ErrSuperseded = errors.New("inflight: superseded by a newer call")

	// ErrCanceled is the cancellation cause of a call cancelled through
	// Cancel or CancelAll.
	ErrCanceled = errors.New("inflight: canceled")
)
