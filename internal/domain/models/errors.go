package models

import "errors"

// Pipeline error taxonomy. Horizon disagreement is deliberately absent:
// it is a non-signal outcome, not an error.
var (
	// ErrInsufficientData marks bar history that does not cover the
	// indicator warm-up for at least one horizon.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrFilterUnavailable marks a signal filter that could not run.
	// Callers degrade to pass-through, never to rejection.
	ErrFilterUnavailable = errors.New("signal filter unavailable")

	// ErrInvalidAccountState marks non-positive equity or leverage.
	ErrInvalidAccountState = errors.New("invalid account state")
)
