package service

import "errors"

var (
	// ErrUnknownStep rejects progress or arrangement writes against a step
	// id missing from the catalogue.
	ErrUnknownStep = errors.New("unknown step")

	// ErrReorderConflict is returned after the optimistic-retry budget for
	// a reorder is exhausted.
	ErrReorderConflict = errors.New("arrangement changed concurrently, reorder not applied")
)
