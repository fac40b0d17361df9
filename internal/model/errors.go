package model

import "errors"

var (
	// ErrInsufficientHistory means a snapshot lacks enough points for an incremental step.
	ErrInsufficientHistory = errors.New("insufficient history")
	// ErrUpstreamUnavailable marks a transient collaborator failure.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrMalformedSnapshot means a snapshot is structurally inconsistent.
	ErrMalformedSnapshot = errors.New("malformed snapshot")
)
