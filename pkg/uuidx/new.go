// Package uuidx generates the time-ordered identifiers used for runs and frames.
package uuidx

import "github.com/google/uuid"

// New returns a version 7 UUID. Version 7 ids sort by creation time, which
// keeps frame ids of one run in push order.
func New() uuid.UUID {
	return uuid.Must(uuid.NewV7())
}

// NewString returns New formatted as a string.
func NewString() string {
	return New().String()
}

// Short returns the first eight hex digits of id, enough to tell frames of a
// single run apart in log lines.
func Short(id uuid.UUID) string {
	return id.String()[:8]
}
