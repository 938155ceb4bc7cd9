package api

import (
	"errors"
	"fmt"
)

// Classification tags how a keyword failure affects the rest of the run.
// Acting on it is left to the step executor.
type Classification string

const (
	// Failure is an ordinary keyword failure.
	Failure Classification = "failure"
	// Fatal failures ask the runner to stop the whole run.
	Fatal Classification = "fatal"
	// Continuable failures let the current test go on.
	Continuable Classification = "continuable"
	// Panic marks a recovered panic in keyword code.
	Panic Classification = "panic"
)

type classified struct {
	class Classification
	err   error
}

func (c *classified) Error() string                  { return c.err.Error() }
func (c *classified) Unwrap() error                  { return c.err }
func (c *classified) Classification() Classification { return c.class }

// FatalError marks err as fatal to the run.
func FatalError(err error) error {
	return &classified{class: Fatal, err: err}
}

// ContinuableError marks err as allowing the current test to continue.
func ContinuableError(err error) error {
	return &classified{class: Continuable, err: err}
}

// Classify returns the classification attached to err, or Failure.
func Classify(err error) Classification {
	var c interface{ Classification() Classification }
	if errors.As(err, &c) {
		return c.Classification()
	}
	return Failure
}

// SkipError is the signal a keyword returns, or panics with, to skip the
// current test instead of failing it.
type SkipError struct {
	Reason string
}

func (s *SkipError) Error() string { return s.Reason }

// Skip returns a skip signal with a formatted reason.
func Skip(format string, args ...any) error {
	return &SkipError{Reason: fmt.Sprintf(format, args...)}
}

// IsSkip reports whether err carries a skip signal.
func IsSkip(err error) bool {
	var s *SkipError
	return errors.As(err, &s)
}
