package api

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNotFound matches resolution errors for unknown keywords.
	ErrNotFound = errors.New("keyword not found")
	// ErrAmbiguous matches resolution errors for names found in several providers.
	ErrAmbiguous = errors.New("keyword name is ambiguous")
	// ErrTimeout matches errors of keywords that exceeded their timeout.
	ErrTimeout = errors.New("keyword timed out")
	// ErrCancelled matches errors of keywords aborted by the enclosing run.
	ErrCancelled = errors.New("keyword cancelled")
)

// QualifiedName joins a provider namespace and a keyword name.
func QualifiedName(provider, keyword string) string {
	if provider == "" {
		return keyword
	}
	return provider + "." + keyword
}

// DiscoveryError is returned when the suite tree cannot be built. It aborts
// the run before anything executes.
type DiscoveryError struct {
	Path    string
	Message string
	Err     error
}

func (e *DiscoveryError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *DiscoveryError) Unwrap() error { return e.Err }

// InspectionError is returned when a provider matches none of the supported
// shapes, or its metadata is inconsistent.
type InspectionError struct {
	Provider string
	Reason   string
	Err      error
}

func (e *InspectionError) Error() string {
	msg := fmt.Sprintf("keyword provider '%s' is not usable: %s", e.Provider, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *InspectionError) Unwrap() error { return e.Err }

// ResolutionKind tells apart the ways resolving a keyword name fails.
type ResolutionKind int

const (
	NotFound ResolutionKind = iota
	Ambiguous
)

// ResolutionError is returned when a keyword name resolves to no keyword or
// to more than one. Matches holds the qualified names of every candidate.
type ResolutionError struct {
	Name    string
	Kind    ResolutionKind
	Matches []string
}

func (e *ResolutionError) Error() string {
	if e.Kind == Ambiguous {
		var b strings.Builder
		fmt.Fprintf(&b, "Multiple keywords with name '%s' found. Give the full name of the keyword you want to use:", e.Name)
		for _, m := range e.Matches {
			b.WriteString("\n    ")
			b.WriteString(m)
		}
		return b.String()
	}
	return fmt.Sprintf("No keyword with name '%s' found.", e.Name)
}

func (e *ResolutionError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Kind == NotFound
	case ErrAmbiguous:
		return e.Kind == Ambiguous
	}
	return false
}

// BindingKind tells apart the ways binding arguments fails.
type BindingKind int

const (
	TooManyArguments BindingKind = iota
	MissingArgument
	UnexpectedNamedArgument
	DuplicateArgument
	ConversionFailed
)

// BindingError is returned when call site arguments do not fit the parameters
// of a keyword. It always names the keyword and, except for TooManyArguments,
// the offending parameter.
type BindingError struct {
	Keyword string
	Kind    BindingKind
	Param   string
	Value   any
	Target  string
	Max     int
	Got     int
	Err     error
}

func (e *BindingError) Error() string {
	switch e.Kind {
	case TooManyArguments:
		return fmt.Sprintf("Keyword '%s' expected at most %d argument%s, got %d.", e.Keyword, e.Max, plural(e.Max), e.Got)
	case MissingArgument:
		return fmt.Sprintf("Keyword '%s' missing value for argument '%s'.", e.Keyword, e.Param)
	case UnexpectedNamedArgument:
		return fmt.Sprintf("Keyword '%s' got unexpected named argument '%s'.", e.Keyword, e.Param)
	case DuplicateArgument:
		return fmt.Sprintf("Keyword '%s' got multiple values for argument '%s'.", e.Keyword, e.Param)
	default:
		msg := fmt.Sprintf("Keyword '%s' argument '%s' got value '%v' (%T) that cannot be converted to %s", e.Keyword, e.Param, e.Value, e.Value, e.Target)
		if e.Err != nil {
			msg += ": " + e.Err.Error()
		}
		return msg + "."
	}
}

func (e *BindingError) Unwrap() error { return e.Err }

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

// InvocationFailure wraps an error or panic raised by keyword code.
type InvocationFailure struct {
	Keyword        string
	Message        string
	Classification Classification
	Err            error
}

func (e *InvocationFailure) Error() string { return e.Message }

func (e *InvocationFailure) Unwrap() error { return e.Err }

// TimeoutError is returned when a keyword does not finish within its timeout.
// It unwraps to context.DeadlineExceeded.
type TimeoutError struct {
	Keyword string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("Keyword '%s' timed out after %s.", e.Keyword, e.Timeout)
}

func (e *TimeoutError) Unwrap() error { return context.DeadlineExceeded }

func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

// CancelledError is returned when the run around a keyword is aborted. Unlike
// the other step errors it must propagate to the caller of the run.
type CancelledError struct {
	Keyword string
	Err     error
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("Keyword '%s' was cancelled: %v", e.Keyword, e.Err)
}

func (e *CancelledError) Unwrap() error { return e.Err }

func (e *CancelledError) Is(target error) bool { return target == ErrCancelled }
