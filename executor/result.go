package executor

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/casualjim/kwexec/api"
	"github.com/casualjim/kwexec/pkg/slogx"
	"github.com/casualjim/kwexec/pkg/uuidx"
	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
)

// Status is the outcome of a keyword as the result model sees it.
type Status string

const (
	Passed  Status = "PASS"
	Failed  Status = "FAIL"
	Skipped Status = "SKIP"
)

// State is a step of the invocation state machine:
//
//	Pending -> Running -> Completed | Failed | TimedOut | Cancelled
//
// A call can also go from Pending straight to Cancelled when the run is
// aborted before it starts, or to Failed when it is rejected before reaching
// its keyword.
type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateTimedOut  State = "timed_out"
	StateCancelled State = "cancelled"
)

var transitions = map[State][]State{
	StatePending: {StateRunning, StateCancelled, StateFailed},
	StateRunning: {StateCompleted, StateFailed, StateTimedOut, StateCancelled},
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return len(transitions[s]) == 0
}

func (s State) canAdvance(to State) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Result is the outcome of one keyword call.
type Result struct {
	// ID is the id of the keyword frame the call ran in.
	ID             uuid.UUID
	Keyword        string
	Provider       string
	Status         Status
	State          State
	Value          any
	Message        string
	Classification api.Classification
	Err            error
	Started        strfmt.DateTime
	Finished       strfmt.DateTime
	Elapsed        time.Duration
}

// Passed reports whether the keyword passed.
func (r Result) Passed() bool { return r.Status == Passed }

// QualifiedName is the Provider.Keyword form of the keyword name.
func (r Result) QualifiedName() string {
	return api.QualifiedName(r.Provider, r.Keyword)
}

// Rejected is the Result of a call that failed before its keyword ran,
// because the name could not be resolved or the arguments could not be bound.
func Rejected(provider, keyword string, err error) Result {
	now := strfmt.DateTime(time.Now())
	r := Result{
		ID:             uuidx.New(),
		Keyword:        keyword,
		Provider:       provider,
		State:          StatePending,
		Status:         Failed,
		Message:        err.Error(),
		Classification: api.Classify(err),
		Err:            err,
		Started:        now,
		Finished:       now,
	}
	r.advance(StateFailed)
	return r
}

func (r *Result) advance(to State) {
	if !r.State.canAdvance(to) {
		panic(fmt.Sprintf("executor: invalid state transition %s -> %s", r.State, to))
	}
	r.State = to
}

func (r Result) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("keyword", r.QualifiedName()),
		slog.String("status", string(r.Status)),
		slog.String("state", string(r.State)),
		slogx.Elapsed(r.Elapsed),
	}
	if r.Message != "" {
		attrs = append(attrs, slog.String("message", r.Message))
	}
	if r.Classification != "" {
		attrs = append(attrs, slog.String("classification", string(r.Classification)))
	}
	return slog.GroupValue(attrs...)
}
