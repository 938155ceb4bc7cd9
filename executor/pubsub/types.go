package pubsub

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-openapi/strfmt"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

var (
	frameStartedJSON  = []byte(`{"type":"frame_started"}`)
	frameEndedJSON    = []byte(`{"type":"frame_ended"}`)
	keywordResultJSON = []byte(`{"type":"keyword_result"}`)
	errorJSON         = []byte(`{"type":"error"}`)
)

// Broker hands out topics by id.
type Broker interface {
	Topic(context.Context, string) Topic
}

// Topic is one stream of run events.
type Topic interface {
	Publish(context.Context, Event) error
	Subscribe(context.Context, Hook) (Subscription, error)
}

// Subscription is an active subscriber of a topic.
type Subscription interface {
	ID() string
	Unsubscribe()
}

// Event is one of FrameStarted, FrameEnded, KeywordResult or Error.
type Event interface {
	pubsubEvent()
}

// FrameStarted is published when a suite, test or keyword frame is entered.
type FrameStarted struct {
	RunID     uuid.UUID       `json:"run_id"`
	FrameID   uuid.UUID       `json:"frame_id"`
	ParentID  uuid.UUID       `json:"parent_id,omitempty"`
	Kind      string          `json:"kind"`
	Name      string          `json:"name"`
	Depth     int             `json:"depth"`
	Timestamp strfmt.DateTime `json:"timestamp,omitempty"`
}

func (FrameStarted) pubsubEvent() {}

// MarshalJSON implements custom JSON marshaling for FrameStarted
func (f FrameStarted) MarshalJSON() ([]byte, error) {
	result, err := setIDs(frameStartedJSON, f.RunID, f.FrameID)
	if err != nil {
		return nil, err
	}
	if f.ParentID != uuid.Nil {
		if result, err = sjson.SetBytes(result, "parent_id", f.ParentID.String()); err != nil {
			return nil, err
		}
	}
	if result, err = sjson.SetBytes(result, "kind", f.Kind); err != nil {
		return nil, err
	}
	if result, err = sjson.SetBytes(result, "name", f.Name); err != nil {
		return nil, err
	}
	if result, err = sjson.SetBytes(result, "depth", f.Depth); err != nil {
		return nil, err
	}
	return setTimestamp(result, "timestamp", f.Timestamp)
}

// UnmarshalJSON implements custom JSON unmarshaling for FrameStarted
func (f *FrameStarted) UnmarshalJSON(data []byte) error {
	if err := checkType(data, "frame_started"); err != nil {
		return err
	}
	if err := getIDs(data, &f.RunID, &f.FrameID); err != nil {
		return err
	}
	if parent := gjson.GetBytes(data, "parent_id"); parent.Exists() {
		if err := f.ParentID.UnmarshalText([]byte(parent.String())); err != nil {
			return fmt.Errorf("invalid parent_id: %w", err)
		}
	}
	f.Kind = gjson.GetBytes(data, "kind").String()
	name := gjson.GetBytes(data, "name")
	if !name.Exists() {
		return fmt.Errorf("missing required field 'name'")
	}
	f.Name = name.String()
	f.Depth = int(gjson.GetBytes(data, "depth").Int())
	return getTimestamp(data, "timestamp", &f.Timestamp)
}

// FrameEnded is published when a frame is left.
type FrameEnded struct {
	RunID     uuid.UUID       `json:"run_id"`
	FrameID   uuid.UUID       `json:"frame_id"`
	Kind      string          `json:"kind"`
	Name      string          `json:"name"`
	Elapsed   time.Duration   `json:"elapsed"`
	Timestamp strfmt.DateTime `json:"timestamp,omitempty"`
}

func (FrameEnded) pubsubEvent() {}

// MarshalJSON implements custom JSON marshaling for FrameEnded
func (f FrameEnded) MarshalJSON() ([]byte, error) {
	result, err := setIDs(frameEndedJSON, f.RunID, f.FrameID)
	if err != nil {
		return nil, err
	}
	if result, err = sjson.SetBytes(result, "kind", f.Kind); err != nil {
		return nil, err
	}
	if result, err = sjson.SetBytes(result, "name", f.Name); err != nil {
		return nil, err
	}
	if result, err = sjson.SetBytes(result, "elapsed", f.Elapsed.String()); err != nil {
		return nil, err
	}
	return setTimestamp(result, "timestamp", f.Timestamp)
}

// UnmarshalJSON implements custom JSON unmarshaling for FrameEnded
func (f *FrameEnded) UnmarshalJSON(data []byte) error {
	if err := checkType(data, "frame_ended"); err != nil {
		return err
	}
	if err := getIDs(data, &f.RunID, &f.FrameID); err != nil {
		return err
	}
	f.Kind = gjson.GetBytes(data, "kind").String()
	f.Name = gjson.GetBytes(data, "name").String()
	var err error
	if f.Elapsed, err = getDuration(data, "elapsed"); err != nil {
		return err
	}
	return getTimestamp(data, "timestamp", &f.Timestamp)
}

// KeywordResult is published for every keyword call, whatever its outcome.
type KeywordResult struct {
	RunID          uuid.UUID       `json:"run_id"`
	FrameID        uuid.UUID       `json:"frame_id"`
	Provider       string          `json:"provider,omitempty"`
	Keyword        string          `json:"keyword"`
	Status         string          `json:"status"`
	State          string          `json:"state"`
	Value          any             `json:"value,omitempty"`
	Message        string          `json:"message,omitempty"`
	Classification string          `json:"classification,omitempty"`
	Elapsed        time.Duration   `json:"elapsed"`
	Started        strfmt.DateTime `json:"started,omitempty"`
	Finished       strfmt.DateTime `json:"finished,omitempty"`
}

func (KeywordResult) pubsubEvent() {}

// MarshalJSON implements custom JSON marshaling for KeywordResult
func (k KeywordResult) MarshalJSON() ([]byte, error) {
	result, err := setIDs(keywordResultJSON, k.RunID, k.FrameID)
	if err != nil {
		return nil, err
	}
	for _, field := range []struct{ path, value string }{
		{"provider", k.Provider},
		{"keyword", k.Keyword},
		{"status", k.Status},
		{"state", k.State},
		{"message", k.Message},
		{"classification", k.Classification},
	} {
		if field.value == "" && field.path != "keyword" && field.path != "status" {
			continue
		}
		if result, err = sjson.SetBytes(result, field.path, field.value); err != nil {
			return nil, err
		}
	}
	if k.Value != nil {
		valueBytes, err := json.Marshal(k.Value)
		if err != nil {
			// values that do not serialize are reported by their string form
			valueBytes, _ = json.Marshal(fmt.Sprint(k.Value))
		}
		if result, err = sjson.SetRawBytes(result, "value", valueBytes); err != nil {
			return nil, err
		}
	}
	if result, err = sjson.SetBytes(result, "elapsed", k.Elapsed.String()); err != nil {
		return nil, err
	}
	if result, err = setTimestamp(result, "started", k.Started); err != nil {
		return nil, err
	}
	return setTimestamp(result, "finished", k.Finished)
}

// UnmarshalJSON implements custom JSON unmarshaling for KeywordResult.
// Values come back as the generic JSON form.
func (k *KeywordResult) UnmarshalJSON(data []byte) error {
	if err := checkType(data, "keyword_result"); err != nil {
		return err
	}
	if err := getIDs(data, &k.RunID, &k.FrameID); err != nil {
		return err
	}
	keyword := gjson.GetBytes(data, "keyword")
	if !keyword.Exists() {
		return fmt.Errorf("missing required field 'keyword'")
	}
	k.Keyword = keyword.String()
	k.Provider = gjson.GetBytes(data, "provider").String()
	k.Status = gjson.GetBytes(data, "status").String()
	k.State = gjson.GetBytes(data, "state").String()
	k.Message = gjson.GetBytes(data, "message").String()
	k.Classification = gjson.GetBytes(data, "classification").String()
	if value := gjson.GetBytes(data, "value"); value.Exists() {
		k.Value = value.Value()
	}
	var err error
	if k.Elapsed, err = getDuration(data, "elapsed"); err != nil {
		return err
	}
	if err := getTimestamp(data, "started", &k.Started); err != nil {
		return err
	}
	return getTimestamp(data, "finished", &k.Finished)
}

// Error reports a run level failure, such as an aborted run.
type Error struct {
	RunID     uuid.UUID       `json:"run_id"`
	Err       error           `json:"error"`
	Timestamp strfmt.DateTime `json:"timestamp,omitempty"`
}

func (Error) pubsubEvent() {}

func (e Error) Error() string {
	if e.Err == nil {
		return "unknown error"
	}
	return e.Err.Error()
}

func (e Error) Unwrap() error { return e.Err }

// MarshalJSON implements custom JSON marshaling for Error
func (e Error) MarshalJSON() ([]byte, error) {
	result, err := sjson.SetBytes(errorJSON, "run_id", e.RunID.String())
	if err != nil {
		return nil, err
	}
	if result, err = sjson.SetBytes(result, "error", e.Error()); err != nil {
		return nil, err
	}
	return setTimestamp(result, "timestamp", e.Timestamp)
}

// UnmarshalJSON implements custom JSON unmarshaling for Error
func (e *Error) UnmarshalJSON(data []byte) error {
	if err := checkType(data, "error"); err != nil {
		return err
	}
	runID := gjson.GetBytes(data, "run_id")
	if !runID.Exists() {
		return fmt.Errorf("missing required field 'run_id'")
	}
	if err := e.RunID.UnmarshalText([]byte(runID.String())); err != nil {
		return fmt.Errorf("invalid run_id: %w", err)
	}
	msg := gjson.GetBytes(data, "error")
	if !msg.Exists() {
		return fmt.Errorf("missing required field 'error'")
	}
	e.Err = errors.New(msg.String())
	return getTimestamp(data, "timestamp", &e.Timestamp)
}

// ToJSON serializes any event.
func ToJSON(event Event) ([]byte, error) {
	return json.Marshal(event)
}

// FromJSON reads an event serialized by ToJSON, picking the type from the
// "type" field.
func FromJSON(data []byte) (Event, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("invalid json: %s", data)
	}
	switch typ := gjson.GetBytes(data, "type").String(); typ {
	case "frame_started":
		var e FrameStarted
		if err := e.UnmarshalJSON(data); err != nil {
			return nil, err
		}
		return e, nil
	case "frame_ended":
		var e FrameEnded
		if err := e.UnmarshalJSON(data); err != nil {
			return nil, err
		}
		return e, nil
	case "keyword_result":
		var e KeywordResult
		if err := e.UnmarshalJSON(data); err != nil {
			return nil, err
		}
		return e, nil
	case "error":
		var e Error
		if err := e.UnmarshalJSON(data); err != nil {
			return nil, err
		}
		return e, nil
	default:
		return nil, fmt.Errorf("unknown event type '%s'", typ)
	}
}

func checkType(data []byte, want string) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("invalid json: %s", data)
	}
	msgType := gjson.GetBytes(data, "type")
	if !msgType.Exists() || msgType.String() != want {
		return fmt.Errorf("missing or invalid type, expected '%s'", want)
	}
	return nil
}

func setIDs(base []byte, runID, frameID uuid.UUID) ([]byte, error) {
	result, err := sjson.SetBytes(base, "run_id", runID.String())
	if err != nil {
		return nil, err
	}
	return sjson.SetBytes(result, "frame_id", frameID.String())
}

func getIDs(data []byte, runID, frameID *uuid.UUID) error {
	for _, field := range []struct {
		path string
		dst  *uuid.UUID
	}{{"run_id", runID}, {"frame_id", frameID}} {
		v := gjson.GetBytes(data, field.path)
		if !v.Exists() {
			return fmt.Errorf("missing required field '%s'", field.path)
		}
		if err := field.dst.UnmarshalText([]byte(v.String())); err != nil {
			return fmt.Errorf("invalid %s: %w", field.path, err)
		}
	}
	return nil
}

func setTimestamp(result []byte, path string, ts strfmt.DateTime) ([]byte, error) {
	if ts.IsZero() {
		return result, nil
	}
	return sjson.SetBytes(result, path, ts.String())
}

func getTimestamp(data []byte, path string, dst *strfmt.DateTime) error {
	v := gjson.GetBytes(data, path)
	if !v.Exists() {
		return nil
	}
	if err := dst.UnmarshalText([]byte(v.String())); err != nil {
		return fmt.Errorf("invalid %s: %w", path, err)
	}
	return nil
}

func getDuration(data []byte, path string) (time.Duration, error) {
	v := gjson.GetBytes(data, path)
	if !v.Exists() {
		return 0, nil
	}
	d, err := time.ParseDuration(v.String())
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", path, err)
	}
	return d, nil
}
