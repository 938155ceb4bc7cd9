package runstate

import (
	"log/slog"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
)

// FrameKind is the kind of scope a frame represents.
type FrameKind int

const (
	Suite FrameKind = iota
	Test
	Keyword
)

func (k FrameKind) String() string {
	switch k {
	case Suite:
		return "suite"
	case Test:
		return "test"
	case Keyword:
		return "keyword"
	default:
		return "unknown"
	}
}

// Frame is one entry of the stack. Frames are not modified once pushed;
// SetLevel publishes a copy.
type Frame struct {
	ID      uuid.UUID
	Kind    FrameKind
	Name    string
	Level   slog.Level
	Depth   int
	Started strfmt.DateTime

	parent *Frame
}

// Parent returns the enclosing frame, nil for the outermost one.
func (f *Frame) Parent() *Frame {
	return f.parent
}

func (f *Frame) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("kind", f.Kind.String()),
		slog.String("name", f.Name),
		slog.Int("depth", f.Depth),
	)
}
