package pubsub

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompositeHook(t *testing.T) {
	first, second := newRecordingHook(4), newRecordingHook(4)
	hook := NewCompositeHook(first, second)
	ctx := context.Background()

	hook.OnFrameStarted(ctx, FrameStarted{Name: "a"})
	hook.OnKeywordResult(ctx, KeywordResult{Keyword: "k"})
	hook.OnFrameEnded(ctx, FrameEnded{Name: "a"})
	hook.OnError(ctx, errors.New("boom"))

	for _, h := range []*recordingHook{first, second} {
		started, ended, results, errs := h.counts()
		assert.Equal(t, []int{1, 1, 1, 1}, []int{started, ended, results, errs})
	}
}

func TestLoggingHook(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(prev) })

	hook := LoggingHook()
	hook.OnKeywordResult(context.Background(), KeywordResult{Keyword: "Click", Status: "PASS"})
	hook.OnError(context.Background(), errors.New("boom"))

	out := buf.String()
	assert.Contains(t, out, "keyword result")
	assert.Contains(t, out, `\"keyword\":\"Click\"`)
	assert.Contains(t, out, "level=ERROR")
	assert.Contains(t, out, "error=boom")
}
