package pubsub

import (
	"context"
	"sync"
)

type recordingHook struct {
	mu       sync.Mutex
	wg       *sync.WaitGroup
	started  []FrameStarted
	ended    []FrameEnded
	results  []KeywordResult
	errors   []error
	blocking chan struct{}
}

func newRecordingHook(expected int) *recordingHook {
	wg := &sync.WaitGroup{}
	wg.Add(expected)
	return &recordingHook{wg: wg}
}

func (r *recordingHook) record(fn func()) {
	if r.blocking != nil {
		<-r.blocking
	}
	r.mu.Lock()
	fn()
	r.mu.Unlock()
	if r.wg != nil {
		r.wg.Done()
	}
}

func (r *recordingHook) OnFrameStarted(_ context.Context, e FrameStarted) {
	r.record(func() { r.started = append(r.started, e) })
}

func (r *recordingHook) OnFrameEnded(_ context.Context, e FrameEnded) {
	r.record(func() { r.ended = append(r.ended, e) })
}

func (r *recordingHook) OnKeywordResult(_ context.Context, e KeywordResult) {
	r.record(func() { r.results = append(r.results, e) })
}

func (r *recordingHook) OnError(_ context.Context, err error) {
	r.record(func() { r.errors = append(r.errors, err) })
}

func (r *recordingHook) counts() (started, ended, results, errs int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.started), len(r.ended), len(r.results), len(r.errors)
}
