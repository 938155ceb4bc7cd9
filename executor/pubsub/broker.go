package pubsub

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/alphadose/haxmap"
	"github.com/casualjim/kwexec/pkg/uuidx"
)

const (
	defaultSlowSubscriberTimeout = 100 * time.Millisecond
	subscriptionBuffer           = 50
)

type broker struct {
	topics                *haxmap.Map[string, *topic]
	slowSubscriberTimeout time.Duration
}

// LocalBroker delivers events in process. Each subscription has a buffered
// channel; a subscriber that stays full for longer than the slow subscriber
// timeout is unsubscribed.
func LocalBroker() Broker {
	return &broker{
		topics:                haxmap.New[string, *topic](),
		slowSubscriberTimeout: defaultSlowSubscriberTimeout,
	}
}

// WithSlowSubscriberTimeout configures the timeout for detecting slow subscribers
func (b *broker) WithSlowSubscriberTimeout(timeout time.Duration) *broker {
	b.slowSubscriberTimeout = timeout
	return b
}

func (b *broker) Topic(ctx context.Context, id string) Topic {
	topic, _ := b.topics.GetOrCompute(id, func() *topic {
		return &topic{
			ID:                    id,
			subscriptions:         haxmap.New[string, *subscription](),
			slowSubscriberTimeout: b.slowSubscriberTimeout,
		}
	})
	return topic
}

// RemoveTopic forgets a topic. Existing subscriptions stay open until they
// are unsubscribed.
func (b *broker) RemoveTopic(id string) {
	b.topics.Del(id)
}

type topic struct {
	ID                    string
	subscriptions         *haxmap.Map[string, *subscription]
	slowSubscriberTimeout time.Duration
}

func (t *topic) Publish(ctx context.Context, event Event) error {
	if event == nil {
		return fmt.Errorf("event is required")
	}
	t.subscriptions.ForEach(func(id string, sub *subscription) bool {
		if sub == nil {
			return true
		}

		select {
		case <-ctx.Done():
			return false
		case <-sub.ctx.Done():
			sub.Unsubscribe()
			return true
		default:
		}

		if !sub.send(ctx, event, t.slowSubscriberTimeout) {
			if ctx.Err() != nil {
				return false
			}
			sub.Unsubscribe()
		}
		return true
	})
	return ctx.Err()
}

func (t *topic) Subscribe(ctx context.Context, hook Hook) (Subscription, error) {
	if hook == nil {
		return nil, fmt.Errorf("hook is required")
	}
	return t.newSubscription(ctx, hook), nil
}

func (t *topic) newSubscription(ctx context.Context, hook Hook) *subscription {
	id := uuidx.NewString()
	sub := &subscription{
		id:      id,
		ctx:     ctx,
		channel: make(chan Event, subscriptionBuffer),
		onClose: func() { t.subscriptions.Del(id) },
		hook:    hook,
	}
	t.subscriptions.Set(id, sub)
	go sub.forwardToHook()
	return sub
}

type subscription struct {
	id        string
	ctx       context.Context
	channel   chan Event
	closeOnce sync.Once
	onClose   func()
	hook      Hook

	mu     sync.RWMutex // guards channel against sends after close
	closed bool
}

func (s *subscription) ID() string {
	return s.id
}

func (s *subscription) Unsubscribe() {
	s.closeOnce.Do(func() {
		if s.onClose != nil {
			s.onClose()
		}
		s.mu.Lock()
		s.closed = true
		close(s.channel)
		s.mu.Unlock()
	})
}

// send queues event and reports whether it was accepted. It gives up when
// either context is done or the buffer stays full for timeout.
func (s *subscription) send(ctx context.Context, event Event, timeout time.Duration) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case s.channel <- event:
		return true
	case <-ctx.Done():
	case <-s.ctx.Done():
	case <-timer.C:
	}
	return false
}

func (s *subscription) forwardToHook() {
	for {
		select {
		case event, ok := <-s.channel:
			if !ok {
				return
			}
			dispatch(s.ctx, s.hook, event)
		case <-s.ctx.Done():
			return
		}
	}
}

func dispatch(ctx context.Context, hook Hook, event Event) {
	switch event := event.(type) {
	case FrameStarted:
		hook.OnFrameStarted(ctx, event)
	case FrameEnded:
		hook.OnFrameEnded(ctx, event)
	case KeywordResult:
		hook.OnKeywordResult(ctx, event)
	case Error:
		hook.OnError(ctx, event)
	default:
		panic(fmt.Sprintf("unknown event type: %T", event))
	}
}
