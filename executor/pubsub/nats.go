package pubsub

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/alphadose/haxmap"
	"github.com/casualjim/kwexec/pkg/slogx"
	"github.com/casualjim/kwexec/pkg/uuidx"
	"github.com/nats-io/nats.go"
)

type natsBroker struct {
	client *nats.Conn
	prefix string
	topics *haxmap.Map[string, *natsTopic]
}

// NATS publishes events as JSON on the subject <prefix>.<topic id>. An empty
// prefix uses the topic id as the subject.
func NATS(client *nats.Conn, prefix string) Broker {
	return &natsBroker{
		client: client,
		prefix: prefix,
		topics: haxmap.New[string, *natsTopic](),
	}
}

func (b *natsBroker) Topic(ctx context.Context, id string) Topic {
	subject := id
	if b.prefix != "" {
		subject = b.prefix + "." + id
	}
	top, _ := b.topics.GetOrCompute(subject, func() *natsTopic {
		return &natsTopic{
			subject: subject,
			client:  b.client,
		}
	})
	return top
}

type natsTopic struct {
	client  *nats.Conn
	subject string
}

func (t *natsTopic) Publish(ctx context.Context, event Event) error {
	eb, err := ToJSON(event)
	if err != nil {
		return err
	}
	return t.client.Publish(t.subject, eb)
}

func (t *natsTopic) Subscribe(ctx context.Context, hook Hook) (Subscription, error) {
	if hook == nil {
		return nil, fmt.Errorf("hook is required")
	}
	events := make(chan Event, subscriptionBuffer)
	var closeOnce sync.Once
	closeEvents := func() { closeOnce.Do(func() { close(events) }) }

	nsub, err := t.client.Subscribe(t.subject, func(msg *nats.Msg) {
		event, err := FromJSON(msg.Data)
		if err != nil {
			slog.Error("failed to unmarshal event", slogx.Error(err))
			return
		}
		select {
		case events <- event:
		case <-ctx.Done():
		}
	})
	if err != nil {
		return nil, err
	}
	nsub.SetClosedHandler(func(string) { closeEvents() })

	go func() {
		for {
			select {
			case event, ok := <-events:
				if !ok {
					return
				}
				dispatch(ctx, hook, event)
			case <-ctx.Done():
				return
			}
		}
	}()
	return &natsSubscription{
		id:  uuidx.NewString(),
		sub: nsub,
	}, nil
}

type natsSubscription struct {
	id  string
	sub *nats.Subscription
}

func (n *natsSubscription) ID() string {
	return n.id
}

func (n *natsSubscription) Unsubscribe() {
	if err := n.sub.Unsubscribe(); err != nil {
		slog.Error("failed to unsubscribe", slogx.Error(err), slog.String("subscription", n.id))
	}
}
