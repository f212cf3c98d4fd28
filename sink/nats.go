package sink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/casualjim/oachat/api"
	"github.com/casualjim/oachat/pkg/slogx"
	json "github.com/goccy/go-json"
	"github.com/nats-io/nats.go"
)

// NATSSink publishes every delta as JSON on a NATS subject.
type NATSSink struct {
	client *nats.Conn
	prefix string
}

// NATS publishes deltas to "<prefix>.<conversation id>", or
// "<prefix>.<stream id>" when the stream has no conversation.
func NATS(client *nats.Conn, prefix string) *NATSSink {
	return &NATSSink{client: client, prefix: prefix}
}

// Subject returns the subject a delta is published on.
func (n *NATSSink) Subject(delta api.ChoiceDelta) string {
	key := delta.ConversationID
	if key == "" {
		key = delta.StreamID.String()
	}
	return n.prefix + "." + key
}

func (n *NATSSink) Deliver(ctx context.Context, delta api.ChoiceDelta) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(delta)
	if err != nil {
		return fmt.Errorf("failed to encode delta: %w", err)
	}
	return n.client.Publish(n.Subject(delta), data)
}

// Subscription relays deltas received from NATS into a local sink.
type Subscription struct {
	sub *nats.Subscription
}

// Subscribe decodes the deltas published on subject and hands them to
// target. Wildcards are allowed, e.g. "oachat.deltas.>".
func Subscribe(ctx context.Context, client *nats.Conn, subject string, target Sink) (*Subscription, error) {
	if target == nil {
		return nil, errors.New("a target sink is required")
	}
	nsub, err := client.Subscribe(subject, func(msg *nats.Msg) {
		var delta api.ChoiceDelta
		if err := json.Unmarshal(msg.Data, &delta); err != nil {
			slog.Error("failed to unmarshal delta", slogx.Error(err), slog.String("subject", msg.Subject))
			return
		}
		if err := target.Deliver(ctx, delta); err != nil {
			slog.Error("failed to deliver delta", slogx.Error(err), slog.String("subject", msg.Subject))
			return
		}
		if msg.Reply != "" {
			if nerr := msg.Respond(nil); nerr != nil {
				slog.Error("failed to ack message", slogx.Error(nerr))
			}
		}
	})
	if err != nil {
		return nil, err
	}
	return &Subscription{sub: nsub}, nil
}

// Unsubscribe stops the relay.
func (s *Subscription) Unsubscribe() {
	if err := s.sub.Unsubscribe(); err != nil {
		slog.Error("failed to unsubscribe", slogx.Error(err), slog.String("subject", s.sub.Subject))
	}
}
