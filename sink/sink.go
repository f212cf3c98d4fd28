// Package sink provides destinations for streamed completion deltas.
//
// Every type here satisfies the Sink interface of the client, so they can be
// passed to StreamChat directly or combined with Multi.
package sink

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/casualjim/oachat/api"
)

// Sink receives the deltas of a stream in order.
type Sink interface {
	Deliver(ctx context.Context, delta api.ChoiceDelta) error
}

// ErrSlowConsumer is returned by a channel sink whose reader did not keep up.
var ErrSlowConsumer = errors.New("slow consumer: delta was not received in time")

// Func adapts a function to Sink.
type Func func(ctx context.Context, delta api.ChoiceDelta) error

func (f Func) Deliver(ctx context.Context, delta api.ChoiceDelta) error {
	return f(ctx, delta)
}

// Discard drops every delta.
var Discard Sink = Func(func(context.Context, api.ChoiceDelta) error { return nil })

type multi []Sink

// Multi delivers each delta to every sink in order and stops at the first
// error. Nil sinks are skipped.
func Multi(sinks ...Sink) Sink {
	result := make(multi, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			result = append(result, s)
		}
	}
	return result
}

func (m multi) Deliver(ctx context.Context, delta api.ChoiceDelta) error {
	for _, s := range m {
		if err := s.Deliver(ctx, delta); err != nil {
			return err
		}
	}
	return nil
}

const defaultSlowConsumerTimeout = 100 * time.Millisecond

// ChannelSink forwards deltas to a channel.
type ChannelSink struct {
	ch      chan<- api.ChoiceDelta
	timeout time.Duration
}

// Channel forwards deltas to ch. A delivery that cannot be handed over
// within the slow-consumer timeout fails with ErrSlowConsumer, which ends
// the stream.
func Channel(ch chan<- api.ChoiceDelta) *ChannelSink {
	return &ChannelSink{ch: ch, timeout: defaultSlowConsumerTimeout}
}

// WithSlowConsumerTimeout configures how long a delivery may wait for the
// reader. Zero or less waits until the stream context is done.
func (c *ChannelSink) WithSlowConsumerTimeout(timeout time.Duration) *ChannelSink {
	c.timeout = timeout
	return c
}

func (c *ChannelSink) Deliver(ctx context.Context, delta api.ChoiceDelta) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case c.ch <- delta:
		return nil
	default:
	}

	if c.timeout <= 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case c.ch <- delta:
			return nil
		}
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case c.ch <- delta:
		return nil
	case <-timer.C:
		return ErrSlowConsumer
	}
}

// Collector keeps every delta it receives. The zero value is ready to use.
type Collector struct {
	mu     sync.Mutex
	deltas []api.ChoiceDelta
}

func (c *Collector) Deliver(_ context.Context, delta api.ChoiceDelta) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deltas = append(c.deltas, delta)
	return nil
}

// Deltas returns a copy of the deltas received so far.
func (c *Collector) Deltas() []api.ChoiceDelta {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.deltas)
}

// Len returns the number of deltas received.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.deltas)
}

// Content concatenates the content of the choice at index.
func (c *Collector) Content(index int) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var b strings.Builder
	for _, d := range c.deltas {
		if d.Index == index {
			b.WriteString(d.Content)
		}
	}
	return b.String()
}
