package oachat

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/casualjim/oachat/api"
	"github.com/casualjim/oachat/pkg/slogx"
	"github.com/casualjim/oachat/pkg/uuidx"
	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const (
	dataPrefix   = "data:"
	doneSentinel = "[DONE]"
	maxLineSize  = 1 << 20
)

// Stream is the handle of a running streamed completion.
type Stream struct {
	id             uuid.UUID
	conversationID string
	cancel         context.CancelCauseFunc
	done           chan struct{}
	err            error
	delivered      atomic.Int64
}

// ID returns the stream identifier stamped on every delta.
func (s *Stream) ID() uuid.UUID {
	return s.id
}

// ConversationID returns the conversation the stream belongs to.
func (s *Stream) ConversationID() string {
	return s.conversationID
}

// Cancel asks the stream to stop. The stream notices at its next checkpoint
// and Wait then returns an error matching ErrCancelled, unless the stream had
// already finished.
func (s *Stream) Cancel() {
	s.cancel(ErrCancelled)
}

// Done is closed when the stream has stopped and no more deltas will be delivered.
func (s *Stream) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until the stream stops and returns its outcome.
func (s *Stream) Wait() error {
	<-s.done
	return s.err
}

// Delivered returns the number of deltas handed to the sink so far.
func (s *Stream) Delivered() int64 {
	return s.delivered.Load()
}

func (s *Stream) key() string {
	if s.conversationID != "" {
		return "conversation:" + s.conversationID
	}
	return "stream:" + s.id.String()
}

// StreamChat starts a streamed completion and returns immediately. Prior
// messages come from history, which may be nil; every choice of every chunk
// is handed to sink in the order it was read.
//
// A running stream with the same ConversationID is cancelled, and the new
// request is only sent once the old stream has stopped.
func (c *Client) StreamChat(ctx context.Context, params CompletionParams, history ContextProvider, sink Sink) *Stream {
	ctx, cancel := context.WithCancelCause(ctx)
	s := &Stream{
		id:             uuidx.New(),
		conversationID: params.ConversationID,
		cancel:         cancel,
		done:           make(chan struct{}),
	}
	key := s.key()
	prev, superseding := c.streams.Swap(key, s)

	go func() {
		err := func() error {
			if superseding {
				prev.cancel(ErrSuperseded)
				<-prev.Done()
				if err := contextError(ctx); err != nil {
					return err
				}
			}
			return c.runStream(ctx, s, params, history, sink)
		}()

		c.streams.DelIf(key, func(cur *Stream) bool { return cur != s })
		cancel(nil)
		s.err = err
		close(s.done)

		log := c.log.With(slogx.Stringer("stream_id", s.id), slog.Int64("delivered", s.Delivered()))
		switch {
		case err == nil:
			log.Debug("stream finished")
		case IsCancelled(err):
			log.Debug("stream cancelled", slogx.Error(err))
		default:
			log.Warn("stream failed", slogx.Error(err))
		}
	}()
	return s
}

func (c *Client) runStream(ctx context.Context, s *Stream, params CompletionParams, history ContextProvider, sink Sink) error {
	if sink == nil {
		return errors.New("a sink is required to stream a completion")
	}

	prior, err := resolveContext(ctx, history)
	if err != nil {
		return err
	}
	params.Stream = true
	body, err := params.body(prior, c.cfg.User)
	if err != nil {
		return err
	}

	// The watchdog fires when the service goes quiet for longer than the
	// stream timeout, either before the headers or between two lines.
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	watchdog := time.AfterFunc(c.cfg.StreamTimeout, func() { cancel(ErrStreamIdle) })
	defer watchdog.Stop()

	req, err := c.buildRequest(ctx, http.MethodPost, pathChatCompletions, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	c.log.DebugContext(ctx, "sending stream request", slogx.Stringer("stream_id", s.id), slogx.URL("url", req.URL))
	resp, err := c.http.Do(req)
	if err != nil {
		return requestError(ctx, http.MethodPost, pathChatCompletions, err)
	}
	defer resp.Body.Close()

	if err := contextError(ctx); err != nil {
		return err
	}
	c.log.DebugContext(ctx, "stream response", slog.Int("status", resp.StatusCode))

	if err := c.validateStream(resp); err != nil {
		if cerr := contextError(ctx); cerr != nil {
			return cerr
		}
		return err
	}
	if err := contextError(ctx); err != nil {
		return err
	}

	watchdog.Reset(c.cfg.StreamTimeout)
	return c.consume(ctx, s, params.FinishPolicy, resp.Body, sink, watchdog)
}

// consume reads the event lines of a successful response and dispatches the
// decoded choices.
func (c *Client) consume(ctx context.Context, s *Stream, policy FinishPolicy, body io.Reader, sink Sink, watchdog *time.Timer) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	tracker := newFinishTracker(policy)

	for scanner.Scan() {
		watchdog.Reset(c.cfg.StreamTimeout)
		if err := contextError(ctx); err != nil {
			return err
		}

		line := scanner.Text()
		c.log.DebugContext(ctx, "stream line", slog.String("line", line))

		payload, ok := strings.CutPrefix(line, dataPrefix)
		if !ok {
			continue
		}
		payload = strings.TrimSpace(payload)
		if payload == doneSentinel {
			return nil
		}

		chunk, err := api.DecodeChunk([]byte(payload))
		if err != nil {
			return &MalformedStreamError{Line: line, Err: err}
		}

		meta := chunkMeta(payload)
		for _, choice := range chunk.Choices {
			if err := contextError(ctx); err != nil {
				return err
			}
			delta := api.ChoiceDelta{
				StreamID:       s.id,
				ConversationID: s.conversationID,
				Index:          choice.Index,
				Role:           choice.Delta.Role,
				Content:        choice.Delta.Content,
				FinishReason:   choice.FinishReason,
				Timestamp:      strfmt.DateTime(time.Now()),
				Meta:           meta,
			}
			if err := sink.Deliver(ctx, delta); err != nil {
				if cerr := contextError(ctx); cerr != nil {
					return cerr
				}
				return fmt.Errorf("sink rejected delta: %w", err)
			}
			s.delivered.Add(1)
			tracker.observe(choice)
		}

		if tracker.complete() {
			c.log.DebugContext(ctx, "reply finished", slog.String("reason", tracker.reason))
			return nil
		}
	}

	if err := contextError(ctx); err != nil {
		return err
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read stream: %w", err)
	}
	return nil
}

// chunkMeta keeps the chunk envelope (id, model, created, ...) without the
// choices, which are delivered separately.
func chunkMeta(payload string) gjson.Result {
	stripped, err := sjson.Delete(payload, "choices")
	if err != nil {
		return gjson.Parse(payload)
	}
	return gjson.Parse(stripped)
}

// finishTracker applies a FinishPolicy to the choices seen so far.
type finishTracker struct {
	policy   FinishPolicy
	open     map[int]bool
	finished bool
	reason   string
}

func newFinishTracker(policy FinishPolicy) *finishTracker {
	return &finishTracker{policy: policy, open: make(map[int]bool)}
}

func (t *finishTracker) observe(choice api.Choice) {
	if choice.Finished() {
		t.reason = *choice.FinishReason
		t.open[choice.Index] = false
		if t.policy == FinishOnFirst {
			t.finished = true
		}
		return
	}
	if _, seen := t.open[choice.Index]; !seen {
		t.open[choice.Index] = true
	}
}

func (t *finishTracker) complete() bool {
	if t.policy == FinishOnFirst {
		return t.finished
	}
	if len(t.open) == 0 {
		return false
	}
	for _, open := range t.open {
		if open {
			return false
		}
	}
	return true
}
