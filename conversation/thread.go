// Package conversation keeps the ordered message history of a chat and
// collects streamed replies back into it.
package conversation

import (
	"context"
	"iter"
	"slices"
	"sync"

	"github.com/casualjim/oachat/api"
	"github.com/casualjim/oachat/pkg/uuidx"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
)

// Option configures a Thread.
type Option func(*Thread)

// WithWindow limits the context handed to a request to the last n messages.
// Zero or a negative n sends the full history.
func WithWindow(n int) Option {
	return func(t *Thread) {
		t.window = max(n, 0)
	}
}

// WithID sets the thread identifier instead of generating one.
func WithID(id uuid.UUID) Option {
	return func(t *Thread) {
		t.id = id
	}
}

// WithMessages seeds the thread with an existing history.
func WithMessages(msgs ...api.ChatMessage) Option {
	return func(t *Thread) {
		t.messages = append(t.messages, msgs...)
	}
}

// Thread is the history of one conversation. It is safe for concurrent use
// and implements the context provider expected by the client.
type Thread struct {
	mu       sync.RWMutex
	id       uuid.UUID
	messages []api.ChatMessage
	usage    api.Usage
	window   int
	initLen  int
}

// New creates an empty thread with a fresh identifier.
//
// Example:
//
//	thread := conversation.New(conversation.WithWindow(20))
//	thread.Append(api.UserMessage("hello"))
func New(options ...Option) *Thread {
	t := &Thread{id: uuidx.New()}
	for _, o := range options {
		o(t)
	}
	return t
}

// ID returns the thread identifier.
func (t *Thread) ID() uuid.UUID {
	return t.id
}

// Len returns the number of messages in the thread.
func (t *Thread) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.messages)
}

// TurnLen returns the number of messages added since the thread was forked.
func (t *Thread) TurnLen() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.messages) - t.initLen
}

// Append adds messages at the end of the thread, in order.
func (t *Thread) Append(msgs ...api.ChatMessage) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = append(t.messages, msgs...)
}

// Messages returns a copy of the full history.
func (t *Thread) Messages() []api.ChatMessage {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Clone(t.messages)
}

// All iterates over a snapshot of the history.
func (t *Thread) All() iter.Seq[api.ChatMessage] {
	return slices.Values(t.Messages())
}

// Last returns the most recent message.
func (t *Thread) Last() (api.ChatMessage, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.messages) == 0 {
		return api.ChatMessage{}, false
	}
	return t.messages[len(t.messages)-1], true
}

// Context returns the messages to send as prior context: the whole history,
// or its last messages when a window is configured.
func (t *Thread) Context(ctx context.Context) ([]api.ChatMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	msgs := t.messages
	if t.window > 0 && len(msgs) > t.window {
		msgs = msgs[len(msgs)-t.window:]
	}
	return slices.Clone(msgs), nil
}

// Usage returns the token usage recorded on the thread.
func (t *Thread) Usage() api.Usage {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.usage
}

// AddUsage records the usage of one completion.
func (t *Thread) AddUsage(u *api.Usage) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.usage.Add(u)
}

// Fork creates a thread with a new id that starts from a copy of this one.
// Messages added to the fork can later be brought back with Join.
func (t *Thread) Fork() *Thread {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return &Thread{
		id:       uuidx.New(),
		messages: slices.Clone(t.messages),
		window:   t.window,
		initLen:  len(t.messages),
	}
}

// Join appends the messages added to other since it was forked and adds its
// usage to this thread.
func (t *Thread) Join(other *Thread) {
	if other == t {
		return
	}
	other.mu.RLock()
	added := slices.Clone(other.messages[other.initLen:])
	usage := other.usage
	other.mu.RUnlock()

	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = append(t.messages, added...)
	t.usage.Add(&usage)
}

// Reset drops the history but keeps the identifier and window.
func (t *Thread) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = nil
	t.usage = api.Usage{}
	t.initLen = 0
}

type threadJSON struct {
	ID       string            `json:"id"`
	Messages []api.ChatMessage `json:"messages"`
	Usage    api.Usage         `json:"usage"`
	Window   int               `json:"window,omitempty"`
}

func (t *Thread) MarshalJSON() ([]byte, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	msgs := t.messages
	if msgs == nil {
		msgs = []api.ChatMessage{}
	}
	return json.Marshal(threadJSON{
		ID:       t.id.String(),
		Messages: msgs,
		Usage:    t.usage,
		Window:   t.window,
	})
}

func (t *Thread) UnmarshalJSON(data []byte) error {
	var tmp threadJSON
	if err := json.Unmarshal(data, &tmp); err != nil {
		return err
	}
	id, err := uuid.Parse(tmp.ID)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.id = id
	t.messages = tmp.Messages
	t.usage = tmp.Usage
	t.window = tmp.Window
	t.initLen = 0
	return nil
}
