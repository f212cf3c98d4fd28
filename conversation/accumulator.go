package conversation

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/casualjim/oachat/api"
)

type reply struct {
	role    api.Role
	content strings.Builder
	reason  string
	done    bool
}

// Accumulator is a sink that rebuilds the streamed choices of a reply and
// appends the first finished choice to its thread as an assistant message.
// Use one accumulator per stream.
type Accumulator struct {
	thread    *Thread
	mu        sync.Mutex
	replies   map[int]*reply
	committed bool
}

// NewAccumulator creates an accumulator that commits into thread. A nil
// thread only accumulates.
func NewAccumulator(thread *Thread) *Accumulator {
	return &Accumulator{
		thread:  thread,
		replies: make(map[int]*reply),
	}
}

// Deliver records one delta.
func (a *Accumulator) Deliver(_ context.Context, delta api.ChoiceDelta) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	r, ok := a.replies[delta.Index]
	if !ok {
		r = &reply{role: api.RoleAssistant}
		a.replies[delta.Index] = r
	}
	if delta.Role != "" {
		r.role = delta.Role
	}
	r.content.WriteString(delta.Content)

	if delta.Finished() && !r.done {
		r.done = true
		r.reason = delta.Reason()
		if !a.committed {
			a.commit(r)
		}
	}
	return nil
}

// Commit appends the reply with the lowest index to the thread when no
// finished reply has been committed yet, e.g. after the stream was cancelled.
// It reports whether a message was appended.
func (a *Accumulator) Commit() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.committed {
		return false
	}
	idx := a.indexes()
	if len(idx) == 0 {
		return false
	}
	r := a.replies[idx[0]]
	if r.content.Len() == 0 {
		return false
	}
	a.commit(r)
	return true
}

func (a *Accumulator) commit(r *reply) {
	a.committed = true
	if a.thread != nil {
		a.thread.Append(api.ChatMessage{Role: r.role, Content: r.content.String()})
	}
}

// Content returns the text accumulated for the choice at index.
func (a *Accumulator) Content(index int) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if r, ok := a.replies[index]; ok {
		return r.content.String()
	}
	return ""
}

// FinishReason returns the finish reason of the choice at index, empty while
// the choice is still open.
func (a *Accumulator) FinishReason(index int) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if r, ok := a.replies[index]; ok {
		return r.reason
	}
	return ""
}

// Choices returns the indexes seen so far, in ascending order.
func (a *Accumulator) Choices() []int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.indexes()
}

// Committed reports whether a reply was appended to the thread.
func (a *Accumulator) Committed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.committed
}

func (a *Accumulator) indexes() []int {
	idx := make([]int, 0, len(a.replies))
	for i := range a.replies {
		idx = append(idx, i)
	}
	slices.Sort(idx)
	return idx
}
