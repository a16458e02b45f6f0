// Package hubtest provides an in-memory connection handle for tests.
package hubtest

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"

	"github.com/bookswap/realtime/internal/domain/notification"
)

// Recorder is a notification.Handle that keeps every message it receives.
type Recorder struct {
	id string

	mu       sync.Mutex
	messages []*notification.Message
	closed   bool
	full     bool
}

func NewRecorder() *Recorder {
	return &Recorder{id: uuid.NewString()}
}

func (r *Recorder) ID() string { return r.id }

func (r *Recorder) Send(msg *notification.Message) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || r.full {
		return false
	}
	r.messages = append(r.messages, msg)
	return true
}

func (r *Recorder) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
}

// SetFull makes subsequent sends fail as if the queue were saturated.
func (r *Recorder) SetFull(full bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.full = full
}

func (r *Recorder) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

func (r *Recorder) Messages() []*notification.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*notification.Message(nil), r.messages...)
}

// Events returns the event names received, in order.
func (r *Recorder) Events() []string {
	msgs := r.Messages()
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Event
	}
	return out
}

// Count returns how many messages with the given event were received.
func (r *Recorder) Count(event string) int {
	n := 0
	for _, m := range r.Messages() {
		if m.Event == event {
			n++
		}
	}
	return n
}

// Last decodes the most recent message for event into v and reports whether one existed.
func (r *Recorder) Last(event string, v any) bool {
	msgs := r.Messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Event == event {
			if v != nil {
				_ = json.Unmarshal(msgs[i].Data, v)
			}
			return true
		}
	}
	return false
}
