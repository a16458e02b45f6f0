package sse

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/google/uuid"

	"github.com/bookswap/realtime/internal/domain/notification"
)

// Stream is a receive-only notification.Handle written as server-sent events.
type Stream struct {
	id        string
	messages  chan *notification.Message
	done      chan struct{}
	closeOnce sync.Once
}

func NewStream(buffer int) *Stream {
	if buffer <= 0 {
		buffer = 64
	}
	return &Stream{
		id:       uuid.NewString(),
		messages: make(chan *notification.Message, buffer),
		done:     make(chan struct{}),
	}
}

func (s *Stream) ID() string { return s.id }

func (s *Stream) Send(msg *notification.Message) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	return trySend(s.messages, msg)
}

func (s *Stream) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// Serve writes events to w until the request ends or the stream is closed.
func (s *Stream) Serve(w http.ResponseWriter, r *http.Request) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return http.ErrNotSupported
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(": connected\n\n"))
	flusher.Flush()

	ctx := r.Context()
	for {
		select {
		case msg := <-s.messages:
			if err := writeEvent(w, msg); err != nil {
				return err
			}
			flusher.Flush()
		case <-s.done:
			return nil
		case <-ctx.Done():
			return nil
		}
	}
}

func writeEvent(w http.ResponseWriter, msg *notification.Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if _, err := w.Write([]byte("id: " + msg.ID + "\nevent: " + msg.Event + "\ndata: ")); err != nil {
		return err
	}
	if _, err := w.Write(payload); err != nil {
		return err
	}
	_, err = w.Write([]byte("\n\n"))
	return err
}

func trySend(ch chan *notification.Message, msg *notification.Message) bool {
	select {
	case ch <- msg:
		return true
	default:
		return false
	}
}
