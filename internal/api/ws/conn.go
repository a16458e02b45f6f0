package ws

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/bookswap/realtime/internal/domain/notification"
)

// Options bounds a single websocket connection.
type Options struct {
	SendBuffer      int
	WriteTimeout    time.Duration
	PongTimeout     time.Duration
	MaxMessageBytes int64
}

func (o Options) withDefaults() Options {
	if o.SendBuffer <= 0 {
		o.SendBuffer = 64
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
	if o.PongTimeout <= 0 {
		o.PongTimeout = 60 * time.Second
	}
	if o.MaxMessageBytes <= 0 {
		o.MaxMessageBytes = 64 << 10
	}
	return o
}

// Conn is a notification.Handle backed by a websocket. Outbound messages are
// queued on a bounded channel and written by WritePump.
type Conn struct {
	id   string
	ws   *websocket.Conn
	opts Options

	send      chan *notification.Message
	done      chan struct{}
	closeOnce sync.Once

	logger zerolog.Logger
}

func NewConn(ws *websocket.Conn, opts Options, logger zerolog.Logger) *Conn {
	opts = opts.withDefaults()
	id := uuid.NewString()
	return &Conn{
		id:     id,
		ws:     ws,
		opts:   opts,
		send:   make(chan *notification.Message, opts.SendBuffer),
		done:   make(chan struct{}),
		logger: logger.With().Str("conn_id", id).Logger(),
	}
}

func (c *Conn) ID() string { return c.id }

// Send enqueues msg without blocking. It fails when the queue is full or the
// connection is closed.
func (c *Conn) Send(msg *notification.Message) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// Close stops the write pump, which closes the socket.
func (c *Conn) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// WritePump writes queued messages and pings until the connection is closed.
func (c *Conn) WritePump() {
	ticker := time.NewTicker(c.opts.PongTimeout * 9 / 10)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
			if err := c.ws.WriteJSON(msg); err != nil {
				c.logger.Debug().Err(err).Msg("write failed")
				c.Close()
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		case <-c.done:
			c.drain()
			_ = c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(c.opts.WriteTimeout))
			return
		}
	}
}

// drain flushes messages queued before Close.
func (c *Conn) drain() {
	for {
		select {
		case msg := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
			if err := c.ws.WriteJSON(msg); err != nil {
				return
			}
		default:
			return
		}
	}
}

// ReadPump reads frames and hands each to handle until the peer goes away.
func (c *Conn) ReadPump(handle func(data []byte)) {
	c.ws.SetReadLimit(c.opts.MaxMessageBytes)
	_ = c.ws.SetReadDeadline(time.Now().Add(c.opts.PongTimeout))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.opts.PongTimeout))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Warn().Err(err).Msg("websocket read error")
			}
			return
		}
		handle(data)
	}
}
