package services

import (
	"sync"
	"sync/atomic"
	"time"

	"video-match-backend/internal/models"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Peer is the matchmaker's view of a live connection. Send must never block.
type Peer interface {
	ID() string
	// Send queues an encoded frame. It returns false when the frame was dropped.
	Send(frame []byte) bool
	// Alive reports whether the transport is still open
	Alive() bool
	Close()
}

// ClientOptions tunes a websocket client
type ClientOptions struct {
	SendBuffer      int
	PingInterval    time.Duration
	PongWait        time.Duration
	WriteWait       time.Duration
	MaxMessageBytes int64
}

// DefaultClientOptions returns the transport defaults
func DefaultClientOptions() ClientOptions {
	return ClientOptions{
		SendBuffer:      64,
		PingInterval:    25 * time.Second,
		PongWait:        60 * time.Second,
		WriteWait:       10 * time.Second,
		MaxMessageBytes: 64 << 10,
	}
}

// Client is a Peer backed by a gorilla websocket connection
type Client struct {
	id   string
	conn *websocket.Conn
	opts ClientOptions

	send      chan []byte
	done      chan struct{}
	closed    atomic.Bool
	closeOnce sync.Once
}

// NewClient wraps an upgraded connection and assigns it a connection id
func NewClient(conn *websocket.Conn, opts ClientOptions) *Client {
	def := DefaultClientOptions()
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = def.SendBuffer
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = def.PingInterval
	}
	if opts.PongWait <= 0 {
		opts.PongWait = def.PongWait
	}
	if opts.WriteWait <= 0 {
		opts.WriteWait = def.WriteWait
	}
	return &Client{
		id:   uuid.New().String(),
		conn: conn,
		opts: opts,
		send: make(chan []byte, opts.SendBuffer),
		done: make(chan struct{}),
	}
}

// ID returns the connection id
func (c *Client) ID() string {
	return c.id
}

// Alive reports whether the connection is still open
func (c *Client) Alive() bool {
	return !c.closed.Load()
}

// Send queues a frame for the write pump. A closed client or a full buffer drops it.
func (c *Client) Send(frame []byte) bool {
	if c.closed.Load() {
		return false
	}
	select {
	case c.send <- frame:
		return true
	case <-c.done:
		return false
	default:
		log.Warn().Str("connection_id", c.id).Msg("Send buffer full, dropping message")
		return false
	}
}

// Close marks the client dead and tears down the connection. Safe to call repeatedly.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.done)
		deadline := time.Now().Add(time.Second)
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		c.conn.Close()
	})
}

// Reject writes one event directly to the connection and closes it. It is
// used before Run, while no write pump owns the connection.
func (c *Client) Reject(ev models.Event) {
	frame, err := ev.Encode()
	if err == nil {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			log.Debug().Err(err).Str("connection_id", c.id).Msg("Failed to write rejection")
		}
	}
	c.Close()
}

// Run starts the write pump and reads frames until the connection fails,
// handing each one to handle in receipt order. The client is closed on return.
func (c *Client) Run(handle func(frame []byte)) {
	defer c.Close()

	go c.writePump()

	if c.opts.MaxMessageBytes > 0 {
		c.conn.SetReadLimit(c.opts.MaxMessageBytes)
	}
	_ = c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Str("connection_id", c.id).Msg("WebSocket error")
			}
			return
		}
		handle(frame)
	}
}

// writePump drains the send channel and pings the peer so dead connections
// are noticed by the read deadline.
func (c *Client) writePump() {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case frame := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.Close()
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.opts.WriteWait)); err != nil {
				c.Close()
				return
			}
		case <-c.done:
			return
		}
	}
}
