package ws

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// ErrClientClosed is returned by Send once the client started closing.
var ErrClientClosed = errors.New("websocket client closed")

// State is the lifecycle position of a connection.
type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ClientConfig bounds a connection's reads and writes.
type ClientConfig struct {
	Heartbeat     time.Duration
	WriteWait     time.Duration
	MaxFrameBytes int64
}

// Client owns one upgraded websocket. Writes are serialized; pings and the
// close frame go through WriteControl, which gorilla allows concurrently.
type Client struct {
	conn *websocket.Conn
	info ConnInfo
	cfg  ClientConfig

	writeMu   sync.Mutex
	state     atomic.Int32
	closeOnce sync.Once
	done      chan struct{}
}

// NewClient wraps an upgraded connection. The client stays CONNECTING until Open.
func NewClient(conn *websocket.Conn, info ConnInfo, cfg ClientConfig) *Client {
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = 30 * time.Second
	}
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = 10 * time.Second
	}
	return &Client{conn: conn, info: info, cfg: cfg, done: make(chan struct{})}
}

// ID returns the connection id.
func (c *Client) ID() string { return c.info.ConnID }

// Info returns the connection metadata.
func (c *Client) Info() ConnInfo { return c.info }

// State returns the current lifecycle state.
func (c *Client) State() State { return State(c.state.Load()) }

// Open applies read limits and deadlines and starts the heartbeat.
func (c *Client) Open() {
	if c.cfg.MaxFrameBytes > 0 {
		c.conn.SetReadLimit(c.cfg.MaxFrameBytes)
	}
	_ = c.conn.SetReadDeadline(time.Now().Add(c.readTimeout()))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.readTimeout()))
	})
	c.state.CompareAndSwap(int32(StateConnecting), int32(StateOpen))
	go c.heartbeat()
}

func (c *Client) readTimeout() time.Duration {
	return 2 * c.cfg.Heartbeat
}

// ReadFrame blocks for the next data frame. Every frame extends the read
// deadline.
func (c *Client) ReadFrame() (int, []byte, error) {
	mt, data, err := c.conn.ReadMessage()
	if err != nil {
		return mt, nil, err
	}
	_ = c.conn.SetReadDeadline(time.Now().Add(c.readTimeout()))
	return mt, data, nil
}

// Send writes one text frame.
func (c *Client) Send(payload []byte) error {
	if c.State() >= StateClosing {
		return ErrClientClosed
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

// Close sends a close frame and releases the socket. Safe to call from any
// goroutine, any number of times.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.state.Store(int32(StateClosing))
		close(c.done)
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(c.cfg.WriteWait))
		err = c.conn.Close()
		c.state.Store(int32(StateClosed))
	})
	return err
}

func (c *Client) heartbeat() {
	ticker := time.NewTicker(c.cfg.Heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.cfg.WriteWait)); err != nil {
				_ = c.Close()
				return
			}
		}
	}
}
