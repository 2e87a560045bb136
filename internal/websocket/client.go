package websocket

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// State is the liveness state of a connection.
type State int32

const (
	StateOpen State = iota
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "OPEN"
	case StateClosing:
		return "CLOSING"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// Peer is a registered connection that can receive broadcasts.
type Peer interface {
	ID() string
	// Send queues payload without blocking and reports whether it was accepted.
	Send(payload []byte) bool
	// Close stops accepting payloads. It is safe to call more than once.
	Close()
}

// Client represents a single connected WebSocket client.
type Client struct {
	id         string
	remoteAddr string
	conn       *websocket.Conn
	state      atomic.Int32

	// mu guards send so a concurrent Close never races a Send.
	mu   sync.RWMutex
	send chan []byte
}

var _ Peer = (*Client)(nil)

// NewClient wraps an accepted connection with a buffered outbound queue.
func NewClient(conn *websocket.Conn, remoteAddr string, bufferSize int) *Client {
	return &Client{
		id:         uuid.NewString(),
		remoteAddr: remoteAddr,
		conn:       conn,
		send:       make(chan []byte, bufferSize),
	}
}

// ID returns the connection handle.
func (c *Client) ID() string { return c.id }

// RemoteAddr returns the peer address seen at upgrade time.
func (c *Client) RemoteAddr() string { return c.remoteAddr }

// State returns the current liveness state.
func (c *Client) State() State { return State(c.state.Load()) }

// Send queues a message for the write pump. It returns false when the client
// is closed or its queue is full.
func (c *Client) Send(msg []byte) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.send == nil {
		return false
	}

	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// Close closes the outbound queue. The write pump drains what is queued,
// sends a close frame and exits.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.send != nil {
		close(c.send)
		c.send = nil
		c.state.CompareAndSwap(int32(StateOpen), int32(StateClosing))
	}
}

// queue returns the receive side of the outbound queue, or nil once closed.
func (c *Client) queue() <-chan []byte {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.send
}

// writePump sends queued messages and keep-alive pings until the queue is
// closed or a write fails.
func (c *Client) writePump(writeWait, pingPeriod time.Duration, log *slog.Logger) {
	queue := c.queue()
	if queue == nil {
		c.state.Store(int32(StateClosed))
		return
	}

	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.state.Store(int32(StateClosed))
	}()

	for {
		select {
		case message, ok := <-queue:
			if !ok {
				if err := c.conn.Close(websocket.StatusNormalClosure, ""); err != nil && !isClosed(err) {
					log.Debug("WebSocket close handshake failed", "error", err)
				}
				return
			}

			ctx, cancel := context.WithTimeout(context.Background(), writeWait)
			err := c.conn.Write(ctx, websocket.MessageText, message)
			cancel()
			if err != nil {
				log.Warn("WebSocket write error", "error", err)
				c.Close()
				c.conn.CloseNow()
				return
			}

		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), writeWait)
			err := c.conn.Ping(ctx)
			cancel()
			if err != nil {
				log.Warn("WebSocket ping failed", "error", err)
				c.Close()
				c.conn.CloseNow()
				return
			}
		}
	}
}

func isClosed(err error) bool {
	return errors.Is(err, net.ErrClosed) || websocket.CloseStatus(err) != -1
}
