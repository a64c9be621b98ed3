package live

import (
	"sync"

	v1 "github.com/A1dos-Creations/login-api-website/shared/contracts/live/v1"
)

// Client is one connected websocket.
//
// Send is never closed by the server; done signals the writer to stop.
// The logout event has its own one-slot channel, drained before Send, so a full
// send queue cannot drop it.
type Client struct {
	ID     string
	UserID string
	Send   chan v1.Event

	logout    chan v1.Event
	done      chan struct{}
	closeOnce sync.Once
}

// NewClient constructs a Client with a bounded send queue.
func NewClient(id string, sendQueueSize int) *Client {
	if sendQueueSize <= 0 {
		sendQueueSize = defaultSendQueue
	}
	return &Client{
		ID:     id,
		Send:   make(chan v1.Event, sendQueueSize),
		logout: make(chan v1.Event, 1),
		done:   make(chan struct{}),
	}
}

// Deliver enqueues ev without blocking. It reports false when the queue is full
// or the client is closing.
func (c *Client) Deliver(ev v1.Event) bool {
	if c == nil {
		return false
	}
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.Send <- ev:
		return true
	default:
		return false
	}
}

// DeliverLogout queues the logout event. It reports false when a logout is
// already pending or the client is closing.
func (c *Client) DeliverLogout() bool {
	if c == nil {
		return false
	}
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.logout <- v1.Logout():
		return true
	default:
		return false
	}
}

// Logouts returns the channel carrying the pending logout event.
func (c *Client) Logouts() <-chan v1.Event { return c.logout }

// Done returns a channel that is closed when the client is shutting down.
func (c *Client) Done() <-chan struct{} {
	if c == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return c.done
}

// Close signals the client goroutines to stop (idempotent).
func (c *Client) Close() {
	if c == nil {
		return
	}
	c.closeOnce.Do(func() {
		close(c.done)
	})
}
