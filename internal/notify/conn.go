package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Conn is one open SSE stream for a user. The send channel is buffered and
// writes never block: a slow consumer drops messages, and the client recovers
// by refetching on its next event or reconnect.
type Conn struct {
	ID        string
	UserID    string
	CreatedAt time.Time

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newConn(userID string) *Conn {
	return &Conn{
		ID:        uuid.New().String(),
		UserID:    userID,
		CreatedAt: time.Now(),
		send:      make(chan []byte, 32),
		done:      make(chan struct{}),
	}
}

// Messages returns the channel the SSE handler drains.
func (c *Conn) Messages() <-chan []byte {
	return c.send
}

// Done is closed when the connection is evicted or the server shuts down.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Push queues a payload without blocking. Full buffer means the message is
// dropped; delivery is best-effort by contract.
func (c *Conn) Push(payload []byte) {
	select {
	case <-c.done:
	case c.send <- payload:
	default:
		// Channel full, message dropped
	}
}

// Close signals the handler loop to end the stream. Safe to call repeatedly.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}
