// Package realtime tracks live connections per room and fans room events
// out to their outbound mailboxes.
package realtime

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Conn is the in-memory side of one live client connection. Frames offered
// to it are queued in a bounded FIFO mailbox drained by a single writer.
type Conn struct {
	ID       string
	UserID   uint
	Username string

	mailbox   chan []byte
	done      chan struct{}
	closeOnce sync.Once
	dropped   atomic.Uint64
}

// NewConn creates a connection with a mailbox of the given capacity.
func NewConn(userID uint, username string, mailboxSize int) *Conn {
	if mailboxSize <= 0 {
		mailboxSize = 1
	}
	return &Conn{
		ID:       uuid.NewString(),
		UserID:   userID,
		Username: username,
		mailbox:  make(chan []byte, mailboxSize),
		done:     make(chan struct{}),
	}
}

// Offer queues a frame without blocking. It returns false when the mailbox
// is full or the connection is closed; the frame is then dropped.
func (c *Conn) Offer(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.mailbox <- frame:
		return true
	default:
		c.dropped.Add(1)
		return false
	}
}

// Mailbox is read by the connection's writer.
func (c *Conn) Mailbox() <-chan []byte {
	return c.mailbox
}

// Done is closed once the connection is closed.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Close marks the connection closed. It is safe to call more than once.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// Closed reports whether Close has been called.
func (c *Conn) Closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Dropped returns how many frames were discarded because the mailbox was full.
func (c *Conn) Dropped() uint64 {
	return c.dropped.Load()
}
