package realtime

import (
	"sync"
	"sync/atomic"
	"time"

	"chainvault/internal/models"
)

// Socket is the transport of one live connection.
type Socket interface {
	WriteJSON(v any) error
	Ping() error
	Close() error
}

// Conn is a registered connection. Writes to it are serialized.
type Conn struct {
	ID          string
	UserID      string
	Role        models.Role
	ConnectedAt time.Time

	socket    Socket
	writeMu   sync.Mutex
	alive     atomic.Bool
	closeOnce sync.Once
}

// MarkAlive records a pong.
func (c *Conn) MarkAlive() { c.alive.Store(true) }

func (c *Conn) write(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.socket.WriteJSON(v)
}

func (c *Conn) ping() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.socket.Ping()
}

func (c *Conn) close() {
	c.closeOnce.Do(func() { _ = c.socket.Close() })
}
