package realtime

import (
	"context"
	"time"

	"chainvault/internal/models"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 4096
)

type wsSocket struct {
	conn *websocket.Conn
}

// NewWebsocketSocket adapts a gorilla connection to Socket.
func NewWebsocketSocket(conn *websocket.Conn) Socket {
	return &wsSocket{conn: conn}
}

func (s *wsSocket) WriteJSON(v any) error {
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(v)
}

func (s *wsSocket) Ping() error {
	return s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

func (s *wsSocket) Close() error { return s.conn.Close() }

// Serve registers conn for userID and blocks reading from it until the peer
// goes away or ctx is done. Incoming messages are discarded; pongs mark the
// connection alive.
func (r *Registry) Serve(ctx context.Context, conn *websocket.Conn, userID string, role models.Role, heartbeat time.Duration) {
	c := r.Register(userID, role, NewWebsocketSocket(conn))
	defer r.Unregister(c)

	readWait := 2 * heartbeat
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(readWait))
	conn.SetPongHandler(func(string) error {
		c.MarkAlive()
		return conn.SetReadDeadline(time.Now().Add(readWait))
	})

	stop := context.AfterFunc(ctx, func() { c.close() })
	defer stop()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
