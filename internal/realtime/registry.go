// Package realtime keeps the live client connections of the process and
// pushes events to them.
package realtime

import (
	"context"
	"sync"
	"time"

	"chainvault/internal/metrics"
	"chainvault/internal/models"
	"chainvault/pkg/utils"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Registry indexes connections by user id. A user may hold many connections
// and every push fans out to all of them.
type Registry struct {
	mu     sync.RWMutex
	byUser map[string]map[*Conn]struct{}
	now    func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{byUser: make(map[string]map[*Conn]struct{}), now: time.Now}
}

func (r *Registry) Register(userID string, role models.Role, socket Socket) *Conn {
	c := &Conn{
		ID:          uuid.NewString(),
		UserID:      userID,
		Role:        role,
		ConnectedAt: r.now(),
		socket:      socket,
	}
	c.alive.Store(true)

	r.mu.Lock()
	conns, ok := r.byUser[userID]
	if !ok {
		conns = make(map[*Conn]struct{})
		r.byUser[userID] = conns
	}
	conns[c] = struct{}{}
	total := len(conns)
	r.mu.Unlock()

	metrics.RealtimeConnections.Inc()
	utils.Logger.WithFields(logrus.Fields{
		"user_id": userID,
		"conn_id": c.ID,
		"role":    role,
		"total":   total,
	}).Info("realtime connection registered")
	return c
}

// Unregister removes and closes c. It reports whether c was still registered.
func (r *Registry) Unregister(c *Conn) bool {
	r.mu.Lock()
	conns, ok := r.byUser[c.UserID]
	if ok {
		_, ok = conns[c]
		delete(conns, c)
		if len(conns) == 0 {
			delete(r.byUser, c.UserID)
		}
	}
	r.mu.Unlock()

	c.close()
	if ok {
		metrics.RealtimeConnections.Dec()
		utils.Logger.WithFields(logrus.Fields{"user_id": c.UserID, "conn_id": c.ID}).Info("realtime connection removed")
	}
	return ok
}

// SendToUser writes event once to every connection of userID and returns the
// number of successful writes. A user without connections is a no-op.
func (r *Registry) SendToUser(userID string, event any) int {
	r.mu.RLock()
	targets := make([]*Conn, 0, len(r.byUser[userID]))
	for c := range r.byUser[userID] {
		targets = append(targets, c)
	}
	r.mu.RUnlock()
	return r.deliver(targets, event)
}

// SendToAdmins writes event to every admin connection.
func (r *Registry) SendToAdmins(event any) int {
	return r.deliver(r.snapshot(func(c *Conn) bool { return c.Role == models.RoleAdmin }), event)
}

// Broadcast writes event to every connection, optionally skipping admins.
func (r *Registry) Broadcast(event any, excludeAdmins bool) int {
	return r.deliver(r.snapshot(func(c *Conn) bool {
		return !excludeAdmins || c.Role != models.RoleAdmin
	}), event)
}

// Count returns the number of live connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, conns := range r.byUser {
		n += len(conns)
	}
	return n
}

func (r *Registry) UserConnections(userID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser[userID])
}

// Sweep runs one liveness round: connections that did not answer the previous
// ping are terminated, the rest are marked not-alive and pinged again.
func (r *Registry) Sweep() int {
	reaped := 0
	for _, c := range r.snapshot(nil) {
		if !c.alive.Swap(false) {
			if r.Unregister(c) {
				reaped++
				metrics.RealtimeReaped.Inc()
			}
			continue
		}
		if err := c.ping(); err != nil {
			utils.Logger.WithFields(logrus.Fields{"conn_id": c.ID, "error": err.Error()}).Warn("realtime ping failed")
			if r.Unregister(c) {
				reaped++
				metrics.RealtimeReaped.Inc()
			}
		}
	}
	return reaped
}

// Heartbeat sweeps every interval until ctx is done.
func (r *Registry) Heartbeat(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				utils.Logger.WithField("reaped", n).Info("realtime heartbeat reaped dead connections")
			}
		}
	}
}

// CloseAll drops every connection. Used on shutdown.
func (r *Registry) CloseAll() {
	for _, c := range r.snapshot(nil) {
		r.Unregister(c)
	}
}

func (r *Registry) snapshot(keep func(*Conn) bool) []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Conn
	for _, conns := range r.byUser {
		for c := range conns {
			if keep == nil || keep(c) {
				out = append(out, c)
			}
		}
	}
	return out
}

// deliver writes outside the registry lock. A failed write removes only the
// failing connection.
func (r *Registry) deliver(targets []*Conn, event any) int {
	ok := 0
	for _, c := range targets {
		if err := c.write(event); err != nil {
			metrics.RealtimeDeliveries.WithLabelValues("error").Inc()
			utils.Logger.WithFields(logrus.Fields{
				"user_id": c.UserID,
				"conn_id": c.ID,
				"error":   err.Error(),
			}).Warn("realtime write failed, dropping connection")
			r.Unregister(c)
			continue
		}
		metrics.RealtimeDeliveries.WithLabelValues("ok").Inc()
		ok++
	}
	return ok
}
