package ws

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"chainvault/internal/api/handlers"
	"chainvault/internal/realtime"
	"chainvault/pkg/utils"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

type Handler struct {
	registry  *realtime.Registry
	heartbeat time.Duration
	upgrader  websocket.Upgrader
}

// NewHandler accepts upgrades from the given origins; "*" allows any.
func NewHandler(registry *realtime.Registry, heartbeat time.Duration, origins []string) *Handler {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[strings.ToLower(o)] = true
	}
	return &Handler{
		registry:  registry,
		heartbeat: heartbeat,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" || allowed["*"] {
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				return allowed[strings.ToLower(u.Scheme+"://"+u.Host)]
			},
		},
	}
}

// Serve upgrades an authenticated request and keeps the connection
// registered until the client goes away.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	userID, ok := handlers.UserID(w, r)
	if !ok {
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		utils.Logger.WithFields(logrus.Fields{
			"user_id": userID,
			"error":   err.Error(),
		}).Warn("websocket upgrade failed")
		return
	}

	role := utils.RoleFrom(r.Context())
	utils.Logger.WithFields(logrus.Fields{"user_id": userID, "role": role}).Debug("websocket connected")
	h.registry.Serve(r.Context(), conn, userID, role, h.heartbeat)
	utils.Logger.WithField("user_id", userID).Debug("websocket disconnected")
}
