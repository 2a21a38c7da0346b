package handler

import (
	"net/http"
	"net/url"
	"slices"

	"travelmate/backend/internal/api/middleware"
	"travelmate/backend/internal/chathub"
	"travelmate/backend/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

func newUpgrader(origins []string) websocket.Upgrader {
	allowAll := len(origins) == 0 || slices.Contains(origins, "*")
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if allowAll || origin == "" {
				return true
			}
			u, err := url.Parse(origin)
			if err != nil {
				return false
			}
			return slices.Contains(origins, u.Scheme+"://"+u.Host)
		},
	}
}

// websocketHandler upgrades an authenticated request to the realtime event
// stream. The first frame is the caller's reconciled counters.
func (h *Handler) websocketHandler(origins []string) gin.HandlerFunc {
	upgrader := newUpgrader(origins)

	return func(c *gin.Context) {
		userID := middleware.UserID(c)

		counters, err := h.Counters.Reconcile(c.Request.Context(), userID)
		if err != nil {
			_ = c.Error(err)
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Upgrade has already written the HTTP error.
			h.log.WithError(err).WithField("user_id", userID).Debug("websocket upgrade failed")
			return
		}

		client := chathub.NewWebSocketClient(h.Hub, conn, userID)
		client.Send <- models.RealtimeEvent{Type: models.EventCounters, Counters: &counters}

		select {
		case h.Hub.RegisterCh <- client:
			client.Run()
		case <-h.Hub.Done():
			conn.Close()
		}
	}
}
