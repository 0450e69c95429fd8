package ws

import (
	"context"
	"net/http"

	"puzzle_webapp/internal/domain"
	"puzzle_webapp/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// SessionAuth is the part of the session manager the socket needs.
type SessionAuth interface {
	Lookup(ctx context.Context, id string) (*domain.Session, error)
	Heartbeat(ctx context.Context, id string)
}

// HandleWS upgrades requests carrying a live session. sessionID extracts
// the session id the same way the HTTP API does.
func HandleWS(hub *Hub, sessions SessionAuth, sessionID func(*gin.Context) string, allowedOrigin string) gin.HandlerFunc {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			if allowedOrigin == "" {
				return true
			}
			return r.Header.Get("Origin") == allowedOrigin
		},
	}

	return func(c *gin.Context) {
		id := sessionID(c)
		if id == "" {
			id = c.Query("session_id")
		}
		if _, err := sessions.Lookup(c.Request.Context(), id); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "session expired", "code": "session_expired"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("ws upgrade error", "error", err)
			return
		}

		client := NewClient(id, conn, hub, func() {
			sessions.Heartbeat(context.Background(), id)
		})
		go client.Run()
	}
}
