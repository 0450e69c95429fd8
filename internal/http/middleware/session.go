package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"puzzle_webapp/internal/domain"
	"puzzle_webapp/internal/logger"

	"github.com/gin-gonic/gin"
)

const (
	SessionCookieName = "session_id"
	SessionHeader     = "X-Session-ID"

	ctxSessionID = "session_id"
	ctxUserID    = "user_id"
)

type SessionLookup interface {
	Lookup(ctx context.Context, id string) (*domain.Session, error)
}

// SessionID returns the session id carried by the request: cookie first,
// then the X-Session-ID header for hosts that block third-party cookies.
func SessionID(c *gin.Context) string {
	if v, err := c.Cookie(SessionCookieName); err == nil && v != "" {
		return v
	}
	return strings.TrimSpace(c.GetHeader(SessionHeader))
}

// SessionAuth rejects requests without a live session.
func SessionAuth(sessions SessionLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := SessionID(c)
		sess, err := sessions.Lookup(c.Request.Context(), id)
		if err != nil {
			if !errors.Is(err, domain.ErrSessionExpired) {
				logger.Error("session lookup failed", "error", err)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error", "code": "internal"})
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session expired", "code": "session_expired"})
			return
		}

		c.Set(ctxSessionID, sess.ID)
		c.Set(ctxUserID, sess.UserID)
		c.Request = c.Request.WithContext(logger.NewContext(c.Request.Context(), "user_id", sess.UserID))
		c.Next()
	}
}

// CurrentSession returns the ids stored by SessionAuth.
func CurrentSession(c *gin.Context) (sessionID, userID string, ok bool) {
	sessionID = c.GetString(ctxSessionID)
	userID = c.GetString(ctxUserID)
	return sessionID, userID, sessionID != ""
}
