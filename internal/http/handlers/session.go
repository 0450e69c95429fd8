package handlers

import (
	"net/http"

	"puzzle_webapp/internal/domain"
	"puzzle_webapp/internal/http/middleware"

	"github.com/gin-gonic/gin"
)

type createSessionRequest struct {
	Identity string `json:"identity"`
	UserID   string `json:"user_id"`
}

// CreateSession verifies an identity and opens a session. The id goes out
// both in the body and as a cookie.
func (h *Handler) CreateSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "bad request")
		return
	}

	identity := req.Identity
	if identity == "" && h.cfg.DevMode {
		identity = req.UserID
	}

	sess, err := h.Sessions.Create(c.Request.Context(), identity)
	if err != nil {
		respondError(c, err)
		return
	}

	ttl := h.Sessions.TTL()
	setSessionCookie(c, sess.ID, int(ttl.Seconds()))

	c.JSON(http.StatusCreated, gin.H{
		"session_id":         sess.ID,
		"user_id":            sess.UserID,
		"expires_in":         int(ttl.Seconds()),
		"heartbeat_interval": int(h.cfg.Heartbeat.Seconds()),
	})
}

// Heartbeat is fire-and-forget: unknown or dead sessions get the same 204.
func (h *Handler) Heartbeat(c *gin.Context) {
	if id := middleware.SessionID(c); id != "" {
		h.Sessions.Heartbeat(c.Request.Context(), id)
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) DestroySession(c *gin.Context) {
	if id := middleware.SessionID(c); id != "" {
		h.Sessions.Destroy(c.Request.Context(), id)
	}
	setSessionCookie(c, "", -1)
	c.Status(http.StatusNoContent)
}

// Me returns the caller's session binding.
func (h *Handler) Me(c *gin.Context) {
	sid, uid, ok := getSession(c)
	if !ok {
		respondError(c, domain.ErrSessionExpired)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"session_id": sid,
		"user_id":    uid,
	})
}

// setSessionCookie writes an HttpOnly cookie. Inside the host's iframe the
// cookie is cross-site, which browsers only accept as SameSite=None+Secure.
func setSessionCookie(c *gin.Context, value string, maxAge int) {
	secure := requestIsTLS(c.Request)
	if secure {
		c.SetSameSite(http.SameSiteNoneMode)
	} else {
		c.SetSameSite(http.SameSiteLaxMode)
	}
	c.SetCookie(middleware.SessionCookieName, value, maxAge, "/", "", secure, true)
}

func requestIsTLS(r *http.Request) bool {
	return r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https"
}
