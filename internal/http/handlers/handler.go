package handlers

import (
	"errors"
	"net/http"
	"time"

	"puzzle_webapp/internal/dispatch"
	"puzzle_webapp/internal/domain"
	"puzzle_webapp/internal/http/middleware"
	"puzzle_webapp/internal/logger"
	"puzzle_webapp/internal/repository"
	"puzzle_webapp/internal/service"
	"puzzle_webapp/internal/session"

	"github.com/gin-gonic/gin"
)

// HandlerConfig holds configuration for handler
type HandlerConfig struct {
	BotToken  string
	DevMode   bool
	Heartbeat time.Duration
}

type Handler struct {
	Sessions *session.Manager
	Engine   *dispatch.Engine
	Results  *service.ResultService
	Identity *service.IdentityService
	cfg      HandlerConfig
}

func NewHandler(sessions *session.Manager, engine *dispatch.Engine, results *service.ResultService, identity *service.IdentityService, cfg HandlerConfig) *Handler {
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = 25 * time.Second
	}
	return &Handler{
		Sessions: sessions,
		Engine:   engine,
		Results:  results,
		Identity: identity,
		cfg:      cfg,
	}
}

// getSession извлекает session_id и user_id из контекста Gin
func getSession(c *gin.Context) (string, string, bool) {
	return middleware.CurrentSession(c)
}

func gameParam(c *gin.Context) domain.GameType {
	return domain.GameType(c.Param("game"))
}

// respondError maps domain errors onto status codes. Normal dispatch
// outcomes never reach here.
func respondError(c *gin.Context, err error) {
	var ce *domain.ConflictError
	switch {
	case errors.As(err, &ce):
		c.JSON(http.StatusConflict, gin.H{
			"error":         ce.Error(),
			"code":          "conflict",
			"current_epoch": ce.CurrentEpoch,
			"started":       ce.Started,
		})
	case errors.Is(err, domain.ErrUnknownGame):
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown game", "code": "unknown_game"})
	case errors.Is(err, domain.ErrSessionExpired):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "session expired", "code": "session_expired"})
	case errors.Is(err, domain.ErrIdentityInvalid):
		c.JSON(http.StatusBadRequest, gin.H{"error": "identity invalid", "code": "identity_invalid"})
	case errors.Is(err, repository.ErrStatsNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "no stats yet", "code": "not_found"})
	default:
		logger.WithContext(c.Request.Context()).Error("request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error", "code": "internal"})
	}
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg, "code": "bad_request"})
}
