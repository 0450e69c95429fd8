package http

import (
	"time"

	"puzzle_webapp/internal/config"
	"puzzle_webapp/internal/http/handlers"
	"puzzle_webapp/internal/http/middleware"
	"puzzle_webapp/internal/session"
	"puzzle_webapp/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Limits are the per-route rate limits.
type Limits struct {
	API        int
	APIWindow  time.Duration
	Auth       int
	AuthWindow time.Duration
	Game       int
	GameWindow time.Duration
}

// LimitsFromConfig reads the rate limits out of cfg.
func LimitsFromConfig(cfg *config.Config) Limits {
	return Limits{
		API:        cfg.APIRateLimit,
		APIWindow:  cfg.APIRateWindow,
		Auth:       cfg.AuthRateLimit,
		AuthWindow: cfg.AuthRateWindow,
		Game:       cfg.GameRateLimit,
		GameWindow: cfg.GameRateWindow,
	}
}

func RegisterRoutes(r *gin.Engine, h *handlers.Handler, health *handlers.HealthHandler, hub *ws.Hub, sessions *session.Manager, limits Limits, allowedOrigin string) {
	r.Use(middleware.CORS(allowedOrigin))

	// Health checks (no rate limiting)
	r.GET("/health", health.Health)
	r.GET("/healthz", health.Liveness)
	r.GET("/readyz", health.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	auth := middleware.SessionAuth(sessions)

	api := r.Group("/api")
	api.Use(middleware.RateLimit(limits.API, limits.APIWindow))
	{
		api.POST("/auth", middleware.RateLimit(limits.Auth, limits.AuthWindow), h.Auth)

		api.POST("/session", middleware.RateLimit(limits.Auth, limits.AuthWindow), h.CreateSession)
		api.POST("/session/heartbeat", h.Heartbeat)
		api.DELETE("/session", h.DestroySession)

		api.GET("/me", auth, h.Me)
		api.GET("/me/results", auth, h.MyResults)
		api.GET("/stats/:game/daily", h.DailyStats)
	}

	// Game rate limiter middleware (per session, not per IP)
	gameRL := middleware.GameRateLimit(limits.Game, limits.GameWindow)

	r.GET("/games", h.ListGames)
	r.GET("/games/:game/leaderboard", h.GetLeaderboard)

	games := r.Group("/games/:game")
	games.Use(auth, gameRL)
	{
		games.GET("/start", h.StartGame)
		games.POST("/start", h.StartGame)
		games.POST("/reset", h.ResetGame)
		games.POST("/update", h.UpdateGame)
		games.POST("/house_turn", h.HouseTurn)
	}

	r.GET("/ws", ws.HandleWS(hub, sessions, middleware.SessionID, allowedOrigin))
}
