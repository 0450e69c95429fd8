package handlers

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// HealthHandler handles health check endpoints. Both backends are
// optional; a nil one is reported as "disabled".
type HealthHandler struct {
	db        *pgxpool.Pool
	rdb       *redis.Client
	sessions  func(ctx context.Context) (int, error)
	startTime time.Time
	version   string
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db *pgxpool.Pool, rdb *redis.Client, sessions func(ctx context.Context) (int, error), version string) *HealthHandler {
	return &HealthHandler{
		db:        db,
		rdb:       rdb,
		sessions:  sessions,
		startTime: time.Now(),
		version:   version,
	}
}

// HealthResponse represents health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version,omitempty"`
	Uptime    string            `json:"uptime,omitempty"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// Liveness returns simple alive status (for k8s liveness probe)
func (h *HealthHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Readiness returns detailed health status (for k8s readiness probe)
func (h *HealthHandler) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string)

	dbOK, dbMsg := h.pingDB(ctx)
	checks["database"] = dbMsg
	redisOK, redisMsg := h.pingRedis(ctx)
	checks["redis"] = redisMsg
	allHealthy := dbOK && redisOK

	if h.sessions != nil {
		if n, err := h.sessions(ctx); err == nil {
			checks["sessions"] = strconv.Itoa(n)
		}
	}

	// Memory check
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	checks["memory_alloc_mb"] = formatMB(m.Alloc)

	status := "healthy"
	statusCode := http.StatusOK
	if !allHealthy {
		status = "unhealthy"
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, HealthResponse{
		Status:    status,
		Version:   h.version,
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	})
}

// Health is a combined endpoint for basic health checks
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	if ok, _ := h.pingRedis(ctx); !ok {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
			"error":  "redis unavailable",
		})
		return
	}
	if ok, _ := h.pingDB(ctx); !ok {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
			"error":  "database unavailable",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": h.version,
	})
}

func (h *HealthHandler) pingDB(ctx context.Context) (bool, string) {
	if h.db == nil {
		return true, "disabled"
	}
	if err := h.db.Ping(ctx); err != nil {
		return false, "unhealthy: " + err.Error()
	}
	return true, "healthy"
}

func (h *HealthHandler) pingRedis(ctx context.Context) (bool, string) {
	if h.rdb == nil {
		return true, "disabled"
	}
	if err := h.rdb.Ping(ctx).Err(); err != nil {
		return false, "unhealthy: " + err.Error()
	}
	return true, "healthy"
}

func formatMB(bytes uint64) string {
	mb := float64(bytes) / 1024 / 1024
	return fmt.Sprintf("%.2f", mb)
}
