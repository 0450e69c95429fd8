package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// GameRateLimit limits puzzle actions per session and game using Redis.
// Requires SessionAuth to run before this.
func GameRateLimit(maxActions int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if redisClient == nil {
			// Redis not configured, fail-open
			c.Next()
			return
		}

		sessionID, _, ok := CurrentSession(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session expired", "code": "session_expired"})
			return
		}

		game := c.Param("game")
		key := "game_rl:" + game + ":" + sessionID + ":" + strconv.FormatInt(int64(window.Seconds()), 10)

		allowed, remaining, err := hit(c.Request.Context(), key, maxActions, window)
		if err != nil {
			RLFailOpen.WithLabelValues(limiterGame).Inc()
			c.Header("X-GameRateLimit-Error", "redis-error")
			c.Next()
			return
		}

		c.Header("X-GameRateLimit-Limit", strconv.Itoa(maxActions))
		c.Header("X-GameRateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if !allowed {
			RLBlocked.WithLabelValues(limiterGame, game).Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "game rate limit exceeded",
				"code":        "rate_limited",
				"retry_after": int(window.Seconds()),
			})
			return
		}

		RLRequests.WithLabelValues(limiterGame, game).Inc()
		c.Next()
	}
}
