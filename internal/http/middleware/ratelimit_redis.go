package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	redis "github.com/redis/go-redis/v9"
)

var redisClient *redis.Client

// InitRedisRateLimiter sets the shared Redis client used by the limiters.
// With a nil client the Redis limiters fail open.
func InitRedisRateLimiter(client *redis.Client) {
	redisClient = client
}

// RedisEnabled reports whether a Redis client is configured.
func RedisEnabled() bool {
	return redisClient != nil
}

// RedisRateLimit implements a simple fixed-window rate limiter using Redis INCR/EXPIRE.
// key format: rl:<window_seconds>:<identifier>
func RedisRateLimit(maxRequests int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if redisClient == nil {
			// fallback to allowing requests if Redis not configured
			c.Next()
			return
		}

		ident := c.ClientIP()
		key := "rl:" + strconv.FormatInt(int64(window.Seconds()), 10) + ":" + ident

		allowed, _, err := hit(c.Request.Context(), key, maxRequests, window)
		if err != nil {
			// on Redis error, fail-open (allow) but set header
			RLFailOpen.WithLabelValues(limiterRedis).Inc()
			c.Header("X-RateLimit-Error", "redis-error")
			c.Next()
			return
		}

		if !allowed {
			RLBlocked.WithLabelValues(limiterRedis, c.FullPath()).Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded", "code": "rate_limited"})
			return
		}

		RLRequests.WithLabelValues(limiterRedis, c.FullPath()).Inc()
		c.Next()
	}
}

// hit increments the fixed-window counter and reports whether the request
// fits in the limit along with the remaining budget.
func hit(ctx context.Context, key string, limit int, window time.Duration) (bool, int64, error) {
	val, err := redisClient.Incr(ctx, key).Result()
	if err != nil {
		return true, 0, err
	}
	if val == 1 {
		// first increment, set expiry
		redisClient.Expire(ctx, key, window)
	}
	return val <= int64(limit), max(0, int64(limit)-val), nil
}
