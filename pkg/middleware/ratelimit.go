package middleware

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/troikatech/call-center/pkg/errors"
)

// RateLimiter is a fixed window counter per client, shared by every
// instance through Redis.
type RateLimiter struct {
	client      *redis.Client
	maxRequests int
	window      time.Duration
	logger      *zap.Logger
}

func NewRateLimiter(client *redis.Client, maxRequestsPerMinute int, logger *zap.Logger) *RateLimiter {
	return &RateLimiter{
		client:      client,
		maxRequests: maxRequestsPerMinute,
		window:      time.Minute,
		logger:      logger,
	}
}

// Middleware counts requests per token subject, or per client IP for
// anonymous requests. Requests are let through when Redis is unreachable.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		client := c.GetString("subject")
		if client == "" {
			client = c.ClientIP()
		}
		window := time.Now().Unix() / int64(rl.window.Seconds())
		key := fmt.Sprintf("ratelimit:%s:%d", client, window)
		ctx := c.Request.Context()

		pipe := rl.client.TxPipeline()
		incr := pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, rl.window)
		if _, err := pipe.Exec(ctx); err != nil {
			rl.logger.Warn("Rate limit check failed, allowing request", zap.Error(err))
			c.Next()
			return
		}
		count := incr.Val()

		c.Header("X-RateLimit-Limit", strconv.Itoa(rl.maxRequests))
		if count > int64(rl.maxRequests) {
			c.Header("X-RateLimit-Remaining", "0")
			c.Header("Retry-After", strconv.Itoa(int(rl.window.Seconds())))
			errors.TooManyRequests(c, "rate limit exceeded")
			return
		}
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(int64(rl.maxRequests)-count, 10))
		c.Next()
	}
}
