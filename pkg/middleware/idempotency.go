package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const idempotencyKeyHeader = "Idempotency-Key"
const idempotencyTTL = 24 * time.Hour

type cachedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// bodyWriter keeps a copy of what the handler writes.
type bodyWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *bodyWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *bodyWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// IdempotencyMiddleware replays the stored response of a POST already made
// with the same Idempotency-Key. Only responses below 500 are stored, so a
// failed attempt can be retried.
func IdempotencyMiddleware(redisClient *redis.Client, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(idempotencyKeyHeader)
		if c.Request.Method != http.MethodPost || key == "" {
			c.Next()
			return
		}

		// Keys are scoped to the route and the caller
		hash := sha256.Sum256([]byte(c.FullPath() + "|" + c.GetString("subject") + "|" + key))
		cacheKey := "idempotency:" + hex.EncodeToString(hash[:])
		ctx := c.Request.Context()

		raw, err := redisClient.Get(ctx, cacheKey).Bytes()
		if err == nil {
			var cached cachedResponse
			if err := json.Unmarshal(raw, &cached); err == nil {
				c.Header("X-Idempotency-Replayed", "true")
				c.Data(cached.Status, cached.ContentType, cached.Body)
				c.Abort()
				return
			}
		} else if err != redis.Nil {
			logger.Warn("Idempotency lookup failed", zap.Error(err))
		}

		writer := &bodyWriter{ResponseWriter: c.Writer}
		c.Writer = writer
		c.Next()

		if writer.Status() >= http.StatusInternalServerError {
			return
		}
		payload, err := json.Marshal(cachedResponse{
			Status:      writer.Status(),
			ContentType: writer.Header().Get("Content-Type"),
			Body:        writer.body.Bytes(),
		})
		if err != nil {
			return
		}
		if err := redisClient.Set(ctx, cacheKey, payload, idempotencyTTL).Err(); err != nil {
			logger.Warn("Failed to store idempotent response", zap.Error(err))
		}
	}
}
