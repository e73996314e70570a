package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/troikatech/call-center/pkg/errors"
)

// SecurityHeaders sets the response headers of an API that never serves
// browser content.
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "no-referrer")
		c.Header("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		c.Next()
	}
}

// RequestSizeLimit rejects bodies larger than maxBytes. Bodies sent without a
// length are cut at maxBytes while read.
func RequestSizeLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			errors.RequestTooLarge(c, "request body is too large")
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
