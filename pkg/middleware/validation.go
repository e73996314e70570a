package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/troikatech/call-center/pkg/errors"
	"github.com/troikatech/call-center/pkg/validation"
)

// ValidateCallIDParam checks that the path parameter is a call id.
func ValidateCallIDParam(paramName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param(paramName)
		if id == "" {
			errors.BadRequest(c, paramName+" parameter is required")
			return
		}
		if _, err := uuid.Parse(id); err != nil {
			errors.BadRequest(c, "invalid "+paramName+" parameter: must be a UUID")
			return
		}
		c.Set(paramName, id)
		c.Next()
	}
}

// ValidatePhoneQuery normalizes the query parameter to E.164 and stores it
// in the context under the same name. An absent parameter is only rejected
// when required.
func ValidatePhoneQuery(paramName string, required bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		phone := c.Query(paramName)
		if phone == "" {
			if required {
				errors.BadRequest(c, paramName+" parameter is required")
				return
			}
			c.Next()
			return
		}

		normalized, err := validation.NormalizeE164(phone)
		if err != nil {
			errors.BadRequest(c, "invalid "+paramName+": must be in E.164 format (e.g., +33612345678)")
			return
		}
		c.Set(paramName, normalized)
		c.Next()
	}
}

// SanitizeString removes null bytes and surrounding whitespace.
func SanitizeString(s string) string {
	s = strings.ReplaceAll(s, "\x00", "")
	return strings.TrimSpace(s)
}
