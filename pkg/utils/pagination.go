package utils

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

// ListResponse is the envelope of list endpoints.
type ListResponse struct {
	Data  interface{} `json:"data"`
	Total int64       `json:"total"`
	Limit int64       `json:"limit"`
}

// ParseLimit reads the limit query parameter, clamped to [1, max].
func ParseLimit(c *gin.Context, def, max int64) int64 {
	limit, err := strconv.ParseInt(c.DefaultQuery("limit", strconv.FormatInt(def, 10)), 10, 64)
	if err != nil || limit < 1 {
		limit = def
	}
	if limit > max {
		limit = max
	}
	return limit
}
