package errors

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const problemBaseURL = "https://callcenter.troikatech.dev/problems"

// ProblemDetail represents an RFC 7807 Problem Details response
type ProblemDetail struct {
	Type     string   `json:"type"`
	Title    string   `json:"title"`
	Status   int      `json:"status"`
	Detail   string   `json:"detail,omitempty"`
	Errors   []string `json:"errors,omitempty"`
	TraceID  string   `json:"trace_id,omitempty"`
	Instance string   `json:"instance,omitempty"`
}

// ErrorResponse sends a problem+json error response
func ErrorResponse(c *gin.Context, status int, title, detail string) {
	write(c, ProblemDetail{
		Type:   problemType(status),
		Title:  title,
		Status: status,
		Detail: detail,
	})
}

func write(c *gin.Context, problem ProblemDetail) {
	problem.TraceID = c.GetString("trace_id")
	problem.Instance = c.Request.URL.Path
	c.Header("Content-Type", "application/problem+json")
	c.AbortWithStatusJSON(problem.Status, problem)
}

// InternalError logs and sends a 500 error
func InternalError(c *gin.Context, err error, logger *zap.Logger) {
	logger.Error("Internal server error",
		zap.Error(err),
		zap.String("path", c.Request.URL.Path),
		zap.String("method", c.Request.Method),
	)

	ErrorResponse(c, http.StatusInternalServerError,
		"Internal Server Error",
		"An unexpected error occurred. Please try again later.",
	)
}

// BadRequest sends a 400 error
func BadRequest(c *gin.Context, detail string) {
	ErrorResponse(c, http.StatusBadRequest, "Bad Request", detail)
}

// ValidationFailed sends a 400 error listing every invalid field.
func ValidationFailed(c *gin.Context, details []string) {
	write(c, ProblemDetail{
		Type:   problemBaseURL + "/validation-error",
		Title:  "Validation error",
		Status: http.StatusBadRequest,
		Errors: details,
	})
}

// Unauthorized sends a 401 error
func Unauthorized(c *gin.Context, detail string) {
	ErrorResponse(c, http.StatusUnauthorized, "Unauthorized", detail)
}

// Forbidden sends a 403 error
func Forbidden(c *gin.Context, detail string) {
	ErrorResponse(c, http.StatusForbidden, "Forbidden", detail)
}

// NotFound sends a 404 error
func NotFound(c *gin.Context, detail string) {
	ErrorResponse(c, http.StatusNotFound, "Not Found", detail)
}

// RequestTooLarge sends a 413 error
func RequestTooLarge(c *gin.Context, detail string) {
	ErrorResponse(c, http.StatusRequestEntityTooLarge, "Request Entity Too Large", detail)
}

// TooManyRequests sends a 429 error
func TooManyRequests(c *gin.Context, detail string) {
	ErrorResponse(c, http.StatusTooManyRequests, "Too Many Requests", detail)
}

// ServiceUnavailable sends a 503 error
func ServiceUnavailable(c *gin.Context, detail string) {
	ErrorResponse(c, http.StatusServiceUnavailable, "Service Unavailable", detail)
}

func problemType(status int) string {
	switch status {
	case http.StatusBadRequest:
		return problemBaseURL + "/bad-request"
	case http.StatusUnauthorized:
		return problemBaseURL + "/unauthorized"
	case http.StatusForbidden:
		return problemBaseURL + "/forbidden"
	case http.StatusNotFound:
		return problemBaseURL + "/not-found"
	case http.StatusRequestEntityTooLarge:
		return problemBaseURL + "/request-too-large"
	case http.StatusTooManyRequests:
		return problemBaseURL + "/rate-limit-exceeded"
	case http.StatusInternalServerError:
		return problemBaseURL + "/internal-error"
	case http.StatusServiceUnavailable:
		return problemBaseURL + "/unavailable"
	default:
		return problemBaseURL + "/error"
	}
}
