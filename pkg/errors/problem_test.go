package errors

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestValidationFailed(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/call", nil)
	c.Set("trace_id", "trace-1")

	ValidationFailed(c, []string{"phone_number: required"})

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %v, want %v", w.Code, http.StatusBadRequest)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/problem+json" {
		t.Errorf("Content-Type = %v, want application/problem+json", ct)
	}
	var problem ProblemDetail
	if err := json.Unmarshal(w.Body.Bytes(), &problem); err != nil {
		t.Fatalf("invalid body: %v", err)
	}
	if problem.TraceID != "trace-1" || problem.Instance != "/call" || len(problem.Errors) != 1 {
		t.Errorf("problem = %+v", problem)
	}
}

func TestProblemType(t *testing.T) {
	if got := problemType(http.StatusTeapot); got != problemBaseURL+"/error" {
		t.Errorf("problemType(418) = %v, want %v", got, problemBaseURL+"/error")
	}
}
