package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestHandler_ExposesRecordedSeries(t *testing.T) {
	RecordEvent("Microsoft.Communication.CallConnected", "handled")
	RecordServiceCall("call-automation", "play", true, 15*time.Millisecond)
	UpdateCircuitBreaker("call-automation", false)
	RecordJob("post", "done")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("GET /metrics status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		`callcenter_call_events_total{event_type="Microsoft.Communication.CallConnected",outcome="handled"}`,
		`callcenter_service_calls_total{operation="play",service="call-automation",status="success"}`,
		`callcenter_circuit_breaker_open{service="call-automation"} 0`,
		`callcenter_jobs_total{queue="post",status="done"}`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %s", want)
		}
	}
}

func TestGinMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(GinMiddleware())
	r.GET("/health/liveness", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health/liveness", nil))

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	want := `callcenter_http_requests_total{method="GET",route="/health/liveness",status_code="204"}`
	if !strings.Contains(rec.Body.String(), want) {
		t.Errorf("metrics output missing %s", want)
	}
}
