package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/troikatech/call-center/pkg/auth"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestTraceMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(TraceMiddleware())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString("trace_id")) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(traceIDHeader, "trace-123")
	w := serve(r, req)
	if got := w.Header().Get(traceIDHeader); got != "trace-123" {
		t.Errorf("%s = %v, want trace-123", traceIDHeader, got)
	}
	if w.Body.String() != "trace-123" {
		t.Errorf("context trace_id = %v, want trace-123", w.Body.String())
	}
	if w.Header().Get(requestIDHeader) == "" {
		t.Errorf("%s is empty", requestIDHeader)
	}

	w = serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Header().Get(traceIDHeader) == "" {
		t.Errorf("generated %s is empty", traceIDHeader)
	}
}

func TestSecurityHeaders(t *testing.T) {
	r := gin.New()
	r.Use(SecurityHeaders())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %v, want nosniff", got)
	}
	if got := w.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %v, want DENY", got)
	}
}

func TestRequestSizeLimit(t *testing.T) {
	r := gin.New()
	r.Use(RequestSizeLimit(8))
	r.POST("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	tests := []struct {
		name string
		body string
		want int
	}{
		{"within limit", "small", http.StatusNoContent},
		{"too large", "this body is too large", http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(r, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body)))
			if w.Code != tt.want {
				t.Errorf("status = %v, want %v", w.Code, tt.want)
			}
		})
	}
}

func TestAuthMiddleware(t *testing.T) {
	cfg := auth.TokenConfig{Secret: "secret", Issuer: "issuer", Audience: "audience"}
	writer, _, err := auth.GenerateToken(cfg, "crm", []string{auth.ScopeCallsWrite}, time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	reader, _, err := auth.GenerateToken(cfg, "dashboard", []string{auth.ScopeCallsRead}, time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	r := gin.New()
	r.POST("/call", AuthMiddleware(cfg), RequireScope(auth.ScopeCallsWrite), func(c *gin.Context) {
		c.String(http.StatusCreated, c.GetString("subject"))
	})

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + writer, http.StatusUnauthorized},
		{"invalid token", "Bearer nope", http.StatusUnauthorized},
		{"missing scope", "Bearer " + reader, http.StatusForbidden},
		{"valid", "Bearer " + writer, http.StatusCreated},
		{"lowercase scheme", "bearer " + writer, http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/call", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := serve(r, req)
			if w.Code != tt.want {
				t.Errorf("status = %v, want %v", w.Code, tt.want)
			}
			if tt.want == http.StatusCreated && w.Body.String() != "crm" {
				t.Errorf("subject = %v, want crm", w.Body.String())
			}
		})
	}
}

func TestRateLimiter(t *testing.T) {
	mr, client := newRedis(t)
	limiter := NewRateLimiter(client, 2, zap.NewNop())

	r := gin.New()
	r.Use(limiter.Middleware())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for i, want := range []int{http.StatusNoContent, http.StatusNoContent, http.StatusTooManyRequests} {
		w := serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
		if w.Code != want {
			t.Errorf("request %d status = %v, want %v", i+1, w.Code, want)
		}
		if i == 2 && w.Header().Get("Retry-After") == "" {
			t.Errorf("Retry-After header is missing")
		}
	}

	// Fails open without Redis
	mr.Close()
	if w := serve(r, httptest.NewRequest(http.MethodGet, "/", nil)); w.Code != http.StatusNoContent {
		t.Errorf("status with Redis down = %v, want %v", w.Code, http.StatusNoContent)
	}
}

func TestIdempotencyMiddleware(t *testing.T) {
	_, client := newRedis(t)
	calls := 0

	r := gin.New()
	r.POST("/call", IdempotencyMiddleware(client, zap.NewNop()), func(c *gin.Context) {
		calls++
		if c.Query("fail") != "" {
			c.Status(http.StatusBadGateway)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"n": calls})
	})

	post := func(key, query string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/call"+query, nil)
		if key != "" {
			req.Header.Set(idempotencyKeyHeader, key)
		}
		return serve(r, req)
	}

	first := post("key-1", "")
	second := post("key-1", "")
	if calls != 1 {
		t.Errorf("handler calls = %v, want 1", calls)
	}
	if second.Code != http.StatusCreated || second.Body.String() != first.Body.String() {
		t.Errorf("replay = %v %q, want %v %q", second.Code, second.Body.String(), first.Code, first.Body.String())
	}
	if second.Header().Get("X-Idempotency-Replayed") != "true" {
		t.Errorf("X-Idempotency-Replayed header is missing")
	}

	post("", "")
	post("", "")
	if calls != 3 {
		t.Errorf("handler calls without key = %v, want 3", calls)
	}

	post("key-2", "?fail=1")
	post("key-2", "?fail=1")
	if calls != 5 {
		t.Errorf("handler calls after server errors = %v, want 5", calls)
	}
}

func TestValidateCallIDParam(t *testing.T) {
	r := gin.New()
	r.GET("/call/:call_id", ValidateCallIDParam("call_id"), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	tests := []struct {
		path string
		want int
	}{
		{"/call/6f1c1f3e-8a43-4b51-9a0e-3c2a1d0b9e77", http.StatusNoContent},
		{"/call/42", http.StatusBadRequest},
	}
	for _, tt := range tests {
		if w := serve(r, httptest.NewRequest(http.MethodGet, tt.path, nil)); w.Code != tt.want {
			t.Errorf("GET %s status = %v, want %v", tt.path, w.Code, tt.want)
		}
	}
}

func TestValidatePhoneQuery(t *testing.T) {
	r := gin.New()
	r.GET("/required", ValidatePhoneQuery("phone_number", true), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString("phone_number"))
	})
	r.GET("/optional", ValidatePhoneQuery("phone_number", false), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString("phone_number"))
	})

	tests := []struct {
		name     string
		path     string
		wantCode int
		wantBody string
	}{
		{"normalized", "/required?phone_number=0033612345678", http.StatusOK, "+33612345678"},
		{"missing required", "/required", http.StatusBadRequest, ""},
		{"invalid", "/required?phone_number=abc", http.StatusBadRequest, ""},
		{"missing optional", "/optional", http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(r, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if w.Code != tt.wantCode {
				t.Errorf("status = %v, want %v", w.Code, tt.wantCode)
			}
			if tt.wantCode == http.StatusOK && w.Body.String() != tt.wantBody {
				t.Errorf("phone_number = %v, want %v", w.Body.String(), tt.wantBody)
			}
		})
	}
}
