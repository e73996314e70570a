package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestHTTPClient_PostJSON(t *testing.T) {
	tests := []struct {
		name      string
		statuses  []int
		wantErr   bool
		wantCalls int32
	}{
		{name: "success", statuses: []int{200}, wantCalls: 1},
		{name: "retries server errors", statuses: []int{503, 200}, wantCalls: 2},
		{name: "client error is not retried", statuses: []int{400}, wantErr: true, wantCalls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				n := atomic.AddInt32(&calls, 1)
				if got := r.Header.Get("Authorization"); got != "Bearer key" {
					t.Errorf("Authorization = %v, want Bearer key", got)
				}
				status := tt.statuses[int(n)-1]
				w.WriteHeader(status)
				_, _ = w.Write([]byte(`{"answer":"ok"}`))
			}))
			defer srv.Close()

			c := NewHTTPClient("test", 5*time.Second, zap.NewNop())
			c.retry.InitialDelay = time.Millisecond

			var out struct {
				Answer string `json:"answer"`
			}
			err := c.PostJSON(context.Background(), "complete", srv.URL, map[string]string{"Authorization": "Bearer key"}, map[string]string{"q": "hi"}, &out)
			if (err != nil) != tt.wantErr {
				t.Fatalf("PostJSON() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got := atomic.LoadInt32(&calls); got != tt.wantCalls {
				t.Errorf("calls = %v, want %v", got, tt.wantCalls)
			}
			if !tt.wantErr && out.Answer != "ok" {
				t.Errorf("Answer = %v, want ok", out.Answer)
			}
			var statusErr *StatusError
			if tt.wantErr && (!errors.As(err, &statusErr) || statusErr.StatusCode != 400) {
				t.Errorf("PostJSON() error = %v, want StatusError 400", err)
			}
		})
	}
}
