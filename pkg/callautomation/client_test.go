package callautomation

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

var testKey = base64.StdEncoding.EncodeToString([]byte("super-secret-access-key"))

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(srv.URL, testKey, 5*time.Second, zap.NewNop())
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	c.retry.InitialDelay = time.Millisecond
	c.retry.MaxDelay = time.Millisecond
	return c
}

func TestClient_SignsRequests(t *testing.T) {
	var gotPath, gotQuery string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery

		hash := sha256.Sum256(body)
		contentHash := base64.StdEncoding.EncodeToString(hash[:])
		if r.Header.Get("x-ms-content-sha256") != contentHash {
			t.Errorf("x-ms-content-sha256 = %s, want %s", r.Header.Get("x-ms-content-sha256"), contentHash)
		}

		stringToSign := r.Method + "\n" + r.URL.RequestURI() + "\n" + r.Header.Get("x-ms-date") + ";" + r.Host + ";" + contentHash
		key, _ := base64.StdEncoding.DecodeString(testKey)
		mac := hmac.New(sha256.New, key)
		mac.Write([]byte(stringToSign))
		want := "HMAC-SHA256 SignedHeaders=x-ms-date;host;x-ms-content-sha256&Signature=" + base64.StdEncoding.EncodeToString(mac.Sum(nil))
		if got := r.Header.Get("Authorization"); got != want {
			t.Errorf("Authorization = %s, want %s", got, want)
		}
		w.WriteHeader(http.StatusAccepted)
	})

	err := c.Play(context.Background(), "conn-1", PlayRequest{
		PlaySources:      []PlaySource{TextPlaySource("Bonjour", "fr-FR", "fr-FR-DeniseNeural")},
		OperationContext: `["goodbye"]`,
	})
	if err != nil {
		t.Fatalf("Play() error = %v", err)
	}
	if gotPath != "/calling/callConnections/conn-1:play" {
		t.Errorf("path = %s, want /calling/callConnections/conn-1:play", gotPath)
	}
	if gotQuery != "api-version="+apiVersion {
		t.Errorf("query = %s, want api-version=%s", gotQuery, apiVersion)
	}
}

func TestClient_RecognizeBody(t *testing.T) {
	var got RecognizeRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusAccepted)
	})

	prompt := TextPlaySource("Pour le français tapez 1", "fr-FR", "")
	err := c.Recognize(context.Background(), "conn-1", RecognizeRequest{
		RecognizeInputType: RecognizeInputChoices,
		PlayPrompt:         &prompt,
		RecognizeOptions: RecognizeOptions{
			TargetParticipant: PhoneIdentifier("+33612345678"),
			Choices:           []Choice{{Label: "fr-FR", Phrases: []string{"français"}, Tone: "one"}},
		},
		OperationContext: `["ivr_lang_select"]`,
	})
	if err != nil {
		t.Fatalf("Recognize() error = %v", err)
	}
	if got.RecognizeInputType != "choices" || len(got.RecognizeOptions.Choices) != 1 || got.RecognizeOptions.Choices[0].Tone != "one" {
		t.Errorf("Recognize() sent %+v", got)
	}
	if got.RecognizeOptions.TargetParticipant.PhoneNumber.Value != "+33612345678" {
		t.Errorf("target = %+v, want +33612345678", got.RecognizeOptions.TargetParticipant)
	}
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"callConnectionId":"conn-9","serverCallId":"srv-9"}`))
	})

	conn, err := c.AnswerCall(context.Background(), AnswerRequest{IncomingCallContext: "ctx", CallbackURI: "https://example.com/cb"})
	if err != nil {
		t.Fatalf("AnswerCall() error = %v", err)
	}
	if conn.CallConnectionID != "conn-9" || conn.ServerCallID != "srv-9" {
		t.Errorf("AnswerCall() = %+v", conn)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestClient_Errors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantAuth  bool
		wantStale bool
		wantCalls int32
	}{
		{
			name:      "auth error is not retried",
			status:    http.StatusUnauthorized,
			body:      `{"error":{"code":"Unauthorized","message":"Denied by the access key"}}`,
			wantAuth:  true,
			wantCalls: 1,
		},
		{
			name:      "stale event",
			status:    http.StatusBadRequest,
			body:      `{"error":{"code":"8523","message":"Lifetime validation of the signed http request failed."}}`,
			wantStale: true,
			wantCalls: 1,
		},
		{
			name:      "not found",
			status:    http.StatusNotFound,
			body:      `call not found`,
			wantCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			err := c.Terminate(context.Background(), "conn-1")
			if err == nil {
				t.Fatal("Terminate() expected error, got nil")
			}
			var apiErr *APIError
			if !errors.As(err, &apiErr) || apiErr.StatusCode != tt.status {
				t.Errorf("Terminate() error = %v, want APIError with status %d", err, tt.status)
			}
			if IsAuthError(err) != tt.wantAuth {
				t.Errorf("IsAuthError() = %v, want %v", IsAuthError(err), tt.wantAuth)
			}
			if IsStaleEvent(err) != tt.wantStale {
				t.Errorf("IsStaleEvent() = %v, want %v", IsStaleEvent(err), tt.wantStale)
			}
			if got := atomic.LoadInt32(&calls); got != tt.wantCalls {
				t.Errorf("calls = %d, want %d", got, tt.wantCalls)
			}
		})
	}
}

func TestParseConnectionString(t *testing.T) {
	endpoint, key, err := ParseConnectionString("endpoint=https://contoso.communication.azure.com/;accesskey=" + testKey)
	if err != nil {
		t.Fatalf("ParseConnectionString() error = %v", err)
	}
	if endpoint != "https://contoso.communication.azure.com/" || key != testKey {
		t.Errorf("ParseConnectionString() = %s, %s", endpoint, key)
	}

	if _, _, err := ParseConnectionString("endpoint=https://contoso.communication.azure.com/"); err == nil {
		t.Error("ParseConnectionString() without key expected error, got nil")
	}
}
