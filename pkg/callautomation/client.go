// Package callautomation is a REST client for the Azure Communication
// Services call automation API.
package callautomation

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/troikatech/call-center/pkg/circuitbreaker"
	"github.com/troikatech/call-center/pkg/metrics"
	"github.com/troikatech/call-center/pkg/retry"
)

const (
	apiVersion  = "2023-10-15"
	serviceName = "call-automation"
)

// Client talks to one Communication Services resource.
type Client struct {
	endpoint       *url.URL
	accessKey      []byte
	httpClient     *http.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	retry          retry.Config
	logger         *zap.Logger
	now            func() time.Time
}

// NewClient creates a client for endpoint, authenticated with the base64
// encoded resource access key.
func NewClient(endpoint, accessKey string, timeout time.Duration, logger *zap.Logger) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(endpoint, "/"))
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid call automation endpoint %q", endpoint)
	}
	key, err := base64.StdEncoding.DecodeString(accessKey)
	if err != nil {
		return nil, fmt.Errorf("invalid call automation access key: %w", err)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	cbConfig := circuitbreaker.DefaultConfig()
	cbConfig.IsFailure = isServiceFailure
	cbConfig.OnStateChange = func(from, to circuitbreaker.State) {
		logger.Warn("Call automation circuit breaker changed state",
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
		metrics.UpdateCircuitBreaker(serviceName, to == circuitbreaker.StateOpen)
	}

	return &Client{
		endpoint:       u,
		accessKey:      key,
		httpClient:     &http.Client{Timeout: timeout},
		circuitBreaker: circuitbreaker.New(cbConfig),
		retry:          retry.DefaultConfig(),
		logger:         logger,
		now:            time.Now,
	}, nil
}

// Play plays prompts on a call connection.
func (c *Client) Play(ctx context.Context, callConnectionID string, req PlayRequest) error {
	return c.do(ctx, "play", http.MethodPost, connectionPath(callConnectionID, ":play"), req, nil)
}

// Recognize plays an optional prompt and starts listening to a participant.
func (c *Client) Recognize(ctx context.Context, callConnectionID string, req RecognizeRequest) error {
	return c.do(ctx, "recognize", http.MethodPost, connectionPath(callConnectionID, ":recognize"), req, nil)
}

// TransferToParticipant moves the call to another participant.
func (c *Client) TransferToParticipant(ctx context.Context, callConnectionID string, req TransferRequest) error {
	return c.do(ctx, "transfer", http.MethodPost, connectionPath(callConnectionID, ":transferToParticipant"), req, nil)
}

// Terminate hangs the call up for every participant.
func (c *Client) Terminate(ctx context.Context, callConnectionID string) error {
	return c.do(ctx, "terminate", http.MethodPost, connectionPath(callConnectionID, ":terminate"), struct{}{}, nil)
}

// StartMediaStreaming starts streaming call audio to the configured transport.
func (c *Client) StartMediaStreaming(ctx context.Context, callConnectionID string, req MediaStreamingRequest) error {
	return c.do(ctx, "start_media_streaming", http.MethodPost, connectionPath(callConnectionID, ":startMediaStreaming"), req, nil)
}

// StartRecording starts recording the server call.
func (c *Client) StartRecording(ctx context.Context, req StartRecordingRequest) (*RecordingState, error) {
	var out RecordingState
	if err := c.do(ctx, "start_recording", http.MethodPost, "/calling/recordings", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AnswerCall answers an incoming call.
func (c *Client) AnswerCall(ctx context.Context, req AnswerRequest) (*CallConnection, error) {
	var out CallConnection
	if err := c.do(ctx, "answer", http.MethodPost, "/calling/callConnections:answer", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateCall places an outbound call.
func (c *Client) CreateCall(ctx context.Context, req CreateCallRequest) (*CallConnection, error) {
	var out CallConnection
	if err := c.do(ctx, "create_call", http.MethodPost, "/calling/callConnections", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func connectionPath(callConnectionID, action string) string {
	return "/calling/callConnections/" + callConnectionID + action
}

func (c *Client) do(ctx context.Context, operation, method, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal %s request: %w", operation, err)
	}

	u := *c.endpoint
	u.Path = path
	u.RawQuery = url.Values{"api-version": {apiVersion}}.Encode()

	start := time.Now()
	var respBody []byte
	err = c.circuitBreaker.Execute(ctx, func() error {
		return retry.Do(ctx, c.retry, func() error {
			var attemptErr error
			respBody, attemptErr = c.send(ctx, method, &u, payload)
			if attemptErr == nil {
				return nil
			}
			var apiErr *APIError
			if errors.As(attemptErr, &apiErr) && !apiErr.Retryable() {
				return retry.Permanent(attemptErr)
			}
			return attemptErr
		})
	})
	metrics.RecordServiceCall(serviceName, operation, err == nil, time.Since(start))

	if err != nil {
		c.logger.Debug("Call automation request failed",
			zap.String("operation", operation),
			zap.String("path", path),
			zap.Error(err),
		)
		return err
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to parse %s response: %w", operation, err)
		}
	}
	return nil
}

func (c *Client) send(ctx context.Context, method string, u *url.URL, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, u.String(), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	sign(req, payload, c.accessKey, c.now())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, parseAPIError(resp.StatusCode, body)
	}
	return body, nil
}

func parseAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status}
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &envelope) == nil && envelope.Error.Message != "" {
		apiErr.Code = envelope.Error.Code
		apiErr.Message = envelope.Error.Message
	} else {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}
	return apiErr
}

// isServiceFailure keeps client side rejections from opening the breaker.
func isServiceFailure(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}
	return !errors.Is(err, context.Canceled)
}
