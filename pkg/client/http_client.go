// Package client is the JSON over HTTP client shared by the outbound service
// integrations.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/troikatech/call-center/pkg/circuitbreaker"
	"github.com/troikatech/call-center/pkg/metrics"
	"github.com/troikatech/call-center/pkg/retry"
)

// maxErrorBody bounds the response body kept in a StatusError.
const maxErrorBody = 512

// StatusError is a non-2xx answer from a service.
type StatusError struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s API error: %d - %s", e.Service, e.StatusCode, e.Body)
}

// Retryable reports whether the request may succeed if sent again.
func (e *StatusError) Retryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// HTTPClient wraps http.Client with retry and circuit breaker
type HTTPClient struct {
	client         *http.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	retry          retry.Config
	serviceName    string
	logger         *zap.Logger
}

// NewHTTPClient creates a new HTTP client with retry and circuit breaker
func NewHTTPClient(serviceName string, timeout time.Duration, logger *zap.Logger) *HTTPClient {
	cbConfig := circuitbreaker.DefaultConfig()
	cbConfig.IsFailure = func(err error) bool {
		var statusErr *StatusError
		return !errors.As(err, &statusErr) || statusErr.Retryable()
	}
	cbConfig.OnStateChange = func(from, to circuitbreaker.State) {
		logger.Warn("Circuit breaker changed state",
			zap.String("service", serviceName),
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
		metrics.UpdateCircuitBreaker(serviceName, to == circuitbreaker.StateOpen)
	}

	return &HTTPClient{
		client:         &http.Client{Timeout: timeout},
		circuitBreaker: circuitbreaker.New(cbConfig),
		retry:          retry.DefaultConfig(),
		serviceName:    serviceName,
		logger:         logger,
	}
}

// PostJSON sends body as JSON and decodes a 2xx answer into out. Server
// errors and throttling are retried; other statuses fail at once.
func (c *HTTPClient) PostJSON(ctx context.Context, operation, url string, headers map[string]string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	start := time.Now()
	var respBody []byte
	err = c.circuitBreaker.Execute(ctx, func() error {
		return retry.Do(ctx, c.retry, func() error {
			var attemptErr error
			respBody, attemptErr = c.send(ctx, url, headers, payload)
			var statusErr *StatusError
			if errors.As(attemptErr, &statusErr) && !statusErr.Retryable() {
				return retry.Permanent(attemptErr)
			}
			return attemptErr
		})
	})
	metrics.RecordServiceCall(c.serviceName, operation, err == nil, time.Since(start))
	if err != nil {
		return err
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

func (c *HTTPClient) send(ctx context.Context, url string, headers map[string]string, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return nil, &StatusError{Service: c.serviceName, StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}
