// internal/common/http/client.go
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	apperrors "mapping-viewer/internal/common/errors"
)

// ErrCanceled is returned when the caller's context ends before a reply arrives.
var ErrCanceled = errors.New("REQUEST_CANCELED")

const maxErrorBody = 4 << 10

type Client struct {
	httpClient  *http.Client
	baseBackoff time.Duration
}

func NewClient(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseBackoff: 100 * time.Millisecond,
	}
}

// WithBackoff overrides the first retry delay; later retries double it.
func (c *Client) WithBackoff(d time.Duration) *Client {
	c.baseBackoff = d
	return c
}

// DoJSON sends body (when non-nil) as JSON and decodes a 2xx reply into out (when non-nil).
// Retryable failures are retried up to maxRetries times with exponential backoff.
// Failures are *errors.StandardError values; context cancellation wraps ErrCanceled.
func (c *Client) DoJSON(ctx context.Context, method, url string, body, out interface{}, maxRetries int) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("encode request for %s: %w", url, err)
		}
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.baseBackoff * time.Duration(1<<(attempt-1))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return fmt.Errorf("%w: %v", ErrCanceled, ctx.Err())
			}
		}

		lastErr = c.once(ctx, method, url, payload, out)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %v", ErrCanceled, ctx.Err())
		}
		if !apperrors.IsRetryable(lastErr) {
			return lastErr
		}
	}
	return lastErr
}

func (c *Client) once(ctx context.Context, method, url string, payload []byte, out interface{}) error {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("build request for %s: %w", url, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperrors.NewNetworkFailureError(req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return apperrors.NewBackendStatusError(req.URL.Path, resp.StatusCode, string(msg))
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperrors.NewDecodeFailedError(req.URL.Path, err)
	}
	return nil
}
