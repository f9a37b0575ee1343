package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/goccy/go-json"
)

// APIError is a failed REST call: an HTTP error status or a non-empty
// Kraken error list.
type APIError struct {
	StatusCode int
	Messages   []string
	Body       []byte
}

func (e *APIError) Error() string {
	if len(e.Messages) > 0 {
		return fmt.Sprintf("kraken api error %d: %s", e.StatusCode, strings.Join(e.Messages, "; "))
	}
	return fmt.Sprintf("kraken api error %d: %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// IsRetryable reports whether the call may succeed if repeated.
func (e *APIError) IsRetryable() bool {
	if e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests {
		return true
	}
	for _, m := range e.Messages {
		if strings.HasPrefix(m, "EService:") || strings.Contains(m, "Rate limit") {
			return true
		}
	}
	return false
}

// envelope is the common response wrapper.
type envelope struct {
	Error  []string        `json:"error"`
	Result json.RawMessage `json:"result"`
}

// doRequest performs one HTTP request and unwraps the envelope.
func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values) (json.RawMessage, error) {
	fullURL := c.baseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: body}
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}
	if len(env.Error) > 0 {
		return nil, &APIError{StatusCode: resp.StatusCode, Messages: env.Error, Body: body}
	}
	return env.Result, nil
}

// doWithRetry retries retryable failures with exponential backoff.
func (c *Client) doWithRetry(ctx context.Context, method, path string, query url.Values) (json.RawMessage, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryBackoff
	b.Multiplier = 2
	b.RandomizationFactor = 0.5
	b.MaxInterval = 30 * time.Second

	attempt := 0
	permanent := false
	op := func() (json.RawMessage, error) {
		attempt++
		result, err := c.doRequest(ctx, method, path, query)
		if err == nil {
			return result, nil
		}
		var apiErr *APIError
		if errors.As(err, &apiErr) && !apiErr.IsRetryable() {
			permanent = true
			return nil, backoff.Permanent(err)
		}
		c.logger.Debug("retrying request",
			"attempt", attempt,
			"path", path,
			"error", err,
		)
		return nil, err
	}

	result, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(c.maxRetries+1)),
	)
	if err != nil {
		if !permanent && attempt > c.maxRetries {
			return nil, fmt.Errorf("max retries exceeded: %w", err)
		}
		return nil, err
	}
	return result, nil
}

// get performs a GET request with retries and decodes the result.
func (c *Client) get(ctx context.Context, path string, query url.Values, result any) error {
	raw, err := c.doWithRetry(ctx, http.MethodGet, path, query)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(raw, result); err != nil {
		return fmt.Errorf("unmarshal result: %w", err)
	}
	return nil
}
