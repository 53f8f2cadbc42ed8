// Package providers holds thin clients for the third-party HTTP APIs the
// app proxies: price feeds, exchange rates and the LLM gateway.
package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"finpilot-server/src/metrics"
)

// APIError is a non-2xx answer from a provider.
type APIError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Provider, e.StatusCode, e.Message)
}

// Retryable reports whether the caller may try again later.
func (e *APIError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

type baseClient struct {
	name       string
	baseURL    string
	httpClient *http.Client
	headers    map[string]string
}

func newBaseClient(name, baseURL string, headers map[string]string) baseClient {
	return baseClient{
		name:       name,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		headers:    headers,
	}
}

func (c *baseClient) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return c.do(ctx, http.MethodGet, u, nil, out)
}

func (c *baseClient) postJSON(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, c.baseURL+path, body, out)
}

func (c *baseClient) do(ctx context.Context, method, u string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.ProviderRequests.WithLabelValues(c.name, "error").Inc()
		return fmt.Errorf("%s request failed: %w", c.name, err)
	}
	defer resp.Body.Close()
	metrics.ProviderRequests.WithLabelValues(c.name, strconv.Itoa(resp.StatusCode/100)+"xx").Inc()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", c.name, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Provider: c.name, StatusCode: resp.StatusCode, Message: errorMessage(respBody)}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse %s response: %w", c.name, err)
	}
	return nil
}

// errorMessage pulls a readable message out of the common error shapes.
func errorMessage(body []byte) string {
	var shaped struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &shaped); err == nil {
		if shaped.Message != "" {
			return shaped.Message
		}
		var nested struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(shaped.Error, &nested) == nil && nested.Message != "" {
			return nested.Message
		}
		var s string
		if json.Unmarshal(shaped.Error, &s) == nil && s != "" {
			return s
		}
	}
	if len(body) > 200 {
		body = body[:200]
	}
	return string(body)
}
