// Package client delivers reconciled listings to the receiving service and
// queries it over its REST API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/evcraddock/listing-tracker/internal/listing"
)

// Deliverer hands a day's records to a downstream consumer.
type Deliverer interface {
	Deliver(ctx context.Context, records []listing.Record) error
}

// Client is an HTTP client for the listing receiver.
type Client struct {
	baseURL    string
	httpClient *http.Client

	// MaxAttempts bounds delivery attempts. Values below 1 mean a single attempt.
	MaxAttempts int
	// Backoff is the wait before the second attempt; it doubles after each failure.
	Backoff time.Duration
}

// New creates a new client for the receiver at baseURL.
func New(baseURL string) *Client {
	return &Client{
		baseURL:     baseURL,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		MaxAttempts: 3,
		Backoff:     2 * time.Second,
	}
}

// UpdateResponse is the response from POST /update_properties.
type UpdateResponse struct {
	Message string `json:"message"`
	Count   int    `json:"count"`
}

// statusError is a non-2xx response.
type statusError struct {
	code int
	msg  string
}

func (e *statusError) Error() string { return e.msg }

// Deliver posts records to /update_properties. Transport errors and 5xx
// responses are retried with exponential backoff; 4xx responses are not.
func (c *Client) Deliver(ctx context.Context, records []listing.Record) error {
	if records == nil {
		records = []listing.Record{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("marshaling records: %w", err)
	}

	attempts := max(c.MaxAttempts, 1)
	wait := c.Backoff
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		var resp UpdateResponse
		lastErr = c.post(ctx, "/update_properties", data, &resp)
		if lastErr == nil {
			return nil
		}
		if !retryable(lastErr) || attempt == attempts {
			break
		}

		slog.Warn("delivery attempt failed", "attempt", attempt, "max_attempts", attempts, "retry_in", wait.String(), "error", lastErr)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		wait *= 2
	}
	return fmt.Errorf("delivering %d records: %w", len(records), lastErr)
}

// WithinRadius returns the receiver's latest listings within miles of a point.
// A zero radius uses the server default.
func (c *Client) WithinRadius(ctx context.Context, lat, lon, miles float64) ([]listing.Record, error) {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(lon, 'f', -1, 64))
	if miles > 0 {
		q.Set("miles", strconv.FormatFloat(miles, 'f', -1, 64))
	}

	var resp struct {
		Properties []listing.Record `json:"propertiesWithinRadius"`
	}
	if err := c.get(ctx, "/properties_within_radius?"+q.Encode(), &resp); err != nil {
		return nil, err
	}
	return resp.Properties, nil
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.code >= 500
	}
	return true
}

// get performs a GET request and decodes the response.
func (c *Client) get(ctx context.Context, path string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	return c.do(req, result)
}

// post performs a POST request with a JSON body and decodes the response.
func (c *Client) post(ctx context.Context, path string, body []byte, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, result)
}

// do executes an HTTP request and handles errors.
func (c *Client) do(req *http.Request, result any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			slog.Warn("closing response body", "error", cerr)
		}
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			return &statusError{code: resp.StatusCode, msg: errResp.Error}
		}
		return &statusError{code: resp.StatusCode, msg: "server error: " + http.StatusText(resp.StatusCode)}
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}
