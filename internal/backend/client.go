// Package backend wraps the external billing backend REST API consumed by
// the user management, billing upload and anomaly review features.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/trunkline-ops/trunkline/internal/shared"
)

// Client talks to the billing backend over its internal REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient constructs a client with a fixed timeout; the backend lives on
// the same network segment and ingestion acks are synchronous.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Ping checks whether the billing backend is reachable.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/health", c.baseURL), nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%w: backend health returned status %d", shared.ErrUpstream, resp.StatusCode)
	}
	return nil
}

// doJSON performs a request with an optional JSON body and decodes the JSON
// response into dest when dest is non nil.
func (c *Client) doJSON(ctx context.Context, method, path string, body, dest any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if err := statusErr(path, resp.StatusCode); err != nil {
		return err
	}
	if dest == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("%w: decode %s: %v", shared.ErrUpstream, path, err)
	}
	return nil
}

// statusErr maps backend status codes onto the shared error taxonomy.
func statusErr(path string, status int) error {
	switch {
	case status < 400:
		return nil
	case status == http.StatusNotFound:
		return fmt.Errorf("%w: %s", shared.ErrNotFound, path)
	case status == http.StatusConflict:
		return fmt.Errorf("%w: %s", shared.ErrConflict, path)
	case status >= 500:
		return fmt.Errorf("%w: %s returned status %d", shared.ErrUpstream, path, status)
	default:
		return fmt.Errorf("%w: %s returned status %d", shared.ErrInvalidInput, path, status)
	}
}
