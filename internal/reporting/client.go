package reporting

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/trunkline-ops/trunkline/internal/shared"
)

// Client wraps the external reporting service REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient constructs a client. Report computation can be slow upstream, so
// calls get a generous fixed timeout.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Ping checks whether the reporting service is reachable.
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
		return fmt.Errorf("%w: reporting health returned status %d", shared.ErrUpstream, resp.StatusCode)
	}
	return nil
}

// RevenueKPIs fetches the billed/collected revenue block for a month.
func (c *Client) RevenueKPIs(ctx context.Context, period string) (RevenueKPIs, error) {
	var out RevenueKPIs
	err := c.getJSON(ctx, "/api/v1/reports/revenue", url.Values{"period": {period}}, &out)
	return out, err
}

// CollectionsKPIs fetches the collection campaign block for a month.
func (c *Client) CollectionsKPIs(ctx context.Context, period string) (CollectionsKPIs, error) {
	var out CollectionsKPIs
	err := c.getJSON(ctx, "/api/v1/reports/collections", url.Values{"period": {period}}, &out)
	return out, err
}

// ReceivablesKPIs fetches the current receivables aging snapshot.
func (c *Client) ReceivablesKPIs(ctx context.Context) (ReceivablesKPIs, error) {
	var out ReceivablesKPIs
	err := c.getJSON(ctx, "/api/v1/reports/receivables", nil, &out)
	return out, err
}

// VehicleParkStats fetches the corporate vehicle park block.
func (c *Client) VehicleParkStats(ctx context.Context) (VehicleParkStats, error) {
	var out VehicleParkStats
	err := c.getJSON(ctx, "/api/v1/reports/vehicle-park", nil, &out)
	return out, err
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, dest any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", shared.ErrNotFound, path)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: %s returned status %d", shared.ErrUpstream, path, resp.StatusCode)
	case resp.StatusCode >= 400:
		return fmt.Errorf("%w: %s returned status %d", shared.ErrInvalidInput, path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("%w: decode %s: %v", shared.ErrUpstream, path, err)
	}
	return nil
}
