/**
 * @description
 * Client used by the scheduler to trigger maintenance work on the FDR API's
 * internal endpoints.
 */
package fdrclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client provides methods to interact with the FDR service.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a new FDR service client.
func NewClient(baseURL, apiKey string) *Client {
	normalizedURL := strings.TrimSuffix(baseURL, "/")
	return &Client{
		baseURL:    normalizedURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// RunMaturitySweep completes every RUNNING FDR whose maturity date has passed
// and returns how many were updated.
func (c *Client) RunMaturitySweep(ctx context.Context) (int64, error) {
	var out struct {
		Updated int64 `json:"updated"`
	}
	if err := c.post(ctx, "/internal/fdrs/maturity-sweep", &out); err != nil {
		return 0, err
	}
	return out.Updated, nil
}

// NotifyExpiring publishes expiry notices for FDRs maturing within days.
func (c *Client) NotifyExpiring(ctx context.Context, days int) (int, error) {
	var out struct {
		Notified int `json:"notified"`
	}
	path := "/internal/fdrs/expiring/notify?" + url.Values{"days": {strconv.Itoa(days)}}.Encode()
	if err := c.post(ctx, path, &out); err != nil {
		return 0, err
	}
	return out.Notified, nil
}

func (c *Client) post(ctx context.Context, path string, out interface{}) error {
	if c.baseURL == "" {
		return fmt.Errorf("fdr service base URL is not configured")
	}

	endpoint := fmt.Sprintf("%s%s", c.baseURL, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer([]byte("{}")))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("X-Internal-API-Key", c.apiKey)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("fdr service returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if out == nil || len(body) == 0 {
		return nil
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("failed to decode response data: %w", err)
	}
	return nil
}
