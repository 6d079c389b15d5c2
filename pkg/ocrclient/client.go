/**
 * @description
 * Client for the OCR service. Files (PDF or raster images) are posted as
 * multipart form data and the recognised text comes back as JSON.
 */
package ocrclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrNotConfigured is returned when no OCR service URL is set.
var ErrNotConfigured = errors.New("ocr service is not configured")

// Client provides methods to interact with the OCR service.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a new OCR service client.
func NewClient(baseURL, apiKey string) *Client {
	normalizedURL := strings.TrimSuffix(baseURL, "/")
	return &Client{
		baseURL:    normalizedURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 90 * time.Second}, // multi-page scans are slow
	}
}

type extractResponse struct {
	Text  string `json:"text"`
	Error string `json:"error,omitempty"`
}

// ExtractText uploads the file at path and returns its recognised text.
func (c *Client) ExtractText(ctx context.Context, path, contentType string) (string, error) {
	if c.baseURL == "" {
		return "", ErrNotConfigured
	}

	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filepath.Base(path)))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	if err != nil {
		return "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return "", fmt.Errorf("failed to copy file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/extract", &body)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("ocr service returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var out extractResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", fmt.Errorf("failed to decode ocr response: %w", err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("ocr service error: %s", out.Error)
	}
	return out.Text, nil
}
