/**
 * @description
 * Minimal client for an OpenAI-compatible chat-completions endpoint. One
 * prompt goes in and one completion comes out; no streaming, no history.
 */
package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrNotConfigured is returned when no API key is set.
var ErrNotConfigured = errors.New("llm api key is not configured")

const DefaultBaseURL = "https://api.openai.com/v1"

// Client provides methods to interact with the hosted model.
type Client struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	httpClient  *http.Client
}

// NewClient creates a new chat-completions client.
func NewClient(baseURL, apiKey, model string, temperature float64) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		apiKey:      strings.TrimSpace(apiKey),
		model:       model,
		temperature: temperature,
		httpClient:  &http.Client{Timeout: 60 * time.Second},
	}
}

// Configured reports whether the client has credentials.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// CompleteJSON sends system and user prompts, asks for a JSON object reply
// and returns the raw completion text.
func (c *Client) CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}

	messages := make([]chatMessage, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: systemPrompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: userPrompt})

	payload, err := json.Marshal(chatRequest{
		Model:          c.model,
		Messages:       messages,
		Temperature:    c.temperature,
		ResponseFormat: &responseFormat{Type: "json_object"},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	var out chatResponse
	decodeErr := json.Unmarshal(body, &out)
	if resp.StatusCode >= 400 {
		if decodeErr == nil && out.Error != nil && out.Error.Message != "" {
			return "", fmt.Errorf("llm returned status %d: %s", resp.StatusCode, out.Error.Message)
		}
		return "", fmt.Errorf("llm returned status %d", resp.StatusCode)
	}
	if decodeErr != nil {
		return "", fmt.Errorf("failed to decode response: %w", decodeErr)
	}
	if len(out.Choices) == 0 {
		return "", errors.New("llm returned no choices")
	}
	return out.Choices[0].Message.Content, nil
}
