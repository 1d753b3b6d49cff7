package mcp

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/unred/signal-bridge/internal/api"
)

// Client is the HTTP client for the bridge inspection API
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new inspection API client
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Latest returns the oldest pending signal
func (c *Client) Latest(ctx context.Context) (*api.LatestResponse, error) {
	var out api.LatestResponse
	if err := c.do(ctx, http.MethodGet, "/latest", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Ack acknowledges a pending signal
func (c *Client) Ack(ctx context.Context, req api.AckRequest) (*api.AckResponse, error) {
	var out api.AckResponse
	if err := c.do(ctx, http.MethodPost, "/ack", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Health returns the bridge health and chat allow-list
func (c *Client) Health(ctx context.Context) (*api.HealthResponse, error) {
	var out api.HealthResponse
	if err := c.do(ctx, http.MethodGet, "/health", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Queue lists all pending signals
func (c *Client) Queue(ctx context.Context) (*api.QueueResponse, error) {
	var out api.QueueResponse
	if err := c.do(ctx, http.MethodGet, "/queue", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, result interface{}) error {
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal body: %w", err)
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP %s failed: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
