package converter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
)

const (
	loginTimeout   = 15 * time.Second
	convertTimeout = 30 * time.Second

	// cap on response bodies kept for logging
	maxBodyBytes = 64 << 10
)

var (
	// ErrLoginStatus means the login endpoint answered with a non-200 status
	ErrLoginStatus = errors.New("login rejected")
	// ErrNoTokenInResponse means login succeeded without a token field
	ErrNoTokenInResponse = errors.New("login response has no token")
)

// Client talks to the signal converter HTTP API
type Client struct {
	loginURL   string
	convertURL string
	pin        string
	httpClient *http.Client
}

// NewClient creates a new converter client
func NewClient(loginURL, convertURL, pin string) *Client {
	return &Client{
		loginURL:   loginURL,
		convertURL: convertURL,
		pin:        pin,
		httpClient: &http.Client{},
	}
}

// Response is a raw convert answer
type Response struct {
	StatusCode int
	OK         bool // "ok" field of a 200 JSON body
	Body       string
}

type loginRequest struct {
	Pin string `json:"pin"`
}

type loginResponse struct {
	Token string `json:"token"`
}

type convertRequest struct {
	Token string  `json:"token"`
	Text  string  `json:"text"`
	Room  *string `json:"room"`
}

type convertResponse struct {
	OK bool `json:"ok"`
}

// Login exchanges the PIN for a session token
func (c *Client) Login(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, loginTimeout)
	defer cancel()

	status, body, err := c.postJSON(ctx, c.loginURL, loginRequest{Pin: c.pin})
	if err != nil {
		return "", fmt.Errorf("login: %w", err)
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("%w: HTTP %d", ErrLoginStatus, status)
	}

	var resp loginResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to decode login response: %w", err)
	}
	if resp.Token == "" {
		return "", fmt.Errorf("%w: %s", ErrNoTokenInResponse, truncate(string(body), 200))
	}
	return resp.Token, nil
}

// Convert posts one canonical signal. A nil error means the server
// answered; the caller decides what the status code means.
func (c *Client) Convert(ctx context.Context, token, text, room string) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, convertTimeout)
	defer cancel()

	req := convertRequest{Token: token, Text: text}
	if room != "" {
		req.Room = &room
	}

	status, body, err := c.postJSON(ctx, c.convertURL, req)
	if err != nil {
		return nil, fmt.Errorf("convert: %w", err)
	}

	resp := &Response{StatusCode: status, Body: string(body)}
	if status == http.StatusOK {
		var parsed convertResponse
		if err := json.Unmarshal(body, &parsed); err == nil {
			resp.OK = parsed.OK
		}
	}
	return resp, nil
}

func (c *Client) postJSON(ctx context.Context, url string, body interface{}) (int, []byte, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to marshal body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("HTTP POST failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response: %w", err)
	}
	return resp.StatusCode, respBody, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
