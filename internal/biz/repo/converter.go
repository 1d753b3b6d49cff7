package repo

import "context"

// ConvertResponse is the raw outcome of a convert-send call
type ConvertResponse struct {
	StatusCode int
	OK         bool   // "ok" flag of a 200 body
	Body       string // raw body, kept for non-200 diagnostics
}

// ConverterRepo talks to the downstream signal converter
type ConverterRepo interface {
	// Login exchanges the PIN for a session token
	Login(ctx context.Context) (token string, err error)

	// Send posts a canonical signal for the given routing key
	Send(ctx context.Context, token, text, room string) (*ConvertResponse, error)
}
