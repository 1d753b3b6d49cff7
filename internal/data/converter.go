package data

import (
	"context"

	"github.com/unred/signal-bridge/internal/biz/repo"
	"github.com/unred/signal-bridge/internal/infra/converter"
)

// converterRepo implements the converter repository
type converterRepo struct {
	client *converter.Client
}

// NewConverterRepo creates a new converter repository
func NewConverterRepo(client *converter.Client) repo.ConverterRepo {
	return &converterRepo{client: client}
}

// Login gets a fresh session token
func (r *converterRepo) Login(ctx context.Context) (string, error) {
	return r.client.Login(ctx)
}

// Send posts one signal to the converter
func (r *converterRepo) Send(ctx context.Context, token, text, room string) (*repo.ConvertResponse, error) {
	resp, err := r.client.Convert(ctx, token, text, room)
	if err != nil {
		return nil, err
	}
	return &repo.ConvertResponse{
		StatusCode: resp.StatusCode,
		OK:         resp.OK,
		Body:       resp.Body,
	}, nil
}
