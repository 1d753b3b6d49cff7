package repo

import "context"

// WatermarkRepo persists the last processed message id per chat
type WatermarkRepo interface {
	// Get returns the watermark for a chat, 0 when unknown
	Get(ctx context.Context, chatID int64) (int64, error)

	// Advance raises the watermark to msgID; lower values are ignored
	Advance(ctx context.Context, chatID, msgID int64) error

	// Snapshot returns a copy of every stored watermark keyed by chat id string
	Snapshot(ctx context.Context) (map[string]int64, error)

	Close() error
}
