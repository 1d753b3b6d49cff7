package repo

import (
	"context"

	"github.com/unred/signal-bridge/internal/biz/domain"
)

// NotifierRepo mirrors relay activity to an operator channel
type NotifierRepo interface {
	// NotifyDelivered reports a signal accepted by the converter
	NotifyDelivered(ctx context.Context, entry *domain.QueueEntry, room string) error

	// NotifyStale reports signals that have waited too long for delivery
	NotifyStale(ctx context.Context, entries []*domain.QueueEntry) error
}
