package repo

import "github.com/unred/signal-bridge/internal/biz/domain"

// QueueRepo is the bounded, key-deduplicated FIFO of pending signals
type QueueRepo interface {
	// Enqueue appends the entry unless its key is already present.
	// When the queue is full the oldest entry is evicted and returned.
	Enqueue(entry *domain.QueueEntry) (added bool, evicted *domain.QueueEntry)

	// PeekHead returns the oldest pending entry
	PeekHead() (*domain.QueueEntry, bool)

	// Remove deletes the first entry matched by req
	Remove(req domain.RemoveRequest) bool

	// Len returns the number of pending entries
	Len() int

	// List returns the pending entries oldest first
	List() []*domain.QueueEntry

	Capacity() int
}
