package data

import (
	"sync"

	"github.com/unred/signal-bridge/internal/biz/domain"
	"github.com/unred/signal-bridge/internal/biz/repo"
	"github.com/unred/signal-bridge/internal/logger"
	"github.com/unred/signal-bridge/internal/metrics"
)

// DefaultQueueCapacity is used when no positive capacity is configured
const DefaultQueueCapacity = 200

// memoryQueue is an in-memory bounded FIFO keyed by entry key
type memoryQueue struct {
	mu       sync.Mutex
	entries  []*domain.QueueEntry
	keys     map[string]struct{}
	capacity int
	log      *logger.Logger
}

// NewQueueRepo creates a new in-memory queue repository
func NewQueueRepo(capacity int) repo.QueueRepo {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &memoryQueue{
		keys:     make(map[string]struct{}),
		capacity: capacity,
		log:      logger.Named("queue"),
	}
}

// Enqueue appends entry unless its key is present, evicting the oldest when full
func (q *memoryQueue) Enqueue(entry *domain.QueueEntry) (bool, *domain.QueueEntry) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.keys[entry.Key]; ok {
		return false, nil
	}

	var evicted *domain.QueueEntry
	if len(q.entries) >= q.capacity {
		evicted = q.entries[0]
		q.entries[0] = nil
		q.entries = q.entries[1:]
		delete(q.keys, evicted.Key)
		metrics.QueueEvictions.Inc()
		q.log.Warn().Str("key", evicted.Key).Int("capacity", q.capacity).Msg("queue full, dropped oldest signal")
	}

	q.entries = append(q.entries, entry)
	q.keys[entry.Key] = struct{}{}
	metrics.QueueDepth.Set(float64(len(q.entries)))
	return true, evicted
}

// PeekHead returns the oldest entry without removing it
func (q *memoryQueue) PeekHead() (*domain.QueueEntry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) == 0 {
		return nil, false
	}
	return q.entries[0], true
}

// Remove deletes the first matching entry, keeping the order of the rest
func (q *memoryQueue) Remove(req domain.RemoveRequest) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, e := range q.entries {
		if !req.Matches(e) {
			continue
		}
		q.entries = append(q.entries[:i:i], q.entries[i+1:]...)
		delete(q.keys, e.Key)
		metrics.QueueDepth.Set(float64(len(q.entries)))
		return true
	}
	return false
}

// Len returns the number of pending entries
func (q *memoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// List returns a copy of the pending entries, oldest first
func (q *memoryQueue) List() []*domain.QueueEntry {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]*domain.QueueEntry, len(q.entries))
	copy(out, q.entries)
	return out
}

func (q *memoryQueue) Capacity() int {
	return q.capacity
}
