package data

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unred/signal-bridge/internal/biz/domain"
)

func entry(chatID, msgID int64) *domain.QueueEntry {
	return &domain.QueueEntry{Key: domain.EntryKey(chatID, msgID), ChatID: chatID, MessageID: msgID, Text: fmt.Sprintf("signal %d", msgID)}
}

func keys(entries []*domain.QueueEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Key)
	}
	return out
}

func TestQueue_DedupByKey(t *testing.T) {
	q := NewQueueRepo(10)

	added, _ := q.Enqueue(entry(1, 1))
	assert.True(t, added)
	added, _ = q.Enqueue(entry(1, 1))
	assert.False(t, added)
	assert.Equal(t, 1, q.Len())
}

func TestQueue_EvictsOldestAtCapacity(t *testing.T) {
	const capacity = 5
	q := NewQueueRepo(capacity)

	for i := int64(1); i <= capacity; i++ {
		_, evicted := q.Enqueue(entry(1, i))
		assert.Nil(t, evicted)
	}
	added, evicted := q.Enqueue(entry(1, capacity+1))

	assert.True(t, added)
	require.NotNil(t, evicted)
	assert.Equal(t, "1:1", evicted.Key)
	assert.Equal(t, capacity, q.Len())
	assert.Equal(t, []string{"1:2", "1:3", "1:4", "1:5", "1:6"}, keys(q.List()))

	// an evicted key may be queued again
	added, _ = q.Enqueue(entry(1, 1))
	assert.True(t, added)
}

func TestQueue_RemoveFromMiddleKeepsOrder(t *testing.T) {
	q := NewQueueRepo(10)
	for i := int64(1); i <= 4; i++ {
		q.Enqueue(entry(7, i))
	}

	assert.True(t, q.Remove(domain.RemoveRequest{Key: "7:2"}))

	chat, msg := int64(7), int64(3)
	assert.True(t, q.Remove(domain.RemoveRequest{ChatID: &chat, MessageID: &msg}))
	assert.False(t, q.Remove(domain.RemoveRequest{Key: "7:2"}))
	assert.Equal(t, []string{"7:1", "7:4"}, keys(q.List()))

	head, ok := q.PeekHead()
	require.True(t, ok)
	assert.Equal(t, "7:1", head.Key)
}

func TestQueue_PeekEmpty(t *testing.T) {
	q := NewQueueRepo(0)

	_, ok := q.PeekHead()
	assert.False(t, ok)
	assert.Equal(t, DefaultQueueCapacity, q.Capacity())
}

func TestQueue_ListIsCopy(t *testing.T) {
	q := NewQueueRepo(3)
	q.Enqueue(entry(1, 1))

	list := q.List()
	list[0] = entry(9, 9)

	head, _ := q.PeekHead()
	assert.Equal(t, "1:1", head.Key)
}
