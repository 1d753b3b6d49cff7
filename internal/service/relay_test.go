package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unred/signal-bridge/internal/biz/domain"
	"github.com/unred/signal-bridge/internal/biz/repo"
	"github.com/unred/signal-bridge/internal/biz/usecase"
	"github.com/unred/signal-bridge/internal/data"
)

// Mock implementations

type mockWatermarkRepo struct {
	mu    sync.Mutex
	marks map[int64]int64
}

func (m *mockWatermarkRepo) Get(ctx context.Context, chatID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.marks[chatID], nil
}

func (m *mockWatermarkRepo) Advance(ctx context.Context, chatID, msgID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if msgID > m.marks[chatID] {
		m.marks[chatID] = msgID
	}
	return nil
}

func (m *mockWatermarkRepo) Snapshot(ctx context.Context) (map[string]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int64)
	for k, v := range m.marks {
		out[fmt.Sprint(k)] = v
	}
	return out, nil
}

func (m *mockWatermarkRepo) Close() error { return nil }

type mockConverterRepo struct {
	mu     sync.Mutex
	status int
	sent   []string
}

func (m *mockConverterRepo) Login(ctx context.Context) (string, error) {
	return "tok", nil
}

func (m *mockConverterRepo) Send(ctx context.Context, token, text, room string) (*repo.ConvertResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, room)
	if m.status != 200 {
		return &repo.ConvertResponse{StatusCode: m.status, Body: "down"}, nil
	}
	return &repo.ConvertResponse{StatusCode: 200, OK: true}, nil
}

func (m *mockConverterRepo) setStatus(code int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = code
}

func (m *mockConverterRepo) sentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type mockNotifier struct {
	mu        sync.Mutex
	delivered []string
	stale     int
}

func (m *mockNotifier) NotifyDelivered(ctx context.Context, entry *domain.QueueEntry, room string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delivered = append(m.delivered, entry.Key+"@"+room)
	return nil
}

func (m *mockNotifier) NotifyStale(ctx context.Context, entries []*domain.QueueEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stale += len(entries)
	return nil
}

const signalText = "Sell Limit\nEntry: 1.2500\nTP: 1.2600\nSL: 1.2400\n14:32"

var testRoute = domain.Route{MasterHint: "master_2", RoomHint: "room2"}

func newTestRelay(mode string) (*RelayService, repo.QueueRepo, *mockConverterRepo, *mockNotifier) {
	queue := data.NewQueueRepo(10)
	conv := &mockConverterRepo{status: 200}
	notifier := &mockNotifier{}

	pipeline := usecase.NewPipelineUsecase(&mockWatermarkRepo{marks: map[int64]int64{}}, queue, usecase.NewSignalClassifier(usecase.ClassifierStrict))
	delivery := usecase.NewDeliveryUsecase(conv, usecase.DefaultDeliveryConfig())

	cfg := DefaultRelayConfig()
	cfg.Mode = mode
	cfg.RetryMin = time.Millisecond
	cfg.RetryMax = 5 * time.Millisecond

	return NewRelayService(pipeline, delivery, queue, notifier, cfg), queue, conv, notifier
}

func TestRelay_HandleAndDeliver(t *testing.T) {
	relay, queue, conv, notifier := newTestRelay(ModePush)
	ctx := context.Background()

	res := relay.HandleEvent(ctx, domain.RawEvent{ChatID: -100, MessageID: 7, Text: signalText}, testRoute)
	require.Equal(t, domain.OutcomeQueued, res.Outcome)

	dres, err := relay.DeliverNext(ctx)
	require.NoError(t, err)
	assert.True(t, dres.OK())
	assert.Equal(t, 0, queue.Len())
	assert.Equal(t, 1, conv.sentCount())
	assert.Equal(t, []string{"-100:7@room2"}, notifier.delivered)

	_, err = relay.DeliverNext(ctx)
	assert.ErrorIs(t, err, domain.ErrQueueEmpty)
}

func TestRelay_FailedDeliveryStaysQueued(t *testing.T) {
	relay, queue, conv, notifier := newTestRelay(ModePush)
	conv.setStatus(500)
	ctx := context.Background()

	relay.HandleEvent(ctx, domain.RawEvent{ChatID: -100, MessageID: 7, Text: signalText}, testRoute)
	dres, err := relay.DeliverNext(ctx)

	require.NoError(t, err)
	assert.Equal(t, domain.DeliveryRejected, dres.Status)
	assert.Equal(t, 1, queue.Len())
	assert.Empty(t, notifier.delivered)
}

func TestRelay_PushModeDrainsQueue(t *testing.T) {
	relay, queue, conv, _ := newTestRelay(ModePush)
	conv.setStatus(503)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	relay.Start(ctx)
	defer relay.Stop()

	require.NoError(t, relay.Submit(ctx, domain.RawEvent{ChatID: -100, MessageID: 7, Text: signalText}, testRoute))
	require.NoError(t, relay.Submit(ctx, domain.RawEvent{ChatID: -100, MessageID: 8, Text: "gm"}, testRoute))

	// retried with backoff while the converter is down
	assert.Eventually(t, func() bool { return conv.sentCount() >= 2 }, time.Second, time.Millisecond)
	assert.Equal(t, 1, queue.Len())

	conv.setStatus(200)
	assert.Eventually(t, func() bool { return queue.Len() == 0 }, time.Second, time.Millisecond)
}

func TestRelay_PullModeWaitsForAck(t *testing.T) {
	relay, _, conv, _ := newTestRelay(ModePull)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	relay.Start(ctx)
	defer relay.Stop()

	require.NoError(t, relay.Submit(ctx, domain.RawEvent{ChatID: -100, MessageID: 7, Text: signalText}, testRoute))
	require.Eventually(t, func() bool { _, ok := relay.Latest(); return ok }, time.Second, time.Millisecond)

	head, _ := relay.Latest()
	assert.Equal(t, "-100:7", head.Key)
	assert.Len(t, relay.Pending(), 1)
	assert.Equal(t, 0, conv.sentCount())

	cleared, pending := relay.Ack(domain.RemoveRequest{Key: "-100:7"})
	assert.True(t, cleared)
	assert.Equal(t, 0, pending)

	cleared, _ = relay.Ack(domain.RemoveRequest{Key: "-100:7"})
	assert.False(t, cleared)
}

func TestStaleMonitor_Check(t *testing.T) {
	queue := data.NewQueueRepo(10)
	notifier := &mockNotifier{}
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	queue.Enqueue(&domain.QueueEntry{Key: "1:1", EnqueuedAt: now.Add(-20 * time.Minute)})
	queue.Enqueue(&domain.QueueEntry{Key: "1:2", EnqueuedAt: now.Add(-time.Minute)})

	m := NewStaleMonitor(queue, notifier, time.Minute, 10*time.Minute)
	m.now = func() time.Time { return now }

	stale := m.Check(context.Background())
	require.Len(t, stale, 1)
	assert.Equal(t, "1:1", stale[0].Key)
	assert.Equal(t, 1, notifier.stale)
}
