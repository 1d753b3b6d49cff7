package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/unred/signal-bridge/internal/biz/domain"
	"github.com/unred/signal-bridge/internal/biz/repo"
)

// Mock implementations

type mockWatermarkRepo struct {
	mu         sync.Mutex
	marks      map[int64]int64
	advanceErr error
}

func newMockWatermarkRepo() *mockWatermarkRepo {
	return &mockWatermarkRepo{marks: make(map[int64]int64)}
}

func (m *mockWatermarkRepo) Get(ctx context.Context, chatID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.marks[chatID], nil
}

func (m *mockWatermarkRepo) Advance(ctx context.Context, chatID, msgID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.advanceErr != nil {
		return m.advanceErr
	}
	if msgID > m.marks[chatID] {
		m.marks[chatID] = msgID
	}
	return nil
}

func (m *mockWatermarkRepo) Snapshot(ctx context.Context) (map[string]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int64, len(m.marks))
	for k, v := range m.marks {
		out[fmt.Sprint(k)] = v
	}
	return out, nil
}

func (m *mockWatermarkRepo) Close() error { return nil }

type mockQueueRepo struct {
	entries []*domain.QueueEntry
}

func (m *mockQueueRepo) Enqueue(entry *domain.QueueEntry) (bool, *domain.QueueEntry) {
	for _, e := range m.entries {
		if e.Key == entry.Key {
			return false, nil
		}
	}
	m.entries = append(m.entries, entry)
	return true, nil
}

func (m *mockQueueRepo) PeekHead() (*domain.QueueEntry, bool) {
	if len(m.entries) == 0 {
		return nil, false
	}
	return m.entries[0], true
}

func (m *mockQueueRepo) Remove(req domain.RemoveRequest) bool {
	for i, e := range m.entries {
		if req.Matches(e) {
			m.entries = append(m.entries[:i], m.entries[i+1:]...)
			return true
		}
	}
	return false
}

func (m *mockQueueRepo) Len() int                    { return len(m.entries) }
func (m *mockQueueRepo) List() []*domain.QueueEntry { return m.entries }
func (m *mockQueueRepo) Capacity() int              { return 200 }

type sendCall struct {
	Token string
	Text  string
	Room  string
}

// mockConverterRepo answers Send calls from a script, then with 500
type mockConverterRepo struct {
	tokens    []string
	loginErr  error
	logins    int
	responses []*repo.ConvertResponse
	calls     []sendCall
}

func (m *mockConverterRepo) Login(ctx context.Context) (string, error) {
	m.logins++
	if m.loginErr != nil {
		return "", m.loginErr
	}
	if len(m.tokens) == 0 {
		return fmt.Sprintf("tok-%d", m.logins), nil
	}
	t := m.tokens[0]
	m.tokens = m.tokens[1:]
	return t, nil
}

func (m *mockConverterRepo) Send(ctx context.Context, token, text, room string) (*repo.ConvertResponse, error) {
	m.calls = append(m.calls, sendCall{Token: token, Text: text, Room: room})
	if len(m.responses) == 0 {
		return &repo.ConvertResponse{StatusCode: 500, Body: "unexpected call"}, nil
	}
	r := m.responses[0]
	m.responses = m.responses[1:]
	if r == nil {
		return nil, errors.New("connection refused")
	}
	return r, nil
}

func (m *mockConverterRepo) rooms() []string {
	var out []string
	for _, c := range m.calls {
		out = append(out, c.Room)
	}
	return out
}

func okResp() *repo.ConvertResponse {
	return &repo.ConvertResponse{StatusCode: 200, OK: true, Body: `{"ok":true}`}
}

func statusResp(code int, body string) *repo.ConvertResponse {
	return &repo.ConvertResponse{StatusCode: code, Body: body}
}
