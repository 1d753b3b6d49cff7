package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unred/signal-bridge/internal/biz/domain"
)

type mockInspector struct {
	entries []*domain.QueueEntry
	lastReq domain.RemoveRequest
}

func (m *mockInspector) Latest() (*domain.QueueEntry, bool) {
	if len(m.entries) == 0 {
		return nil, false
	}
	return m.entries[0], true
}

func (m *mockInspector) Ack(req domain.RemoveRequest) (bool, int) {
	m.lastReq = req
	for i, e := range m.entries {
		if req.Matches(e) {
			m.entries = append(m.entries[:i:i], m.entries[i+1:]...)
			return true, len(m.entries)
		}
	}
	return false, len(m.entries)
}

func (m *mockInspector) Pending() []*domain.QueueEntry {
	return m.entries
}

func (m *mockInspector) Watermarks(ctx context.Context) (map[int64]int64, error) {
	return map[int64]int64{-100: 8}, nil
}

func newTestServer(entries ...*domain.QueueEntry) (*Server, *mockInspector) {
	insp := &mockInspector{entries: entries}
	return NewServer(insp, []int64{-100, -200}, 0), insp
}

func sampleEntry() *domain.QueueEntry {
	return &domain.QueueEntry{
		Key:        "-100:7",
		ChatID:     -100,
		MessageID:  7,
		MasterHint: "master_2",
		RoomHint:   "room2",
		EnqueuedAt: time.Unix(1700000000, 0),
		Text:       "Master : master_2\nBuy\nE: 1.1\nTP: 1.2\nSL: 1.0",
	}
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestLatest_Empty(t *testing.T) {
	s, _ := newTestServer()
	w := do(t, s.Router(), http.MethodGet, "/latest", "")

	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, false, body["ok"])
	assert.Equal(t, float64(0), body["ts"])
	assert.Contains(t, body, "chat_id")
	assert.Nil(t, body["chat_id"])
	assert.Equal(t, float64(0), body["message_id"])
	assert.Equal(t, "", body["key"])
	assert.Equal(t, "", body["text"])
}

func TestLatest_Head(t *testing.T) {
	s, _ := newTestServer(sampleEntry())
	w := do(t, s.Router(), http.MethodGet, "/latest", "")

	var resp LatestResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.OK)
	assert.Equal(t, int64(1700000000), resp.TS)
	require.NotNil(t, resp.ChatID)
	assert.Equal(t, int64(-100), *resp.ChatID)
	assert.Equal(t, "-100:7", resp.Key)
	assert.Equal(t, "room2", resp.Room)
	assert.Equal(t, "master_2", resp.Master)
}

func TestNoCacheHeaders(t *testing.T) {
	s, _ := newTestServer()
	w := do(t, s.Router(), http.MethodGet, "/health", "")

	assert.Contains(t, w.Header().Get("Cache-Control"), "no-cache")
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer()
	w := do(t, s.Router(), http.MethodGet, "/health", "")

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.OK)
	assert.Equal(t, []int64{-100, -200}, resp.Allowed)
}

func TestAck(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantCleared bool
		wantPending int
	}{
		{name: "by key", body: `{"key":"-100:7"}`, wantCleared: true, wantPending: 0},
		{name: "by chat and message", body: `{"chat_id":-100,"message_id":7}`, wantCleared: true, wantPending: 0},
		{name: "unknown key", body: `{"key":"-100:8"}`, wantCleared: false, wantPending: 1},
		{name: "chat only", body: `{"chat_id":-100}`, wantCleared: false, wantPending: 1},
		{name: "empty body", body: ``, wantCleared: false, wantPending: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestServer(sampleEntry())
			w := do(t, s.Router(), http.MethodPost, "/ack", tt.body)

			require.Equal(t, http.StatusOK, w.Code)
			var resp AckResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.True(t, resp.OK)
			assert.Equal(t, tt.wantCleared, resp.Cleared)
			assert.Equal(t, tt.wantPending, resp.Pending)
		})
	}
}

func TestAck_BadJSON(t *testing.T) {
	s, insp := newTestServer(sampleEntry())
	w := do(t, s.Router(), http.MethodPost, "/ack", `{"key":`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := decode(t, w)
	assert.Equal(t, false, body["ok"])
	assert.Equal(t, "bad_json", body["err"])
	assert.Len(t, insp.entries, 1)
}

func TestQueue(t *testing.T) {
	second := sampleEntry()
	second.Key, second.MessageID = "-100:8", 8
	s, _ := newTestServer(sampleEntry(), second)

	w := do(t, s.Router(), http.MethodGet, "/queue", "")

	var resp QueueResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Pending)
	require.Len(t, resp.Entries, 2)
	assert.Equal(t, "-100:7", resp.Entries[0].Key)
	assert.Equal(t, "-100:8", resp.Entries[1].Key)
	assert.Equal(t, map[string]int64{"-100": 8}, resp.Watermarks)
}

func TestOptions(t *testing.T) {
	s, _ := newTestServer()
	for _, path := range []string{"/latest", "/health", "/ack", "/queue"} {
		w := do(t, s.Router(), http.MethodOptions, path, "")
		assert.Equal(t, http.StatusNoContent, w.Code, path)
	}
}

func TestCORS(t *testing.T) {
	s, _ := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer()
	w := do(t, s.Router(), http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
}
