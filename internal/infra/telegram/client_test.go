package telegram

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/telebot.v4"
)

// stubPoller optionally reports a poll failure, then idles until stopped
type stubPoller struct {
	fail error
}

func (p stubPoller) Poll(b *telebot.Bot, _ chan telebot.Update, stop chan struct{}) {
	if p.fail != nil {
		b.OnError(p.fail, nil)
	}
	<-stop
}

// offlineBot builds a bot that never calls the real API on creation
func offlineBot(s telebot.Settings, poller telebot.Poller, url string) (*telebot.Bot, error) {
	s.Offline = true
	s.Poller = poller
	s.URL = url
	return telebot.NewBot(s)
}

func TestToMessage(t *testing.T) {
	_, ok := toMessage(nil)
	assert.False(t, ok)

	msg, ok := toMessage(&telebot.Message{ID: 42, Chat: &telebot.Chat{ID: -100}, Text: "Sell"})
	assert.True(t, ok)
	assert.Equal(t, Message{ChatID: -100, MessageID: 42, Text: "Sell"}, msg)

	msg, ok = toMessage(&telebot.Message{ID: 43, Chat: &telebot.Chat{ID: -100}, Caption: "Buy"})
	assert.True(t, ok)
	assert.Equal(t, "Buy", msg.Text)
}

func TestRun_RetriesUntilCancelled(t *testing.T) {
	c := NewClient("token", time.Second)
	c.MinBackoff = time.Millisecond
	c.MaxBackoff = 4 * time.Millisecond

	var attempts atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	c.newBot = func(telebot.Settings) (*telebot.Bot, error) {
		if attempts.Add(1) == 3 {
			cancel()
		}
		return nil, errors.New("telegram: Unauthorized (401)")
	}

	err := c.Run(ctx, func(Message) {})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestRun_PassesSettings(t *testing.T) {
	c := NewClient("123:abc", 7*time.Second)
	ctx, cancel := context.WithCancel(context.Background())

	var got telebot.Settings
	c.newBot = func(s telebot.Settings) (*telebot.Bot, error) {
		got = s
		cancel()
		return nil, errors.New("offline")
	}

	_ = c.Run(ctx, func(Message) {})

	assert.Equal(t, "123:abc", got.Token)
	assert.True(t, got.Synchronous)
	poller, ok := got.Poller.(*telebot.LongPoller)
	if assert.True(t, ok) {
		assert.Equal(t, 7*time.Second, poller.Timeout)
	}
}

func TestRun_PollErrorReconnectsAtMinBackoff(t *testing.T) {
	c := NewClient("token", time.Second)
	c.MinBackoff = 30 * time.Millisecond
	c.MaxBackoff = 10 * time.Second
	c.HealthInterval = 0

	const sessions = 5
	var (
		mu     sync.Mutex
		starts []time.Time
	)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c.newBot = func(s telebot.Settings) (*telebot.Bot, error) {
		mu.Lock()
		starts = append(starts, time.Now())
		n := len(starts)
		mu.Unlock()
		if n == sessions {
			cancel()
			return nil, errors.New("stop")
		}
		return offlineBot(s, stubPoller{fail: errors.New("getUpdates: connection reset")}, "http://127.0.0.1:1")
	}

	err := c.Run(ctx, func(Message) {})
	require.ErrorIs(t, err, context.Canceled)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, starts, sessions)
	for i := 1; i < len(starts); i++ {
		assert.GreaterOrEqual(t, starts[i].Sub(starts[i-1]), c.MinBackoff, "gap %d", i)
	}
	// doubling would need 30+60+120+240ms before the last session
	assert.Less(t, starts[sessions-1].Sub(starts[0]), 300*time.Millisecond)
}

func TestSession_PollErrorEndsSession(t *testing.T) {
	c := NewClient("token", time.Second)
	c.HealthInterval = 0

	pollErr := errors.New("getUpdates: connection reset")
	c.newBot = func(s telebot.Settings) (*telebot.Bot, error) {
		return offlineBot(s, stubPoller{fail: pollErr}, "http://127.0.0.1:1")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	connected, err := c.session(ctx, func(Message) {})

	assert.True(t, connected)
	assert.ErrorIs(t, err, pollErr)
}

func TestSession_FailedHealthChecksEndSession(t *testing.T) {
	var hits atomic.Int32
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":false,"error_code":502,"description":"Bad Gateway"}`))
	}))
	defer api.Close()

	c := NewClient("token", time.Second)
	c.HealthInterval = 5 * time.Millisecond
	c.MaxHealthFails = 2
	c.newBot = func(s telebot.Settings) (*telebot.Bot, error) {
		return offlineBot(s, stubPoller{}, api.URL)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	connected, err := c.session(ctx, func(Message) {})

	assert.True(t, connected)
	assert.ErrorIs(t, err, errUnhealthy)
	assert.NoError(t, ctx.Err())
	assert.Equal(t, int32(2), hits.Load())
}
