package telegram

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gopkg.in/telebot.v4"

	"github.com/unred/signal-bridge/internal/backoff"
	"github.com/unred/signal-bridge/internal/logger"
)

// Message is a chat message reduced to what the relay needs
type Message struct {
	ChatID    int64
	MessageID int64
	Text      string
}

// Handler receives messages in arrival order on the polling goroutine
type Handler func(Message)

// Client long-polls the Bot API and reconnects on failure
type Client struct {
	token       string
	pollTimeout time.Duration

	// reconnect delays
	MinBackoff time.Duration
	MaxBackoff time.Duration

	// liveness probe of a running session
	HealthInterval time.Duration
	MaxHealthFails int

	newBot func(telebot.Settings) (*telebot.Bot, error)
	log    *logger.Logger
}

// NewClient creates a new Telegram client
func NewClient(token string, pollTimeout time.Duration) *Client {
	return &Client{
		token:          token,
		pollTimeout:    pollTimeout,
		MinBackoff:     5 * time.Second,
		MaxBackoff:     60 * time.Second,
		HealthInterval: time.Minute,
		MaxHealthFails: 3,
		newBot:         telebot.NewBot,
		log:            logger.Named("telegram"),
	}
}

var errUnhealthy = errors.New("telegram session unhealthy")

// Run polls until ctx is cancelled, reconnecting with capped backoff.
// The backoff resets whenever a session connects cleanly.
func (c *Client) Run(ctx context.Context, handle Handler) error {
	bo := backoff.New(c.MinBackoff, c.MaxBackoff)

	for {
		connected, err := c.session(ctx, handle)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if connected {
			bo.Reset()
		}

		delay := bo.Next()
		c.log.Warn().Err(err).Dur("retry_in", delay).Msg("telegram session ended")
		if !backoff.Sleep(ctx, delay) {
			return ctx.Err()
		}
	}
}

// session runs one bot connection; connected reports whether login succeeded
func (c *Client) session(ctx context.Context, handle Handler) (bool, error) {
	failures := make(chan error, 1)
	report := func(err error) {
		select {
		case failures <- err:
		default:
		}
	}

	bot, err := c.newBot(telebot.Settings{
		Token:       c.token,
		Poller:      &telebot.LongPoller{Timeout: c.pollTimeout},
		Synchronous: true,
		OnError: func(err error, tc telebot.Context) {
			if tc == nil {
				// poller level failure
				report(err)
				return
			}
			c.log.Warn().Err(err).Msg("update handler failed")
		},
	})
	if err != nil {
		return false, fmt.Errorf("connect: %w", err)
	}
	c.log.Info().Str("bot", botName(bot)).Msg("telegram login ok")

	forward := func(tc telebot.Context) error {
		if msg, ok := toMessage(tc.Message()); ok {
			handle(msg)
		}
		return nil
	}
	bot.Handle(telebot.OnText, forward)
	bot.Handle(telebot.OnPhoto, forward)
	bot.Handle(telebot.OnChannelPost, forward)

	done := make(chan struct{})
	go func() {
		defer close(done)
		bot.Start()
	}()

	probeCtx, stopProbe := context.WithCancel(ctx)
	defer stopProbe()
	go c.probe(probeCtx, bot, report)

	select {
	case <-ctx.Done():
		err = nil
	case err = <-failures:
	}
	bot.Stop()
	<-done
	return true, err
}

// probe calls getMe periodically and reports after MaxHealthFails misses in a row
func (c *Client) probe(ctx context.Context, bot *telebot.Bot, report func(error)) {
	if c.HealthInterval <= 0 {
		return
	}
	ticker := time.NewTicker(c.HealthInterval)
	defer ticker.Stop()

	fails := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if _, err := bot.Raw("getMe", map[string]string{}); err != nil {
			fails++
			c.log.Debug().Err(err).Int("fails", fails).Msg("telegram probe failed")
			if fails >= c.MaxHealthFails {
				report(fmt.Errorf("%w: %v", errUnhealthy, err))
				return
			}
			continue
		}
		fails = 0
	}
}

func toMessage(m *telebot.Message) (Message, bool) {
	if m == nil || m.Chat == nil {
		return Message{}, false
	}
	text := m.Text
	if text == "" {
		text = m.Caption
	}
	return Message{ChatID: m.Chat.ID, MessageID: int64(m.ID), Text: text}, true
}

func botName(b *telebot.Bot) string {
	if b.Me == nil {
		return ""
	}
	if b.Me.Username != "" {
		return "@" + b.Me.Username
	}
	return fmt.Sprint(b.Me.ID)
}
