package service

import (
	"context"
	"sync"
	"time"

	"github.com/unred/signal-bridge/internal/biz/domain"
	"github.com/unred/signal-bridge/internal/biz/repo"
	"github.com/unred/signal-bridge/internal/logger"
)

// StaleMonitor periodically reports signals stuck in the queue
type StaleMonitor struct {
	queue    repo.QueueRepo
	notifier repo.NotifierRepo // optional

	interval time.Duration
	maxAge   time.Duration
	now      func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	log    *logger.Logger
}

// NewStaleMonitor creates a new stale signal monitor
func NewStaleMonitor(queue repo.QueueRepo, notifier repo.NotifierRepo, interval, maxAge time.Duration) *StaleMonitor {
	return &StaleMonitor{
		queue:    queue,
		notifier: notifier,
		interval: interval,
		maxAge:   maxAge,
		now:      time.Now,
		log:      logger.Named("stale"),
	}
}

// Start starts the monitor; a non-positive interval disables it
func (m *StaleMonitor) Start(ctx context.Context) {
	if m.interval <= 0 {
		return
	}
	m.ctx, m.cancel = context.WithCancel(ctx)

	m.wg.Add(1)
	go m.loop()

	m.log.Info().Dur("interval", m.interval).Dur("max_age", m.maxAge).Msg("stale monitor started")
}

// Stop stops the monitor
func (m *StaleMonitor) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
}

func (m *StaleMonitor) loop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.Check(m.ctx)
		}
	}
}

// Check reports entries older than maxAge and returns them
func (m *StaleMonitor) Check(ctx context.Context) []*domain.QueueEntry {
	cutoff := m.now().Add(-m.maxAge)

	var stale []*domain.QueueEntry
	for _, e := range m.queue.List() {
		if e.EnqueuedAt.Before(cutoff) {
			stale = append(stale, e)
		}
	}
	if len(stale) == 0 {
		return nil
	}

	m.log.Warn().Int("count", len(stale)).Str("oldest", stale[0].Key).Msg("signals waiting for delivery")
	if m.notifier != nil {
		if err := m.notifier.NotifyStale(ctx, stale); err != nil {
			m.log.Warn().Err(err).Msg("stale report failed")
		}
	}
	return stale
}
