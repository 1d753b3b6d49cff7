package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/unred/signal-bridge/internal/backoff"
	"github.com/unred/signal-bridge/internal/biz/domain"
	"github.com/unred/signal-bridge/internal/biz/repo"
	"github.com/unred/signal-bridge/internal/biz/usecase"
	"github.com/unred/signal-bridge/internal/logger"
	"github.com/unred/signal-bridge/internal/metrics"
)

// Delivery modes
const (
	ModePush = "push" // worker drains the queue into the converter
	ModePull = "pull" // consumers poll /latest and /ack
)

// RelayConfig contains relay configuration
type RelayConfig struct {
	Mode        string
	RetryMin    time.Duration
	RetryMax    time.Duration
	EventBuffer int
}

// DefaultRelayConfig returns default relay configuration
func DefaultRelayConfig() RelayConfig {
	return RelayConfig{
		Mode:        ModePush,
		RetryMin:    5 * time.Second,
		RetryMax:    60 * time.Second,
		EventBuffer: 256,
	}
}

type inbound struct {
	event domain.RawEvent
	route domain.Route
}

// RelayService runs the event loop and the delivery worker
type RelayService struct {
	pipeline *usecase.PipelineUsecase
	delivery *usecase.DeliveryUsecase
	queue    repo.QueueRepo
	notifier repo.NotifierRepo // optional

	config RelayConfig
	events chan inbound
	wake   chan struct{}

	cancel context.CancelFunc
	wg     sync.WaitGroup
	log    *logger.Logger
}

// NewRelayService creates a new relay service
func NewRelayService(
	pipeline *usecase.PipelineUsecase,
	delivery *usecase.DeliveryUsecase,
	queue repo.QueueRepo,
	notifier repo.NotifierRepo,
	config RelayConfig,
) *RelayService {
	if config.EventBuffer <= 0 {
		config.EventBuffer = DefaultRelayConfig().EventBuffer
	}
	return &RelayService{
		pipeline: pipeline,
		delivery: delivery,
		queue:    queue,
		notifier: notifier,
		config:   config,
		events:   make(chan inbound, config.EventBuffer),
		wake:     make(chan struct{}, 1),
		log:      logger.Named("relay"),
	}
}

// Start starts the event loop and, in push mode, the delivery worker
func (s *RelayService) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go s.eventLoop(ctx)

	if s.config.Mode != ModePull {
		s.wg.Add(1)
		go s.deliveryLoop(ctx)
	}

	s.log.Info().Str("mode", s.config.Mode).Int("capacity", s.queue.Capacity()).Msg("relay started")
}

// Stop stops all loops and waits for them
func (s *RelayService) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.log.Info().Msg("relay stopped")
}

// Submit hands an event to the event loop, preserving arrival order.
// It blocks while the buffer is full.
func (s *RelayService) Submit(ctx context.Context, ev domain.RawEvent, route domain.Route) error {
	select {
	case s.events <- inbound{event: ev, route: route}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// HandleEvent runs one event through the pipeline and logs the outcome
func (s *RelayService) HandleEvent(ctx context.Context, ev domain.RawEvent, route domain.Route) domain.ProcessResult {
	res := s.pipeline.Process(ctx, ev, route)
	metrics.Events.WithLabelValues(string(res.Outcome)).Inc()

	log := s.log.With().Int64("chat", ev.ChatID).Int64("msg", ev.MessageID).Logger()
	switch res.Outcome {
	case domain.OutcomeQueued:
		log.Info().Int("pending", s.queue.Len()).Msg("signal queued")
		s.notify()
	case domain.OutcomeError:
		log.Error().Err(res.Err).Msg("event processing failed")
		s.notify()
	default:
		log.Debug().Str("outcome", string(res.Outcome)).Msg("event skipped")
	}
	return res
}

// DeliverNext delivers the queue head, removing it on success
func (s *RelayService) DeliverNext(ctx context.Context) (domain.DeliveryResult, error) {
	entry, ok := s.queue.PeekHead()
	if !ok {
		return domain.DeliveryResult{}, domain.ErrQueueEmpty
	}

	res := s.delivery.Deliver(ctx, entry)
	metrics.Deliveries.WithLabelValues(string(res.Status)).Inc()

	if !res.OK() {
		s.log.Warn().
			Int64("chat", entry.ChatID).
			Int64("msg", entry.MessageID).
			Str("status", string(res.Status)).
			Int("attempts", res.Attempts).
			Msg("delivery failed, signal stays queued")
		return res, nil
	}

	s.queue.Remove(domain.RemoveRequest{Key: entry.Key})
	s.log.Info().
		Int64("chat", entry.ChatID).
		Int64("msg", entry.MessageID).
		Str("room", res.Room).
		Str("text", entry.Text).
		Msgf("SENT chat=%d msg=%d", entry.ChatID, entry.MessageID)

	if s.notifier != nil {
		if err := s.notifier.NotifyDelivered(ctx, entry, res.Room); err != nil {
			s.log.Warn().Err(err).Msg("delivery mirror failed")
		}
	}
	return res, nil
}

// Latest returns the oldest pending signal
func (s *RelayService) Latest() (*domain.QueueEntry, bool) {
	return s.queue.PeekHead()
}

// Ack removes a pending signal and reports how many remain
func (s *RelayService) Ack(req domain.RemoveRequest) (bool, int) {
	cleared := s.queue.Remove(req)
	if cleared {
		s.notify()
	}
	return cleared, s.queue.Len()
}

// Pending lists queued signals, oldest first
func (s *RelayService) Pending() []*domain.QueueEntry {
	return s.queue.List()
}

// Watermarks returns the last processed message id per chat
func (s *RelayService) Watermarks(ctx context.Context) (map[int64]int64, error) {
	return s.pipeline.Watermarks(ctx)
}

func (s *RelayService) eventLoop(ctx context.Context) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case in := <-s.events:
			s.HandleEvent(ctx, in.event, in.route)
		}
	}
}

func (s *RelayService) deliveryLoop(ctx context.Context) {
	defer s.wg.Done()

	bo := backoff.New(s.config.RetryMin, s.config.RetryMax)
	for {
		res, err := s.DeliverNext(ctx)
		switch {
		case errors.Is(err, domain.ErrQueueEmpty):
			bo.Reset()
			select {
			case <-ctx.Done():
				return
			case <-s.wake:
			}
		case res.OK():
			bo.Reset()
		default:
			delay := bo.Next()
			s.log.Debug().Dur("retry_in", delay).Msg("delivery backoff")
			if !backoff.Sleep(ctx, delay) {
				return
			}
		}
	}
}

// notify wakes the delivery worker without blocking
func (s *RelayService) notify() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}
