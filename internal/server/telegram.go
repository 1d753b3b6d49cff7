package server

import (
	"context"
	"sort"

	"github.com/unred/signal-bridge/internal/biz/domain"
	"github.com/unred/signal-bridge/internal/infra/telegram"
	"github.com/unred/signal-bridge/internal/logger"
	"github.com/unred/signal-bridge/internal/service"
)

// ChatSource yields chat messages until ctx is cancelled
type ChatSource interface {
	Run(ctx context.Context, handle telegram.Handler) error
}

// RouteResolver resolves the routing hints of a chat
type RouteResolver interface {
	RouteFor(chatID int64) (domain.Route, bool)
}

// EventSink accepts events for ordered processing
type EventSink interface {
	Submit(ctx context.Context, ev domain.RawEvent, route domain.Route) error
}

// TelegramServer feeds allowed chat messages into the relay
type TelegramServer struct {
	source  ChatSource
	sink    EventSink
	routes  RouteResolver
	allowed map[int64]bool

	relay *service.RelayService
	stale *service.StaleMonitor

	ctx context.Context
	log *logger.Logger
}

// NewTelegramServer creates a new Telegram server
func NewTelegramServer(
	source ChatSource,
	relay *service.RelayService,
	stale *service.StaleMonitor,
	routes RouteResolver,
	allowedChatIDs []int64,
) *TelegramServer {
	s := &TelegramServer{
		source:  source,
		routes:  routes,
		allowed: make(map[int64]bool, len(allowedChatIDs)),
		relay:   relay,
		stale:   stale,
		ctx:     context.Background(),
		log:     logger.Named("server"),
	}
	if relay != nil {
		s.sink = relay
	}
	for _, id := range allowedChatIDs {
		s.allowed[id] = true
	}
	return s
}

// Start starts the relay and blocks polling the chat source
func (s *TelegramServer) Start(ctx context.Context) error {
	s.ctx = ctx

	if s.relay != nil {
		s.relay.Start(ctx)
	}
	if s.stale != nil {
		s.stale.Start(ctx)
	}

	s.log.Info().Ints64("allowed", s.AllowedChatIDs()).Msg("listening for signals")
	return s.source.Run(ctx, s.handleMessage)
}

// Stop stops background workers
func (s *TelegramServer) Stop() {
	if s.stale != nil {
		s.stale.Stop()
	}
	if s.relay != nil {
		s.relay.Stop()
	}
}

// AllowedChatIDs returns the allow-list in ascending order
func (s *TelegramServer) AllowedChatIDs() []int64 {
	ids := make([]int64, 0, len(s.allowed))
	for id := range s.allowed {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (s *TelegramServer) handleMessage(msg telegram.Message) {
	if !s.allowed[msg.ChatID] {
		return
	}

	route, ok := s.routes.RouteFor(msg.ChatID)
	if !ok {
		s.log.Debug().Int64("chat", msg.ChatID).Msg("chat has no master hint, ignored")
		return
	}

	ev := domain.RawEvent{ChatID: msg.ChatID, MessageID: msg.MessageID, Text: msg.Text}
	if err := s.sink.Submit(s.ctx, ev, route); err != nil {
		s.log.Debug().Err(err).Msg("event dropped on shutdown")
	}
}
