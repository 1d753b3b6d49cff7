package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/unred/signal-bridge/internal/biz/domain"
	"github.com/unred/signal-bridge/internal/logger"
)

// Inspector is the read/ack view of the delivery queue
type Inspector interface {
	Latest() (*domain.QueueEntry, bool)
	Ack(req domain.RemoveRequest) (cleared bool, pending int)
	Pending() []*domain.QueueEntry
	Watermarks(ctx context.Context) (map[int64]int64, error)
}

// Server provides the loopback HTTP API for inspecting and acknowledging signals
type Server struct {
	inspector Inspector
	allowed   []int64

	server *http.Server
	port   int
	log    *logger.Logger
}

// LatestResponse is the body of GET /latest
type LatestResponse struct {
	OK        bool   `json:"ok"`
	TS        int64  `json:"ts"`
	ChatID    *int64 `json:"chat_id"`
	MessageID int64  `json:"message_id"`
	Key       string `json:"key"`
	Text      string `json:"text"`
	Master    string `json:"master,omitempty"`
	Room      string `json:"room,omitempty"`
}

// AckRequest is the body of POST /ack
type AckRequest struct {
	ChatID    *int64 `json:"chat_id,omitempty"`
	MessageID *int64 `json:"message_id,omitempty"`
	Key       string `json:"key,omitempty"`
}

// AckResponse is the body of a successful POST /ack
type AckResponse struct {
	OK      bool `json:"ok"`
	Cleared bool `json:"cleared"`
	Pending int  `json:"pending"`
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	OK      bool    `json:"ok"`
	Allowed []int64 `json:"allowed"`
}

// QueueResponse is the body of GET /queue
type QueueResponse struct {
	OK      bool             `json:"ok"`
	Pending int              `json:"pending"`
	Entries []LatestResponse `json:"entries"`

	// last processed message id per chat
	Watermarks map[string]int64 `json:"watermarks"`
}

// NewServer creates a new API server
func NewServer(inspector Inspector, allowed []int64, port int) *Server {
	if allowed == nil {
		allowed = []int64{}
	}
	return &Server{
		inspector: inspector,
		allowed:   allowed,
		port:      port,
		log:       logger.Named("api"),
	}
}

// Router builds the HTTP routes
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.NoCache)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:     []string{"*"},
		AllowedMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:     []string{"Accept", "Content-Type"},
		OptionsPassthrough: true,
	}))
	r.Use(s.requestLog)

	r.Get("/latest", s.handleLatest)
	r.Get("/health", s.handleHealth)
	r.Post("/ack", s.handleAck)
	r.Get("/queue", s.handleQueue)
	r.Handle("/metrics", promhttp.Handler())

	for _, path := range []string{"/latest", "/health", "/ack", "/queue"} {
		r.Options(path, noContent)
	}
	return r
}

// Start starts the HTTP server, blocking until it stops
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf("127.0.0.1:%d", s.port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.log.Info().Int("port", s.port).Msg("inspection API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.inspector.Latest()
	if !ok {
		s.writeJSON(w, http.StatusOK, LatestResponse{})
		return
	}
	s.writeJSON(w, http.StatusOK, toLatest(entry))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, HealthResponse{OK: true, Allowed: s.allowed})
}

func (s *Server) handleAck(w http.ResponseWriter, r *http.Request) {
	var req AckRequest
	body, err := io.ReadAll(io.LimitReader(r.Body, 64<<10))
	// an empty body acknowledges nothing
	if err == nil && len(bytes.TrimSpace(body)) > 0 {
		err = json.Unmarshal(body, &req)
	}
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]interface{}{"ok": false, "err": "bad_json"})
		return
	}

	cleared, pending := s.inspector.Ack(domain.RemoveRequest{
		ChatID:    req.ChatID,
		MessageID: req.MessageID,
		Key:       req.Key,
	})
	s.log.Info().Str("key", req.Key).Bool("cleared", cleared).Int("pending", pending).Msg("ack")
	s.writeJSON(w, http.StatusOK, AckResponse{OK: true, Cleared: cleared, Pending: pending})
}

func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	entries := s.inspector.Pending()
	out := make([]LatestResponse, len(entries))
	for i, e := range entries {
		out[i] = toLatest(e)
	}
	marks := map[string]int64{}
	byChat, err := s.inspector.Watermarks(r.Context())
	if err != nil {
		s.log.Warn().Err(err).Msg("read watermarks")
	}
	for id, msgID := range byChat {
		marks[strconv.FormatInt(id, 10)] = msgID
	}
	s.writeJSON(w, http.StatusOK, QueueResponse{OK: true, Pending: len(out), Entries: out, Watermarks: marks})
}

func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("took", time.Since(start)).
			Msg("request")
	})
}

// ============ Helpers ============

func toLatest(e *domain.QueueEntry) LatestResponse {
	chatID := e.ChatID
	return LatestResponse{
		OK:        true,
		TS:        e.EnqueuedAt.Unix(),
		ChatID:    &chatID,
		MessageID: e.MessageID,
		Key:       e.Key,
		Text:      e.Text,
		Master:    e.MasterHint,
		Room:      e.RoomHint,
	}
}

func noContent(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Warn().Err(err).Msg("write response")
	}
}
