package usecase

import (
	"context"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/unred/signal-bridge/internal/biz/domain"
	"github.com/unred/signal-bridge/internal/biz/repo"
	"github.com/unred/signal-bridge/internal/logger"
	"github.com/unred/signal-bridge/internal/metrics"
)

// DeliveryConfig contains delivery configuration
type DeliveryConfig struct {
	TokenTTL           time.Duration
	RoutingFallback    bool   // false pins delivery to the first routing key
	RoutingErrorMarker string // lower-case marker in a 400 body meaning "unknown room"
}

// DefaultDeliveryConfig returns default delivery configuration
func DefaultDeliveryConfig() DeliveryConfig {
	return DeliveryConfig{
		TokenTTL:           540 * time.Second,
		RoutingFallback:    true,
		RoutingErrorMarker: "room",
	}
}

// TokenState holds the single active converter token
type TokenState struct {
	mu    sync.Mutex
	token domain.AuthToken
}

// Current returns a copy of the active token
func (s *TokenState) Current() domain.AuthToken {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// DeliveryUsecase owns the token lifecycle and the convert-send protocol
type DeliveryUsecase struct {
	converter repo.ConverterRepo
	config    DeliveryConfig
	tokens    *TokenState
	now       func() time.Time
	log       *logger.Logger
}

// NewDeliveryUsecase creates a new delivery usecase
func NewDeliveryUsecase(converter repo.ConverterRepo, config DeliveryConfig) *DeliveryUsecase {
	return &DeliveryUsecase{
		converter: converter,
		config:    config,
		tokens:    &TokenState{},
		now:       time.Now,
		log:       logger.Named("delivery"),
	}
}

// Tokens exposes the token state, mostly for inspection
func (uc *DeliveryUsecase) Tokens() *TokenState {
	return uc.tokens
}

// EnsureToken returns a valid token, logging in when the cached one is
// missing, expired or force is set. It returns "" when login fails and
// leaves the cache empty so the next call retries.
func (uc *DeliveryUsecase) EnsureToken(ctx context.Context, force bool) string {
	uc.tokens.mu.Lock()
	defer uc.tokens.mu.Unlock()

	if !force && uc.tokens.token.Valid(uc.now(), uc.config.TokenTTL) {
		return uc.tokens.token.Value
	}

	uc.tokens.token = domain.AuthToken{}
	token, err := uc.converter.Login(ctx)
	if err != nil {
		metrics.TokenLogins.WithLabelValues("fail").Inc()
		uc.log.Warn().Err(err).Msg("converter login failed")
		return ""
	}

	metrics.TokenLogins.WithLabelValues("ok").Inc()
	uc.tokens.token = domain.AuthToken{Value: token, IssuedAt: uc.now()}
	return token
}

// Deliver sends one queued signal to the converter.
// It performs at most one token refresh and walks the routing candidates
// on a routing mismatch; it never sleeps or loops beyond that.
func (uc *DeliveryUsecase) Deliver(ctx context.Context, entry *domain.QueueEntry) domain.DeliveryResult {
	candidates := CandidateRoutingKeys(entry.Route())
	if len(candidates) == 0 {
		candidates = []string{""}
	}
	if !uc.config.RoutingFallback {
		candidates = candidates[:1]
	}

	token := uc.EnsureToken(ctx, false)
	if token == "" {
		return domain.DeliveryResult{Status: domain.DeliveryNoToken, Err: domain.ErrNoToken}
	}

	log := uc.log.With().Str("key", entry.Key).Logger()
	result := domain.DeliveryResult{}

	resp, err := uc.send(ctx, &result, token, entry.Text, candidates[0])
	if err != nil {
		log.Warn().Err(err).Str("room", candidates[0]).Msg("converter request failed")
		result.Status, result.Err = domain.DeliveryTransport, err
		return result
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return uc.accepted(log, result, resp, candidates[0])

	case resp.StatusCode == http.StatusBadRequest && uc.isRoutingMismatch(resp):
		for _, room := range candidates[1:] {
			log.Info().Str("room", room).Msg("routing key rejected, trying next candidate")
			resp, err = uc.send(ctx, &result, token, entry.Text, room)
			if err != nil {
				log.Warn().Err(err).Str("room", room).Msg("converter request failed")
				result.Status, result.Err = domain.DeliveryTransport, err
				return result
			}
			if resp.StatusCode == http.StatusBadRequest && uc.isRoutingMismatch(resp) {
				continue
			}
			if resp.StatusCode == http.StatusOK {
				return uc.accepted(log, result, resp, room)
			}
			return uc.rejected(log, result, resp)
		}
		log.Warn().Strs("candidates", candidates).Msg("no routing key accepted by converter")
		result.Status = domain.DeliveryRoutingExhausted
		return result

	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		log.Info().Int("status", resp.StatusCode).Msg("converter token expired, renewing")
		token = uc.EnsureToken(ctx, true)
		if token == "" {
			result.Status, result.Err = domain.DeliveryUnauthorized, domain.ErrNoToken
			return result
		}
		resp, err = uc.send(ctx, &result, token, entry.Text, candidates[0])
		if err != nil {
			log.Warn().Err(err).Msg("converter retry failed")
			result.Status, result.Err = domain.DeliveryTransport, err
			return result
		}
		if resp.StatusCode == http.StatusOK {
			return uc.accepted(log, result, resp, candidates[0])
		}
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			log.Warn().Int("status", resp.StatusCode).Msg("converter rejected renewed token")
			result.Status = domain.DeliveryUnauthorized
			return result
		}
		return uc.rejected(log, result, resp)

	default:
		return uc.rejected(log, result, resp)
	}
}

func (uc *DeliveryUsecase) send(ctx context.Context, result *domain.DeliveryResult, token, text, room string) (*repo.ConvertResponse, error) {
	result.Attempts++
	return uc.converter.Send(ctx, token, text, room)
}

func (uc *DeliveryUsecase) accepted(log logger.Logger, result domain.DeliveryResult, resp *repo.ConvertResponse, room string) domain.DeliveryResult {
	if !resp.OK {
		log.Warn().Str("body", resp.Body).Msg("converter answered not ok")
		result.Status = domain.DeliveryRejected
		return result
	}
	result.Status = domain.DeliveryDelivered
	result.Room = room
	return result
}

func (uc *DeliveryUsecase) rejected(log logger.Logger, result domain.DeliveryResult, resp *repo.ConvertResponse) domain.DeliveryResult {
	log.Warn().Int("status", resp.StatusCode).Str("body", resp.Body).Msg("converter rejected signal")
	result.Status = domain.DeliveryRejected
	return result
}

func (uc *DeliveryUsecase) isRoutingMismatch(resp *repo.ConvertResponse) bool {
	marker := strings.ToLower(uc.config.RoutingErrorMarker)
	return marker != "" && strings.Contains(strings.ToLower(resp.Body), marker)
}

var trailingNumberRe = regexp.MustCompile(`(\d+)$`)

// CandidateRoutingKeys lists the routing keys to try, most specific first:
// the room hint, the master hint, then room<N> and room_<N> for any
// trailing number found on either hint. Duplicates are dropped.
func CandidateRoutingKeys(route domain.Route) []string {
	var keys []string
	seen := make(map[string]bool)
	add := func(k string) {
		if k == "" || seen[k] {
			return
		}
		seen[k] = true
		keys = append(keys, k)
	}

	add(route.RoomHint)
	add(route.MasterHint)
	for _, hint := range []string{route.RoomHint, route.MasterHint} {
		if m := trailingNumberRe.FindStringSubmatch(hint); m != nil {
			add("room" + m[1])
			add("room_" + m[1])
		}
	}
	return keys
}
