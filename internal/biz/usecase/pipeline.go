package usecase

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/unred/signal-bridge/internal/biz/domain"
	"github.com/unred/signal-bridge/internal/biz/repo"
)

// PipelineUsecase turns one chat event into a queued canonical signal
type PipelineUsecase struct {
	watermarks repo.WatermarkRepo
	queue      repo.QueueRepo
	classifier *SignalClassifier
	now        func() time.Time
}

// NewPipelineUsecase creates a new pipeline usecase
func NewPipelineUsecase(watermarks repo.WatermarkRepo, queue repo.QueueRepo, classifier *SignalClassifier) *PipelineUsecase {
	return &PipelineUsecase{
		watermarks: watermarks,
		queue:      queue,
		classifier: classifier,
		now:        time.Now,
	}
}

// Process runs normalize, classify, canonicalize and enqueue for one event.
// The watermark is advanced after every pass that reaches classification,
// whether or not the text was a signal.
func (uc *PipelineUsecase) Process(ctx context.Context, ev domain.RawEvent, route domain.Route) domain.ProcessResult {
	res := domain.ProcessResult{Key: ev.Key()}

	last, err := uc.watermarks.Get(ctx, ev.ChatID)
	if err != nil {
		res.Outcome, res.Err = domain.OutcomeError, fmt.Errorf("read watermark: %w", err)
		return res
	}
	if ev.MessageID <= last {
		res.Outcome = domain.OutcomeDuplicate
		return res
	}

	text := Normalize(ev.Text)
	if !uc.classifier.LooksLikeSignal(text) {
		res.Outcome = domain.OutcomeNotSignal
		return uc.advance(ctx, ev, res)
	}

	route = route.WithDefaults()
	res.Text = Canonicalize(text, route.MasterHint)

	entry := &domain.QueueEntry{
		Key:        res.Key,
		ChatID:     ev.ChatID,
		MessageID:  ev.MessageID,
		MasterHint: route.MasterHint,
		RoomHint:   route.RoomHint,
		EnqueuedAt: uc.now(),
		Text:       res.Text,
	}
	added, evicted := uc.queue.Enqueue(entry)
	if added {
		res.Outcome = domain.OutcomeQueued
		res.Evicted = evicted
	} else {
		res.Outcome = domain.OutcomeAlreadyQueued
	}
	return uc.advance(ctx, ev, res)
}

// Watermarks returns a snapshot of the per-chat watermarks
func (uc *PipelineUsecase) Watermarks(ctx context.Context) (map[int64]int64, error) {
	snap, err := uc.watermarks.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[int64]int64, len(snap))
	for k, v := range snap {
		id, err := strconv.ParseInt(k, 10, 64)
		if err != nil {
			continue
		}
		out[id] = v
	}
	return out, nil
}

func (uc *PipelineUsecase) advance(ctx context.Context, ev domain.RawEvent, res domain.ProcessResult) domain.ProcessResult {
	if err := uc.watermarks.Advance(ctx, ev.ChatID, ev.MessageID); err != nil {
		// a queued entry stays queued
		res.Outcome, res.Err = domain.OutcomeError, fmt.Errorf("advance watermark: %w", err)
	}
	return res
}
