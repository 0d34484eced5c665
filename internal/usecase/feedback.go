package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"LookTrainer/internal/domain"
	"LookTrainer/internal/metrics"
	"LookTrainer/internal/ports"
)

// FeedbackDeps wires the feedback processor.
type FeedbackDeps struct {
	Items    ports.ItemStore
	Sessions ports.SessionStore
	Mining   ports.MiningQueue
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
	Now      func() time.Time
}

// FeedbackProcessor records reviewer verdicts and hands rejections to the miner.
type FeedbackProcessor struct {
	items    ports.ItemStore
	sessions ports.SessionStore
	mining   ports.MiningQueue
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

// NewFeedbackProcessor constructs the processor; Sessions and Mining are optional.
func NewFeedbackProcessor(deps FeedbackDeps) *FeedbackProcessor {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &FeedbackProcessor{
		items:    deps.Items,
		sessions: deps.Sessions,
		mining:   deps.Mining,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
		now:      now,
	}
}

// FeedbackRequest is one reviewer decision. Approved is a pointer so a
// missing verdict can be told apart from a rejection.
type FeedbackRequest struct {
	ItemID   string
	Approved *bool
	Reason   string
}

// Record applies the decision to the item, bumps the owning session's
// counters and enqueues mining for rejections. Only the item write can fail
// the call.
func (p *FeedbackProcessor) Record(ctx context.Context, req FeedbackRequest) error {
	itemID := strings.TrimSpace(req.ItemID)
	if itemID == "" || req.Approved == nil {
		return domain.NewError(domain.KindInvalidRequest, "imageId and approved status are required", nil)
	}
	if p.items == nil {
		return domain.NewError(domain.KindStoreUnavailable, "store is not configured", nil)
	}

	approved := *req.Approved
	decision := domain.Decision{
		Approved:   approved,
		Reason:     req.Reason,
		ReviewedAt: p.now().UTC(),
	}

	before, err := p.items.ApplyDecision(ctx, itemID, decision)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.NewError(domain.KindUpdateFailed, fmt.Sprintf("image %s not found", itemID), err)
		}
		return storeError(domain.KindUpdateFailed, "failed to update image", err)
	}
	p.metrics.FeedbackRecorded(approved)
	p.debug("feedback recorded", "item_id", itemID, "status", decision.Status())

	p.countInSession(ctx, before, approved)

	if !approved {
		p.enqueueMining(ctx, domain.MiningJob{
			ItemID:     itemID,
			Reason:     req.Reason,
			OccurredAt: decision.ReviewedAt,
		})
	}
	return nil
}

// countInSession increments counters only when the item leaves the queued
// state of a session, so repeated verdicts on one item are counted once.
func (p *FeedbackProcessor) countInSession(ctx context.Context, before domain.Item, approved bool) {
	if p.sessions == nil || before.ReviewStatus != domain.ReviewQueued || before.ReviewSessionID == "" {
		return
	}
	if err := p.sessions.IncrementReviewed(ctx, before.ReviewSessionID, approved); err != nil {
		p.warn("cannot update session counters",
			"session_id", before.ReviewSessionID,
			"item_id", before.ID,
			"error", err,
		)
	}
}

func (p *FeedbackProcessor) enqueueMining(ctx context.Context, job domain.MiningJob) {
	if p.mining == nil {
		return
	}
	if err := p.mining.Enqueue(ctx, job); err != nil {
		p.metrics.MiningFailed("enqueue")
		p.warn("pattern extraction failed",
			"item_id", job.ItemID,
			"kind", domain.KindPatternMiningFailure,
			"error", err,
		)
	}
}

func (p *FeedbackProcessor) debug(msg string, args ...interface{}) {
	if p.logger != nil {
		p.logger.Debug(msg, args...)
	}
}

func (p *FeedbackProcessor) warn(msg string, args ...interface{}) {
	if p.logger != nil {
		p.logger.Warn(msg, args...)
	}
}
