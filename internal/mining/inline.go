package mining

import (
	"context"
	"log/slog"

	"LookTrainer/internal/domain"
	"LookTrainer/internal/ports"
)

// InlineQueue mines synchronously inside the feedback request. Failures are
// logged and never returned.
type InlineQueue struct {
	miner  *Miner
	logger *slog.Logger
}

var _ ports.MiningQueue = (*InlineQueue)(nil)

// NewInlineQueue wraps a miner.
func NewInlineQueue(miner *Miner, logger *slog.Logger) *InlineQueue {
	return &InlineQueue{miner: miner, logger: logger}
}

// Enqueue runs the miner immediately and swallows its error.
func (q *InlineQueue) Enqueue(ctx context.Context, job domain.MiningJob) error {
	if q.miner == nil {
		return nil
	}
	if _, err := q.miner.Mine(ctx, job); err != nil && q.logger != nil {
		q.logger.Warn("pattern extraction failed",
			"item_id", job.ItemID,
			"kind", domain.KindOf(err),
			"error", err,
		)
	}
	return nil
}
