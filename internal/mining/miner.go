package mining

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"LookTrainer/internal/config"
	"LookTrainer/internal/domain"
	"LookTrainer/internal/infrastructure/htmltext"
	"LookTrainer/internal/metrics"
	"LookTrainer/internal/ports"
)

// MinerDeps wires the stores and rules the miner needs.
type MinerDeps struct {
	Items    ports.ItemStore
	Patterns ports.PatternStore
	Registry *Registry
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
	Now      func() time.Time
}

// Miner extracts patterns from a rejected item and persists them in one batch.
type Miner struct {
	items    ports.ItemStore
	patterns ports.PatternStore
	registry *Registry
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

// NewMiner constructs a miner; Now defaults to time.Now.
func NewMiner(deps MinerDeps) *Miner {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Miner{
		items:    deps.Items,
		patterns: deps.Patterns,
		registry: deps.Registry,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
		now:      now,
	}
}

// DefaultRegistry builds the extraction rules from the training table.
func DefaultRegistry(cfg config.TrainingConfig) *Registry {
	return NewRegistry(
		ContentKeywords{Vocabulary: cfg.NegativeVocabulary, Confidence: cfg.ContentKeywordConfidence},
		RejectionReason{Confidence: cfg.ReasonKeywordConfidence},
	)
}

// Mine fetches the item, runs every extraction rule and stores the result.
// Errors are classified as PatternMiningFailure; callers decide whether to absorb them.
func (m *Miner) Mine(ctx context.Context, job domain.MiningJob) ([]domain.Pattern, error) {
	if m.items == nil || m.patterns == nil || m.registry == nil {
		return nil, domain.NewError(domain.KindPatternMiningFailure, "miner is not configured", nil)
	}

	item, err := m.items.GetItem(ctx, job.ItemID)
	if err != nil {
		m.metrics.MiningFailed("fetch")
		return nil, domain.NewError(domain.KindPatternMiningFailure, fmt.Sprintf("fetch item %s", job.ItemID), err)
	}

	patterns := m.registry.Extract(Source{
		Item:   item,
		Reason: job.Reason,
		Text:   haystack(item),
	})
	if len(patterns) == 0 {
		m.debug("no patterns mined", "item_id", item.ID)
		return nil, nil
	}

	createdAt := m.now().UTC()
	for i := range patterns {
		patterns[i].ID = uuid.NewString()
		patterns[i].SourceItemID = item.ID
		patterns[i].CreatedAt = createdAt
	}

	if err := m.patterns.InsertPatterns(ctx, patterns); err != nil {
		m.metrics.MiningFailed("persist")
		return nil, domain.NewError(domain.KindPatternMiningFailure, fmt.Sprintf("store patterns for %s", item.ID), err)
	}

	for _, p := range patterns {
		m.metrics.PatternMined(string(p.Type))
	}
	m.debug("stored learning patterns", "item_id", item.ID, "count", len(patterns))
	return patterns, nil
}

// haystack always carries the raw url and description; text extracted from an
// HTML description (decoded entities, alt and title) is appended, never substituted.
func haystack(item domain.Item) string {
	text := item.SourceURL + " " + item.Description
	if extracted := htmltext.Extract(item.Description); extracted != item.Description {
		text += " " + extracted
	}
	return strings.ToLower(text)
}

func (m *Miner) debug(msg string, args ...interface{}) {
	if m.logger != nil {
		m.logger.Debug(msg, args...)
	}
}
