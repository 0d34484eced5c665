package ports

import (
	"context"
	"time"

	"LookTrainer/internal/domain"
)

// ItemStore reads and mutates candidate items.
type ItemStore interface {
	// SelectEligible returns unset/pending items, newest first.
	SelectEligible(ctx context.Context, limit int) ([]domain.Item, error)
	// ListQueue returns items ordered by needs_training desc, id desc.
	ListQueue(ctx context.Context, limit int) ([]domain.Item, error)
	GetItem(ctx context.Context, id string) (domain.Item, error)
	// QueueItems marks ids as queued; it returns how many rows were updated
	// before any error so callers can report a partial failure.
	QueueItems(ctx context.Context, ids []string, patch domain.QueuePatch) (int, error)
	// ApplyDecision records a verdict and returns the item as it was before.
	ApplyDecision(ctx context.Context, id string, decision domain.Decision) (domain.Item, error)
	CountQueued(ctx context.Context, sessionID string) (int, error)
}

// SessionStore persists review sessions.
type SessionStore interface {
	InsertSession(ctx context.Context, session domain.ReviewSession) error
	GetSession(ctx context.Context, id string) (domain.ReviewSession, error)
	// LatestSessions returns sessions in the given status, newest first.
	LatestSessions(ctx context.Context, status domain.SessionStatus, limit int) ([]domain.ReviewSession, error)
	ActivateSession(ctx context.Context, id string, queued int) error
	SetSessionStatus(ctx context.Context, id string, status domain.SessionStatus, at time.Time) error
	// IncrementReviewed bumps counters atomically; it is a no-op once
	// items_reviewed reaches total_items.
	IncrementReviewed(ctx context.Context, id string, approved bool) error
}

// PatternStore persists mined patterns.
type PatternStore interface {
	InsertPatterns(ctx context.Context, patterns []domain.Pattern) error
	// SelectPatterns returns up to limit patterns, most recent first.
	SelectPatterns(ctx context.Context, limit int) ([]domain.Pattern, error)
}

// MiningQueue hands rejected items to the pattern miner.
type MiningQueue interface {
	Enqueue(ctx context.Context, job domain.MiningJob) error
}

// Notifier announces freshly opened review batches to reviewers.
type Notifier interface {
	NotifyReviewSession(ctx context.Context, session domain.ReviewSession, reviewURL string) error
}

// RulesetSink receives compiled rulesets (export file, cache).
type RulesetSink interface {
	Put(ctx context.Context, ruleset domain.CompiledRuleset) error
}

// Scheduler controls when recurring jobs execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
