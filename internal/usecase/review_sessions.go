package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"LookTrainer/internal/domain"
	"LookTrainer/internal/metrics"
	"LookTrainer/internal/ports"
)

const (
	defaultBatchSize  = 100
	defaultSessionTTL = 6 * time.Hour
	defaultQueueLimit = 50
	sessionScanLimit  = 10
)

// ReviewSessionDeps wires the stores and knobs the session manager needs.
type ReviewSessionDeps struct {
	Items      ports.ItemStore
	Sessions   ports.SessionStore
	Notifier   ports.Notifier
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
	BatchSize  int
	SessionTTL time.Duration
	QueueLimit int
	BaseURL    string
	Now        func() time.Time
}

// ReviewSessions turns the pool of unreviewed items into time-bounded review batches.
type ReviewSessions struct {
	items      ports.ItemStore
	sessions   ports.SessionStore
	notifier   ports.Notifier
	metrics    *metrics.Metrics
	logger     *slog.Logger
	batchSize  int
	ttl        time.Duration
	queueLimit int
	baseURL    string
	now        func() time.Time
}

// NewReviewSessions constructs the session manager with defaults for unset knobs.
func NewReviewSessions(deps ReviewSessionDeps) *ReviewSessions {
	r := &ReviewSessions{
		items:      deps.Items,
		sessions:   deps.Sessions,
		notifier:   deps.Notifier,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		batchSize:  deps.BatchSize,
		ttl:        deps.SessionTTL,
		queueLimit: deps.QueueLimit,
		baseURL:    deps.BaseURL,
		now:        deps.Now,
	}
	if r.batchSize <= 0 {
		r.batchSize = defaultBatchSize
	}
	if r.ttl <= 0 {
		r.ttl = defaultSessionTTL
	}
	if r.queueLimit <= 0 {
		r.queueLimit = defaultQueueLimit
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r
}

// OpenRequest carries the reviewer-supplied labels for a new batch.
type OpenRequest struct {
	ReviewType    string
	SyncTimestamp string
}

// OpenResult describes the batch that was opened. TotalItems counts the items
// offered; ItemsQueued counts the ones the store confirmed. Warning is set
// when the two differ or queueing hit a store error.
type OpenResult struct {
	SessionID   string
	TotalItems  int
	ItemsQueued int
	ReviewURL   string
	ExpiresAt   time.Time
	Warning     *domain.Error
}

// Open selects eligible items, records a provisioning session, queues the
// items against it and activates it with the confirmed queued count.
func (r *ReviewSessions) Open(ctx context.Context, req OpenRequest) (OpenResult, error) {
	if r.items == nil || r.sessions == nil {
		return OpenResult{}, domain.NewError(domain.KindStoreUnavailable, "store is not configured", nil)
	}

	selected, err := r.items.SelectEligible(ctx, r.batchSize)
	if err != nil {
		return OpenResult{}, storeError(domain.KindSelectionFailed, "failed to fetch untrained images", err)
	}
	r.debug("found images needing review", "count", len(selected))

	now := r.now().UTC()
	sessionID, err := newSessionID()
	if err != nil {
		return OpenResult{}, domain.NewError(domain.KindUpdateFailed, "generate session id", err)
	}
	session := domain.ReviewSession{
		ID:            sessionID,
		ReviewType:    req.ReviewType,
		SyncTimestamp: req.SyncTimestamp,
		TotalItems:    len(selected),
		Status:        domain.SessionProvisioning,
		CreatedAt:     now,
		ExpiresAt:     now.Add(r.ttl),
	}
	if err := r.sessions.InsertSession(ctx, session); err != nil {
		return OpenResult{}, storeError(domain.KindUpdateFailed, "failed to create review session", err)
	}

	var problems []string
	queued := 0
	if len(selected) > 0 {
		ids := make([]string, len(selected))
		for i, item := range selected {
			ids[i] = item.ID
		}
		var qErr error
		queued, qErr = r.items.QueueItems(ctx, ids, domain.QueuePatch{SessionID: session.ID, QueuedAt: now})
		if qErr != nil {
			problems = append(problems, fmt.Sprintf("queue images: %v", qErr))
		}

		if confirmed, cErr := r.items.CountQueued(ctx, session.ID); cErr != nil {
			r.warn("cannot reconcile queued count", "session_id", session.ID, "error", cErr)
		} else {
			queued = confirmed
		}
	}

	if err := r.sessions.ActivateSession(ctx, session.ID, queued); err != nil {
		problems = append(problems, fmt.Sprintf("activate session: %v", err))
	}

	result := OpenResult{
		SessionID:   session.ID,
		TotalItems:  session.TotalItems,
		ItemsQueued: queued,
		ReviewURL:   r.reviewURL(session.ID),
		ExpiresAt:   session.ExpiresAt,
	}

	if queued < session.TotalItems || len(problems) > 0 {
		msg := fmt.Sprintf("queued %d of %d images", queued, session.TotalItems)
		if len(problems) > 0 {
			msg += ": " + strings.Join(problems, "; ")
		}
		result.Warning = domain.NewError(domain.KindPartialQueueFailure, msg, nil)
		r.warn("review session partially queued", "session_id", session.ID, "detail", msg)
	}

	r.metrics.SessionOpened(queued, result.Warning != nil)
	r.notify(ctx, session, queued, result.ReviewURL)

	r.debug("created review session", "session_id", session.ID, "total", session.TotalItems, "queued", queued)
	return result, nil
}

// StatusResult reports review progress for one session.
type StatusResult struct {
	Session           domain.ReviewSession
	Status            domain.SessionStatus
	Completed         bool
	Expired           bool
	CompletionPercent int
	ReviewURL         string
}

// Status returns progress for sessionID, or for the latest session still
// accepting assignments when sessionID is empty. Deadlines and completion are
// evaluated lazily and written back best-effort.
func (r *ReviewSessions) Status(ctx context.Context, sessionID string) (StatusResult, error) {
	if r.sessions == nil {
		return StatusResult{}, domain.NewError(domain.KindStoreUnavailable, "store is not configured", nil)
	}

	now := r.now().UTC()
	var (
		session domain.ReviewSession
		err     error
	)
	if sessionID != "" {
		session, err = r.sessions.GetSession(ctx, sessionID)
		if errors.Is(err, domain.ErrNotFound) {
			return StatusResult{}, domain.NewError(domain.KindNotFound, fmt.Sprintf("review session %s not found", sessionID), err)
		}
		if err != nil {
			return StatusResult{}, storeError(domain.KindSelectionFailed, "failed to fetch review session", err)
		}
	} else {
		session, err = r.currentSession(ctx, now)
		if err != nil {
			return StatusResult{}, err
		}
	}

	effective := session.EffectiveStatus(now)
	if effective != session.Status && (effective == domain.SessionExpired || effective == domain.SessionCompleted) {
		if err := r.sessions.SetSessionStatus(ctx, session.ID, effective, now); err != nil {
			r.warn("cannot persist session status", "session_id", session.ID, "status", effective, "error", err)
		}
	}

	return StatusResult{
		Session:           session,
		Status:            effective,
		Completed:         effective == domain.SessionCompleted,
		Expired:           effective == domain.SessionExpired,
		CompletionPercent: session.CompletionPercent(),
		ReviewURL:         r.reviewURL(session.ID),
	}, nil
}

// currentSession returns the newest active session that still accepts
// assignments, marking stale ones expired along the way.
func (r *ReviewSessions) currentSession(ctx context.Context, now time.Time) (domain.ReviewSession, error) {
	candidates, err := r.sessions.LatestSessions(ctx, domain.SessionActive, sessionScanLimit)
	if err != nil {
		return domain.ReviewSession{}, storeError(domain.KindSelectionFailed, "failed to fetch review session", err)
	}
	for _, s := range candidates {
		if s.AcceptsAssignments(now) {
			return s, nil
		}
		if s.Expired(now) {
			if err := r.sessions.SetSessionStatus(ctx, s.ID, domain.SessionExpired, now); err != nil {
				r.warn("cannot expire session", "session_id", s.ID, "error", err)
			}
		}
	}
	return domain.ReviewSession{}, domain.NewError(domain.KindNotFound, "no active review session found", domain.ErrNotFound)
}

// ListQueue returns a read-only projection of items for reviewer UIs.
func (r *ReviewSessions) ListQueue(ctx context.Context) ([]domain.Item, error) {
	if r.items == nil {
		return nil, domain.NewError(domain.KindStoreUnavailable, "store is not configured", nil)
	}
	items, err := r.items.ListQueue(ctx, r.queueLimit)
	if err != nil {
		return nil, storeError(domain.KindSelectionFailed, "failed to list review queue", err)
	}
	if items == nil {
		items = []domain.Item{}
	}
	return items, nil
}

func (r *ReviewSessions) reviewURL(sessionID string) string {
	u, err := url.Parse(r.baseURL)
	if err != nil || r.baseURL == "" {
		return r.baseURL + "?session=" + url.QueryEscape(sessionID)
	}
	q := u.Query()
	q.Set("session", sessionID)
	u.RawQuery = q.Encode()
	return u.String()
}

func (r *ReviewSessions) notify(ctx context.Context, session domain.ReviewSession, queued int, reviewURL string) {
	if r.notifier == nil || queued == 0 {
		return
	}
	session.ItemsQueued = queued
	if err := r.notifier.NotifyReviewSession(ctx, session, reviewURL); err != nil {
		r.warn("review notification failed", "session_id", session.ID, "error", err)
	}
}

// newSessionID returns a time-ordered token.
func newSessionID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return "review_" + id.String(), nil
}

// storeError classifies a store failure, promoting unavailability over fallback.
func storeError(fallback domain.ErrorKind, msg string, err error) *domain.Error {
	if errors.Is(err, domain.ErrUnavailable) || errors.Is(err, context.DeadlineExceeded) {
		return domain.NewError(domain.KindStoreUnavailable, msg, err)
	}
	return domain.NewError(fallback, msg, err)
}

func (r *ReviewSessions) debug(msg string, args ...interface{}) {
	if r.logger != nil {
		r.logger.Debug(msg, args...)
	}
}

func (r *ReviewSessions) warn(msg string, args ...interface{}) {
	if r.logger != nil {
		r.logger.Warn(msg, args...)
	}
}
