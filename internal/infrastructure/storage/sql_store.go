package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	_ "embed"
	"errors"
	"fmt"
	"net"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"LookTrainer/internal/domain"
	"LookTrainer/internal/ports"
)

//go:embed schema.sql
var schema string

const (
	itemsTable    = "fashion_images"
	sessionsTable = "review_sessions"
	patternsTable = "learning_patterns"

	queueChunkSize = 50

	// ids are TEXT; ordering by length first keeps decimal ids in numeric order
	idDescending = "LENGTH(id) DESC, id DESC"
)

var itemColumns = []string{
	"id", "original_url", "title", "description", "category", "score",
	"needs_training", "training_status", "training_feedback", "review_session_id",
	"queued_at", "training_timestamp", "created_at",
}

var sessionColumns = []string{
	"session_id", "review_type", "sync_timestamp", "total_images", "images_queued",
	"images_reviewed", "images_approved", "images_rejected", "status",
	"created_at", "expires_at", "completed_at",
}

var patternColumns = []string{
	"id", "pattern_type", "pattern_value", "feedback_type", "confidence_score", "image_id", "created_at",
}

// SQLStore persists items, review sessions and learning patterns in Postgres or SQLite.
type SQLStore struct {
	db *sql.DB
	sb sq.StatementBuilderType
	// rowLocks is false for sqlite3, whose single connection already
	// serializes transactions and which has no FOR UPDATE.
	rowLocks bool
}

var (
	_ ports.ItemStore    = (*SQLStore)(nil)
	_ ports.SessionStore = (*SQLStore)(nil)
	_ ports.PatternStore = (*SQLStore)(nil)
)

// Open connects to driver ("postgres" or "sqlite3") and verifies the connection.
func Open(ctx context.Context, driverName, dsn string) (*SQLStore, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if driverName == "sqlite3" {
		// every connection to an in-memory database would see its own copy
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", classify(err))
	}
	return NewSQLStore(db, driverName), nil
}

// NewSQLStore wires an existing sql.DB; driverName selects the placeholder format.
func NewSQLStore(db *sql.DB, driverName string) *SQLStore {
	var format sq.PlaceholderFormat = sq.Dollar
	rowLocks := true
	if driverName == "sqlite3" {
		format = sq.Question
		rowLocks = false
	}
	return &SQLStore{db: db, sb: sq.StatementBuilder.PlaceholderFormat(format), rowLocks: rowLocks}
}

// Migrate applies the embedded schema.
func (s *SQLStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("init schema: %w", classify(err))
	}
	return nil
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// InsertItem adds a crawled item; the crawler owns this path in production.
func (s *SQLStore) InsertItem(ctx context.Context, item domain.Item) error {
	query, args, err := s.sb.Insert(itemsTable).
		Columns(itemColumns...).
		Values(
			item.ID, item.SourceURL, item.Title, item.Description, item.Category, nullFloat(item.Score),
			item.NeedsTraining, nullStatus(item.ReviewStatus), nullString(item.ReviewFeedback),
			nullString(item.ReviewSessionID), nullTime(item.QueuedAt), nullTime(item.ReviewedAt), item.CreatedAt.UTC(),
		).ToSql()
	if err != nil {
		return fmt.Errorf("build insert item: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert item: %w", classify(err))
	}
	return nil
}

func eligibleFilter() sq.Sqlizer {
	return sq.Or{
		sq.Eq{"training_status": nil},
		sq.Eq{"training_status": []string{"", string(domain.ReviewPending)}},
	}
}

func (s *SQLStore) SelectEligible(ctx context.Context, limit int) ([]domain.Item, error) {
	builder := s.sb.Select(itemColumns...).
		From(itemsTable).
		Where(eligibleFilter()).
		OrderBy("created_at DESC", idDescending)
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}
	return s.queryItems(ctx, builder)
}

func (s *SQLStore) ListQueue(ctx context.Context, limit int) ([]domain.Item, error) {
	builder := s.sb.Select(itemColumns...).
		From(itemsTable).
		OrderBy("needs_training DESC", idDescending)
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}
	return s.queryItems(ctx, builder)
}

func (s *SQLStore) GetItem(ctx context.Context, id string) (domain.Item, error) {
	query, args, err := s.sb.Select(itemColumns...).From(itemsTable).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return domain.Item{}, fmt.Errorf("build get item: %w", err)
	}
	item, err := scanItem(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return domain.Item{}, fmt.Errorf("get item %s: %w", id, classify(err))
	}
	return item, nil
}

func (s *SQLStore) QueueItems(ctx context.Context, ids []string, patch domain.QueuePatch) (int, error) {
	updated := 0
	for start := 0; start < len(ids); start += queueChunkSize {
		end := start + queueChunkSize
		if end > len(ids) {
			end = len(ids)
		}

		query, args, err := s.sb.Update(itemsTable).
			Set("training_status", string(domain.ReviewQueued)).
			Set("review_session_id", patch.SessionID).
			Set("queued_at", patch.QueuedAt.UTC()).
			Where(sq.Eq{"id": ids[start:end]}).
			Where(eligibleFilter()).
			ToSql()
		if err != nil {
			return updated, fmt.Errorf("build queue items: %w", err)
		}

		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return updated, fmt.Errorf("queue items: %w", classify(err))
		}
		n, err := res.RowsAffected()
		if err != nil {
			return updated, fmt.Errorf("queue items rows affected: %w", err)
		}
		updated += int(n)
	}
	return updated, nil
}

func (s *SQLStore) ApplyDecision(ctx context.Context, id string, decision domain.Decision) (domain.Item, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Item{}, fmt.Errorf("begin decision: %w", classify(err))
	}
	defer func() { _ = tx.Rollback() }()

	query, args, err := s.lockItem(id).ToSql()
	if err != nil {
		return domain.Item{}, fmt.Errorf("build lock item: %w", err)
	}
	before, err := scanItem(tx.QueryRowContext(ctx, query, args...))
	if err != nil {
		return domain.Item{}, fmt.Errorf("get item %s: %w", id, classify(err))
	}

	query, args, err = s.sb.Update(itemsTable).
		Set("training_status", string(decision.Status())).
		Set("training_feedback", decision.Feedback()).
		Set("training_timestamp", decision.ReviewedAt.UTC()).
		Set("needs_training", false).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return domain.Item{}, fmt.Errorf("build apply decision: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return domain.Item{}, fmt.Errorf("apply decision %s: %w", id, classify(err))
	}

	if err := tx.Commit(); err != nil {
		return domain.Item{}, fmt.Errorf("commit decision: %w", classify(err))
	}
	return before, nil
}

// lockItem reads the prior row of a decision. Concurrent decisions on one item
// block on the row lock, so only the first sees it queued and counts it.
func (s *SQLStore) lockItem(id string) sq.SelectBuilder {
	builder := s.sb.Select(itemColumns...).From(itemsTable).Where(sq.Eq{"id": id})
	if s.rowLocks {
		builder = builder.Suffix("FOR UPDATE")
	}
	return builder
}

func (s *SQLStore) CountQueued(ctx context.Context, sessionID string) (int, error) {
	query, args, err := s.sb.Select("COUNT(*)").
		From(itemsTable).
		Where(sq.Eq{"review_session_id": sessionID, "training_status": string(domain.ReviewQueued)}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count queued: %w", err)
	}
	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count queued: %w", classify(err))
	}
	return n, nil
}

func (s *SQLStore) InsertSession(ctx context.Context, session domain.ReviewSession) error {
	query, args, err := s.sb.Insert(sessionsTable).
		Columns(sessionColumns...).
		Values(
			session.ID, session.ReviewType, session.SyncTimestamp, session.TotalItems, session.ItemsQueued,
			session.ItemsReviewed, session.ItemsApproved, session.ItemsRejected, string(session.Status),
			session.CreatedAt.UTC(), session.ExpiresAt.UTC(), nullTime(session.CompletedAt),
		).ToSql()
	if err != nil {
		return fmt.Errorf("build insert session: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert session: %w", classify(err))
	}
	return nil
}

func (s *SQLStore) GetSession(ctx context.Context, id string) (domain.ReviewSession, error) {
	query, args, err := s.sb.Select(sessionColumns...).From(sessionsTable).Where(sq.Eq{"session_id": id}).ToSql()
	if err != nil {
		return domain.ReviewSession{}, fmt.Errorf("build get session: %w", err)
	}
	session, err := scanSession(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return domain.ReviewSession{}, fmt.Errorf("get session %s: %w", id, classify(err))
	}
	return session, nil
}

func (s *SQLStore) LatestSessions(ctx context.Context, status domain.SessionStatus, limit int) ([]domain.ReviewSession, error) {
	builder := s.sb.Select(sessionColumns...).
		From(sessionsTable).
		Where(sq.Eq{"status": string(status)}).
		OrderBy("created_at DESC", "session_id DESC")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build latest sessions: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("latest sessions: %w", classify(err))
	}
	defer rows.Close()

	var sessions []domain.ReviewSession
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", classify(err))
	}
	return sessions, nil
}

func (s *SQLStore) ActivateSession(ctx context.Context, id string, queued int) error {
	return s.updateSession(ctx, id, s.sb.Update(sessionsTable).
		Set("status", string(domain.SessionActive)).
		Set("images_queued", queued))
}

func (s *SQLStore) SetSessionStatus(ctx context.Context, id string, status domain.SessionStatus, at time.Time) error {
	builder := s.sb.Update(sessionsTable).Set("status", string(status))
	if status == domain.SessionCompleted {
		builder = builder.Set("completed_at", at.UTC())
	}
	return s.updateSession(ctx, id, builder)
}

func (s *SQLStore) IncrementReviewed(ctx context.Context, id string, approved bool) error {
	approvedDelta, rejectedDelta := 0, 1
	if approved {
		approvedDelta, rejectedDelta = 1, 0
	}

	query, args, err := s.sb.Update(sessionsTable).
		Set("images_reviewed", sq.Expr("images_reviewed + 1")).
		Set("images_approved", sq.Expr("images_approved + ?", approvedDelta)).
		Set("images_rejected", sq.Expr("images_rejected + ?", rejectedDelta)).
		Where(sq.Eq{"session_id": id}).
		Where("images_reviewed < total_images").
		ToSql()
	if err != nil {
		return fmt.Errorf("build increment reviewed: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("increment reviewed %s: %w", id, classify(err))
	}
	return nil
}

func (s *SQLStore) updateSession(ctx context.Context, id string, builder sq.UpdateBuilder) error {
	query, args, err := builder.Where(sq.Eq{"session_id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build update session: %w", err)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update session %s: %w", id, classify(err))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update session %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (s *SQLStore) InsertPatterns(ctx context.Context, patterns []domain.Pattern) error {
	if len(patterns) == 0 {
		return nil
	}

	builder := s.sb.Insert(patternsTable).Columns(patternColumns...)
	for _, p := range patterns {
		builder = builder.Values(
			p.ID, string(p.Type), p.Value, string(p.FeedbackType), p.ConfidenceScore,
			nullString(p.SourceItemID), p.CreatedAt.UTC(),
		)
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("build insert patterns: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert patterns: %w", classify(err))
	}
	return nil
}

func (s *SQLStore) SelectPatterns(ctx context.Context, limit int) ([]domain.Pattern, error) {
	builder := s.sb.Select(patternColumns...).
		From(patternsTable).
		OrderBy("created_at DESC", idDescending)
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select patterns: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select patterns: %w", classify(err))
	}
	defer rows.Close()

	var patterns []domain.Pattern
	for rows.Next() {
		var (
			p            domain.Pattern
			patternType  string
			feedbackType string
			itemID       sql.NullString
		)
		if err := rows.Scan(&p.ID, &patternType, &p.Value, &feedbackType, &p.ConfidenceScore, &itemID, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan pattern: %w", err)
		}
		p.Type = domain.PatternType(patternType)
		p.FeedbackType = domain.ReviewStatus(feedbackType)
		p.SourceItemID = itemID.String
		patterns = append(patterns, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", classify(err))
	}
	return patterns, nil
}

func (s *SQLStore) queryItems(ctx context.Context, builder sq.SelectBuilder) ([]domain.Item, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select items: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select items: %w", classify(err))
	}
	defer rows.Close()

	var items []domain.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", classify(err))
	}
	return items, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (domain.Item, error) {
	var (
		item                   domain.Item
		score                  sql.NullFloat64
		status, feedback, sess sql.NullString
		queuedAt, reviewedAt   sql.NullTime
	)
	err := row.Scan(
		&item.ID, &item.SourceURL, &item.Title, &item.Description, &item.Category, &score,
		&item.NeedsTraining, &status, &feedback, &sess, &queuedAt, &reviewedAt, &item.CreatedAt,
	)
	if err != nil {
		return domain.Item{}, err
	}
	if score.Valid {
		v := score.Float64
		item.Score = &v
	}
	item.ReviewStatus = domain.ReviewStatus(status.String)
	item.ReviewFeedback = feedback.String
	item.ReviewSessionID = sess.String
	item.QueuedAt = timePtr(queuedAt)
	item.ReviewedAt = timePtr(reviewedAt)
	return item, nil
}

func scanSession(row rowScanner) (domain.ReviewSession, error) {
	var (
		session     domain.ReviewSession
		status      string
		completedAt sql.NullTime
	)
	err := row.Scan(
		&session.ID, &session.ReviewType, &session.SyncTimestamp, &session.TotalItems, &session.ItemsQueued,
		&session.ItemsReviewed, &session.ItemsApproved, &session.ItemsRejected, &status,
		&session.CreatedAt, &session.ExpiresAt, &completedAt,
	)
	if err != nil {
		return domain.ReviewSession{}, err
	}
	session.Status = domain.SessionStatus(status)
	session.CompletedAt = timePtr(completedAt)
	return session, nil
}

// classify maps driver errors onto the store sentinels.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}

	var netErr net.Error
	if errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.As(err, &netErr) {
		return fmt.Errorf("%w: %w", domain.ErrUnavailable, err)
	}
	return err
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

func nullStatus(v domain.ReviewStatus) sql.NullString {
	return nullString(string(v))
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullTime(v *time.Time) sql.NullTime {
	if v == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: v.UTC(), Valid: true}
}

func timePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}
