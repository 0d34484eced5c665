package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"LookTrainer/internal/domain"
	"LookTrainer/internal/infrastructure/storage"
)

var base = time.Date(2025, 11, 8, 12, 0, 0, 0, time.UTC)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock { return &clock{now: base} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func seed(store *storage.MemoryStore, n int, status domain.ReviewStatus, prefix string) []string {
	ids := make([]string, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("%s-%03d", prefix, i)
		ids[i] = id
		store.PutItem(domain.Item{
			ID:            id,
			SourceURL:     "https://cdn.example.com/" + id + ".jpg",
			Title:         id,
			NeedsTraining: true,
			ReviewStatus:  status,
			CreatedAt:     base.Add(-time.Duration(n-i) * time.Minute),
		})
	}
	return ids
}

// flakyItems wraps the memory store and injects failures per method.
type flakyItems struct {
	*storage.MemoryStore
	selectErr   error
	queueLimit  int
	queueErr    error
	decisionErr error
	calls       int
}

func (f *flakyItems) SelectEligible(ctx context.Context, limit int) ([]domain.Item, error) {
	f.calls++
	if f.selectErr != nil {
		return nil, f.selectErr
	}
	return f.MemoryStore.SelectEligible(ctx, limit)
}

func (f *flakyItems) QueueItems(ctx context.Context, ids []string, patch domain.QueuePatch) (int, error) {
	f.calls++
	if f.queueErr != nil && len(ids) > f.queueLimit {
		n, err := f.MemoryStore.QueueItems(ctx, ids[:f.queueLimit], patch)
		if err != nil {
			return n, err
		}
		return n, f.queueErr
	}
	return f.MemoryStore.QueueItems(ctx, ids, patch)
}

func (f *flakyItems) ApplyDecision(ctx context.Context, id string, decision domain.Decision) (domain.Item, error) {
	f.calls++
	if f.decisionErr != nil {
		return domain.Item{}, f.decisionErr
	}
	return f.MemoryStore.ApplyDecision(ctx, id, decision)
}

type brokenPatterns struct{}

func (brokenPatterns) InsertPatterns(context.Context, []domain.Pattern) error {
	return errors.New("pattern table missing")
}

func (brokenPatterns) SelectPatterns(context.Context, int) ([]domain.Pattern, error) {
	return nil, fmt.Errorf("select patterns: %w", domain.ErrUnavailable)
}

type recordingQueue struct {
	mu   sync.Mutex
	jobs []domain.MiningJob
	err  error
}

func (q *recordingQueue) Enqueue(_ context.Context, job domain.MiningJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
	return q.err
}

type recordingSink struct {
	got []domain.CompiledRuleset
}

func (s *recordingSink) Put(_ context.Context, r domain.CompiledRuleset) error {
	s.got = append(s.got, r)
	return nil
}

type recordingNotifier struct {
	sessions []domain.ReviewSession
	urls     []string
	err      error
}

func (n *recordingNotifier) NotifyReviewSession(_ context.Context, s domain.ReviewSession, url string) error {
	n.sessions = append(n.sessions, s)
	n.urls = append(n.urls, url)
	return n.err
}
