package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"LookTrainer/internal/domain"
	"LookTrainer/internal/ports"
)

// MemoryStore keeps items, sessions and patterns in process. It backs the
// "memory" driver for local runs and tests.
type MemoryStore struct {
	mu       sync.Mutex
	items    map[string]domain.Item
	sessions map[string]domain.ReviewSession
	patterns []domain.Pattern
}

var (
	_ ports.ItemStore    = (*MemoryStore)(nil)
	_ ports.SessionStore = (*MemoryStore)(nil)
	_ ports.PatternStore = (*MemoryStore)(nil)
)

// NewMemoryStore builds an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items:    map[string]domain.Item{},
		sessions: map[string]domain.ReviewSession{},
	}
}

// PutItem inserts or replaces an item; it stands in for the crawler.
func (m *MemoryStore) PutItem(item domain.Item) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[item.ID] = item
}

// Patterns returns a copy of every stored pattern in insertion order.
func (m *MemoryStore) Patterns() []domain.Pattern {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Pattern(nil), m.patterns...)
}

func (m *MemoryStore) SelectEligible(_ context.Context, limit int) ([]domain.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.Item
	for _, item := range m.items {
		if item.ReviewStatus.Eligible() {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return idAfter(out[i].ID, out[j].ID)
	})
	return capItems(out, limit), nil
}

func (m *MemoryStore) ListQueue(_ context.Context, limit int) ([]domain.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]domain.Item, 0, len(m.items))
	for _, item := range m.items {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].NeedsTraining != out[j].NeedsTraining {
			return out[i].NeedsTraining
		}
		return idAfter(out[i].ID, out[j].ID)
	})
	return capItems(out, limit), nil
}

func (m *MemoryStore) GetItem(_ context.Context, id string) (domain.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[id]
	if !ok {
		return domain.Item{}, domain.ErrNotFound
	}
	return item, nil
}

func (m *MemoryStore) QueueItems(_ context.Context, ids []string, patch domain.QueuePatch) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	updated := 0
	for _, id := range ids {
		item, ok := m.items[id]
		if !ok || !item.ReviewStatus.Eligible() {
			continue
		}
		queuedAt := patch.QueuedAt
		item.ReviewStatus = domain.ReviewQueued
		item.ReviewSessionID = patch.SessionID
		item.QueuedAt = &queuedAt
		m.items[id] = item
		updated++
	}
	return updated, nil
}

func (m *MemoryStore) ApplyDecision(_ context.Context, id string, decision domain.Decision) (domain.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	before, ok := m.items[id]
	if !ok {
		return domain.Item{}, domain.ErrNotFound
	}
	after := before
	reviewedAt := decision.ReviewedAt
	after.ReviewStatus = decision.Status()
	after.ReviewFeedback = decision.Feedback()
	after.ReviewedAt = &reviewedAt
	after.NeedsTraining = false
	m.items[id] = after
	return before, nil
}

func (m *MemoryStore) CountQueued(_ context.Context, sessionID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, item := range m.items {
		if item.ReviewSessionID == sessionID && item.ReviewStatus == domain.ReviewQueued {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) InsertSession(_ context.Context, session domain.ReviewSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.ID] = session
	return nil
}

func (m *MemoryStore) GetSession(_ context.Context, id string) (domain.ReviewSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[id]
	if !ok {
		return domain.ReviewSession{}, domain.ErrNotFound
	}
	return session, nil
}

func (m *MemoryStore) LatestSessions(_ context.Context, status domain.SessionStatus, limit int) ([]domain.ReviewSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.ReviewSession
	for _, s := range m.sessions {
		if s.Status == status {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) ActivateSession(_ context.Context, id string, queued int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return domain.ErrNotFound
	}
	s.Status = domain.SessionActive
	s.ItemsQueued = queued
	m.sessions[id] = s
	return nil
}

func (m *MemoryStore) SetSessionStatus(_ context.Context, id string, status domain.SessionStatus, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return domain.ErrNotFound
	}
	s.Status = status
	if status == domain.SessionCompleted {
		completedAt := at
		s.CompletedAt = &completedAt
	}
	m.sessions[id] = s
	return nil
}

func (m *MemoryStore) IncrementReviewed(_ context.Context, id string, approved bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return domain.ErrNotFound
	}
	if s.ItemsReviewed >= s.TotalItems {
		return nil
	}
	s.ItemsReviewed++
	if approved {
		s.ItemsApproved++
	} else {
		s.ItemsRejected++
	}
	m.sessions[id] = s
	return nil
}

func (m *MemoryStore) InsertPatterns(_ context.Context, patterns []domain.Pattern) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.patterns = append(m.patterns, patterns...)
	return nil
}

func (m *MemoryStore) SelectPatterns(_ context.Context, limit int) ([]domain.Pattern, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]domain.Pattern, 0, len(m.patterns))
	for i := len(m.patterns) - 1; i >= 0; i-- {
		out = append(out, m.patterns[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// idAfter orders ids descending by length, then text, which is numeric order
// for decimal ids such as the crawler's row numbers.
func idAfter(a, b string) bool {
	if len(a) != len(b) {
		return len(a) > len(b)
	}
	return a > b
}

func capItems(items []domain.Item, limit int) []domain.Item {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}
