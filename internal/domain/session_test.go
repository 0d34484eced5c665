package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestEffectiveStatus(t *testing.T) {
	t.Parallel()

	created := time.Date(2025, 11, 8, 12, 0, 0, 0, time.UTC)
	base := ReviewSession{
		Status:      SessionActive,
		ItemsQueued: 4,
		CreatedAt:   created,
		ExpiresAt:   created.Add(6 * time.Hour),
	}

	cases := []struct {
		name    string
		mutate  func(*ReviewSession)
		at      time.Time
		want    SessionStatus
		accepts bool
	}{
		{name: "fresh", at: created.Add(time.Hour), want: SessionActive, accepts: true},
		{name: "at deadline", at: created.Add(6 * time.Hour), want: SessionExpired},
		{name: "stored active but late", at: created.Add(48 * time.Hour), want: SessionExpired},
		{name: "fully reviewed", mutate: func(s *ReviewSession) { s.ItemsReviewed = 4 }, at: created.Add(time.Hour), want: SessionCompleted},
		{name: "completed wins over expiry", mutate: func(s *ReviewSession) { s.Status = SessionCompleted }, at: created.Add(48 * time.Hour), want: SessionCompleted},
		{name: "provisioning", mutate: func(s *ReviewSession) { s.Status = SessionProvisioning }, at: created, want: SessionProvisioning},
		{name: "empty batch never completes", mutate: func(s *ReviewSession) { s.ItemsQueued = 0 }, at: created, want: SessionActive, accepts: true},
	}

	for _, tc := range cases {
		s := base
		if tc.mutate != nil {
			tc.mutate(&s)
		}
		if got := s.EffectiveStatus(tc.at); got != tc.want {
			t.Fatalf("%s: status = %s, want %s", tc.name, got, tc.want)
		}
		if got := s.AcceptsAssignments(tc.at); got != tc.accepts {
			t.Fatalf("%s: accepts = %t, want %t", tc.name, got, tc.accepts)
		}
	}
}

func TestCompletionPercent(t *testing.T) {
	t.Parallel()

	s := ReviewSession{ItemsQueued: 3, ItemsReviewed: 2}
	if got := s.CompletionPercent(); got != 67 {
		t.Fatalf("expected 67, got %d", got)
	}
	if got := (ReviewSession{}).CompletionPercent(); got != 0 {
		t.Fatalf("expected 0 for empty session, got %d", got)
	}
}

func TestErrorKind(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("handler: %w", NewError(KindUpdateFailed, "failed to update image", ErrNotFound))
	if KindOf(err) != KindUpdateFailed {
		t.Fatalf("unexpected kind %q", KindOf(err))
	}
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected wrapped ErrNotFound")
	}
	if KindOf(errors.New("plain")) != "" {
		t.Fatalf("plain errors carry no kind")
	}
}

func TestDecisionFeedback(t *testing.T) {
	t.Parallel()

	if got := (Decision{Approved: true, Reason: "nice"}).Feedback(); got != "approved" {
		t.Fatalf("approval feedback = %q", got)
	}
	if got := (Decision{Reason: "blurry"}).Feedback(); got != "blurry" {
		t.Fatalf("rejection feedback = %q", got)
	}
	if !ReviewPending.Eligible() || ReviewQueued.Eligible() || !ReviewRejected.Decided() {
		t.Fatalf("unexpected status predicates")
	}
}
