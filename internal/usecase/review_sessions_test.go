package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LookTrainer/internal/domain"
	"LookTrainer/internal/infrastructure/storage"
)

func newSessions(store *storage.MemoryStore, clk *clock) *ReviewSessions {
	return NewReviewSessions(ReviewSessionDeps{
		Items:    store,
		Sessions: store,
		BaseURL:  "https://looklyy04.vercel.app/training",
		Now:      clk.Now,
	})
}

func TestOpenQueuesNewestEligibleItems(t *testing.T) {
	t.Parallel()

	store := storage.NewMemoryStore()
	seed(store, 120, domain.ReviewUnset, "img")
	seed(store, 5, domain.ReviewApproved, "done")
	clk := newClock()

	res, err := newSessions(store, clk).Open(context.Background(), OpenRequest{ReviewType: "batch"})
	require.NoError(t, err)
	require.Nil(t, res.Warning)

	assert.True(t, strings.HasPrefix(res.SessionID, "review_"))
	assert.Equal(t, 100, res.TotalItems)
	assert.Equal(t, 100, res.ItemsQueued)
	assert.Equal(t, base.Add(6*time.Hour), res.ExpiresAt)
	assert.Equal(t, "https://looklyy04.vercel.app/training?session="+res.SessionID, res.ReviewURL)

	// the 20 oldest stay eligible
	for i := 0; i < 20; i++ {
		item, err := store.GetItem(context.Background(), seedID("img", i))
		require.NoError(t, err)
		assert.Equal(t, domain.ReviewUnset, item.ReviewStatus)
	}
	item, err := store.GetItem(context.Background(), seedID("img", 119))
	require.NoError(t, err)
	assert.Equal(t, domain.ReviewQueued, item.ReviewStatus)
	assert.Equal(t, res.SessionID, item.ReviewSessionID)
	require.NotNil(t, item.QueuedAt)
	assert.True(t, item.QueuedAt.Equal(base))

	session, err := store.GetSession(context.Background(), res.SessionID)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionActive, session.Status)
	assert.Equal(t, 100, session.ItemsQueued)
}

func TestOpenWithNoEligibleItemsStillCreatesSession(t *testing.T) {
	t.Parallel()

	store := storage.NewMemoryStore()
	seed(store, 3, domain.ReviewRejected, "old")
	clk := newClock()

	res, err := newSessions(store, clk).Open(context.Background(), OpenRequest{ReviewType: "batch"})
	require.NoError(t, err)
	assert.Zero(t, res.TotalItems)
	assert.Nil(t, res.Warning)

	session, err := store.GetSession(context.Background(), res.SessionID)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionActive, session.Status)
}

func TestConsecutiveSessionsDoNotShareItems(t *testing.T) {
	t.Parallel()

	store := storage.NewMemoryStore()
	seed(store, 30, domain.ReviewPending, "img")
	clk := newClock()
	sessions := newSessions(store, clk)

	first, err := sessions.Open(context.Background(), OpenRequest{})
	require.NoError(t, err)
	second, err := sessions.Open(context.Background(), OpenRequest{})
	require.NoError(t, err)

	assert.Equal(t, 30, first.ItemsQueued)
	assert.Zero(t, second.TotalItems)
	assert.NotEqual(t, first.SessionID, second.SessionID)
}

func TestOpenSelectionFailures(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
		kind domain.ErrorKind
	}{
		{name: "query error", err: errors.New("syntax error"), kind: domain.KindSelectionFailed},
		{name: "unavailable", err: domain.ErrUnavailable, kind: domain.KindStoreUnavailable},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			store := storage.NewMemoryStore()
			seed(store, 3, domain.ReviewUnset, "img")
			items := &flakyItems{MemoryStore: store, selectErr: tc.err}
			sessions := NewReviewSessions(ReviewSessionDeps{Items: items, Sessions: store, Now: newClock().Now})

			_, err := sessions.Open(context.Background(), OpenRequest{})
			require.Error(t, err)
			assert.Equal(t, tc.kind, domain.KindOf(err))

			latest, err := store.LatestSessions(context.Background(), domain.SessionProvisioning, 10)
			require.NoError(t, err)
			assert.Empty(t, latest)
		})
	}
}

func TestOpenReportsPartialQueueFailure(t *testing.T) {
	t.Parallel()

	store := storage.NewMemoryStore()
	seed(store, 10, domain.ReviewUnset, "img")
	items := &flakyItems{MemoryStore: store, queueLimit: 4, queueErr: errors.New("connection reset")}
	notifier := &recordingNotifier{}
	sessions := NewReviewSessions(ReviewSessionDeps{
		Items:    items,
		Sessions: store,
		Notifier: notifier,
		Now:      newClock().Now,
	})

	res, err := sessions.Open(context.Background(), OpenRequest{})
	require.NoError(t, err)
	require.NotNil(t, res.Warning)
	assert.Equal(t, domain.KindPartialQueueFailure, res.Warning.Kind)
	assert.Equal(t, 10, res.TotalItems)
	assert.Equal(t, 4, res.ItemsQueued)

	session, err := store.GetSession(context.Background(), res.SessionID)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionActive, session.Status)
	assert.Equal(t, 4, session.ItemsQueued)

	require.Len(t, notifier.sessions, 1)
	assert.Equal(t, 4, notifier.sessions[0].ItemsQueued)
}

func TestOpenIgnoresNotifierFailure(t *testing.T) {
	t.Parallel()

	store := storage.NewMemoryStore()
	seed(store, 2, domain.ReviewUnset, "img")
	sessions := NewReviewSessions(ReviewSessionDeps{
		Items:    store,
		Sessions: store,
		Notifier: &recordingNotifier{err: errors.New("telegram down")},
		Now:      newClock().Now,
	})

	res, err := sessions.Open(context.Background(), OpenRequest{})
	require.NoError(t, err)
	assert.Equal(t, 2, res.ItemsQueued)
}

func TestStatusExpiresLazily(t *testing.T) {
	t.Parallel()

	store := storage.NewMemoryStore()
	seed(store, 2, domain.ReviewUnset, "img")
	clk := newClock()
	sessions := newSessions(store, clk)

	res, err := sessions.Open(context.Background(), OpenRequest{})
	require.NoError(t, err)

	status, err := sessions.Status(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, res.SessionID, status.Session.ID)
	assert.Equal(t, domain.SessionActive, status.Status)

	clk.Advance(6 * time.Hour)

	status, err = sessions.Status(context.Background(), res.SessionID)
	require.NoError(t, err)
	assert.True(t, status.Expired)

	stored, err := store.GetSession(context.Background(), res.SessionID)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionExpired, stored.Status)

	_, err = sessions.Status(context.Background(), "")
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
}

func TestStatusCompletesReviewedSession(t *testing.T) {
	t.Parallel()

	store := storage.NewMemoryStore()
	ids := seed(store, 2, domain.ReviewUnset, "img")
	clk := newClock()
	sessions := newSessions(store, clk)
	feedback := NewFeedbackProcessor(FeedbackDeps{Items: store, Sessions: store, Now: clk.Now})

	res, err := sessions.Open(context.Background(), OpenRequest{})
	require.NoError(t, err)

	yes, no := true, false
	require.NoError(t, feedback.Record(context.Background(), FeedbackRequest{ItemID: ids[0], Approved: &yes}))
	require.NoError(t, feedback.Record(context.Background(), FeedbackRequest{ItemID: ids[1], Approved: &no, Reason: "blurry"}))

	status, err := sessions.Status(context.Background(), res.SessionID)
	require.NoError(t, err)
	assert.True(t, status.Completed)
	assert.Equal(t, 100, status.CompletionPercent)
	assert.Equal(t, 1, status.Session.ItemsApproved)
	assert.Equal(t, 1, status.Session.ItemsRejected)
}

func TestStatusUnknownSession(t *testing.T) {
	t.Parallel()

	store := storage.NewMemoryStore()
	_, err := newSessions(store, newClock()).Status(context.Background(), "review_missing")
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
}

func TestListQueueOrdersAndCaps(t *testing.T) {
	t.Parallel()

	store := storage.NewMemoryStore()
	seed(store, 40, domain.ReviewUnset, "a")
	seed(store, 40, domain.ReviewApproved, "b")
	for i := 0; i < 40; i++ {
		item, err := store.GetItem(context.Background(), seedID("b", i))
		require.NoError(t, err)
		item.NeedsTraining = false
		store.PutItem(item)
	}

	items, err := newSessions(store, newClock()).ListQueue(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 50)
	assert.Equal(t, seedID("a", 39), items[0].ID)
	assert.True(t, items[39].NeedsTraining)
	assert.False(t, items[40].NeedsTraining)
	assert.Equal(t, seedID("b", 39), items[40].ID)
}

func seedID(prefix string, i int) string {
	return fmt.Sprintf("%s-%03d", prefix, i)
}
