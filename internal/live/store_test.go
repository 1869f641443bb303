// internal/live/store_test.go
package live

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "notification-workers/internal/common/errors"
	"notification-workers/internal/common/logger"
	"notification-workers/internal/feed"
	"notification-workers/internal/identity"
	"notification-workers/internal/notification"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func note(id string, read bool) notification.Notification {
	n := notification.Notification{
		ID:        id,
		UserID:    "u1",
		Type:      notification.TypeSystemAlert,
		Severity:  notification.SeverityInfo,
		Category:  notification.CategorySystem,
		Title:     "t-" + id,
		Data:      map[string]interface{}{},
		CreatedAt: t0,
		UpdatedAt: t0,
	}
	if read {
		at := t0.Add(time.Hour)
		n.ReadAt = &at
	}
	return n
}

func event(typ feed.EventType, n notification.Notification) feed.Event {
	raw, _ := json.Marshal(n)
	ev := feed.Event{Type: typ, Table: "notifications"}
	if typ == feed.EventDelete {
		ev.Old = raw
	} else {
		ev.New = raw
	}
	return ev
}

type fakeSubscription struct {
	mu           sync.Mutex
	unsubscribed int
}

func (f *fakeSubscription) Unsubscribe() {
	f.mu.Lock()
	f.unsubscribed++
	f.mu.Unlock()
}

func (f *fakeSubscription) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.unsubscribed
}

type fakeSubscriber struct {
	err      error
	filters  []feed.Filter
	handlers []feed.Handler
	subs     []*fakeSubscription
}

func (f *fakeSubscriber) Subscribe(_ context.Context, _ string, filter feed.Filter, h feed.Handler) (feed.Subscription, error) {
	if f.err != nil {
		return nil, f.err
	}
	sub := &fakeSubscription{}
	f.filters = append(f.filters, filter)
	f.handlers = append(f.handlers, h)
	f.subs = append(f.subs, sub)
	return sub, nil
}

func (f *fakeSubscriber) push(ev feed.Event) {
	f.handlers[len(f.handlers)-1](ev)
}

type fakeRepo struct {
	items     map[string][]notification.Notification
	listErr   error
	onList    func()
	markErr   error
	deleteErr error

	marked     [][]string
	changed    *int
	markedAll  []string
	deleted    [][]string
	listLimits []int
}

func (f *fakeRepo) GetUserNotifications(_ context.Context, userID string, _ notification.ListFilter, page notification.Page) ([]notification.Notification, int, error) {
	f.listLimits = append(f.listLimits, page.Limit)
	if f.onList != nil {
		f.onList()
	}
	if f.listErr != nil {
		return nil, 0, f.listErr
	}
	return f.items[userID], len(f.items[userID]), nil
}

func (f *fakeRepo) MarkRead(_ context.Context, _ string, ids []string) (int, error) {
	f.marked = append(f.marked, ids)
	if f.markErr != nil {
		return 0, f.markErr
	}
	if f.changed != nil {
		return *f.changed, nil
	}
	return len(ids), nil
}

func (f *fakeRepo) MarkAllRead(_ context.Context, userID string, _ *string) error {
	f.markedAll = append(f.markedAll, userID)
	return f.markErr
}

func (f *fakeRepo) DeleteNotifications(_ context.Context, _ string, ids []string) error {
	f.deleted = append(f.deleted, ids)
	return f.deleteErr
}

func newReadyStore(t *testing.T, items ...notification.Notification) (*Store, *fakeRepo, *fakeSubscriber) {
	t.Helper()
	repo := &fakeRepo{items: map[string][]notification.Notification{"u1": items}}
	sub := &fakeSubscriber{}
	s := NewStore(repo, sub, logger.NewTestLogger(t), 0)
	require.NoError(t, s.Start(context.Background(), "u1"))
	require.Equal(t, StateReady, s.Snapshot().State)
	return s, repo, sub
}

func TestStart_LoadsAndSubscribes(t *testing.T) {
	s, repo, sub := newReadyStore(t, note("n2", false), note("n1", true))

	snap := s.Snapshot()
	assert.Len(t, snap.Notifications, 2)
	assert.Equal(t, 1, snap.UnreadCount)
	assert.Equal(t, []int{defaultPageSize}, repo.listLimits)
	require.Len(t, sub.filters, 1)
	assert.Equal(t, feed.Filter{Table: "notifications", Column: "user_id", Value: "u1"}, sub.filters[0])
}

func TestStart_FetchFailureLeavesEmptyErrorState(t *testing.T) {
	repo := &fakeRepo{listErr: errors.New("db down")}
	sub := &fakeSubscriber{}
	s := NewStore(repo, sub, logger.NewTestLogger(t), 10)

	err := s.Start(context.Background(), "u1")
	require.Error(t, err)

	snap := s.Snapshot()
	assert.Equal(t, StateError, snap.State)
	assert.Empty(t, snap.Notifications)
	assert.Zero(t, snap.UnreadCount)
	assert.Equal(t, "db down", snap.Error)
	assert.Equal(t, 1, sub.subs[0].count(), "failed load releases the subscription")
}

func TestStart_SubscribeFailure(t *testing.T) {
	repo := &fakeRepo{}
	sub := &fakeSubscriber{err: apperrors.NewFeedSubscribeFailedError("notifications:user_id=u1", errors.New("refused"))}
	s := NewStore(repo, sub, logger.NewTestLogger(t), 10)

	err := s.Start(context.Background(), "u1")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeFeedSubscribeFailed))
	assert.Equal(t, StateError, s.Snapshot().State)
	assert.Empty(t, repo.listLimits)
}

func TestStart_BuffersEventsWhileLoading(t *testing.T) {
	repo := &fakeRepo{items: map[string][]notification.Notification{"u1": {note("n1", false)}}}
	sub := &fakeSubscriber{}
	s := NewStore(repo, sub, logger.NewTestLogger(t), 10)

	repo.onList = func() {
		assert.Equal(t, StateLoading, s.Snapshot().State)
		sub.push(event(feed.EventInsert, note("n2", false)))
		sub.push(event(feed.EventUpdate, note("n1", true)))
	}

	require.NoError(t, s.Start(context.Background(), "u1"))

	snap := s.Snapshot()
	require.Len(t, snap.Notifications, 2)
	assert.Equal(t, "n2", snap.Notifications[0].ID)
	assert.True(t, snap.Notifications[1].IsRead())
	assert.Equal(t, 1, snap.UnreadCount)
}

func TestFeedEvents_MergeById(t *testing.T) {
	s, _, sub := newReadyStore(t, note("n1", false))

	sub.push(event(feed.EventInsert, note("n2", false)))
	sub.push(event(feed.EventInsert, note("n2", false)))
	snap := s.Snapshot()
	require.Len(t, snap.Notifications, 2)
	assert.Equal(t, "n2", snap.Notifications[0].ID)
	assert.Equal(t, 2, snap.UnreadCount)

	sub.push(event(feed.EventUpdate, note("n1", true)))
	assert.Equal(t, 1, s.Snapshot().UnreadCount)

	sub.push(event(feed.EventUpdate, note("ghost", true)))
	assert.Len(t, s.Snapshot().Notifications, 2)

	sub.push(event(feed.EventDelete, note("n2", false)))
	snap = s.Snapshot()
	require.Len(t, snap.Notifications, 1)
	assert.Equal(t, "n1", snap.Notifications[0].ID)
	assert.Zero(t, snap.UnreadCount)

	sub.push(feed.Event{Type: feed.EventInsert, Table: "notifications", New: json.RawMessage(`{"title":"no id"}`)})
	assert.Len(t, s.Snapshot().Notifications, 1)
}

func TestUnreadCountMatchesList(t *testing.T) {
	s, _, sub := newReadyStore(t)
	events := []feed.Event{
		event(feed.EventInsert, note("a", false)),
		event(feed.EventInsert, note("b", true)),
		event(feed.EventInsert, note("c", false)),
		event(feed.EventUpdate, note("a", true)),
		event(feed.EventDelete, note("b", true)),
		event(feed.EventInsert, note("d", false)),
	}
	for _, ev := range events {
		sub.push(ev)
		snap := s.Snapshot()
		assert.Equal(t, unreadCount(snap.Notifications), snap.UnreadCount)
	}
	assert.Equal(t, 2, s.Snapshot().UnreadCount)
}

func TestMarkAsRead_WaitsForFeed(t *testing.T) {
	s, repo, sub := newReadyStore(t, note("n1", false))

	require.NoError(t, s.MarkAsRead(context.Background(), "n1"))
	assert.Equal(t, [][]string{{"n1"}}, repo.marked)

	snap := s.Snapshot()
	assert.Equal(t, 1, snap.UnreadCount, "local row is untouched until the feed confirms")
	assert.Equal(t, PendingRead, snap.Pending["n1"])

	sub.push(event(feed.EventUpdate, note("n1", true)))
	snap = s.Snapshot()
	assert.Zero(t, snap.UnreadCount)
	assert.Empty(t, snap.Pending)
}

func TestMarkAsRead_Edges(t *testing.T) {
	s, repo, _ := newReadyStore(t, note("n1", true), note("n2", false))

	require.NoError(t, s.MarkAsRead(context.Background(), "n1"))
	assert.Empty(t, repo.marked, "already read is a no-op")

	err := s.MarkAsRead(context.Background(), "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	repo.markErr = errors.New("write failed")
	require.Error(t, s.MarkAsRead(context.Background(), "n2"))
	assert.Empty(t, s.Snapshot().Pending, "failed call clears pending")
}

func TestMarkAllAsRead(t *testing.T) {
	s, repo, sub := newReadyStore(t, note("n1", false), note("n2", false), note("n3", true))

	require.NoError(t, s.MarkAllAsRead(context.Background()))
	assert.Equal(t, []string{"u1"}, repo.markedAll)
	snap := s.Snapshot()
	assert.Len(t, snap.Pending, 2)
	assert.Equal(t, 2, snap.UnreadCount)

	sub.push(event(feed.EventUpdate, note("n1", true)))
	sub.push(event(feed.EventUpdate, note("n2", true)))
	snap = s.Snapshot()
	assert.Zero(t, snap.UnreadCount)
	assert.Empty(t, snap.Pending)

	require.NoError(t, s.MarkAllAsRead(context.Background()))
	assert.Len(t, repo.markedAll, 2, "rows beyond the loaded page may still be unread")
}

func TestMarkAllAsRead_LoadedPageAllRead(t *testing.T) {
	s, repo, _ := newReadyStore(t, note("n1", true))

	require.NoError(t, s.MarkAllAsRead(context.Background()))
	assert.Equal(t, []string{"u1"}, repo.markedAll)
	assert.Empty(t, s.Snapshot().Pending)

	repo.markErr = errors.New("write failed")
	assert.Error(t, s.MarkAllAsRead(context.Background()))
}

func TestMarkAsRead_NoRowChangedClearsPending(t *testing.T) {
	s, repo, _ := newReadyStore(t, note("n1", false))
	zero := 0
	repo.changed = &zero

	require.NoError(t, s.MarkAsRead(context.Background(), "n1"))
	assert.Equal(t, [][]string{{"n1"}}, repo.marked)

	snap := s.Snapshot()
	assert.Empty(t, snap.Pending)
	assert.Equal(t, 1, snap.UnreadCount, "local row still waits for the feed")

	require.NoError(t, s.MarkAsRead(context.Background(), "n1"))
	assert.Len(t, repo.marked, 2, "the id can be retried")
}

func TestDeleteNotifications(t *testing.T) {
	s, repo, sub := newReadyStore(t, note("n1", false), note("n2", false))

	require.NoError(t, s.DeleteNotifications(context.Background(), []string{"n1", "n2", "unknown"}))
	assert.Equal(t, [][]string{{"n1", "n2"}}, repo.deleted)
	snap := s.Snapshot()
	assert.Len(t, snap.Notifications, 2)
	assert.Equal(t, PendingDelete, snap.Pending["n1"])

	sub.push(event(feed.EventDelete, note("n1", false)))
	snap = s.Snapshot()
	require.Len(t, snap.Notifications, 1)
	assert.Equal(t, "n2", snap.Notifications[0].ID)
	assert.NotContains(t, snap.Pending, "n1")

	s2, repo2, _ := newReadyStore(t, note("x", false))
	repo2.deleteErr = errors.New("boom")
	require.Error(t, s2.DeleteNotification(context.Background(), "x"))
	assert.Empty(t, s2.Snapshot().Pending)
}

func TestOperationsRequireReady(t *testing.T) {
	s := NewStore(&fakeRepo{}, &fakeSubscriber{}, logger.NewTestLogger(t), 0)
	assert.ErrorIs(t, s.MarkAsRead(context.Background(), "n1"), ErrNotReady)
	assert.ErrorIs(t, s.MarkAllAsRead(context.Background()), ErrNotReady)
	assert.ErrorIs(t, s.DeleteNotification(context.Background(), "n1"), ErrNotReady)
}

func TestOnAuthStateChange(t *testing.T) {
	repo := &fakeRepo{items: map[string][]notification.Notification{
		"u1": {note("n1", false)},
		"u2": {},
	}}
	sub := &fakeSubscriber{}
	s := NewStore(repo, sub, logger.NewTestLogger(t), 0)
	ctx := context.Background()

	require.NoError(t, s.OnAuthStateChange(ctx, &identity.Identity{ID: "u1"}))
	require.NoError(t, s.OnAuthStateChange(ctx, &identity.Identity{ID: "u1"}))
	assert.Len(t, sub.subs, 1, "same user does not resubscribe")

	require.NoError(t, s.OnAuthStateChange(ctx, &identity.Identity{ID: "u2"}))
	require.Len(t, sub.subs, 2)
	assert.Equal(t, 1, sub.subs[0].count())
	assert.Empty(t, s.Snapshot().Notifications)

	// late event from the first user's feed is ignored
	sub.handlers[0](event(feed.EventInsert, note("stale", false)))
	assert.Empty(t, s.Snapshot().Notifications)

	require.NoError(t, s.OnAuthStateChange(ctx, nil))
	assert.Equal(t, 1, sub.subs[1].count())
	assert.Equal(t, StateUninitialized, s.Snapshot().State)

	s.Stop()
	assert.Equal(t, 1, sub.subs[1].count(), "stop is idempotent")
}

func TestOnUpdate_ReceivesSnapshots(t *testing.T) {
	repo := &fakeRepo{items: map[string][]notification.Notification{"u1": {note("n1", false)}}}
	sub := &fakeSubscriber{}
	s := NewStore(repo, sub, logger.NewTestLogger(t), 0)

	var snaps []Snapshot
	remove := s.OnUpdate(func(snap Snapshot) { snaps = append(snaps, snap) })

	require.NoError(t, s.Start(context.Background(), "u1"))
	require.NotEmpty(t, snaps)
	last := snaps[len(snaps)-1]
	assert.Equal(t, StateReady, last.State)
	assert.Equal(t, 1, last.UnreadCount)

	for i := 1; i < len(snaps); i++ {
		assert.Greater(t, snaps[i].Version, snaps[i-1].Version)
	}

	remove()
	before := len(snaps)
	sub.push(event(feed.EventInsert, note("n2", false)))
	assert.Len(t, snaps, before)
}
