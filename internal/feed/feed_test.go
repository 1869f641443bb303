// internal/feed/feed_test.go
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "notification-workers/internal/common/errors"
	"notification-workers/internal/common/logger"
)

type row struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
	Title  string `json:"title"`
}

func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func waitEvent(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for feed event")
		return Event{}
	}
}

func TestFilter(t *testing.T) {
	f := Filter{Table: "notifications", Column: "user_id", Value: "u1"}
	assert.Equal(t, "notifications:user_id=u1", f.Channel())

	mine, _ := json.Marshal(row{ID: "n1", UserID: "u1"})
	other, _ := json.Marshal(row{ID: "n2", UserID: "u2"})

	assert.True(t, f.Matches(Event{Type: EventInsert, Table: "notifications", New: mine}))
	assert.True(t, f.Matches(Event{Type: EventDelete, Table: "notifications", Old: mine}))
	assert.False(t, f.Matches(Event{Type: EventInsert, Table: "notifications", New: other}))
	assert.False(t, f.Matches(Event{Type: EventInsert, Table: "notification_preferences", New: mine}))
	assert.False(t, f.Matches(Event{Type: EventUpdate, Table: "notifications", New: json.RawMessage(`not json`)}))
}

func TestPublishSubscribe_RoundTrip(t *testing.T) {
	client := setupRedis(t)
	log := logger.NewNoOpLogger()
	ctx := context.Background()

	received := make(chan Event, 8)
	sub, err := NewSubscriber(client, log).Subscribe(ctx, "live-u1",
		Filter{Table: "notifications", Column: "user_id", Value: "u1"},
		func(ev Event) { received <- ev })
	require.NoError(t, err)
	defer sub.Unsubscribe()

	pub := NewPublisher(client, log)
	channel := ChannelName("notifications", "user_id", "u1")

	// noise on the same channel that fails the filter re-check or decoding
	require.NoError(t, client.Publish(ctx, channel, "garbage").Err())
	foreign, _ := json.Marshal(Event{Type: EventInsert, Table: "notifications", New: json.RawMessage(`{"user_id":"u2"}`)})
	require.NoError(t, client.Publish(ctx, channel, foreign).Err())

	require.NoError(t, pub.PublishRow(ctx, "notifications", EventInsert, row{ID: "n1", UserID: "u1", Title: "hi"}))
	require.NoError(t, pub.PublishRow(ctx, "notifications", EventDelete, row{ID: "n1", UserID: "u1"}))
	// other users' rows go to other channels
	require.NoError(t, pub.PublishRow(ctx, "notifications", EventInsert, row{ID: "n9", UserID: "u9"}))

	ev := waitEvent(t, received)
	assert.Equal(t, EventInsert, ev.Type)
	var got row
	require.NoError(t, json.Unmarshal(ev.New, &got))
	assert.Equal(t, "hi", got.Title)

	ev = waitEvent(t, received)
	assert.Equal(t, EventDelete, ev.Type)
	assert.Empty(t, ev.New)
	require.NoError(t, json.Unmarshal(ev.Old, &got))
	assert.Equal(t, "n1", got.ID)

	select {
	case extra := <-received:
		t.Fatalf("unexpected event %+v", extra)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSubscription_UnsubscribeIsIdempotent(t *testing.T) {
	client := setupRedis(t)
	received := make(chan Event, 1)

	sub, err := NewSubscriber(client, logger.NewNoOpLogger()).Subscribe(context.Background(), "s",
		Filter{Table: "notifications", Column: "user_id", Value: "u1"},
		func(ev Event) { received <- ev })
	require.NoError(t, err)

	sub.Unsubscribe()
	sub.Unsubscribe()

	_ = NewPublisher(client, logger.NewNoOpLogger()).PublishRow(context.Background(), "notifications", EventInsert, row{UserID: "u1"})
	select {
	case <-received:
		t.Fatal("handler invoked after unsubscribe")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSubscribe_ConnectionFailure(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	mr.Close()

	_, err = NewSubscriber(client, logger.NewNoOpLogger()).Subscribe(context.Background(), "s",
		Filter{Table: "notifications", Column: "user_id", Value: "u1"}, func(Event) {})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeFeedSubscribeFailed))
}

func TestPublisher_PublishFailure(t *testing.T) {
	db, mock := redismock.NewClientMock()
	pub := NewPublisher(db, logger.NewNoOpLogger())

	ev := Event{Type: EventUpdate, Table: "notifications", New: json.RawMessage(`{"id":"n1","user_id":"u1"}`)}
	payload, err := json.Marshal(ev)
	require.NoError(t, err)
	mock.ExpectPublish("notifications:user_id=u1", payload).SetErr(errors.New("READONLY"))

	err = pub.Publish(context.Background(), ev)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "notifications:user_id=u1")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPublisher_SkipsRowsWithoutFilterColumn(t *testing.T) {
	db, mock := redismock.NewClientMock()
	pub := NewPublisher(db, logger.NewNoOpLogger())

	require.NoError(t, pub.PublishRow(context.Background(), "notifications", EventInsert, map[string]string{"id": "n1"}))
	assert.NoError(t, mock.ExpectationsWereMet())
}
