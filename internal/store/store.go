// internal/store/store.go
package store

import (
	"context"
	"time"

	"notification-workers/internal/feed"
)

const (
	tableNotifications = "notifications"
	tablePreferences   = "notification_preferences"
)

// RowPublisher receives every row a mutation returns.
type RowPublisher interface {
	PublishRow(ctx context.Context, table string, typ feed.EventType, row interface{}) error
}

type scanner interface {
	Scan(dest ...interface{}) error
}

type clock func() time.Time
