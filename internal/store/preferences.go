// internal/store/preferences.go
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"notification-workers/internal/common/logger"
	"notification-workers/internal/feed"
	"notification-workers/internal/notification"
)

const preferenceColumns = `user_id, email_enabled, push_enabled, sms_enabled, frequency, updated_at`

type Preferences struct {
	db   *sql.DB
	feed RowPublisher
	log  logger.Logger
	now  clock
}

func NewPreferences(db *sql.DB, publisher RowPublisher, log logger.Logger) *Preferences {
	return &Preferences{
		db:   db,
		feed: publisher,
		log:  log.WithFields(map[string]interface{}{"component": "preferences-store"}),
		now:  time.Now,
	}
}

func (s *Preferences) GetPreferences(ctx context.Context, userID string) (*notification.Preferences, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+preferenceColumns+` FROM notification_preferences WHERE user_id = $1`, userID)

	p, err := scanPreferences(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get preferences: %w", err)
	}
	return p, nil
}

// UpsertPreferences creates the row from defaults or applies the non-nil
// fields of patch. sms_enabled is always written false.
func (s *Preferences) UpsertPreferences(ctx context.Context, userID string, patch notification.PreferencesPatch) (*notification.Preferences, error) {
	query := `INSERT INTO notification_preferences
		(user_id, email_enabled, push_enabled, sms_enabled, frequency, created_at, updated_at)
		VALUES ($1, COALESCE($2::boolean, true), COALESCE($3::boolean, true), false, COALESCE($4::text, 'immediate'), $5, $5)
		ON CONFLICT (user_id) DO UPDATE SET
			email_enabled = COALESCE($2::boolean, notification_preferences.email_enabled),
			push_enabled  = COALESCE($3::boolean, notification_preferences.push_enabled),
			sms_enabled   = false,
			frequency     = COALESCE($4::text, notification_preferences.frequency),
			updated_at    = $5
		RETURNING ` + preferenceColumns

	row := s.db.QueryRowContext(ctx, query,
		userID, patch.EmailEnabled, patch.PushEnabled, patch.Frequency, s.now().UTC())

	p, err := scanPreferences(row)
	if err != nil {
		return nil, fmt.Errorf("upsert preferences: %w", err)
	}

	if s.feed != nil {
		if err := s.feed.PublishRow(ctx, tablePreferences, feed.EventUpdate, p); err != nil {
			s.log.Warn("Failed to publish preferences change", map[string]interface{}{
				"userId": userID,
				"error":  err.Error(),
			})
		}
	}
	return p, nil
}

func scanPreferences(row scanner) (*notification.Preferences, error) {
	var p notification.Preferences
	if err := row.Scan(&p.UserID, &p.EmailEnabled, &p.PushEnabled, &p.SMSEnabled, &p.Frequency, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}
