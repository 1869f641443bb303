// internal/notification/query.go
package notification

import (
	"context"

	apperrors "notification-workers/internal/common/errors"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func normalizePage(p Page) Page {
	if p.Limit <= 0 {
		p.Limit = defaultPageSize
	}
	if p.Limit > maxPageSize {
		p.Limit = maxPageSize
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// GetUserNotifications returns one page, newest first, and the total match count.
func (s *Service) GetUserNotifications(ctx context.Context, userID string, filter ListFilter, page Page) ([]Notification, int, error) {
	for _, t := range filter.Types {
		if !t.Valid() {
			return nil, 0, apperrors.NewInvalidTypeError(string(t))
		}
	}
	items, total, err := s.notifications.List(ctx, userID, filter, normalizePage(page))
	if err != nil {
		return nil, 0, apperrors.NewDatabaseQueryFailedError("list_notifications", err)
	}
	return items, total, nil
}

func (s *Service) GetUnreadCount(ctx context.Context, userID string, organizationID *string) (int, error) {
	n, err := s.notifications.CountUnread(ctx, userID, organizationID)
	if err != nil {
		return 0, apperrors.NewDatabaseQueryFailedError("count_unread", err)
	}
	return n, nil
}

// MarkRead sets read_at on the caller's unread notifications among ids and
// returns how many changed. Already-read rows keep their original timestamp.
func (s *Service) MarkRead(ctx context.Context, userID string, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	n, err := s.notifications.MarkRead(ctx, userID, ids)
	if err != nil {
		return 0, apperrors.NewDatabaseQueryFailedError("mark_read", err)
	}
	return n, nil
}

func (s *Service) MarkAllRead(ctx context.Context, userID string, organizationID *string) error {
	if _, err := s.notifications.MarkAllRead(ctx, userID, organizationID); err != nil {
		return apperrors.NewDatabaseQueryFailedError("mark_all_read", err)
	}
	return nil
}

func (s *Service) DeleteNotifications(ctx context.Context, userID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := s.notifications.Delete(ctx, userID, ids); err != nil {
		return apperrors.NewDatabaseQueryFailedError("delete_notifications", err)
	}
	return nil
}

// GetPreferences returns the stored row or the defaults when none exists.
func (s *Service) GetPreferences(ctx context.Context, userID string) (*Preferences, error) {
	p, err := s.prefs.GetPreferences(ctx, userID)
	if err != nil {
		return nil, apperrors.NewDatabaseQueryFailedError("get_preferences", err)
	}
	if p == nil {
		d := DefaultPreferences(userID)
		return &d, nil
	}
	return p, nil
}

func (s *Service) UpsertPreferences(ctx context.Context, userID string, patch PreferencesPatch) (*Preferences, error) {
	if patch.Frequency != nil && !patch.Frequency.Valid() {
		return nil, apperrors.NewValidationFailedError("frequency must be one of immediate, hourly, daily, weekly")
	}
	p, err := s.prefs.UpsertPreferences(ctx, userID, patch)
	if err != nil {
		return nil, apperrors.NewPreferencesUpdateFailedError(userID, err)
	}
	return p, nil
}
