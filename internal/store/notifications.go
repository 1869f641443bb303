// internal/store/notifications.go
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"notification-workers/internal/common/logger"
	"notification-workers/internal/feed"
	"notification-workers/internal/notification"
)

const notificationColumns = `id, user_id, organization_id, type, severity, category, title, message, data, read_at, expires_at, created_at, updated_at`

// Notifications is the Postgres notification table. Every returned row of a
// mutation is published to the change feed when a publisher is set.
type Notifications struct {
	db   *sql.DB
	feed RowPublisher
	log  logger.Logger
	now  clock
}

func NewNotifications(db *sql.DB, publisher RowPublisher, log logger.Logger) *Notifications {
	return &Notifications{
		db:   db,
		feed: publisher,
		log:  log.WithFields(map[string]interface{}{"component": "notification-store"}),
		now:  time.Now,
	}
}

func (s *Notifications) Insert(ctx context.Context, n *notification.Notification) (*notification.Notification, error) {
	id := n.ID
	if id == "" {
		id = uuid.New().String()
	}
	created := n.CreatedAt
	if created.IsZero() {
		created = s.now().UTC()
	}

	data, err := marshalData(n.Data)
	if err != nil {
		return nil, err
	}

	query := `INSERT INTO notifications
		(id, user_id, organization_id, type, severity, category, title, message, data, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
		RETURNING ` + notificationColumns

	row := s.db.QueryRowContext(ctx, query,
		id, n.UserID, n.OrganizationID, n.Type, n.Severity, n.Category,
		n.Title, n.Message, data, n.ExpiresAt, created)

	stored, err := scanNotification(row)
	if err != nil {
		return nil, fmt.Errorf("insert notification: %w", err)
	}

	s.publish(ctx, feed.EventInsert, []notification.Notification{*stored})
	return stored, nil
}

func (s *Notifications) List(ctx context.Context, userID string, filter notification.ListFilter, page notification.Page) ([]notification.Notification, int, error) {
	where, args := listConditions(userID, filter)

	var total int
	countQuery := `SELECT COUNT(*) FROM notifications WHERE ` + where
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count notifications: %w", err)
	}

	n := len(args)
	listQuery := fmt.Sprintf(`SELECT %s FROM notifications WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		notificationColumns, where, n+1, n+2)
	args = append(args, page.Limit, page.Offset)

	rows, err := s.db.QueryContext(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	out, err := scanNotifications(rows)
	if err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}
	return out, total, nil
}

func listConditions(userID string, filter notification.ListFilter) (string, []interface{}) {
	conds := []string{"user_id = $1"}
	args := []interface{}{userID}

	if filter.UnreadOnly {
		conds = append(conds, "read_at IS NULL")
	}
	if len(filter.Types) > 0 {
		types := make([]string, len(filter.Types))
		for i, t := range filter.Types {
			types[i] = string(t)
		}
		args = append(args, pq.Array(types))
		conds = append(conds, fmt.Sprintf("type = ANY($%d)", len(args)))
	}
	if filter.Category != "" {
		args = append(args, string(filter.Category))
		conds = append(conds, fmt.Sprintf("category = $%d", len(args)))
	}
	if filter.OrganizationID != nil {
		args = append(args, *filter.OrganizationID)
		conds = append(conds, fmt.Sprintf("organization_id = $%d", len(args)))
	}
	return strings.Join(conds, " AND "), args
}

func (s *Notifications) CountUnread(ctx context.Context, userID string, organizationID *string) (int, error) {
	query := `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND read_at IS NULL`
	args := []interface{}{userID}
	if organizationID != nil {
		query += ` AND organization_id = $2`
		args = append(args, *organizationID)
	}

	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return count, nil
}

// MarkRead stamps read_at on the caller's unread rows among ids.
func (s *Notifications) MarkRead(ctx context.Context, userID string, ids []string) (int, error) {
	query := `UPDATE notifications SET read_at = $3, updated_at = $3
		WHERE user_id = $1 AND id = ANY($2) AND read_at IS NULL
		RETURNING ` + notificationColumns

	return s.mutate(ctx, feed.EventUpdate, query, userID, pq.Array(ids), s.now().UTC())
}

func (s *Notifications) MarkAllRead(ctx context.Context, userID string, organizationID *string) (int, error) {
	query := `UPDATE notifications SET read_at = $2, updated_at = $2
		WHERE user_id = $1 AND read_at IS NULL`
	args := []interface{}{userID, s.now().UTC()}
	if organizationID != nil {
		query += ` AND organization_id = $3`
		args = append(args, *organizationID)
	}
	query += ` RETURNING ` + notificationColumns

	return s.mutate(ctx, feed.EventUpdate, query, args...)
}

func (s *Notifications) Delete(ctx context.Context, userID string, ids []string) (int, error) {
	query := `DELETE FROM notifications WHERE user_id = $1 AND id = ANY($2) RETURNING ` + notificationColumns
	return s.mutate(ctx, feed.EventDelete, query, userID, pq.Array(ids))
}

func (s *Notifications) mutate(ctx context.Context, typ feed.EventType, query string, args ...interface{}) (int, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("%s notifications: %w", typ, err)
	}
	defer rows.Close()

	changed, err := scanNotifications(rows)
	if err != nil {
		return 0, fmt.Errorf("%s notifications: %w", typ, err)
	}

	s.publish(ctx, typ, changed)
	return len(changed), nil
}

// publish failures leave the write committed; live views resync on reload.
func (s *Notifications) publish(ctx context.Context, typ feed.EventType, rows []notification.Notification) {
	if s.feed == nil {
		return
	}
	for i := range rows {
		if err := s.feed.PublishRow(ctx, tableNotifications, typ, &rows[i]); err != nil {
			s.log.Warn("Failed to publish notification change", map[string]interface{}{
				"notificationId": rows[i].ID,
				"event":          string(typ),
				"error":          err.Error(),
			})
		}
	}
}

func marshalData(data map[string]interface{}) (string, error) {
	if data == nil {
		return "{}", nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("marshal notification data: %w", err)
	}
	return string(raw), nil
}

func scanNotification(row scanner) (*notification.Notification, error) {
	var (
		n    notification.Notification
		data []byte
	)
	if err := row.Scan(
		&n.ID, &n.UserID, &n.OrganizationID, &n.Type, &n.Severity, &n.Category,
		&n.Title, &n.Message, &data, &n.ReadAt, &n.ExpiresAt, &n.CreatedAt, &n.UpdatedAt,
	); err != nil {
		return nil, err
	}

	n.Data = map[string]interface{}{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &n.Data); err != nil {
			return nil, fmt.Errorf("decode data of %s: %w", n.ID, err)
		}
	}
	return &n, nil
}

func scanNotifications(rows *sql.Rows) ([]notification.Notification, error) {
	out := []notification.Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *n)
	}
	return out, rows.Err()
}
