// internal/store/users.go
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

const roleSuperAdmin = "super_admin"

var organizationAdminRoles = []string{"owner", "admin"}

// Users answers email lookups and trigger audience queries.
type Users struct {
	db *sql.DB
}

func NewUsers(db *sql.DB) *Users {
	return &Users{db: db}
}

func (s *Users) GetUserEmail(ctx context.Context, userID string) (*string, error) {
	var email sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT email FROM users WHERE id = $1`, userID).Scan(&email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user email: %w", err)
	}
	if !email.Valid || email.String == "" {
		return nil, nil
	}
	return &email.String, nil
}

func (s *Users) SuperAdminIDs(ctx context.Context) ([]string, error) {
	return s.ids(ctx, `SELECT id FROM users WHERE role = $1 ORDER BY id`, roleSuperAdmin)
}

func (s *Users) OrganizationAdminIDs(ctx context.Context, organizationID string) ([]string, error) {
	return s.ids(ctx,
		`SELECT user_id FROM organization_members WHERE organization_id = $1 AND role = ANY($2) ORDER BY user_id`,
		organizationID, pq.Array(organizationAdminRoles))
}

func (s *Users) AllUserIDs(ctx context.Context) ([]string, error) {
	return s.ids(ctx, `SELECT id FROM users ORDER BY id`)
}

func (s *Users) ids(ctx context.Context, query string, args ...interface{}) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query user ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
