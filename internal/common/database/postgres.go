// internal/common/database/postgres.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"notification-workers/internal/common/config"
)

const pingTimeout = 5 * time.Second

// PostgresClient owns the pool shared by every notification repository.
type PostgresClient struct {
	DB *sql.DB
}

// NewPostgres opens the pool. appName shows up in pg_stat_activity so the
// notification service's connections can be told apart from other tenants.
func NewPostgres(cfg config.PostgresConfig, appName string) (*PostgresClient, error) {
	dsn := fmt.Sprintf("%s connect_timeout=%d", cfg.GetDSN(), int(pingTimeout.Seconds()))
	if appName != "" {
		dsn += " application_name=" + appName
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if cfg.MaxConnections > 0 {
		db.SetMaxOpenConns(cfg.MaxConnections)
	}
	if cfg.MaxIdle > 0 {
		db.SetMaxIdleConns(cfg.MaxIdle)
	}
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return &PostgresClient{DB: db}, nil
}

// Ping is bounded by pingTimeout when ctx carries no deadline of its own.
func (c *PostgresClient) Ping(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, pingTimeout)
		defer cancel()
	}
	if err := c.DB.PingContext(ctx); err != nil {
		return fmt.Errorf("postgres ping: %w", err)
	}
	return nil
}

func (c *PostgresClient) Close() error {
	if c.DB == nil {
		return nil
	}
	return c.DB.Close()
}
