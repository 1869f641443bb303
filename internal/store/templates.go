// internal/store/templates.go
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"notification-workers/internal/notification"
)

const defaultTemplateTTL = 5 * time.Minute

type templateCacheEntry struct {
	template  *notification.Template
	expiresAt time.Time
}

// Templates reads notification_templates through a short TTL cache. Misses
// are not cached so a newly seeded template is seen on the next call.
type Templates struct {
	db  *sql.DB
	ttl time.Duration
	now clock

	mu    sync.RWMutex
	cache map[notification.Type]templateCacheEntry
}

func NewTemplates(db *sql.DB, ttl time.Duration) *Templates {
	if ttl <= 0 {
		ttl = defaultTemplateTTL
	}
	return &Templates{
		db:    db,
		ttl:   ttl,
		now:   time.Now,
		cache: make(map[notification.Type]templateCacheEntry),
	}
}

func (s *Templates) GetTemplate(ctx context.Context, t notification.Type) (*notification.Template, error) {
	now := s.now()

	s.mu.RLock()
	entry, ok := s.cache[t]
	s.mu.RUnlock()
	if ok && now.Before(entry.expiresAt) {
		return entry.template, nil
	}

	var (
		tmpl        notification.Template
		defaultData []byte
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT type, title_template, message_template, default_data FROM notification_templates WHERE type = $1`,
		string(t)).Scan(&tmpl.Type, &tmpl.TitleTemplate, &tmpl.MessageTemplate, &defaultData)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get template %s: %w", t, err)
	}

	if len(defaultData) > 0 {
		if err := json.Unmarshal(defaultData, &tmpl.DefaultData); err != nil {
			return nil, fmt.Errorf("decode default_data of %s: %w", t, err)
		}
	}

	s.mu.Lock()
	s.cache[t] = templateCacheEntry{template: &tmpl, expiresAt: now.Add(s.ttl)}
	s.mu.Unlock()

	return &tmpl, nil
}

// Invalidate drops every cached template.
func (s *Templates) Invalidate() {
	s.mu.Lock()
	s.cache = make(map[notification.Type]templateCacheEntry)
	s.mu.Unlock()
}
