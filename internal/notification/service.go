// internal/notification/service.go
package notification

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	apperrors "notification-workers/internal/common/errors"
	"notification-workers/internal/common/logger"
	"notification-workers/internal/common/metrics"
)

type TemplateStore interface {
	// GetTemplate returns nil, nil when no template exists for t.
	GetTemplate(ctx context.Context, t Type) (*Template, error)
}

type Store interface {
	Insert(ctx context.Context, n *Notification) (*Notification, error)
	List(ctx context.Context, userID string, filter ListFilter, page Page) ([]Notification, int, error)
	CountUnread(ctx context.Context, userID string, organizationID *string) (int, error)
	MarkRead(ctx context.Context, userID string, ids []string) (int, error)
	MarkAllRead(ctx context.Context, userID string, organizationID *string) (int, error)
	Delete(ctx context.Context, userID string, ids []string) (int, error)
}

type EmailDispatcher interface {
	Dispatch(ctx context.Context, to string, t Type, data map[string]interface{}) error
}

type Service struct {
	templates     TemplateStore
	notifications Store
	prefs         PreferencesStore
	resolver      *PreferenceResolver
	email         EmailDispatcher
	log           logger.Logger
	now           func() time.Time
	bulkLimit     int
}

type Option func(*Service)

// WithEmail enables the email channel. Without it no email is ever sent.
func WithEmail(d EmailDispatcher) Option {
	return func(s *Service) { s.email = d }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithBulkConcurrency caps in-flight sends per SendBulk call. 0 is unbounded.
func WithBulkConcurrency(n int) Option {
	return func(s *Service) { s.bulkLimit = n }
}

func NewService(templates TemplateStore, notifications Store, prefs PreferencesStore, users UserDirectory, log logger.Logger, opts ...Option) *Service {
	s := &Service{
		templates:     templates,
		notifications: notifications,
		prefs:         prefs,
		resolver:      NewPreferenceResolver(prefs, users),
		log:           log.WithFields(map[string]interface{}{"component": "notification-service"}),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Resolver() *PreferenceResolver {
	return s.resolver
}

type sendOptions struct {
	organizationID *string
	severity       *Severity
	expiresAt      *time.Time
}

type SendOption func(*sendOptions)

func WithOrganization(id string) SendOption {
	return func(o *sendOptions) {
		if id != "" {
			o.organizationID = &id
		}
	}
}

func WithSeverity(sev Severity) SendOption {
	return func(o *sendOptions) { o.severity = &sev }
}

// WithExpiry overrides the type's configured expiry.
func WithExpiry(at time.Time) SendOption {
	return func(o *sendOptions) {
		utc := at.UTC()
		o.expiresAt = &utc
	}
}

// Send creates one notification and delivers it on the channels the user
// accepts. Only configuration errors are returned. A failed insert is logged
// and dropped, and email failures never affect the stored row.
func (s *Service) Send(ctx context.Context, userID string, t Type, data map[string]interface{}, opts ...SendOption) error {
	var o sendOptions
	for _, opt := range opts {
		opt(&o)
	}

	cfg, err := ConfigFor(t)
	if err != nil {
		return err
	}

	log := s.log.WithFields(map[string]interface{}{"userId": userID, "type": string(t)})

	tpl, err := s.templates.GetTemplate(ctx, t)
	if err != nil {
		log.Error("template lookup failed, notification dropped", map[string]interface{}{"error": err})
		metrics.NotificationsDropped.WithLabelValues(string(t), metrics.StageRender).Inc()
		return nil
	}
	if tpl == nil {
		return apperrors.NewTemplateNotFoundError(string(t))
	}

	merged := mergeData(tpl.DefaultData, data)
	now := s.now().UTC()

	n := &Notification{
		UserID:         userID,
		OrganizationID: o.organizationID,
		Type:           t,
		Severity:       cfg.Severity,
		Category:       cfg.Category,
		Title:          Render(tpl.TitleTemplate, merged),
		Message:        Render(tpl.MessageTemplate, merged),
		Data:           merged,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if o.severity != nil {
		n.Severity = *o.severity
	}
	switch {
	case o.expiresAt != nil:
		n.ExpiresAt = o.expiresAt
	case cfg.ExpiresInDays != nil:
		exp := now.Add(time.Duration(*cfg.ExpiresInDays) * 24 * time.Hour)
		n.ExpiresAt = &exp
	}

	saved, err := s.notifications.Insert(ctx, n)
	if err != nil {
		log.Error("failed to persist notification", map[string]interface{}{"error": err})
		metrics.NotificationsDropped.WithLabelValues(string(t), metrics.StagePersist).Inc()
		return nil
	}
	metrics.NotificationsCreated.WithLabelValues(string(t)).Inc()

	s.deliver(ctx, saved, log)
	return nil
}

func (s *Service) deliver(ctx context.Context, n *Notification, log logger.Logger) {
	if s.email == nil {
		return
	}

	prefs, err := s.resolver.Resolve(ctx, n.UserID)
	if err != nil {
		log.Warn("preference resolution failed, skipping email", map[string]interface{}{
			"notificationId": n.ID,
			"error":          err,
		})
		return
	}
	if !prefs.Allows(ChannelEmail) {
		metrics.NotificationEmails.WithLabelValues(string(n.Type), "suppressed").Inc()
		return
	}

	err = s.email.Dispatch(ctx, *prefs.EmailAddress, n.Type, n.Data)
	switch {
	case err == nil:
	case errors.Is(err, apperrors.ErrEmailTemplateNotFound):
		// Some types are in-app only.
		metrics.NotificationEmails.WithLabelValues(string(n.Type), "no_template").Inc()
		log.Debug("no email template for type, in-app only", map[string]interface{}{"notificationId": n.ID})
	default:
		log.Error("email dispatch failed", map[string]interface{}{
			"notificationId": n.ID,
			"error":          err,
		})
	}
}

// SendBulk sends every item concurrently and waits for all of them. Items
// are independent: a failure is logged and the rest still go out.
func (s *Service) SendBulk(ctx context.Context, items []BulkItem) {
	metrics.NotificationBulkItems.Observe(float64(len(items)))

	var g errgroup.Group
	if s.bulkLimit > 0 {
		g.SetLimit(s.bulkLimit)
	}
	for _, item := range items {
		item := item
		g.Go(func() error {
			var opts []SendOption
			if item.OrganizationID != nil {
				opts = append(opts, WithOrganization(*item.OrganizationID))
			}
			if err := s.Send(ctx, item.UserID, item.Type, item.Data, opts...); err != nil {
				s.log.Error("bulk item failed", map[string]interface{}{
					"userId": item.UserID,
					"type":   string(item.Type),
					"error":  err,
				})
				metrics.NotificationsDropped.WithLabelValues(string(item.Type), metrics.StageBulk).Inc()
			}
			return nil
		})
	}
	_ = g.Wait()
}

// UpdateEmailPreferences upserts only the email flag. Unlike Send it
// surfaces store failures.
func (s *Service) UpdateEmailPreferences(ctx context.Context, userID string, enabled bool) error {
	if _, err := s.prefs.UpsertPreferences(ctx, userID, PreferencesPatch{EmailEnabled: &enabled}); err != nil {
		return apperrors.NewPreferencesUpdateFailedError(userID, err)
	}
	return nil
}

// ValidateDelivery reports whether n may currently be delivered on every
// given channel, email when none is given. Expired notifications never are.
func (s *Service) ValidateDelivery(ctx context.Context, n *Notification, channels ...Channel) bool {
	if n == nil || n.IsExpired(s.now()) {
		return false
	}
	if len(channels) == 0 {
		channels = []Channel{ChannelEmail}
	}

	prefs, err := s.resolver.Resolve(ctx, n.UserID)
	if err != nil {
		s.log.Warn("preference resolution failed", map[string]interface{}{
			"userId": n.UserID,
			"error":  err,
		})
		return false
	}
	for _, ch := range channels {
		if !prefs.Allows(ch) {
			return false
		}
	}
	return true
}

func mergeData(defaults, data map[string]interface{}) map[string]interface{} {
	merged := make(map[string]interface{}, len(defaults)+len(data))
	for k, v := range defaults {
		merged[k] = v
	}
	for k, v := range data {
		merged[k] = v
	}
	return merged
}
