// internal/triggers/triggers.go
package triggers

import (
	"context"
	"fmt"
	"time"

	apperrors "notification-workers/internal/common/errors"
	"notification-workers/internal/common/logger"
	"notification-workers/internal/notification"
)

const (
	inviteValidity = 7 * 24 * time.Hour
	paymentRetryIn = 24 * time.Hour
)

type Sender interface {
	Send(ctx context.Context, userID string, t notification.Type, data map[string]interface{}, opts ...notification.SendOption) error
	SendBulk(ctx context.Context, items []notification.BulkItem)
}

// AudienceStore resolves who receives a trigger's notification. Each method
// is a single filtered query.
type AudienceStore interface {
	SuperAdminIDs(ctx context.Context) ([]string, error)
	OrganizationAdminIDs(ctx context.Context, organizationID string) ([]string, error)
	AllUserIDs(ctx context.Context) ([]string, error)
}

// Triggers turns domain events into notifications for the right audience.
type Triggers struct {
	sender   Sender
	audience AudienceStore
	log      logger.Logger
	now      func() time.Time
}

type Option func(*Triggers)

func WithClock(now func() time.Time) Option {
	return func(t *Triggers) { t.now = now }
}

func New(sender Sender, audience AudienceStore, log logger.Logger, opts ...Option) *Triggers {
	t := &Triggers{
		sender:   sender,
		audience: audience,
		log:      log.WithFields(map[string]interface{}{"component": "notification-triggers"}),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// OnUserRegistration alerts every super admin about the new account.
func (t *Triggers) OnUserRegistration(ctx context.Context, user User) error {
	ids, err := t.audience.SuperAdminIDs(ctx)
	if err != nil {
		return apperrors.NewAudienceResolutionError("super_admins", err)
	}

	name := user.FullName
	if name == "" {
		name = user.Email
	}
	data := map[string]interface{}{
		"alert_type": "new_user_registration",
		"message":    fmt.Sprintf("New user registered: %s (%s)", name, user.Email),
		"user_email": user.Email,
		"user_name":  user.FullName,
		"user_id":    user.ID,
	}
	t.fanOut(ctx, "user_registration", ids, nil, notification.TypeSystemAlert, data)
	return nil
}

func (t *Triggers) OnSubscriptionChange(ctx context.Context, sub Subscription, change SubscriptionChange) error {
	var (
		typ  notification.Type
		data map[string]interface{}
	)
	switch change {
	case SubscriptionTrialEnding:
		typ = notification.TypeSubscriptionUpdate
		data = map[string]interface{}{
			"plan_name":   sub.PlanName,
			"change_type": string(change),
			"message":     fmt.Sprintf("Your %s trial is ending soon. Choose a plan to keep your workspace active.", sub.PlanName),
		}
		if sub.TrialEndsAt != nil {
			data["trial_ends_at"] = sub.TrialEndsAt.UTC().Format(time.RFC3339)
		}
	case SubscriptionPaymentFailed:
		typ = notification.TypeBillingReminder
		data = map[string]interface{}{
			"plan_name":     sub.PlanName,
			"change_type":   string(change),
			"reminder_type": "payment_failed",
			"message":       fmt.Sprintf("Payment for your %s subscription failed. Please update your payment method.", sub.PlanName),
		}
	case SubscriptionPlanChange:
		typ = notification.TypeSubscriptionUpdate
		data = map[string]interface{}{
			"plan_name":   sub.PlanName,
			"change_type": string(change),
			"message":     fmt.Sprintf("Your subscription has been changed to the %s plan.", sub.PlanName),
		}
	default:
		return apperrors.NewInvalidEventTypeError("subscription_change", string(change))
	}
	data["subscription_id"] = sub.ID

	ids, err := t.audience.OrganizationAdminIDs(ctx, sub.OrganizationID)
	if err != nil {
		return apperrors.NewAudienceResolutionError("organization_admins", err)
	}
	t.fanOut(ctx, "subscription_change", ids, &sub.OrganizationID, typ, data)
	return nil
}

// OnOrganizationInvite notifies only the invited user. The invite and the
// notification expire together.
func (t *Triggers) OnOrganizationInvite(ctx context.Context, invitedUserID string, org Organization, inviterName, role string) error {
	expiresAt := t.now().UTC().Add(inviteValidity)
	data := map[string]interface{}{
		"organization_id":   org.ID,
		"organization_name": org.Name,
		"inviter_name":      inviterName,
		"role":              role,
		"expires_at":        expiresAt.Format(time.RFC3339),
	}
	return t.sender.Send(ctx, invitedUserID, notification.TypeOrganizationInvite, data,
		notification.WithOrganization(org.ID),
		notification.WithExpiry(expiresAt))
}

func (t *Triggers) OnSecurityEvent(ctx context.Context, userID, eventType string, eventData map[string]interface{}) error {
	data := make(map[string]interface{}, len(eventData)+2)
	for k, v := range eventData {
		data[k] = v
	}
	data["alert_type"] = eventType
	data["timestamp"] = t.now().UTC().Format(time.RFC3339)

	return t.sender.Send(ctx, userID, notification.TypeSecurityAlert, data)
}

func (t *Triggers) OnBillingEvent(ctx context.Context, invoice Invoice, event BillingEvent) error {
	now := t.now().UTC()
	amount := fmt.Sprintf("%.2f", invoice.Amount)
	data := map[string]interface{}{
		"reminder_type":  string(event),
		"amount":         amount,
		"currency":       invoice.Currency,
		"invoice_id":     invoice.ID,
		"invoice_number": invoice.InvoiceNumber,
		"due_date":       invoice.DueDate.UTC().Format(time.RFC3339),
	}

	switch event {
	case BillingPaymentDue:
		data["message"] = fmt.Sprintf("Invoice %s for %s %s is due on %s.",
			invoice.InvoiceNumber, amount, invoice.Currency, invoice.DueDate.UTC().Format("2006-01-02"))
	case BillingPaymentFailed:
		retry := now.Add(paymentRetryIn)
		data["retry_date"] = retry.Format(time.RFC3339)
		data["message"] = fmt.Sprintf("Payment for invoice %s failed. We will retry on %s.",
			invoice.InvoiceNumber, retry.Format("2006-01-02"))
	case BillingPaymentSuccess:
		data["paid_at"] = now.Format(time.RFC3339)
		data["message"] = fmt.Sprintf("Payment of %s %s for invoice %s was received.",
			amount, invoice.Currency, invoice.InvoiceNumber)
	default:
		return apperrors.NewInvalidEventTypeError("billing_event", string(event))
	}

	ids, err := t.audience.OrganizationAdminIDs(ctx, invoice.OrganizationID)
	if err != nil {
		return apperrors.NewAudienceResolutionError("organization_admins", err)
	}
	t.fanOut(ctx, "billing_event", ids, &invoice.OrganizationID, notification.TypeBillingReminder, data)
	return nil
}

// OnSystemMaintenance notifies every user in the system.
func (t *Triggers) OnSystemMaintenance(ctx context.Context, message string, start, end time.Time, affectedServices []string) error {
	ids, err := t.audience.AllUserIDs(ctx)
	if err != nil {
		return apperrors.NewAudienceResolutionError("all_users", err)
	}

	services := make([]interface{}, len(affectedServices))
	for i, s := range affectedServices {
		services[i] = s
	}
	data := map[string]interface{}{
		"alert_type":        "maintenance",
		"message":           message,
		"start_time":        start.UTC().Format(time.RFC3339),
		"end_time":          end.UTC().Format(time.RFC3339),
		"affected_services": services,
	}
	t.fanOut(ctx, "system_maintenance", ids, nil, notification.TypeSystemAlert, data)
	return nil
}

// fanOut sends one bulk item per recipient. Each item gets its own copy of data.
func (t *Triggers) fanOut(ctx context.Context, trigger string, ids []string, organizationID *string, typ notification.Type, data map[string]interface{}) {
	if len(ids) == 0 {
		t.log.Debug("trigger has no audience", map[string]interface{}{"trigger": trigger})
		return
	}

	items := make([]notification.BulkItem, len(ids))
	for i, id := range ids {
		items[i] = notification.BulkItem{
			UserID:         id,
			OrganizationID: organizationID,
			Type:           typ,
			Data:           copyData(data),
		}
	}

	t.log.Info("trigger fan-out", map[string]interface{}{"trigger": trigger, "recipients": len(items)})
	t.sender.SendBulk(ctx, items)
}

func copyData(data map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(data))
	for k, v := range data {
		out[k] = v
	}
	return out
}
