// internal/notification/types.go
package notification

import (
	"time"

	apperrors "notification-workers/internal/common/errors"
)

type Type string

const (
	TypeSystemAlert        Type = "system_alert"
	TypeUserAction         Type = "user_action"
	TypeSubscriptionUpdate Type = "subscription_update"
	TypeBillingReminder    Type = "billing_reminder"
	TypeSecurityAlert      Type = "security_alert"
	TypeOrganizationInvite Type = "organization_invite"
)

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
	SeveritySuccess Severity = "success"
)

type Category string

const (
	CategoryBilling      Category = "billing"
	CategorySecurity     Category = "security"
	CategorySystem       Category = "system"
	CategoryOrganization Category = "organization"
	CategoryUser         Category = "user"
)

type Frequency string

const (
	FrequencyImmediate Frequency = "immediate"
	FrequencyHourly    Frequency = "hourly"
	FrequencyDaily     Frequency = "daily"
	FrequencyWeekly    Frequency = "weekly"
)

func (f Frequency) Valid() bool {
	switch f {
	case FrequencyImmediate, FrequencyHourly, FrequencyDaily, FrequencyWeekly:
		return true
	}
	return false
}

type Channel string

const (
	ChannelInApp Channel = "in_app"
	ChannelEmail Channel = "email"
	ChannelPush  Channel = "push"
	ChannelSMS   Channel = "sms"
)

// Notification is the persisted unit. JSON names match the stored columns.
type Notification struct {
	ID             string                 `json:"id"`
	UserID         string                 `json:"user_id"`
	OrganizationID *string                `json:"organization_id"`
	Type           Type                   `json:"type"`
	Severity       Severity               `json:"severity"`
	Category       Category               `json:"category"`
	Title          string                 `json:"title"`
	Message        string                 `json:"message"`
	Data           map[string]interface{} `json:"data"`
	ReadAt         *time.Time             `json:"read_at"`
	ExpiresAt      *time.Time             `json:"expires_at"`
	CreatedAt      time.Time              `json:"created_at"`
	UpdatedAt      time.Time              `json:"updated_at"`
}

func (n *Notification) IsRead() bool {
	return n.ReadAt != nil
}

func (n *Notification) IsExpired(now time.Time) bool {
	return n.ExpiresAt != nil && !now.Before(*n.ExpiresAt)
}

// Template is the data-store title/message template for one type.
type Template struct {
	Type            Type                   `json:"type"`
	TitleTemplate   string                 `json:"title_template"`
	MessageTemplate string                 `json:"message_template"`
	DefaultData     map[string]interface{} `json:"default_data"`
}

type TypeConfig struct {
	Severity      Severity
	Category      Category
	ExpiresInDays *int
}

func days(n int) *int { return &n }

var typeConfigs = map[Type]TypeConfig{
	TypeSystemAlert:        {Severity: SeverityInfo, Category: CategorySystem, ExpiresInDays: days(30)},
	TypeUserAction:         {Severity: SeverityInfo, Category: CategoryUser},
	TypeSubscriptionUpdate: {Severity: SeverityInfo, Category: CategoryBilling},
	TypeBillingReminder:    {Severity: SeverityWarning, Category: CategoryBilling, ExpiresInDays: days(7)},
	TypeSecurityAlert:      {Severity: SeverityError, Category: CategorySecurity},
	TypeOrganizationInvite: {Severity: SeverityInfo, Category: CategoryOrganization, ExpiresInDays: days(7)},
}

// ConfigFor returns the static config for t or an INVALID_NOTIFICATION_TYPE error.
func ConfigFor(t Type) (TypeConfig, error) {
	cfg, ok := typeConfigs[t]
	if !ok {
		return TypeConfig{}, apperrors.NewInvalidTypeError(string(t))
	}
	return cfg, nil
}

func AllTypes() []Type {
	return []Type{
		TypeSystemAlert,
		TypeUserAction,
		TypeSubscriptionUpdate,
		TypeBillingReminder,
		TypeSecurityAlert,
		TypeOrganizationInvite,
	}
}

func (t Type) Valid() bool {
	_, ok := typeConfigs[t]
	return ok
}

// Preferences is the stored per-user delivery settings row.
type Preferences struct {
	UserID       string    `json:"user_id"`
	EmailEnabled bool      `json:"email_enabled"`
	PushEnabled  bool      `json:"push_enabled"`
	SMSEnabled   bool      `json:"sms_enabled"`
	Frequency    Frequency `json:"frequency"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func DefaultPreferences(userID string) Preferences {
	return Preferences{
		UserID:       userID,
		EmailEnabled: true,
		PushEnabled:  true,
		SMSEnabled:   false,
		Frequency:    FrequencyImmediate,
	}
}

// PreferencesPatch is a partial update; nil fields keep their stored value.
// SMS is not patchable and is always stored disabled.
type PreferencesPatch struct {
	EmailEnabled *bool      `json:"email_enabled,omitempty"`
	PushEnabled  *bool      `json:"push_enabled,omitempty"`
	Frequency    *Frequency `json:"frequency,omitempty"`
}

type BulkItem struct {
	UserID         string                 `json:"userId"`
	OrganizationID *string                `json:"organizationId,omitempty"`
	Type           Type                   `json:"type"`
	Data           map[string]interface{} `json:"data"`
}

type ListFilter struct {
	UnreadOnly     bool
	Types          []Type
	Category       Category
	OrganizationID *string
}

type Page struct {
	Limit  int
	Offset int
}
