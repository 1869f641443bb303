// internal/workers/notification/dispatch-event/models.go
package dispatchevent

import (
	"encoding/json"
	"time"

	"notification-workers/internal/triggers"
)

type Input struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

type Output struct {
	Status string `json:"status"`
	Event  string `json:"event"`
}

const StatusDispatched = "dispatched"

const (
	EventUserRegistration   = "user_registration"
	EventSubscriptionChange = "subscription_change"
	EventOrganizationInvite = "organization_invite"
	EventSecurityEvent      = "security_event"
	EventBillingEvent       = "billing_event"
	EventSystemMaintenance  = "system_maintenance"
)

type userRegistrationPayload struct {
	User triggers.User `json:"user"`
}

type subscriptionChangePayload struct {
	Subscription triggers.Subscription       `json:"subscription"`
	ChangeType   triggers.SubscriptionChange `json:"changeType"`
}

type organizationInvitePayload struct {
	InvitedUserID string                `json:"invitedUserId"`
	Organization  triggers.Organization `json:"organization"`
	InviterName   string                `json:"inviterName"`
	Role          string                `json:"role"`
}

type securityEventPayload struct {
	UserID    string                 `json:"userId"`
	EventType string                 `json:"eventType"`
	EventData map[string]interface{} `json:"eventData"`
}

type billingEventPayload struct {
	Invoice   triggers.Invoice      `json:"invoice"`
	EventType triggers.BillingEvent `json:"eventType"`
}

type systemMaintenancePayload struct {
	Message          string    `json:"message"`
	StartTime        time.Time `json:"startTime"`
	EndTime          time.Time `json:"endTime"`
	AffectedServices []string  `json:"affectedServices"`
}
