// internal/triggers/types.go
package triggers

import "time"

type User struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"fullName"`
}

type Subscription struct {
	ID             string     `json:"id"`
	OrganizationID string     `json:"organizationId"`
	PlanName       string     `json:"planName"`
	TrialEndsAt    *time.Time `json:"trialEndsAt,omitempty"`
}

type Organization struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Invoice struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organizationId"`
	InvoiceNumber  string    `json:"invoiceNumber"`
	Amount         float64   `json:"amount"`
	Currency       string    `json:"currency"`
	DueDate        time.Time `json:"dueDate"`
}

type SubscriptionChange string

const (
	SubscriptionTrialEnding   SubscriptionChange = "trial_ending"
	SubscriptionPaymentFailed SubscriptionChange = "payment_failed"
	SubscriptionPlanChange    SubscriptionChange = "plan_change"
)

type BillingEvent string

const (
	BillingPaymentDue     BillingEvent = "payment_due"
	BillingPaymentFailed  BillingEvent = "payment_failed"
	BillingPaymentSuccess BillingEvent = "payment_success"
)
