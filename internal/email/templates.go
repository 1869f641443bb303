// internal/email/templates.go
package email

import "notification-workers/internal/notification"

// Template is a compiled-in HTML email for one notification type.
type Template struct {
	Subject string
	HTML    string
}

const UnsubscribeToken = "unsubscribe_link"

const footer = `<hr><p style="font-size:12px;color:#888">You are receiving this email because of your notification settings. <a href="{{unsubscribe_link}}">Unsubscribe</a></p>`

var templates = map[notification.Type]Template{
	notification.TypeSystemAlert: {
		Subject: "System Alert: {{alert_type}}",
		HTML:    `<h2>System Alert</h2><p>{{message}}</p>` + footer,
	},
	notification.TypeSubscriptionUpdate: {
		Subject: "Your subscription has been updated",
		HTML:    `<h2>Subscription Update</h2><p>{{message}}</p><p>Plan: <strong>{{plan_name}}</strong></p>` + footer,
	},
	notification.TypeBillingReminder: {
		Subject: "Billing reminder: {{amount}} {{currency}}",
		HTML:    `<h2>Billing Reminder</h2><p>{{message}}</p><p>Invoice {{invoice_number}} for {{amount}} {{currency}} is due on {{due_date}}.</p>` + footer,
	},
	notification.TypeSecurityAlert: {
		Subject: "Security alert on your account",
		HTML:    `<h2>Security Alert</h2><p>{{message}}</p><p>Event: {{alert_type}} at {{timestamp}}</p><p>If this was not you, reset your password immediately.</p>` + footer,
	},
	notification.TypeOrganizationInvite: {
		Subject: "{{inviter_name}} invited you to join {{organization_name}}",
		HTML:    `<h2>You're invited</h2><p>{{inviter_name}} invited you to join <strong>{{organization_name}}</strong> as {{role}}.</p><p>This invitation expires on {{expires_at}}.</p>` + footer,
	},
}

// Lookup returns the email template for t. user_action has none.
func Lookup(t notification.Type) (Template, bool) {
	tpl, ok := templates[t]
	return tpl, ok
}
