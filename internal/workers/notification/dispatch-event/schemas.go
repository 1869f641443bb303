// internal/workers/notification/dispatch-event/schemas.go
package dispatchevent

var payloadSchemas = map[string]string{
	EventUserRegistration: `{
		"type": "object",
		"required": ["user"],
		"properties": {
			"user": {
				"type": "object",
				"required": ["id", "email"],
				"properties": {
					"id": {"type": "string", "minLength": 1},
					"email": {"type": "string", "minLength": 3},
					"fullName": {"type": "string"}
				}
			}
		}
	}`,
	EventSubscriptionChange: `{
		"type": "object",
		"required": ["subscription", "changeType"],
		"properties": {
			"subscription": {
				"type": "object",
				"required": ["id", "organizationId", "planName"],
				"properties": {
					"id": {"type": "string"},
					"organizationId": {"type": "string", "minLength": 1},
					"planName": {"type": "string"},
					"trialEndsAt": {"type": "string", "format": "date-time"}
				}
			},
			"changeType": {"enum": ["trial_ending", "payment_failed", "plan_change"]}
		}
	}`,
	EventOrganizationInvite: `{
		"type": "object",
		"required": ["invitedUserId", "organization", "inviterName", "role"],
		"properties": {
			"invitedUserId": {"type": "string", "minLength": 1},
			"organization": {
				"type": "object",
				"required": ["id", "name"],
				"properties": {
					"id": {"type": "string", "minLength": 1},
					"name": {"type": "string"}
				}
			},
			"inviterName": {"type": "string"},
			"role": {"type": "string", "minLength": 1}
		}
	}`,
	EventSecurityEvent: `{
		"type": "object",
		"required": ["userId", "eventType"],
		"properties": {
			"userId": {"type": "string", "minLength": 1},
			"eventType": {"type": "string", "minLength": 1},
			"eventData": {"type": "object"}
		}
	}`,
	EventBillingEvent: `{
		"type": "object",
		"required": ["invoice", "eventType"],
		"properties": {
			"invoice": {
				"type": "object",
				"required": ["id", "organizationId", "invoiceNumber", "amount", "currency", "dueDate"],
				"properties": {
					"id": {"type": "string"},
					"organizationId": {"type": "string", "minLength": 1},
					"invoiceNumber": {"type": "string"},
					"amount": {"type": "number", "minimum": 0},
					"currency": {"type": "string", "minLength": 3, "maxLength": 3},
					"dueDate": {"type": "string", "format": "date-time"}
				}
			},
			"eventType": {"enum": ["payment_due", "payment_failed", "payment_success"]}
		}
	}`,
	EventSystemMaintenance: `{
		"type": "object",
		"required": ["message", "startTime", "endTime"],
		"properties": {
			"message": {"type": "string", "minLength": 1},
			"startTime": {"type": "string", "format": "date-time"},
			"endTime": {"type": "string", "format": "date-time"},
			"affectedServices": {"type": "array", "items": {"type": "string"}}
		}
	}`,
}
