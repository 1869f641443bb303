// internal/workers/notification/send-notification/models.go
package sendnotification

import "notification-workers/internal/notification"

// Input is either a single send (userId, type) or a bulk send (items).
type Input struct {
	UserID         string                  `json:"userId,omitempty"`
	Type           string                  `json:"type,omitempty"`
	Data           map[string]interface{}  `json:"data,omitempty"`
	OrganizationID string                  `json:"organizationId,omitempty"`
	Items          []notification.BulkItem `json:"items,omitempty"`
}

type Output struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

const StatusAccepted = "accepted"

const inputSchema = `{
	"type": "object",
	"properties": {
		"userId": {"type": "string", "minLength": 1},
		"type": {"type": "string", "minLength": 1},
		"data": {"type": "object"},
		"organizationId": {"type": "string"},
		"items": {
			"type": "array",
			"minItems": 1,
			"items": {
				"type": "object",
				"required": ["userId", "type"],
				"properties": {
					"userId": {"type": "string", "minLength": 1},
					"type": {"type": "string", "minLength": 1},
					"organizationId": {"type": "string"},
					"data": {"type": "object"}
				}
			}
		}
	},
	"oneOf": [
		{"required": ["userId", "type"], "not": {"required": ["items"]}},
		{"required": ["items"], "not": {"required": ["userId"]}}
	]
}`
