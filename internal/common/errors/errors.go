// internal/common/errors/errors.go
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

type ErrorCode string

const (
	// Configuration errors: a notification type or event with no static entry.
	ErrCodeInvalidNotificationType ErrorCode = "INVALID_NOTIFICATION_TYPE"
	ErrCodeTemplateNotFound        ErrorCode = "TEMPLATE_NOT_FOUND"
	ErrCodeEmailTemplateNotFound   ErrorCode = "EMAIL_TEMPLATE_NOT_FOUND"
	ErrCodeInvalidEventType        ErrorCode = "INVALID_EVENT_TYPE"

	ErrCodeDatabaseQueryFailed     ErrorCode = "DATABASE_QUERY_FAILED"
	ErrCodeDatabaseInsertFailed    ErrorCode = "DATABASE_INSERT_FAILED"
	ErrCodePreferencesUpdateFailed ErrorCode = "PREFERENCES_UPDATE_FAILED"
	ErrCodeAudienceResolution      ErrorCode = "AUDIENCE_RESOLUTION_FAILED"

	ErrCodeEmailDeliveryFailed ErrorCode = "EMAIL_DELIVERY_FAILED"
	ErrCodeFeedSubscribeFailed ErrorCode = "FEED_SUBSCRIBE_FAILED"

	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrCodeUnauthenticated  ErrorCode = "UNAUTHENTICATED"
	ErrCodeForbidden        ErrorCode = "FORBIDDEN"
	ErrCodeNotFound         ErrorCode = "NOT_FOUND"
	ErrCodeInternal         ErrorCode = "INTERNAL_ERROR"
)

type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	cause     error
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// Is matches any StandardError carrying the same code, so callers can
// compare against the exported sentinels with errors.Is.
func (e *StandardError) Is(target error) bool {
	t, ok := target.(*StandardError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Sentinels for errors.Is comparisons.
var (
	ErrInvalidNotificationType = &StandardError{Code: ErrCodeInvalidNotificationType}
	ErrTemplateNotFound        = &StandardError{Code: ErrCodeTemplateNotFound}
	ErrEmailTemplateNotFound   = &StandardError{Code: ErrCodeEmailTemplateNotFound}
	ErrInvalidEventType        = &StandardError{Code: ErrCodeInvalidEventType}
	ErrUnauthenticated         = &StandardError{Code: ErrCodeUnauthenticated}
	ErrForbidden               = &StandardError{Code: ErrCodeForbidden}
	ErrNotFound                = &StandardError{Code: ErrCodeNotFound}
)

func HasCode(err error, code ErrorCode) bool {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr.Code == code
	}
	return false
}

func newError(code ErrorCode, message, details string, retryable bool, cause error) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

func NewInvalidTypeError(notificationType string) *StandardError {
	return newError(ErrCodeInvalidNotificationType, "Unknown notification type",
		fmt.Sprintf("type: %s", notificationType), false, nil)
}

func NewTemplateNotFoundError(notificationType string) *StandardError {
	return newError(ErrCodeTemplateNotFound, "Notification template not found",
		fmt.Sprintf("type: %s", notificationType), false, nil)
}

func NewEmailTemplateNotFoundError(notificationType string) *StandardError {
	return newError(ErrCodeEmailTemplateNotFound, "Email template not found",
		fmt.Sprintf("type: %s", notificationType), false, nil)
}

func NewInvalidEventTypeError(trigger, eventType string) *StandardError {
	return newError(ErrCodeInvalidEventType, "Unsupported event type",
		fmt.Sprintf("trigger: %s, eventType: %s", trigger, eventType), false, nil)
}

func NewDatabaseQueryFailedError(operation string, err error) *StandardError {
	return newError(ErrCodeDatabaseQueryFailed, "Database query failed",
		fmt.Sprintf("operation: %s, error: %s", operation, err.Error()), true, err)
}

func NewDatabaseInsertFailedError(table string, err error) *StandardError {
	return newError(ErrCodeDatabaseInsertFailed, "Database insert failed",
		fmt.Sprintf("table: %s, error: %s", table, err.Error()), true, err)
}

func NewPreferencesUpdateFailedError(userID string, err error) *StandardError {
	return newError(ErrCodePreferencesUpdateFailed, "Failed to update notification preferences",
		fmt.Sprintf("userId: %s, error: %s", userID, err.Error()), true, err)
}

func NewAudienceResolutionError(audience string, err error) *StandardError {
	return newError(ErrCodeAudienceResolution, "Failed to resolve notification audience",
		fmt.Sprintf("audience: %s, error: %s", audience, err.Error()), true, err)
}

func NewEmailDeliveryFailedError(notificationType string, err error) *StandardError {
	return newError(ErrCodeEmailDeliveryFailed, "Email delivery failed",
		fmt.Sprintf("type: %s, error: %s", notificationType, err.Error()), false, err)
}

func NewFeedSubscribeFailedError(channel string, err error) *StandardError {
	return newError(ErrCodeFeedSubscribeFailed, "Change feed subscription failed",
		fmt.Sprintf("channel: %s, error: %s", channel, err.Error()), true, err)
}

func NewValidationFailedError(details string) *StandardError {
	return newError(ErrCodeValidationFailed, "Input validation failed", details, false, nil)
}

func NewUnauthenticatedError(details string) *StandardError {
	return newError(ErrCodeUnauthenticated, "Authentication required", details, false, nil)
}

func NewForbiddenError(details string) *StandardError {
	return newError(ErrCodeForbidden, "Permission denied", details, false, nil)
}

func NewNotFoundError(resource, id string) *StandardError {
	return newError(ErrCodeNotFound, "Resource not found",
		fmt.Sprintf("%s: %s", resource, id), false, nil)
}

func NewExternalServiceError(service string, err error) *StandardError {
	return newError("EXTERNAL_SERVICE_ERROR", fmt.Sprintf("External service '%s' error", service),
		err.Error(), true, err)
}

func NewTimeoutError(service string, err error) *StandardError {
	return newError("TIMEOUT_ERROR", fmt.Sprintf("Service '%s' timeout", service),
		err.Error(), true, err)
}

func NewResourceNotFoundError(service, details string) *StandardError {
	return newError("RESOURCE_NOT_FOUND", fmt.Sprintf("Resource not found in %s", service),
		details, false, nil)
}

func NewAuthenticationError(details string) *StandardError {
	return newError("AUTHENTICATION_ERROR", "Authentication failed", details, false, nil)
}

type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatabaseQueryFailed,
		ErrCodeDatabaseInsertFailed,
		ErrCodePreferencesUpdateFailed,
		ErrCodeAudienceResolution,
		ErrCodeFeedSubscribeFailed:
		return 3

	case "TIMEOUT_ERROR", "EXTERNAL_SERVICE_ERROR":
		return 2

	default:
		return 0
	}
}

func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      string(stdErr.Code),
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "TYPE") || strings.Contains(codeStr, "TEMPLATE"):
		return "CONFIGURATION"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "PREFERENCES") || strings.Contains(codeStr, "AUDIENCE"):
		return "PERSISTENCE"
	case strings.Contains(codeStr, "EMAIL"):
		return "DELIVERY"
	case strings.Contains(codeStr, "FEED"):
		return "REALTIME"
	case strings.Contains(codeStr, "VALIDATION"):
		return "VALIDATION"
	case strings.Contains(codeStr, "AUTH"):
		return "AUTH"
	default:
		return "OTHER"
	}
}
