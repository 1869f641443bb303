// internal/common/errors/errors_test.go
package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStandardError_IsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", NewTemplateNotFoundError("security_alert"))

	assert.True(t, stderrors.Is(err, ErrTemplateNotFound))
	assert.False(t, stderrors.Is(err, ErrInvalidNotificationType))
	assert.True(t, HasCode(err, ErrCodeTemplateNotFound))
	assert.False(t, HasCode(stderrors.New("plain"), ErrCodeTemplateNotFound))
}

func TestStandardError_UnwrapsCause(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := NewDatabaseQueryFailedError("list_notifications", cause)

	assert.True(t, stderrors.Is(err, cause))
	assert.True(t, err.Retryable)
	assert.Contains(t, err.Error(), "list_notifications")
}

func TestConvertToBPMNError(t *testing.T) {
	tests := []struct {
		name        string
		err         *StandardError
		wantRetries int
	}{
		{"retryable insert", NewDatabaseInsertFailedError("notifications", stderrors.New("x")), 3},
		{"config error", NewInvalidTypeError("bogus"), 0},
		{"validation", NewValidationFailedError("userId is required"), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bpmn := ConvertToBPMNError(tt.err)
			assert.Equal(t, string(tt.err.Code), bpmn.Code)
			assert.Equal(t, tt.wantRetries, bpmn.Retries)
			vars := bpmn.ToErrorVariables()
			assert.Equal(t, string(tt.err.Code), vars["errorCode"])
		})
	}
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "CONFIGURATION", GetErrorCategory(ErrCodeInvalidNotificationType))
	assert.Equal(t, "CONFIGURATION", GetErrorCategory(ErrCodeEmailTemplateNotFound))
	assert.Equal(t, "PERSISTENCE", GetErrorCategory(ErrCodeAudienceResolution))
	assert.Equal(t, "DELIVERY", GetErrorCategory(ErrCodeEmailDeliveryFailed))
	assert.Equal(t, "AUTH", GetErrorCategory(ErrCodeUnauthenticated))
}

func TestNormalize(t *testing.T) {
	std := Normalize(stderrors.New("boom"))
	assert.Equal(t, ErrCodeInternal, std.Code)
	assert.Equal(t, "boom", std.Details)

	orig := NewNotFoundError("notification", "n1")
	assert.Same(t, orig, Normalize(fmt.Errorf("ctx: %w", orig)))
}
