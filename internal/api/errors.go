// internal/api/errors.go
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "notification-workers/internal/common/errors"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func statusFor(code apperrors.ErrorCode) int {
	switch code {
	case apperrors.ErrCodeValidationFailed,
		apperrors.ErrCodeInvalidNotificationType,
		apperrors.ErrCodeInvalidEventType:
		return http.StatusBadRequest
	case apperrors.ErrCodeUnauthenticated:
		return http.StatusUnauthorized
	case apperrors.ErrCodeForbidden:
		return http.StatusForbidden
	case apperrors.ErrCodeNotFound:
		return http.StatusNotFound
	case apperrors.ErrCodeTemplateNotFound, apperrors.ErrCodeEmailTemplateNotFound:
		return http.StatusUnprocessableEntity
	case "EXTERNAL_SERVICE_ERROR", "TIMEOUT_ERROR":
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, err error) {
	stdErr := apperrors.Normalize(err)
	status := statusFor(stdErr.Code)

	body := errorBody{Code: string(stdErr.Code), Message: stdErr.Message}
	if status < http.StatusInternalServerError {
		body.Details = stdErr.Details
	}
	c.AbortWithStatusJSON(status, gin.H{"error": body})
}

func badRequest(c *gin.Context, err error) {
	abortWithError(c, apperrors.NewValidationFailedError(err.Error()))
}
