// internal/api/middleware.go
package api

import (
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "notification-workers/internal/common/errors"
	"notification-workers/internal/identity"
)

const identityKey = "identity"

// AuthMiddleware resolves the bearer token to an Identity. EventSource
// clients cannot set headers, so access_token is accepted as a query param.
func AuthMiddleware(provider identity.Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			token = c.Query("access_token")
		}
		if token == "" {
			abortWithError(c, apperrors.NewUnauthenticatedError("missing bearer token"))
			return
		}

		id, err := provider.Authenticate(c.Request.Context(), token)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.Set(identityKey, id)
		c.Next()
	}
}

// RequireRole rejects authenticated callers that lack role. It must run
// after AuthMiddleware.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := currentIdentity(c)
		if id == nil {
			abortWithError(c, apperrors.NewUnauthenticatedError("missing identity"))
			return
		}
		if !id.HasRole(role) {
			abortWithError(c, apperrors.NewForbiddenError("role "+role+" required"))
			return
		}
		c.Next()
	}
}

func bearerToken(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func currentIdentity(c *gin.Context) *identity.Identity {
	v, ok := c.Get(identityKey)
	if !ok {
		return nil
	}
	id, _ := v.(*identity.Identity)
	return id
}
