// internal/identity/keycloak.go
package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"notification-workers/internal/common/config"
	apperrors "notification-workers/internal/common/errors"
	commonhttp "notification-workers/internal/common/http"
)

// tokenInfo is the subset of the introspection response we read.
type tokenInfo struct {
	Active   bool   `json:"active"`
	Sub      string `json:"sub,omitempty"`
	Email    string `json:"email,omitempty"`
	Username string `json:"username,omitempty"`

	RealmAccess struct {
		Roles []string `json:"roles"`
	} `json:"realm_access"`
}

// KeycloakProvider validates access tokens with the realm's introspection endpoint.
type KeycloakProvider struct {
	client        *commonhttp.Client
	introspectURL string
	clientID      string
	clientSecret  string
}

func NewKeycloakProvider(cfg config.KeycloakConfig, client *commonhttp.Client) *KeycloakProvider {
	return &KeycloakProvider{
		client: client,
		introspectURL: fmt.Sprintf("%s/realms/%s/protocol/openid-connect/token/introspect",
			strings.TrimSuffix(cfg.URL, "/"), cfg.Realm),
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
	}
}

func (k *KeycloakProvider) Authenticate(ctx context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, apperrors.NewUnauthenticatedError("missing bearer token")
	}

	form := url.Values{}
	form.Set("token", token)
	form.Set("token_type_hint", "access_token")
	form.Set("client_id", k.clientID)
	form.Set("client_secret", k.clientSecret)

	resp, err := k.client.PostForm(ctx, k.introspectURL, form)
	if err != nil {
		return nil, apperrors.NewExternalServiceError("keycloak", err)
	}
	if !resp.IsSuccess() {
		return nil, apperrors.NewExternalServiceError("keycloak",
			fmt.Errorf("introspection returned status %d: %s", resp.StatusCode, string(resp.Body)))
	}

	var info tokenInfo
	if err := json.Unmarshal(resp.Body, &info); err != nil {
		return nil, apperrors.NewExternalServiceError("keycloak", fmt.Errorf("decode introspection response: %w", err))
	}
	if !info.Active || info.Sub == "" {
		return nil, apperrors.NewUnauthenticatedError("token is not active")
	}

	id := &Identity{ID: info.Sub, Email: info.Email}
	if len(info.RealmAccess.Roles) > 0 {
		id.Roles = info.RealmAccess.Roles
	}
	return id, nil
}
