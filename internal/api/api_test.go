// internal/api/api_test.go
package api

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "notification-workers/internal/common/errors"
	"notification-workers/internal/common/logger"
	"notification-workers/internal/feed"
	"notification-workers/internal/identity"
	"notification-workers/internal/live"
	"notification-workers/internal/notification"
)

type fakeProvider struct{}

func (fakeProvider) Authenticate(_ context.Context, token string) (*identity.Identity, error) {
	switch token {
	case "good":
		return &identity.Identity{ID: "u1", Email: "u1@example.com"}, nil
	case "service":
		return &identity.Identity{ID: "svc-billing", Roles: []string{DefaultInternalRole}}, nil
	default:
		return nil, apperrors.NewUnauthenticatedError("token is not active")
	}
}

type fakeService struct {
	mu sync.Mutex

	sendErr  error
	listErr  error
	items    []notification.Notification
	filter   notification.ListFilter
	page     notification.Page
	readIDs  []string
	allOrg   *string
	deleted  []string
	patch    notification.PreferencesPatch
	emailOn  *bool
	sentTo   string
	sentType notification.Type
	bulk     []notification.BulkItem
}

func (f *fakeService) Send(_ context.Context, userID string, t notification.Type, _ map[string]interface{}, _ ...notification.SendOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sentTo, f.sentType = userID, t
	return f.sendErr
}

func (f *fakeService) SendBulk(_ context.Context, items []notification.BulkItem) {
	f.bulk = items
}

func (f *fakeService) UpdateEmailPreferences(_ context.Context, _ string, enabled bool) error {
	f.emailOn = &enabled
	return nil
}

func (f *fakeService) GetUserNotifications(_ context.Context, _ string, filter notification.ListFilter, page notification.Page) ([]notification.Notification, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filter, f.page = filter, page
	if f.listErr != nil {
		return nil, 0, f.listErr
	}
	return f.items, len(f.items), nil
}

func (f *fakeService) GetUnreadCount(context.Context, string, *string) (int, error) {
	return 3, nil
}

func (f *fakeService) MarkRead(_ context.Context, _ string, ids []string) (int, error) {
	f.readIDs = ids
	return len(ids), nil
}

func (f *fakeService) MarkAllRead(_ context.Context, _ string, org *string) error {
	f.allOrg = org
	return nil
}

func (f *fakeService) DeleteNotifications(_ context.Context, _ string, ids []string) error {
	f.deleted = ids
	return nil
}

func (f *fakeService) GetPreferences(_ context.Context, userID string) (*notification.Preferences, error) {
	p := notification.DefaultPreferences(userID)
	return &p, nil
}

func (f *fakeService) UpsertPreferences(_ context.Context, userID string, patch notification.PreferencesPatch) (*notification.Preferences, error) {
	f.patch = patch
	p := notification.DefaultPreferences(userID)
	if patch.EmailEnabled != nil {
		p.EmailEnabled = *patch.EmailEnabled
	}
	return &p, nil
}

type nopSubscription struct{}

func (nopSubscription) Unsubscribe() {}

type nopSubscriber struct{}

func (nopSubscriber) Subscribe(context.Context, string, feed.Filter, feed.Handler) (feed.Subscription, error) {
	return nopSubscription{}, nil
}

func newTestServer(t *testing.T, svc *fakeService) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logger.NewTestLogger(t)
	newLive := func() *live.Store { return live.NewStore(svc, nopSubscriber{}, log, 10) }
	return NewServer(svc, fakeProvider{}, newLive, log, WithKeepAlive(time.Hour)).Router()
}

func do(r http.Handler, method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error errorBody `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Error.Code
}

func TestAuthMiddleware(t *testing.T) {
	r := newTestServer(t, &fakeService{})

	tests := []struct {
		name   string
		path   string
		token  string
		status int
	}{
		{"missing token", "/api/v1/notifications/unread-count", "", http.StatusUnauthorized},
		{"rejected token", "/api/v1/notifications/unread-count", "bad", http.StatusUnauthorized},
		{"bearer token", "/api/v1/notifications/unread-count", "good", http.StatusOK},
		{"query token", "/api/v1/notifications/unread-count?access_token=good", "", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(r, http.MethodGet, tt.path, "", tt.token)
			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusUnauthorized {
				assert.Equal(t, "UNAUTHENTICATED", errorCode(t, w))
			}
		})
	}
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", bearerToken("Bearer abc"))
	assert.Equal(t, "abc", bearerToken("bearer  abc"))
	assert.Empty(t, bearerToken("Basic abc"))
	assert.Empty(t, bearerToken("abc"))
}

func TestListNotifications(t *testing.T) {
	svc := &fakeService{items: []notification.Notification{{ID: "n1", Data: map[string]interface{}{}}}}
	r := newTestServer(t, svc)

	w := do(r, http.MethodGet,
		"/api/v1/notifications?unread_only=true&type=system_alert,billing_reminder&category=billing&organization_id=o1&limit=5&offset=10",
		"", "good")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Notifications []notification.Notification `json:"notifications"`
		Total         int                         `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.Notifications, 1)
	assert.Equal(t, 1, body.Total)

	assert.True(t, svc.filter.UnreadOnly)
	assert.Equal(t, []notification.Type{notification.TypeSystemAlert, notification.TypeBillingReminder}, svc.filter.Types)
	assert.Equal(t, notification.CategoryBilling, svc.filter.Category)
	require.NotNil(t, svc.filter.OrganizationID)
	assert.Equal(t, "o1", *svc.filter.OrganizationID)
	assert.Equal(t, notification.Page{Limit: 5, Offset: 10}, svc.page)
}

func TestListNotifications_ServiceError(t *testing.T) {
	svc := &fakeService{listErr: apperrors.NewInvalidTypeError("bogus")}
	r := newTestServer(t, svc)

	w := do(r, http.MethodGet, "/api/v1/notifications?type=bogus", "", "good")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_NOTIFICATION_TYPE", errorCode(t, w))
}

func TestMutations(t *testing.T) {
	svc := &fakeService{}
	r := newTestServer(t, svc)

	w := do(r, http.MethodPost, "/api/v1/notifications/read", `{"ids":["n1","n2"]}`, "good")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, []string{"n1", "n2"}, svc.readIDs)

	w = do(r, http.MethodPost, "/api/v1/notifications/read", `{"ids":[]}`, "good")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(t, w))

	w = do(r, http.MethodPost, "/api/v1/notifications/read-all", "", "good")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Nil(t, svc.allOrg)

	w = do(r, http.MethodPost, "/api/v1/notifications/read-all", `{"organizationId":"o1"}`, "good")
	assert.Equal(t, http.StatusNoContent, w.Code)
	require.NotNil(t, svc.allOrg)
	assert.Equal(t, "o1", *svc.allOrg)

	w = do(r, http.MethodDelete, "/api/v1/notifications", `{"ids":["n3"]}`, "good")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, []string{"n3"}, svc.deleted)
}

func TestPreferences(t *testing.T) {
	svc := &fakeService{}
	r := newTestServer(t, svc)

	w := do(r, http.MethodGet, "/api/v1/preferences", "", "good")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"frequency":"immediate"`)

	w = do(r, http.MethodPatch, "/api/v1/preferences", `{"email_enabled":false}`, "good")
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, svc.patch.EmailEnabled)
	assert.False(t, *svc.patch.EmailEnabled)
	assert.Nil(t, svc.patch.PushEnabled)

	w = do(r, http.MethodPut, "/api/v1/preferences/email", `{}`, "good")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPut, "/api/v1/preferences/email", `{"enabled":true}`, "good")
	assert.Equal(t, http.StatusNoContent, w.Code)
	require.NotNil(t, svc.emailOn)
	assert.True(t, *svc.emailOn)
}

func TestInternalSend(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		sendErr error
		status  int
		code    string
	}{
		{"accepted", `{"userId":"u2","type":"system_alert","data":{"title":"x"}}`, nil, http.StatusAccepted, ""},
		{"missing type", `{"userId":"u2"}`, nil, http.StatusBadRequest, "VALIDATION_FAILED"},
		{"invalid type", `{"userId":"u2","type":"nope"}`, apperrors.NewInvalidTypeError("nope"), http.StatusBadRequest, "INVALID_NOTIFICATION_TYPE"},
		{"missing template", `{"userId":"u2","type":"user_action"}`, apperrors.NewTemplateNotFoundError("user_action"), http.StatusUnprocessableEntity, "TEMPLATE_NOT_FOUND"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{sendErr: tt.sendErr}
			r := newTestServer(t, svc)

			w := do(r, http.MethodPost, "/internal/notifications/send", tt.body, "service")
			assert.Equal(t, tt.status, w.Code)
			if tt.code != "" {
				assert.Equal(t, tt.code, errorCode(t, w))
				return
			}
			assert.Equal(t, "u2", svc.sentTo)
			assert.Equal(t, notification.TypeSystemAlert, svc.sentType)
		})
	}
}

func TestInternalBulk(t *testing.T) {
	svc := &fakeService{}
	r := newTestServer(t, svc)

	w := do(r, http.MethodPost, "/internal/notifications/bulk",
		`{"items":[{"userId":"a","type":"system_alert"},{"userId":"b","type":"system_alert"}]}`, "service")
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.JSONEq(t, `{"status":"completed","count":2}`, w.Body.String())
	assert.Len(t, svc.bulk, 2)
}

func TestInternalRoutes_RequireServiceRole(t *testing.T) {
	svc := &fakeService{}
	r := newTestServer(t, svc)

	tests := []struct {
		name   string
		path   string
		body   string
		token  string
		status int
		code   string
	}{
		{"user cannot send", "/internal/notifications/send", `{"userId":"victim","type":"security_alert","data":{"message":"reset here"}}`, "good", http.StatusForbidden, "FORBIDDEN"},
		{"user cannot bulk send", "/internal/notifications/bulk", `{"items":[{"userId":"victim","type":"system_alert"}]}`, "good", http.StatusForbidden, "FORBIDDEN"},
		{"anonymous", "/internal/notifications/send", `{"userId":"victim","type":"system_alert"}`, "", http.StatusUnauthorized, "UNAUTHENTICATED"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(r, http.MethodPost, tt.path, tt.body, tt.token)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, errorCode(t, w))
		})
	}
	assert.Empty(t, svc.sentTo)
	assert.Empty(t, svc.bulk)
}

func TestInternalRoutes_CustomRole(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &fakeService{}
	log := logger.NewTestLogger(t)
	r := NewServer(svc, fakeProvider{}, nil, log, WithInternalRole("billing-service")).Router()

	w := do(r, http.MethodPost, "/internal/notifications/send", `{"userId":"u2","type":"system_alert"}`, "service")
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, statusFor(apperrors.ErrCodeNotFound))
	assert.Equal(t, http.StatusForbidden, statusFor(apperrors.ErrCodeForbidden))
	assert.Equal(t, http.StatusBadGateway, statusFor("EXTERNAL_SERVICE_ERROR"))
	assert.Equal(t, http.StatusInternalServerError, statusFor(apperrors.ErrCodeDatabaseQueryFailed))
}

func TestStream_SendsReadySnapshot(t *testing.T) {
	svc := &fakeService{items: []notification.Notification{{ID: "n1", UserID: "u1", Data: map[string]interface{}{}}}}
	srv := httptest.NewServer(newTestServer(t, svc))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/notifications/stream?access_token=good", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	var snap live.Snapshot
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data:")), &snap))
		if snap.State == live.StateReady {
			break
		}
	}
	require.Equal(t, live.StateReady, snap.State)
	require.Len(t, snap.Notifications, 1)
	assert.Equal(t, "n1", snap.Notifications[0].ID)
	assert.Equal(t, 1, snap.UnreadCount)
}
