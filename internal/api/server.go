// internal/api/server.go
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"notification-workers/internal/common/logger"
	"notification-workers/internal/identity"
	"notification-workers/internal/live"
	"notification-workers/internal/notification"
)

// Service is the notification surface the API exposes.
type Service interface {
	Send(ctx context.Context, userID string, t notification.Type, data map[string]interface{}, opts ...notification.SendOption) error
	SendBulk(ctx context.Context, items []notification.BulkItem)
	UpdateEmailPreferences(ctx context.Context, userID string, enabled bool) error

	GetUserNotifications(ctx context.Context, userID string, filter notification.ListFilter, page notification.Page) ([]notification.Notification, int, error)
	GetUnreadCount(ctx context.Context, userID string, organizationID *string) (int, error)
	MarkRead(ctx context.Context, userID string, ids []string) (int, error)
	MarkAllRead(ctx context.Context, userID string, organizationID *string) error
	DeleteNotifications(ctx context.Context, userID string, ids []string) error
	GetPreferences(ctx context.Context, userID string) (*notification.Preferences, error)
	UpsertPreferences(ctx context.Context, userID string, patch notification.PreferencesPatch) (*notification.Preferences, error)
}

// DefaultInternalRole is the realm role service accounts carry to send
// notifications to arbitrary users.
const DefaultInternalRole = "notification-sender"

// LiveFactory builds one live store per stream connection.
type LiveFactory func() *live.Store

type Server struct {
	service      Service
	identity     identity.Provider
	newLive      LiveFactory
	log          logger.Logger
	keepAlive    time.Duration
	internalRole string
}

type Option func(*Server)

// WithKeepAlive sets the interval of stream heartbeats.
func WithKeepAlive(d time.Duration) Option {
	return func(s *Server) { s.keepAlive = d }
}

// WithInternalRole sets the role required on /internal routes.
func WithInternalRole(role string) Option {
	return func(s *Server) {
		if role != "" {
			s.internalRole = role
		}
	}
}

func NewServer(service Service, provider identity.Provider, newLive LiveFactory, log logger.Logger, opts ...Option) *Server {
	s := &Server{
		service:   service,
		identity:  provider,
		newLive:   newLive,
		log:       log.WithFields(map[string]interface{}{"component": "http-api"}),
		keepAlive: 25 * time.Second,

		internalRole: DefaultInternalRole,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(s.log))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	v1 := r.Group("/api/v1", AuthMiddleware(s.identity))
	{
		v1.GET("/notifications", s.listNotifications)
		v1.GET("/notifications/unread-count", s.unreadCount)
		v1.GET("/notifications/stream", s.stream)
		v1.POST("/notifications/read", s.markRead)
		v1.POST("/notifications/read-all", s.markAllRead)
		v1.DELETE("/notifications", s.deleteNotifications)
		v1.GET("/preferences", s.getPreferences)
		v1.PATCH("/preferences", s.patchPreferences)
		v1.PUT("/preferences/email", s.putEmailPreference)
	}

	internal := r.Group("/internal/notifications", AuthMiddleware(s.identity), RequireRole(s.internalRole))
	{
		internal.POST("/send", s.send)
		internal.POST("/bulk", s.sendBulk)
	}

	return r
}

func requestLogger(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("request", map[string]interface{}{
			"method":     c.Request.Method,
			"path":       c.FullPath(),
			"status":     c.Writer.Status(),
			"durationMs": time.Since(start).Milliseconds(),
		})
	}
}
