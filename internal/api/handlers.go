// internal/api/handlers.go
package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"notification-workers/internal/notification"
)

type listQuery struct {
	UnreadOnly     bool     `form:"unread_only"`
	Types          []string `form:"type"`
	Category       string   `form:"category"`
	OrganizationID string   `form:"organization_id"`
	Limit          int      `form:"limit"`
	Offset         int      `form:"offset"`
}

type idsRequest struct {
	IDs []string `json:"ids" binding:"required,min=1,dive,required"`
}

type markAllRequest struct {
	OrganizationID string `json:"organizationId"`
}

type emailPreferenceRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

type sendRequest struct {
	UserID         string                 `json:"userId" binding:"required"`
	Type           notification.Type      `json:"type" binding:"required"`
	Data           map[string]interface{} `json:"data"`
	OrganizationID string                 `json:"organizationId"`
}

type bulkRequest struct {
	Items []notification.BulkItem `json:"items" binding:"required,min=1"`
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (s *Server) listNotifications(c *gin.Context) {
	var q listQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err)
		return
	}

	filter := notification.ListFilter{
		UnreadOnly:     q.UnreadOnly,
		Category:       notification.Category(q.Category),
		OrganizationID: optionalString(q.OrganizationID),
	}
	for _, raw := range q.Types {
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				filter.Types = append(filter.Types, notification.Type(t))
			}
		}
	}

	id := currentIdentity(c)
	items, total, err := s.service.GetUserNotifications(c.Request.Context(), id.ID, filter,
		notification.Page{Limit: q.Limit, Offset: q.Offset})
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"notifications": items,
		"count":         len(items),
		"total":         total,
		"offset":        q.Offset,
	})
}

func (s *Server) unreadCount(c *gin.Context) {
	id := currentIdentity(c)
	n, err := s.service.GetUnreadCount(c.Request.Context(), id.ID, optionalString(c.Query("organization_id")))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": n})
}

func (s *Server) markRead(c *gin.Context) {
	var req idsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	id := currentIdentity(c)
	if _, err := s.service.MarkRead(c.Request.Context(), id.ID, req.IDs); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) markAllRead(c *gin.Context) {
	var req markAllRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}
	id := currentIdentity(c)
	if err := s.service.MarkAllRead(c.Request.Context(), id.ID, optionalString(req.OrganizationID)); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) deleteNotifications(c *gin.Context) {
	var req idsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	id := currentIdentity(c)
	if err := s.service.DeleteNotifications(c.Request.Context(), id.ID, req.IDs); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) getPreferences(c *gin.Context) {
	id := currentIdentity(c)
	p, err := s.service.GetPreferences(c.Request.Context(), id.ID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) patchPreferences(c *gin.Context) {
	var patch notification.PreferencesPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, err)
		return
	}
	id := currentIdentity(c)
	p, err := s.service.UpsertPreferences(c.Request.Context(), id.ID, patch)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) putEmailPreference(c *gin.Context) {
	var req emailPreferenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	id := currentIdentity(c)
	if err := s.service.UpdateEmailPreferences(c.Request.Context(), id.ID, *req.Enabled); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// send accepts the request once the service ran; a dropped notification is
// indistinguishable from a stored one here.
func (s *Server) send(c *gin.Context) {
	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	err := s.service.Send(c.Request.Context(), req.UserID, req.Type, req.Data,
		notification.WithOrganization(req.OrganizationID))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

func (s *Server) sendBulk(c *gin.Context) {
	var req bulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	s.service.SendBulk(c.Request.Context(), req.Items)
	c.JSON(http.StatusAccepted, gin.H{"status": "completed", "count": len(req.Items)})
}
