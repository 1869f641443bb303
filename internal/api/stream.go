// internal/api/stream.go
package api

import (
	"io"
	"time"

	"github.com/gin-gonic/gin"

	"notification-workers/internal/identity"
	"notification-workers/internal/live"
)

// stream pushes live store snapshots as server-sent events until the
// client goes away. Each connection owns its store and session.
func (s *Server) stream(c *gin.Context) {
	ctx := c.Request.Context()
	user := currentIdentity(c)

	store := s.newLive()
	session := identity.NewSession(nil)

	updates := make(chan live.Snapshot, 1)
	removeListener := store.OnUpdate(func(snap live.Snapshot) {
		for {
			select {
			case updates <- snap:
				return
			default:
			}
			select {
			case <-updates:
			default:
			}
		}
	})
	removeAuth := session.OnChange(func(u *identity.Identity) {
		if err := store.OnAuthStateChange(ctx, u); err != nil {
			s.log.Warn("live store start failed", map[string]interface{}{"userId": user.ID, "error": err})
		}
	})
	defer func() {
		removeAuth()
		removeListener()
		store.Stop()
	}()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	session.SetUser(user)

	ticker := time.NewTicker(s.keepAlive)
	defer ticker.Stop()

	var lastVersion uint64
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case snap := <-updates:
			if snap.Version <= lastVersion {
				return true
			}
			lastVersion = snap.Version
			c.SSEvent("snapshot", snap)
			return true
		case <-ticker.C:
			c.SSEvent("ping", gin.H{"at": time.Now().UTC().Format(time.RFC3339)})
			return true
		}
	})
}
