package http

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kwayummari/ghf-approval-engine/internal/domain/workflow"
)

// Headers set by the session gateway in front of the service
const (
	HeaderActorID          = "X-Actor-ID"
	HeaderActorRoles       = "X-Actor-Roles"
	HeaderActorPermissions = "X-Actor-Permissions"
)

const actorContextKey = "approval.actor"

// loggingMiddleware logs one line per request
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		s.logger.Info("HTTP request",
			"method", method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
			"client_ip", c.ClientIP(),
			"actor_id", c.GetHeader(HeaderActorID),
		)
	}
}

// actorMiddleware reads the caller identity from gateway headers.
// Requests without X-Actor-ID carry no actor; handlers that need one reject them.
func actorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(HeaderActorID))
		if id != "" {
			c.Set(actorContextKey, workflow.Actor{
				ID:          id,
				Roles:       splitHeaderList(c.GetHeader(HeaderActorRoles)),
				Permissions: splitHeaderList(c.GetHeader(HeaderActorPermissions)),
			})
		}
		c.Next()
	}
}

// actorFrom returns the actor stored by actorMiddleware
func actorFrom(c *gin.Context) (workflow.Actor, bool) {
	v, ok := c.Get(actorContextKey)
	if !ok {
		return workflow.Actor{}, false
	}
	actor, ok := v.(workflow.Actor)
	return actor, ok
}

func splitHeaderList(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
