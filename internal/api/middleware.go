package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// ActorHeader carries the caller's identity on mutating requests. The
// registry trusts it as-is; authenticating the value is the job of whatever
// fronts this service.
const ActorHeader = "X-Actor-Id"

const actorKey = "actor"

func ActorRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		a := strings.TrimSpace(c.GetHeader(ActorHeader))
		if a == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing " + ActorHeader + " header",
			})
			return
		}
		c.Set(actorKey, a)
		c.Next()
	}
}

func actor(c *gin.Context) string {
	return c.GetString(actorKey)
}
