package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"dasa-hub/internal/api/response"
	"dasa-hub/internal/model"
)

type MaintenanceSource interface {
	MaintenanceEnabled() bool
}

// MaintenanceMode answers 503 to everyone but admins while the site setting
// is on. Paths in exempt (exact match on the route template) stay open so
// clients can still read the settings that explain the outage.
func MaintenanceMode(source MaintenanceSource, auth *Auth, exempt ...string) gin.HandlerFunc {
	open := make(map[string]struct{}, len(exempt))
	for _, path := range exempt {
		open[strings.TrimSpace(path)] = struct{}{}
	}

	return func(c *gin.Context) {
		if source == nil || !source.MaintenanceEnabled() {
			c.Next()
			return
		}
		if _, ok := open[c.FullPath()]; ok {
			c.Next()
			return
		}

		if claims, ok := GetClaims(c); ok && strings.EqualFold(claims.Role, model.RoleAdmin) {
			c.Next()
			return
		}
		if claims, err := auth.parse(c); err == nil && strings.EqualFold(claims.Role, model.RoleAdmin) {
			c.Set(claimsContextKey, claims)
			c.Next()
			return
		}

		response.Fail(c, 503, response.ErrSystemMaintenance, "system maintenance")
		c.Abort()
	}
}
