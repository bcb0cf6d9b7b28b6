package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"dasa-hub/internal/model"
	"dasa-hub/internal/repository"
)

// AuditLog records a successful request as an audit row. It covers the
// non-admin writes (lost-and-found posts); admin writes are audited by the
// services with old and new values.
func AuditLog(repo repository.AuditRepository, logger *zap.Logger, action, resourceType string) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		if repo == nil {
			c.Next()
			return
		}

		c.Next()

		if c.Writer.Status() >= http.StatusBadRequest {
			return
		}

		claims, _ := GetClaims(c)
		entry := &model.AuditLog{
			UserID:       parseUserID(claims),
			Action:       action,
			ResourceType: strPtr(resourceType),
			ResourceID:   resolveResourceID(c),
			IPAddress:    strPtr(c.ClientIP()),
			UserAgent:    strPtr(c.Request.UserAgent()),
			CreatedAt:    time.Now().UTC(),
		}

		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()

			if err := repo.Create(ctx, entry); err != nil {
				logger.Warn("write request audit failed", zap.String("action", action), zap.Error(err))
			}
		}()
	}
}

const auditResourceIDKey = "audit_resource_id"

// SetAuditResourceID lets a handler name the row it created, which the
// path does not carry yet.
func SetAuditResourceID(c *gin.Context, id string) {
	c.Set(auditResourceIDKey, id)
}

func parseUserID(claims *Claims) *uuid.UUID {
	if claims == nil || claims.UserID == "" {
		return nil
	}

	id, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil
	}
	return &id
}

func resolveResourceID(c *gin.Context) *string {
	if id := c.Param("id"); id != "" {
		return &id
	}
	if id := c.GetString(auditResourceIDKey); id != "" {
		return &id
	}
	return nil
}

func strPtr(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
