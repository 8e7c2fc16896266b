package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// TenantIDKey is the gin context key for the resolved tenant ID.
	TenantIDKey = "tenant_id"

	// TenantIDHeader carries the tenant context on every request. The core
	// runs alongside the dashboard on a trusted local surface;
	// authentication of the surrounding app is out of scope here.
	TenantIDHeader = "X-Tenant-ID"
)

// TenantMiddleware resolves and validates the tenant context. Every data
// route requires it; requests without a well-formed tenant ID never reach a
// store.
func TenantMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID := c.GetHeader(TenantIDHeader)
		if tenantID == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"code":    "missing_tenant",
				"message": "X-Tenant-ID header is required",
			})

			return
		}

		if _, err := uuid.Parse(tenantID); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"code":    "invalid_tenant",
				"message": "X-Tenant-ID must be a UUID",
			})

			return
		}

		c.Set(TenantIDKey, tenantID)
		c.Next()
	}
}
