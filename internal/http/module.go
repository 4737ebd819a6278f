// Package http provides HTTP server infrastructure including the Module interface
// that all domain modules must implement for route registration.
package http

import (
	"whatsapp_sdr_backend/platform/config"

	"github.com/gin-gonic/gin"
)

// Module represents a bounded context that can register its HTTP routes.
type Module interface {
	// Name returns the module's identifier for logging purposes.
	Name() string
	// RegisterRoutes mounts the module's routes on the provided router group.
	RegisterRoutes(ctx *RouterContext)
}

// RouterContext provides shared dependencies for module route registration.
type RouterContext struct {
	// Engine is the root Gin engine for modules that need engine-level access.
	Engine *gin.Engine
	// V1 is the /api/v1 route group. Machine-to-machine routes attach their own
	// shared-secret middleware here.
	V1 *gin.RouterGroup
	// Admin is the operator-only route group under /api/v1/admin.
	Admin *gin.RouterGroup
	// Config is the JWT configuration for auth middleware (scoped access).
	Config config.JWTConfig
}
