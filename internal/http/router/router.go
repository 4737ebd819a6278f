// Package router assembles the gin engine from the registered modules.
package router

import (
	"context"
	"net/http"
	"time"

	apphttp "whatsapp_sdr_backend/internal/http"
	"whatsapp_sdr_backend/platform/httpkit"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

const (
	adminRole          = "admin"
	healthCheckTimeout = 2 * time.Second
)

// New builds the HTTP handler for app.
func New(app *apphttp.App) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(httpkit.RequestID())
	engine.Use(httpkit.RequestLogger(app.Logger))
	engine.Use(httpkit.SecurityHeaders())
	if app.Config.GetCORSAllowAll() || len(app.Config.GetCORSOrigins()) > 0 {
		engine.Use(cors.New(corsConfig(app.Config)))
	}

	engine.GET("/api/health", func(c *gin.Context) {
		if app.Health != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
			defer cancel()
			if err := app.Health.Ping(ctx); err != nil {
				app.Logger.Error("health check failed", "error", err)
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := engine.Group("/api/v1")
	admin := v1.Group("/admin")
	admin.Use(httpkit.AuthRequired(app.Config), httpkit.RequireRole(adminRole))

	routerCtx := &apphttp.RouterContext{
		Engine: engine,
		V1:     v1,
		Admin:  admin,
		Config: app.Config,
	}
	for _, module := range app.Modules {
		module.RegisterRoutes(routerCtx)
		app.Logger.Info("registered module routes", "module", module.Name())
	}

	return engine
}

func corsConfig(cfg apphttp.RouterConfig) cors.Config {
	c := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"X-Request-ID"},
		AllowCredentials: cfg.GetCORSAllowCreds(),
		MaxAge:           12 * time.Hour,
	}
	if cfg.GetCORSAllowAll() {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = cfg.GetCORSOrigins()
	}
	return c
}
