// Package funnel provides the SDR funnel bounded context: stage registry,
// progression engine, persistence and its HTTP surface.
package funnel

import (
	"time"

	"whatsapp_sdr_backend/internal/events"
	"whatsapp_sdr_backend/internal/funnel/handler"
	"whatsapp_sdr_backend/internal/funnel/ports"
	"whatsapp_sdr_backend/internal/funnel/repository"
	"whatsapp_sdr_backend/internal/funnel/service"
	apphttp "whatsapp_sdr_backend/internal/http"
	"whatsapp_sdr_backend/platform/config"
	"whatsapp_sdr_backend/platform/httpkit"
	"whatsapp_sdr_backend/platform/lock"
	"whatsapp_sdr_backend/platform/logger"
	"whatsapp_sdr_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

const personaCacheTTL = 30 * time.Second

// ModuleConfig is the configuration the funnel module reads.
type ModuleConfig interface {
	config.AgentConfig
	GetPhoneDefaultRegion() string
}

// Module is the funnel bounded context module implementing http.Module.
type Module struct {
	handler     *handler.Handler
	engine      *service.Engine
	admin       *service.Admin
	repo        *repository.Repo
	agentAPIKey string
	limiter     *httpkit.IPRateLimiter
}

// NewModule wires repository, persona cache, engine and handlers.
func NewModule(pool *pgxpool.Pool, bus events.Bus, locker lock.Locker, oracle ports.Oracle, val *validator.Validator, cfg ModuleConfig, log *logger.Logger) *Module {
	repo := repository.New(pool)
	cache := service.NewPersonaCache(repo, personaCacheTTL)

	engine := service.NewEngine(service.Deps{
		Personas:      cache,
		Conversations: repo,
		Audit:         repo,
		Oracle:        oracle,
		Locker:        locker,
		Bus:           bus,
		Log:           log,
		OracleTimeout: cfg.GetOracleTimeout(),
	})
	admin := service.NewAdmin(repo, cache, log)

	return &Module{
		handler:     handler.New(engine, admin, val, cfg.GetPhoneDefaultRegion()),
		engine:      engine,
		admin:       admin,
		repo:        repo,
		agentAPIKey: cfg.GetAgentAPIKey(),
		limiter:     httpkit.NewIngressRateLimiter(log),
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "funnel"
}

// Engine returns the turn engine for the queue worker.
func (m *Module) Engine() *service.Engine {
	return m.engine
}

// Repository returns the repository for direct access by the webhook and worker.
func (m *Module) Repository() *repository.Repo {
	return m.repo
}

// RegisterRoutes mounts funnel routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	agentGroup := ctx.V1.Group("/agent")
	agentGroup.Use(m.limiter.RateLimit(), httpkit.SharedSecretRequired("X-Agent-API-Key", m.agentAPIKey))
	agentGroup.POST("/process", m.handler.Process)

	ctx.Admin.GET("/stages", m.handler.ListStages)
	ctx.Admin.GET("/conversations/:id", m.handler.GetConversation)
	ctx.Admin.GET("/conversations/:id/decisions", m.handler.ListDecisions)
	ctx.Admin.POST("/conversations/:id/release", m.handler.ReleaseConversation)
	ctx.Admin.GET("/personas", m.handler.ListPersonas)
	ctx.Admin.PUT("/personas/:id", m.handler.UpdatePersona)
}
