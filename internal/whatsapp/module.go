// Package whatsapp connects the SDR to a GOWA WhatsApp gateway: the inbound
// message webhook and the outbound text client.
package whatsapp

import (
	apphttp "whatsapp_sdr_backend/internal/http"
	"whatsapp_sdr_backend/platform/config"
	"whatsapp_sdr_backend/platform/httpkit"
	"whatsapp_sdr_backend/platform/logger"
)

// Module is the WhatsApp webhook module implementing http.Module.
type Module struct {
	handler *Handler
	secret  string
	limiter *httpkit.IPRateLimiter
}

func NewModule(store InboxStore, enqueuer TurnEnqueuer, cfg config.WhatsAppConfig, log *logger.Logger) *Module {
	inbox := NewInbox(store, enqueuer, log)
	return &Module{
		handler: NewHandler(inbox, cfg.GetPhoneDefaultRegion()),
		secret:  cfg.GetWhatsAppWebhookSecret(),
		limiter: httpkit.NewIngressRateLimiter(log),
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "whatsapp"
}

// RegisterRoutes mounts the webhook route.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.V1.Group("/webhook")
	group.Use(m.limiter.RateLimit(), SignatureRequired(m.secret))
	group.POST("/whatsapp", m.handler.HandleMessage)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
