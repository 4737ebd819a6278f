package whatsapp

import (
	"context"
	"net/http"

	"whatsapp_sdr_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
)

// Receiver accepts normalized inbound messages.
type Receiver interface {
	Receive(ctx context.Context, msg InboundMessage) (bool, error)
}

// Handler handles the GOWA message webhook.
type Handler struct {
	inbox  Receiver
	region string
}

func NewHandler(inbox Receiver, region string) *Handler {
	return &Handler{inbox: inbox, region: region}
}

// HandleMessage stores an inbound lead message.
// POST /api/v1/webhook/whatsapp
func (h *Handler) HandleMessage(c *gin.Context) {
	var body gowaWebhook
	if err := c.ShouldBindJSON(&body); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request", nil)
		return
	}

	msg, ok := body.toInbound(h.region)
	if !ok {
		httpkit.OK(c, gin.H{"status": "ignored"})
		return
	}

	accepted, err := h.inbox.Receive(c.Request.Context(), msg)
	if httpkit.HandleError(c, err) {
		return
	}
	status := "accepted"
	if !accepted {
		status = "duplicate"
	}
	httpkit.OK(c, gin.H{"status": status})
}
