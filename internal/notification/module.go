// Package notification alerts human operators when a conversation leaves
// automation. It subscribes to funnel events, so the funnel never needs to
// know about email providers or the WhatsApp gateway.
package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"whatsapp_sdr_backend/internal/email"
	"whatsapp_sdr_backend/internal/events"
	"whatsapp_sdr_backend/platform/logger"
)

const maxAlertSummaryRunes = 700

// WhatsAppSender sends WhatsApp messages.
type WhatsAppSender interface {
	SendMessage(ctx context.Context, phoneNumber string, message string) error
}

// Module handles notification-related domain events.
type Module struct {
	sender   email.Sender
	whatsapp WhatsAppSender
	log      *logger.Logger
}

// New creates the notification module. whatsapp may be nil, in which case
// only email alerts are sent.
func New(sender email.Sender, whatsapp WhatsAppSender, log *logger.Logger) *Module {
	if sender == nil {
		sender = email.NoopSender{}
	}
	return &Module{sender: sender, whatsapp: whatsapp, log: log}
}

func (m *Module) Name() string { return "notification" }

// RegisterHandlers subscribes to the funnel events this module reacts to.
func (m *Module) RegisterHandlers(bus *events.InMemoryBus) {
	bus.Subscribe(events.ConversationHandedOff{}.EventName(), m)
	m.log.Info("notification module registered event handlers")
}

// Handle routes events to the appropriate handler method.
func (m *Module) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.ConversationHandedOff:
		return m.handleConversationHandedOff(ctx, e)
	default:
		m.log.Debug("notification module ignoring event", "event", event.EventName())
		return nil
	}
}

func (m *Module) handleConversationHandedOff(ctx context.Context, e events.ConversationHandedOff) error {
	if e.HandoffEmail == "" && e.HandoffPhone == "" {
		m.log.Info("handoff without configured alert recipient", "conversationId", e.ConversationID, "personaId", e.PersonaID)
		return nil
	}

	var errs []error
	if e.HandoffEmail != "" {
		if err := m.sender.SendHandoffAlert(ctx, e.HandoffEmail, toAlert(e)); err != nil {
			m.log.Error("failed to send handoff email",
				"eventId", e.ID,
				"conversationId", e.ConversationID,
				"email", e.HandoffEmail,
				"error", err,
			)
			errs = append(errs, err)
		} else {
			m.log.Info("handoff email sent", "conversationId", e.ConversationID, "email", e.HandoffEmail)
		}
	}

	if e.HandoffPhone != "" && m.whatsapp != nil {
		if err := m.whatsapp.SendMessage(ctx, e.HandoffPhone, whatsAppAlert(e)); err != nil {
			m.log.Error("failed to send handoff whatsapp alert",
				"eventId", e.ID,
				"conversationId", e.ConversationID,
				"error", err,
			)
			errs = append(errs, err)
		} else {
			m.log.Info("handoff whatsapp alert sent", "conversationId", e.ConversationID)
		}
	}

	return errors.Join(errs...)
}

func toAlert(e events.ConversationHandedOff) email.HandoffAlert {
	return email.HandoffAlert{
		PersonaName:    e.PersonaName,
		ConversationID: e.ConversationID,
		LeadName:       e.LeadName,
		Stage:          e.StageID,
		Reason:         e.Reason,
		Summary:        e.Summary,
		LastMessage:    e.LastMessage,
	}
}

// whatsAppAlert renders the plain-text operator alert.
func whatsAppAlert(e events.ConversationHandedOff) string {
	lead := e.LeadName
	if lead == "" {
		lead = e.ConversationID
	}

	var b strings.Builder
	fmt.Fprintf(&b, "*Handoff* (%s)\n", e.PersonaName)
	fmt.Fprintf(&b, "Lead: %s\n", lead)
	if e.LeadName != "" {
		fmt.Fprintf(&b, "Number: %s\n", e.ConversationID)
	}
	fmt.Fprintf(&b, "Reason: %s\n", e.Reason)
	if summary := truncateRunes(strings.TrimSpace(e.Summary), maxAlertSummaryRunes); summary != "" {
		fmt.Fprintf(&b, "\n%s", summary)
	}
	return strings.TrimSpace(b.String())
}

func truncateRunes(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit]) + "…"
}
