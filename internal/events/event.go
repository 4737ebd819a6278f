// Package events defines the funnel's domain events and re-exports the platform
// bus so modules only import this package.
package events

import (
	"whatsapp_sdr_backend/platform/events"
	"whatsapp_sdr_backend/platform/logger"

	"github.com/google/uuid"
)

type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
	InMemoryBus = events.InMemoryBus
)

var NewBaseEvent = events.NewBaseEvent

func NewInMemoryBus(log *logger.Logger) *InMemoryBus {
	return events.NewInMemoryBus(log)
}

// =============================================================================
// Funnel Domain Events
// =============================================================================

// DecisionEmitted is published after every handled turn.
type DecisionEmitted struct {
	BaseEvent
	ConversationID string `json:"conversationId"`
	FromStageID    string `json:"fromStageId"`
	StageID        string `json:"stageId"`
	Rule           string `json:"rule"`
	NeedsHuman     bool   `json:"needsHuman"`
	Fallback       string `json:"fallback,omitempty"`
}

func (e DecisionEmitted) EventName() string { return "funnel.decision.emitted" }

// ConversationHandedOff is published once, on the turn a conversation leaves automation.
type ConversationHandedOff struct {
	BaseEvent
	ConversationID string    `json:"conversationId"`
	PersonaID      uuid.UUID `json:"personaId"`
	PersonaName    string    `json:"personaName"`
	StageID        string    `json:"stageId"`
	LeadName       string    `json:"leadName,omitempty"`
	Reason         string    `json:"reason"`
	Summary        string    `json:"summary"`
	LastMessage    string    `json:"lastMessage"`
	HandoffEmail   string    `json:"handoffEmail,omitempty"`
	HandoffPhone   string    `json:"handoffPhone,omitempty"`
}

func (e ConversationHandedOff) EventName() string { return "funnel.conversation.handed_off" }
