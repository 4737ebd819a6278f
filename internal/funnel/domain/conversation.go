package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Persona selects the playbook and resource links used for a conversation.
type Persona struct {
	ID                uuid.UUID
	Name              string
	Playbook          *string
	VideoURL          *string
	SiteURL           *string
	PaymentURL        *string
	FallbackGreeting  *string
	HandoffEmail      *string
	HandoffPhone      *string
	AutomationEnabled bool
	IsDefault         bool
	UpdatedAt         time.Time
}

// Resources returns the persona's shareable links.
func (p Persona) Resources() Resources {
	return Resources{VideoURL: p.VideoURL, SiteURL: p.SiteURL, PaymentURL: p.PaymentURL}
}

// DefaultFallbackGreeting is sent when the classifier fails and the persona has no greeting.
const DefaultFallbackGreeting = "Hi! Thanks for your message. How can I help you today?"

// Greeting returns the persona's fallback greeting or the built-in one.
func (p Persona) Greeting() string {
	if p.FallbackGreeting != nil && strings.TrimSpace(*p.FallbackGreeting) != "" {
		return strings.TrimSpace(*p.FallbackGreeting)
	}
	return DefaultFallbackGreeting
}

// Conversation is the persisted funnel state of one lead.
type Conversation struct {
	ID             string
	PersonaID      *uuid.UUID
	CurrentStageID *string
	LeadName       *string
	NeedsHuman     bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// StageUpdate is a compare-and-set write of a conversation's stage. The write only
// succeeds when the stored stage still equals ExpectedStageID, or when Create is set
// and no row exists yet.
type StageUpdate struct {
	ConversationID  string
	PersonaID       *uuid.UUID
	Create          bool
	ExpectedStageID *string
	NewStageID      string
	LeadName        *string
	NeedsHuman      bool
}

// AuditEntry is one append-only decision log row.
type AuditEntry struct {
	ID                    uuid.UUID `json:"id"`
	ConversationID        string    `json:"conversationId"`
	IncomingMessage       string    `json:"incomingMessage"`
	OutgoingMessage       string    `json:"outgoingMessage"`
	ClassificationSummary string    `json:"classificationSummary"`
	LabelID               string    `json:"labelId"`
	Confidence            *float64  `json:"confidence"`
	NeedsHuman            bool      `json:"needsHuman"`
	CreatedAt             time.Time `json:"createdAt"`
}

// Message is one stored WhatsApp message of a conversation.
type Message struct {
	ID             int64
	ConversationID string
	Direction      Direction
	Content        string
	ExternalID     *string
	ProcessedAt    *time.Time
	CreatedAt      time.Time
}

// PersonaUpdate carries the admin-editable persona fields. Nil fields are left unchanged.
type PersonaUpdate struct {
	ID                uuid.UUID
	Name              *string
	Playbook          *string
	VideoURL          *string
	SiteURL           *string
	PaymentURL        *string
	FallbackGreeting  *string
	HandoffEmail      *string
	HandoffPhone      *string
	AutomationEnabled *bool
}

// DecisionFilter narrows an audit log listing.
type DecisionFilter struct {
	ConversationID string
	NeedsHuman     *bool
	Limit          int
	Offset         int
}
