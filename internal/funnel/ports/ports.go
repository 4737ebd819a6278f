// Package ports defines the interfaces the funnel engine depends on. Adapters in
// agent, repository and the platform layer implement them.
package ports

import (
	"context"

	"whatsapp_sdr_backend/internal/funnel/domain"

	"github.com/google/uuid"
)

// OracleRequest is everything the classifier sees for one turn.
type OracleRequest struct {
	ConversationID  string
	IncomingMessage string
	History         []domain.HistoryEntry
	CurrentStage    domain.Stage
	Resources       domain.Resources
	PersonaName     string
	// Playbook is the persona's playbook text; nil selects the built-in default.
	Playbook *string
	LeadName *string
}

// Oracle classifies a turn. Errors wrapping domain.ErrMalformedOutput mean the
// model answered but not in the expected shape.
type Oracle interface {
	Classify(ctx context.Context, req OracleRequest) (domain.Classification, error)
}

// PersonaProvider resolves the persona for a turn. A nil id selects the default
// persona. It returns apperr NotFound when no persona applies.
type PersonaProvider interface {
	ResolvePersona(ctx context.Context, id *uuid.UUID) (domain.Persona, error)
}

// ConversationStore holds the authoritative funnel stage per conversation.
type ConversationStore interface {
	// GetConversation returns apperr NotFound when no row exists.
	GetConversation(ctx context.Context, id string) (domain.Conversation, error)
	// SaveStage performs the compare-and-set write and returns domain.ErrStaleStage
	// when the expectation no longer holds.
	SaveStage(ctx context.Context, update domain.StageUpdate) error
}

// AuditWriter appends decision log rows.
type AuditWriter interface {
	AppendDecision(ctx context.Context, entry domain.AuditEntry) error
}
