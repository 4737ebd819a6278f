package service

import (
	"context"

	"whatsapp_sdr_backend/internal/funnel/domain"
	"whatsapp_sdr_backend/platform/apperr"
	"whatsapp_sdr_backend/platform/logger"

	"github.com/google/uuid"
)

// AdminStore is the storage surface used by operator endpoints.
type AdminStore interface {
	GetConversation(ctx context.Context, id string) (domain.Conversation, error)
	ReleaseConversation(ctx context.Context, id string, stageID string) (domain.Conversation, error)
	ListDecisions(ctx context.Context, f domain.DecisionFilter) ([]domain.AuditEntry, error)
	ListPersonas(ctx context.Context) ([]domain.Persona, error)
	UpdatePersona(ctx context.Context, u domain.PersonaUpdate) (domain.Persona, error)
}

// Admin serves operator reads and persona management.
type Admin struct {
	store AdminStore
	cache *PersonaCache
	log   *logger.Logger
}

// NewAdmin creates the operator service. cache may be nil.
func NewAdmin(store AdminStore, cache *PersonaCache, log *logger.Logger) *Admin {
	return &Admin{store: store, cache: cache, log: log}
}

func (a *Admin) GetConversation(ctx context.Context, id string) (domain.Conversation, error) {
	return a.store.GetConversation(ctx, id)
}

func (a *Admin) ListDecisions(ctx context.Context, f domain.DecisionFilter) ([]domain.AuditEntry, error) {
	if _, err := a.store.GetConversation(ctx, f.ConversationID); err != nil {
		return nil, err
	}
	return a.store.ListDecisions(ctx, f)
}

// ReleaseConversation returns a handed-off conversation to automation. The target
// stage must be below the handoff stage, otherwise the next turn would be skipped again.
func (a *Admin) ReleaseConversation(ctx context.Context, id string, stageRef string) (domain.Conversation, error) {
	target := domain.FirstStage()
	if stageRef != "" {
		s, ok := domain.ResolveStage(stageRef)
		if !ok {
			return domain.Conversation{}, apperr.Validation("unknown stage")
		}
		target = s
	}
	if domain.IsHandoffOrBeyond(target.Order) {
		return domain.Conversation{}, apperr.Validation("stage must be before handoff")
	}

	conv, err := a.store.ReleaseConversation(ctx, id, target.ID)
	if err != nil {
		return domain.Conversation{}, err
	}
	a.log.Info("conversation released to automation", "conversation_id", id, "stage", target.Name)
	return conv, nil
}

func (a *Admin) ListPersonas(ctx context.Context) ([]domain.Persona, error) {
	return a.store.ListPersonas(ctx)
}

// UpdatePersona applies the update and drops cached personas so the next turn sees it.
func (a *Admin) UpdatePersona(ctx context.Context, u domain.PersonaUpdate) (domain.Persona, error) {
	if u.ID == uuid.Nil {
		return domain.Persona{}, apperr.Validation("persona id is required")
	}
	p, err := a.store.UpdatePersona(ctx, u)
	if err != nil {
		return domain.Persona{}, err
	}
	if a.cache != nil {
		a.cache.Invalidate()
	}
	return p, nil
}
