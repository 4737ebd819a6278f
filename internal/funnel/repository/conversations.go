package repository

import (
	"context"
	"errors"
	"fmt"

	"whatsapp_sdr_backend/internal/funnel/domain"
	"whatsapp_sdr_backend/platform/apperr"

	"github.com/jackc/pgx/v5"
)

const conversationColumns = `id, persona_id, current_stage_id, lead_name, needs_human, created_at, updated_at`

func scanConversation(row pgx.Row) (domain.Conversation, error) {
	var c domain.Conversation
	err := row.Scan(&c.ID, &c.PersonaID, &c.CurrentStageID, &c.LeadName, &c.NeedsHuman, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

// GetConversation loads a conversation by id.
func (r *Repo) GetConversation(ctx context.Context, id string) (domain.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE id = $1`

	c, err := scanConversation(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Conversation{}, apperr.NotFound(conversationNotFoundMessage)
		}
		return domain.Conversation{}, fmt.Errorf("get conversation: %w", err)
	}
	return c, nil
}

// EnsureConversation creates an empty conversation row when none exists. The stage
// stays NULL until the first decision is written; the persona falls back to the default.
func (r *Repo) EnsureConversation(ctx context.Context, id string, leadName *string) error {
	query := `
		INSERT INTO conversations (id, lead_name)
		VALUES ($1, $2)
		ON CONFLICT (id) DO NOTHING`

	if _, err := r.pool.Exec(ctx, query, id, leadName); err != nil {
		return fmt.Errorf("ensure conversation: %w", err)
	}
	return nil
}

// SaveStage writes a new stage only if the stored stage still matches the one the
// decision was computed from. A lost race returns domain.ErrStaleStage.
func (r *Repo) SaveStage(ctx context.Context, u domain.StageUpdate) error {
	if u.Create {
		query := `
			INSERT INTO conversations (id, persona_id, current_stage_id, lead_name, needs_human)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO NOTHING`

		tag, err := r.pool.Exec(ctx, query, u.ConversationID, u.PersonaID, u.NewStageID, u.LeadName, u.NeedsHuman)
		if err != nil {
			return fmt.Errorf("create conversation stage: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrStaleStage
		}
		return nil
	}

	query := `
		UPDATE conversations
		SET current_stage_id = $2,
			persona_id = COALESCE($3, persona_id),
			lead_name = COALESCE($4, lead_name),
			needs_human = $5,
			updated_at = now()
		WHERE id = $1 AND current_stage_id IS NOT DISTINCT FROM $6`

	tag, err := r.pool.Exec(ctx, query,
		u.ConversationID, u.NewStageID, u.PersonaID, u.LeadName, u.NeedsHuman, u.ExpectedStageID,
	)
	if err != nil {
		return fmt.Errorf("update conversation stage: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrStaleStage
	}
	return nil
}

// ReleaseConversation hands a conversation back to automation at the given stage.
func (r *Repo) ReleaseConversation(ctx context.Context, id string, stageID string) (domain.Conversation, error) {
	query := `
		UPDATE conversations
		SET needs_human = FALSE, current_stage_id = $2, updated_at = now()
		WHERE id = $1
		RETURNING ` + conversationColumns

	c, err := scanConversation(r.pool.QueryRow(ctx, query, id, stageID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Conversation{}, apperr.NotFound(conversationNotFoundMessage)
		}
		return domain.Conversation{}, fmt.Errorf("release conversation: %w", err)
	}
	return c, nil
}
