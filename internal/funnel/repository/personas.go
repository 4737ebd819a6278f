package repository

import (
	"context"
	"errors"
	"fmt"

	"whatsapp_sdr_backend/internal/funnel/domain"
	"whatsapp_sdr_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const personaColumns = `id, name, playbook, video_url, site_url, payment_url, fallback_greeting,
	handoff_email, handoff_phone, automation_enabled, is_default, updated_at`

func scanPersona(row pgx.Row) (domain.Persona, error) {
	var p domain.Persona
	err := row.Scan(
		&p.ID, &p.Name, &p.Playbook, &p.VideoURL, &p.SiteURL, &p.PaymentURL, &p.FallbackGreeting,
		&p.HandoffEmail, &p.HandoffPhone, &p.AutomationEnabled, &p.IsDefault, &p.UpdatedAt,
	)
	return p, err
}

// GetPersona loads a persona by id.
func (r *Repo) GetPersona(ctx context.Context, id uuid.UUID) (domain.Persona, error) {
	query := `SELECT ` + personaColumns + ` FROM personas WHERE id = $1`

	p, err := scanPersona(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Persona{}, apperr.NotFound(personaNotFoundMessage)
		}
		return domain.Persona{}, fmt.Errorf("get persona: %w", err)
	}
	return p, nil
}

// GetDefaultPersona loads the persona flagged as default.
func (r *Repo) GetDefaultPersona(ctx context.Context) (domain.Persona, error) {
	query := `SELECT ` + personaColumns + ` FROM personas WHERE is_default LIMIT 1`

	p, err := scanPersona(r.pool.QueryRow(ctx, query))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Persona{}, apperr.NotFound("no default persona configured")
		}
		return domain.Persona{}, fmt.Errorf("get default persona: %w", err)
	}
	return p, nil
}

// ListPersonas returns every persona, default first.
func (r *Repo) ListPersonas(ctx context.Context) ([]domain.Persona, error) {
	query := `SELECT ` + personaColumns + ` FROM personas ORDER BY is_default DESC, name`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list personas: %w", err)
	}
	defer rows.Close()

	personas := make([]domain.Persona, 0)
	for rows.Next() {
		p, err := scanPersona(rows)
		if err != nil {
			return nil, fmt.Errorf("scan persona: %w", err)
		}
		personas = append(personas, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate personas: %w", err)
	}
	return personas, nil
}

// UpdatePersona applies the non-nil fields of u.
func (r *Repo) UpdatePersona(ctx context.Context, u domain.PersonaUpdate) (domain.Persona, error) {
	query := `
		UPDATE personas
		SET name = COALESCE($2, name),
			playbook = COALESCE($3, playbook),
			video_url = COALESCE($4, video_url),
			site_url = COALESCE($5, site_url),
			payment_url = COALESCE($6, payment_url),
			fallback_greeting = COALESCE($7, fallback_greeting),
			handoff_email = COALESCE($8, handoff_email),
			handoff_phone = COALESCE($9, handoff_phone),
			automation_enabled = COALESCE($10, automation_enabled),
			updated_at = now()
		WHERE id = $1
		RETURNING ` + personaColumns

	p, err := scanPersona(r.pool.QueryRow(ctx, query,
		u.ID, u.Name, u.Playbook, u.VideoURL, u.SiteURL, u.PaymentURL, u.FallbackGreeting,
		u.HandoffEmail, u.HandoffPhone, u.AutomationEnabled,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Persona{}, apperr.NotFound(personaNotFoundMessage)
		}
		return domain.Persona{}, fmt.Errorf("update persona: %w", err)
	}
	return p, nil
}
