// Package repository persists funnel state in Postgres.
package repository

import (
	"whatsapp_sdr_backend/internal/funnel/ports"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	conversationNotFoundMessage = "conversation not found"
	personaNotFoundMessage      = "persona not found"
	messageNotFoundMessage      = "no pending message"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Repo implements the funnel repositories on a pgx pool.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new funnel repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// Compile-time checks.
var (
	_ ports.ConversationStore = (*Repo)(nil)
	_ ports.AuditWriter       = (*Repo)(nil)
)
