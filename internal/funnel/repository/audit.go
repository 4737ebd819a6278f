package repository

import (
	"context"
	"fmt"

	"whatsapp_sdr_backend/internal/funnel/domain"

	sq "github.com/Masterminds/squirrel"
)

const (
	defaultDecisionLimit = 50
	maxDecisionLimit     = 200
)

// created_at is omitted so the column default stamps the row with server time.
const appendDecisionQuery = `
	INSERT INTO ai_decision_logs (
		id, conversation_id, incoming_message, outgoing_message,
		classification_summary, label_id, confidence, needs_human
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

// AppendDecision inserts one audit row. Rows are never updated.
func (r *Repo) AppendDecision(ctx context.Context, e domain.AuditEntry) error {
	if _, err := r.pool.Exec(ctx, appendDecisionQuery,
		e.ID, e.ConversationID, e.IncomingMessage, e.OutgoingMessage,
		e.ClassificationSummary, e.LabelID, e.Confidence, e.NeedsHuman,
	); err != nil {
		return fmt.Errorf("append decision log: %w", err)
	}
	return nil
}

// decisionsQuery builds the filtered listing. Split out so the SQL can be checked without a database.
func decisionsQuery(f domain.DecisionFilter) (string, []interface{}, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = defaultDecisionLimit
	}
	if limit > maxDecisionLimit {
		limit = maxDecisionLimit
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	q := psql.Select(
		"id", "conversation_id", "incoming_message", "outgoing_message",
		"classification_summary", "label_id", "confidence", "needs_human", "created_at",
	).From("ai_decision_logs")

	if f.ConversationID != "" {
		q = q.Where(sq.Eq{"conversation_id": f.ConversationID})
	}
	if f.NeedsHuman != nil {
		q = q.Where(sq.Eq{"needs_human": *f.NeedsHuman})
	}

	return q.OrderBy("created_at DESC", "id").
		Limit(uint64(limit)).
		Offset(uint64(offset)).
		ToSql()
}

// ListDecisions returns audit rows newest first.
func (r *Repo) ListDecisions(ctx context.Context, f domain.DecisionFilter) ([]domain.AuditEntry, error) {
	query, args, err := decisionsQuery(f)
	if err != nil {
		return nil, fmt.Errorf("build decisions query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}
	defer rows.Close()

	entries := make([]domain.AuditEntry, 0)
	for rows.Next() {
		var e domain.AuditEntry
		if err := rows.Scan(
			&e.ID, &e.ConversationID, &e.IncomingMessage, &e.OutgoingMessage,
			&e.ClassificationSummary, &e.LabelID, &e.Confidence, &e.NeedsHuman, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate decisions: %w", err)
	}
	return entries, nil
}
