package repository

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"whatsapp_sdr_backend/internal/funnel/domain"
	"whatsapp_sdr_backend/platform/apperr"

	"github.com/jackc/pgx/v5"
)

// AppendInbound stores an inbound message. A message whose external id was already
// stored for the conversation is ignored and reported with created=false, so webhook
// redeliveries are harmless.
func (r *Repo) AppendInbound(ctx context.Context, conversationID, content string, externalID *string) (bool, error) {
	query := `
		INSERT INTO conversation_messages (conversation_id, direction, content, external_id)
		VALUES ($1, 'incoming', $2, $3)
		ON CONFLICT (conversation_id, external_id) WHERE external_id IS NOT NULL DO NOTHING`

	tag, err := r.pool.Exec(ctx, query, conversationID, content, externalID)
	if err != nil {
		return false, fmt.Errorf("append inbound message: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// AppendOutgoing stores a reply sent to the lead. Outgoing rows are born processed.
func (r *Repo) AppendOutgoing(ctx context.Context, conversationID, content string) error {
	query := `
		INSERT INTO conversation_messages (conversation_id, direction, content, processed_at)
		VALUES ($1, 'outgoing', $2, now())`

	if _, err := r.pool.Exec(ctx, query, conversationID, content); err != nil {
		return fmt.Errorf("append outgoing message: %w", err)
	}
	return nil
}

// OldestPending returns the oldest unprocessed inbound message of a conversation.
func (r *Repo) OldestPending(ctx context.Context, conversationID string) (domain.Message, error) {
	query := `
		SELECT id, conversation_id, direction, content, external_id, processed_at, created_at
		FROM conversation_messages
		WHERE conversation_id = $1 AND direction = 'incoming' AND processed_at IS NULL
		ORDER BY id
		LIMIT 1`

	var m domain.Message
	err := r.pool.QueryRow(ctx, query, conversationID).Scan(
		&m.ID, &m.ConversationID, &m.Direction, &m.Content, &m.ExternalID, &m.ProcessedAt, &m.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Message{}, apperr.NotFound(messageNotFoundMessage)
		}
		return domain.Message{}, fmt.Errorf("oldest pending message: %w", err)
	}
	return m, nil
}

// MarkProcessed stamps an inbound message as handled.
func (r *Repo) MarkProcessed(ctx context.Context, messageID int64) error {
	query := `UPDATE conversation_messages SET processed_at = now() WHERE id = $1 AND processed_at IS NULL`
	if _, err := r.pool.Exec(ctx, query, messageID); err != nil {
		return fmt.Errorf("mark message processed: %w", err)
	}
	return nil
}

// CountPending counts unprocessed inbound messages of a conversation.
func (r *Repo) CountPending(ctx context.Context, conversationID string) (int, error) {
	query := `
		SELECT COUNT(*) FROM conversation_messages
		WHERE conversation_id = $1 AND direction = 'incoming' AND processed_at IS NULL`

	var n int
	if err := r.pool.QueryRow(ctx, query, conversationID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count pending messages: %w", err)
	}
	return n, nil
}

// History returns up to limit messages stored before beforeID, oldest first.
func (r *Repo) History(ctx context.Context, conversationID string, beforeID int64, limit int) ([]domain.HistoryEntry, error) {
	query := `
		SELECT direction, content
		FROM conversation_messages
		WHERE conversation_id = $1 AND id < $2
		ORDER BY id DESC
		LIMIT $3`

	rows, err := r.pool.Query(ctx, query, conversationID, beforeID, limit)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	defer rows.Close()

	var entries []domain.HistoryEntry
	for rows.Next() {
		var e domain.HistoryEntry
		if err := rows.Scan(&e.Direction, &e.Content); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}

	slices.Reverse(entries)
	return entries, nil
}

// StalePendingConversations lists conversations whose oldest unprocessed inbound
// message is older than before. Used to recover turns whose task was lost.
func (r *Repo) StalePendingConversations(ctx context.Context, before time.Time, limit int) ([]string, error) {
	query := `
		SELECT conversation_id
		FROM conversation_messages
		WHERE direction = 'incoming' AND processed_at IS NULL
		GROUP BY conversation_id
		HAVING MIN(created_at) < $1
		ORDER BY MIN(created_at)
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, before, limit)
	if err != nil {
		return nil, fmt.Errorf("list stale pending conversations: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan conversation id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stale pending conversations: %w", err)
	}
	return ids, nil
}

// DeleteProcessedMessagesBefore prunes message history older than before. Pending
// inbound messages are never deleted.
func (r *Repo) DeleteProcessedMessagesBefore(ctx context.Context, before time.Time) (int64, error) {
	query := `DELETE FROM conversation_messages WHERE processed_at IS NOT NULL AND created_at < $1`
	tag, err := r.pool.Exec(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("delete processed messages: %w", err)
	}
	return tag.RowsAffected(), nil
}
