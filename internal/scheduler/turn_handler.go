package scheduler

import (
	"context"
	"fmt"

	"whatsapp_sdr_backend/internal/funnel/domain"
	"whatsapp_sdr_backend/platform/apperr"
	"whatsapp_sdr_backend/platform/logger"

	"github.com/hibiken/asynq"
)

const (
	defaultHistoryLimit = 30
	maxTurnsPerTask     = 10
)

// TurnEngine is the part of the funnel engine the worker drives.
type TurnEngine interface {
	LockConversation(ctx context.Context, conversationID string) (func(), error)
	ProcessLocked(ctx context.Context, turn domain.Turn) (domain.Result, error)
}

// MessageStore is the message log the worker drains.
type MessageStore interface {
	OldestPending(ctx context.Context, conversationID string) (domain.Message, error)
	History(ctx context.Context, conversationID string, beforeID int64, limit int) ([]domain.HistoryEntry, error)
	MarkProcessed(ctx context.Context, messageID int64) error
	AppendOutgoing(ctx context.Context, conversationID, content string) error
	CountPending(ctx context.Context, conversationID string) (int, error)
}

// ReplySender delivers text to the lead.
type ReplySender interface {
	SendMessage(ctx context.Context, phoneNumber string, message string) error
}

// TurnHandler processes conversation.turn tasks: pending inbound messages are run
// through the engine oldest first and the replies are sent back to the lead. The
// conversation lock is taken per message; its TTL only has to cover one turn.
type TurnHandler struct {
	engine       TurnEngine
	messages     MessageStore
	sender       ReplySender
	enqueuer     TurnEnqueuer
	historyLimit int
	log          *logger.Logger
}

func NewTurnHandler(engine TurnEngine, messages MessageStore, sender ReplySender, enqueuer TurnEnqueuer, historyLimit int, log *logger.Logger) *TurnHandler {
	if historyLimit <= 0 {
		historyLimit = defaultHistoryLimit
	}
	return &TurnHandler{
		engine:       engine,
		messages:     messages,
		sender:       sender,
		enqueuer:     enqueuer,
		historyLimit: historyLimit,
		log:          log,
	}
}

// ProcessTask implements asynq.Handler.
func (h *TurnHandler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseConversationTurnPayload(task)
	if err != nil {
		return err
	}
	conversationID := payload.ConversationID
	ctx = logger.WithConversation(ctx, conversationID)

	for i := 0; i < maxTurnsPerTask; i++ {
		done, err := h.drainOne(ctx, conversationID)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}

	pending, err := h.messages.CountPending(ctx, conversationID)
	if err != nil {
		return err
	}
	if pending > 0 && h.enqueuer != nil {
		return h.enqueuer.EnqueueConversationTurn(ctx, conversationID)
	}
	return nil
}

// drainOne runs the oldest pending message under its own lock hold, so a single
// hold never spans more than one oracle call. done reports an empty backlog.
func (h *TurnHandler) drainOne(ctx context.Context, conversationID string) (done bool, err error) {
	release, err := h.engine.LockConversation(ctx, conversationID)
	if err != nil {
		return false, err
	}
	defer release()

	msg, err := h.messages.OldestPending(ctx, conversationID)
	if apperr.Is(err, apperr.KindNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return false, h.processMessage(ctx, msg)
}

func (h *TurnHandler) processMessage(ctx context.Context, msg domain.Message) error {
	history, err := h.messages.History(ctx, msg.ConversationID, msg.ID, h.historyLimit)
	if err != nil {
		return err
	}

	result, err := h.engine.ProcessLocked(ctx, domain.Turn{
		ConversationID:  msg.ConversationID,
		IncomingMessage: msg.Content,
		History:         history,
	})
	if err != nil {
		return fmt.Errorf("process message %d: %w", msg.ID, err)
	}

	// The stage write is done; a retry must not run the turn again.
	if err := h.messages.MarkProcessed(ctx, msg.ID); err != nil {
		return err
	}

	if result.Outcome != domain.OutcomeHandled || result.Decision == nil {
		h.log.WithContext(ctx).Info("inbound message not answered", "outcome", result.Outcome)
		return nil
	}

	for _, text := range replies(*result.Decision) {
		if err := h.sender.SendMessage(ctx, msg.ConversationID, text); err != nil {
			// Delivery failures are not retried; the lead may write again.
			h.log.WithContext(ctx).Error("failed to send reply", "error", err)
			return nil
		}
		if err := h.messages.AppendOutgoing(ctx, msg.ConversationID, text); err != nil {
			h.log.WithContext(ctx).Error("failed to record outgoing message", "error", err)
		}
	}
	return nil
}

// replies lists the outbound texts of a decision in sending order.
func replies(d domain.Decision) []string {
	var out []string
	if d.Response != "" {
		out = append(out, d.Response)
	}
	if d.ShouldSendVideo && d.VideoURL != nil {
		out = append(out, *d.VideoURL)
	}
	if d.ShouldSendSite && d.SiteURL != nil {
		out = append(out, *d.SiteURL)
	}
	return out
}
