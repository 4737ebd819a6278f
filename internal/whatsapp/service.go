package whatsapp

import (
	"context"

	"whatsapp_sdr_backend/platform/logger"
)

// InboxStore persists inbound messages.
type InboxStore interface {
	EnsureConversation(ctx context.Context, id string, leadName *string) error
	AppendInbound(ctx context.Context, conversationID, content string, externalID *string) (bool, error)
}

// TurnEnqueuer schedules processing of a conversation.
type TurnEnqueuer interface {
	EnqueueConversationTurn(ctx context.Context, conversationID string) error
}

// Inbox stores inbound lead messages and schedules a turn for them.
type Inbox struct {
	store    InboxStore
	enqueuer TurnEnqueuer
	log      *logger.Logger
}

func NewInbox(store InboxStore, enqueuer TurnEnqueuer, log *logger.Logger) *Inbox {
	return &Inbox{store: store, enqueuer: enqueuer, log: log}
}

// Receive stores msg and enqueues a turn. Redelivered messages are ignored and
// reported with accepted=false. An enqueue failure is logged only: the message is
// already stored and the pending sweeper picks it up.
func (i *Inbox) Receive(ctx context.Context, msg InboundMessage) (bool, error) {
	ctx = logger.WithConversation(ctx, msg.ConversationID)

	var leadName *string
	if msg.PushName != "" {
		leadName = &msg.PushName
	}
	if err := i.store.EnsureConversation(ctx, msg.ConversationID, leadName); err != nil {
		return false, err
	}

	var externalID *string
	if msg.ExternalID != "" {
		externalID = &msg.ExternalID
	}
	created, err := i.store.AppendInbound(ctx, msg.ConversationID, msg.Text, externalID)
	if err != nil {
		return false, err
	}
	if !created {
		i.log.WithContext(ctx).Debug("duplicate whatsapp message ignored", "external_id", msg.ExternalID)
		return false, nil
	}

	if i.enqueuer != nil {
		if err := i.enqueuer.EnqueueConversationTurn(ctx, msg.ConversationID); err != nil {
			i.log.WithContext(ctx).Error("failed to enqueue conversation turn", "error", err)
		}
	}
	return true, nil
}
