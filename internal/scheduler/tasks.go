package scheduler

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hibiken/asynq"
)

// TaskConversationTurn drains the pending inbound messages of one conversation.
const TaskConversationTurn = "conversation.turn"

type ConversationTurnPayload struct {
	ConversationID string `json:"conversationId"`
}

func NewConversationTurnTask(payload ConversationTurnPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskConversationTurn, data), nil
}

func ParseConversationTurnPayload(task *asynq.Task) (ConversationTurnPayload, error) {
	var payload ConversationTurnPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return ConversationTurnPayload{}, err
	}
	if strings.TrimSpace(payload.ConversationID) == "" {
		return ConversationTurnPayload{}, fmt.Errorf("conversation turn payload: %w", asynq.SkipRetry)
	}
	return payload, nil
}
