package whatsapp

import (
	"strings"

	"whatsapp_sdr_backend/platform/phone"
	"whatsapp_sdr_backend/platform/sanitize"
)

const maxInboundRunes = 4096

// gowaWebhook is the message webhook body posted by GOWA. Newer gateways wrap the
// message in an envelope with an event name; older ones post it flat.
type gowaWebhook struct {
	Event   string       `json:"event"`
	Payload *gowaMessage `json:"payload"`
	gowaMessage
}

type gowaMessage struct {
	SenderID string `json:"sender_id"`
	ChatID   string `json:"chat_id"`
	From     string `json:"from"`
	PushName string `json:"pushname"`
	IsFromMe bool   `json:"is_from_me"`
	Message  struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"message"`
}

// InboundMessage is a text message from a lead, keyed by the lead's E.164 number.
type InboundMessage struct {
	ConversationID string
	ExternalID     string
	Text           string
	PushName       string
}

// toInbound extracts a lead text message. ok is false for anything the SDR must not
// answer: our own messages, groups, broadcasts and non-text payloads.
func (w gowaWebhook) toInbound(region string) (InboundMessage, bool) {
	if w.Event != "" && w.Event != "message" {
		return InboundMessage{}, false
	}
	msg := w.gowaMessage
	if w.Payload != nil {
		msg = *w.Payload
	}
	if msg.IsFromMe {
		return InboundMessage{}, false
	}

	jid := firstNonEmpty(msg.ChatID, msg.SenderID, msg.From)
	// Older gateways send "sender@s.whatsapp.net in chat@s.whatsapp.net".
	if sender, _, found := strings.Cut(jid, " in "); found {
		jid = sender
	}
	if strings.HasSuffix(jid, "@g.us") || strings.HasSuffix(jid, "@broadcast") || strings.HasSuffix(jid, "@newsletter") {
		return InboundMessage{}, false
	}

	text := sanitize.Message(msg.Message.Text, maxInboundRunes)
	if text == "" {
		return InboundMessage{}, false
	}

	conversationID := phone.FromJID(jid, region)
	if conversationID == "" {
		return InboundMessage{}, false
	}

	return InboundMessage{
		ConversationID: conversationID,
		ExternalID:     strings.TrimSpace(msg.Message.ID),
		Text:           text,
		PushName:       sanitize.Text(msg.PushName),
	}, true
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
