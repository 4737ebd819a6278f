package whatsapp

import (
	"encoding/json"
	"testing"
)

func decodeWebhook(t *testing.T, raw string) gowaWebhook {
	t.Helper()
	var w gowaWebhook
	if err := json.Unmarshal([]byte(raw), &w); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return w
}

func TestToInbound(t *testing.T) {
	cases := []struct {
		name   string
		raw    string
		ok     bool
		wantID string
		text   string
	}{
		{
			name:   "flat payload",
			raw:    `{"sender_id":"5511987654321","chat_id":"5511987654321@s.whatsapp.net","pushname":"Ana","message":{"id":"ABC","text":" oi, tudo bem? "}}`,
			ok:     true,
			wantID: "+5511987654321",
			text:   "oi, tudo bem?",
		},
		{
			name:   "legacy from field",
			raw:    `{"from":"5511987654321@s.whatsapp.net in 5511987654321@s.whatsapp.net","message":{"id":"X1","text":"hello"}}`,
			ok:     true,
			wantID: "+5511987654321",
			text:   "hello",
		},
		{
			name:   "event envelope",
			raw:    `{"event":"message","payload":{"chat_id":"5511987654321@s.whatsapp.net","message":{"id":"E1","text":"quero saber o preço"}}}`,
			ok:     true,
			wantID: "+5511987654321",
			text:   "quero saber o preço",
		},
		{name: "other event", raw: `{"event":"message.ack","payload":{"chat_id":"5511987654321@s.whatsapp.net","message":{"text":"x"}}}`},
		{name: "own message", raw: `{"chat_id":"5511987654321@s.whatsapp.net","is_from_me":true,"message":{"text":"sent by us"}}`},
		{name: "group chat", raw: `{"chat_id":"120363025246125486@g.us","message":{"text":"hi all"}}`},
		{name: "status broadcast", raw: `{"chat_id":"status@broadcast","message":{"text":"story"}}`},
		{name: "media without text", raw: `{"chat_id":"5511987654321@s.whatsapp.net","message":{"id":"M1"}}`},
		{name: "no sender", raw: `{"message":{"text":"who am i"}}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			msg, ok := decodeWebhook(t, tc.raw).toInbound("BR")
			if ok != tc.ok {
				t.Fatalf("expected ok=%v, got %v (%+v)", tc.ok, ok, msg)
			}
			if !ok {
				return
			}
			if msg.ConversationID != tc.wantID {
				t.Errorf("expected conversation %s, got %s", tc.wantID, msg.ConversationID)
			}
			if msg.Text != tc.text {
				t.Errorf("expected text %q, got %q", tc.text, msg.Text)
			}
		})
	}
}
