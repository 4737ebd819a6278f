package whatsapp

import (
	"bytes"
	"context"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

type recordingReceiver struct {
	got []InboundMessage
}

func (r *recordingReceiver) Receive(_ context.Context, msg InboundMessage) (bool, error) {
	r.got = append(r.got, msg)
	return true, nil
}

func newWebhookRouter(secret string, receiver Receiver) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/webhook/whatsapp", SignatureRequired(secret), NewHandler(receiver, "BR").HandleMessage)
	return r
}

func signedRequest(secret, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/webhook/whatsapp", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if secret != "" {
		req.Header.Set(signatureHeader, "sha256="+hex.EncodeToString(sign(secret, []byte(body))))
	}
	return req
}

const textBody = `{"chat_id":"5511987654321@s.whatsapp.net","message":{"id":"ABC","text":"oi"}}`

func TestWebhookAcceptsSignedMessage(t *testing.T) {
	receiver := &recordingReceiver{}
	r := newWebhookRouter("s3cret", receiver)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, signedRequest("s3cret", textBody))

	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "accepted") {
		t.Fatalf("expected accepted, got %d %s", w.Code, w.Body.String())
	}
	if len(receiver.got) != 1 || receiver.got[0].ConversationID != "+5511987654321" {
		t.Errorf("unexpected messages %+v", receiver.got)
	}
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	cases := map[string]*http.Request{
		"wrong secret": signedRequest("other", textBody),
		"missing":      signedRequest("", textBody),
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			receiver := &recordingReceiver{}
			w := httptest.NewRecorder()
			newWebhookRouter("s3cret", receiver).ServeHTTP(w, req)
			if w.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", w.Code)
			}
			if len(receiver.got) != 0 {
				t.Error("expected no message to reach the inbox")
			}
		})
	}
}

func TestWebhookUnconfiguredSecretRejects(t *testing.T) {
	w := httptest.NewRecorder()
	newWebhookRouter("", &recordingReceiver{}).ServeHTTP(w, signedRequest("anything", textBody))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestWebhookIgnoresGroupMessages(t *testing.T) {
	receiver := &recordingReceiver{}
	body := `{"chat_id":"120363025246125486@g.us","message":{"text":"hi all"}}`
	w := httptest.NewRecorder()
	newWebhookRouter("s3cret", receiver).ServeHTTP(w, signedRequest("s3cret", body))

	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "ignored") {
		t.Fatalf("expected ignored, got %d %s", w.Code, w.Body.String())
	}
	if len(receiver.got) != 0 {
		t.Error("expected group message to be dropped")
	}
}
