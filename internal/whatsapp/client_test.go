package whatsapp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"whatsapp_sdr_backend/platform/logger"
)

type testWhatsAppConfig struct{ url string }

func (c testWhatsAppConfig) GetWhatsAppURL() string           { return c.url }
func (c testWhatsAppConfig) GetWhatsAppKey() string           { return "user:pass" }
func (c testWhatsAppConfig) GetWhatsAppDeviceID() string      { return "device-1" }
func (c testWhatsAppConfig) GetWhatsAppWebhookSecret() string { return "" }
func (c testWhatsAppConfig) GetPhoneDefaultRegion() string    { return "BR" }

func TestClientSendMessage(t *testing.T) {
	var got gowaRequest
	var auth, device string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/send/message" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		auth = r.Header.Get("Authorization")
		device = r.Header.Get("X-Device-Id")
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewClient(testWhatsAppConfig{url: srv.URL + "/"}, logger.New("development"))
	if err := client.SendMessage(context.Background(), "+55 11 98765-4321", "olá"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	if got.Phone != "5511987654321" || got.Message != "olá" {
		t.Errorf("unexpected payload %+v", got)
	}
	if !strings.HasPrefix(auth, "Basic ") || device != "device-1" {
		t.Errorf("unexpected headers auth=%q device=%q", auth, device)
	}
}

func TestClientSendMessageErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "device offline", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewClient(testWhatsAppConfig{url: srv.URL}, logger.New("development"))
	err := client.SendMessage(context.Background(), "+5511987654321", "hi")
	if err == nil || !strings.Contains(err.Error(), "503") {
		t.Fatalf("expected 503 error, got %v", err)
	}
}

func TestNilClientDropsMessages(t *testing.T) {
	client := NewClient(testWhatsAppConfig{}, logger.New("development"))
	if client != nil {
		t.Fatal("expected nil client without a URL")
	}
	if err := client.SendMessage(context.Background(), "+5511987654321", "hi"); err != nil {
		t.Fatalf("expected nil client to be a no-op, got %v", err)
	}
}
