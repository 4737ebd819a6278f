package notification

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"whatsapp_sdr_backend/internal/email"
	"whatsapp_sdr_backend/internal/events"
	"whatsapp_sdr_backend/platform/logger"

	"github.com/google/uuid"
)

type testSender struct {
	mu     sync.Mutex
	to     []string
	alerts []email.HandoffAlert
	err    error
}

func (s *testSender) SendHandoffAlert(_ context.Context, toEmail string, alert email.HandoffAlert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.to = append(s.to, toEmail)
	s.alerts = append(s.alerts, alert)
	return s.err
}

type testWhatsApp struct {
	mu       sync.Mutex
	phones   []string
	messages []string
	err      error
}

func (w *testWhatsApp) SendMessage(_ context.Context, phone string, message string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.phones = append(w.phones, phone)
	w.messages = append(w.messages, message)
	return w.err
}

func handedOff() events.ConversationHandedOff {
	return events.ConversationHandedOff{
		BaseEvent:      events.NewBaseEvent(),
		ConversationID: "5511999990000",
		PersonaID:      uuid.New(),
		PersonaName:    "Acme Solar",
		StageID:        "lbl_handoff",
		LeadName:       "Maria",
		Reason:         "Lead asked for a quote",
		Summary:        "Owns a house, wants panels this year",
		LastMessage:    "Can someone call me?",
		HandoffEmail:   "ops@example.com",
		HandoffPhone:   "+5511988887777",
	}
}

func TestHandoffSendsEmailAndWhatsApp(t *testing.T) {
	sender := &testSender{}
	wa := &testWhatsApp{}
	m := New(sender, wa, logger.New("development"))

	if err := m.Handle(context.Background(), handedOff()); err != nil {
		t.Fatalf("handle: %v", err)
	}

	if len(sender.to) != 1 || sender.to[0] != "ops@example.com" {
		t.Fatalf("expected one email to ops, got %v", sender.to)
	}
	if sender.alerts[0].Summary != "Owns a house, wants panels this year" || sender.alerts[0].Stage != "lbl_handoff" {
		t.Fatalf("unexpected alert %+v", sender.alerts[0])
	}
	if len(wa.phones) != 1 || wa.phones[0] != "+5511988887777" {
		t.Fatalf("expected one whatsapp alert, got %v", wa.phones)
	}
	for _, want := range []string{"Acme Solar", "Lead: Maria", "Number: 5511999990000", "Reason: Lead asked for a quote", "wants panels"} {
		if !strings.Contains(wa.messages[0], want) {
			t.Fatalf("expected %q in %q", want, wa.messages[0])
		}
	}
}

func TestHandoffWithoutRecipientsIsNoop(t *testing.T) {
	sender := &testSender{}
	wa := &testWhatsApp{}
	m := New(sender, wa, logger.New("development"))

	e := handedOff()
	e.HandoffEmail = ""
	e.HandoffPhone = ""
	if err := m.Handle(context.Background(), e); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(sender.to) != 0 || len(wa.phones) != 0 {
		t.Fatal("expected no alerts")
	}
}

func TestHandoffEmailFailureStillSendsWhatsApp(t *testing.T) {
	sendErr := errors.New("smtp down")
	sender := &testSender{err: sendErr}
	wa := &testWhatsApp{}
	m := New(sender, wa, logger.New("development"))

	err := m.Handle(context.Background(), handedOff())
	if !errors.Is(err, sendErr) {
		t.Fatalf("expected smtp error, got %v", err)
	}
	if len(wa.phones) != 1 {
		t.Fatal("expected whatsapp alert despite email failure")
	}
}

func TestHandoffWithoutWhatsAppClient(t *testing.T) {
	sender := &testSender{}
	m := New(sender, nil, logger.New("development"))

	if err := m.Handle(context.Background(), handedOff()); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(sender.to) != 1 {
		t.Fatal("expected email alert")
	}
}

func TestWhatsAppAlertFallsBackToNumberAndTruncates(t *testing.T) {
	e := handedOff()
	e.LeadName = ""
	e.Summary = strings.Repeat("a", maxAlertSummaryRunes+50)

	msg := whatsAppAlert(e)
	if !strings.Contains(msg, "Lead: 5511999990000") {
		t.Fatalf("expected number as lead, got %q", msg)
	}
	if strings.Contains(msg, "Number:") {
		t.Fatal("number line should be omitted when lead name is unknown")
	}
	if !strings.HasSuffix(msg, "…") {
		t.Fatal("expected truncated summary")
	}
}

func TestRegisterHandlersDeliversEvents(t *testing.T) {
	log := logger.New("development")
	bus := events.NewInMemoryBus(log)
	sender := &testSender{}
	m := New(sender, nil, log)
	m.RegisterHandlers(bus)

	bus.Publish(context.Background(), handedOff())
	bus.Wait()

	sender.mu.Lock()
	defer sender.mu.Unlock()
	if len(sender.to) != 1 {
		t.Fatalf("expected one email via bus, got %d", len(sender.to))
	}
}
