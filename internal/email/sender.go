package email

import (
	"context"

	"whatsapp_sdr_backend/platform/config"
)

// HandoffAlert is the content of the message a human operator receives when a
// conversation leaves automation.
type HandoffAlert struct {
	PersonaName    string
	ConversationID string
	LeadName       string
	Stage          string
	Reason         string
	Summary        string
	LastMessage    string
}

type Sender interface {
	SendHandoffAlert(ctx context.Context, toEmail string, alert HandoffAlert) error
}

type NoopSender struct{}

func (NoopSender) SendHandoffAlert(ctx context.Context, toEmail string, alert HandoffAlert) error {
	return nil
}

// NewSender returns an SMTP sender when SMTP is configured and a no-op sender otherwise.
func NewSender(cfg config.EmailConfig) Sender {
	if !cfg.GetEmailEnabled() {
		return NoopSender{}
	}
	return NewSMTPSender(
		cfg.GetSMTPHost(),
		cfg.GetSMTPPort(),
		cfg.GetSMTPUsername(),
		cfg.GetSMTPPassword(),
		cfg.GetEmailFromAddress(),
		cfg.GetEmailFromName(),
	)
}
