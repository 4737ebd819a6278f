// Package agent runs the language-model classifier behind the funnel engine.
package agent

import (
	"context"
	"fmt"
	"strings"

	"whatsapp_sdr_backend/internal/funnel/domain"
	"whatsapp_sdr_backend/internal/funnel/ports"
	"whatsapp_sdr_backend/platform/ai/openaicompat"
	"whatsapp_sdr_backend/platform/config"
	"whatsapp_sdr_backend/platform/logger"

	"github.com/google/uuid"
	"google.golang.org/adk/agent"
	"google.golang.org/adk/agent/llmagent"
	"google.golang.org/adk/model"
	"google.golang.org/adk/runner"
	"google.golang.org/adk/session"
	"google.golang.org/genai"
)

const appName = "whatsapp_sdr"

// SDR is the ADK-backed Oracle. Each call runs in a fresh session so no state leaks
// between conversations.
type SDR struct {
	runner         *runner.Runner
	sessionService session.Service
	log            *logger.Logger
}

var _ ports.Oracle = (*SDR)(nil)

// NewSDRFromConfig builds the agent on top of the configured OpenAI-compatible endpoint.
func NewSDRFromConfig(cfg config.AgentConfig, log *logger.Logger) (*SDR, error) {
	llm := openaicompat.NewModel(openaicompat.Config{
		APIKey:   cfg.GetLLMAPIKey(),
		BaseURL:  cfg.GetLLMBaseURL(),
		Model:    cfg.GetLLMModel(),
		JSONMode: true,
		Timeout:  cfg.GetOracleTimeout(),
	})
	return NewSDR(llm, log)
}

// NewSDR builds the agent on any model.LLM.
func NewSDR(llm model.LLM, log *logger.Logger) (*SDR, error) {
	sdrAgent, err := llmagent.New(llmagent.Config{
		Name:        "SalesDevelopmentRep",
		Model:       llm,
		Description: "Replies to WhatsApp leads and classifies their funnel stage.",
		Instruction: sdrInstruction,
	})
	if err != nil {
		return nil, fmt.Errorf("create sdr agent: %w", err)
	}

	sessionService := session.InMemoryService()
	r, err := runner.New(runner.Config{
		AppName:        appName,
		Agent:          sdrAgent,
		SessionService: sessionService,
	})
	if err != nil {
		return nil, fmt.Errorf("create sdr runner: %w", err)
	}

	return &SDR{runner: r, sessionService: sessionService, log: log}, nil
}

// Classify implements ports.Oracle.
func (s *SDR) Classify(ctx context.Context, req ports.OracleRequest) (domain.Classification, error) {
	output, err := s.run(ctx, req.ConversationID, buildPrompt(req))
	if err != nil {
		return domain.Classification{}, err
	}
	return ParseClassification(output)
}

func (s *SDR) run(ctx context.Context, conversationID, prompt string) (string, error) {
	userID := "conversation-" + conversationID
	sessionID := uuid.New().String()

	if _, err := s.sessionService.Create(ctx, &session.CreateRequest{
		AppName:   appName,
		UserID:    userID,
		SessionID: sessionID,
	}); err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	defer func() {
		_ = s.sessionService.Delete(context.WithoutCancel(ctx), &session.DeleteRequest{
			AppName:   appName,
			UserID:    userID,
			SessionID: sessionID,
		})
	}()

	userMessage := genai.NewContentFromText(prompt, genai.RoleUser)

	var output strings.Builder
	for event, err := range s.runner.Run(ctx, userID, sessionID, userMessage, agent.RunConfig{StreamingMode: agent.StreamingModeNone}) {
		if err != nil {
			return "", err
		}
		if event == nil || event.Content == nil {
			continue
		}
		for _, part := range event.Content.Parts {
			if part != nil {
				output.WriteString(part.Text)
			}
		}
	}

	if s.log != nil {
		s.log.Debug("sdr agent output", "conversation_id", conversationID, "bytes", output.Len())
	}
	return output.String(), nil
}
