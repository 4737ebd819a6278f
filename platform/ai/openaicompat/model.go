// Package openaicompat adapts any OpenAI-compatible chat completions endpoint
// to the ADK model.LLM interface.
package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"net/http"
	"strings"
	"time"

	"google.golang.org/adk/model"
	"google.golang.org/genai"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "gpt-4o-mini"
	defaultTimeout = 30 * time.Second
	maxErrorBody   = 512
)

// Config for an OpenAI-compatible endpoint.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	// JSONMode asks the endpoint to return a single JSON object.
	JSONMode bool
	// Timeout bounds a single HTTP round trip. Callers usually set a tighter deadline on ctx.
	Timeout time.Duration
}

// Model implements model.LLM over HTTP.
type Model struct {
	config Config
	client *http.Client
}

var _ model.LLM = (*Model)(nil)

func NewModel(cfg Config) *Model {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Model{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (m *Model) Name() string {
	return m.config.Model
}

// GenerateContent adapts ADK requests to the chat completions API. Streaming is not
// supported; a single response is always yielded.
func (m *Model) GenerateContent(ctx context.Context, req *model.LLMRequest, _ bool) iter.Seq2[*model.LLMResponse, error] {
	return func(yield func(*model.LLMResponse, error) bool) {
		resp, err := m.generate(ctx, req)
		yield(resp, err)
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    *float64        `json:"temperature,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// StatusError is returned when the endpoint answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("chat completions returned status %d: %s", e.StatusCode, e.Body)
}

func (m *Model) generate(ctx context.Context, req *model.LLMRequest) (*model.LLMResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("nil llm request")
	}

	payload := chatRequest{
		Model:    m.config.Model,
		Messages: convertMessages(req),
	}
	if req.Config != nil {
		if req.Config.Temperature != nil {
			t := float64(*req.Config.Temperature)
			payload.Temperature = &t
		}
	}
	if m.config.JSONMode {
		payload.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode chat request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, m.config.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build chat request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+m.config.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	var result chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode chat response: %w", err)
	}
	if result.Error != nil {
		return nil, fmt.Errorf("chat completions error: %s", result.Error.Message)
	}
	if len(result.Choices) == 0 {
		return nil, fmt.Errorf("chat completions error: empty choices")
	}

	choice := result.Choices[0]
	parts := make([]*genai.Part, 0, 1)
	if strings.TrimSpace(choice.Message.Content) != "" {
		parts = append(parts, genai.NewPartFromText(choice.Message.Content))
	}

	return &model.LLMResponse{
		Content: &genai.Content{
			Role:  string(genai.RoleModel),
			Parts: parts,
		},
	}, nil
}

func convertMessages(req *model.LLMRequest) []chatMessage {
	messages := make([]chatMessage, 0, len(req.Contents)+1)

	if req.Config != nil && req.Config.SystemInstruction != nil {
		if text := joinText(req.Config.SystemInstruction); text != "" {
			messages = append(messages, chatMessage{Role: "system", Content: text})
		}
	}

	for _, content := range req.Contents {
		if content == nil {
			continue
		}
		text := joinText(content)
		if text == "" {
			continue
		}
		messages = append(messages, chatMessage{Role: roleForContent(content.Role), Content: text})
	}
	return messages
}

func roleForContent(role string) string {
	if role == string(genai.RoleModel) {
		return "assistant"
	}
	return "user"
}

func joinText(content *genai.Content) string {
	var b strings.Builder
	for _, part := range content.Parts {
		if part == nil || strings.TrimSpace(part.Text) == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(part.Text)
	}
	return strings.TrimSpace(b.String())
}
