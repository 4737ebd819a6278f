package openaicompat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"google.golang.org/adk/model"
	"google.golang.org/genai"
)

func collect(t *testing.T, m *Model, req *model.LLMRequest) (*model.LLMResponse, error) {
	t.Helper()
	var (
		got    *model.LLMResponse
		gotErr error
	)
	for resp, err := range m.GenerateContent(context.Background(), req, false) {
		got, gotErr = resp, err
	}
	return got, gotErr
}

func TestGenerateContentMapsRolesAndSystemInstruction(t *testing.T) {
	var captured chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("unexpected auth header %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"stage\":\"discovery\"}"}}]}`))
	}))
	defer srv.Close()

	m := NewModel(Config{APIKey: "secret", BaseURL: srv.URL + "/", Model: "test-model", JSONMode: true})
	req := &model.LLMRequest{
		Contents: []*genai.Content{
			{Role: "user", Parts: []*genai.Part{{Text: "hello"}}},
			{Role: "model", Parts: []*genai.Part{{Text: "hi there"}}},
		},
		Config: &genai.GenerateContentConfig{
			SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: "be brief"}}},
		},
	}

	resp, err := collect(t, m, req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if captured.Model != "test-model" {
		t.Errorf("expected model test-model, got %q", captured.Model)
	}
	if captured.ResponseFormat == nil || captured.ResponseFormat.Type != "json_object" {
		t.Errorf("expected json_object response format, got %+v", captured.ResponseFormat)
	}
	wantRoles := []string{"system", "user", "assistant"}
	if len(captured.Messages) != len(wantRoles) {
		t.Fatalf("expected %d messages, got %d", len(wantRoles), len(captured.Messages))
	}
	for i, role := range wantRoles {
		if captured.Messages[i].Role != role {
			t.Errorf("message %d: expected role %s, got %s", i, role, captured.Messages[i].Role)
		}
	}

	if resp == nil || resp.Content == nil || len(resp.Content.Parts) != 1 {
		t.Fatalf("expected one response part, got %+v", resp)
	}
	if resp.Content.Parts[0].Text != `{"stage":"discovery"}` {
		t.Errorf("unexpected response text %q", resp.Content.Parts[0].Text)
	}
}

func TestGenerateContentReturnsStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	m := NewModel(Config{BaseURL: srv.URL})
	_, err := collect(t, m, &model.LLMRequest{})

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", statusErr.StatusCode)
	}
}

func TestGenerateContentRejectsEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	if _, err := collect(t, NewModel(Config{BaseURL: srv.URL}), &model.LLMRequest{}); err == nil {
		t.Fatal("expected error for empty choices")
	}
}
