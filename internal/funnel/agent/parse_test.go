package agent

import (
	"errors"
	"testing"

	"whatsapp_sdr_backend/internal/funnel/domain"
)

func TestParseClassificationFullObject(t *testing.T) {
	output := "```json\n" + `{
  "response": "Great to meet you, Ana! What made you reach out?",
  "stage": "discovery",
  "lead_name": "Ana",
  "bant_score": {"budget": true, "authority": null, "need": false},
  "should_handoff": false,
  "should_send_video": true,
  "should_send_site": false,
  "handoff_reason": null,
  "conversation_summary": "",
  "confidence": 0.82
}` + "\n```"

	c, err := ParseClassification(output)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.ProposedStage != "discovery" {
		t.Errorf("expected discovery, got %q", c.ProposedStage)
	}
	if c.LeadName == nil || *c.LeadName != "Ana" {
		t.Errorf("expected lead name Ana, got %v", c.LeadName)
	}
	if !c.ShouldSendVideo || c.ShouldSendSite || c.ShouldHandoff {
		t.Errorf("unexpected flags %+v", c)
	}
	if c.BANT == nil || c.BANT.Budget == nil || !*c.BANT.Budget {
		t.Fatalf("expected budget=true, got %+v", c.BANT)
	}
	if c.BANT.Authority != nil || c.BANT.Timing != nil {
		t.Errorf("expected authority and timing unknown, got %+v", c.BANT)
	}
	if c.BANT.Need == nil || *c.BANT.Need {
		t.Errorf("expected need=false, got %v", c.BANT.Need)
	}
	if c.ConversationSummary != nil {
		t.Errorf("expected blank summary to be nil, got %q", *c.ConversationSummary)
	}
	if c.Confidence == nil || *c.Confidence != 0.82 {
		t.Errorf("expected confidence 0.82, got %v", c.Confidence)
	}
}

func TestParseClassificationToleratesSurroundingText(t *testing.T) {
	c, err := ParseClassification(`Sure! {"response":"Hi there","stage":"lbl_opening"} Hope that helps.`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Response != "Hi there" || c.ProposedStage != "lbl_opening" {
		t.Errorf("unexpected classification %+v", c)
	}
}

func TestParseClassificationMissingStageIsBlank(t *testing.T) {
	c, err := ParseClassification(`{"response":"Hello"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.ProposedStage != "" {
		t.Errorf("expected blank stage, got %q", c.ProposedStage)
	}
	if c.BANT != nil {
		t.Errorf("expected nil BANT, got %+v", c.BANT)
	}
}

func TestParseClassificationRejectsMalformedOutput(t *testing.T) {
	cases := map[string]string{
		"empty":          "",
		"plain text":     "I think the lead is interested.",
		"broken json":    `{"response": "hi", "stage": }`,
		"missing reply":  `{"stage":"discovery","should_handoff":true}`,
		"blank reply":    `{"response":"   "}`,
		"wrong type":     `{"response":"hi","should_handoff":"yes"}`,
		"null response":  `{"response":null}`,
		"reply is null":  `{"response":"null"}`,
		"closing only":   `}`,
		"fence no body":  "```json\n```",
		"nested garbage": `{{{`,
	}
	for name, output := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseClassification(output)
			if !errors.Is(err, domain.ErrMalformedOutput) {
				t.Fatalf("expected ErrMalformedOutput, got %v", err)
			}
		})
	}
}

func TestParseClassificationDropsOutOfRangeConfidence(t *testing.T) {
	c, err := ParseClassification(`{"response":"ok","confidence":7}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Confidence != nil {
		t.Errorf("expected confidence to be dropped, got %v", *c.Confidence)
	}
}
