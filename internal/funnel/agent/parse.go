package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"whatsapp_sdr_backend/internal/funnel/domain"
)

type rawBANT struct {
	Budget    *bool `json:"budget"`
	Authority *bool `json:"authority"`
	Need      *bool `json:"need"`
	Timing    *bool `json:"timing"`
}

// rawClassification mirrors the JSON the model is asked for. Pointer fields keep
// "absent" distinct from the zero value.
type rawClassification struct {
	Response            *string  `json:"response"`
	Stage               *string  `json:"stage"`
	LeadName            *string  `json:"lead_name"`
	BANT                *rawBANT `json:"bant_score"`
	ShouldHandoff       *bool    `json:"should_handoff"`
	ShouldSendVideo     *bool    `json:"should_send_video"`
	ShouldSendSite      *bool    `json:"should_send_site"`
	HandoffReason       *string  `json:"handoff_reason"`
	ConversationSummary *string  `json:"conversation_summary"`
	Confidence          *float64 `json:"confidence"`
}

// ParseClassification extracts the classification object from raw model output.
// Markdown fences and text around the object are tolerated. Errors wrap
// domain.ErrMalformedOutput.
func ParseClassification(output string) (domain.Classification, error) {
	body, ok := extractJSONObject(output)
	if !ok {
		return domain.Classification{}, fmt.Errorf("%w: no json object in output", domain.ErrMalformedOutput)
	}

	var raw rawClassification
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return domain.Classification{}, fmt.Errorf("%w: %v", domain.ErrMalformedOutput, err)
	}

	response := trimmed(raw.Response)
	if response == nil {
		return domain.Classification{}, fmt.Errorf("%w: missing response", domain.ErrMalformedOutput)
	}

	c := domain.Classification{
		Response:            *response,
		LeadName:            trimmed(raw.LeadName),
		ShouldHandoff:       boolValue(raw.ShouldHandoff),
		ShouldSendVideo:     boolValue(raw.ShouldSendVideo),
		ShouldSendSite:      boolValue(raw.ShouldSendSite),
		HandoffReason:       trimmed(raw.HandoffReason),
		ConversationSummary: trimmed(raw.ConversationSummary),
	}
	if stage := trimmed(raw.Stage); stage != nil {
		c.ProposedStage = *stage
	}
	if raw.BANT != nil {
		score := domain.BANTScore{
			Budget:    raw.BANT.Budget,
			Authority: raw.BANT.Authority,
			Need:      raw.BANT.Need,
			Timing:    raw.BANT.Timing,
		}
		if !score.IsEmpty() {
			c.BANT = &score
		}
	}
	if raw.Confidence != nil && *raw.Confidence >= 0 && *raw.Confidence <= 1 {
		confidence := *raw.Confidence
		c.Confidence = &confidence
	}
	return c, nil
}

// extractJSONObject returns the outermost {...} span of s after removing code fences.
func extractJSONObject(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```JSON")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" || strings.EqualFold(v, "null") {
		return nil
	}
	return &v
}

func boolValue(b *bool) bool {
	return b != nil && *b
}
