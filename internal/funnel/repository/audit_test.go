package repository

import (
	"strings"
	"testing"

	"whatsapp_sdr_backend/internal/funnel/domain"
)

func TestDecisionsQueryFilters(t *testing.T) {
	needsHuman := true
	query, args, err := decisionsQuery(domain.DecisionFilter{ConversationID: "+5511999990000", NeedsHuman: &needsHuman, Limit: 10, Offset: 20})
	if err != nil {
		t.Fatalf("decisionsQuery: %v", err)
	}

	for _, want := range []string{"FROM ai_decision_logs", "conversation_id = $1", "needs_human = $2", "ORDER BY created_at DESC, id", "LIMIT 10", "OFFSET 20"} {
		if !strings.Contains(query, want) {
			t.Errorf("query %q missing %q", query, want)
		}
	}
	if len(args) != 2 || args[0] != "+5511999990000" || args[1] != true {
		t.Errorf("unexpected args %v", args)
	}
}

func TestDecisionsQueryDefaultsAndCaps(t *testing.T) {
	cases := []struct {
		name   string
		filter domain.DecisionFilter
		limit  string
	}{
		{"default limit", domain.DecisionFilter{}, "LIMIT 50"},
		{"capped limit", domain.DecisionFilter{Limit: 10000}, "LIMIT 200"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			query, args, err := decisionsQuery(tc.filter)
			if err != nil {
				t.Fatalf("decisionsQuery: %v", err)
			}
			if !strings.Contains(query, tc.limit) {
				t.Errorf("query %q missing %q", query, tc.limit)
			}
			if strings.Contains(query, "WHERE") || len(args) != 0 {
				t.Errorf("expected no filters, got %q %v", query, args)
			}
		})
	}
}

func TestAppendDecisionLeavesTimestampToDatabase(t *testing.T) {
	if strings.Contains(appendDecisionQuery, "created_at") {
		t.Errorf("insert must not set created_at, got %q", appendDecisionQuery)
	}
	if !strings.Contains(appendDecisionQuery, "$8)") || strings.Contains(appendDecisionQuery, "$9") {
		t.Errorf("expected eight placeholders, got %q", appendDecisionQuery)
	}
}
