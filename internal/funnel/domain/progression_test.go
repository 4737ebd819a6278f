package domain

import "testing"

func mustStage(t *testing.T, order int) Stage {
	t.Helper()
	s, ok := StageByOrder(order)
	if !ok {
		t.Fatalf("no stage with order %d", order)
	}
	return s
}

func TestRegistryIsStrictlyOrdered(t *testing.T) {
	stages := Stages()
	if len(stages) != 7 {
		t.Fatalf("expected 7 stages, got %d", len(stages))
	}
	seen := map[string]bool{}
	for i, s := range stages {
		if s.Order != i+1 {
			t.Errorf("stage %s: expected order %d, got %d", s.Name, i+1, s.Order)
		}
		if seen[s.ID] {
			t.Errorf("duplicate stage id %s", s.ID)
		}
		seen[s.ID] = true

		order, ok := StageOrder(s.ID)
		if !ok || order != s.Order {
			t.Errorf("StageOrder(%s) = %d, %v", s.ID, order, ok)
		}
	}
	if HandoffStage().Order != HandoffOrder || HandoffStage().Name != StageHandoff {
		t.Errorf("unexpected handoff stage %+v", HandoffStage())
	}
}

func TestLookupsReportNotFound(t *testing.T) {
	if _, ok := StageOrder("lbl_unknown"); ok {
		t.Error("expected unknown id to be not found")
	}
	if _, ok := StageByOrder(0); ok {
		t.Error("expected order 0 to be not found")
	}
	if _, ok := StageByOrder(8); ok {
		t.Error("expected order 8 to be not found")
	}
}

func TestResolveStageAcceptsIDsAndNames(t *testing.T) {
	cases := map[string]StageName{
		"lbl_discovery":    StageDiscovery,
		"  Qualification ": StageQualification,
		"HANDOFF":          StageHandoff,
		"LBL_PRESENTATION": StagePresentation,
	}
	for ref, want := range cases {
		got, ok := ResolveStage(ref)
		if !ok || got.Name != want {
			t.Errorf("ResolveStage(%q) = %v, %v; want %s", ref, got.Name, ok, want)
		}
	}
	if _, ok := ResolveStage(""); ok {
		t.Error("expected blank ref to be unresolved")
	}
}

func TestCurrentStageDefaultsToFirst(t *testing.T) {
	unknown := "lbl_gone"
	blank := "  "
	for _, id := range []*string{nil, &unknown, &blank} {
		if got := CurrentStage(id); got.Order != 1 {
			t.Errorf("expected first stage, got %+v", got)
		}
	}
}

func TestIsHandoffOrBeyond(t *testing.T) {
	for order := 1; order <= 7; order++ {
		want := order >= 5
		if got := IsHandoffOrBeyond(order); got != want {
			t.Errorf("IsHandoffOrBeyond(%d) = %v, want %v", order, got, want)
		}
	}
}

func TestAdvanceScenarios(t *testing.T) {
	tests := []struct {
		name      string
		current   int
		proposal  Proposal
		wantOrder int
		wantRule  Rule
	}{
		{"clamps multi-step skip", 1, Proposal{StageRef: "lbl_presentation"}, 2, RuleClamped},
		{"discards regression", 2, Proposal{StageRef: "lbl_opening"}, 2, RuleRegressionDiscarded},
		{"forced handoff from first stage", 1, Proposal{StageRef: "lbl_opening", ShouldHandoff: true}, HandoffOrder, RuleForcedHandoff},
		{"forced handoff from stage four", 4, Proposal{StageRef: "presentation", ShouldHandoff: true}, HandoffOrder, RuleForcedHandoff},
		{"forced handoff beats regression", 3, Proposal{StageRef: "opening", ShouldHandoff: true}, HandoffOrder, RuleForcedHandoff},
		{"accepts single step", 2, Proposal{StageRef: "qualification"}, 3, RuleAccepted},
		{"accepts staying", 3, Proposal{StageRef: "lbl_qualification"}, 3, RuleAccepted},
		{"unknown ranks as first stage", 3, Proposal{StageRef: "made_up"}, 3, RuleRegressionDiscarded},
		{"unknown from first stage stays", 1, Proposal{StageRef: ""}, 1, RuleAccepted},
		{"clamp can land on handoff", 4, Proposal{StageRef: "closed"}, HandoffOrder, RuleClamped},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Advance(mustStage(t, tt.current), tt.proposal)
			if got.To.Order != tt.wantOrder {
				t.Errorf("expected order %d, got %d", tt.wantOrder, got.To.Order)
			}
			if got.Rule != tt.wantRule {
				t.Errorf("expected rule %s, got %s", tt.wantRule, got.Rule)
			}
			if got.From.Order != tt.current {
				t.Errorf("expected From order %d, got %d", tt.current, got.From.Order)
			}
		})
	}
}

// Exhaustive check over every (current, proposed, handoff) combination below the
// terminal threshold.
func TestAdvanceInvariantsHoldForAllInputs(t *testing.T) {
	refs := []string{"", "nonsense"}
	for _, s := range Stages() {
		refs = append(refs, s.ID, string(s.Name))
	}

	for current := 1; current < HandoffOrder; current++ {
		from := mustStage(t, current)
		for _, ref := range refs {
			for _, handoff := range []bool{false, true} {
				got := Advance(from, Proposal{StageRef: ref, ShouldHandoff: handoff})

				if handoff {
					if got.To.Order != HandoffOrder {
						t.Fatalf("current=%d ref=%q: handoff must land on handoff stage, got %d", current, ref, got.To.Order)
					}
					continue
				}
				if got.To.Order < current {
					t.Fatalf("current=%d ref=%q: regression to %d", current, ref, got.To.Order)
				}
				if got.To.Order > current+1 {
					t.Fatalf("current=%d ref=%q: skipped to %d", current, ref, got.To.Order)
				}
			}
		}
	}
}

func TestIsTerminal(t *testing.T) {
	if IsTerminal(mustStage(t, 4)) {
		t.Error("stage 4 must not be terminal")
	}
	for order := HandoffOrder; order <= 7; order++ {
		if !IsTerminal(mustStage(t, order)) {
			t.Errorf("stage %d must be terminal", order)
		}
	}
}

func TestResourcesPresence(t *testing.T) {
	blank := "  "
	url := "https://example.com/v"
	r := Resources{VideoURL: &blank, SiteURL: &url}
	if r.HasVideo() {
		t.Error("blank video url must count as absent")
	}
	if !r.HasSite() {
		t.Error("expected site url to be present")
	}
}
