package domain

// Rule names the transition rule that decided a turn's final stage.
type Rule string

const (
	RuleAccepted            Rule = "accepted"
	RuleRegressionDiscarded Rule = "regression_discarded"
	RuleClamped             Rule = "clamped"
	RuleForcedHandoff       Rule = "forced_handoff"
	// RuleFallback marks turns where the classifier failed and the stage was kept.
	RuleFallback            Rule = "fallback"
)

// Proposal is the classifier's raw suggestion for the next stage.
type Proposal struct {
	// StageRef is a label id or stage name. Unknown or empty refs rank as order 1.
	StageRef      string
	ShouldHandoff bool
}

// Transition is the outcome of applying the progression rules to one turn.
type Transition struct {
	From Stage
	// ProposedOrder is the order the proposal was ranked at after resolving unknown refs.
	ProposedOrder int
	To            Stage
	Rule          Rule
}

// Advanced reports whether the turn moved the conversation forward.
func (t Transition) Advanced() bool { return t.To.Order > t.From.Order }

// Hold keeps the conversation where it is. Used when no usable proposal exists.
func Hold(current Stage) Transition {
	return Transition{From: current, ProposedOrder: current.Order, To: current, Rule: RuleFallback}
}

// IsTerminal reports whether a conversation at current must no longer be
// handled by automation. Callers check this before asking the classifier.
func IsTerminal(current Stage) bool {
	return IsHandoffOrBeyond(current.Order)
}

// Advance applies, in order: the regression guard, the single-step guard and the
// forced handoff. Forced handoff wins over both guards, including when the proposal
// is also a regression.
func Advance(current Stage, proposal Proposal) Transition {
	proposed, ok := ResolveStage(proposal.StageRef)
	if !ok {
		proposed = FirstStage()
	}

	t := Transition{
		From:          current,
		ProposedOrder: proposed.Order,
		To:            proposed,
		Rule:          RuleAccepted,
	}

	switch {
	case proposed.Order < current.Order:
		t.To = current
		t.Rule = RuleRegressionDiscarded
	case !proposal.ShouldHandoff && proposed.Order > current.Order+1:
		next, ok := StageByOrder(current.Order + 1)
		if !ok {
			next = current
		}
		t.To = next
		t.Rule = RuleClamped
	}

	if proposal.ShouldHandoff {
		t.To = HandoffStage()
		t.Rule = RuleForcedHandoff
	}

	return t
}
