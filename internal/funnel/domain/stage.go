// Package domain provides the core business rules of the sales funnel: the fixed
// stage registry, the progression state machine and the turn/decision model.
package domain

import "strings"

// StageName is the stable, human readable identifier of a funnel stage.
type StageName string

const (
	StageOpening       StageName = "opening"
	StageDiscovery     StageName = "discovery"
	StageQualification StageName = "qualification"
	StagePresentation  StageName = "presentation"
	StageHandoff       StageName = "handoff"
	StageNegotiation   StageName = "negotiation"
	StageClosed        StageName = "closed"
)

// HandoffOrder is the order of the handoff stage. Conversations at or beyond it
// belong to a human.
const HandoffOrder = 5

// Stage is one step of the linear funnel.
type Stage struct {
	// ID is the external label id stored on conversations and audit rows.
	ID        string    `json:"id"`
	Order     int       `json:"order"`
	Name      StageName `json:"name"`
	Objective string    `json:"objective"`
}

// registry is immutable after init and safe for concurrent reads.
var registry = [...]Stage{
	{ID: "lbl_opening", Order: 1, Name: StageOpening, Objective: "Greet the lead, introduce yourself and learn their name."},
	{ID: "lbl_discovery", Order: 2, Name: StageDiscovery, Objective: "Understand the lead's situation, pain and what made them reach out."},
	{ID: "lbl_qualification", Order: 3, Name: StageQualification, Objective: "Probe budget, authority, need and timing without interrogating."},
	{ID: "lbl_presentation", Order: 4, Name: StagePresentation, Objective: "Present the offer tied to the pain you found and share the video or site when useful."},
	{ID: "lbl_handoff", Order: HandoffOrder, Name: StageHandoff, Objective: "The lead is qualified and ready; hand the conversation to a human closer."},
	{ID: "lbl_negotiation", Order: 6, Name: StageNegotiation, Objective: "A human negotiates terms and payment."},
	{ID: "lbl_closed", Order: 7, Name: StageClosed, Objective: "The deal is closed."},
}

var (
	byID    = make(map[string]Stage, len(registry))
	byName  = make(map[string]Stage, len(registry))
	byOrder = make(map[int]Stage, len(registry))
)

func init() {
	for _, s := range registry {
		byID[s.ID] = s
		byName[string(s.Name)] = s
		byOrder[s.Order] = s
	}
}

// Stages returns the registry ordered by Order.
func Stages() []Stage {
	out := make([]Stage, len(registry))
	copy(out, registry[:])
	return out
}

// FirstStage is the initial state of every conversation.
func FirstStage() Stage { return registry[0] }

// HandoffStage is the terminal state for automation.
func HandoffStage() Stage { return byOrder[HandoffOrder] }

// StageOrder returns the order for a known label id.
func StageOrder(stageID string) (int, bool) {
	s, ok := byID[stageID]
	return s.Order, ok
}

// StageByOrder is the inverse lookup of StageOrder.
func StageByOrder(order int) (Stage, bool) {
	s, ok := byOrder[order]
	return s, ok
}

// StageByID looks a stage up by its label id.
func StageByID(stageID string) (Stage, bool) {
	s, ok := byID[stageID]
	return s, ok
}

// IsHandoffOrBeyond reports whether order is at or past the handoff stage.
func IsHandoffOrBeyond(order int) bool {
	return order >= HandoffOrder
}

// ResolveStage matches a label id or a stage name, case-insensitively and ignoring
// surrounding whitespace.
func ResolveStage(ref string) (Stage, bool) {
	key := strings.ToLower(strings.TrimSpace(ref))
	if key == "" {
		return Stage{}, false
	}
	if s, ok := byID[key]; ok {
		return s, true
	}
	if s, ok := byName[key]; ok {
		return s, true
	}
	return Stage{}, false
}

// CurrentStage resolves a stored or requested current stage id. A nil, blank or
// unknown id means the conversation has no current stage and starts at the first one.
func CurrentStage(stageID *string) Stage {
	if stageID == nil {
		return FirstStage()
	}
	if s, ok := ResolveStage(*stageID); ok {
		return s
	}
	return FirstStage()
}
