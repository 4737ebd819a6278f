package domain

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

// ErrStaleStage is returned when the stored stage changed between read and write.
var ErrStaleStage = errors.New("conversation stage changed concurrently")

// ErrMalformedOutput marks classifier output that could not be parsed into a Classification.
var ErrMalformedOutput = errors.New("classifier output malformed")

// Direction tags a history entry.
type Direction string

const (
	DirectionIncoming Direction = "incoming"
	DirectionOutgoing Direction = "outgoing"
)

// HistoryEntry is one prior message of a conversation.
type HistoryEntry struct {
	Direction Direction `json:"direction"`
	Content   string    `json:"content"`
}

// Turn is one inbound message to be processed.
type Turn struct {
	ConversationID  string
	IncomingMessage string
	History         []HistoryEntry
	CurrentStageID  *string
	PersonaID       *uuid.UUID
}

// BANTScore holds four independent, nullable qualification signals.
type BANTScore struct {
	Budget    *bool `json:"budget"`
	Authority *bool `json:"authority"`
	Need      *bool `json:"need"`
	Timing    *bool `json:"timing"`
}

// IsEmpty reports whether no signal is known.
func (b BANTScore) IsEmpty() bool {
	return b.Budget == nil && b.Authority == nil && b.Need == nil && b.Timing == nil
}

// Classification is the validated shape of the classifier's output. Every field is
// still an untrusted suggestion until it goes through Advance and the emitter.
type Classification struct {
	ProposedStage       string
	Response            string
	LeadName            *string
	BANT                *BANTScore
	ShouldHandoff       bool
	ShouldSendVideo     bool
	ShouldSendSite      bool
	HandoffReason       *string
	ConversationSummary *string
	Confidence          *float64
}

// Resources are the persona links the agent may share.
type Resources struct {
	VideoURL   *string
	SiteURL    *string
	PaymentURL *string
}

// HasVideo reports whether a non-blank video URL is configured.
func (r Resources) HasVideo() bool { return nonBlank(r.VideoURL) }

// HasSite reports whether a non-blank site URL is configured.
func (r Resources) HasSite() bool { return nonBlank(r.SiteURL) }

// FallbackKind explains why a decision was built from the safe default.
type FallbackKind string

const (
	FallbackNone      FallbackKind = ""
	FallbackMalformed FallbackKind = "malformed"
	FallbackTimeout   FallbackKind = "timeout"
	FallbackTransport FallbackKind = "transport"
)

// Decision is the validated result of one turn. It is immutable once emitted.
type Decision struct {
	Response            string
	Stage               Stage
	LeadName            *string
	ShouldSendVideo     bool
	ShouldSendSite      bool
	ShouldHandoff       bool
	NeedsHuman          bool
	HandoffReason       *string
	ConversationSummary *string
	VideoURL            *string
	SiteURL             *string
	BANT                *BANTScore
	Transition          Transition
	Fallback            FallbackKind
}

// Outcome is the top-level result of processing a turn.
type Outcome string

const (
	OutcomeHandled          Outcome = "handled"
	OutcomeAlreadyWithHuman Outcome = "already_handled_by_human"
	OutcomeNotActive        Outcome = "automation_not_active"
)

// Result carries the outcome and, when handled, the decision.
type Result struct {
	Outcome  Outcome
	Decision *Decision
	// Stage is the conversation's stage after the turn.
	Stage Stage
}

func nonBlank(s *string) bool {
	return s != nil && strings.TrimSpace(*s) != ""
}
