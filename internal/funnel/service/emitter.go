package service

import (
	"fmt"
	"strings"

	"whatsapp_sdr_backend/internal/funnel/domain"

	"github.com/google/uuid"
)

const (
	fallbackSummary      = "Handoff requested; no summary provided by classifier"
	reasonClassifierFlag = "Classifier requested handoff"
	reasonStageReached   = "Conversation reached the handoff stage"
)

// emitInput is everything the emitter needs for one turn.
type emitInput struct {
	Transition     domain.Transition
	Classification domain.Classification
	Resources      domain.Resources
	Fallback       domain.FallbackKind
}

// emit assembles the final decision. Resource flags are gated on configured URLs,
// needs_human is set by either the handoff flag or the resulting stage, and a
// handoff always carries a summary and a reason.
func emit(in emitInput) domain.Decision {
	c := in.Classification
	stage := in.Transition.To

	needsHuman := c.ShouldHandoff || domain.IsHandoffOrBeyond(stage.Order)
	sendVideo := c.ShouldSendVideo && in.Resources.HasVideo()
	sendSite := c.ShouldSendSite && in.Resources.HasSite()

	d := domain.Decision{
		Response:        strings.TrimSpace(c.Response),
		Stage:           stage,
		LeadName:        c.LeadName,
		ShouldSendVideo: sendVideo,
		ShouldSendSite:  sendSite,
		ShouldHandoff:   needsHuman,
		NeedsHuman:      needsHuman,
		BANT:            c.BANT,
		Transition:      in.Transition,
		Fallback:        in.Fallback,
	}

	if sendVideo {
		d.VideoURL = trimmedCopy(in.Resources.VideoURL)
	}
	if sendSite {
		d.SiteURL = trimmedCopy(in.Resources.SiteURL)
	}

	if c.ConversationSummary != nil && strings.TrimSpace(*c.ConversationSummary) != "" {
		d.ConversationSummary = trimmedCopy(c.ConversationSummary)
	}

	if needsHuman {
		if d.ConversationSummary == nil {
			d.ConversationSummary = stringPtr(fallbackSummary)
		}
		switch {
		case c.HandoffReason != nil && strings.TrimSpace(*c.HandoffReason) != "":
			d.HandoffReason = trimmedCopy(c.HandoffReason)
		case c.ShouldHandoff:
			d.HandoffReason = stringPtr(reasonClassifierFlag)
		default:
			d.HandoffReason = stringPtr(reasonStageReached)
		}
	}

	return d
}

// fallbackClassification is the safe default: stay put, greet, all flags false.
func fallbackClassification(current domain.Stage, persona domain.Persona) domain.Classification {
	return domain.Classification{
		ProposedStage: current.ID,
		Response:      persona.Greeting(),
	}
}

// auditEntry builds the append-only log row for a decision. CreatedAt is left
// for the database to assign.
func auditEntry(turn domain.Turn, d domain.Decision, confidence *float64) domain.AuditEntry {
	return domain.AuditEntry{
		ID:                    uuid.New(),
		ConversationID:        turn.ConversationID,
		IncomingMessage:       turn.IncomingMessage,
		OutgoingMessage:       d.Response,
		ClassificationSummary: classificationSummary(d),
		LabelID:               d.Stage.ID,
		Confidence:            confidence,
		NeedsHuman:            d.NeedsHuman,
	}
}

// classificationSummary renders a compact, grep-friendly description of a decision.
func classificationSummary(d domain.Decision) string {
	parts := []string{
		"stage=" + string(d.Stage.Name),
		fmt.Sprintf("from=%d", d.Transition.From.Order),
		fmt.Sprintf("proposed=%d", d.Transition.ProposedOrder),
		"rule=" + string(d.Transition.Rule),
		fmt.Sprintf("handoff=%t", d.ShouldHandoff),
		fmt.Sprintf("video=%t", d.ShouldSendVideo),
		fmt.Sprintf("site=%t", d.ShouldSendSite),
	}
	if d.BANT != nil {
		parts = append(parts, "bant="+bantSummary(*d.BANT))
	}
	if d.Fallback != domain.FallbackNone {
		parts = append(parts, "fallback="+string(d.Fallback))
	}
	return strings.Join(parts, " ")
}

func bantSummary(b domain.BANTScore) string {
	return strings.Join([]string{
		"budget:" + triState(b.Budget),
		"authority:" + triState(b.Authority),
		"need:" + triState(b.Need),
		"timing:" + triState(b.Timing),
	}, ",")
}

func triState(b *bool) string {
	switch {
	case b == nil:
		return "?"
	case *b:
		return "yes"
	default:
		return "no"
	}
}

func trimmedCopy(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}

func stringPtr(s string) *string { return &s }
