// Package service orchestrates one conversation turn: terminal short-circuit,
// classifier call with timeout and fallback, progression rules, decision
// emission, compare-and-set stage write and the audit trail.
package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"whatsapp_sdr_backend/internal/events"
	"whatsapp_sdr_backend/internal/funnel/domain"
	"whatsapp_sdr_backend/internal/funnel/ports"
	"whatsapp_sdr_backend/platform/apperr"
	"whatsapp_sdr_backend/platform/lock"
	"whatsapp_sdr_backend/platform/logger"
)

const (
	defaultOracleTimeout = 20 * time.Second
	auditWriteTimeout    = 5 * time.Second
)

// Deps are the collaborators of the Engine.
type Deps struct {
	Personas      ports.PersonaProvider
	Conversations ports.ConversationStore
	Audit         ports.AuditWriter
	Oracle        ports.Oracle
	Locker        lock.Locker
	Bus           events.Bus
	Log           *logger.Logger
	OracleTimeout time.Duration
}

// Engine processes conversation turns. It is safe for concurrent use; turns of the
// same conversation are serialized through the Locker.
type Engine struct {
	personas      ports.PersonaProvider
	conversations ports.ConversationStore
	audit         ports.AuditWriter
	oracle        ports.Oracle
	locker        lock.Locker
	bus           events.Bus
	log           *logger.Logger
	oracleTimeout time.Duration

	auditWG sync.WaitGroup
}

func NewEngine(deps Deps) *Engine {
	timeout := deps.OracleTimeout
	if timeout <= 0 {
		timeout = defaultOracleTimeout
	}
	return &Engine{
		personas:      deps.Personas,
		conversations: deps.Conversations,
		audit:         deps.Audit,
		oracle:        deps.Oracle,
		locker:        deps.Locker,
		bus:           deps.Bus,
		log:           deps.Log,
		oracleTimeout: timeout,
	}
}

// LockConversation acquires the per-conversation lock for callers that need to
// do more work than a single turn under it. Such callers must use ProcessLocked.
func (e *Engine) LockConversation(ctx context.Context, conversationID string) (func(), error) {
	release, err := e.locker.Acquire(ctx, conversationID)
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			e.log.LockContention(conversationID, err)
			return nil, apperr.Wrap(apperr.KindConflict, "conversation is busy, retry later", err)
		}
		return nil, apperr.Wrap(apperr.KindUnavailable, "conversation lock unavailable", err)
	}
	return release, nil
}

// Process handles one inbound message under the conversation lock.
func (e *Engine) Process(ctx context.Context, turn domain.Turn) (domain.Result, error) {
	if err := validateTurn(turn); err != nil {
		return domain.Result{}, err
	}
	release, err := e.LockConversation(ctx, turn.ConversationID)
	if err != nil {
		return domain.Result{}, err
	}
	defer release()
	return e.ProcessLocked(ctx, turn)
}

// ProcessLocked is Process for callers already holding the conversation lock.
func (e *Engine) ProcessLocked(ctx context.Context, turn domain.Turn) (domain.Result, error) {
	if err := validateTurn(turn); err != nil {
		return domain.Result{}, err
	}
	ctx = logger.WithConversation(ctx, turn.ConversationID)
	log := e.log.WithContext(ctx)

	conv, exists, err := e.loadConversation(ctx, turn.ConversationID)
	if err != nil {
		return domain.Result{}, err
	}

	stageRef := turn.CurrentStageID
	if exists {
		stageRef = conv.CurrentStageID
	}
	current := domain.CurrentStage(stageRef)

	if domain.IsTerminal(current) || (exists && conv.NeedsHuman) {
		log.Debug("conversation already with a human, skipping", "stage", current.Name)
		return domain.Result{Outcome: domain.OutcomeAlreadyWithHuman, Stage: current}, nil
	}

	personaID := turn.PersonaID
	if personaID == nil && exists {
		personaID = conv.PersonaID
	}
	persona, err := e.personas.ResolvePersona(ctx, personaID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			log.Info("no active persona for conversation")
			return domain.Result{Outcome: domain.OutcomeNotActive, Stage: current}, nil
		}
		return domain.Result{}, err
	}
	if !persona.AutomationEnabled {
		return domain.Result{Outcome: domain.OutcomeNotActive, Stage: current}, nil
	}

	classification, fallback, err := e.classify(ctx, turn, current, persona, conv)
	if err != nil {
		return domain.Result{}, err
	}

	var transition domain.Transition
	if fallback != domain.FallbackNone {
		classification = fallbackClassification(current, persona)
		transition = domain.Hold(current)
	} else {
		transition = domain.Advance(current, domain.Proposal{
			StageRef:      classification.ProposedStage,
			ShouldHandoff: classification.ShouldHandoff,
		})
	}

	decision := emit(emitInput{
		Transition:     transition,
		Classification: classification,
		Resources:      persona.Resources(),
		Fallback:       fallback,
	})
	log.StageTransition(turn.ConversationID, current.Order, transition.ProposedOrder, decision.Stage.Order, decision.NeedsHuman)

	// A timed-out turn still answers the lead but leaves no trace.
	if fallback == domain.FallbackTimeout {
		return domain.Result{Outcome: domain.OutcomeHandled, Decision: &decision, Stage: current}, nil
	}

	leadName := decision.LeadName
	if leadName == nil && exists {
		leadName = conv.LeadName
	}
	update := domain.StageUpdate{
		ConversationID: turn.ConversationID,
		PersonaID:      &persona.ID,
		Create:         !exists,
		NewStageID:     decision.Stage.ID,
		LeadName:       leadName,
		NeedsHuman:     decision.NeedsHuman,
	}
	if exists {
		update.ExpectedStageID = conv.CurrentStageID
	}
	if err := e.conversations.SaveStage(ctx, update); err != nil {
		if errors.Is(err, domain.ErrStaleStage) {
			return domain.Result{}, apperr.Wrap(apperr.KindConflict, "conversation stage changed concurrently", err)
		}
		return domain.Result{}, err
	}

	e.writeAudit(ctx, auditEntry(turn, decision, classification.Confidence))
	e.publish(ctx, turn, persona, decision, leadName)

	return domain.Result{Outcome: domain.OutcomeHandled, Decision: &decision, Stage: decision.Stage}, nil
}

// Wait blocks until in-flight audit writes have finished. Used on shutdown and in tests.
func (e *Engine) Wait() {
	e.auditWG.Wait()
}

func validateTurn(turn domain.Turn) error {
	if strings.TrimSpace(turn.ConversationID) == "" {
		return apperr.Validation("conversation_id is required")
	}
	if strings.TrimSpace(turn.IncomingMessage) == "" {
		return apperr.Validation("incoming_message is required")
	}
	return nil
}

func (e *Engine) loadConversation(ctx context.Context, id string) (domain.Conversation, bool, error) {
	conv, err := e.conversations.GetConversation(ctx, id)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return domain.Conversation{}, false, nil
		}
		return domain.Conversation{}, false, err
	}
	return conv, true, nil
}

type oracleResult struct {
	classification domain.Classification
	err            error
}

// classify calls the oracle under a deadline. The call runs on its own goroutine so
// an oracle that ignores cancellation cannot hold the turn past the deadline.
// Only caller cancellation is returned as an error; every oracle failure maps to a
// fallback kind.
func (e *Engine) classify(ctx context.Context, turn domain.Turn, current domain.Stage, persona domain.Persona, conv domain.Conversation) (domain.Classification, domain.FallbackKind, error) {
	req := ports.OracleRequest{
		ConversationID:  turn.ConversationID,
		IncomingMessage: turn.IncomingMessage,
		History:         turn.History,
		CurrentStage:    current,
		Resources:       persona.Resources(),
		PersonaName:     persona.Name,
		Playbook:        persona.Playbook,
		LeadName:        conv.LeadName,
	}

	octx, cancel := context.WithTimeout(ctx, e.oracleTimeout)
	defer cancel()

	done := make(chan oracleResult, 1)
	go func() {
		c, err := e.oracle.Classify(octx, req)
		done <- oracleResult{classification: c, err: err}
	}()

	var res oracleResult
	select {
	case res = <-done:
	case <-octx.Done():
		res = oracleResult{err: octx.Err()}
	}

	if res.err == nil {
		return res.classification, domain.FallbackNone, nil
	}
	if ctx.Err() != nil {
		return domain.Classification{}, domain.FallbackNone, ctx.Err()
	}

	kind := domain.FallbackTransport
	switch {
	case errors.Is(res.err, domain.ErrMalformedOutput):
		kind = domain.FallbackMalformed
	case errors.Is(res.err, context.DeadlineExceeded) || octx.Err() != nil:
		kind = domain.FallbackTimeout
	}
	e.log.OracleFailure(turn.ConversationID, string(kind), res.err)
	return domain.Classification{}, kind, nil
}

// writeAudit appends the audit row in the background. Failures are logged and not retried.
func (e *Engine) writeAudit(ctx context.Context, entry domain.AuditEntry) {
	if e.audit == nil {
		return
	}
	e.auditWG.Add(1)
	go func() {
		defer e.auditWG.Done()
		actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditWriteTimeout)
		defer cancel()
		if err := e.audit.AppendDecision(actx, entry); err != nil {
			e.log.WithContext(actx).Error("audit write failed",
				"conversation_id", entry.ConversationID, "error", err)
		}
	}()
}

func (e *Engine) publish(ctx context.Context, turn domain.Turn, persona domain.Persona, d domain.Decision, leadName *string) {
	if e.bus == nil {
		return
	}

	e.bus.Publish(ctx, events.DecisionEmitted{
		BaseEvent:      events.NewBaseEvent(),
		ConversationID: turn.ConversationID,
		FromStageID:    d.Transition.From.ID,
		StageID:        d.Stage.ID,
		Rule:           string(d.Transition.Rule),
		NeedsHuman:     d.NeedsHuman,
		Fallback:       string(d.Fallback),
	})

	if !d.NeedsHuman {
		return
	}
	e.bus.Publish(ctx, events.ConversationHandedOff{
		BaseEvent:      events.NewBaseEvent(),
		ConversationID: turn.ConversationID,
		PersonaID:      persona.ID,
		PersonaName:    persona.Name,
		StageID:        d.Stage.ID,
		LeadName:       deref(leadName),
		Reason:         deref(d.HandoffReason),
		Summary:        deref(d.ConversationSummary),
		LastMessage:    turn.IncomingMessage,
		HandoffEmail:   deref(persona.HandoffEmail),
		HandoffPhone:   deref(persona.HandoffPhone),
	})
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
