package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"whatsapp_sdr_backend/internal/events"
	"whatsapp_sdr_backend/internal/funnel/domain"
	"whatsapp_sdr_backend/internal/funnel/ports"
	"whatsapp_sdr_backend/platform/apperr"
	"whatsapp_sdr_backend/platform/lock"
	"whatsapp_sdr_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeOracle struct {
	calls atomic.Int32
	fn    func(ctx context.Context, req ports.OracleRequest) (domain.Classification, error)
}

func (o *fakeOracle) Classify(ctx context.Context, req ports.OracleRequest) (domain.Classification, error) {
	o.calls.Add(1)
	return o.fn(ctx, req)
}

func proposing(stage string, handoff bool) *fakeOracle {
	return &fakeOracle{fn: func(context.Context, ports.OracleRequest) (domain.Classification, error) {
		return domain.Classification{Response: "ok", ProposedStage: stage, ShouldHandoff: handoff}, nil
	}}
}

func returning(c domain.Classification, err error) *fakeOracle {
	return &fakeOracle{fn: func(context.Context, ports.OracleRequest) (domain.Classification, error) {
		return c, err
	}}
}

type fakeStore struct {
	mu    sync.Mutex
	rows  map[string]domain.Conversation
	saves int
	// failSave forces the next SaveStage to return this error.
	failSave error
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: make(map[string]domain.Conversation)}
}

func (s *fakeStore) put(id, stageID string, needsHuman bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sid := stageID
	s.rows[id] = domain.Conversation{ID: id, CurrentStageID: &sid, NeedsHuman: needsHuman}
}

func (s *fakeStore) stageOf(id string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	if !ok || row.CurrentStageID == nil {
		return "", ok
	}
	return *row.CurrentStageID, true
}

func (s *fakeStore) GetConversation(_ context.Context, id string) (domain.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	if !ok {
		return domain.Conversation{}, apperr.NotFound("conversation not found")
	}
	return row, nil
}

func (s *fakeStore) SaveStage(_ context.Context, u domain.StageUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSave != nil {
		err := s.failSave
		s.failSave = nil
		return err
	}
	row, exists := s.rows[u.ConversationID]
	switch {
	case u.Create && exists:
		return domain.ErrStaleStage
	case !u.Create && !exists:
		return domain.ErrStaleStage
	case !u.Create && !sameStage(row.CurrentStageID, u.ExpectedStageID):
		return domain.ErrStaleStage
	}
	stage := u.NewStageID
	s.rows[u.ConversationID] = domain.Conversation{
		ID:             u.ConversationID,
		PersonaID:      u.PersonaID,
		CurrentStageID: &stage,
		LeadName:       u.LeadName,
		NeedsHuman:     u.NeedsHuman,
	}
	s.saves++
	return nil
}

func sameStage(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

type fakeAudit struct {
	mu      sync.Mutex
	entries []domain.AuditEntry
	err     error
}

func (a *fakeAudit) AppendDecision(_ context.Context, e domain.AuditEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	a.entries = append(a.entries, e)
	return nil
}

func (a *fakeAudit) all() []domain.AuditEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]domain.AuditEntry, len(a.entries))
	copy(out, a.entries)
	return out
}

type fakePersonas struct {
	persona *domain.Persona
}

func (p fakePersonas) ResolvePersona(context.Context, *uuid.UUID) (domain.Persona, error) {
	if p.persona == nil {
		return domain.Persona{}, apperr.NotFound("persona not found")
	}
	return *p.persona, nil
}

func strPtr(s string) *string { return &s }

func activePersona() *domain.Persona {
	return &domain.Persona{
		ID:                uuid.New(),
		Name:              "Acme",
		AutomationEnabled: true,
	}
}

type engineHarness struct {
	engine *Engine
	oracle *fakeOracle
	store  *fakeStore
	audit  *fakeAudit
	bus    *events.InMemoryBus
}

func newHarness(oracle *fakeOracle, persona *domain.Persona) *engineHarness {
	log := logger.New("development")
	h := &engineHarness{
		oracle: oracle,
		store:  newFakeStore(),
		audit:  &fakeAudit{},
		bus:    events.NewInMemoryBus(log),
	}
	h.engine = NewEngine(Deps{
		Personas:      fakePersonas{persona: persona},
		Conversations: h.store,
		Audit:         h.audit,
		Oracle:        oracle,
		Locker:        lock.NewLocalLocker(time.Second),
		Bus:           h.bus,
		Log:           log,
		OracleTimeout: 200 * time.Millisecond,
	})
	return h
}

func turn(id, message string) domain.Turn {
	return domain.Turn{ConversationID: id, IncomingMessage: message}
}

var errTransport = errors.New("connection refused")
