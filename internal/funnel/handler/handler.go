package handler

import (
	"context"
	"net/http"
	"strings"

	"whatsapp_sdr_backend/internal/funnel/domain"
	"whatsapp_sdr_backend/internal/funnel/transport"
	"whatsapp_sdr_backend/platform/httpkit"
	"whatsapp_sdr_backend/platform/phone"
	"whatsapp_sdr_backend/platform/sanitize"
	"whatsapp_sdr_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidID        = "invalid persona id"

	maxMessageRunes = 4096
)

// TurnProcessor runs one conversation turn.
type TurnProcessor interface {
	Process(ctx context.Context, turn domain.Turn) (domain.Result, error)
}

// AdminService serves operator endpoints.
type AdminService interface {
	GetConversation(ctx context.Context, id string) (domain.Conversation, error)
	ListDecisions(ctx context.Context, f domain.DecisionFilter) ([]domain.AuditEntry, error)
	ReleaseConversation(ctx context.Context, id string, stageRef string) (domain.Conversation, error)
	ListPersonas(ctx context.Context) ([]domain.Persona, error)
	UpdatePersona(ctx context.Context, u domain.PersonaUpdate) (domain.Persona, error)
}

// Handler handles HTTP requests for the funnel.
type Handler struct {
	engine TurnProcessor
	admin  AdminService
	val    *validator.Validator
	region string
}

// New creates a new funnel handler. region is the default phone region for handoff numbers.
func New(engine TurnProcessor, admin AdminService, val *validator.Validator, region string) *Handler {
	return &Handler{engine: engine, admin: admin, val: val, region: region}
}

// Process runs the SDR engine for one inbound message.
// POST /api/v1/agent/process
func (h *Handler) Process(c *gin.Context) {
	var req transport.ProcessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldErrors(err))
		return
	}

	turn, err := toTurn(req)
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, []string{err.Error()})
		return
	}

	result, err := h.engine.Process(c.Request.Context(), turn)
	if httpkit.HandleError(c, err) {
		return
	}
	if result.Outcome != domain.OutcomeHandled || result.Decision == nil {
		httpkit.OK(c, transport.NotHandledResponse{
			Handled: false,
			Outcome: string(result.Outcome),
			Stage:   string(result.Stage.Name),
			LabelID: result.Stage.ID,
		})
		return
	}
	httpkit.OK(c, toProcessResponse(*result.Decision))
}

// ListStages returns the funnel stage registry.
// GET /api/v1/admin/stages
func (h *Handler) ListStages(c *gin.Context) {
	stages := domain.Stages()
	out := make([]transport.StageResponse, 0, len(stages))
	for _, s := range stages {
		out = append(out, transport.StageResponse{ID: s.ID, Order: s.Order, Name: string(s.Name), Objective: s.Objective})
	}
	httpkit.OK(c, out)
}

// GetConversation returns the stored funnel state of a conversation.
// GET /api/v1/admin/conversations/:id
func (h *Handler) GetConversation(c *gin.Context) {
	conv, err := h.admin.GetConversation(c.Request.Context(), c.Param("id"))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toConversationResponse(conv))
}

// ListDecisions returns the audit trail of a conversation.
// GET /api/v1/admin/conversations/:id/decisions
func (h *Handler) ListDecisions(c *gin.Context) {
	var req transport.ListDecisionsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldErrors(err))
		return
	}

	entries, err := h.admin.ListDecisions(c.Request.Context(), domain.DecisionFilter{
		ConversationID: c.Param("id"),
		NeedsHuman:     req.NeedsHuman,
		Limit:          req.Limit,
		Offset:         req.Offset,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"items": entries})
}

// ReleaseConversation hands a conversation back to automation.
// POST /api/v1/admin/conversations/:id/release
func (h *Handler) ReleaseConversation(c *gin.Context) {
	var req transport.ReleaseConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldErrors(err))
		return
	}

	conv, err := h.admin.ReleaseConversation(c.Request.Context(), c.Param("id"), req.Stage)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toConversationResponse(conv))
}

// ListPersonas returns every persona.
// GET /api/v1/admin/personas
func (h *Handler) ListPersonas(c *gin.Context) {
	personas, err := h.admin.ListPersonas(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	out := make([]transport.PersonaResponse, 0, len(personas))
	for _, p := range personas {
		out = append(out, toPersonaResponse(p))
	}
	httpkit.OK(c, gin.H{"items": out})
}

// UpdatePersona edits a persona's playbook, links and automation toggle.
// PUT /api/v1/admin/personas/:id
func (h *Handler) UpdatePersona(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	var req transport.UpdatePersonaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldErrors(err))
		return
	}

	update := domain.PersonaUpdate{
		ID:                id,
		Name:              sanitize.TextPtr(req.Name),
		Playbook:          sanitize.TextPtr(req.Playbook),
		VideoURL:          trimPtr(req.VideoURL),
		SiteURL:           trimPtr(req.SiteURL),
		PaymentURL:        trimPtr(req.PaymentURL),
		FallbackGreeting:  sanitize.TextPtr(req.FallbackGreeting),
		HandoffEmail:      trimPtr(req.HandoffEmail),
		AutomationEnabled: req.AutomationEnabled,
	}
	if req.HandoffPhone != nil {
		normalized := phone.NormalizeE164(*req.HandoffPhone, h.region)
		update.HandoffPhone = &normalized
	}

	p, err := h.admin.UpdatePersona(c.Request.Context(), update)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toPersonaResponse(p))
}

func toTurn(req transport.ProcessRequest) (domain.Turn, error) {
	turn := domain.Turn{
		ConversationID:  strings.TrimSpace(req.ConversationID),
		IncomingMessage: sanitize.Message(req.IncomingMessage, maxMessageRunes),
		CurrentStageID:  req.CurrentStageID,
	}
	if req.PersonaID != nil {
		id, err := uuid.Parse(*req.PersonaID)
		if err != nil {
			return domain.Turn{}, err
		}
		turn.PersonaID = &id
	}
	for _, item := range req.ConversationHistory {
		turn.History = append(turn.History, domain.HistoryEntry{
			Direction: domain.Direction(item.Direction),
			Content:   sanitize.Message(item.Content, maxMessageRunes),
		})
	}
	return turn, nil
}

func toProcessResponse(d domain.Decision) transport.ProcessResponse {
	resp := transport.ProcessResponse{
		Handled:             true,
		Outcome:             string(domain.OutcomeHandled),
		Response:            d.Response,
		Stage:               string(d.Stage.Name),
		LabelID:             d.Stage.ID,
		LeadName:            d.LeadName,
		ShouldSendVideo:     d.ShouldSendVideo,
		ShouldSendSite:      d.ShouldSendSite,
		ShouldHandoff:       d.ShouldHandoff,
		HandoffReason:       d.HandoffReason,
		ConversationSummary: d.ConversationSummary,
		NeedsHuman:          d.NeedsHuman,
		VideoURL:            d.VideoURL,
		SiteURL:             d.SiteURL,
	}
	if d.BANT != nil {
		resp.BANTScore = &transport.BANTScore{
			Budget:    d.BANT.Budget,
			Authority: d.BANT.Authority,
			Need:      d.BANT.Need,
			Timing:    d.BANT.Timing,
		}
	}
	return resp
}

func toConversationResponse(c domain.Conversation) transport.ConversationResponse {
	return transport.ConversationResponse{
		ID:         c.ID,
		PersonaID:  c.PersonaID,
		Stage:      string(domain.CurrentStage(c.CurrentStageID).Name),
		LabelID:    c.CurrentStageID,
		LeadName:   c.LeadName,
		NeedsHuman: c.NeedsHuman,
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  c.UpdatedAt,
	}
}

func toPersonaResponse(p domain.Persona) transport.PersonaResponse {
	return transport.PersonaResponse{
		ID:                p.ID,
		Name:              p.Name,
		Playbook:          p.Playbook,
		VideoURL:          p.VideoURL,
		SiteURL:           p.SiteURL,
		PaymentURL:        p.PaymentURL,
		FallbackGreeting:  p.FallbackGreeting,
		HandoffEmail:      p.HandoffEmail,
		HandoffPhone:      p.HandoffPhone,
		AutomationEnabled: p.AutomationEnabled,
		IsDefault:         p.IsDefault,
		UpdatedAt:         p.UpdatedAt,
	}
}

func trimPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}
