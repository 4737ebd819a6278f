package transport

import (
	"time"

	"github.com/google/uuid"
)

// Agent process endpoint. Field names follow the external SDR contract.

type HistoryItem struct {
	Direction string `json:"direction" validate:"required,oneof=incoming outgoing"`
	Content   string `json:"content" validate:"max=4096"`
}

type ProcessRequest struct {
	ConversationID      string        `json:"conversation_id" validate:"required,max=128"`
	IncomingMessage     string        `json:"incoming_message" validate:"required,max=4096"`
	ConversationHistory []HistoryItem `json:"conversation_history" validate:"max=200,dive"`
	CurrentStageID      *string       `json:"current_stage_id" validate:"omitempty,max=64"`
	PersonaID           *string       `json:"persona_id" validate:"omitempty,uuid"`
}

type BANTScore struct {
	Budget    *bool `json:"budget"`
	Authority *bool `json:"authority"`
	Need      *bool `json:"need"`
	Timing    *bool `json:"timing"`
}

type ProcessResponse struct {
	Handled             bool       `json:"handled"`
	Outcome             string     `json:"outcome"`
	Response            string     `json:"response"`
	Stage               string     `json:"stage"`
	LabelID             string     `json:"label_id"`
	LeadName            *string    `json:"lead_name"`
	ShouldSendVideo     bool       `json:"should_send_video"`
	ShouldSendSite      bool       `json:"should_send_site"`
	ShouldHandoff       bool       `json:"should_handoff"`
	HandoffReason       *string    `json:"handoff_reason"`
	ConversationSummary *string    `json:"conversation_summary"`
	NeedsHuman          bool       `json:"needs_human"`
	VideoURL            *string    `json:"video_url"`
	SiteURL             *string    `json:"site_url"`
	BANTScore           *BANTScore `json:"bant_score"`
}

// NotHandledResponse answers turns the engine declined to process.
type NotHandledResponse struct {
	Handled bool   `json:"handled"`
	Outcome string `json:"outcome"`
	Stage   string `json:"stage"`
	LabelID string `json:"label_id"`
}

// Admin endpoints

type StageResponse struct {
	ID        string `json:"id"`
	Order     int    `json:"order"`
	Name      string `json:"name"`
	Objective string `json:"objective"`
}

type ConversationResponse struct {
	ID         string     `json:"id"`
	PersonaID  *uuid.UUID `json:"personaId"`
	Stage      string     `json:"stage"`
	LabelID    *string    `json:"labelId"`
	LeadName   *string    `json:"leadName"`
	NeedsHuman bool       `json:"needsHuman"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

type ListDecisionsRequest struct {
	NeedsHuman *bool `form:"needsHuman"`
	Limit      int   `form:"limit" validate:"omitempty,min=1,max=200"`
	Offset     int   `form:"offset" validate:"omitempty,min=0"`
}

type ReleaseConversationRequest struct {
	Stage string `json:"stage" validate:"omitempty,max=64"`
}

type PersonaResponse struct {
	ID                uuid.UUID `json:"id"`
	Name              string    `json:"name"`
	Playbook          *string   `json:"playbook"`
	VideoURL          *string   `json:"videoUrl"`
	SiteURL           *string   `json:"siteUrl"`
	PaymentURL        *string   `json:"paymentUrl"`
	FallbackGreeting  *string   `json:"fallbackGreeting"`
	HandoffEmail      *string   `json:"handoffEmail"`
	HandoffPhone      *string   `json:"handoffPhone"`
	AutomationEnabled bool      `json:"automationEnabled"`
	IsDefault         bool      `json:"isDefault"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

type UpdatePersonaRequest struct {
	Name              *string `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
	Playbook          *string `json:"playbook,omitempty" validate:"omitempty,max=20000"`
	VideoURL          *string `json:"videoUrl,omitempty" validate:"omitempty,url,max=500"`
	SiteURL           *string `json:"siteUrl,omitempty" validate:"omitempty,url,max=500"`
	PaymentURL        *string `json:"paymentUrl,omitempty" validate:"omitempty,url,max=500"`
	FallbackGreeting  *string `json:"fallbackGreeting,omitempty" validate:"omitempty,max=400"`
	HandoffEmail      *string `json:"handoffEmail,omitempty" validate:"omitempty,email,max=254"`
	HandoffPhone      *string `json:"handoffPhone,omitempty" validate:"omitempty,max=32"`
	AutomationEnabled *bool   `json:"automationEnabled,omitempty"`
}
