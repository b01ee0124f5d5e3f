package transport

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"spotter_portal_backend/internal/leads/domain"
	"spotter_portal_backend/internal/leads/ports"
	"spotter_portal_backend/internal/leads/stats"
)

// Request DTOs

type SubmitLeadRequest struct {
	AgencyID         int64    `json:"agency_id" validate:"required,gt=0"`
	RequestedAgentID *int64   `json:"requested_agent_id" validate:"omitempty,gt=0"`
	NotesText        string   `json:"notes_text" validate:"max=5000"`
	Images           []string `json:"images" validate:"max=20,dive,notblank,max=512"`
}

type AssignLeadRequest struct {
	AgentID int64  `json:"agent_id" validate:"required,gt=0"`
	Notes   string `json:"notes" validate:"max=2000"`
}

type RespondLeadRequest struct {
	Action string `json:"action" validate:"omitempty,oneof=accept reject"`
	Notes  string `json:"notes" validate:"max=2000"`
}

// CompleteLeadRequest takes the price as a JSON number or string with at
// most two decimals. Whether it is positive is decided by the lifecycle.
type CompleteLeadRequest struct {
	FinalPrice Price  `json:"final_price"`
	Notes      string `json:"notes" validate:"max=2000"`
}

// Price holds the raw final_price value. Decoding never fails, so a value
// of the wrong type is reported against the field instead of the body.
type Price struct {
	raw json.RawMessage
}

func (p *Price) UnmarshalJSON(data []byte) error {
	p.raw = append(p.raw[:0], data...)
	return nil
}

// Text returns the price as decimal text, "" when it is missing or null.
// ok is false for anything but a JSON number or string.
func (p Price) Text() (text string, ok bool) {
	raw := bytes.TrimSpace(p.raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", true
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", false
		}
		return strings.TrimSpace(s), true
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", false
	}
	return n.String(), true
}

type FailLeadRequest struct {
	Reason string `json:"reason" validate:"max=2000"`
	Notes  string `json:"notes" validate:"max=2000"`
}

type NotifyLeadRequest struct {
	TemplateName string                 `json:"template_name" validate:"max=100"`
	Variables    map[string]interface{} `json:"variables"`
	RecipientID  *int64                 `json:"recipient_id" validate:"omitempty,gt=0"`
}

type ImageUploadRequest struct {
	FileName    string `json:"file_name" validate:"required,notblank,max=255"`
	ContentType string `json:"content_type" validate:"required"`
	SizeBytes   int64  `json:"size_bytes" validate:"required,gt=0"`
}

// Response DTOs

// LeadResponse renders money as decimal strings ("500000.00").
type LeadResponse struct {
	ID                      int64      `json:"id"`
	Status                  string     `json:"status"`
	IsAccepted              bool       `json:"is_accepted"`
	Spotter                 int64      `json:"spotter"`
	Agency                  int64      `json:"agency"`
	Agent                   *int64     `json:"agent"`
	RequestedAgent          *int64     `json:"requested_agent"`
	FinalPrice              *string    `json:"final_price"`
	AgreedCommissionAmount  *string    `json:"agreed_commission_amount"`
	SpotterCommissionAmount *string    `json:"spotter_commission_amount"`
	FailureReason           *string    `json:"failure_reason"`
	NotesText               string     `json:"notes_text"`
	Images                  []string   `json:"images"`
	ImageURLs               []string   `json:"image_urls,omitempty"`
	Version                 int64      `json:"version"`
	CreatedAt               time.Time  `json:"created_at"`
	AssignedAt              *time.Time `json:"assigned_at"`
	AcceptedAt              *time.Time `json:"accepted_at"`
	ClosedAt                *time.Time `json:"closed_at"`
}

type HistoryEntryResponse struct {
	ID         int64     `json:"id"`
	Action     string    `json:"action"`
	FromStatus *string   `json:"from_status"`
	ToStatus   string    `json:"to_status"`
	Actor      int64     `json:"actor"`
	Notes      string    `json:"notes"`
	CreatedAt  time.Time `json:"created_at"`
}

type StatsResponse struct {
	Scope string `json:"scope"`
	ID    int64  `json:"id"`
	stats.Stats
}

type NotificationResponse struct {
	ID             int64     `json:"id"`
	Recipient      int64     `json:"recipient"`
	LeadID         *int64    `json:"lead_id"`
	UpdateType     string    `json:"update_type"`
	TemplateName   string    `json:"template_name"`
	Title          string    `json:"title"`
	Message        string    `json:"message"`
	DeliveryStatus string    `json:"delivery_status"`
	CreatedAt      time.Time `json:"created_at"`
}

func money(cents *int64) *string {
	if cents == nil {
		return nil
	}
	s := domain.FormatCents(*cents)
	return &s
}

func ToLeadResponse(lead domain.Lead) LeadResponse {
	images := lead.Images
	if images == nil {
		images = []string{}
	}
	return LeadResponse{
		ID:                      lead.ID,
		Status:                  string(lead.Status),
		IsAccepted:              lead.IsAccepted,
		Spotter:                 lead.SpotterID,
		Agency:                  lead.AgencyID,
		Agent:                   lead.AgentID,
		RequestedAgent:          lead.RequestedAgentID,
		FinalPrice:              money(lead.FinalPriceCents),
		AgreedCommissionAmount:  money(lead.AgreedCommissionAmountCents),
		SpotterCommissionAmount: money(lead.SpotterCommissionAmountCents),
		FailureReason:           lead.FailureReason,
		NotesText:               lead.NotesText,
		Images:                  images,
		Version:                 lead.Version,
		CreatedAt:               lead.CreatedAt,
		AssignedAt:              lead.AssignedAt,
		AcceptedAt:              lead.AcceptedAt,
		ClosedAt:                lead.ClosedAt,
	}
}

func ToLeadResponses(leads []domain.Lead) []LeadResponse {
	out := make([]LeadResponse, 0, len(leads))
	for _, l := range leads {
		out = append(out, ToLeadResponse(l))
	}
	return out
}

func ToHistoryResponses(entries []domain.HistoryEntry) []HistoryEntryResponse {
	out := make([]HistoryEntryResponse, 0, len(entries))
	for _, e := range entries {
		var from *string
		if e.FromStatus != nil {
			s := string(*e.FromStatus)
			from = &s
		}
		out = append(out, HistoryEntryResponse{
			ID:         e.ID,
			Action:     string(e.Action),
			FromStatus: from,
			ToStatus:   string(e.ToStatus),
			Actor:      e.ActorID,
			Notes:      e.Notes,
			CreatedAt:  e.CreatedAt,
		})
	}
	return out
}

func ToNotificationResponse(n ports.SentNotification) NotificationResponse {
	return NotificationResponse{
		ID:             n.ID,
		Recipient:      n.RecipientID,
		LeadID:         n.LeadID,
		UpdateType:     n.UpdateType,
		TemplateName:   n.TemplateName,
		Title:          n.Title,
		Message:        n.Message,
		DeliveryStatus: n.DeliveryStatus,
		CreatedAt:      n.CreatedAt,
	}
}
