package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"spotter_portal_backend/internal/notification/updates"
	"spotter_portal_backend/platform/apperr"
	"spotter_portal_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
)

// Inbox is the read side of the updates store.
type Inbox interface {
	ListForRecipient(ctx context.Context, recipientID int64, limit, offset int) ([]updates.Update, int, error)
	MarkRead(ctx context.Context, id, recipientID int64) (updates.Update, error)
}

type UpdateResponse struct {
	ID               int64      `json:"id"`
	RecipientID      int64      `json:"recipient_id"`
	LeadID           *int64     `json:"lead_id"`
	UpdateType       string     `json:"update_type"`
	TemplateName     string     `json:"template_name"`
	Title            string     `json:"title"`
	Message          string     `json:"message"`
	DeliveryStatus   string     `json:"delivery_status"`
	DeliveryAttempts int        `json:"delivery_attempts"`
	LastAttemptAt    *time.Time `json:"last_attempt_at"`
	DeliveredAt      *time.Time `json:"delivered_at"`
	IsRead           bool       `json:"is_read"`
	CreatedAt        time.Time  `json:"created_at"`
}

func ToUpdateResponse(u updates.Update) UpdateResponse {
	return UpdateResponse{
		ID:               u.ID,
		RecipientID:      u.RecipientID,
		LeadID:           u.LeadID,
		UpdateType:       u.UpdateType,
		TemplateName:     u.TemplateName,
		Title:            u.Title,
		Message:          u.Message,
		DeliveryStatus:   u.DeliveryStatus,
		DeliveryAttempts: u.DeliveryAttempts,
		LastAttemptAt:    u.LastAttemptAt,
		DeliveredAt:      u.DeliveredAt,
		IsRead:           u.IsRead(),
		CreatedAt:        u.CreatedAt,
	}
}

type HTTPHandler struct {
	inbox  Inbox
	stream gin.HandlerFunc
}

// NewHTTPHandler builds the handler. stream may be nil when live updates
// are not served by this process.
func NewHTTPHandler(inbox Inbox, stream gin.HandlerFunc) *HTTPHandler {
	return &HTTPHandler{inbox: inbox, stream: stream}
}

func (h *HTTPHandler) RegisterRoutes(rg *gin.RouterGroup, writeMiddleware ...gin.HandlerFunc) {
	rg.GET("/user/:id/", h.ListForUser)
	if h.stream != nil {
		rg.GET("/stream/", h.stream)
	}
	rg.PATCH("/:id/read/", append(append([]gin.HandlerFunc{}, writeMiddleware...), h.MarkRead)...)
}

// ListForUser pages through a user's updates. Users only see their own.
func (h *HTTPHandler) ListForUser(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	userID, err := parseID(c)
	if httpkit.HandleError(c, err) {
		return
	}
	if userID != identity.UserID() {
		httpkit.HandleError(c, apperr.Forbidden("you can only read your own updates"))
		return
	}

	page, err := httpkit.ParsePage(c)
	if httpkit.HandleError(c, err) {
		return
	}

	items, total, err := h.inbox.ListForRecipient(c.Request.Context(), userID, page.Size, page.Offset())
	if httpkit.HandleError(c, err) {
		return
	}

	results := make([]UpdateResponse, 0, len(items))
	for _, u := range items {
		results = append(results, ToUpdateResponse(u))
	}
	httpkit.OK(c, httpkit.NewPageResponse(c, page, total, results))
}

func (h *HTTPHandler) MarkRead(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	id, err := parseID(c)
	if httpkit.HandleError(c, err) {
		return
	}

	u, err := h.inbox.MarkRead(c.Request.Context(), id, identity.UserID())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusOK, ToUpdateResponse(u))
}

func parseID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.BadRequest("invalid id")
	}
	return id, nil
}
