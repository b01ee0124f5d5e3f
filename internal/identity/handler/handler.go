package handler

import (
	"context"
	"errors"
	"strconv"
	"time"

	"spotter_portal_backend/internal/identity/repository"
	"spotter_portal_backend/platform/apperr"
	"spotter_portal_backend/platform/httpkit"
	"spotter_portal_backend/platform/phone"

	"github.com/gin-gonic/gin"
)

// Directory is the subset of identity.Directory the handler needs.
type Directory interface {
	GetUser(ctx context.Context, id int64) (repository.User, error)
	GetAgency(ctx context.Context, id int64) (repository.Agency, error)
	ListAgencyAgents(ctx context.Context, agencyID int64) ([]repository.User, error)
}

type Handler struct {
	dir Directory
}

func New(dir Directory) *Handler {
	return &Handler{dir: dir}
}

type UserResponse struct {
	ID        int64     `json:"id"`
	Role      string    `json:"role"`
	AgencyID  *int64    `json:"agency_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

type AgencyResponse struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

func toUserResponse(u repository.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Role:      u.Role,
		AgencyID:  u.AgencyID,
		Name:      u.Name,
		Email:     u.Email,
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
	}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/users/me/", h.Me)
	rg.GET("/agencies/:id/", h.GetAgency)
	rg.GET("/agencies/:id/agents/", h.ListAgents)
}

func (h *Handler) Me(c *gin.Context) {
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return
	}

	user, err := h.dir.GetUser(c.Request.Context(), id.UserID())
	if err != nil {
		httpkit.HandleError(c, mapErr(err, "user not found"))
		return
	}
	httpkit.OK(c, toUserResponse(user))
}

func (h *Handler) GetAgency(c *gin.Context) {
	agencyID, err := parseID(c)
	if httpkit.HandleError(c, err) {
		return
	}

	agency, err := h.dir.GetAgency(c.Request.Context(), agencyID)
	if err != nil {
		httpkit.HandleError(c, mapErr(err, "agency not found"))
		return
	}
	httpkit.OK(c, AgencyResponse{
		ID:      agency.ID,
		Name:    agency.Name,
		Email:   agency.Email,
		Phone:   phone.NormalizeE164(agency.Phone),
		Address: agency.Address,
	})
}

// ListAgents lists the agents an admin can assign leads to.
func (h *Handler) ListAgents(c *gin.Context) {
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return
	}
	agencyID, err := parseID(c)
	if httpkit.HandleError(c, err) {
		return
	}
	if !id.HasRole("agency_admin") || id.AgencyID() == nil || *id.AgencyID() != agencyID {
		httpkit.HandleError(c, apperr.Forbidden("only admins of this agency can list its agents"))
		return
	}

	agents, err := h.dir.ListAgencyAgents(c.Request.Context(), agencyID)
	if err != nil {
		httpkit.HandleError(c, apperr.Unavailable("could not list agents", err))
		return
	}
	out := make([]UserResponse, 0, len(agents))
	for _, a := range agents {
		out = append(out, toUserResponse(a))
	}
	httpkit.OK(c, out)
}

func parseID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.FieldValidation("id", "id must be a positive integer")
	}
	return id, nil
}

func mapErr(err error, notFound string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound(notFound)
	}
	return apperr.Unavailable("identity lookup failed", err)
}
