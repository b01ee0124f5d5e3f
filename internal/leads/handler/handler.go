package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"spotter_portal_backend/internal/adapters/storage"
	"spotter_portal_backend/internal/leads/domain"
	"spotter_portal_backend/internal/leads/lifecycle"
	"spotter_portal_backend/internal/leads/ports"
	"spotter_portal_backend/internal/leads/stats"
	"spotter_portal_backend/internal/leads/transport"
	"spotter_portal_backend/platform/apperr"
	"spotter_portal_backend/platform/httpkit"
	"spotter_portal_backend/platform/logger"
	"spotter_portal_backend/platform/sanitize"
	"spotter_portal_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidPrice     = "final_price must be a decimal with at most two fractional digits"

	presignConcurrency = 4
)

// Uploader issues presigned upload URLs for lead images.
type Uploader interface {
	GenerateUploadURL(ctx context.Context, uploaderID int64, fileName, contentType string, sizeBytes int64) (*storage.PresignedURL, error)
}

type Handler struct {
	engine  *lifecycle.Engine
	images  ports.ImagePresigner
	uploads Uploader
	log     *logger.Logger
}

// New builds the handler. images and uploads may be nil when object storage
// is not configured.
func New(engine *lifecycle.Engine, images ports.ImagePresigner, uploads Uploader, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{engine: engine, images: images, uploads: uploads, log: log}
}

// RegisterRoutes mounts the lead routes. writeMiddleware runs in front of
// every mutating route.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, writeMiddleware ...gin.HandlerFunc) {
	write := func(handler gin.HandlerFunc) []gin.HandlerFunc {
		return append(append([]gin.HandlerFunc{}, writeMiddleware...), handler)
	}

	rg.POST("/", write(h.Submit)...)
	rg.POST("/images/upload-url/", write(h.ImageUploadURL)...)

	rg.GET("/spotter/:id/", h.list(stats.ScopeSpotter))
	rg.GET("/agency/:id/", h.list(stats.ScopeAgency))
	rg.GET("/agent/:id/", h.list(stats.ScopeAgent))
	rg.GET("/spotter/:id/stats/", h.stats(stats.ScopeSpotter))
	rg.GET("/agency/:id/stats/", h.stats(stats.ScopeAgency))
	rg.GET("/agent/:id/stats/", h.stats(stats.ScopeAgent))

	rg.GET("/:id/", h.Get)
	rg.GET("/:id/history/", h.History)
	rg.PATCH("/:id/assign/", write(h.Assign)...)
	rg.PATCH("/:id/accept/", write(h.Respond)...)
	rg.PATCH("/:id/complete/", write(h.Complete)...)
	rg.PATCH("/:id/fail/", write(h.Fail)...)
	rg.POST("/:id/notify/", write(h.Notify)...)
}

func (h *Handler) Submit(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	var req transport.SubmitLeadRequest
	if !bind(c, &req) {
		return
	}
	for _, key := range req.Images {
		if !storage.OwnsKey(actor.ID, key) {
			httpkit.HandleError(c, apperr.FieldValidation("images", "images must be keys returned by the upload endpoint"))
			return
		}
	}

	lead, err := h.engine.Submit(c.Request.Context(), actor, lifecycle.SubmitInput{
		AgencyID:         req.AgencyID,
		RequestedAgentID: req.RequestedAgentID,
		NotesText:        sanitize.Text(req.NotesText),
		Images:           req.Images,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, transport.ToLeadResponse(lead))
}

// ImageUploadURL hands a spotter a presigned PUT URL for one lead image.
func (h *Handler) ImageUploadURL(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	if actor.Role != domain.RoleSpotter {
		httpkit.HandleError(c, apperr.Forbidden("only spotters can upload lead images"))
		return
	}
	if h.uploads == nil {
		httpkit.HandleError(c, apperr.Unavailable("image uploads are not configured", nil))
		return
	}
	var req transport.ImageUploadRequest
	if !bind(c, &req) {
		return
	}

	presigned, err := h.uploads.GenerateUploadURL(c.Request.Context(), actor.ID, req.FileName, req.ContentType, req.SizeBytes)
	if errors.Is(err, storage.ErrInvalidUpload) {
		httpkit.HandleError(c, apperr.Validation(err.Error()))
		return
	}
	if err != nil {
		httpkit.HandleError(c, apperr.Unavailable("could not prepare upload", err))
		return
	}
	httpkit.OK(c, presigned)
}

func (h *Handler) Get(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	leadID, err := parseID(c)
	if httpkit.HandleError(c, err) {
		return
	}

	lead, err := h.engine.Get(c.Request.Context(), actor, leadID)
	if httpkit.HandleError(c, err) {
		return
	}
	resp := transport.ToLeadResponse(lead)
	h.attachImageURLs(c.Request.Context(), &resp)
	httpkit.OK(c, resp)
}

func (h *Handler) History(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	leadID, err := parseID(c)
	if httpkit.HandleError(c, err) {
		return
	}

	entries, err := h.engine.History(c.Request.Context(), actor, leadID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToHistoryResponses(entries))
}

func (h *Handler) list(scope stats.Scope) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := actorFrom(c)
		if !ok {
			return
		}
		subjectID, err := parseID(c)
		if httpkit.HandleError(c, err) {
			return
		}
		page, err := httpkit.ParsePage(c)
		if httpkit.HandleError(c, err) {
			return
		}
		showAll := false
		if raw := c.Query("show_all"); raw != "" {
			showAll, err = strconv.ParseBool(raw)
			if err != nil {
				httpkit.HandleError(c, apperr.FieldValidation("show_all", "show_all must be true or false"))
				return
			}
		}

		leads, total, err := h.engine.List(c.Request.Context(), actor, lifecycle.ListQuery{
			Scope:     scope,
			SubjectID: subjectID,
			ShowAll:   showAll,
			Limit:     page.Size,
			Offset:    page.Offset(),
		})
		if httpkit.HandleError(c, err) {
			return
		}
		httpkit.OK(c, httpkit.NewPageResponse(c, page, total, transport.ToLeadResponses(leads)))
	}
}

func (h *Handler) stats(scope stats.Scope) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := actorFrom(c)
		if !ok {
			return
		}
		subjectID, err := parseID(c)
		if httpkit.HandleError(c, err) {
			return
		}

		s, err := h.engine.Stats(c.Request.Context(), actor, scope, subjectID)
		if httpkit.HandleError(c, err) {
			return
		}
		httpkit.OK(c, transport.StatsResponse{Scope: string(scope), ID: subjectID, Stats: s})
	}
}

func (h *Handler) Assign(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	leadID, err := parseID(c)
	if httpkit.HandleError(c, err) {
		return
	}
	var req transport.AssignLeadRequest
	if !bind(c, &req) {
		return
	}

	lead, err := h.engine.Assign(c.Request.Context(), actor, leadID, lifecycle.AssignInput{AgentID: req.AgentID, Notes: sanitize.Text(req.Notes)})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToLeadResponse(lead))
}

// Respond handles accept and reject; the body's action picks which.
func (h *Handler) Respond(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	leadID, err := parseID(c)
	if httpkit.HandleError(c, err) {
		return
	}
	var req transport.RespondLeadRequest
	if !bind(c, &req) {
		return
	}

	lead, err := h.engine.Respond(c.Request.Context(), actor, leadID, lifecycle.RespondInput{
		Action: domain.Action(req.Action),
		Notes:  sanitize.Text(req.Notes),
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToLeadResponse(lead))
}

func (h *Handler) Complete(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	leadID, err := parseID(c)
	if httpkit.HandleError(c, err) {
		return
	}
	var req transport.CompleteLeadRequest
	if !bind(c, &req) {
		return
	}

	cents, err := finalPriceCents(req.FinalPrice)
	if httpkit.HandleError(c, err) {
		return
	}

	lead, err := h.engine.Complete(c.Request.Context(), actor, leadID, lifecycle.CompleteInput{
		FinalPriceCents: cents,
		Notes:           sanitize.Text(req.Notes),
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToLeadResponse(lead))
}

// finalPriceCents returns 0 for a missing price; the lifecycle rejects it.
func finalPriceCents(p transport.Price) (int64, error) {
	text, ok := p.Text()
	if ok && text == "" {
		return 0, nil
	}
	if ok && validator.Validate.Var(text, "price") == nil {
		if cents, err := domain.ParseCents(text); err == nil {
			return cents, nil
		}
	}
	return 0, apperr.FieldValidation("final_price", msgInvalidPrice)
}

func (h *Handler) Fail(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	leadID, err := parseID(c)
	if httpkit.HandleError(c, err) {
		return
	}
	var req transport.FailLeadRequest
	if !bind(c, &req) {
		return
	}

	lead, err := h.engine.Fail(c.Request.Context(), actor, leadID, lifecycle.FailInput{
		Reason: sanitize.Text(req.Reason),
		Notes:  sanitize.Text(req.Notes),
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToLeadResponse(lead))
}

func (h *Handler) Notify(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	leadID, err := parseID(c)
	if httpkit.HandleError(c, err) {
		return
	}
	var req transport.NotifyLeadRequest
	if !bind(c, &req) {
		return
	}

	sent, err := h.engine.Notify(c.Request.Context(), actor, leadID, lifecycle.NotifyInput{
		TemplateName: req.TemplateName,
		Variables:    req.Variables,
		RecipientID:  req.RecipientID,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, transport.ToNotificationResponse(sent))
}

// attachImageURLs presigns every image key. Images stay visible by key when
// signing fails.
func (h *Handler) attachImageURLs(ctx context.Context, resp *transport.LeadResponse) {
	if h.images == nil || len(resp.Images) == 0 {
		return
	}

	urls := make([]string, len(resp.Images))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(presignConcurrency)
	for i, key := range resp.Images {
		g.Go(func() error {
			u, err := h.images.PresignGet(gctx, key)
			if err != nil {
				return err
			}
			urls[i] = u
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		h.log.WithContext(ctx).Warn("presign lead images failed", "lead_id", resp.ID, "error", err)
		return
	}
	resp.ImageURLs = urls
}

func actorFrom(c *gin.Context) (domain.Actor, bool) {
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return domain.Actor{}, false
	}
	return domain.Actor{ID: id.UserID(), Role: domain.Role(id.Role()), AgencyID: id.AgencyID()}, true
}

func bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		httpkit.HandleError(c, apperr.BadRequest(msgInvalidRequest))
		return false
	}
	if err := validator.Validate.Struct(req); err != nil {
		httpkit.HandleError(c, apperr.Validation(msgValidationFailed).WithDetails(validator.FieldErrors(err)))
		return false
	}
	return true
}

func parseID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.FieldValidation("id", "id must be a positive integer")
	}
	return id, nil
}
