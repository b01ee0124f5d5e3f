// Package leads provides the lead lifecycle bounded context module.
// This file defines the module that encapsulates all leads setup and route registration.
package leads

import (
	"fmt"

	"spotter_portal_backend/internal/adapters/storage"
	"spotter_portal_backend/internal/events"
	apphttp "spotter_portal_backend/internal/http"
	"spotter_portal_backend/internal/leads/commission"
	"spotter_portal_backend/internal/leads/domain"
	"spotter_portal_backend/internal/leads/handler"
	"spotter_portal_backend/internal/leads/lifecycle"
	"spotter_portal_backend/internal/leads/ports"
	"spotter_portal_backend/internal/leads/repository"
	"spotter_portal_backend/platform/config"
	"spotter_portal_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Config combines the settings the leads module reads.
type Config interface {
	config.LifecycleConfig
	config.CommissionConfig
}

// Module is the leads bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	engine  *lifecycle.Engine
}

// Deps are the collaborators owned by other modules. Images may be nil when
// object storage is not configured.
type Deps struct {
	Users    ports.UserDirectory
	Notifier ports.Notifier
	Bus      events.Bus
	Images   *storage.MinIOService
}

// NewModule creates and initializes the leads module with all its dependencies.
func NewModule(pool *pgxpool.Pool, deps Deps, cfg Config, log *logger.Logger) (*Module, error) {
	policy, err := commission.FromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("commission policy: %w", err)
	}
	log.Info("commission policy loaded", "policy", policy.Name())

	engine := lifecycle.New(lifecycle.Deps{
		Store:        repository.New(pool),
		Users:        deps.Users,
		Notifier:     deps.Notifier,
		Policy:       policy,
		Bus:          deps.Bus,
		RejectPolicy: domain.ParseRejectPolicy(cfg.GetLeadRejectPolicy()),
		Log:          log,
	})

	// A typed nil pointer must not reach the handler interfaces.
	var (
		presigner ports.ImagePresigner
		uploads   handler.Uploader
	)
	if deps.Images != nil {
		presigner = deps.Images
		uploads = deps.Images
	}

	return &Module{
		handler: handler.New(engine, presigner, uploads, log),
		engine:  engine,
	}, nil
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "leads"
}

// Engine returns the lifecycle engine for external use.
func (m *Module) Engine() *lifecycle.Engine {
	return m.engine
}

// RegisterRoutes mounts leads routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	// All leads routes require authentication
	leadsGroup := ctx.Protected.Group("/leads")
	m.handler.RegisterRoutes(leadsGroup, ctx.WriteMiddleware...)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
