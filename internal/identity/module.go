// Package identity provides the identity bounded context module.
package identity

import (
	apphttp "spotter_portal_backend/internal/http"
	"spotter_portal_backend/internal/identity/handler"
	"spotter_portal_backend/internal/identity/repository"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Module struct {
	handler   *handler.Handler
	directory *Directory
}

func NewModule(pool *pgxpool.Pool) *Module {
	dir := NewDirectory(repository.New(pool))
	return &Module{handler: handler.New(dir), directory: dir}
}

func (m *Module) Name() string {
	return "identity"
}

// Directory exposes the read API for other modules and the auth middleware.
func (m *Module) Directory() *Directory {
	return m.directory
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected)
}
