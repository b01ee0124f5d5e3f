// Package identity owns users and agencies. Other modules read them through
// Directory; authentication itself happens elsewhere.
package identity

import (
	"context"
	"errors"

	"spotter_portal_backend/internal/identity/repository"
	"spotter_portal_backend/platform/httpkit"
)

const (
	RoleSpotter     = "spotter"
	RoleAgent       = "agent"
	RoleAgencyAdmin = "agency_admin"
)

// User and Agency are re-exported so callers need not import the repository.
type (
	User   = repository.User
	Agency = repository.Agency
)

var ErrNotFound = repository.ErrNotFound

type store interface {
	GetUser(ctx context.Context, id int64) (repository.User, error)
	GetAgency(ctx context.Context, id int64) (repository.Agency, error)
	ListAgencyMembers(ctx context.Context, agencyID int64, role string) ([]repository.User, error)
}

// Directory is the read API other modules depend on.
type Directory struct {
	store store
}

func NewDirectory(s store) *Directory {
	return &Directory{store: s}
}

func (d *Directory) GetUser(ctx context.Context, id int64) (User, error) {
	return d.store.GetUser(ctx, id)
}

func (d *Directory) GetAgency(ctx context.Context, id int64) (Agency, error) {
	return d.store.GetAgency(ctx, id)
}

// ListAgencyAdmins returns the active admins of agencyID.
func (d *Directory) ListAgencyAdmins(ctx context.Context, agencyID int64) ([]User, error) {
	return d.store.ListAgencyMembers(ctx, agencyID, RoleAgencyAdmin)
}

// ListAgencyAgents returns the active agents of agencyID.
func (d *Directory) ListAgencyAgents(ctx context.Context, agencyID int64) ([]User, error) {
	return d.store.ListAgencyMembers(ctx, agencyID, RoleAgent)
}

// LoadPrincipal implements httpkit.PrincipalLoader.
func (d *Directory) LoadPrincipal(ctx context.Context, userID int64) (httpkit.Principal, error) {
	u, err := d.store.GetUser(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return httpkit.Principal{}, httpkit.ErrPrincipalNotFound
	}
	if err != nil {
		return httpkit.Principal{}, err
	}
	return httpkit.Principal{
		UserID:   u.ID,
		Role:     u.Role,
		AgencyID: u.AgencyID,
		IsActive: u.IsActive,
	}, nil
}
