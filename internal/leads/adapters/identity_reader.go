package adapters

import (
	"context"
	"errors"
	"fmt"

	"spotter_portal_backend/internal/identity"
	"spotter_portal_backend/internal/leads/domain"
	"spotter_portal_backend/internal/leads/ports"
)

// IdentityReaderAdapter implements ports.UserDirectory using the identity directory.
type IdentityReaderAdapter struct {
	dir *identity.Directory
}

func NewIdentityReaderAdapter(dir *identity.Directory) *IdentityReaderAdapter {
	return &IdentityReaderAdapter{dir: dir}
}

func (a *IdentityReaderAdapter) GetUser(ctx context.Context, id int64) (ports.User, error) {
	u, err := a.dir.GetUser(ctx, id)
	if errors.Is(err, identity.ErrNotFound) {
		return ports.User{}, ports.ErrUserNotFound
	}
	if err != nil {
		return ports.User{}, fmt.Errorf("get user %d: %w", id, err)
	}
	return ports.User{
		ID:       u.ID,
		Role:     domain.Role(u.Role),
		AgencyID: u.AgencyID,
		Name:     u.Name,
		Email:    u.Email,
		IsActive: u.IsActive,
	}, nil
}

func (a *IdentityReaderAdapter) AgencyExists(ctx context.Context, agencyID int64) (bool, error) {
	_, err := a.dir.GetAgency(ctx, agencyID)
	if errors.Is(err, identity.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get agency %d: %w", agencyID, err)
	}
	return true, nil
}
