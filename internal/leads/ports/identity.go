package ports

import (
	"context"
	"errors"

	"spotter_portal_backend/internal/leads/domain"
)

var ErrUserNotFound = errors.New("user not found")

// User is the slice of a user record the lifecycle needs.
type User struct {
	ID       int64
	Role     domain.Role
	AgencyID *int64
	Name     string
	Email    string
	IsActive bool
}

// InAgency reports whether the user belongs to agencyID.
func (u User) InAgency(agencyID int64) bool {
	return u.AgencyID != nil && *u.AgencyID == agencyID
}

// UserDirectory resolves users and agencies owned by the identity module.
type UserDirectory interface {
	GetUser(ctx context.Context, id int64) (User, error)
	AgencyExists(ctx context.Context, agencyID int64) (bool, error)
}
