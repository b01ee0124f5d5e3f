// Package httpkit provides HTTP utilities including identity abstraction.
package httpkit

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ErrPrincipalNotFound is returned by a PrincipalLoader when the token
// subject does not resolve to a user.
var ErrPrincipalNotFound = errors.New("principal not found")

// Principal is the server-side view of an authenticated user. Role and
// agency always come from the user store, never from the request.
type Principal struct {
	UserID   int64
	Role     string
	AgencyID *int64
	IsActive bool
}

// PrincipalLoader resolves a token subject into a Principal.
type PrincipalLoader interface {
	LoadPrincipal(ctx context.Context, userID int64) (Principal, error)
}

// Identity represents the authenticated user's identity.
// This interface abstracts identity extraction from the web framework,
// allowing handlers to access user information without depending on Gin.
type Identity interface {
	// UserID returns the authenticated user's ID.
	UserID() int64
	// Role returns the user's role.
	Role() string
	// AgencyID returns the user's agency, nil for spotters.
	AgencyID() *int64
	// HasRole checks if the user has a specific role.
	HasRole(role string) bool
	// IsAuthenticated returns true if the user is authenticated.
	IsAuthenticated() bool
}

type identity struct {
	principal     Principal
	authenticated bool
}

func (i *identity) UserID() int64 {
	return i.principal.UserID
}

func (i *identity) Role() string {
	return i.principal.Role
}

func (i *identity) AgencyID() *int64 {
	return i.principal.AgencyID
}

func (i *identity) HasRole(role string) bool {
	return i.principal.Role == role
}

func (i *identity) IsAuthenticated() bool {
	return i.authenticated
}

// SetPrincipal stores p on the gin context. AuthRequired calls it after a
// successful token check.
func SetPrincipal(c *gin.Context, p Principal) {
	c.Set(ContextPrincipalKey, p)
	c.Set(ContextUserIDKey, p.UserID)
	c.Set(ContextRoleKey, p.Role)
}

// GetIdentity extracts the Identity from a Gin context.
// Returns an unauthenticated identity if user info is not present.
func GetIdentity(c *gin.Context) Identity {
	value, ok := c.Get(ContextPrincipalKey)
	if !ok {
		return &identity{}
	}

	p, ok := value.(Principal)
	if !ok || p.UserID == 0 {
		return &identity{}
	}

	return &identity{principal: p, authenticated: true}
}

// MustGetIdentity extracts the Identity from a Gin context.
// If the user is not authenticated, it aborts with 401 Unauthorized and returns nil.
func MustGetIdentity(c *gin.Context) Identity {
	id := GetIdentity(c)
	if !id.IsAuthenticated() {
		c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Code: "unauthorized"})
		return nil
	}
	return id
}
