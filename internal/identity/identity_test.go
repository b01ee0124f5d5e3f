package identity

import (
	"context"
	"errors"
	"testing"

	"spotter_portal_backend/internal/identity/repository"
	"spotter_portal_backend/platform/httpkit"
)

type fakeStore struct {
	users map[int64]repository.User
	err   error
}

func (f fakeStore) GetUser(_ context.Context, id int64) (repository.User, error) {
	if f.err != nil {
		return repository.User{}, f.err
	}
	u, ok := f.users[id]
	if !ok {
		return repository.User{}, repository.ErrNotFound
	}
	return u, nil
}

func (f fakeStore) GetAgency(context.Context, int64) (repository.Agency, error) {
	return repository.Agency{}, repository.ErrNotFound
}

func (f fakeStore) ListAgencyMembers(_ context.Context, agencyID int64, role string) ([]repository.User, error) {
	out := make([]repository.User, 0)
	for _, u := range f.users {
		if u.AgencyID != nil && *u.AgencyID == agencyID && u.Role == role && u.IsActive {
			out = append(out, u)
		}
	}
	return out, nil
}

func TestLoadPrincipal(t *testing.T) {
	agency := int64(3)
	dir := NewDirectory(fakeStore{users: map[int64]repository.User{
		7: {ID: 7, Role: RoleAgent, AgencyID: &agency, IsActive: true},
	}})

	p, err := dir.LoadPrincipal(context.Background(), 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.UserID != 7 || p.Role != RoleAgent || p.AgencyID == nil || *p.AgencyID != 3 || !p.IsActive {
		t.Fatalf("unexpected principal %+v", p)
	}

	if _, err := dir.LoadPrincipal(context.Background(), 99); !errors.Is(err, httpkit.ErrPrincipalNotFound) {
		t.Fatalf("expected ErrPrincipalNotFound, got %v", err)
	}
}

func TestLoadPrincipalPassesThroughStoreFailure(t *testing.T) {
	boom := errors.New("connection reset")
	dir := NewDirectory(fakeStore{err: boom})
	if _, err := dir.LoadPrincipal(context.Background(), 7); !errors.Is(err, boom) {
		t.Fatalf("expected store error, got %v", err)
	}
}

func TestListAgencyAdminsFiltersRoleAndActivity(t *testing.T) {
	agency := int64(3)
	other := int64(4)
	dir := NewDirectory(fakeStore{users: map[int64]repository.User{
		1: {ID: 1, Role: RoleAgencyAdmin, AgencyID: &agency, IsActive: true},
		2: {ID: 2, Role: RoleAgencyAdmin, AgencyID: &agency, IsActive: false},
		3: {ID: 3, Role: RoleAgent, AgencyID: &agency, IsActive: true},
		4: {ID: 4, Role: RoleAgencyAdmin, AgencyID: &other, IsActive: true},
	}})

	admins, err := dir.ListAgencyAdmins(context.Background(), agency)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(admins) != 1 || admins[0].ID != 1 {
		t.Fatalf("expected only admin 1, got %+v", admins)
	}
}
