//go:build integration

package repository

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"spotter_portal_backend/internal/leads/domain"
	"spotter_portal_backend/migrations"
	"spotter_portal_backend/platform/db"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
)

// Run with: TEST_DATABASE_URL=postgres://... go test -tags integration ./internal/leads/repository/

type dbConfig string

func (c dbConfig) GetDatabaseURL() string { return string(c) }

type fixture struct {
	repo    *Repository
	pool    *pgxpool.Pool
	spotter int64
	admin   int64
	agentA  int64
	agentB  int64
	agency  int64
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()

	require.NoError(t, db.RunMigrations(ctx, dbConfig(url), migrations.FS))
	pool, err := db.NewPool(ctx, dbConfig(url))
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	f := fixture{repo: New(pool), pool: pool}
	require.NoError(t, pool.QueryRow(ctx,
		`INSERT INTO agencies (name) VALUES ('Integration Makelaars') RETURNING id`).Scan(&f.agency))

	insertUser := func(role string, agencyID *int64) int64 {
		var id int64
		require.NoError(t, pool.QueryRow(ctx,
			`INSERT INTO users (role, agency_id, name) VALUES ($1, $2, $3) RETURNING id`,
			role, agencyID, "integration "+role).Scan(&id))
		return id
	}
	f.spotter = insertUser("spotter", nil)
	f.admin = insertUser("agency_admin", &f.agency)
	f.agentA = insertUser("agent", &f.agency)
	f.agentB = insertUser("agent", &f.agency)
	return f
}

func (f fixture) assign(t *testing.T, lead domain.Lead, agentID int64, action domain.Action, at time.Time) (domain.Lead, error) {
	t.Helper()
	next := lead
	next.Status = domain.StatusAssigned
	next.AgentID = &agentID
	next.AssignedAt = &at
	return f.repo.ApplyTransition(context.Background(), TransitionParams{
		Lead:                next,
		Action:              action,
		FromStatus:          lead.Status,
		ActorID:             f.admin,
		At:                  at,
		SupersedeAssignment: lead.Status == domain.StatusAssigned,
		NewAssignment:       &domain.Assignment{AgentID: agentID, AssignedByID: f.admin},
	})
}

func TestApplyTransitionVersionGuardAndAssignments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	lead, err := f.repo.Create(ctx, CreateLeadParams{SpotterID: f.spotter, AgencyID: f.agency, CreatedAt: now})
	require.NoError(t, err)

	assigned, err := f.assign(t, lead, f.agentA, domain.ActionAssign, now)
	require.NoError(t, err)
	require.Equal(t, domain.StatusAssigned, assigned.Status)
	require.Equal(t, lead.Version+1, assigned.Version)

	// A write based on the pre-assignment read must lose.
	_, err = f.assign(t, lead, f.agentB, domain.ActionAssign, now)
	require.True(t, errors.Is(err, ErrVersionConflict), "expected version conflict, got %v", err)

	missing := lead
	missing.ID = -1
	_, err = f.assign(t, missing, f.agentB, domain.ActionAssign, now)
	require.True(t, errors.Is(err, ErrNotFound), "expected not found, got %v", err)

	reassigned, err := f.assign(t, assigned, f.agentB, domain.ActionReassign, now.Add(time.Minute))
	require.NoError(t, err)
	require.Equal(t, f.agentB, *reassigned.AgentID)

	active, err := f.repo.ActiveAssignment(ctx, lead.ID)
	require.NoError(t, err)
	require.Equal(t, f.agentB, active.AgentID)

	var total, activeRows int
	require.NoError(t, f.pool.QueryRow(ctx, `
		SELECT count(*), count(*) FILTER (WHERE is_active)
		FROM lead_assignments WHERE lead_id = $1`, lead.ID).Scan(&total, &activeRows))
	require.Equal(t, 2, total)
	require.Equal(t, 1, activeRows)

	// The conflicting write rolled back, so it left no history row.
	history, err := f.repo.ListHistory(ctx, lead.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	require.Equal(t, domain.ActionSubmit, history[0].Action)
	require.Equal(t, domain.ActionAssign, history[1].Action)
	require.Equal(t, domain.ActionReassign, history[2].Action)
}

func TestApplyTransitionConcurrentAccept(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	lead, err := f.repo.Create(ctx, CreateLeadParams{SpotterID: f.spotter, AgencyID: f.agency, CreatedAt: now})
	require.NoError(t, err)
	lead, err = f.assign(t, lead, f.agentA, domain.ActionAssign, now)
	require.NoError(t, err)

	accepted := lead
	accepted.Status = domain.StatusInProgress
	accepted.IsAccepted = true
	accepted.AcceptedAt = &now

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.repo.ApplyTransition(ctx, TransitionParams{
				Lead:       accepted,
				Action:     domain.ActionAccept,
				FromStatus: domain.StatusAssigned,
				ActorID:    f.agentA,
				At:         now,
			})
		}(i)
	}
	wg.Wait()

	var ok, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrVersionConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, 1, ok)
	require.Equal(t, 1, conflicts)
}
