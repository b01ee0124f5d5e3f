package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"spotter_portal_backend/internal/leads/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const leadColumns = `
	id, status, is_accepted, spotter_id, agency_id, agent_id, requested_agent_id,
	final_price_cents, agreed_commission_amount_cents, spotter_commission_amount_cents,
	failure_reason, notes_text, images, version,
	created_at, assigned_at, accepted_at, closed_at`

type Repository struct {
	pool *pgxpool.Pool
}

var _ Store = (*Repository)(nil)

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanLead(row pgx.Row) (domain.Lead, error) {
	var lead domain.Lead
	var status string
	err := row.Scan(
		&lead.ID, &status, &lead.IsAccepted, &lead.SpotterID, &lead.AgencyID, &lead.AgentID, &lead.RequestedAgentID,
		&lead.FinalPriceCents, &lead.AgreedCommissionAmountCents, &lead.SpotterCommissionAmountCents,
		&lead.FailureReason, &lead.NotesText, &lead.Images, &lead.Version,
		&lead.CreatedAt, &lead.AssignedAt, &lead.AcceptedAt, &lead.ClosedAt,
	)
	if err != nil {
		return domain.Lead{}, err
	}
	lead.Status = domain.Status(status)
	return lead, nil
}

func (r *Repository) GetByID(ctx context.Context, id int64) (domain.Lead, error) {
	lead, err := scanLead(r.pool.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Lead{}, ErrNotFound
	}
	return lead, err
}

func buildWhere(filter Filter) (string, []interface{}) {
	clauses := make([]string, 0, 4)
	args := make([]interface{}, 0, 4)

	add := func(clause string, arg interface{}) {
		args = append(args, arg)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if filter.SpotterID != nil {
		add("spotter_id = $%d", *filter.SpotterID)
	}
	if filter.AgencyID != nil {
		add("agency_id = $%d", *filter.AgencyID)
	}
	if filter.AgentID != nil {
		add("agent_id = $%d", *filter.AgentID)
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		add("status = ANY($%d)", statuses)
	}

	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func (r *Repository) List(ctx context.Context, params ListParams) ([]domain.Lead, int, error) {
	where, args := buildWhere(params.Filter)

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM leads`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, params.Limit, params.Offset)
	query := fmt.Sprintf(`SELECT %s FROM leads%s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		leadColumns, where, len(args)-1, len(args))

	leads, err := r.queryLeads(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return leads, total, nil
}

func (r *Repository) ListAll(ctx context.Context, filter Filter) ([]domain.Lead, error) {
	where, args := buildWhere(filter)
	return r.queryLeads(ctx, `SELECT `+leadColumns+` FROM leads`+where+` ORDER BY created_at DESC, id DESC`, args...)
}

func (r *Repository) queryLeads(ctx context.Context, query string, args ...interface{}) ([]domain.Lead, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	leads := make([]domain.Lead, 0)
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, lead)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return leads, nil
}

func (r *Repository) Create(ctx context.Context, params CreateLeadParams) (domain.Lead, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.Lead{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	images := params.Images
	if images == nil {
		images = []string{}
	}

	lead, err := scanLead(tx.QueryRow(ctx, `
		INSERT INTO leads (status, spotter_id, agency_id, requested_agent_id, notes_text, images, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+leadColumns,
		string(domain.StatusNew), params.SpotterID, params.AgencyID, params.RequestedAgentID,
		params.NotesText, images, params.CreatedAt,
	))
	if err != nil {
		return domain.Lead{}, fmt.Errorf("insert lead: %w", err)
	}

	if err := insertHistory(ctx, tx, lead.ID, domain.ActionSubmit, nil, lead.Status, params.SpotterID, "", params.CreatedAt); err != nil {
		return domain.Lead{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Lead{}, fmt.Errorf("commit lead: %w", err)
	}
	return lead, nil
}

// ApplyTransition writes the new lead state guarded by the version that was
// read, then appends history and updates assignments in the same
// transaction.
func (r *Repository) ApplyTransition(ctx context.Context, params TransitionParams) (domain.Lead, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.Lead{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	l := params.Lead
	updated, err := scanLead(tx.QueryRow(ctx, `
		UPDATE leads SET
			status = $3, is_accepted = $4, agent_id = $5,
			final_price_cents = $6, agreed_commission_amount_cents = $7, spotter_commission_amount_cents = $8,
			failure_reason = $9, assigned_at = $10, accepted_at = $11, closed_at = $12,
			version = version + 1
		WHERE id = $1 AND version = $2
		RETURNING `+leadColumns,
		l.ID, l.Version,
		string(l.Status), l.IsAccepted, l.AgentID,
		l.FinalPriceCents, l.AgreedCommissionAmountCents, l.SpotterCommissionAmountCents,
		l.FailureReason, l.AssignedAt, l.AcceptedAt, l.ClosedAt,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Lead{}, r.missOrConflict(ctx, tx, l.ID)
	}
	if err != nil {
		return domain.Lead{}, fmt.Errorf("update lead: %w", err)
	}

	from := params.FromStatus
	if err := insertHistory(ctx, tx, l.ID, params.Action, &from, updated.Status, params.ActorID, params.Notes, params.At); err != nil {
		return domain.Lead{}, err
	}

	if params.SupersedeAssignment || params.NewAssignment != nil {
		if _, err := tx.Exec(ctx, `
			UPDATE lead_assignments SET is_active = false, superseded_at = $2
			WHERE lead_id = $1 AND is_active`, l.ID, params.At); err != nil {
			return domain.Lead{}, fmt.Errorf("supersede assignment: %w", err)
		}
	}
	if a := params.NewAssignment; a != nil {
		if _, err := tx.Exec(ctx, `
			INSERT INTO lead_assignments (lead_id, agent_id, assigned_by_id, notes, is_active, assigned_at)
			VALUES ($1, $2, $3, $4, true, $5)`,
			l.ID, a.AgentID, a.AssignedByID, a.Notes, params.At); err != nil {
			return domain.Lead{}, fmt.Errorf("insert assignment: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Lead{}, fmt.Errorf("commit transition: %w", err)
	}
	return updated, nil
}

func (r *Repository) missOrConflict(ctx context.Context, tx pgx.Tx, id int64) error {
	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM leads WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check lead: %w", err)
	}
	if !exists {
		return ErrNotFound
	}
	return ErrVersionConflict
}

func insertHistory(ctx context.Context, tx pgx.Tx, leadID int64, action domain.Action, from *domain.Status, to domain.Status, actorID int64, notes string, at time.Time) error {
	var fromValue *string
	if from != nil {
		s := string(*from)
		fromValue = &s
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO lead_history (lead_id, action, from_status, to_status, actor_id, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		leadID, string(action), fromValue, string(to), actorID, notes, at)
	if err != nil {
		return fmt.Errorf("insert history: %w", err)
	}
	return nil
}

func (r *Repository) ListHistory(ctx context.Context, leadID int64) ([]domain.HistoryEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, lead_id, action, from_status, to_status, actor_id, notes, created_at
		FROM lead_history
		WHERE lead_id = $1
		ORDER BY id ASC`, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.HistoryEntry, 0)
	for rows.Next() {
		var entry domain.HistoryEntry
		var action, to string
		var from *string
		if err := rows.Scan(&entry.ID, &entry.LeadID, &action, &from, &to, &entry.ActorID, &entry.Notes, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.Action = domain.Action(action)
		entry.ToStatus = domain.Status(to)
		if from != nil {
			s := domain.Status(*from)
			entry.FromStatus = &s
		}
		entries = append(entries, entry)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return entries, nil
}

func (r *Repository) ActiveAssignment(ctx context.Context, leadID int64) (domain.Assignment, error) {
	var a domain.Assignment
	err := r.pool.QueryRow(ctx, `
		SELECT id, lead_id, agent_id, assigned_by_id, notes, is_active, assigned_at, superseded_at
		FROM lead_assignments
		WHERE lead_id = $1 AND is_active`, leadID).
		Scan(&a.ID, &a.LeadID, &a.AgentID, &a.AssignedByID, &a.Notes, &a.IsActive, &a.AssignedAt, &a.SupersededAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Assignment{}, ErrNotFound
	}
	return a, err
}
