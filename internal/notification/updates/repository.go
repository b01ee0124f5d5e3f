package updates

import (
	"context"
	"errors"
	"fmt"
	"time"

	"spotter_portal_backend/platform/apperr"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	opCreate            = "notification.updates.repository.create"
	opGet               = "notification.updates.repository.get"
	opList              = "notification.updates.repository.list"
	opMarkRead          = "notification.updates.repository.mark_read"
	opRecordAttempt     = "notification.updates.repository.record_attempt"
	opListRedeliverable = "notification.updates.repository.list_redeliverable"

	errRepoNotConfigured = "updates repository not configured"
	errUpdateNotFound    = "update not found"
)

const updateColumns = `id, recipient_id, lead_id, update_type, template_name, title, message,
	delivery_status, delivery_attempts, last_attempt_at, last_error, created_at, delivered_at, read_at`

type Repository struct {
	pool *pgxpool.Pool
}

var _ Store = (*Repository)(nil)

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanUpdate(row pgx.Row) (Update, error) {
	var u Update
	err := row.Scan(
		&u.ID, &u.RecipientID, &u.LeadID, &u.UpdateType, &u.TemplateName, &u.Title, &u.Message,
		&u.DeliveryStatus, &u.DeliveryAttempts, &u.LastAttemptAt, &u.LastError, &u.CreatedAt, &u.DeliveredAt, &u.ReadAt,
	)
	return u, err
}

func (r *Repository) Create(ctx context.Context, p CreateParams) (Update, error) {
	if r == nil || r.pool == nil {
		return Update{}, apperr.Internal(errRepoNotConfigured).WithOp(opCreate)
	}
	if p.RecipientID <= 0 {
		return Update{}, apperr.FieldValidation("recipient_id", "recipient is required").WithOp(opCreate)
	}

	u, err := scanUpdate(r.pool.QueryRow(ctx, `
		INSERT INTO updates (recipient_id, lead_id, update_type, template_name, title, message)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+updateColumns,
		p.RecipientID, p.LeadID, p.UpdateType, p.TemplateName, p.Title, p.Message))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return Update{}, apperr.FieldValidation("recipient_id", "unknown recipient or lead").WithOp(opCreate)
		}
		return Update{}, apperr.Wrap(apperr.KindInternal, fmt.Sprintf("create update failed: %v", err), err).WithOp(opCreate)
	}
	return u, nil
}

func (r *Repository) GetByID(ctx context.Context, id int64) (Update, error) {
	if r == nil || r.pool == nil {
		return Update{}, apperr.Internal(errRepoNotConfigured).WithOp(opGet)
	}

	u, err := scanUpdate(r.pool.QueryRow(ctx, `SELECT `+updateColumns+` FROM updates WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Update{}, apperr.NotFound(errUpdateNotFound).WithOp(opGet)
	}
	if err != nil {
		return Update{}, apperr.Wrap(apperr.KindInternal, fmt.Sprintf("get update failed: %v", err), err).WithOp(opGet)
	}
	return u, nil
}

// ListForRecipient returns one page of the recipient's updates, newest
// first, and the total count. Storage failures are retryable.
func (r *Repository) ListForRecipient(ctx context.Context, recipientID int64, limit, offset int) ([]Update, int, error) {
	if r == nil || r.pool == nil {
		return nil, 0, apperr.Internal(errRepoNotConfigured).WithOp(opList)
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM updates WHERE recipient_id = $1`, recipientID).Scan(&total); err != nil {
		return nil, 0, apperr.Unavailable("could not fetch updates", err).WithOp(opList)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+updateColumns+`
		FROM updates
		WHERE recipient_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`, recipientID, limit, offset)
	if err != nil {
		return nil, 0, apperr.Unavailable("could not fetch updates", err).WithOp(opList)
	}
	defer rows.Close()

	items := make([]Update, 0, limit)
	for rows.Next() {
		u, scanErr := scanUpdate(rows)
		if scanErr != nil {
			return nil, 0, apperr.Unavailable("could not fetch updates", scanErr).WithOp(opList)
		}
		items = append(items, u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, apperr.Unavailable("could not fetch updates", err).WithOp(opList)
	}
	return items, total, nil
}

// MarkRead sets read_at once. Updates of other recipients are reported as
// not found.
func (r *Repository) MarkRead(ctx context.Context, id, recipientID int64) (Update, error) {
	if r == nil || r.pool == nil {
		return Update{}, apperr.Internal(errRepoNotConfigured).WithOp(opMarkRead)
	}

	u, err := scanUpdate(r.pool.QueryRow(ctx, `
		UPDATE updates SET read_at = COALESCE(read_at, now())
		WHERE id = $1 AND recipient_id = $2
		RETURNING `+updateColumns, id, recipientID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Update{}, apperr.NotFound(errUpdateNotFound).WithOp(opMarkRead)
	}
	if err != nil {
		return Update{}, apperr.Wrap(apperr.KindInternal, fmt.Sprintf("mark update read failed: %v", err), err).WithOp(opMarkRead)
	}
	return u, nil
}

func (r *Repository) RecordAttempt(ctx context.Context, id int64, at time.Time, deliveryErr error) (Update, error) {
	if r == nil || r.pool == nil {
		return Update{}, apperr.Internal(errRepoNotConfigured).WithOp(opRecordAttempt)
	}

	status := StatusDelivered
	if deliveryErr != nil {
		status = StatusFailed
	}

	u, err := scanUpdate(r.pool.QueryRow(ctx, `
		UPDATE updates SET
			delivery_attempts = delivery_attempts + 1,
			last_attempt_at = $2,
			delivery_status = $3,
			last_error = $4,
			delivered_at = CASE WHEN $3 = 'delivered' THEN $2 ELSE delivered_at END
		WHERE id = $1 AND delivery_status <> 'delivered'
		RETURNING `+updateColumns, id, at, status, errorText(deliveryErr)))
	if errors.Is(err, pgx.ErrNoRows) {
		// Either missing or delivered by a concurrent attempt.
		return r.GetByID(ctx, id)
	}
	if err != nil {
		return Update{}, apperr.Wrap(apperr.KindInternal, fmt.Sprintf("record delivery attempt failed: %v", err), err).WithOp(opRecordAttempt)
	}
	return u, nil
}

func (r *Repository) ListRedeliverable(ctx context.Context, maxAttempts int, pendingBefore time.Time, limit int) ([]int64, error) {
	if r == nil || r.pool == nil {
		return nil, apperr.Internal(errRepoNotConfigured).WithOp(opListRedeliverable)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id FROM updates
		WHERE (delivery_status = 'failed' AND delivery_attempts < $1)
		   OR (delivery_status = 'pending' AND created_at < $2)
		ORDER BY created_at ASC, id ASC
		LIMIT $3`, maxAttempts, pendingBefore, limit)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, fmt.Sprintf("list redeliverable updates failed: %v", err), err).WithOp(opListRedeliverable)
	}
	defer rows.Close()

	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, fmt.Sprintf("scan redeliverable updates failed: %v", err), err).WithOp(opListRedeliverable)
	}
	return ids, nil
}
