package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("not found")

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type User struct {
	ID        int64
	Role      string
	AgencyID  *int64
	Name      string
	Email     string
	IsActive  bool
	CreatedAt time.Time
}

type Agency struct {
	ID        int64
	Name      string
	Email     string
	Phone     string
	Address   string
	CreatedAt time.Time
}

const userColumns = `id, role, agency_id, name, email, is_active, created_at`

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Role, &u.AgencyID, &u.Name, &u.Email, &u.IsActive, &u.CreatedAt)
	return u, err
}

func (r *Repository) GetUser(ctx context.Context, id int64) (User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}

func (r *Repository) GetAgency(ctx context.Context, id int64) (Agency, error) {
	var a Agency
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, email, phone, address, created_at
		FROM agencies WHERE id = $1`, id).
		Scan(&a.ID, &a.Name, &a.Email, &a.Phone, &a.Address, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Agency{}, ErrNotFound
	}
	return a, err
}

// ListAgencyMembers returns the active users of agencyID holding role.
func (r *Repository) ListAgencyMembers(ctx context.Context, agencyID int64, role string) ([]User, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE agency_id = $1 AND role = $2 AND is_active
		ORDER BY name ASC, id ASC`, agencyID, role)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return users, nil
}
