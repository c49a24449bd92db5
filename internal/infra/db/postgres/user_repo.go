package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	ins "github.com/andriansyh/safesight/internal/domain/inspections"
	domain "github.com/andriansyh/safesight/internal/domain/users"
)

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, auth_id, email, first_name, last_name,
       lifetime_inspections, monthly_inspections, last_quota_reset,
       status, created_at, updated_at`

func (r *UserRepository) GetOrCreate(ctx context.Context, authID, email, firstName, lastName string) (*domain.User, error) {
	const qi = `
INSERT INTO users (auth_id, email, first_name, last_name, last_quota_reset, status)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (auth_id) DO NOTHING;
`
	if _, err := r.db.ExecContext(ctx, qi, authID, email, firstName, lastName, time.Now().UTC(), domain.StatusActive); err != nil {
		return nil, fmt.Errorf("inserting user: %w", err)
	}

	q := fmt.Sprintf(`SELECT %s FROM users WHERE auth_id=$1 LIMIT 1;`, userColumns)
	return r.scanUser(r.db.QueryRowContext(ctx, q, authID))
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	q := fmt.Sprintf(`SELECT %s FROM users WHERE id=$1 LIMIT 1;`, userColumns)
	u, err := r.scanUser(r.db.QueryRowContext(ctx, q, id))
	if err == sql.ErrNoRows {
		return nil, ins.ErrNotFound
	}
	return u, err
}

// RecordCompletedInspection mirrors the mysql repo; in Postgres every SET
// expression reads the pre-update row, so both CASEs see the old timestamp.
// Months are compared in UTC so rollover agrees with the admission check
// even when the session TimeZone is something else.
func (r *UserRepository) RecordCompletedInspection(ctx context.Context, id int64, now time.Time) error {
	const q = `
UPDATE users
SET lifetime_inspections = lifetime_inspections + 1,
    monthly_inspections = CASE WHEN to_char(last_quota_reset AT TIME ZONE 'UTC','YYYYMM') = to_char($1::timestamptz AT TIME ZONE 'UTC','YYYYMM')
                               THEN monthly_inspections + 1 ELSE 1 END,
    last_quota_reset = CASE WHEN to_char(last_quota_reset AT TIME ZONE 'UTC','YYYYMM') = to_char($1::timestamptz AT TIME ZONE 'UTC','YYYYMM')
                            THEN last_quota_reset ELSE $1::timestamptz END,
    updated_at = now()
WHERE id = $2;
`
	res, err := r.db.ExecContext(ctx, q, now.UTC(), id)
	if err != nil {
		return fmt.Errorf("recording inspection for user %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ins.ErrNotFound
	}
	return nil
}

func (r *UserRepository) SetStatus(ctx context.Context, id int64, status domain.Status) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET status=$1, updated_at=now() WHERE id=$2;`, status, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ins.ErrNotFound
	}
	return nil
}

func (r *UserRepository) ResetMonthlyBefore(ctx context.Context, monthStart time.Time) (int64, error) {
	const q = `
UPDATE users
SET monthly_inspections = 0, last_quota_reset = $1
WHERE last_quota_reset < $1 AND monthly_inspections > 0;
`
	res, err := r.db.ExecContext(ctx, q, monthStart.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *UserRepository) scanUser(row rowLike) (*domain.User, error) {
	var u domain.User
	if err := row.Scan(
		&u.ID, &u.AuthID, &u.Email, &u.FirstName, &u.LastName,
		&u.LifetimeInspection, &u.MonthlyInspection, &u.LastQuotaReset,
		&u.Status, &u.CreatedAt, &u.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &u, nil
}
