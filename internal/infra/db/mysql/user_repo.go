package mysql

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

// GetOrCreate resolves a user by external identity, inserting an active row
// on first contact. INSERT IGNORE keeps concurrent first requests safe: both
// end up reading the same row.
func (r *UserRepository) GetOrCreate(ctx context.Context, authID, email, firstName, lastName string) (*domain.User, error) {
	const qi = `
INSERT IGNORE INTO users (auth_id, email, first_name, last_name, last_quota_reset, status)
VALUES (?,?,?,?,?,?);
`
	if _, err := r.db.ExecContext(ctx, qi, authID, email, firstName, lastName, time.Now().UTC(), domain.StatusActive); err != nil {
		return nil, fmt.Errorf("inserting user: %w", err)
	}

	q := fmt.Sprintf(`SELECT %s FROM users WHERE auth_id=? LIMIT 1;`, userColumns)
	return r.scanUser(r.db.QueryRowContext(ctx, q, authID))
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	q := fmt.Sprintf(`SELECT %s FROM users WHERE id=? LIMIT 1;`, userColumns)
	u, err := r.scanUser(r.db.QueryRowContext(ctx, q, id))
	if err == sql.ErrNoRows {
		return nil, ins.ErrNotFound
	}
	return u, err
}

// RecordCompletedInspection bumps both counters in one statement. The
// monthly counter rolls over to 1 when the stored reset timestamp is from
// a prior calendar month; both IF branches read the pre-update row.
func (r *UserRepository) RecordCompletedInspection(ctx context.Context, id int64, now time.Time) error {
	const q = `
UPDATE users
SET lifetime_inspections = lifetime_inspections + 1,
    monthly_inspections = IF(DATE_FORMAT(last_quota_reset,'%Y%m') = DATE_FORMAT(?,'%Y%m'),
                             monthly_inspections + 1, 1),
    last_quota_reset = IF(DATE_FORMAT(last_quota_reset,'%Y%m') = DATE_FORMAT(?,'%Y%m'),
                          last_quota_reset, ?)
WHERE id = ?;
`
	now = now.UTC()
	res, err := r.db.ExecContext(ctx, q, now, now, now, id)
	if err != nil {
		return fmt.Errorf("recording inspection for user %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ins.ErrNotFound
	}
	return nil
}

func (r *UserRepository) SetStatus(ctx context.Context, id int64, status domain.Status) error {
	const q = `UPDATE users SET status=? WHERE id=?;`
	res, err := r.db.ExecContext(ctx, q, status, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ins.ErrNotFound
	}
	return nil
}

// ResetMonthlyBefore sweeps stale monthly counters. Belt-and-braces next to
// the lazy reset; the admission path never depends on this having run.
func (r *UserRepository) ResetMonthlyBefore(ctx context.Context, monthStart time.Time) (int64, error) {
	const q = `
UPDATE users
SET monthly_inspections = 0, last_quota_reset = ?
WHERE last_quota_reset < ? AND monthly_inspections > 0;
`
	res, err := r.db.ExecContext(ctx, q, monthStart.UTC(), monthStart.UTC())
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
