package postgres

import (
	"context"
	"database/sql"
	"time"

	domain "github.com/andriansyh/safesight/internal/domain/usage"
)

type UsageRepository struct {
	db *sql.DB
}

func NewUsageRepository(db *sql.DB) *UsageRepository {
	return &UsageRepository{db: db}
}

func (r *UsageRepository) Save(ctx context.Context, l *domain.Log) error {
	const q = `
INSERT INTO usage_logs (user_id, endpoint, tokens_used, cost, latency_ms, success, error_kind, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8);
`
	created := l.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	var userID any
	if l.UserID != nil {
		userID = *l.UserID
	}
	var errKind any
	if l.ErrorKind != "" {
		errKind = truncate(l.ErrorKind, 64)
	}
	_, err := r.db.ExecContext(ctx, q,
		userID, l.Endpoint, l.TokensUsed, l.Cost, l.LatencyMS, l.Success, errKind, created,
	)
	return err
}

func (r *UsageRepository) SummarySince(ctx context.Context, since time.Time) (domain.Summary, error) {
	const q = `
SELECT COUNT(*),
       COALESCE(SUM(CASE WHEN success THEN 0 ELSE 1 END),0),
       COALESCE(SUM(tokens_used),0),
       COALESCE(SUM(cost),0)
FROM usage_logs
WHERE created_at >= $1;
`
	var s domain.Summary
	err := r.db.QueryRowContext(ctx, q, since.UTC()).Scan(
		&s.Invocations, &s.Failures, &s.TokensUsed, &s.TotalCost,
	)
	return s, err
}

func (r *UsageRepository) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM usage_logs WHERE created_at < $1;`, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
