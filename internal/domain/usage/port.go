package usage

import (
	"context"
	"time"
)

// Repository port for the append-only usage log
type Repository interface {
	Save(ctx context.Context, l *Log) error
	SummarySince(ctx context.Context, since time.Time) (Summary, error)
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
