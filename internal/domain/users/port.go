package users

import (
	"context"
	"time"
)

// Repository port for user identity + quota state
type Repository interface {
	// GetOrCreate resolves the user for an external identity, inserting a
	// fresh active row on first contact.
	GetOrCreate(ctx context.Context, authID, email, firstName, lastName string) (*User, error)

	GetByID(ctx context.Context, id int64) (*User, error)

	// RecordCompletedInspection bumps both the lifetime and monthly counters
	// in a single statement, rolling the monthly counter over to 1 when the
	// stored reset timestamp is from a prior calendar month.
	RecordCompletedInspection(ctx context.Context, id int64, now time.Time) error

	SetStatus(ctx context.Context, id int64, status Status) error

	// ResetMonthlyBefore zeroes monthly counters whose reset timestamp falls
	// before the given month start. Used by the scheduled sweep only; the
	// lazy check in EffectiveMonthlyCount stays authoritative.
	ResetMonthlyBefore(ctx context.Context, monthStart time.Time) (int64, error)
}
