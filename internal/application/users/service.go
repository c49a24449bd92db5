package users

import (
	"context"

	domain "github.com/andriansyh/safesight/internal/domain/users"
)

// Service wraps the admin-facing user operations
type Service struct {
	Repo domain.Repository
}

func NewService(repo domain.Repository) *Service {
	return &Service{Repo: repo}
}

func (s *Service) Get(ctx context.Context, id int64) (*domain.User, error) {
	return s.Repo.GetByID(ctx, id)
}

// SetStatus soft-activates or soft-deactivates a user. Rows are never
// hard-deleted.
func (s *Service) SetStatus(ctx context.Context, id int64, status domain.Status) error {
	return s.Repo.SetStatus(ctx, id, status)
}
