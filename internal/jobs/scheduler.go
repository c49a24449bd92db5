package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/andriansyh/safesight/internal/domain/usage"
	"github.com/andriansyh/safesight/internal/domain/users"
)

// Scheduler runs the periodic maintenance sweeps. The monthly counter sweep
// is belt-and-braces: quota admission never depends on it having run, the
// lazy month check stays authoritative.
type Scheduler struct {
	cron          *cron.Cron
	users         users.Repository
	usage         usage.Repository
	retentionDays int
	log           zerolog.Logger
}

func NewScheduler(usersRepo users.Repository, usageRepo usage.Repository, retentionDays int, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:          cron.New(),
		users:         usersRepo,
		usage:         usageRepo,
		retentionDays: retentionDays,
		log:           log,
	}
}

func (s *Scheduler) Start() error {
	// first of the month, midnight UTC
	if _, err := s.cron.AddFunc("0 0 1 * *", s.sweepMonthlyCounters); err != nil {
		return err
	}
	if s.retentionDays > 0 {
		if _, err := s.cron.AddFunc("0 3 * * *", s.pruneUsageLogs); err != nil {
			return err
		}
	}

	s.cron.Start()
	return nil
}

func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
	}
}

func (s *Scheduler) sweepMonthlyCounters() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	now := time.Now().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	n, err := s.users.ResetMonthlyBefore(ctx, monthStart)
	if err != nil {
		s.log.Error().Err(err).Msg("monthly counter sweep failed")
		return
	}
	s.log.Info().Int64("users_reset", n).Msg("monthly counter sweep done")
}

func (s *Scheduler) pruneUsageLogs() {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	cutoff := time.Now().UTC().AddDate(0, 0, -s.retentionDays)
	n, err := s.usage.PruneBefore(ctx, cutoff)
	if err != nil {
		s.log.Error().Err(err).Msg("usage log prune failed")
		return
	}
	s.log.Info().Int64("rows_pruned", n).Msg("usage log prune done")
}
