package service

import (
	"context"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/repository"
)

// StatsService summarises the ticket store for the agent dashboard.
type StatsService struct {
	tickets repository.TicketRepository
	retry   RetryPolicy
}

// NewStatsService constructs the service.
func NewStatsService(tickets repository.TicketRepository, retry RetryPolicy) *StatsService {
	return &StatsService{tickets: tickets, retry: retry}
}

// ComputeStats returns counters taken from a single consistent snapshot, so
// Total always equals New+Pending+Resolved.
func (s *StatsService) ComputeStats(ctx context.Context) (*domain.TicketStats, error) {
	var stats *domain.TicketStats
	err := s.retry.do(ctx, func(ctx context.Context) error {
		st, err := s.tickets.Stats(ctx)
		stats = st
		return err
	})
	if err != nil {
		return nil, storeError(err, "ticket")
	}
	return stats, nil
}
