package usecase

import (
	"context"
	"fmt"

	"github.com/audithound/saptrail/internal/core/domain"
	"github.com/audithound/saptrail/internal/core/ports"
)

// ReviewService serves persisted runs to the read-only review API.
type ReviewService struct {
	repo ports.RunRepository
}

func NewReviewService(repo ports.RunRepository) *ReviewService {
	return &ReviewService{repo: repo}
}

func (s *ReviewService) ListRuns(ctx context.Context, limit int) ([]domain.Run, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}
	return s.repo.ListRuns(ctx, limit)
}

func (s *ReviewService) GetRun(ctx context.Context, id string) (domain.Run, error) {
	if id == "" {
		return domain.Run{}, domain.ErrNotFound
	}
	return s.repo.GetRun(ctx, id)
}

func (s *ReviewService) Timeline(ctx context.Context, runID string, filter ports.TimelineFilter) ([]domain.TimelineEntry, error) {
	if runID == "" {
		return nil, domain.ErrNotFound
	}
	if filter.RiskLevel != "" {
		switch domain.RiskLevel(filter.RiskLevel) {
		case domain.RiskHigh, domain.RiskMedium, domain.RiskLow, domain.RiskUnknown:
		default:
			return nil, fmt.Errorf("%w: risk level %q", domain.ErrInvalidFilter, filter.RiskLevel)
		}
	}
	if filter.Limit <= 0 {
		filter.Limit = 200
	}
	if filter.Limit > 2000 {
		filter.Limit = 2000
	}
	return s.repo.ListEntries(ctx, runID, filter)
}
