package periods

import (
	"context"
	"fmt"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// GetOrOpen returns the period covering (year, month), opening it if absent.
func (s *Service) GetOrOpen(ctx context.Context, companyID int64, year, month int) (Period, error) {
	if month < 1 || month > 12 {
		return Period{}, fmt.Errorf("periods: month %d out of range", month)
	}
	return s.repo.GetOrOpen(ctx, companyID, year, month)
}

// Close marks a period CLOSED; postings into it are rejected afterwards.
func (s *Service) Close(ctx context.Context, companyID int64, year, month int) error {
	p, err := s.repo.Get(ctx, companyID, year, month)
	if err != nil {
		return err
	}
	if p.Status == PeriodStatusClosed {
		return ErrAlreadyClosed
	}
	return s.repo.SetStatus(ctx, p.ID, PeriodStatusClosed)
}

// Reopen sets a closed period back to OPEN.
func (s *Service) Reopen(ctx context.Context, companyID int64, year, month int) error {
	p, err := s.repo.Get(ctx, companyID, year, month)
	if err != nil {
		return err
	}
	return s.repo.SetStatus(ctx, p.ID, PeriodStatusOpen)
}

// ListOpen lists the company's open periods in chronological order.
func (s *Service) ListOpen(ctx context.Context, companyID int64) ([]Period, error) {
	return s.repo.ListOpen(ctx, companyID)
}
