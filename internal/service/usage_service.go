package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"pdf-watermark-api/internal/domain"
)

// UsageService implements domain.UsageService
type UsageService struct {
	repo   domain.UsageRepository
	logger domain.Logger
}

// NewUsageService creates a new usage service instance
func NewUsageService(repo domain.UsageRepository, logger domain.Logger) *UsageService {
	return &UsageService{
		repo:   repo,
		logger: logger,
	}
}

// RecordUsage counts one processed file with the given number of pages
// against the company's counter for the UTC month containing at.
func (s *UsageService) RecordUsage(ctx context.Context, company string, pages int, at time.Time) (*domain.UsageRecord, error) {
	period := domain.PeriodOf(at)
	delta := &domain.UsageRecord{
		CompanyName: strings.TrimSpace(company),
		Year:        period.Year,
		Month:       period.Month,
		FilesUsed:   1,
		PagesUsed:   pages,
	}
	if err := delta.Validate(); err != nil {
		return nil, err
	}
	company = delta.CompanyName

	record, err := s.repo.Increment(ctx, company, period, delta.FilesUsed, delta.PagesUsed)
	if err != nil {
		return nil, fmt.Errorf("failed to record usage: %w", err)
	}

	s.logger.Info("Usage recorded",
		"company", company,
		"year", period.Year,
		"month", period.Month,
		"files_used", record.FilesUsed,
		"pages_used", record.PagesUsed,
	)
	return record, nil
}

// GetMonthlyUsage returns the counter for one month
func (s *UsageService) GetMonthlyUsage(ctx context.Context, company string, year, month int) (*domain.UsageRecord, error) {
	company = strings.TrimSpace(company)
	if company == "" {
		return nil, &domain.ValidationError{Field: "company_name", Message: "company name is required"}
	}
	period := domain.UsagePeriod{Year: year, Month: month}
	if err := period.Validate(); err != nil {
		return nil, err
	}

	record, err := s.repo.Get(ctx, company, period)
	if err != nil {
		return nil, err
	}
	return record, nil
}

// ListCompanyUsage returns every recorded month for a company, newest first
func (s *UsageService) ListCompanyUsage(ctx context.Context, company string) ([]*domain.UsageRecord, error) {
	company = strings.TrimSpace(company)
	if company == "" {
		return nil, &domain.ValidationError{Field: "company_name", Message: "company name is required"}
	}

	records, err := s.repo.ListByCompany(ctx, company)
	if err != nil {
		return nil, fmt.Errorf("failed to list usage: %w", err)
	}
	return records, nil
}
