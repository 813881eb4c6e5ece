package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"pdf-watermark-api/internal/domain"
)

// SupabaseUsageRepository implements domain.UsageRepository over PostgREST
type SupabaseUsageRepository struct {
	supabaseClient domain.SupabaseClient
	table          string
	logger         domain.Logger
}

// NewSupabaseUsageRepository creates a new Supabase usage repository
func NewSupabaseUsageRepository(supabaseClient domain.SupabaseClient, table string, logger domain.Logger) *SupabaseUsageRepository {
	return &SupabaseUsageRepository{
		supabaseClient: supabaseClient,
		table:          table,
		logger:         logger,
	}
}

// supabaseUsageRow mirrors the table columns. id may be a bigint or a uuid.
type supabaseUsageRow struct {
	ID          json.RawMessage `json:"id"`
	CompanyName string          `json:"company_name"`
	Year        int             `json:"year"`
	Month       int             `json:"month"`
	FilesUsed   int             `json:"files_used"`
	PagesUsed   int             `json:"pages_used"`
}

func (r supabaseUsageRow) toDomain() *domain.UsageRecord {
	return &domain.UsageRecord{
		ID:          strings.Trim(string(r.ID), `"`),
		CompanyName: r.CompanyName,
		Year:        r.Year,
		Month:       r.Month,
		FilesUsed:   r.FilesUsed,
		PagesUsed:   r.PagesUsed,
	}
}

// Increment reads the current row and then updates or inserts it.
// PostgREST has no atomic increment without an RPC function, so two
// concurrent first-of-month requests may race on the insert.
func (r *SupabaseUsageRepository) Increment(ctx context.Context, company string, period domain.UsagePeriod, files, pages int) (*domain.UsageRecord, error) {
	existing, err := r.Get(ctx, company, period)
	if err != nil && !errors.Is(err, domain.ErrUsageNotFound) {
		return nil, fmt.Errorf("failed to get usage for increment: %w", err)
	}

	client := r.supabaseClient.DB()
	if client == nil {
		return nil, fmt.Errorf("supabase client not initialized")
	}

	if existing == nil {
		record := &domain.UsageRecord{
			CompanyName: company,
			Year:        period.Year,
			Month:       period.Month,
			FilesUsed:   files,
			PagesUsed:   pages,
		}
		data := map[string]interface{}{
			"company_name": record.CompanyName,
			"year":         record.Year,
			"month":        record.Month,
			"files_used":   record.FilesUsed,
			"pages_used":   record.PagesUsed,
		}
		resp, _, err := client.From(r.table).Insert(data, false, "", "representation", "").Execute()
		if err != nil {
			return nil, fmt.Errorf("failed to create usage record: %w", err)
		}
		if created := firstRow(resp); created != nil {
			record.ID = created.ID
		}
		r.logger.Debug("Usage record created", "company", company, "year", period.Year, "month", period.Month)
		return record, nil
	}

	existing.FilesUsed += files
	existing.PagesUsed += pages
	data := map[string]interface{}{
		"files_used": existing.FilesUsed,
		"pages_used": existing.PagesUsed,
	}
	_, _, err = client.From(r.table).Update(data, "minimal", "").Eq("id", existing.ID).Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to update usage record: %w", err)
	}
	r.logger.Debug("Usage record updated", "company", company, "id", existing.ID, "files_used", existing.FilesUsed)
	return existing, nil
}

// Get returns the row for the company and month, or domain.ErrUsageNotFound
func (r *SupabaseUsageRepository) Get(ctx context.Context, company string, period domain.UsagePeriod) (*domain.UsageRecord, error) {
	client := r.supabaseClient.DB()
	if client == nil {
		return nil, fmt.Errorf("supabase client not initialized")
	}

	resp, _, err := client.From(r.table).
		Select("*", "", false).
		Eq("company_name", company).
		Eq("year", strconv.Itoa(period.Year)).
		Eq("month", strconv.Itoa(period.Month)).
		Limit(1, "").
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to get usage: %w", err)
	}

	var rows []supabaseUsageRow
	if err := json.Unmarshal(resp, &rows); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if len(rows) == 0 {
		return nil, domain.ErrUsageNotFound
	}
	return rows[0].toDomain(), nil
}

// ListByCompany returns all months for a company, newest first
func (r *SupabaseUsageRepository) ListByCompany(ctx context.Context, company string) ([]*domain.UsageRecord, error) {
	client := r.supabaseClient.DB()
	if client == nil {
		return nil, fmt.Errorf("supabase client not initialized")
	}

	resp, _, err := client.From(r.table).
		Select("*", "", false).
		Eq("company_name", company).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to list usage: %w", err)
	}

	var rows []supabaseUsageRow
	if err := json.Unmarshal(resp, &rows); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	records := make([]*domain.UsageRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.toDomain())
	}
	sortNewestFirst(records)
	return records, nil
}

func firstRow(resp []byte) *domain.UsageRecord {
	var rows []supabaseUsageRow
	if err := json.Unmarshal(resp, &rows); err != nil || len(rows) == 0 {
		return nil
	}
	return rows[0].toDomain()
}
