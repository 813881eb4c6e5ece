package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"pdf-watermark-api/internal/domain"

	"github.com/jackc/pgx/v5"
)

// PostgresUsageRepository implements domain.UsageRepository on a Postgres
// table with a unique (company_name, year, month) constraint.
type PostgresUsageRepository struct {
	DB     *sql.DB
	table  string
	logger domain.Logger
}

func NewPostgresUsageRepository(db *sql.DB, table string, logger domain.Logger) *PostgresUsageRepository {
	return &PostgresUsageRepository{
		DB:     db,
		table:  pgx.Identifier{table}.Sanitize(),
		logger: logger,
	}
}

// Increment performs the conditional upsert in a single statement, so
// concurrent requests for the same company and month never lose counts.
func (r *PostgresUsageRepository) Increment(ctx context.Context, company string, period domain.UsagePeriod, files, pages int) (*domain.UsageRecord, error) {
	if r.DB == nil {
		return nil, errors.New("postgres usage repository has no database")
	}

	query := fmt.Sprintf(`
INSERT INTO %[1]s AS t (company_name, year, month, files_used, pages_used)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (company_name, year, month) DO UPDATE
SET files_used = t.files_used + EXCLUDED.files_used,
    pages_used = t.pages_used + EXCLUDED.pages_used,
    updated_at = now()
RETURNING id, company_name, year, month, files_used, pages_used, updated_at`, r.table)

	row := r.DB.QueryRowContext(ctx, query, company, period.Year, period.Month, files, pages)
	record, err := scanUsage(row)
	if err != nil {
		return nil, fmt.Errorf("upsert usage: %w", err)
	}
	r.logger.Debug("Usage record upserted", "company", company, "files_used", record.FilesUsed, "pages_used", record.PagesUsed)
	return record, nil
}

func (r *PostgresUsageRepository) Get(ctx context.Context, company string, period domain.UsagePeriod) (*domain.UsageRecord, error) {
	if r.DB == nil {
		return nil, errors.New("postgres usage repository has no database")
	}

	query := fmt.Sprintf(`
SELECT id, company_name, year, month, files_used, pages_used, updated_at
FROM %s
WHERE company_name = $1 AND year = $2 AND month = $3`, r.table)

	record, err := scanUsage(r.DB.QueryRowContext(ctx, query, company, period.Year, period.Month))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUsageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get usage: %w", err)
	}
	return record, nil
}

func (r *PostgresUsageRepository) ListByCompany(ctx context.Context, company string) ([]*domain.UsageRecord, error) {
	if r.DB == nil {
		return nil, errors.New("postgres usage repository has no database")
	}

	query := fmt.Sprintf(`
SELECT id, company_name, year, month, files_used, pages_used, updated_at
FROM %s
WHERE company_name = $1
ORDER BY year DESC, month DESC`, r.table)

	rows, err := r.DB.QueryContext(ctx, query, company)
	if err != nil {
		return nil, fmt.Errorf("list usage: %w", err)
	}
	defer rows.Close()

	records := make([]*domain.UsageRecord, 0)
	for rows.Next() {
		record, err := scanUsage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan usage: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate usage: %w", err)
	}
	return records, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUsage(row rowScanner) (*domain.UsageRecord, error) {
	var (
		record domain.UsageRecord
		id     int64
	)
	if err := row.Scan(&id, &record.CompanyName, &record.Year, &record.Month, &record.FilesUsed, &record.PagesUsed, &record.UpdatedAt); err != nil {
		return nil, err
	}
	record.ID = fmt.Sprint(id)
	return &record, nil
}
