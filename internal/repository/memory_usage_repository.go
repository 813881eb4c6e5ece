package repository

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"pdf-watermark-api/internal/domain"
)

type usageKey struct {
	company string
	period  domain.UsagePeriod
}

// MemoryUsageRepository keeps usage counters in process memory. Counters are
// lost on restart; it exists for local runs and tests.
type MemoryUsageRepository struct {
	mu     sync.RWMutex
	rows   map[usageKey]*domain.UsageRecord
	nextID int
	now    func() time.Time
}

func NewMemoryUsageRepository() *MemoryUsageRepository {
	return &MemoryUsageRepository{
		rows: make(map[usageKey]*domain.UsageRecord),
		now:  time.Now,
	}
}

func (r *MemoryUsageRepository) Increment(ctx context.Context, company string, period domain.UsagePeriod, files, pages int) (*domain.UsageRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := usageKey{company: company, period: period}
	row, ok := r.rows[key]
	if !ok {
		r.nextID++
		row = &domain.UsageRecord{
			ID:          strconv.Itoa(r.nextID),
			CompanyName: company,
			Year:        period.Year,
			Month:       period.Month,
		}
		r.rows[key] = row
	}
	row.FilesUsed += files
	row.PagesUsed += pages
	row.UpdatedAt = r.now().UTC()

	out := *row
	return &out, nil
}

func (r *MemoryUsageRepository) Get(ctx context.Context, company string, period domain.UsagePeriod) (*domain.UsageRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	row, ok := r.rows[usageKey{company: company, period: period}]
	if !ok {
		return nil, domain.ErrUsageNotFound
	}
	out := *row
	return &out, nil
}

func (r *MemoryUsageRepository) ListByCompany(ctx context.Context, company string) ([]*domain.UsageRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	records := make([]*domain.UsageRecord, 0)
	for key, row := range r.rows {
		if key.company != company {
			continue
		}
		out := *row
		records = append(records, &out)
	}
	sortNewestFirst(records)
	return records, nil
}

// sortNewestFirst orders records by period, latest month first
func sortNewestFirst(records []*domain.UsageRecord) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].Year != records[j].Year {
			return records[i].Year > records[j].Year
		}
		return records[i].Month > records[j].Month
	})
}
