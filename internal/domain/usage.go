package domain

import (
	"strings"
	"time"
)

// UsagePeriod identifies a calendar month.
type UsagePeriod struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

// PeriodOf returns the UTC calendar month containing t.
func PeriodOf(t time.Time) UsagePeriod {
	u := t.UTC()
	return UsagePeriod{Year: u.Year(), Month: int(u.Month())}
}

// Validate checks that the period names a real month.
func (p UsagePeriod) Validate() error {
	if p.Year < 1 {
		return &ValidationError{Field: "year", Message: "year must be positive"}
	}
	if p.Month < 1 || p.Month > 12 {
		return &ValidationError{Field: "month", Message: "month must be between 1 and 12"}
	}
	return nil
}

// UsageRecord is the per-company monthly counter row.
type UsageRecord struct {
	ID          string    `json:"id,omitempty"`
	CompanyName string    `json:"company_name"`
	Year        int       `json:"year"`
	Month       int       `json:"month"`
	FilesUsed   int       `json:"files_used"`
	PagesUsed   int       `json:"pages_used"`
	UpdatedAt   time.Time `json:"updated_at,omitzero"`
}

// Period returns the month the record counts.
func (r *UsageRecord) Period() UsagePeriod {
	return UsagePeriod{Year: r.Year, Month: r.Month}
}

// Validate checks the invariants of a usage record.
func (r *UsageRecord) Validate() error {
	if strings.TrimSpace(r.CompanyName) == "" {
		return &ValidationError{Field: "company_name", Message: "company name is required"}
	}
	if err := r.Period().Validate(); err != nil {
		return err
	}
	if r.FilesUsed < 0 {
		return &ValidationError{Field: "files_used", Message: "files used cannot be negative"}
	}
	if r.PagesUsed < 0 {
		return &ValidationError{Field: "pages_used", Message: "pages used cannot be negative"}
	}
	return nil
}
