package handler

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"pdf-watermark-api/internal/domain"
	"pdf-watermark-api/internal/metrics"
	apperrors "pdf-watermark-api/pkg/errors"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

type mockWatermarker struct {
	mu        sync.Mutex
	pages     int
	err       error
	lastStamp domain.Stamp
	lastInput []byte
}

func (m *mockWatermarker) Apply(ctx context.Context, pdf []byte, stamp domain.Stamp) (*domain.WatermarkResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastStamp = stamp
	m.lastInput = pdf
	if m.err != nil {
		return nil, m.err
	}
	return &domain.WatermarkResult{Data: append([]byte("%PDF-stamped "), pdf...), PageCount: m.pages}, nil
}

type recordedUsage struct {
	company string
	pages   int
	at      time.Time
	ctxErr  error
}

type mockUsageService struct {
	mu        sync.Mutex
	recorded  []recordedUsage
	recordErr error
	lookupErr error
	records   map[string][]*domain.UsageRecord
}

func newMockUsageService() *mockUsageService {
	return &mockUsageService{records: make(map[string][]*domain.UsageRecord)}
}

func (m *mockUsageService) RecordUsage(ctx context.Context, company string, pages int, at time.Time) (*domain.UsageRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recorded = append(m.recorded, recordedUsage{company: company, pages: pages, at: at, ctxErr: ctx.Err()})
	if m.recordErr != nil {
		return nil, m.recordErr
	}
	return &domain.UsageRecord{CompanyName: company, FilesUsed: 1, PagesUsed: pages}, nil
}

func (m *mockUsageService) GetMonthlyUsage(ctx context.Context, company string, year, month int) (*domain.UsageRecord, error) {
	period := domain.UsagePeriod{Year: year, Month: month}
	if err := period.Validate(); err != nil {
		return nil, err
	}
	if m.lookupErr != nil {
		return nil, m.lookupErr
	}
	for _, rec := range m.records[company] {
		if rec.Year == year && rec.Month == month {
			return rec, nil
		}
	}
	return nil, domain.ErrUsageNotFound
}

func (m *mockUsageService) ListCompanyUsage(ctx context.Context, company string) ([]*domain.UsageRecord, error) {
	if m.lookupErr != nil {
		return nil, m.lookupErr
	}
	return m.records[company], nil
}

func (m *mockUsageService) Recorded() []recordedUsage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]recordedUsage(nil), m.recorded...)
}

type uploadFields struct {
	company  *string
	userName *string
	fileName string
	file     []byte
}

func strPtr(s string) *string { return &s }

func buildUpload(t *testing.T, f uploadFields) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	if f.company != nil {
		if err := mw.WriteField("company", *f.company); err != nil {
			t.Fatal(err)
		}
	}
	if f.userName != nil {
		if err := mw.WriteField("user_name", *f.userName); err != nil {
			t.Fatal(err)
		}
	}
	if f.file != nil {
		part, err := mw.CreateFormFile("file", f.fileName)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := part.Write(f.file); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return body, mw.FormDataContentType()
}

func validUpload() uploadFields {
	return uploadFields{
		company:  strPtr("Acme"),
		userName: strPtr("Jane Doe"),
		fileName: "report.pdf",
		file:     []byte("%PDF-1.4 fake"),
	}
}

type watermarkFixture struct {
	handler     *WatermarkHandler
	watermarker *mockWatermarker
	usage       *mockUsageService
	metrics     *metrics.Metrics
	logger      *MockHandlerLogger
}

func newWatermarkFixture(maxSize int64) *watermarkFixture {
	f := &watermarkFixture{
		watermarker: &mockWatermarker{pages: 3},
		usage:       newMockUsageService(),
		metrics:     metrics.New("test"),
		logger:      NewMockHandlerLogger(),
	}
	f.handler = NewWatermarkHandler(f.watermarker, f.usage, f.metrics, f.logger, WatermarkHandlerOptions{
		MaxFileSize:   maxSize,
		RecordTimeout: time.Second,
	})
	f.handler.now = func() time.Time { return time.Date(2026, time.October, 16, 9, 30, 0, 0, time.UTC) }
	return f
}

func (f *watermarkFixture) do(t *testing.T, upload uploadFields) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := buildUpload(t, upload)
	req := httptest.NewRequest(http.MethodPost, "/watermark", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	f.handler.Watermark(rr, req)
	f.handler.Wait()
	return rr
}

func TestWatermarkHandler_Success(t *testing.T) {
	f := newWatermarkFixture(1 << 20)

	rr := f.do(t, validUpload())

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Fatalf("expected application/pdf, got %s", ct)
	}
	if cd := rr.Header().Get("Content-Disposition"); cd != "attachment; filename=watermarked-report.pdf" {
		t.Fatalf("unexpected content disposition: %s", cd)
	}
	if pc := rr.Header().Get("X-Page-Count"); pc != "3" {
		t.Fatalf("expected X-Page-Count 3, got %s", pc)
	}
	if rr.Body.String() != "%PDF-stamped %PDF-1.4 fake" {
		t.Fatalf("unexpected body: %q", rr.Body.String())
	}

	stamp := f.watermarker.lastStamp
	if stamp.UserName != "Jane Doe" || stamp.Label != domain.DefaultWatermarkLabel {
		t.Fatalf("unexpected stamp: %+v", stamp)
	}
	if stamp.Text() != "INTERNAL USE ONLY\nJane Doe — 2026-10-16 09:30" {
		t.Fatalf("unexpected stamp text: %q", stamp.Text())
	}

	recorded := f.usage.Recorded()
	if len(recorded) != 1 {
		t.Fatalf("expected usage to be recorded once, got %d", len(recorded))
	}
	if recorded[0].company != "Acme" || recorded[0].pages != 3 {
		t.Fatalf("unexpected usage: %+v", recorded[0])
	}

	if got := testutil.ToFloat64(f.metrics.RequestsCounter(metrics.OutcomeSuccess)); got != 1 {
		t.Fatalf("expected 1 successful request, got %v", got)
	}
}

func TestWatermarkHandler_TrimsFields(t *testing.T) {
	f := newWatermarkFixture(1 << 20)
	upload := validUpload()
	upload.company = strPtr("  Acme  ")
	upload.userName = strPtr("\tJane Doe ")

	rr := f.do(t, upload)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	if f.watermarker.lastStamp.UserName != "Jane Doe" {
		t.Fatalf("expected trimmed user name, got %q", f.watermarker.lastStamp.UserName)
	}
	if got := f.usage.Recorded()[0].company; got != "Acme" {
		t.Fatalf("expected trimmed company, got %q", got)
	}
}

func TestWatermarkHandler_MissingFields(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*uploadFields)
	}{
		{"no company", func(u *uploadFields) { u.company = nil }},
		{"blank company", func(u *uploadFields) { u.company = strPtr("   ") }},
		{"no user name", func(u *uploadFields) { u.userName = nil }},
		{"empty user name", func(u *uploadFields) { u.userName = strPtr("") }},
		{"no file", func(u *uploadFields) { u.file = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newWatermarkFixture(1 << 20)
			upload := validUpload()
			tt.modify(&upload)

			rr := f.do(t, upload)

			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rr.Code)
			}
			if !strings.Contains(rr.Body.String(), "Missing required fields") {
				t.Fatalf("unexpected response body: %s", rr.Body.String())
			}
			if len(f.usage.Recorded()) != 0 {
				t.Fatalf("usage must not be recorded for rejected requests")
			}
			if got := testutil.ToFloat64(f.metrics.RequestsCounter(metrics.OutcomeBadRequest)); got != 1 {
				t.Fatalf("expected 1 bad request, got %v", got)
			}
		})
	}
}

func TestWatermarkHandler_NotMultipart(t *testing.T) {
	f := newWatermarkFixture(1 << 20)
	req := httptest.NewRequest(http.MethodPost, "/watermark", strings.NewReader(`{"company":"Acme"}`))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()

	f.handler.Watermark(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rr.Code)
	}
}

func TestWatermarkHandler_TooLarge(t *testing.T) {
	f := newWatermarkFixture(1024)
	huge := validUpload()
	huge.file = bytes.Repeat([]byte("a"), int(1024+multipartOverhead+1))

	t.Run("declared length", func(t *testing.T) {
		rr := f.do(t, huge)
		if rr.Code != http.StatusRequestEntityTooLarge {
			t.Fatalf("expected status %d, got %d", http.StatusRequestEntityTooLarge, rr.Code)
		}
	})

	t.Run("streamed body", func(t *testing.T) {
		body, contentType := buildUpload(t, huge)
		// io.MultiReader hides the length, so only MaxBytesReader can catch it.
		req := httptest.NewRequest(http.MethodPost, "/watermark", io.MultiReader(body))
		req.ContentLength = -1
		req.Header.Set("Content-Type", contentType)
		rr := httptest.NewRecorder()

		f.handler.Watermark(rr, req)

		if rr.Code != http.StatusRequestEntityTooLarge {
			t.Fatalf("expected status %d, got %d: %s", http.StatusRequestEntityTooLarge, rr.Code, rr.Body.String())
		}
	})

	t.Run("file part over limit", func(t *testing.T) {
		upload := validUpload()
		upload.file = bytes.Repeat([]byte("a"), 4096)

		rr := f.do(t, upload)
		if rr.Code != http.StatusRequestEntityTooLarge {
			t.Fatalf("expected status %d, got %d", http.StatusRequestEntityTooLarge, rr.Code)
		}
		if !strings.Contains(rr.Body.String(), "File too large") {
			t.Fatalf("unexpected response body: %s", rr.Body.String())
		}
	})

	if len(f.usage.Recorded()) != 0 {
		t.Fatalf("usage must not be recorded for oversized uploads")
	}
	if got := testutil.ToFloat64(f.metrics.RequestsCounter(metrics.OutcomeTooLarge)); got != 3 {
		t.Fatalf("expected 3 too large requests, got %v", got)
	}
}

func TestWatermarkHandler_FileSizeBoundary(t *testing.T) {
	const limit = 2048

	tests := []struct {
		name       string
		size       int
		wantStatus int
	}{
		{"exactly the limit", limit, http.StatusOK},
		{"one byte over", limit + 1, http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newWatermarkFixture(limit)
			upload := validUpload()
			upload.file = bytes.Repeat([]byte("a"), tt.size)

			rr := f.do(t, upload)

			if rr.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d: %s", tt.wantStatus, rr.Code, rr.Body.String())
			}
			if tt.wantStatus == http.StatusOK && len(f.watermarker.lastInput) != limit {
				t.Fatalf("expected the whole file to reach the watermarker, got %d bytes", len(f.watermarker.lastInput))
			}
		})
	}
}

func TestFailureOutcome(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{apperrors.NewPayloadTooLargeError(10), metrics.OutcomeTooLarge},
		{apperrors.NewValidationError("Missing required fields"), metrics.OutcomeBadRequest},
		{apperrors.NewUnauthorizedError("Invalid API key", nil), metrics.OutcomeUnauthorized},
		{apperrors.NewInternalError("Error processing PDF", domain.ErrInvalidPDF), metrics.OutcomeFailed},
		{errors.New("plain"), metrics.OutcomeFailed},
	}

	for _, tt := range tests {
		if got := failureOutcome(tt.err); got != tt.want {
			t.Errorf("failureOutcome(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestWatermarkHandler_ProcessingError(t *testing.T) {
	f := newWatermarkFixture(1 << 20)
	f.watermarker.err = domain.ErrInvalidPDF

	rr := f.do(t, validUpload())

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Error processing PDF") {
		t.Fatalf("unexpected response body: %s", rr.Body.String())
	}
	if len(f.usage.Recorded()) != 0 {
		t.Fatalf("usage must not be recorded when watermarking fails")
	}
}

func TestWatermarkHandler_UsageFailureDoesNotAffectResponse(t *testing.T) {
	f := newWatermarkFixture(1 << 20)
	f.usage.recordErr = errors.New("store unavailable")

	rr := f.do(t, validUpload())

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	if got := testutil.ToFloat64(f.metrics.UsageFailuresCounter()); got != 1 {
		t.Fatalf("expected 1 usage failure, got %v", got)
	}
	if errs := f.logger.Errors(); len(errs) != 1 || errs[0] != "Failed to record usage" {
		t.Fatalf("expected usage failure to be logged, got %v", errs)
	}
}

func TestWatermarkHandler_UsageSurvivesRequestCancellation(t *testing.T) {
	f := newWatermarkFixture(1 << 20)
	body, contentType := buildUpload(t, validUpload())

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodPost, "/watermark", body).WithContext(ctx)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()

	f.handler.Watermark(rr, req)
	cancel()
	f.handler.Wait()

	recorded := f.usage.Recorded()
	if len(recorded) != 1 {
		t.Fatalf("expected usage to be recorded, got %d", len(recorded))
	}
	if recorded[0].ctxErr != nil {
		t.Fatalf("usage context must not inherit request cancellation: %v", recorded[0].ctxErr)
	}
}

func TestOutputFileName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"report.pdf", "watermarked-report.pdf"},
		{"Report.PDF", "watermarked-Report.pdf"},
		{"notes", "watermarked-notes.pdf"},
		{"../../etc/passwd", "watermarked-passwd.pdf"},
		{`C:\Users\jane\loan.pdf`, "watermarked-loan.pdf"},
		{`bad"name.pdf`, "watermarked-badname.pdf"},
		{".pdf", "watermarked-document.pdf"},
		{"", "watermarked-document.pdf"},
	}

	for _, tt := range tests {
		if got := outputFileName(tt.in); got != tt.want {
			t.Errorf("outputFileName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
