// Package handler provides HTTP handlers for the API.
package handler

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"pdf-watermark-api/internal/domain"
	"pdf-watermark-api/internal/metrics"
	apperrors "pdf-watermark-api/pkg/errors"

	"github.com/go-playground/validator/v10"
)

// multipartMemory is how much of a multipart body is kept in memory before
// the remainder spills to temporary files.
const multipartMemory int64 = 32 << 20

// multipartOverhead is the slack allowed on top of MaxFileSize for the text
// fields and part headers that share the request body with the file.
const multipartOverhead int64 = 64 << 10

// watermarkForm holds the text fields of the upload after trimming.
type watermarkForm struct {
	Company  string `validate:"required"`
	UserName string `validate:"required"`
	FileName string `validate:"required"`
}

// WatermarkHandlerOptions configures a WatermarkHandler
type WatermarkHandlerOptions struct {
	Label         string
	MaxFileSize   int64
	RecordTimeout time.Duration
}

// WatermarkHandler stamps uploaded PDFs and records per-company usage
type WatermarkHandler struct {
	watermarker  domain.Watermarker
	usageService domain.UsageService
	metrics      *metrics.Metrics
	logger       domain.Logger
	validate     *validator.Validate
	opts         WatermarkHandlerOptions

	now      func() time.Time
	inflight sync.WaitGroup
}

// NewWatermarkHandler creates a new watermark handler
func NewWatermarkHandler(watermarker domain.Watermarker, usageService domain.UsageService, m *metrics.Metrics, logger domain.Logger, opts WatermarkHandlerOptions) *WatermarkHandler {
	if opts.Label == "" {
		opts.Label = domain.DefaultWatermarkLabel
	}
	if opts.RecordTimeout <= 0 {
		opts.RecordTimeout = 10 * time.Second
	}
	return &WatermarkHandler{
		watermarker:  watermarker,
		usageService: usageService,
		metrics:      m,
		logger:       logger,
		validate:     validator.New(),
		opts:         opts,
		now:          time.Now,
	}
}

// Watermark handles POST /watermark
func (h *WatermarkHandler) Watermark(w http.ResponseWriter, r *http.Request) {
	start := h.now()
	requestID := GetRequestIDFromContext(r)

	if h.opts.MaxFileSize > 0 {
		bodyLimit := h.opts.MaxFileSize + multipartOverhead
		if r.ContentLength > bodyLimit {
			h.fail(w, apperrors.NewPayloadTooLargeError(h.opts.MaxFileSize))
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, bodyLimit)
	}

	form, pdf, err := h.readUpload(r)
	if err != nil {
		if isBodyTooLarge(err) {
			h.logger.Warn("Upload exceeds size limit", "limit", h.opts.MaxFileSize, "request_id", requestID)
			h.fail(w, apperrors.NewPayloadTooLargeError(h.opts.MaxFileSize))
			return
		}
		h.logger.Debug("Rejected watermark request", "reason", err.Error(), "request_id", requestID)
		h.fail(w, apperrors.NewValidationError("Missing required fields"))
		return
	}

	stamp := domain.Stamp{
		Label:    h.opts.Label,
		UserName: form.UserName,
		Time:     start,
	}
	result, err := h.watermarker.Apply(r.Context(), pdf, stamp)
	if err != nil {
		h.logger.Error("Failed to watermark PDF", err,
			"company", form.Company,
			"file", form.FileName,
			"size", len(pdf),
			"request_id", requestID,
		)
		h.fail(w, apperrors.NewInternalError("Error processing PDF", err))
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Length", strconv.Itoa(len(result.Data)))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": outputFileName(form.FileName),
	}))
	w.Header().Set("X-Page-Count", strconv.Itoa(result.PageCount))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(result.Data); err != nil {
		// The client went away; the document was still produced, so usage still counts.
		h.logger.Warn("Failed to write watermarked PDF", "error", err.Error(), "request_id", requestID)
	}

	h.metrics.ObserveRequest(metrics.OutcomeSuccess, h.now().Sub(start))
	h.metrics.AddPages(result.PageCount)

	h.recordUsage(r.Context(), form.Company, result.PageCount, start, requestID)
}

// Wait blocks until all pending usage updates have finished.
func (h *WatermarkHandler) Wait() {
	h.inflight.Wait()
}

// recordUsage updates the company's counter in the background. The update
// outlives the request but not the record timeout.
func (h *WatermarkHandler) recordUsage(parent context.Context, company string, pages int, at time.Time, requestID string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), h.opts.RecordTimeout)

	h.inflight.Add(1)
	go func() {
		defer h.inflight.Done()
		defer cancel()

		if _, err := h.usageService.RecordUsage(ctx, company, pages, at); err != nil {
			h.metrics.UsageRecordFailed()
			h.logger.Error("Failed to record usage", err,
				"company", company,
				"pages", pages,
				"request_id", requestID,
			)
		}
	}()
}

func (h *WatermarkHandler) readUpload(r *http.Request) (*watermarkForm, []byte, error) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		return nil, nil, err
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	form := &watermarkForm{
		Company:  strings.TrimSpace(r.FormValue("company")),
		UserName: strings.TrimSpace(r.FormValue("user_name")),
	}

	file, header, err := r.FormFile("file")
	if err != nil && !errors.Is(err, http.ErrMissingFile) {
		return nil, nil, err
	}
	if file != nil {
		defer file.Close()
		// The body limit includes framing slack; the file itself gets the exact limit.
		if h.opts.MaxFileSize > 0 && header.Size > h.opts.MaxFileSize {
			return nil, nil, &http.MaxBytesError{Limit: h.opts.MaxFileSize}
		}
		form.FileName = header.Filename
		if form.FileName == "" {
			form.FileName = "document.pdf"
		}
	}

	if err := h.validate.Struct(form); err != nil {
		return nil, nil, domain.ErrMissingFields
	}

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, nil, err
	}
	return form, data, nil
}

func (h *WatermarkHandler) fail(w http.ResponseWriter, err error) {
	h.metrics.ObserveRequest(failureOutcome(err), 0)
	writeAppError(w, err)
}

// failureOutcome maps a rejected request onto its metrics label.
func failureOutcome(err error) string {
	switch {
	case apperrors.IsType(err, apperrors.ErrorTypeTooLarge):
		return metrics.OutcomeTooLarge
	case apperrors.IsType(err, apperrors.ErrorTypeValidation):
		return metrics.OutcomeBadRequest
	case apperrors.IsType(err, apperrors.ErrorTypeUnauthorized):
		return metrics.OutcomeUnauthorized
	default:
		return metrics.OutcomeFailed
	}
}

// isBodyTooLarge reports whether err came from http.MaxBytesReader. Some
// multipart paths flatten the error with %v, so the message is checked too.
func isBodyTooLarge(err error) bool {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return true
	}
	return strings.Contains(err.Error(), "request body too large")
}

// outputFileName derives the download name from the uploaded file name.
func outputFileName(uploaded string) string {
	base := filepath.Base(strings.ReplaceAll(uploaded, `\`, "/"))
	if ext := filepath.Ext(base); strings.EqualFold(ext, ".pdf") {
		base = strings.TrimSuffix(base, ext)
	}
	base = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f || r == '"' || r == '/' {
			return -1
		}
		return r
	}, base)
	if base == "" || base == "." {
		base = "document"
	}
	return "watermarked-" + base + ".pdf"
}
