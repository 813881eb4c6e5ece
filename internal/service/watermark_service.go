package service

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"

	"pdf-watermark-api/internal/domain"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/font"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

var disableConfigDirOnce sync.Once

// WatermarkService stamps PDFs in memory using pdfcpu
type WatermarkService struct {
	style  domain.WatermarkStyle
	logger domain.Logger
}

// NewWatermarkService creates a new watermark service with the given style
func NewWatermarkService(style domain.WatermarkStyle, logger domain.Logger) (*WatermarkService, error) {
	if err := style.Validate(); err != nil {
		return nil, fmt.Errorf("invalid watermark style: %w", err)
	}
	if !font.IsCoreFont(style.FontName) {
		return nil, fmt.Errorf("invalid watermark style: %q is not a standard PDF font", style.FontName)
	}
	// pdfcpu would otherwise create a config directory under the user's home.
	disableConfigDirOnce.Do(api.DisableConfigDir)

	return &WatermarkService{
		style:  style,
		logger: logger,
	}, nil
}

// Apply draws the stamp text on top of every page and returns the new document.
// Documents pdfcpu cannot read are reported as domain.ErrInvalidPDF.
func (s *WatermarkService) Apply(ctx context.Context, pdf []byte, stamp domain.Stamp) (*domain.WatermarkResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(pdf) == 0 {
		return nil, fmt.Errorf("%w: empty file", domain.ErrInvalidPDF)
	}

	pageCount, err := api.PageCount(bytes.NewReader(pdf), newPDFConfiguration())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidPDF, err)
	}

	text := stamp.Text()
	wm, err := api.TextWatermark(text, s.style.Description(s.blockWidth(text)), true, false, types.POINTS)
	if err != nil {
		return nil, fmt.Errorf("build watermark: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out bytes.Buffer
	out.Grow(len(pdf) + len(pdf)/8)
	// nil page selection stamps every page.
	if err := api.AddWatermarks(bytes.NewReader(pdf), &out, nil, wm, newPDFConfiguration()); err != nil {
		return nil, fmt.Errorf("apply watermark: %w", err)
	}

	s.logger.Debug("Watermark applied", "pages", pageCount, "input_bytes", len(pdf), "output_bytes", out.Len())
	return &domain.WatermarkResult{
		Data:      out.Bytes(),
		PageCount: pageCount,
	}, nil
}

// blockWidth is the width of the widest stamp line in points, measured the
// way pdfcpu lays out core font text.
func (s *WatermarkService) blockWidth(text string) float64 {
	var width float64
	for _, line := range strings.Split(text, "\n") {
		w := font.TextWidth(model.DecodeUTF8ToByte(line), s.style.FontName, s.style.FontSize)
		if w > width {
			width = w
		}
	}
	return width
}

// newPDFConfiguration returns a fresh configuration per call; pdfcpu mutates it.
func newPDFConfiguration() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}
