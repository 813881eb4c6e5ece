package domain

import (
	"fmt"
	"strings"
	"time"
)

// DefaultWatermarkLabel is the first line of every stamp.
const DefaultWatermarkLabel = "INTERNAL USE ONLY"

// StampTimeLayout is the minute-precision layout used in the stamp text.
const StampTimeLayout = "2006-01-02 15:04"

// Stamp identifies who requested a watermark and when.
type Stamp struct {
	Label    string
	UserName string
	Time     time.Time
}

// Text renders the two-line watermark text. The time is always shown in UTC.
func (s Stamp) Text() string {
	label := s.Label
	if label == "" {
		label = DefaultWatermarkLabel
	}
	return fmt.Sprintf("%s\n%s — %s", label, s.UserName, s.Time.UTC().Format(StampTimeLayout))
}

// RGB is a color with components in [0, 1].
type RGB struct {
	R, G, B float64
}

// WatermarkStyle controls how the stamp text is drawn on each page.
type WatermarkStyle struct {
	FontName string
	FontSize int
	Color    RGB
	Opacity  float64
	// OffsetX places the left edge of the text block relative to the page
	// centre, OffsetY moves the block's vertical centre. Both in points.
	OffsetX float64
	OffsetY float64
}

// DefaultWatermarkStyle returns light grey 18pt Helvetica starting 150pt left of centre.
func DefaultWatermarkStyle() WatermarkStyle {
	return WatermarkStyle{
		FontName: "Helvetica",
		FontSize: 18,
		Color:    RGB{R: 0.75, G: 0.75, B: 0.75},
		Opacity:  0.4,
		OffsetX:  -150,
		OffsetY:  0,
	}
}

// Description renders the style as a pdfcpu watermark description string.
// pdfcpu centres the block, so the horizontal offset is shifted by half of
// blockWidth to pin the left edge instead.
func (s WatermarkStyle) Description(blockWidth float64) string {
	parts := []string{
		"fontname:" + s.FontName,
		fmt.Sprintf("points:%d", s.FontSize),
		fmt.Sprintf("fillcolor:%.2f %.2f %.2f", s.Color.R, s.Color.G, s.Color.B),
		fmt.Sprintf("opacity:%.2f", s.Opacity),
		"rotation:0",
		"scalefactor:1 abs",
		"position:c",
		fmt.Sprintf("offset:%.2f %.2f", s.OffsetX+blockWidth/2, s.OffsetY),
		"aligntext:l",
	}
	return strings.Join(parts, ", ")
}

// Validate checks that the style can be rendered.
func (s WatermarkStyle) Validate() error {
	if s.FontName == "" {
		return &ValidationError{Field: "font_name", Message: "font name is required"}
	}
	if s.FontSize <= 0 {
		return &ValidationError{Field: "font_size", Message: "font size must be positive"}
	}
	if s.Opacity < 0 || s.Opacity > 1 {
		return &ValidationError{Field: "opacity", Message: "opacity must be between 0 and 1"}
	}
	for _, c := range []float64{s.Color.R, s.Color.G, s.Color.B} {
		if c < 0 || c > 1 {
			return &ValidationError{Field: "color", Message: "color components must be between 0 and 1"}
		}
	}
	return nil
}

// WatermarkResult is the stamped document.
type WatermarkResult struct {
	Data      []byte
	PageCount int
}
