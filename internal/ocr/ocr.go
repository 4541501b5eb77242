// Package ocr extracts raw label text from images. It is a last-resort text
// source: results are always strings, possibly empty, and callers judge
// their quality.
package ocr

import (
	"context"
	"net/http"

	"github.com/yungbote/foodlens/internal/clients/gcp"
	"github.com/yungbote/foodlens/internal/platform/logger"
)

type Extractor interface {
	Extract(ctx context.Context, img []byte) string
}

// VisionExtractor adapts the Cloud Vision client. Errors collapse to "".
type VisionExtractor struct {
	log    *logger.Logger
	vision gcp.Vision
}

func NewVisionExtractor(log *logger.Logger, v gcp.Vision) *VisionExtractor {
	return &VisionExtractor{log: logger.OrNop(log).With("service", "ocr.Vision"), vision: v}
}

func (e *VisionExtractor) Extract(ctx context.Context, img []byte) string {
	if e == nil || e.vision == nil || len(img) == 0 {
		return ""
	}
	res, err := e.vision.OCRImageBytes(ctx, img, http.DetectContentType(img))
	if err != nil {
		e.log.Warn("ocr failed", "error", err, "image", img)
		return ""
	}
	if res == nil {
		return ""
	}
	return res.PrimaryText
}

// Nop is used when OCR is disabled.
type Nop struct{}

func (Nop) Extract(context.Context, []byte) string { return "" }
