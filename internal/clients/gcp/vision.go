package gcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	vision "cloud.google.com/go/vision/v2/apiv1"
	visionpb "cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/googleapis/gax-go/v2"

	"github.com/yungbote/foodlens/internal/platform/ctxutil"
	"github.com/yungbote/foodlens/internal/platform/logger"
)

type Vision interface {
	OCRImageBytes(ctx context.Context, img []byte, mimeType string) (*VisionOCRResult, error)
	Close() error
}

type VisionOCRResult struct {
	Provider    string  `json:"provider"`
	MimeType    string  `json:"mime_type,omitempty"`
	PrimaryText string  `json:"primary_text"`
	Confidence  float64 `json:"confidence"`
}

// annotator is the slice of the Vision client this package calls.
type annotator interface {
	BatchAnnotateImages(ctx context.Context, req *visionpb.BatchAnnotateImagesRequest, opts ...gax.CallOption) (*visionpb.BatchAnnotateImagesResponse, error)
	Close() error
}

type visionService struct {
	log     *logger.Logger
	client  annotator
	timeout time.Duration
}

func NewVision(ctx context.Context, log *logger.Logger) (Vision, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	vClient, err := vision.NewImageAnnotatorClient(ctxutil.Default(ctx), ClientOptionsFromEnv()...)
	if err != nil {
		return nil, fmt.Errorf("vision client: %w", err)
	}
	return newVisionService(log, vClient), nil
}

func newVisionService(log *logger.Logger, client annotator) *visionService {
	return &visionService{
		log:     log.With("service", "gcp.Vision"),
		client:  client,
		timeout: 30 * time.Second,
	}
}

func (s *visionService) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

func (s *visionService) OCRImageBytes(ctx context.Context, img []byte, mimeType string) (*VisionOCRResult, error) {
	empty := &VisionOCRResult{Provider: "gcp_vision", MimeType: mimeType}
	if len(img) == 0 {
		return empty, nil
	}

	ctx, cancel := ctxutil.WithOptionalTimeout(ctx, s.timeout)
	defer cancel()

	// TEXT_DETECTION suits sparse label text better than DOCUMENT_TEXT_DETECTION.
	req := &visionpb.AnnotateImageRequest{
		Image: &visionpb.Image{Content: img},
		Features: []*visionpb.Feature{
			{Type: visionpb.Feature_TEXT_DETECTION},
		},
	}
	resp, err := s.client.BatchAnnotateImages(ctx, &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{req},
	})
	if err != nil {
		return nil, fmt.Errorf("vision BatchAnnotateImages: %w", err)
	}
	if resp == nil || len(resp.Responses) == 0 || resp.Responses[0] == nil {
		return empty, nil
	}

	r0 := resp.Responses[0]
	if r0.Error != nil && r0.Error.Message != "" {
		return nil, fmt.Errorf("vision annotate error: %s", r0.Error.Message)
	}

	fta := r0.FullTextAnnotation
	if fta == nil || strings.TrimSpace(fta.Text) == "" {
		// Older responses only populate TextAnnotations; index 0 is the full text.
		if len(r0.TextAnnotations) > 0 && r0.TextAnnotations[0] != nil {
			empty.PrimaryText = collapseWhitespace(r0.TextAnnotations[0].Description)
		}
		return empty, nil
	}

	return &VisionOCRResult{
		Provider:    "gcp_vision",
		MimeType:    mimeType,
		PrimaryText: collapseWhitespace(fta.Text),
		Confidence:  avgPageConfidence(fta.Pages),
	}, nil
}

func avgPageConfidence(pages []*visionpb.Page) float64 {
	var sum float64
	n := 0
	for _, p := range pages {
		if p == nil {
			continue
		}
		for _, b := range p.Blocks {
			if b != nil && b.Confidence > 0 {
				sum += float64(b.Confidence)
				n++
			}
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
