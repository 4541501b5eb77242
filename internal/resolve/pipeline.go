// Package resolve turns a captured image or a scanned code into exactly one
// chat-ready result. Sources are tried cheapest and most precise first:
// remote product data, the offline catalog, a generic record with a
// disclaimer, and finally AI visual analysis. Every path ends in a value.
package resolve

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/jpeg"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/foodlens/internal/barcode"
	"github.com/yungbote/foodlens/internal/catalog"
	"github.com/yungbote/foodlens/internal/clients/imageanalysis"
	"github.com/yungbote/foodlens/internal/domain/product"
	"github.com/yungbote/foodlens/internal/ocr"
	"github.com/yungbote/foodlens/internal/platform/apology"
	"github.com/yungbote/foodlens/internal/platform/ctxutil"
	"github.com/yungbote/foodlens/internal/platform/logger"
)

type Mode int

const (
	// ModeBarcode tries to read a code before anything else.
	ModeBarcode Mode = iota
	// ModeProduct goes straight to visual analysis.
	ModeProduct
)

func (m Mode) String() string {
	if m == ModeProduct {
		return "product"
	}
	return "barcode"
}

type ProductSource interface {
	Lookup(ctx context.Context, barcode string) product.Lookup
}

type LocalCatalog interface {
	Lookup(code string) (product.Record, bool)
	Generic() product.Record
}

type ImageAnalyzer interface {
	Analyze(ctx context.Context, img []byte, filename string) imageanalysis.Analysis
}

type Deps struct {
	Log      *logger.Logger
	Decoder  barcode.Decoder
	Remote   ProductSource
	Catalog  LocalCatalog
	Analyzer ImageAnalyzer

	// UploadRemote is consulted instead of Remote on the upload path. Nil
	// means use Remote.
	UploadRemote ProductSource

	// OCR enables digit recovery on the upload path. Nil disables it.
	OCR ocr.Extractor

	// StepTimeout bounds each outbound call. Zero leaves calls unbounded.
	StepTimeout time.Duration
}

type Pipeline struct {
	log          *logger.Logger
	tracer       trace.Tracer
	decoder      barcode.Decoder
	remote       ProductSource
	uploadRemote ProductSource
	catalog      LocalCatalog
	analyzer     ImageAnalyzer
	ocr          ocr.Extractor
	stepTimeout  time.Duration
}

func New(d Deps) (*Pipeline, error) {
	switch {
	case d.Decoder == nil:
		return nil, errors.New("resolve: decoder required")
	case d.Remote == nil:
		return nil, errors.New("resolve: remote product source required")
	case d.Catalog == nil:
		return nil, errors.New("resolve: catalog required")
	case d.Analyzer == nil:
		return nil, errors.New("resolve: image analyzer required")
	}
	upload := d.UploadRemote
	if upload == nil {
		upload = d.Remote
	}
	return &Pipeline{
		log:          logger.OrNop(d.Log).With("service", "resolve.Pipeline"),
		tracer:       otel.Tracer("foodlens/resolve"),
		decoder:      d.Decoder,
		remote:       d.Remote,
		uploadRemote: upload,
		catalog:      d.Catalog,
		analyzer:     d.Analyzer,
		ocr:          d.OCR,
		stepTimeout:  d.StepTimeout,
	}, nil
}

// ResolveCode resolves a code that was already decoded, e.g. by the live
// camera scanner.
func (p *Pipeline) ResolveCode(ctx context.Context, code string) product.Result {
	ctx, span := p.tracer.Start(ctxutil.Default(ctx), "resolve.code")
	defer span.End()
	res := p.lookupChain(ctx, p.remote, strings.TrimSpace(code))
	p.finish(span, "code", res)
	return res
}

// ResolveFrame handles a live camera frame. Decode failure goes straight to
// visual analysis; OCR is too slow for a per-frame loop.
func (p *Pipeline) ResolveFrame(ctx context.Context, frame image.Image, mode Mode) product.Result {
	ctx, span := p.tracer.Start(ctxutil.Default(ctx), "resolve.frame",
		trace.WithAttributes(attribute.String("mode", mode.String())))
	defer span.End()

	if mode == ModeBarcode {
		if code, ok := p.decode(ctx, frame); ok {
			res := p.lookupChain(ctx, p.remote, code)
			p.finish(span, "frame", res)
			return res
		}
	}

	raw, err := encodeJPEG(frame)
	if err != nil {
		p.log.Warn("frame encode failed", "error", err)
		res := product.Result{Kind: product.KindFailure, Failure: apology.Image}
		p.finish(span, "frame", res)
		return res
	}
	res := p.analyze(ctx, raw, "frame.jpg")
	p.finish(span, "frame", res)
	return res
}

// ResolveUpload handles a photo chosen from storage. Between decode failure
// and visual analysis it tries to read a printed code from OCR text.
func (p *Pipeline) ResolveUpload(ctx context.Context, raw []byte, filename string, mode Mode) product.Result {
	ctx, span := p.tracer.Start(ctxutil.Default(ctx), "resolve.upload",
		trace.WithAttributes(attribute.String("mode", mode.String())))
	defer span.End()

	if len(raw) == 0 {
		res := product.Result{Kind: product.KindFailure, Failure: apology.Image}
		p.finish(span, "upload", res)
		return res
	}

	if mode == ModeBarcode {
		img, _, err := barcode.DecodeImage(raw)
		if err != nil {
			p.log.Debug("upload is not a decodable image", "error", err)
		} else if code, ok := p.decode(ctx, img); ok {
			res := p.lookupChain(ctx, p.uploadRemote, code)
			p.finish(span, "upload", res)
			return res
		}

		if code, ok := p.recoverFromOCR(ctx, raw); ok {
			res := p.lookupChain(ctx, p.uploadRemote, code)
			p.finish(span, "upload", res)
			return res
		}
	}

	res := p.analyze(ctx, raw, filename)
	p.finish(span, "upload", res)
	return res
}

func (p *Pipeline) decode(ctx context.Context, img image.Image) (string, bool) {
	_, span := p.tracer.Start(ctx, "resolve.decode")
	defer span.End()
	code, ok := p.decoder.Decode(ctx, img)
	span.SetAttributes(attribute.Bool("found", ok))
	return strings.TrimSpace(code), ok && strings.TrimSpace(code) != ""
}

// lookupChain runs remote lookup, then the catalog, then the generic record.
// It always yields a prompt-kind result.
func (p *Pipeline) lookupChain(ctx context.Context, remote ProductSource, code string) product.Result {
	if code != "" {
		stepCtx, cancel := ctxutil.WithOptionalTimeout(ctx, p.stepTimeout)
		stepCtx, span := p.tracer.Start(stepCtx, "resolve.remote_lookup")
		found := remote.Lookup(stepCtx, code)
		span.SetAttributes(attribute.Bool("found", found.Found))
		span.End()
		cancel()
		if found.Found {
			return product.Result{
				Kind:    product.KindRemoteMatch,
				Barcode: code,
				Prompt:  product.ComposePrompt(found.Record),
			}
		}

		if rec, ok := p.catalog.Lookup(code); ok {
			return product.Result{
				Kind:    product.KindLocalMatch,
				Barcode: code,
				Prompt:  product.ComposePrompt(rec),
			}
		}
	}

	return product.Result{
		Kind:    product.KindGenericFallback,
		Barcode: code,
		Prompt:  product.ComposePrompt(p.catalog.Generic()) + "\n\n" + catalog.GenericDisclaimer,
	}
}

func (p *Pipeline) recoverFromOCR(ctx context.Context, raw []byte) (string, bool) {
	if p.ocr == nil {
		return "", false
	}
	stepCtx, cancel := ctxutil.WithOptionalTimeout(ctx, p.stepTimeout)
	defer cancel()
	stepCtx, span := p.tracer.Start(stepCtx, "resolve.ocr")
	defer span.End()

	text := p.ocr.Extract(stepCtx, raw)
	code, ok := ocr.RecoverBarcode(text)
	// Phone numbers and batch codes also look like digit runs; only a code
	// with a valid check digit re-enters the lookup chain.
	if !ok || !ocr.ValidGTIN(code) {
		span.SetAttributes(attribute.Bool("found", false))
		return "", false
	}
	span.SetAttributes(attribute.Bool("found", true))
	p.log.Debug("barcode recovered from ocr", "barcode", code)
	return code, true
}

func (p *Pipeline) analyze(ctx context.Context, raw []byte, filename string) product.Result {
	stepCtx, cancel := ctxutil.WithOptionalTimeout(ctx, p.stepTimeout)
	defer cancel()
	stepCtx, span := p.tracer.Start(stepCtx, "resolve.image_analysis")
	defer span.End()

	a := p.analyzer.Analyze(stepCtx, raw, filename)
	switch {
	case !a.Success:
		return product.Result{Kind: product.KindFailure, Failure: apology.ForImage(a.Err)}
	case a.Insight != nil:
		return product.Result{Kind: product.KindAIStructured, Insight: a.Insight}
	case strings.TrimSpace(a.Text) != "":
		return product.Result{Kind: product.KindAINarrative, Narrative: strings.TrimSpace(a.Text)}
	default:
		return product.Result{Kind: product.KindFailure, Failure: apology.Image}
	}
}

func (p *Pipeline) finish(span trace.Span, entry string, res product.Result) {
	span.SetAttributes(attribute.String("kind", string(res.Kind)))
	p.log.Info("resolution complete", "entry", entry, "kind", string(res.Kind), "barcode", res.Barcode)
}

func encodeJPEG(img image.Image) ([]byte, error) {
	if img == nil {
		return nil, errors.New("resolve: nil frame")
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
