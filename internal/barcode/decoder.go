// Package barcode extracts linear and 2D barcodes from still images and live
// frame streams. Not finding a barcode is a normal outcome, not an error.
package barcode

import (
	"bytes"
	"context"
	"errors"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/oned"
	"github.com/makiuchi-d/gozxing/qrcode"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/yungbote/foodlens/internal/platform/logger"
)

// Decoder makes exactly one attempt per image.
type Decoder interface {
	Decode(ctx context.Context, img image.Image) (string, bool)
}

type ZXing struct {
	log   *logger.Logger
	hints map[gozxing.DecodeHintType]interface{}
	oned  gozxing.Reader
	qr    gozxing.Reader
}

func NewZXing(log *logger.Logger) *ZXing {
	hints := map[gozxing.DecodeHintType]interface{}{
		gozxing.DecodeHintType_TRY_HARDER: true,
	}
	return &ZXing{
		log:   logger.OrNop(log).With("service", "barcode.ZXing"),
		hints: hints,
		oned:  oned.NewMultiFormatOneDReader(hints),
		qr:    qrcode.NewQRCodeReader(),
	}
}

func (z *ZXing) Decode(ctx context.Context, img image.Image) (string, bool) {
	if img == nil || ctx.Err() != nil {
		return "", false
	}
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		z.log.Debug("binarize failed", "error", err)
		return "", false
	}
	for _, r := range []gozxing.Reader{z.oned, z.qr} {
		res, err := r.Decode(bmp, z.hints)
		if err != nil {
			continue
		}
		if text := strings.TrimSpace(res.GetText()); text != "" {
			z.log.Debug("barcode decoded", "format", res.GetBarcodeFormat().String(), "barcode", text)
			return text, true
		}
	}
	return "", false
}

var ErrUnsupportedImage = errors.New("barcode: unsupported or corrupt image")

// DecodeImage parses an encoded still (jpeg, png, gif, bmp, tiff, webp).
func DecodeImage(raw []byte) (image.Image, string, error) {
	img, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, "", errors.Join(ErrUnsupportedImage, err)
	}
	return img, format, nil
}

// DecodeBytes runs d once on an encoded still. An undecodable container is
// reported the same way as a missing barcode.
func DecodeBytes(ctx context.Context, d Decoder, raw []byte) (string, bool) {
	img, _, err := DecodeImage(raw)
	if err != nil {
		return "", false
	}
	return d.Decode(ctx, img)
}
