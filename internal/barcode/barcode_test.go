package barcode

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"testing"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/oned"
	"github.com/stretchr/testify/require"
)

func ean13(t *testing.T, code string) image.Image {
	t.Helper()
	img, err := oned.NewEAN13Writer().Encode(code, gozxing.BarcodeFormat_EAN_13, 400, 120, nil)
	require.NoError(t, err)
	return img
}

func blank(w, h int) image.Image {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	return img
}

func TestZXing_DecodesEAN13(t *testing.T) {
	d := NewZXing(nil)
	code, ok := d.Decode(context.Background(), ean13(t, "8901719101014"))
	require.True(t, ok)
	require.Equal(t, "8901719101014", code)
}

func TestZXing_NoBarcodeIsNotAnError(t *testing.T) {
	d := NewZXing(nil)
	code, ok := d.Decode(context.Background(), blank(200, 200))
	require.False(t, ok)
	require.Empty(t, code)

	_, ok = d.Decode(context.Background(), nil)
	require.False(t, ok)
}

func TestDecodeBytes(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, ean13(t, "8901719101014")))

	code, ok := DecodeBytes(context.Background(), NewZXing(nil), buf.Bytes())
	require.True(t, ok)
	require.Equal(t, "8901719101014", code)

	_, ok = DecodeBytes(context.Background(), NewZXing(nil), []byte("not an image"))
	require.False(t, ok)
}

type countingDecoder struct {
	calls int
	hitAt int
}

func (c *countingDecoder) Decode(_ context.Context, _ image.Image) (string, bool) {
	c.calls++
	if c.calls == c.hitAt {
		return "12345670", true
	}
	return "", false
}

func TestScanner_StopsOnFirstHit(t *testing.T) {
	dec := &countingDecoder{hitAt: 3}
	s := NewScanner(nil, dec, 0)

	frames := make(chan image.Image, 10)
	for i := 0; i < 10; i++ {
		frames <- blank(4, 4)
	}
	close(frames)

	code, ok, stats := s.Run(context.Background(), frames)
	require.True(t, ok)
	require.Equal(t, "12345670", code)
	require.Equal(t, 3, stats.Attempted)
	require.Equal(t, 3, dec.calls)
}

func TestScanner_SourceClosed(t *testing.T) {
	dec := &countingDecoder{}
	s := NewScanner(nil, dec, 0)
	frames := make(chan image.Image, 2)
	frames <- blank(4, 4)
	frames <- blank(4, 4)
	close(frames)

	_, ok, stats := s.Run(context.Background(), frames)
	require.False(t, ok)
	require.Equal(t, 2, stats.Attempted)
}

func TestScanner_DropsFramesOverRate(t *testing.T) {
	dec := &countingDecoder{}
	// One token, refilled far slower than the test runs.
	s := NewScanner(nil, dec, 0.001)
	frames := make(chan image.Image, 5)
	for i := 0; i < 5; i++ {
		frames <- blank(4, 4)
	}
	close(frames)

	_, ok, stats := s.Run(context.Background(), frames)
	require.False(t, ok)
	require.Equal(t, 1, stats.Attempted)
	require.Equal(t, 4, stats.Dropped)
}

func TestScanner_Cancelled(t *testing.T) {
	s := NewScanner(nil, &countingDecoder{}, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, ok, _ := s.Run(ctx, make(chan image.Image))
	require.False(t, ok)
}
