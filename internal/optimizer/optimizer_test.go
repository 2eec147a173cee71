package optimizer

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	xwebp "golang.org/x/image/webp"

	"github.com/vetclinic/sitemedia/internal/domain"
	apperrors "github.com/vetclinic/sitemedia/pkg/errors"
)

var frozen = time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)

func gradient(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	return img
}

func encodeJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, gradient(w, h), &jpeg.Options{Quality: 90}))
	return buf.Bytes()
}

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, gradient(w, h)))
	return buf.Bytes()
}

// fakeDecoder returns a blank bitmap of the given size and counts calls.
func fakeDecoder(w, h int, calls *atomic.Int32) Decoder {
	return func([]byte) (image.Image, error) {
		if calls != nil {
			calls.Add(1)
		}
		return image.NewRGBA(image.Rect(0, 0, w, h)), nil
	}
}

func fakeEncoder(w io.Writer, _ image.Image, _ float64) error {
	_, err := w.Write([]byte("encoded"))
	return err
}

func newFakeOptimizer(w, h int, calls *atomic.Int32) *Optimizer {
	o := New(domain.Options{}).
		WithClock(func() time.Time { return frozen }).
		WithDecoder(fakeDecoder(w, h, calls))
	for _, f := range []domain.Format{domain.FormatWebP, domain.FormatJPEG, domain.FormatPNG} {
		o = o.WithEncoder(f, fakeEncoder)
	}
	return o
}

// ============================================================================
// Scenarios
// ============================================================================

func TestOptimize_LargeJPEGToWebP(t *testing.T) {
	o := New(domain.Options{}).WithClock(func() time.Time { return frozen })
	src := domain.SourceImage{Name: "clinic-front.jpg", ContentType: "image/jpeg", Data: encodeJPEG(t, 3000, 2000)}

	out, err := o.Optimize(context.Background(), src, domain.Options{MaxWidth: 1200, OutputType: domain.FormatWebP})

	require.NoError(t, err)
	assert.Equal(t, 1200, out.Width)
	assert.Equal(t, 800, out.Height)
	assert.Equal(t, "image/webp", out.ContentType)
	assert.Equal(t, frozen, out.ModTime)

	cfg, err := xwebp.DecodeConfig(bytes.NewReader(out.Data))
	require.NoError(t, err)
	assert.Equal(t, 1200, cfg.Width)
	assert.Equal(t, 800, cfg.Height)
}

func TestOptimize_SmallPNGDefaultsToWebPWithoutResize(t *testing.T) {
	o := New(domain.Options{}).WithClock(func() time.Time { return frozen })
	src := domain.SourceImage{Name: "cat.png", ContentType: "image/png", Data: encodePNG(t, 500, 500)}

	out, err := o.Optimize(context.Background(), src, domain.Options{})

	require.NoError(t, err)
	assert.Equal(t, 500, out.Width)
	assert.Equal(t, 500, out.Height)
	assert.Equal(t, "image/webp", out.ContentType)
	assert.Equal(t, "cat-optimized-1777896000000.webp", out.Name)
	assert.NotEmpty(t, out.Data)
}

func TestOptimize_TextFileRejectedBeforeDecode(t *testing.T) {
	var calls atomic.Int32
	o := newFakeOptimizer(10, 10, &calls)
	src := domain.SourceImage{Name: "notes.jpg", ContentType: "text/plain", Data: []byte("hello")}

	out, err := o.Optimize(context.Background(), src, domain.Options{})

	require.Error(t, err)
	assert.Nil(t, out)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Equal(t, int32(0), calls.Load())
}

func TestOptimize_NonImageTypesNeverDecode(t *testing.T) {
	var calls atomic.Int32
	o := newFakeOptimizer(10, 10, &calls)

	for _, ct := range []string{"", "text/plain", "application/pdf", "video/mp4", "image/"} {
		_, err := o.Optimize(context.Background(), domain.SourceImage{Name: "f", ContentType: ct}, domain.Options{})
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput, ct)
	}
	assert.Equal(t, int32(0), calls.Load())
}

// ============================================================================
// Properties
// ============================================================================

func TestOptimize_NeverUpscales(t *testing.T) {
	sizes := [][2]int{{1, 1}, {100, 3000}, {799, 600}, {800, 800}, {1200, 50}}

	for _, sz := range sizes {
		o := newFakeOptimizer(sz[0], sz[1], nil)
		out, err := o.Optimize(context.Background(),
			domain.SourceImage{Name: "a.png", ContentType: "image/png"},
			domain.Options{MaxWidth: 1200},
		)
		require.NoError(t, err)
		assert.Equal(t, sz[0], out.Width, "%v", sz)
		assert.Equal(t, sz[1], out.Height, "%v", sz)
	}
}

func TestOptimize_ProportionalResize(t *testing.T) {
	cases := []struct {
		w, h, maxWidth int
	}{
		{3000, 2000, 1200},
		{1201, 1, 1200},
		{1999, 1333, 640},
		{4032, 3024, 1200},
		{5000, 7, 100},
	}

	for _, tc := range cases {
		o := newFakeOptimizer(tc.w, tc.h, nil)
		out, err := o.Optimize(context.Background(),
			domain.SourceImage{Name: "a.jpg", ContentType: "image/jpeg"},
			domain.Options{MaxWidth: tc.maxWidth},
		)
		require.NoError(t, err)

		want := math.Round(float64(tc.h) * float64(tc.maxWidth) / float64(tc.w))
		assert.Equal(t, tc.maxWidth, out.Width)
		assert.InDelta(t, max(1, want), float64(out.Height), 1, "%dx%d@%d", tc.w, tc.h, tc.maxWidth)
	}
}

func TestOptimize_DeterministicNaming(t *testing.T) {
	now := frozen
	o := newFakeOptimizer(10, 10, nil).WithClock(func() time.Time { return now })
	src := domain.SourceImage{Name: "dog.jpeg", ContentType: "image/jpeg"}

	first, err := o.Optimize(context.Background(), src, domain.Options{})
	require.NoError(t, err)
	second, err := o.Optimize(context.Background(), src, domain.Options{})
	require.NoError(t, err)
	assert.Equal(t, first.Name, second.Name)

	now = now.Add(time.Millisecond)
	third, err := o.Optimize(context.Background(), src, domain.Options{})
	require.NoError(t, err)
	assert.NotEqual(t, first.Name, third.Name)
}

func TestOptimize_NameExtensionFollowsOutputType(t *testing.T) {
	o := newFakeOptimizer(10, 10, nil)
	src := domain.SourceImage{Name: "dog.jpeg", ContentType: "image/jpeg"}

	for _, f := range []domain.Format{domain.FormatWebP, domain.FormatJPEG, domain.FormatPNG} {
		out, err := o.Optimize(context.Background(), src, domain.Options{OutputType: f})
		require.NoError(t, err)
		assert.Equal(t, "dog-optimized-1777896000000."+string(f), out.Name)
		assert.Equal(t, "image/"+string(f), out.ContentType)
	}
}

// ============================================================================
// Failures
// ============================================================================

func TestOptimize_CorruptDataIsDecodeError(t *testing.T) {
	o := New(domain.Options{})
	data := encodeJPEG(t, 64, 64)

	_, err := o.Optimize(context.Background(),
		domain.SourceImage{Name: "broken.jpg", ContentType: "image/jpeg", Data: data[:40]},
		domain.Options{},
	)

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDecode)
	assert.Equal(t, 422, apperrors.HTTPStatus(err))
}

func TestOptimize_UnsupportedCodecIsDecodeError(t *testing.T) {
	_, err := New(domain.Options{}).Optimize(context.Background(),
		domain.SourceImage{Name: "a.bmp", ContentType: "image/bmp", Data: []byte("BM not really")},
		domain.Options{},
	)

	assert.ErrorIs(t, err, domain.ErrDecode)
}

func TestOptimize_EncoderFailureIsEncodeError(t *testing.T) {
	o := newFakeOptimizer(10, 10, nil).WithEncoder(domain.FormatWebP, func(io.Writer, image.Image, float64) error {
		return errors.New("wasm trap")
	})

	_, err := o.Optimize(context.Background(), domain.SourceImage{Name: "a.png", ContentType: "image/png"}, domain.Options{})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrEncode)
	assert.Contains(t, err.Error(), "wasm trap")
}

func TestOptimize_EmptyEncoderOutputIsEncodeError(t *testing.T) {
	o := newFakeOptimizer(10, 10, nil).WithEncoder(domain.FormatJPEG, func(io.Writer, image.Image, float64) error {
		return nil
	})

	_, err := o.Optimize(context.Background(),
		domain.SourceImage{Name: "a.png", ContentType: "image/png"},
		domain.Options{OutputType: domain.FormatJPEG},
	)

	assert.ErrorIs(t, err, domain.ErrEncode)
}

func TestOptimize_InvalidOptionsRejectedBeforeDecode(t *testing.T) {
	var calls atomic.Int32
	o := newFakeOptimizer(10, 10, &calls)

	_, err := o.Optimize(context.Background(),
		domain.SourceImage{Name: "a.png", ContentType: "image/png"},
		domain.Options{Quality: 2},
	)

	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Equal(t, int32(0), calls.Load())
}

// ============================================================================
// Quality and defaults
// ============================================================================

func TestOptimize_PassesQualityToEncoder(t *testing.T) {
	var got float64
	o := newFakeOptimizer(10, 10, nil).WithEncoder(domain.FormatJPEG, func(w io.Writer, _ image.Image, q float64) error {
		got = q
		return fakeEncoder(w, nil, q)
	})

	_, err := o.Optimize(context.Background(),
		domain.SourceImage{Name: "a.png", ContentType: "image/png"},
		domain.Options{OutputType: domain.FormatJPEG, Quality: 0.65},
	)
	require.NoError(t, err)
	assert.InDelta(t, 0.65, got, 1e-9)

	_, err = o.Optimize(context.Background(),
		domain.SourceImage{Name: "a.png", ContentType: "image/png"},
		domain.Options{OutputType: domain.FormatJPEG},
	)
	require.NoError(t, err)
	assert.InDelta(t, 0.8, got, 1e-9)
}

func TestNew_ConfiguredDefaults(t *testing.T) {
	o := New(domain.Options{MaxWidth: 800, OutputType: domain.FormatJPEG})

	assert.Equal(t, domain.Options{MaxWidth: 800, Quality: 0.8, OutputType: domain.FormatJPEG}, o.Defaults())
}

func TestOptimize_JPEGOutputDecodes(t *testing.T) {
	o := New(domain.Options{}).WithClock(func() time.Time { return frozen })
	src := domain.SourceImage{Name: "x.png", ContentType: "image/png", Data: encodePNG(t, 300, 200)}

	out, err := o.Optimize(context.Background(), src, domain.Options{OutputType: domain.FormatJPEG, MaxWidth: 150})

	require.NoError(t, err)
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(out.Data))
	require.NoError(t, err)
	assert.Equal(t, 150, cfg.Width)
	assert.Equal(t, 100, cfg.Height)
}

func TestOptimize_DoesNotMutateSource(t *testing.T) {
	data := encodePNG(t, 40, 40)
	orig := append([]byte(nil), data...)
	src := domain.SourceImage{Name: "x.png", ContentType: "image/png", Data: data}

	_, err := New(domain.Options{}).Optimize(context.Background(), src, domain.Options{OutputType: domain.FormatPNG, MaxWidth: 20})

	require.NoError(t, err)
	assert.Equal(t, orig, src.Data)
}

func TestWithEncoder_DoesNotAffectOriginal(t *testing.T) {
	base := New(domain.Options{})
	_ = base.WithEncoder(domain.FormatWebP, fakeEncoder)

	assert.NotNil(t, base.encoders[domain.FormatWebP])
	assert.Len(t, base.encoders, 3)
}
