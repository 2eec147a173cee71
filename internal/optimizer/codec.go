package optimizer

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif" // register decoder
	"image/jpeg"
	"image/png"
	"io"
	"math"

	"github.com/gen2brain/webp"
	_ "golang.org/x/image/webp" // register decoder

	"github.com/vetclinic/sitemedia/internal/domain"
)

// MaxPixels bounds the decoded bitmap size so a small compressed file cannot
// expand into an arbitrarily large allocation.
const MaxPixels = 64 << 20

// Decoder turns raw bytes into a bitmap.
type Decoder func(data []byte) (image.Image, error)

// Encoder writes img to w. quality is in (0,1]; lossless encoders ignore it.
type Encoder func(w io.Writer, img image.Image, quality float64) error

// DecodeImage decodes any registered format (jpeg, png, gif, webp).
func DecodeImage(data []byte) (image.Image, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("read image header: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("invalid image dimensions %dx%d", cfg.Width, cfg.Height)
	}
	if cfg.Width*cfg.Height > MaxPixels {
		return nil, fmt.Errorf("image dimensions %dx%d exceed %d pixels", cfg.Width, cfg.Height, MaxPixels)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

// EncodeWebP encodes lossy webp at round(quality*100).
func EncodeWebP(w io.Writer, img image.Image, quality float64) error {
	return webp.Encode(w, img, webp.Options{Quality: qualityPercent(quality), Method: 4})
}

// EncodeJPEG encodes baseline jpeg at round(quality*100).
func EncodeJPEG(w io.Writer, img image.Image, quality float64) error {
	return jpeg.Encode(w, img, &jpeg.Options{Quality: qualityPercent(quality)})
}

// EncodePNG encodes lossless png; quality is ignored.
func EncodePNG(w io.Writer, img image.Image, _ float64) error {
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	return enc.Encode(w, img)
}

// DefaultEncoders returns an encoder for every supported output format.
func DefaultEncoders() map[domain.Format]Encoder {
	return map[domain.Format]Encoder{
		domain.FormatWebP: EncodeWebP,
		domain.FormatJPEG: EncodeJPEG,
		domain.FormatPNG:  EncodePNG,
	}
}

func qualityPercent(q float64) int {
	p := int(math.Round(q * 100))
	return max(1, min(100, p))
}
