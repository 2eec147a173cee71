package domain

import (
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/vetclinic/sitemedia/pkg/errors"
	"github.com/vetclinic/sitemedia/pkg/validator"
)

// Format is an output encoding supported by the optimizer.
type Format string

// Supported output formats.
const (
	FormatWebP Format = "webp"
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
)

// Defaults applied when an Options field is left at its zero value.
const (
	DefaultMaxWidth   = 1200
	DefaultQuality    = 0.8
	DefaultOutputType = FormatWebP
	DefaultFolder     = "general"
)

// MaxFileSize is the maximum accepted source image size in bytes (10 MB).
const MaxFileSize int64 = 10 * 1024 * 1024

// ContentType returns the media type written for f.
func (f Format) ContentType() string {
	return "image/" + string(f)
}

// Extension returns the file extension (without dot) written for f.
func (f Format) Extension() string {
	return string(f)
}

// Lossy reports whether quality applies to f.
func (f Format) Lossy() bool {
	return f != FormatPNG
}

// ParseFormat converts s into a Format. Matching is case-insensitive and
// "jpg" is accepted as an alias for jpeg.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return "", nil
	case "webp":
		return FormatWebP, nil
	case "jpeg", "jpg":
		return FormatJPEG, nil
	case "png":
		return FormatPNG, nil
	default:
		return "", apperrors.InvalidInput(fmt.Sprintf("output type %q is not supported (webp, jpeg, png)", s))
	}
}

// SourceImage is a caller-owned image blob. The optimizer never mutates it.
type SourceImage struct {
	Name        string
	ContentType string
	Data        []byte
}

// IsRasterImage reports whether contentType declares an image/* media type.
func IsRasterImage(contentType string) bool {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	return strings.HasPrefix(ct, "image/") && len(ct) > len("image/")
}

// Options configures one optimization. Zero values select the defaults.
type Options struct {
	MaxWidth   int     `json:"max_width" validate:"gte=0"`
	Quality    float64 `json:"quality" validate:"gte=0,lte=1"`
	OutputType Format  `json:"output_type" validate:"omitempty,oneof=webp jpeg png"`
}

// DefaultOptions returns the built-in pipeline defaults.
func DefaultOptions() Options {
	return Options{
		MaxWidth:   DefaultMaxWidth,
		Quality:    DefaultQuality,
		OutputType: DefaultOutputType,
	}
}

// Validate rejects explicitly set values outside their ranges.
func (o Options) Validate() error {
	if err := validator.Validate(o); err != nil {
		appErr := apperrors.InvalidInput("invalid optimization options: " + err.Error())
		appErr.Err = errors.Join(apperrors.ErrInvalidInput, err)
		return appErr
	}
	return nil
}

// WithDefaults returns a copy of o with every zero field taken from defaults.
func (o Options) WithDefaults(defaults Options) Options {
	if o.MaxWidth == 0 {
		o.MaxWidth = defaults.MaxWidth
	}
	if o.Quality == 0 {
		o.Quality = defaults.Quality
	}
	if o.OutputType == "" {
		o.OutputType = defaults.OutputType
	}
	return o
}

// OptimizedImage is the re-encoded output of one optimization call.
type OptimizedImage struct {
	Name        string
	ContentType string
	Data        []byte
	Width       int
	Height      int
	ModTime     time.Time
}

// Size returns the encoded size in bytes.
func (o *OptimizedImage) Size() int64 {
	return int64(len(o.Data))
}

// OptimizedName derives the output file name: the original name without its
// last extension, then "-optimized-<unix millis>.<ext>".
func OptimizedName(original string, format Format, at time.Time) string {
	return fmt.Sprintf("%s-optimized-%d.%s", trimExtension(original), at.UnixMilli(), format.Extension())
}

// trimExtension drops a trailing ".ext" whose extension is non-empty and
// contains neither a dot nor a slash.
func trimExtension(name string) string {
	ext := path.Ext(name)
	if len(ext) <= 1 {
		return name
	}
	return strings.TrimSuffix(name, ext)
}

// StoragePath builds "<folder>/<folder>-<unix millis>.<ext>".
func StoragePath(folder string, format Format, at time.Time) string {
	return fmt.Sprintf("%s/%s-%d.%s", folder, folder, at.UnixMilli(), format.Extension())
}

// UploadResult describes a stored optimized image.
type UploadResult struct {
	URL         string
	Path        string
	ContentType string
	Size        int64
	Width       int
	Height      int
}

// ImageRecord is one row of the upload ledger.
type ImageRecord struct {
	ID           uuid.UUID `json:"id"`
	Folder       string    `json:"folder"`
	Path         string    `json:"path"`
	URL          string    `json:"url"`
	OriginalName string    `json:"original_name"`
	ContentType  string    `json:"content_type"`
	Size         int64     `json:"size"`
	Width        int       `json:"width"`
	Height       int       `json:"height"`
	UploadedBy   string    `json:"uploaded_by,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
