// Package optimizer validates, decodes, resizes and re-encodes images.
package optimizer

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vetclinic/sitemedia/internal/domain"
)

const tracerName = "github.com/vetclinic/sitemedia/internal/optimizer"

// Optimizer runs the image pipeline. It holds no per-call state and is safe
// for concurrent use.
type Optimizer struct {
	decode   Decoder
	encoders map[domain.Format]Encoder
	defaults domain.Options
	nowFunc  func() time.Time
}

// New creates an optimizer using defaults for options a caller leaves unset.
// Zero fields in defaults fall back to domain.DefaultOptions.
func New(defaults domain.Options) *Optimizer {
	return &Optimizer{
		decode:   DecodeImage,
		encoders: DefaultEncoders(),
		defaults: defaults.WithDefaults(domain.DefaultOptions()),
		nowFunc:  time.Now,
	}
}

// WithClock returns a copy of the optimizer that reads time from now.
func (o *Optimizer) WithClock(now func() time.Time) *Optimizer {
	cp := *o
	cp.nowFunc = now
	return &cp
}

// WithDecoder returns a copy of the optimizer that decodes with d.
func (o *Optimizer) WithDecoder(d Decoder) *Optimizer {
	cp := *o
	cp.decode = d
	return &cp
}

// WithEncoder returns a copy of the optimizer that encodes format with e.
func (o *Optimizer) WithEncoder(format domain.Format, e Encoder) *Optimizer {
	cp := *o
	cp.encoders = make(map[domain.Format]Encoder, len(o.encoders)+1)
	for f, enc := range o.encoders {
		cp.encoders[f] = enc
	}
	cp.encoders[format] = e
	return &cp
}

// Defaults returns the options applied to unset fields.
func (o *Optimizer) Defaults() domain.Options {
	return o.defaults
}

// Optimize validates src, decodes it, scales it down to MaxWidth when wider
// and encodes it as OutputType. The media type is checked before any decode
// attempt. Failures are InvalidInput, DecodeError or EncodeError AppErrors.
func (o *Optimizer) Optimize(ctx context.Context, src domain.SourceImage, opts domain.Options) (_ *domain.OptimizedImage, err error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "optimizer.Optimize",
		trace.WithAttributes(
			attribute.String("image.name", src.Name),
			attribute.String("image.content_type", src.ContentType),
			attribute.Int("image.source_bytes", len(src.Data)),
		),
	)
	start := time.Now()
	format := string(opts.OutputType)
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		OptimizeDuration.WithLabelValues(format, outcome).Observe(time.Since(start).Seconds())
		span.End()
	}()

	if !domain.IsRasterImage(src.ContentType) {
		return nil, domain.NotAnImage(src.ContentType)
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	opts = opts.WithDefaults(o.defaults)
	format = string(opts.OutputType)

	encode, ok := o.encoders[opts.OutputType]
	if !ok {
		return nil, domain.EncodeError(opts.OutputType, fmt.Errorf("no encoder registered for %s", opts.OutputType))
	}

	at := o.nowFunc()

	img, err := o.decodeStage(ctx, src.Data)
	if err != nil {
		return nil, domain.DecodeError(err)
	}
	srcBounds := img.Bounds()

	img = o.resizeStage(ctx, img, opts.MaxWidth)
	bounds := img.Bounds()

	var buf bytes.Buffer
	if err := o.encodeStage(ctx, &buf, encode, img, opts); err != nil {
		return nil, domain.EncodeError(opts.OutputType, err)
	}
	if buf.Len() == 0 {
		return nil, domain.EncodeError(opts.OutputType, nil)
	}

	OptimizedBytes.WithLabelValues(format).Observe(float64(buf.Len()))
	span.SetAttributes(
		attribute.Int("image.source_width", srcBounds.Dx()),
		attribute.Int("image.source_height", srcBounds.Dy()),
		attribute.Int("image.width", bounds.Dx()),
		attribute.Int("image.height", bounds.Dy()),
		attribute.Int("image.output_bytes", buf.Len()),
	)

	return &domain.OptimizedImage{
		Name:        domain.OptimizedName(src.Name, opts.OutputType, at),
		ContentType: opts.OutputType.ContentType(),
		Data:        buf.Bytes(),
		Width:       bounds.Dx(),
		Height:      bounds.Dy(),
		ModTime:     at,
	}, nil
}
