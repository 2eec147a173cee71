package optimizer

import (
	"context"
	"image"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vetclinic/sitemedia/internal/domain"
)

func (o *Optimizer) decodeStage(ctx context.Context, data []byte) (image.Image, error) {
	_, span := otel.Tracer(tracerName).Start(ctx, "optimizer.decode")
	defer span.End()

	img, err := o.decode(data)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return img, nil
}

func (o *Optimizer) resizeStage(ctx context.Context, img image.Image, maxWidth int) image.Image {
	_, span := otel.Tracer(tracerName).Start(ctx, "optimizer.resize",
		trace.WithAttributes(attribute.Int("image.max_width", maxWidth)),
	)
	defer span.End()

	return Resize(img, maxWidth)
}

func (o *Optimizer) encodeStage(ctx context.Context, w io.Writer, encode Encoder, img image.Image, opts domain.Options) error {
	attrs := []attribute.KeyValue{attribute.String("image.format", string(opts.OutputType))}
	if opts.OutputType.Lossy() {
		attrs = append(attrs, attribute.Float64("image.quality", opts.Quality))
	}
	_, span := otel.Tracer(tracerName).Start(ctx, "optimizer.encode", trace.WithAttributes(attrs...))
	defer span.End()

	if err := encode(w, img, opts.Quality); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}
