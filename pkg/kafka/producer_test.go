package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func newFakeProducer(w *fakeWriter) *Producer {
	p := NewProducer(DefaultProducerConfig([]string{"localhost:19092"}), nil)
	p.writer = w
	return p
}

func TestPublish_WritesEnvelope(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled,
	}))

	w := &fakeWriter{}
	topic := Topic("image", "uploaded")
	event, err := NewEvent(topic, Aggregate{Type: "image", ID: "img-9"}, "media-service",
		imagePayload{Path: "pets/pets-1.webp"}, WithCorrelationID("corr-1"))
	require.NoError(t, err)
	ok := publishTotal.WithLabelValues(topic, "ok")
	before := testutil.ToFloat64(ok)

	require.NoError(t, newFakeProducer(w).Publish(ctx, topic, event))

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	headers := headerCarrier(msg.Headers)
	assert.Equal(t, topic, msg.Topic)
	assert.Equal(t, "img-9", string(msg.Key))
	assert.Equal(t, topic, headers.Get("event_type"))
	assert.Equal(t, "media-service", headers.Get("source"))
	assert.Equal(t, "corr-1", headers.Get("correlation_id"))
	assert.Equal(t, "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01", headers.Get("traceparent"))

	decoded, err := DecodeEvent(msg.Value)
	require.NoError(t, err)
	assert.Equal(t, event.EventID, decoded.EventID)
	assert.Equal(t, before+1, testutil.ToFloat64(ok))
}

func TestPublish_NoCorrelationHeaderWhenUnset(t *testing.T) {
	w := &fakeWriter{}
	event, err := NewEvent("clinic.image.deleted", Aggregate{Type: "image", ID: "img-1"}, "media-service", nil)
	require.NoError(t, err)

	require.NoError(t, newFakeProducer(w).Publish(context.Background(), "clinic.image.deleted", event))

	headers := headerCarrier(w.msgs[0].Headers)
	assert.Equal(t, []string{"event_type", "source"}, headers.Keys())
}

func TestPublish_WriterError(t *testing.T) {
	w := &fakeWriter{err: errors.New("leader not available")}
	topic := Topic("image", "deleted")
	event, err := NewEvent(topic, Aggregate{Type: "image", ID: "img-1"}, "media-service", nil)
	require.NoError(t, err)
	failed := publishTotal.WithLabelValues(topic, "error")
	before := testutil.ToFloat64(failed)

	err = newFakeProducer(w).Publish(context.Background(), topic, event)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish event to clinic.image.deleted: leader not available")
	assert.Equal(t, before+1, testutil.ToFloat64(failed))
}

func TestProducer_Close(t *testing.T) {
	w := &fakeWriter{}
	require.NoError(t, newFakeProducer(w).Close())
	assert.True(t, w.closed)
}

func TestPingBrokers_NoBrokers(t *testing.T) {
	err := PingBrokers(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no brokers configured")
}

func TestHeaderCarrier_SetOverwrites(t *testing.T) {
	c := headerCarrier{{Key: "source", Value: []byte("old")}}

	c.Set("source", "media-service")
	c.Set("traceparent", "00-abc")

	assert.Len(t, c, 2)
	assert.Equal(t, "media-service", c.Get("source"))
	assert.Equal(t, "00-abc", c.Get("traceparent"))
	assert.Empty(t, c.Get("missing"))
}
