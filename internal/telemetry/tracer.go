// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package telemetry provides OpenTelemetry tracing for pipeline runs, the
// remote analysis call and the HTTP API.
package telemetry

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/rfpintel/agentflow/internal/config"
	"github.com/rfpintel/agentflow/internal/logger"
)

var (
	log     *zerolog.Logger
	logOnce sync.Once
)

func getLog() *zerolog.Logger {
	logOnce.Do(func() {
		l := logger.GetTelemetryLogger()
		log = &l
	})
	return log
}

// Exporter names accepted in telemetry.exporter
const (
	ExporterNone     = "none"
	ExporterStdout   = "stdout"
	ExporterOTLPHTTP = "otlp-http"
)

const instrumentationName = "github.com/rfpintel/agentflow"

// Tracer wraps the tracer provider with agentflow-specific helpers.
type Tracer struct {
	enabled        bool
	tracerProvider trace.TracerProvider
	tracer         trace.Tracer
	propagator     propagation.TextMapPropagator
	shutdown       func(context.Context) error
	mu             sync.Mutex
}

type options struct {
	writer         io.Writer
	processors     []sdktrace.SpanProcessor
	serviceVersion string
}

// Option configures NewTracer.
type Option func(*options)

// WithWriter sets where the stdout exporter writes. Defaults to os.Stderr.
func WithWriter(w io.Writer) Option {
	return func(o *options) { o.writer = w }
}

// WithSpanProcessor registers an extra span processor on the provider.
func WithSpanProcessor(p sdktrace.SpanProcessor) Option {
	return func(o *options) { o.processors = append(o.processors, p) }
}

// WithServiceVersion sets the service.version resource attribute.
func WithServiceVersion(v string) Option {
	return func(o *options) { o.serviceVersion = v }
}

// NewTracer creates a Tracer. A disabled configuration yields a no-op tracer.
func NewTracer(ctx context.Context, cfg config.TelemetryConfig, opts ...Option) (*Tracer, error) {
	o := options{writer: os.Stderr}
	for _, opt := range opts {
		opt(&o)
	}

	t := &Tracer{
		propagator: propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}),
	}

	if !cfg.Enabled {
		t.tracerProvider = noop.NewTracerProvider()
		t.tracer = t.tracerProvider.Tracer(instrumentationName)
		t.shutdown = func(context.Context) error { return nil }
		return t, nil
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes("", serviceAttributes(cfg, o)...))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	providerOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(cfg.SampleRate)),
	}

	exporter, err := createExporter(ctx, cfg, o)
	if err != nil {
		return nil, fmt.Errorf("failed to create exporter: %w", err)
	}
	if exporter != nil {
		providerOpts = append(providerOpts, sdktrace.WithBatcher(exporter))
	}
	for _, p := range o.processors {
		providerOpts = append(providerOpts, sdktrace.WithSpanProcessor(p))
	}

	tp := sdktrace.NewTracerProvider(providerOpts...)
	t.enabled = true
	t.tracerProvider = tp
	t.tracer = tp.Tracer(instrumentationName)
	t.shutdown = tp.Shutdown

	otel.SetTextMapPropagator(t.propagator)
	otel.SetTracerProvider(tp)

	getLog().Info().
		Str("exporter", cfg.Exporter).
		Str("endpoint", cfg.Endpoint).
		Float64("sample_rate", cfg.SampleRate).
		Msg("Tracing enabled")
	return t, nil
}

// NoopTracer returns a tracer that records nothing.
func NoopTracer() *Tracer {
	tp := noop.NewTracerProvider()
	return &Tracer{
		tracerProvider: tp,
		tracer:         tp.Tracer(instrumentationName),
		propagator:     propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}),
		shutdown:       func(context.Context) error { return nil },
	}
}

func createExporter(ctx context.Context, cfg config.TelemetryConfig, o options) (sdktrace.SpanExporter, error) {
	switch cfg.Exporter {
	case ExporterNone, "":
		return nil, nil

	case ExporterStdout:
		return stdouttrace.New(stdouttrace.WithWriter(o.writer), stdouttrace.WithPrettyPrint())

	case ExporterOTLPHTTP:
		opts := []otlptracehttp.Option{}
		if cfg.Endpoint != "" {
			opts = append(opts, otlptracehttp.WithEndpoint(cfg.Endpoint))
		}
		if cfg.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		return otlptracehttp.New(ctx, opts...)

	default:
		return nil, fmt.Errorf("unknown exporter type: %s", cfg.Exporter)
	}
}

func serviceAttributes(cfg config.TelemetryConfig, o options) []attribute.KeyValue {
	name := cfg.ServiceName
	if name == "" {
		name = "agentflow"
	}
	attrs := []attribute.KeyValue{semconv.ServiceName(name)}
	if o.serviceVersion != "" {
		attrs = append(attrs, semconv.ServiceVersion(o.serviceVersion))
	}
	return attrs
}

func sampler(rate float64) sdktrace.Sampler {
	switch {
	case rate >= 1.0:
		return sdktrace.AlwaysSample()
	case rate <= 0.0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.TraceIDRatioBased(rate)
	}
}

// Shutdown flushes pending spans and stops the exporter.
func (t *Tracer) Shutdown(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.shutdown != nil {
		return t.shutdown(ctx)
	}
	return nil
}

// Enabled returns whether spans are recorded.
func (t *Tracer) Enabled() bool {
	return t.enabled
}

// StartSpan starts a new span with the given name and options.
func (t *Tracer) StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name, opts...)
}

// Propagator returns the text map propagator for context propagation.
func (t *Tracer) Propagator() propagation.TextMapPropagator {
	return t.propagator
}

// RecordError records an error on the span and marks it failed.
func RecordError(span trace.Span, err error) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// GetTraceInfo extracts trace ID and span ID from the current span.
func GetTraceInfo(ctx context.Context) (traceID, spanID string) {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if sc.HasTraceID() {
		traceID = sc.TraceID().String()
	}
	if sc.HasSpanID() {
		spanID = sc.SpanID().String()
	}
	return traceID, spanID
}
