// Package telemetry wires the automaton build/scan/reload paths to
// OpenTelemetry, exporting traces and metrics over OTLP/gRPC the same
// way the signature engine's main does.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// Instruments holds every metric the automaton lifecycle emits.
type Instruments struct {
	BuildDuration  metric.Float64Histogram
	ScanLatency    metric.Float64Histogram
	MatchCounter   metric.Int64Counter
	BytesScanned   metric.Int64Counter
	ReloadCounter  metric.Int64Counter
	ReloadFailures metric.Int64Counter
	CacheHits      metric.Int64Counter
	CacheMisses    metric.Int64Counter
}

// InitTracer starts an OTLP/gRPC trace exporter for service and
// installs it as the global tracer provider. The returned shutdown
// function flushes and closes the exporter.
func InitTracer(ctx context.Context, service string) (func(context.Context) error, error) {
	exp, err := otlptracegrpc.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("telemetry: new trace exporter: %w", err)
	}
	res, err := sdkresource.Merge(sdkresource.Default(), sdkresource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(service),
	))
	if err != nil {
		return nil, fmt.Errorf("telemetry: merge resource: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

// InitMetrics starts an OTLP/gRPC metrics exporter for service,
// installs it as the global meter provider, and returns the
// automaton lifecycle instruments along with a shutdown function.
func InitMetrics(ctx context.Context, service string) (func(context.Context) error, Instruments, error) {
	exp, err := otlpmetricgrpc.New(ctx)
	if err != nil {
		return nil, Instruments{}, fmt.Errorf("telemetry: new metric exporter: %w", err)
	}
	res, err := sdkresource.Merge(sdkresource.Default(), sdkresource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(service),
	))
	if err != nil {
		return nil, Instruments{}, fmt.Errorf("telemetry: merge resource: %w", err)
	}
	reader := sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(15*time.Second))
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader), sdkmetric.WithResource(res))
	otel.SetMeterProvider(mp)

	meter := mp.Meter("acdat")
	instr, err := newInstruments(meter)
	if err != nil {
		return nil, Instruments{}, err
	}
	return mp.Shutdown, instr, nil
}

func newInstruments(meter metric.Meter) (Instruments, error) {
	var (
		instr Instruments
		err   error
	)
	if instr.BuildDuration, err = meter.Float64Histogram("acdat.build.duration_ms",
		metric.WithDescription("time to compile an automaton, in milliseconds")); err != nil {
		return instr, err
	}
	if instr.ScanLatency, err = meter.Float64Histogram("acdat.scan.duration_ms",
		metric.WithDescription("time to run Parse over one input, in milliseconds")); err != nil {
		return instr, err
	}
	if instr.MatchCounter, err = meter.Int64Counter("acdat.scan.matches",
		metric.WithDescription("number of hits reported across all scans")); err != nil {
		return instr, err
	}
	if instr.BytesScanned, err = meter.Int64Counter("acdat.scan.code_units",
		metric.WithDescription("code units scanned across all Parse calls")); err != nil {
		return instr, err
	}
	if instr.ReloadCounter, err = meter.Int64Counter("acdat.reload.count",
		metric.WithDescription("successful hot reloads of the compiled automaton")); err != nil {
		return instr, err
	}
	if instr.ReloadFailures, err = meter.Int64Counter("acdat.reload.failures",
		metric.WithDescription("reload attempts that failed to load or build")); err != nil {
		return instr, err
	}
	if instr.CacheHits, err = meter.Int64Counter("acdat.cache.hits",
		metric.WithDescription("automaton cache lookups served from the Badger-backed cache")); err != nil {
		return instr, err
	}
	if instr.CacheMisses, err = meter.Int64Counter("acdat.cache.misses",
		metric.WithDescription("automaton cache lookups that required a rebuild")); err != nil {
		return instr, err
	}
	return instr, nil
}

// WithSpan runs fn inside a new span named name, recording an error
// status if fn returns one.
func WithSpan(ctx context.Context, tracerName, name string, fn func(context.Context) error) error {
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, name)
	defer span.End()
	if err := fn(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}
