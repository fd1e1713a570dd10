// Package telemetry exposes the relay's OpenTelemetry counters and the
// optional OTLP/HTTP metric exporter.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const (
	meterName = "github.com/oshokin/cry-relay"

	// exportInterval is how often metrics are pushed.
	exportInterval = 30 * time.Second
)

// Recorder holds the relay's metric instruments.
type Recorder struct {
	triggers   metric.Int64Counter
	commands   metric.Int64Counter
	deliveries metric.Int64Counter
	dropped    metric.Int64Counter
}

// NewRecorder registers the instruments against provider.
// A nil provider uses the global one, which is a no-op until Init installs a real one.
func NewRecorder(provider metric.MeterProvider) *Recorder {
	if provider == nil {
		provider = otel.GetMeterProvider()
	}

	m := provider.Meter(meterName)
	r := new(Recorder)

	// Instrument creation only fails on invalid names, which are constants here.
	r.triggers, _ = m.Int64Counter("cry_relay.triggers.total",
		metric.WithDescription("Sensor triggers by outcome"),
	)
	r.commands, _ = m.Int64Counter("cry_relay.commands.total",
		metric.WithDescription("Operator commands by name"),
	)
	r.deliveries, _ = m.Int64Counter("cry_relay.intents.total",
		metric.WithDescription("Executed log/notify intents by kind and status"),
	)
	r.dropped, _ = m.Int64Counter("cry_relay.intents.dropped.total",
		metric.WithDescription("Intents dropped because the queue was full"),
	)

	return r
}

// RecordTrigger counts one trigger outcome.
func (r *Recorder) RecordTrigger(ctx context.Context, outcome string) {
	r.triggers.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordCommand counts one operator command.
func (r *Recorder) RecordCommand(ctx context.Context, command string) {
	r.commands.Add(ctx, 1, metric.WithAttributes(attribute.String("command", command)))
}

// RecordIntent counts one executed intent.
func (r *Recorder) RecordIntent(ctx context.Context, kind string, err error) {
	r.deliveries.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("status", statusStr(err)),
	))
}

// RecordDropped counts one intent lost to a full queue.
func (r *Recorder) RecordDropped(ctx context.Context, kind string) {
	r.dropped.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// statusStr returns "ok" or "error" depending on whether err is nil.
func statusStr(err error) string {
	if err != nil {
		return "error"
	}

	return "ok"
}

// Init installs a global meter provider exporting to endpoint over OTLP/HTTP.
// An empty endpoint leaves the no-op provider in place. The returned function
// flushes and stops the exporter.
func Init(ctx context.Context, endpoint string) (func(context.Context) error, error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := otlpmetrichttp.New(ctx, otlpmetrichttp.WithEndpointURL(endpoint))
	if err != nil {
		return nil, fmt.Errorf("create otlp metric exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(exportInterval))),
	)
	otel.SetMeterProvider(provider)

	return provider.Shutdown, nil
}
