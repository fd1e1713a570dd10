package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// collect returns the int64 sum data points of the named metric.
func collect(t *testing.T, reader *sdkmetric.ManualReader, name string) []metricdata.DataPoint[int64] {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}

			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "metric %s is not an int64 sum", name)

			return sum.DataPoints
		}
	}

	return nil
}

// valueFor finds the data point carrying attr.
func valueFor(points []metricdata.DataPoint[int64], attr attribute.KeyValue) int64 {
	for _, p := range points {
		if v, ok := p.Attributes.Value(attr.Key); ok && v.Emit() == attr.Value.Emit() {
			return p.Value
		}
	}

	return 0
}

// TestRecorder counts triggers, commands and intents by attribute.
func TestRecorder(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	r := NewRecorder(provider)
	ctx := context.Background()

	r.RecordTrigger(ctx, "new_episode")
	r.RecordTrigger(ctx, "deduped")
	r.RecordTrigger(ctx, "deduped")
	r.RecordCommand(ctx, "enable")
	r.RecordIntent(ctx, "notify", nil)
	r.RecordIntent(ctx, "notify", errors.New("boom"))
	r.RecordDropped(ctx, "log_episode")

	triggers := collect(t, reader, "cry_relay.triggers.total")
	require.Equal(t, int64(2), valueFor(triggers, attribute.String("outcome", "deduped")))
	require.Equal(t, int64(1), valueFor(triggers, attribute.String("outcome", "new_episode")))

	commands := collect(t, reader, "cry_relay.commands.total")
	require.Equal(t, int64(1), valueFor(commands, attribute.String("command", "enable")))

	intents := collect(t, reader, "cry_relay.intents.total")
	require.Equal(t, int64(1), valueFor(intents, attribute.String("status", "error")))
	require.Equal(t, int64(1), valueFor(intents, attribute.String("status", "ok")))

	dropped := collect(t, reader, "cry_relay.intents.dropped.total")
	require.Equal(t, int64(1), valueFor(dropped, attribute.String("kind", "log_episode")))
}

// TestInit_NoEndpoint is a no-op with a callable shutdown.
func TestInit_NoEndpoint(t *testing.T) {
	t.Parallel()

	shutdown, err := Init(context.Background(), "")
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

// TestNewRecorder_GlobalProvider works against the default no-op provider.
func TestNewRecorder_GlobalProvider(t *testing.T) {
	t.Parallel()

	r := NewRecorder(nil)
	r.RecordTrigger(context.Background(), "suppressed")
}
