// Package telemetry wires the Runtime's lifecycle notifications (§4.6,
// §2.1 AMBIENT STACK) to OpenTelemetry metric instruments: a small
// struct of named Int64Counter instruments registered once against the
// package-level meter at construction time.
package telemetry

import (
	"context"
	"log"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"

	"github.com/twinlab/twinrt/internal/eventbus"
)

// resourceName is the service.name attribute attached to every metric
// exported through InstallGlobalProvider.
const resourceName = "twinrt"

// Meter holds the OTel instruments twinrt reports against. Instruments
// are registered against the global meter provider at construction
// time — a no-op provider until InstallGlobalProvider installs a real
// one.
type Meter struct {
	twinsCreated     metric.Int64Counter
	twinsLoaded      metric.Int64Counter
	twinsEvicted     metric.Int64Counter
	twinsDestroyed   metric.Int64Counter
	twinsCloned      metric.Int64Counter
	snapshotsWritten metric.Int64Counter
}

// NewMeter constructs instruments against the given meter name,
// conventionally the caller's own module path.
func NewMeter(name string) *Meter {
	m := otel.Meter(name)
	meter := &Meter{}

	var err error
	meter.twinsCreated, err = m.Int64Counter("twinrt.twins.created",
		metric.WithDescription("Twins created"), metric.WithUnit("{twin}"))
	logInstrumentErr(err, "twins.created")

	meter.twinsLoaded, err = m.Int64Counter("twinrt.twins.loaded",
		metric.WithDescription("Twins lazily rehydrated from storage"), metric.WithUnit("{twin}"))
	logInstrumentErr(err, "twins.loaded")

	meter.twinsEvicted, err = m.Int64Counter("twinrt.twins.evicted",
		metric.WithDescription("Twins dropped from the live registry by the eviction sweep"), metric.WithUnit("{twin}"))
	logInstrumentErr(err, "twins.evicted")

	meter.twinsDestroyed, err = m.Int64Counter("twinrt.twins.destroyed",
		metric.WithDescription("Twins explicitly destroyed"), metric.WithUnit("{twin}"))
	logInstrumentErr(err, "twins.destroyed")

	meter.twinsCloned, err = m.Int64Counter("twinrt.twins.cloned",
		metric.WithDescription("Twins cloned, ordinary and hypothetical"), metric.WithUnit("{twin}"))
	logInstrumentErr(err, "twins.cloned")

	meter.snapshotsWritten, err = m.Int64Counter("twinrt.snapshots.written",
		metric.WithDescription("Snapshots saved"), metric.WithUnit("{snapshot}"))
	logInstrumentErr(err, "snapshots.written")

	return meter
}

func logInstrumentErr(err error, name string) {
	if err != nil {
		log.Printf("telemetry: register instrument %s: %v", name, err)
	}
}

// InstallGlobalProvider builds a real sdkmetric.MeterProvider and
// installs it as the global provider, so instruments already created by
// NewMeter start forwarding to it. Without calling this, Meter's
// counters are no-ops — suitable for tests and for the CLI's non-serve
// subcommands, which don't need a live metrics pipeline.
func InstallGlobalProvider(readers ...sdkmetric.Reader) (*sdkmetric.MeterProvider, error) {
	res, err := resource.New(context.Background(),
		resource.WithAttributes(attribute.String("service.name", resourceName)),
	)
	if err != nil {
		return nil, err
	}

	opts := make([]sdkmetric.Option, 0, len(readers)+1)
	opts = append(opts, sdkmetric.WithResource(res))
	for _, r := range readers {
		opts = append(opts, sdkmetric.WithReader(r))
	}
	provider := sdkmetric.NewMeterProvider(opts...)
	otel.SetMeterProvider(provider)
	return provider, nil
}

// ID satisfies eventbus.Handler: Meter itself is a lifecycle handler so
// the Runtime's bus can dispatch straight to it (§2.1).
func (m *Meter) ID() string { return "telemetry.meter" }

// Handles reports the lifecycle event types Meter counts.
func (m *Meter) Handles() []eventbus.EventType {
	return []eventbus.EventType{
		eventbus.EventTwinCreated,
		eventbus.EventTwinLoaded,
		eventbus.EventTwinEvicted,
		eventbus.EventTwinDestroyed,
		eventbus.EventTwinCloned,
		eventbus.EventTwinSnapshotted,
	}
}

// Priority places metrics recording after any diagnostic handlers that
// want to run first.
func (m *Meter) Priority() int { return 100 }

// Handle increments the counter matching ev.Type. It never returns an
// error — metrics recording is best-effort observability, not a
// durability concern (§7).
func (m *Meter) Handle(ctx context.Context, ev *eventbus.Event, _ *eventbus.Result) error {
	switch ev.Type {
	case eventbus.EventTwinCreated:
		m.twinsCreated.Add(ctx, 1)
	case eventbus.EventTwinLoaded:
		m.twinsLoaded.Add(ctx, 1)
	case eventbus.EventTwinEvicted:
		m.twinsEvicted.Add(ctx, 1)
	case eventbus.EventTwinDestroyed:
		m.twinsDestroyed.Add(ctx, 1)
	case eventbus.EventTwinCloned:
		m.twinsCloned.Add(ctx, 1)
	case eventbus.EventTwinSnapshotted:
		m.snapshotsWritten.Add(ctx, 1)
	}
	return nil
}

var _ eventbus.Handler = (*Meter)(nil)
