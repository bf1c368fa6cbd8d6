package modsync

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const instrumentationName = "github.com/sealantern/quickjoin/internal/modsync"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

type metrics struct {
	downloaded metric.Int64Counter
	skipped    metric.Int64Counter
	failed     metric.Int64Counter
	bytes      metric.Int64Counter
}

// newMetrics creates the sync counters. Instruments that cannot be created
// fall back to no-ops so a metrics problem never fails a sync.
func newMetrics() *metrics {
	m := meter()
	nm := noop.NewMeterProvider().Meter(instrumentationName)

	counter := func(name, desc, unit string) metric.Int64Counter {
		c, err := m.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit(unit))
		if err != nil {
			c, _ = nm.Int64Counter(name)
		}
		return c
	}

	return &metrics{
		downloaded: counter("quickjoin.mods.downloaded", "Mod files written to the mod directory", "{file}"),
		skipped:    counter("quickjoin.mods.skipped", "Mod files already valid or deduplicated", "{file}"),
		failed:     counter("quickjoin.mods.failed", "Mod files that could not be installed", "{file}"),
		bytes:      counter("quickjoin.mods.bytes", "Bytes written to the mod directory", "By"),
	}
}

func (m *metrics) record(ctx context.Context, o *Outcome) {
	// Recording must not be skipped because the sync itself was cancelled.
	ctx = context.WithoutCancel(ctx)

	m.downloaded.Add(ctx, int64(o.Downloaded))
	m.skipped.Add(ctx, int64(o.Skipped))

	var written int64
	for _, a := range o.Mods {
		if a.Action == ActionDownloaded || a.Action == ActionCached {
			written += a.Bytes
		}
	}
	m.bytes.Add(ctx, written)

	for _, f := range o.Failures {
		m.failed.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", string(f.Kind))))
	}
}
