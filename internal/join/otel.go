package join

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const instrumentationName = "github.com/sealantern/quickjoin/internal/join"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

type metrics struct {
	joins metric.Int64Counter
}

var joinMetrics = sync.OnceValue(func() *metrics {
	c, err := meter().Int64Counter("quickjoin.joins",
		metric.WithDescription("Join attempts by result and failing stage"),
		metric.WithUnit("{join}"),
	)
	if err != nil {
		c, _ = noop.NewMeterProvider().Meter(instrumentationName).Int64Counter("quickjoin.joins")
	}
	return &metrics{joins: c}
})

func (m *metrics) record(ctx context.Context, r *Result) {
	attrs := []attribute.KeyValue{attribute.String("result", string(r.State))}
	if stage := r.Stage(); stage != "" {
		attrs = append(attrs, attribute.String("stage", string(stage)))
	}
	m.joins.Add(context.WithoutCancel(ctx), 1, metric.WithAttributes(attrs...))
}
