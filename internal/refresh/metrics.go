package refresh

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"estategate/pkg/logging"
)

const meterName = "estategate/internal/refresh"

type instruments struct {
	upstreamCalls metric.Int64Counter
	joined        metric.Int64Counter
	bypassed      metric.Int64Counter
	abandoned     metric.Int64Counter
	inFlight      metric.Int64UpDownCounter
	duration      metric.Float64Histogram
}

// newInstruments creates the coordinator's instruments on meter. A nil
// meter, or any instrument creation failure, yields no-op instruments.
func newInstruments(meter metric.Meter) *instruments {
	if meter != nil {
		ins, err := createInstruments(meter)
		if err == nil {
			return ins
		}
		logging.Warn("Refresh", "Failed to create metrics instruments, metrics disabled: %v", err)
	}

	ins, _ := createInstruments(noop.NewMeterProvider().Meter(meterName))
	return ins
}

func createInstruments(meter metric.Meter) (*instruments, error) {
	var (
		ins instruments
		err error
	)

	if ins.upstreamCalls, err = meter.Int64Counter(
		"estategate_refresh_upstream_calls_total",
		metric.WithDescription("Authorization calls made to the identity provider on behalf of a session."),
	); err != nil {
		return nil, err
	}
	if ins.joined, err = meter.Int64Counter(
		"estategate_refresh_joined_total",
		metric.WithDescription("Callers that shared an in-flight authorization instead of starting one."),
	); err != nil {
		return nil, err
	}
	if ins.bypassed, err = meter.Int64Counter(
		"estategate_refresh_bypassed_total",
		metric.WithDescription("Authorization requests without a session, forwarded without dedup."),
	); err != nil {
		return nil, err
	}
	if ins.abandoned, err = meter.Int64Counter(
		"estategate_refresh_abandoned_total",
		metric.WithDescription("Callers that stopped waiting because their context ended."),
	); err != nil {
		return nil, err
	}
	if ins.inFlight, err = meter.Int64UpDownCounter(
		"estategate_refresh_in_flight",
		metric.WithDescription("Keys with an outstanding authorization call."),
	); err != nil {
		return nil, err
	}
	if ins.duration, err = meter.Float64Histogram(
		"estategate_refresh_duration_seconds",
		metric.WithDescription("Duration of upstream authorization calls."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return &ins, nil
}

func registrationAttr(registration string) metric.AddOption {
	return metric.WithAttributes(attribute.String("registration", registration))
}

func outcomeAttrs(registration string, err error) []attribute.KeyValue {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	return []attribute.KeyValue{
		attribute.String("registration", registration),
		attribute.String("outcome", outcome),
	}
}
