package metrics

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
	ExportInterval   time.Duration
}

// Metrics exposes application-level instruments.
type Metrics struct {
	poolAppends    metric.Int64Counter
	poolMatches    metric.Int64Counter
	poolConflicts  metric.Int64Counter
	poolCoinsAdded metric.Int64Counter
	donations      metric.Int64Counter
	donationPoints metric.Int64Counter
	rateLimited    metric.Int64Counter
}

const defaultExportInterval = 10 * time.Second

// NewProvider installs the global meter provider. Disabled metrics get a
// noop provider so the recorders stay cheap.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}
	interval := cfg.ExportInterval
	if interval <= 0 {
		interval = defaultExportInterval
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(resource.NewSchemaless(
			attribute.String("service.name", cfg.ServiceName),
			attribute.String("deployment.environment", cfg.Environment),
		)),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))),
	)
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.StopHook(provider.Shutdown))
	}
	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
			zap.Duration("interval", interval),
		)
	}
	return provider, nil
}

// New registers the domain counters on the service meter.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "sadaqah"
	}
	meter := provider.Meter(name)

	m := &Metrics{}
	var errs []error
	for _, c := range []struct {
		dst  *metric.Int64Counter
		name string
		desc string
		unit string
	}{
		{&m.poolAppends, "sadaqah_pool_appends_total", "Entries appended to the matching pool.", "{entry}"},
		{&m.poolMatches, "sadaqah_pool_matches_total", "Match attempts by result.", "{attempt}"},
		{&m.poolConflicts, "sadaqah_pool_cas_conflicts_total", "Ledger compare-and-swap conflicts.", "{conflict}"},
		{&m.poolCoinsAdded, "sadaqah_pool_coins_added_total", "Coins added to the pool.", "{coin}"},
		{&m.donations, "sadaqah_donations_total", "Donations recorded.", "{donation}"},
		{&m.donationPoints, "sadaqah_donation_points_total", "Points awarded for donations.", "{point}"},
		{&m.rateLimited, "sadaqah_rate_limit_denied_total", "Requests denied by a rate limiter.", "{request}"},
	} {
		counter, err := meter.Int64Counter(c.name, metric.WithDescription(c.desc), metric.WithUnit(c.unit))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", c.name, err))
			continue
		}
		*c.dst = counter
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return m, nil
}

func add(ctx context.Context, counter metric.Int64Counter, n int64, attrs ...attribute.KeyValue) {
	if n <= 0 {
		return
	}
	counter.Add(ctx, n, metric.WithAttributes(FilterAttributes(attrs...)...))
}

func label(key, value string) attribute.KeyValue {
	return attribute.String(key, strings.TrimSpace(value))
}

// RecordPoolAppend counts a new pool entry and the coins it carries.
func (m *Metrics) RecordPoolAppend(ctx context.Context, backend string, coins int64) {
	if m == nil {
		return
	}
	add(ctx, m.poolAppends, 1, label("backend", backend))
	add(ctx, m.poolCoinsAdded, coins, label("backend", backend))
}

// RecordPoolMatch counts match attempts by result (matched, rejected).
func (m *Metrics) RecordPoolMatch(ctx context.Context, backend, result string) {
	if m == nil {
		return
	}
	add(ctx, m.poolMatches, 1, label("backend", backend), label("result", result))
}

// RecordPoolConflict counts compare-and-swap conflicts against the store.
func (m *Metrics) RecordPoolConflict(ctx context.Context, backend, operation string) {
	if m == nil {
		return
	}
	add(ctx, m.poolConflicts, 1, label("backend", backend), label("operation", operation))
}

// RecordDonation counts a completed donation and the points it awarded.
func (m *Metrics) RecordDonation(ctx context.Context, currency, league string, points int64) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{label("currency", strings.ToUpper(currency)), label("league", league)}
	add(ctx, m.donations, 1, attrs...)
	add(ctx, m.donationPoints, points, attrs...)
}

// RecordRateLimitDenied counts requests rejected by a rate limiter.
func (m *Metrics) RecordRateLimitDenied(ctx context.Context, endpoint, reason string) {
	if m == nil {
		return
	}
	add(ctx, m.rateLimited, 1, label("endpoint", endpoint), label("reason", reason))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"backend":     {},
	"operation":   {},
	"result":      {},
	"currency":    {},
	"league":      {},
	"endpoint":    {},
	"status_code": {},
	"reason":      {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
