package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/sadaqah/internal/observability/logger"
	"github.com/smallbiznis/sadaqah/internal/observability/metrics"
	"github.com/smallbiznis/sadaqah/internal/observability/tracing"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
)

var Module = fx.Module("observability",
	fx.Provide(
		LoadConfig,
		provideLoggerConfig,
		logger.New,
		provideGormLoggerConfig,
		provideTracingConfig,
		tracing.NewProvider,
		provideMetricsConfig,
		metrics.NewProvider,
		metrics.New,
		NewRegistry,
		func(r *prometheus.Registry) prometheus.Registerer { return r },
		NewGatherer,
		metrics.NewHTTPMetrics,
		metrics.NewPoolGauges,
	),
	fx.Invoke(ensureTracingProvider),
)

// NewRegistry holds the service's own collectors.
func NewRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

// NewGatherer merges the service registry with the default one, which
// carries the runtime collectors and the gorm pool stats.
func NewGatherer(reg *prometheus.Registry) prometheus.Gatherer {
	return prometheus.Gatherers{reg, prometheus.DefaultGatherer}
}

func ensureTracingProvider(_ *sdktrace.TracerProvider) {}

func provideLoggerConfig(cfg Config) logger.Config {
	return logger.Config{
		ServiceName:         cfg.ServiceName,
		Environment:         cfg.Environment,
		Version:             cfg.Version,
		Level:               cfg.LogLevel,
		Format:              cfg.LogFormat,
		IncludeCaller:       true,
		IncludeStackOnError: cfg.Debug(),
		Unsampled:           logger.LedgerAuditMessages,
	}
}

func provideGormLoggerConfig(cfg Config) *logger.GormLoggerConfig {
	gormCfg := logger.DefaultGormLoggerConfig()
	gormCfg.Level = logger.ParseGormLevel(cfg.DBLogLevel, gormCfg.Level)
	gormCfg.SlowThreshold = cfg.DBSlowQueryLatency
	return &gormCfg
}

func provideTracingConfig(cfg Config) tracing.Config {
	return tracing.Config{
		Enabled:          cfg.OtelEnabled,
		ServiceName:      cfg.ServiceName,
		ServiceVersion:   cfg.Version,
		Environment:      cfg.Environment,
		ExporterEndpoint: cfg.OtelExporterEndpoint,
		ExporterProtocol: cfg.OtelExporterProtocol,
		SamplingRatio:    cfg.OtelSamplingRatio,
	}
}

func provideMetricsConfig(cfg Config) metrics.Config {
	return metrics.Config{
		Enabled:          cfg.OtelEnabled,
		ExporterEndpoint: cfg.OtelExporterEndpoint,
		ExporterProtocol: cfg.OtelExporterProtocol,
		ServiceName:      cfg.ServiceName,
		Environment:      cfg.Environment,
		ExportInterval:   cfg.OtelMetricInterval,
	}
}
