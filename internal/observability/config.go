package observability

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/smallbiznis/sadaqah/internal/config"
)

// Config holds observability configuration derived from the app config and
// OTEL_*, LOG_*, DB_* and HTTP_SLOW_REQUEST_THRESHOLD environment variables.
type Config struct {
	ServiceName string
	Environment string
	Version     string

	LogLevel  string
	LogFormat string

	// DBLogLevel is one of silent, error, warn or info.
	DBLogLevel         string
	DBSlowQueryLatency time.Duration

	HTTPSlowRequest time.Duration

	OtelEnabled          bool
	OtelExporterEndpoint string
	OtelExporterProtocol string
	OtelSamplingRatio    float64
	OtelMetricInterval   time.Duration
}

func LoadConfig(cfg config.Config) Config {
	out := Config{
		ServiceName:          strings.TrimSpace(cfg.AppName),
		Environment:          strings.TrimSpace(getenv("DEPLOYMENT_ENV", cfg.Environment)),
		Version:              strings.TrimSpace(getenv("SERVICE_VERSION", cfg.AppVersion)),
		LogLevel:             lower(getenv("LOG_LEVEL", "info")),
		LogFormat:            lower(getenv("LOG_FORMAT", "json")),
		DBLogLevel:           lower(getenv("DB_LOG_LEVEL", "warn")),
		DBSlowQueryLatency:   getenvDuration("DB_SLOW_QUERY_THRESHOLD", 200*time.Millisecond),
		HTTPSlowRequest:      getenvDuration("HTTP_SLOW_REQUEST_THRESHOLD", time.Second),
		OtelEnabled:          getenvBool("OTEL_ENABLED", true),
		OtelExporterEndpoint: strings.TrimSpace(getenv("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.OTLPEndpoint)),
		OtelExporterProtocol: lower(getenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc")),
		OtelSamplingRatio:    getenvFloat("OTEL_SAMPLING_RATIO", 0.1),
		OtelMetricInterval:   getenvDuration("METRICS_EXPORT_INTERVAL", 10*time.Second),
	}
	if out.ServiceName == "" {
		out.ServiceName = "sadaqah"
	}
	if traces := lower(os.Getenv("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL")); traces != "" {
		out.OtelExporterProtocol = traces
	}
	// a fully sampled trace per donation is affordable outside production
	if !cfg.IsProduction() && os.Getenv("OTEL_SAMPLING_RATIO") == "" {
		out.OtelSamplingRatio = 1
	}
	return out
}

func (c Config) Debug() bool {
	if c.LogLevel == "debug" {
		return true
	}
	switch lower(c.Environment) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

func lower(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func getenv(key, def string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return def
}

func getenvBool(key string, def bool) bool {
	switch lower(os.Getenv(key)) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvFloat(key string, def float64) float64 {
	parsed, err := strconv.ParseFloat(strings.TrimSpace(os.Getenv(key)), 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	parsed, err := time.ParseDuration(strings.TrimSpace(os.Getenv(key)))
	if err != nil || parsed < 0 {
		return def
	}
	return parsed
}
