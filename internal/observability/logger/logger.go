package logger

import (
	"context"
	"fmt"
	"strings"
	"time"

	obscontext "github.com/smallbiznis/sadaqah/internal/observability/context"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config configures the zap logger.
type Config struct {
	ServiceName string
	Environment string
	Version     string
	Level       string
	Format      string

	SamplingInitial     int
	SamplingThereafter  int
	SamplingWindow      time.Duration
	IncludeCaller       bool
	IncludeStackOnError bool

	// Unsampled lists messages that bypass the sampler.
	Unsampled []string
}

// LedgerAuditMessages are the log lines that record a change to a donor's
// balance or to the matching pool. They are never sampled away.
var LedgerAuditMessages = []string{
	"donation recorded",
	"pool entry appended",
	"pool entry matched",
	"failed to revert donation after pool failure",
}

func (c Config) withDefaults() Config {
	c.ServiceName = strings.TrimSpace(c.ServiceName)
	if c.ServiceName == "" {
		c.ServiceName = "sadaqah"
	}
	c.Level = strings.TrimSpace(c.Level)
	if c.Level == "" {
		c.Level = "info"
	}
	if strings.EqualFold(strings.TrimSpace(c.Format), "console") {
		c.Format = "console"
	} else {
		c.Format = "json"
	}
	if c.SamplingInitial <= 0 {
		c.SamplingInitial = 100
	}
	if c.SamplingThereafter <= 0 {
		c.SamplingThereafter = 100
	}
	if c.SamplingWindow <= 0 {
		c.SamplingWindow = time.Second
	}
	return c
}

// New builds the process logger, installs it as the zap global and syncs it
// on shutdown.
func New(lc fx.Lifecycle, cfg Config) (*zap.Logger, error) {
	cfg = cfg.withDefaults()

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.Encoding = cfg.Format
	zapCfg.EncoderConfig.TimeKey = "ts"
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapCfg.OutputPaths = []string{"stdout"}
	zapCfg.ErrorOutputPaths = []string{"stderr"}
	zapCfg.DisableCaller = !cfg.IncludeCaller
	// sampling is applied below so audit lines can skip it
	zapCfg.Sampling = nil
	if !cfg.IncludeStackOnError {
		zapCfg.DisableStacktrace = true
	}

	logger, err := zapCfg.Build(
		zap.WrapCore(func(core zapcore.Core) zapcore.Core {
			return newSampledCore(core, cfg.SamplingWindow, cfg.SamplingInitial, cfg.SamplingThereafter, cfg.Unsampled)
		}),
		zap.Fields(
			zap.String("service", cfg.ServiceName),
			zap.String("env", strings.TrimSpace(cfg.Environment)),
			zap.String("version", strings.TrimSpace(cfg.Version)),
		),
	)
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)

	if lc != nil {
		lc.Append(fx.StopHook(func() {
			// stdout sync fails on some platforms; nothing to do about it
			_ = logger.Sync()
		}))
	}
	return logger, nil
}

// FromContext returns a logger enriched with request-scoped fields.
func FromContext(ctx context.Context) *zap.Logger {
	return WithContext(ctx, zap.L())
}

// WithContext enriches the provided logger with correlation fields.
func WithContext(ctx context.Context, base *zap.Logger) *zap.Logger {
	if ctx == nil {
		return base
	}

	if base == nil {
		base = zap.NewNop()
	}

	fields := []zap.Field{
		zap.String("request_id", obscontext.RequestIDFromContext(ctx)),
	}
	if donorID := obscontext.DonorIDFromContext(ctx); donorID != "" {
		fields = append(fields, zap.String("donor_id", donorID))
	}
	fields = append(fields, traceFieldsFromContext(ctx)...)

	return base.With(fields...)
}

// WithDonor adds the donor identifier to the logger.
func WithDonor(log *zap.Logger, donorID string) *zap.Logger {
	if log == nil {
		return nil
	}
	return log.With(zap.String("donor_id", strings.TrimSpace(donorID)))
}

func traceFieldsFromContext(ctx context.Context) []zap.Field {
	span := trace.SpanFromContext(ctx)
	sc := span.SpanContext()
	if !sc.IsValid() {
		return nil
	}
	return []zap.Field{
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
	}
}

// sampledCore samples like zapcore's sampler except for a fixed set of
// messages, which always reach the underlying core.
type sampledCore struct {
	zapcore.Core
	raw  zapcore.Core
	keep map[string]struct{}
}

func newSampledCore(core zapcore.Core, window time.Duration, initial, thereafter int, unsampled []string) zapcore.Core {
	sampler := zapcore.NewSamplerWithOptions(core, window, initial, thereafter)
	if len(unsampled) == 0 {
		return sampler
	}
	keep := make(map[string]struct{}, len(unsampled))
	for _, msg := range unsampled {
		keep[msg] = struct{}{}
	}
	return &sampledCore{Core: sampler, raw: core, keep: keep}
}

func (c *sampledCore) With(fields []zapcore.Field) zapcore.Core {
	return &sampledCore{
		Core: c.Core.With(fields),
		raw:  c.raw.With(fields),
		keep: c.keep,
	}
}

func (c *sampledCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if _, ok := c.keep[ent.Message]; ok {
		return c.raw.Check(ent, ce)
	}
	return c.Core.Check(ent, ce)
}
