package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/sadaqah/internal/config"
	donationdomain "github.com/smallbiznis/sadaqah/internal/donation/domain"
	pooldomain "github.com/smallbiznis/sadaqah/internal/matchingpool/domain"
	"github.com/smallbiznis/sadaqah/internal/observability"
	obsmiddleware "github.com/smallbiznis/sadaqah/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/sadaqah/internal/observability/metrics"
	obstracing "github.com/smallbiznis/sadaqah/internal/observability/tracing"
	"github.com/smallbiznis/sadaqah/internal/ratelimit"
	tierdomain "github.com/smallbiznis/sadaqah/internal/tier/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics, gatherer prometheus.Gatherer) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		SlowRequest:     obsCfg.HTTPSlowRequest,
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics, gatherer prometheus.Gatherer) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics, gatherer)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine          *gin.Engine
	cfg             config.Config
	tierSvc         tierdomain.Service
	poolSvc         pooldomain.Service
	donationSvc     donationdomain.Service
	donationLimiter donorLimiter
	obsMetrics      *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	TierSvc         tierdomain.Service
	PoolSvc         pooldomain.Service
	DonationSvc     donationdomain.Service
	DonationLimiter *ratelimit.DonationLimiter `optional:"true"`
	ObsMetrics      *obsmetrics.Metrics        `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:      p.Gin,
		cfg:         p.Cfg,
		tierSvc:     p.TierSvc,
		poolSvc:     p.PoolSvc,
		donationSvc: p.DonationSvc,
		obsMetrics:  p.ObsMetrics,
	}
	if p.DonationLimiter != nil {
		svc.donationLimiter = p.DonationLimiter
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	api.GET("/tiers/:kind", s.GetTierTable)
	api.GET("/tiers/:kind/standing", s.GetTierStanding)

	api.POST("/donations", s.DonationRateLimit(), s.RecordDonation)
	api.GET("/donors/:id/standing", s.GetDonorStanding)
	api.GET("/donors/:id/donations", s.ListDonorDonations)
	api.GET("/leaderboard", s.GetLeaderboard)

	api.POST("/pool/entries", s.AppendPoolEntry)
	api.GET("/pool/entries/:id", s.GetPoolEntry)
	api.POST("/pool/entries/:id/match", s.MatchPoolEntry)
	api.GET("/pool/summary", s.GetPoolSummary)
	api.GET("/pool/users/:id", s.GetPoolUserSummary)
	api.GET("/pool/matches", s.ListPoolMatches)

	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
