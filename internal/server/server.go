// Package server exposes the pricing engine over HTTP.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/ratecard/internal/config"
	lifecycledomain "github.com/smallbiznis/ratecard/internal/lifecycle/domain"
	"github.com/smallbiznis/ratecard/internal/observability"
	obslogger "github.com/smallbiznis/ratecard/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/ratecard/internal/observability/metrics"
	ratetabledomain "github.com/smallbiznis/ratecard/internal/ratetable/domain"
	versionchaindomain "github.com/smallbiznis/ratecard/internal/versionchain/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(registerRoutes),
	fx.Invoke(RunHTTP),
)

func NewEngine(obsCfg observability.Config, metrics *obsmetrics.Metrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{})))

	return r
}

type ServerParams struct {
	fx.In

	Gin          *gin.Engine
	Cfg          config.Config
	Log          *zap.Logger
	Metrics      *obsmetrics.Metrics
	Defaults     *config.PricingDefaultsHolder
	RateTableSvc ratetabledomain.Service
	LifecycleSvc lifecycledomain.Service
	VersionSvc   versionchaindomain.Service
}

type Server struct {
	engine       *gin.Engine
	cfg          config.Config
	log          *zap.Logger
	metrics      *obsmetrics.Metrics
	defaults     *config.PricingDefaultsHolder
	rateTableSvc ratetabledomain.Service
	lifecycleSvc lifecycledomain.Service
	versionSvc   versionchaindomain.Service
}

func NewServer(p ServerParams) *Server {
	return &Server{
		engine:       p.Gin,
		cfg:          p.Cfg,
		log:          p.Log.Named("http.server"),
		metrics:      p.Metrics,
		defaults:     p.Defaults,
		rateTableSvc: p.RateTableSvc,
		lifecycleSvc: p.LifecycleSvc,
		versionSvc:   p.VersionSvc,
	}
}

// RegisterAPIRoutes binds the engine's HTTP surface.
func (s *Server) RegisterAPIRoutes() {
	v1 := s.engine.Group("/v1")
	v1.Use(s.orgResolver())

	tables := v1.Group("/rate-tables")
	tables.POST("", s.createRateTable)
	tables.GET("", s.listRateTables)
	tables.GET("/current", s.currentRateTable)
	tables.GET("/history", s.rateTableHistory)
	tables.GET("/:id", s.getRateTable)
	tables.DELETE("/:id", s.discardRateTable)
	tables.POST("/:id/activate", s.activateRateTable)
	tables.POST("/:id/supersede", s.supersedeRateTable)
	tables.POST("/:id/expire", s.expireRateTable)
	tables.POST("/:id/versions", s.deriveRateTableVersion)

	v1.POST("/quotes", s.createQuote)
}

func registerRoutes(s *Server) {
	s.RegisterAPIRoutes()
}

func RunHTTP(lc fx.Lifecycle, cfg config.Config, r *gin.Engine) {
	srv := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			_ = ctx
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
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
