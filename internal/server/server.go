package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/adminwatch/internal/access"
	auditdomain "github.com/smallbiznis/adminwatch/internal/audit/domain"
	"github.com/smallbiznis/adminwatch/internal/auth"
	"github.com/smallbiznis/adminwatch/internal/authorization"
	"github.com/smallbiznis/adminwatch/internal/config"
	gatewaydomain "github.com/smallbiznis/adminwatch/internal/gateway/domain"
	healthdomain "github.com/smallbiznis/adminwatch/internal/health/domain"
	notificationdomain "github.com/smallbiznis/adminwatch/internal/notification/domain"
	"github.com/smallbiznis/adminwatch/internal/observability"
	obsmiddleware "github.com/smallbiznis/adminwatch/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/adminwatch/internal/observability/metrics"
	obstracing "github.com/smallbiznis/adminwatch/internal/observability/tracing"
	thresholddomain "github.com/smallbiznis/adminwatch/internal/threshold/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
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
	tokens          *auth.TokenManager
	access          *access.Service
	authzSvc        authorization.Service
	auditSvc        auditdomain.Service
	thresholdSvc    thresholddomain.Service
	healthSvc       healthdomain.Service
	notificationSvc notificationdomain.Service
	gateway         gatewaydomain.Gateway
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	Tokens          *auth.TokenManager
	Access          *access.Service
	AuthzSvc        authorization.Service
	AuditSvc        auditdomain.Service
	ThresholdSvc    thresholddomain.Service
	HealthSvc       healthdomain.Service
	NotificationSvc notificationdomain.Service
	Gateway         gatewaydomain.Gateway
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		tokens:          p.Tokens,
		access:          p.Access,
		authzSvc:        p.AuthzSvc,
		auditSvc:        p.AuditSvc,
		thresholdSvc:    p.ThresholdSvc,
		healthSvc:       p.HealthSvc,
		notificationSvc: p.NotificationSvc,
		gateway:         p.Gateway,
	}

	svc.registerAdminRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/admin")
	admin.Use(s.AdminAuthRequired())

	// -------- Country scope --------
	admin.GET("/countries", s.ListCountries)
	admin.POST("/countries/select", s.SelectCountry)

	// -------- Threshold rules --------
	admin.GET("/threshold-rules", s.ListThresholdRules)
	admin.POST("/threshold-rules", s.CreateThresholdRule)
	admin.GET("/threshold-rules/:id", s.GetThresholdRule)
	admin.PATCH("/threshold-rules/:id", s.UpdateThresholdRule)
	admin.POST("/threshold-rules/:id/toggle", s.ToggleThresholdRule)
	admin.DELETE("/threshold-rules/:id", s.DeleteThresholdRule)

	// -------- Privileged actions --------
	admin.POST("/actions", s.ExecuteAdminAction)

	// -------- Notification preferences --------
	admin.GET("/notification-preferences/:adminId", s.GetNotificationPreferences)
	admin.PUT("/notification-preferences/:adminId", s.UpdateNotificationPreferences)

	admin.GET("/country-health", s.authorizeAdminAction(authorization.ObjectCountryHealth, authorization.ActionCountryHealthView), s.ListCountryHealth)
	admin.GET("/audit-logs", s.authorizeAdminAction(authorization.ObjectAuditLog, authorization.ActionAuditLogView), s.ListAuditLogs)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrRouteNotFound)
	})
}
