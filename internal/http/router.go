package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/medquiz-backend/internal/http/handlers"
	httpMW "github.com/yungbote/medquiz-backend/internal/http/middleware"
	"github.com/yungbote/medquiz-backend/internal/observability"
	"github.com/yungbote/medquiz-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	Metrics        *observability.Metrics
	ServiceName    string
	CORSOrigins    string
	AuthMiddleware *httpMW.AuthMiddleware

	AdaptiveHandler *httpH.AdaptiveHandler
	InternalHandler *httpH.InternalHandler
	HealthHandler   *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	api := r.Group("/api")

	learner := api.Group("/")
	{
		if cfg.AuthMiddleware != nil {
			learner.Use(cfg.AuthMiddleware.RequireAuth())
		}
		if cfg.AdaptiveHandler != nil {
			learner.POST("/courses/:course_id/answers", cfg.AdaptiveHandler.SubmitAnswer)
			learner.GET("/courses/:course_id/next-items", cfg.AdaptiveHandler.NextItems)
			learner.GET("/courses/:course_id/mastery", cfg.AdaptiveHandler.GetMastery)
			learner.POST("/items/:item_id/exposures", cfg.AdaptiveHandler.RecordExposure)
		}
	}

	internal := api.Group("/internal")
	{
		if cfg.AuthMiddleware != nil {
			internal.Use(cfg.AuthMiddleware.RequireInternal())
		}
		if cfg.InternalHandler != nil {
			internal.PUT("/courses/:course_id/config", cfg.InternalHandler.ConfigureCourse)
			internal.PUT("/courses/:course_id/kcs/:kc_id/params", cfg.InternalHandler.ConfigureKC)
			internal.POST("/items/sync", cfg.InternalHandler.SyncItems)
			internal.POST("/calibrations/refresh", cfg.InternalHandler.RefreshCalibrations)
			internal.GET("/items/:item_id/calibrations", cfg.InternalHandler.CalibrationHistory)
		}
	}

	return r
}
