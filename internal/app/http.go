package app

import (
	"context"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	apphttp "github.com/yungbote/medquiz-backend/internal/http"
	httpH "github.com/yungbote/medquiz-backend/internal/http/handlers"
	httpMW "github.com/yungbote/medquiz-backend/internal/http/middleware"
	"github.com/yungbote/medquiz-backend/internal/observability"
	"github.com/yungbote/medquiz-backend/internal/platform/logger"
)

type Middleware struct {
	Auth *httpMW.AuthMiddleware
}

type Handlers struct {
	Health   *httpH.HealthHandler
	Adaptive *httpH.AdaptiveHandler
	Internal *httpH.InternalHandler
}

func wireMiddleware(log *logger.Logger, cfg Config) Middleware {
	log.Info("Wiring middleware...")
	return Middleware{
		Auth: httpMW.NewAuthMiddleware(log, cfg.JWTSecretKey, cfg.InternalToken),
	}
}

func wireHandlers(log *logger.Logger, services Services, theDB *gorm.DB, rdb *goredis.Client) Handlers {
	log.Info("Wiring handlers...")
	checks := map[string]httpH.Pinger{
		"database": httpH.PingFunc(func(ctx context.Context) error {
			sqlDB, err := theDB.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}),
	}
	if rdb != nil {
		checks["redis"] = httpH.PingFunc(func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})
	}
	return Handlers{
		Health:   httpH.NewHealthHandler(checks),
		Adaptive: httpH.NewAdaptiveHandler(services.Adaptive),
		Internal: httpH.NewInternalHandler(services.CourseSetup, services.Calibration),
	}
}

func wireRouter(log *logger.Logger, cfg Config, metrics *observability.Metrics, handlers Handlers, middleware Middleware) *gin.Engine {
	return apphttp.NewRouter(apphttp.RouterConfig{
		Log:             log,
		Metrics:         metrics,
		ServiceName:     cfg.ServiceName,
		CORSOrigins:     cfg.CORSOrigins,
		AuthMiddleware:  middleware.Auth,
		AdaptiveHandler: handlers.Adaptive,
		InternalHandler: handlers.Internal,
		HealthHandler:   handlers.Health,
	})
}
