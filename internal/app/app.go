package app

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	temporalsdkclient "go.temporal.io/sdk/client"
	"gorm.io/gorm"

	"github.com/yungbote/medquiz-backend/internal/data/repos"
	"github.com/yungbote/medquiz-backend/internal/observability"
	"github.com/yungbote/medquiz-backend/internal/platform/logger"
	"github.com/yungbote/medquiz-backend/internal/temporalx"
	"github.com/yungbote/medquiz-backend/internal/temporalx/temporalworker"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Redis    *goredis.Client
	Router   *gin.Engine
	Cfg      Config
	Repos    repos.Set
	Services Services
	Metrics  *observability.Metrics
	Temporal temporalsdkclient.Client

	otelShutdown func(context.Context) error
	cancel       context.CancelFunc
	wg           sync.WaitGroup
}

func New(ctx context.Context) (*App, error) {
	logMode := strings.TrimSpace(os.Getenv("LOG_MODE"))
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading environment variables...")
	cfg := LoadConfig(log)

	otelShutdown := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
		Version:     cfg.Version,
	})
	metrics := observability.Init(log)

	theDB, err := OpenDB(cfg, log)
	if err != nil {
		log.Sync()
		return nil, err
	}

	reposet, rdb, err := wireRepos(ctx, theDB, log, cfg)
	if err != nil {
		log.Sync()
		return nil, err
	}

	tc, err := temporalx.NewClient(log, cfg.Temporal)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init temporal client: %w", err)
	}

	serviceset := wireServices(theDB, log, cfg, reposet, metrics, tc)

	if cfg.BKTParamsFile != "" {
		n, err := serviceset.CourseSetup.SeedFromFile(ctx, cfg.BKTParamsFile)
		if err != nil {
			log.Sync()
			return nil, fmt.Errorf("seed adaptive config from %s: %w", cfg.BKTParamsFile, err)
		}
		log.Info("Seeded adaptive config", "courses", n)
	}

	handlerset := wireHandlers(log, serviceset, theDB, rdb)
	middleware := wireMiddleware(log, cfg)
	router := wireRouter(log, cfg, metrics, handlerset, middleware)

	return &App{
		Log:          log,
		DB:           theDB,
		Redis:        rdb,
		Router:       router,
		Cfg:          cfg,
		Repos:        reposet,
		Services:     serviceset,
		Metrics:      metrics,
		Temporal:     tc,
		otelShutdown: otelShutdown,
	}, nil
}

// Start launches background collectors and, when RUN_TEMPORAL_WORKER is set, the calibration worker.
func (a *App) Start(ctx context.Context) error {
	if a == nil || a.cancel != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	if a.Cfg.DBDriver == DriverPostgres {
		a.Metrics.StartPostgresCollector(ctx, a.Log, a.DB)
	}
	if a.Redis != nil {
		a.Metrics.StartRedisCollector(ctx, a.Log, a.Redis)
	}

	if !a.Cfg.RunTemporalWorker {
		return nil
	}
	if a.Temporal == nil {
		return fmt.Errorf("RUN_TEMPORAL_WORKER is set but TEMPORAL_ADDRESS is empty")
	}
	runner, err := temporalworker.NewRunner(a.Log, a.Cfg.Temporal, a.Temporal, a.Services.Calibration)
	if err != nil {
		return err
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := runner.Start(ctx); err != nil && ctx.Err() == nil {
			a.Log.Error("Temporal worker stopped", "error", err)
		}
	}()
	return nil
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	a.wg.Wait()
	if a.Temporal != nil {
		a.Temporal.Close()
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	if a.otelShutdown != nil {
		_ = a.otelShutdown(context.Background())
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
