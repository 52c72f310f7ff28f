package app

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/yungbote/medquiz-backend/internal/data/db"
	"github.com/yungbote/medquiz-backend/internal/data/repos"
	"github.com/yungbote/medquiz-backend/internal/platform/logger"
	"github.com/yungbote/medquiz-backend/internal/platform/redisx"
)

// OpenDB connects to the configured driver and migrates the schema.
func OpenDB(cfg Config, log *logger.Logger) (*gorm.DB, error) {
	switch cfg.DBDriver {
	case DriverSQLite:
		svc, err := db.NewSQLiteService(cfg.SQLitePath, log)
		if err != nil {
			return nil, fmt.Errorf("init sqlite: %w", err)
		}
		if err := svc.AutoMigrateAll(); err != nil {
			return nil, fmt.Errorf("sqlite automigrate: %w", err)
		}
		return svc.DB(), nil
	case DriverPostgres, "":
		svc, err := db.NewPostgresService(cfg.Postgres, log)
		if err != nil {
			return nil, fmt.Errorf("init postgres: %w", err)
		}
		if err := svc.AutoMigrateAll(); err != nil {
			return nil, fmt.Errorf("postgres automigrate: %w", err)
		}
		return svc.DB(), nil
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}
}

// wireRepos builds the repo set. The exposure log lives in Redis when EXPOSURE_STORE=redis,
// otherwise in the item_exposure table.
func wireRepos(ctx context.Context, theDB *gorm.DB, log *logger.Logger, cfg Config) (repos.Set, *goredis.Client, error) {
	log.Info("Wiring repos...")
	var (
		rdb      *goredis.Client
		exposure repos.ExposureLog
	)
	if cfg.ExposureStore == ExposureStoreRedis {
		client, err := redisx.NewClient(ctx, cfg.Redis, log)
		if err != nil {
			return repos.Set{}, nil, fmt.Errorf("init redis exposure log: %w", err)
		}
		rdb = client
		exposure = repos.NewRedisExposureLog(rdb, cfg.ExposurePrefix, cfg.ExposureRetention, log)
	}
	return repos.NewSet(theDB, log, exposure), rdb, nil
}
