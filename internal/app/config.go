package app

import (
	"strings"
	"time"

	"github.com/yungbote/medquiz-backend/internal/data/db"
	"github.com/yungbote/medquiz-backend/internal/platform/envutil"
	"github.com/yungbote/medquiz-backend/internal/platform/logger"
	"github.com/yungbote/medquiz-backend/internal/platform/redisx"
	"github.com/yungbote/medquiz-backend/internal/temporalx"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	ExposureStoreDB    = "db"
	ExposureStoreRedis = "redis"
)

type Config struct {
	Port        string
	LogMode     string
	ServiceName string
	Environment string
	Version     string
	CORSOrigins string

	DBDriver   string
	Postgres   db.PostgresConfig
	SQLitePath string

	Redis             redisx.Config
	ExposureStore     string
	ExposurePrefix    string
	ExposureRetention time.Duration

	JWTSecretKey  string
	InternalToken string

	BKTParamsFile string

	AbilityLearningRate float64
	UpdateMaxRetries    int
	SelectionSeed       int64

	CalibrationMinSamples   int
	CalibrationLearningRate float64
	CalibrationEpochs       int
	CalibrationConcurrency  int
	CalibrationMaxResponses int
	CalibrationLookback     time.Duration

	RunTemporalWorker bool
	Temporal          temporalx.Config
}

func LoadConfig(log *logger.Logger) Config {
	cfg := Config{
		Port:        envutil.String("PORT", "8080"),
		LogMode:     envutil.String("LOG_MODE", "development"),
		ServiceName: envutil.String("OTEL_SERVICE_NAME", "medquiz"),
		Environment: envutil.String("APP_ENV", "development"),
		Version:     envutil.String("APP_VERSION", "dev"),
		CORSOrigins: envutil.String("CORS_ORIGINS", ""),

		DBDriver: strings.ToLower(envutil.String("DB_DRIVER", DriverPostgres)),
		Postgres: db.PostgresConfig{
			Host:         envutil.String("POSTGRES_HOST", "localhost"),
			Port:         envutil.String("POSTGRES_PORT", "5432"),
			User:         envutil.String("POSTGRES_USER", "postgres"),
			Password:     envutil.String("POSTGRES_PASSWORD", ""),
			Name:         envutil.String("POSTGRES_NAME", "medquiz"),
			SSLMode:      envutil.String("POSTGRES_SSLMODE", "disable"),
			MaxOpenConns: envutil.IntRange("POSTGRES_MAX_OPEN_CONNS", 25, 1, 500),
			MaxIdleConns: envutil.IntRange("POSTGRES_MAX_IDLE_CONNS", 10, 0, 500),
		},
		SQLitePath: envutil.String("SQLITE_PATH", "medquiz.db"),

		Redis: redisx.Config{
			Addr:     envutil.String("REDIS_ADDR", ""),
			Password: envutil.String("REDIS_PASSWORD", ""),
			DB:       envutil.Int("REDIS_DB", 0),
		},
		ExposureStore:     strings.ToLower(envutil.String("EXPOSURE_STORE", ExposureStoreDB)),
		ExposurePrefix:    envutil.String("EXPOSURE_REDIS_PREFIX", "medquiz:exposure"),
		ExposureRetention: envutil.Duration("EXPOSURE_REDIS_RETENTION", 7*24*time.Hour),

		JWTSecretKey:  envutil.String("JWT_SECRET_KEY", ""),
		InternalToken: envutil.String("INTERNAL_API_TOKEN", ""),

		BKTParamsFile: envutil.String("BKT_PARAMS_FILE", ""),

		AbilityLearningRate: envutil.Float("ADAPTIVE_ABILITY_LR", 0.3),
		UpdateMaxRetries:    envutil.IntRange("ADAPTIVE_UPDATE_MAX_RETRIES", 5, 1, 50),
		SelectionSeed:       int64(envutil.Int("ADAPTIVE_SELECTION_SEED", 0)),

		CalibrationMinSamples:   envutil.IntRange("CALIBRATION_MIN_SAMPLES", 8, 1, 100000),
		CalibrationLearningRate: envutil.Float("CALIBRATION_LR", 0.05),
		CalibrationEpochs:       envutil.IntRange("CALIBRATION_EPOCHS", 25, 1, 1000),
		CalibrationConcurrency:  envutil.IntRange("CALIBRATION_CONCURRENCY", 4, 1, 64),
		CalibrationMaxResponses: envutil.IntRange("CALIBRATION_MAX_RESPONSES", 2000, 1, 1000000),
		CalibrationLookback:     envutil.Duration("CALIBRATION_LOOKBACK", 24*time.Hour),

		RunTemporalWorker: envutil.Bool("RUN_TEMPORAL_WORKER", false),
		Temporal:          temporalx.LoadConfig(),
	}
	if cfg.ExposureStore != ExposureStoreRedis {
		cfg.ExposureStore = ExposureStoreDB
	}
	if log != nil {
		if cfg.JWTSecretKey == "" {
			log.Warn("JWT_SECRET_KEY is empty; learner routes will reject every token")
		}
		log.Info("Config loaded",
			"db_driver", cfg.DBDriver,
			"exposure_store", cfg.ExposureStore,
			"temporal_address", cfg.Temporal.Address,
			"run_temporal_worker", cfg.RunTemporalWorker,
		)
	}
	return cfg
}
