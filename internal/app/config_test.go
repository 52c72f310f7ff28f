package app

import (
	"testing"
	"time"

	"github.com/yungbote/medquiz-backend/internal/platform/logger"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "DB_DRIVER", "EXPOSURE_STORE", "ADAPTIVE_UPDATE_MAX_RETRIES", "CALIBRATION_LOOKBACK", "TEMPORAL_TASK_QUEUE"} {
		t.Setenv(k, "")
	}
	cfg := LoadConfig(logger.Nop())
	if cfg.Port != "8080" {
		t.Fatalf("port: got=%q", cfg.Port)
	}
	if cfg.DBDriver != DriverPostgres {
		t.Fatalf("db driver: got=%q", cfg.DBDriver)
	}
	if cfg.ExposureStore != ExposureStoreDB {
		t.Fatalf("exposure store: got=%q", cfg.ExposureStore)
	}
	if cfg.UpdateMaxRetries != 5 {
		t.Fatalf("max retries: got=%d", cfg.UpdateMaxRetries)
	}
	if cfg.CalibrationLookback != 24*time.Hour {
		t.Fatalf("lookback: got=%s", cfg.CalibrationLookback)
	}
	if cfg.Temporal.TaskQueue != "medquiz-calibration" {
		t.Fatalf("task queue: got=%q", cfg.Temporal.TaskQueue)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "SQLite")
	t.Setenv("EXPOSURE_STORE", "redis")
	t.Setenv("ADAPTIVE_UPDATE_MAX_RETRIES", "500")
	t.Setenv("CALIBRATION_CONCURRENCY", "0")
	t.Setenv("CALIBRATION_LOOKBACK", "2h")

	cfg := LoadConfig(logger.Nop())
	if cfg.DBDriver != DriverSQLite {
		t.Fatalf("db driver: got=%q", cfg.DBDriver)
	}
	if cfg.ExposureStore != ExposureStoreRedis {
		t.Fatalf("exposure store: got=%q", cfg.ExposureStore)
	}
	if cfg.UpdateMaxRetries != 50 {
		t.Fatalf("max retries should clamp to 50, got=%d", cfg.UpdateMaxRetries)
	}
	if cfg.CalibrationConcurrency != 1 {
		t.Fatalf("concurrency should clamp to 1, got=%d", cfg.CalibrationConcurrency)
	}
	if cfg.CalibrationLookback != 2*time.Hour {
		t.Fatalf("lookback: got=%s", cfg.CalibrationLookback)
	}
}

func TestUnknownExposureStoreFallsBackToDB(t *testing.T) {
	t.Setenv("EXPOSURE_STORE", "memcached")
	if got := LoadConfig(nil).ExposureStore; got != ExposureStoreDB {
		t.Fatalf("exposure store: got=%q want=%q", got, ExposureStoreDB)
	}
}
