package adaptive_test

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/medquiz-backend/internal/data/repos/adaptive"
	"github.com/yungbote/medquiz-backend/internal/data/repos/testutil"
	"github.com/yungbote/medquiz-backend/internal/platform/dbctx"
)

func exerciseExposureLog(t *testing.T, log adaptive.ExposureLog, dbc dbctx.Context) {
	t.Helper()
	learner := uuid.New()
	first := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	second := first.Add(5 * time.Minute)

	if err := log.Touch(dbc, learner, "q1", first); err != nil {
		t.Fatalf("Touch: %v", err)
	}
	if err := log.Touch(dbc, learner, "q1", second); err != nil {
		t.Fatalf("Touch (again): %v", err)
	}
	if err := log.Touch(dbc, learner, "q2", first); err != nil {
		t.Fatalf("Touch q2: %v", err)
	}

	seen, err := log.LastSeen(dbc, learner, []string{"q1", "q2", "q3"})
	if err != nil {
		t.Fatalf("LastSeen: %v", err)
	}
	if got := seen["q1"]; !got.Equal(second) {
		t.Fatalf("expected last write to win for q1, got %v", got)
	}
	if got := seen["q2"]; !got.Equal(first) {
		t.Fatalf("unexpected q2: %v", got)
	}
	if _, ok := seen["q3"]; ok {
		t.Fatalf("q3 was never shown")
	}

	other, err := log.LastSeen(dbc, uuid.New(), []string{"q1"})
	if err != nil {
		t.Fatalf("LastSeen other learner: %v", err)
	}
	if len(other) != 0 {
		t.Fatalf("exposure leaked across learners: %+v", other)
	}
}

func TestExposureRepoLastWriteWins(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	exerciseExposureLog(t, adaptive.NewExposureRepo(db, testutil.Logger(t)), dbctx.Context{Ctx: context.Background(), Tx: tx})
}

func TestRedisExposureLogLastWriteWins(t *testing.T) {
	addr := strings.TrimSpace(os.Getenv("TEST_REDIS_ADDR"))
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	rdb := goredis.NewClient(&goredis.Options{Addr: addr})
	t.Cleanup(func() { _ = rdb.Close() })
	prefix := "medquiz:test:" + uuid.NewString()
	exerciseExposureLog(t, adaptive.NewRedisExposureLog(rdb, prefix, time.Hour, testutil.Logger(t)), dbctx.Context{Ctx: context.Background()})
}
