package adaptive_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/medquiz-backend/internal/data/repos/adaptive"
	"github.com/yungbote/medquiz-backend/internal/data/repos/testutil"
	types "github.com/yungbote/medquiz-backend/internal/domain"
	"github.com/yungbote/medquiz-backend/internal/platform/dbctx"
)

func TestItemCalibrationAppendKeepsOneLatest(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	repo := adaptive.NewItemCalibrationRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}

	itemID := "item-" + uuid.NewString()
	seeded, err := repo.SeedIfMissing(dbc, &types.ItemCalibration{ItemID: itemID, Discrimination: 1, Source: types.CalibrationSourceSeed})
	if err != nil {
		t.Fatalf("SeedIfMissing: %v", err)
	}
	if !seeded {
		t.Fatalf("expected first seed to insert")
	}
	again, err := repo.SeedIfMissing(dbc, &types.ItemCalibration{ItemID: itemID, Discrimination: 2})
	if err != nil {
		t.Fatalf("SeedIfMissing (again): %v", err)
	}
	if again {
		t.Fatalf("expected second seed to be a no-op")
	}

	for i := 0; i < 3; i++ {
		if err := repo.AppendLatest(dbc, &types.ItemCalibration{
			ItemID:         itemID,
			Discrimination: 1.1 + float64(i)/10,
			Difficulty:     0.2,
			Source:         types.CalibrationSourceRefresh,
		}); err != nil {
			t.Fatalf("AppendLatest %d: %v", i, err)
		}
	}

	hist, err := repo.History(dbc, itemID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(hist) != 4 {
		t.Fatalf("expected 4 versions, got %d", len(hist))
	}
	latest := 0
	for i, row := range hist {
		if row.Version != 4-i {
			t.Fatalf("history not ordered by version desc: idx=%d version=%d", i, row.Version)
		}
		if row.IsLatest {
			latest++
		}
	}
	if latest != 1 || !hist[0].IsLatest {
		t.Fatalf("expected only the newest version to be latest, got %d latest rows", latest)
	}

	got, err := repo.Latest(dbc, []string{itemID, "never-seen"})
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if len(got) != 1 || got[itemID].Version != 4 {
		t.Fatalf("unexpected latest map: %+v", got)
	}
	if got[itemID].Discrimination != 1.3 {
		t.Fatalf("expected newest params, got a=%v", got[itemID].Discrimination)
	}
}

func TestItemCalibrationLatestDetectsMissingFlag(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	repo := adaptive.NewItemCalibrationRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}

	itemID := "item-" + uuid.NewString()
	row := &types.ItemCalibration{
		ID:             uuid.New(),
		ItemID:         itemID,
		Version:        1,
		Discrimination: 1,
		IsLatest:       false,
		CreatedAt:      time.Now().UTC(),
	}
	if err := tx.WithContext(ctx).Create(row).Error; err != nil {
		t.Fatalf("insert orphan: %v", err)
	}

	if _, err := repo.Latest(dbc, []string{itemID}); !errors.Is(err, adaptive.ErrCalibrationIntegrity) {
		t.Fatalf("expected ErrCalibrationIntegrity, got %v", err)
	}
	if err := repo.AppendLatest(dbc, &types.ItemCalibration{ItemID: itemID, Discrimination: 1}); !errors.Is(err, adaptive.ErrCalibrationIntegrity) {
		t.Fatalf("expected AppendLatest to refuse, got %v", err)
	}
}

func TestItemCalibrationPartialIndexRejectsSecondLatest(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()

	itemID := "item-" + uuid.NewString()
	now := time.Now().UTC()
	first := &types.ItemCalibration{ID: uuid.New(), ItemID: itemID, Version: 1, Discrimination: 1, IsLatest: true, CreatedAt: now}
	if err := tx.WithContext(ctx).Create(first).Error; err != nil {
		t.Fatalf("insert first: %v", err)
	}
	sp := tx.SavePoint("dup")
	if sp.Error != nil {
		t.Fatalf("savepoint: %v", sp.Error)
	}
	second := &types.ItemCalibration{ID: uuid.New(), ItemID: itemID, Version: 2, Discrimination: 1, IsLatest: true, CreatedAt: now}
	if err := tx.WithContext(ctx).Create(second).Error; err == nil {
		t.Fatalf("expected unique violation for a second latest row")
	}
	tx.RollbackTo("dup")
}
