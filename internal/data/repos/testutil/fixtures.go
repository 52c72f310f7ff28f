package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/medquiz-backend/internal/domain"
)

func SeedCourseConfig(tb testing.TB, ctx context.Context, tx *gorm.DB) *types.CourseAdaptiveConfig {
	tb.Helper()
	row := &types.CourseAdaptiveConfig{
		CourseID:            uuid.New(),
		LearningRate:        0.3,
		GuessingProbability: 0.2,
		SlippingProbability: 0.1,
		Epsilon:             0,
		MinDifficulty:       "easy",
		MaxDifficulty:       "hard",
		AvoidRepeatMinutes:  30,
		CreatedAt:           time.Now().UTC(),
		UpdatedAt:           time.Now().UTC(),
	}
	if err := tx.WithContext(ctx).Create(row).Error; err != nil {
		tb.Fatalf("seed course config: %v", err)
	}
	return row
}

func SeedItem(tb testing.TB, ctx context.Context, tx *gorm.DB, courseID uuid.UUID, itemID string, difficulty string, kcIDs ...uuid.UUID) *types.AdaptiveItem {
	tb.Helper()
	row := &types.AdaptiveItem{
		ItemID:     itemID,
		CourseID:   courseID,
		Difficulty: difficulty,
		ItemType:   "single_best_answer",
		Active:     true,
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}
	row.SetKnowledgeComponents(kcIDs)
	if err := tx.WithContext(ctx).Create(row).Error; err != nil {
		tb.Fatalf("seed item: %v", err)
	}
	return row
}
