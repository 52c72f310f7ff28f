package adaptive

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/medquiz-backend/internal/domain"
	"github.com/yungbote/medquiz-backend/internal/platform/dbctx"
	"github.com/yungbote/medquiz-backend/internal/platform/logger"
)

type ItemRepo interface {
	Upsert(dbc dbctx.Context, items []*types.AdaptiveItem) error
	Get(dbc dbctx.Context, itemID string) (*types.AdaptiveItem, error)
	ListActiveByCourse(dbc dbctx.Context, courseID uuid.UUID) ([]*types.AdaptiveItem, error)
}

type itemRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewItemRepo(db *gorm.DB, baseLog *logger.Logger) ItemRepo {
	return &itemRepo{db: db, log: baseLog.With("repo", "ItemRepo")}
}

func (r *itemRepo) Upsert(dbc dbctx.Context, items []*types.AdaptiveItem) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	now := time.Now().UTC()
	clean := make([]*types.AdaptiveItem, 0, len(items))
	for _, it := range items {
		if it == nil {
			continue
		}
		it.ItemID = strings.TrimSpace(it.ItemID)
		if it.ItemID == "" {
			continue
		}
		if it.CreatedAt.IsZero() {
			it.CreatedAt = now
		}
		it.UpdatedAt = now
		clean = append(clean, it)
	}
	if len(clean) == 0 {
		return nil
	}
	return t.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "item_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"course_id",
				"difficulty",
				"item_type",
				"kc_ids",
				"active",
				"updated_at",
			}),
		}).
		CreateInBatches(clean, 200).Error
}

func (r *itemRepo) Get(dbc dbctx.Context, itemID string) (*types.AdaptiveItem, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	itemID = strings.TrimSpace(itemID)
	if itemID == "" {
		return nil, nil
	}
	var row types.AdaptiveItem
	if err := t.WithContext(dbc.Ctx).
		Where("item_id = ?", itemID).
		Limit(1).
		Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ItemID == "" {
		return nil, nil
	}
	return &row, nil
}

func (r *itemRepo) ListActiveByCourse(dbc dbctx.Context, courseID uuid.UUID) ([]*types.AdaptiveItem, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	out := []*types.AdaptiveItem{}
	if courseID == uuid.Nil {
		return out, nil
	}
	if err := t.WithContext(dbc.Ctx).
		Where("course_id = ? AND active = ?", courseID, true).
		Order("item_id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
