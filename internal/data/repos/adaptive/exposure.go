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

// ExposureLog records when a learner last saw an item. The most recent Touch wins.
type ExposureLog interface {
	Touch(dbc dbctx.Context, learnerID uuid.UUID, itemID string, at time.Time) error
	LastSeen(dbc dbctx.Context, learnerID uuid.UUID, itemIDs []string) (map[string]time.Time, error)
}

type exposureRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewExposureRepo(db *gorm.DB, baseLog *logger.Logger) ExposureLog {
	return &exposureRepo{db: db, log: baseLog.With("repo", "ExposureRepo")}
}

func (r *exposureRepo) Touch(dbc dbctx.Context, learnerID uuid.UUID, itemID string, at time.Time) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	itemID = strings.TrimSpace(itemID)
	if learnerID == uuid.Nil || itemID == "" {
		return nil
	}
	if at.IsZero() {
		at = time.Now()
	}
	row := &types.ItemExposure{
		LearnerID:  learnerID,
		ItemID:     itemID,
		LastSeenAt: at.UTC(),
		UpdatedAt:  time.Now().UTC(),
	}
	return t.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "learner_id"}, {Name: "item_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"last_seen_at", "updated_at"}),
		}).
		Create(row).Error
}

func (r *exposureRepo) LastSeen(dbc dbctx.Context, learnerID uuid.UUID, itemIDs []string) (map[string]time.Time, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	out := map[string]time.Time{}
	clean := uniqueStrings(itemIDs)
	if learnerID == uuid.Nil || len(clean) == 0 {
		return out, nil
	}
	rows := []*types.ItemExposure{}
	if err := t.WithContext(dbc.Ctx).
		Where("learner_id = ? AND item_id IN ?", learnerID, clean).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ItemID] = row.LastSeenAt
	}
	return out, nil
}
