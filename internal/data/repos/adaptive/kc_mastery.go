package adaptive

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/medquiz-backend/internal/domain"
	"github.com/yungbote/medquiz-backend/internal/modules/adaptive/mastery"
	"github.com/yungbote/medquiz-backend/internal/platform/dbctx"
	"github.com/yungbote/medquiz-backend/internal/platform/logger"
)

type KCMasteryRepo interface {
	// GetOrCreateForUpdate ensures a row per KC and returns them row-locked, ordered by kc_id.
	GetOrCreateForUpdate(dbc dbctx.Context, learnerID, courseID uuid.UUID, kcIDs []uuid.UUID) ([]*types.LearnerKCMastery, error)
	Save(dbc dbctx.Context, row *types.LearnerKCMastery) error
	ListByLearnerCourse(dbc dbctx.Context, learnerID, courseID uuid.UUID) ([]*types.LearnerKCMastery, error)
}

type kcMasteryRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewKCMasteryRepo(db *gorm.DB, baseLog *logger.Logger) KCMasteryRepo {
	return &kcMasteryRepo{db: db, log: baseLog.With("repo", "KCMasteryRepo")}
}

func (r *kcMasteryRepo) GetOrCreateForUpdate(dbc dbctx.Context, learnerID, courseID uuid.UUID, kcIDs []uuid.UUID) ([]*types.LearnerKCMastery, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	out := []*types.LearnerKCMastery{}
	clean := uniqueSortedUUIDs(kcIDs)
	if len(clean) == 0 {
		return out, nil
	}

	now := time.Now().UTC()
	seeds := make([]*types.LearnerKCMastery, 0, len(clean))
	for _, kcID := range clean {
		seeds = append(seeds, &types.LearnerKCMastery{
			ID:        uuid.New(),
			LearnerID: learnerID,
			KCID:      kcID,
			CourseID:  courseID,
			Mastery:   mastery.DefaultMastery,
			Version:   1,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	if err := t.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "learner_id"}, {Name: "kc_id"}},
			DoNothing: true,
		}).
		Create(&seeds).Error; err != nil {
		return nil, err
	}

	// Rows are locked in kc_id order so concurrent answers acquire locks in the same sequence.
	if err := t.WithContext(dbc.Ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("learner_id = ? AND kc_id IN ?", learnerID, clean).
		Order("kc_id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *kcMasteryRepo) Save(dbc dbctx.Context, row *types.LearnerKCMastery) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	now := time.Now().UTC()
	res := t.WithContext(dbc.Ctx).
		Model(&types.LearnerKCMastery{}).
		Where("id = ? AND version = ?", row.ID, row.Version).
		Updates(map[string]interface{}{
			"mastery":    row.Mastery,
			"attempts":   row.Attempts,
			"version":    row.Version + 1,
			"updated_at": now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		r.log.Warn("kc mastery version conflict", "learner_id", row.LearnerID, "kc_id", row.KCID, "version", row.Version)
		return ErrStaleVersion
	}
	row.Version++
	row.UpdatedAt = now
	return nil
}

func (r *kcMasteryRepo) ListByLearnerCourse(dbc dbctx.Context, learnerID, courseID uuid.UUID) ([]*types.LearnerKCMastery, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	out := []*types.LearnerKCMastery{}
	if err := t.WithContext(dbc.Ctx).
		Where("learner_id = ? AND course_id = ?", learnerID, courseID).
		Order("kc_id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func uniqueSortedUUIDs(ids []uuid.UUID) []uuid.UUID {
	seen := map[uuid.UUID]bool{}
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}
