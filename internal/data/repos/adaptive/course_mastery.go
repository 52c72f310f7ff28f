package adaptive

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/medquiz-backend/internal/domain"
	"github.com/yungbote/medquiz-backend/internal/modules/adaptive/mastery"
	"github.com/yungbote/medquiz-backend/internal/platform/dbctx"
	"github.com/yungbote/medquiz-backend/internal/platform/logger"
)

type CourseMasteryRepo interface {
	// GetOrCreateForUpdate ensures the row exists with defaults and returns it row-locked.
	// It must run inside dbc.Tx for the lock to hold.
	GetOrCreateForUpdate(dbc dbctx.Context, learnerID, courseID uuid.UUID) (*types.LearnerCourseMastery, error)
	Get(dbc dbctx.Context, learnerID, courseID uuid.UUID) (*types.LearnerCourseMastery, error)
	Save(dbc dbctx.Context, row *types.LearnerCourseMastery) error
	ListByLearner(dbc dbctx.Context, learnerID uuid.UUID) ([]*types.LearnerCourseMastery, error)
}

type courseMasteryRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCourseMasteryRepo(db *gorm.DB, baseLog *logger.Logger) CourseMasteryRepo {
	return &courseMasteryRepo{db: db, log: baseLog.With("repo", "CourseMasteryRepo")}
}

func (r *courseMasteryRepo) GetOrCreateForUpdate(dbc dbctx.Context, learnerID, courseID uuid.UUID) (*types.LearnerCourseMastery, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	now := time.Now().UTC()
	seed := &types.LearnerCourseMastery{
		ID:        uuid.New(),
		LearnerID: learnerID,
		CourseID:  courseID,
		Mastery:   mastery.DefaultMastery,
		Ability:   mastery.DefaultAbility,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := t.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "learner_id"}, {Name: "course_id"}},
			DoNothing: true,
		}).
		Create(seed).Error; err != nil {
		return nil, err
	}

	var row types.LearnerCourseMastery
	if err := t.WithContext(dbc.Ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("learner_id = ? AND course_id = ?", learnerID, courseID).
		Take(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *courseMasteryRepo) Get(dbc dbctx.Context, learnerID, courseID uuid.UUID) (*types.LearnerCourseMastery, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var row types.LearnerCourseMastery
	if err := t.WithContext(dbc.Ctx).
		Where("learner_id = ? AND course_id = ?", learnerID, courseID).
		Limit(1).
		Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

// Save writes mastery, ability and attempts if the stored version still matches row.Version,
// then bumps row.Version. A mismatch returns ErrStaleVersion.
func (r *courseMasteryRepo) Save(dbc dbctx.Context, row *types.LearnerCourseMastery) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	now := time.Now().UTC()
	res := t.WithContext(dbc.Ctx).
		Model(&types.LearnerCourseMastery{}).
		Where("id = ? AND version = ?", row.ID, row.Version).
		Updates(map[string]interface{}{
			"mastery":          row.Mastery,
			"ability":          row.Ability,
			"attempts":         row.Attempts,
			"last_answered_at": row.LastAnsweredAt,
			"version":          row.Version + 1,
			"updated_at":       now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		r.log.Warn("course mastery version conflict", "learner_id", row.LearnerID, "course_id", row.CourseID, "version", row.Version)
		return ErrStaleVersion
	}
	row.Version++
	row.UpdatedAt = now
	return nil
}

func (r *courseMasteryRepo) ListByLearner(dbc dbctx.Context, learnerID uuid.UUID) ([]*types.LearnerCourseMastery, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	out := []*types.LearnerCourseMastery{}
	if learnerID == uuid.Nil {
		return out, nil
	}
	if err := t.WithContext(dbc.Ctx).
		Where("learner_id = ?", learnerID).
		Order("course_id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
