package adaptive

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/medquiz-backend/internal/domain"
	"github.com/yungbote/medquiz-backend/internal/platform/dbctx"
	"github.com/yungbote/medquiz-backend/internal/platform/logger"
)

type AdaptiveConfigRepo interface {
	UpsertCourse(dbc dbctx.Context, row *types.CourseAdaptiveConfig) error
	GetCourse(dbc dbctx.Context, courseID uuid.UUID) (*types.CourseAdaptiveConfig, error)
	UpsertKC(dbc dbctx.Context, row *types.KCBKTParams) error
	// ListKC returns the overrides for kcIDs in the course, or every override when kcIDs is empty.
	ListKC(dbc dbctx.Context, courseID uuid.UUID, kcIDs []uuid.UUID) ([]*types.KCBKTParams, error)
}

type adaptiveConfigRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAdaptiveConfigRepo(db *gorm.DB, baseLog *logger.Logger) AdaptiveConfigRepo {
	return &adaptiveConfigRepo{db: db, log: baseLog.With("repo", "AdaptiveConfigRepo")}
}

func (r *adaptiveConfigRepo) UpsertCourse(dbc dbctx.Context, row *types.CourseAdaptiveConfig) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if row == nil || row.CourseID == uuid.Nil {
		return nil
	}
	now := time.Now().UTC()
	if row.CreatedAt.IsZero() {
		row.CreatedAt = now
	}
	row.UpdatedAt = now
	return t.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "course_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"learning_rate",
				"guessing_probability",
				"slipping_probability",
				"epsilon",
				"min_difficulty",
				"max_difficulty",
				"avoid_repeat_minutes",
				"updated_at",
			}),
		}).
		Create(row).Error
}

func (r *adaptiveConfigRepo) GetCourse(dbc dbctx.Context, courseID uuid.UUID) (*types.CourseAdaptiveConfig, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if courseID == uuid.Nil {
		return nil, nil
	}
	var row types.CourseAdaptiveConfig
	if err := t.WithContext(dbc.Ctx).
		Where("course_id = ?", courseID).
		Limit(1).
		Find(&row).Error; err != nil {
		return nil, err
	}
	if row.CourseID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *adaptiveConfigRepo) UpsertKC(dbc dbctx.Context, row *types.KCBKTParams) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if row == nil || row.KCID == uuid.Nil {
		return nil
	}
	now := time.Now().UTC()
	if row.CreatedAt.IsZero() {
		row.CreatedAt = now
	}
	row.UpdatedAt = now
	return t.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "kc_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"course_id",
				"learning_rate",
				"guessing_probability",
				"slipping_probability",
				"updated_at",
			}),
		}).
		Create(row).Error
}

func (r *adaptiveConfigRepo) ListKC(dbc dbctx.Context, courseID uuid.UUID, kcIDs []uuid.UUID) ([]*types.KCBKTParams, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	out := []*types.KCBKTParams{}
	q := t.WithContext(dbc.Ctx).Where("course_id = ?", courseID)
	if len(kcIDs) > 0 {
		q = q.Where("kc_id IN ?", uniqueSortedUUIDs(kcIDs))
	}
	if err := q.Order("kc_id ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
