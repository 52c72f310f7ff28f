package adaptive

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/medquiz-backend/internal/domain"
	"github.com/yungbote/medquiz-backend/internal/platform/dbctx"
	"github.com/yungbote/medquiz-backend/internal/platform/logger"
)

type AnswerEventRepo interface {
	Create(dbc dbctx.Context, row *types.AnswerEvent) error
	// ListByItem returns the newest limit responses for an item, oldest first.
	ListByItem(dbc dbctx.Context, itemID string, limit int) ([]*types.AnswerEvent, error)
	ListByLearner(dbc dbctx.Context, learnerID, courseID uuid.UUID) ([]*types.AnswerEvent, error)
	ListByCourse(dbc dbctx.Context, courseID uuid.UUID) ([]*types.AnswerEvent, error)
	ItemsWithResponsesSince(dbc dbctx.Context, since time.Time) ([]string, error)
}

type answerEventRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAnswerEventRepo(db *gorm.DB, baseLog *logger.Logger) AnswerEventRepo {
	return &answerEventRepo{db: db, log: baseLog.With("repo", "AnswerEventRepo")}
}

func (r *answerEventRepo) Create(dbc dbctx.Context, row *types.AnswerEvent) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if row == nil {
		return nil
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	now := time.Now().UTC()
	if row.AnsweredAt.IsZero() {
		row.AnsweredAt = now
	}
	row.CreatedAt = now
	return t.WithContext(dbc.Ctx).Create(row).Error
}

func (r *answerEventRepo) ListByItem(dbc dbctx.Context, itemID string, limit int) ([]*types.AnswerEvent, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	out := []*types.AnswerEvent{}
	itemID = strings.TrimSpace(itemID)
	if itemID == "" {
		return out, nil
	}
	if limit <= 0 {
		limit = 1000
	}
	if err := t.WithContext(dbc.Ctx).
		Where("item_id = ?", itemID).
		Order("answered_at DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (r *answerEventRepo) ListByLearner(dbc dbctx.Context, learnerID, courseID uuid.UUID) ([]*types.AnswerEvent, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	out := []*types.AnswerEvent{}
	if err := t.WithContext(dbc.Ctx).
		Where("learner_id = ? AND course_id = ?", learnerID, courseID).
		Order("answered_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *answerEventRepo) ListByCourse(dbc dbctx.Context, courseID uuid.UUID) ([]*types.AnswerEvent, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	out := []*types.AnswerEvent{}
	if err := t.WithContext(dbc.Ctx).
		Where("course_id = ?", courseID).
		Order("learner_id ASC, answered_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *answerEventRepo) ItemsWithResponsesSince(dbc dbctx.Context, since time.Time) ([]string, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []string
	if err := t.WithContext(dbc.Ctx).
		Model(&types.AnswerEvent{}).
		Where("answered_at >= ?", since.UTC()).
		Distinct().
		Order("item_id ASC").
		Pluck("item_id", &out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
