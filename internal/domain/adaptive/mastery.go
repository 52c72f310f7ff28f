package adaptive

import (
	"time"

	"github.com/google/uuid"
)

// LearnerCourseMastery is the per (learner, course) BKT mastery and IRT ability proxy.
type LearnerCourseMastery struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	LearnerID      uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_learner_course_mastery,priority:1" json:"learner_id"`
	CourseID       uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_learner_course_mastery,priority:2;index" json:"course_id"`
	Mastery        float64    `gorm:"column:mastery;not null" json:"mastery"`
	Ability        float64    `gorm:"column:ability;not null" json:"ability"`
	Attempts       int        `gorm:"column:attempts;not null" json:"attempts"`
	Version        int64      `gorm:"column:version;not null" json:"version"`
	LastAnsweredAt *time.Time `gorm:"column:last_answered_at" json:"last_answered_at,omitempty"`
	CreatedAt      time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"not null" json:"updated_at"`
}

func (LearnerCourseMastery) TableName() string { return "learner_course_mastery" }

// LearnerKCMastery is the per (learner, knowledge component) BKT mastery.
type LearnerKCMastery struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	LearnerID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_learner_kc_mastery,priority:1;index:idx_learner_kc_course,priority:1" json:"learner_id"`
	KCID      uuid.UUID `gorm:"column:kc_id;type:uuid;not null;uniqueIndex:idx_learner_kc_mastery,priority:2" json:"kc_id"`
	CourseID  uuid.UUID `gorm:"type:uuid;not null;index:idx_learner_kc_course,priority:2" json:"course_id"`
	Mastery   float64   `gorm:"column:mastery;not null" json:"mastery"`
	Attempts  int       `gorm:"column:attempts;not null" json:"attempts"`
	Version   int64     `gorm:"column:version;not null" json:"version"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (LearnerKCMastery) TableName() string { return "learner_kc_mastery" }
