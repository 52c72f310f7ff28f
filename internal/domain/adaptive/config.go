package adaptive

import (
	"time"

	"github.com/google/uuid"
)

// CourseAdaptiveConfig holds a course's default BKT parameters and its selection policy.
// A course without a row here is not configured for adaptive delivery.
type CourseAdaptiveConfig struct {
	CourseID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"course_id"`
	LearningRate        float64   `gorm:"column:learning_rate;not null" json:"learning_rate"`
	GuessingProbability float64   `gorm:"column:guessing_probability;not null" json:"guessing_probability"`
	SlippingProbability float64   `gorm:"column:slipping_probability;not null" json:"slipping_probability"`
	Epsilon             float64   `gorm:"column:epsilon;not null" json:"epsilon"`
	MinDifficulty       string    `gorm:"column:min_difficulty;not null" json:"min_difficulty"`
	MaxDifficulty       string    `gorm:"column:max_difficulty;not null" json:"max_difficulty"`
	AvoidRepeatMinutes  int       `gorm:"column:avoid_repeat_minutes;not null" json:"avoid_repeat_minutes"`
	CreatedAt           time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt           time.Time `gorm:"not null" json:"updated_at"`
}

func (CourseAdaptiveConfig) TableName() string { return "course_adaptive_config" }

// KCBKTParams overrides the course BKT defaults for one knowledge component.
type KCBKTParams struct {
	KCID                uuid.UUID `gorm:"column:kc_id;type:uuid;primaryKey" json:"kc_id"`
	CourseID            uuid.UUID `gorm:"type:uuid;not null;index" json:"course_id"`
	LearningRate        float64   `gorm:"column:learning_rate;not null" json:"learning_rate"`
	GuessingProbability float64   `gorm:"column:guessing_probability;not null" json:"guessing_probability"`
	SlippingProbability float64   `gorm:"column:slipping_probability;not null" json:"slipping_probability"`
	CreatedAt           time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt           time.Time `gorm:"not null" json:"updated_at"`
}

func (KCBKTParams) TableName() string { return "kc_bkt_params" }
