package adaptive

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// AdaptiveItem is the local projection of an item from the external item bank.
type AdaptiveItem struct {
	ItemID     string         `gorm:"column:item_id;primaryKey" json:"item_id"`
	CourseID   uuid.UUID      `gorm:"type:uuid;not null;index:idx_adaptive_item_course_active,priority:1" json:"course_id"`
	Difficulty string         `gorm:"column:difficulty;not null" json:"difficulty"`
	ItemType   string         `gorm:"column:item_type;not null" json:"item_type"`
	KCIDs      datatypes.JSON `gorm:"column:kc_ids" json:"kc_ids"`
	Active     bool           `gorm:"column:active;not null;index:idx_adaptive_item_course_active,priority:2" json:"active"`
	CreatedAt  time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"not null" json:"updated_at"`
}

func (AdaptiveItem) TableName() string { return "adaptive_item" }

func (i *AdaptiveItem) KnowledgeComponents() ([]uuid.UUID, error) {
	if i == nil || len(i.KCIDs) == 0 {
		return nil, nil
	}
	var out []uuid.UUID
	if err := json.Unmarshal(i.KCIDs, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (i *AdaptiveItem) SetKnowledgeComponents(ids []uuid.UUID) {
	if ids == nil {
		ids = []uuid.UUID{}
	}
	raw, _ := json.Marshal(ids)
	i.KCIDs = datatypes.JSON(raw)
}

// ItemExposure is the last time a learner was shown an item. Later writes overwrite earlier ones.
type ItemExposure struct {
	LearnerID  uuid.UUID `gorm:"type:uuid;primaryKey" json:"learner_id"`
	ItemID     string    `gorm:"column:item_id;primaryKey" json:"item_id"`
	LastSeenAt time.Time `gorm:"column:last_seen_at;not null" json:"last_seen_at"`
	UpdatedAt  time.Time `gorm:"not null" json:"updated_at"`
}

func (ItemExposure) TableName() string { return "item_exposure" }

// AnswerEvent is the response log that calibration refresh and cohort export read from.
type AnswerEvent struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	LearnerID     uuid.UUID      `gorm:"type:uuid;not null;index:idx_answer_event_learner_course,priority:1" json:"learner_id"`
	CourseID      uuid.UUID      `gorm:"type:uuid;not null;index:idx_answer_event_learner_course,priority:2" json:"course_id"`
	ItemID        string         `gorm:"column:item_id;not null;index:idx_answer_event_item,priority:1" json:"item_id"`
	KCIDs         datatypes.JSON `gorm:"column:kc_ids" json:"kc_ids"`
	Correct       bool           `gorm:"column:correct;not null" json:"correct"`
	AbilityBefore float64        `gorm:"column:ability_before;not null" json:"ability_before"`
	AnsweredAt    time.Time      `gorm:"column:answered_at;not null;index:idx_answer_event_item,priority:2;index" json:"answered_at"`
	CreatedAt     time.Time      `gorm:"not null" json:"created_at"`
}

func (AnswerEvent) TableName() string { return "answer_event" }

func (e *AnswerEvent) KnowledgeComponents() ([]uuid.UUID, error) {
	if e == nil || len(e.KCIDs) == 0 {
		return nil, nil
	}
	var out []uuid.UUID
	if err := json.Unmarshal(e.KCIDs, &out); err != nil {
		return nil, err
	}
	return out, nil
}
