package cohort

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/medquiz-backend/internal/modules/adaptive/bkt"
)

type Response struct {
	LearnerID  uuid.UUID
	KCID       uuid.UUID
	Correct    *bool
	AnsweredAt time.Time
}

type Row struct {
	LearnerID  uuid.UUID `json:"learner_id"`
	KCID       uuid.UUID `json:"kc_id"`
	Step       int       `json:"step"`
	AnsweredAt time.Time `json:"answered_at"`
	Correct    *bool     `json:"correct"`
	Live       float64   `json:"live"`
	Legacy     float64   `json:"legacy"`
	Delta      float64   `json:"delta"`
}

// ParamsFunc resolves the BKT params for a KC.
type ParamsFunc func(kcID uuid.UUID) bkt.Params

// Compare replays each (learner, KC) stream in answer order through both formulas,
// starting both from the default prior. Rows come back grouped by learner then KC.
func Compare(responses []Response, params ParamsFunc) []Row {
	type key struct{ learner, kc uuid.UUID }
	streams := map[key][]Response{}
	keys := make([]key, 0)
	for _, r := range responses {
		k := key{r.LearnerID, r.KCID}
		if _, ok := streams[k]; !ok {
			keys = append(keys, k)
		}
		streams[k] = append(streams[k], r)
	}
	sort.SliceStable(keys, func(i, j int) bool {
		if keys[i].learner != keys[j].learner {
			return keys[i].learner.String() < keys[j].learner.String()
		}
		return keys[i].kc.String() < keys[j].kc.String()
	})

	out := make([]Row, 0, len(responses))
	for _, k := range keys {
		stream := streams[k]
		sort.SliceStable(stream, func(i, j int) bool { return stream[i].AnsweredAt.Before(stream[j].AnsweredAt) })
		p := params(k.kc)
		live, legacy := bkt.DefaultMastery, bkt.DefaultMastery
		for i, r := range stream {
			live = bkt.UpdateWith(live, r.Correct, p)
			legacy = LegacyUpdate(legacy, r.Correct, p.SlippingProbability, p.GuessingProbability, p.LearningRate)
			out = append(out, Row{
				LearnerID:  k.learner,
				KCID:       k.kc,
				Step:       i + 1,
				AnsweredAt: r.AnsweredAt,
				Correct:    r.Correct,
				Live:       live,
				Legacy:     legacy,
				Delta:      live - legacy,
			})
		}
	}
	return out
}
