package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/medquiz-backend/internal/cohort"
	"github.com/yungbote/medquiz-backend/internal/data/repos"
	"github.com/yungbote/medquiz-backend/internal/data/repos/testutil"
	types "github.com/yungbote/medquiz-backend/internal/domain"
	"github.com/yungbote/medquiz-backend/internal/platform/dbctx"
)

func TestExportWritesOneRowPerKCAnswer(t *testing.T) {
	ctx := context.Background()
	db := testutil.DB(t)
	set := repos.NewSet(db, testutil.Logger(t), nil)

	cfg := testutil.SeedCourseConfig(t, ctx, db)
	kcA, kcB := uuid.New(), uuid.New()
	item := testutil.SeedItem(t, ctx, db, cfg.CourseID, "q-export", "medium", kcA, kcB)
	learner := uuid.New()

	base := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)
	for i, correct := range []bool{true, false, true} {
		ev := &types.AnswerEvent{
			LearnerID:  learner,
			CourseID:   cfg.CourseID,
			ItemID:     item.ItemID,
			KCIDs:      item.KCIDs,
			Correct:    correct,
			AnsweredAt: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, set.AnswerEvent.Create(dbctx.Context{Ctx: ctx}, ev))
	}

	var buf bytes.Buffer
	n, err := export(ctx, set, cfg.CourseID, &buf)
	require.NoError(t, err)
	require.Equal(t, 6, n)

	var rows []cohort.Row
	sc := bufio.NewScanner(&buf)
	for sc.Scan() {
		var r cohort.Row
		require.NoError(t, json.Unmarshal(sc.Bytes(), &r))
		rows = append(rows, r)
	}
	require.Len(t, rows, 6)
	for _, r := range rows {
		if r.LearnerID != learner {
			t.Fatalf("unexpected learner %s", r.LearnerID)
		}
		require.InDelta(t, r.Live-r.Legacy, r.Delta, 1e-12)
	}
	require.Equal(t, 3, rows[2].Step)
}

func TestExportRequiresCourseConfig(t *testing.T) {
	db := testutil.DB(t)
	set := repos.NewSet(db, testutil.Logger(t), nil)
	_, err := export(context.Background(), set, uuid.New(), &bytes.Buffer{})
	require.Error(t, err)
}

func TestParamsForPrefersKCOverride(t *testing.T) {
	cfg := &types.CourseAdaptiveConfig{LearningRate: 0.3, GuessingProbability: 0.2, SlippingProbability: 0.1}
	kc := uuid.New()
	f := paramsFor(cfg, []*types.KCBKTParams{{KCID: kc, LearningRate: 0.5, GuessingProbability: 0.25, SlippingProbability: 0.05}})

	require.InDelta(t, 0.5, f(kc).LearningRate, 1e-12)
	require.InDelta(t, 0.3, f(uuid.New()).LearningRate, 1e-12)
}
