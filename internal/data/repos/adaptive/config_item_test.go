package adaptive_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/medquiz-backend/internal/data/repos/adaptive"
	"github.com/yungbote/medquiz-backend/internal/data/repos/testutil"
	types "github.com/yungbote/medquiz-backend/internal/domain"
	"github.com/yungbote/medquiz-backend/internal/platform/dbctx"
)

func TestAdaptiveConfigUpsert(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := adaptive.NewAdaptiveConfigRepo(db, testutil.Logger(t))

	course := testutil.SeedCourseConfig(t, ctx, tx)
	course.Epsilon = 0.25
	course.MinDifficulty = "medium"
	if err := repo.UpsertCourse(dbc, course); err != nil {
		t.Fatalf("UpsertCourse: %v", err)
	}
	got, err := repo.GetCourse(dbc, course.CourseID)
	if err != nil {
		t.Fatalf("GetCourse: %v", err)
	}
	if got == nil || got.Epsilon != 0.25 || got.MinDifficulty != "medium" {
		t.Fatalf("unexpected course config: %+v", got)
	}
	if none, err := repo.GetCourse(dbc, uuid.New()); err != nil || none != nil {
		t.Fatalf("expected nil for unconfigured course, got %+v err=%v", none, err)
	}

	kcA, kcB := uuid.New(), uuid.New()
	for _, kc := range []uuid.UUID{kcA, kcB} {
		if err := repo.UpsertKC(dbc, &types.KCBKTParams{
			KCID:                kc,
			CourseID:            course.CourseID,
			LearningRate:        0.4,
			GuessingProbability: 0.25,
			SlippingProbability: 0,
		}); err != nil {
			t.Fatalf("UpsertKC: %v", err)
		}
	}
	only, err := repo.ListKC(dbc, course.CourseID, []uuid.UUID{kcA})
	if err != nil {
		t.Fatalf("ListKC: %v", err)
	}
	if len(only) != 1 || only[0].KCID != kcA || only[0].SlippingProbability != 0 {
		t.Fatalf("unexpected kc overrides: %+v", only)
	}
	all, err := repo.ListKC(dbc, course.CourseID, nil)
	if err != nil {
		t.Fatalf("ListKC all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 overrides, got %d", len(all))
	}
}

func TestItemAndAnswerEventRepos(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	log := testutil.Logger(t)
	items := adaptive.NewItemRepo(db, log)
	events := adaptive.NewAnswerEventRepo(db, log)

	course := uuid.New()
	kc := uuid.New()
	q1 := &types.AdaptiveItem{ItemID: "q1", CourseID: course, Difficulty: "easy", ItemType: "single_best_answer", Active: true}
	q1.SetKnowledgeComponents([]uuid.UUID{kc})
	q2 := &types.AdaptiveItem{ItemID: "q2", CourseID: course, Difficulty: "hard", ItemType: "single_best_answer", Active: true}
	q2.SetKnowledgeComponents(nil)
	if err := items.Upsert(dbc, []*types.AdaptiveItem{q1, q2, nil}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	q2.Active = false
	if err := items.Upsert(dbc, []*types.AdaptiveItem{q2}); err != nil {
		t.Fatalf("Upsert (deactivate): %v", err)
	}
	active, err := items.ListActiveByCourse(dbc, course)
	if err != nil {
		t.Fatalf("ListActiveByCourse: %v", err)
	}
	if len(active) != 1 || active[0].ItemID != "q1" {
		t.Fatalf("unexpected active items: %+v", active)
	}
	got, err := items.Get(dbc, "q1")
	if err != nil || got == nil {
		t.Fatalf("Get: %v %+v", err, got)
	}
	kcs, err := got.KnowledgeComponents()
	if err != nil || len(kcs) != 1 || kcs[0] != kc {
		t.Fatalf("unexpected kcs %v err=%v", kcs, err)
	}

	learner := uuid.New()
	base := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		if err := events.Create(dbc, &types.AnswerEvent{
			LearnerID:     learner,
			CourseID:      course,
			ItemID:        "q1",
			Correct:       i%2 == 0,
			AbilityBefore: 0.5,
			AnsweredAt:    base.Add(time.Duration(i) * time.Minute),
		}); err != nil {
			t.Fatalf("Create event %d: %v", i, err)
		}
	}
	recent, err := events.ListByItem(dbc, "q1", 3)
	if err != nil {
		t.Fatalf("ListByItem: %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("expected 3 events, got %d", len(recent))
	}
	if !recent[0].AnsweredAt.Equal(base.Add(2*time.Minute)) || !recent[2].AnsweredAt.Equal(base.Add(4*time.Minute)) {
		t.Fatalf("expected newest three oldest-first, got %v..%v", recent[0].AnsweredAt, recent[2].AnsweredAt)
	}
	touched, err := events.ItemsWithResponsesSince(dbc, base.Add(-time.Hour))
	if err != nil {
		t.Fatalf("ItemsWithResponsesSince: %v", err)
	}
	if len(touched) != 1 || touched[0] != "q1" {
		t.Fatalf("unexpected touched items: %v", touched)
	}
}
