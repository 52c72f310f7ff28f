package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	types "github.com/yungbote/medquiz-backend/internal/domain"
	"github.com/yungbote/medquiz-backend/internal/modules/adaptive/config"
	"github.com/yungbote/medquiz-backend/internal/modules/adaptive/selection"
	"github.com/yungbote/medquiz-backend/internal/platform/apierr"
	"github.com/yungbote/medquiz-backend/internal/platform/ctxutil"
	"github.com/yungbote/medquiz-backend/internal/services"
)

type fakeAdaptive struct {
	lastAnswer   services.AnswerInput
	lastLimit    int
	lastExposure time.Time
	err          error
}

func (f *fakeAdaptive) SubmitAnswer(_ context.Context, in services.AnswerInput) (*services.AnswerResult, error) {
	f.lastAnswer = in
	if f.err != nil {
		return nil, f.err
	}
	return &services.AnswerResult{CourseID: in.CourseID, ItemID: in.ItemID, Graded: in.Correct != nil}, nil
}

func (f *fakeAdaptive) NextItems(_ context.Context, _, courseID uuid.UUID, limit int) (*services.Recommendation, error) {
	f.lastLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	return &services.Recommendation{CourseID: courseID, Target: selection.BandEasy, Items: []selection.Candidate{{ItemID: "q1", Difficulty: selection.BandEasy}}}, nil
}

func (f *fakeAdaptive) RecordExposure(_ context.Context, _ uuid.UUID, _ string, at time.Time) error {
	f.lastExposure = at
	return f.err
}

func (f *fakeAdaptive) GetMastery(_ context.Context, _, courseID uuid.UUID) (*services.MasterySummary, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &services.MasterySummary{CourseID: courseID, Mastery: 0.2}, nil
}

type fakeSetup struct {
	lastCourse services.CourseSetup
	lastItems  []services.ItemInput
}

func (f *fakeSetup) ConfigureCourse(_ context.Context, in services.CourseSetup) (*types.CourseAdaptiveConfig, error) {
	f.lastCourse = in
	return &types.CourseAdaptiveConfig{CourseID: in.CourseID}, nil
}

func (f *fakeSetup) ConfigureKC(_ context.Context, courseID, kcID uuid.UUID, _ *config.ParamSet) (*types.KCBKTParams, error) {
	return &types.KCBKTParams{CourseID: courseID, KCID: kcID}, nil
}

func (f *fakeSetup) SyncItems(_ context.Context, items []services.ItemInput) (*services.SyncResult, error) {
	f.lastItems = items
	return &services.SyncResult{Upserted: len(items), Seeded: len(items)}, nil
}

func (f *fakeSetup) SeedFromFile(context.Context, string) (int, error) { return 0, nil }

type fakeCalibration struct {
	async bool
}

func (f *fakeCalibration) RefreshItem(context.Context, string) (*services.RefreshResult, error) {
	return nil, nil
}

func (f *fakeCalibration) RefreshItems(context.Context, []string) ([]*services.RefreshResult, error) {
	return nil, nil
}

func (f *fakeCalibration) RequestRefresh(_ context.Context, ids []string) (*services.RefreshRequest, error) {
	if f.async {
		return &services.RefreshRequest{WorkflowID: "wf-1", ItemIDs: ids}, nil
	}
	return &services.RefreshRequest{ItemIDs: ids, Results: []*services.RefreshResult{}}, nil
}

func (f *fakeCalibration) History(_ context.Context, itemID string) ([]*types.ItemCalibration, error) {
	if itemID == "missing" {
		return nil, nil
	}
	return []*types.ItemCalibration{{ItemID: itemID, Version: 1, IsLatest: true}}, nil
}

func withLearner(id uuid.UUID) gin.HandlerFunc {
	return func(c *gin.Context) {
		if id != uuid.Nil {
			c.Request = c.Request.WithContext(ctxutil.WithRequestData(c.Request.Context(), &ctxutil.RequestData{LearnerID: id}))
		}
		c.Next()
	}
}

func newTestEngine(learner uuid.UUID, a *fakeAdaptive, s *fakeSetup, cal *fakeCalibration) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(withLearner(learner))
	ah := NewAdaptiveHandler(a)
	r.POST("/courses/:course_id/answers", ah.SubmitAnswer)
	r.GET("/courses/:course_id/next-items", ah.NextItems)
	r.GET("/courses/:course_id/mastery", ah.GetMastery)
	r.POST("/items/:item_id/exposures", ah.RecordExposure)
	ih := NewInternalHandler(s, cal)
	r.PUT("/internal/courses/:course_id/config", ih.ConfigureCourse)
	r.POST("/internal/items/sync", ih.SyncItems)
	r.POST("/internal/calibrations/refresh", ih.RefreshCalibrations)
	r.GET("/internal/items/:item_id/calibrations", ih.CalibrationHistory)
	return r
}

func do(r http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestSubmitAnswerNullableCorrect(t *testing.T) {
	a := &fakeAdaptive{}
	r := newTestEngine(uuid.New(), a, &fakeSetup{}, &fakeCalibration{})
	course := uuid.New()

	rec := do(r, http.MethodPost, "/courses/"+course.String()+"/answers", `{"item_id":" q1 ","correct":null}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Nil(t, a.lastAnswer.Correct)
	require.Equal(t, "q1", a.lastAnswer.ItemID)

	rec = do(r, http.MethodPost, "/courses/"+course.String()+"/answers", `{"item_id":"q1","correct":true,"answered_at":"2026-05-04T12:00:00Z"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, a.lastAnswer.Correct)
	require.True(t, *a.lastAnswer.Correct)
	require.Equal(t, time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC), a.lastAnswer.AnsweredAt)

	var body struct {
		Result services.AnswerResult `json:"result"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.True(t, body.Result.Graded)
}

func TestServiceErrorsMapToStatus(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{name: "not configured", err: apierr.Conflict("course_not_configured", services.ErrCourseNotConfigured), status: http.StatusConflict, code: "course_not_configured"},
		{name: "item missing", err: apierr.NotFound("item_not_found", services.ErrItemNotFound), status: http.StatusNotFound, code: "item_not_found"},
		{name: "untyped", err: context.DeadlineExceeded, status: http.StatusInternalServerError, code: "internal_error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newTestEngine(uuid.New(), &fakeAdaptive{err: tc.err}, &fakeSetup{}, &fakeCalibration{})
			rec := do(r, http.MethodGet, "/courses/"+uuid.NewString()+"/mastery", "")
			if rec.Code != tc.status {
				t.Fatalf("status: got=%d want=%d", rec.Code, tc.status)
			}
			var env struct {
				Error struct {
					Code string `json:"code"`
				} `json:"error"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
			if env.Error.Code != tc.code {
				t.Fatalf("code: got=%q want=%q", env.Error.Code, tc.code)
			}
		})
	}
}

func TestNextItemsLimit(t *testing.T) {
	a := &fakeAdaptive{}
	r := newTestEngine(uuid.New(), a, &fakeSetup{}, &fakeCalibration{})
	base := "/courses/" + uuid.NewString() + "/next-items"

	cases := []struct {
		query  string
		status int
		limit  int
	}{
		{query: "", status: http.StatusOK, limit: defaultNextItems},
		{query: "?limit=3", status: http.StatusOK, limit: 3},
		{query: "?limit=1000", status: http.StatusOK, limit: maxNextItems},
		{query: "?limit=0", status: http.StatusBadRequest},
		{query: "?limit=abc", status: http.StatusBadRequest},
	}
	for _, tc := range cases {
		a.lastLimit = 0
		rec := do(r, http.MethodGet, base+tc.query, "")
		if rec.Code != tc.status {
			t.Fatalf("%q: status got=%d want=%d", tc.query, rec.Code, tc.status)
		}
		if tc.status == http.StatusOK && a.lastLimit != tc.limit {
			t.Fatalf("%q: limit got=%d want=%d", tc.query, a.lastLimit, tc.limit)
		}
	}
}

func TestLearnerRoutesRequireIdentityAndValidIDs(t *testing.T) {
	r := newTestEngine(uuid.Nil, &fakeAdaptive{}, &fakeSetup{}, &fakeCalibration{})
	rec := do(r, http.MethodGet, "/courses/"+uuid.NewString()+"/mastery", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	r = newTestEngine(uuid.New(), &fakeAdaptive{}, &fakeSetup{}, &fakeCalibration{})
	rec = do(r, http.MethodGet, "/courses/not-a-uuid/mastery", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRecordExposureOptionalBody(t *testing.T) {
	a := &fakeAdaptive{}
	r := newTestEngine(uuid.New(), a, &fakeSetup{}, &fakeCalibration{})

	rec := do(r, http.MethodPost, "/items/q1/exposures", "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.True(t, a.lastExposure.IsZero())

	rec = do(r, http.MethodPost, "/items/q1/exposures", `{"seen_at":"2026-05-04T11:00:00Z"}`)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, time.Date(2026, 5, 4, 11, 0, 0, 0, time.UTC), a.lastExposure)
}

func TestInternalRoutes(t *testing.T) {
	s := &fakeSetup{}
	course := uuid.New()
	r := newTestEngine(uuid.Nil, &fakeAdaptive{}, s, &fakeCalibration{})

	rec := do(r, http.MethodPut, "/internal/courses/"+course.String()+"/config",
		`{"bkt":{"learning_rate":0.3,"guessing_probability":0.2,"slipping_probability":0.1},"policy":{"epsilon":0.1,"min_difficulty":"easy","max_difficulty":"hard","avoid_repeat_minutes":30}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, course, s.lastCourse.CourseID)
	require.NotNil(t, s.lastCourse.Policy)
	require.Equal(t, selection.BandHard, s.lastCourse.Policy.MaxDifficulty)

	rec = do(r, http.MethodPost, "/internal/items/sync", `{"items":[{"item_id":"q1","course_id":"`+course.String()+`","difficulty":"easy"}]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, s.lastItems, 1)

	rec = do(r, http.MethodGet, "/internal/items/q1/calibrations", "")
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(r, http.MethodGet, "/internal/items/missing/calibrations", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRefreshStatusReflectsMode(t *testing.T) {
	r := newTestEngine(uuid.Nil, &fakeAdaptive{}, &fakeSetup{}, &fakeCalibration{})
	rec := do(r, http.MethodPost, "/internal/calibrations/refresh", `{"item_ids":["q1"]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	r = newTestEngine(uuid.Nil, &fakeAdaptive{}, &fakeSetup{}, &fakeCalibration{async: true})
	rec = do(r, http.MethodPost, "/internal/calibrations/refresh", "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Contains(t, rec.Body.String(), "wf-1")
}
